package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// BundleModel is one base model as stored on disk.
type BundleModel struct {
	ID          string    `json:"id"`
	Weights     []float64 `json:"weights"`
	Bias        float64   `json:"bias"`
	Sensitivity float64   `json:"sensitivity"`
}

// ModelBundle is the on-disk model format for one domain: the trained base
// models, the noise profile and the decision cutoff, produced by the
// offline trainer. A bundle is loaded whole or not at all.
type ModelBundle struct {
	Domain   Domain        `json:"domain"`
	Features []string      `json:"features"`
	Cutoff   float64       `json:"cutoff"`
	Profile  NoiseProfile  `json:"noise_profile"`
	Models   []BundleModel `json:"models"`
}

// LoadBundle reads and validates a bundle file. Any inconsistency fails
// with ErrModelLoad so a partially written bundle never serves.
func LoadBundle(path string) (*ModelBundle, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	var bundle ModelBundle
	if err := json.Unmarshal(payload, &bundle); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelLoad, path, err)
	}
	if err := bundle.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &bundle, nil
}

// Validate checks internal consistency of the bundle.
func (b *ModelBundle) Validate() error {
	schema, err := SchemaFor(b.Domain)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	if len(b.Features) != len(schema.Features) {
		return fmt.Errorf("%w: domain %s expects %d features, bundle has %d",
			ErrModelLoad, b.Domain, len(schema.Features), len(b.Features))
	}
	for i, name := range schema.Features {
		if b.Features[i] != name {
			return fmt.Errorf("%w: feature %d is %q, want %q",
				ErrModelLoad, i, b.Features[i], name)
		}
	}
	if b.Cutoff <= 0 || b.Cutoff >= 1 {
		return fmt.Errorf("%w: cutoff %.4f outside (0,1)", ErrModelLoad, b.Cutoff)
	}
	if len(b.Models) == 0 {
		return fmt.Errorf("%w: bundle has no models", ErrModelLoad)
	}
	for _, model := range b.Models {
		if model.ID == "" {
			return fmt.Errorf("%w: model without id", ErrModelLoad)
		}
		if len(model.Weights) != len(b.Features) {
			return fmt.Errorf("%w: model %s has %d weights for %d features",
				ErrModelLoad, model.ID, len(model.Weights), len(b.Features))
		}
		for _, w := range model.Weights {
			if math.IsNaN(w) || math.IsInf(w, 0) {
				return fmt.Errorf("%w: model %s has non-finite weight", ErrModelLoad, model.ID)
			}
		}
		if model.Sensitivity < 0 {
			return fmt.Errorf("%w: model %s has negative sensitivity", ErrModelLoad, model.ID)
		}
	}
	if err := b.Profile.Validate(len(b.Features)); err != nil {
		return fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	return nil
}

// Save writes the bundle atomically: temp file in the same directory, then
// rename, so a concurrent loader never observes a half-written bundle.
func (b *ModelBundle) Save(path string) error {
	if err := b.Validate(); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".bundle-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// BundlePath is the conventional bundle file location for a domain.
func BundlePath(dir string, domain Domain) string {
	return filepath.Join(dir, string(domain)+".json")
}
