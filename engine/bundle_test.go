package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func testWaterBundle() *ModelBundle {
	return &ModelBundle{
		Domain:   DomainWater,
		Features: []string{"ph", "turbidity", "tds", "ec", "temperature"},
		Cutoff:   0.5,
		Profile: NoiseProfile{
			Means:   []float64{7.1, 5, 300, 600, 24},
			Stddevs: []float64{0.6, 15, 250, 400, 6},
		},
		Models: []BundleModel{
			{ID: "water-0", Weights: []float64{-0.8, 1.4, 1.1, 0.9, 0.1}, Bias: -0.4, Sensitivity: 0.10},
			{ID: "water-1", Weights: []float64{-0.83, 1.46, 1.14, 0.94, 0.1}, Bias: -0.42, Sensitivity: 0.22},
			{ID: "water-2", Weights: []float64{-0.77, 1.34, 1.06, 0.86, 0.1}, Bias: -0.38, Sensitivity: 0.16},
		},
	}
}

func TestBundleSaveLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := BundlePath(dir, DomainWater)

	bundle := testWaterBundle()
	if err := bundle.Save(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, err := LoadBundle(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.Domain != DomainWater || len(loaded.Models) != 3 {
		t.Fatalf("unexpected bundle: %+v", loaded)
	}
	if loaded.Models[1].Sensitivity != 0.22 {
		t.Fatalf("expected sensitivity to survive roundtrip, got %f", loaded.Models[1].Sensitivity)
	}
}

func TestLoadBundleRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "water.json")
	if err := os.WriteFile(path, []byte(`{"domain":"water","feat`), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := LoadBundle(path); !errors.Is(err, ErrModelLoad) {
		t.Fatalf("expected ErrModelLoad, got %v", err)
	}
}

func TestBundleValidation(t *testing.T) {
	noModels := testWaterBundle()
	noModels.Models = nil
	if err := noModels.Validate(); !errors.Is(err, ErrModelLoad) {
		t.Fatalf("expected ErrModelLoad for empty models, got %v", err)
	}

	badCutoff := testWaterBundle()
	badCutoff.Cutoff = 1.5
	if err := badCutoff.Validate(); !errors.Is(err, ErrModelLoad) {
		t.Fatalf("expected ErrModelLoad for bad cutoff, got %v", err)
	}

	wrongOrder := testWaterBundle()
	wrongOrder.Features[0], wrongOrder.Features[1] = wrongOrder.Features[1], wrongOrder.Features[0]
	if err := wrongOrder.Validate(); !errors.Is(err, ErrModelLoad) {
		t.Fatalf("expected ErrModelLoad for reordered features, got %v", err)
	}

	shortWeights := testWaterBundle()
	shortWeights.Models[0].Weights = shortWeights.Models[0].Weights[:3]
	if err := shortWeights.Validate(); !errors.Is(err, ErrModelLoad) {
		t.Fatalf("expected ErrModelLoad for short weights, got %v", err)
	}
}

func TestLoadRegistry(t *testing.T) {
	dir := t.TempDir()
	if err := testWaterBundle().Save(BundlePath(dir, DomainWater)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	registry, err := LoadRegistry(dir, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := registry.Engine(DomainWater); err != nil {
		t.Fatalf("expected water engine: %v", err)
	}
	if _, err := registry.Engine(DomainSoil); err == nil {
		t.Fatal("expected error for unloaded domain")
	}
	domains := registry.Domains()
	if len(domains) != 1 || domains[0] != DomainWater {
		t.Fatalf("unexpected domains: %v", domains)
	}
}

func TestLoadRegistryEmptyDirFails(t *testing.T) {
	if _, err := LoadRegistry(t.TempDir(), nil); !errors.Is(err, ErrModelLoad) {
		t.Fatalf("expected ErrModelLoad, got %v", err)
	}
}
