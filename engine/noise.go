package engine

import (
	"fmt"
	"math"
)

// NoiseProfile holds per-feature means and standard deviations from
// training data. It standardizes incoming samples and scores how far a
// sample sits from the nominal training distribution. Read-only at
// inference time.
type NoiseProfile struct {
	Means   []float64 `json:"means"`
	Stddevs []float64 `json:"stddevs"`
}

// Validate checks the profile against the schema width. A profile with no
// variance data at all is degenerate and cannot serve.
func (p NoiseProfile) Validate(featureCount int) error {
	if len(p.Means) != featureCount || len(p.Stddevs) != featureCount {
		return fmt.Errorf("%w: profile has %d/%d stats for %d features",
			ErrDegenerateProfile, len(p.Means), len(p.Stddevs), featureCount)
	}
	usable := 0
	for _, sd := range p.Stddevs {
		if sd < 0 || math.IsNaN(sd) || math.IsInf(sd, 0) {
			return fmt.Errorf("%w: negative or non-finite stddev", ErrDegenerateProfile)
		}
		if sd > 0 {
			usable++
		}
	}
	if usable == 0 {
		return fmt.Errorf("%w: all stddevs are zero", ErrDegenerateProfile)
	}
	return nil
}

// Standardize maps raw values into z-space. A zero-stddev feature is an
// exact-match feature and maps to zero rather than dividing by zero.
func (p NoiseProfile) Standardize(values []float64) []float64 {
	z := make([]float64, len(values))
	for i, v := range values {
		if p.Stddevs[i] > 0 {
			z[i] = (v - p.Means[i]) / p.Stddevs[i]
		}
	}
	return z
}

// NoiseScore is the RMS standardized deviation of the sample from the
// profile, over the features that carry variance data. Always >= 0.
func (p NoiseProfile) NoiseScore(values []float64) float64 {
	sum := 0.0
	count := 0
	for i, v := range values {
		if p.Stddevs[i] <= 0 {
			continue
		}
		d := (v - p.Means[i]) / p.Stddevs[i]
		sum += d * d
		count++
	}
	if count == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(count))
}
