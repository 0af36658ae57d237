package engine

import (
	"fmt"
	"math/rand"
	"sync"
)

// robustnessWorkers bounds the per-noise-level parallelism.
const robustnessWorkers = 4

// LabeledSample is one ground-truth sample for offline evaluation. Label is
// 1 for the positive class, 0 for the negative.
type LabeledSample struct {
	Values map[string]float64 `json:"values"`
	Label  int                `json:"label"`
}

// RobustnessPoint is one (noise level, accuracy) measurement.
type RobustnessPoint struct {
	NoiseLevel float64 `json:"noise_level"`
	Accuracy   float64 `json:"accuracy"`
}

// RobustnessCurve is ordered by the caller's noise levels.
type RobustnessCurve []RobustnessPoint

// EvaluateRobustness perturbs every sample with additive noise scaled by
// the profile's per-feature stddev, runs the full inference path and
// records accuracy per noise level. Levels evaluate independently on a
// bounded worker pool; the curve keeps the caller's level order.
// Deterministic for a fixed seed, and level 0 reproduces the noiseless
// accuracy exactly. Shared model state is never touched.
func (e *Engine) EvaluateRobustness(samples []LabeledSample, levels []float64, seed int64) (RobustnessCurve, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no labeled samples", ErrInvalidInput)
	}
	if len(levels) == 0 {
		return nil, fmt.Errorf("%w: no noise levels", ErrInvalidInput)
	}

	// Validate once; perturbation cannot introduce schema errors.
	vectors := make([]FeatureVector, len(samples))
	labels := make([]int, len(samples))
	for i, sample := range samples {
		vec, err := NewFeatureVector(e.schema, sample.Values)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		vectors[i] = vec
		labels[i] = sample.Label
	}

	for _, level := range levels {
		if level < 0 {
			return nil, fmt.Errorf("%w: negative noise level %.4f", ErrInvalidInput, level)
		}
	}

	curve := make(RobustnessCurve, len(levels))
	errs := make([]error, len(levels))
	sem := make(chan struct{}, robustnessWorkers)
	var wg sync.WaitGroup

	for li, level := range levels {
		wg.Add(1)
		sem <- struct{}{}
		go func(li int, level float64) {
			defer wg.Done()
			defer func() { <-sem }()
			accuracy, err := e.accuracyAtLevel(vectors, labels, level, seed+int64(li))
			if err != nil {
				errs[li] = err
				return
			}
			curve[li] = RobustnessPoint{NoiseLevel: level, Accuracy: accuracy}
		}(li, level)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return curve, nil
}

func (e *Engine) accuracyAtLevel(vectors []FeatureVector, labels []int, level float64, seed int64) (float64, error) {
	rng := rand.New(rand.NewSource(seed))
	correct := 0
	for i, vec := range vectors {
		perturbed := vec
		if level > 0 {
			values := make([]float64, len(vec.Values))
			for f, v := range vec.Values {
				values[f] = v + level*e.profile.Stddevs[f]*rng.NormFloat64()
			}
			perturbed = FeatureVector{Domain: vec.Domain, Values: values}
		}
		diagnosis, err := e.diagnoseVector(perturbed)
		if err != nil {
			return 0, err
		}
		predicted := 0
		if diagnosis.Label == e.schema.PositiveLabel {
			predicted = 1
		}
		if predicted == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(vectors)), nil
}
