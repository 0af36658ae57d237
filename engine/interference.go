package engine

import "math"

// Below this, the amplitude sum is treated as a full collapse and the
// aggregator falls back to exact equal weighting.
const minAmplitudeSum = 1e-12

// aggregation is the outcome of one interference combination.
type aggregation struct {
	Probability float64
	Weights     []float64
	Variance    float64
	Suppressed  bool
}

// combineInterference merges the base model probabilities into one estimate
// using noise-damped amplitudes.
//
// Each model gets an amplitude p_i * exp(-sensitivity_i * noiseScore):
// models calibrated as fragile under the observed noise level are damped
// exponentially, so weight mass concentrates on the subset still expected
// to be reliable. Normalized amplitudes are the interference weights; the
// combined probability is the weighted sum. With equal sensitivities the
// damping factors cancel under normalization and the scheme degrades to
// probability-proportional weighting; with a single model it is the
// identity. noiseScore must be >= 0 (guaranteed by NoiseProfile.NoiseScore).
//
// If every amplitude underflows, the weights reset to exactly 1/k each and
// Suppressed is set; the caller logs this but does not fail.
func combineInterference(probs, sensitivities []float64, noiseScore float64) aggregation {
	k := len(probs)
	if k == 1 {
		return aggregation{Probability: probs[0], Weights: []float64{1.0}}
	}

	weights := make([]float64, k)
	sum := 0.0
	for i, p := range probs {
		weights[i] = p * math.Exp(-sensitivities[i]*noiseScore)
		sum += weights[i]
	}

	suppressed := sum < minAmplitudeSum
	if suppressed {
		for i := range weights {
			weights[i] = 1.0 / float64(k)
		}
	} else {
		for i := range weights {
			weights[i] /= sum
		}
	}

	combined := 0.0
	for i, p := range probs {
		combined += weights[i] * p
	}

	return aggregation{
		Probability: combined,
		Weights:     weights,
		Variance:    variance(probs),
		Suppressed:  suppressed,
	}
}

// variance is the population variance of the base probabilities, reported
// as the ensemble disagreement measure.
func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(values))
}
