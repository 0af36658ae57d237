package engine

import "math"

// confidenceNoiseDiscount controls how fast reported confidence decays as
// the noise score grows. The discount is exponential, so confidence is
// strictly non-increasing in the noise score for a fixed probability.
const confidenceNoiseDiscount = 0.35

// calibrate turns the combined probability into a class label and a
// noise-discounted confidence in [0,1].
//
// The label is the cutoff threshold decision. Raw certainty is the
// probability's distance from the cutoff rescaled to [0,1]; it is then
// damped by exp(-lambda*noiseScore) so a noisy sample can never report
// near-certain confidence no matter how extreme the raw probability is.
func calibrate(schema Schema, probability, cutoff, noiseScore float64) (label string, confidence float64) {
	if probability >= cutoff {
		label = schema.PositiveLabel
	} else {
		label = schema.NegativeLabel
	}

	span := cutoff
	if 1-cutoff > span {
		span = 1 - cutoff
	}
	raw := math.Abs(probability-cutoff) / span
	if raw > 1 {
		raw = 1
	}

	confidence = raw * math.Exp(-confidenceNoiseDiscount*noiseScore)
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}
	return label, confidence
}
