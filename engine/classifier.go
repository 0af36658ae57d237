package engine

import (
	"fmt"
	"math"
)

// Logits are clamped before squashing so the sigmoid never saturates to an
// exact 0 or 1.
const maxLogit = 30.0

// LinearModel is one trained logistic base model: a weight per feature plus
// a bias, operating on the standardized feature space. Immutable after
// loading; no randomness at inference time.
type LinearModel struct {
	ID          string
	Weights     []float64
	Bias        float64
	Sensitivity float64
}

// Predict returns the raw logit and the squashed probability for a
// standardized feature vector.
func (m LinearModel) Predict(z []float64) (logit, probability float64, err error) {
	if len(z) != len(m.Weights) {
		return 0, 0, fmt.Errorf("%w: model %s has %d weights, sample has %d features",
			ErrSchemaMismatch, m.ID, len(m.Weights), len(z))
	}
	logit = m.Bias
	for i, w := range m.Weights {
		logit += w * z[i]
	}
	return logit, sigmoid(logit), nil
}

func sigmoid(logit float64) float64 {
	if logit > maxLogit {
		logit = maxLogit
	} else if logit < -maxLogit {
		logit = -maxLogit
	}
	return 1.0 / (1.0 + math.Exp(-logit))
}
