package engine

import (
	"math"
	"testing"
)

func TestCombineSingleModelPassthrough(t *testing.T) {
	agg := combineInterference([]float64{0.73}, []float64{0.5}, 3.0)
	if agg.Probability != 0.73 {
		t.Fatalf("expected passthrough probability 0.73, got %f", agg.Probability)
	}
	if len(agg.Weights) != 1 || agg.Weights[0] != 1.0 {
		t.Fatalf("expected single weight 1.0, got %v", agg.Weights)
	}
	if agg.Suppressed {
		t.Fatal("single model must not be suppressed")
	}
}

func TestCombineWeightsSumToOne(t *testing.T) {
	probs := []float64{0.2, 0.6, 0.9}
	sens := []float64{0.1, 0.5, 1.2}
	for _, noise := range []float64{0, 0.5, 2, 10} {
		agg := combineInterference(probs, sens, noise)
		sum := 0.0
		for _, w := range agg.Weights {
			if w < 0 {
				t.Fatalf("negative weight %f at noise %f", w, noise)
			}
			sum += w
		}
		if math.Abs(sum-1.0) > 1e-9 {
			t.Fatalf("weights sum %f != 1 at noise %f", sum, noise)
		}
		if agg.Probability < 0 || agg.Probability > 1 {
			t.Fatalf("combined probability %f outside [0,1]", agg.Probability)
		}
	}
}

func TestCombineEqualSensitivitiesIgnoreNoise(t *testing.T) {
	probs := []float64{0.3, 0.8}
	quiet := combineInterference(probs, []float64{0.4, 0.4}, 0)
	noisy := combineInterference(probs, []float64{0.4, 0.4}, 7)
	if math.Abs(quiet.Probability-noisy.Probability) > 1e-12 {
		t.Fatalf("equal sensitivities must cancel under normalization: %f vs %f",
			quiet.Probability, noisy.Probability)
	}
}

func TestCombineDampsNoisySensitiveModel(t *testing.T) {
	// The discordant model is far more noise-sensitive; under high noise
	// its weight should collapse and the combined estimate should move
	// toward the robust pair.
	probs := []float64{0.9, 0.88, 0.1}
	sens := []float64{0.1, 0.1, 2.0}
	agg := combineInterference(probs, sens, 3.0)
	if agg.Weights[2] > 0.01 {
		t.Fatalf("expected discordant model suppressed, weight %f", agg.Weights[2])
	}
	if agg.Probability < 0.85 {
		t.Fatalf("expected combined probability near the agreeing pair, got %f", agg.Probability)
	}
}

func TestCombineAllSuppressedFallsBackToEqualWeights(t *testing.T) {
	agg := combineInterference([]float64{0, 0, 0}, []float64{1, 1, 1}, 5)
	if !agg.Suppressed {
		t.Fatal("expected suppression flag")
	}
	for _, w := range agg.Weights {
		if w != 1.0/3.0 {
			t.Fatalf("expected exact equal weight 1/3, got %v", agg.Weights)
		}
	}
}

func TestCombineHandComputedScenario(t *testing.T) {
	// Two models over a two-feature sample [2,2] with zero biases and zero
	// sensitivities: logits are 0 and 2, so the combined probability is the
	// probability-proportional mixture of sigmoid(0) and sigmoid(2).
	m1 := LinearModel{ID: "m1", Weights: []float64{1, -1}}
	m2 := LinearModel{ID: "m2", Weights: []float64{0.5, 0.5}}
	z := []float64{2, 2}

	logit1, p1, err := m1.Predict(z)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logit2, p2, err := m2.Predict(z)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logit1 != 0 || logit2 != 2 {
		t.Fatalf("expected logits 0 and 2, got %f and %f", logit1, logit2)
	}

	agg := combineInterference([]float64{p1, p2}, []float64{0, 0}, 0)
	expected := (p1*p1 + p2*p2) / (p1 + p2)
	if math.Abs(agg.Probability-expected) > 1e-9 {
		t.Fatalf("expected combined %f, got %f", expected, agg.Probability)
	}
	if agg.Suppressed {
		t.Fatal("unexpected suppression")
	}
}

func TestVariance(t *testing.T) {
	if v := variance([]float64{0.5, 0.5, 0.5}); v != 0 {
		t.Fatalf("expected zero variance, got %f", v)
	}
	if v := variance([]float64{0, 1}); math.Abs(v-0.25) > 1e-12 {
		t.Fatalf("expected variance 0.25, got %f", v)
	}
}
