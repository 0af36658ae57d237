package engine

import (
	"errors"
	"testing"
)

func labeledWaterSamples() []LabeledSample {
	return []LabeledSample{
		{Values: map[string]float64{"ph": 7.2, "turbidity": 3, "tds": 250, "ec": 500, "temperature": 23}, Label: 0},
		{Values: map[string]float64{"ph": 7.0, "turbidity": 6, "tds": 320, "ec": 610, "temperature": 25}, Label: 0},
		{Values: map[string]float64{"ph": 5.1, "turbidity": 80, "tds": 1900, "ec": 3100, "temperature": 30}, Label: 1},
		{Values: map[string]float64{"ph": 4.8, "turbidity": 120, "tds": 2200, "ec": 3900, "temperature": 33}, Label: 1},
	}
}

func TestRobustnessZeroLevelMatchesNoiseless(t *testing.T) {
	eng := testWaterEngine(t)
	samples := labeledWaterSamples()

	// Noiseless accuracy computed through the public path.
	correct := 0
	for _, sample := range samples {
		diagnosis, err := eng.Diagnose(sample.Values)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		predicted := 0
		if diagnosis.Label == eng.Schema().PositiveLabel {
			predicted = 1
		}
		if predicted == sample.Label {
			correct++
		}
	}
	want := float64(correct) / float64(len(samples))

	curve, err := eng.EvaluateRobustness(samples, []float64{0}, 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if curve[0].Accuracy != want {
		t.Fatalf("level 0 accuracy %f, want noiseless accuracy %f", curve[0].Accuracy, want)
	}
}

func TestRobustnessDeterministicAndOrdered(t *testing.T) {
	eng := testWaterEngine(t)
	samples := labeledWaterSamples()
	levels := []float64{0, 0.5, 1, 2}

	first, err := eng.EvaluateRobustness(samples, levels, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := eng.EvaluateRobustness(samples, levels, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != len(levels) {
		t.Fatalf("expected %d points, got %d", len(levels), len(first))
	}
	for i := range first {
		if first[i].NoiseLevel != levels[i] {
			t.Fatalf("curve order broken at %d: %f", i, first[i].NoiseLevel)
		}
		if first[i].Accuracy != second[i].Accuracy {
			t.Fatalf("curve not deterministic at level %f: %f vs %f",
				levels[i], first[i].Accuracy, second[i].Accuracy)
		}
		if first[i].Accuracy < 0 || first[i].Accuracy > 1 {
			t.Fatalf("accuracy %f outside [0,1]", first[i].Accuracy)
		}
	}
}

func TestRobustnessInputValidation(t *testing.T) {
	eng := testWaterEngine(t)
	if _, err := eng.EvaluateRobustness(nil, []float64{0}, 1); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty samples, got %v", err)
	}
	if _, err := eng.EvaluateRobustness(labeledWaterSamples(), nil, 1); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty levels, got %v", err)
	}
	if _, err := eng.EvaluateRobustness(labeledWaterSamples(), []float64{-1}, 1); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for negative level, got %v", err)
	}
	bad := labeledWaterSamples()
	bad[0].Values = map[string]float64{"ph": 7}
	if _, err := eng.EvaluateRobustness(bad, []float64{0}, 1); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch for bad sample, got %v", err)
	}
}
