package pipeline

import (
	"math"
	"testing"
)

func TestCleanerRejectsNonFinite(t *testing.T) {
	cleaner := NewCleaner(waterSchema(t))
	samples := []RawSample{
		{Row: 2, Values: map[string]float64{"ph": 7.2, "turbidity": 5, "tds": 300, "ec": 600, "temperature": 25}},
		{Row: 3, Values: map[string]float64{"ph": math.NaN(), "turbidity": 5, "tds": 300, "ec": 600, "temperature": 25}},
	}

	passed, rowErrors := cleaner.Clean(samples)
	if len(passed) != 1 || passed[0].Row != 2 {
		t.Fatalf("expected only row 2 to pass, got %+v", passed)
	}
	if len(rowErrors) != 1 || rowErrors[0].Row != 3 {
		t.Fatalf("expected row 3 rejected, got %v", rowErrors)
	}

	stats := cleaner.Stats()
	if stats.TotalProcessed != 2 || stats.Passed != 1 || stats.Rejected != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.Issues["finite_values"] != 1 {
		t.Fatalf("expected finite_values issue recorded: %+v", stats.Issues)
	}
}

func TestCleanerRejectsOutOfBounds(t *testing.T) {
	cleaner := NewCleaner(waterSchema(t))
	samples := []RawSample{
		{Row: 2, Values: map[string]float64{"ph": 22, "turbidity": 5, "tds": 300, "ec": 600, "temperature": 25}},
	}
	passed, rowErrors := cleaner.Clean(samples)
	if len(passed) != 0 {
		t.Fatalf("expected pH 22 rejected, got %+v", passed)
	}
	if len(rowErrors) != 1 {
		t.Fatalf("expected one row error, got %v", rowErrors)
	}
}
