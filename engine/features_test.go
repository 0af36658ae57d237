package engine

import (
	"errors"
	"math"
	"testing"
)

func TestNewFeatureVectorOrdersPerSchema(t *testing.T) {
	schema, err := SchemaFor(DomainWater)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	vec, err := NewFeatureVector(schema, map[string]float64{
		"temperature": 25,
		"ph":          7.2,
		"turbidity":   5,
		"tds":         300,
		"ec":          600,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float64{7.2, 5, 300, 600, 25}
	for i, v := range want {
		if vec.Values[i] != v {
			t.Fatalf("expected %v, got %v", want, vec.Values)
		}
	}
}

func TestNewFeatureVectorRejectsWrongShape(t *testing.T) {
	schema, err := SchemaFor(DomainSoil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = NewFeatureVector(schema, map[string]float64{"ph": 6.5})
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch for missing features, got %v", err)
	}

	_, err = NewFeatureVector(schema, map[string]float64{
		"ph": 6.5, "nitrogen": 40, "phosphorus": 30, "potassium": 120, "salinity": 3,
	})
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch for unknown feature, got %v", err)
	}
}

func TestNewFeatureVectorRejectsNonFinite(t *testing.T) {
	schema, err := SchemaFor(DomainSoil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = NewFeatureVector(schema, map[string]float64{
		"ph": math.NaN(), "nitrogen": 40, "phosphorus": 30, "potassium": 120, "moisture": 25,
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for NaN, got %v", err)
	}
	_, err = NewFeatureVector(schema, map[string]float64{
		"ph": 6.5, "nitrogen": math.Inf(1), "phosphorus": 30, "potassium": 120, "moisture": 25,
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for Inf, got %v", err)
	}
}

func TestParseDomain(t *testing.T) {
	if _, err := ParseDomain("water"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseDomain("stocks"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
