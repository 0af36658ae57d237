package engine

import (
	"fmt"
	"math"
)

// FeatureVector is one sample's numeric inputs, ordered per the domain
// schema. Immutable once built; passed by value through the inference path.
type FeatureVector struct {
	Domain Domain
	Values []float64
}

// NewFeatureVector validates a raw sample against the domain schema and
// orders it. A wrong field set fails with ErrSchemaMismatch; non-finite
// values fail with ErrInvalidInput. Nothing invalid reaches a classifier.
func NewFeatureVector(schema Schema, raw map[string]float64) (FeatureVector, error) {
	if len(raw) != len(schema.Features) {
		return FeatureVector{}, fmt.Errorf("%w: domain %s expects %d features, got %d",
			ErrSchemaMismatch, schema.Domain, len(schema.Features), len(raw))
	}

	values := make([]float64, len(schema.Features))
	for i, name := range schema.Features {
		value, ok := raw[name]
		if !ok {
			return FeatureVector{}, fmt.Errorf("%w: missing feature %q for domain %s",
				ErrSchemaMismatch, name, schema.Domain)
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return FeatureVector{}, fmt.Errorf("%w: feature %q is not finite",
				ErrInvalidInput, name)
		}
		values[i] = value
	}

	return FeatureVector{Domain: schema.Domain, Values: values}, nil
}
