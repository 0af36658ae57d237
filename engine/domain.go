package engine

import "fmt"

// Domain identifies one of the supported diagnostic domains. The set is
// closed: each domain carries its own feature schema and class labels.
type Domain string

const (
	DomainSoil   Domain = "soil"
	DomainHealth Domain = "health"
	DomainWater  Domain = "water"
)

// Schema describes the fixed, ordered feature layout of a domain together
// with the two class labels (negative label below the cutoff, positive at
// or above it).
type Schema struct {
	Domain        Domain   `json:"domain"`
	Features      []string `json:"features"`
	NegativeLabel string   `json:"negative_label"`
	PositiveLabel string   `json:"positive_label"`
}

var domainSchemas = map[Domain]Schema{
	DomainSoil: {
		Domain:        DomainSoil,
		Features:      []string{"ph", "nitrogen", "phosphorus", "potassium", "moisture"},
		NegativeLabel: "Fertile",
		PositiveLabel: "Nutrient Deficient",
	},
	DomainHealth: {
		Domain:        DomainHealth,
		Features:      []string{"hemoglobin", "wbc", "platelets", "temperature", "pulse"},
		NegativeLabel: "Healthy",
		PositiveLabel: "Possible Condition",
	},
	DomainWater: {
		Domain:        DomainWater,
		Features:      []string{"ph", "turbidity", "tds", "ec", "temperature"},
		NegativeLabel: "Safe",
		PositiveLabel: "Contaminated",
	},
}

// Domains returns the supported domains in a fixed order.
func Domains() []Domain {
	return []Domain{DomainSoil, DomainHealth, DomainWater}
}

// SchemaFor returns the schema of a domain.
func SchemaFor(domain Domain) (Schema, error) {
	schema, ok := domainSchemas[domain]
	if !ok {
		return Schema{}, fmt.Errorf("%w: unknown domain %q", ErrInvalidInput, domain)
	}
	return schema, nil
}

// ParseDomain validates a raw domain string.
func ParseDomain(raw string) (Domain, error) {
	domain := Domain(raw)
	if _, ok := domainSchemas[domain]; !ok {
		return "", fmt.Errorf("%w: unknown domain %q", ErrInvalidInput, raw)
	}
	return domain, nil
}
