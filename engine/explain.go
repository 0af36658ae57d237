package engine

// explain decomposes the combined decision into signed per-feature
// contributions. Contribution of feature f is the interference-weighted sum
// of weight_i[f] * z[f] across models, so the contributions add up to the
// combined logit minus the weighted bias term. The UI can render them as a
// bar chart that is numerically consistent with the decision.
func explain(schema Schema, models []LinearModel, weights, z []float64) map[string]float64 {
	contributions := make(map[string]float64, len(schema.Features))
	for f, name := range schema.Features {
		total := 0.0
		for i, model := range models {
			total += weights[i] * model.Weights[f] * z[f]
		}
		contributions[name] = total
	}
	return contributions
}
