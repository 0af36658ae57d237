package engine

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

// Diagnosis is the outcome of one inference call. Value object, created
// fresh per call, never mutated after return.
type Diagnosis struct {
	Domain              Domain             `json:"domain"`
	Label               string             `json:"label"`
	Probability         float64            `json:"probability"`
	BaselineProbability float64            `json:"baseline_probability"`
	Confidence          float64            `json:"confidence"`
	NoiseScore          float64            `json:"noise_score"`
	Disagreement        float64            `json:"disagreement"`
	Contributions       map[string]float64 `json:"contributions"`
	ModelWeights        map[string]float64 `json:"model_weights"`
	ModelProbabilities  map[string]float64 `json:"model_probabilities"`
	Timestamp           time.Time          `json:"timestamp"`
}

// BatchResult pairs one batch element with its outcome. Elements fail
// independently; one bad row never aborts the rest of the batch.
type BatchResult struct {
	Index     int        `json:"index"`
	Diagnosis *Diagnosis `json:"diagnosis,omitempty"`
	Err       error      `json:"-"`
}

// Engine serves inference for one domain. All fields are frozen at
// construction, so concurrent Diagnose calls need no locking.
type Engine struct {
	schema  Schema
	models  []LinearModel
	profile NoiseProfile
	cutoff  float64
	log     *zap.Logger
}

// NewEngine builds an engine from a validated bundle.
func NewEngine(bundle *ModelBundle, log *zap.Logger) (*Engine, error) {
	if err := bundle.Validate(); err != nil {
		return nil, err
	}
	schema, err := SchemaFor(bundle.Domain)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	models := make([]LinearModel, len(bundle.Models))
	for i, m := range bundle.Models {
		weights := make([]float64, len(m.Weights))
		copy(weights, m.Weights)
		models[i] = LinearModel{
			ID:          m.ID,
			Weights:     weights,
			Bias:        m.Bias,
			Sensitivity: m.Sensitivity,
		}
	}

	return &Engine{
		schema:  schema,
		models:  models,
		profile: bundle.Profile,
		cutoff:  bundle.Cutoff,
		log:     log,
	}, nil
}

// Schema returns the engine's domain schema.
func (e *Engine) Schema() Schema {
	return e.schema
}

// Diagnose runs the full inference path for one raw sample.
func (e *Engine) Diagnose(raw map[string]float64) (Diagnosis, error) {
	vec, err := NewFeatureVector(e.schema, raw)
	if err != nil {
		return Diagnosis{}, err
	}
	return e.diagnoseVector(vec)
}

// diagnoseVector is the validated-input inference path, shared with the
// robustness evaluator.
func (e *Engine) diagnoseVector(vec FeatureVector) (Diagnosis, error) {
	z := e.profile.Standardize(vec.Values)
	noiseScore := e.profile.NoiseScore(vec.Values)

	probs := make([]float64, len(e.models))
	sensitivities := make([]float64, len(e.models))
	baseline := 0.0
	for i, model := range e.models {
		_, p, err := model.Predict(z)
		if err != nil {
			return Diagnosis{}, err
		}
		probs[i] = p
		sensitivities[i] = model.Sensitivity
		baseline += p
	}
	baseline /= float64(len(e.models))

	agg := combineInterference(probs, sensitivities, noiseScore)
	if agg.Suppressed {
		e.log.Warn("all model amplitudes suppressed, using equal weights",
			zap.String("domain", string(e.schema.Domain)),
			zap.Float64("noise_score", noiseScore))
	}

	label, confidence := calibrate(e.schema, agg.Probability, e.cutoff, noiseScore)
	contributions := explain(e.schema, e.models, agg.Weights, z)

	modelWeights := make(map[string]float64, len(e.models))
	modelProbs := make(map[string]float64, len(e.models))
	for i, model := range e.models {
		modelWeights[model.ID] = agg.Weights[i]
		modelProbs[model.ID] = probs[i]
	}

	return Diagnosis{
		Domain:              e.schema.Domain,
		Label:               label,
		Probability:         agg.Probability,
		BaselineProbability: baseline,
		Confidence:          confidence,
		NoiseScore:          noiseScore,
		Disagreement:        agg.Variance,
		Contributions:       contributions,
		ModelWeights:        modelWeights,
		ModelProbabilities:  modelProbs,
		Timestamp:           time.Now().UTC(),
	}, nil
}

// DiagnoseBatch diagnoses samples in order. Per-element outcomes are
// independent.
func (e *Engine) DiagnoseBatch(samples []map[string]float64) []BatchResult {
	results := make([]BatchResult, len(samples))
	for i, sample := range samples {
		results[i].Index = i
		diagnosis, err := e.Diagnose(sample)
		if err != nil {
			results[i].Err = err
			continue
		}
		results[i].Diagnosis = &diagnosis
	}
	return results
}

// Registry maps domains to their loaded engines. Built once, then frozen;
// hot reload replaces the whole registry rather than mutating it.
type Registry struct {
	engines map[Domain]*Engine
}

// NewRegistry wraps pre-built engines.
func NewRegistry(engines map[Domain]*Engine) *Registry {
	copied := make(map[Domain]*Engine, len(engines))
	for domain, eng := range engines {
		copied[domain] = eng
	}
	return &Registry{engines: copied}
}

// LoadRegistry loads every bundle present in dir. Domains without a bundle
// file are skipped; a present but broken bundle is fatal.
func LoadRegistry(dir string, log *zap.Logger) (*Registry, error) {
	engines := make(map[Domain]*Engine)
	for _, domain := range Domains() {
		path := BundlePath(dir, domain)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		bundle, err := LoadBundle(path)
		if err != nil {
			return nil, err
		}
		eng, err := NewEngine(bundle, log)
		if err != nil {
			return nil, err
		}
		engines[domain] = eng
		if log != nil {
			log.Info("model bundle loaded",
				zap.String("domain", string(domain)),
				zap.Int("models", len(bundle.Models)))
		}
	}
	if len(engines) == 0 {
		return nil, fmt.Errorf("%w: no bundles found in %s", ErrModelLoad, dir)
	}
	return &Registry{engines: engines}, nil
}

// Engine returns the engine for a domain.
func (r *Registry) Engine(domain Domain) (*Engine, error) {
	eng, ok := r.engines[domain]
	if !ok {
		return nil, fmt.Errorf("%w: no model loaded for domain %q", ErrInvalidInput, domain)
	}
	return eng, nil
}

// Domains returns the domains with a loaded engine, in schema order.
func (r *Registry) Domains() []Domain {
	var domains []Domain
	for _, domain := range Domains() {
		if _, ok := r.engines[domain]; ok {
			domains = append(domains, domain)
		}
	}
	return domains
}
