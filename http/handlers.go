// Package http 提供API处理器
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"noiseshield/db"
	"noiseshield/engine"
	"noiseshield/monitoring"
	"noiseshield/pipeline"
)

// RegistrySource 提供当前生效的模型注册表（支持热重载）
type RegistrySource interface {
	Registry() *engine.Registry
}

// Deps 处理器依赖
type Deps struct {
	Models  RegistrySource
	History *monitoring.History
	Hub     *monitoring.Hub
	Log     *zap.Logger
	Persist bool
}

// RegisterHandlers 注册所有API处理器
func RegisterHandlers(mux *http.ServeMux, deps Deps) {
	h := &handlers{deps}

	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /api/domains", h.handleDomains)

	// 诊断API
	mux.HandleFunc("POST /api/diagnose/{domain}", h.handleDiagnose)
	mux.HandleFunc("POST /api/diagnose/{domain}/batch", h.handleDiagnoseBatch)

	// 鲁棒性评估API
	mux.HandleFunc("POST /api/robustness/{domain}", h.handleRobustness)

	// 历史与汇总API
	mux.HandleFunc("GET /api/history/{domain}", h.handleHistory)
	mux.HandleFunc("GET /api/summary", h.handleSummary)

	// 实时推送
	if deps.Hub != nil {
		mux.HandleFunc("GET /api/ws/events", deps.Hub.HandleWebSocket)
	}
}

type handlers struct {
	deps Deps
}

func (h *handlers) engineFor(w http.ResponseWriter, r *http.Request) (*engine.Engine, bool) {
	domain, err := engine.ParseDomain(r.PathValue("domain"))
	if err != nil {
		respondError(w, http.StatusNotFound, "unknown domain")
		return nil, false
	}
	eng, err := h.deps.Models.Registry().Engine(domain)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "no model loaded for domain")
		return nil, false
	}
	return eng, true
}

func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]interface{}{
		"status":  "ok",
		"domains": h.deps.Models.Registry().Domains(),
	})
}

func (h *handlers) handleDomains(w http.ResponseWriter, r *http.Request) {
	var schemas []engine.Schema
	for _, domain := range h.deps.Models.Registry().Domains() {
		schema, err := engine.SchemaFor(domain)
		if err != nil {
			continue
		}
		schemas = append(schemas, schema)
	}
	respondJSON(w, schemas)
}

func (h *handlers) handleDiagnose(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engineFor(w, r)
	if !ok {
		return
	}

	var sample map[string]float64
	if err := json.NewDecoder(r.Body).Decode(&sample); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	diagnosis, err := eng.Diagnose(sample)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	h.record(diagnosis)
	respondJSON(w, diagnosis)
}

// batchElement 批量结果的单元素表示
type batchElement struct {
	Index     int               `json:"index"`
	Diagnosis *engine.Diagnosis `json:"diagnosis,omitempty"`
	Error     string            `json:"error,omitempty"`
}

func (h *handlers) handleDiagnoseBatch(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engineFor(w, r)
	if !ok {
		return
	}

	var samples []map[string]float64
	var ingestErrors []pipeline.RowError

	if strings.Contains(r.Header.Get("Content-Type"), "text/csv") {
		raw, rowErrors, err := pipeline.ReadSamplesCSV(r.Body, eng.Schema())
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		cleaner := pipeline.NewCleaner(eng.Schema())
		cleaned, cleanErrors := cleaner.Clean(raw)
		ingestErrors = append(rowErrors, cleanErrors...)
		for _, sample := range cleaned {
			samples = append(samples, sample.Values)
		}
	} else {
		if err := json.NewDecoder(r.Body).Decode(&samples); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	results := eng.DiagnoseBatch(samples)
	elements := make([]batchElement, len(results))
	for i, result := range results {
		elements[i] = batchElement{Index: result.Index, Diagnosis: result.Diagnosis}
		if result.Err != nil {
			elements[i].Error = result.Err.Error()
		} else if result.Diagnosis != nil {
			h.record(*result.Diagnosis)
		}
	}

	respondJSON(w, map[string]interface{}{
		"results":       elements,
		"ingest_errors": ingestErrors,
	})
}

// robustnessRequest 鲁棒性评估请求
type robustnessRequest struct {
	Samples []engine.LabeledSample `json:"samples"`
	Levels  []float64              `json:"levels"`
	Seed    int64                  `json:"seed"`
}

func (h *handlers) handleRobustness(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engineFor(w, r)
	if !ok {
		return
	}

	var req robustnessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	curve, err := eng.EvaluateRobustness(req.Samples, req.Levels, req.Seed)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	if h.deps.Persist {
		if err := db.SaveRobustnessRun(eng.Schema().Domain, req.Seed, len(req.Samples), curve); err != nil {
			h.deps.Log.Warn("failed to persist robustness run", zap.Error(err))
		}
	}

	respondJSON(w, map[string]interface{}{
		"domain": eng.Schema().Domain,
		"curve":  curve,
	})
}

func (h *handlers) handleHistory(w http.ResponseWriter, r *http.Request) {
	domain, err := engine.ParseDomain(r.PathValue("domain"))
	if err != nil {
		respondError(w, http.StatusNotFound, "unknown domain")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	response := map[string]interface{}{}
	if h.deps.History != nil {
		response["recent"] = h.deps.History.Recent(domain, limit)
		if stable, ok := h.deps.History.LastStable(domain); ok {
			response["last_stable"] = stable
		}
	}
	respondJSON(w, response)
}

func (h *handlers) handleSummary(w http.ResponseWriter, r *http.Request) {
	if h.deps.History == nil {
		respondJSON(w, monitoring.Summary{})
		return
	}
	respondJSON(w, h.deps.History.Summarize())
}

// record 记录诊断结果：历史缓存、持久化、实时推送
func (h *handlers) record(diagnosis engine.Diagnosis) {
	if h.deps.History != nil {
		h.deps.History.Record(diagnosis)
	}
	if h.deps.Hub != nil {
		h.deps.Hub.PublishDiagnosis(diagnosis)
	}
	if h.deps.Persist {
		if err := db.SaveDiagnosis(diagnosis); err != nil {
			h.deps.Log.Warn("failed to persist diagnosis", zap.Error(err))
		}
	}
}

func respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrSchemaMismatch), errors.Is(err, engine.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func respondJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
