package monitoring

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"noiseshield/engine"
)

// StableConfidence 稳定读数的置信度下限：低于它的结果视为不稳定，
// 面板回退展示最近一次稳定读数
const StableConfidence = 0.5

// DomainSummary 单个域的最新状态
type DomainSummary struct {
	Domain     engine.Domain     `json:"domain"`
	Latest     *engine.Diagnosis `json:"latest,omitempty"`
	LastStable *engine.Diagnosis `json:"last_stable,omitempty"`
	Count      int               `json:"count"`
}

// Summary 跨域汇总
type Summary struct {
	Domains           []DomainSummary `json:"domains"`
	OverallConfidence float64         `json:"overall_confidence"`
}

// History 每个域的最近诊断缓存与最近稳定读数
type History struct {
	mu         sync.RWMutex
	caches     map[engine.Domain]*lru.Cache[int64, engine.Diagnosis]
	lastStable map[engine.Domain]engine.Diagnosis
	seq        int64
	capacity   int
}

// NewHistory 创建历史缓存，capacity为每个域保留的条数
func NewHistory(capacity int) (*History, error) {
	if capacity <= 0 {
		capacity = 100
	}
	caches := make(map[engine.Domain]*lru.Cache[int64, engine.Diagnosis])
	for _, domain := range engine.Domains() {
		cache, err := lru.New[int64, engine.Diagnosis](capacity)
		if err != nil {
			return nil, err
		}
		caches[domain] = cache
	}
	return &History{
		caches:     caches,
		lastStable: make(map[engine.Domain]engine.Diagnosis),
		capacity:   capacity,
	}, nil
}

// Record 记录一条诊断
func (h *History) Record(diagnosis engine.Diagnosis) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cache, ok := h.caches[diagnosis.Domain]
	if !ok {
		return
	}
	h.seq++
	cache.Add(h.seq, diagnosis)
	if diagnosis.Confidence >= StableConfidence {
		h.lastStable[diagnosis.Domain] = diagnosis
	}
}

// Recent 返回某域最近n条诊断，从新到旧
func (h *History) Recent(domain engine.Domain, n int) []engine.Diagnosis {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cache, ok := h.caches[domain]
	if !ok {
		return nil
	}
	keys := cache.Keys() // oldest to newest
	if n <= 0 || n > len(keys) {
		n = len(keys)
	}
	recent := make([]engine.Diagnosis, 0, n)
	for i := len(keys) - 1; i >= len(keys)-n; i-- {
		if diagnosis, ok := cache.Peek(keys[i]); ok {
			recent = append(recent, diagnosis)
		}
	}
	return recent
}

// LastStable 返回某域最近一次稳定读数
func (h *History) LastStable(domain engine.Domain) (engine.Diagnosis, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	diagnosis, ok := h.lastStable[domain]
	return diagnosis, ok
}

// Summarize 跨域汇总：各域最新结果与整体平均置信度
func (h *History) Summarize() Summary {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var summary Summary
	total := 0.0
	counted := 0
	for _, domain := range engine.Domains() {
		cache := h.caches[domain]
		entry := DomainSummary{Domain: domain, Count: cache.Len()}
		keys := cache.Keys()
		if len(keys) > 0 {
			if latest, ok := cache.Peek(keys[len(keys)-1]); ok {
				entry.Latest = &latest
				total += latest.Confidence
				counted++
			}
		}
		if stable, ok := h.lastStable[domain]; ok {
			entry.LastStable = &stable
		}
		summary.Domains = append(summary.Domains, entry)
	}
	if counted > 0 {
		summary.OverallConfidence = total / float64(counted)
	}
	return summary
}
