package pipeline

import (
	"fmt"
	"math"
	"sync"

	"noiseshield/engine"
)

// CleaningRule 清洗规则
type CleaningRule interface {
	Apply(sample RawSample) error
	Name() string
}

// CleaningStats 清洗统计
type CleaningStats struct {
	TotalProcessed int64            `json:"total_processed"`
	Passed         int64            `json:"passed"`
	Rejected       int64            `json:"rejected"`
	Issues         map[string]int64 `json:"issues"`
}

// Cleaner 在样本进入推理引擎前做逐行校验
type Cleaner struct {
	rules []CleaningRule

	mu    sync.Mutex
	stats CleaningStats
}

// NewCleaner 按域schema构造默认规则链
func NewCleaner(schema engine.Schema) *Cleaner {
	return &Cleaner{
		rules: []CleaningRule{
			finiteRule{},
			boundsRuleFor(schema),
		},
		stats: CleaningStats{Issues: make(map[string]int64)},
	}
}

// Clean 返回通过校验的样本和逐行错误；一行失败不影响其余行
func (c *Cleaner) Clean(samples []RawSample) ([]RawSample, []RowError) {
	var passed []RawSample
	var rowErrors []RowError

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, sample := range samples {
		c.stats.TotalProcessed++
		rejected := false
		for _, rule := range c.rules {
			if err := rule.Apply(sample); err != nil {
				rowErrors = append(rowErrors, RowError{Row: sample.Row, Message: err.Error()})
				c.stats.Issues[rule.Name()]++
				rejected = true
				break
			}
		}
		if rejected {
			c.stats.Rejected++
			continue
		}
		c.stats.Passed++
		passed = append(passed, sample)
	}

	return passed, rowErrors
}

// Stats 获取统计信息
func (c *Cleaner) Stats() CleaningStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := c.stats
	stats.Issues = make(map[string]int64, len(c.stats.Issues))
	for k, v := range c.stats.Issues {
		stats.Issues[k] = v
	}
	return stats
}

// finiteRule 拒绝NaN/Inf
type finiteRule struct{}

func (finiteRule) Name() string { return "finite_values" }

func (finiteRule) Apply(sample RawSample) error {
	for name, value := range sample.Values {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return fmt.Errorf("feature %s is not finite", name)
		}
	}
	return nil
}

// boundsRule 物理量程校验
type boundsRule struct {
	bounds map[string][2]float64
}

func (boundsRule) Name() string { return "physical_bounds" }

func (r boundsRule) Apply(sample RawSample) error {
	for name, limit := range r.bounds {
		value, ok := sample.Values[name]
		if !ok {
			continue
		}
		if value < limit[0] || value > limit[1] {
			return fmt.Errorf("feature %s value %.3f outside [%.1f, %.1f]", name, value, limit[0], limit[1])
		}
	}
	return nil
}

func boundsRuleFor(schema engine.Schema) CleaningRule {
	bounds := make(map[string][2]float64)
	switch schema.Domain {
	case engine.DomainSoil:
		bounds["ph"] = [2]float64{0, 14}
		bounds["nitrogen"] = [2]float64{0, 1000}
		bounds["phosphorus"] = [2]float64{0, 1000}
		bounds["potassium"] = [2]float64{0, 2000}
		bounds["moisture"] = [2]float64{0, 100}
	case engine.DomainHealth:
		bounds["hemoglobin"] = [2]float64{0, 30}
		bounds["wbc"] = [2]float64{0, 100000}
		bounds["platelets"] = [2]float64{0, 2000000}
		bounds["temperature"] = [2]float64{30, 45}
		bounds["pulse"] = [2]float64{20, 250}
	case engine.DomainWater:
		bounds["ph"] = [2]float64{0, 14}
		bounds["turbidity"] = [2]float64{0, 1000}
		bounds["tds"] = [2]float64{0, 10000}
		bounds["ec"] = [2]float64{0, 20000}
		bounds["temperature"] = [2]float64{0, 60}
	}
	return boundsRule{bounds: bounds}
}
