package monitoring

import (
	"math"
	"testing"
	"time"

	"noiseshield/engine"
)

func diagnosisWith(domain engine.Domain, label string, confidence float64) engine.Diagnosis {
	return engine.Diagnosis{
		Domain:     domain,
		Label:      label,
		Confidence: confidence,
		Timestamp:  time.Now().UTC(),
	}
}

func TestHistoryRecentOrder(t *testing.T) {
	history, err := NewHistory(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	history.Record(diagnosisWith(engine.DomainWater, "Safe", 0.9))
	history.Record(diagnosisWith(engine.DomainWater, "Contaminated", 0.8))
	history.Record(diagnosisWith(engine.DomainSoil, "Fertile", 0.7))

	recent := history.Recent(engine.DomainWater, 5)
	if len(recent) != 2 {
		t.Fatalf("expected 2 water entries, got %d", len(recent))
	}
	if recent[0].Label != "Contaminated" || recent[1].Label != "Safe" {
		t.Fatalf("expected newest first, got %+v", recent)
	}
	if len(history.Recent(engine.DomainHealth, 5)) != 0 {
		t.Fatal("expected empty health history")
	}
}

func TestHistoryEvictsOldest(t *testing.T) {
	history, err := NewHistory(3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 5; i++ {
		history.Record(diagnosisWith(engine.DomainSoil, "Fertile", float64(i)/10))
	}
	recent := history.Recent(engine.DomainSoil, 10)
	if len(recent) != 3 {
		t.Fatalf("expected capacity 3, got %d", len(recent))
	}
	if recent[0].Confidence != 0.4 {
		t.Fatalf("expected newest entry first, got %+v", recent[0])
	}
}

func TestHistoryLastStable(t *testing.T) {
	history, err := NewHistory(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := history.LastStable(engine.DomainWater); ok {
		t.Fatal("expected no stable reading yet")
	}

	history.Record(diagnosisWith(engine.DomainWater, "Safe", 0.9))
	history.Record(diagnosisWith(engine.DomainWater, "Contaminated", 0.1)) // unstable

	stable, ok := history.LastStable(engine.DomainWater)
	if !ok {
		t.Fatal("expected a stable reading")
	}
	if stable.Label != "Safe" {
		t.Fatalf("expected the stable reading to survive the unstable one, got %q", stable.Label)
	}
}

func TestHistorySummarize(t *testing.T) {
	history, err := NewHistory(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	history.Record(diagnosisWith(engine.DomainWater, "Safe", 0.8))
	history.Record(diagnosisWith(engine.DomainSoil, "Fertile", 0.6))

	summary := history.Summarize()
	if len(summary.Domains) != 3 {
		t.Fatalf("expected all domains in summary, got %d", len(summary.Domains))
	}
	if math.Abs(summary.OverallConfidence-0.7) > 1e-9 {
		t.Fatalf("expected overall confidence 0.7, got %f", summary.OverallConfidence)
	}
	for _, entry := range summary.Domains {
		if entry.Domain == engine.DomainHealth && entry.Latest != nil {
			t.Fatal("expected no latest entry for health")
		}
	}
}
