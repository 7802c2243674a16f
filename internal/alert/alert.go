// Package alert evaluates user-defined rules against live pair analytics on a
// cadence, gated by a per-rule cooldown.
package alert

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pairwatch/internal/analytics"
	"pairwatch/internal/metrics"
)

// Condition enumerates the closed set of rule condition kinds.
type Condition string

const (
	ZScoreAbove    Condition = "zscore_above"
	ZScoreBelow    Condition = "zscore_below"
	ZScoreAbsAbove Condition = "zscore_abs_above"
	SpreadAbove    Condition = "spread_above"
	SpreadBelow    Condition = "spread_below"
)

// ParseCondition validates a condition name.
func ParseCondition(name string) (Condition, error) {
	switch c := Condition(name); c {
	case ZScoreAbove, ZScoreBelow, ZScoreAbsAbove, SpreadAbove, SpreadBelow:
		return c, nil
	default:
		return "", fmt.Errorf("unknown condition %q", name)
	}
}

func (c Condition) needsZScore() bool {
	switch c {
	case ZScoreAbove, ZScoreBelow, ZScoreAbsAbove:
		return true
	case SpreadAbove, SpreadBelow:
		return false
	default:
		return false
	}
}

// Rule is one user-defined alert. LastTriggered and TriggeredCount are owned
// and mutated exclusively by the engine during evaluation.
type Rule struct {
	ID             string    `json:"id"`
	Condition      Condition `json:"condition"`
	Threshold      float64   `json:"threshold"`
	Symbol1        string    `json:"symbol1"`
	Symbol2        string    `json:"symbol2"`
	Interval       string    `json:"interval"`
	LastTriggered  float64   `json:"last_triggered"`
	TriggeredCount int       `json:"triggered_count"`
}

// HistoryRecord is an immutable record of one trigger.
type HistoryRecord struct {
	Timestamp float64   `json:"timestamp"`
	RuleID    string    `json:"rule_id"`
	Condition Condition `json:"condition"`
	Threshold float64   `json:"threshold"`
	Symbol1   string    `json:"symbol1"`
	Symbol2   string    `json:"symbol2"`
}

// Engine owns the rule set and its evaluation loop. Alert evaluation always
// uses the static OLS hedge ratio, regardless of what estimator a caller may
// view elsewhere.
type Engine struct {
	analytics *analytics.Engine
	cooldown  time.Duration
	log       zerolog.Logger

	mu      sync.Mutex
	rules   []*Rule
	history []HistoryRecord

	now func() time.Time
}

// NewEngine builds an alert engine with the given cooldown.
func NewEngine(an *analytics.Engine, cooldown time.Duration, log zerolog.Logger) *Engine {
	return &Engine{
		analytics: an,
		cooldown:  cooldown,
		log:       log,
		now:       time.Now,
	}
}

// Add registers a new rule and returns its generated ID.
func (e *Engine) Add(condition Condition, threshold float64, symbol1, symbol2, interval string) (string, error) {
	if _, err := ParseCondition(string(condition)); err != nil {
		return "", err
	}
	rule := &Rule{
		ID:        uuid.NewString(),
		Condition: condition,
		Threshold: threshold,
		Symbol1:   symbol1,
		Symbol2:   symbol2,
		Interval:  interval,
	}
	e.mu.Lock()
	e.rules = append(e.rules, rule)
	e.mu.Unlock()
	e.log.Info().Str("id", rule.ID).Str("condition", string(condition)).Float64("threshold", threshold).Msg("alert added")
	return rule.ID, nil
}

// Remove deletes a rule by ID. Removing an unknown ID is a no-op.
func (e *Engine) Remove(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	kept := e.rules[:0]
	for _, r := range e.rules {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	e.rules = kept
}

// List returns a snapshot of all rules including their trigger counters.
func (e *Engine) List() []Rule {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Rule, len(e.rules))
	for i, r := range e.rules {
		out[i] = *r
	}
	return out
}

// RecentHistory returns the most recent limit records, oldest first.
func (e *Engine) RecentHistory(limit int) []HistoryRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	if limit <= 0 || limit > len(e.history) {
		limit = len(e.history)
	}
	out := make([]HistoryRecord, limit)
	copy(out, e.history[len(e.history)-limit:])
	return out
}

// Run evaluates the rule set on the given cadence until the context is canceled.
func (e *Engine) Run(ctx context.Context, checkInterval time.Duration) {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.log.Info().Msg("alert engine stopped")
			return
		case <-ticker.C:
			e.Evaluate()
		}
	}
}

// Evaluate runs one evaluation cycle over all rules. A failure on one rule is
// treated as "not triggered" and never halts evaluation of subsequent rules.
func (e *Engine) Evaluate() {
	now := float64(e.now().UnixNano()) / 1e9

	e.mu.Lock()
	rules := make([]*Rule, len(e.rules))
	copy(rules, e.rules)
	e.mu.Unlock()

	for _, rule := range rules {
		if now-rule.LastTriggered < e.cooldown.Seconds() {
			continue
		}
		if !e.evaluateRule(rule) {
			continue
		}

		e.mu.Lock()
		rule.LastTriggered = now
		rule.TriggeredCount++
		e.history = append(e.history, HistoryRecord{
			Timestamp: now,
			RuleID:    rule.ID,
			Condition: rule.Condition,
			Threshold: rule.Threshold,
			Symbol1:   rule.Symbol1,
			Symbol2:   rule.Symbol2,
		})
		e.mu.Unlock()

		metrics.AlertsTriggeredTotal.WithLabelValues(string(rule.Condition)).Inc()
		e.log.Warn().
			Str("condition", string(rule.Condition)).
			Str("pair", rule.Symbol1+"/"+rule.Symbol2).
			Float64("threshold", rule.Threshold).
			Msg("alert triggered")
	}
}

func (e *Engine) evaluateRule(rule *Rule) bool {
	beta, ok := e.analytics.HedgeRatioOLS(rule.Symbol1, rule.Symbol2, rule.Interval)
	if !ok {
		return false
	}
	spread, ok := e.analytics.Spread(rule.Symbol1, rule.Symbol2, rule.Interval, beta)
	if !ok || spread.Len() == 0 {
		return false
	}

	var current float64
	if rule.Condition.needsZScore() {
		zscore := analytics.RollingZScore(spread.Values, e.analytics.ZScoreWindow())
		current = zscore[len(zscore)-1]
	} else {
		current = spread.Values[spread.Len()-1]
	}
	if math.IsNaN(current) {
		return false
	}

	switch rule.Condition {
	case ZScoreAbove:
		return current > rule.Threshold
	case ZScoreBelow:
		return current < rule.Threshold
	case ZScoreAbsAbove:
		return math.Abs(current) > rule.Threshold
	case SpreadAbove:
		return current > rule.Threshold
	case SpreadBelow:
		return current < rule.Threshold
	default:
		e.log.Error().Str("condition", string(rule.Condition)).Msg("unhandled alert condition")
		return false
	}
}
