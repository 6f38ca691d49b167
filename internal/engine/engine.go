package engine

import (
	"fmt"

	"github.com/amiyaDev/perfguard/internal/history"
	"github.com/amiyaDev/perfguard/internal/model"
	"github.com/amiyaDev/perfguard/internal/rules"
)

// Engine evaluates snapshots against a rule set and the per-component
// history it owns. An Engine is not safe for concurrent use.
type Engine struct {
	rules   []rules.Rule
	history *history.Store
}

// NewEngine creates an engine with no rules and the given history capacity
func NewEngine(historyCapacity int) *Engine {
	return &Engine{
		history: history.New(historyCapacity),
	}
}

// LoadRules replaces the rule set and returns the number of rules loaded.
// History is kept.
func (e *Engine) LoadRules(rs []rules.Rule) int {
	e.rules = make([]rules.Rule, len(rs))
	copy(e.rules, rs)
	return len(e.rules)
}

// Rules returns a copy of the loaded rules
func (e *Engine) Rules() []rules.Rule {
	out := make([]rules.Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Reset clears all history. Rules are kept.
func (e *Engine) Reset() {
	e.history.Reset()
}

// Stats reports retained state
func (e *Engine) Stats() Stats {
	return Stats{
		EntitiesTracked:        e.history.Len(),
		TotalSnapshotsRetained: e.history.Total(),
		RulesLoaded:            len(e.rules),
	}
}

// History returns the component's retained snapshots, oldest first
func (e *Engine) History(component string) []model.Snapshot {
	return e.history.Get(component)
}

// evalContext is the state one snapshot is evaluated against
type evalContext struct {
	snap     model.Snapshot
	past     []model.Snapshot
	prev     model.Snapshot
	hasPrev  bool
	boundary model.BoundaryType
}

// Evaluate runs the rule set against one snapshot and then records it.
//
// Dominant rules are evaluated first. If any fires, only hint rules are
// evaluated in addition (reported as INFO) and ordinary rules are skipped.
// Otherwise every rule is evaluated in declaration order. Rules always see
// the history as it stood before this snapshot.
func (e *Engine) Evaluate(snap model.Snapshot) []Issue {
	ctx := evalContext{
		snap:     snap,
		past:     e.history.Get(snap.Component),
		boundary: snap.BoundaryType.OrDefault(),
	}
	ctx.prev, ctx.hasPrev = e.history.Previous(snap.Component)

	defer e.history.Record(snap.Component, snap)

	var issues []Issue
	for _, rule := range e.rules {
		if !rule.Dominant {
			continue
		}
		if issue, ok := e.evaluateRule(rule, ctx); ok {
			issues = append(issues, issue)
		}
	}

	if len(issues) > 0 {
		for _, rule := range e.rules {
			if !rule.Hint {
				continue
			}
			pred, ok := rule.Condition.(rules.Predicate)
			if !ok {
				continue
			}
			if issue, ok := evaluatePredicate(rule, pred, ctx); ok {
				issue.Severity = rules.SeverityInfo
				issues = append(issues, issue)
			}
		}
		return issues
	}

	for _, rule := range e.rules {
		if issue, ok := e.evaluateRule(rule, ctx); ok {
			issues = append(issues, issue)
		}
	}
	return issues
}

// evaluateRule dispatches on the rule's condition kind
func (e *Engine) evaluateRule(rule rules.Rule, ctx evalContext) (Issue, bool) {
	switch cond := rule.Condition.(type) {
	case rules.Predicate:
		return evaluatePredicate(rule, cond, ctx)
	case rules.Regression:
		return evaluateRegression(rule, cond, ctx)
	case rules.Trend:
		return evaluateTrend(rule, cond, ctx)
	default:
		return Issue{}, false
	}
}

// evaluatePredicate fires when the current snapshot matches and the share of
// matching snapshots, current one included, reaches the rule's threshold.
// confidence = (history matches + current match) / (len(history) + 1)
func evaluatePredicate(rule rules.Rule, pred rules.Predicate, ctx evalContext) (Issue, bool) {
	match := buildPredicate(pred)
	if !match(ctx.snap) {
		return Issue{}, false
	}

	confidence := Confidence(match, ctx.past, ctx.snap)
	if confidence < rule.Threshold() {
		return Issue{}, false
	}

	return Issue{
		RuleID:     rule.ID,
		Confidence: confidence,
		Severity:   Downgrade(rule.BaseSeverity, confidence, ctx.boundary),
		Reason: Interpolate(rule.MessageTemplate, map[string]any{
			"confidence": fmt.Sprintf("%.0f", confidence*100),
		}),
	}, true
}

// evaluateRegression fires when current > previous * multiplier
func evaluateRegression(rule rules.Rule, reg rules.Regression, ctx evalContext) (Issue, bool) {
	if !ctx.hasPrev {
		return Issue{}, false
	}

	curr, ok := ctx.snap.Value(reg.Field)
	if !ok {
		return Issue{}, false
	}
	prev, ok := ctx.prev.Value(reg.Field)
	if !ok {
		return Issue{}, false
	}

	if !(curr > prev*reg.Multiplier) {
		return Issue{}, false
	}

	return Issue{
		RuleID:     rule.ID,
		Confidence: 1,
		Severity:   Downgrade(rule.BaseSeverity, 1, ctx.boundary),
		Reason: Interpolate(rule.MessageTemplate, map[string]any{
			"prevValue": fmt.Sprintf("%.1f", prev),
			"currValue": fmt.Sprintf("%.1f", curr),
		}),
	}, true
}

// evaluateTrend fires when the prior history slopes in the configured
// direction by at least the configured percentage.
func evaluateTrend(rule rules.Rule, trend rules.Trend, ctx evalContext) (Issue, bool) {
	if len(ctx.past) < MinTrendHistory {
		return Issue{}, false
	}

	values, ok := fieldSeries(ctx.past, trend.Field)
	if !ok {
		return Issue{}, false
	}

	result := DetectTrend(values)
	if result.Direction != trend.Direction || result.Change < trend.Threshold {
		return Issue{}, false
	}

	confidence := result.Change / 100
	if confidence > 1 {
		confidence = 1
	}

	return Issue{
		RuleID:     rule.ID,
		Confidence: confidence,
		Severity:   Downgrade(rule.BaseSeverity, confidence, ctx.boundary),
		Reason: Interpolate(rule.MessageTemplate, map[string]any{
			"change": fmt.Sprintf("%.1f", result.Change),
		}),
	}, true
}

// buildPredicate compiles a predicate. Unknown operators and fields never match.
func buildPredicate(p rules.Predicate) func(model.Snapshot) bool {
	var cmp func(a, b float64) bool
	switch p.Operator {
	case rules.OpGreater:
		cmp = func(a, b float64) bool { return a > b }
	case rules.OpLess:
		cmp = func(a, b float64) bool { return a < b }
	case rules.OpGreaterEqual:
		cmp = func(a, b float64) bool { return a >= b }
	case rules.OpLessEqual:
		cmp = func(a, b float64) bool { return a <= b }
	case rules.OpEqual:
		cmp = func(a, b float64) bool { return a == b }
	default:
		return func(model.Snapshot) bool { return false }
	}

	return func(s model.Snapshot) bool {
		v, ok := s.Value(p.Field)
		return ok && cmp(v, p.Value)
	}
}

// Confidence is the share of snapshots matching, with the current snapshot
// counted alongside the history.
func Confidence(match func(model.Snapshot) bool, past []model.Snapshot, current model.Snapshot) float64 {
	matches := 0
	for _, s := range past {
		if match(s) {
			matches++
		}
	}
	if match(current) {
		matches++
	}
	return float64(matches) / float64(len(past)+1)
}

// EvaluateBatch evaluates snapshots in submission order. Only snapshots that
// produced at least one issue appear in the result.
func (e *Engine) EvaluateBatch(batch []model.Snapshot) ([]EntityResult, bool) {
	results := []EntityResult{}
	hasCritical := false

	for _, snap := range batch {
		issues := e.Evaluate(snap)
		if len(issues) == 0 {
			continue
		}

		result := EntityResult{
			Component:    snap.Component,
			BoundaryType: snap.BoundaryType.OrDefault(),
			Metrics: Metrics{
				Renders: snap.Renders,
				AvgTime: snap.AvgTime,
				MaxTime: snap.MaxTime,
			},
			Issues: issues,
		}

		for _, issue := range issues {
			if issue.Severity == rules.SeverityCritical {
				result.HasCritical = true
				hasCritical = true
				break
			}
		}

		results = append(results, result)
	}

	return results, hasCritical
}
