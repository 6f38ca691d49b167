package rules

import (
	_ "embed"
	"fmt"
	"strings"
)

//go:embed catalogue/default.yaml
var defaultCatalogue []byte

// Rule group names
const (
	GroupCriticalOnly = "CRITICAL_ONLY"
	GroupPerformance  = "PERFORMANCE"
	GroupUX           = "UX"
	GroupStability    = "STABILITY"
	GroupMemory       = "MEMORY"
	GroupHints        = "HINTS"
)

// Builtin returns the built-in rule catalogue
func Builtin() ([]Rule, error) {
	set, err := Parse(defaultCatalogue)
	if err != nil {
		return nil, fmt.Errorf("failed to parse built-in catalogue: %w", err)
	}
	compiled, errs := Compile("builtin", set.Rules)
	if len(errs) > 0 {
		return nil, fmt.Errorf("built-in catalogue invalid: %v", errs[0])
	}
	return compiled, nil
}

// BuiltinYAML returns the raw built-in catalogue
func BuiltinYAML() []byte {
	out := make([]byte, len(defaultCatalogue))
	copy(out, defaultCatalogue)
	return out
}

// Groups partitions rules into the named groups. A rule may appear in more
// than one group.
func Groups(all []Rule) map[string][]Rule {
	groups := map[string][]Rule{
		GroupCriticalOnly: {},
		GroupPerformance:  {},
		GroupUX:           {},
		GroupStability:    {},
		GroupMemory:       {},
		GroupHints:        {},
	}

	for _, r := range all {
		if r.BaseSeverity == SeverityCritical {
			groups[GroupCriticalOnly] = append(groups[GroupCriticalOnly], r)
		}
		switch r.Category {
		case CategoryPerformance:
			groups[GroupPerformance] = append(groups[GroupPerformance], r)
		case CategoryUX:
			groups[GroupUX] = append(groups[GroupUX], r)
		case CategoryStability:
			groups[GroupStability] = append(groups[GroupStability], r)
		case CategoryMemory:
			groups[GroupMemory] = append(groups[GroupMemory], r)
		}
		if strings.HasPrefix(r.ID, "DEV_HINT") || strings.HasPrefix(r.ID, "PROD_READY") {
			groups[GroupHints] = append(groups[GroupHints], r)
		}
	}

	return groups
}

// WithPredicateValue returns a copy of rules where the predicate value of the
// rule with the given ID is replaced. Other rules are shared unchanged.
func WithPredicateValue(all []Rule, id string, value float64) []Rule {
	out := make([]Rule, len(all))
	copy(out, all)
	for i, r := range out {
		if r.ID != id {
			continue
		}
		if p, ok := r.Condition.(Predicate); ok {
			p.Value = value
			out[i].Condition = p
		}
	}
	return out
}
