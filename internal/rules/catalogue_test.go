package rules

import "testing"

func TestBuiltin(t *testing.T) {
	all, err := Builtin()
	if err != nil {
		t.Fatalf("failed to load builtin catalogue: %v", err)
	}

	if len(all) != 20 {
		t.Errorf("expected 20 rules, got %d", len(all))
	}

	dominant := map[string]bool{}
	for _, r := range all {
		if r.Condition == nil {
			t.Errorf("rule %s has no condition", r.ID)
		}
		if r.Dominant {
			dominant[r.ID] = true
		}
	}

	for _, id := range []string{"BLOCKING_RENDER", "SEVERE_PERF_REGRESSION", "SUSPICIOUS_RENDER_LOOP", "RENDER_TIME_CREEP"} {
		if !dominant[id] {
			t.Errorf("expected %s to be dominant", id)
		}
	}
	if len(dominant) != 4 {
		t.Errorf("expected 4 dominant rules, got %d", len(dominant))
	}
}

func TestGroups(t *testing.T) {
	all, err := Builtin()
	if err != nil {
		t.Fatalf("failed to load builtin catalogue: %v", err)
	}

	ids := make(map[string]bool, len(all))
	for _, r := range all {
		ids[r.ID] = true
	}

	groups := Groups(all)
	grouped := map[string]bool{}

	for name, members := range groups {
		for _, r := range members {
			if !ids[r.ID] {
				t.Errorf("group %s contains unknown rule %s", name, r.ID)
			}
			grouped[r.ID] = true
		}
	}

	for _, r := range groups[GroupCriticalOnly] {
		if r.BaseSeverity != SeverityCritical {
			t.Errorf("CRITICAL_ONLY contains %s with severity %s", r.ID, r.BaseSeverity)
		}
	}

	categoryGroups := map[string]Category{
		GroupPerformance: CategoryPerformance,
		GroupUX:          CategoryUX,
		GroupStability:   CategoryStability,
		GroupMemory:      CategoryMemory,
	}
	for group, category := range categoryGroups {
		for _, r := range groups[group] {
			if r.Category != category {
				t.Errorf("group %s contains %s of category %s", group, r.ID, r.Category)
			}
		}
	}

	for _, r := range all {
		if !grouped[r.ID] {
			t.Errorf("rule %s is not in any group", r.ID)
		}
	}
}

func TestWithPredicateValue(t *testing.T) {
	all, err := Builtin()
	if err != nil {
		t.Fatalf("failed to load builtin catalogue: %v", err)
	}

	overridden := WithPredicateValue(all, "SLOW_RENDER", 24)

	for i, r := range overridden {
		if r.ID != "SLOW_RENDER" {
			continue
		}
		p := r.Condition.(Predicate)
		if p.Value != 24 {
			t.Errorf("expected overridden value 24, got %v", p.Value)
		}
		if all[i].Condition.(Predicate).Value != 16 {
			t.Error("expected original rules to be unchanged")
		}
	}
}
