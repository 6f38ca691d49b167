// Package lifecycle tracks issues across evaluation batches. It decides when
// an issue is new, still active or resolved, rate-limits notifications, and
// publishes the resulting rows to sinks.
package lifecycle

import (
	"log"
	"sync"
	"time"

	"github.com/amiyaDev/perfguard/internal/engine"
	"github.com/amiyaDev/perfguard/internal/rules"
)

// issueState is the tracking record for one fingerprint
type issueState struct {
	row          Row
	missingCount int
	alerted      bool
}

// Manager is safe for concurrent use, though batches are expected to be
// observed one at a time.
type Manager struct {
	mu       sync.Mutex
	cfg      Config
	states   map[string]*issueState
	order    []string
	cooldown *cooldown
	sinks    []Sink
	notifier Notifier
	now      func() time.Time
}

// NewManager creates a manager publishing to the given sinks. A nil notifier
// logs events.
func NewManager(cfg Config, notifier Notifier, sinks ...Sink) *Manager {
	if cfg.MissingThreshold <= 0 {
		cfg.MissingThreshold = DefaultConfig().MissingThreshold
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Manager{
		cfg:      cfg,
		states:   make(map[string]*issueState),
		cooldown: newCooldown(cfg.Cooldown),
		sinks:    sinks,
		notifier: notifier,
		now:      time.Now,
	}
}

// Observe applies one batch of entity results. Every tracked fingerprint that
// does not appear anywhere in the batch counts one absence.
func (m *Manager) Observe(results []engine.EntityResult) Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var summary Summary
	seen := make(map[string]bool)

	for _, result := range results {
		for _, issue := range result.Issues {
			fp := Fingerprint(result.Component, issue.RuleID, issue.Severity)
			if seen[fp] {
				continue
			}
			seen[fp] = true

			row := Row{
				ID:           fp,
				Component:    result.Component,
				RuleID:       issue.RuleID,
				Severity:     issue.Severity,
				Confidence:   issue.Confidence,
				BoundaryType: result.BoundaryType,
				LastSeen:     now,
				Reason:       issue.Reason,
			}

			state, tracked := m.states[fp]
			if !tracked {
				row.Status = StatusNew
				state = &issueState{row: row}
				m.states[fp] = state
				m.order = append(m.order, fp)
				summary.New++

				m.upsert(row)
				if m.cooldown.Allow("log:"+fp, now) {
					m.notifier.NewIssue(row)
				}
			} else {
				row.Status = StatusActive
				state.row = row
				state.missingCount = 0
				summary.Active++

				m.upsert(row)
			}

			if issue.Severity == rules.SeverityCritical && !state.alerted {
				if m.cooldown.Allow("critical:"+fp, now) {
					state.alerted = true
					m.notifier.Critical(row)
				}
			}
		}
	}

	kept := m.order[:0]
	for _, fp := range m.order {
		if seen[fp] {
			kept = append(kept, fp)
			continue
		}

		state := m.states[fp]
		state.missingCount++
		if state.missingCount < m.cfg.MissingThreshold {
			kept = append(kept, fp)
			continue
		}

		state.row.Status = StatusResolved
		delete(m.states, fp)
		summary.Resolved++

		m.resolve(fp, now)
		m.notifier.Resolved(state.row)
	}
	m.order = kept

	m.cooldown.Prune(now)
	return summary
}

// Tracked returns the number of fingerprints under tracking
func (m *Manager) Tracked() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.states)
}

// State returns the tracked row and absence count for a fingerprint
func (m *Manager) State(fp string) (Row, int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[fp]
	if !ok {
		return Row{}, 0, false
	}
	return state.row, state.missingCount, true
}

// Resolve force-resolves a fingerprint. Unknown fingerprints are ignored.
func (m *Manager) Resolve(fp string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[fp]
	if !ok {
		return
	}

	delete(m.states, fp)
	for i, id := range m.order {
		if id == fp {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}

	state.row.Status = StatusResolved
	m.resolve(fp, m.now())
	m.notifier.Resolved(state.row)
}

func (m *Manager) upsert(row Row) {
	for _, s := range m.sinks {
		if err := s.Upsert(row); err != nil {
			log.Printf("Warning: failed to upsert issue %s: %v", row.ID, err)
		}
	}
}

func (m *Manager) resolve(id string, at time.Time) {
	for _, s := range m.sinks {
		if err := s.Resolve(id, at); err != nil {
			log.Printf("Warning: failed to resolve issue %s: %v", id, err)
		}
	}
}
