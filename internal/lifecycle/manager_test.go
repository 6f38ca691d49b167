package lifecycle

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amiyaDev/perfguard/internal/engine"
	"github.com/amiyaDev/perfguard/internal/model"
	"github.com/amiyaDev/perfguard/internal/rules"
)

type recordingNotifier struct {
	mu       sync.Mutex
	newIDs   []string
	critical []string
	resolved []string
}

func (n *recordingNotifier) NewIssue(row Row) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.newIDs = append(n.newIDs, row.ID)
}

func (n *recordingNotifier) Critical(row Row) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.critical = append(n.critical, row.ID)
}

func (n *recordingNotifier) Resolved(row Row) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resolved = append(n.resolved, row.ID)
}

type recordingSink struct {
	upserts  []Row
	resolves []string
	err      error
}

func (s *recordingSink) Upsert(row Row) error {
	s.upserts = append(s.upserts, row)
	return s.err
}

func (s *recordingSink) Resolve(id string, at time.Time) error {
	s.resolves = append(s.resolves, id)
	return s.err
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(cfg Config, sinks ...Sink) (*Manager, *recordingNotifier, *fakeClock) {
	n := &recordingNotifier{}
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewManager(cfg, n, sinks...)
	m.now = clock.now
	return m, n, clock
}

func result(component string, issues ...engine.Issue) engine.EntityResult {
	return engine.EntityResult{Component: component, BoundaryType: model.BoundaryHOC, Issues: issues}
}

func slow() engine.Issue {
	return engine.Issue{RuleID: "SLOW_RENDER", Severity: rules.SeverityHigh, Confidence: 1, Reason: "slow"}
}

func loop() engine.Issue {
	return engine.Issue{RuleID: "SUSPICIOUS_RENDER_LOOP", Severity: rules.SeverityCritical, Confidence: 1, Reason: "loop"}
}

func TestManager_NewThenActive(t *testing.T) {
	sink := &recordingSink{}
	m, n, clock := newTestManager(DefaultConfig(), sink)
	fp := Fingerprint("List", "SLOW_RENDER", rules.SeverityHigh)

	summary := m.Observe([]engine.EntityResult{result("List", slow())})
	if summary.New != 1 || summary.Active != 0 {
		t.Errorf("unexpected summary %+v", summary)
	}

	row, missing, ok := m.State(fp)
	if !ok || row.Status != StatusNew || missing != 0 {
		t.Fatalf("expected NEW state, got %+v (missing=%d, ok=%v)", row, missing, ok)
	}

	clock.advance(5 * time.Second)
	summary = m.Observe([]engine.EntityResult{result("List", slow())})
	if summary.New != 0 || summary.Active != 1 {
		t.Errorf("unexpected summary %+v", summary)
	}

	row, _, _ = m.State(fp)
	if row.Status != StatusActive {
		t.Errorf("expected ACTIVE, got %s", row.Status)
	}
	if !row.LastSeen.Equal(clock.t) {
		t.Errorf("expected LastSeen to be updated")
	}

	if len(sink.upserts) != 2 || sink.upserts[0].Status != StatusNew || sink.upserts[1].Status != StatusActive {
		t.Errorf("unexpected upserts %+v", sink.upserts)
	}
	if len(n.newIDs) != 1 || n.newIDs[0] != fp {
		t.Errorf("expected exactly one new-issue notification, got %v", n.newIDs)
	}
}

func TestManager_ResolvesOnThirdMiss(t *testing.T) {
	sink := &recordingSink{}
	m, n, _ := newTestManager(DefaultConfig(), sink)
	fp := Fingerprint("List", "SLOW_RENDER", rules.SeverityHigh)
	other := []engine.EntityResult{result("Other", engine.Issue{RuleID: "X", Severity: rules.SeverityLow})}

	m.Observe([]engine.EntityResult{result("List", slow())})

	for miss := 1; miss <= 2; miss++ {
		summary := m.Observe(other)
		if summary.Resolved != 0 {
			t.Fatalf("resolved too early on miss %d", miss)
		}
		_, missing, ok := m.State(fp)
		if !ok || missing != miss {
			t.Fatalf("expected missingCount %d, got %d (ok=%v)", miss, missing, ok)
		}
	}

	summary := m.Observe(nil)
	if summary.Resolved != 1 {
		t.Fatalf("expected resolution on third miss, got %+v", summary)
	}
	if _, _, ok := m.State(fp); ok {
		t.Error("expected fingerprint to stop being tracked")
	}
	if len(sink.resolves) != 1 || sink.resolves[0] != fp {
		t.Errorf("expected resolve to reach sink, got %v", sink.resolves)
	}
	if len(n.resolved) != 1 || n.resolved[0] != fp {
		t.Errorf("expected resolve notification, got %v", n.resolved)
	}
}

func TestManager_ReappearanceResetsMissingCount(t *testing.T) {
	m, _, _ := newTestManager(DefaultConfig())
	fp := Fingerprint("List", "SLOW_RENDER", rules.SeverityHigh)

	m.Observe([]engine.EntityResult{result("List", slow())})
	m.Observe(nil)
	m.Observe(nil)
	m.Observe([]engine.EntityResult{result("List", slow())})

	row, missing, ok := m.State(fp)
	if !ok || missing != 0 || row.Status != StatusActive {
		t.Fatalf("expected ACTIVE with missingCount 0, got %+v missing=%d", row, missing)
	}

	m.Observe(nil)
	m.Observe(nil)
	if _, _, ok := m.State(fp); !ok {
		t.Error("expected issue to still be tracked after two misses")
	}
	m.Observe(nil)
	if _, _, ok := m.State(fp); ok {
		t.Error("expected issue resolved after three consecutive misses")
	}
}

func TestManager_SeverityIsPartOfFingerprint(t *testing.T) {
	m, _, _ := newTestManager(DefaultConfig())

	m.Observe([]engine.EntityResult{result("List", slow())})
	downgraded := slow()
	downgraded.Severity = rules.SeverityMedium
	summary := m.Observe([]engine.EntityResult{result("List", downgraded)})

	if summary.New != 1 {
		t.Errorf("expected severity change to create a new fingerprint, got %+v", summary)
	}
	if m.Tracked() != 2 {
		t.Errorf("expected 2 tracked fingerprints, got %d", m.Tracked())
	}
}

func TestManager_NotificationCooldown(t *testing.T) {
	m, n, clock := newTestManager(Config{MissingThreshold: 1, Cooldown: 30 * time.Second})

	m.Observe([]engine.EntityResult{result("List", slow())})
	clock.advance(time.Second)
	m.Observe(nil) // resolved

	clock.advance(time.Second)
	m.Observe([]engine.EntityResult{result("List", slow())})
	if len(n.newIDs) != 1 {
		t.Errorf("expected re-emergence within cooldown to stay quiet, got %v", n.newIDs)
	}

	clock.advance(time.Second)
	m.Observe(nil)
	clock.advance(31 * time.Second)
	m.Observe([]engine.EntityResult{result("List", slow())})
	if len(n.newIDs) != 2 {
		t.Errorf("expected notification after cooldown elapsed, got %v", n.newIDs)
	}
}

func TestManager_CriticalAlertOncePerLifecycle(t *testing.T) {
	m, n, clock := newTestManager(Config{MissingThreshold: 3, Cooldown: 30 * time.Second})

	for i := 0; i < 5; i++ {
		m.Observe([]engine.EntityResult{result("List", loop())})
		clock.advance(time.Minute)
	}

	if len(n.critical) != 1 {
		t.Errorf("expected exactly one critical alert, got %d", len(n.critical))
	}

	for i := 0; i < 3; i++ {
		m.Observe(nil)
		clock.advance(time.Minute)
	}
	m.Observe([]engine.EntityResult{result("List", loop())})

	if len(n.critical) != 2 {
		t.Errorf("expected a new lifecycle to alert again, got %d", len(n.critical))
	}
}

func TestManager_ResolveUnknownIsNoop(t *testing.T) {
	sink := &recordingSink{}
	m, n, _ := newTestManager(DefaultConfig(), sink)

	m.Resolve("nope")

	if len(sink.resolves) != 0 || len(n.resolved) != 0 {
		t.Error("expected resolving an unknown fingerprint to do nothing")
	}
}

func TestManager_ForcedResolve(t *testing.T) {
	sink := &recordingSink{}
	m, n, _ := newTestManager(DefaultConfig(), sink)
	fp := Fingerprint("List", "SLOW_RENDER", rules.SeverityHigh)

	m.Observe([]engine.EntityResult{result("List", slow())})
	m.Resolve(fp)

	if m.Tracked() != 0 {
		t.Errorf("expected nothing tracked, got %d", m.Tracked())
	}
	if len(sink.resolves) != 1 || len(n.resolved) != 1 {
		t.Errorf("expected resolve to be published once")
	}
}

func TestManager_SinkErrorsDoNotStopLifecycle(t *testing.T) {
	failing := &recordingSink{err: errors.New("disk full")}
	store := NewStore(time.Hour)
	defer store.Close()

	m, _, _ := newTestManager(DefaultConfig(), failing, store)
	m.Observe([]engine.EntityResult{result("List", slow())})

	if len(store.List()) != 1 {
		t.Errorf("expected row in store despite failing sink, got %+v", store.List())
	}
}

func TestManager_DuplicateIssueInBatch(t *testing.T) {
	m, _, _ := newTestManager(DefaultConfig())

	summary := m.Observe([]engine.EntityResult{
		result("List", slow()),
		result("List", slow()),
	})
	if summary.New != 1 || summary.Active != 0 {
		t.Errorf("expected a fingerprint to count once per batch, got %+v", summary)
	}
}
