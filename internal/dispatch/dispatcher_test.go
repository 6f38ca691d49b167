package dispatch

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/amiyaDev/perfguard/internal/collector"
	"github.com/amiyaDev/perfguard/internal/lifecycle"
	"github.com/amiyaDev/perfguard/internal/model"
	"github.com/amiyaDev/perfguard/internal/rules"
	"github.com/amiyaDev/perfguard/internal/storage"
	"github.com/amiyaDev/perfguard/internal/storage/sqlite"
)

func setupDispatcher(t *testing.T, cfg Config) (*Dispatcher, *collector.Collector, *lifecycle.Store) {
	t.Helper()

	all, err := rules.Builtin()
	if err != nil {
		t.Fatalf("failed to load builtin rules: %v", err)
	}

	store := lifecycle.NewStore(time.Hour)
	t.Cleanup(store.Close)

	c := collector.New()
	lm := lifecycle.NewManager(lifecycle.DefaultConfig(), nil, store)
	return NewDispatcher(cfg, c, lm, all), c, store
}

func TestDispatcher_FlushBeforeInit(t *testing.T) {
	d, _, _ := setupDispatcher(t, DefaultConfig())

	if _, err := d.FlushNow(context.Background()); !errors.Is(err, ErrNotStarted) {
		t.Errorf("expected ErrNotStarted, got %v", err)
	}
	if d.Ready() {
		t.Error("expected dispatcher not to be ready before Init")
	}
}

func TestDispatcher_FlushNow(t *testing.T) {
	d, c, store := setupDispatcher(t, DefaultConfig())

	audit, err := sqlite.NewStore(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("failed to create audit store: %v", err)
	}
	defer audit.Close()
	d.SetAuditStorage(audit)

	ctx := context.Background()
	if err := d.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer d.Stop()

	if !d.Ready() {
		t.Error("expected dispatcher to be ready after Init")
	}

	batch, err := d.FlushNow(ctx)
	if err != nil || batch != nil {
		t.Errorf("expected empty flush to be a no-op, got %+v, %v", batch, err)
	}

	c.Enqueue(model.Snapshot{Component: "Looping", Renders: 150, AvgTime: 3, MaxTime: 5})
	c.Collect(collector.RenderSample{Component: "Quick", Phase: collector.PhaseMount, ActualDuration: 12})

	batch, err = d.FlushNow(ctx)
	if err != nil {
		t.Fatalf("FlushNow failed: %v", err)
	}
	if batch == nil || batch.ID == "" {
		t.Fatal("expected a batch with an id")
	}
	if batch.Snapshots != 2 {
		t.Errorf("expected 2 snapshots, got %d", batch.Snapshots)
	}
	if !batch.HasCritical {
		t.Error("expected critical render loop")
	}
	if len(batch.Entities) != 1 || batch.Entities[0].Component != "Looping" {
		t.Errorf("expected only the looping component, got %+v", batch.Entities)
	}
	if batch.Summary.New != 2 {
		t.Errorf("expected loop and memoization hint to be new, got %+v", batch.Summary)
	}

	if len(store.List()) != 2 {
		t.Errorf("expected 2 visible rows, got %+v", store.List())
	}

	records, err := audit.QueryAudit(storage.AuditFilter{BatchID: batch.ID})
	if err != nil {
		t.Fatalf("QueryAudit failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 audit records, got %d", len(records))
	}

	stats, err := d.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.EntitiesTracked != 2 || stats.RulesLoaded != 20 {
		t.Errorf("unexpected stats %+v", stats)
	}

	if err := d.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	stats, _ = d.Stats(ctx)
	if stats.EntitiesTracked != 0 {
		t.Errorf("expected history cleared, got %+v", stats)
	}
	if len(store.List()) != 2 {
		t.Error("expected reset to leave lifecycle rows alone")
	}
}

func TestDispatcher_RecreatesFailedWorker(t *testing.T) {
	d, c, _ := setupDispatcher(t, DefaultConfig())

	ctx := context.Background()
	if err := d.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer d.Stop()

	d.mu.RLock()
	failed := d.worker
	d.mu.RUnlock()
	failed.Terminate()

	c.Enqueue(model.Snapshot{Component: "Slow", Renders: 2, AvgTime: 30, MaxTime: 40})
	if _, err := d.FlushNow(ctx); err == nil {
		t.Fatal("expected error from terminated worker")
	}

	d.mu.RLock()
	replacement := d.worker
	d.mu.RUnlock()
	if replacement == failed {
		t.Fatal("expected worker to be replaced")
	}
	if !d.Ready() {
		t.Error("expected replacement worker to be re-initialized")
	}

	// The failed batch is dropped, not retried
	if c.Pending() {
		t.Error("expected failed batch to be dropped")
	}

	c.Enqueue(model.Snapshot{Component: "Slow", Renders: 2, AvgTime: 30, MaxTime: 40})
	batch, err := d.FlushNow(ctx)
	if err != nil {
		t.Fatalf("FlushNow after restart failed: %v", err)
	}
	if batch == nil || len(batch.Entities) != 1 {
		t.Errorf("expected results from the replacement worker, got %+v", batch)
	}
}

func TestDispatcher_StartStop(t *testing.T) {
	d, c, store := setupDispatcher(t, Config{FlushInterval: 10 * time.Millisecond, EvaluateTimeout: time.Second, HistoryCapacity: 10})

	if err := d.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := d.Start(); err == nil {
		t.Error("expected error when starting twice")
	}

	c.Enqueue(model.Snapshot{Component: "Slow", Renders: 2, AvgTime: 30, MaxTime: 40})

	deadline := time.Now().Add(2 * time.Second)
	for len(store.List()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if len(store.List()) == 0 {
		t.Error("expected the flush loop to evaluate the batch")
	}

	d.Stop()
	d.Stop()

	if d.Ready() {
		t.Error("expected dispatcher not ready after Stop")
	}
	if _, err := d.FlushNow(context.Background()); !errors.Is(err, ErrNotStarted) {
		t.Errorf("expected ErrNotStarted after Stop, got %v", err)
	}
}
