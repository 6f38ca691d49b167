// Package dispatch drives the evaluation pipeline: it periodically flushes the
// collector, sends the batch to the worker, and hands the results to the
// lifecycle manager and audit storage.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/amiyaDev/perfguard/internal/collector"
	"github.com/amiyaDev/perfguard/internal/engine"
	"github.com/amiyaDev/perfguard/internal/lifecycle"
	"github.com/amiyaDev/perfguard/internal/metrics"
	"github.com/amiyaDev/perfguard/internal/rules"
	"github.com/amiyaDev/perfguard/internal/storage"
	"github.com/amiyaDev/perfguard/internal/worker"
	"github.com/google/uuid"
)

// ErrNotStarted is returned when the dispatcher has no worker yet
var ErrNotStarted = errors.New("dispatcher not started")

// Config tunes the dispatch loop
type Config struct {
	FlushInterval   time.Duration
	EvaluateTimeout time.Duration
	HistoryCapacity int
}

// DefaultConfig returns the default dispatch settings
func DefaultConfig() Config {
	return Config{
		FlushInterval:   5 * time.Second,
		EvaluateTimeout: 2 * time.Second,
		HistoryCapacity: 10,
	}
}

// Batch is the outcome of one evaluated batch
type Batch struct {
	ID          string                `json:"id"`
	Snapshots   int                   `json:"snapshots"`
	Entities    []engine.EntityResult `json:"entities"`
	HasCritical bool                  `json:"hasCritical"`
	Timestamp   time.Time             `json:"timestamp"`
	Summary     lifecycle.Summary     `json:"summary"`
}

// Dispatcher manages the periodic flush loop and the worker it feeds
type Dispatcher struct {
	cfg       Config
	collector *collector.Collector
	lifecycle *lifecycle.Manager
	rules     []rules.Rule
	audit     storage.AuditStorage
	newWorker func(historyCapacity int) *worker.Worker

	worker *worker.Worker
	ready  bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex

	// evalMu keeps one batch in flight at a time
	evalMu  sync.Mutex
	running bool
}

// NewDispatcher creates a dispatcher for the given rule set
func NewDispatcher(cfg Config, c *collector.Collector, lm *lifecycle.Manager, rs []rules.Rule) *Dispatcher {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultConfig().FlushInterval
	}
	if cfg.EvaluateTimeout <= 0 {
		cfg.EvaluateTimeout = DefaultConfig().EvaluateTimeout
	}
	return &Dispatcher{
		cfg:       cfg,
		collector: c,
		lifecycle: lm,
		rules:     rs,
		newWorker: worker.New,
	}
}

// SetAuditStorage sets the audit storage backend (optional)
func (d *Dispatcher) SetAuditStorage(audit storage.AuditStorage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.audit = audit
}

// GetAuditStorage returns the audit storage backend
func (d *Dispatcher) GetAuditStorage() storage.AuditStorage {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.audit
}

// Rules returns a copy of the rule set sent to the worker
func (d *Dispatcher) Rules() []rules.Rule {
	out := make([]rules.Rule, len(d.rules))
	copy(out, d.rules)
	return out
}

// Ready reports whether the worker has acknowledged the rule set
func (d *Dispatcher) Ready() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.ready
}

// Init creates the worker and sends it the rule set. It is called by Start
// and may be called directly to drive the dispatcher without the ticker.
func (d *Dispatcher) Init(ctx context.Context) error {
	d.mu.Lock()
	if d.worker != nil {
		d.mu.Unlock()
		return nil
	}
	w := d.newWorker(d.cfg.HistoryCapacity)
	d.worker = w
	audit := d.audit
	d.mu.Unlock()

	if err := d.initWorker(ctx, w); err != nil {
		return err
	}

	// Persist rule definitions to audit storage if available
	if audit != nil {
		for _, rule := range d.rules {
			if err := audit.StoreRuleDefinition(rule); err != nil {
				log.Printf("Warning: failed to store rule definition %s: %v", rule.ID, err)
			}
		}
	}
	return nil
}

func (d *Dispatcher) initWorker(ctx context.Context, w *worker.Worker) error {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.EvaluateTimeout)
	defer cancel()

	count, err := w.Init(ctx, d.rules)
	if err != nil {
		return fmt.Errorf("failed to initialize worker: %w", err)
	}

	d.mu.Lock()
	d.ready = true
	d.mu.Unlock()

	log.Printf("Loaded %d rules into worker", count)
	return nil
}

// Start initializes the worker and begins the flush loop
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher already running")
	}
	d.mu.Unlock()

	if err := d.Init(context.Background()); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())

	d.mu.Lock()
	d.cancel = cancel
	d.running = true
	d.mu.Unlock()

	d.wg.Add(1)
	go d.flushLoop(ctx)

	log.Printf("Started dispatcher (flush every %s)", d.cfg.FlushInterval)
	return nil
}

// Stop stops the flush loop, waits for an in-flight batch and terminates
// the worker
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	running := d.running
	if running {
		d.cancel()
		d.running = false
	}
	d.mu.Unlock()

	if running {
		log.Println("Stopping dispatcher...")
		d.wg.Wait()
	}

	d.evalMu.Lock()
	d.mu.Lock()
	if d.worker != nil {
		d.worker.Terminate()
		d.worker = nil
	}
	d.ready = false
	d.mu.Unlock()
	d.evalMu.Unlock()

	if running {
		log.Println("Dispatcher stopped")
	}
}

// Run starts the dispatcher and blocks until ctx is done
func (d *Dispatcher) Run(ctx context.Context) error {
	if err := d.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	d.Stop()
	return nil
}

func (d *Dispatcher) flushLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.FlushNow(ctx); err != nil && ctx.Err() == nil {
				log.Printf("Error flushing batch: %v", err)
			}
		}
	}
}

// FlushNow evaluates whatever the collector holds. An empty collector yields
// a nil batch and no worker round trip.
func (d *Dispatcher) FlushNow(ctx context.Context) (*Batch, error) {
	d.evalMu.Lock()
	defer d.evalMu.Unlock()

	d.mu.RLock()
	w := d.worker
	d.mu.RUnlock()
	if w == nil {
		return nil, ErrNotStarted
	}

	snapshots := d.collector.Flush(time.Now())
	if len(snapshots) == 0 {
		return nil, nil
	}

	evalCtx, cancel := context.WithTimeout(ctx, d.cfg.EvaluateTimeout)
	start := time.Now()
	results, err := w.EvaluateBatch(evalCtx, snapshots)
	cancel()
	metrics.ObserveEvaluate(len(snapshots), time.Since(start), err)

	if err != nil {
		log.Printf("worker error: %v (dropping batch of %d snapshots)", err, len(snapshots))
		d.restartWorker(w)
		return nil, fmt.Errorf("evaluate batch: %w", err)
	}

	batch := &Batch{
		ID:          uuid.New().String(),
		Snapshots:   len(snapshots),
		Entities:    results.Entities,
		HasCritical: results.HasCritical,
		Timestamp:   results.Timestamp,
	}

	batch.Summary = d.lifecycle.Observe(results.Entities)
	d.record(batch)

	return batch, nil
}

// record updates metrics and persists the batch if audit storage is set
func (d *Dispatcher) record(batch *Batch) {
	issues := 0
	for _, entity := range batch.Entities {
		for _, issue := range entity.Issues {
			metrics.IssuesTotal.WithLabelValues(issue.RuleID, string(issue.Severity)).Inc()
			issues++
		}
	}
	metrics.TransitionsTotal.WithLabelValues(string(lifecycle.StatusNew)).Add(float64(batch.Summary.New))
	metrics.TransitionsTotal.WithLabelValues(string(lifecycle.StatusActive)).Add(float64(batch.Summary.Active))
	metrics.TransitionsTotal.WithLabelValues(string(lifecycle.StatusResolved)).Add(float64(batch.Summary.Resolved))
	metrics.TrackedIssues.Set(float64(d.lifecycle.Tracked()))

	d.mu.RLock()
	audit := d.audit
	d.mu.RUnlock()

	if audit != nil {
		err := audit.StoreBatch(storage.BatchRecord{
			ID:          batch.ID,
			Entities:    batch.Entities,
			HasCritical: batch.HasCritical,
			Timestamp:   batch.Timestamp,
		})
		if err != nil {
			log.Printf("Warning: failed to store batch %s: %v", batch.ID, err)
		}
	}

	log.Printf("Evaluated batch %s: snapshots=%d, issues=%d, critical=%t, new=%d, resolved=%d",
		batch.ID, batch.Snapshots, issues, batch.HasCritical, batch.Summary.New, batch.Summary.Resolved)
}

// restartWorker replaces a failed worker with a fresh, re-initialized one.
// History held by the failed worker is lost.
func (d *Dispatcher) restartWorker(failed *worker.Worker) {
	failed.Terminate()

	w := d.newWorker(d.cfg.HistoryCapacity)

	d.mu.Lock()
	d.worker = w
	d.ready = false
	d.mu.Unlock()

	metrics.WorkerRestarts.Inc()

	if err := d.initWorker(context.Background(), w); err != nil {
		log.Printf("worker error: %v", err)
	}
}

// Stats reports the worker's retained state
func (d *Dispatcher) Stats(ctx context.Context) (engine.Stats, error) {
	d.mu.RLock()
	w := d.worker
	d.mu.RUnlock()
	if w == nil {
		return engine.Stats{}, ErrNotStarted
	}
	return w.Stats(ctx)
}

// Reset clears the worker's history. Lifecycle state is untouched.
func (d *Dispatcher) Reset(ctx context.Context) error {
	d.evalMu.Lock()
	defer d.evalMu.Unlock()

	d.mu.RLock()
	w := d.worker
	d.mu.RUnlock()
	if w == nil {
		return ErrNotStarted
	}

	_, err := w.Submit(ctx, worker.Reset{})
	return err
}
