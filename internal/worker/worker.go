// Package worker runs a rule engine in its own goroutine. The engine and its
// history are reachable only through typed commands submitted to the worker.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amiyaDev/perfguard/internal/engine"
	"github.com/amiyaDev/perfguard/internal/model"
	"github.com/amiyaDev/perfguard/internal/rules"
)

// ErrTerminated is returned for commands submitted to a terminated worker
var ErrTerminated = errors.New("worker terminated")

// Command is a request accepted by the worker
type Command interface {
	isCommand()
}

// InitRules replaces the worker's rule set
type InitRules struct {
	Rules []rules.Rule
}

// Evaluate runs one batch of snapshots
type Evaluate struct {
	Batch []model.Snapshot
}

// Reset clears all history
type Reset struct{}

// GetStats reports retained state
type GetStats struct{}

func (InitRules) isCommand() {}
func (Evaluate) isCommand()  {}
func (Reset) isCommand()     {}
func (GetStats) isCommand()  {}

// Response is a reply produced by the worker
type Response interface {
	isResponse()
}

// InitAck acknowledges InitRules
type InitAck struct {
	Count int
}

// Results is the reply to Evaluate
type Results struct {
	Entities    []engine.EntityResult
	HasCritical bool
	Timestamp   time.Time
}

// ResetAck acknowledges Reset
type ResetAck struct{}

// Stats is the reply to GetStats
type Stats struct {
	engine.Stats
}

func (InitAck) isResponse()  {}
func (Results) isResponse()  {}
func (ResetAck) isResponse() {}
func (Stats) isResponse()    {}

type request struct {
	cmd   Command
	reply chan Response
}

// Worker owns one engine and serves commands one at a time
type Worker struct {
	requests chan request
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	now      func() time.Time
}

// New starts a worker whose engine keeps historyCapacity snapshots per component
func New(historyCapacity int) *Worker {
	w := &Worker{
		requests: make(chan request),
		done:     make(chan struct{}),
		now:      time.Now,
	}

	w.wg.Add(1)
	go w.loop(engine.NewEngine(historyCapacity))
	return w
}

// Submit sends a command and waits for its response. The context bounds the
// whole round trip.
func (w *Worker) Submit(ctx context.Context, cmd Command) (Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("submit %T: %w", cmd, err)
	}

	reply := make(chan Response, 1)

	select {
	case <-w.done:
		return nil, ErrTerminated
	case <-ctx.Done():
		return nil, fmt.Errorf("submit %T: %w", cmd, ctx.Err())
	case w.requests <- request{cmd: cmd, reply: reply}:
	}

	select {
	case resp := <-reply:
		return resp, nil
	case <-w.done:
		return nil, ErrTerminated
	case <-ctx.Done():
		return nil, fmt.Errorf("await %T: %w", cmd, ctx.Err())
	}
}

// Terminate stops the worker and waits for its goroutine to exit. A reply
// that was not yet received is discarded.
func (w *Worker) Terminate() {
	w.stopOnce.Do(func() {
		close(w.done)
	})
	w.wg.Wait()
}

func (w *Worker) loop(e *engine.Engine) {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case req := <-w.requests:
			// reply is buffered so an abandoned caller never blocks the loop
			req.reply <- w.handle(e, req.cmd)
		}
	}
}

func (w *Worker) handle(e *engine.Engine, cmd Command) Response {
	switch c := cmd.(type) {
	case InitRules:
		return InitAck{Count: e.LoadRules(c.Rules)}
	case Evaluate:
		entities, hasCritical := e.EvaluateBatch(c.Batch)
		return Results{Entities: entities, HasCritical: hasCritical, Timestamp: w.now()}
	case Reset:
		e.Reset()
		return ResetAck{}
	case GetStats:
		return Stats{Stats: e.Stats()}
	default:
		return nil
	}
}

// Init submits InitRules and returns the number of rules loaded
func (w *Worker) Init(ctx context.Context, rs []rules.Rule) (int, error) {
	resp, err := w.Submit(ctx, InitRules{Rules: rs})
	if err != nil {
		return 0, err
	}
	ack, ok := resp.(InitAck)
	if !ok {
		return 0, fmt.Errorf("unexpected response %T to InitRules", resp)
	}
	return ack.Count, nil
}

// EvaluateBatch submits Evaluate and returns its results
func (w *Worker) EvaluateBatch(ctx context.Context, batch []model.Snapshot) (Results, error) {
	resp, err := w.Submit(ctx, Evaluate{Batch: batch})
	if err != nil {
		return Results{}, err
	}
	results, ok := resp.(Results)
	if !ok {
		return Results{}, fmt.Errorf("unexpected response %T to Evaluate", resp)
	}
	return results, nil
}

// Stats submits GetStats
func (w *Worker) Stats(ctx context.Context) (engine.Stats, error) {
	resp, err := w.Submit(ctx, GetStats{})
	if err != nil {
		return engine.Stats{}, err
	}
	stats, ok := resp.(Stats)
	if !ok {
		return engine.Stats{}, fmt.Errorf("unexpected response %T to GetStats", resp)
	}
	return stats.Stats, nil
}
