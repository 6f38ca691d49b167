package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveEvaluate(t *testing.T) {
	okBefore := testutil.ToFloat64(BatchesTotal.WithLabelValues(OutcomeOK))
	errBefore := testutil.ToFloat64(BatchesTotal.WithLabelValues(OutcomeError))
	workerErrBefore := testutil.ToFloat64(WorkerErrors)

	ObserveEvaluate(3, 2*time.Millisecond, nil)
	ObserveEvaluate(1, time.Millisecond, errors.New("boom"))

	if got := testutil.ToFloat64(BatchesTotal.WithLabelValues(OutcomeOK)) - okBefore; got != 1 {
		t.Errorf("expected 1 ok batch, got %v", got)
	}
	if got := testutil.ToFloat64(BatchesTotal.WithLabelValues(OutcomeError)) - errBefore; got != 1 {
		t.Errorf("expected 1 failed batch, got %v", got)
	}
	if got := testutil.ToFloat64(WorkerErrors) - workerErrBefore; got != 1 {
		t.Errorf("expected 1 worker error, got %v", got)
	}
}
