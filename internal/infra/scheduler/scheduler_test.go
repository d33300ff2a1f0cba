//go:build !integration

package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"gemini-batch-ocr/internal/infra/logging"
)

type fakePruner struct {
	calls     atomic.Int32
	olderThan atomic.Int64
	err       error
}

func (f *fakePruner) Prune(ctx context.Context, olderThan time.Duration) (int, error) {
	f.calls.Add(1)
	f.olderThan.Store(int64(olderThan))
	return 1, f.err
}

func TestScheduler_RunsPeriodically(t *testing.T) {
	p := &fakePruner{}
	s := NewScheduler(5*time.Millisecond, time.Hour, p, logging.Nop())
	s.Start(context.Background())
	s.Start(context.Background()) // no effect

	deadline := time.Now().Add(2 * time.Second)
	for p.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	s.Stop()
	s.Stop()

	if p.calls.Load() < 2 {
		t.Fatalf("want at least 2 runs, got %d", p.calls.Load())
	}
	if time.Duration(p.olderThan.Load()) != time.Hour {
		t.Errorf("retention not passed through")
	}

	after := p.calls.Load()
	time.Sleep(20 * time.Millisecond)
	if p.calls.Load() != after {
		t.Errorf("scheduler kept running after Stop")
	}
}

func TestScheduler_ErrorsDoNotStopLoop(t *testing.T) {
	p := &fakePruner{err: errors.New("boom")}
	s := NewScheduler(time.Millisecond, time.Minute, p, logging.Nop())
	s.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for p.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	s.Stop()
	if p.calls.Load() < 3 {
		t.Fatalf("loop should keep going after errors, got %d runs", p.calls.Load())
	}
}
