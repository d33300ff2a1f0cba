package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Pruner is the minimal interface the scheduler needs from the batch use-case.
type Pruner interface {
	// Prune removes completed batches older than olderThan and returns how many.
	Prune(ctx context.Context, olderThan time.Duration) (int, error)
}

// Scheduler periodically drops finished batches past their retention.
type Scheduler struct {
	interval  time.Duration
	retention time.Duration
	pruner    Pruner
	log       *zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler runs pruner.Prune(retention) every interval.
// If interval <= 0 it defaults to 1 minute.
func NewScheduler(interval, retention time.Duration, pruner Pruner, logger *zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	l := logger.With().Str("component", "Scheduler").Logger()
	return &Scheduler{
		interval:  interval,
		retention: retention,
		pruner:    pruner,
		log:       &l,
		done:      make(chan struct{}),
	}
}

// Start begins the scheduler loop in a background goroutine.
// Calling Start multiple times has no effect.
func (s *Scheduler) Start(parentCtx context.Context) {
	if s.ctx != nil {
		return
	}
	ctx, cancel := context.WithCancel(parentCtx)
	s.ctx = ctx
	s.cancel = cancel

	go s.loop()
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(s.interval)
	defer func() {
		ticker.Stop()
		close(s.done)
	}()

	s.log.Info().Dur("interval", s.interval).Dur("retention", s.retention).Msg("scheduler started")
	for {
		select {
		case <-s.ctx.Done():
			s.log.Info().Msg("scheduler stopping")
			return
		case <-ticker.C:
			s.runOnce()
		}
	}
}

// runOnce prunes with a bounded timeout.
func (s *Scheduler) runOnce() {
	runCtx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()
	n, err := s.pruner.Prune(runCtx, s.retention)
	if err != nil {
		s.log.Error().Err(err).Msg("prune failed")
		return
	}
	if n > 0 {
		s.log.Debug().Int("removed", n).Msg("pruned expired batches")
	}
}

// Stop cancels the scheduler and waits for the loop to finish. It is idempotent.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.ctx = nil
	s.cancel = nil
	s.done = make(chan struct{})
	s.log.Info().Msg("scheduler stopped")
}
