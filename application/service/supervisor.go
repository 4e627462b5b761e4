package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yukpo/yukpo/internal/log"
)

// Supervisor runs the background jobs: the lifecycle sweep on a cron
// schedule and the score refresh on a fixed interval.
type Supervisor struct {
	lifecycle       *Lifecycle
	scorer          *Scorer
	schedule        string
	refreshInterval time.Duration
	logger          *slog.Logger

	cron   *cron.Cron
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSupervisor creates a Supervisor. A non-positive refreshInterval
// disables the score refresh.
func NewSupervisor(lifecycle *Lifecycle, scorer *Scorer, schedule string, refreshInterval time.Duration, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		lifecycle:       lifecycle,
		scorer:          scorer,
		schedule:        schedule,
		refreshInterval: refreshInterval,
		logger:          log.OrDefault(logger),
	}
}

// Start schedules the jobs and runs a first sweep immediately.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	cl := cronLogger{logger: s.logger}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))

	ctx, cancel := context.WithCancel(ctx)
	if _, err := c.AddFunc(s.schedule, func() { s.sweep(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("schedule lifecycle sweep %q: %w", s.schedule, err)
	}
	if s.scorer != nil && s.refreshInterval > 0 {
		c.Schedule(cron.Every(s.refreshInterval), cron.FuncJob(func() { s.refresh(ctx) }))
	}

	s.cron, s.cancel = c, cancel
	c.Start()
	s.wg.Go(func() {
		s.sweep(ctx)
	})

	s.logger.Info("supervisor started",
		slog.String("sweep_schedule", s.schedule),
		slog.Duration("score_refresh", s.refreshInterval),
	)
	return nil
}

// Stop cancels running jobs and waits for them to finish.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
	s.wg.Wait()
	s.logger.Info("supervisor stopped")
}

func (s *Supervisor) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	ctx, _ = log.EnsureCorrelationID(ctx)
	if _, err := s.lifecycle.Sweep(ctx); err != nil && ctx.Err() == nil {
		s.logger.ErrorContext(ctx, "lifecycle sweep failed", slog.String("error", err.Error()))
	}
}

func (s *Supervisor) refresh(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	ctx, _ = log.EnsureCorrelationID(ctx)
	if _, err := s.scorer.Refresh(ctx); err != nil && ctx.Err() == nil {
		s.logger.ErrorContext(ctx, "score refresh failed", slog.String("error", err.Error()))
	}
}

// cronLogger adapts slog to the cron logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
