// Package scheduler runs the periodic session revalidation.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"ride-console/internal/model"
)

type Revalidator interface {
	Revalidate(ctx context.Context) error
}

type Scheduler struct {
	cron        *cron.Cron
	base        context.Context
	revalidator Revalidator
	interval    time.Duration
	timeout     time.Duration
}

// New returns a scheduler that re-checks the session every interval. A
// non-positive interval disables it. Runs never overlap.
func New(base context.Context, revalidator Revalidator, interval time.Duration, timeout time.Duration) *Scheduler {
	c := cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)))
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Scheduler{
		cron:        c,
		base:        base,
		revalidator: revalidator,
		interval:    interval,
		timeout:     timeout,
	}
}

func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		slog.Info("session revalidation disabled")
		return nil
	}

	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, s.revalidate); err != nil {
		return fmt.Errorf("schedule session revalidation: %w", err)
	}

	s.cron.Start()
	slog.Info("session revalidation scheduled", "interval", s.interval.String())
	return nil
}

// Stop prevents new runs and waits for a running one until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		slog.Warn("session revalidation still running at shutdown")
	}
}

func (s *Scheduler) revalidate() {
	ctx, cancel := context.WithTimeout(s.base, s.timeout)
	defer cancel()

	err := s.revalidator.Revalidate(ctx)
	switch {
	case err == nil:
		slog.Debug("session revalidated")
	case errors.Is(err, model.ErrUnauthorized), errors.Is(err, model.ErrTokenExpired):
		slog.Info("session ended by revalidation", "error", err)
	default:
		slog.Warn("session revalidation failed", "error", err)
	}
}
