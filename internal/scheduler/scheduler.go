// Package scheduler runs the subscription expiration scan on a fixed interval.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/coachhub/coachhub-api/internal/core"
	"github.com/coachhub/coachhub-api/pkg/cache"
)

const (
	leaseKey        = core.ScanLeaseKey
	defaultLeaseTTL = 10 * time.Minute
)

// Scanner runs one expiration scan.
type Scanner interface {
	ScanAndNotify(ctx context.Context) (*core.ScanResult, error)
}

// Options configures a Scheduler. Locker may be nil, in which case every replica scans.
type Options struct {
	Interval  time.Duration
	OnStartup bool
	LeaseTTL  time.Duration
	Locker    cache.Locker
}

// Scheduler triggers the scanner every interval until its context is cancelled.
type Scheduler struct {
	scanner Scanner
	opts    Options
	logger  *zap.Logger
}

func New(scanner Scanner, opts Options, logger *zap.Logger) *Scheduler {
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = defaultLeaseTTL
	}
	return &Scheduler{scanner: scanner, opts: opts, logger: logger}
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("expiration scheduler started",
		zap.Duration("interval", s.opts.Interval), zap.Bool("leased", s.opts.Locker != nil))

	if s.opts.OnStartup {
		s.RunOnce(ctx)
	}

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-ctx.Done():
			s.logger.Info("expiration scheduler stopped")
			return
		}
	}
}

// RunOnce performs one guarded scan. It reports whether the scan ran.
func (s *Scheduler) RunOnce(ctx context.Context) bool {
	if s.opts.Locker != nil {
		token, ok, err := s.opts.Locker.Acquire(ctx, leaseKey, s.opts.LeaseTTL)
		if err != nil {
			s.logger.Warn("skipping scan: lease unavailable", zap.Error(err))
			return false
		}
		if !ok {
			s.logger.Debug("skipping scan: another replica holds the lease")
			return false
		}
		defer func() {
			if err := s.opts.Locker.Release(context.WithoutCancel(ctx), leaseKey, token); err != nil {
				s.logger.Warn("failed to release scan lease", zap.Error(err))
			}
		}()
	}

	res, err := s.scanner.ScanAndNotify(ctx)
	if err != nil {
		s.logger.Error("expiration scan failed", zap.Error(err))
		return true
	}
	s.logger.Info("expiration scan finished",
		zap.Int("scanned", res.Scanned),
		zap.Int("reminders", res.RemindersSent),
		zap.Int("expirations", res.ExpirationsSent),
		zap.Int("deactivated", res.DeactivatedAccounts),
		zap.Int("errors", len(res.Errors)),
	)
	return true
}
