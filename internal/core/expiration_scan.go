package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/coachhub/coachhub-api/internal/db"
	"github.com/coachhub/coachhub-api/internal/models"
	"github.com/coachhub/coachhub-api/internal/observability"
)

// Reminder window, in calendar days before expiration.
const (
	reminderWindowStart = 1
	reminderWindowEnd   = 2
)

// ScanError records one subscription the scan could not finish.
type ScanError struct {
	SubscriptionID string `json:"subscriptionId"`
	EmployeeEmail  string `json:"employeeEmail"`
	Stage          string `json:"stage"`
	Error          string `json:"error"`
}

// ScanResult aggregates one expiration scan.
type ScanResult struct {
	Scanned             int         `json:"scanned"`
	RemindersSent       int         `json:"remindersSent"`
	ExpirationsSent     int         `json:"expirationsSent"`
	DeactivatedAccounts int         `json:"deactivatedAccounts"`
	Errors              []ScanError `json:"errors"`
	StartedAt           time.Time   `json:"startedAt"`
	FinishedAt          time.Time   `json:"finishedAt"`
}

// scanTally guards a ScanResult shared by the scan workers.
type scanTally struct {
	mu  sync.Mutex
	res *ScanResult
}

func (t *scanTally) add(fn func(r *ScanResult)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(t.res)
}

func (t *scanTally) fail(sub *models.Subscription, stage string, err error) {
	observability.ScanItemErrors().Inc()
	t.add(func(r *ScanResult) {
		r.Errors = append(r.Errors, ScanError{
			SubscriptionID: sub.ID,
			EmployeeEmail:  sub.EmployeeEmail,
			Stage:          stage,
			Error:          err.Error(),
		})
	})
}

// calendarDays is the number of calendar days from a to b as seen in loc.
// Both dates are re-anchored at UTC midnight so DST shifts do not skew the result.
func calendarDays(a, b time.Time, loc *time.Location) int {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	from := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	to := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from) / day)
}

// ScanAndNotify sends pre-expiry reminders and expires lapsed subscriptions.
// Per-subscription failures are collected in the result and never stop the scan.
func (s *subscriptionService) ScanAndNotify(ctx context.Context) (*ScanResult, error) {
	ctx, span := s.tracer.Start(ctx, "subscription.scan")
	defer span.End()

	now := s.now()
	subs, err := s.subs.ListLive(ctx)
	if err != nil {
		span.RecordError(err)
		observability.ScanRuns().WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to list live subscriptions: %w", err)
	}

	tally := &scanTally{res: &ScanResult{Scanned: len(subs), Errors: []ScanError{}, StartedAt: now}}

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, sub := range subs {
		g.Go(func() error {
			s.scanOne(ctx, sub, now, tally)
			return nil
		})
	}
	_ = g.Wait()

	res := tally.res
	res.FinishedAt = s.now()
	observability.ScanDuration().Observe(res.FinishedAt.Sub(res.StartedAt).Seconds())
	span.SetAttributes(
		attribute.Int("scan.scanned", res.Scanned),
		attribute.Int("scan.reminders", res.RemindersSent),
		attribute.Int("scan.expirations", res.ExpirationsSent),
		attribute.Int("scan.errors", len(res.Errors)),
	)

	outcome := "ok"
	if len(res.Errors) > 0 {
		outcome = "partial"
		s.alertScanErrors(ctx, res)
	}
	observability.ScanRuns().WithLabelValues(outcome).Inc()

	s.logger.Info("expiration scan finished",
		zap.Int("scanned", res.Scanned),
		zap.Int("remindersSent", res.RemindersSent),
		zap.Int("expirationsSent", res.ExpirationsSent),
		zap.Int("deactivatedAccounts", res.DeactivatedAccounts),
		zap.Int("errors", len(res.Errors)),
	)
	return res, nil
}

// TriggerScan runs a scan requested by an admin under the same lease as the scheduler.
func (s *subscriptionService) TriggerScan(ctx context.Context, actor Actor) (*ScanResult, error) {
	if err := Authorize(actor, ActionRunExpirationScan, ""); err != nil {
		return nil, err
	}
	if s.locker != nil {
		token, ok, err := s.locker.Acquire(ctx, ScanLeaseKey, s.leaseTTL)
		if err != nil {
			return nil, fmt.Errorf("%w: scan lease unavailable: %v", ErrDependency, err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: an expiration scan is already running", ErrConflict)
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), ScanLeaseKey, token); err != nil {
				s.logger.Warn("failed to release scan lease", zap.Error(err))
			}
		}()
	}
	res, err := s.ScanAndNotify(ctx)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actor, "EXPIRATION_SCAN", "", map[string]interface{}{
		"scanned":         res.Scanned,
		"remindersSent":   res.RemindersSent,
		"expirationsSent": res.ExpirationsSent,
		"errors":          len(res.Errors),
	})
	return res, nil
}

// scanOne applies the reminder rule, then the expiration rule, to one subscription.
// A failed notification leaves the subscription untouched so the next scan retries it.
func (s *subscriptionService) scanOne(ctx context.Context, sub *models.Subscription, now time.Time, tally *scanTally) {
	ctx, span := s.tracer.Start(ctx, "subscription.scan_item", trace.WithAttributes(
		attribute.String("subscription.id", sub.ID),
	))
	defer span.End()

	days := calendarDays(now, sub.ExpirationDate, s.loc)
	logger := s.logger.With(zap.String("subscriptionId", sub.ID), zap.Int("daysUntilExpiration", days))

	if !sub.ReminderSent && days >= reminderWindowStart && days <= reminderWindowEnd && sub.ExpirationDate.After(now) {
		err := s.notifyScan(ctx, sub, EmailSubscriptionReminder, map[string]interface{}{
			"daysRemaining":  days,
			"expirationDate": sub.ExpirationDate,
			"planLabel":      sub.PlanLabel,
		})
		if err != nil {
			span.RecordError(err)
			logger.Warn("failed to send expiration reminder", zap.Error(err))
			tally.fail(sub, "reminder", err)
			return
		}
		if err := s.subs.MarkReminderSent(ctx, sub.ID, sub.ExpirationDate, now); err != nil {
			if errors.Is(err, db.ErrStale) {
				logger.Info("subscription changed during scan, skipping")
				return
			}
			span.RecordError(err)
			logger.Error("failed to flag reminder as sent", zap.Error(err))
			tally.fail(sub, "reminder", err)
			return
		}
		sub.ReminderSent = true
		sub.UpdatedAt = now
		observability.ScanNotifications().WithLabelValues("reminder").Inc()
		tally.add(func(r *ScanResult) { r.RemindersSent++ })
		s.publish(ctx, EventSubscriptionReminderSent, map[string]interface{}{
			"subscriptionId": sub.ID,
			"employeeId":     sub.EmployeeID,
			"daysRemaining":  days,
		})
	}

	if !sub.ExpirationEmailSent && days <= 0 {
		err := s.notifyScan(ctx, sub, EmailSubscriptionExpired, map[string]interface{}{
			"expirationDate": sub.ExpirationDate,
			"planLabel":      sub.PlanLabel,
		})
		if err != nil {
			span.RecordError(err)
			logger.Warn("failed to send expiration notice", zap.Error(err))
			tally.fail(sub, "expiration", err)
			return
		}
		if err := s.subs.MarkExpired(ctx, sub.ID, sub.ExpirationDate, now); err != nil {
			if errors.Is(err, db.ErrStale) {
				logger.Info("subscription changed during scan, skipping")
				return
			}
			span.RecordError(err)
			logger.Error("failed to expire subscription", zap.Error(err))
			tally.fail(sub, "expiration", err)
			return
		}
		sub.Status = models.SubscriptionExpired
		sub.IsActive = false
		sub.ExpirationEmailSent = true
		sub.UpdatedAt = now
		observability.ScanNotifications().WithLabelValues("expiration").Inc()
		tally.add(func(r *ScanResult) { r.ExpirationsSent++ })

		deactivated, err := s.deactivateAccounts(ctx, sub, now)
		if err != nil {
			span.RecordError(err)
			logger.Error("failed to deactivate employee account", zap.Error(err))
			tally.fail(sub, "deactivate", err)
		}
		tally.add(func(r *ScanResult) { r.DeactivatedAccounts += deactivated })
		s.publish(ctx, EventSubscriptionExpired, map[string]interface{}{
			"subscriptionId": sub.ID,
			"employeeId":     sub.EmployeeID,
			"deactivated":    deactivated,
		})
	}
}

// notifyScan sends a scan email. Unlike other emails its failure is reported to the caller.
func (s *subscriptionService) notifyScan(ctx context.Context, sub *models.Subscription, kind EmailKind, data map[string]interface{}) error {
	if s.notifier == nil {
		return nil
	}
	if sub.EmployeeEmail == "" {
		return fmt.Errorf("%w: subscription has no employee email", ErrValidation)
	}
	data["name"] = sub.EmployeeEmail
	if sub.EmployeeID != "" {
		if p, err := s.profiles.FindByID(ctx, sub.EmployeeID); err == nil && p.Name != "" {
			data["name"] = p.Name
		}
	}
	return s.notifier.SendEmail(ctx, sub.EmployeeEmail, kind, data)
}

// deactivateAccounts flags every employee with the subscription's email as expired.
// When no account matches by email the linked employee id is deactivated instead.
func (s *subscriptionService) deactivateAccounts(ctx context.Context, sub *models.Subscription, now time.Time) (int, error) {
	n := 0
	if email := normalizeEmail(sub.EmployeeEmail); email != "" {
		var err error
		n, err = s.profiles.DeactivateEmployeesByEmail(ctx, email, now)
		if err != nil {
			return 0, fmt.Errorf("deactivate employees by email: %w", err)
		}
	}
	if n == 0 && sub.EmployeeID != "" {
		if err := s.profiles.SetEmployeeActive(ctx, sub.EmployeeID, false, now); err != nil {
			return 0, fmt.Errorf("deactivate employee '%s': %w", sub.EmployeeID, err)
		}
		n = 1
	}
	return n, nil
}

func (s *subscriptionService) alertScanErrors(ctx context.Context, res *ScanResult) {
	if s.alerter == nil {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Expiration scan finished with %d error(s) out of %d subscription(s):", len(res.Errors), res.Scanned)
	for i, e := range res.Errors {
		if i == 10 {
			fmt.Fprintf(&b, "\n… and %d more", len(res.Errors)-i)
			break
		}
		fmt.Fprintf(&b, "\n• %s (%s) at %s: %s", e.SubscriptionID, e.EmployeeEmail, e.Stage, e.Error)
	}
	if err := s.alerter.Alert(ctx, b.String()); err != nil {
		observability.BestEffortFailures().WithLabelValues("alert").Inc()
		s.logger.Warn("failed to send scan alert", zap.Error(err))
	}
}
