package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/coachhub/coachhub-api/internal/db"
	"github.com/coachhub/coachhub-api/internal/models"
	"github.com/coachhub/coachhub-api/internal/observability"
	"github.com/coachhub/coachhub-api/pkg/cache"
)

const day = 24 * time.Hour

// ScanLeaseKey names the lease every expiration scan runs under, scheduled or manual.
const ScanLeaseKey = "expiration-scan"

const defaultScanLeaseTTL = 10 * time.Minute

// RenewRequest identifies the subscription to renew and the plan to renew it with.
type RenewRequest struct {
	EmployeeID    string
	EmployeeEmail string
	Plan          string
}

// RenewResult is the updated subscription and the receipt written for it.
type RenewResult struct {
	Subscription *models.Subscription
	Payment      *models.Payment
}

// SubscriptionView is a subscription snapshot with its remaining whole days.
type SubscriptionView struct {
	Subscription  *models.Subscription
	DaysRemaining int
}

// SubscriptionDeps are the collaborators of the subscription service.
type SubscriptionDeps struct {
	Subscriptions db.SubscriptionRepository
	Payments      db.PaymentRepository
	Profiles      db.ProfileRepository
	Plans         PlanCatalog
	Notifier      Notifier
	Events        EventPublisher
	Alerter       Alerter
	Audit         AuditService
	Clock         Clock
	Location      *time.Location
	// ScanConcurrency bounds how many subscriptions a scan processes at once.
	ScanConcurrency int
	// ScanLocker guards manual scans with the scheduler's lease. Nil disables the guard.
	ScanLocker   cache.Locker
	ScanLeaseTTL time.Duration
	Logger       *zap.Logger
}

type subscriptionService struct {
	subs        db.SubscriptionRepository
	payments    db.PaymentRepository
	profiles    db.ProfileRepository
	plans       PlanCatalog
	notifier    Notifier
	events      EventPublisher
	alerter     Alerter
	audit       AuditService
	now         Clock
	loc         *time.Location
	concurrency int
	locker      cache.Locker
	leaseTTL    time.Duration
	logger      *zap.Logger
	tracer      trace.Tracer
}

// NewSubscriptionService creates a SubscriptionService instance.
func NewSubscriptionService(deps SubscriptionDeps) SubscriptionService {
	s := &subscriptionService{
		subs:        deps.Subscriptions,
		payments:    deps.Payments,
		profiles:    deps.Profiles,
		plans:       deps.Plans,
		notifier:    deps.Notifier,
		events:      deps.Events,
		alerter:     deps.Alerter,
		audit:       deps.Audit,
		now:         deps.Clock,
		loc:         deps.Location,
		concurrency: deps.ScanConcurrency,
		locker:      deps.ScanLocker,
		leaseTTL:    deps.ScanLeaseTTL,
		logger:      deps.Logger,
		tracer:      otel.Tracer("github.com/coachhub/coachhub-api/internal/core/subscription"),
	}
	if s.plans == nil {
		s.plans = DefaultPlans()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.concurrency <= 0 {
		s.concurrency = 1
	}
	if s.leaseTTL <= 0 {
		s.leaseTTL = defaultScanLeaseTTL
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Renew extends the employee's subscription by the plan's days. A live subscription is
// extended from its current expiration (or now, if that already passed); a lapsed one
// starts a fresh window from now.
func (s *subscriptionService) Renew(ctx context.Context, actor Actor, req RenewRequest) (*RenewResult, error) {
	plan, err := s.plans.Lookup(req.Plan)
	if err != nil {
		return nil, err
	}
	employeeID := strings.TrimSpace(req.EmployeeID)
	email := normalizeEmail(req.EmployeeEmail)
	if employeeID == "" && email == "" {
		return nil, fmt.Errorf("%w: employee id is required", ErrValidation)
	}

	owner := employeeID
	if owner == "" && email == normalizeEmail(actor.Email) {
		owner = actor.ID
	}
	if err := Authorize(actor, ActionRenewSubscription, owner); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "subscription.renew", trace.WithAttributes(
		attribute.String("subscription.employee_id", employeeID),
		attribute.String("subscription.plan", plan.Key),
	))
	defer span.End()

	// A missing profile is not fatal here: the subscription may still be found by id.
	employee, err := s.lookupEmployee(ctx, employeeID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		return nil, err
	}
	if email == "" && employee != nil {
		email = normalizeEmail(employee.Email)
	}

	sub, err := s.findSubscription(ctx, employeeID, email)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if sub.EmployeeID != "" {
		if err := Authorize(actor, ActionRenewSubscription, sub.EmployeeID); err != nil {
			return nil, err
		}
		if employee == nil {
			employee, err = s.lookupEmployee(ctx, sub.EmployeeID)
			if err != nil && !errors.Is(err, ErrNotFound) {
				span.RecordError(err)
				return nil, err
			}
		}
	}

	now := s.now()
	from := "expired"
	base := now
	if sub.Live() {
		from = "active"
		if sub.ExpirationDate.After(now) {
			base = sub.ExpirationDate
		}
	} else {
		sub.StartDate = now
	}

	sub.Plan = plan.Key
	sub.PlanLabel = plan.Label
	sub.Amount = plan.Amount
	sub.PaymentDate = now
	sub.ExpirationDate = base.Add(time.Duration(plan.Days) * day)
	sub.Status = models.SubscriptionActive
	sub.IsActive = true
	sub.ReminderSent = false
	sub.ExpirationEmailSent = false
	sub.UpdatedAt = now
	if sub.EmployeeID == "" {
		sub.EmployeeID = employeeID
	}

	if err := s.subs.Update(ctx, sub); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to update subscription '%s': %w", sub.ID, err)
	}

	payment := s.newPayment(sub, employee, plan, true, now)
	paymentID, err := s.payments.Create(ctx, payment)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to record renewal payment for subscription '%s': %w", sub.ID, err)
	}
	payment.ID = paymentID

	if err := s.reactivate(ctx, employee); err != nil {
		span.RecordError(err)
		return nil, err
	}

	observability.Renewals().WithLabelValues(plan.Key, from).Inc()
	s.logger.Info("subscription renewed",
		zap.String("subscriptionId", sub.ID),
		zap.String("employeeId", sub.EmployeeID),
		zap.String("plan", plan.Key),
		zap.String("from", from),
		zap.Time("expirationDate", sub.ExpirationDate),
	)

	s.sendEmail(ctx, sub.EmployeeEmail, EmailSubscriptionRenewed, map[string]interface{}{
		"name":           displayName(employee, sub.EmployeeEmail),
		"planLabel":      plan.Label,
		"amount":         plan.Amount,
		"expirationDate": sub.ExpirationDate,
	})
	s.publish(ctx, EventSubscriptionRenewed, map[string]interface{}{
		"subscriptionId": sub.ID,
		"employeeId":     sub.EmployeeID,
		"plan":           plan.Key,
		"expirationDate": sub.ExpirationDate,
		"paymentId":      payment.ID,
	})
	s.recordAudit(ctx, actor, "SUBSCRIPTION_RENEW", sub.ID, map[string]interface{}{
		"employeeId":     sub.EmployeeID,
		"plan":           plan.Key,
		"previousState":  from,
		"expirationDate": sub.ExpirationDate,
	})

	return &RenewResult{Subscription: sub, Payment: payment}, nil
}

// Create opens the first subscription of an employee once their payment is approved.
// An expired document is reused in place so lookups keep finding a single record.
func (s *subscriptionService) Create(ctx context.Context, actor Actor, employeeID, planKey, paymentID string) (*RenewResult, error) {
	if err := Authorize(actor, ActionCreateSubscription, employeeID); err != nil {
		return nil, err
	}
	plan, err := s.plans.Lookup(planKey)
	if err != nil {
		return nil, err
	}
	employeeID = strings.TrimSpace(employeeID)
	if employeeID == "" {
		return nil, fmt.Errorf("%w: employee id is required", ErrValidation)
	}

	ctx, span := s.tracer.Start(ctx, "subscription.create", trace.WithAttributes(
		attribute.String("subscription.employee_id", employeeID),
		attribute.String("subscription.plan", plan.Key),
	))
	defer span.End()

	employee, err := s.lookupEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if employee.Role != models.RoleEmployee {
		return nil, fmt.Errorf("%w: '%s' is not an employee", ErrValidation, employeeID)
	}
	email := normalizeEmail(employee.Email)

	existing, err := s.findSubscription(ctx, employeeID, email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if existing != nil && existing.Live() {
		return nil, fmt.Errorf("%w: employee '%s' already has an active subscription", ErrConflict, employeeID)
	}

	now := s.now()
	sub := existing
	if sub == nil {
		sub = &models.Subscription{CreatedAt: now}
	}
	sub.EmployeeID = employeeID
	sub.EmployeeEmail = email
	sub.Plan = plan.Key
	sub.PlanLabel = plan.Label
	sub.Amount = plan.Amount
	sub.PaymentDate = now
	sub.StartDate = now
	sub.ExpirationDate = now.Add(time.Duration(plan.Days) * day)
	sub.Status = models.SubscriptionActive
	sub.IsActive = true
	sub.ReminderSent = false
	sub.ExpirationEmailSent = false
	sub.PaymentID = paymentID
	sub.UpdatedAt = now

	if sub.ID == "" {
		id, err := s.subs.Create(ctx, sub)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to create subscription for '%s': %w", employeeID, err)
		}
		sub.ID = id
	} else if err := s.subs.Update(ctx, sub); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to update subscription '%s': %w", sub.ID, err)
	}

	payment := s.newPayment(sub, employee, plan, false, now)
	id, err := s.payments.Create(ctx, payment)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to record payment for subscription '%s': %w", sub.ID, err)
	}
	payment.ID = id

	if err := s.reactivate(ctx, employee); err != nil {
		return nil, err
	}

	s.publish(ctx, EventSubscriptionCreated, map[string]interface{}{
		"subscriptionId": sub.ID,
		"employeeId":     employeeID,
		"plan":           plan.Key,
		"expirationDate": sub.ExpirationDate,
	})
	s.recordAudit(ctx, actor, "SUBSCRIPTION_CREATE", sub.ID, map[string]interface{}{
		"employeeId": employeeID,
		"plan":       plan.Key,
		"paymentId":  paymentID,
	})

	return &RenewResult{Subscription: sub, Payment: payment}, nil
}

// Get returns the employee's current subscription.
func (s *subscriptionService) Get(ctx context.Context, actor Actor, employeeID string) (*SubscriptionView, error) {
	if employeeID == "" {
		return nil, fmt.Errorf("%w: employee id is required", ErrValidation)
	}
	if err := Authorize(actor, ActionViewSubscription, employeeID); err != nil {
		return nil, err
	}

	email := ""
	if employee, err := s.lookupEmployee(ctx, employeeID); err == nil {
		email = normalizeEmail(employee.Email)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	sub, err := s.findSubscription(ctx, employeeID, email)
	if err != nil {
		return nil, err
	}

	days := 0
	if sub.Live() {
		if d := calendarDays(s.now(), sub.ExpirationDate, s.loc); d > 0 {
			days = d
		}
	}
	return &SubscriptionView{Subscription: sub, DaysRemaining: days}, nil
}

// ListPayments returns the employee's receipts, newest first.
func (s *subscriptionService) ListPayments(ctx context.Context, actor Actor, employeeID string) ([]*models.Payment, error) {
	if employeeID == "" {
		return nil, fmt.Errorf("%w: employee id is required", ErrValidation)
	}
	if err := Authorize(actor, ActionViewSubscription, employeeID); err != nil {
		return nil, err
	}
	payments, err := s.payments.ListByEmployee(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments for '%s': %w", employeeID, err)
	}
	return payments, nil
}

func (s *subscriptionService) Plans() []models.Plan {
	return s.plans.List()
}

// lookupEmployee returns nil, nil when id is empty.
func (s *subscriptionService) lookupEmployee(ctx context.Context, id string) (*models.Profile, error) {
	if id == "" {
		return nil, nil
	}
	profile, err := s.profiles.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: employee '%s'", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get employee '%s': %w", id, err)
	}
	return profile, nil
}

// findSubscription looks the subscription up by employee id, then by email.
func (s *subscriptionService) findSubscription(ctx context.Context, employeeID, email string) (*models.Subscription, error) {
	if employeeID != "" {
		sub, err := s.subs.FindByEmployeeID(ctx, employeeID)
		if err == nil {
			return sub, nil
		}
		if !errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("failed to find subscription for employee '%s': %w", employeeID, err)
		}
	}
	if email != "" {
		sub, err := s.subs.FindByEmployeeEmail(ctx, email)
		if err == nil {
			return sub, nil
		}
		if !errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("failed to find subscription for '%s': %w", email, err)
		}
	}
	return nil, fmt.Errorf("%w: no subscription for employee '%s'", ErrNotFound, firstNonEmpty(employeeID, email))
}

func (s *subscriptionService) newPayment(sub *models.Subscription, employee *models.Profile, plan models.Plan, renewed bool, now time.Time) *models.Payment {
	p := &models.Payment{
		EmployeeID:     sub.EmployeeID,
		EmployeeEmail:  sub.EmployeeEmail,
		SubscriptionID: sub.ID,
		Plan:           plan.Key,
		PlanLabel:      plan.Label,
		Amount:         plan.Amount,
		Renewed:        renewed,
		Status:         "completed",
		ExpirationDate: sub.ExpirationDate,
		CreatedAt:      now,
	}
	if employee != nil {
		p.EmployeeName = employee.Name
	}
	return p
}

func (s *subscriptionService) reactivate(ctx context.Context, employee *models.Profile) error {
	if employee == nil || employee.Role != models.RoleEmployee {
		return nil
	}
	if employee.IsActive && !employee.SubscriptionExpired {
		return nil
	}
	if err := s.profiles.SetEmployeeActive(ctx, employee.ID, true, s.now()); err != nil {
		return fmt.Errorf("failed to reactivate employee '%s': %w", employee.ID, err)
	}
	employee.IsActive = true
	employee.SubscriptionExpired = false
	return nil
}

func (s *subscriptionService) sendEmail(ctx context.Context, to string, kind EmailKind, data map[string]interface{}) {
	if s.notifier == nil || to == "" {
		return
	}
	if err := s.notifier.SendEmail(ctx, to, kind, data); err != nil {
		observability.BestEffortFailures().WithLabelValues("email").Inc()
		s.logger.Warn("failed to send email", zap.String("kind", string(kind)), zap.String("to", to), zap.Error(err))
	}
}

func (s *subscriptionService) publish(ctx context.Context, eventType string, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, eventType, payload); err != nil {
		observability.BestEffortFailures().WithLabelValues("event").Inc()
		s.logger.Warn("failed to publish event", zap.String("event", eventType), zap.Error(err))
	}
}

func (s *subscriptionService) recordAudit(ctx context.Context, actor Actor, action, targetID string, details map[string]interface{}) {
	if s.audit == nil {
		return
	}
	entry := models.AuditLog{
		UserID:     actor.ID,
		Action:     action,
		TargetType: "SUBSCRIPTION",
		TargetID:   targetID,
		Timestamp:  s.now(),
		Details:    details,
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		observability.BestEffortFailures().WithLabelValues("audit").Inc()
		s.logger.Warn("failed to create audit log", zap.String("action", action), zap.String("targetId", targetID), zap.Error(err))
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func displayName(p *models.Profile, fallback string) string {
	if p != nil && p.Name != "" {
		return p.Name
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
