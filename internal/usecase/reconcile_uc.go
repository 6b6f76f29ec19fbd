package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"edtech-enrollment/internal/domain"
	"edtech-enrollment/internal/domain/model"
	"edtech-enrollment/internal/domain/ports/adapter"
	"edtech-enrollment/internal/domain/ports/repository"
	"edtech-enrollment/internal/infra/logging"
	"edtech-enrollment/internal/infra/metrics"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

type ReconcileUseCase interface {
	// Apply writes one classified webhook event. Every write is keyed by the event's
	// external identifier and safe to repeat; all writes of one event commit together.
	// A returned error means nothing is guaranteed and the delivery should be retried.
	Apply(ctx context.Context, ev model.WebhookEvent) error
	// ConfirmByReference asks the provider for the transaction state and, when it
	// settled, applies it exactly like a charge.success webhook. A charge that is
	// already recorded is answered from the store without asking the provider.
	ConfirmByReference(ctx context.Context, reference string) (*adapter.VerifyResult, error)
}

// NotificationDispatcher receives committed changes for best-effort delivery.
type NotificationDispatcher interface {
	Dispatch(n adapter.Notification)
}

type ReconcileConfig struct {
	Currency    string        // used when the provider omits one
	DeliveryTTL time.Duration // how long applied deliveries are remembered
}

type reconcileUC struct {
	enrollments repository.EnrollmentRepository
	payments    repository.PaymentRepository
	subs        repository.SubscriptionRepository
	tm          repository.TransactionManager
	deliveries  repository.DeliveryLog // optional
	gateway     adapter.PaymentGateway
	notify      NotificationDispatcher // optional
	cfg         ReconcileConfig
	log         *zerolog.Logger
}

func NewReconcileUseCase(
	enrollments repository.EnrollmentRepository,
	payments repository.PaymentRepository,
	subs repository.SubscriptionRepository,
	tm repository.TransactionManager,
	deliveries repository.DeliveryLog,
	gateway adapter.PaymentGateway,
	notify NotificationDispatcher,
	cfg ReconcileConfig,
	logger *zerolog.Logger,
) *reconcileUC {
	if cfg.Currency == "" {
		cfg.Currency = "GHS"
	}
	if cfg.DeliveryTTL <= 0 {
		cfg.DeliveryTTL = 24 * time.Hour
	}
	compLog := logger.With().Str("component", "ReconcileUC").Logger()
	return &reconcileUC{
		enrollments: enrollments,
		payments:    payments,
		subs:        subs,
		tm:          tm,
		deliveries:  deliveries,
		gateway:     gateway,
		notify:      notify,
		cfg:         cfg,
		log:         &compLog,
	}
}

// outcome collects what a committed event changed, for metrics and notifications.
type outcome struct {
	inserted   *model.Payment
	orphan     bool
	notify     bool
	activated  bool
	cancelled  int64
	subMissing bool
}

func (u *reconcileUC) Apply(ctx context.Context, ev model.WebhookEvent) error {
	key := ev.Key()
	log := logging.With(logging.WithReference(ctx, key), u.log).With().
		Str("event", ev.Name).
		Str("kind", string(ev.Kind)).
		Logger()
	defer logging.TraceDuration(&log, "ReconcileUC.Apply")()

	if ev.Kind == model.EventUnrecognized {
		log.Info().Str("reason", ev.Reason).Msg("webhook acknowledged without changes")
		metrics.IncWebhookEvent(string(ev.Kind), "ignored")
		return nil
	}

	if u.alreadyApplied(ctx, &log, ev) {
		log.Debug().Msg("duplicate delivery short-circuited")
		metrics.IncWebhookDuplicate()
		metrics.IncWebhookEvent(string(ev.Kind), "duplicate")
		return nil
	}

	var out outcome
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		out = outcome{}
		switch ev.Kind {
		case model.EventChargeSucceeded:
			return u.applyCharge(ctx, tx, ev, &out)
		case model.EventSubscriptionCreated:
			return u.applySubscriptionCreated(ctx, tx, ev, &out)
		case model.EventInvoicePaid:
			return u.applyInvoice(ctx, tx, ev, &out)
		case model.EventSubscriptionDisabled:
			return u.applyDisabled(ctx, tx, ev, &out)
		default:
			return fmt.Errorf("%w: event kind %q", domain.ErrInvalidArgument, ev.Kind)
		}
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to apply webhook event")
		metrics.IncWebhookEvent(string(ev.Kind), "failed")
		return fmt.Errorf("apply %s %s: %w", ev.Kind, key, err)
	}

	metrics.IncWebhookEvent(string(ev.Kind), "applied")
	u.afterCommit(ctx, &log, ev, out)
	return nil
}

func (u *reconcileUC) alreadyApplied(ctx context.Context, log *zerolog.Logger, ev model.WebhookEvent) bool {
	if u.deliveries == nil || !ev.Deduplicable() {
		return false
	}
	seen, err := u.deliveries.Seen(ctx, string(ev.Kind), ev.Key())
	if err != nil {
		log.Warn().Err(err).Msg("delivery log lookup failed; applying anyway")
		return false
	}
	return seen
}

// applyCharge: payment (reference, enrollment) insert-or-ignore, then enrollment pending -> paid.
func (u *reconcileUC) applyCharge(ctx context.Context, tx repository.Tx, ev model.WebhookEvent, out *outcome) error {
	c := ev.Charge
	ref := c.Reference
	p := &model.Payment{
		Type:          model.PaymentTypeEnrollment,
		Reference:     ref,
		Status:        "success",
		Email:         c.Email,
		Amount:        c.Amount,
		Currency:      u.currency(c.Currency),
		Channel:       c.Channel,
		PaidAt:        c.PaidAt,
		Meta:          ev.Raw,
		EnrollmentRef: &ref,
		CreatedAt:     time.Now().UTC(),
	}
	inserted, err := u.payments.InsertIgnore(ctx, tx, p)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	if _, err := u.enrollments.MarkPaid(ctx, tx, ref); err != nil {
		return fmt.Errorf("mark enrollment paid: %w", err)
	}
	if inserted {
		out.inserted = p
		out.orphan = p.EnrollmentRef == nil
		out.notify = true
	}
	return nil
}

// applySubscriptionCreated: subscription upsert by code; a linked enrollment becomes active.
func (u *reconcileUC) applySubscriptionCreated(ctx context.Context, tx repository.Tx, ev model.WebhookEvent, out *outcome) error {
	s := ev.Subscription
	if err := u.subs.Upsert(ctx, tx, &model.Subscription{
		Code:            s.SubscriptionCode,
		Email:           s.Email,
		PlanCode:        s.PlanCode,
		Status:          s.Status,
		NextBillingDate: s.NextBillingDate,
		EnrollmentRef:   optional(s.EnrollmentRef),
	}); err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	if s.EnrollmentRef == "" || s.Status != model.SubscriptionStatusActive {
		return nil
	}
	changed, err := u.enrollments.MarkActive(ctx, tx, s.EnrollmentRef, s.SubscriptionCode, s.NextBillingDate)
	if err != nil {
		return fmt.Errorf("mark enrollment active: %w", err)
	}
	out.activated = changed
	out.notify = changed
	return nil
}

// applyInvoice: payment (reference, invoice) insert-or-ignore, subscription upsert to active,
// and the linked enrollment (by metadata ref, else by subscription code) becomes active.
func (u *reconcileUC) applyInvoice(ctx context.Context, tx repository.Tx, ev model.WebhookEvent, out *outcome) error {
	in := ev.Invoice
	enrollmentRef := in.EnrollmentRef
	if enrollmentRef == "" {
		existing, err := u.subs.FindByCode(ctx, tx, in.SubscriptionCode)
		switch {
		case err == nil && existing.EnrollmentRef != nil:
			enrollmentRef = *existing.EnrollmentRef
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return fmt.Errorf("find subscription: %w", err)
		}
	}

	p := &model.Payment{
		Type:          model.PaymentTypeInvoice,
		Reference:     in.Reference,
		Status:        "success",
		Email:         in.Email,
		Amount:        in.Amount,
		Currency:      u.currency(in.Currency),
		PaidAt:        in.PaidAt,
		Meta:          ev.Raw,
		EnrollmentRef: optional(enrollmentRef),
		CreatedAt:     time.Now().UTC(),
	}
	inserted, err := u.payments.InsertIgnore(ctx, tx, p)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}

	if err := u.subs.Upsert(ctx, tx, &model.Subscription{
		Code:            in.SubscriptionCode,
		Email:           in.Email,
		Status:          model.SubscriptionStatusActive,
		NextBillingDate: in.NextBillingDate,
		EnrollmentRef:   optional(enrollmentRef),
	}); err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}

	if enrollmentRef != "" {
		if out.activated, err = u.enrollments.MarkActive(ctx, tx, enrollmentRef, in.SubscriptionCode, in.NextBillingDate); err != nil {
			return fmt.Errorf("mark enrollment active: %w", err)
		}
	} else {
		n, err := u.enrollments.ActivateBySubscription(ctx, tx, in.SubscriptionCode, in.NextBillingDate)
		if err != nil {
			return fmt.Errorf("activate enrollment: %w", err)
		}
		out.activated = n > 0
	}

	if inserted {
		out.inserted = p
		out.orphan = enrollmentRef != "" && p.EnrollmentRef == nil
		out.notify = true
	}
	return nil
}

// applyDisabled: subscription -> non_renewing by code; its paid/active enrollment -> cancelled.
func (u *reconcileUC) applyDisabled(ctx context.Context, tx repository.Tx, ev model.WebhookEvent, out *outcome) error {
	code := ev.Disabled.SubscriptionCode
	found, err := u.subs.SetStatus(ctx, tx, code, model.SubscriptionStatusNonRenewing)
	if err != nil {
		return fmt.Errorf("set subscription status: %w", err)
	}
	n, err := u.enrollments.CancelBySubscription(ctx, tx, code)
	if err != nil {
		return fmt.Errorf("cancel enrollment: %w", err)
	}
	out.subMissing = !found
	out.cancelled = n
	out.notify = found
	return nil
}

func (u *reconcileUC) afterCommit(ctx context.Context, log *zerolog.Logger, ev model.WebhookEvent, out outcome) {
	if p := out.inserted; p != nil {
		metrics.IncPayment(string(p.Type))
		metrics.AddPaymentRevenue(p.Currency, p.Amount)
	}
	if out.orphan {
		metrics.IncWebhookOrphan(string(ev.Kind))
		log.Warn().Msg("payment recorded for an unknown enrollment")
	}
	if out.subMissing {
		log.Info().Msg("disable for a subscription that is not stored yet")
	}
	log.Info().
		Bool("payment_inserted", out.inserted != nil).
		Bool("enrollment_activated", out.activated).
		Int64("enrollments_cancelled", out.cancelled).
		Msg("webhook applied")

	if ev.Deduplicable() && u.deliveries != nil {
		if err := u.deliveries.MarkDone(ctx, string(ev.Kind), ev.Key(), u.cfg.DeliveryTTL); err != nil {
			log.Warn().Err(err).Msg("failed to record delivery")
		}
	}

	if out.notify && u.notify != nil {
		u.notify.Dispatch(notificationFor(ev, out))
	}
}

func notificationFor(ev model.WebhookEvent, out outcome) adapter.Notification {
	n := adapter.Notification{Kind: ev.Kind, Key: ev.Key()}
	if p := out.inserted; p != nil {
		n.Email = p.Email
		n.Amount = p.Amount
		n.Currency = p.Currency
		if p.EnrollmentRef != nil {
			n.EnrollmentRef = *p.EnrollmentRef
		}
	}
	if ev.Subscription != nil {
		n.Email = ev.Subscription.Email
		n.EnrollmentRef = ev.Subscription.EnrollmentRef
	}
	return n
}

func (u *reconcileUC) ConfirmByReference(ctx context.Context, reference string) (*adapter.VerifyResult, error) {
	recorded, err := u.payments.FindByReference(ctx, repository.NoTX, reference, model.PaymentTypeEnrollment)
	switch {
	case err == nil:
		return &adapter.VerifyResult{
			Reference:   recorded.Reference,
			Status:      recorded.Status,
			Email:       recorded.Email,
			AmountMinor: recorded.Amount,
			Currency:    recorded.Currency,
			Channel:     recorded.Channel,
			PaidAt:      recorded.PaidAt,
		}, nil
	case !errors.Is(err, domain.ErrNotFound):
		logging.With(ctx, u.log).Warn().Err(err).Str("reference", reference).Msg("payment lookup failed; asking provider")
	}

	vr, err := u.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		return nil, err
	}
	if vr.Status != "success" {
		return vr, nil
	}
	ev := model.WebhookEvent{
		Kind:     model.EventChargeSucceeded,
		Provider: u.gateway.Name(),
		Name:     "transaction.verify",
		Raw:      map[string]any{"event": "transaction.verify", "data": vr.Raw},
		Charge: &model.ChargeSucceeded{
			Reference: vr.Reference,
			Email:     vr.Email,
			Amount:    vr.AmountMinor,
			Currency:  vr.Currency,
			Channel:   vr.Channel,
			PaidAt:    vr.PaidAt,
		},
	}
	if err := u.Apply(ctx, ev); err != nil {
		return vr, err
	}
	return vr, nil
}

func (u *reconcileUC) currency(c string) string {
	if c == "" {
		return u.cfg.Currency
	}
	return c
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
