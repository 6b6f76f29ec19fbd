package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"edtech-enrollment/internal/domain/model"
	"edtech-enrollment/internal/domain/ports/repository"
)

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct{ pool *pgxpool.Pool }

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `subscription_code, email, plan_code, status, next_billing_date, enrollment_ref, created_at, updated_at`

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	s := &model.Subscription{}
	var status string
	if err := row.Scan(&s.Code, &s.Email, &s.PlanCode, &status, &s.NextBillingDate, &s.EnrollmentRef, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Status = model.SubscriptionStatus(status)
	return s, nil
}

// Upsert: key subscription_code, ON CONFLICT DO UPDATE. Empty incoming email/plan,
// a nil billing date and an unknown enrollment keep the stored values.
func (r *subscriptionRepo) Upsert(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (
  subscription_code, email, plan_code, status, next_billing_date, enrollment_ref, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,(SELECT id FROM enrollments WHERE id = $6),NOW(),NOW()
) ON CONFLICT (subscription_code) DO UPDATE SET
  email             = COALESCE(NULLIF(EXCLUDED.email, ''), subscriptions.email),
  plan_code         = COALESCE(NULLIF(EXCLUDED.plan_code, ''), subscriptions.plan_code),
  status            = EXCLUDED.status,
  next_billing_date = COALESCE(EXCLUDED.next_billing_date, subscriptions.next_billing_date),
  enrollment_ref    = COALESCE(EXCLUDED.enrollment_ref, subscriptions.enrollment_ref),
  updated_at        = NOW();`

	_, err := execSQL(ctx, r.pool, tx, q, s.Code, s.Email, s.PlanCode, string(s.Status), s.NextBillingDate, s.EnrollmentRef)
	return mapErr("upsert subscription", err)
}

// SetStatus: key subscription_code. Returns false when the subscription is unknown.
func (r *subscriptionRepo) SetStatus(ctx context.Context, tx repository.Tx, code string, status model.SubscriptionStatus) (bool, error) {
	const q = `UPDATE subscriptions SET status=$2, updated_at=NOW() WHERE subscription_code=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, code, string(status))
	if err != nil {
		return false, mapErr("set subscription status", err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *subscriptionRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE subscription_code=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, code)
	if err != nil {
		return nil, err
	}
	s, err := scanSubscription(row)
	if err != nil {
		return nil, mapScanErr("find subscription", err)
	}
	return s, nil
}

func (r *subscriptionRepo) FindByEnrollment(ctx context.Context, tx repository.Tx, enrollmentRef string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE enrollment_ref=$1 ORDER BY updated_at DESC LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, enrollmentRef)
	if err != nil {
		return nil, err
	}
	s, err := scanSubscription(row)
	if err != nil {
		return nil, mapScanErr("find subscription", err)
	}
	return s, nil
}
