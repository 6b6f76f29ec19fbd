package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"edtech-enrollment/internal/domain/model"
	"edtech-enrollment/internal/domain/ports/repository"
)

var _ repository.EnrollmentRepository = (*enrollmentRepo)(nil)

type enrollmentRepo struct{ pool *pgxpool.Pool }

func NewEnrollmentRepo(pool *pgxpool.Pool) *enrollmentRepo {
	return &enrollmentRepo{pool: pool}
}

const enrollmentColumns = `id, email, phone, parent_name, child_name, age_band, amount, currency, status, subscription_id, next_billing_date, created_at, updated_at`

func scanEnrollment(row pgx.Row) (*model.Enrollment, error) {
	e := &model.Enrollment{}
	var band, status string
	if err := row.Scan(&e.ID, &e.Email, &e.Phone, &e.ParentName, &e.ChildName, &band, &e.Amount, &e.Currency, &status, &e.SubscriptionID, &e.NextBillingDate, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.AgeBand = model.AgeBand(band)
	e.Status = model.EnrollmentStatus(status)
	return e, nil
}

// Create inserts a pending enrollment. A duplicate id maps to domain.ErrAlreadyExists.
func (r *enrollmentRepo) Create(ctx context.Context, tx repository.Tx, e *model.Enrollment) error {
	const q = `
INSERT INTO enrollments (` + enrollmentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13);`

	_, err := execSQL(ctx, r.pool, tx, q, e.ID, e.Email, e.Phone, e.ParentName, e.ChildName, string(e.AgeBand), e.Amount, e.Currency, string(e.Status), e.SubscriptionID, e.NextBillingDate, e.CreatedAt, e.UpdatedAt)
	return mapErr("create enrollment", err)
}

func (r *enrollmentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Enrollment, error) {
	q := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	e, err := scanEnrollment(row)
	if err != nil {
		return nil, mapScanErr("find enrollment", err)
	}
	return e, nil
}

// MarkPaid: key id, only from pending.
func (r *enrollmentRepo) MarkPaid(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	const q = `
UPDATE enrollments
   SET status = 'paid', updated_at = NOW()
 WHERE id = $1
   AND status = 'pending';`
	cmd, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return false, mapErr("mark enrollment paid", err)
	}
	return cmd.RowsAffected() == 1, nil
}

// MarkActive: key id, from pending/paid/active. Re-applying refreshes the billing date.
func (r *enrollmentRepo) MarkActive(ctx context.Context, tx repository.Tx, id, subscriptionCode string, nextBilling *time.Time) (bool, error) {
	const q = `
UPDATE enrollments
   SET status = 'active',
       subscription_id = $2,
       next_billing_date = COALESCE($3, next_billing_date),
       updated_at = NOW()
 WHERE id = $1
   AND status IN ('pending','paid','active');`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, subscriptionCode, nextBilling)
	if err != nil {
		return false, mapErr("mark enrollment active", err)
	}
	return cmd.RowsAffected() == 1, nil
}

// ActivateBySubscription: key subscription_id, from paid/active.
func (r *enrollmentRepo) ActivateBySubscription(ctx context.Context, tx repository.Tx, subscriptionCode string, nextBilling *time.Time) (int64, error) {
	const q = `
UPDATE enrollments
   SET status = 'active',
       next_billing_date = COALESCE($2, next_billing_date),
       updated_at = NOW()
 WHERE subscription_id = $1
   AND status IN ('paid','active');`
	cmd, err := execSQL(ctx, r.pool, tx, q, subscriptionCode, nextBilling)
	if err != nil {
		return 0, mapErr("activate enrollment by subscription", err)
	}
	return cmd.RowsAffected(), nil
}

// CancelBySubscription: key subscription_id, from paid/active. cancelled is terminal.
func (r *enrollmentRepo) CancelBySubscription(ctx context.Context, tx repository.Tx, subscriptionCode string) (int64, error) {
	const q = `
UPDATE enrollments
   SET status = 'cancelled', updated_at = NOW()
 WHERE subscription_id = $1
   AND status IN ('paid','active');`
	cmd, err := execSQL(ctx, r.pool, tx, q, subscriptionCode)
	if err != nil {
		return 0, mapErr("cancel enrollment", err)
	}
	return cmd.RowsAffected(), nil
}

// ListPendingForSweep: pending rows in the (newerThan, olderThan) creation window,
// swept_at NULLS FIRST so abandoned checkouts rotate to the back.
func (r *enrollmentRepo) ListPendingForSweep(ctx context.Context, tx repository.Tx, olderThan, newerThan time.Time, limit int) ([]*model.Enrollment, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + enrollmentColumns + ` FROM enrollments
 WHERE status = 'pending'
   AND created_at < $1
   AND created_at > $2
 ORDER BY swept_at ASC NULLS FIRST, created_at ASC
 LIMIT $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, newerThan, limit)
	if err != nil {
		return nil, mapErr("list pending enrollments", err)
	}
	defer rows.Close()

	var out []*model.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, mapScanErr("list pending enrollments", err)
		}
		out = append(out, e)
	}
	return out, mapErr("list pending enrollments", rows.Err())
}

func (r *enrollmentRepo) MarkSwept(ctx context.Context, tx repository.Tx, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	const q = `UPDATE enrollments SET swept_at = $2 WHERE id = ANY($1);`
	if _, err := execSQL(ctx, r.pool, tx, q, ids, at); err != nil {
		return mapErr("mark enrollments swept", err)
	}
	return nil
}

func (r *enrollmentRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.EnrollmentStatus]int, error) {
	const q = `SELECT status, COUNT(*) FROM enrollments GROUP BY status;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, mapErr("count enrollments", err)
	}
	defer rows.Close()

	out := make(map[model.EnrollmentStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, mapScanErr("count enrollments", err)
		}
		out[model.EnrollmentStatus(status)] = n
	}
	return out, mapErr("count enrollments", rows.Err())
}
