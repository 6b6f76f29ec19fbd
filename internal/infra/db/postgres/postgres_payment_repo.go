package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"edtech-enrollment/internal/domain/model"
	"edtech-enrollment/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, type, reference, status, email, amount, currency, channel, paid_at, meta, enrollment_ref, created_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	var typ string
	if err := row.Scan(&p.ID, &typ, &p.Reference, &p.Status, &p.Email, &p.Amount, &p.Currency, &p.Channel, &p.PaidAt, &p.Meta, &p.EnrollmentRef, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Type = model.PaymentType(typ)
	return p, nil
}

// InsertIgnore: key (reference, type), ON CONFLICT DO NOTHING.
// enrollment_ref is resolved by sub-select, so it is NULL for unknown enrollments;
// p.EnrollmentRef reflects what was stored.
func (r *paymentRepo) InsertIgnore(ctx context.Context, tx repository.Tx, p *model.Payment) (bool, error) {
	const q = `
INSERT INTO payments (
  id, type, reference, status, email, amount, currency, channel, paid_at, meta, enrollment_ref, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,(SELECT id FROM enrollments WHERE id = $11),$12
) ON CONFLICT (reference, type) DO NOTHING
RETURNING enrollment_ref;`

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	row, err := pickRow(ctx, r.pool, tx, q, p.ID, string(p.Type), p.Reference, p.Status, p.Email, p.Amount, p.Currency, p.Channel, p.PaidAt, p.Meta, p.EnrollmentRef, p.CreatedAt)
	if err != nil {
		return false, err
	}
	var stored *string
	if err := row.Scan(&stored); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil // duplicate delivery
		}
		return false, mapErr("insert payment", err)
	}
	p.EnrollmentRef = stored
	return true, nil
}

func (r *paymentRepo) FindByReference(ctx context.Context, tx repository.Tx, reference string, typ model.PaymentType) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE reference=$1 AND type=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, reference, string(typ))
	if err != nil {
		return nil, err
	}
	p, err := scanPayment(row)
	if err != nil {
		return nil, mapScanErr("find payment", err)
	}
	return p, nil
}

func (r *paymentRepo) ListByEnrollment(ctx context.Context, tx repository.Tx, enrollmentRef string) ([]*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE enrollment_ref=$1 ORDER BY created_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, enrollmentRef)
	if err != nil {
		return nil, mapErr("list payments", err)
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, mapScanErr("list payments", err)
		}
		out = append(out, p)
	}
	return out, mapErr("list payments", rows.Err())
}
