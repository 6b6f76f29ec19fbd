package repository

import (
	"context"

	"edtech-enrollment/internal/domain/model"
)

// -----------------------------
// Payments
// -----------------------------

type PaymentRepository interface {
	// InsertIgnore records a settled payment. Key: (reference, type).
	// Conflict: DO NOTHING; inserted=false on a duplicate delivery.
	// enrollment_ref is stored only when that enrollment exists.
	InsertIgnore(ctx context.Context, tx Tx, p *model.Payment) (inserted bool, err error)
	FindByReference(ctx context.Context, tx Tx, reference string, typ model.PaymentType) (*model.Payment, error)
	ListByEnrollment(ctx context.Context, tx Tx, enrollmentRef string) ([]*model.Payment, error)
}
