package repository

import (
	"context"
	"time"

	"edtech-enrollment/internal/domain/model"
)

// EnrollmentRepository stores enrollments keyed by their reference (id).
// Every status write is a key-scoped conditional UPDATE that only moves forward
// (pending < paid < active, cancelled terminal); each returns whether a row changed.
type EnrollmentRepository interface {
	// Create inserts a new pending enrollment. Key: id. Conflict: ErrAlreadyExists.
	Create(ctx context.Context, tx Tx, e *model.Enrollment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Enrollment, error)

	// MarkPaid sets status=paid WHERE id=$1 AND status='pending'.
	MarkPaid(ctx context.Context, tx Tx, id string) (bool, error)
	// MarkActive sets status=active, subscription_id and next_billing_date
	// WHERE id=$1 AND status IN ('pending','paid','active').
	MarkActive(ctx context.Context, tx Tx, id, subscriptionCode string, nextBilling *time.Time) (bool, error)
	// ActivateBySubscription sets status=active and next_billing_date on the enrollment
	// linked to subscriptionCode WHERE status IN ('paid','active').
	ActivateBySubscription(ctx context.Context, tx Tx, subscriptionCode string, nextBilling *time.Time) (int64, error)
	// CancelBySubscription sets status=cancelled WHERE subscription_id=$1 AND status IN ('paid','active').
	CancelBySubscription(ctx context.Context, tx Tx, subscriptionCode string) (int64, error)

	// ListPendingForSweep returns pending enrollments created between newerThan and
	// olderThan. Never-swept rows come first, then the least recently swept, so rows
	// that never settle cannot starve newer ones.
	ListPendingForSweep(ctx context.Context, tx Tx, olderThan, newerThan time.Time, limit int) ([]*model.Enrollment, error)
	// MarkSwept stamps swept_at=at on ids.
	MarkSwept(ctx context.Context, tx Tx, ids []string, at time.Time) error
	CountByStatus(ctx context.Context, tx Tx) (map[model.EnrollmentStatus]int, error)
}
