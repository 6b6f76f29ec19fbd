package repository

import (
	"context"

	"edtech-enrollment/internal/domain/model"
)

// SubscriptionRepository is the port for recurring billing agreements, keyed by subscription code.
type SubscriptionRepository interface {
	// Upsert inserts or updates by subscription_code. Status and next_billing_date
	// take the incoming values (a nil date keeps the stored one); email, plan_code and
	// enrollment_ref keep stored values when the incoming ones are empty.
	Upsert(ctx context.Context, tx Tx, s *model.Subscription) error
	// SetStatus is a key-scoped UPDATE; returns false when no such subscription exists.
	SetStatus(ctx context.Context, tx Tx, code string, status model.SubscriptionStatus) (bool, error)
	FindByCode(ctx context.Context, tx Tx, code string) (*model.Subscription, error)
	FindByEnrollment(ctx context.Context, tx Tx, enrollmentRef string) (*model.Subscription, error)
}
