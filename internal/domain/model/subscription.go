package model

import "time"

type SubscriptionStatus string

// Provider states other than these are stored verbatim.
const (
	SubscriptionStatusActive      SubscriptionStatus = "active"
	SubscriptionStatusNonRenewing SubscriptionStatus = "non_renewing"
	SubscriptionStatusAttention   SubscriptionStatus = "attention"
	SubscriptionStatusCompleted   SubscriptionStatus = "complete"
	SubscriptionStatusCancelled   SubscriptionStatus = "cancelled"
)

// Subscription is a recurring billing agreement, keyed by the provider's subscription code.
type Subscription struct {
	Code            string             `json:"subscription_code"`
	Email           string             `json:"email"`
	PlanCode        string             `json:"plan_code"`
	Status          SubscriptionStatus `json:"status"`
	NextBillingDate *time.Time         `json:"next_billing_date,omitempty"`
	EnrollmentRef   *string            `json:"enrollment_ref,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}
