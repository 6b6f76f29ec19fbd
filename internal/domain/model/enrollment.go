package model

import (
	"time"

	"edtech-enrollment/internal/domain"
)

type EnrollmentStatus string

const (
	EnrollmentStatusPending   EnrollmentStatus = "pending"   // intake submitted, awaiting payment
	EnrollmentStatusPaid      EnrollmentStatus = "paid"      // one-time charge settled
	EnrollmentStatusActive    EnrollmentStatus = "active"    // recurring subscription running
	EnrollmentStatusCancelled EnrollmentStatus = "cancelled" // subscription failed or disabled
)

// Enrollment is one child's registration for the program and its billing lifecycle.
// ID doubles as the provider transaction reference.
type Enrollment struct {
	ID              string           `json:"id"`
	Email           string           `json:"email"`
	Phone           string           `json:"phone"`
	ParentName      string           `json:"parent_name"`
	ChildName       string           `json:"child_name"`
	AgeBand         AgeBand          `json:"age_band"`
	Amount          int64            `json:"amount"` // minor units
	Currency        string           `json:"currency"`
	Status          EnrollmentStatus `json:"status"`
	SubscriptionID  *string          `json:"subscription_id,omitempty"`
	NextBillingDate *time.Time       `json:"next_billing_date,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// NewPendingEnrollment creates the intake record written before the provider is called.
func NewPendingEnrollment(id, email, phone, parentName, childName string, band AgeBand, amount int64, currency string) (*Enrollment, error) {
	if id == "" || email == "" || phone == "" || amount <= 0 || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now().UTC()
	return &Enrollment{
		ID:         id,
		Email:      email,
		Phone:      phone,
		ParentName: parentName,
		ChildName:  childName,
		AgeBand:    band,
		Amount:     amount,
		Currency:   currency,
		Status:     EnrollmentStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}
