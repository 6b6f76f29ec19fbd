package model

import "time"

type PaymentType string

const (
	PaymentTypeEnrollment PaymentType = "enrollment" // one-time charge for an enrollment
	PaymentTypeInvoice    PaymentType = "invoice"    // recurring subscription invoice
)

// Payment is an immutable record of one settled monetary event.
// (Reference, Type) is the idempotency key: a redelivered webhook never adds a second row.
type Payment struct {
	ID            string         `json:"id"` // UUID
	Type          PaymentType    `json:"type"`
	Reference     string         `json:"reference"` // provider reference
	Status        string         `json:"status"`    // provider status, e.g. "success"
	Email         string         `json:"email"`
	Amount        int64          `json:"amount"` // minor units (pesewas)
	Currency      string         `json:"currency"`
	Channel       string         `json:"channel,omitempty"`
	PaidAt        *time.Time     `json:"paid_at,omitempty"`
	Meta          map[string]any `json:"meta,omitempty"` // raw provider payload (JSONB)
	EnrollmentRef *string        `json:"enrollment_ref,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}
