package model

import "time"

// EventKind is the normalized tag of a provider webhook.
type EventKind string

const (
	EventChargeSucceeded      EventKind = "charge_succeeded"
	EventSubscriptionCreated  EventKind = "subscription_created"
	EventInvoicePaid          EventKind = "invoice_paid"
	EventSubscriptionDisabled EventKind = "subscription_disabled"
	EventUnrecognized         EventKind = "unrecognized"
)

// WebhookEvent is a verified, classified webhook. Exactly one payload pointer is
// set, matching Kind; Unrecognized carries none.
type WebhookEvent struct {
	Kind     EventKind
	Provider string
	Name     string         // raw provider event name, e.g. "charge.success"
	Raw      map[string]any // decoded payload, stored with payments
	Reason   string         // why a recognized name was downgraded to Unrecognized

	Charge       *ChargeSucceeded
	Subscription *SubscriptionCreated
	Invoice      *InvoicePaid
	Disabled     *SubscriptionDisabled
}

// ChargeSucceeded is a settled one-time charge. Reference is the enrollment id.
type ChargeSucceeded struct {
	Reference string
	Email     string
	Amount    int64
	Currency  string
	Channel   string
	PaidAt    *time.Time
}

type SubscriptionCreated struct {
	SubscriptionCode string
	Email            string
	PlanCode         string
	Status           SubscriptionStatus
	NextBillingDate  *time.Time
	EnrollmentRef    string // from metadata; may be empty
}

type InvoicePaid struct {
	Reference        string // transaction reference, falling back to invoice or subscription code
	SubscriptionCode string
	Email            string
	Amount           int64
	Currency         string
	PaidAt           *time.Time
	NextBillingDate  *time.Time
	EnrollmentRef    string // from metadata; may be empty
}

type SubscriptionDisabled struct {
	SubscriptionCode string
}

// Key is the stable external identifier the event's writes are keyed by.
// It is also used to de-duplicate deliveries.
func (e WebhookEvent) Key() string {
	switch e.Kind {
	case EventChargeSucceeded:
		if e.Charge != nil {
			return e.Charge.Reference
		}
	case EventSubscriptionCreated:
		if e.Subscription != nil {
			return e.Subscription.SubscriptionCode
		}
	case EventInvoicePaid:
		if e.Invoice != nil {
			return e.Invoice.Reference
		}
	case EventSubscriptionDisabled:
		if e.Disabled != nil {
			return e.Disabled.SubscriptionCode
		}
	}
	return ""
}

// Deduplicable reports whether a completed delivery of this event may short-circuit
// later deliveries. Only insert-keyed events qualify: their effect cannot depend on
// events that arrive after them.
func (e WebhookEvent) Deduplicable() bool {
	return (e.Kind == EventChargeSucceeded || e.Kind == EventInvoicePaid) && e.Key() != ""
}
