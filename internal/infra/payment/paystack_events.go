package payment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"edtech-enrollment/internal/domain"
	"edtech-enrollment/internal/domain/model"
)

const ProviderPaystack = "paystack"

// Provider event names.
const (
	eventChargeSuccess       = "charge.success"
	eventSubscriptionCreate  = "subscription.create"
	eventInvoicePaid         = "invoice.payment_success"
	eventInvoiceFailed       = "invoice.payment_failed"
	eventSubscriptionDisable = "subscription.disable"
)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type customer struct {
	Email    string          `json:"email"`
	Metadata json.RawMessage `json:"metadata"`
}

type chargeData struct {
	Status    string          `json:"status"`
	Reference string          `json:"reference"`
	Amount    int64           `json:"amount"`
	Currency  string          `json:"currency"`
	Channel   string          `json:"channel"`
	PaidAt    string          `json:"paid_at"`
	PaidAtAlt string          `json:"paidAt"`
	Customer  customer        `json:"customer"`
	Metadata  json.RawMessage `json:"metadata"`
}

type subscriptionData struct {
	SubscriptionCode string `json:"subscription_code"`
	Status           string `json:"status"`
	NextPaymentDate  string `json:"next_payment_date"`
	Plan             struct {
		PlanCode string `json:"plan_code"`
	} `json:"plan"`
	Customer customer        `json:"customer"`
	Metadata json.RawMessage `json:"metadata"`
}

type invoiceData struct {
	InvoiceCode      string `json:"invoice_code"`
	SubscriptionCode string `json:"subscription_code"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	PaidAt           string `json:"paid_at"`
	Subscription     struct {
		SubscriptionCode string `json:"subscription_code"`
		NextPaymentDate  string `json:"next_payment_date"`
	} `json:"subscription"`
	Transaction struct {
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
	} `json:"transaction"`
	Customer customer        `json:"customer"`
	Metadata json.RawMessage `json:"metadata"`
}

// ClassifyEvent normalizes a verified webhook body into a domain event.
// Only a body that is not a JSON object is an error. A recognized event with missing
// required fields comes back as EventUnrecognized with Reason set, so the delivery is
// acknowledged instead of retried forever.
func ClassifyEvent(body []byte) (model.WebhookEvent, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return model.WebhookEvent{}, fmt.Errorf("%w: webhook body: %v", domain.ErrInvalidArgument, err)
	}

	ev := model.WebhookEvent{
		Kind:     model.EventUnrecognized,
		Provider: ProviderPaystack,
		Name:     env.Event,
		Raw:      decodeRaw(body),
	}

	switch env.Event {
	case eventChargeSuccess:
		classifyCharge(&ev, env.Data)
	case eventSubscriptionCreate:
		classifySubscription(&ev, env.Data)
	case eventInvoicePaid:
		classifyInvoice(&ev, env.Data)
	case eventInvoiceFailed, eventSubscriptionDisable:
		classifyDisable(&ev, env.Data)
	default:
		ev.Reason = "unhandled event"
	}
	return ev, nil
}

func classifyCharge(ev *model.WebhookEvent, raw json.RawMessage) {
	var d chargeData
	if !decodeData(ev, raw, &d) {
		return
	}
	if d.Status != "success" {
		ev.Reason = "charge status " + quoteOrEmpty(d.Status)
		return
	}
	if strings.TrimSpace(d.Reference) == "" {
		ev.Reason = "missing data.reference"
		return
	}
	paidAt := d.PaidAt
	if paidAt == "" {
		paidAt = d.PaidAtAlt
	}
	ev.Kind = model.EventChargeSucceeded
	ev.Charge = &model.ChargeSucceeded{
		Reference: strings.TrimSpace(d.Reference),
		Email:     d.Customer.Email,
		Amount:    d.Amount,
		Currency:  strings.ToUpper(d.Currency),
		Channel:   d.Channel,
		PaidAt:    parseTime(paidAt),
	}
}

func classifySubscription(ev *model.WebhookEvent, raw json.RawMessage) {
	var d subscriptionData
	if !decodeData(ev, raw, &d) {
		return
	}
	if strings.TrimSpace(d.SubscriptionCode) == "" {
		ev.Reason = "missing data.subscription_code"
		return
	}
	status := model.SubscriptionStatus(d.Status)
	if status == "" {
		status = model.SubscriptionStatusActive
	}
	ev.Kind = model.EventSubscriptionCreated
	ev.Subscription = &model.SubscriptionCreated{
		SubscriptionCode: strings.TrimSpace(d.SubscriptionCode),
		Email:            d.Customer.Email,
		PlanCode:         d.Plan.PlanCode,
		Status:           status,
		NextBillingDate:  parseTime(d.NextPaymentDate),
		EnrollmentRef:    enrollmentRef(d.Metadata, d.Customer.Metadata),
	}
}

func classifyInvoice(ev *model.WebhookEvent, raw json.RawMessage) {
	var d invoiceData
	if !decodeData(ev, raw, &d) {
		return
	}
	code := firstNonEmpty(d.Subscription.SubscriptionCode, d.SubscriptionCode)
	if code == "" {
		ev.Reason = "missing data.subscription.subscription_code"
		return
	}
	amount := d.Amount
	if amount == 0 {
		amount = d.Transaction.Amount
	}
	ev.Kind = model.EventInvoicePaid
	ev.Invoice = &model.InvoicePaid{
		Reference:        firstNonEmpty(d.Transaction.Reference, d.InvoiceCode, code),
		SubscriptionCode: code,
		Email:            d.Customer.Email,
		Amount:           amount,
		Currency:         strings.ToUpper(firstNonEmpty(d.Currency, d.Transaction.Currency)),
		PaidAt:           parseTime(d.PaidAt),
		NextBillingDate:  parseTime(d.Subscription.NextPaymentDate),
		EnrollmentRef:    enrollmentRef(d.Metadata, d.Customer.Metadata),
	}
}

func classifyDisable(ev *model.WebhookEvent, raw json.RawMessage) {
	var d invoiceData
	if !decodeData(ev, raw, &d) {
		return
	}
	code := firstNonEmpty(d.Subscription.SubscriptionCode, d.SubscriptionCode)
	if code == "" {
		ev.Reason = "missing subscription_code"
		return
	}
	ev.Kind = model.EventSubscriptionDisabled
	ev.Disabled = &model.SubscriptionDisabled{SubscriptionCode: code}
}

func decodeData(ev *model.WebhookEvent, raw json.RawMessage, dst any) bool {
	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		ev.Reason = "missing data"
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		ev.Reason = "malformed data: " + err.Error()
		return false
	}
	return true
}

// decodeRaw keeps numbers as json.Number so amounts survive the round trip into payments.meta.
func decodeRaw(body []byte) map[string]any {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil
	}
	return m
}

// enrollmentRef looks for the enrollment reference in transaction metadata first, then in
// customer metadata. Paystack delivers metadata either as an object or as a JSON-encoded string.
func enrollmentRef(sources ...json.RawMessage) string {
	for _, raw := range sources {
		md := metadataMap(raw)
		for _, k := range []string{"enrollment_ref", "enrollment_id", "enrollmentId"} {
			if v, ok := md[k].(string); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
	}
	return ""
}

func metadataMap(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err == nil {
		return m
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		if err := json.Unmarshal([]byte(s), &m); err == nil {
			return m
		}
	}
	return nil
}

func parseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func quoteOrEmpty(s string) string {
	if s == "" {
		return "<empty>"
	}
	return fmt.Sprintf("%q", s)
}
