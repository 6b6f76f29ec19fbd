package adapter

import (
	"context"
	"time"
)

// InitializeRequest is a provider-agnostic hosted-checkout request.
type InitializeRequest struct {
	Email       string
	AmountMinor int64
	Currency    string
	Reference   string
	CallbackURL string
	Channels    []string
	Metadata    map[string]any
}

// InitializeResult is what the browser needs to be redirected to the provider.
type InitializeResult struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
	Message          string
}

// VerifyResult is the provider's view of a transaction.
type VerifyResult struct {
	Reference   string
	Status      string // provider status; "success" when settled
	Email       string
	AmountMinor int64
	Currency    string
	Channel     string
	PaidAt      *time.Time
	Raw         map[string]any
}

// PaymentGateway is the hex port for payment providers.
type PaymentGateway interface {
	Name() string

	// InitializeTransaction requests a hosted payment page. It is never retried:
	// any non-success is returned as an error wrapping domain.ErrUpstream.
	InitializeTransaction(ctx context.Context, req InitializeRequest) (*InitializeResult, error)
	// VerifyTransaction fetches the current state of a transaction by reference.
	VerifyTransaction(ctx context.Context, reference string) (*VerifyResult, error)
}
