package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"edtech-enrollment/internal/config"
	"edtech-enrollment/internal/domain"
	"edtech-enrollment/internal/domain/ports/adapter"
)

// PaystackGateway implements adapter.PaymentGateway using direct HTTP calls.
type PaystackGateway struct {
	secretKey string
	baseURL   string
	client    *http.Client
}

var _ adapter.PaymentGateway = (*PaystackGateway)(nil)

func NewPaystackGateway(cfg config.PaystackConfig) *PaystackGateway {
	return &PaystackGateway{
		secretKey: cfg.SecretKey,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		client:    &http.Client{Timeout: cfg.Timeout},
	}
}

func (g *PaystackGateway) Name() string { return ProviderPaystack }

// paystackResponse is the common {status, message, data} envelope.
type paystackResponse struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type verifyData struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Channel   string `json:"channel"`
	PaidAt    string `json:"paid_at"`
	Customer  struct {
		Email string `json:"email"`
	} `json:"customer"`
}

// InitializeTransaction implements adapter.PaymentGateway.
func (g *PaystackGateway) InitializeTransaction(ctx context.Context, in adapter.InitializeRequest) (*adapter.InitializeResult, error) {
	requestData := map[string]any{
		"email":     in.Email,
		"amount":    in.AmountMinor,
		"currency":  in.Currency,
		"reference": in.Reference,
	}
	// without one Paystack uses the callback configured on the dashboard
	if in.CallbackURL != "" {
		requestData["callback_url"] = in.CallbackURL
	}
	if len(in.Channels) > 0 {
		requestData["channels"] = in.Channels
	}
	if in.Metadata != nil {
		requestData["metadata"] = in.Metadata
	}

	jsonData, err := json.Marshal(requestData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request data: %w", err)
	}

	var data initializeData
	msg, err := g.do(ctx, http.MethodPost, "/transaction/initialize", jsonData, &data)
	if err != nil {
		return nil, err
	}
	if data.AuthorizationURL == "" {
		return nil, fmt.Errorf("%w: initialize returned no authorization_url", domain.ErrUpstream)
	}

	ref := data.Reference
	if ref == "" {
		ref = in.Reference
	}
	return &adapter.InitializeResult{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        ref,
		Message:          msg,
	}, nil
}

// VerifyTransaction implements adapter.PaymentGateway.
func (g *PaystackGateway) VerifyTransaction(ctx context.Context, reference string) (*adapter.VerifyResult, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, fmt.Errorf("%w: empty reference", domain.ErrInvalidArgument)
	}

	var raw json.RawMessage
	if _, err := g.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &raw); err != nil {
		return nil, err
	}
	var data verifyData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: decode verify data: %v", domain.ErrUpstream, err)
	}

	res := &adapter.VerifyResult{
		Reference:   firstNonEmpty(data.Reference, reference),
		Status:      data.Status,
		Email:       data.Customer.Email,
		AmountMinor: data.Amount,
		Currency:    strings.ToUpper(data.Currency),
		Channel:     data.Channel,
		PaidAt:      parseTime(data.PaidAt),
	}
	res.Raw = decodeRaw(raw)
	return res, nil
}

// do sends one request, decodes the envelope's data into out and returns the provider
// message. Every provider failure wraps domain.ErrUpstream.
func (g *PaystackGateway) do(ctx context.Context, method, path string, body []byte, out any) (string, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: failed to send request: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response body: %v", domain.ErrUpstream, err)
	}

	var response paystackResponse
	decodeErr := json.Unmarshal(respBody, &response)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := response.Message
		if decodeErr != nil || msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", fmt.Errorf("%w: paystack %s %s: %d %s", domain.ErrUpstream, method, path, resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("%w: failed to unmarshal response: %v", domain.ErrUpstream, decodeErr)
	}
	if !response.Status {
		return "", fmt.Errorf("%w: %s", domain.ErrUpstream, response.Message)
	}
	if out != nil && len(response.Data) > 0 {
		if err := json.Unmarshal(response.Data, out); err != nil {
			return "", fmt.Errorf("%w: decode data: %v", domain.ErrUpstream, err)
		}
	}
	return response.Message, nil
}
