//go:build !integration

package http

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"edtech-enrollment/internal/domain/model"
	"edtech-enrollment/internal/domain/ports/adapter"
	"edtech-enrollment/internal/usecase"
)

// newTestLogger creates a silent logger for tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// ---- mockReconciler ----

type mockReconciler struct {
	mu      sync.Mutex
	applied []model.WebhookEvent

	ApplyFunc   func(ctx context.Context, ev model.WebhookEvent) error
	ConfirmFunc func(ctx context.Context, reference string) (*adapter.VerifyResult, error)
}

var _ usecase.ReconcileUseCase = (*mockReconciler)(nil)

func (m *mockReconciler) Apply(ctx context.Context, ev model.WebhookEvent) error {
	m.mu.Lock()
	m.applied = append(m.applied, ev)
	m.mu.Unlock()
	if m.ApplyFunc != nil {
		return m.ApplyFunc(ctx, ev)
	}
	return nil
}

func (m *mockReconciler) ConfirmByReference(ctx context.Context, reference string) (*adapter.VerifyResult, error) {
	if m.ConfirmFunc != nil {
		return m.ConfirmFunc(ctx, reference)
	}
	return &adapter.VerifyResult{Reference: reference, Status: "success"}, nil
}

func (m *mockReconciler) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.applied)
}

// ---- mockEnrollmentUC ----

type mockEnrollmentUC struct {
	InitiateFunc func(ctx context.Context, in usecase.EnrollmentIntake, host string) (*usecase.InitResult, error)
	DetailsFunc  func(ctx context.Context, reference string) (*usecase.EnrollmentDetails, error)
}

var _ usecase.EnrollmentUseCase = (*mockEnrollmentUC)(nil)

func (m *mockEnrollmentUC) Initiate(ctx context.Context, in usecase.EnrollmentIntake, host string) (*usecase.InitResult, error) {
	if m.InitiateFunc != nil {
		return m.InitiateFunc(ctx, in, host)
	}
	return &usecase.InitResult{AuthorizationURL: "https://checkout.paystack.com/abc", Reference: "ENR-1", AccessCode: "abc", Message: "Authorization URL created"}, nil
}

func (m *mockEnrollmentUC) Details(ctx context.Context, reference string) (*usecase.EnrollmentDetails, error) {
	if m.DetailsFunc != nil {
		return m.DetailsFunc(ctx, reference)
	}
	return &usecase.EnrollmentDetails{Enrollment: &model.Enrollment{ID: reference, Status: model.EnrollmentStatusPaid}, Payments: []*model.Payment{}}, nil
}

// ---- mockLimiter ----

type mockLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	m.keys = append(m.keys, key)
	return m.allow, m.err
}

var errBoom = errors.New("boom")
