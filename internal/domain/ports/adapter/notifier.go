package adapter

import (
	"context"

	"edtech-enrollment/internal/domain/model"
)

// Notification describes a committed state change worth telling operators about.
type Notification struct {
	Kind          model.EventKind
	Key           string // reference or subscription code
	Email         string
	Amount        int64
	Currency      string
	EnrollmentRef string
}

// Notifier delivers best-effort notifications. Failures never affect billing state.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, n Notification) error
}
