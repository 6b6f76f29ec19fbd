package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"edtech-enrollment/internal/domain/ports/adapter"
	"edtech-enrollment/internal/infra/metrics"
	"edtech-enrollment/internal/infra/worker"
)

// Compile-time check
var _ NotificationDispatcher = (*notificationUC)(nil)

// TaskSubmitter is the part of worker.Pool the dispatcher needs.
type TaskSubmitter interface {
	Submit(task worker.Task) error
}

// notificationUC fans a committed change out to every notifier through the worker
// pool. It never blocks the caller and never reports failure back to it.
type notificationUC struct {
	pool      TaskSubmitter
	notifiers []adapter.Notifier
	timeout   time.Duration
	log       *zerolog.Logger
}

func NewNotificationUseCase(pool TaskSubmitter, notifiers []adapter.Notifier, timeout time.Duration, logger *zerolog.Logger) *notificationUC {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	compLog := logger.With().Str("component", "NotificationUC").Logger()
	return &notificationUC{pool: pool, notifiers: notifiers, timeout: timeout, log: &compLog}
}

func (u *notificationUC) Dispatch(n adapter.Notification) {
	for _, nt := range u.notifiers {
		nt := nt
		err := u.pool.Submit(func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, u.timeout)
			defer cancel()
			if err := nt.Notify(ctx, n); err != nil {
				metrics.IncNotification(nt.Name(), "error")
				return fmt.Errorf("notifier %s: %w", nt.Name(), err)
			}
			metrics.IncNotification(nt.Name(), "sent")
			return nil
		})
		if err != nil {
			metrics.IncNotification(nt.Name(), "dropped")
			u.log.Warn().Err(err).Str("notifier", nt.Name()).Str("key", n.Key).Msg("notification dropped")
		}
	}
}
