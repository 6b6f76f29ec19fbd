//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"edtech-enrollment/internal/domain/model"
	"edtech-enrollment/internal/domain/ports/adapter"
	"edtech-enrollment/internal/infra/worker"
	"edtech-enrollment/internal/usecase"
)

func TestNotificationUseCase_Dispatch(t *testing.T) {
	n := adapter.Notification{Kind: model.EventChargeSucceeded, Key: "ENR-1", Amount: 75000, Currency: "GHS"}

	t.Run("should deliver to every notifier", func(t *testing.T) {
		// --- Arrange ---
		a, b := &MockNotifier{}, &MockNotifier{}
		uc := usecase.NewNotificationUseCase(inlineSubmitter{}, []adapter.Notifier{a, b}, time.Second, newTestLogger())

		// --- Act ---
		uc.Dispatch(n)

		// --- Assert ---
		if len(a.Received) != 1 || len(b.Received) != 1 {
			t.Fatalf("expected one delivery per notifier, got %d and %d", len(a.Received), len(b.Received))
		}
		if a.Received[0].Key != "ENR-1" {
			t.Errorf("unexpected notification: %+v", a.Received[0])
		}
	})

	t.Run("should keep going when one notifier fails", func(t *testing.T) {
		// --- Arrange ---
		failing := &MockNotifier{Err: errors.New("telegram down")}
		ok := &MockNotifier{}
		uc := usecase.NewNotificationUseCase(inlineSubmitter{}, []adapter.Notifier{failing, ok}, time.Second, newTestLogger())

		// --- Act ---
		uc.Dispatch(n)

		// --- Assert ---
		if len(ok.Received) != 1 {
			t.Error("expected the healthy notifier to still receive the notification")
		}
	})

	t.Run("should drop without blocking when the queue is full", func(t *testing.T) {
		// --- Arrange ---
		nt := &MockNotifier{}
		uc := usecase.NewNotificationUseCase(inlineSubmitter{err: worker.ErrQueueFull}, []adapter.Notifier{nt}, time.Second, newTestLogger())

		// --- Act ---
		uc.Dispatch(n)

		// --- Assert ---
		if len(nt.Received) != 0 {
			t.Error("expected the notification to be dropped")
		}
	})

	t.Run("should run through a real worker pool", func(t *testing.T) {
		// --- Arrange ---
		pool := worker.NewPool(1, 4, newTestLogger())
		pool.Start(context.Background())
		nt := &MockNotifier{}
		uc := usecase.NewNotificationUseCase(pool, []adapter.Notifier{nt}, time.Second, newTestLogger())

		// --- Act ---
		uc.Dispatch(n)
		pool.Stop()

		// --- Assert ---
		nt.mu.Lock()
		defer nt.mu.Unlock()
		if len(nt.Received) != 1 {
			t.Errorf("expected the queued notification to be delivered before stop, got %d", len(nt.Received))
		}
	})
}
