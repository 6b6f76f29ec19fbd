//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"edtech-enrollment/internal/domain"
	"edtech-enrollment/internal/domain/model"
)

func newEnrollment(t *testing.T, id string) *model.Enrollment {
	t.Helper()
	e, err := model.NewPendingEnrollment(id, "parent@example.com", "+233201234567", "Ama", "Kofi", "7-10", 75000, "GHS")
	if err != nil {
		t.Fatalf("NewPendingEnrollment: %v", err)
	}
	return e
}

func TestEnrollmentRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	repo := NewEnrollmentRepo(testPool)

	t.Run("should create and find an enrollment", func(t *testing.T) {
		cleanup(t)
		e := newEnrollment(t, "ENR-1")

		if err := repo.Create(ctx, nil, e); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		got, err := repo.FindByID(ctx, nil, "ENR-1")
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if got.Status != model.EnrollmentStatusPending || got.Amount != 75000 || got.AgeBand != "7-10" {
			t.Errorf("unexpected enrollment: %+v", got)
		}
		if err := repo.Create(ctx, nil, e); !errors.Is(err, domain.ErrAlreadyExists) {
			t.Errorf("expected ErrAlreadyExists on duplicate id, got %v", err)
		}
		if _, err := repo.FindByID(ctx, nil, "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("status only moves forward", func(t *testing.T) {
		cleanup(t)
		_ = repo.Create(ctx, nil, newEnrollment(t, "ENR-2"))
		next := time.Now().Add(30 * 24 * time.Hour).UTC().Truncate(time.Second)

		changed, err := repo.MarkActive(ctx, nil, "ENR-2", "SUB_1", &next)
		if err != nil || !changed {
			t.Fatalf("MarkActive: changed=%v err=%v", changed, err)
		}
		changed, err = repo.MarkPaid(ctx, nil, "ENR-2")
		if err != nil || changed {
			t.Fatalf("MarkPaid must not regress active: changed=%v err=%v", changed, err)
		}
		got, _ := repo.FindByID(ctx, nil, "ENR-2")
		if got.Status != model.EnrollmentStatusActive || got.SubscriptionID == nil || *got.SubscriptionID != "SUB_1" {
			t.Errorf("unexpected enrollment: %+v", got)
		}

		n, err := repo.CancelBySubscription(ctx, nil, "SUB_1")
		if err != nil || n != 1 {
			t.Fatalf("CancelBySubscription: n=%d err=%v", n, err)
		}
		if changed, _ := repo.MarkActive(ctx, nil, "ENR-2", "SUB_1", nil); changed {
			t.Error("cancelled must be terminal")
		}
		if n, _ := repo.ActivateBySubscription(ctx, nil, "SUB_1", nil); n != 0 {
			t.Error("cancelled must not be reactivated by invoice")
		}
	})

	t.Run("should list stale pending enrollments and count statuses", func(t *testing.T) {
		cleanup(t)
		old := newEnrollment(t, "ENR-OLD")
		old.CreatedAt = time.Now().Add(-time.Hour)
		_ = repo.Create(ctx, nil, old)
		_ = repo.Create(ctx, nil, newEnrollment(t, "ENR-NEW"))
		paid := newEnrollment(t, "ENR-PAID")
		paid.CreatedAt = time.Now().Add(-time.Hour)
		_ = repo.Create(ctx, nil, paid)
		_, _ = repo.MarkPaid(ctx, nil, "ENR-PAID")

		ancient := newEnrollment(t, "ENR-ANCIENT")
		ancient.CreatedAt = time.Now().Add(-30 * 24 * time.Hour)
		_ = repo.Create(ctx, nil, ancient)

		list, err := repo.ListPendingForSweep(ctx, nil, time.Now().Add(-15*time.Minute), time.Now().Add(-72*time.Hour), 10)
		if err != nil {
			t.Fatalf("ListPendingForSweep: %v", err)
		}
		if len(list) != 1 || list[0].ID != "ENR-OLD" {
			t.Errorf("expected only ENR-OLD, got %d rows", len(list))
		}

		counts, err := repo.CountByStatus(ctx, nil)
		if err != nil {
			t.Fatalf("CountByStatus: %v", err)
		}
		if counts[model.EnrollmentStatusPending] != 3 || counts[model.EnrollmentStatusPaid] != 1 {
			t.Errorf("unexpected counts: %v", counts)
		}
	})

	t.Run("should list never-swept enrollments before recently swept ones", func(t *testing.T) {
		cleanup(t)
		older := newEnrollment(t, "ENR-A")
		older.CreatedAt = time.Now().Add(-2 * time.Hour)
		_ = repo.Create(ctx, nil, older)
		newer := newEnrollment(t, "ENR-B")
		newer.CreatedAt = time.Now().Add(-time.Hour)
		_ = repo.Create(ctx, nil, newer)

		if err := repo.MarkSwept(ctx, nil, []string{"ENR-A"}, time.Now()); err != nil {
			t.Fatalf("MarkSwept: %v", err)
		}

		list, err := repo.ListPendingForSweep(ctx, nil, time.Now().Add(-15*time.Minute), time.Now().Add(-72*time.Hour), 1)
		if err != nil {
			t.Fatalf("ListPendingForSweep: %v", err)
		}
		if len(list) != 1 || list[0].ID != "ENR-B" {
			t.Errorf("expected ENR-B first, got %v", list)
		}
	})
}
