package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"edtech-enrollment/internal/domain/model"
	"edtech-enrollment/internal/domain/ports/repository"
	"edtech-enrollment/internal/infra/metrics"
)

var trackedStatuses = []model.EnrollmentStatus{
	model.EnrollmentStatusPending,
	model.EnrollmentStatusPaid,
	model.EnrollmentStatusActive,
	model.EnrollmentStatusCancelled,
}

// StatsWorker refreshes the enrollments-by-status gauge.
type StatsWorker struct {
	interval    time.Duration
	enrollments repository.EnrollmentRepository
	log         *zerolog.Logger
}

func NewStatsWorker(interval time.Duration, enrollments repository.EnrollmentRepository, logger *zerolog.Logger) *StatsWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	compLog := logger.With().Str("component", "StatsWorker").Logger()
	return &StatsWorker{interval: interval, enrollments: enrollments, log: &compLog}
}

func (w *StatsWorker) Run(ctx context.Context) error {
	// Run once on startup, then on every tick
	w.Refresh(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Refresh(ctx)
		}
	}
}

func (w *StatsWorker) Refresh(ctx context.Context) {
	counts, err := w.enrollments.CountByStatus(ctx, repository.NoTX)
	if err != nil {
		w.log.Error().Err(err).Msg("count enrollments failed")
		return
	}
	for _, s := range trackedStatuses {
		metrics.SetEnrollmentsByStatus(string(s), counts[s])
	}
}
