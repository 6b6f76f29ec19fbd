package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"edtech-enrollment/internal/domain/ports/adapter"
	"edtech-enrollment/internal/domain/ports/repository"
	"edtech-enrollment/internal/infra/metrics"
	"edtech-enrollment/internal/infra/redis"
)

// SweepLockKey serializes sweeps across replicas.
const SweepLockKey = "lock:pending-sweep"

// Confirmer verifies a reference with the provider and applies it when settled.
type Confirmer interface {
	ConfirmByReference(ctx context.Context, reference string) (*adapter.VerifyResult, error)
}

// PendingSweeper periodically re-checks enrollments that stayed pending, so that a
// lost webhook does not leave a paid enrollment unpaid.
type PendingSweeper struct {
	uc          Confirmer
	enrollments repository.EnrollmentRepository
	locker      redis.Locker // optional
	interval    time.Duration
	staleAfter  time.Duration
	maxAge      time.Duration
	batch       int
	log         *zerolog.Logger
}

type SweeperConfig struct {
	Interval   time.Duration // how often to scan
	StaleAfter time.Duration // how old a pending enrollment must be to re-check
	MaxAge     time.Duration // older pending enrollments are given up on
	BatchSize  int
}

func NewPendingSweeper(uc Confirmer, enrollments repository.EnrollmentRepository, locker redis.Locker, cfg SweeperConfig, logger *zerolog.Logger) *PendingSweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 15 * time.Minute
	}
	if cfg.MaxAge <= cfg.StaleAfter {
		cfg.MaxAge = cfg.StaleAfter + 72*time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	compLog := logger.With().Str("component", "PendingSweeper").Logger()
	return &PendingSweeper{
		uc:          uc,
		enrollments: enrollments,
		locker:      locker,
		interval:    cfg.Interval,
		staleAfter:  cfg.StaleAfter,
		maxAge:      cfg.MaxAge,
		batch:       cfg.BatchSize,
		log:         &compLog,
	}
}

func (w *PendingSweeper) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("stale_after", w.staleAfter).Dur("max_age", w.maxAge).Msg("Starting pending sweeper")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping pending sweeper")
			return ctx.Err()
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one pass and returns how many enrollments were confirmed as paid.
func (w *PendingSweeper) Sweep(ctx context.Context) int {
	if w.locker != nil {
		token, err := w.locker.TryLock(ctx, SweepLockKey, w.interval)
		switch {
		case errors.Is(err, redis.ErrLockHeld):
			w.log.Debug().Msg("sweep skipped; another instance holds the lock")
			return 0
		case err != nil:
			// redis down: sweeping twice is harmless, so carry on
			w.log.Warn().Err(err).Msg("sweep lock unavailable")
		default:
			defer func() {
				if err := w.locker.Unlock(context.Background(), SweepLockKey, token); err != nil {
					w.log.Warn().Err(err).Msg("sweep unlock failed")
				}
			}()
		}
	}

	now := time.Now()
	pending, err := w.enrollments.ListPendingForSweep(ctx, repository.NoTX, now.Add(-w.staleAfter), now.Add(-w.maxAge), w.batch)
	if err != nil {
		w.log.Error().Err(err).Msg("list pending enrollments failed")
		return 0
	}

	confirmed := 0
	checked := make([]string, 0, len(pending))
	defer func() {
		if err := w.enrollments.MarkSwept(context.Background(), repository.NoTX, checked, now); err != nil {
			w.log.Warn().Err(err).Int("count", len(checked)).Msg("mark swept failed")
		}
	}()
	for _, e := range pending {
		if ctx.Err() != nil {
			break
		}
		checked = append(checked, e.ID)
		vr, err := w.uc.ConfirmByReference(ctx, e.ID)
		if err != nil {
			metrics.IncPendingSweep("error")
			w.log.Warn().Err(err).Str("reference", e.ID).Msg("confirm pending enrollment failed")
			continue
		}
		if vr.Status == "success" {
			confirmed++
			metrics.IncPendingSweep("confirmed")
			w.log.Info().Str("reference", e.ID).Msg("pending enrollment confirmed by provider")
			continue
		}
		metrics.IncPendingSweep("still_pending")
	}
	if len(checked) > 0 {
		w.log.Info().Int("checked", len(checked)).Int("confirmed", confirmed).Msg("pending sweep finished")
	}
	return confirmed
}
