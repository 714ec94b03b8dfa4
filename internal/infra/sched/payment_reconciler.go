package sched

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"webshop-payments/internal/domain"
	"webshop-payments/internal/domain/ports/repository"
	"webshop-payments/internal/infra/redis"
	"webshop-payments/internal/usecase"
)

// PaymentReconciler periodically scans for payments stuck in submitted and
// re-runs reconciliation for them. This covers the cases where the report
// callback never arrived or the process crashed mid-reconcile. The redis
// lock only dedupes work against concurrent callbacks; the atomic database
// update remains the single authority on who wins.
type PaymentReconciler struct {
	uc         usecase.PaymentUseCase
	payments   repository.PaymentRepository
	locker     redis.Locker
	log        *zerolog.Logger
	interval   time.Duration
	staleAfter time.Duration
	limit      int
}

func NewPaymentReconciler(uc usecase.PaymentUseCase, payments repository.PaymentRepository, locker redis.Locker, logger *zerolog.Logger, interval, staleAfter time.Duration, limit int) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	if limit <= 0 {
		limit = 200
	}
	return &PaymentReconciler{
		uc:         uc,
		payments:   payments,
		locker:     locker,
		log:        logger,
		interval:   interval,
		staleAfter: staleAfter,
		limit:      limit,
	}
}

func (w *PaymentReconciler) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	stale, err := w.payments.ListSubmittedOlderThan(ctx, repository.NoTX, cutoff, w.limit)
	if err != nil {
		w.log.Error().Err(err).Msg("payment-reconciler: list submitted failed")
		return
	}

	for _, p := range stale {
		if _, ok := p.TransactionID(); !ok {
			continue
		}

		lockKey := fmt.Sprintf("reconcile:%d", p.ID)
		token, err := w.locker.TryLock(ctx, lockKey, time.Minute)
		if err != nil {
			if !errors.Is(err, domain.ErrLockNotAcquired) {
				w.log.Warn().Int64("payment_id", p.ID).Err(err).Msg("payment-reconciler: lock failed")
			}
			continue
		}

		if err := w.uc.Reconcile(ctx, p.ID, nil); err != nil {
			w.log.Warn().Int64("payment_id", p.ID).Err(err).Msg("payment-reconciler: reconcile failed")
		} else {
			w.log.Info().Int64("payment_id", p.ID).Msg("payment-reconciler: reconciled")
		}

		if err := w.locker.Unlock(ctx, lockKey, token); err != nil {
			w.log.Warn().Int64("payment_id", p.ID).Err(err).Msg("payment-reconciler: unlock failed")
		}
	}
}
