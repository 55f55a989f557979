package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"callcenter-billing/internal/domain"
	"callcenter-billing/internal/domain/ports/repository"
	"callcenter-billing/internal/usecase"
)

// PaymentReconciler periodically scans for stale pending payments and tries
// to finalize them by re-attempting capture. This covers the window where a
// webhook was lost or the process crashed between gateway capture and local
// persistence; orders the buyer never approved stay pending and are swept
// again next tick.
type PaymentReconciler struct {
	uc         usecase.PaymentUseCase
	payments   repository.PaymentRepository
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a pending payment must be to retry
	log        *zerolog.Logger
}

func NewPaymentReconciler(uc usecase.PaymentUseCase, payments repository.PaymentRepository, interval, staleAfter time.Duration, logger *zerolog.Logger) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	return &PaymentReconciler{uc: uc, payments: payments, interval: interval, staleAfter: staleAfter, log: logger}
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
	pending, err := w.payments.ListPendingOlderThan(ctx, repository.NoTX, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("payment reconciler: list pending failed")
		return
	}
	for _, p := range pending {
		if p.ExternalOrderID == "" {
			continue
		}
		res, err := w.uc.CaptureOrder(ctx, p.ExternalOrderID, p.TenantID)
		if err != nil {
			if errors.Is(err, domain.ErrLockBusy) {
				continue // someone else is capturing right now
			}
			w.log.Warn().Err(err).
				Str("payment_id", p.ID).
				Str("external_order_id", p.ExternalOrderID).
				Msg("payment reconciler: capture retry failed")
			continue
		}
		if res.Success {
			w.log.Info().Str("payment_id", p.ID).Msg("payment reconciler: reconciled payment")
		}
	}
}
