package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"saas-payments/internal/domain/ports/repository"
	"saas-payments/internal/usecase"
)

// VerifyWorker periodically scans for stale pending payments and re-verifies
// them against their provider. This covers sessions whose callback was lost
// and whose account holder never returned to the success page.
type VerifyWorker struct {
	uc         usecase.PaymentUseCase
	payments   repository.PaymentRepository
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a pending payment must be to retry
	log        *zerolog.Logger
}

func NewVerifyWorker(uc usecase.PaymentUseCase, payments repository.PaymentRepository, interval, staleAfter time.Duration, logger *zerolog.Logger) *VerifyWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	return &VerifyWorker{uc: uc, payments: payments, interval: interval, staleAfter: staleAfter, log: logger}
}

func (w *VerifyWorker) Start(ctx context.Context) {
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

func (w *VerifyWorker) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	pending, err := w.payments.ListPendingOlderThan(ctx, nil, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("verify-worker: list pending failed")
		return
	}
	for _, p := range pending {
		if p.LogicalID == "" {
			continue
		}
		// The stored row's own account is the caller: the worker verifies on
		// behalf of whoever initiated the checkout.
		out, err := w.uc.Verify(ctx, p.AccountID, p.LogicalID, p.Provider)
		if err != nil {
			w.log.Warn().Err(err).
				Str("payment_id", p.ID).
				Str("session_id", p.LogicalID).
				Msg("verify-worker: re-verify failed")
			continue
		}
		w.log.Info().
			Str("payment_id", p.ID).
			Bool("succeeded", out.Succeeded).
			Bool("already_processed", out.AlreadyProcessed).
			Msg("verify-worker: reconciled pending payment")
	}
}
