// File: internal/usecase/reconcile_uc.go
package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"saas-payments/internal/domain"
	"saas-payments/internal/domain/model"
	"saas-payments/internal/domain/ports/repository"
	"saas-payments/internal/infra/metrics"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

// ReconcileOutcome reports what one reconciliation call did.
type ReconcileOutcome struct {
	Applied          bool
	AlreadyProcessed bool
	Kind             model.LedgerKind
	CreditDelta      int64
	Account          *model.Account
}

// ReconcileUseCase converts a verified payment event into durable account
// state, exactly once per (account, source logical id). Both the synchronous
// verify path and the asynchronous callback path call Apply; there is no
// other writer of credit or subscription state.
type ReconcileUseCase interface {
	Apply(ctx context.Context, ev *model.PaymentEvent) (*ReconcileOutcome, error)
}

type reconcileUC struct {
	accounts repository.AccountRepository
	ledger   repository.LedgerRepository
	plans    *model.PlanRegistry
	tm       repository.TransactionManager
	log      *zerolog.Logger
	now      func() time.Time
}

func NewReconcileUseCase(
	accounts repository.AccountRepository,
	ledger repository.LedgerRepository,
	plans *model.PlanRegistry,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *reconcileUC {
	return &reconcileUC{
		accounts: accounts,
		ledger:   ledger,
		plans:    plans,
		tm:       tm,
		log:      logger,
		now:      time.Now,
	}
}

func (u *reconcileUC) Apply(ctx context.Context, ev *model.PaymentEvent) (*ReconcileOutcome, error) {
	if err := validateSourceID(ev.SourceLogicalID); err != nil {
		return nil, err
	}
	if ev.AccountID == "" {
		return nil, domain.ErrInvalidArgument
	}

	out := &ReconcileOutcome{}
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		return u.applyTx(ctx, tx, ev, out)
	})
	switch {
	case err == nil:
		metrics.IncReconcile(string(out.Kind), outcomeLabel(out))
		return out, nil
	case errors.Is(err, domain.ErrAlreadyProcessed):
		// A concurrent delivery won the ledger insert; the payment is
		// credited, so this delivery is a success.
		out.Applied = false
		out.AlreadyProcessed = true
		metrics.IncReconcile(string(ev.Type), "duplicate")
		return out, nil
	case errors.Is(err, domain.ErrAlreadySubscribed):
		metrics.IncReconcile(string(ev.Type), "rejected")
		return nil, err
	default:
		return nil, err
	}
}

func (u *reconcileUC) applyTx(ctx context.Context, tx repository.Tx, ev *model.PaymentEvent, out *ReconcileOutcome) error {
	existing, err := u.ledger.FindBySource(ctx, tx, ev.AccountID, ev.SourceLogicalID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if existing != nil {
		out.AlreadyProcessed = true
		out.Kind = existing.Kind
		return nil
	}

	acc, err := u.accounts.FindByID(ctx, tx, ev.AccountID)
	if err != nil {
		return err
	}

	now := u.now()
	var entry *model.LedgerEntry

	switch ev.Type {
	case model.EventCheckoutCompleted:
		grant, billing, err := u.resolveGrant(ev)
		if err != nil {
			return err
		}
		if billing == model.BillingOneTime {
			acc.CreditBalance += grant
			entry = u.newEntry(ev, model.LedgerCreditAdd, grant, now)
		} else {
			if acc.HasActiveSubscription(now) {
				return domain.ErrAlreadySubscribed
			}
			u.activate(acc, ev.PlanID, grant, now)
			entry = u.newEntry(ev, model.LedgerSubscriptionActivated, grant, now)
		}

	case model.EventSubscriptionRenewed:
		// Only an existing subscription can renew. A late renewal arriving
		// after cancellation must not resurrect it, and an account that
		// never subscribed cannot be activated by a renewal event.
		if acc.SubscriptionStatus != model.SubscriptionStatusActive &&
			acc.SubscriptionStatus != model.SubscriptionStatusPastDue {
			u.log.Warn().
				Str("account_id", acc.ID).
				Str("status", string(acc.SubscriptionStatus)).
				Str("source", ev.SourceLogicalID).
				Msg("renewal for non-renewable subscription ignored")
			out.Account = acc
			return nil
		}
		grant, _, err := u.resolveGrant(ev)
		if err != nil {
			return err
		}
		// Renewal replaces subscription credits wholesale; unused credits
		// do not stack.
		u.activate(acc, ev.PlanID, grant, now)
		entry = u.newEntry(ev, model.LedgerSubscriptionRenewal, grant, now)

	case model.EventSubscriptionCancelled:
		acc.SubscriptionCredits = 0
		acc.SubscriptionStatus = model.SubscriptionStatusCancelled
		acc.SubscriptionEndAt = &now
		entry = u.newEntry(ev, model.LedgerSubscriptionExpired, 0, now)

	case model.EventPaymentFailed:
		if acc.SubscriptionStatus == model.SubscriptionStatusActive {
			acc.SubscriptionStatus = model.SubscriptionStatusPastDue
			acc.UpdatedAt = now
			if err := u.accounts.Save(ctx, tx, acc); err != nil {
				return err
			}
		}
		// No credit movement, no ledger entry.
		out.Applied = true
		out.Account = acc
		return nil

	default:
		return domain.ErrInvalidArgument
	}

	acc.UpdatedAt = now
	if err := u.accounts.Save(ctx, tx, acc); err != nil {
		return err
	}
	// Ledger insert is the last write: its uniqueness constraint is the
	// atomically-enforced idempotency guard, and a crash before it leaves a
	// safely re-processable payment rather than a silently lost one.
	if err := u.ledger.Insert(ctx, tx, entry); err != nil {
		return err
	}

	out.Applied = true
	out.Kind = entry.Kind
	out.CreditDelta = entry.CreditDelta
	out.Account = acc
	return nil
}

func (u *reconcileUC) activate(acc *model.Account, planID string, grant int64, now time.Time) {
	end := now.AddDate(0, 1, 0)
	acc.SubscriptionCredits = grant
	acc.SubscriptionStatus = model.SubscriptionStatusActive
	acc.SubscriptionPlanID = planID
	acc.SubscriptionStartAt = &now
	acc.SubscriptionEndAt = &end
}

// resolveGrant prefers the event's own grant and falls back to the plan table.
func (u *reconcileUC) resolveGrant(ev *model.PaymentEvent) (int64, model.BillingType, error) {
	if ev.CreditGrant > 0 && ev.BillingType != "" {
		return ev.CreditGrant, ev.BillingType, nil
	}
	plan, err := u.plans.FindByID(ev.PlanID)
	if err != nil {
		return 0, "", err
	}
	return plan.CreditGrant, plan.BillingType, nil
}

func (u *reconcileUC) newEntry(ev *model.PaymentEvent, kind model.LedgerKind, delta int64, now time.Time) *model.LedgerEntry {
	return &model.LedgerEntry{
		ID:              ulid.Make().String(),
		AccountID:       ev.AccountID,
		Kind:            kind,
		CreditDelta:     delta,
		SourceLogicalID: ev.SourceLogicalID,
		Metadata: map[string]string{
			"provider": string(ev.Provider),
			"plan_id":  ev.PlanID,
			"event":    string(ev.Type),
		},
		CreatedAt: now,
	}
}

// validateSourceID rejects placeholder or empty identifiers: the ledger key
// must be the canonical provider-issued id, never a template token a client
// forwarded unresolved.
func validateSourceID(id string) error {
	if id == "" {
		return domain.ErrInvalidArgument
	}
	if strings.Contains(id, "{") || strings.Contains(id, "}") {
		return domain.ErrInvalidArgument
	}
	if strings.EqualFold(id, model.SessionIDPlaceholder) {
		return domain.ErrInvalidArgument
	}
	return nil
}

func outcomeLabel(out *ReconcileOutcome) string {
	switch {
	case out.AlreadyProcessed:
		return "duplicate"
	case !out.Applied:
		return "ignored"
	default:
		return "applied"
	}
}
