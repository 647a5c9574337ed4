package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"saas-payments/internal/domain"
	"saas-payments/internal/domain/model"
	"saas-payments/internal/domain/ports/repository"
)

var _ repository.AccountRepository = (*accountRepo)(nil)

type accountRepo struct{ pool *pgxpool.Pool }

func NewAccountRepo(pool *pgxpool.Pool) *accountRepo {
	return &accountRepo{pool: pool}
}

const accountColumns = `id, email, credit_balance, subscription_credits, subscription_status, subscription_plan_id, subscription_start_at, subscription_end_at, created_at, updated_at`

// FindByID loads an account; inside a transaction the row is locked
// (FOR UPDATE) so reconciliation's read-modify-write is serialized.
func (r *accountRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}

	a := &model.Account{}
	if err := row.Scan(&a.ID, &a.Email, &a.CreditBalance, &a.SubscriptionCredits, &a.SubscriptionStatus, &a.SubscriptionPlanID, &a.SubscriptionStartAt, &a.SubscriptionEndAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return a, nil
}

func (r *accountRepo) Save(ctx context.Context, tx repository.Tx, a *model.Account) error {
	const q = `
INSERT INTO accounts (
  id, email, credit_balance, subscription_credits, subscription_status, subscription_plan_id, subscription_start_at, subscription_end_at, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
) ON CONFLICT (id) DO UPDATE SET
  email=$2, credit_balance=$3, subscription_credits=$4, subscription_status=$5, subscription_plan_id=$6, subscription_start_at=$7, subscription_end_at=$8, updated_at=$10;`

	_, err := execSQL(ctx, r.pool, tx, q, a.ID, a.Email, a.CreditBalance, a.SubscriptionCredits, a.SubscriptionStatus, a.SubscriptionPlanID, a.SubscriptionStartAt, a.SubscriptionEndAt, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}
