package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"saas-payments/internal/domain"
	"saas-payments/internal/domain/model"
	"saas-payments/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, account_id, plan_id, provider, logical_id, amount, currency, status, redirect_url, created_at, updated_at, paid_at`

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (id, account_id, plan_id, provider, logical_id, amount, currency, status, redirect_url, created_at, updated_at, paid_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO UPDATE SET
  status=$8, redirect_url=$9, updated_at=$11, paid_at=COALESCE(payments.paid_at, $12);`

	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.AccountID, p.PlanID, p.Provider, p.LogicalID, p.Amount, p.Currency, p.Status, p.RedirectURL, p.CreatedAt, p.UpdatedAt, p.PaidAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) FindByLogicalID(ctx context.Context, tx repository.Tx, logicalID string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE logical_id=$1 ORDER BY created_at DESC LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, logicalID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

// UpdateStatus moves a payment to its terminal status. paid_at, once set,
// never changes.
func (r *paymentRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, paidAt *time.Time) error {
	const q = `
UPDATE payments SET status=$2, updated_at=now(), paid_at=COALESCE(paid_at, $3) WHERE id=$1;`

	tag, err := execSQL(ctx, r.pool, tx, q, id, status, paidAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE status=$1 AND created_at < $2 ORDER BY created_at ASC LIMIT $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, model.PaymentStatusPending, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	if err := row.Scan(&p.ID, &p.AccountID, &p.PlanID, &p.Provider, &p.LogicalID, &p.Amount, &p.Currency, &p.Status, &p.RedirectURL, &p.CreatedAt, &p.UpdatedAt, &p.PaidAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}
