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

var _ repository.LedgerRepository = (*ledgerRepo)(nil)

type ledgerRepo struct{ pool *pgxpool.Pool }

func NewLedgerRepo(pool *pgxpool.Pool) *ledgerRepo {
	return &ledgerRepo{pool: pool}
}

const ledgerColumns = `id, account_id, kind, credit_delta, source_logical_id, metadata, created_at`

// Insert appends a ledger entry. The (account_id, source_logical_id) unique
// index turns a concurrent duplicate into ErrAlreadyProcessed.
func (r *ledgerRepo) Insert(ctx context.Context, tx repository.Tx, e *model.LedgerEntry) error {
	const q = `
INSERT INTO ledger_entries (id, account_id, kind, credit_delta, source_logical_id, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7);`

	_, err := execSQL(ctx, r.pool, tx, q, e.ID, e.AccountID, e.Kind, e.CreditDelta, e.SourceLogicalID, e.Metadata, e.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyProcessed
		}
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *ledgerRepo) FindBySource(ctx context.Context, tx repository.Tx, accountID, sourceLogicalID string) (*model.LedgerEntry, error) {
	q := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE account_id=$1 AND source_logical_id=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, accountID, sourceLogicalID)
	if err != nil {
		return nil, err
	}
	return scanLedgerEntry(row)
}

func (r *ledgerRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string, limit int) ([]*model.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE account_id=$1 ORDER BY created_at DESC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if rows.Err() != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func scanLedgerEntry(row pgx.Row) (*model.LedgerEntry, error) {
	e := &model.LedgerEntry{}
	if err := row.Scan(&e.ID, &e.AccountID, &e.Kind, &e.CreditDelta, &e.SourceLogicalID, &e.Metadata, &e.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return e, nil
}
