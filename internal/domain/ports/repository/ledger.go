package repository

import (
	"context"

	"saas-payments/internal/domain/model"
)

// LedgerRepository is the append-only ledger port, owned exclusively by the
// reconciliation engine.
type LedgerRepository interface {
	// Insert appends one entry. A uniqueness violation on
	// (account_id, source_logical_id) is returned as domain.ErrAlreadyProcessed.
	Insert(ctx context.Context, tx Tx, e *model.LedgerEntry) error
	FindBySource(ctx context.Context, tx Tx, accountID, sourceLogicalID string) (*model.LedgerEntry, error)
	ListByAccount(ctx context.Context, tx Tx, accountID string, limit int) ([]*model.LedgerEntry, error)
}
