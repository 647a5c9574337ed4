package repository

import (
	"context"

	"saas-payments/internal/domain/model"
)

// AccountRepository is the port for the billable fields of an account.
// FindByID inside a transaction locks the row (SELECT ... FOR UPDATE) so the
// reconciliation engine's read-modify-write is serialized per account.
type AccountRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.Account, error)
	Save(ctx context.Context, tx Tx, a *model.Account) error
}
