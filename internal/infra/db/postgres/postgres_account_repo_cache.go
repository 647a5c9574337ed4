package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"

	"saas-payments/internal/domain/model"
	"saas-payments/internal/domain/ports/repository"
	"saas-payments/internal/infra/metrics"
	red "saas-payments/internal/infra/redis"
)

var _ repository.AccountRepository = (*accountRepoCacheDecorator)(nil)

type accountRepoCacheDecorator struct {
	inner repository.AccountRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewAccountRepoCacheDecorator(inner repository.AccountRepository, cache red.RedisClient, ttl time.Duration) repository.AccountRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &accountRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   ttl,
	}
}

func accountKey(id string) string { return fmt.Sprintf("account:id:%s", id) }

// FindByID serves reads from the cache outside a transaction. Inside one the
// cache is bypassed: reconciliation needs the locked, current row.
func (d *accountRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	if _, ok := tx.(pgx.Tx); ok {
		metrics.IncCacheRequest("account", "bypass")
		return d.inner.FindByID(ctx, tx, id)
	}

	key := accountKey(id)
	if val, err := d.cache.Get(ctx, key); err == nil {
		var acc model.Account
		if json.Unmarshal([]byte(val), &acc) == nil {
			metrics.IncCacheRequest("account", "hit")
			return &acc, nil
		}
	}

	metrics.IncCacheRequest("account", "miss")
	acc, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if acc != nil {
		if bytes, err := json.Marshal(acc); err == nil {
			_ = d.cache.Set(ctx, key, bytes, d.ttl)
		}
	}
	return acc, nil
}

func (d *accountRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, a *model.Account) error {
	_ = d.cache.Del(ctx, accountKey(a.ID))
	return d.inner.Save(ctx, tx, a)
}
