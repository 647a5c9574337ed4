package payment

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"saas-payments/internal/config"
	"saas-payments/internal/domain"
	"saas-payments/internal/domain/model"
	"saas-payments/internal/domain/ports/adapter"
)

var _ adapter.ProviderResolver = (*Registry)(nil)

// Registry resolves logical provider names to configured, cached backend
// instances. The cache is an explicit keyed store, created once at startup
// and cleared only for reconfiguration or tests; there is no hidden global.
type Registry struct {
	cfg   config.PaymentConfig
	plans *model.PlanRegistry
	log   *zerolog.Logger

	mu    sync.Mutex
	cache map[model.ProviderType]adapter.PaymentProvider
}

func NewRegistry(cfg config.PaymentConfig, plans *model.PlanRegistry, logger *zerolog.Logger) *Registry {
	return &Registry{
		cfg:   cfg,
		plans: plans,
		log:   logger,
		cache: make(map[model.ProviderType]adapter.PaymentProvider),
	}
}

// Resolve picks the backend for the requested type; with an empty request it
// walks default provider, then the first enabled provider, then mock. An
// enabled-but-unconfigured backend falls back to mock exactly once.
func (r *Registry) Resolve(requested model.ProviderType) (adapter.PaymentProvider, error) {
	return r.resolve(requested, false)
}

func (r *Registry) resolve(requested model.ProviderType, fellBack bool) (adapter.PaymentProvider, error) {
	target := requested
	if target == "" {
		target = model.ProviderType(r.cfg.DefaultProvider)
	}
	if target == "" && len(r.cfg.EnabledProviders) > 0 {
		target = model.ProviderType(r.cfg.EnabledProviders[0])
	}
	if target == "" {
		target = model.ProviderMock
	}

	// The mock fallback target is always admissible; explicit targets must
	// be in the enabled set.
	if !fellBack && !r.enabled(target) {
		return nil, fmt.Errorf("provider %s: %w", target, domain.ErrProviderNotEnabled)
	}

	r.mu.Lock()
	cached, ok := r.cache[target]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	p, err := r.instantiate(target)
	if err != nil {
		return nil, err
	}
	if !p.IsConfigured() {
		if fellBack || target == model.ProviderMock {
			return nil, fmt.Errorf("provider %s: %w", target, domain.ErrProviderNotConfigured)
		}
		r.log.Warn().
			Str("provider", string(target)).
			Msg("payment provider enabled but not configured; falling back to mock")
		return r.resolve(model.ProviderMock, true)
	}

	r.mu.Lock()
	r.cache[target] = p
	r.mu.Unlock()
	return p, nil
}

func (r *Registry) instantiate(t model.ProviderType) (adapter.PaymentProvider, error) {
	switch t {
	case model.ProviderStripe:
		return NewStripeProvider(r.cfg.Stripe, r.plans), nil
	case model.ProviderLemonSqueezy:
		return NewLemonSqueezyProvider(r.cfg.LemonSqueezy, r.plans), nil
	case model.ProviderMock:
		return NewMockProvider(r.plans), nil
	default:
		return nil, fmt.Errorf("provider %s: %w", t, domain.ErrProviderNotEnabled)
	}
}

func (r *Registry) enabled(t model.ProviderType) bool {
	for _, e := range r.cfg.EnabledProviders {
		if model.ProviderType(e) == t {
			return true
		}
	}
	return false
}

// ListAvailable enumerates enabled provider types with their live
// configuration status. Instances are built ad hoc; nothing is cached here.
func (r *Registry) ListAvailable() []adapter.ProviderStatus {
	out := make([]adapter.ProviderStatus, 0, len(r.cfg.EnabledProviders))
	for _, e := range r.cfg.EnabledProviders {
		t := model.ProviderType(e)
		p, err := r.instantiate(t)
		if err != nil {
			continue
		}
		out = append(out, adapter.ProviderStatus{Type: t, Configured: p.IsConfigured()})
	}
	return out
}

func (r *Registry) ClearCache() {
	r.mu.Lock()
	r.cache = make(map[model.ProviderType]adapter.PaymentProvider)
	r.mu.Unlock()
}
