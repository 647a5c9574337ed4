package model

import (
	"fmt"

	"saas-payments/internal/domain"
)

type BillingType string

const (
	BillingOneTime   BillingType = "one_time"
	BillingRecurring BillingType = "recurring"
)

// Plan is a purchasable offer: either a one-off credit pack or a monthly
// subscription. Plans are immutable and loaded from configuration at startup.
type Plan struct {
	ID              string
	Name            string
	Description     string
	PriceMinorUnits int64
	CreditGrant     int64
	BillingType     BillingType
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

// NewPlan validates and constructs a plan.
func NewPlan(id, name, description string, priceMinorUnits, creditGrant int64, billing BillingType) (*Plan, error) {
	if id == "" || name == "" || creditGrant <= 0 || priceMinorUnits < 0 {
		return nil, domain.ErrInvalidArgument
	}
	if billing != BillingOneTime && billing != BillingRecurring {
		return nil, domain.ErrInvalidArgument
	}
	return &Plan{
		ID:              id,
		Name:            name,
		Description:     description,
		PriceMinorUnits: priceMinorUnits,
		CreditGrant:     creditGrant,
		BillingType:     billing,
	}, nil
}

// PlanRegistry is the static, read-only plan table. It is built once at
// startup and shared by every component that needs plan lookups.
type PlanRegistry struct {
	byID  map[string]*Plan
	order []string
}

func NewPlanRegistry(plans []*Plan) (*PlanRegistry, error) {
	r := &PlanRegistry{byID: make(map[string]*Plan, len(plans))}
	for _, p := range plans {
		if p.IsZero() {
			return nil, domain.ErrInvalidArgument
		}
		if p.CreditGrant <= 0 || p.PriceMinorUnits < 0 {
			return nil, fmt.Errorf("plan %s: %w", p.ID, domain.ErrInvalidArgument)
		}
		if _, dup := r.byID[p.ID]; dup {
			return nil, fmt.Errorf("plan %s: duplicate id: %w", p.ID, domain.ErrInvalidArgument)
		}
		r.byID[p.ID] = p
		r.order = append(r.order, p.ID)
	}
	return r, nil
}

func (r *PlanRegistry) FindByID(id string) (*Plan, error) {
	p, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUnknownPlan
	}
	return p, nil
}

// List returns plans in configuration order.
func (r *PlanRegistry) List() []*Plan {
	out := make([]*Plan, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}
