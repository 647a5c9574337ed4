//go:build !integration

package model_test

import (
	"errors"
	"testing"
	"time"

	"saas-payments/internal/domain"
	"saas-payments/internal/domain/model"
)

func TestNewPlan(t *testing.T) {
	t.Run("should accept both billing types", func(t *testing.T) {
		for _, billing := range []model.BillingType{model.BillingOneTime, model.BillingRecurring} {
			if _, err := model.NewPlan("p1", "Plan", "", 500, 100, billing); err != nil {
				t.Fatalf("billing %s: %v", billing, err)
			}
		}
	})

	t.Run("should reject invalid input", func(t *testing.T) {
		cases := []struct {
			name    string
			id      string
			grant   int64
			price   int64
			billing model.BillingType
		}{
			{"empty id", "", 100, 500, model.BillingOneTime},
			{"zero grant", "p1", 0, 500, model.BillingOneTime},
			{"negative price", "p1", 100, -1, model.BillingOneTime},
			{"unknown billing type", "p1", 100, 500, "weekly"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				if _, err := model.NewPlan(tc.id, "Plan", "", tc.price, tc.grant, tc.billing); !errors.Is(err, domain.ErrInvalidArgument) {
					t.Fatalf("expected ErrInvalidArgument, got %v", err)
				}
			})
		}
	})
}

func TestPlanRegistry(t *testing.T) {
	p1, _ := model.NewPlan("credits_100", "100 Credits", "", 500, 100, model.BillingOneTime)
	p2, _ := model.NewPlan("pro_monthly", "Pro", "", 1900, 800, model.BillingRecurring)

	t.Run("should look up plans and preserve configuration order", func(t *testing.T) {
		reg, err := model.NewPlanRegistry([]*model.Plan{p1, p2})
		if err != nil {
			t.Fatal(err)
		}
		got, err := reg.FindByID("pro_monthly")
		if err != nil || got.CreditGrant != 800 {
			t.Fatalf("FindByID: %v %+v", err, got)
		}
		list := reg.List()
		if len(list) != 2 || list[0].ID != "credits_100" || list[1].ID != "pro_monthly" {
			t.Fatalf("order lost: %+v", list)
		}
	})

	t.Run("should reject duplicate ids", func(t *testing.T) {
		if _, err := model.NewPlanRegistry([]*model.Plan{p1, p1}); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("should report unknown plans", func(t *testing.T) {
		reg, _ := model.NewPlanRegistry([]*model.Plan{p1})
		if _, err := reg.FindByID("nope"); !errors.Is(err, domain.ErrUnknownPlan) {
			t.Fatalf("expected ErrUnknownPlan, got %v", err)
		}
	})
}

func TestAccountHasActiveSubscription(t *testing.T) {
	now := time.Now()
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	cases := []struct {
		name   string
		status model.SubscriptionStatus
		endAt  *time.Time
		want   bool
	}{
		{"active with future end", model.SubscriptionStatusActive, &future, true},
		{"active but expired", model.SubscriptionStatusActive, &past, false},
		{"active without end date", model.SubscriptionStatusActive, nil, false},
		{"past_due", model.SubscriptionStatusPastDue, &future, false},
		{"cancelled", model.SubscriptionStatusCancelled, &future, false},
		{"none", model.SubscriptionStatusNone, nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := &model.Account{SubscriptionStatus: tc.status, SubscriptionEndAt: tc.endAt}
			if got := a.HasActiveSubscription(now); got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}
