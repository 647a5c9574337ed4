//go:build !integration

package sched

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"saas-payments/internal/domain/model"
	"saas-payments/internal/domain/ports/adapter"
	"saas-payments/internal/domain/ports/repository"
	"saas-payments/internal/usecase"
)

type fakeUC struct {
	mu       sync.Mutex
	verified []string
}

var _ usecase.PaymentUseCase = (*fakeUC)(nil)

func (f *fakeUC) CreateCheckout(ctx context.Context, in usecase.CreateCheckoutInput) (*model.CheckoutSession, error) {
	return nil, nil
}

func (f *fakeUC) Verify(ctx context.Context, callerAccountID, logicalID string, hint model.ProviderType) (*usecase.VerifyOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verified = append(f.verified, callerAccountID+"/"+logicalID)
	return &usecase.VerifyOutcome{Succeeded: true}, nil
}

func (f *fakeUC) HandleCallback(ctx context.Context, providerType model.ProviderType, payload []byte, signature string) (*usecase.ReconcileOutcome, error) {
	return nil, nil
}

func (f *fakeUC) ListPlans(ctx context.Context, hint model.ProviderType) ([]*model.Plan, error) {
	return nil, nil
}

func (f *fakeUC) ListProviders(ctx context.Context) []adapter.ProviderStatus { return nil }

func (f *fakeUC) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.verified...)
}

type fakePaymentRepo struct {
	pending []*model.Payment
}

var _ repository.PaymentRepository = (*fakePaymentRepo)(nil)

func (f *fakePaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	return nil
}

func (f *fakePaymentRepo) FindByLogicalID(ctx context.Context, tx repository.Tx, logicalID string) (*model.Payment, error) {
	return nil, nil
}

func (f *fakePaymentRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, paidAt *time.Time) error {
	return nil
}

func (f *fakePaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	return f.pending, nil
}

func TestVerifyWorker(t *testing.T) {
	logger := zerolog.New(io.Discard)

	t.Run("should re-verify stale pending payments as their own account", func(t *testing.T) {
		uc := &fakeUC{}
		repo := &fakePaymentRepo{pending: []*model.Payment{
			{ID: "p1", AccountID: "acc-1", LogicalID: "sess_1", Provider: model.ProviderMock},
			{ID: "p2", AccountID: "acc-2", LogicalID: "", Provider: model.ProviderMock}, // no session id, skipped
		}}

		w := NewVerifyWorker(uc, repo, 10*time.Millisecond, time.Minute, &logger)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			w.Start(ctx)
			close(done)
		}()

		deadline := time.After(2 * time.Second)
		for len(uc.calls()) == 0 {
			select {
			case <-deadline:
				t.Fatal("worker never verified the stale payment")
			case <-time.After(5 * time.Millisecond):
			}
		}
		cancel()
		<-done

		for _, call := range uc.calls() {
			if call != "acc-1/sess_1" {
				t.Fatalf("unexpected verify call %q", call)
			}
		}
	})

	t.Run("should stop when the context is cancelled", func(t *testing.T) {
		w := NewVerifyWorker(&fakeUC{}, &fakePaymentRepo{}, 10*time.Millisecond, time.Minute, &logger)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			w.Start(ctx)
			close(done)
		}()
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("worker did not stop on cancel")
		}
	})
}
