package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"webshop-payments/internal/domain"
	"webshop-payments/internal/domain/model"
	"webshop-payments/internal/domain/ports/adapter"
	"webshop-payments/internal/domain/ports/repository"
)

// memPaymentRepo is a stateful in-memory PaymentRepository. It applies the
// same compare-and-set rules as the Postgres implementation so race and
// duplicate scenarios can be exercised without a database. Any function
// field, when set, overrides the default behavior.
type memPaymentRepo struct {
	mu       sync.Mutex
	payments map[int64]*model.Payment
	blobs    map[int64][]string

	FindByIDFunc      func(ctx context.Context, id int64) (*model.Payment, error)
	BindUniqueKeyFunc func(ctx context.Context, id int64, key string) (bool, error)
	MarkPassedFunc    func(ctx context.Context, id int64) (bool, error)
	MarkSucceededFunc func(ctx context.Context, id int64) (bool, error)
	MarkAbortedFunc   func(ctx context.Context, id int64) (bool, error)
}

func newMemPaymentRepo(payments ...*model.Payment) *memPaymentRepo {
	r := &memPaymentRepo{
		payments: make(map[int64]*model.Payment),
		blobs:    make(map[int64][]string),
	}
	for _, p := range payments {
		r.payments[p.ID] = p
	}
	return r
}

func (r *memPaymentRepo) FindByID(ctx context.Context, _ repository.Tx, id int64) (*model.Payment, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, fmt.Errorf("%w: payment %d", domain.ErrNotFound, id)
	}
	cp := *p
	return &cp, nil
}

func (r *memPaymentRepo) BindUniqueKey(ctx context.Context, _ repository.Tx, id int64, key string) (bool, error) {
	if r.BindUniqueKeyFunc != nil {
		return r.BindUniqueKeyFunc(ctx, id, key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok || p.State != model.PaymentStateNew || p.UniqueKey != "" {
		return false, nil
	}
	p.UniqueKey = key
	p.State = model.PaymentStateSubmitted
	return true, nil
}

func (r *memPaymentRepo) MarkPassed(ctx context.Context, _ repository.Tx, id int64) (bool, error) {
	if r.MarkPassedFunc != nil {
		return r.MarkPassedFunc(ctx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok || p.State != model.PaymentStateSubmitted || p.IsSuccess != nil {
		return false, nil
	}
	p.State = model.PaymentStateFinal
	return true, nil
}

func (r *memPaymentRepo) MarkSucceeded(ctx context.Context, _ repository.Tx, id int64) (bool, error) {
	if r.MarkSucceededFunc != nil {
		return r.MarkSucceededFunc(ctx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok || p.State != model.PaymentStateFinal || p.IsSuccess != nil {
		return false, nil
	}
	yes := true
	p.IsSuccess = &yes
	return true, nil
}

func (r *memPaymentRepo) MarkAborted(ctx context.Context, _ repository.Tx, id int64) (bool, error) {
	if r.MarkAbortedFunc != nil {
		return r.MarkAbortedFunc(ctx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok || p.State != model.PaymentStateSubmitted || p.IsSuccess != nil {
		return false, nil
	}
	no := false
	p.State = model.PaymentStateFinal
	p.IsSuccess = &no
	return true, nil
}

func (r *memPaymentRepo) AppendAuditBlob(_ context.Context, _ repository.Tx, id int64, blob string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blobs[id] = append(r.blobs[id], blob)
	return nil
}

func (r *memPaymentRepo) ListSubmittedOlderThan(_ context.Context, _ repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Payment
	for _, p := range r.payments {
		if p.State == model.PaymentStateSubmitted && p.UpdatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memPaymentRepo) get(id int64) *model.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.payments[id]
}

// mockGateway is a ProviderGateway driven by function fields.
type mockGateway struct {
	name      string
	sub       string
	startFunc func(ctx context.Context, sess *adapter.ProviderSession) (string, string, error)
	checkFunc func(ctx context.Context, sess *adapter.ProviderSession) (model.StatusOutcome, error)
}

func (g *mockGateway) Name() string      { return g.name }
func (g *mockGateway) Submethod() string { return g.sub }

func (g *mockGateway) StartTransaction(ctx context.Context, sess *adapter.ProviderSession) (string, string, error) {
	if g.startFunc == nil {
		return "", "", fmt.Errorf("unexpected StartTransaction call")
	}
	return g.startFunc(ctx, sess)
}

func (g *mockGateway) CheckStatus(ctx context.Context, sess *adapter.ProviderSession) (model.StatusOutcome, error) {
	if g.checkFunc == nil {
		return model.StatusOutcome{}, fmt.Errorf("unexpected CheckStatus call")
	}
	return g.checkFunc(ctx, sess)
}

// mockBus records published events.
type mockBus struct {
	mu     sync.Mutex
	events []string // "<payment id>:<change>"
	err    error
}

func (b *mockBus) PaymentUpdated(_ context.Context, p *model.Payment, change string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.events = append(b.events, fmt.Sprintf("%d:%s", p.ID, change))
	return nil
}

func (b *mockBus) all() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.events...)
}
