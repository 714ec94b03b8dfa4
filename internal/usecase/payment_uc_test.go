package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"webshop-payments/internal/domain"
	"webshop-payments/internal/domain/model"
	"webshop-payments/internal/domain/ports/adapter"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func newPayment(id int64, state model.PaymentState, key string) *model.Payment {
	return &model.Payment{
		ID:          id,
		State:       state,
		UniqueKey:   key,
		Amount:      1250,
		Description: "order 4711",
		Realm:       "shop.example.com",
	}
}

func idealGateway() *mockGateway {
	return &mockGateway{name: "targetpay", sub: "ideal"}
}

func TestInitiate(t *testing.T) {
	ctx := context.Background()

	t.Run("should start the transaction and bind the unique key once", func(t *testing.T) {
		// Arrange
		repo := newMemPaymentRepo(newPayment(1, model.PaymentStateNew, ""))
		gw := idealGateway()
		gw.startFunc = func(_ context.Context, sess *adapter.ProviderSession) (string, string, error) {
			if sess.Payment.ID != 1 {
				t.Errorf("unexpected payment %d", sess.Payment.ID)
			}
			return "177XXX584", "https://example/launch?x=1", nil
		}
		uc := NewPaymentUseCase(repo, []adapter.ProviderGateway{gw}, &mockBus{}, testLogger())

		// Act
		redirect, err := uc.Initiate(ctx, 1, "ideal", InitiateOptions{})

		// Assert
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if redirect != "https://example/launch?x=1" {
			t.Errorf("unexpected redirect %q", redirect)
		}
		p := repo.get(1)
		if p.UniqueKey != "ideal-177XXX584" {
			t.Errorf("expected unique key ideal-177XXX584, got %q", p.UniqueKey)
		}
		if p.State != model.PaymentStateSubmitted {
			t.Errorf("expected submitted, got %s", p.State)
		}
	})

	t.Run("should pass the caller inputs through to the gateway", func(t *testing.T) {
		repo := newMemPaymentRepo(newPayment(1, model.PaymentStateNew, ""))
		gw := &mockGateway{name: "targetpay", sub: "mrcash"}
		gw.startFunc = func(_ context.Context, sess *adapter.ProviderSession) (string, string, error) {
			if sess.Locale != "fr_BE" || sess.RemoteAddr != "10.20.30.40" {
				t.Errorf("caller inputs lost: %q %q", sess.Locale, sess.RemoteAddr)
			}
			return "42X", "https://example/launch", nil
		}
		uc := NewPaymentUseCase(repo, []adapter.ProviderGateway{gw}, &mockBus{}, testLogger())

		if _, err := uc.Initiate(ctx, 1, "mrcash", InitiateOptions{Locale: "fr_BE", RemoteAddr: "10.20.30.40"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("should refuse a payment that already carries a unique key", func(t *testing.T) {
		repo := newMemPaymentRepo(newPayment(1, model.PaymentStateSubmitted, "ideal-177XXX584"))
		gw := idealGateway()
		gw.startFunc = func(_ context.Context, _ *adapter.ProviderSession) (string, string, error) {
			t.Error("no remote call may be made for an already-initiated payment")
			return "", "", nil
		}
		uc := NewPaymentUseCase(repo, []adapter.ProviderGateway{gw}, &mockBus{}, testLogger())

		_, err := uc.Initiate(ctx, 1, "ideal", InitiateOptions{})
		if !errors.Is(err, domain.ErrDuplicateInitiation) {
			t.Fatalf("expected ErrDuplicateInitiation, got %v", err)
		}
	})

	t.Run("should surface a lost bind race without overwriting", func(t *testing.T) {
		repo := newMemPaymentRepo(newPayment(1, model.PaymentStateNew, ""))
		repo.BindUniqueKeyFunc = func(_ context.Context, _ int64, _ string) (bool, error) {
			return false, nil
		}
		gw := idealGateway()
		gw.startFunc = func(_ context.Context, _ *adapter.ProviderSession) (string, string, error) {
			return "177XXX584", "https://example/launch", nil
		}
		uc := NewPaymentUseCase(repo, []adapter.ProviderGateway{gw}, &mockBus{}, testLogger())

		redirect, err := uc.Initiate(ctx, 1, "ideal", InitiateOptions{})
		if !errors.Is(err, domain.ErrDuplicateInitiation) {
			t.Fatalf("expected ErrDuplicateInitiation, got %v", err)
		}
		if redirect != "" {
			t.Errorf("a failed initiation must not return a redirect, got %q", redirect)
		}
	})

	t.Run("should not bind anything when the provider rejects", func(t *testing.T) {
		repo := newMemPaymentRepo(newPayment(1, model.PaymentStateNew, ""))
		gw := idealGateway()
		gw.startFunc = func(_ context.Context, _ *adapter.ProviderSession) (string, string, error) {
			return "", "", fmt.Errorf("%w: TP0001 No layoutcode", domain.ErrProviderRejected)
		}
		uc := NewPaymentUseCase(repo, []adapter.ProviderGateway{gw}, &mockBus{}, testLogger())

		_, err := uc.Initiate(ctx, 1, "ideal", InitiateOptions{})
		if !errors.Is(err, domain.ErrProviderRejected) {
			t.Fatalf("expected ErrProviderRejected, got %v", err)
		}
		if p := repo.get(1); p.UniqueKey != "" || p.State != model.PaymentStateNew {
			t.Errorf("payment must stay untouched, got %s / %q", p.State, p.UniqueKey)
		}
	})

	t.Run("should reject an unknown submethod", func(t *testing.T) {
		repo := newMemPaymentRepo(newPayment(1, model.PaymentStateNew, ""))
		uc := NewPaymentUseCase(repo, []adapter.ProviderGateway{idealGateway()}, &mockBus{}, testLogger())

		_, err := uc.Initiate(ctx, 1, "paysafecard", InitiateOptions{})
		if !errors.Is(err, domain.ErrConfiguration) {
			t.Fatalf("expected ErrConfiguration, got %v", err)
		}
	})

	t.Run("should propagate a missing payment", func(t *testing.T) {
		uc := NewPaymentUseCase(newMemPaymentRepo(), []adapter.ProviderGateway{idealGateway()}, &mockBus{}, testLogger())

		_, err := uc.Initiate(ctx, 99, "ideal", InitiateOptions{})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	paid := model.StatusOutcome{Kind: model.OutcomePaid, Code: "000000", Text: "OK"}

	t.Run("should finalize a paid payment and notify exactly once", func(t *testing.T) {
		// Arrange
		repo := newMemPaymentRepo(newPayment(1, model.PaymentStateSubmitted, "ideal-177XXX584"))
		gw := idealGateway()
		gw.checkFunc = func(_ context.Context, _ *adapter.ProviderSession) (model.StatusOutcome, error) {
			return paid, nil
		}
		bus := &mockBus{}
		uc := NewPaymentUseCase(repo, []adapter.ProviderGateway{gw}, bus, testLogger())

		// Act
		err := uc.Reconcile(ctx, 1, url.Values{"trxid": {"177XXX584"}, "rtlo": {"93939"}})

		// Assert
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		p := repo.get(1)
		if p.State != model.PaymentStateFinal || p.IsSuccess == nil || !*p.IsSuccess {
			t.Fatalf("expected final success, got %s / %v", p.State, p.IsSuccess)
		}
		if events := bus.all(); len(events) != 1 || events[0] != "1:passed" {
			t.Errorf("expected one passed event, got %v", events)
		}
		blobs := repo.blobs[1]
		if len(blobs) != 1 {
			t.Fatalf("expected one audit blob, got %d", len(blobs))
		}
		if !strings.HasPrefix(blobs[0], "targetpay.ideal: ") || !strings.Contains(blobs[0], "177XXX584") {
			t.Errorf("unexpected audit blob %q", blobs[0])
		}
	})

	t.Run("should swallow a duplicate paid notification", func(t *testing.T) {
		repo := newMemPaymentRepo(newPayment(1, model.PaymentStateSubmitted, "ideal-177XXX584"))
		gw := idealGateway()
		gw.checkFunc = func(_ context.Context, _ *adapter.ProviderSession) (model.StatusOutcome, error) {
			return paid, nil
		}
		bus := &mockBus{}
		uc := NewPaymentUseCase(repo, []adapter.ProviderGateway{gw}, bus, testLogger())

		if err := uc.Reconcile(ctx, 1, nil); err != nil {
			t.Fatalf("first delivery: expected no error, got %v", err)
		}
		if err := uc.Reconcile(ctx, 1, nil); err != nil {
			t.Fatalf("replayed delivery: expected nil, got %v", err)
		}
		if events := bus.all(); len(events) != 1 {
			t.Errorf("replay must not notify again, got %v", events)
		}
		if blobs := repo.blobs[1]; len(blobs) != 1 {
			t.Errorf("replay must not audit again, got %d blobs", len(blobs))
		}
	})

	t.Run("should report a conflict when the terminal outcome disagrees", func(t *testing.T) {
		// Already aborted locally; the provider now claims paid.
		no := false
		p := newPayment(1, model.PaymentStateFinal, "ideal-177XXX584")
		p.IsSuccess = &no
		repo := newMemPaymentRepo(p)
		gw := idealGateway()
		gw.checkFunc = func(_ context.Context, _ *adapter.ProviderSession) (model.StatusOutcome, error) {
			return paid, nil
		}
		bus := &mockBus{}
		uc := NewPaymentUseCase(repo, []adapter.ProviderGateway{gw}, bus, testLogger())

		err := uc.Reconcile(ctx, 1, nil)
		if !errors.Is(err, domain.ErrReconciliationConflict) {
			t.Fatalf("expected ErrReconciliationConflict, got %v", err)
		}
		if events := bus.all(); len(events) != 0 {
			t.Errorf("a conflict must not notify, got %v", events)
		}
	})

	t.Run("should abort a submitted payment", func(t *testing.T) {
		repo := newMemPaymentRepo(newPayment(1, model.PaymentStateSubmitted, "ideal-177XXX584"))
		gw := idealGateway()
		gw.checkFunc = func(_ context.Context, _ *adapter.ProviderSession) (model.StatusOutcome, error) {
			return model.StatusOutcome{Kind: model.OutcomeAborted, Code: "TP0012", Text: "Transaction has expired"}, nil
		}
		bus := &mockBus{}
		uc := NewPaymentUseCase(repo, []adapter.ProviderGateway{gw}, bus, testLogger())

		if err := uc.Reconcile(ctx, 1, nil); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		p := repo.get(1)
		if p.State != model.PaymentStateFinal || p.IsSuccess == nil || *p.IsSuccess {
			t.Fatalf("expected final failure, got %s / %v", p.State, p.IsSuccess)
		}
		if events := bus.all(); len(events) != 1 || events[0] != "1:aborted" {
			t.Errorf("expected one aborted event, got %v", events)
		}
	})

	t.Run("should treat a replayed abort as benign", func(t *testing.T) {
		no := false
		p := newPayment(1, model.PaymentStateFinal, "ideal-177XXX584")
		p.IsSuccess = &no
		repo := newMemPaymentRepo(p)
		gw := idealGateway()
		gw.checkFunc = func(_ context.Context, _ *adapter.ProviderSession) (model.StatusOutcome, error) {
			return model.StatusOutcome{Kind: model.OutcomeAborted, Code: "TP0011", Text: "Transaction failed"}, nil
		}
		uc := NewPaymentUseCase(repo, []adapter.ProviderGateway{gw}, &mockBus{}, testLogger())

		if err := uc.Reconcile(ctx, 1, nil); err != nil {
			t.Fatalf("expected nil, got %v", err)
		}
	})

	t.Run("should leave a pending payment alone on not-yet-completed", func(t *testing.T) {
		repo := newMemPaymentRepo(newPayment(1, model.PaymentStateSubmitted, "ideal-177XXX584"))
		gw := idealGateway()
		gw.checkFunc = func(_ context.Context, _ *adapter.ProviderSession) (model.StatusOutcome, error) {
			return model.StatusOutcome{Kind: model.OutcomeNotYetCompleted, Code: "TP0010", Text: "Transaction has not been completed"}, nil
		}
		uc := NewPaymentUseCase(repo, []adapter.ProviderGateway{gw}, &mockBus{}, testLogger())

		if err := uc.Reconcile(ctx, 1, nil); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if p := repo.get(1); p.State != model.PaymentStateSubmitted {
			t.Errorf("payment must stay submitted, got %s", p.State)
		}
	})

	t.Run("should flag not-yet-completed against a final payment", func(t *testing.T) {
		// The creditcard override reports failed attempts as non-final; once
		// the local record is terminal, that combination is an inconsistency.
		yes := true
		p := newPayment(1, model.PaymentStateFinal, "creditcard-42X")
		p.IsSuccess = &yes
		repo := newMemPaymentRepo(p)
		gw := &mockGateway{name: "targetpay", sub: "creditcard"}
		gw.checkFunc = func(_ context.Context, _ *adapter.ProviderSession) (model.StatusOutcome, error) {
			return model.StatusOutcome{Kind: model.OutcomeNotYetCompleted, Code: "TP0011", Text: "Transaction failed"}, nil
		}
		uc := NewPaymentUseCase(repo, []adapter.ProviderGateway{gw}, &mockBus{}, testLogger())

		err := uc.Reconcile(ctx, 1, nil)
		if !errors.Is(err, domain.ErrStateInconsistent) {
			t.Fatalf("expected ErrStateInconsistent, got %v", err)
		}
	})

	t.Run("should flag already-used against a non-final payment", func(t *testing.T) {
		repo := newMemPaymentRepo(newPayment(1, model.PaymentStateSubmitted, "ideal-177XXX584"))
		gw := idealGateway()
		gw.checkFunc = func(_ context.Context, _ *adapter.ProviderSession) (model.StatusOutcome, error) {
			return model.StatusOutcome{Kind: model.OutcomeAlreadyUsed, Code: "TP0014", Text: "Already used"}, nil
		}
		uc := NewPaymentUseCase(repo, []adapter.ProviderGateway{gw}, &mockBus{}, testLogger())

		err := uc.Reconcile(ctx, 1, nil)
		if !errors.Is(err, domain.ErrStateInconsistent) {
			t.Fatalf("expected ErrStateInconsistent, got %v", err)
		}
	})

	t.Run("should accept already-used on an already-final payment", func(t *testing.T) {
		yes := true
		p := newPayment(1, model.PaymentStateFinal, "ideal-177XXX584")
		p.IsSuccess = &yes
		repo := newMemPaymentRepo(p)
		gw := idealGateway()
		gw.checkFunc = func(_ context.Context, _ *adapter.ProviderSession) (model.StatusOutcome, error) {
			return model.StatusOutcome{Kind: model.OutcomeAlreadyUsed, Code: "TP0014", Text: "Already used"}, nil
		}
		uc := NewPaymentUseCase(repo, []adapter.ProviderGateway{gw}, &mockBus{}, testLogger())

		if err := uc.Reconcile(ctx, 1, nil); err != nil {
			t.Fatalf("expected nil, got %v", err)
		}
	})

	t.Run("should surface unrecognized codes as provider rejection", func(t *testing.T) {
		repo := newMemPaymentRepo(newPayment(1, model.PaymentStateSubmitted, "ideal-177XXX584"))
		gw := idealGateway()
		gw.checkFunc = func(_ context.Context, _ *adapter.ProviderSession) (model.StatusOutcome, error) {
			return model.StatusOutcome{Kind: model.OutcomeError, Code: "TP0099", Text: "Unexpected"}, nil
		}
		uc := NewPaymentUseCase(repo, []adapter.ProviderGateway{gw}, &mockBus{}, testLogger())

		err := uc.Reconcile(ctx, 1, nil)
		if !errors.Is(err, domain.ErrProviderRejected) {
			t.Fatalf("expected ErrProviderRejected, got %v", err)
		}
	})

	t.Run("should refuse a payment whose submethod has no gateway", func(t *testing.T) {
		repo := newMemPaymentRepo(newPayment(1, model.PaymentStateSubmitted, "paysafecard-42X"))
		uc := NewPaymentUseCase(repo, []adapter.ProviderGateway{idealGateway()}, &mockBus{}, testLogger())

		err := uc.Reconcile(ctx, 1, nil)
		if !errors.Is(err, domain.ErrConfiguration) {
			t.Fatalf("expected ErrConfiguration, got %v", err)
		}
	})

	t.Run("should keep the payment untouched when the remote is unavailable", func(t *testing.T) {
		repo := newMemPaymentRepo(newPayment(1, model.PaymentStateSubmitted, "ideal-177XXX584"))
		gw := idealGateway()
		gw.checkFunc = func(_ context.Context, _ *adapter.ProviderSession) (model.StatusOutcome, error) {
			return model.StatusOutcome{}, fmt.Errorf("%w: connection refused", domain.ErrRemoteUnavailable)
		}
		bus := &mockBus{}
		uc := NewPaymentUseCase(repo, []adapter.ProviderGateway{gw}, bus, testLogger())

		err := uc.Reconcile(ctx, 1, nil)
		if !errors.Is(err, domain.ErrRemoteUnavailable) {
			t.Fatalf("expected ErrRemoteUnavailable, got %v", err)
		}
		if p := repo.get(1); p.State != model.PaymentStateSubmitted {
			t.Errorf("payment must stay submitted, got %s", p.State)
		}
		if events := bus.all(); len(events) != 0 {
			t.Errorf("no events expected, got %v", events)
		}
	})
}
