package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"

	"webshop-payments/internal/domain"
	"webshop-payments/internal/domain/model"
	"webshop-payments/internal/domain/ports/adapter"
	"webshop-payments/internal/domain/ports/repository"
	"webshop-payments/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// InitiateOptions carries the caller inputs some submethods need.
type InitiateOptions struct {
	Locale     string // "nl_NL" form; mrcash only
	RemoteAddr string // buyer network address; mandatory for mrcash
}

type PaymentUseCase interface {
	// Initiate starts a transaction at the provider, binds the unique key
	// exactly once and returns the redirect URL for the buyer. A failed
	// initiation never returns a URL.
	Initiate(ctx context.Context, paymentID int64, submethod string, opts InitiateOptions) (string, error)
	// Reconcile fetches the authoritative provider status for a payment and
	// applies the corresponding local transition. rawPayload is whatever the
	// inbound notification carried; it is persisted for audit on terminal
	// transitions. Benign duplicate notifications resolve to nil.
	Reconcile(ctx context.Context, paymentID int64, rawPayload url.Values) error
}

type paymentUC struct {
	payments repository.PaymentRepository
	gateways map[string]adapter.ProviderGateway // by submethod
	bus      adapter.NotificationBus
	log      *zerolog.Logger
}

func NewPaymentUseCase(payments repository.PaymentRepository, gateways []adapter.ProviderGateway, bus adapter.NotificationBus, logger *zerolog.Logger) *paymentUC {
	byName := make(map[string]adapter.ProviderGateway, len(gateways))
	for _, gw := range gateways {
		byName[gw.Submethod()] = gw
	}
	return &paymentUC{payments: payments, gateways: byName, bus: bus, log: logger}
}

func (u *paymentUC) Initiate(ctx context.Context, paymentID int64, submethod string, opts InitiateOptions) (string, error) {
	gw, ok := u.gateways[submethod]
	if !ok {
		return "", fmt.Errorf("%w: unknown submethod %q", domain.ErrConfiguration, submethod)
	}

	p, err := u.payments.FindByID(ctx, repository.NoTX, paymentID)
	if err != nil {
		return "", err
	}
	if p.UniqueKey != "" {
		// User clicked back and resubmitted the payment form?
		metrics.IncInitiation(submethod, "duplicate")
		return "", fmt.Errorf("%w: payment %d", domain.ErrDuplicateInitiation, p.ID)
	}

	sess := adapter.NewProviderSession(p)
	sess.Locale = opts.Locale
	sess.RemoteAddr = opts.RemoteAddr

	trxid, redirect, err := gw.StartTransaction(ctx, sess)
	if err != nil {
		metrics.IncInitiation(submethod, initiationResult(err))
		return "", err
	}

	bound, err := u.payments.BindUniqueKey(ctx, repository.NoTX, p.ID, submethod+"-"+trxid)
	if err != nil {
		return "", err
	}
	if !bound {
		// A concurrent call bound a key first. Two provider transactions now
		// exist for one payment; surface it, never overwrite.
		metrics.IncInitiation(submethod, "duplicate")
		return "", fmt.Errorf("%w: unique key raced for payment %d", domain.ErrDuplicateInitiation, p.ID)
	}

	metrics.IncInitiation(submethod, "ok")
	u.log.Info().
		Int64("payment_id", p.ID).
		Str("submethod", submethod).
		Str("trxid", trxid).
		Msg("transaction started")
	return redirect, nil
}

func initiationResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrProviderRejected):
		return "rejected"
	case errors.Is(err, domain.ErrRemoteUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

func (u *paymentUC) Reconcile(ctx context.Context, paymentID int64, rawPayload url.Values) error {
	p, err := u.payments.FindByID(ctx, repository.NoTX, paymentID)
	if err != nil {
		return err
	}

	sub := p.Submethod()
	gw, ok := u.gateways[sub]
	if !ok {
		return fmt.Errorf("%w: no gateway for submethod %q (payment %d)", domain.ErrConfiguration, sub, p.ID)
	}

	out, err := gw.CheckStatus(ctx, adapter.NewProviderSession(p))
	if err != nil {
		return err
	}
	metrics.IncReconcileOutcome(sub, string(out.Kind))

	switch out.Kind {
	case model.OutcomePaid:
		return u.handlePaid(ctx, gw, p, out, rawPayload)

	case model.OutcomeNotYetCompleted:
		if p.State != model.PaymentStateSubmitted {
			return fmt.Errorf("%w: %s %s but payment %d is %s", domain.ErrStateInconsistent, out.Code, out.Text, p.ID, p.State)
		}
		return nil

	case model.OutcomeAborted:
		return u.handleAborted(ctx, gw, p, out, rawPayload)

	case model.OutcomeAlreadyUsed:
		if p.State != model.PaymentStateFinal {
			return fmt.Errorf("%w: %s %s but payment %d is %s", domain.ErrStateInconsistent, out.Code, out.Text, p.ID, p.State)
		}
		return nil

	default:
		// Unrecognized codes are never retried here; transport retries live
		// in the remote call executor only.
		return fmt.Errorf("%w: %s %s (payment %d)", domain.ErrProviderRejected, out.Code, out.Text, p.ID)
	}
}

func (u *paymentUC) handlePaid(ctx context.Context, gw adapter.ProviderGateway, p *model.Payment, out model.StatusOutcome, raw url.Values) error {
	passed, err := u.payments.MarkPassed(ctx, repository.NoTX, p.ID)
	if err != nil {
		return err
	}
	if !passed {
		return u.resolveLostRace(ctx, p, out, true)
	}
	succeeded, err := u.payments.MarkSucceeded(ctx, repository.NoTX, p.ID)
	if err != nil {
		return err
	}
	if !succeeded {
		return u.resolveLostRace(ctx, p, out, true)
	}

	u.notify(ctx, p, adapter.ChangePassed)
	u.audit(ctx, gw, p, raw)
	return nil
}

func (u *paymentUC) handleAborted(ctx context.Context, gw adapter.ProviderGateway, p *model.Payment, out model.StatusOutcome, raw url.Values) error {
	aborted, err := u.payments.MarkAborted(ctx, repository.NoTX, p.ID)
	if err != nil {
		return err
	}
	if !aborted {
		return u.resolveLostRace(ctx, p, out, false)
	}

	u.notify(ctx, p, adapter.ChangeAborted)
	u.audit(ctx, gw, p, raw)
	return nil
}

// resolveLostRace classifies a lost compare-and-set by re-reading the
// record: a terminal state matching the outcome we carried is a benign
// duplicate delivery and is swallowed; anything else is a genuine conflict.
func (u *paymentUC) resolveLostRace(ctx context.Context, p *model.Payment, out model.StatusOutcome, wantSuccess bool) error {
	cur, err := u.payments.FindByID(ctx, repository.NoTX, p.ID)
	if err != nil {
		return err
	}
	if cur.State == model.PaymentStateFinal && cur.IsSuccess != nil && *cur.IsSuccess == wantSuccess {
		metrics.IncReconcileDuplicate(p.Submethod())
		u.log.Info().
			Int64("payment_id", p.ID).
			Str("code", out.Code).
			Msg("duplicate notification swallowed")
		return nil
	}
	return fmt.Errorf("%w: payment %d is %s/%v after %s %s", domain.ErrReconciliationConflict,
		p.ID, cur.State, successString(cur.IsSuccess), out.Code, out.Text)
}

// notify publishes the payment-updated event post-commit, best-effort.
func (u *paymentUC) notify(ctx context.Context, p *model.Payment, change string) {
	if err := u.bus.PaymentUpdated(ctx, p, change); err != nil {
		u.log.Warn().Int64("payment_id", p.ID).Str("change", change).Err(err).Msg("notification publish failed")
		return
	}
	metrics.IncNotification(change)
}

// audit persists the raw notification payload on the payment record.
func (u *paymentUC) audit(ctx context.Context, gw adapter.ProviderGateway, p *model.Payment, raw url.Values) {
	if raw == nil {
		raw = url.Values{}
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		payload = []byte(fmt.Sprintf("%q", raw.Encode()))
	}
	blob := fmt.Sprintf("%s.%s: %s", gw.Name(), gw.Submethod(), payload)
	if err := u.payments.AppendAuditBlob(ctx, repository.NoTX, p.ID, blob); err != nil {
		u.log.Warn().Int64("payment_id", p.ID).Err(err).Msg("audit blob write failed")
	}
}

func successString(v *bool) string {
	if v == nil {
		return "unknown"
	}
	return fmt.Sprintf("%t", *v)
}
