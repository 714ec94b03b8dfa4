package adapter

import (
	"context"

	"webshop-payments/internal/domain/model"
)

// ProviderSession binds exactly one payment to one provider operation.
// Construct a fresh value per call; there is no way to rebind it to another
// payment, so cross-payment reuse cannot happen.
type ProviderSession struct {
	Payment *model.Payment

	// Per-call caller inputs, used by submethods that need them.
	Locale     string // "nl_NL" form; mrcash only
	RemoteAddr string // caller network address; mandatory for mrcash
}

// NewProviderSession is the only constructor; it refuses a nil payment.
func NewProviderSession(p *model.Payment) *ProviderSession {
	if p == nil {
		panic("adapter: ProviderSession requires a payment")
	}
	return &ProviderSession{Payment: p}
}

// CallbackURLBuilder produces the absolute return/abort/report URLs the
// provider redirects or pushes to. Implemented by the web layer, which owns
// the route shapes and the return-key secret.
type CallbackURLBuilder interface {
	ReturnURL(p *model.Payment) string
	AbortURL(p *model.Payment) string
	ReportURL(p *model.Payment) string
}

// ProviderGateway is the port for one provider submethod.
type ProviderGateway interface {
	Name() string      // provider family, e.g. "targetpay"
	Submethod() string // e.g. "ideal"

	// StartTransaction submits the start request and returns the provider
	// transaction id plus the redirect URL for the buyer. It never binds
	// anything locally; that is the caller's job.
	StartTransaction(ctx context.Context, sess *ProviderSession) (trxID, redirectURL string, err error)

	// CheckStatus fetches the authoritative status and translates it,
	// submethod overrides included.
	CheckStatus(ctx context.Context, sess *ProviderSession) (model.StatusOutcome, error)
}
