package targetpay

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"webshop-payments/internal/config"
	"webshop-payments/internal/domain"
	"webshop-payments/internal/domain/model"
	"webshop-payments/internal/domain/ports/adapter"
)

const providerName = "targetpay"

var _ adapter.ProviderGateway = (*Gateway)(nil)

// Gateway drives one Targetpay submethod. The start/check algorithm is the
// same for all submethods; the injected Submethod strategy supplies the
// endpoint paths, parameter tweaks and status overrides.
type Gateway struct {
	cfg    config.TargetpayConfig
	sub    *Submethod
	client *client
	urls   adapter.CallbackURLBuilder
	log    *zerolog.Logger
}

func NewGateway(cfg config.TargetpayConfig, sub *Submethod, urls adapter.CallbackURLBuilder, logger *zerolog.Logger) *Gateway {
	return &Gateway{
		cfg:    cfg,
		sub:    sub,
		client: newClient(cfg.Timeout, sub.name, logger),
		urls:   urls,
		log:    logger,
	}
}

func (g *Gateway) Name() string      { return providerName }
func (g *Gateway) Submethod() string { return g.sub.name }

func (g *Gateway) startURL() string {
	return fmt.Sprintf("%s/%s/start", g.cfg.BaseURL, g.sub.startPath)
}

func (g *Gateway) checkURL() string {
	return fmt.Sprintf("%s/%s/check", g.cfg.BaseURL, g.sub.checkPath)
}

func (g *Gateway) startParameters(sess *adapter.ProviderSession) (url.Values, error) {
	p := sess.Payment
	params := url.Values{}
	params.Set("rtlo", g.cfg.RTLO)
	params.Set("description", p.Description)
	params.Set("amount", strconv.FormatInt(p.Amount, 10))
	params.Set("returnurl", g.urls.ReturnURL(p))
	params.Set("cancelurl", g.urls.AbortURL(p))
	params.Set("reporturl", g.urls.ReportURL(p))
	if g.sub.startParams != nil {
		if err := g.sub.startParams(g.cfg, sess, params); err != nil {
			return nil, err
		}
	}
	return params, nil
}

func (g *Gateway) checkParameters(sess *adapter.ProviderSession) (url.Values, error) {
	trxid, ok := sess.Payment.TransactionID()
	if !ok {
		return nil, fmt.Errorf("%w: payment %d has no provider transaction id", domain.ErrStateInconsistent, sess.Payment.ID)
	}
	params := url.Values{}
	params.Set("rtlo", g.cfg.RTLO)
	params.Set("trxid", trxid)
	// once=1 would make the provider report OK a single time and "already
	// redeemed" afterwards. The atomic database update already dedupes, so
	// keep the provider status repeatable.
	params.Set("once", "0")
	if g.sub.checkParams != nil {
		g.sub.checkParams(g.cfg, params)
	}
	return params, nil
}

// StartTransaction submits the start request and parses
// "<code> <trxid>|<url>" into a transaction id and redirect URL. Only the
// designated success code is accepted (plus the sanctioned test-mode
// alternate); the redirect must be https.
func (g *Gateway) StartTransaction(ctx context.Context, sess *adapter.ProviderSession) (string, string, error) {
	params, err := g.startParameters(sess)
	if err != nil {
		return "", "", err
	}

	body, err := g.client.get(ctx, g.startURL(), params)
	if err != nil {
		return "", "", err
	}

	code, text, err := parseStatus(body)
	if err != nil {
		return "", "", err
	}
	switch {
	case code == statusOK:
	case code == statusTestOK && g.cfg.TestMode:
	default:
		return "", "", fmt.Errorf("%w: start answered %q (payment %d)", domain.ErrProviderRejected, body, sess.Payment.ID)
	}

	trxid, redirect, ok := strings.Cut(text, "|")
	if !ok || trxid == "" || redirect == "" {
		return "", "", fmt.Errorf("%w: start payload %q", domain.ErrMalformedResponse, body)
	}
	if !strings.HasPrefix(redirect, "https:") {
		return "", "", fmt.Errorf("%w: redirect %q is not https", domain.ErrMalformedResponse, redirect)
	}
	return trxid, redirect, nil
}

// CheckStatus fetches the authoritative status for an initiated payment and
// translates it, applying the submethod's override first.
func (g *Gateway) CheckStatus(ctx context.Context, sess *adapter.ProviderSession) (model.StatusOutcome, error) {
	params, err := g.checkParameters(sess)
	if err != nil {
		return model.StatusOutcome{}, err
	}

	body, err := g.client.get(ctx, g.checkURL(), params)
	if err != nil {
		return model.StatusOutcome{}, err
	}

	code, text, err := parseStatus(body)
	if err != nil {
		return model.StatusOutcome{}, err
	}

	out := translate(code, text)
	if g.sub.statusOverride != nil {
		out = g.sub.statusOverride(out)
	}
	return out, nil
}
