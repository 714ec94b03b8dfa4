package targetpay

import (
	"fmt"
	"net/url"
	"strings"

	"webshop-payments/internal/config"
	"webshop-payments/internal/domain"
	"webshop-payments/internal/domain/model"
	"webshop-payments/internal/domain/ports/adapter"
)

// testRTLO is the provider-documented sandbox merchant code for the
// creditcard pre-production platform.
const testRTLO = "41980"

// Submethod is the per-submethod strategy: endpoint paths, parameter hooks
// and an optional status override consulted before generic dispatch. The
// base gateway algorithm is the same for every submethod; behavior varies
// only through these values.
type Submethod struct {
	name      string
	startPath string
	checkPath string

	// startParams amends the base start parameters; it may also reject the
	// call before any remote request is made.
	startParams func(cfg config.TargetpayConfig, sess *adapter.ProviderSession, params url.Values) error
	// checkParams amends the base check parameters.
	checkParams func(cfg config.TargetpayConfig, params url.Values)
	// statusOverride reclassifies specific raw codes ahead of the generic
	// outcome dispatch.
	statusOverride func(out model.StatusOutcome) model.StatusOutcome
}

func (s *Submethod) Name() string { return s.name }

// Ideal is the bank-transfer redirect submethod. Bank selection happens on
// the provider's side, so no bank list is needed here.
func Ideal() *Submethod {
	return &Submethod{
		name:      "ideal",
		startPath: "ideal",
		checkPath: "ideal",
		startParams: func(cfg config.TargetpayConfig, _ *adapter.ProviderSession, params url.Values) error {
			params.Set("ver", "3")
			if cfg.TestMode {
				// Makes the check call answer OK without a real payment.
				params.Set("test", "1")
			}
			return nil
		},
	}
}

// CreditCard uses the atos endpoint; legacy selects the old "creditcard"
// endpoint, which additionally wants an explicit currency.
func CreditCard(legacy bool) *Submethod {
	path := "creditcard_atos"
	if legacy {
		path = "creditcard"
	}
	return &Submethod{
		name:      "creditcard",
		startPath: path,
		checkPath: path,
		startParams: func(cfg config.TargetpayConfig, _ *adapter.ProviderSession, params url.Values) error {
			// The card flow has no cancel leg; the provider reports
			// cancellation through the check status instead.
			params.Del("cancelurl")
			if legacy {
				params.Set("currency", "EUR")
			}
			if cfg.TestMode {
				params.Set("test", "1")
				params.Set("rtlo", testRTLO)
			}
			return nil
		},
		checkParams: func(cfg config.TargetpayConfig, params url.Values) {
			if cfg.TestMode {
				params.Set("rtlo", testRTLO)
			}
		},
		statusOverride: creditcardStatusOverride,
	}
}

// creditcardStatusOverride keeps TP0011 (failed) and TP0013 (cancelled)
// non-final for card payments: both have been observed to be followed by a
// success status, so marking the payment aborted would make that success
// unacceptable. Reclassifying them as not-yet-completed lets the generic
// dispatch no-op while the payment is still submitted and flag an
// inconsistency once it is final.
func creditcardStatusOverride(out model.StatusOutcome) model.StatusOutcome {
	switch out.Code {
	case "TP0011", "TP0013":
		out.Kind = model.OutcomeNotYetCompleted
	}
	return out
}

// mrcashLanguages are the only locales the debit-card flow accepts.
var mrcashLanguages = []string{"NL", "FR", "EN"}

// MrCash is the card-based debit submethod. It requires a caller-supplied
// locale of the form "nl_NL" and the buyer's network address; both are
// caller configuration, checked before any remote call.
func MrCash() *Submethod {
	return &Submethod{
		name:      "mrcash",
		startPath: "mrcash",
		checkPath: "mrcash",
		startParams: func(cfg config.TargetpayConfig, sess *adapter.ProviderSession, params url.Values) error {
			lang, err := mrcashLanguage(sess.Locale)
			if err != nil {
				return err
			}
			if sess.RemoteAddr == "" {
				return fmt.Errorf("%w: mrcash requires the caller network address", domain.ErrConfiguration)
			}
			params.Set("lang", lang)
			params.Set("userip", sess.RemoteAddr)
			return nil
		},
		checkParams: func(cfg config.TargetpayConfig, params url.Values) {
			if cfg.TestMode {
				params.Set("test", "1")
			}
		},
	}
}

func mrcashLanguage(locale string) (string, error) {
	if locale == "" {
		locale = "nl_NL"
	}
	parts := strings.Split(locale, "_")
	if len(parts) != 2 {
		return "", fmt.Errorf("%w: locale %q does not look like nl_NL", domain.ErrConfiguration, locale)
	}
	lang := strings.ToUpper(parts[0])
	for _, known := range mrcashLanguages {
		if lang == known {
			return lang, nil
		}
	}
	return "", fmt.Errorf("%w: unsupported mrcash language %q", domain.ErrConfiguration, lang)
}
