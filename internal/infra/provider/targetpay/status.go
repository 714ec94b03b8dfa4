package targetpay

import (
	"fmt"
	"strings"

	"webshop-payments/internal/domain"
	"webshop-payments/internal/domain/model"
)

const (
	statusOK     = "000000" // all clear
	statusTestOK = "000001" // sanctioned alternate success code in test mode
)

// parseStatus splits a raw provider response of the form "<code> <text>".
//
//	000000 OK
//	TP0012 Transaction has expired
//	000000 177XXX584|https://www.targetpay.com/SUB/launch?...
//
// A response without the separating space is malformed, including a bare
// success code: 000000 always carries a payload.
func parseStatus(body string) (code, text string, err error) {
	body = strings.TrimRight(body, "\r\n")
	code, text, ok := strings.Cut(body, " ")
	if !ok || code == "" || text == "" {
		return "", "", fmt.Errorf("%w: status response %q", domain.ErrMalformedResponse, body)
	}
	return code, text, nil
}

// translate maps a raw status pair onto the local outcome vocabulary.
func translate(code, text string) model.StatusOutcome {
	out := model.StatusOutcome{Code: code, Text: text}
	switch code {
	case statusOK:
		out.Kind = model.OutcomePaid
	case "TP0010": // Transaction has not been completed
		out.Kind = model.OutcomeNotYetCompleted
	case "TP0011", "TP0012", "TP0013":
		// TP0011: cancelled (ideal) / failed (mrcash)
		// TP0012: expired
		// TP0013: cancelled by user
		out.Kind = model.OutcomeAborted
	case "TP0014": // Already redeemed
		out.Kind = model.OutcomeAlreadyUsed
	default:
		out.Kind = model.OutcomeError
	}
	return out
}
