package model

import (
	"strings"
	"time"
)

type PaymentState string

const (
	PaymentStateNew       PaymentState = "new"       // created locally, provider not contacted yet
	PaymentStateSubmitted PaymentState = "submitted" // start accepted by provider; awaiting outcome
	PaymentStateFinal     PaymentState = "final"     // terminal; IsSuccess says which way
)

// Payment is the locally persisted payment record. The record itself is
// owned by the store; this layer only moves it forward (new -> submitted ->
// final) through the repository's compare-and-set methods.
type Payment struct {
	ID          int64
	State       PaymentState
	IsSuccess   *bool  // nil until final
	UniqueKey   string // "<submethod>-<trxid>", bound exactly once at initiation
	Amount      int64  // minor currency units (cents)
	Description string
	Realm       string // merchant host, used to build absolute callback URLs
	Blob        string // audit trail, one record per line
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Submethod returns the submethod prefix of the unique key, or "" when the
// payment has not been initiated yet.
func (p *Payment) Submethod() string {
	sub, _, _ := strings.Cut(p.UniqueKey, "-")
	return sub
}

// TransactionID returns the provider transaction id part of the unique key.
func (p *Payment) TransactionID() (string, bool) {
	_, trxid, ok := strings.Cut(p.UniqueKey, "-")
	if !ok || trxid == "" {
		return "", false
	}
	return trxid, true
}

type OutcomeKind string

const (
	OutcomePaid            OutcomeKind = "paid"
	OutcomeNotYetCompleted OutcomeKind = "not_yet_completed"
	OutcomeAborted         OutcomeKind = "aborted"
	OutcomeAlreadyUsed     OutcomeKind = "already_used"
	OutcomeError           OutcomeKind = "error"
)

// StatusOutcome is the translation of a raw provider status into the local
// vocabulary. Code and Text carry the raw pair for audit.
type StatusOutcome struct {
	Kind OutcomeKind
	Code string
	Text string
}
