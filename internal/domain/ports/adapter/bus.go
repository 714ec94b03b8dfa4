package adapter

import (
	"context"

	"webshop-payments/internal/domain/model"
)

// Payment-updated change tags.
const (
	ChangePassed  = "passed"
	ChangeAborted = "aborted"
)

// NotificationBus delivers "payment updated" events to zero or more
// subscribers, best-effort, after the local state change has committed.
type NotificationBus interface {
	PaymentUpdated(ctx context.Context, p *model.Payment, change string) error
}
