package redis

import (
	"context"
	"encoding/json"
	"time"

	"webshop-payments/internal/domain/model"
	"webshop-payments/internal/domain/ports/adapter"
)

const paymentUpdatedChannel = "payments.updated"

var _ adapter.NotificationBus = (*Bus)(nil)

// Bus publishes payment-updated events on a redis channel. Delivery is
// best-effort: subscribers that are not listening miss the event, and the
// publisher does not wait for acks.
type Bus struct {
	cli *Client
}

func NewBus(c *Client) *Bus {
	return &Bus{cli: c}
}

type paymentUpdatedEvent struct {
	PaymentID int64  `json:"payment_id"`
	Change    string `json:"change"` // passed | aborted
	Submethod string `json:"submethod,omitempty"`
	At        int64  `json:"at"` // unix seconds
}

func (b *Bus) PaymentUpdated(ctx context.Context, p *model.Payment, change string) error {
	ev := paymentUpdatedEvent{
		PaymentID: p.ID,
		Change:    change,
		Submethod: p.Submethod(),
		At:        time.Now().Unix(),
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.cli.Publish(ctx, paymentUpdatedChannel, payload)
}
