package repository

import (
	"context"
	"time"

	"webshop-payments/internal/domain/model"
)

// Tx is an opaque transaction handle (pgx.Tx for the Postgres
// implementation). Pass NoTX to run against the pool directly.
type Tx = interface{}

var NoTX Tx = nil

// PaymentRepository is the contract this layer requires from the payment
// store. All Mark*/Bind* methods are compare-and-set: they succeed only
// when the record is still in the expected prior state and report (false,
// nil) when another caller won the race. They are the only permitted path
// to mutate Payment.State / Payment.IsSuccess / Payment.UniqueKey.
type PaymentRepository interface {
	FindByID(ctx context.Context, tx Tx, id int64) (*model.Payment, error)

	// BindUniqueKey sets the unique key exactly once (new -> submitted).
	BindUniqueKey(ctx context.Context, tx Tx, id int64, key string) (bool, error)
	// MarkPassed moves submitted -> final with success still unknown.
	MarkPassed(ctx context.Context, tx Tx, id int64) (bool, error)
	// MarkSucceeded resolves a passed payment to success (final + unknown -> final + true).
	MarkSucceeded(ctx context.Context, tx Tx, id int64) (bool, error)
	// MarkAborted moves submitted -> final + false.
	MarkAborted(ctx context.Context, tx Tx, id int64) (bool, error)

	// AppendAuditBlob attaches a raw-notification audit record to the payment.
	AppendAuditBlob(ctx context.Context, tx Tx, id int64, blob string) error

	// ListSubmittedOlderThan feeds the scheduled reconciler.
	ListSubmittedOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Payment, error)
}
