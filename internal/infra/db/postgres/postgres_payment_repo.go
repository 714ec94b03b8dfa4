package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"webshop-payments/internal/domain"
	"webshop-payments/internal/domain/model"
	"webshop-payments/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, state, is_success, unique_key, amount, description, realm, blob, created_at, updated_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	var uniqueKey, blob *string
	if err := row.Scan(&p.ID, &p.State, &p.IsSuccess, &uniqueKey, &p.Amount, &p.Description, &p.Realm, &blob, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if uniqueKey != nil {
		p.UniqueKey = *uniqueKey
	}
	if blob != nil {
		p.Blob = *blob
	}
	return p, nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

// BindUniqueKey assigns the provider transaction key exactly once and moves
// the record to submitted. The WHERE clause is the compare part of the CAS:
// a second caller finds unique_key already set and gets (false, nil).
func (r *paymentRepo) BindUniqueKey(ctx context.Context, tx repository.Tx, id int64, key string) (bool, error) {
	const q = `
UPDATE payments
   SET unique_key = $2,
       state = 'submitted',
       updated_at = NOW()
 WHERE id = $1
   AND state = 'new'
   AND unique_key IS NULL;`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, key)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) MarkPassed(ctx context.Context, tx repository.Tx, id int64) (bool, error) {
	const q = `
UPDATE payments
   SET state = 'final',
       updated_at = NOW()
 WHERE id = $1
   AND state = 'submitted'
   AND is_success IS NULL;`
	return r.casExec(ctx, tx, q, id)
}

func (r *paymentRepo) MarkSucceeded(ctx context.Context, tx repository.Tx, id int64) (bool, error) {
	const q = `
UPDATE payments
   SET is_success = TRUE,
       updated_at = NOW()
 WHERE id = $1
   AND state = 'final'
   AND is_success IS NULL;`
	return r.casExec(ctx, tx, q, id)
}

func (r *paymentRepo) MarkAborted(ctx context.Context, tx repository.Tx, id int64) (bool, error) {
	const q = `
UPDATE payments
   SET state = 'final',
       is_success = FALSE,
       updated_at = NOW()
 WHERE id = $1
   AND state = 'submitted'
   AND is_success IS NULL;`
	return r.casExec(ctx, tx, q, id)
}

func (r *paymentRepo) casExec(ctx context.Context, tx repository.Tx, q string, id int64) (bool, error) {
	cmd, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) AppendAuditBlob(ctx context.Context, tx repository.Tx, id int64, blob string) error {
	const q = `
UPDATE payments
   SET blob = CASE WHEN blob IS NULL OR blob = '' THEN $2 ELSE blob || E'\n' || $2 END,
       updated_at = NOW()
 WHERE id = $1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, blob)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) ListSubmittedOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE state='submitted' AND updated_at < $1 ORDER BY updated_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
