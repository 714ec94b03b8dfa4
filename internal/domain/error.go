package domain

import "errors"

var (
	// Common repository errors
	ErrNotFound           = errors.New("entity not found")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")

	// Provider-integration errors
	ErrMalformedResponse      = errors.New("malformed provider response")
	ErrRemoteUnavailable      = errors.New("provider unreachable")
	ErrProviderRejected       = errors.New("provider rejected transaction")
	ErrDuplicateInitiation    = errors.New("payment already initiated")
	ErrReconciliationConflict = errors.New("conflicting terminal state")
	ErrStateInconsistent      = errors.New("payment state inconsistent with provider status")
	ErrConfiguration          = errors.New("missing or invalid caller configuration")

	// Lock errors
	ErrLockNotAcquired = errors.New("lock not acquired")
)
