package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrAlreadyExists       = errors.New("entity already exists")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrUnknownEvent        = errors.New("unknown webhook event")
	ErrInsufficientBalance = errors.New("insufficient credit balance")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrExternalService     = errors.New("external service failure")
	ErrPersistenceConflict = errors.New("concurrent update conflict, retries exhausted")
	ErrInvalidState        = errors.New("operation not allowed in current state")
	ErrAlreadyRefunded     = errors.New("payment already refunded")
	ErrQueueFull           = errors.New("work queue full")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrLockBusy            = errors.New("lock held by another worker")

	// Persistence errors
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid database execution context")
)
