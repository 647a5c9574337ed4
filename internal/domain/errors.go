package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnknownPlan     = errors.New("unknown plan id")

	// Provider selection / configuration
	ErrProviderNotEnabled    = errors.New("payment provider not enabled")
	ErrProviderNotConfigured = errors.New("payment provider not configured")

	// Authentication / authorization at the payment boundary
	ErrUnauthorized      = errors.New("caller is not authenticated")
	ErrOwnershipMismatch = errors.New("payment does not belong to the authenticated account")
	ErrInvalidSignature  = errors.New("callback signature is invalid")

	// Upstream provider failures (retryable by the caller)
	ErrUpstreamFailure = errors.New("upstream payment provider failure")

	// Business rules
	ErrAlreadySubscribed = errors.New("account already has an active subscription")

	// Idempotency short-circuit; treated as success at the API boundary.
	ErrAlreadyProcessed = errors.New("payment already processed")

	// Persistence plumbing
	ErrOperationFailed    = errors.New("database operation failed")
	ErrInvalidExecContext = errors.New("invalid transaction execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)
