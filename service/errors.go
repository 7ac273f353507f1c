package service

import "errors"

// Typed failures surfaced to callers. The API layer maps these onto HTTP
// statuses; repositories return them already classified so no raw store
// error ever reaches a handler.
var (
	// ErrValidation marks malformed or missing caller input.
	ErrValidation = errors.New("invalid request")

	// ErrInsufficientFunds is returned when a debit would drive a balance negative.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateUsername is returned on registration with a taken username.
	ErrDuplicateUsername = errors.New("username already registered")

	// ErrInvalidCredentials is returned on login with a wrong username or password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserNotFound is returned when the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrTransactionNotFound is returned when the referenced transaction does not exist.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrAlreadyResolved is returned when resolving a transaction that is no
	// longer pending. The first resolver wins; everyone else sees this.
	ErrAlreadyResolved = errors.New("transaction already resolved")

	// ErrInvalidState is returned when an operation does not apply to the
	// entity's current state (wrong transaction type, user with pending holds).
	ErrInvalidState = errors.New("operation not allowed in current state")

	// ErrStoreUnavailable marks an infrastructure failure. Retryable by the caller.
	ErrStoreUnavailable = errors.New("store unavailable")
)
