package service

import (
	"context"
	"time"

	"cashier/events"
	"cashier/models"
)

// UserRepository defines the interface for user record access
type UserRepository interface {
	// Create persists a new user. Returns ErrDuplicateUsername when the
	// username is taken (case-sensitive exact match); no partial row remains.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByID retrieves a user by id, or ErrUserNotFound
	GetByID(ctx context.Context, id string) (*models.User, error)

	// GetByUsername retrieves a user by exact username, or ErrUserNotFound
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	// AdjustBalance applies delta to the user's balance in a single atomic
	// conditional update and returns the new balance. A delta that would
	// drive the balance negative fails with ErrInsufficientFunds and
	// changes nothing. This is the only sanctioned balance mutation path.
	AdjustBalance(ctx context.Context, userID string, delta int64) (int64, error)

	// AddTotals bumps the monotone deposit/withdraw accumulators
	AddTotals(ctx context.Context, userID string, depositDelta, withdrawDelta int64) error

	// TouchLastLogin stamps the user's last successful login
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error

	// Count returns the number of registered users
	Count(ctx context.Context) (int64, error)

	// GetAll returns all users, newest first
	GetAll(ctx context.Context) ([]*models.User, error)

	// Delete removes a user record
	Delete(ctx context.Context, userID string) error
}

// TransactionRepository defines the interface for the transaction audit trail
type TransactionRepository interface {
	// Create persists a new transaction record
	Create(ctx context.Context, trx *models.Transaction) (*models.Transaction, error)

	// GetByID retrieves a transaction by id, or ErrTransactionNotFound
	GetByID(ctx context.Context, id string) (*models.Transaction, error)

	// Resolve transitions a pending transaction to a terminal status. The
	// update is conditional on status still being pending, so concurrent
	// resolvers linearize: the loser gets ErrAlreadyResolved.
	Resolve(ctx context.Context, id string, status models.TransactionStatus, resolvedAt time.Time) error

	// ListPending returns pending transactions oldest first, optionally
	// filtered by type (empty type means all)
	ListPending(ctx context.Context, trxType models.TransactionType) ([]*models.Transaction, error)

	// ListByUser returns a user's transactions newest first
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.Transaction, error)

	// CountPendingByUser returns the number of unresolved transactions for a user
	CountPendingByUser(ctx context.Context, userID string) (int64, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork represents a set of ledger operations that commit or fail as one
type UnitOfWork interface {
	// Begin starts the unit of work
	Begin(ctx context.Context) error

	// Commit makes all changes durable and flushes pending events
	Commit() error

	// Rollback discards all changes and pending events. No-op after Commit.
	Rollback() error

	// UserRepository returns the user repository bound to this unit of work
	UserRepository() UserRepository

	// TransactionRepository returns the transaction repository bound to this unit of work
	TransactionRepository() TransactionRepository

	// EventBus returns the transactional event bus for this unit of work
	EventBus() EventPublisher
}

// UnitOfWorkFactory creates units of work against the configured backend
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// IdentityService defines account registration and authentication
type IdentityService interface {
	// Register creates a new account. The first account on the platform is
	// flagged admin.
	Register(ctx context.Context, username, password, email, phone string) (*models.User, error)

	// Authenticate verifies credentials and returns the user plus a signed
	// session token
	Authenticate(ctx context.Context, username, password string) (*models.User, string, error)

	// DeleteUser removes an account. Fails with ErrInvalidState while the
	// account has pending transactions.
	DeleteUser(ctx context.Context, userID string) error

	// ListUsers returns all accounts (admin surface)
	ListUsers(ctx context.Context) ([]*models.User, error)
}

// GamblingService defines the simulated betting operations
type GamblingService interface {
	// PlaceBet debits the stake, draws an outcome and credits any payout
	// atomically, recording a settled bet transaction
	PlaceBet(ctx context.Context, userID string, betAmount int64, gameID, gameName string) (*models.BetResult, error)
}

// PaymentService defines the deposit/withdraw request workflow and its
// admin review operations
type PaymentService interface {
	// RequestDeposit records a pending deposit. Balance is untouched until approval.
	RequestDeposit(ctx context.Context, userID string, amount int64, method, contact string) (*models.Transaction, error)

	// RequestWithdraw places a hold: the amount is debited immediately and a
	// pending withdraw transaction is recorded
	RequestWithdraw(ctx context.Context, userID string, amount int64, method, contact string) (*models.Transaction, error)

	// ApproveDeposit credits amount plus any bonus exactly once
	ApproveDeposit(ctx context.Context, transactionID string) (*models.User, error)

	// RejectDeposit resolves a pending deposit without crediting anything
	RejectDeposit(ctx context.Context, transactionID string) error

	// ApproveWithdraw finalizes a withdrawal whose hold was already debited
	ApproveWithdraw(ctx context.Context, transactionID string) error

	// RejectWithdraw reverses the hold exactly once
	RejectWithdraw(ctx context.Context, transactionID string) error

	// PendingTransactions returns the admin review queue, oldest first
	PendingTransactions(ctx context.Context, trxType models.TransactionType) ([]*models.Transaction, error)

	// GetTransaction retrieves a single transaction by id
	GetTransaction(ctx context.Context, transactionID string) (*models.Transaction, error)

	// UserTransactions returns a user's transaction history, newest first.
	// A non-positive limit returns everything.
	UserTransactions(ctx context.Context, userID string, limit int) ([]*models.Transaction, error)
}
