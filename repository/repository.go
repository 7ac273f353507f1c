package repository

import (
	"context"
	"errors"
	"fmt"

	"cashier/service"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// queryable abstracts over a pool and a transaction
type queryable interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const uniqueViolationCode = "23505"

// classify wraps infrastructure failures as ErrStoreUnavailable so callers
// see a retryable typed error instead of a raw driver error. Business
// sentinels pass through untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, service.ErrUserNotFound) ||
		errors.Is(err, service.ErrTransactionNotFound) ||
		errors.Is(err, service.ErrDuplicateUsername) ||
		errors.Is(err, service.ErrInsufficientFunds) ||
		errors.Is(err, service.ErrAlreadyResolved) {
		return err
	}
	return fmt.Errorf("%w: %v", service.ErrStoreUnavailable, err)
}
