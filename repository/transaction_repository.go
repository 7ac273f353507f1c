package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cashier/database"
	"cashier/models"
	"cashier/service"

	"github.com/jackc/pgx/v5"
)

// TransactionRepository implements the service.TransactionRepository interface
type TransactionRepository struct {
	q queryable
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *database.DB) *TransactionRepository {
	return &TransactionRepository{q: db.Pool}
}

// newTransactionRepositoryWithTx creates a new transaction repository with a transaction
func newTransactionRepositoryWithTx(tx queryable) *TransactionRepository {
	return &TransactionRepository{q: tx}
}

const transactionColumns = `id, user_id, username, type, amount, method, contact, status, created_at, resolved_at, game_id, game_name, win_amount, is_win, balance_before, balance_after`

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var trx models.Transaction
	err := row.Scan(
		&trx.ID,
		&trx.UserID,
		&trx.Username,
		&trx.Type,
		&trx.Amount,
		&trx.Method,
		&trx.Contact,
		&trx.Status,
		&trx.CreatedAt,
		&trx.ResolvedAt,
		&trx.GameID,
		&trx.GameName,
		&trx.WinAmount,
		&trx.IsWin,
		&trx.BalanceBefore,
		&trx.BalanceAfter,
	)
	if err != nil {
		return nil, err
	}
	return &trx, nil
}

// Create persists a new transaction record
func (r *TransactionRepository) Create(ctx context.Context, trx *models.Transaction) (*models.Transaction, error) {
	query := `
		INSERT INTO transactions
		(id, user_id, username, type, amount, method, contact, status, resolved_at, game_id, game_name, win_amount, is_win, balance_before, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING ` + transactionColumns

	created, err := scanTransaction(r.q.QueryRow(ctx, query,
		trx.ID,
		trx.UserID,
		trx.Username,
		trx.Type,
		trx.Amount,
		trx.Method,
		trx.Contact,
		trx.Status,
		trx.ResolvedAt,
		trx.GameID,
		trx.GameName,
		trx.WinAmount,
		trx.IsWin,
		trx.BalanceBefore,
		trx.BalanceAfter,
	))
	if err != nil {
		return nil, classify(fmt.Errorf("failed to create %s transaction for user %s: %w", trx.Type, trx.UserID, err))
	}
	return created, nil
}

// GetByID retrieves a transaction by id
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	trx, err := scanTransaction(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, service.ErrTransactionNotFound
	}
	if err != nil {
		return nil, classify(fmt.Errorf("failed to get transaction %s: %w", id, err))
	}
	return trx, nil
}

// Resolve transitions a pending transaction to a terminal status. Conditional
// on the row still being pending, so the first resolver wins.
func (r *TransactionRepository) Resolve(ctx context.Context, id string, status models.TransactionStatus, resolvedAt time.Time) error {
	query := `
		UPDATE transactions
		SET status = $1, resolved_at = $2
		WHERE id = $3 AND status = 'pending'
	`

	result, err := r.q.Exec(ctx, query, status, resolvedAt, id)
	if err != nil {
		return classify(fmt.Errorf("failed to resolve transaction %s: %w", id, err))
	}
	if result.RowsAffected() == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return service.ErrAlreadyResolved
	}
	return nil
}

// ListPending returns the review queue, oldest first
func (r *TransactionRepository) ListPending(ctx context.Context, trxType models.TransactionType) ([]*models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE status = 'pending' AND ($1 = '' OR type = $1)
		ORDER BY created_at ASC
	`

	rows, err := r.q.Query(ctx, query, string(trxType))
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list pending transactions: %w", err))
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// ListByUser returns a user's transactions, newest first. A non-positive
// limit returns everything; NULLIF turns the clamped zero into LIMIT NULL.
func (r *TransactionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.Transaction, error) {
	if limit < 0 {
		limit = 0
	}
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT NULLIF($2, 0)
	`

	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list transactions for user %s: %w", userID, err))
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// CountPendingByUser returns the number of unresolved transactions for a user
func (r *TransactionRepository) CountPendingByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM transactions WHERE user_id = $1 AND status = 'pending'`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, classify(fmt.Errorf("failed to count pending transactions for user %s: %w", userID, err))
	}
	return count, nil
}

func collectTransactions(rows pgx.Rows) ([]*models.Transaction, error) {
	var trxs []*models.Transaction
	for rows.Next() {
		trx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		trxs = append(trxs, trx)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("failed to iterate transactions: %w", err))
	}
	return trxs, nil
}
