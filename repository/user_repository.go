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
	"github.com/jackc/pgx/v5/pgconn"
)

// UserRepository implements the service.UserRepository interface
type UserRepository struct {
	q queryable
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

// newUserRepositoryWithTx creates a new user repository with a transaction
func newUserRepositoryWithTx(tx queryable) *UserRepository {
	return &UserRepository{q: tx}
}

const userColumns = `id, username, password_hash, email, phone, balance, total_deposit, total_withdraw, is_admin, created_at, last_login`

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Email,
		&user.Phone,
		&user.Balance,
		&user.TotalDeposit,
		&user.TotalWithdraw,
		&user.IsAdmin,
		&user.CreatedAt,
		&user.LastLogin,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create persists a new user record
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (id, username, password_hash, email, phone, balance, is_admin)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + userColumns

	created, err := scanUser(r.q.QueryRow(ctx, query,
		user.ID,
		user.Username,
		user.PasswordHash,
		user.Email,
		user.Phone,
		user.Balance,
		user.IsAdmin,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return nil, service.ErrDuplicateUsername
		}
		return nil, classify(fmt.Errorf("failed to create user %q: %w", user.Username, err))
	}

	return created, nil
}

// GetByID retrieves a user by id
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, service.ErrUserNotFound
	}
	if err != nil {
		return nil, classify(fmt.Errorf("failed to get user %s: %w", id, err))
	}
	return user, nil
}

// GetByUsername retrieves a user by exact, case-sensitive username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	user, err := scanUser(r.q.QueryRow(ctx, query, username))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, service.ErrUserNotFound
	}
	if err != nil {
		return nil, classify(fmt.Errorf("failed to get user %q: %w", username, err))
	}
	return user, nil
}

// AdjustBalance applies delta in a single conditional update so concurrent
// operations on the same user never pass the funds check against a stale
// balance. The floor-at-zero guard makes an overdraw a no-op.
func (r *UserRepository) AdjustBalance(ctx context.Context, userID string, delta int64) (int64, error) {
	query := `
		UPDATE users
		SET balance = balance + $1
		WHERE id = $2 AND balance + $1 >= 0
		RETURNING balance
	`

	var newBalance int64
	err := r.q.QueryRow(ctx, query, delta, userID).Scan(&newBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		// Disambiguate: missing user vs. insufficient funds
		if _, getErr := r.GetByID(ctx, userID); getErr != nil {
			return 0, getErr
		}
		return 0, service.ErrInsufficientFunds
	}
	if err != nil {
		return 0, classify(fmt.Errorf("failed to adjust balance for user %s: %w", userID, err))
	}

	return newBalance, nil
}

// AddTotals bumps the monotone accumulators
func (r *UserRepository) AddTotals(ctx context.Context, userID string, depositDelta, withdrawDelta int64) error {
	if depositDelta < 0 || withdrawDelta < 0 {
		return fmt.Errorf("%w: totals only increase", service.ErrValidation)
	}

	query := `
		UPDATE users
		SET total_deposit = total_deposit + $1, total_withdraw = total_withdraw + $2
		WHERE id = $3
	`

	result, err := r.q.Exec(ctx, query, depositDelta, withdrawDelta, userID)
	if err != nil {
		return classify(fmt.Errorf("failed to update totals for user %s: %w", userID, err))
	}
	if result.RowsAffected() == 0 {
		return service.ErrUserNotFound
	}
	return nil
}

// TouchLastLogin stamps the last successful login
func (r *UserRepository) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	result, err := r.q.Exec(ctx, `UPDATE users SET last_login = $1 WHERE id = $2`, at, userID)
	if err != nil {
		return classify(fmt.Errorf("failed to touch last login for user %s: %w", userID, err))
	}
	if result.RowsAffected() == 0 {
		return service.ErrUserNotFound
	}
	return nil
}

// Count returns the number of registered users. It grabs a
// transaction-scoped advisory lock first so concurrent registrations against
// an empty table serialize instead of both electing themselves admin.
func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	if _, err := r.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('users_count'))`); err != nil {
		return 0, classify(fmt.Errorf("failed to lock user count: %w", err))
	}
	var count int64
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, classify(fmt.Errorf("failed to count users: %w", err))
	}
	return count, nil
}

// GetAll returns all users, newest first
func (r *UserRepository) GetAll(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to get all users: %w", err))
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("failed to iterate users: %w", err))
	}
	return users, nil
}

// Delete removes a user record
func (r *UserRepository) Delete(ctx context.Context, userID string) error {
	result, err := r.q.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return classify(fmt.Errorf("failed to delete user %s: %w", userID, err))
	}
	if result.RowsAffected() == 0 {
		return service.ErrUserNotFound
	}
	return nil
}
