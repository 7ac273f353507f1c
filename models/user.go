package models

import (
	"time"
)

// User represents a platform account with a coin balance
type User struct {
	ID            string    `db:"id"`
	Username      string    `db:"username"`
	PasswordHash  string    `db:"password_hash"`
	Email         string    `db:"email"`
	Phone         string    `db:"phone"`
	Balance       int64     `db:"balance"`
	TotalDeposit  int64     `db:"total_deposit"`
	TotalWithdraw int64     `db:"total_withdraw"`
	IsAdmin       bool      `db:"is_admin"`
	CreatedAt     time.Time `db:"created_at"`
	LastLogin     time.Time `db:"last_login"`
}
