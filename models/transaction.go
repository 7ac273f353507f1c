package models

import "time"

// TransactionType represents the kind of balance-affecting operation
type TransactionType string

const (
	TransactionTypeDeposit  TransactionType = "deposit"
	TransactionTypeWithdraw TransactionType = "withdraw"
	TransactionTypeBet      TransactionType = "bet"
)

// TransactionStatus represents the lifecycle state of a transaction.
// Bets are never pending: they are recorded already approved.
type TransactionStatus string

const (
	TransactionStatusPending  TransactionStatus = "pending"
	TransactionStatusApproved TransactionStatus = "approved"
	TransactionStatusRejected TransactionStatus = "rejected"
)

// Transaction is the audit record paired with every balance mutation
type Transaction struct {
	ID       string          `db:"id"`
	UserID   string          `db:"user_id"`
	Username string          `db:"username"`
	Type     TransactionType `db:"type"`
	Amount   int64           `db:"amount"`

	// Payment channel details for deposits and withdrawals
	Method  string `db:"method"`
	Contact string `db:"contact"`

	Status     TransactionStatus `db:"status"`
	CreatedAt  time.Time         `db:"created_at"`
	ResolvedAt *time.Time        `db:"resolved_at"`

	// Bet-only fields
	GameID        string `db:"game_id"`
	GameName      string `db:"game_name"`
	WinAmount     int64  `db:"win_amount"`
	IsWin         bool   `db:"is_win"`
	BalanceBefore int64  `db:"balance_before"`
	BalanceAfter  int64  `db:"balance_after"`
}

// BetResult represents the outcome of a bet (returned to the user)
type BetResult struct {
	IsWin      bool
	BetAmount  int64
	WinAmount  int64
	NewBalance int64
}
