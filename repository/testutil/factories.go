package testutil

import (
	"time"

	"github.com/google/uuid"

	"cashier/models"
)

// CreateTestUser creates a test user with default values
func CreateTestUser(username string) *models.User {
	now := time.Now()
	return &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: "$2a$10$test.hash.placeholder.value.0000000000000000000000",
		Email:        username + "@example.com",
		Balance:      100000,
		CreatedAt:    now,
		LastLogin:    now,
	}
}

// CreateTestUserWithBalance creates a test user with a specific balance
func CreateTestUserWithBalance(username string, balance int64) *models.User {
	user := CreateTestUser(username)
	user.Balance = balance
	return user
}

// CreateTestDeposit creates a pending deposit transaction for the user
func CreateTestDeposit(user *models.User, amount int64) *models.Transaction {
	return &models.Transaction{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Username:  user.Username,
		Type:      models.TransactionTypeDeposit,
		Amount:    amount,
		Method:    "bank",
		Contact:   "+10000000000",
		Status:    models.TransactionStatusPending,
		CreatedAt: time.Now(),
	}
}

// CreateTestWithdraw creates a pending withdraw transaction for the user
func CreateTestWithdraw(user *models.User, amount int64) *models.Transaction {
	trx := CreateTestDeposit(user, amount)
	trx.Type = models.TransactionTypeWithdraw
	return trx
}
