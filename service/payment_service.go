package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"cashier/events"
	"cashier/models"
)

// PaymentPolicy tunes the deposit/withdraw workflow
type PaymentPolicy struct {
	// MinDeposit is the smallest accepted deposit request
	MinDeposit int64

	// MinWithdraw is the smallest accepted withdrawal request
	MinWithdraw int64

	// BonusThreshold is the deposit amount at which the bonus applies
	BonusThreshold int64

	// BonusRate is the fraction of the deposit credited as bonus
	BonusRate float64
}

// Bonus returns the bonus credited on an approved deposit of amount
func (p PaymentPolicy) Bonus(amount int64) int64 {
	if p.BonusThreshold <= 0 || amount < p.BonusThreshold {
		return 0
	}
	return int64(math.Floor(float64(amount) * p.BonusRate))
}

type paymentService struct {
	uowFactory UnitOfWorkFactory
	policy     PaymentPolicy
}

// NewPaymentService creates a new payment service
func NewPaymentService(uowFactory UnitOfWorkFactory, policy PaymentPolicy) PaymentService {
	return &paymentService{
		uowFactory: uowFactory,
		policy:     policy,
	}
}

func (s *paymentService) RequestDeposit(ctx context.Context, userID string, amount int64, method, contact string) (*models.Transaction, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if amount < s.policy.MinDeposit {
		return nil, fmt.Errorf("%w: deposit amount must be at least %d", ErrValidation, s.policy.MinDeposit)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin unit of work: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Deposits touch no balance until an admin approves: only the pending
	// record is written here
	trx := &models.Transaction{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Username:  user.Username,
		Type:      models.TransactionTypeDeposit,
		Amount:    amount,
		Method:    method,
		Contact:   contact,
		Status:    models.TransactionStatusPending,
		CreatedAt: time.Now(),
	}
	created, err := uow.TransactionRepository().Create(ctx, trx)
	if err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.DepositRequestedEvent{
		TransactionID: created.ID,
		UserID:        user.ID,
		Username:      user.Username,
		Amount:        amount,
		Method:        method,
		Contact:       contact,
		At:            created.CreatedAt,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit deposit request: %w", err)
	}

	log.WithFields(log.Fields{
		"transactionID": created.ID,
		"userID":        userID,
		"amount":        amount,
	}).Info("Deposit requested")

	return created, nil
}

func (s *paymentService) RequestWithdraw(ctx context.Context, userID string, amount int64, method, contact string) (*models.Transaction, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if amount < s.policy.MinWithdraw {
		return nil, fmt.Errorf("%w: withdrawal amount must be at least %d", ErrValidation, s.policy.MinWithdraw)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin unit of work: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Withdrawals hold the funds up front. The conditional debit enforces
	// coverage, so no overdraw is possible however many requests race.
	newBalance, err := uow.UserRepository().AdjustBalance(ctx, userID, -amount)
	if err != nil {
		return nil, err
	}

	trx := &models.Transaction{
		ID:            uuid.NewString(),
		UserID:        user.ID,
		Username:      user.Username,
		Type:          models.TransactionTypeWithdraw,
		Amount:        amount,
		Method:        method,
		Contact:       contact,
		Status:        models.TransactionStatusPending,
		CreatedAt:     time.Now(),
		BalanceBefore: user.Balance,
		BalanceAfter:  newBalance,
	}
	created, err := uow.TransactionRepository().Create(ctx, trx)
	if err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.WithdrawRequestedEvent{
		TransactionID: created.ID,
		UserID:        user.ID,
		Username:      user.Username,
		Amount:        amount,
		Method:        method,
		Contact:       contact,
		At:            created.CreatedAt,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit withdrawal request: %w", err)
	}

	log.WithFields(log.Fields{
		"transactionID": created.ID,
		"userID":        userID,
		"amount":        amount,
		"newBalance":    newBalance,
	}).Info("Withdrawal requested")

	return created, nil
}

// resolvePending loads a transaction, checks its type and flips it to status.
// The conditional update in Resolve makes the flip first-writer-wins, so the
// side effects applied afterwards run at most once per transaction.
func resolvePending(ctx context.Context, uow UnitOfWork, transactionID string, trxType models.TransactionType, status models.TransactionStatus) (*models.Transaction, time.Time, error) {
	trx, err := uow.TransactionRepository().GetByID(ctx, transactionID)
	if err != nil {
		return nil, time.Time{}, err
	}
	if trx.Type != trxType {
		return nil, time.Time{}, fmt.Errorf("%w: transaction %s is a %s", ErrInvalidState, transactionID, trx.Type)
	}

	now := time.Now()
	if err := uow.TransactionRepository().Resolve(ctx, transactionID, status, now); err != nil {
		return nil, time.Time{}, err
	}
	return trx, now, nil
}

func (s *paymentService) ApproveDeposit(ctx context.Context, transactionID string) (*models.User, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin unit of work: %w", err)
	}
	defer uow.Rollback()

	trx, resolvedAt, err := resolvePending(ctx, uow, transactionID, models.TransactionTypeDeposit, models.TransactionStatusApproved)
	if err != nil {
		return nil, err
	}

	bonus := s.policy.Bonus(trx.Amount)
	newBalance, err := uow.UserRepository().AdjustBalance(ctx, trx.UserID, trx.Amount+bonus)
	if err != nil {
		return nil, err
	}
	if err := uow.UserRepository().AddTotals(ctx, trx.UserID, trx.Amount, 0); err != nil {
		return nil, err
	}

	user, err := uow.UserRepository().GetByID(ctx, trx.UserID)
	if err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.DepositResolvedEvent{
		TransactionID: trx.ID,
		Username:      trx.Username,
		Amount:        trx.Amount,
		Bonus:         bonus,
		Status:        models.TransactionStatusApproved,
		At:            resolvedAt,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit deposit approval: %w", err)
	}

	log.WithFields(log.Fields{
		"transactionID": transactionID,
		"userID":        trx.UserID,
		"amount":        trx.Amount,
		"bonus":         bonus,
		"newBalance":    newBalance,
	}).Info("Deposit approved")

	return user, nil
}

func (s *paymentService) RejectDeposit(ctx context.Context, transactionID string) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin unit of work: %w", err)
	}
	defer uow.Rollback()

	// No balance was held, so rejection is just the status flip
	trx, resolvedAt, err := resolvePending(ctx, uow, transactionID, models.TransactionTypeDeposit, models.TransactionStatusRejected)
	if err != nil {
		return err
	}

	uow.EventBus().Publish(events.DepositResolvedEvent{
		TransactionID: trx.ID,
		Username:      trx.Username,
		Amount:        trx.Amount,
		Status:        models.TransactionStatusRejected,
		At:            resolvedAt,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit deposit rejection: %w", err)
	}

	log.WithFields(log.Fields{
		"transactionID": transactionID,
		"userID":        trx.UserID,
	}).Info("Deposit rejected")
	return nil
}

func (s *paymentService) ApproveWithdraw(ctx context.Context, transactionID string) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin unit of work: %w", err)
	}
	defer uow.Rollback()

	// The hold already debited the funds; approval only finalizes the record
	trx, resolvedAt, err := resolvePending(ctx, uow, transactionID, models.TransactionTypeWithdraw, models.TransactionStatusApproved)
	if err != nil {
		return err
	}

	if err := uow.UserRepository().AddTotals(ctx, trx.UserID, 0, trx.Amount); err != nil {
		return err
	}

	uow.EventBus().Publish(events.WithdrawResolvedEvent{
		TransactionID: trx.ID,
		Username:      trx.Username,
		Amount:        trx.Amount,
		Status:        models.TransactionStatusApproved,
		At:            resolvedAt,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit withdrawal approval: %w", err)
	}

	log.WithFields(log.Fields{
		"transactionID": transactionID,
		"userID":        trx.UserID,
		"amount":        trx.Amount,
	}).Info("Withdrawal approved")
	return nil
}

func (s *paymentService) RejectWithdraw(ctx context.Context, transactionID string) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin unit of work: %w", err)
	}
	defer uow.Rollback()

	trx, resolvedAt, err := resolvePending(ctx, uow, transactionID, models.TransactionTypeWithdraw, models.TransactionStatusRejected)
	if err != nil {
		return err
	}

	// Return the held funds. The first-writer-wins flip above guarantees
	// this restitution happens exactly once.
	newBalance, err := uow.UserRepository().AdjustBalance(ctx, trx.UserID, trx.Amount)
	if err != nil {
		return err
	}

	uow.EventBus().Publish(events.WithdrawResolvedEvent{
		TransactionID: trx.ID,
		Username:      trx.Username,
		Amount:        trx.Amount,
		Status:        models.TransactionStatusRejected,
		At:            resolvedAt,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit withdrawal rejection: %w", err)
	}

	log.WithFields(log.Fields{
		"transactionID": transactionID,
		"userID":        trx.UserID,
		"newBalance":    newBalance,
	}).Info("Withdrawal rejected, funds returned")
	return nil
}

func (s *paymentService) GetTransaction(ctx context.Context, transactionID string) (*models.Transaction, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin unit of work: %w", err)
	}
	defer uow.Rollback()

	trx, err := uow.TransactionRepository().GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return trx, nil
}

func (s *paymentService) UserTransactions(ctx context.Context, userID string, limit int) ([]*models.Transaction, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin unit of work: %w", err)
	}
	defer uow.Rollback()

	trxs, err := uow.TransactionRepository().ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return trxs, nil
}

func (s *paymentService) PendingTransactions(ctx context.Context, trxType models.TransactionType) ([]*models.Transaction, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin unit of work: %w", err)
	}
	defer uow.Rollback()

	trxs, err := uow.TransactionRepository().ListPending(ctx, trxType)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return trxs, nil
}
