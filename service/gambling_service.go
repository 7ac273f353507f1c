package service

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"cashier/events"
	"cashier/models"
)

// GamblingPolicy tunes the simulated game
type GamblingPolicy struct {
	// WinProbability is the chance a bet wins, in (0, 1)
	WinProbability float64

	// MinBet is the smallest accepted stake
	MinBet int64

	// MaxPayoutMultiplier bounds the payout draw: a winning bet pays
	// floor(bet * m) with m uniform in [1, MaxPayoutMultiplier)
	MaxPayoutMultiplier float64
}

type gamblingService struct {
	uowFactory UnitOfWorkFactory
	policy     GamblingPolicy
	roll       func() float64
}

// NewGamblingService creates a new gambling service
func NewGamblingService(uowFactory UnitOfWorkFactory, policy GamblingPolicy) GamblingService {
	return newGamblingServiceWithRoll(uowFactory, policy, rand.Float64)
}

// roll injectable for deterministic tests
func newGamblingServiceWithRoll(uowFactory UnitOfWorkFactory, policy GamblingPolicy, roll func() float64) GamblingService {
	return &gamblingService{
		uowFactory: uowFactory,
		policy:     policy,
		roll:       roll,
	}
}

func (s *gamblingService) PlaceBet(ctx context.Context, userID string, betAmount int64, gameID, gameName string) (*models.BetResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if betAmount < s.policy.MinBet {
		return nil, fmt.Errorf("%w: bet amount must be at least %d", ErrValidation, s.policy.MinBet)
	}

	// Draw the outcome before touching the store so the unit of work holds
	// no lock while rolling
	won := s.roll() < s.policy.WinProbability
	var winAmount int64
	if won {
		multiplier := 1 + s.roll()*(s.policy.MaxPayoutMultiplier-1)
		winAmount = int64(math.Floor(float64(betAmount) * multiplier))
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin unit of work: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Debit the stake first: the conditional update enforces coverage
	// atomically, win or lose. Any payout lands in the same unit of work.
	newBalance, err := uow.UserRepository().AdjustBalance(ctx, userID, -betAmount)
	if err != nil {
		return nil, err
	}
	if winAmount > 0 {
		newBalance, err = uow.UserRepository().AdjustBalance(ctx, userID, winAmount)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now()
	trx := &models.Transaction{
		ID:            uuid.NewString(),
		UserID:        user.ID,
		Username:      user.Username,
		Type:          models.TransactionTypeBet,
		Amount:        betAmount,
		Status:        models.TransactionStatusApproved,
		CreatedAt:     now,
		ResolvedAt:    &now,
		GameID:        gameID,
		GameName:      gameName,
		WinAmount:     winAmount,
		IsWin:         won,
		BalanceBefore: user.Balance,
		BalanceAfter:  newBalance,
	}
	if _, err := uow.TransactionRepository().Create(ctx, trx); err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.BetPlacedEvent{
		TransactionID: trx.ID,
		UserID:        user.ID,
		Username:      user.Username,
		BetAmount:     betAmount,
		WinAmount:     winAmount,
		IsWin:         won,
		NewBalance:    newBalance,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit bet: %w", err)
	}

	log.WithFields(log.Fields{
		"userID":     userID,
		"betAmount":  betAmount,
		"won":        won,
		"winAmount":  winAmount,
		"newBalance": newBalance,
	}).Info("Bet settled")

	return &models.BetResult{
		IsWin:      won,
		BetAmount:  betAmount,
		WinAmount:  winAmount,
		NewBalance: newBalance,
	}, nil
}
