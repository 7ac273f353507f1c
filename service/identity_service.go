package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"cashier/events"
	"cashier/models"
)

const (
	minUsernameLength = 3
	minPasswordLength = 6
)

// IdentityPolicy tunes account creation and session issuance
type IdentityPolicy struct {
	// StartingBalance is credited to every new account
	StartingBalance int64

	// TokenTTL bounds session token validity
	TokenTTL time.Duration
}

type identityService struct {
	uowFactory UnitOfWorkFactory
	tokenAuth  *jwtauth.JWTAuth
	policy     IdentityPolicy
}

// NewIdentityService creates a new identity service
func NewIdentityService(uowFactory UnitOfWorkFactory, tokenAuth *jwtauth.JWTAuth, policy IdentityPolicy) IdentityService {
	return &identityService{
		uowFactory: uowFactory,
		tokenAuth:  tokenAuth,
		policy:     policy,
	}
}

func (s *identityService) Register(ctx context.Context, username, password, email, phone string) (*models.User, error) {
	if len(username) < minUsernameLength {
		return nil, fmt.Errorf("%w: username must be at least %d characters", ErrValidation, minUsernameLength)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}

	// Hash outside the unit of work: bcrypt is deliberately slow and must
	// not extend the store's critical section
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin unit of work: %w", err)
	}
	defer uow.Rollback()

	// The very first account on the platform becomes the admin
	count, err := uow.UserRepository().Count(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		Email:        email,
		Phone:        phone,
		Balance:      s.policy.StartingBalance,
		IsAdmin:      count == 0,
		CreatedAt:    now,
		LastLogin:    now,
	}
	created, err := uow.UserRepository().Create(ctx, user)
	if err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.UserRegisteredEvent{
		UserID:   created.ID,
		Username: created.Username,
		Email:    created.Email,
		Phone:    created.Phone,
		At:       now,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit registration: %w", err)
	}

	log.WithFields(log.Fields{
		"userID":   created.ID,
		"username": created.Username,
		"isAdmin":  created.IsAdmin,
	}).Info("User registered")

	return created, nil
}

func (s *identityService) Authenticate(ctx context.Context, username, password string) (*models.User, string, error) {
	if username == "" || password == "" {
		return nil, "", fmt.Errorf("%w: username and password are required", ErrValidation)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, "", fmt.Errorf("failed to begin unit of work: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Indistinguishable from a wrong password on purpose
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	now := time.Now()
	if err := uow.UserRepository().TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, "", err
	}
	user.LastLogin = now

	uow.EventBus().Publish(events.UserLoggedInEvent{
		UserID:   user.ID,
		Username: user.Username,
		Balance:  user.Balance,
		At:       now,
	})

	if err := uow.Commit(); err != nil {
		return nil, "", fmt.Errorf("failed to commit login: %w", err)
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue session token: %w", err)
	}

	log.WithFields(log.Fields{
		"userID":   user.ID,
		"username": user.Username,
	}).Info("User authenticated")

	return user, token, nil
}

func (s *identityService) issueToken(user *models.User) (string, error) {
	claims := map[string]interface{}{
		"user_id":  user.ID,
		"username": user.Username,
		"is_admin": user.IsAdmin,
	}
	jwtauth.SetIssuedNow(claims)
	jwtauth.SetExpiryIn(claims, s.policy.TokenTTL)

	_, token, err := s.tokenAuth.Encode(claims)
	return token, err
}

func (s *identityService) DeleteUser(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin unit of work: %w", err)
	}
	defer uow.Rollback()

	pending, err := uow.TransactionRepository().CountPendingByUser(ctx, userID)
	if err != nil {
		return err
	}
	if pending > 0 {
		return fmt.Errorf("%w: user has %d pending transactions", ErrInvalidState, pending)
	}

	if err := uow.UserRepository().Delete(ctx, userID); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit user deletion: %w", err)
	}

	log.WithField("userID", userID).Info("User deleted")
	return nil
}

func (s *identityService) ListUsers(ctx context.Context) ([]*models.User, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin unit of work: %w", err)
	}
	defer uow.Rollback()

	users, err := uow.UserRepository().GetAll(ctx)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return users, nil
}
