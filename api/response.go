package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"cashier/models"
	"cashier/service"
)

// envelope is the response shape shared by every endpoint
type envelope struct {
	Success       bool             `json:"success"`
	Message       string           `json:"message"`
	User          *userView        `json:"user,omitempty"`
	Token         string           `json:"token,omitempty"`
	TransactionID string           `json:"transactionId,omitempty"`
	Result        *betResultView   `json:"result,omitempty"`
	Transactions  []*trxView       `json:"transactions,omitempty"`
	Users         []*userView      `json:"users,omitempty"`
}

// userView is the caller-facing projection of a user record
type userView struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Balance       int64     `json:"balance"`
	TotalDeposit  int64     `json:"totalDeposit"`
	TotalWithdraw int64     `json:"totalWithdraw"`
	IsAdmin       bool      `json:"isAdmin"`
	CreatedAt     time.Time `json:"createdAt"`
	LastLogin     time.Time `json:"lastLogin"`
}

func viewUser(u *models.User) *userView {
	return &userView{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		Phone:         u.Phone,
		Balance:       u.Balance,
		TotalDeposit:  u.TotalDeposit,
		TotalWithdraw: u.TotalWithdraw,
		IsAdmin:       u.IsAdmin,
		CreatedAt:     u.CreatedAt,
		LastLogin:     u.LastLogin,
	}
}

func viewUsers(users []*models.User) []*userView {
	views := make([]*userView, len(users))
	for i, u := range users {
		views[i] = viewUser(u)
	}
	return views
}

type betResultView struct {
	IsWin      bool  `json:"isWin"`
	WinAmount  int64 `json:"winAmount"`
	NewBalance int64 `json:"newBalance"`
}

type trxView struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	Username   string     `json:"username"`
	Type       string     `json:"type"`
	Amount     int64      `json:"amount"`
	Method     string     `json:"method,omitempty"`
	Contact    string     `json:"contact,omitempty"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

func viewTransactions(trxs []*models.Transaction) []*trxView {
	views := make([]*trxView, len(trxs))
	for i, t := range trxs {
		views[i] = &trxView{
			ID:         t.ID,
			UserID:     t.UserID,
			Username:   t.Username,
			Type:       string(t.Type),
			Amount:     t.Amount,
			Method:     t.Method,
			Contact:    t.Contact,
			Status:     string(t.Status),
			CreatedAt:  t.CreatedAt,
			ResolvedAt: t.ResolvedAt,
		}
	}
	return views
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Error("Failed to encode response")
	}
}

// writeError classifies a service failure onto an HTTP status. Unclassified
// errors are hidden behind a generic message so no store detail leaks out.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrInsufficientFunds),
		errors.Is(err, service.ErrDuplicateUsername),
		errors.Is(err, service.ErrAlreadyResolved),
		errors.Is(err, service.ErrInvalidState):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, service.ErrInvalidCredentials):
		status = http.StatusUnauthorized
		message = err.Error()
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrTransactionNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, service.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
		message = service.ErrStoreUnavailable.Error()
	default:
		log.WithError(err).Error("Unclassified handler error")
	}

	writeJSON(w, status, envelope{Success: false, Message: message})
}
