package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"cashier/models"
	"cashier/service"
)

type authRequest struct {
	Action   string `json:"action"`
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: malformed json body", service.ErrValidation))
		return
	}

	switch req.Action {
	case "register":
		user, err := s.identity.Register(r.Context(), req.Username, req.Password, req.Email, req.Phone)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, envelope{
			Success: true,
			Message: "registration successful",
			User:    viewUser(user),
		})
	case "login":
		user, token, err := s.identity.Authenticate(r.Context(), req.Username, req.Password)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, envelope{
			Success: true,
			Message: "login successful",
			User:    viewUser(user),
			Token:   token,
		})
	default:
		writeError(w, fmt.Errorf("%w: unknown action %q", service.ErrValidation, req.Action))
	}
}

type transactionRequest struct {
	Action string `json:"action"`
	UserID string `json:"userId"`
	Amount int64  `json:"amount"`
	Method string `json:"method"`
	Phone  string `json:"phone"`
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: malformed json body", service.ErrValidation))
		return
	}

	switch req.Action {
	case "deposit":
		trx, err := s.payments.RequestDeposit(r.Context(), req.UserID, req.Amount, req.Method, req.Phone)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, envelope{
			Success:       true,
			Message:       "deposit request received, awaiting confirmation",
			TransactionID: trx.ID,
		})
	case "withdraw":
		trx, err := s.payments.RequestWithdraw(r.Context(), req.UserID, req.Amount, req.Method, req.Phone)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, envelope{
			Success:       true,
			Message:       "withdrawal request received, funds held",
			TransactionID: trx.ID,
		})
	default:
		writeError(w, fmt.Errorf("%w: unknown action %q", service.ErrValidation, req.Action))
	}
}

type gameRequest struct {
	Action    string `json:"action"`
	UserID    string `json:"userId"`
	GameID    string `json:"gameId"`
	GameName  string `json:"gameName"`
	BetAmount int64  `json:"betAmount"`
}

func (s *Server) handleGame(w http.ResponseWriter, r *http.Request) {
	var req gameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: malformed json body", service.ErrValidation))
		return
	}
	if req.Action != "play" {
		writeError(w, fmt.Errorf("%w: unknown action %q", service.ErrValidation, req.Action))
		return
	}

	result, err := s.gambling.PlaceBet(r.Context(), req.UserID, req.BetAmount, req.GameID, req.GameName)
	if err != nil {
		writeError(w, err)
		return
	}

	message := "better luck next time"
	if result.IsWin {
		message = fmt.Sprintf("you won %d", result.WinAmount)
	}
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: message,
		Result: &betResultView{
			IsWin:      result.IsWin,
			WinAmount:  result.WinAmount,
			NewBalance: result.NewBalance,
		},
	})
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(healthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   s.version,
	})
}

func (s *Server) handleListPendingTransactions(w http.ResponseWriter, r *http.Request) {
	trxType := models.TransactionType(r.URL.Query().Get("type"))
	switch trxType {
	case "", models.TransactionTypeDeposit, models.TransactionTypeWithdraw, models.TransactionTypeBet:
	default:
		writeError(w, fmt.Errorf("%w: unknown transaction type %q", service.ErrValidation, trxType))
		return
	}

	trxs, err := s.payments.PendingTransactions(r.Context(), trxType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		Success:      true,
		Message:      fmt.Sprintf("%d pending transactions", len(trxs)),
		Transactions: viewTransactions(trxs),
	})
}

// resolveTransaction routes an admin decision to the right payment operation
// for the transaction's type
func (s *Server) resolveTransaction(w http.ResponseWriter, r *http.Request, approve bool) {
	transactionID := chi.URLParam(r, "id")

	trx, err := s.payments.GetTransaction(r.Context(), transactionID)
	if err != nil {
		writeError(w, err)
		return
	}

	switch trx.Type {
	case models.TransactionTypeDeposit:
		if approve {
			_, err = s.payments.ApproveDeposit(r.Context(), transactionID)
		} else {
			err = s.payments.RejectDeposit(r.Context(), transactionID)
		}
	case models.TransactionTypeWithdraw:
		if approve {
			err = s.payments.ApproveWithdraw(r.Context(), transactionID)
		} else {
			err = s.payments.RejectWithdraw(r.Context(), transactionID)
		}
	default:
		err = fmt.Errorf("%w: %s transactions are not reviewable", service.ErrInvalidState, trx.Type)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	decision := "rejected"
	if approve {
		decision = "approved"
	}
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: fmt.Sprintf("transaction %s", decision),
	})
}

func (s *Server) handleApproveTransaction(w http.ResponseWriter, r *http.Request) {
	s.resolveTransaction(w, r, true)
}

func (s *Server) handleRejectTransaction(w http.ResponseWriter, r *http.Request) {
	s.resolveTransaction(w, r, false)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.identity.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: fmt.Sprintf("%d users", len(users)),
		Users:   viewUsers(users),
	})
}

func (s *Server) handleUserTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, fmt.Errorf("%w: limit must be a non-negative integer", service.ErrValidation))
			return
		}
		limit = parsed
	}

	trxs, err := s.payments.UserTransactions(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		Success:      true,
		Message:      fmt.Sprintf("%d transactions", len(trxs)),
		Transactions: viewTransactions(trxs),
	})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.identity.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "user deleted"})
}
