// Package api exposes the transaction core over HTTP: public auth, payment
// and game endpoints plus the JWT-guarded admin review surface.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth/v5"
	"golang.org/x/time/rate"

	"cashier/service"
)

// Server bundles the services behind the HTTP surface
type Server struct {
	identity  service.IdentityService
	gambling  service.GamblingService
	payments  service.PaymentService
	tokenAuth *jwtauth.JWTAuth
	version   string
}

// NewServer creates an HTTP server facade over the given services
func NewServer(identity service.IdentityService, gambling service.GamblingService, payments service.PaymentService, tokenAuth *jwtauth.JWTAuth, version string) *Server {
	return &Server{
		identity:  identity,
		gambling:  gambling,
		payments:  payments,
		tokenAuth: tokenAuth,
		version:   version,
	}
}

// Router builds the route tree
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	// The platform is consumed from arbitrary browser origins, so the
	// policy is deliberately wide open.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(requestLogger)
	r.NotFound(notFoundHandler)
	r.MethodNotAllowed(methodNotAllowedHandler)

	authLimiter := newAuthRateLimiter(rate.Limit(1), 5)
	r.With(authLimiter.middleware).Post("/auth", s.handleAuth)

	r.Post("/transaction", s.handleTransaction)
	r.Post("/game", s.handleGame)
	r.Get("/health", s.handleHealth)

	r.Route("/admin", func(r chi.Router) {
		r.Use(jwtauth.Verifier(s.tokenAuth))
		r.Use(s.requireAdmin)

		r.Get("/transactions", s.handleListPendingTransactions)
		r.Post("/transactions/{id}/approve", s.handleApproveTransaction)
		r.Post("/transactions/{id}/reject", s.handleRejectTransaction)
		r.Get("/users", s.handleListUsers)
		r.Get("/users/{id}/transactions", s.handleUserTransactions)
		r.Delete("/users/{id}", s.handleDeleteUser)
	})

	return r
}

// requireAdmin rejects requests without a valid token carrying the admin
// claim. It replaces jwtauth.Authenticator so rejections keep the response
// envelope.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			writeJSON(w, http.StatusUnauthorized, envelope{Success: false, Message: "authentication required"})
			return
		}
		if isAdmin, _ := claims["is_admin"].(bool); !isAdmin {
			writeJSON(w, http.StatusForbidden, envelope{Success: false, Message: "admin access required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
