package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"
	log "github.com/sirupsen/logrus"

	"cashier/api"
	"cashier/config"
	"cashier/database"
	"cashier/events"
	"cashier/memstore"
	"cashier/notifier"
	"cashier/repository"
	"cashier/service"
)

const version = "1.0.0"

// Run initializes and starts the application
func Run(ctx context.Context) error {
	cfg := config.Get()

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	log.SetLevel(level)
	log.SetFormatter(&log.JSONFormatter{})

	log.WithField("version", version).Info("Starting cashier...")

	eventBus := events.NewBus()

	// Pick the ledger backend: Postgres when configured, the in-memory
	// store otherwise, and optionally Postgres with in-memory failover
	var db *database.DB
	var uowFactory service.UnitOfWorkFactory
	switch {
	case cfg.DatabaseURL == "":
		log.Warn("No DATABASE_URL set, running on the in-memory store; all data is lost on restart")
		uowFactory = memstore.NewFactory(memstore.NewStore(), eventBus)
	default:
		db, err = database.NewConnection(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Info("Database connection established")

		primary := repository.NewUnitOfWorkFactory(db, eventBus)
		if cfg.MemoryFallback {
			fallback := memstore.NewFactory(memstore.NewStore(), eventBus)
			uowFactory = repository.NewFailoverFactory(primary, fallback)
		} else {
			uowFactory = primary
		}
	}

	// Notification sinks are each enabled by configuration
	var sinks []notifier.Sink
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		sinks = append(sinks, notifier.NewTelegramSink(cfg.TelegramToken, cfg.TelegramChatID))
	}
	if cfg.DiscordToken != "" && cfg.DiscordChannel != "" {
		discordSink, err := notifier.NewDiscordSink(cfg.DiscordToken, cfg.DiscordChannel)
		if err != nil {
			return fmt.Errorf("failed to initialize discord sink: %w", err)
		}
		sinks = append(sinks, discordSink)
	}
	if len(sinks) > 0 {
		notifier.NewDispatcher(sinks...).Register(eventBus)
		log.WithField("sinks", len(sinks)).Info("Notification dispatcher registered")
	}

	tokenAuth := jwtauth.New("HS256", []byte(cfg.JWTSecret), nil)

	identityService := service.NewIdentityService(uowFactory, tokenAuth, service.IdentityPolicy{
		StartingBalance: cfg.StartingBalance,
		TokenTTL:        cfg.TokenTTL,
	})
	gamblingService := service.NewGamblingService(uowFactory, service.GamblingPolicy{
		WinProbability:      cfg.WinProbability,
		MinBet:              cfg.MinBet,
		MaxPayoutMultiplier: cfg.MaxPayoutMultiplier,
	})
	paymentService := service.NewPaymentService(uowFactory, service.PaymentPolicy{
		MinDeposit:     cfg.MinDeposit,
		MinWithdraw:    cfg.MinWithdraw,
		BonusThreshold: cfg.BonusThreshold,
		BonusRate:      cfg.BonusRate,
	})

	server := api.NewServer(identityService, gamblingService, paymentService, tokenAuth, version)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{
			"addr":        cfg.ListenAddr,
			"environment": cfg.Environment,
		}).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown incomplete")
	}

	if db != nil {
		log.Info("Closing database connection...")
		db.Close()
	}

	log.Info("Shutdown completed")
	return nil
}
