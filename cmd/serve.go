package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shivanand-hulikatti/eventreg/internal/auth"
	"github.com/Shivanand-hulikatti/eventreg/internal/config"
	"github.com/Shivanand-hulikatti/eventreg/internal/database"
	"github.com/Shivanand-hulikatti/eventreg/internal/handler"
	"github.com/Shivanand-hulikatti/eventreg/internal/memstore"
	"github.com/Shivanand-hulikatti/eventreg/internal/metrics"
	"github.com/Shivanand-hulikatti/eventreg/internal/mongostore"
	"github.com/Shivanand-hulikatti/eventreg/internal/repository"
	"github.com/Shivanand-hulikatti/eventreg/internal/service"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		return serve(cmd.Context(), cfg, newLogger(cfg.Log))
	},
}

// stores is the persistence backend selected by STORE_DRIVER.
type stores struct {
	users         service.UserStore
	events        service.EventStore
	registrations service.RegistrationStore
	close         func()
}

func openStores(ctx context.Context, cfg config.StoreConfig, logger zerolog.Logger) (*stores, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		// Connect before migrating; NewPool retries while Postgres starts up.
		pool, err := database.NewPool(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		if cfg.AutoMigrate {
			if err := database.MigrateUp(cfg.DatabaseURL); err != nil {
				pool.Close()
				return nil, err
			}
			logger.Info().Msg("database migrations applied")
		}
		if err := metrics.RegisterPoolStats(pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("register pool metrics: %w", err)
		}
		return &stores{
			users:         repository.NewUserRepository(pool),
			events:        repository.NewEventRepository(pool),
			registrations: repository.NewRegistrationRepository(pool),
			close:         pool.Close,
		}, nil

	case config.DriverMongo:
		store, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Close(context.Background())
			return nil, err
		}
		return &stores{
			users:         store.Users(),
			events:        store.Events(),
			registrations: store.Registrations(),
			close: func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := store.Close(ctx); err != nil {
					logger.Error().Err(err).Msg("mongo disconnect failed")
				}
			},
		}, nil

	case config.DriverMemory:
		logger.Warn().Msg("using in-memory store; data is lost on restart")
		store := memstore.New()
		return &stores{
			users:         store.Users(),
			events:        store.Events(),
			registrations: store.Registrations(),
			close:         func() {},
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

func serve(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Open the store ────────────────────────────────────────────────
	st, err := openStores(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer st.close()
	logger.Info().Str("driver", cfg.Store.Driver).Msg("store ready")

	// ── 2. Wire up layers ────────────────────────────────────────────────
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)

	userSvc := service.NewUserService(st.users, tokens, hasher, logger)
	eventSvc := service.NewEventService(st.events, st.registrations, st.users, logger)

	router := handler.NewRouter(handler.RouterConfig{
		Users:          handler.NewUserHandler(userSvc, logger),
		Events:         handler.NewEventHandler(eventSvc, logger),
		Auth:           auth.NewMiddleware(tokens, logger),
		Logger:         logger,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AuthPerMinute:  cfg.RateLimit.AuthPerMinute,
		Profiler:       cfg.Server.IsDevelopment(),
	})

	// ── 3. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("env", cfg.Server.Env).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Block until SIGINT/SIGTERM or a listener failure.
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
