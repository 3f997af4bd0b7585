package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"clinical-consent/internal/adapters/auth/iam"
	"clinical-consent/internal/adapters/auth/jwtverifier"
	"clinical-consent/internal/adapters/events/kafkabus"
	pg "clinical-consent/internal/adapters/storage/postgres"
	"clinical-consent/internal/config"
	"clinical-consent/internal/domain/authorization"
	"clinical-consent/internal/platform/logger"
	"clinical-consent/internal/ports/auth"
	"clinical-consent/internal/ports/events"
	"clinical-consent/internal/router"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "clinical-consent",
		Short:         "Patient consent and QR access token API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DBDSN == "" {
				return errors.New("DB_DSN is required to migrate")
			}

			ctx := context.Background()
			db, err := pg.Open(ctx, cfg.DBDSN, pg.PoolOptions{MaxOpenConns: 1, MaxIdleConns: 1})
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer db.Close()

			n, err := pg.Migrate(ctx, db)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d statement(s) successfully.\n", n)
			return nil
		},
	}
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: logger.ParseFormat(cfg.LogFormat),
		App:    cfg.AppName,
	})

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", map[string]any{"error": err})
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var db *sql.DB
	if cfg.DBDSN != "" {
		db, err = pg.Open(ctx, cfg.DBDSN, pg.PoolOptions{
			MaxOpenConns: cfg.DBMaxOpenConns,
			MaxIdleConns: cfg.DBMaxIdleConns,
		})
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer db.Close()
		log.Info("using postgres storage", nil)
	} else {
		log.Warn("DB_DSN not set, using in-memory storage", nil)
	}

	verifier, err := buildVerifier(cfg)
	if err != nil {
		return err
	}
	if verifier == nil {
		log.Warn("development auth: identity is taken from X-Debug-User-ID / X-Debug-Role", nil)
	}

	var publisher events.Publisher = events.Discard{}
	if len(cfg.KafkaBrokers) > 0 {
		p, err := kafkabus.NewProducer(kafkabus.Config{
			Brokers:  cfg.KafkaBrokers,
			Topic:    cfg.KafkaTopic,
			Username: cfg.KafkaUsername,
			Password: cfg.KafkaPassword,
			Logger:   log.With(map[string]any{"component": "kafka"}),
		})
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		defer p.Close()
		publisher = p
		log.Info("audit events enabled", map[string]any{"topic": cfg.KafkaTopic})
	}

	stores := router.NewStores(db, pg.Retry{
		Attempts: cfg.DBRetryAttempts,
		Backoff:  cfg.DBRetryBackoff,
	})

	janitor := authorization.NewJanitor(stores.Tokens, cfg.TokenCleanupInterval, cfg.TokenRetention,
		log.With(map[string]any{"component": "janitor"}))
	waitJanitor := runInBackground(ctx, janitor.Run)
	// corre antes de db.Close: un Sweep en curso termina con la DB abierta
	defer func() {
		stop()
		waitJanitor()
	}()

	handler := router.NewRouter(router.Options{
		AuthVerifier:       verifier,
		Stores:             &stores,
		Logger:             log,
		Publisher:          publisher,
		TokenTTL:           cfg.QRTokenTTL,
		MaxConsentDuration: cfg.ConsentMaxDuration,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", map[string]any{"addr": srv.Addr, "auth_mode": cfg.ResolvedAuthMode()})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("server error", map[string]any{"error": err})
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", map[string]any{"error": err})
		return err
	}
	log.Info("server stopped", nil)
	return nil
}

// runInBackground lanza run y devuelve una función que bloquea hasta que termina.
func runInBackground(ctx context.Context, run func(context.Context)) (wait func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		run(ctx)
	}()
	return func() { <-done }
}

// buildVerifier devuelve nil en modo dev (headers de debug).
func buildVerifier(cfg *config.Config) (auth.AuthVerifier, error) {
	switch cfg.ResolvedAuthMode() {
	case config.AuthModeJWT:
		v, err := jwtverifier.New(jwtverifier.Config{
			Secret:   cfg.AuthJWTSecret,
			Issuer:   cfg.AuthJWTIssuer,
			Audience: cfg.AuthJWTAudience,
		})
		if err != nil {
			return nil, fmt.Errorf("jwt verifier: %w", err)
		}
		return v, nil
	case config.AuthModeIAM:
		c, err := iam.NewClient(iam.Config{
			BaseURL: cfg.IAMBaseURL,
			APIKey:  cfg.IAMAPIKey,
			Timeout: cfg.IAMTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("iam client: %w", err)
		}
		return iam.NewVerifier(c), nil
	default:
		return nil, nil
	}
}
