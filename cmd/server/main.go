// fitcoach - AI coaching chat server
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/fitcoach/internal/api"
	"github.com/ashureev/fitcoach/internal/coach"
	"github.com/ashureev/fitcoach/internal/completion"
	"github.com/ashureev/fitcoach/internal/config"
	"github.com/ashureev/fitcoach/internal/identity"
	"github.com/ashureev/fitcoach/internal/store"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var logLevel = new(slog.LevelVar)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg *config.Config

	root := &cobra.Command{
		Use:           "fitcoach",
		Short:         "AI coaching chat server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil {
				slog.Info("No .env file found, using environment variables")
			}

			loaded, err := config.Load()
			if err != nil {
				return err
			}
			level, err := config.ParseLevel(loaded.LogLevel)
			if err != nil {
				return err
			}
			logLevel.Set(level)
			cfg = loaded
			return nil
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP server",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cmd.Context(), cfg)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create the database schema and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				return migrate(cmd.Context(), cfg)
			},
		},
	)
	return root
}

func openStore(ctx context.Context, cfg *config.Config, autoMigrate bool) (*store.SQLStore, error) {
	repo, err := store.Open(ctx, store.Options{
		Driver:      cfg.DB.Driver,
		DSN:         cfg.DB.DSN,
		AutoMigrate: autoMigrate,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	return repo, nil
}

func migrate(ctx context.Context, cfg *config.Config) error {
	repo, err := openStore(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()
	slog.Info("Schema is up to date", "driver", repo.Driver())
	return nil
}

// newCompleter builds the completion client of the configured provider.
// It returns nil when no API key is configured.
func newCompleter(cfg config.CompletionConfig, logger *slog.Logger) completion.Completer {
	if cfg.APIKey() == "" {
		return nil
	}

	httpClient := &http.Client{}
	var base completion.Completer
	switch cfg.Provider {
	case config.ProviderOpenAI:
		base = completion.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, httpClient)
	default:
		base = completion.NewCohereClient(cfg.CohereAPIKey, cfg.CohereBaseURL, httpClient)
	}

	return completion.NewRetrying(base, completion.RetryConfig{
		MaxRetries:     cfg.MaxRetries,
		AttemptTimeout: cfg.Timeout,
	}, logger)
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := slog.Default()
	slog.Info("Starting server", "port", cfg.Port, "db_driver", cfg.DB.Driver, "provider", cfg.Completion.Provider)

	// Initialize dependencies.
	repo, err := openStore(ctx, cfg, cfg.DB.AutoMigrate)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	slog.Info("Database connected", "driver", repo.Driver())

	completer := newCompleter(cfg.Completion, logger)
	if completer == nil {
		slog.Warn("Completion API key not set, chat requests will fail with configuration_error", "provider", cfg.Completion.Provider, "key", cfg.Completion.APIKeyName())
	}

	// Initialize services.
	svc := coach.NewService(repo, completer, coach.Config{
		Model:      cfg.Completion.Model(),
		APIKeyName: cfg.Completion.APIKeyName(),
	}, logger)
	limiter := api.NewRateLimiter(cfg.RateLimitPerMinute)
	sockets := api.NewSocketRegistry()

	router := api.NewRouter(api.RouterDeps{
		Chat:           svc,
		Repo:           repo,
		Verifier:       identity.NewJWTVerifier(cfg.JWT.Secret, cfg.JWT.Audience),
		Limiter:        limiter,
		Sockets:        sockets,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		MaxBodyBytes:   cfg.MaxRequestBodyBytes,
		Logger:         logger,
	})

	// Completion calls can take a while, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go limiter.Run(ctx)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal.
	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}
	stop()

	slog.Info("Shutting down gracefully...")
	sockets.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("Server stopped successfully")
	return nil
}
