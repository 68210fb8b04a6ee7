/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the vacation request server, and hosts the small
  operator commands that work on the same database.

COMMANDS:
  serve   HTTP server (default when no command is given)
  seed    Create the demo directory (Alice/Requester, Bob/Validator)
  users   Print the directory

STARTUP SEQUENCE (serve):
  1. Load configuration (.env, environment, flags)
  2. Build the zap logger
  3. Initialize SQLite store
  4. Create engine, query facade and API handler
  5. Configure HTTP router
  6. Start server with graceful shutdown

FLAGS (override the environment):
  --port   HTTP server port (PORT, default 4000)
  --db     SQLite database path (DB_PATH, default vacations.db)
           Use ":memory:" for in-memory database
  --strict Reject transitions of decided requests and by non-validators

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (SHUTDOWN_TIMEOUT)
  3. Close database connection

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/vacation-engine/api"
	"github.com/warp/vacation-engine/config"
	"github.com/warp/vacation-engine/store/sqlite"
	"github.com/warp/vacation-engine/vacation"
	"go.uber.org/zap"
)

// flags holds command-line overrides shared by every command.
type flags struct {
	port   int
	dbPath string
	strict bool
}

func main() {
	var f flags

	rootCmd := &cobra.Command{
		Use:   "vacation-engine",
		Short: "Vacation request lifecycle server",
		Long: `vacation-engine serves the vacation request API: employees submit
date ranges, validators approve or reject them.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().IntVar(&f.port, "port", 0, "HTTP server port (overrides PORT)")
	rootCmd.PersistentFlags().StringVar(&f.dbPath, "db", "", "SQLite database path (overrides DB_PATH)")
	rootCmd.PersistentFlags().BoolVar(&f.strict, "strict", false, "strict transitions (overrides STRICT_TRANSITIONS)")

	serveCommand := serveCmd(&f)
	rootCmd.AddCommand(serveCommand)
	rootCmd.AddCommand(seedCmd(&f))
	rootCmd.AddCommand(usersCmd(&f))
	rootCmd.RunE = serveCommand.RunE

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig applies the flags that were set on top of the environment.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = f.port
	}
	if cmd.Flags().Changed("db") {
		cfg.DBPath = f.dbPath
	}
	if cmd.Flags().Changed("strict") {
		cfg.StrictTransitions = f.strict
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func serveCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			logger, err := cfg.NewLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()
			zap.ReplaceGlobals(logger)

			return serve(cfg, logger)
		},
	}
}

func serve(cfg *config.Config, logger *zap.Logger) error {
	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	opts := []vacation.Option{vacation.WithLocation(loc), vacation.WithLogger(logger)}
	if cfg.StrictTransitions {
		opts = append(opts, vacation.WithStrictTransitions())
	}

	engine := vacation.NewEngine(store, store, opts...)
	queries := vacation.NewQueries(store, store, logger)
	handler := api.NewHandler(engine, queries, store, logger)
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Port),
			zap.String("db", cfg.DBPath),
			zap.Bool("strict_transitions", cfg.StrictTransitions),
			zap.String("timezone", loc.String()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-quit:
		logger.Info("shutting down server", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
