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

	"github.com/Dan9191/fintrack/internal/config"
	"github.com/Dan9191/fintrack/internal/database"
	"github.com/Dan9191/fintrack/internal/handler"
	"github.com/Dan9191/fintrack/internal/middleware"
	"github.com/Dan9191/fintrack/internal/notify"
	"github.com/Dan9191/fintrack/internal/repository"
	"github.com/Dan9191/fintrack/internal/scheduler"
	"github.com/Dan9191/fintrack/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	logger = logrus.New()
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "fintrack",
	Short: "Personal finance tracker API",
	Long: `fintrack serves the personal finance tracker API: transactions,
recurring rules and spending analytics.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.NewConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		configureLogger(cfg)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := database.Migrate(cmd.Context(), cfg.DBConn)
		if err != nil {
			return err
		}
		logger.Infof("Database schema at version %d", version)
		return nil
	},
}

var processUser string

var processCmd = &cobra.Command{
	Use:   "process-recurring",
	Short: "Record due recurring transactions of one user",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := uuid.Parse(processUser)
		if err != nil {
			return fmt.Errorf("invalid --user: %w", err)
		}
		svc, closeStore, err := buildService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		result, err := svc.ProcessRecurring(cmd.Context(), userID)
		if err != nil {
			return err
		}
		svc.WaitForDigests()
		for _, o := range result.Rules {
			logger.WithFields(logrus.Fields{
				"rule_id":       o.RuleID,
				"status":        o.Status,
				"count":         o.Generated,
				"next_due_date": o.NextDueDate.Format("2006-01-02"),
			}).Info("Rule processed")
		}
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Record due recurring transactions of every user once",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeStore, err := buildService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		_, err = scheduler.NewSweeper(svc, logger).RunOnce(cmd.Context(), time.Now().UTC())
		svc.WaitForDigests()
		return err
	},
}

func init() {
	decimal.MarshalJSONWithoutQuotes = true

	processCmd.Flags().StringVar(&processUser, "user", "", "id of the user whose rules are processed")
	processCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(serveCmd, migrateCmd, processCmd, sweepCmd)
}

func configureLogger(cfg *config.Config) {
	if cfg.LogFormat == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)
}

// buildService opens the configured store and wires the service on top of it
func buildService(ctx context.Context) (*service.Service, func(), error) {
	var store service.Store
	closeStore := func() {}

	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		logger.Warn("Using in-memory store, data is lost on exit")
		store = repository.NewMemoryStore()
	default:
		if cfg.MigrateOnStart {
			version, err := database.Migrate(ctx, cfg.DBConn)
			if err != nil {
				return nil, nil, err
			}
			logger.Infof("Database schema at version %d", version)
		}
		db, err := database.Open(ctx, cfg.DBConn)
		if err != nil {
			return nil, nil, err
		}
		store = repository.NewRepository(db)
		closeStore = func() { db.Close() }
	}

	svc := service.NewService(store, logger, cfg)
	if cfg.NotificationsEnabled() {
		svc.WithNotifier(notify.NewSender(cfg, logger))
	}
	return svc, closeStore, nil
}

func serve(ctx context.Context) error {
	svc, closeStore, err := buildService(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.SweepSchedule != "" {
		if err := scheduler.NewSweeper(svc, logger).Start(ctx, cfg.SweepSchedule); err != nil {
			return err
		}
	}

	h := handler.NewHandler(svc, logger)
	router := handler.NewRouter(h, middleware.AuthMiddleware(svc, logger), cfg.CORSOrigins)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = server.Shutdown(shutdownCtx)
	svc.WaitForDigests()
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}
