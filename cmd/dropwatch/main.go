// Command dropwatch monitors a price-drops feed and posts a Discord alert
// when an item reaches a new all-time low.
//
// Usage:
//
//	dropwatch run
//	dropwatch check --dry-run
//	dropwatch state inspect
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/albapepper/dropwatch/internal/api"
	"github.com/albapepper/dropwatch/internal/api/handler"
	"github.com/albapepper/dropwatch/internal/cache"
	"github.com/albapepper/dropwatch/internal/config"
	"github.com/albapepper/dropwatch/internal/db"
	"github.com/albapepper/dropwatch/internal/monitor"
	"github.com/albapepper/dropwatch/internal/notifications"
	"github.com/albapepper/dropwatch/internal/pricing"
	"github.com/albapepper/dropwatch/internal/provider/stocktrack"
	"github.com/albapepper/dropwatch/internal/state"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:           "dropwatch",
		Short:         "Price-drop monitor with Discord alerts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(runCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(stateCmd())

	if err := root.Execute(); err != nil {
		logger.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// run command
// --------------------------------------------------------------------------

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run a cycle now, then on every check interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(false, func(ctx context.Context, a *app) error {
				if a.cfg.StatusEnabled() {
					h := handler.New(a.coord, a.dbCheck(), a.history, a.cfg.CheckInterval)
					router := api.NewRouter(h, a.cfg, logger)
					go func() {
						if err := api.Serve(ctx, a.cfg.StatusAddr, router, logger); err != nil {
							logger.Error("Status server failed", "error", err)
						}
					}()
				} else {
					logger.Info("Status server disabled (no STATUS_ADDR)")
				}

				logger.Info("Starting monitor",
					"interval", a.cfg.CheckInterval,
					"request_delay", a.cfg.RequestDelay,
					"max_history_days", a.cfg.MaxHistoryDays,
					"state_backend", a.cfg.StateBackend)
				return monitor.NewScheduler(a.coord, a.cfg.CheckInterval, logger).Run(ctx)
			})
		},
	}
}

// --------------------------------------------------------------------------
// check command
// --------------------------------------------------------------------------

func checkCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run a single cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(dryRun, func(ctx context.Context, a *app) error {
				result, err := a.coord.RunCycle(ctx)
				for _, e := range result.Errors {
					logger.Error("cycle error", "error", e)
				}
				if err != nil {
					return fmt.Errorf("cycle %s: %w", result.CycleID, err)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log alerts instead of posting them")
	return cmd
}

// --------------------------------------------------------------------------
// state command
// --------------------------------------------------------------------------

func stateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect persisted state",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "inspect",
		Short: "Print tracked item and ledger counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(func(ctx context.Context, cfg *config.Config, store *pricing.Store, ledger *pricing.Ledger) error {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "backend:         %s\n", cfg.StateBackend)
				fmt.Fprintf(out, "tracked items:   %d\n", store.CountTrackedItems())
				fmt.Fprintf(out, "ledger entries:  %d\n", ledger.Len())
				if oldest, ok := store.Oldest(); ok {
					fmt.Fprintf(out, "oldest point:    %s\n", oldest.Format(time.RFC3339))
				} else {
					fmt.Fprintln(out, "oldest point:    none")
				}
				if store.OverCapacity(cfg.MaxSKUEntries) {
					fmt.Fprintf(out, "warning:         tracked items exceed MAX_SKU_ENTRIES (%d)\n", cfg.MaxSKUEntries)
				}
				return nil
			})
		},
	})
	return cmd
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

type app struct {
	cfg     *config.Config
	pool    *db.Pool // nil with the file backend
	history *cache.Cache
	coord   *monitor.Coordinator
}

func (a *app) dbCheck() handler.DBChecker {
	if a.pool == nil {
		return nil
	}
	return a.pool
}

// withState handles config loading, logging, backend selection and loading
// persisted state. A corrupt document stops here.
func withState(fn func(ctx context.Context, cfg *config.Config, store *pricing.Store, ledger *pricing.Ledger) error) error {
	return setup(func(ctx context.Context, cfg *config.Config, backend state.Backend, _ *db.Pool) error {
		store, ledger, err := backend.Load(ctx)
		if err != nil {
			return fmt.Errorf("load state: %w", err)
		}
		return fn(ctx, cfg, store, ledger)
	})
}

// withApp wires the full monitor.
func withApp(dryRun bool, fn func(ctx context.Context, a *app) error) error {
	return setup(func(ctx context.Context, cfg *config.Config, backend state.Backend, pool *db.Pool) error {
		store, ledger, err := backend.Load(ctx)
		if err != nil {
			return fmt.Errorf("load state: %w", err)
		}

		history := cache.New(cfg.HistoryCacheTTL)
		source := stocktrack.NewClient(stocktrack.Config{
			DropsURL:       cfg.DropsURL,
			HistoryURL:     cfg.HistoryURL,
			ProductBaseURL: cfg.ProductBaseURL,
			UserAgent:      cfg.UserAgent,
			Timeout:        cfg.RequestTimeout,
			RequestDelay:   cfg.RequestDelay,
		}, history, logger)

		var notifier notifications.Notifier = notifications.NewDiscordNotifier(notifications.DiscordConfig{
			WebhookURL: cfg.WebhookURL,
			Username:   cfg.DiscordUsername,
			AvatarURL:  cfg.DiscordAvatarURL,
			Timeout:    cfg.RequestTimeout,
			Retry:      notifications.DefaultRetryPolicy(cfg.WebhookRetries, cfg.WebhookRetryBase),
		}, logger)
		if dryRun {
			notifier = notifications.LogNotifier{Logger: logger}
		}

		coord := monitor.NewCoordinator(source, notifier, backend, store, ledger, monitor.Options{
			MaxHistoryDays: cfg.MaxHistoryDays,
			MaxSKUEntries:  cfg.MaxSKUEntries,
		}, logger)

		return fn(ctx, &app{cfg: cfg, pool: pool, history: history, coord: coord})
	})
}

// setup loads config, configures logging and opens the state backend.
func setup(fn func(ctx context.Context, cfg *config.Config, backend state.Backend, pool *db.Pool) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	closeLog, err := configureLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	var pool *db.Pool
	var backend state.Backend
	switch cfg.StateBackend {
	case config.BackendPostgres:
		logger.Info("Connecting to database...")
		pool, err = db.New(ctx, cfg.DatabaseURL, db.Options{
			MaxConns: cfg.DBPoolMaxConns,
			MaxLife:  cfg.DBPoolMaxLife,
		})
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer pool.Close()
		backend = state.NewPostgresBackend(pool, logger)
	default:
		backend = state.NewFileBackend(cfg.StateFilePath, logger)
	}

	return fn(ctx, cfg, backend, pool)
}

// configureLogging replaces the package logger with one at the configured
// level, writing to stdout and, when set, the log file.
func configureLogging(cfg *config.Config) (func(), error) {
	var w io.Writer = os.Stdout
	closeFn := func() {}
	if cfg.LogFilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFilePath), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.LogFilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, f)
		closeFn = func() { f.Close() }
	}
	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	return closeFn, nil
}
