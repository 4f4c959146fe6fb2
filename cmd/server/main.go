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

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/casegrid/internal/cache"
	"github.com/JonMunkholm/casegrid/internal/config"
	"github.com/JonMunkholm/casegrid/internal/core"
	_ "github.com/JonMunkholm/casegrid/internal/core/screens" // Register built-in screens
	"github.com/JonMunkholm/casegrid/internal/logging"
	"github.com/JonMunkholm/casegrid/internal/metrics"
	"github.com/JonMunkholm/casegrid/internal/store"
	"github.com/JonMunkholm/casegrid/internal/web"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type serveOptions struct {
	memory   bool
	demoRows int
	migrate  bool
}

func newRootCmd() *cobra.Command {
	opts := &serveOptions{}

	root := &cobra.Command{
		Use:           "casegrid",
		Short:         "Editable case grids over the casos database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Overload overwrites existing env vars
			if err := godotenv.Overload(); err != nil {
				slog.Info("no .env file found, using environment variables")
			} else {
				slog.Info("loaded .env file (overwriting existing env vars)")
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}
	for _, c := range []*cobra.Command{root, serve} {
		c.Flags().BoolVar(&opts.memory, "memory", false, "serve seeded in-memory data instead of PostgreSQL")
		c.Flags().IntVar(&opts.demoRows, "demo-rows", 200, "number of demo casos with --memory")
		c.Flags().BoolVar(&opts.migrate, "migrate", false, "apply the database schema before serving")
	}

	root.AddCommand(serve, &cobra.Command{
		Use:   "config",
		Short: "Validate the configuration and print it with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg.String())
			return nil
		},
	})
	return root
}

func runServe(opts *serveOptions) error {
	if opts.memory {
		os.Setenv("DB_MEMORY", "true")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return err
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"memory_store", cfg.Database.Memory,
		"loader_max_concurrent", cfg.Loader.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()
	st, closeStore, err := openStore(ctx, cfg, opts)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		return err
	}
	defer closeStore()

	m := metrics.New()
	cacheOpts := []cache.Option{cache.WithObserver(m)}
	if cfg.Cache.RedisURL != "" {
		backend, err := cache.NewRedisBackend(cfg.Cache.RedisURL, cfg.Cache.RedisPrefix)
		if err != nil {
			slog.Error("failed to configure redis cache", "error", err)
			return err
		}
		defer backend.Close()
		if err := backend.Ping(ctx); err != nil {
			slog.Warn("redis cache unreachable, serving from local cache only", "error", err)
		} else {
			cacheOpts = append(cacheOpts, cache.WithBackend(backend))
			slog.Info("redis cache enabled", "prefix", cfg.Cache.RedisPrefix)
		}
	}

	service := core.NewService(st, core.NewReferences(st, cfg.Cache.TTL, cacheOpts...),
		core.ServiceConfig{Grid: cfg.Grid, Loader: cfg.Loader}, m)

	// Log registered screens
	slog.Info("screens registered",
		"count", core.ScreenCount(),
		"groups", len(core.Groups()),
	)
	for _, group := range core.Groups() {
		slog.Debug("screen group", "group", group, "screens", len(core.ByGroup(group)))
	}

	server := web.NewServer(service, cfg, m)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()
	go service.StartScheduler(jobCtx, core.SchedulerConfig{
		SweepInterval:   time.Minute,
		RefreshInterval: cfg.Loader.RefreshInterval,
	})

	// Graceful shutdown
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for loads in flight (with timeout)
		if status := service.Status(); status.Loads.Active > 0 {
			slog.Info("waiting for loads to complete", "active", status.Loads.Active)
		}
		if err := service.Shutdown(shutdownCtx); err != nil {
			slog.Warn("loads did not complete in time", "error", err)
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		return err
	}
	<-stopped
	slog.Info("server stopped")
	return nil
}

// openStore returns the configured store and its cleanup.
func openStore(ctx context.Context, cfg *config.Config, opts *serveOptions) (core.Store, func(), error) {
	if cfg.Database.Memory {
		slog.Info("using in-memory store", "casos", opts.demoRows)
		return store.NewDemo(time.Now(), opts.demoRows), func() {}, nil
	}

	pg, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if opts.migrate {
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
		slog.Info("schema applied")
	}
	return pg, pg.Close, nil
}
