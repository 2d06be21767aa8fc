package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/maraudr/console/internal/api"
	"github.com/maraudr/console/internal/assocapi"
	"github.com/maraudr/console/internal/config"
	"github.com/maraudr/console/internal/console"
	"github.com/maraudr/console/internal/db"
	"github.com/maraudr/console/internal/metrics"
	"github.com/maraudr/console/internal/stockapi"
	"github.com/maraudr/console/internal/store"
	"github.com/maraudr/console/internal/web"
)

// sweepInterval is how often expired sessions are purged.
const sweepInterval = 10 * time.Minute

func newServeCmd(cfg *config.Config, configPath *string) *cobra.Command {
	var addr, dbPath, logPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web console and its JSON API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			if dbPath != "" {
				cfg.DB.Path = dbPath
			}
			if logPath != "" {
				cfg.App.LogFile = logPath
			}
			return serve(cmd.Context(), *cfg, *configPath)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (overrides http.addr)")
	cmd.Flags().StringVarP(&dbPath, "db", "d", "", "SQLite database path (overrides db.path)")
	cmd.Flags().StringVarP(&logPath, "log", "l", "", "log file path (overrides app.log_file)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, configPath string) error {
	closeLog, err := setupLogger(cfg.App.LogFile, cfg.Dev())
	if err != nil {
		return err
	}
	defer closeLog()

	config.Watch(configPath, slog.Default())

	database, err := db.Open(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	slog.Info("database ready", "path", cfg.DB.Path)

	jwtSecret, err := store.GetJWTSecret(ctx, database)
	if err != nil {
		return fmt.Errorf("loading jwt secret: %w", err)
	}
	tokenKey, err := store.GetTokenKey(ctx, database)
	if err != nil {
		return fmt.Errorf("loading token key: %w", err)
	}

	var collector *metrics.Collector
	promReg := metrics.NewRegistry()
	if cfg.Metrics.Enabled {
		collector = metrics.New(promReg)
	}

	directory, err := assocapi.New(assocapi.Options{
		BaseURL: cfg.Association.BaseURL,
		Timeout: cfg.Association.Timeout,
		Metrics: collector,
	})
	if err != nil {
		return err
	}

	routes, err := stockapi.NewRoutes(cfg.Stock.Origin, cfg.StockProfile())
	if err != nil {
		return err
	}
	slog.Info("stock backend", "base", routes.Base(), "quantity_route", cfg.QuantityRoute())

	reg, err := console.NewRegistry(console.Options{
		DB:            database,
		JWTSecret:     jwtSecret,
		TokenKey:      tokenKey,
		Directory:     directory,
		Routes:        routes,
		QuantityRoute: cfg.QuantityRoute(),
		StockTimeout:  cfg.Stock.Timeout,
		SessionTTL:    cfg.Session.TTL,
		Metrics:       collector,
	})
	if err != nil {
		return err
	}
	defer reg.Close()

	webRouter, err := web.NewRouter(reg, cfg.HTTP.SecureCookies)
	if err != nil {
		return fmt.Errorf("setting up web router: %w", err)
	}

	// API routes take priority, web routes handle the rest.
	mux := http.NewServeMux()
	mux.Handle("/api/", api.NewRouter(reg))
	mux.Handle("/", webRouter)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := database.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok\n"))
	})
	if cfg.Metrics.Enabled {
		mux.Handle("GET /metrics", metrics.Handler(promReg))
	}

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go reg.RunSweeper(ctx, sweepInterval)

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.HTTP.Addr, "env", cfg.App.Env)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("server stopped, closing sessions and database")
	return nil
}

func newMigrateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the console database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			database, err := db.Open(cfg.DB.Path)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer database.Close()

			if err := db.Migrate(database); err != nil {
				return err
			}
			n, err := store.DeleteExpiredSessions(cmd.Context(), database)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database ready: %s (%d expired sessions removed)\n", cfg.DB.Path, n)
			return nil
		},
	}
}
