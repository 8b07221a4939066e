package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/okian/lootrota/internal/adapters/http/api"
	"github.com/okian/lootrota/internal/adapters/http/swagger"
	"github.com/okian/lootrota/internal/adapters/repository"
	app "github.com/okian/lootrota/internal/app"
	"github.com/okian/lootrota/internal/config"
	"github.com/okian/lootrota/pkg/logger"
	"github.com/okian/lootrota/pkg/metrics"
)

// HTTP server timeout constants. WriteTimeout stays zero so live websocket
// sessions are not cut off.
const (
	readTimeout               = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		os.Stderr.WriteString("failed to read .env: " + err.Error() + "\n")
		return
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "lootrota stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

// run starts the service and HTTP server and blocks until ctx is done.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	svc, err := newService(ctx, cfg, log)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx, metrics.RefreshInterval())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(cfg, svc, log),
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// newStore opens the SQLite store when db_path is set, otherwise the
// in-memory one.
func newStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, error) {
	if cfg.DBPath == "" {
		log.Warn(ctx, "db_path not set; data lives in memory only")
		return repository.NewMemoryStore(), nil
	}
	s, err := repository.OpenSQLite(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	log.Info(ctx, "opened sqlite store", logger.String("path", cfg.DBPath))
	return s, nil
}

func newService(ctx context.Context, cfg *config.Config, log logger.Logger) (*app.Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	store, err := newStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return app.New(
		app.WithLogger(log.Named("service")),
		app.WithStore(store),
		app.WithTopN(cfg.TopN),
		app.WithLookaheadWindow(cfg.LookaheadWindow),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithWorklistCapacity(cfg.WorklistCapacity),
		app.WithLiveBuffer(cfg.LiveBuffer),
		app.WithRaidName(cfg.RaidName),
		app.WithLocation(loc),
	), nil
}

// newHandler mounts the docs routes next to the API.
func newHandler(cfg *config.Config, svc *app.Service, log logger.Logger) http.Handler {
	apiServer := api.NewServer(svc, svc,
		api.WithAdminToken(cfg.AdminToken),
		api.WithMaxHistoryLimit(cfg.MaxHistoryLimit),
		api.WithLogger(log.Named("api")),
	)

	root := chi.NewRouter()
	swagger.Register(root)
	root.Mount("/", apiServer.Router())
	return root
}

// startSystemMetricsUpdater updates system metrics every interval.
func startSystemMetricsUpdater(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
