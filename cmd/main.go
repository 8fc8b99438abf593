package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	rediscache "github.com/okian/armory/internal/adapters/cache"
	"github.com/okian/armory/internal/adapters/http/api"
	"github.com/okian/armory/internal/adapters/http/swagger"
	"github.com/okian/armory/internal/adapters/upstream"
	"github.com/okian/armory/internal/adapters/upstream/blizzard"
	"github.com/okian/armory/internal/adapters/upstream/oauth"
	"github.com/okian/armory/internal/adapters/upstream/warcraftlogs"
	app "github.com/okian/armory/internal/app"
	"github.com/okian/armory/internal/config"
	"github.com/okian/armory/internal/domain/cache"
	"github.com/okian/armory/internal/domain/overview"
	"github.com/okian/armory/internal/roster"
	"github.com/okian/armory/pkg/logger"
	"github.com/okian/armory/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
	writeTimeoutSlack = 5 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		// The logger may not be available yet.
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	srv, err := newServer(ctx, cfg)
	if err != nil {
		return err
	}
	defer srv.close()

	if err := srv.svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	go startSystemMetricsUpdater(ctx, metrics.RefreshInterval())

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      cfg.BatchTimeout + writeTimeoutSlack,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	if err := srv.svc.Stop(shutdownCtx); err != nil {
		log.Error(ctx, "service shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// server holds everything newServer wired together.
type server struct {
	handler http.Handler
	svc     *app.Service
	closers []func() error
}

func (s *server) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

// newServer builds the upstream clients, cache, service and router from cfg.
func newServer(ctx context.Context, cfg *config.Config) (*server, error) {
	log := logger.Get()
	srv := &server{}

	if !cfg.HasBlizzardCredentials() {
		log.Warn(ctx, "blizzard credentials missing; profile lookups will fail")
	}
	if !cfg.HasWarcraftLogsCredentials() {
		log.Warn(ctx, "warcraftlogs credentials missing; ranking lookups will fail")
	}

	bnetTokens := oauth.NewManager(blizzard.Provider, cfg.BlizzardTokenURL,
		oauth.Credentials{ClientID: cfg.BlizzardClientID, ClientSecret: cfg.BlizzardClientSecret},
		oauth.WithDefaultTTL(cfg.TokenDefaultTTL),
		oauth.WithTimeout(cfg.UpstreamTimeout),
	)
	wclTokens := oauth.NewManager(warcraftlogs.Provider, cfg.WarcraftLogsTokenURL,
		oauth.Credentials{ClientID: cfg.WarcraftLogsClientID, ClientSecret: cfg.WarcraftLogsClientSecret},
		oauth.WithDefaultTTL(cfg.TokenDefaultTTL),
		oauth.WithTimeout(cfg.UpstreamTimeout),
	)

	profiles := blizzard.NewClient(bnetTokens,
		blizzard.WithBaseURL(cfg.BlizzardAPIURL),
		blizzard.WithNamespace(cfg.BlizzardNamespace),
		blizzard.WithLocale(cfg.BlizzardLocale),
		blizzard.WithUpstream(upstream.NewClient(blizzard.Provider, upstream.WithTimeout(cfg.UpstreamTimeout))),
	)
	rankings := warcraftlogs.NewClient(wclTokens,
		warcraftlogs.WithAPIURL(cfg.WarcraftLogsAPIURL),
		warcraftlogs.WithUpstream(upstream.NewClient(warcraftlogs.Provider, upstream.WithTimeout(cfg.UpstreamTimeout))),
	)

	store, err := newStore(ctx, cfg, srv)
	if err != nil {
		srv.close()
		return nil, err
	}

	teams, err := roster.Load(cfg.RosterPath)
	if err != nil {
		srv.close()
		return nil, err
	}

	srv.svc = app.New(profiles, rankings,
		app.WithLogger(log.Named("service")),
		app.WithCache(cache.New(
			cache.WithStore(store),
			cache.WithTTL(cfg.CacheTTL),
			cache.WithLogger(log.Named("cache")),
		)),
		app.WithMerger(overview.NewMerger(
			overview.WithRaiderIOSeason(cfg.RaiderIOSeason),
			overview.WithLocale(cfg.BlizzardLocale),
		)),
		app.WithRoster(teams),
		app.WithRegion(cfg.Region),
		app.WithZoneID(cfg.ZoneID),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithBatchTimeout(cfg.BatchTimeout),
		app.WithSweepInterval(cfg.CacheSweepInterval),
	)

	router := mux.NewRouter()
	swagger.Register(router)
	api.NewServer(srv.svc, srv.svc,
		api.WithAllowedOrigins(cfg.CORSAllowedOrigins...),
		api.WithLogger(log.Named("http")),
	).Register(router)
	srv.handler = router

	log.Info(ctx, "server wired",
		logger.String("cache_backend", cfg.CacheBackend),
		logger.Int("teams", len(teams.Teams())))
	return srv, nil
}

func newStore(ctx context.Context, cfg *config.Config, srv *server) (cache.Store, error) {
	if cfg.CacheBackend != config.CacheBackendRedis {
		return cache.NewMemoryStore(cache.WithMaxEntries(cfg.CacheMaxEntries)), nil
	}
	store, err := rediscache.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("cache backend: %w", err)
	}
	srv.closers = append(srv.closers, store.Close)
	return store, nil
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context, interval time.Duration) {
	updateSystemMetrics()
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

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
