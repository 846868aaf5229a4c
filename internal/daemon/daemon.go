package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/glow-labs/glow/internal/api"
	"github.com/glow-labs/glow/internal/app/engagement"
	"github.com/glow-labs/glow/internal/app/reward"
	"github.com/glow-labs/glow/internal/domain"
	"github.com/glow-labs/glow/internal/health"
	"github.com/glow-labs/glow/internal/infra/memstore"
	"github.com/glow-labs/glow/internal/infra/postgres"
	"github.com/glow-labs/glow/internal/infra/sqlite"
	"github.com/glow-labs/glow/internal/jobs"
	"github.com/glow-labs/glow/internal/logging"
)

// Version is stamped by the linker.
var Version = "dev"

// Daemon is the Glow runtime. It wires together all services.
type Daemon struct {
	Config     Config
	Log        *zap.Logger
	Store      domain.Store
	Engagement *engagement.Service
	Server     *api.Server
	Health     *health.Checker
	Jobs       *jobs.Scheduler
	cancel     context.CancelFunc
}

// New creates and initializes a Daemon from the on-disk config.
func New(ctx context.Context) (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return NewWithConfig(ctx, cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(ctx context.Context, cfg Config) (*Daemon, error) {
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	store, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	svc, err := NewEngagement(cfg, store, log)
	if err != nil {
		store.Close()
		return nil, err
	}

	d := &Daemon{
		Config:     cfg,
		Log:        log,
		Store:      store,
		Engagement: svc,
	}

	// Health checker
	dataDir := ""
	if cfg.Store.Driver == "sqlite" {
		dataDir = storeDir(cfg.Store)
	}
	d.Health = health.NewChecker(svc, dataDir, parseDuration(cfg.Health.Interval, time.Minute), log.Named("health"))

	// API server
	srv := api.NewServer(svc, Version)
	srv.SetLogger(log.Named("api"))
	srv.SetHealthChecker(d.Health)
	srv.SetTimeout(parseDuration(cfg.API.RequestTimeout, 30*time.Second))
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}
	if cfg.API.JWTSecret != "" {
		auth, err := api.NewAuthenticator(api.AuthConfig{
			HMACSecret: cfg.API.JWTSecret,
			Issuer:     cfg.API.JWTIssuer,
		}, log.Named("auth"))
		if err != nil {
			store.Close()
			return nil, err
		}
		srv.SetAuthenticator(auth)
	}
	if cfg.API.RatePerMinute > 0 {
		srv.SetRateLimiter(api.NewRateLimiter(api.RateLimit{
			RequestsPerMinute: cfg.API.RatePerMinute,
			Burst:             cfg.API.RateBurst,
		}))
	}
	d.Server = srv

	// Scheduled jobs
	d.Jobs = jobs.NewScheduler(svc.Engine().Location(), log.Named("jobs"))
	if cfg.Jobs.StreakSaverSpec != "" {
		if err := d.Jobs.Add(jobs.StreakSaverJob(svc, cfg.Jobs.StreakSaverSpec)); err != nil {
			store.Close()
			return nil, err
		}
	}

	return d, nil
}

// NewEngine builds the reward engine for cfg on the system clock.
func NewEngine(cfg Config) (*reward.Engine, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return reward.NewEngine(nil, reward.Config{
		Location:  loc,
		Durations: cfg.Rewards.Durations,
		Loot:      cfg.Rewards.Loot,
	}), nil
}

// NewEngagement builds the engagement service for cfg on top of store.
func NewEngagement(cfg Config, store domain.Store, log *zap.Logger) (*engagement.Service, error) {
	eng, err := NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	policy := cfg.Policy()
	return engagement.NewService(store, engagement.Options{
		Engine: eng,
		Policy: &policy,
		Logger: log.Named("engagement"),
	}), nil
}

// OpenStore opens the configured progression store.
func OpenStore(ctx context.Context, cfg StoreConfig) (domain.Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		dir := storeDir(cfg)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, err
		}
		return sqlite.Open(dir)
	case "postgres":
		return postgres.Open(ctx, cfg.DSN, postgres.PoolConfig{
			MaxConns: cfg.MaxConns,
			MinConns: cfg.MinConns,
		})
	case "memory":
		return memstore.New(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

func storeDir(cfg StoreConfig) string {
	if cfg.Dir != "" {
		return cfg.Dir
	}
	return glowHome()
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", d.Config.Addr())
	if err != nil {
		return err
	}
	return d.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener.
func (d *Daemon) ServeListener(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	defer cancel()

	// Background services
	d.Health.RunOnce(ctx)
	go d.Health.Run(ctx)
	d.Jobs.Start(ctx)

	httpServer := &http.Server{
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case sig := <-sigCh:
			d.Log.Info("shutting down", zap.String("signal", sig.String()))
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		d.Jobs.Stop()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	d.Log.Info("glow serving",
		zap.String("addr", ln.Addr().String()),
		zap.String("store", d.Config.Store.Driver),
		zap.Bool("metrics", d.Config.Telemetry.Prometheus),
		zap.Bool("auth", d.Config.API.JWTSecret != ""))

	err := httpServer.Serve(ln)
	cancel()
	<-done
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() error {
	if d.cancel != nil {
		d.cancel()
	}
	var err error
	if d.Store != nil {
		err = d.Store.Close()
	}
	if d.Log != nil {
		_ = d.Log.Sync()
	}
	return err
}
