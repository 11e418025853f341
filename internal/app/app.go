// Package app wires all Parley subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP and follows config changes, and Shutdown
// tears everything down in order.
//
// For testing, inject implementations via functional options
// (WithStore, WithMetrics, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/parley/internal/api"
	"github.com/MrWong99/parley/internal/config"
	"github.com/MrWong99/parley/internal/health"
	"github.com/MrWong99/parley/internal/observe"
	"github.com/MrWong99/parley/internal/store"
	"github.com/MrWong99/parley/internal/store/postgres"
)

const (
	readHeaderTimeout = 10 * time.Second
	serverStopTimeout = 10 * time.Second
)

// App owns all subsystem lifetimes.
type App struct {
	registry   *config.Registry
	current    atomic.Pointer[config.Config]
	configPath string
	logLevel   *slog.LevelVar

	store    store.Store
	metrics  *observe.Metrics
	sessions *SessionManager
	handler  http.Handler

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a store instead of creating one from config. The
// caller keeps ownership; Shutdown does not close it.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMetrics injects the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithConfigPath makes Run watch path and apply changes to later sessions.
func WithConfigPath(path string) Option {
	return func(a *App) { a.configPath = path }
}

// WithLogLevel lets config reloads adjust the level of the process logger.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = lv }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. Providers are built
// from reg when a session starts, so New only fails for storage problems.
func New(ctx context.Context, cfg *config.Config, reg *config.Registry, opts ...Option) (*App, error) {
	a := &App{registry: reg}
	a.current.Store(cfg)
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Store ─────────────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	// ── 2. Built-in scenarios ────────────────────────────────────────────
	n, err := store.Seed(ctx, a.store, store.BuiltinScenarios)
	if err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: seed scenarios: %w", err)
	}
	if n > 0 {
		slog.Info("installed built-in scenarios", "count", n)
	}

	// ── 3. Sessions ──────────────────────────────────────────────────────
	a.sessions = NewSessionManager(SessionManagerConfig{
		Config:   a.Config,
		Registry: reg,
		Store:    a.store,
		Metrics:  a.metrics,
	})

	// ── 4. HTTP routes ───────────────────────────────────────────────────
	mux := http.NewServeMux()
	api.New(a.sessions, a.store, api.WithOriginPatterns(cfg.Server.AllowedOrigins)).Register(mux)
	health.New(a.checkers()...).Register(mux)
	mux.Handle("GET /metrics", observe.Handler())
	a.handler = observe.Middleware(a.metrics)(mux)

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStore connects to PostgreSQL when a DSN is configured and falls back
// to an in-memory store otherwise.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	dsn := a.Config().Store.PostgresDSN
	if dsn == "" {
		slog.Warn("store.postgres_dsn not set; sessions are kept in memory only")
		a.store = store.NewMemStore()
		return nil
	}

	st, err := postgres.New(ctx, dsn)
	if err != nil {
		return err
	}
	a.store = st
	a.closers = append(a.closers, func() error {
		st.Close()
		return nil
	})
	return nil
}

// checkers lists the readiness checks: the store and the primary providers.
// Speech output is optional because conversations run without audio.
func (a *App) checkers() []health.Checker {
	check := func(kind string) func(context.Context) error {
		return func(ctx context.Context) error { return a.sessions.CheckProvider(ctx, kind) }
	}
	return []health.Checker{
		{Name: "store", Check: a.store.Ping},
		{Name: observe.CapabilitySTT, Check: check(observe.CapabilitySTT)},
		{Name: observe.CapabilityLLM, Check: check(observe.CapabilityLLM)},
		{Name: observe.CapabilityTTS, Check: check(observe.CapabilityTTS), Optional: true},
	}
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Config returns the current configuration.
func (a *App) Config() *config.Config { return a.current.Load() }

// Handler returns the HTTP handler serving the UI channel, the JSON API,
// health checks and metrics.
func (a *App) Handler() http.Handler { return a.handler }

// Sessions returns the session manager.
func (a *App) Sessions() *SessionManager { return a.sessions }

// Store returns the backing store.
func (a *App) Store() store.Store { return a.store }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP on the configured address and blocks until ctx is
// cancelled or the server fails. With [WithConfigPath] it also reloads the
// config file on change. When ctx is done, Run returns ctx.Err().
func (a *App) Run(ctx context.Context) error {
	cfg := a.Config()

	var watcher *config.Watcher
	if a.configPath != "" {
		w, err := config.NewWatcher(a.configPath, a.onConfigChange)
		if err != nil {
			return fmt.Errorf("app: watch config: %w", err)
		}
		watcher = w
	}

	ln, err := net.Listen("tcp", cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen on %s: %w", cfg.Server.ListenAddr, err)
	}
	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if tls := cfg.Server.TLS; tls != nil {
			err = srv.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = srv.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	})
	if watcher != nil {
		g.Go(func() error {
			watcher.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), serverStopTimeout)
		defer cancel()
		if err := srv.Shutdown(stopCtx); err != nil {
			slog.Warn("http server shutdown", "err", err)
		}
		return nil
	})

	slog.Info("app running", "addr", ln.Addr().String(), "tls", cfg.Server.TLS != nil)
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// onConfigChange swaps in a reloaded config. Changes reach sessions started
// afterwards; fields read only at startup are reported.
func (a *App) onConfigChange(old, new *config.Config) {
	diff := config.Diff(old, new)
	if !diff.Changed() {
		return
	}
	if diff.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(diff.NewLogLevel.Level())
	}
	a.current.Store(new)
	slog.Info("config reloaded",
		"log_level_changed", diff.LogLevelChanged,
		"providers_changed", diff.ProvidersChanged,
		"chat_changed", diff.ChatChanged,
		"conversation_changed", diff.ConversationChanged,
	)
	for _, field := range diff.RestartRequired {
		slog.Warn("config change needs a restart to apply", "field", field)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown ends the running session and releases all subsystems. It
// respects the context deadline: if ctx expires first, the remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		// End the conversation first so its final checkpoint reaches the store.
		done := make(chan error, 1)
		go func() { done <- a.sessions.Stop(ctx) }()
		select {
		case err := <-done:
			if err != nil && !errors.Is(err, ErrNoSession) {
				slog.Warn("stop session", "err", err)
			}
		case <-ctx.Done():
			slog.Warn("shutdown deadline exceeded while stopping the session")
			shutdownErr = ctx.Err()
			return
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

func (a *App) closeAll() {
	for _, closer := range a.closers {
		_ = closer()
	}
}
