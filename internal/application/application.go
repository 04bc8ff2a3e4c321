package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/confkit/internal/api"
	"github.com/eugenenazirov/confkit/internal/config"
	"github.com/eugenenazirov/confkit/pkg/confkit"
	"github.com/eugenenazirov/confkit/pkg/provider"
	"github.com/eugenenazirov/confkit/pkg/source"
	"github.com/eugenenazirov/confkit/pkg/watch"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	settings  config.Config
	config    confkit.Config
	overrides *source.MapSource
	database  *source.SQLSource
	watcher   *watch.Watcher
	handler   *api.Handler
	router    http.Handler
	logger    *zap.Logger
	server    *http.Server
}

// New assembles the configuration from the sources named in settings and
// initializes the HTTP server. The resolved configuration is registered as the
// process-wide one when no other is registered.
func New(ctx context.Context, settings config.Config, logger *zap.Logger) (*App, error) {
	app := &App{
		settings:  settings,
		overrides: source.NewMapSource("overrides", source.OverridesOrdinal, nil),
		logger:    logger,
	}

	builder := confkit.NewBuilder().
		WithLogger(logger).
		AddDiscoveredSources().
		WithSources(
			app.overrides,
			source.NewMapSource("flags", source.FlagsOrdinal, settings.FlagProperties),
			source.NewEnvSource(),
		).
		WithProviders(provider.NewYAMLDirProvider(settings.ConfigDirs...))

	if settings.DatabasePath != "" {
		db, err := source.OpenSQL(ctx, settings.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database source: %w", err)
		}
		app.database = db
		builder.WithSources(db)
	}

	cfg, err := builder.Build(ctx)
	if err != nil {
		app.closeDatabase()
		return nil, fmt.Errorf("failed to build configuration: %w", err)
	}
	app.config = cfg

	if settings.Watch {
		watcher, err := watch.New(logger,
			watch.WithDebounce(settings.WatchDebounce),
			watch.WithPollInterval(settings.PollInterval),
		)
		if err != nil {
			app.closeDatabase()
			return nil, fmt.Errorf("failed to create watcher: %w", err)
		}
		if err := watcher.AddSources(cfg.Sources()); err != nil {
			watcher.Stop()
			app.closeDatabase()
			return nil, fmt.Errorf("failed to watch sources: %w", err)
		}
		app.watcher = watcher
	}

	if err := confkit.RegisterConfig(cfg); err != nil {
		logger.Warn("process-wide configuration already registered", zap.Error(err))
	}

	app.handler = api.NewHandler(cfg, app.overrides)
	app.router = api.NewRouter(app.handler, logger,
		api.WithLogging(settings.EnableRequestLogging),
		api.WithRateLimit(settings.RateLimitRPS, settings.RateLimitBurst),
	)
	app.server = NewServer(settings, BuildRootHandler(app.router))

	return app, nil
}

// BuildRootHandler mounts the API and answers the root path with an endpoint index.
func BuildRootHandler(apiHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = fmt.Fprintln(w, "confkit configuration service")
		for _, route := range []string{
			"GET    /api/health",
			"GET    /api/config",
			"GET    /api/config/{key}",
			"GET    /api/sources",
			"GET    /api/overrides",
			"PUT    /api/overrides/{key}",
			"DELETE /api/overrides/{key}",
		} {
			_, _ = fmt.Fprintln(w, route)
		}
	}))
	return mux
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the source watcher and the HTTP server in a goroutine.
func (a *App) Start(ctx context.Context) error {
	if a.watcher != nil {
		if err := a.watcher.Start(ctx); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
	}

	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Config returns the resolved configuration.
func (a *App) Config() confkit.Config {
	return a.config
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Close stops the watcher, closes the database source and releases the
// process-wide configuration.
func (a *App) Close() error {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	confkit.ReleaseConfig(a.config)
	return a.closeDatabase()
}

func (a *App) closeDatabase() error {
	if a.database == nil {
		return nil
	}
	if err := a.database.Close(); err != nil {
		return fmt.Errorf("close database source: %w", err)
	}
	return nil
}
