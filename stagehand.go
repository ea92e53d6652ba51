package stagehand

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/aretw0/stagehand/internal/logging"
	"github.com/aretw0/stagehand/pkg/adapters/file"
	stagehttp "github.com/aretw0/stagehand/pkg/adapters/http"
	"github.com/aretw0/stagehand/pkg/adapters/loam"
	"github.com/aretw0/stagehand/pkg/adapters/memory"
	"github.com/aretw0/stagehand/pkg/adapters/redis"
	"github.com/aretw0/stagehand/pkg/config"
	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/driver"
	"github.com/aretw0/stagehand/pkg/fleet"
	"github.com/aretw0/stagehand/pkg/observability"
	"github.com/aretw0/stagehand/pkg/persistence/middleware"
	"github.com/aretw0/stagehand/pkg/ports"
	"github.com/aretw0/stagehand/pkg/registry"
	"golang.org/x/sync/errgroup"
)

// ShutdownTimeout bounds graceful HTTP shutdown in Serve.
const ShutdownTimeout = 5 * time.Second

// App wires a configured store, fleet manager, driver loop and metrics.
type App struct {
	Config   *config.Config
	Registry *registry.Registry
	Store    ports.ConfigStore
	Fleet    *fleet.Manager
	Driver   *driver.Driver
	Metrics  *observability.Metrics
	Streams  *stagehttp.StreamManager
	Catalog  *loam.Catalog // nil unless machines_dir is set

	hooks   domain.LifecycleHooks
	logger  *slog.Logger
	closers []func() error
}

// Option defines a functional option for configuring the App.
type Option func(*App)

// WithLogger sets a custom structured logger. By default one is built from
// the configured log level.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

// WithRegistry sets the variant registry. Defaults to registry.Default().
func WithRegistry(reg *registry.Registry) Option {
	return func(a *App) {
		a.Registry = reg
	}
}

// WithStore injects a config store, bypassing the configured store kind.
func WithStore(store ports.ConfigStore) Option {
	return func(a *App) {
		a.Store = store
	}
}

// WithLifecycleHooks registers extra hooks on every machine.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(a *App) {
		a.hooks = hooks
	}
}

// New builds an App from cfg. A nil cfg means config.Default().
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	app := &App{Config: cfg}
	for _, opt := range opts {
		opt(app)
	}

	if app.logger == nil {
		level, _ := logging.ParseLevel(cfg.LogLevel)
		app.logger = logging.New(level)
	}
	if app.Registry == nil {
		app.Registry = registry.Default()
	}

	var locker ports.ConfigLocker
	if app.Store == nil {
		store, l, closer, err := openStore(cfg.Store)
		if err != nil {
			return nil, err
		}
		app.Store, locker = store, l
		if closer != nil {
			app.closers = append(app.closers, closer)
		}
	}
	if cfg.MachinesDir != "" {
		catalog, err := loam.Open(cfg.MachinesDir)
		if err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("failed to open machines_dir: %w", err)
		}
		app.Catalog = catalog
	}

	app.Store = middleware.Chain(app.Store,
		middleware.NewLoggingMiddleware(app.logger),
		middleware.NewValidationMiddleware(app.Registry),
	)

	app.Metrics = observability.NewMetrics()
	app.Streams = stagehttp.NewStreamManager(app.logger)

	hooks := app.Metrics.Hooks().Merge(app.Streams.Hooks())
	if cfg.Audit {
		hooks = hooks.Merge(observability.AuditHooks(app.logger))
	}
	hooks = hooks.Merge(app.hooks)

	fleetOpts := []fleet.Option{
		fleet.WithLogger(app.logger),
		fleet.WithRegistry(app.Registry),
		fleet.WithHooks(hooks),
	}
	if locker != nil {
		fleetOpts = append(fleetOpts, fleet.WithLocker(locker))
	}
	app.Fleet = fleet.NewManager(app.Store, fleetOpts...)

	app.Driver = driver.New(
		driver.WithFrameInterval(cfg.Driver.FrameInterval),
		driver.WithFixedStep(cfg.Driver.FixedStep),
		driver.WithMaxFixedSteps(cfg.Driver.MaxFixedSteps),
		driver.WithLogger(app.logger),
		driver.WithHooks(app.Metrics.DriverHooks()),
	)

	return app, nil
}

func openStore(cfg config.StoreConfig) (ports.ConfigStore, ports.ConfigLocker, func() error, error) {
	switch cfg.Kind {
	case config.StoreMemory:
		return memory.NewStore(), nil, nil, nil
	case config.StoreFile:
		return file.New(cfg.Path, file.WithFormat(file.Format(cfg.Format))), nil, nil, nil
	case config.StoreRedis:
		opts := []redis.Option{redis.WithTTL(cfg.Redis.TTL)}
		if cfg.Redis.Prefix != "" {
			opts = append(opts, redis.WithPrefix(cfg.Redis.Prefix))
		}
		store := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, opts...)
		locker := redis.NewLocker(store.Client(), store.Prefix())
		return store, locker, store.Close, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
}

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Seed saves the configured machines, then the catalog machines, that are
// not stored yet. Stored configs win over both so runtime edits survive
// restarts.
func (a *App) Seed(ctx context.Context) error {
	seeds, err := a.seeds(ctx)
	if err != nil {
		return err
	}

	for i := range seeds {
		seed := seeds[i]
		err := a.Fleet.WithLock(ctx, seed.ID, func(ctx context.Context) error {
			_, err := a.Store.Load(ctx, seed.ID)
			if errors.Is(err, domain.ErrConfigNotFound) {
				return a.Store.Save(ctx, seed.ID, &seed)
			}
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to seed machine %s: %w", seed.ID, err)
		}
	}
	return nil
}

func (a *App) seeds(ctx context.Context) ([]domain.MachineConfig, error) {
	if a.Catalog == nil {
		return a.Config.Machines, nil
	}

	docs, err := a.Catalog.Machines(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read machines_dir: %w", err)
	}

	seeds := append([]domain.MachineConfig(nil), a.Config.Machines...)
	seen := make(map[string]bool, len(seeds))
	for _, m := range seeds {
		seen[m.ID] = true
	}
	for _, m := range docs {
		if seen[m.ID] {
			a.logger.Debug("Catalog machine shadowed by config", "machine_id", m.ID)
			continue
		}
		seeds = append(seeds, m)
	}
	return seeds, nil
}

// Bootstrap seeds the store, then spawns every stored machine and attaches
// it to the driver. It returns the number of attached machines.
func (a *App) Bootstrap(ctx context.Context) (int, error) {
	if err := a.Seed(ctx); err != nil {
		return 0, err
	}

	ids, err := a.Fleet.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list machines: %w", err)
	}

	for _, id := range ids {
		m, err := a.Fleet.Spawn(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrMachineNotFound) {
				continue // expired between List and Load
			}
			return 0, fmt.Errorf("failed to spawn machine %s: %w", id, err)
		}
		if err := a.Driver.Attach(m); err != nil {
			return 0, err
		}
		a.logger.Info("Machine spawned", "machine_id", id, "state", m.StateIdentity())
	}
	return len(a.Driver.Machines()), nil
}

// Run bootstraps the machines and drives them until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if _, err := a.Bootstrap(ctx); err != nil {
		return err
	}
	return a.Driver.Run(ctx)
}

// Handler returns the HTTP API handler.
func (a *App) Handler() http.Handler {
	return stagehttp.NewHandler(a.Fleet, a.Driver,
		stagehttp.WithRegistry(a.Registry),
		stagehttp.WithStreams(a.Streams),
		stagehttp.WithMetrics(a.Metrics.Handler()),
		stagehttp.WithLogger(a.logger),
	)
}

// Serve runs the machines and the HTTP API until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	if _, err := a.Bootstrap(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:              a.Config.HTTP.Addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Cancels open event streams on shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g.Go(func() error {
		return a.Driver.Run(ctx)
	})
	g.Go(func() error {
		a.logger.Info("HTTP API listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Close releases store connections.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
