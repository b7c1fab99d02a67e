package daemon

import (
	"context"

	"github.com/matheus3301/flowchat/internal/api"
	"github.com/matheus3301/flowchat/internal/bus"
	"github.com/matheus3301/flowchat/internal/config"
	"github.com/matheus3301/flowchat/internal/dispatch"
	"github.com/matheus3301/flowchat/internal/httpapi"
	"github.com/matheus3301/flowchat/internal/ingest"
	"github.com/matheus3301/flowchat/internal/instance"
	"github.com/matheus3301/flowchat/internal/lock"
	"github.com/matheus3301/flowchat/internal/logging"
	"github.com/matheus3301/flowchat/internal/mind2flow"
	"github.com/matheus3301/flowchat/internal/phone"
	"github.com/matheus3301/flowchat/internal/settings"
	"github.com/matheus3301/flowchat/internal/store"
	"github.com/matheus3301/flowchat/internal/unread"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved instance configuration passed to the fx module.
type Params struct {
	Instance   string
	SocketPath string         // optional override for testing; empty = use default
	Config     *config.Config // optional; nil = load ~/.flowchat/config.toml
	Logger     *zap.Logger    // optional; nil = log to the instance log file
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideBridge,
			providePhones,
			provideResolver,
			provideDispatcher,
			provideTracker,
			provideIngestEngine,
			api.NewMessageService,
			provideSettingsService,
			api.NewContactService,
			NewServer,
			provideHTTP,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	if p.Config != nil {
		return p.Config, p.Config.Validate()
	}
	return config.LoadOrDefault(instance.ConfigPath())
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	if p.Logger != nil {
		return p.Logger, nil
	}
	return logging.New(instance.LogPath(p.Instance), p.Instance, cfg.Log.Level)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := instance.EnsureDir(p.Instance); err != nil {
		return nil, err
	}
	logger.Info("acquiring instance lock", zap.String("instance", p.Instance))
	l, err := lock.Acquire(instance.Dir(p.Instance))
	if err != nil {
		return nil, err
	}
	logger.Info("instance lock acquired")
	return l, nil
}

// provideStore depends on the lock so that two daemons never migrate the same database.
func provideStore(p Params, cfg *config.Config, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	var (
		db  *store.DB
		err error
	)
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		db, err = store.OpenDriver(store.DriverPostgres, cfg.Database.DSN)
	default:
		path := cfg.Database.DSN
		if path == "" {
			path = instance.DBPath(p.Instance)
		}
		db, err = store.Open(path)
	}
	if err != nil {
		return nil, err
	}

	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("driver", db.Driver()))
	return db, nil
}

func provideBridge(cfg *config.Config) *mind2flow.Client {
	return mind2flow.New(nil, cfg.Dispatch.Timeout.Duration)
}

func providePhones(logger *zap.Logger) *phone.Normalizer {
	return phone.Default(logger)
}

func provideResolver(db *store.DB, client *mind2flow.Client, logger *zap.Logger) *settings.Resolver {
	return settings.NewResolver(db, client, logger)
}

func provideDispatcher(cfg *config.Config, db *store.DB, r *settings.Resolver, client *mind2flow.Client, phones *phone.Normalizer, b *bus.Bus, logger *zap.Logger) *dispatch.Dispatcher {
	return dispatch.New(dispatch.Deps{
		Messages: db,
		Contacts: db,
		Settings: r,
		Gateway:  client,
		Phones:   phones,
		Bus:      b,
		Logger:   logger,
		Timeout:  cfg.Dispatch.Timeout.Duration,
	})
}

func provideTracker(db *store.DB, b *bus.Bus, logger *zap.Logger) *unread.Tracker {
	return unread.New(db, b, logger)
}

func provideIngestEngine(db *store.DB, phones *phone.Normalizer, b *bus.Bus, logger *zap.Logger) *ingest.Engine {
	return ingest.NewEngine(db, phones, b, logger)
}

func provideSettingsService(r *settings.Resolver, logger *zap.Logger) *api.SettingsService {
	return api.NewSettingsService(r, logger)
}

func provideHTTP(msgs *api.MessageService, sets *api.SettingsService, contacts *api.ContactService, b *bus.Bus, logger *zap.Logger) *httpapi.Server {
	return httpapi.New(httpapi.Services{
		Messages: msgs,
		Settings: sets,
		Contacts: contacts,
		Bus:      b,
	}, logger)
}

func registerLifecycle(lc fx.Lifecycle, cfg *config.Config, srv *Server, httpSrv *httpapi.Server, lk *lock.Lock, db *store.DB, engine *ingest.Engine, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Consume inbound.* events from the bus.
			engine.Start(context.Background())

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			if cfg.HTTP.Listen != "" {
				if _, err := httpSrv.Listen(cfg.HTTP.Listen); err != nil {
					return err
				}
			} else {
				logger.Info("HTTP API disabled")
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := httpSrv.Stop(ctx); err != nil {
				logger.Warn("error stopping HTTP API", zap.Error(err))
			}
			srv.Stop(ctx)
			engine.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
