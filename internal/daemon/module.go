// Package daemon composes the core into a runnable app: config, logging,
// archive, event bus, state machine, connection manager, sync engine, and
// gate, with fx managing startup and teardown order.
package daemon

import (
	"context"
	"time"

	"github.com/matheus3301/tchat/internal/backend"
	"github.com/matheus3301/tchat/internal/bus"
	"github.com/matheus3301/tchat/internal/conn"
	"github.com/matheus3301/tchat/internal/config"
	"github.com/matheus3301/tchat/internal/gate"
	"github.com/matheus3301/tchat/internal/lock"
	"github.com/matheus3301/tchat/internal/logging"
	"github.com/matheus3301/tchat/internal/session"
	"github.com/matheus3301/tchat/internal/status"
	"github.com/matheus3301/tchat/internal/store"
	intsync "github.com/matheus3301/tchat/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// warmSeedLimit matches the backend's history window.
const warmSeedLimit = 50

// Params holds the resolved startup configuration passed to the fx module.
type Params struct {
	ConfigPath string
	// ConsoleLog tees logs to stderr in addition to the log file.
	ConsoleLog bool
}

// Module returns the fx module for the daemon, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideArchive,
			provideLog,
			provideBackend,
			provideManager,
			provideEngine,
			provideGate,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	path := p.ConfigPath
	if path == "" {
		path = session.ConfigPath()
	}
	return config.Load(path)
}

func provideLogger(p Params) (*zap.Logger, error) {
	if err := session.EnsureDirs(); err != nil {
		return nil, err
	}
	return logging.New(session.LogPath(), p.ConsoleLog)
}

func provideBus() *bus.Bus {
	return bus.NewBus()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(logger *zap.Logger) (*lock.Lock, error) {
	l, err := lock.Acquire(session.BaseDir())
	if err != nil {
		return nil, err
	}
	logger.Info("client lock acquired")
	return l, nil
}

func provideArchive(_ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	db, err := store.Open(session.ArchivePath())
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
	return db, nil
}

func provideLog() *store.Log {
	return store.NewLog()
}

func provideBackend(cfg *config.Config) *backend.Client {
	return backend.New(cfg.Server.HTTPURL)
}

func provideManager(cfg *config.Config, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *conn.Manager {
	return conn.New(conn.Options{
		URL: cfg.Server.WSURL,
		Policy: conn.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   time.Duration(cfg.Retry.BaseDelay),
		},
		Bus:     b,
		Machine: machine,
		Logger:  logger,
	})
}

func provideEngine(log *store.Log, db *store.DB, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(log, db, b, logger)
}

func provideGate(machine *status.Machine, mgr *conn.Manager) *gate.Gate {
	return gate.New(machine, mgr)
}

func registerLifecycle(lc fx.Lifecycle, client *backend.Client, mgr *conn.Manager, engine *intsync.Engine, db *store.DB, lk *lock.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// Ingest live channel events before anything can publish them.
			engine.Start(context.Background())

			// Show archived conversation while the network comes up.
			if err := engine.WarmSeed(warmSeedLimit); err != nil {
				logger.Warn("warm seed failed", zap.Error(err))
			}

			// Identity is required before the channel can be opened.
			identity, err := client.FetchIdentity(ctx)
			if err != nil {
				return err
			}
			logger.Info("identity resolved",
				zap.Int64("user_id", identity.UserID),
				zap.String("name", identity.DisplayName))

			if err := mgr.Open(identity); err != nil {
				return err
			}

			// The history fetch must not block connection establishment;
			// on failure the core proceeds with what it already has.
			go func() {
				history, err := client.FetchHistory(context.Background())
				if err != nil {
					logger.Warn("history fetch failed", zap.Error(err))
					return
				}
				if err := engine.SeedHistory(history); err != nil {
					logger.Warn("history seed failed", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(_ context.Context) error {
			mgr.Close()
			engine.Stop()
			_ = db.Close()
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
