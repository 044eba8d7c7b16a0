package app

import (
	"context"

	"github.com/matheus3301/chatline/internal/bus"
	"github.com/matheus3301/chatline/internal/config"
	"github.com/matheus3301/chatline/internal/lock"
	"github.com/matheus3301/chatline/internal/logging"
	"github.com/matheus3301/chatline/internal/outbox"
	"github.com/matheus3301/chatline/internal/session"
	"github.com/matheus3301/chatline/internal/status"
	"github.com/matheus3301/chatline/internal/store"
	intsync "github.com/matheus3301/chatline/internal/sync"
	"github.com/matheus3301/chatline/internal/tui"
	"github.com/matheus3301/chatline/internal/viewmodel"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

const binaryName = "chatline"

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	Config      *config.Config
}

// Account is the account every chat key of the session belongs to.
func (p Params) Account() string {
	return p.SessionName
}

// Module returns the fx module for the terminal client, composing all
// providers and lifecycle hooks.
func Module(p Params) fx.Option {
	if p.Config == nil {
		p.Config = config.Default()
	}
	return fx.Module("chatline",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideBackend,
			provideSyncEngine,
			provideSender,
			provideWatcher,
			provideChatView,
			provideTUI,
		),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	return logging.NewFile(session.LogPath(p.SessionName, binaryName), p.SessionName, logging.ParseLevel(p.Config.LogLevel))
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

// provideStore depends on the lock so the database is only opened by the
// process owning the session.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.AppDBPath(p.SessionName)
	db, err := store.Open(dbPath)
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
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideBackend(p Params, db *store.DB) *store.Backend {
	return store.NewBackend(db, p.Account(), p.Config.View.SearchLimit)
}

func provideSyncEngine(p Params, db *store.DB, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(db, b, p.Account(), logger)
}

func provideSender(p Params, db *store.DB, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(db, outbox.NewLocalSender(b), b, p.Account(), logger)
}

func provideWatcher(p Params, db *store.DB, b *bus.Bus, logger *zap.Logger) *store.Watcher {
	return store.NewWatcher(db, b, p.Account(), p.Config.View.WatchInterval(), logger)
}

func provideChatView(p Params, backend *store.Backend, db *store.DB, m *status.Machine, logger *zap.Logger) *viewmodel.ChatView {
	opts := viewmodel.Options{
		MarkSeenOnOpen: p.Config.View.MarkSeenOnOpen,
		ShowSeparator:  p.Config.View.ShowSeparator,
	}
	return viewmodel.New(backend, backend, outbox.Queue{DB: db}, m, opts, logger)
}

func provideTUI(p Params, db *store.DB, b *bus.Bus, view *viewmodel.ChatView, logger *zap.Logger) *tui.App {
	return tui.NewApp(tui.Deps{
		Session: p.SessionName,
		Account: p.Account(),
		DB:      db,
		Bus:     b,
		View:    view,
		Logger:  logger,
	})
}

func registerLifecycle(lc fx.Lifecycle, sd fx.Shutdowner, ui *tui.App, lk *lock.Lock, db *store.DB, engine *intsync.Engine, sender *outbox.Sender, watcher *store.Watcher, logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// The engine subscribes to inbound.* before anything can emit.
			engine.Start(ctx)
			if err := watcher.Start(ctx); err != nil {
				engine.Stop()
				return err
			}
			sender.Start(ctx)

			go func() {
				defer close(done)
				if err := ui.Run(ctx); err != nil {
					logger.Error("tui exited with error", zap.Error(err))
					_ = sd.Shutdown(fx.ExitCode(1))
					return
				}
				_ = sd.Shutdown()
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			ui.Stop()
			select {
			case <-done:
			case <-stopCtx.Done():
				logger.Warn("tui did not stop in time")
			}
			sender.Stop()
			watcher.Stop()
			engine.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("chatline stopped")
			return nil
		},
	})
}
