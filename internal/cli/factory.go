// Package cli builds the executor, stores and flows of the pergola command from configuration.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/pergola"
	"github.com/aretw0/pergola/internal/config"
	"github.com/aretw0/pergola/internal/logging"
	"github.com/aretw0/pergola/pkg/adapters/document"
	"github.com/aretw0/pergola/pkg/adapters/file"
	"github.com/aretw0/pergola/pkg/adapters/memory"
	"github.com/aretw0/pergola/pkg/adapters/redis"
	"github.com/aretw0/pergola/pkg/adapters/sqlite"
	"github.com/aretw0/pergola/pkg/listener"
	"github.com/aretw0/pergola/pkg/observability"
	"github.com/aretw0/pergola/pkg/persistence/middleware"
	"github.com/aretw0/pergola/pkg/ports"
	"github.com/aretw0/pergola/pkg/registry"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrNoDefaultFlow is returned when a flow id is needed and none can be inferred.
var ErrNoDefaultFlow = errors.New("cannot infer which flow to run")

// Options are the programmatic parts of an App that configuration cannot express.
type Options struct {
	// Actions resolves the action names used by flow documents. Nil means no custom actions.
	Actions *registry.Actions

	// Errors names sentinel errors flow documents can catch.
	Errors map[string]error

	// Registerer enables the metrics listener.
	Registerer prometheus.Registerer
}

// App is everything a command needs, built from configuration.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Flows    *registry.Flows
	Store    ports.ConversationStore
	Executor *pergola.Executor
	Metrics  *observability.Metrics

	closers []func() error
}

// NewLogger builds the command logger on Stderr.
func NewLogger(cfg config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return logging.NewWithWriter(os.Stderr, level, logging.Format(cfg.LogFormat)), nil
}

// NewApp loads the flows, opens the store and builds the executor.
func NewApp(cfg config.Config, logger *slog.Logger, opts Options) (*App, error) {
	app := &App{Config: cfg, Logger: logger}

	flows, err := LoadFlows(cfg.Flows, opts, logger)
	if err != nil {
		return nil, err
	}
	app.Flows = flows

	store, locker, err := app.openStore()
	if err != nil {
		return nil, err
	}
	app.Store = store

	listeners := listener.NewLoader()
	if err := listeners.Add(observability.NewLogger(logger)); err != nil {
		app.Close()
		return nil, err
	}
	if opts.Registerer != nil {
		metrics, err := observability.NewMetrics(opts.Registerer, "pergola")
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Metrics = metrics
		if err := listeners.Add(metrics); err != nil {
			app.Close()
			return nil, err
		}
	}

	execOpts := []pergola.Option{
		pergola.WithStore(store),
		pergola.WithListenerLoader(listeners),
		pergola.WithMaxContinuations(cfg.MaxContinuations),
		pergola.WithLogger(logger),
	}
	if locker != nil {
		execOpts = append(execOpts, pergola.WithDistributedLocker(locker))
	}
	app.Executor = pergola.New(flows, execOpts...)
	return app, nil
}

// OpenStore opens only the configured conversation store, for the conversation commands.
func OpenStore(cfg config.Config, logger *slog.Logger) (ports.ConversationStore, func() error, error) {
	app := &App{Config: cfg, Logger: logger}
	store, _, err := app.openStore()
	if err != nil {
		return nil, nil, err
	}
	return store, app.Close, nil
}

// Close releases the store connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) openStore() (ports.ConversationStore, ports.DistributedLocker, error) {
	cfg := a.Config
	var (
		store  ports.ConversationStore
		locker ports.DistributedLocker
	)

	switch cfg.Store {
	case config.StoreMemory:
		store = memory.NewStore(memory.WithTTL(cfg.TTL))
	case config.StoreFile:
		store = file.New(cfg.StorePath)
	case config.StoreSQLite:
		path := SQLitePath(cfg.StorePath)
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return nil, nil, fmt.Errorf("failed to create store directory: %w", err)
			}
		}
		s, err := sqlite.Open(path)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, s.Close)
		store = s
	case config.StoreRedis:
		s := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			redis.WithTTL(cfg.TTL),
			redis.WithPrefix(cfg.RedisPrefix),
		)
		a.closers = append(a.closers, s.Close)
		store = s
		locker = redis.NewLocker(s.Client(), cfg.RedisPrefix+"lock:")
	default:
		return nil, nil, fmt.Errorf("%w: '%s'", config.ErrUnknownStore, cfg.Store)
	}

	key, err := cfg.EncryptionKeyBytes()
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	if key != nil {
		store = middleware.Chain(store, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}))
	}

	a.Logger.Debug("conversation store ready", "store", cfg.Store, "encrypted", key != nil)
	return store, locker, nil
}

// SQLitePath turns a store path into a database file. Paths without an extension
// are directories holding conversations.db.
func SQLitePath(storePath string) string {
	if storePath == ":memory:" || filepath.Ext(storePath) != "" {
		return storePath
	}
	return filepath.Join(storePath, "conversations.db")
}

// LoadFlows reads every flow document of dir.
func LoadFlows(dir string, opts Options, logger *slog.Logger) (*registry.Flows, error) {
	actions := opts.Actions
	if actions == nil {
		actions = registry.NewActions()
	}
	loaderOpts := []document.Option{document.WithLogger(logger)}
	for name, err := range opts.Errors {
		loaderOpts = append(loaderOpts, document.WithError(name, err))
	}

	flows, err := document.NewLoader(actions, loaderOpts...).LoadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load flows from %s: %w", dir, err)
	}
	return flows, nil
}

// DefaultFlowID picks the flow to run when none is named: the only flow, else a flow
// called start, main or index, else the flow named after the flows directory.
func DefaultFlowID(flows ports.FlowLocator, dir string) (string, error) {
	ids := flows.FlowIDs()
	if len(ids) == 1 {
		return ids[0], nil
	}

	candidates := []string{"start", "main", "index"}
	if abs, err := filepath.Abs(dir); err == nil {
		candidates = append(candidates, filepath.Base(abs))
	}
	for _, candidate := range candidates {
		if _, err := flows.GetFlow(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: choose one of [%s]", ErrNoDefaultFlow, strings.Join(ids, ", "))
}
