package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/strandkit/strand/config"
	"github.com/strandkit/strand/core/action"
	"github.com/strandkit/strand/core/http"
	"github.com/strandkit/strand/core/reactor"
	"github.com/strandkit/strand/core/registry"
	"github.com/strandkit/strand/core/router"
	"github.com/strandkit/strand/core/supervisor"
	"github.com/strandkit/strand/db"
)

// App wires configuration, the handler registry, the route table, and
// either a worker pool or an in-process reactor.
type App struct {
	cfg   *config.Config
	log   *zap.Logger
	reg   *registry.Registry
	pools *db.Pools
}

// New builds an application. Handlers register on Registry before Run.
func New(cfg *config.Config, log *zap.Logger) *App {
	a := &App{cfg: cfg, log: log, reg: registry.New()}
	a.reg.Register("static", action.NewStatic)
	return a
}

// Registry exposes the handler registry for registration and live reload.
func (a *App) Registry() *registry.Registry { return a.reg }

// Pools returns the named database pools. Nil until Run opens them, and nil
// when no databases are configured.
func (a *App) Pools() *db.Pools { return a.pools }

// Run blocks until the context cancels or the server fails. With
// server.workers > 0 the parent process supervises that many re-executed
// worker processes and serves nothing itself; each worker (and the
// workers=0 case) runs one reactor.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.cfg.Server.Workers > 0 && !supervisor.IsWorker() {
		a.log.Info("supervising workers", zap.Int("workers", a.cfg.Server.Workers))
		sup := supervisor.New(supervisor.Config{
			Workers:        a.cfg.Server.Workers,
			RestartBackoff: a.cfg.Server.RestartBackoff,
			MaxRestarts:    a.cfg.Server.MaxRestarts,
		}, a.log)
		return sup.Run(ctx)
	}

	return a.serve(ctx)
}

func (a *App) serve(ctx context.Context) error {
	rt, err := a.BuildRouter()
	if err != nil {
		return err
	}
	pages, err := a.loadErrorPages()
	if err != nil {
		return err
	}

	dbCfgs := make(map[string]db.Config, len(a.cfg.Databases)+1)
	if a.cfg.DB.DSN != "" {
		dbCfgs["default"] = poolConfig(a.cfg.DB)
	}
	for name, d := range a.cfg.Databases {
		dbCfgs[name] = poolConfig(d)
	}
	if len(dbCfgs) > 0 {
		pools, err := db.OpenAll(ctx, dbCfgs)
		if err != nil {
			return err
		}
		defer pools.Close()
		a.pools = pools
	}

	log := a.log
	if id := supervisor.WorkerID(); id > 0 {
		log = log.With(zap.Int("worker", id))
	}

	rx, err := reactor.New(reactor.Config{
		Addr:      a.cfg.Server.Addr,
		Addrs:     a.cfg.Server.Listen,
		ReusePort: a.cfg.Server.Workers > 0,
		Limits: http.Limits{
			MaxRequestLine: a.cfg.Server.MaxRequestLine,
			MaxHeaderBytes: a.cfg.Server.MaxHeaderBytes,
			MaxBodyBytes:   a.cfg.Server.MaxBodyBytes,
		},
		IdleTimeout:        a.cfg.Server.IdleTimeout,
		MaxRequestsPerConn: a.cfg.Server.MaxRequestsPerConn,
		ReadBufferSize:     a.cfg.Server.ReadBufferSize,
	}, rt, a.reg, pages, log)
	if err != nil {
		return err
	}
	if err := rx.Listen(); err != nil {
		rx.Close()
		return err
	}

	err = rx.Run(ctx)
	if err == context.Canceled {
		return nil
	}
	return err
}

// BuildRouter compiles the configured route table. It validates every
// pattern and handler reference up front, so a bad config fails at startup
// instead of at request time.
func (a *App) BuildRouter() (*router.Router, error) {
	table := router.NewTable()
	for _, rt := range a.cfg.Routes {
		if _, ok := a.reg.Resolve(rt.Handler); !ok {
			return nil, fmt.Errorf("app: route %q references unknown handler %q", rt.Pattern, rt.Handler)
		}
		if err := table.Register(rt.Pattern, rt.Handler, rt.Args); err != nil {
			return nil, err
		}
	}
	return router.New(table), nil
}

func poolConfig(d config.DB) db.Config {
	return db.Config{
		DSN:          d.DSN,
		MaxOpen:      d.MaxOpen,
		MaxIdle:      d.MaxIdle,
		ConnLifetime: d.ConnLifetime,
	}
}

func (a *App) loadErrorPages() (*action.ErrorPages, error) {
	pages := action.NewErrorPages()
	for key, path := range a.cfg.Errors.Templates {
		status, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("app: error template key %q is not a status code", key)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("app: error template for %d: %w", status, err)
		}
		pages.Templates[status] = string(data)
	}
	return pages, nil
}

// NewLogger builds the process logger from the logging config.
func NewLogger(cfg config.Logging) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("app: log level %q: %w", cfg.Level, err)
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
