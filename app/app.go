// Package app wires the build engine together with fx.
//
// Module provides everything downstream of *config.Config: the logger, the
// sandbox components, the result cache and the build orchestrator. Callers
// supply the configuration themselves (fx.Provide(config.New) for the server,
// fx.Supply for the CLI, which loads it from a flag).
package app

import (
	"context"
	"io"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/buildbox/build"
	"github.com/isdmx/buildbox/cache"
	"github.com/isdmx/buildbox/config"
	"github.com/isdmx/buildbox/logger"
	"github.com/isdmx/buildbox/mcpserver"
	"github.com/isdmx/buildbox/sandbox"
)

// Module provides the build engine
var Module = fx.Module("buildbox",
	fx.Provide(
		logger.NewFromConfig,
		sandbox.NewCatalogFromConfig,
		newEngine,
		sandbox.NewExecutor,
		sandbox.NewContainerManagerFromConfig,
		sandbox.NewDispatcherFromConfig,
		newStore,
		build.NewFromConfig,
	),
)

// ServerModule provides the MCP server on top of Module
var ServerModule = fx.Module("mcpserver",
	fx.Provide(newMCPServer),
)

// Logger routes fx events through the application logger
func Logger() fx.Option {
	return fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: log}
	})
}

func newEngine(lc fx.Lifecycle, cfg *config.Config) (sandbox.Engine, error) {
	engine, err := sandbox.NewEngineFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if closer, ok := engine.(io.Closer); ok {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error { return closer.Close() },
		})
	}
	return engine, nil
}

func newStore(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (cache.Store, error) {
	store, err := cache.NewFromConfig(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return store.Close() },
	})
	return store, nil
}

func newMCPServer(cfg *config.Config, log *zap.Logger, orch *build.Orchestrator, containers *sandbox.ContainerManager, catalog *sandbox.Catalog) (*mcpserver.MCPServer, error) {
	return mcpserver.New(cfg, log, orch, containers, catalog)
}
