// Package main is the entry point for the buildbox MCP server.
//
// The server exposes the sandboxed build engine over the Model Context
// Protocol so an agent can write a generated project, prepare the language
// container and run build and test commands with cached outcomes. It
// supports both stdio and HTTP transports.
//
// The application uses Uber's fx framework for dependency injection and lifecycle
// management, with zap for structured logging and viper for configuration.
package main

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/isdmx/buildbox/app"
	"github.com/isdmx/buildbox/config"
	"github.com/isdmx/buildbox/mcpserver"
)

func main() {
	application := fx.New(
		fx.Provide(config.New),
		app.Module,
		app.ServerModule,

		// Start the appropriate transport based on config
		fx.Invoke(serve),

		app.Logger(),
	)

	application.Run()
}

func serve(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg *config.Config, log *zap.Logger, server *mcpserver.MCPServer) {
	var run func() error
	switch cfg.Server.Transport {
	case "stdio":
		run = server.ServeStdio
	case "http":
		run = server.ServeHTTP
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := run(); err != nil {
					log.Error("MCP server stopped", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
					return
				}
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
	})
}
