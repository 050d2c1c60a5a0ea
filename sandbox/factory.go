package sandbox

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/isdmx/buildbox/config"
)

// NewCatalogFromConfig builds the descriptor table with the configured image overrides
func NewCatalogFromConfig(cfg *config.Config) (*Catalog, error) {
	return NewCatalog(cfg.ImageOverrides())
}

// NewEngineFromConfig connects to the engine selected by sandbox.backend.
// The client connects lazily, so the local backend can still construct one.
func NewEngineFromConfig(cfg *config.Config) (Engine, error) {
	host := cfg.Sandbox.EngineHost
	switch cfg.Sandbox.Backend {
	case config.BackendDocker, config.BackendLocal:
	case config.BackendPodman:
		if host == "" {
			host = DefaultPodmanHost
		}
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Sandbox.Backend)
	}
	return NewEngine(host)
}

// EnvironmentFromConfig maps sandbox.backend onto the environment commands are dispatched to
func EnvironmentFromConfig(cfg *config.Config) Environment {
	if cfg.Sandbox.Backend == config.BackendLocal {
		return Host
	}
	return Container
}

// NewContainerManagerFromConfig creates a ContainerManager for the configured sandbox directory
func NewContainerManagerFromConfig(logger *zap.Logger, cfg *config.Config, engine Engine, catalog *Catalog) (*ContainerManager, error) {
	dir, err := filepath.Abs(cfg.Sandbox.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sandbox dir: %w", err)
	}

	return NewContainerManager(logger, engine, catalog, ContainerConfig{
		Prefix:     cfg.Sandbox.ContainerPrefix,
		SandboxDir: dir,
		MountPath:  cfg.Sandbox.MountPath,
		User:       CurrentUser(),
		Verbose:    cfg.Sandbox.Verbose,
	}), nil
}

// NewDispatcherFromConfig creates a Dispatcher for the configured sandbox directory
func NewDispatcherFromConfig(logger *zap.Logger, cfg *config.Config, catalog *Catalog, containers *ContainerManager, executor *Executor) (*Dispatcher, error) {
	dir, err := filepath.Abs(cfg.Sandbox.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sandbox dir: %w", err)
	}

	return NewDispatcher(logger, catalog, containers, executor, DispatcherConfig{
		SandboxDir: dir,
		MountPath:  cfg.Sandbox.MountPath,
		User:       CurrentUser(),
	}), nil
}
