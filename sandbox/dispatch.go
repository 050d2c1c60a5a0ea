package sandbox

import (
	"context"
	"runtime"
	"strings"

	"go.uber.org/zap"
)

// ContainerExecutor runs a request inside a named container
type ContainerExecutor interface {
	Exec(ctx context.Context, containerName string, req ExecRequest) (ExecResult, error)
}

// DispatcherConfig holds the paths and identity commands run with
type DispatcherConfig struct {
	SandboxDir string // host working directory for Host commands
	MountPath  string // working directory for Container commands
	User       string // numeric "uid:gid" for Container commands
	GOOS       string // host OS for executable suffix rules; defaults to runtime.GOOS
}

// Dispatcher routes a command line to a host process or a language container
type Dispatcher struct {
	catalog    *Catalog
	containers *ContainerManager
	executor   ContainerExecutor
	runner     CommandRunner
	config     DispatcherConfig
	logger     *zap.Logger
}

// DispatcherOption defines a functional option for Dispatcher
type DispatcherOption func(*Dispatcher)

// WithCommandRunner sets the CommandRunner used for Host commands
func WithCommandRunner(runner CommandRunner) DispatcherOption {
	return func(d *Dispatcher) {
		d.runner = runner
	}
}

// NewDispatcher creates a Dispatcher. Container names come from containers.
func NewDispatcher(logger *zap.Logger, catalog *Catalog, containers *ContainerManager, executor ContainerExecutor, cfg DispatcherConfig, opts ...DispatcherOption) *Dispatcher {
	if cfg.GOOS == "" {
		cfg.GOOS = runtime.GOOS
	}
	if cfg.User == "" {
		cfg.User = CurrentUser()
	}

	d := &Dispatcher{
		catalog:    catalog,
		containers: containers,
		executor:   executor,
		runner:     &RealCommandRunner{},
		config:     cfg,
		logger:     logger,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// SplitCommand splits a command line on whitespace. Quotes, escapes, pipes
// and redirections have no special meaning.
func SplitCommand(commandLine string) []string {
	return strings.Fields(commandLine)
}

// Run executes commandLine for lang in env.
//
// Container commands assume the language container is already running; call
// ContainerManager.EnsureReady or Start first.
func (d *Dispatcher) Run(ctx context.Context, env Environment, lang Language, commandLine string) (ExecResult, error) {
	argv := SplitCommand(commandLine)
	if len(argv) == 0 {
		return ExecResult{}, ErrEmptyCommand
	}

	desc, err := d.catalog.Lookup(lang)
	if err != nil {
		return ExecResult{}, err
	}

	d.logger.Debug("dispatching command",
		zap.String("environment", env.String()),
		zap.String("language", string(lang)),
		zap.Strings("argv", argv))

	switch env {
	case Host:
		argv[0] = desc.ExecutableName(argv[0], d.config.GOOS)
		stdout, stderr, exitCode, err := d.runner.RunCommand(ctx, d.config.SandboxDir, argv)
		if err != nil {
			return ExecResult{}, err
		}
		return ExecResult{ExitCode: exitCode, Stdout: stdout, Stderr: stderr}, nil
	case Container:
		return d.executor.Exec(ctx, d.containers.ContainerName(lang), ExecRequest{
			Argv:        argv,
			Dir:         d.config.MountPath,
			User:        d.config.User,
			Environment: Container,
		})
	default:
		return ExecResult{}, ErrUnknownEnvironment
	}
}
