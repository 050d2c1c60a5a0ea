package build

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isdmx/buildbox/cache"
	"github.com/isdmx/buildbox/config"
	applog "github.com/isdmx/buildbox/logger"
	"github.com/isdmx/buildbox/sandbox"
)

// Dispatcher runs a command line for a language in an environment
type Dispatcher interface {
	Run(ctx context.Context, env sandbox.Environment, lang sandbox.Language, commandLine string) (sandbox.ExecResult, error)
}

// Result is the outcome of one orchestrated command
type Result struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"` // stderr on failure, empty on success
	ExitCode int    `json:"exit_code"`
	Cached   bool   `json:"cached"`
}

// Options configures an Orchestrator
type Options struct {
	SandboxDir  string
	Environment sandbox.Environment
	Verbose     bool
}

// Orchestrator runs lifecycle commands ("cargo build", "pytest", ...) against
// the generated project, memoizing outcomes in a cache.Store
type Orchestrator struct {
	catalog    *sandbox.Catalog
	fs         sandbox.FileSystem
	dispatcher Dispatcher
	store      cache.Store
	opts       Options
	logger     *zap.Logger
}

// New creates an Orchestrator
func New(logger *zap.Logger, catalog *sandbox.Catalog, fsys sandbox.FileSystem, dispatcher Dispatcher, store cache.Store, opts Options) *Orchestrator {
	return &Orchestrator{
		catalog:    catalog,
		fs:         fsys,
		dispatcher: dispatcher,
		store:      store,
		opts:       opts,
		logger:     logger,
	}
}

// NewFromConfig creates an Orchestrator for the configured sandbox directory and backend
func NewFromConfig(logger *zap.Logger, cfg *config.Config, catalog *sandbox.Catalog, dispatcher *sandbox.Dispatcher, store cache.Store) (*Orchestrator, error) {
	dir, err := filepath.Abs(cfg.Sandbox.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sandbox dir: %w", err)
	}

	return New(logger, catalog, sandbox.RealFileSystem{}, dispatcher, store, Options{
		SandboxDir:  dir,
		Environment: sandbox.EnvironmentFromConfig(cfg),
		Verbose:     cfg.Sandbox.Verbose,
	}), nil
}

// Run executes command for lang unless an identical command already ran
// against byte-identical project files.
//
// A returned error means orchestration itself could not proceed (missing
// project file, unreadable cache). A command that could not be dispatched is
// reported as an unsuccessful Result with the dispatch error as its message
// and is not cached. Non-zero exits are ordinary results and are cached.
func (o *Orchestrator) Run(ctx context.Context, lang sandbox.Language, command string) (Result, error) {
	if strings.TrimSpace(command) == "" {
		return Result{Success: true}, nil
	}

	desc, err := o.catalog.Lookup(lang)
	if err != nil {
		return Result{}, err
	}

	log := o.logger.With(
		zap.String("run_id", uuid.NewString()),
		zap.String("language", string(lang)),
		zap.String("command", command))
	log.Info("launching build command", zap.String("environment", o.opts.Environment.String()))

	files, err := sandbox.ReadProjectFiles(o.fs, o.opts.SandboxDir, desc)
	if err != nil {
		return Result{}, err
	}

	key := cache.Key(command, files)
	value, hit, err := o.store.Get(ctx, key)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrCache, err)
	}

	var outcome cache.Outcome
	if hit {
		if outcome, err = cache.DecodeOutcome(value); err != nil {
			return Result{}, fmt.Errorf("%w: %w", ErrCache, err)
		}
	} else {
		res, err := o.dispatcher.Run(ctx, o.opts.Environment, lang, command)
		if err == nil && !res.Exited() {
			err = ErrNoExitStatus
		}
		if err != nil {
			log.Warn("build command could not be dispatched", zap.Error(err))
			return Result{Success: false, Message: err.Error(), ExitCode: sandbox.NoExitCode}, nil
		}

		outcome = cache.Outcome{ExitCode: res.ExitCode, Stderr: string(res.Stderr)}
		o.record(ctx, log, key, outcome)
	}

	result := Result{
		Success:  outcome.ExitCode == 0,
		ExitCode: outcome.ExitCode,
		Cached:   hit,
	}
	if !result.Success {
		result.Message = outcome.Stderr
	}

	log.Info("build command finished",
		zap.Bool("success", result.Success),
		zap.Int("exit_code", result.ExitCode),
		zap.Bool("cached", hit))
	log.Log(applog.Verbosity(o.opts.Verbose), "build command output", zap.String("stderr", outcome.Stderr))

	return result, nil
}

// record stores a fresh outcome. Write failures are logged, not returned.
func (o *Orchestrator) record(ctx context.Context, log *zap.Logger, key string, outcome cache.Outcome) {
	value, err := outcome.Encode()
	if err == nil {
		err = o.store.Set(ctx, key, value)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("failed to cache build outcome", zap.Error(err))
	}
}
