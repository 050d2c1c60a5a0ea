package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Executor runs one command inside an already running container and returns
// its fully captured output
type Executor struct {
	engine Engine
	logger *zap.Logger
}

// NewExecutor creates an Executor
func NewExecutor(logger *zap.Logger, engine Engine) *Executor {
	return &Executor{engine: engine, logger: logger}
}

// Exec runs req in containerName and blocks until the output streams close.
//
// The multiplexed stream is drained by a task scoped to this call; no partial
// result is ever returned. For a detached request nothing is attached and the
// result carries NoExitCode, as does an exec still running once the exit
// polling gives up.
func (e *Executor) Exec(ctx context.Context, containerName string, req ExecRequest) (ExecResult, error) {
	if len(req.Argv) == 0 {
		return ExecResult{}, ErrEmptyCommand
	}

	created, err := e.engine.ContainerExecCreate(ctx, containerName, container.ExecOptions{
		User:         req.User,
		WorkingDir:   req.Dir,
		Cmd:          req.Argv,
		AttachStdout: !req.Detach,
		AttachStderr: !req.Detach,
		Detach:       req.Detach,
	})
	if err != nil {
		return ExecResult{}, fmt.Errorf("%w: %s in %s: %w", ErrExecCreate, req.Argv[0], containerName, err)
	}

	e.logger.Debug("exec created",
		zap.String("container", containerName),
		zap.String("exec_id", created.ID),
		zap.Strings("argv", req.Argv),
		zap.String("user", req.User))

	if req.Detach {
		if err := e.engine.ContainerExecStart(ctx, created.ID, container.ExecStartOptions{Detach: true}); err != nil {
			return ExecResult{}, fmt.Errorf("%w: failed to start detached exec: %w", ErrEngine, err)
		}
		return ExecResult{ExitCode: NoExitCode}, nil
	}

	hijacked, err := e.engine.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return ExecResult{}, fmt.Errorf("%w: %w", ErrExecAttach, err)
	}
	defer hijacked.Close()

	// The copy task ends when the streams close. The watcher closes the
	// connection if ctx ends first so the copy is released.
	var stdout, stderr bytes.Buffer
	copied := make(chan struct{})
	var g errgroup.Group
	g.Go(func() error {
		defer close(copied)
		_, err := stdcopy.StdCopy(&stdout, &stderr, hijacked.Reader)
		return err
	})
	g.Go(func() error {
		select {
		case <-ctx.Done():
			hijacked.Close()
			return ctx.Err()
		case <-copied:
			return nil
		}
	})
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return ExecResult{}, ctx.Err()
		}
		return ExecResult{}, fmt.Errorf("%w: reading exec output: %w", ErrEngine, err)
	}

	inspect, err := e.waitExited(ctx, created.ID)
	if err != nil {
		return ExecResult{}, err
	}
	if inspect.Running {
		e.logger.Warn("exec still running after its output closed",
			zap.String("container", containerName),
			zap.String("exec_id", created.ID))
		return ExecResult{ExitCode: NoExitCode, Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, nil
	}

	e.logger.Debug("exec finished",
		zap.String("container", containerName),
		zap.String("exec_id", created.ID),
		zap.Int("exit_code", inspect.ExitCode),
		zap.Int("stdout_len", stdout.Len()),
		zap.Int("stderr_len", stderr.Len()))

	return ExecResult{
		ExitCode: inspect.ExitCode,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
	}, nil
}

// The engine can report an exec as running for a moment after its streams
// close, so the exit code is read once it settles. While running, the
// reported exit code is 0 and means nothing.
const (
	exitPollAttempts = 50
	exitPollInterval = 20 * time.Millisecond
)

func (e *Executor) waitExited(ctx context.Context, execID string) (container.ExecInspect, error) {
	for attempt := 0; ; attempt++ {
		inspect, err := e.engine.ContainerExecInspect(ctx, execID)
		if err != nil {
			return container.ExecInspect{}, fmt.Errorf("%w: failed to inspect exec: %w", ErrEngine, err)
		}
		if !inspect.Running || attempt >= exitPollAttempts {
			return inspect, nil
		}

		select {
		case <-ctx.Done():
			return container.ExecInspect{}, ctx.Err()
		case <-time.After(exitPollInterval):
		}
	}
}
