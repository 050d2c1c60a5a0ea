package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Environment selects where a command runs
type Environment int

const (
	// Container runs the command inside the language's long-lived container.
	Container Environment = iota
	// Host runs the command as a local process in the sandbox directory.
	Host
)

func (e Environment) String() string {
	switch e {
	case Container:
		return "container"
	case Host:
		return "host"
	default:
		return fmt.Sprintf("environment(%d)", int(e))
	}
}

// ParseEnvironment converts "host" or "container" into an Environment
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(s) {
	case "container", "docker", "podman":
		return Container, nil
	case "host", "local":
		return Host, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownEnvironment, s)
	}
}

// NoExitCode marks a result without an observable exit status, such as a detached exec
const NoExitCode = -1

// ExecRequest represents one command to execute
type ExecRequest struct {
	Argv        []string
	Dir         string
	User        string // numeric "uid:gid"
	Environment Environment
	Detach      bool
}

// ExecResult represents the fully captured outcome of a command
type ExecResult struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Exited reports whether the result carries a real exit status
func (r ExecResult) Exited() bool {
	return r.ExitCode != NoExitCode
}

// CommandRunner defines an interface for executing host processes
type CommandRunner interface {
	RunCommand(ctx context.Context, dir string, args []string) (stdout, stderr []byte, exitCode int, err error)
}

// RealCommandRunner implements CommandRunner using actual exec commands
type RealCommandRunner struct{}

// RunCommand executes the given command with arguments in dir
func (RealCommandRunner) RunCommand(ctx context.Context, dir string, args []string) (stdout, stderr []byte, exitCode int, err error) {
	if len(args) < 1 {
		return nil, nil, 0, ErrEmptyCommand
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...) //nolint:gosec // Running generated build commands is the purpose
	cmd.Dir = dir

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	if err := cmd.Run(); err != nil {
		var exitError *exec.ExitError
		if !errors.As(err, &exitError) {
			return nil, nil, 0, err
		}
		exitCode = exitError.ExitCode()
	}

	return stdoutBuf.Bytes(), stderrBuf.Bytes(), exitCode, nil
}

// FileSystem defines an interface for file system operations
type FileSystem interface {
	MkdirAll(path string, perm os.FileMode) error
	WriteFile(filename string, data []byte, perm os.FileMode) error
	ReadFile(filename string) ([]byte, error)
	RemoveAll(path string) error
	ReadDir(path string) ([]string, error)
	FileExists(path string) (bool, error)
}

// RealFileSystem implements FileSystem using actual file system operations
type RealFileSystem struct{}

func (RealFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (RealFileSystem) WriteFile(filename string, data []byte, perm os.FileMode) error {
	return os.WriteFile(filename, data, perm)
}

func (RealFileSystem) ReadFile(filename string) ([]byte, error) {
	return os.ReadFile(filename)
}

func (RealFileSystem) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

// ReadDir returns the names of the entries in path
func (RealFileSystem) ReadDir(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

func (RealFileSystem) FileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

// File permission constants
const (
	DirPermission  = 0755
	FilePermission = 0644
)

// CurrentUser returns the caller's numeric "uid:gid" so files created in the
// bind mount stay writable from the host
func CurrentUser() string {
	return fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid())
}
