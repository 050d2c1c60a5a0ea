// Package sandboxtest provides an in-memory container engine for tests.
//
// Engine implements the sandbox.Engine method set with a small state machine
// (images present or absent, containers absent, stopped or running) and
// counts every call so tests can assert that a cache hit never reaches it.
package sandboxtest

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Method names accepted by Engine.Calls
const (
	MethodImageList       = "ImageList"
	MethodImagePull       = "ImagePull"
	MethodContainerCreate = "ContainerCreate"
	MethodInspect         = "ContainerInspect"
	MethodStart           = "ContainerStart"
	MethodStop            = "ContainerStop"
	MethodRemove          = "ContainerRemove"
	MethodExecCreate      = "ContainerExecCreate"
	MethodExecStart       = "ContainerExecStart"
	MethodExecAttach      = "ContainerExecAttach"
	MethodExecInspect     = "ContainerExecInspect"
)

// ExecOutcome is what a fake exec writes and returns
type ExecOutcome struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// ExecHandler decides the outcome of an exec from its target and options
type ExecHandler func(containerName string, opts container.ExecOptions) ExecOutcome

// Container is the recorded state of a fake container
type Container struct {
	ID         string
	Name       string
	Config     container.Config
	HostConfig container.HostConfig
	Running    bool
}

type execState struct {
	container string
	opts      container.ExecOptions
	outcome   ExecOutcome
	done      bool
}

// Engine is a fake container engine. The exported error fields inject
// failures into the matching calls.
type Engine struct {
	ImageListErr  error
	PullErr       error
	PullStreamErr string // error message embedded in the pull progress stream
	CreateErr     error
	ExecCreateErr error
	AttachErr     error

	// ExecKeepsRunning makes every exec inspect report a running exec with
	// exit code 0, as the engine does before a process has exited.
	ExecKeepsRunning bool
	// AttachBlocks makes attached output streams stay open until the
	// hijacked connection is closed.
	AttachBlocks bool

	mu         sync.Mutex
	handler    ExecHandler
	images     []string
	containers map[string]*Container
	execs      map[string]*execState
	calls      map[string]int
	seq        int
}

// NewEngine returns a fake engine holding the given image tags
func NewEngine(images ...string) *Engine {
	return &Engine{
		images:     append([]string(nil), images...),
		containers: make(map[string]*Container),
		execs:      make(map[string]*execState),
		calls:      make(map[string]int),
		handler: func(string, container.ExecOptions) ExecOutcome {
			return ExecOutcome{}
		},
	}
}

// SetExecHandler replaces the function that decides exec outcomes
func (e *Engine) SetExecHandler(h ExecHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = h
}

// SetExecOutcome makes every exec produce out
func (e *Engine) SetExecOutcome(out ExecOutcome) {
	e.SetExecHandler(func(string, container.ExecOptions) ExecOutcome { return out })
}

// AddContainer registers an existing container
func (e *Engine) AddContainer(name, img string, running bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	e.containers[name] = &Container{
		ID:      fmt.Sprintf("ctr-%d", e.seq),
		Name:    name,
		Config:  container.Config{Image: img},
		Running: running,
	}
}

// Container returns a copy of the named container's state
func (e *Engine) Container(name string) (Container, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.containers[name]
	if !ok {
		return Container{}, false
	}
	return *c, true
}

// Images returns the image tags currently present
func (e *Engine) Images() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.images...)
}

// Calls returns how many times method was invoked
func (e *Engine) Calls(method string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[method]
}

// TotalCalls returns the number of calls across all methods
func (e *Engine) TotalCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	total := 0
	for _, n := range e.calls {
		total += n
	}
	return total
}

// LastExecOptions returns the options of the most recently created exec
func (e *Engine) LastExecOptions() (container.ExecOptions, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := fmt.Sprintf("exec-%d", e.seq)
	st, ok := e.execs[id]
	if !ok {
		return container.ExecOptions{}, false
	}
	return st.opts, true
}

func (e *Engine) record(method string) {
	e.calls[method]++
}

func notFound(kind, name string) error {
	return fmt.Errorf("No such %s: %s: %w", kind, name, cerrdefs.ErrNotFound)
}

func (e *Engine) ImageList(_ context.Context, _ image.ListOptions) ([]image.Summary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record(MethodImageList)

	if e.ImageListErr != nil {
		return nil, e.ImageListErr
	}
	summaries := make([]image.Summary, 0, len(e.images))
	for i, tag := range e.images {
		summaries = append(summaries, image.Summary{ID: fmt.Sprintf("sha256:%d", i), RepoTags: []string{tag}})
	}
	return summaries, nil
}

func (e *Engine) ImagePull(_ context.Context, ref string, _ image.PullOptions) (io.ReadCloser, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record(MethodImagePull)

	if e.PullErr != nil {
		return nil, e.PullErr
	}

	var stream strings.Builder
	fmt.Fprintf(&stream, "{\"status\":\"Pulling from %s\"}\n", ref)
	if e.PullStreamErr != "" {
		fmt.Fprintf(&stream, "{\"errorDetail\":{\"message\":%q},\"error\":%q}\n", e.PullStreamErr, e.PullStreamErr)
		return io.NopCloser(strings.NewReader(stream.String())), nil
	}
	stream.WriteString("{\"status\":\"Download complete\"}\n")

	if !strings.Contains(ref, ":") {
		ref += ":latest"
	}
	e.images = append(e.images, ref)
	return io.NopCloser(strings.NewReader(stream.String())), nil
}

func (e *Engine) ContainerCreate(_ context.Context, config *container.Config, hostConfig *container.HostConfig,
	_ *network.NetworkingConfig, _ *ocispec.Platform, containerName string) (container.CreateResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record(MethodContainerCreate)

	if e.CreateErr != nil {
		return container.CreateResponse{}, e.CreateErr
	}
	if _, ok := e.containers[containerName]; ok {
		return container.CreateResponse{}, fmt.Errorf("Conflict. The container name %q is already in use: %w", containerName, cerrdefs.ErrConflict)
	}

	e.seq++
	c := &Container{ID: fmt.Sprintf("ctr-%d", e.seq), Name: containerName}
	if config != nil {
		c.Config = *config
	}
	if hostConfig != nil {
		c.HostConfig = *hostConfig
	}
	e.containers[containerName] = c
	return container.CreateResponse{ID: c.ID}, nil
}

func (e *Engine) ContainerInspect(_ context.Context, containerID string) (container.InspectResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record(MethodInspect)

	c, ok := e.containers[containerID]
	if !ok {
		return container.InspectResponse{}, notFound("container", containerID)
	}

	status := "exited"
	if c.Running {
		status = "running"
	}
	cfg := c.Config
	return container.InspectResponse{
		ContainerJSONBase: &container.ContainerJSONBase{
			ID:    c.ID,
			Name:  "/" + c.Name,
			Image: c.Config.Image,
			State: &container.State{Status: status, Running: c.Running},
		},
		Config: &cfg,
	}, nil
}

func (e *Engine) ContainerStart(_ context.Context, containerID string, _ container.StartOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record(MethodStart)

	c, ok := e.containers[containerID]
	if !ok {
		return notFound("container", containerID)
	}
	c.Running = true
	return nil
}

func (e *Engine) ContainerStop(_ context.Context, containerID string, _ container.StopOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record(MethodStop)

	c, ok := e.containers[containerID]
	if !ok {
		return notFound("container", containerID)
	}
	c.Running = false
	return nil
}

func (e *Engine) ContainerRemove(_ context.Context, containerID string, options container.RemoveOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record(MethodRemove)

	c, ok := e.containers[containerID]
	if !ok {
		return notFound("container", containerID)
	}
	if c.Running && !options.Force {
		return fmt.Errorf("cannot remove running container %s: %w", containerID, cerrdefs.ErrConflict)
	}
	delete(e.containers, containerID)
	return nil
}

func (e *Engine) ContainerExecCreate(_ context.Context, containerID string, options container.ExecOptions) (container.ExecCreateResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record(MethodExecCreate)

	if e.ExecCreateErr != nil {
		return container.ExecCreateResponse{}, e.ExecCreateErr
	}
	c, ok := e.containers[containerID]
	if !ok {
		return container.ExecCreateResponse{}, notFound("container", containerID)
	}
	if !c.Running {
		return container.ExecCreateResponse{}, fmt.Errorf("container %s is not running: %w", containerID, cerrdefs.ErrConflict)
	}

	e.seq++
	id := fmt.Sprintf("exec-%d", e.seq)
	e.execs[id] = &execState{
		container: containerID,
		opts:      options,
		outcome:   e.handler(containerID, options),
	}
	return container.ExecCreateResponse{ID: id}, nil
}

func (e *Engine) ContainerExecStart(_ context.Context, execID string, _ container.ExecStartOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record(MethodExecStart)

	st, ok := e.execs[execID]
	if !ok {
		return notFound("exec instance", execID)
	}
	st.done = true
	return nil
}

func (e *Engine) ContainerExecAttach(_ context.Context, execID string, _ container.ExecAttachOptions) (types.HijackedResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record(MethodExecAttach)

	if e.AttachErr != nil {
		return types.HijackedResponse{}, e.AttachErr
	}
	st, ok := e.execs[execID]
	if !ok {
		return types.HijackedResponse{}, notFound("exec instance", execID)
	}
	st.done = true

	if e.AttachBlocks {
		pr, pw := io.Pipe()
		return types.HijackedResponse{
			Conn:   closeConn{close: func() error { return pw.CloseWithError(net.ErrClosed) }},
			Reader: bufio.NewReader(pr),
		}, nil
	}

	var frames bytes.Buffer
	writeFrames(&frames, st.outcome)
	return types.HijackedResponse{
		Conn:   nopConn{},
		Reader: bufio.NewReader(&frames),
	}, nil
}

func (e *Engine) ContainerExecInspect(_ context.Context, execID string) (container.ExecInspect, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record(MethodExecInspect)

	st, ok := e.execs[execID]
	if !ok {
		return container.ExecInspect{}, notFound("exec instance", execID)
	}
	exitCode := st.outcome.ExitCode
	if e.ExecKeepsRunning {
		exitCode = 0
	}
	return container.ExecInspect{
		ExecID:      execID,
		ContainerID: st.container,
		Running:     !st.done || e.ExecKeepsRunning,
		ExitCode:    exitCode,
	}, nil
}

// writeFrames interleaves stdout and stderr line by line as multiplexed frames
func writeFrames(w io.Writer, out ExecOutcome) {
	stdout := stdcopy.NewStdWriter(w, stdcopy.Stdout)
	stderr := stdcopy.NewStdWriter(w, stdcopy.Stderr)

	outLines := strings.SplitAfter(out.Stdout, "\n")
	errLines := strings.SplitAfter(out.Stderr, "\n")
	for i := 0; i < len(outLines) || i < len(errLines); i++ {
		if i < len(outLines) && outLines[i] != "" {
			_, _ = stdout.Write([]byte(outLines[i]))
		}
		if i < len(errLines) && errLines[i] != "" {
			_, _ = stderr.Write([]byte(errLines[i]))
		}
	}
}

// nopConn satisfies net.Conn for HijackedResponse.Close
type nopConn struct {
	net.Conn
}

func (nopConn) Close() error { return nil }

// closeConn satisfies net.Conn and runs close on Close
type closeConn struct {
	net.Conn
	close func() error
}

func (c closeConn) Close() error { return c.close() }
