package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/pkg/jsonmessage"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	applog "github.com/isdmx/buildbox/logger"
)

// ContainerState is the container axis of a language sandbox
type ContainerState string

const (
	StateAbsent  ContainerState = "absent"
	StateStopped ContainerState = "stopped"
	StateRunning ContainerState = "running"
)

// ContainerStatus reports both lifecycle axes for a language
type ContainerStatus struct {
	Name         string         `json:"name"`
	Image        string         `json:"image"`
	ImagePresent bool           `json:"image_present"`
	State        ContainerState `json:"state"`
}

// ContainerConfig holds the settings shared by all language containers
type ContainerConfig struct {
	Prefix     string // containers are named <Prefix>_<lang>_container
	SandboxDir string // absolute host path bind-mounted into every container
	MountPath  string // in-container path of the sandbox, also the working directory
	User       string // numeric "uid:gid"
	Verbose    bool
}

// ContainerManager keeps one long-lived container per language
type ContainerManager struct {
	engine  Engine
	catalog *Catalog
	config  ContainerConfig
	logger  *zap.Logger
}

// NewContainerManager creates a ContainerManager
func NewContainerManager(logger *zap.Logger, engine Engine, catalog *Catalog, cfg ContainerConfig) *ContainerManager {
	if cfg.User == "" {
		cfg.User = CurrentUser()
	}
	return &ContainerManager{
		engine:  engine,
		catalog: catalog,
		config:  cfg,
		logger:  logger,
	}
}

// ContainerName returns the deterministic container name for lang
func (m *ContainerManager) ContainerName(lang Language) string {
	return fmt.Sprintf("%s_%s_container", m.config.Prefix, strings.ToLower(string(lang)))
}

// ImageExists reports whether the language image is present locally.
// Repo tags are compared exactly; an untagged reference means ":latest".
func (m *ContainerManager) ImageExists(ctx context.Context, lang Language) (bool, error) {
	d, err := m.catalog.Lookup(lang)
	if err != nil {
		return false, err
	}

	images, err := m.engine.ImageList(ctx, image.ListOptions{All: true})
	if err != nil {
		return false, fmt.Errorf("%w: failed to list images: %w", ErrEngine, err)
	}

	want := normalizeImageRef(d.Image)
	for _, img := range images {
		for _, tag := range img.RepoTags {
			if normalizeImageRef(tag) == want {
				return true, nil
			}
		}
	}
	return false, nil
}

// PullImage fetches the language image, streaming the pull to completion.
// It is a no-op when the image is already present.
func (m *ContainerManager) PullImage(ctx context.Context, lang Language) error {
	exists, err := m.ImageExists(ctx, lang)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	d, err := m.catalog.Lookup(lang)
	if err != nil {
		return err
	}

	m.logger.Info("pulling image", zap.String("language", string(lang)), zap.String("image", d.Image))

	stream, err := m.engine.ImagePull(ctx, d.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrImagePull, d.Image, err)
	}
	defer stream.Close()

	progress := &zapWriter{logger: m.logger, level: applog.Verbosity(m.config.Verbose), msg: "image pull progress"}
	if err := jsonmessage.DisplayJSONMessagesStream(stream, progress, 0, false, nil); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrImagePull, d.Image, err)
	}

	m.logger.Info("image pulled", zap.String("image", d.Image))
	return nil
}

// Create creates the language container without starting it. It fails with
// ErrContainerExists when a container of that name already exists.
func (m *ContainerManager) Create(ctx context.Context, lang Language) error {
	d, err := m.catalog.Lookup(lang)
	if err != nil {
		return err
	}
	name := m.ContainerName(lang)

	if _, err := m.engine.ContainerInspect(ctx, name); err == nil {
		return fmt.Errorf("%w: %s", ErrContainerExists, name)
	} else if !cerrdefs.IsNotFound(err) {
		return fmt.Errorf("%w: failed to inspect %s: %w", ErrEngine, name, err)
	}

	cfg := &container.Config{
		Image:      d.Image,
		Tty:        true, // keeps the shell alive without an attached client
		WorkingDir: m.config.MountPath,
		User:       m.config.User,
		Cmd:        []string{"/bin/sh"},
	}
	hostCfg := &container.HostConfig{
		Mounts: []mount.Mount{
			{
				Type:   mount.TypeBind,
				Source: m.config.SandboxDir,
				Target: m.config.MountPath,
			},
		},
	}

	resp, err := m.engine.ContainerCreate(ctx, cfg, hostCfg, nil, nil, name)
	if err != nil {
		if cerrdefs.IsConflict(err) {
			return fmt.Errorf("%w: %s", ErrContainerExists, name)
		}
		return fmt.Errorf("%w: failed to create %s: %w", ErrEngine, name, err)
	}

	for _, w := range resp.Warnings {
		m.logger.Warn("container create warning", zap.String("container", name), zap.String("warning", w))
	}
	m.logger.Info("container created",
		zap.String("container", name),
		zap.String("id", resp.ID),
		zap.String("image", d.Image),
		zap.String("sandbox_dir", m.config.SandboxDir))
	return nil
}

// Start makes sure the language container is running. It never creates a
// container: a missing one yields ErrContainerNotFound.
func (m *ContainerManager) Start(ctx context.Context, lang Language) error {
	name := m.ContainerName(lang)

	running, err := m.isRunning(ctx, name)
	if err != nil {
		return err
	}
	if running {
		return nil
	}

	if err := m.engine.ContainerStart(ctx, name, container.StartOptions{}); err != nil {
		if cerrdefs.IsNotFound(err) {
			return fmt.Errorf("%w: %s, create it first", ErrContainerNotFound, name)
		}
		return fmt.Errorf("%w: failed to start %s: %w", ErrEngine, name, err)
	}

	m.logger.Log(applog.Verbosity(m.config.Verbose), "container started", zap.String("container", name))
	return nil
}

// Stop stops a running container and reports whether it was running
func (m *ContainerManager) Stop(ctx context.Context, lang Language) (bool, error) {
	name := m.ContainerName(lang)

	running, err := m.isRunning(ctx, name)
	if err != nil {
		return false, err
	}
	if !running {
		return false, nil
	}

	if err := m.engine.ContainerStop(ctx, name, container.StopOptions{}); err != nil {
		return false, fmt.Errorf("%w: failed to stop %s: %w", ErrEngine, name, err)
	}

	m.logger.Log(applog.Verbosity(m.config.Verbose), "container stopped", zap.String("container", name))
	return true, nil
}

// Remove force-removes the language container regardless of its state.
// Removing a container that does not exist is not an error.
func (m *ContainerManager) Remove(ctx context.Context, lang Language) error {
	name := m.ContainerName(lang)

	err := m.engine.ContainerRemove(ctx, name, container.RemoveOptions{Force: true})
	if cerrdefs.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: failed to remove %s: %w", ErrEngine, name, err)
	}

	m.logger.Log(applog.Verbosity(m.config.Verbose), "container removed", zap.String("container", name))
	return nil
}

// EnsureReady pulls the image, creates the container and starts it, skipping
// whatever already exists
func (m *ContainerManager) EnsureReady(ctx context.Context, lang Language) error {
	if err := m.PullImage(ctx, lang); err != nil {
		return err
	}

	if err := m.Create(ctx, lang); err != nil && !errors.Is(err, ErrContainerExists) {
		return err
	}

	return m.Start(ctx, lang)
}

// Status reports image presence and container state for lang
func (m *ContainerManager) Status(ctx context.Context, lang Language) (ContainerStatus, error) {
	d, err := m.catalog.Lookup(lang)
	if err != nil {
		return ContainerStatus{}, err
	}

	status := ContainerStatus{
		Name:  m.ContainerName(lang),
		Image: d.Image,
		State: StateAbsent,
	}

	if status.ImagePresent, err = m.ImageExists(ctx, lang); err != nil {
		return ContainerStatus{}, err
	}

	running, err := m.isRunning(ctx, status.Name)
	switch {
	case errors.Is(err, ErrContainerNotFound):
	case err != nil:
		return ContainerStatus{}, err
	case running:
		status.State = StateRunning
	default:
		status.State = StateStopped
	}
	return status, nil
}

func (m *ContainerManager) isRunning(ctx context.Context, name string) (bool, error) {
	info, err := m.engine.ContainerInspect(ctx, name)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return false, fmt.Errorf("%w: %s, create it first", ErrContainerNotFound, name)
		}
		return false, fmt.Errorf("%w: failed to inspect %s: %w", ErrEngine, name, err)
	}
	return info.ContainerJSONBase != nil && info.State != nil && info.State.Running, nil
}

// normalizeImageRef appends ":latest" to references without a tag or digest
func normalizeImageRef(ref string) string {
	if strings.Contains(ref, "@") {
		return ref
	}
	if i := strings.LastIndex(ref, ":"); i > strings.LastIndex(ref, "/") {
		return ref
	}
	return ref + ":latest"
}

// zapWriter adapts a logger to io.Writer, one entry per write
type zapWriter struct {
	logger *zap.Logger
	level  zapcore.Level
	msg    string
}

func (w *zapWriter) Write(p []byte) (int, error) {
	if line := strings.TrimSpace(string(p)); line != "" {
		w.logger.Log(w.level, w.msg, zap.String("line", line))
	}
	return len(p), nil
}

var _ io.Writer = (*zapWriter)(nil)
