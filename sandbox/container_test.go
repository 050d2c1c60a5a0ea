package sandbox

import (
	"context"
	"errors"
	"testing"

	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/isdmx/buildbox/sandbox/sandboxtest"
)

var (
	_ Engine = (*client.Client)(nil)
	_ Engine = (*sandboxtest.Engine)(nil)
)

func newTestManager(t *testing.T, engine Engine) *ContainerManager {
	t.Helper()
	catalog, err := NewCatalog(nil)
	require.NoError(t, err)
	return NewContainerManager(zaptest.NewLogger(t), engine, catalog, ContainerConfig{
		Prefix:     "buildbox",
		SandboxDir: "/srv/sandbox",
		MountPath:  "/app",
		User:       "1000:1000",
	})
}

func TestContainerName(t *testing.T) {
	m := newTestManager(t, sandboxtest.NewEngine())
	assert.Equal(t, "buildbox_python_container", m.ContainerName(LanguagePython))
	assert.Equal(t, "buildbox_typescript_container", m.ContainerName(LanguageTypeScript))
}

func TestImageExists(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		images   []string
		lang     Language
		expected bool
	}{
		{"ExactTag", []string{"python:3.12"}, LanguagePython, true},
		{"DifferentTag", []string{"python:3.11"}, LanguagePython, false},
		{"SubstringIsNotMatch", []string{"python:3.12-slim"}, LanguagePython, false},
		{"LatestTag", []string{"rust:latest"}, LanguageRust, true},
		{"OtherImages", []string{"node:20", "composer:2"}, LanguageRust, false},
		{"NoImages", nil, LanguageSwift, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t, sandboxtest.NewEngine(tt.images...))
			exists, err := m.ImageExists(ctx, tt.lang)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, exists)
		})
	}

	t.Run("ListFails", func(t *testing.T) {
		engine := sandboxtest.NewEngine()
		engine.ImageListErr = errors.New("daemon unreachable")
		m := newTestManager(t, engine)

		_, err := m.ImageExists(ctx, LanguagePython)
		require.ErrorIs(t, err, ErrEngine)
	})
}

func TestNormalizeImageRef(t *testing.T) {
	assert.Equal(t, "rust:latest", normalizeImageRef("rust"))
	assert.Equal(t, "rust:latest", normalizeImageRef("rust:latest"))
	assert.Equal(t, "localhost:5000/rust:latest", normalizeImageRef("localhost:5000/rust"))
	assert.Equal(t, "localhost:5000/rust:1.80", normalizeImageRef("localhost:5000/rust:1.80"))
	assert.Equal(t, "rust@sha256:abc", normalizeImageRef("rust@sha256:abc"))
}

func TestPullImage(t *testing.T) {
	ctx := context.Background()

	t.Run("SkipsPresentImage", func(t *testing.T) {
		engine := sandboxtest.NewEngine("python:3.12")
		m := newTestManager(t, engine)

		require.NoError(t, m.PullImage(ctx, LanguagePython))
		assert.Equal(t, 0, engine.Calls(sandboxtest.MethodImagePull))
	})

	t.Run("PullsMissingImage", func(t *testing.T) {
		engine := sandboxtest.NewEngine()
		m := newTestManager(t, engine)

		require.NoError(t, m.PullImage(ctx, LanguagePython))
		assert.Equal(t, 1, engine.Calls(sandboxtest.MethodImagePull))

		exists, err := m.ImageExists(ctx, LanguagePython)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("PullRequestFails", func(t *testing.T) {
		engine := sandboxtest.NewEngine()
		engine.PullErr = errors.New("registry unavailable")
		m := newTestManager(t, engine)

		err := m.PullImage(ctx, LanguagePython)
		require.ErrorIs(t, err, ErrImagePull)
		assert.Contains(t, err.Error(), "python:3.12")
	})

	t.Run("PullStreamReportsError", func(t *testing.T) {
		engine := sandboxtest.NewEngine()
		engine.PullStreamErr = "manifest unknown"
		m := newTestManager(t, engine)

		err := m.PullImage(ctx, LanguagePython)
		require.ErrorIs(t, err, ErrImagePull)
		assert.Contains(t, err.Error(), "manifest unknown")
	})
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("ConfiguresMountAndUser", func(t *testing.T) {
		engine := sandboxtest.NewEngine("python:3.12")
		m := newTestManager(t, engine)

		require.NoError(t, m.Create(ctx, LanguagePython))

		c, ok := engine.Container("buildbox_python_container")
		require.True(t, ok)
		assert.False(t, c.Running)
		assert.Equal(t, "python:3.12", c.Config.Image)
		assert.Equal(t, "/app", c.Config.WorkingDir)
		assert.Equal(t, "1000:1000", c.Config.User)
		assert.True(t, c.Config.Tty)
		require.Len(t, c.HostConfig.Mounts, 1)
		assert.Equal(t, mount.TypeBind, c.HostConfig.Mounts[0].Type)
		assert.Equal(t, "/srv/sandbox", c.HostConfig.Mounts[0].Source)
		assert.Equal(t, "/app", c.HostConfig.Mounts[0].Target)
	})

	t.Run("AlreadyExists", func(t *testing.T) {
		engine := sandboxtest.NewEngine("python:3.12")
		engine.AddContainer("buildbox_python_container", "python:3.12", false)
		m := newTestManager(t, engine)

		err := m.Create(ctx, LanguagePython)
		require.ErrorIs(t, err, ErrContainerExists)
		assert.Equal(t, 0, engine.Calls(sandboxtest.MethodContainerCreate))
	})

	t.Run("EngineFails", func(t *testing.T) {
		engine := sandboxtest.NewEngine("python:3.12")
		engine.CreateErr = errors.New("no space left on device")
		m := newTestManager(t, engine)

		err := m.Create(ctx, LanguagePython)
		require.ErrorIs(t, err, ErrEngine)
	})

	t.Run("UnsupportedLanguage", func(t *testing.T) {
		m := newTestManager(t, sandboxtest.NewEngine())
		require.ErrorIs(t, m.Create(ctx, Language("cobol")), ErrUnsupportedLanguage)
	})
}

func TestStart(t *testing.T) {
	ctx := context.Background()

	t.Run("Idempotent", func(t *testing.T) {
		engine := sandboxtest.NewEngine("rust:latest")
		m := newTestManager(t, engine)
		require.NoError(t, m.Create(ctx, LanguageRust))

		require.NoError(t, m.Start(ctx, LanguageRust))
		require.NoError(t, m.Start(ctx, LanguageRust))

		c, ok := engine.Container("buildbox_rust_container")
		require.True(t, ok)
		assert.True(t, c.Running)
		assert.Equal(t, 1, engine.Calls(sandboxtest.MethodStart))
	})

	t.Run("NeverCreates", func(t *testing.T) {
		engine := sandboxtest.NewEngine("rust:latest")
		m := newTestManager(t, engine)

		err := m.Start(ctx, LanguageRust)
		require.ErrorIs(t, err, ErrContainerNotFound)
		assert.Contains(t, err.Error(), "create it first")
		assert.Equal(t, 0, engine.Calls(sandboxtest.MethodContainerCreate))
	})

	t.Run("RemoveThenStart", func(t *testing.T) {
		engine := sandboxtest.NewEngine("rust:latest")
		m := newTestManager(t, engine)
		require.NoError(t, m.EnsureReady(ctx, LanguageRust))

		require.NoError(t, m.Remove(ctx, LanguageRust))

		err := m.Start(ctx, LanguageRust)
		require.ErrorIs(t, err, ErrContainerNotFound)
	})
}

func TestStop(t *testing.T) {
	ctx := context.Background()

	t.Run("Running", func(t *testing.T) {
		engine := sandboxtest.NewEngine()
		engine.AddContainer("buildbox_java_container", "maven:3-eclipse-temurin-21", true)
		m := newTestManager(t, engine)

		stopped, err := m.Stop(ctx, LanguageJava)
		require.NoError(t, err)
		assert.True(t, stopped)

		c, _ := engine.Container("buildbox_java_container")
		assert.False(t, c.Running)
	})

	t.Run("AlreadyStopped", func(t *testing.T) {
		engine := sandboxtest.NewEngine()
		engine.AddContainer("buildbox_java_container", "maven:3-eclipse-temurin-21", false)
		m := newTestManager(t, engine)

		stopped, err := m.Stop(ctx, LanguageJava)
		require.NoError(t, err)
		assert.False(t, stopped)
		assert.Equal(t, 0, engine.Calls(sandboxtest.MethodStop))
	})

	t.Run("Missing", func(t *testing.T) {
		m := newTestManager(t, sandboxtest.NewEngine())

		_, err := m.Stop(ctx, LanguageJava)
		require.ErrorIs(t, err, ErrContainerNotFound)
	})
}

func TestRemove(t *testing.T) {
	ctx := context.Background()

	t.Run("RunningContainer", func(t *testing.T) {
		engine := sandboxtest.NewEngine()
		engine.AddContainer("buildbox_php_container", "composer:2", true)
		m := newTestManager(t, engine)

		require.NoError(t, m.Remove(ctx, LanguagePHP))
		_, ok := engine.Container("buildbox_php_container")
		assert.False(t, ok)
	})

	t.Run("MissingContainer", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		catalog, err := NewCatalog(nil)
		require.NoError(t, err)
		m := NewContainerManager(zap.New(core), sandboxtest.NewEngine(), catalog, ContainerConfig{Prefix: "buildbox", Verbose: true})

		require.NoError(t, m.Remove(ctx, LanguagePHP))
		assert.Zero(t, logs.FilterMessage("container removed").Len())
	})

	t.Run("LogsOnlyActualRemoval", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		catalog, err := NewCatalog(nil)
		require.NoError(t, err)
		engine := sandboxtest.NewEngine()
		engine.AddContainer("buildbox_php_container", "composer:2", false)
		m := NewContainerManager(zap.New(core), engine, catalog, ContainerConfig{Prefix: "buildbox", Verbose: true})

		require.NoError(t, m.Remove(ctx, LanguagePHP))
		require.NoError(t, m.Remove(ctx, LanguagePHP))
		assert.Equal(t, 1, logs.FilterMessage("container removed").Len())
	})
}

func TestEnsureReady(t *testing.T) {
	ctx := context.Background()

	t.Run("FromNothing", func(t *testing.T) {
		engine := sandboxtest.NewEngine()
		m := newTestManager(t, engine)

		require.NoError(t, m.EnsureReady(ctx, LanguageKotlin))

		status, err := m.Status(ctx, LanguageKotlin)
		require.NoError(t, err)
		assert.True(t, status.ImagePresent)
		assert.Equal(t, StateRunning, status.State)
		assert.Equal(t, 1, engine.Calls(sandboxtest.MethodImagePull))
	})

	t.Run("StoppedContainer", func(t *testing.T) {
		engine := sandboxtest.NewEngine("gradle:jdk21")
		engine.AddContainer("buildbox_kotlin_container", "gradle:jdk21", false)
		m := newTestManager(t, engine)

		require.NoError(t, m.EnsureReady(ctx, LanguageKotlin))

		c, _ := engine.Container("buildbox_kotlin_container")
		assert.True(t, c.Running)
		assert.Equal(t, 0, engine.Calls(sandboxtest.MethodImagePull))
		assert.Equal(t, 0, engine.Calls(sandboxtest.MethodContainerCreate))
	})

	t.Run("PullFails", func(t *testing.T) {
		engine := sandboxtest.NewEngine()
		engine.PullErr = errors.New("unauthorized")
		m := newTestManager(t, engine)

		require.ErrorIs(t, m.EnsureReady(ctx, LanguageKotlin), ErrImagePull)
		assert.Equal(t, 0, engine.Calls(sandboxtest.MethodContainerCreate))
	})
}

func TestStatus(t *testing.T) {
	ctx := context.Background()

	engine := sandboxtest.NewEngine("swift:latest")
	m := newTestManager(t, engine)

	status, err := m.Status(ctx, LanguageSwift)
	require.NoError(t, err)
	assert.Equal(t, ContainerStatus{
		Name:         "buildbox_swift_container",
		Image:        "swift:latest",
		ImagePresent: true,
		State:        StateAbsent,
	}, status)

	require.NoError(t, m.Create(ctx, LanguageSwift))
	status, err = m.Status(ctx, LanguageSwift)
	require.NoError(t, err)
	assert.Equal(t, StateStopped, status.State)

	require.NoError(t, m.Start(ctx, LanguageSwift))
	status, err = m.Status(ctx, LanguageSwift)
	require.NoError(t, err)
	assert.Equal(t, StateRunning, status.State)
}
