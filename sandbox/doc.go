// Package sandbox provides the container side of the build engine.
//
// Every supported language gets one long-lived container, named
// <prefix>_<language>_container, that bind-mounts the host sandbox directory
// holding the generated project. The package is organised in layers:
//
//   - Catalog: the descriptor table (image, project file layout, host
//     executable suffix) for each Language.
//   - ContainerManager: image and container lifecycle (pull, create, start,
//     stop, remove) against the Docker Engine API.
//   - Executor: runs one command in a running container and returns its
//     fully captured stdout, stderr and exit code.
//   - Dispatcher: splits a command line on whitespace and routes it to a
//     host process or to the Executor.
//
// The engine is consumed through the narrow Engine interface, which the
// Docker client satisfies and which the sandboxtest package fakes.
//
// Usage:
//
//	engine, err := sandbox.NewEngine("")
//	catalog, err := sandbox.NewCatalog(nil)
//	containers := sandbox.NewContainerManager(logger, engine, catalog, sandbox.ContainerConfig{
//	    Prefix:     "buildbox",
//	    SandboxDir: "/abs/path/sandbox",
//	    MountPath:  "/app",
//	})
//	err = containers.EnsureReady(ctx, sandbox.LanguagePython)
//	dispatcher := sandbox.NewDispatcher(logger, catalog, containers,
//	    sandbox.NewExecutor(logger, engine), sandbox.DispatcherConfig{MountPath: "/app"})
//	result, err := dispatcher.Run(ctx, sandbox.Container, sandbox.LanguagePython, "pytest")
package sandbox
