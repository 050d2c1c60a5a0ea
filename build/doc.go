// Package build drives one lifecycle command for one language.
//
// The Orchestrator reads the language's project files, derives the cache key
// from the command and the verbatim file contents, and only on a cache miss
// dispatches the command. Success is exit code zero; the message is the
// captured stderr on failure and empty otherwise, never stdout.
//
// Usage:
//
//	orch := build.New(logger, catalog, sandbox.RealFileSystem{}, dispatcher, store, build.Options{
//	    SandboxDir: "/abs/path/sandbox",
//	})
//	result, err := orch.Run(ctx, sandbox.LanguagePython, "pytest")
package build
