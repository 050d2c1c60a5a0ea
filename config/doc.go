// Package config provides application configuration management.
//
// The config package handles loading and validation of the application's
// configuration from YAML files and BUILDBOX_* environment variables. It
// covers the MCP server, the sandbox (container backend, sandbox directory,
// container naming), the result cache, logging and per-language image
// overrides.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Sandbox dir: %s\n", cfg.Sandbox.Dir)
package config
