// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package exposes the build engine to an MCP client (typically
// the agent driving the generate, build and repair loop) using the
// mark3labs/mcp-go library. Tools:
//
//   - run_build_command: run a command against the generated project, with caching
//   - write_project: materialize generated files into the sandbox directory
//   - prepare_container, stop_container, remove_container, container_status:
//     per-language container lifecycle
//
// The server supports both stdio and HTTP transports as configured by the
// application configuration.
//
// Usage:
//
//	server, err := mcpserver.New(config, logger, orchestrator, containers, catalog)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = server.ServeStdio() // or server.ServeHTTP()
package mcpserver
