// Package logger provides structured logging capabilities.
//
// The logger package sets up and configures the application's logging
// system using zap. Logs are written to stderr so that stdout stays free
// for the MCP stdio transport.
//
// Usage:
//
//	log, err := logger.New("production", "info")
//	if err != nil {
//	    panic(err)
//	}
//	log.Info("application started")
//	log.Log(logger.Verbosity(cfg.Sandbox.Verbose), "command output", zap.String("stderr", stderr))
package logger
