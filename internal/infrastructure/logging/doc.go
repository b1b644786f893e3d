// Package logging provides structured logging for the dashboard core.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the application.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("bridge connected", "client_id", id)
//	logger.Error("registry call failed", "error", err)
//
// Never log registry tokens or broker passwords.
package logging
