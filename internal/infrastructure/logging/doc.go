// Package logging provides structured logging for HomeWatt Core.
//
// It wraps log/slog with configuration-driven level, format and output
// selection, and stamps every record with service and version fields.
// Component loggers are derived via With:
//
//	log := logging.New(cfg.Logging, version)
//	engineLog := log.With("component", "engine")
package logging
