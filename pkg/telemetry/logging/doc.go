// Package logging configures the process-wide structured logger.
//
// Components derive their own loggers with
// slog.Default().With("component", ...) or receive one through their
// Config; this package only builds the root logger from the telemetry
// configuration and installs it as the slog default.
package logging
