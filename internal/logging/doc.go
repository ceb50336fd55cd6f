// Package logging provides implementations of sqlexplorer.Logger: a console
// logger for the CLI, a slog adapter for the HTTP server and a null logger
// for library defaults.
package logging
