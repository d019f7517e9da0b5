// Package logging provides slog construction helpers and the attribute
// conventions shared by the daemon and CLI.
package logging
