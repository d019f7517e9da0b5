// Package api defines the transport-friendly payload types shared by the
// daemon's HTTP surface and the CLI.
package api
