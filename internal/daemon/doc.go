// Package daemon coordinates the long-running evalboard process.
//
// It wires configuration, the session store, the dataset converter, the
// evaluation service client, and the run watcher into a single lifecycle with
// flock-based locking to prevent multiple instances, and exposes the HTTP API
// the dashboard and CLI talk to.
package daemon
