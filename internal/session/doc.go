// Package session persists the linkage between an uploaded dataset file, the
// eval created for it, the run in flight, and the selected testing criteria.
//
// A session is created when a run starts and archived when the next run
// starts, giving the cross-request identifiers an explicit lifecycle instead
// of loose keyed storage.
package session
