// Package kv provides the durable string-keyed, string-valued store the
// alarm engine persists its records into. The engine keeps exactly two
// logical records — the alarm array and the notification array — as
// JSON-encoded values under fixed keys, so the interface is a minimal
// get/set/delete.
package kv

// Store is a process-wide durable key-value store. Implementations must
// tolerate being cleared externally: a missing key is not an error.
// Concurrent writers are resolved last-write-wins.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(key string) (string, bool, error)
	// Set writes the value for key, replacing any previous value.
	Set(key, value string) error
	// Delete removes key. Deleting a missing key is a no-op.
	Delete(key string) error
}
