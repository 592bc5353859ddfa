// Package queue implements the in-memory task store with lease semantics.
//
// A Store maps queue names to ordered task collections. Get leases the oldest
// eligible task for the configured visibility timeout; Ack removes it while
// the lease is live. Expired leases are detected lazily by Get and Ack, and
// optionally cleared by a background sweeper.
//
// All operations run under one mutex, and every mutation is saved through a
// Persister before the lock is released.
package queue
