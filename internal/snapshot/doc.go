// Package snapshot persists the queue store as a single durable snapshot.
//
// Each queue lives under its own key (queue/{name}) holding the queue's
// ordered task collection; the id counter lives under meta/next_id. Values are
// JSON bodies wrapped in a versioned, CRC32C-checked frame.
//
// Save rewrites the whole keyspace in one Pebble batch: a range delete of the
// old queue keys followed by the new ones. A reader therefore sees either the
// previous snapshot or the new one, never a mix.
package snapshot
