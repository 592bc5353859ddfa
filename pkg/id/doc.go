// Package id provides the numeric task identifier and its allocator.
//
// # Format
//
// IDs are unsigned 64-bit integers. Clients see them as decimal text; on
// disk they are 8 bytes big-endian so that byte-wise order matches numeric
// order.
//
// # Monotonicity
//
// Counter hands out strictly increasing values per process. Callers that
// persist state store Peek() alongside their data and Restore it at start-up,
// which keeps IDs unique across restarts.
//
// Usage
//
//	c := id.NewCounter(0)
//	taskID, _ := c.Next()
//	s := taskID.String() // "0"
//	back, ok := id.Parse(s)
package id
