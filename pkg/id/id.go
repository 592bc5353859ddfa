package id

import (
	"encoding/binary"
	"errors"
	"math"
	"strconv"
	"sync"
)

// ID is a task identifier. It is rendered on the wire as unsigned decimal.
type ID uint64

// String returns the canonical decimal form.
func (i ID) String() string { return strconv.FormatUint(uint64(i), 10) }

// Bytes returns the 8-byte big-endian form, which sorts like the number.
func (i ID) Bytes() []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(i))
	return b[:]
}

// Parse accepts only the canonical decimal form produced by String, so "07"
// and "+7" do not alias task 7.
func Parse(s string) (ID, bool) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || strconv.FormatUint(n, 10) != s {
		return 0, false
	}
	return ID(n), true
}

// ErrExhausted is returned once every 64-bit value has been handed out.
var ErrExhausted = errors.New("id: counter exhausted")

// Counter hands out strictly increasing IDs starting at zero. Values are
// never reused, including across restarts when the caller persists Peek()
// and feeds it back through Restore.
type Counter struct {
	mu        sync.Mutex
	next      uint64
	exhausted bool
}

// NewCounter creates a Counter whose first ID is start.
func NewCounter(start uint64) *Counter { return &Counter{next: start} }

// Next returns a new ID.
func (c *Counter) Next() (ID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.exhausted {
		return 0, ErrExhausted
	}
	v := c.next
	if v == math.MaxUint64 {
		c.exhausted = true
	} else {
		c.next++
	}
	return ID(v), nil
}

// Peek returns the value the next call to Next would produce.
func (c *Counter) Peek() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next
}

// Restore moves the counter forward to at least next. It never moves it back.
func (c *Counter) Restore(next uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if next > c.next {
		c.next = next
	}
}
