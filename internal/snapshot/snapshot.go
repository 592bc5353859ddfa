package snapshot

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	pebblestore "github.com/teroku/taskqueue/internal/storage/pebble"
	"github.com/teroku/taskqueue/pkg/id"
)

// ErrCorrupt is returned by Load when a stored record fails validation.
var ErrCorrupt = errors.New("snapshot: corrupt record")

// Task is the persisted form of a task. LeasedAt is zero unless Leased.
type Task struct {
	ID       uint64    `json:"id"`
	Length   string    `json:"length"`
	Payload  string    `json:"payload"`
	Leased   bool      `json:"leased"`
	LeasedAt time.Time `json:"leasedAt"`
}

// Snapshot is the complete durable state: every queue in insertion order plus
// the id counter.
type Snapshot struct {
	NextID uint64
	Queues map[string][]Task
}

// Empty returns a snapshot with no queues.
func Empty() Snapshot { return Snapshot{Queues: map[string][]Task{}} }

// CompactEvery is how many saves pass between compactions of the queue
// keyspace. Each save leaves a range tombstone behind.
const CompactEvery = 4096

// Store persists snapshots into a Pebble database. Save is not safe for
// concurrent use; the queue store serializes calls under its lock.
type Store struct {
	db    *pebblestore.DB
	saves uint64
}

// NewStore returns a Store backed by db.
func NewStore(db *pebblestore.DB) *Store { return &Store{db: db} }

// Save replaces the stored snapshot with snap in a single atomic batch.
func (s *Store) Save(ctx context.Context, snap Snapshot) error {
	b := s.db.NewBatch()
	defer b.Close()

	prefix := queuePrefix()
	if err := b.DeleteRange(prefix, pebblestore.PrefixEnd(prefix), nil); err != nil {
		return fmt.Errorf("clear queues: %w", err)
	}
	for name, tasks := range snap.Queues {
		if tasks == nil {
			tasks = []Task{}
		}
		body, err := json.Marshal(tasks)
		if err != nil {
			return fmt.Errorf("marshal queue %q: %w", name, err)
		}
		if err := b.Set(queueKey(name), encodeRecord(body), nil); err != nil {
			return fmt.Errorf("write queue %q: %w", name, err)
		}
	}
	if err := b.Set([]byte(keyNextID), encodeRecord(id.ID(snap.NextID).Bytes()), nil); err != nil {
		return fmt.Errorf("write next id: %w", err)
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	s.saves++
	if s.saves%CompactEvery == 0 {
		// best effort; the snapshot is already durable
		_ = s.db.CompactRange(prefix, pebblestore.PrefixEnd(prefix))
	}
	return nil
}

// Load reads the stored snapshot. A database that was never saved to yields
// an empty snapshot.
func (s *Store) Load(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	snap := Empty()
	var maxID uint64
	seen := false
	err := s.db.ScanPrefix(queuePrefix(), func(key, value []byte) error {
		name, ok := queueNameFromKey(key)
		if !ok {
			return fmt.Errorf("%w: bad key %q", ErrCorrupt, key)
		}
		body, ok := decodeRecord(value)
		if !ok {
			return fmt.Errorf("%w: queue %q", ErrCorrupt, name)
		}
		var tasks []Task
		if err := json.Unmarshal(body, &tasks); err != nil {
			return fmt.Errorf("%w: queue %q: %v", ErrCorrupt, name, err)
		}
		for i := range tasks {
			if !tasks[i].Leased {
				tasks[i].LeasedAt = time.Time{}
			}
			if !seen || tasks[i].ID > maxID {
				maxID, seen = tasks[i].ID, true
			}
		}
		snap.Queues[name] = tasks
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}

	raw, err := s.db.Get([]byte(keyNextID))
	switch {
	case errors.Is(err, pebble.ErrNotFound):
		if seen {
			snap.NextID = maxID + 1
		}
	case err != nil:
		return Snapshot{}, fmt.Errorf("read next id: %w", err)
	default:
		body, ok := decodeRecord(raw)
		if !ok || len(body) != 8 {
			return Snapshot{}, fmt.Errorf("%w: next id", ErrCorrupt)
		}
		snap.NextID = binary.BigEndian.Uint64(body)
	}
	return snap, nil
}
