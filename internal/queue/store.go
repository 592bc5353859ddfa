package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/teroku/taskqueue/internal/snapshot"
	"github.com/teroku/taskqueue/pkg/id"
	"github.com/teroku/taskqueue/pkg/log"
)

var (
	// ErrQueueNotFound is returned by Ack and In for a queue that was never
	// created by Add.
	ErrQueueNotFound = errors.New("queue: not found")
	// ErrPersist wraps any failure to write the snapshot after a mutation.
	ErrPersist = errors.New("queue: persist failed")
)

// DefaultLease is the visibility timeout used when Options.Lease is zero.
const DefaultLease = 5 * time.Minute

// Persister durably stores a full snapshot of the store.
type Persister interface {
	Save(ctx context.Context, snap snapshot.Snapshot) error
}

// Options configures a Store.
type Options struct {
	Lease     time.Duration
	Clock     clock.Clock
	Persister Persister
	Logger    log.Logger
}

// Task is a unit of work held by a queue.
type Task struct {
	ID       id.ID
	Length   string
	Payload  string
	Leased   bool
	LeasedAt time.Time
}

type queue struct {
	tasks []*Task
	byID  map[id.ID]*Task
}

func newQueue() *queue { return &queue{byID: make(map[id.ID]*Task)} }

func (q *queue) remove(tid id.ID) int {
	for i, t := range q.tasks {
		if t.ID == tid {
			q.tasks = append(q.tasks[:i], q.tasks[i+1:]...)
			delete(q.byID, tid)
			return i
		}
	}
	return -1
}

func (q *queue) insertAt(i int, t *Task) {
	q.tasks = append(q.tasks, nil)
	copy(q.tasks[i+1:], q.tasks[i:])
	q.tasks[i] = t
	q.byID[t.ID] = t
}

// Store holds every queue behind a single mutex. Each mutation is written
// through to the Persister before the lock is released, and rolled back in
// memory if that write fails.
type Store struct {
	mu      sync.Mutex
	queues  map[string]*queue
	counter *id.Counter
	lease   time.Duration
	clock   clock.Clock
	persist Persister
	logger  log.Logger

	sweepStop chan struct{}
	sweepDone chan struct{}
}

// New creates an empty Store.
func New(opts Options) *Store {
	if opts.Lease <= 0 {
		opts.Lease = DefaultLease
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = log.NewLogger(log.WithOutput(log.NullOutput{}))
	}
	return &Store{
		queues:  make(map[string]*queue),
		counter: id.NewCounter(0),
		lease:   opts.Lease,
		clock:   opts.Clock,
		persist: opts.Persister,
		logger:  opts.Logger.WithComponent("queue"),
	}
}

// Restore replaces the in-memory queues with snap and moves the id counter
// forward to snap.NextID. It is meant to be called once at startup, before the
// store serves requests.
func (s *Store) Restore(snap snapshot.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues = make(map[string]*queue, len(snap.Queues))
	for name, tasks := range snap.Queues {
		q := newQueue()
		for _, st := range tasks {
			t := &Task{ID: id.ID(st.ID), Length: st.Length, Payload: st.Payload, Leased: st.Leased}
			if st.Leased {
				t.LeasedAt = st.LeasedAt
			}
			q.tasks = append(q.tasks, t)
			q.byID[t.ID] = t
		}
		s.queues[name] = q
	}
	s.counter.Restore(snap.NextID)
	s.logger.Info("store restored", log.Int("queues", len(s.queues)), log.Uint64("next_id", snap.NextID))
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() snapshot.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Lease returns the visibility timeout.
func (s *Store) Lease() time.Duration { return s.lease }

func (s *Store) snapshotLocked() snapshot.Snapshot {
	snap := snapshot.Snapshot{NextID: s.counter.Peek(), Queues: make(map[string][]snapshot.Task, len(s.queues))}
	for name, q := range s.queues {
		tasks := make([]snapshot.Task, 0, len(q.tasks))
		for _, t := range q.tasks {
			st := snapshot.Task{ID: uint64(t.ID), Length: t.Length, Payload: t.Payload, Leased: t.Leased}
			if t.Leased {
				st.LeasedAt = t.LeasedAt
			}
			tasks = append(tasks, st)
		}
		snap.Queues[name] = tasks
	}
	return snap
}

// saveLocked writes the current state; on failure undo is applied so memory
// matches what is durable.
func (s *Store) saveLocked(ctx context.Context, undo func()) error {
	if s.persist == nil {
		return nil
	}
	if err := s.persist.Save(ctx, s.snapshotLocked()); err != nil {
		undo()
		s.logger.Error("snapshot save failed", log.Err(err))
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

func (s *Store) expired(t *Task, now time.Time) bool {
	return t.Leased && now.Sub(t.LeasedAt) > s.lease
}

// Add appends a new unleased task to queue, creating the queue if needed, and
// returns its id.
func (s *Store) Add(ctx context.Context, name, length, payload string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tid, err := s.counter.Next()
	if err != nil {
		return "", err
	}
	q, existed := s.queues[name]
	if !existed {
		q = newQueue()
		s.queues[name] = q
	}
	t := &Task{ID: tid, Length: length, Payload: payload}
	q.tasks = append(q.tasks, t)
	q.byID[tid] = t

	err = s.saveLocked(ctx, func() {
		q.remove(tid)
		if !existed {
			delete(s.queues, name)
		}
	})
	if err != nil {
		return "", err
	}
	s.logger.Debug("task added", log.Str("queue", name), log.Str("id", tid.String()))
	return tid.String(), nil
}

// Get leases the oldest eligible task of queue. A task is eligible when it is
// not leased or its lease has expired. ok is false when the queue is unknown
// or nothing is eligible.
func (s *Store) Get(ctx context.Context, name string) (Task, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, exists := s.queues[name]
	if !exists {
		return Task{}, false, nil
	}
	now := s.clock.Now()
	for _, t := range q.tasks {
		if t.Leased && !s.expired(t, now) {
			continue
		}
		prev := *t
		t.Leased = true
		t.LeasedAt = now
		if err := s.saveLocked(ctx, func() { *t = prev }); err != nil {
			return Task{}, false, err
		}
		s.logger.Debug("task leased", log.Str("queue", name), log.Str("id", t.ID.String()), log.Bool("redelivery", prev.Leased))
		return *t, true, nil
	}
	return Task{}, false, nil
}

// Ack removes a task whose lease is still live. It returns false when the id
// is absent, was never leased, or its lease expired; an expired lease is
// cleared so the task can be delivered again.
func (s *Store) Ack(ctx context.Context, name, rawID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, exists := s.queues[name]
	if !exists {
		return false, fmt.Errorf("ack %q: %w", name, ErrQueueNotFound)
	}
	tid, ok := id.Parse(rawID)
	if !ok {
		return false, nil
	}
	t, ok := q.byID[tid]
	if !ok || !t.Leased {
		return false, nil
	}
	if s.expired(t, s.clock.Now()) {
		prev := *t
		t.Leased = false
		t.LeasedAt = time.Time{}
		if err := s.saveLocked(ctx, func() { *t = prev }); err != nil {
			return false, err
		}
		s.logger.Debug("ack after lease expiry", log.Str("queue", name), log.Str("id", rawID))
		return false, nil
	}
	pos := q.remove(tid)
	if err := s.saveLocked(ctx, func() { q.insertAt(pos, t) }); err != nil {
		return false, err
	}
	s.logger.Debug("task acked", log.Str("queue", name), log.Str("id", rawID))
	return true, nil
}

// In reports whether id is present in queue, leased or not.
func (s *Store) In(_ context.Context, name, rawID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, exists := s.queues[name]
	if !exists {
		return false, fmt.Errorf("in %q: %w", name, ErrQueueNotFound)
	}
	tid, ok := id.Parse(rawID)
	if !ok {
		return false, nil
	}
	_, ok = q.byID[tid]
	return ok, nil
}

// ReclaimExpired clears every expired lease and returns how many were
// cleared. The state is persisted only when something changed.
func (s *Store) ReclaimExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	var cleared []*Task
	var prev []Task
	for _, q := range s.queues {
		for _, t := range q.tasks {
			if s.expired(t, now) {
				prev = append(prev, *t)
				cleared = append(cleared, t)
				t.Leased = false
				t.LeasedAt = time.Time{}
			}
		}
	}
	if len(cleared) == 0 {
		return 0, nil
	}
	err := s.saveLocked(ctx, func() {
		for i, t := range cleared {
			*t = prev[i]
		}
	})
	if err != nil {
		return 0, err
	}
	return len(cleared), nil
}
