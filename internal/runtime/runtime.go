package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andres-erbsen/clock"
	cfgpkg "github.com/teroku/taskqueue/internal/config"
	"github.com/teroku/taskqueue/internal/protocol"
	"github.com/teroku/taskqueue/internal/queue"
	"github.com/teroku/taskqueue/internal/snapshot"
	pebblestore "github.com/teroku/taskqueue/internal/storage/pebble"
	"github.com/teroku/taskqueue/pkg/log"
)

// SlowCommit is the batch commit latency above which a warning is logged.
const SlowCommit = 250 * time.Millisecond

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	// Clock defaults to the wall clock.
	Clock  clock.Clock
	Logger log.Logger
}

// Runtime wires storage, the snapshot store and the queue store for a
// single-node instance.
type Runtime struct {
	db     *pebblestore.DB
	snaps  *snapshot.Store
	store  *queue.Store
	config cfgpkg.Config
	logger log.Logger
}

// Open opens storage, loads the last snapshot and builds the queue store.
func Open(opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewLogger(log.WithOutput(log.NullOutput{}))
	}
	logger = logger.WithComponent("runtime")

	fsync, err := opts.Config.FsyncMode()
	if err != nil {
		return nil, err
	}
	dir := opts.Config.ResolvedDataDir()
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir:       dir,
		Fsync:         fsync,
		FsyncInterval: opts.Config.FsyncInterval(),
		Metrics:       commitLogger{logger: logger},
	})
	if err != nil {
		return nil, fmt.Errorf("open storage at %s: %w", dir, err)
	}

	snaps := snapshot.NewStore(db)
	snap, err := snaps.Load(context.Background())
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	store := queue.New(queue.Options{
		Lease:     opts.Config.LeaseTimeout(),
		Clock:     opts.Clock,
		Persister: snaps,
		Logger:    opts.Logger,
	})
	store.Restore(snap)

	logger.Info("runtime opened",
		log.Str("data_dir", dir),
		log.Str("fsync", fsync.String()),
		log.Dur("lease", store.Lease()),
		log.Int("queues", len(snap.Queues)),
	)
	return &Runtime{db: db, snaps: snaps, store: store, config: opts.Config, logger: logger}, nil
}

// Close stops the sweeper and closes storage.
func (r *Runtime) Close() error {
	if r.store != nil {
		r.store.StopSweeper()
	}
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// CheckHealth reports whether storage is usable.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.db == nil {
		return errors.New("db not open")
	}
	return r.db.Check()
}

// Store returns the queue store.
func (r *Runtime) Store() *queue.Store { return r.store }

// Dispatcher returns a command dispatcher bound to the queue store.
func (r *Runtime) Dispatcher() *protocol.Dispatcher {
	return protocol.NewDispatcher(protocol.QueueStore{Store: r.store})
}

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// commitLogger reports slow snapshot commits.
type commitLogger struct {
	logger log.Logger
}

func (commitLogger) ObserveRead(time.Duration, int) {}

func (c commitLogger) ObserveBatchCommit(d time.Duration, numOps int, bytes int) {
	if d < SlowCommit {
		return
	}
	c.logger.Warn("slow snapshot commit", log.Dur("took", d), log.Int("ops", numOps), log.Int("bytes", bytes))
}
