package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	pebblestore "github.com/teroku/taskqueue/internal/storage/pebble"
)

func openTestStore(t *testing.T, dir string) (*Store, *pebblestore.DB) {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	return NewStore(db), db
}

func putRaw(t *testing.T, db *pebblestore.DB, key, value []byte) {
	t.Helper()
	b := db.NewBatch()
	defer b.Close()
	if err := b.Set(key, value, nil); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := db.CommitBatch(context.Background(), b); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestLoadEmpty(t *testing.T) {
	s, db := openTestStore(t, t.TempDir())
	defer db.Close()
	snap, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.NextID != 0 || len(snap.Queues) != 0 {
		t.Fatalf("want empty snapshot, got %+v", snap)
	}
}

func TestSaveLoadRoundtripAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	leasedAt := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	want := Snapshot{
		NextID: 4,
		Queues: map[string][]Task{
			"a":     {{ID: 0, Length: "5", Payload: "hello"}, {ID: 2, Length: "2", Payload: "hi", Leased: true, LeasedAt: leasedAt}},
			"b/c":   {{ID: 3, Length: "x", Payload: "opaque"}},
			"empty": {},
		},
	}

	s, db := openTestStore(t, dir)
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	_ = db.Close()

	s, db = openTestStore(t, dir)
	defer db.Close()
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.NextID != want.NextID {
		t.Fatalf("next id %d want %d", got.NextID, want.NextID)
	}
	if len(got.Queues) != len(want.Queues) {
		t.Fatalf("queues %v", got.Queues)
	}
	for name, tasks := range want.Queues {
		gt, ok := got.Queues[name]
		if !ok || len(gt) != len(tasks) {
			t.Fatalf("queue %q: got %v", name, gt)
		}
		for i := range tasks {
			w, g := tasks[i], gt[i]
			if w.ID != g.ID || w.Length != g.Length || w.Payload != g.Payload || w.Leased != g.Leased || !w.LeasedAt.Equal(g.LeasedAt) {
				t.Fatalf("queue %q task %d: got %+v want %+v", name, i, g, w)
			}
		}
	}
}

func TestSaveReplacesPreviousSnapshot(t *testing.T) {
	ctx := context.Background()
	s, db := openTestStore(t, t.TempDir())
	defer db.Close()

	_ = s.Save(ctx, Snapshot{NextID: 1, Queues: map[string][]Task{"old": {{ID: 0, Length: "1", Payload: "a"}}}})
	if err := s.Save(ctx, Snapshot{NextID: 2, Queues: map[string][]Task{"new": {{ID: 1, Length: "1", Payload: "b"}}}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := got.Queues["old"]; ok {
		t.Fatalf("stale queue survived: %v", got.Queues)
	}
	if len(got.Queues["new"]) != 1 || got.NextID != 2 {
		t.Fatalf("unexpected snapshot %+v", got)
	}
}

func TestLoadDerivesNextIDWhenMetaMissing(t *testing.T) {
	ctx := context.Background()
	s, db := openTestStore(t, t.TempDir())
	defer db.Close()
	body := []byte(`[{"id":7,"length":"1","payload":"a","leased":false}]`)
	putRaw(t, db, queueKey("q"), encodeRecord(body))
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.NextID != 8 {
		t.Fatalf("next id %d want 8", got.NextID)
	}
}

func TestEmptyQueueNameSurvivesReload(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s, db := openTestStore(t, dir)
	want := Snapshot{NextID: 1, Queues: map[string][]Task{"": {{ID: 0, Length: "1", Payload: "x"}}}}
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	_ = db.Close()

	s, db = openTestStore(t, dir)
	defer db.Close()
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tasks := got.Queues[""]; len(tasks) != 1 || tasks[0].Payload != "x" {
		t.Fatalf("unexpected queues %+v", got.Queues)
	}
}

func TestLoadCorruptRecord(t *testing.T) {
	s, db := openTestStore(t, t.TempDir())
	defer db.Close()
	putRaw(t, db, queueKey("q"), []byte("garbage"))
	if _, err := s.Load(context.Background()); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("want ErrCorrupt, got %v", err)
	}
}

func TestSaveFailsOnClosedContext(t *testing.T) {
	s, db := openTestStore(t, t.TempDir())
	defer db.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Save(ctx, Empty()); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestManySavesTriggerCompaction(t *testing.T) {
	ctx := context.Background()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	defer db.Close()
	s := NewStore(db)
	for i := 0; i < CompactEvery+1; i++ {
		snap := Snapshot{NextID: uint64(i + 1), Queues: map[string][]Task{"q": {{ID: uint64(i), Length: "1", Payload: "x"}}}}
		if err := s.Save(ctx, snap); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.NextID != CompactEvery+1 || got.Queues["q"][0].ID != CompactEvery {
		t.Fatalf("unexpected snapshot after compaction: %+v", got)
	}
}
