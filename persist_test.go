package costscope

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/costscope/costscope-go/session"
	"github.com/costscope/costscope-go/storage"
)

// memStore is an in-memory storage.Store that records write order.
type memStore struct {
	mu     sync.Mutex
	rec    *storage.Record
	saves  int
	clears int
	delay  time.Duration
}

func (s *memStore) Load(context.Context) (*storage.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return nil, storage.ErrNotFound
	}
	return s.rec, nil
}

func (s *memStore) Save(_ context.Context, rec *storage.Record) error {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = rec
	s.saves++
	return nil
}

func (s *memStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = nil
	s.clears++
	return nil
}

func (s *memStore) state() (*storage.Record, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec, s.saves, s.clears
}

func authedSnapshot(access string) session.Snapshot {
	return session.Snapshot{
		AccessCredential:  access,
		RefreshCredential: "r",
		Authenticated:     true,
	}
}

func TestMirrorWritesNewestState(t *testing.T) {
	store := &memStore{}
	d := newMirrorDispatcher(store, 4)

	d.Enqueue(1, authedSnapshot("a1"))
	d.Enqueue(2, authedSnapshot("a2"))
	d.Close()

	rec, _, _ := store.state()
	if rec == nil || rec.AccessCredential != "a2" {
		t.Fatalf("record = %+v", rec)
	}
}

func TestMirrorEmptySnapshotClears(t *testing.T) {
	store := &memStore{}
	d := newMirrorDispatcher(store, 4)

	d.Enqueue(1, authedSnapshot("a1"))
	d.Enqueue(2, session.Snapshot{})
	d.Close()

	rec, _, clears := store.state()
	if rec != nil || clears == 0 {
		t.Fatalf("record = %+v clears = %d", rec, clears)
	}
}

func TestMirrorEnqueueNeverBlocks(t *testing.T) {
	store := &memStore{delay: 20 * time.Millisecond}
	d := newMirrorDispatcher(store, 1)
	defer d.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			d.Enqueue(uint64(i+1), authedSnapshot("a"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked the mutator")
	}
}

func TestMirrorCoalescesUnderBackpressure(t *testing.T) {
	store := &memStore{delay: 5 * time.Millisecond}
	d := newMirrorDispatcher(store, 2)

	for i := 0; i < 50; i++ {
		d.Enqueue(uint64(i+1), authedSnapshot("a-final"))
	}
	d.Close()

	rec, saves, _ := store.state()
	if rec == nil || rec.AccessCredential != "a-final" {
		t.Fatalf("record = %+v", rec)
	}
	if saves >= 50 {
		t.Fatalf("saves = %d, expected coalescing", saves)
	}
}

func TestMirrorCloseIsIdempotent(t *testing.T) {
	d := newMirrorDispatcher(&memStore{}, 2)
	d.Close()
	d.Close()

	// Post-close enqueues are dropped silently.
	d.Enqueue(3, authedSnapshot("late"))
}

func TestNilMirrorIsSafe(t *testing.T) {
	var d *mirrorDispatcher
	d.Enqueue(1, authedSnapshot("a"))
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil mirror reported drops")
	}
}

func TestMirrorWriteErrorIsNonFatal(t *testing.T) {
	d := newMirrorDispatcher(failingStore{}, 2)
	d.Enqueue(1, authedSnapshot("a"))
	d.Close()
}

// A mutation's snapshot can reach the queue after a later mutation's when
// two mutators race between releasing the store mutex and enqueueing. The
// seq assigned under the mutex must win over queue order: a logout followed
// by a late-arriving renewal snapshot stays logged out durably.
func TestMirrorDiscardsStaleSnapshotAfterLogout(t *testing.T) {
	store := &memStore{}
	d := newMirrorDispatcher(store, 4)

	d.Enqueue(1, authedSnapshot("login-access"))
	// Logout (seq 3) reaches the queue before the renewal snapshot (seq 2).
	d.Enqueue(3, session.Snapshot{})
	d.Enqueue(2, authedSnapshot("renewed-access"))
	d.Close()

	rec, _, clears := store.state()
	if rec != nil {
		t.Fatalf("durable record = %+v, want cleared", rec)
	}
	if clears == 0 {
		t.Fatal("logout never reached the store")
	}
}

func TestMirrorEvictionKeepsNewestUpdate(t *testing.T) {
	store := &memStore{delay: 20 * time.Millisecond}
	d := newMirrorDispatcher(store, 1)

	// Fill the worker and the one-slot buffer, then offer a stale update:
	// the queued newer seq must survive the eviction pass.
	d.Enqueue(1, authedSnapshot("a1"))
	d.Enqueue(5, authedSnapshot("a5"))
	d.Enqueue(2, authedSnapshot("a2"))
	d.Close()

	rec, _, _ := store.state()
	if rec == nil || rec.AccessCredential != "a5" {
		t.Fatalf("record = %+v, want the newest mutation persisted", rec)
	}
}

type failingStore struct{}

func (failingStore) Load(context.Context) (*storage.Record, error) {
	return nil, storage.ErrNotFound
}
func (failingStore) Save(context.Context, *storage.Record) error {
	return errors.New("disk full")
}
func (failingStore) Clear(context.Context) error {
	return errors.New("disk full")
}
