package costscope

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/costscope/costscope-go/session"
	"github.com/costscope/costscope-go/storage"
)

// mirrorUpdate pairs a snapshot with the mutation sequence number the store
// assigned under its mutex. Queue order can diverge from mutation order when
// two mutators race between unlocking and enqueueing; the seq restores it.
type mirrorUpdate struct {
	seq  uint64
	snap session.Snapshot
}

// mirrorDispatcher carries session snapshots to durable storage off the
// mutator's path. Under backpressure it keeps the newest snapshot and drops
// older ones; only the latest state matters for rehydration.
type mirrorDispatcher struct {
	store     storage.Store
	ch        chan mirrorUpdate
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once

	// written is the seq of the last update handed to the store; owned by
	// the run goroutine.
	written uint64
}

func newMirrorDispatcher(store storage.Store, buffer int) *mirrorDispatcher {
	if store == nil {
		return nil
	}
	if buffer <= 0 {
		buffer = 1
	}

	d := &mirrorDispatcher{
		store: store,
		ch:    make(chan mirrorUpdate, buffer),
		done:  make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *mirrorDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case u := <-d.ch:
			d.write(d.coalesce(u))
		case <-d.done:
			var last *mirrorUpdate
			for {
				select {
				case u := <-d.ch:
					if last == nil || u.seq > last.seq {
						v := u
						last = &v
					}
				default:
					if last != nil {
						d.write(*last)
					}
					return
				}
			}
		}
	}
}

// coalesce drains any queued updates and keeps the one with the highest
// mutation seq.
func (d *mirrorDispatcher) coalesce(u mirrorUpdate) mirrorUpdate {
	for {
		select {
		case next := <-d.ch:
			if next.seq > u.seq {
				u = next
			}
		default:
			return u
		}
	}
}

func (d *mirrorDispatcher) write(u mirrorUpdate) {
	if u.seq <= d.written {
		// A newer mutation already reached the store; writing this one
		// would resurrect state the session has since left.
		return
	}
	d.written = u.seq

	ctx := context.Background()
	rec := storage.FromSnapshot(u.snap)
	var err error
	if rec.Empty() {
		err = d.store.Clear(ctx)
	} else {
		err = d.store.Save(ctx, rec)
	}
	if err != nil {
		log.Printf("costscope: session mirror write failed: %v", err)
	}
}

// Enqueue hands a snapshot to the mirror without ever blocking the session
// mutator. When the buffer is full the oldest queued snapshot is evicted.
// seq is the store's mutation sequence number; updates arriving out of seq
// order are discarded in favor of the newest mutation.
func (d *mirrorDispatcher) Enqueue(seq uint64, snap session.Snapshot) {
	if d == nil || d.closed.Load() {
		return
	}
	u := mirrorUpdate{seq: seq, snap: snap}
	select {
	case d.ch <- u:
		return
	default:
	}

	// Full: evict one queued update, keep whichever is newer, retry once.
	select {
	case old := <-d.ch:
		if old.seq > u.seq {
			u = old
		}
	default:
	}
	select {
	case d.ch <- u:
	default:
		d.dropped.Add(1)
	}
}

// Close drains the queue and writes the final state.
func (d *mirrorDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

func (d *mirrorDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
