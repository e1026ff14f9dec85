package engine

import (
	"context"
	"errors"
	"sync"
)

// OpKind names a remote mutation.
type OpKind string

const (
	OpDelete         OpKind = "delete"
	OpUpdate         OpKind = "update"
	OpCreate         OpKind = "create"
	OpReplaceRules   OpKind = "replace-rules"
	OpBuild          OpKind = "build"
	OpCreateSnapshot OpKind = "snapshot-create"
	OpDeleteSnapshot OpKind = "snapshot-delete"
)

var (
	errQueueFull   = errors.New("work queue full")
	errQueueClosed = errors.New("work queue closed")
)

// workItem is one remote mutation waiting to be applied.
type workItem struct {
	Kind     OpKind
	Target   string
	RemoteID string
	Digest   string

	// Apply performs the mutation and returns the remote id it touched,
	// when the service reports one.
	Apply func(ctx context.Context) (string, error)
}

// workQueue is a bounded FIFO of remote mutations drained by a single
// worker.
//
// Capacity is fixed at construction; the orchestrator sizes it to the group
// it is applying, so an overflow means a planning bug rather than load.
type workQueue struct {
	mu       sync.Mutex
	items    []workItem
	capacity int
	closed   bool
}

func newWorkQueue(capacity int) *workQueue {
	return &workQueue{
		items:    make([]workItem, 0, capacity),
		capacity: capacity,
	}
}

// Enqueue adds an item to the back of the queue.
func (q *workQueue) Enqueue(item workItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return errQueueClosed
	}
	if len(q.items) >= q.capacity {
		return errQueueFull
	}
	q.items = append(q.items, item)
	return nil
}

// TryDequeue removes and returns the front item without blocking.
func (q *workQueue) TryDequeue() (workItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return workItem{}, false
	}

	item := q.items[0]
	// Release the closure for GC.
	q.items[0] = workItem{}
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return item, true
}

// Len returns the current queue length.
func (q *workQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close rejects further enqueues. Items already queued can still be
// drained.
func (q *workQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

// Drain applies queued items one at a time, in order, until the queue is
// empty, fn fails, or ctx is done. It returns the number of items for which
// fn succeeded. Items left behind by a failure stay queued.
func (q *workQueue) Drain(ctx context.Context, fn func(context.Context, workItem) error) (int, error) {
	done := 0
	for {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		item, ok := q.TryDequeue()
		if !ok {
			return done, nil
		}
		if err := fn(ctx, item); err != nil {
			return done, err
		}
		done++
	}
}
