// Package event carries win events from the draw path to the recorder. The
// queue decouples the two sides with separate head and tail locks so a slow
// recorder never blocks producers on lock contention, only on capacity.
package event

import (
	"errors"
	"sync"
	"sync/atomic"

	"prizedraw/internal/model"
)

var (
	// ErrQueueClosed is returned by Offer after Close.
	ErrQueueClosed = errors.New("event queue is closed")
	// ErrQueueFull is returned by TryOffer when no slot is free.
	ErrQueueFull = errors.New("event queue is full")
)

// Queue is a fixed-capacity ring buffer for win events. Producers and the
// consumer synchronize on different locks; the element count is the only
// shared state between them.
type Queue struct {
	items []*model.WinEvent
	cap   int64

	count  atomic.Int64
	closed atomic.Bool

	// tail side, producers only
	putLock sync.Mutex
	notFull *sync.Cond
	tail    int

	// head side, consumer only
	takeLock sync.Mutex
	notEmpty *sync.Cond
	head     int
}

// NewQueue creates a queue holding at most capacity events. Capacity must
// be positive.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	q := &Queue{
		items: make([]*model.WinEvent, capacity),
		cap:   int64(capacity),
	}
	q.notFull = sync.NewCond(&q.putLock)
	q.notEmpty = sync.NewCond(&q.takeLock)
	return q
}

// Offer blocks until a slot is free, then enqueues the event. Returns
// ErrQueueClosed if the queue is closed before the event is accepted.
func (q *Queue) Offer(ev *model.WinEvent) error {
	q.putLock.Lock()
	for q.count.Load() == q.cap {
		if q.closed.Load() {
			q.putLock.Unlock()
			return ErrQueueClosed
		}
		q.notFull.Wait()
	}
	if q.closed.Load() {
		q.putLock.Unlock()
		return ErrQueueClosed
	}

	q.items[q.tail] = ev
	q.tail = (q.tail + 1) % int(q.cap)
	c := q.count.Add(1)
	// Cascade the signal so a burst of waiting producers drains without
	// each one waiting on a consumer wakeup.
	if c < q.cap {
		q.notFull.Signal()
	}
	q.putLock.Unlock()

	// The queue went from empty to one element only if the previous count
	// was zero; the waiting consumer needs a wakeup.
	if c == 1 {
		q.takeLock.Lock()
		q.notEmpty.Signal()
		q.takeLock.Unlock()
	}
	return nil
}

// TryOffer enqueues without blocking. Returns ErrQueueFull when no slot is
// free and ErrQueueClosed after Close.
func (q *Queue) TryOffer(ev *model.WinEvent) error {
	q.putLock.Lock()
	if q.closed.Load() {
		q.putLock.Unlock()
		return ErrQueueClosed
	}
	if q.count.Load() == q.cap {
		q.putLock.Unlock()
		return ErrQueueFull
	}

	q.items[q.tail] = ev
	q.tail = (q.tail + 1) % int(q.cap)
	c := q.count.Add(1)
	if c < q.cap {
		q.notFull.Signal()
	}
	q.putLock.Unlock()

	if c == 1 {
		q.takeLock.Lock()
		q.notEmpty.Signal()
		q.takeLock.Unlock()
	}
	return nil
}

// Take blocks until an event is available and dequeues it. After Close it
// keeps returning buffered events until the queue is drained, then returns
// (nil, false).
func (q *Queue) Take() (*model.WinEvent, bool) {
	q.takeLock.Lock()
	for q.count.Load() == 0 {
		if q.closed.Load() {
			q.takeLock.Unlock()
			return nil, false
		}
		q.notEmpty.Wait()
	}

	ev := q.items[q.head]
	q.items[q.head] = nil
	q.head = (q.head + 1) % int(q.cap)
	c := q.count.Add(-1)
	if c > 0 {
		q.notEmpty.Signal()
	}
	q.takeLock.Unlock()

	// A full queue just gained a slot; one blocked producer may proceed.
	if c == q.cap-1 {
		q.putLock.Lock()
		q.notFull.Signal()
		q.putLock.Unlock()
	}
	return ev, true
}

// TryTake dequeues without blocking. Returns (nil, false) when the queue is
// empty. Used by the recorder's shutdown drain.
func (q *Queue) TryTake() (*model.WinEvent, bool) {
	q.takeLock.Lock()
	if q.count.Load() == 0 {
		q.takeLock.Unlock()
		return nil, false
	}

	ev := q.items[q.head]
	q.items[q.head] = nil
	q.head = (q.head + 1) % int(q.cap)
	c := q.count.Add(-1)
	if c > 0 {
		q.notEmpty.Signal()
	}
	q.takeLock.Unlock()

	if c == q.cap-1 {
		q.putLock.Lock()
		q.notFull.Signal()
		q.putLock.Unlock()
	}
	return ev, true
}

// Size returns the current element count.
func (q *Queue) Size() int {
	return int(q.count.Load())
}

// Cap returns the fixed capacity.
func (q *Queue) Cap() int {
	return int(q.cap)
}

// Close rejects further Offers and wakes every waiter. Buffered events stay
// readable through Take and TryTake.
func (q *Queue) Close() {
	if !q.closed.CompareAndSwap(false, true) {
		return
	}
	q.putLock.Lock()
	q.notFull.Broadcast()
	q.putLock.Unlock()

	q.takeLock.Lock()
	q.notEmpty.Broadcast()
	q.takeLock.Unlock()
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	return q.closed.Load()
}
