package realtime

import "sync"

// eventQueue is an unbounded FIFO between the socket's read loop and
// one subscriber's dispatch goroutine. The read loop never blocks on a
// push, so a slow callback stalls only its own subscription; receipt
// order is preserved per subscriber.
type eventQueue struct {
	mu     sync.Mutex
	items  []ChangeEvent
	notify chan struct{}
	closed bool
}

func newEventQueue() *eventQueue {
	return &eventQueue{notify: make(chan struct{}, 1)}
}

func (q *eventQueue) push(ev ChangeEvent) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, ev)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// pop blocks until an event is available or the queue is closed and
// drained.
func (q *eventQueue) pop() (ChangeEvent, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			ev := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return ev, true
		}
		if q.closed {
			q.mu.Unlock()
			return ChangeEvent{}, false
		}
		q.mu.Unlock()
		<-q.notify
	}
}

func (q *eventQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}
