package cartsync

import (
	"context"
	"sync"
)

// queue hands out one writer slot per cart key. Waiters are admitted in arrival order
// (blocked channel senders are queued FIFO) and may give up when their context ends.
type queue struct {
	mu    sync.Mutex
	lanes map[string]*lane
}

type lane struct {
	slot chan struct{}
	refs int
}

func newQueue() *queue {
	return &queue{lanes: make(map[string]*lane)}
}

func (q *queue) acquire(ctx context.Context, key string) (release func(), err error) {
	q.mu.Lock()
	l, ok := q.lanes[key]
	if !ok {
		l = &lane{slot: make(chan struct{}, 1)}
		q.lanes[key] = l
	}
	l.refs++
	q.mu.Unlock()

	select {
	case l.slot <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-l.slot
				q.leave(key, l)
			})
		}, nil
	case <-ctx.Done():
		q.leave(key, l)
		return nil, ctx.Err()
	}
}

func (q *queue) leave(key string, l *lane) {
	q.mu.Lock()
	defer q.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(q.lanes, key)
	}
}

func (q *queue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lanes)
}
