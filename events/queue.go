package events

import (
	"container/list"
	"errors"
	"fmt"
	"sync"

	goevents "github.com/docker/go-events"
	"github.com/sirupsen/logrus"
)

// ErrQueueClosed is returned by Queue.Write after Close.
var ErrQueueClosed = errors.New("events: queue closed")

// Queue accepts Events off the event loop and flushes them to sink on its
// own goroutine, so a slow or blocking operator sink (webhook POST, file
// append) never stalls a connection's loop.
type Queue struct {
	sink   goevents.Sink
	events *list.List
	cond   *sync.Cond
	mu     sync.Mutex
	closed bool
}

// NewQueue returns a Queue flushing to sink.
func NewQueue(sink goevents.Sink) *Queue {
	q := &Queue{
		sink:   sink,
		events: list.New(),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

// Write enqueues event for asynchronous delivery to the sink.
func (q *Queue) Write(event Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	q.events.PushBack(event)
	q.cond.Signal()
	return nil
}

// Close stops accepting new events, flushes what remains, and closes sink.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return fmt.Errorf("events: queue already closed")
	}
	q.closed = true
	q.cond.Signal()
	q.cond.Wait()
	q.mu.Unlock()

	return q.sink.Close()
}

func (q *Queue) run() {
	for {
		event, ok := q.next()
		if !ok {
			return
		}
		if err := q.sink.Write(event); err != nil {
			logrus.Warnf("events: error writing event to sink, dropped: %v", err)
		}
	}
}

func (q *Queue) next() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.events.Len() < 1 {
		if q.closed {
			q.cond.Broadcast()
			return Event{}, false
		}
		q.cond.Wait()
	}

	front := q.events.Front()
	event := front.Value.(Event)
	q.events.Remove(front)
	return event, true
}
