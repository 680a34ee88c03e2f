// README: Bounded event queue that fans committed order changes out to sinks.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"fooddash/internal/metrics"
	"fooddash/internal/modules/order"
)

var (
	ErrQueueFull   = errors.New("notification queue full")
	ErrQueueClosed = errors.New("notification queue closed")
)

const deliverTimeout = 5 * time.Second

// Queue implements order.Publisher. Enqueue never blocks; events are
// delivered by worker goroutines. With a single worker, events reach each
// sink in the order they were enqueued.
type Queue struct {
	events  chan Event
	sinks   []Sink
	workers int
	log     logrus.FieldLogger

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

var _ order.Publisher = (*Queue)(nil)

func NewQueue(size, workers int, log logrus.FieldLogger, sinks ...Sink) *Queue {
	if size < 1 {
		size = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &Queue{
		events:  make(chan Event, size),
		sinks:   sinks,
		workers: workers,
		log:     log.WithField("component", "notify.queue"),
	}
}

// Start launches the workers. It is safe to call more than once.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
}

func (q *Queue) Enqueue(ev Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.events <- ev:
		return nil
	default:
		metrics.NotifierEvents.WithLabelValues("queue", ev.Kind, "dropped").Inc()
		return ErrQueueFull
	}
}

func (q *Queue) PublishTracking(ctx context.Context, info order.TrackingInfo) error {
	return q.Enqueue(NewTrackingEvent(ctx, info))
}

func (q *Queue) PublishStatus(ctx context.Context, ev order.StatusEvent) error {
	return q.Enqueue(NewStatusEvent(ctx, ev))
}

// Shutdown stops accepting events and waits for the workers to drain what
// is queued, or for ctx to expire.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.events)
	started := q.started
	q.mu.Unlock()

	if !started {
		return nil
	}
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		q.log.WithField("pending", len(q.events)).Warn("notification queue shutdown timed out")
		return ctx.Err()
	}
}

func (q *Queue) work() {
	defer q.wg.Done()
	for ev := range q.events {
		q.dispatch(ev)
	}
}

func (q *Queue) dispatch(ev Event) {
	for _, s := range q.sinks {
		if sel, ok := s.(selective); ok && !sel.Wants(ev) {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
		err := s.Deliver(ctx, ev)
		cancel()

		result := "ok"
		if err != nil {
			result = "error"
			q.log.WithError(err).WithFields(logrus.Fields{
				"sink":       s.Name(),
				"event":      ev.Name,
				"order_id":   ev.OrderID,
				"request_id": ev.RequestID,
			}).Warn("event delivery failed")
		}
		metrics.NotifierEvents.WithLabelValues(s.Name(), ev.Kind, result).Inc()
	}
}
