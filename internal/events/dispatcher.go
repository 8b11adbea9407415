package events

import (
	"context"
	"log"
	"sync"
	"time"

	"sparks-quiz-service/internal/domain"
)

// Publisher delivers one completion event to a downstream consumer.
type Publisher interface {
	PublishSessionCompleted(ctx context.Context, event domain.SessionCompleted) error
}

// Fanout delivers to every publisher; a failure in one does not stop the rest.
// The first error is returned so the dispatcher can schedule a retry.
type Fanout []Publisher

func (f Fanout) PublishSessionCompleted(ctx context.Context, event domain.SessionCompleted) error {
	var firstErr error
	for _, p := range f {
		if err := p.PublishSessionCompleted(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type pending struct {
	event   domain.SessionCompleted
	attempt int
}

// Dispatcher wraps a publisher with an asynchronous retry queue. A failed
// delivery is retried with exponential backoff; completing the quiz is never
// failed by a downstream outage.
type Dispatcher struct {
	publisher   Publisher
	baseDelay   time.Duration
	maxAttempts int

	queue chan pending
	done  chan struct{}
	wg    sync.WaitGroup
}

func NewDispatcher(publisher Publisher) *Dispatcher {
	d := &Dispatcher{
		publisher:   publisher,
		baseDelay:   time.Second,
		maxAttempts: 5,
		queue:       make(chan pending, 64),
		done:        make(chan struct{}),
	}
	d.wg.Add(1)
	go d.retryLoop()
	return d
}

// NewDispatcherWithBackoff is test-only for short retry delays.
func NewDispatcherWithBackoff(publisher Publisher, baseDelay time.Duration, maxAttempts int) *Dispatcher {
	d := &Dispatcher{
		publisher:   publisher,
		baseDelay:   baseDelay,
		maxAttempts: maxAttempts,
		queue:       make(chan pending, 64),
		done:        make(chan struct{}),
	}
	d.wg.Add(1)
	go d.retryLoop()
	return d
}

// PublishSessionCompleted attempts immediate delivery and queues a retry on
// failure. The returned error is always nil once the event is queued, so
// callers observe completion as successful.
func (d *Dispatcher) PublishSessionCompleted(ctx context.Context, event domain.SessionCompleted) error {
	if err := d.publisher.PublishSessionCompleted(ctx, event); err != nil {
		log.Printf("completion event for session %s queued for retry: %v", event.SessionID, err)
		d.enqueue(pending{event: event, attempt: 1})
	}
	return nil
}

func (d *Dispatcher) enqueue(p pending) {
	select {
	case d.queue <- p:
	default:
		log.Printf("retry queue full, dropping completion event for session %s", p.event.SessionID)
	}
}

func (d *Dispatcher) retryLoop() {
	defer d.wg.Done()
	for {
		select {
		case <-d.done:
			return
		case p := <-d.queue:
			delay := d.baseDelay << (p.attempt - 1)
			select {
			case <-d.done:
				return
			case <-time.After(delay):
			}
			if err := d.publisher.PublishSessionCompleted(context.Background(), p.event); err != nil {
				if p.attempt >= d.maxAttempts {
					log.Printf("giving up on completion event for session %s after %d attempts: %v", p.event.SessionID, p.attempt, err)
					continue
				}
				d.enqueue(pending{event: p.event, attempt: p.attempt + 1})
			}
		}
	}
}

// Close stops the retry loop. Queued events are abandoned.
func (d *Dispatcher) Close() {
	close(d.done)
	d.wg.Wait()
}

// LogPublisher writes events to the process log, useful when no broker or
// feed is configured.
type LogPublisher struct{}

func (LogPublisher) PublishSessionCompleted(_ context.Context, event domain.SessionCompleted) error {
	log.Printf("session %s completed: user=%s score=%d sparks=%d streakDelta=%d", event.SessionID, event.UserID, event.Score, event.SparksEarned, event.StreakDelta)
	return nil
}
