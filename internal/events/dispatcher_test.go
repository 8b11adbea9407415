package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sparks-quiz-service/internal/domain"
)

func TestDispatcherRetriesUntilDelivered(t *testing.T) {
	pub := &flakyPublisher{failures: 3}
	d := NewDispatcherWithBackoff(pub, time.Millisecond, 5)
	defer d.Close()

	event := domain.SessionCompleted{SessionID: "s1", UserID: "u1", SparksEarned: 25}
	if err := d.PublishSessionCompleted(context.Background(), event); err != nil {
		t.Fatalf("dispatch must not surface downstream failures, got %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for pub.delivered() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("event never delivered; attempts=%d", pub.attemptCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if pub.delivered() != 1 {
		t.Fatalf("expected exactly one delivery, got %d", pub.delivered())
	}
}

func TestDispatcherGivesUpAfterMaxAttempts(t *testing.T) {
	pub := &flakyPublisher{failures: 100}
	d := NewDispatcherWithBackoff(pub, time.Millisecond, 2)
	defer d.Close()

	if err := d.PublishSessionCompleted(context.Background(), domain.SessionCompleted{SessionID: "s1"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	// 1 immediate attempt + 2 retries.
	for pub.attemptCount() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("expected 3 attempts, got %d", pub.attemptCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	if pub.attemptCount() != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", pub.attemptCount())
	}
}

func TestFanoutDeliversToAllDespiteFailure(t *testing.T) {
	failing := &flakyPublisher{failures: 1}
	healthy := &flakyPublisher{}
	fanout := Fanout{failing, healthy}

	err := fanout.PublishSessionCompleted(context.Background(), domain.SessionCompleted{SessionID: "s1"})
	if err == nil {
		t.Fatalf("expected the first publisher's error to propagate")
	}
	if healthy.delivered() != 1 {
		t.Fatalf("healthy publisher skipped: delivered=%d", healthy.delivered())
	}
}

type flakyPublisher struct {
	mu       sync.Mutex
	failures int
	attempts int
	ok       int
}

func (p *flakyPublisher) PublishSessionCompleted(_ context.Context, _ domain.SessionCompleted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	if p.attempts <= p.failures {
		return errors.New("broker unavailable")
	}
	p.ok++
	return nil
}

func (p *flakyPublisher) delivered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ok
}

func (p *flakyPublisher) attemptCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}
