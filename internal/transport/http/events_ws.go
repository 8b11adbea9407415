package http

import (
	"context"
	"log"
	"net/http"
	"sync"

	"sparks-quiz-service/internal/domain"
	"github.com/gorilla/websocket"
)

// EventsHub streams SessionCompleted events to websocket subscribers
// (leaderboard and notification consumers). It implements events.Publisher.
type EventsHub struct {
	upgrader websocket.Upgrader

	mu          sync.Mutex
	subscribers map[chan domain.SessionCompleted]struct{}
}

func NewEventsHub() *EventsHub {
	return &EventsHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		subscribers: make(map[chan domain.SessionCompleted]struct{}),
	}
}

// PublishSessionCompleted fans the event out to all subscribers. Slow clients
// lose their oldest buffered event rather than blocking the broadcast.
func (h *EventsHub) PublishSessionCompleted(_ context.Context, event domain.SessionCompleted) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
	return nil
}

func (h *EventsHub) subscribe() (<-chan domain.SessionCompleted, func()) {
	ch := make(chan domain.SessionCompleted, 8)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

type outboundEvent struct {
	Type    string                  `json:"type"`
	Payload domain.SessionCompleted `json:"payload"`
}

// ServeWS upgrades the request and streams completion events until the client
// disconnects.
func (h *EventsHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events, cancel := h.subscribe()
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for event := range events {
			if err := conn.WriteJSON(outboundEvent{Type: "sessionCompleted", Payload: event}); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	// Consume control frames; the read error signals a closed connection.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	cancel()
	<-writerDone
}
