package redis

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"sparks-quiz-service/internal/app"
	"github.com/redis/go-redis/v9"
)

// SessionStore is a Redis-backed implementation of app.SessionRepository.
// Notes:
//   - A local in-memory map holds the live session objects; their mutex-guarded
//     state machine stays in-process.
//   - Redis holds the serialized session record so a session (and its frozen
//     snapshot, in its original order) survives a restart and can be resumed.
//   - Save re-persists the record after each accepted answer and on completion.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Put(session *app.Session) {
	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()
	s.persist(session)
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return session, true
	}

	// Rehydrate from Redis so a restarted instance can serve resumes.
	raw, err := s.client.Get(context.Background(), s.key(sessionID)).Bytes()
	if err != nil {
		return nil, false
	}
	var rec app.SessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		log.Printf("corrupt session record %s: %v", sessionID, err)
		return nil, false
	}
	restored := app.RestoreSession(rec)

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[sessionID]; ok {
		return existing, true
	}
	s.sessions[sessionID] = restored
	return restored, true
}

func (s *SessionStore) Save(session *app.Session) {
	s.persist(session)
}

func (s *SessionStore) persist(session *app.Session) {
	data, err := json.Marshal(session.Record())
	if err != nil {
		log.Printf("marshal session %s: %v", session.ID(), err)
		return
	}
	// best-effort; the in-process session stays authoritative
	if err := s.client.Set(context.Background(), s.key(session.ID()), data, s.ttl).Err(); err != nil {
		log.Printf("persist session %s: %v", session.ID(), err)
	}
}

func (s *SessionStore) key(sessionID string) string {
	return "quiz:session:" + sessionID
}
