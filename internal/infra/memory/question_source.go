package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"sparks-quiz-service/internal/domain"
	"sparks-quiz-service/internal/generator"
	"golang.org/x/sync/singleflight"
)

// StaticQuestionSource serves a fixed pool from memory (useful for tests and
// demos without a content database).
type StaticQuestionSource struct {
	questions []domain.Question
}

func NewStaticQuestionSource(questions []domain.Question) *StaticQuestionSource {
	return &StaticQuestionSource{questions: questions}
}

func (s *StaticQuestionSource) ListQuestions(_ context.Context, subjectID, levelID, topicID, termID string) ([]domain.Question, error) {
	matched := make([]domain.Question, 0, len(s.questions))
	for _, q := range s.questions {
		if q.SubjectID != subjectID || q.LevelID != levelID {
			continue
		}
		if topicID != "" && q.TopicID != topicID {
			continue
		}
		if termID != "" && q.TermID != termID {
			continue
		}
		matched = append(matched, q)
	}
	return matched, nil
}

// CachedQuestionSource caches pool listings with TTL to avoid repeated reads
// of the content store. Singleflight collapses concurrent misses for the same
// scope.
type CachedQuestionSource struct {
	backing generator.QuestionSource
	ttl     time.Duration
	clock   func() time.Time
	sf      singleflight.Group
	rnd     *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedPool
}

type cachedPool struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewCachedQuestionSource(backing generator.QuestionSource, ttl time.Duration) *CachedQuestionSource {
	return &CachedQuestionSource{
		backing: backing,
		ttl:     ttl,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:   make(map[string]cachedPool),
	}
}

func (s *CachedQuestionSource) ListQuestions(ctx context.Context, subjectID, levelID, topicID, termID string) ([]domain.Question, error) {
	key := subjectID + "|" + levelID + "|" + topicID + "|" + termID
	now := s.clock()

	s.mu.RLock()
	if entry, ok := s.cache[key]; ok && entry.expiresAt.After(now) {
		s.mu.RUnlock()
		return entry.questions, nil
	}
	s.mu.RUnlock()

	result, err, _ := s.sf.Do(key, func() (interface{}, error) {
		now := s.clock()
		s.mu.RLock()
		if entry, ok := s.cache[key]; ok && entry.expiresAt.After(now) {
			s.mu.RUnlock()
			return entry.questions, nil
		}
		s.mu.RUnlock()

		questions, err := s.backing.ListQuestions(ctx, subjectID, levelID, topicID, termID)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.cache[key] = cachedPool{
			questions: questions,
			expiresAt: now.Add(s.ttlWithJitter()),
		}
		s.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (s *CachedQuestionSource) ttlWithJitter() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(s.ttl) / 10
	return s.ttl + time.Duration(s.rnd.Int63n(jitterMax+1))
}
