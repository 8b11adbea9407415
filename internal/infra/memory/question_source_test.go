package memory

import (
	"context"
	"testing"
	"time"

	"sparks-quiz-service/internal/domain"
)

func TestStaticSourceFilters(t *testing.T) {
	source := NewStaticQuestionSource([]domain.Question{
		{ID: "q1", SubjectID: "math", LevelID: "form-1", TopicID: "algebra", TermID: "term-1"},
		{ID: "q2", SubjectID: "math", LevelID: "form-1", TopicID: "fractions", TermID: "term-2"},
		{ID: "q3", SubjectID: "bio", LevelID: "form-1", TopicID: "cells", TermID: "term-1"},
	})

	all, err := source.ListQuestions(context.Background(), "math", "form-1", "", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 math questions, got %d", len(all))
	}

	topical, err := source.ListQuestions(context.Background(), "math", "form-1", "algebra", "")
	if err != nil {
		t.Fatalf("list topical: %v", err)
	}
	if len(topical) != 1 || topical[0].ID != "q1" {
		t.Fatalf("expected q1 only, got %+v", topical)
	}

	termly, err := source.ListQuestions(context.Background(), "math", "form-1", "", "term-2")
	if err != nil {
		t.Fatalf("list termly: %v", err)
	}
	if len(termly) != 1 || termly[0].ID != "q2" {
		t.Fatalf("expected q2 only, got %+v", termly)
	}
}

func TestCachedSourceAvoidsRepeatReads(t *testing.T) {
	loader := &countingSource{backing: NewStaticQuestionSource([]domain.Question{
		{ID: "q1", SubjectID: "math", LevelID: "form-1"},
	})}
	source := NewCachedQuestionSource(loader, time.Minute)

	if _, err := source.ListQuestions(context.Background(), "math", "form-1", "", ""); err != nil {
		t.Fatalf("list: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := source.ListQuestions(context.Background(), "math", "form-1", "", ""); err != nil {
		t.Fatalf("list 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}

	// Different scope misses the cache.
	if _, err := source.ListQuestions(context.Background(), "math", "form-1", "algebra", ""); err != nil {
		t.Fatalf("list scoped: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected new scope to hit loader, calls %d", loader.calls)
	}
}

type countingSource struct {
	backing *StaticQuestionSource
	calls   int
}

func (s *countingSource) ListQuestions(ctx context.Context, subjectID, levelID, topicID, termID string) ([]domain.Question, error) {
	s.calls++
	return s.backing.ListQuestions(ctx, subjectID, levelID, topicID, termID)
}
