package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrQuizNotFound indicates the quiz definition could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrSessionNotFound is returned when a quiz session does not exist.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrQuestionNotFound indicates a quiz references a question missing from the pool.
	ErrQuestionNotFound = errors.New("question not found in pool")
	// ErrChoiceNotFound indicates a submitted choice ID is not in the snapshot question.
	ErrChoiceNotFound = errors.New("choice not found in snapshot question")
	// ErrDuplicateAnswer is returned when a question already has a stored answer
	// in this session. Clients should treat it as an idempotent no-op.
	ErrDuplicateAnswer = errors.New("answer already recorded for question")
	// ErrSessionCompleted rejects submissions against a finalized session.
	ErrSessionCompleted = errors.New("session already completed")
	// ErrSnapshotIntegrity indicates a submission referenced a question that is
	// not part of the session's snapshot.
	ErrSnapshotIntegrity = errors.New("question not in session snapshot")
	// ErrDownstreamNotification marks a failed completion-event delivery. It is
	// never surfaced to the caller of completion; the event is retried.
	ErrDownstreamNotification = errors.New("downstream notification failed")
)

// ValidationError reports a bad generation or submission parameter.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InsufficientQuestionsError is returned when the pool cannot satisfy the
// requested count at the requested difficulty distribution. The caller decides
// whether to relax difficulty or reduce the count.
type InsufficientQuestionsError struct {
	Difficulty Difficulty
	Needed     int
	Available  int
}

func (e *InsufficientQuestionsError) Error() string {
	if e.Difficulty != "" {
		return fmt.Sprintf("insufficient questions: need %d %s, pool has %d", e.Needed, e.Difficulty, e.Available)
	}
	return fmt.Sprintf("insufficient questions: need %d, pool has %d", e.Needed, e.Available)
}
