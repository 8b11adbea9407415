package app

import (
	"math"
	"sync"
	"time"

	"sparks-quiz-service/internal/domain"
)

// Session is the state machine for one (user, quiz, snapshot) attempt.
// Lifecycle: created -> in_progress on first accepted answer -> completed,
// set exactly once by finalize. All mutation happens under the mutex, so a
// duplicate submission race stores exactly one answer.
type Session struct {
	id        string
	userID    string
	quizID    string
	startedAt time.Time
	now       func() time.Time

	mu       sync.RWMutex
	snapshot domain.Snapshot
	state    domain.SessionState
	answers  map[string]domain.Answer
	order    []string
	result   *domain.CompletionResult
}

// NewSession is exported for infrastructure layers that need to seed sessions.
func NewSession(id, userID, quizID string, snapshot domain.Snapshot) *Session {
	return NewSessionWithClock(id, userID, quizID, snapshot, time.Now)
}

// NewSessionWithClock is test-only for deterministic timestamps.
func NewSessionWithClock(id, userID, quizID string, snapshot domain.Snapshot, now func() time.Time) *Session {
	return &Session{
		id:        id,
		userID:    userID,
		quizID:    quizID,
		startedAt: now(),
		now:       now,
		snapshot:  snapshot,
		state:     domain.SessionStateCreated,
		answers:   make(map[string]domain.Answer),
	}
}

func (s *Session) ID() string     { return s.id }
func (s *Session) UserID() string { return s.userID }
func (s *Session) QuizID() string { return s.quizID }

func (s *Session) State() domain.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Snapshot returns the frozen question set. Callers must not mutate it.
func (s *Session) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Result returns the completion result if the session has been finalized.
func (s *Session) Result() (domain.CompletionResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.result == nil {
		return domain.CompletionResult{}, false
	}
	return *s.result, true
}

// submit validates and records one answer. An invalid submission leaves the
// session unchanged.
func (s *Session) submit(sub domain.Submission) (domain.AnswerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == domain.SessionStateCompleted {
		return domain.AnswerResult{}, domain.ErrSessionCompleted
	}

	var question *domain.SnapshotQuestion
	for i := range s.snapshot.Questions {
		if s.snapshot.Questions[i].QuestionID == sub.QuestionID {
			question = &s.snapshot.Questions[i]
			break
		}
	}
	if question == nil {
		return domain.AnswerResult{}, domain.ErrSnapshotIntegrity
	}
	if _, exists := s.answers[sub.QuestionID]; exists {
		return domain.AnswerResult{}, domain.ErrDuplicateAnswer
	}

	answer := domain.Answer{
		QuestionID:       sub.QuestionID,
		ChoiceID:         sub.ChoiceID,
		Text:             sub.Text,
		TimeSpentSeconds: sub.TimeSpentSeconds,
		SubmittedAt:      s.now(),
	}
	switch question.Type {
	case domain.QuestionTypeMCQ, domain.QuestionTypeTrueFalse:
		// Graded from the snapshot's correct flag, never the live pool.
		var selected *domain.Choice
		for i := range question.Choices {
			if question.Choices[i].ID == sub.ChoiceID {
				selected = &question.Choices[i]
				break
			}
		}
		if selected == nil {
			return domain.AnswerResult{}, domain.ErrChoiceNotFound
		}
		answer.Correct = selected.Correct
		if answer.Correct {
			answer.MarksAwarded = question.Marks
		}
	case domain.QuestionTypeShortAnswer:
		// Recorded raw; grading is an external concern.
		if sub.Text == "" {
			return domain.AnswerResult{}, &domain.ValidationError{Field: "text", Reason: "required for short_answer"}
		}
	}

	s.answers[sub.QuestionID] = answer
	s.order = append(s.order, sub.QuestionID)
	s.state = domain.SessionStateInProgress

	answered := len(s.answers)
	total := len(s.snapshot.Questions)
	return domain.AnswerResult{
		QuestionID:   sub.QuestionID,
		Correct:      answer.Correct,
		MarksAwarded: answer.MarksAwarded,
		Answered:     answered,
		Remaining:    total - answered,
		LastQuestion: answered == total,
	}, nil
}

// finalize computes the completion result exactly once. The second return is
// true when the session was already completed and the stored result is being
// returned unchanged.
func (s *Session) finalize(streakDelta int, streakReset bool, grade func(percentage int) string) (domain.CompletionResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.result != nil {
		return *s.result, true
	}

	score := 0
	sparks := 0
	for _, qid := range s.order {
		answer := s.answers[qid]
		score += answer.MarksAwarded
		if answer.Correct {
			sparks += s.sparkValueLocked(qid)
		}
	}
	percentage := 0
	if s.snapshot.TotalMarks > 0 {
		percentage = int(math.Round(float64(score) / float64(s.snapshot.TotalMarks) * 100))
	}
	sparks += s.snapshot.Sparks.CompletionBonus
	if percentage == 100 {
		sparks += s.snapshot.Sparks.PerfectScoreBonus
	}

	result := domain.CompletionResult{
		SessionID:    s.id,
		Score:        score,
		TotalMarks:   s.snapshot.TotalMarks,
		Percentage:   percentage,
		Grade:        grade(percentage),
		SparksEarned: sparks,
		StreakDelta:  streakDelta,
		StreakReset:  streakReset,
		CompletedAt:  s.now(),
	}
	s.result = &result
	s.state = domain.SessionStateCompleted
	return result, false
}

func (s *Session) sparkValueLocked(questionID string) int {
	for i := range s.snapshot.Questions {
		if s.snapshot.Questions[i].QuestionID == questionID {
			return s.snapshot.Sparks.PerDifficulty[s.snapshot.Questions[i].Difficulty]
		}
	}
	return 0
}

// SessionRecord is the serializable form of a session for stores that persist
// state across restarts.
type SessionRecord struct {
	ID        string                    `json:"id"`
	UserID    string                    `json:"userId"`
	QuizID    string                    `json:"quizId"`
	StartedAt time.Time                 `json:"startedAt"`
	State     domain.SessionState       `json:"state"`
	Snapshot  domain.Snapshot           `json:"snapshot"`
	Answers   []domain.Answer           `json:"answers"`
	Result    *domain.CompletionResult  `json:"result,omitempty"`
}

// Record captures the session state for persistence.
func (s *Session) Record() SessionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	answers := make([]domain.Answer, 0, len(s.order))
	for _, qid := range s.order {
		answers = append(answers, s.answers[qid])
	}
	rec := SessionRecord{
		ID:        s.id,
		UserID:    s.userID,
		QuizID:    s.quizID,
		StartedAt: s.startedAt,
		State:     s.state,
		Snapshot:  s.snapshot,
		Answers:   answers,
	}
	if s.result != nil {
		result := *s.result
		rec.Result = &result
	}
	return rec
}

// RestoreSession rebuilds a session from its persisted record.
func RestoreSession(rec SessionRecord) *Session {
	s := NewSession(rec.ID, rec.UserID, rec.QuizID, rec.Snapshot)
	s.startedAt = rec.StartedAt
	s.state = rec.State
	for _, answer := range rec.Answers {
		s.answers[answer.QuestionID] = answer
		s.order = append(s.order, answer.QuestionID)
	}
	if rec.Result != nil {
		result := *rec.Result
		s.result = &result
	}
	return s
}

// SessionView is the read model served to clients resuming a session.
type SessionView struct {
	SessionID string                   `json:"sessionId"`
	QuizID    string                   `json:"quizId"`
	UserID    string                   `json:"userId"`
	State     domain.SessionState      `json:"state"`
	StartedAt time.Time                `json:"startedAt"`
	Snapshot  domain.Snapshot          `json:"snapshot"`
	Answers   []domain.Answer          `json:"answers"`
	Result    *domain.CompletionResult `json:"result,omitempty"`
}

// View snapshots the session for read-only consumers.
func (s *Session) View() SessionView {
	rec := s.Record()
	return SessionView{
		SessionID: rec.ID,
		QuizID:    rec.QuizID,
		UserID:    rec.UserID,
		State:     rec.State,
		StartedAt: rec.StartedAt,
		Snapshot:  rec.Snapshot,
		Answers:   rec.Answers,
		Result:    rec.Result,
	}
}
