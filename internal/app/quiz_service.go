package app

import (
	"context"
	"log"
	"math/rand"
	"time"

	"sparks-quiz-service/internal/domain"
	"sparks-quiz-service/internal/generator"
	"github.com/google/uuid"
)

// QuizRepository stores quiz definitions (in-memory, Redis over Postgres, etc).
type QuizRepository interface {
	SaveQuiz(ctx context.Context, quiz domain.Quiz) error
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// SessionRepository abstracts how sessions are stored. Save re-persists a
// session after its state changed; stores without a backing store may no-op.
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	Save(session *Session)
}

// ActivityLog tracks each user's last completed session date for the streak
// computation. Backed by the profile store in production.
type ActivityLog interface {
	LastCompletedAt(ctx context.Context, userID string) (time.Time, bool, error)
	RecordCompletion(ctx context.Context, userID string, at time.Time) error
}

// CompletionPublisher delivers SessionCompleted events to profile and
// leaderboard consumers.
type CompletionPublisher interface {
	PublishSessionCompleted(ctx context.Context, event domain.SessionCompleted) error
}

// QuizService contains the core quiz session use cases: generate, start,
// submit, complete.
type QuizService struct {
	quizzes   QuizRepository
	sessions  SessionRepository
	source    generator.QuestionSource
	generator *generator.Generator
	activity  ActivityLog
	publisher CompletionPublisher
	settings  Settings
	bounds    generator.Bounds
	clock     func() time.Time
	rnd       *rand.Rand
}

func NewQuizService(quizzes QuizRepository, sessions SessionRepository, source generator.QuestionSource, activity ActivityLog, publisher CompletionPublisher, settings Settings, bounds generator.Bounds) *QuizService {
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &QuizService{
		quizzes:   quizzes,
		sessions:  sessions,
		source:    source,
		generator: generator.New(source, bounds),
		activity:  activity,
		publisher: publisher,
		settings:  settings,
		bounds:    bounds,
		clock:     time.Now,
		rnd:       rnd,
	}
}

// WithClock is test-only for deterministic timestamps and shuffles.
func (s *QuizService) WithClock(now func() time.Time, rnd *rand.Rand) *QuizService {
	s.clock = now
	s.rnd = rnd
	s.generator = generator.NewWithRand(s.source, s.bounds, rnd, now)
	return s
}

// GenerateQuiz produces and persists a quiz definition.
func (s *QuizService) GenerateQuiz(ctx context.Context, params generator.Params) (domain.Quiz, error) {
	quiz, _, err := s.generator.Generate(ctx, params)
	if err != nil {
		return domain.Quiz{}, err
	}
	if err := s.quizzes.SaveQuiz(ctx, quiz); err != nil {
		return domain.Quiz{}, err
	}
	return quiz, nil
}

// StartedSession is returned to the caller when a session begins.
type StartedSession struct {
	SessionID string          `json:"sessionId"`
	QuizID    string          `json:"quizId"`
	UserID    string          `json:"userId"`
	StartedAt time.Time       `json:"startedAt"`
	Snapshot  domain.Snapshot `json:"snapshot"`
}

// StartSession resolves the quiz's questions from the pool, freezes them into
// a snapshot, and opens a new session. The active spark policy is captured
// into the snapshot here, not at completion time.
func (s *QuizService) StartSession(ctx context.Context, quizID, userID string) (StartedSession, error) {
	if userID == "" {
		return StartedSession{}, &domain.ValidationError{Field: "userId", Reason: "required"}
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return StartedSession{}, err
	}

	questions, err := s.resolveQuestions(ctx, quiz)
	if err != nil {
		return StartedSession{}, err
	}

	snapshot := BuildSnapshot(questions, quiz.TimeLimit, s.settings.Marks, s.settings.Sparks, s.settings.ShuffleChoices, s.rnd, s.clock())
	session := NewSessionWithClock(uuid.NewString(), userID, quiz.ID, snapshot, s.clock)
	s.sessions.Put(session)

	return StartedSession{
		SessionID: session.ID(),
		QuizID:    quiz.ID,
		UserID:    userID,
		StartedAt: snapshot.TakenAt,
		Snapshot:  session.Snapshot(),
	}, nil
}

func (s *QuizService) resolveQuestions(ctx context.Context, quiz domain.Quiz) ([]domain.Question, error) {
	pool, err := s.source.ListQuestions(ctx, quiz.SubjectID, quiz.LevelID, quiz.TopicID, quiz.TermID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Question, len(pool))
	for _, q := range pool {
		byID[q.ID] = q
	}
	ordered := make([]domain.Question, 0, len(quiz.QuestionIDs))
	for _, id := range quiz.QuestionIDs {
		q, ok := byID[id]
		if !ok {
			return nil, domain.ErrQuestionNotFound
		}
		ordered = append(ordered, q)
	}
	return ordered, nil
}

// SubmitAnswer validates and records one answer against the session snapshot.
func (s *QuizService) SubmitAnswer(ctx context.Context, sessionID string, sub domain.Submission) (domain.AnswerResult, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.AnswerResult{}, domain.ErrSessionNotFound
	}
	result, err := session.submit(sub)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	s.sessions.Save(session)
	return result, nil
}

// CompleteSession finalizes the session exactly once. Repeat calls return the
// stored result unchanged. A downstream publish failure never fails the
// caller; the event is handed to the publisher's retry path.
func (s *QuizService) CompleteSession(ctx context.Context, sessionID string) (domain.CompletionResult, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.CompletionResult{}, domain.ErrSessionNotFound
	}
	if result, done := session.Result(); done {
		return result, nil
	}

	lastActivity, found, err := s.activity.LastCompletedAt(ctx, session.UserID())
	if err != nil {
		log.Printf("activity lookup for %s failed, treating streak as fresh: %v", session.UserID(), err)
		found = false
	}
	if !found {
		lastActivity = time.Time{}
	}
	delta, reset := streakChange(StreakTransition(lastActivity, s.clock()))

	result, already := session.finalize(delta, reset, func(percentage int) string {
		return gradeFor(percentage, s.settings.GradeBands)
	})
	if already {
		return result, nil
	}

	s.sessions.Save(session)
	if err := s.activity.RecordCompletion(ctx, session.UserID(), result.CompletedAt); err != nil {
		log.Printf("record completion for %s failed: %v", session.UserID(), err)
	}

	event := domain.SessionCompleted{
		SessionID:    session.ID(),
		UserID:       session.UserID(),
		QuizID:       session.QuizID(),
		Score:        result.Score,
		Percentage:   result.Percentage,
		SparksEarned: result.SparksEarned,
		StreakDelta:  result.StreakDelta,
		StreakReset:  result.StreakReset,
		CompletedAt:  result.CompletedAt,
	}
	if err := s.publisher.PublishSessionCompleted(ctx, event); err != nil {
		log.Printf("completion event for session %s not delivered: %v", session.ID(), err)
	}
	return result, nil
}

// GetSession returns the frozen snapshot and progress for a resuming client.
func (s *QuizService) GetSession(_ context.Context, sessionID string) (SessionView, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return SessionView{}, domain.ErrSessionNotFound
	}
	return session.View(), nil
}
