package app_test

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"sync"
	"testing"
	"time"

	"sparks-quiz-service/internal/app"
	"sparks-quiz-service/internal/domain"
	"sparks-quiz-service/internal/generator"
	"sparks-quiz-service/internal/infra/memory"
)

func TestSessionScoringScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	started := f.startSession(t, "u1")
	if started.Snapshot.TotalMarks != 20 {
		t.Fatalf("expected total marks 20 (easy 5 + hard 15), got %d", started.Snapshot.TotalMarks)
	}

	// Correct on the easy question.
	result, err := f.service.SubmitAnswer(ctx, started.SessionID, domain.Submission{
		QuestionID: "q1", ChoiceID: "q1-right", TimeSpentSeconds: 12,
	})
	if err != nil {
		t.Fatalf("submit q1: %v", err)
	}
	if !result.Correct || result.MarksAwarded != 5 || result.LastQuestion {
		t.Fatalf("unexpected q1 result: %+v", result)
	}

	// Incorrect on the hard question.
	result, err = f.service.SubmitAnswer(ctx, started.SessionID, domain.Submission{
		QuestionID: "q2", ChoiceID: "q2-wrong", TimeSpentSeconds: 30,
	})
	if err != nil {
		t.Fatalf("submit q2: %v", err)
	}
	if result.Correct || result.MarksAwarded != 0 {
		t.Fatalf("unexpected q2 result: %+v", result)
	}
	if !result.LastQuestion {
		t.Fatalf("expected last-question signal, got %+v", result)
	}

	completion, err := f.service.CompleteSession(ctx, started.SessionID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completion.Score != 5 || completion.TotalMarks != 20 || completion.Percentage != 25 {
		t.Fatalf("unexpected scoring: %+v", completion)
	}
	// 5 sparks for the correct easy answer + 20 completion bonus.
	if completion.SparksEarned != 25 {
		t.Fatalf("expected 25 sparks, got %d", completion.SparksEarned)
	}
	if completion.Grade != "E" {
		t.Fatalf("expected grade E at 25%%, got %s", completion.Grade)
	}
}

func TestPerfectScoreEarnsBonus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	started := f.startSession(t, "u1")
	f.answerAll(t, started, true)

	completion, err := f.service.CompleteSession(ctx, started.SessionID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completion.Percentage != 100 {
		t.Fatalf("expected 100%%, got %d", completion.Percentage)
	}
	// 5 + 15 sparks + 20 completion + 50 perfect.
	if completion.SparksEarned != 90 {
		t.Fatalf("expected 90 sparks, got %d", completion.SparksEarned)
	}
	if completion.Grade != "A" {
		t.Fatalf("expected grade A, got %s", completion.Grade)
	}
}

func TestDuplicateAnswerRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	started := f.startSession(t, "u1")
	if _, err := f.service.SubmitAnswer(ctx, started.SessionID, domain.Submission{QuestionID: "q1", ChoiceID: "q1-right"}); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	_, err := f.service.SubmitAnswer(ctx, started.SessionID, domain.Submission{QuestionID: "q1", ChoiceID: "q1-wrong"})
	if !errors.Is(err, domain.ErrDuplicateAnswer) {
		t.Fatalf("expected duplicate answer error, got %v", err)
	}

	// The stored answer is the first one.
	view, err := f.service.GetSession(ctx, started.SessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if len(view.Answers) != 1 || view.Answers[0].ChoiceID != "q1-right" {
		t.Fatalf("expected one stored answer for q1-right, got %+v", view.Answers)
	}
}

func TestConcurrentDuplicateStoresOneAnswer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	started := f.startSession(t, "u1")

	const attempts = 16
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.SubmitAnswer(ctx, started.SessionID, domain.Submission{QuestionID: "q1", ChoiceID: "q1-right"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	accepted := 0
	for err := range errs {
		if err == nil {
			accepted++
		} else if !errors.Is(err, domain.ErrDuplicateAnswer) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if accepted != 1 {
		t.Fatalf("expected exactly one accepted submission, got %d", accepted)
	}
}

func TestSnapshotIntegrityRejectsUnknownQuestion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	started := f.startSession(t, "u1")

	_, err := f.service.SubmitAnswer(ctx, started.SessionID, domain.Submission{QuestionID: "not-in-snapshot", ChoiceID: "x"})
	if !errors.Is(err, domain.ErrSnapshotIntegrity) {
		t.Fatalf("expected snapshot integrity error, got %v", err)
	}

	// Session state unchanged: still accepts the real first answer.
	view, err := f.service.GetSession(ctx, started.SessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if view.State != domain.SessionStateCreated || len(view.Answers) != 0 {
		t.Fatalf("session mutated by rejected submission: state=%s answers=%d", view.State, len(view.Answers))
	}
}

func TestCompletionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	started := f.startSession(t, "u1")
	f.answerAll(t, started, true)

	first, err := f.service.CompleteSession(ctx, started.SessionID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	// Advance the clock; the stored result must come back bit-identical.
	f.advance(48 * time.Hour)
	second, err := f.service.CompleteSession(ctx, started.SessionID)
	if err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("completion results differ:\nfirst:  %+v\nsecond: %+v", first, second)
	}
	if n := f.publisher.count(); n != 1 {
		t.Fatalf("expected one completion event, got %d", n)
	}
}

func TestConcurrentCompletionPublishesOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	started := f.startSession(t, "u1")
	f.answerAll(t, started, false)

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan domain.CompletionResult, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.service.CompleteSession(ctx, started.SessionID)
			if err != nil {
				t.Errorf("complete: %v", err)
				return
			}
			results <- res
		}()
	}
	wg.Wait()
	close(results)

	var first *domain.CompletionResult
	for res := range results {
		res := res
		if first == nil {
			first = &res
			continue
		}
		if !reflect.DeepEqual(*first, res) {
			t.Fatalf("divergent completion results: %+v vs %+v", *first, res)
		}
	}
	if n := f.publisher.count(); n != 1 {
		t.Fatalf("expected one completion event, got %d", n)
	}
}

func TestSubmitAfterCompletionRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	started := f.startSession(t, "u1")
	f.answerAll(t, started, true)

	if _, err := f.service.CompleteSession(ctx, started.SessionID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	_, err := f.service.SubmitAnswer(ctx, started.SessionID, domain.Submission{QuestionID: "q1", ChoiceID: "q1-right"})
	if !errors.Is(err, domain.ErrSessionCompleted) {
		t.Fatalf("expected session completed error, got %v", err)
	}
}

func TestSnapshotInsulatedFromPoolEdits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	started := f.startSession(t, "u1")

	// Edit the live pool mid-session.
	f.pool[0].Prompt = "edited prompt"
	f.pool[0].Choices[0].Correct = false
	f.pool[0].Choices[1].Correct = true

	view, err := f.service.GetSession(ctx, started.SessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if view.Snapshot.Questions[0].Prompt != "Prompt q1" {
		t.Fatalf("snapshot prompt changed: %q", view.Snapshot.Questions[0].Prompt)
	}

	// Grading still follows the frozen correct flag.
	result, err := f.service.SubmitAnswer(ctx, started.SessionID, domain.Submission{QuestionID: "q1", ChoiceID: "q1-right"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.Correct {
		t.Fatalf("grading followed live pool instead of snapshot")
	}
}

func TestStreakFromActivityLog(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name      string
		last      time.Time
		wantDelta int
		wantReset bool
	}{
		{"yesterday continues", time.Date(2026, 3, 9, 20, 0, 0, 0, time.UTC), 1, false},
		{"same day no change", time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC), 0, false},
		{"stale resets", time.Date(2026, 3, 7, 8, 0, 0, 0, time.UTC), 1, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			if err := f.activity.RecordCompletion(ctx, "u1", tc.last); err != nil {
				t.Fatalf("seed activity: %v", err)
			}
			started := f.startSession(t, "u1")
			f.answerAll(t, started, true)

			completion, err := f.service.CompleteSession(ctx, started.SessionID)
			if err != nil {
				t.Fatalf("complete: %v", err)
			}
			if completion.StreakDelta != tc.wantDelta || completion.StreakReset != tc.wantReset {
				t.Fatalf("got delta=%d reset=%v, want delta=%d reset=%v", completion.StreakDelta, completion.StreakReset, tc.wantDelta, tc.wantReset)
			}
		})
	}
}

func TestShortAnswerRecordedUngraded(t *testing.T) {
	ctx := context.Background()
	f := newFixtureWithPool(t, []domain.Question{
		mcqQuestion("q1", domain.DifficultyEasy),
		{
			ID: "q2", SubjectID: "math", LevelID: "form-1",
			Type: domain.QuestionTypeShortAnswer, Prompt: "Explain.",
			Difficulty: domain.DifficultyMedium,
		},
	})
	started := f.startSession(t, "u1")

	result, err := f.service.SubmitAnswer(ctx, started.SessionID, domain.Submission{QuestionID: "q2", Text: "because"})
	if err != nil {
		t.Fatalf("submit short answer: %v", err)
	}
	if result.Correct || result.MarksAwarded != 0 {
		t.Fatalf("short answers are not auto-graded, got %+v", result)
	}

	view, err := f.service.GetSession(ctx, started.SessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if view.Answers[0].Text != "because" {
		t.Fatalf("raw text not stored: %+v", view.Answers[0])
	}
}

// fixture wires the service against in-memory infrastructure with a
// deterministic clock.
type fixture struct {
	service   *app.QuizService
	pool      []domain.Question
	activity  *memory.ActivityLog
	publisher *capturingPublisher
	nowMu     sync.Mutex
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithPool(t, []domain.Question{
		mcqQuestion("q1", domain.DifficultyEasy),
		mcqQuestion("q2", domain.DifficultyHard),
	})
}

func newFixtureWithPool(t *testing.T, pool []domain.Question) *fixture {
	t.Helper()
	f := &fixture{
		pool:      pool,
		activity:  memory.NewActivityLog(),
		publisher: &capturingPublisher{},
		now:       time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC),
	}

	quizzes := memory.NewQuizRepository()
	ids := make([]string, len(pool))
	for i, q := range pool {
		ids[i] = q.ID
	}
	err := quizzes.SaveQuiz(context.Background(), domain.Quiz{
		ID:            "quiz-1",
		SubjectID:     "math",
		LevelID:       "form-1",
		Type:          domain.QuizTypeRandom,
		QuestionCount: len(ids),
		Difficulty:    domain.DifficultyMixed,
		TimeLimit:     10 * time.Minute,
		QuestionIDs:   ids,
	})
	if err != nil {
		t.Fatalf("save quiz: %v", err)
	}

	// The source shares f.pool's backing array, so tests can edit the live
	// pool and observe snapshot insulation.
	source := memory.NewStaticQuestionSource(f.pool)
	f.service = app.NewQuizService(
		quizzes,
		memory.NewSessionStore(),
		source,
		f.activity,
		f.publisher,
		app.DefaultSettings(),
		generator.DefaultBounds(),
	).WithClock(f.clock, rand.New(rand.NewSource(11)))
	return f
}

func (f *fixture) clock() time.Time {
	f.nowMu.Lock()
	defer f.nowMu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.nowMu.Lock()
	f.now = f.now.Add(d)
	f.nowMu.Unlock()
}

func (f *fixture) startSession(t *testing.T, userID string) app.StartedSession {
	t.Helper()
	started, err := f.service.StartSession(context.Background(), "quiz-1", userID)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	return started
}

// answerAll submits one answer per snapshot question; correct selects the
// right or wrong choice for mcq questions.
func (f *fixture) answerAll(t *testing.T, started app.StartedSession, correct bool) {
	t.Helper()
	for _, q := range started.Snapshot.Questions {
		sub := domain.Submission{QuestionID: q.QuestionID}
		if q.Type == domain.QuestionTypeShortAnswer {
			sub.Text = "answer"
		} else if correct {
			sub.ChoiceID = q.QuestionID + "-right"
		} else {
			sub.ChoiceID = q.QuestionID + "-wrong"
		}
		if _, err := f.service.SubmitAnswer(context.Background(), started.SessionID, sub); err != nil {
			t.Fatalf("submit %s: %v", q.QuestionID, err)
		}
	}
}

func mcqQuestion(id string, difficulty domain.Difficulty) domain.Question {
	return domain.Question{
		ID:         id,
		SubjectID:  "math",
		LevelID:    "form-1",
		Type:       domain.QuestionTypeMCQ,
		Prompt:     "Prompt " + id,
		Difficulty: difficulty,
		Choices: []domain.Choice{
			{ID: id + "-right", Text: "right", Correct: true},
			{ID: id + "-wrong", Text: "wrong"},
		},
	}
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []domain.SessionCompleted
}

func (p *capturingPublisher) PublishSessionCompleted(_ context.Context, event domain.SessionCompleted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}
