package domain

import "time"

// QuizType selects how the generator scopes the question pool.
type QuizType string

const (
	QuizTypeRandom  QuizType = "random"
	QuizTypeTopical QuizType = "topical"
	QuizTypeTermly  QuizType = "termly"
)

// Difficulty classifies a question or a generation policy.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	// DifficultyMixed is only valid as a generation policy, never on a question.
	DifficultyMixed Difficulty = "mixed"
)

// QuestionType is a closed set; each variant carries only the fields it needs
// (choices are empty for short_answer).
type QuestionType string

const (
	QuestionTypeMCQ         QuestionType = "mcq"
	QuestionTypeTrueFalse   QuestionType = "true_false"
	QuestionTypeShortAnswer QuestionType = "short_answer"
)

// Choice is one possible answer for an mcq or true_false question.
type Choice struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question is a pool entity owned by the content repository; the core only
// reads it.
type Question struct {
	ID          string       `json:"id"`
	SubjectID   string       `json:"subjectId"`
	LevelID     string       `json:"levelId"`
	TopicID     string       `json:"topicId,omitempty"`
	TermID      string       `json:"termId,omitempty"`
	Type        QuestionType `json:"type"`
	Prompt      string       `json:"prompt"`
	Explanation string       `json:"explanation,omitempty"`
	Difficulty  Difficulty   `json:"difficulty"`
	Choices     []Choice     `json:"choices,omitempty"`
}

// Quiz is a reusable definition produced by the generator. Immutable once
// created; many sessions may start from one quiz.
type Quiz struct {
	ID            string        `json:"id"`
	ExamSystemID  string        `json:"examSystemId"`
	LevelID       string        `json:"levelId"`
	SubjectID     string        `json:"subjectId"`
	Type          QuizType      `json:"type"`
	TopicID       string        `json:"topicId,omitempty"`
	TermID        string        `json:"termId,omitempty"`
	QuestionCount int           `json:"questionCount"`
	Difficulty    Difficulty    `json:"difficulty"`
	TimeLimit     time.Duration `json:"timeLimit"`
	QuestionIDs   []string      `json:"questionIds"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// SparkPolicy is the reward table active when a session starts. It is copied
// into the snapshot so admin edits never change an in-flight session's rewards.
type SparkPolicy struct {
	PerDifficulty     map[Difficulty]int `json:"perDifficulty"`
	CompletionBonus   int                `json:"completionBonus"`
	PerfectScoreBonus int                `json:"perfectScoreBonus"`
}

// SnapshotQuestion is a denormalized copy of a pool question, including the
// correct flags, frozen at session start.
type SnapshotQuestion struct {
	OrderIndex  int          `json:"orderIndex"`
	QuestionID  string       `json:"questionId"`
	Type        QuestionType `json:"type"`
	Prompt      string       `json:"prompt"`
	Explanation string       `json:"explanation,omitempty"`
	Difficulty  Difficulty   `json:"difficulty"`
	Marks       int          `json:"marks"`
	Choices     []Choice     `json:"choices,omitempty"`
}

// Snapshot is the immutable question set a session is graded against. Edits
// to the pool after TakenAt never reach it.
type Snapshot struct {
	Questions  []SnapshotQuestion `json:"questions"`
	TotalMarks int                `json:"totalMarks"`
	TimeLimit  time.Duration      `json:"timeLimit"`
	Sparks     SparkPolicy        `json:"sparks"`
	TakenAt    time.Time          `json:"takenAt"`
}

// SessionState is the session lifecycle. There is no abandoned state; an
// incomplete session stays in_progress and remains resumable.
type SessionState string

const (
	SessionStateCreated    SessionState = "created"
	SessionStateInProgress SessionState = "in_progress"
	SessionStateCompleted  SessionState = "completed"
)

// Submission is one inbound answer from a client.
type Submission struct {
	QuestionID       string `json:"questionId"`
	ChoiceID         string `json:"choiceId,omitempty"`
	Text             string `json:"text,omitempty"`
	TimeSpentSeconds int    `json:"timeSpentSeconds"`
}

// Answer is the stored record for one question in one session. Created exactly
// once; resubmission is rejected.
type Answer struct {
	QuestionID       string    `json:"questionId"`
	ChoiceID         string    `json:"choiceId,omitempty"`
	Text             string    `json:"text,omitempty"`
	TimeSpentSeconds int       `json:"timeSpentSeconds"`
	Correct          bool      `json:"correct"`
	MarksAwarded     int       `json:"marksAwarded"`
	SubmittedAt      time.Time `json:"submittedAt"`
}

// AnswerResult summarizes one accepted submission. LastQuestion tells the
// caller to invoke completion; the processor never finalizes on its own.
type AnswerResult struct {
	QuestionID   string `json:"questionId"`
	Correct      bool   `json:"correct"`
	MarksAwarded int    `json:"marksAwarded"`
	Answered     int    `json:"answered"`
	Remaining    int    `json:"remaining"`
	LastQuestion bool   `json:"lastQuestion"`
}

// CompletionResult is computed once per session and returned unchanged on
// repeated completion calls.
type CompletionResult struct {
	SessionID    string    `json:"sessionId"`
	Score        int       `json:"score"`
	TotalMarks   int       `json:"totalMarks"`
	Percentage   int       `json:"percentage"`
	Grade        string    `json:"grade"`
	SparksEarned int       `json:"sparksEarned"`
	StreakDelta  int       `json:"streakDelta"`
	StreakReset  bool      `json:"streakReset"`
	CompletedAt  time.Time `json:"completedAt"`
}

// SessionCompleted is emitted to profile/leaderboard consumers after
// finalization.
type SessionCompleted struct {
	SessionID    string    `json:"sessionId"`
	UserID       string    `json:"userId"`
	QuizID       string    `json:"quizId"`
	Score        int       `json:"score"`
	Percentage   int       `json:"percentage"`
	SparksEarned int       `json:"sparksEarned"`
	StreakDelta  int       `json:"streakDelta"`
	StreakReset  bool      `json:"streakReset"`
	CompletedAt  time.Time `json:"completedAt"`
}
