package generator

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"sparks-quiz-service/internal/domain"
	"github.com/google/uuid"
)

// QuestionSource supplies the question pool for a subject/level scope.
// topicID and termID narrow the pool when non-empty.
type QuestionSource interface {
	ListQuestions(ctx context.Context, subjectID, levelID, topicID, termID string) ([]domain.Question, error)
}

// Bounds constrains quiz generation parameters.
type Bounds struct {
	MinQuestions     int
	MaxQuestions     int
	DefaultQuestions int
	DefaultTimeLimit time.Duration
}

// DefaultBounds mirrors the platform defaults: 5..50 questions, 15 by default.
func DefaultBounds() Bounds {
	return Bounds{
		MinQuestions:     5,
		MaxQuestions:     50,
		DefaultQuestions: 15,
		DefaultTimeLimit: 15 * time.Minute,
	}
}

// mixedDistribution is the difficulty mix for mixed quizzes. Counts are
// floored per bucket and any rounding remainder goes to medium.
var mixedDistribution = map[domain.Difficulty]float64{
	domain.DifficultyEasy:   0.3,
	domain.DifficultyMedium: 0.5,
	domain.DifficultyHard:   0.2,
}

// Params describes one generation request.
type Params struct {
	ExamSystemID  string             `json:"examSystemId"`
	LevelID       string             `json:"levelId"`
	SubjectID     string             `json:"subjectId"`
	Type          domain.QuizType    `json:"type"`
	TopicID       string             `json:"topicId,omitempty"`
	TermID        string             `json:"termId,omitempty"`
	QuestionCount int                `json:"questionCount,omitempty"`
	Difficulty    domain.Difficulty  `json:"difficulty,omitempty"`
	TimeLimit     time.Duration      `json:"timeLimit,omitempty"`
	TopicWeights  map[string]float64 `json:"topicWeights,omitempty"`
}

// Generator produces quiz definitions from the question pool. It has no side
// effects; persisting the returned quiz is the caller's responsibility.
type Generator struct {
	source QuestionSource
	bounds Bounds
	rnd    *rand.Rand
	clock  func() time.Time
}

func New(source QuestionSource, bounds Bounds) *Generator {
	return &Generator{
		source: source,
		bounds: bounds,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		clock:  time.Now,
	}
}

// NewWithRand is test-only for deterministic selection.
func NewWithRand(source QuestionSource, bounds Bounds, rnd *rand.Rand, now func() time.Time) *Generator {
	return &Generator{source: source, bounds: bounds, rnd: rnd, clock: now}
}

// Generate validates params, draws the question selection, and returns the
// quiz definition together with the resolved questions in quiz order.
func (g *Generator) Generate(ctx context.Context, p Params) (domain.Quiz, []domain.Question, error) {
	p, err := g.normalize(p)
	if err != nil {
		return domain.Quiz{}, nil, err
	}

	pool, err := g.source.ListQuestions(ctx, p.SubjectID, p.LevelID, p.TopicID, p.TermID)
	if err != nil {
		return domain.Quiz{}, nil, err
	}

	var selected []domain.Question
	switch p.Type {
	case domain.QuizTypeRandom:
		selected, err = g.selectByDifficulty(pool, p.QuestionCount, p.Difficulty)
	case domain.QuizTypeTopical:
		selected, err = g.selectByDifficulty(pool, p.QuestionCount, p.Difficulty)
		if err == nil {
			// Simple recall before analytical questions.
			sortAscendingDifficulty(selected)
		}
	case domain.QuizTypeTermly:
		selected, err = g.selectAcrossTopics(pool, p.QuestionCount, p.Difficulty, p.TopicWeights)
	}
	if err != nil {
		return domain.Quiz{}, nil, err
	}

	ids := make([]string, len(selected))
	for i, q := range selected {
		ids[i] = q.ID
	}
	quiz := domain.Quiz{
		ID:            uuid.NewString(),
		ExamSystemID:  p.ExamSystemID,
		LevelID:       p.LevelID,
		SubjectID:     p.SubjectID,
		Type:          p.Type,
		TopicID:       p.TopicID,
		TermID:        p.TermID,
		QuestionCount: p.QuestionCount,
		Difficulty:    p.Difficulty,
		TimeLimit:     p.TimeLimit,
		QuestionIDs:   ids,
		CreatedAt:     g.clock(),
	}
	return quiz, selected, nil
}

func (g *Generator) normalize(p Params) (Params, error) {
	if p.SubjectID == "" {
		return p, &domain.ValidationError{Field: "subjectId", Reason: "required"}
	}
	if p.LevelID == "" {
		return p, &domain.ValidationError{Field: "levelId", Reason: "required"}
	}
	switch p.Type {
	case domain.QuizTypeRandom:
	case domain.QuizTypeTopical:
		if p.TopicID == "" {
			return p, &domain.ValidationError{Field: "topicId", Reason: "required for topical quizzes"}
		}
	case domain.QuizTypeTermly:
		if p.TermID == "" {
			return p, &domain.ValidationError{Field: "termId", Reason: "required for termly quizzes"}
		}
	default:
		return p, &domain.ValidationError{Field: "type", Reason: "must be random, topical, or termly"}
	}

	if p.QuestionCount == 0 {
		p.QuestionCount = g.bounds.DefaultQuestions
	}
	if p.QuestionCount < g.bounds.MinQuestions || p.QuestionCount > g.bounds.MaxQuestions {
		return p, &domain.ValidationError{Field: "questionCount", Reason: "out of range"}
	}
	if p.Difficulty == "" {
		p.Difficulty = domain.DifficultyMixed
	}
	switch p.Difficulty {
	case domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard, domain.DifficultyMixed:
	default:
		return p, &domain.ValidationError{Field: "difficulty", Reason: "must be easy, medium, hard, or mixed"}
	}
	if p.TimeLimit <= 0 {
		p.TimeLimit = g.bounds.DefaultTimeLimit
	}
	return p, nil
}

// DistributionCounts returns the per-difficulty target counts for a mixed
// draw of n questions. Floors per bucket; the remainder lands on medium.
func DistributionCounts(n int) map[domain.Difficulty]int {
	easy := int(float64(n) * mixedDistribution[domain.DifficultyEasy])
	hard := int(float64(n) * mixedDistribution[domain.DifficultyHard])
	return map[domain.Difficulty]int{
		domain.DifficultyEasy:   easy,
		domain.DifficultyMedium: n - easy - hard,
		domain.DifficultyHard:   hard,
	}
}

func (g *Generator) selectByDifficulty(pool []domain.Question, count int, difficulty domain.Difficulty) ([]domain.Question, error) {
	if difficulty != domain.DifficultyMixed {
		bucket := filterDifficulty(pool, difficulty)
		if len(bucket) < count {
			return nil, &domain.InsufficientQuestionsError{Difficulty: difficulty, Needed: count, Available: len(bucket)}
		}
		return g.draw(bucket, count), nil
	}

	targets := DistributionCounts(count)
	selected := make([]domain.Question, 0, count)
	for _, difficulty := range []domain.Difficulty{domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard} {
		need := targets[difficulty]
		if need == 0 {
			continue
		}
		bucket := filterDifficulty(pool, difficulty)
		if len(bucket) < need {
			return nil, &domain.InsufficientQuestionsError{Difficulty: difficulty, Needed: need, Available: len(bucket)}
		}
		selected = append(selected, g.draw(bucket, need)...)
	}
	g.rnd.Shuffle(len(selected), func(i, j int) {
		selected[i], selected[j] = selected[j], selected[i]
	})
	return selected, nil
}

// selectAcrossTopics spreads the draw over the term's topics, proportionally
// to the given weights or evenly when none are provided.
func (g *Generator) selectAcrossTopics(pool []domain.Question, count int, difficulty domain.Difficulty, weights map[string]float64) ([]domain.Question, error) {
	if difficulty != domain.DifficultyMixed {
		pool = filterDifficulty(pool, difficulty)
	}
	byTopic := make(map[string][]domain.Question)
	for _, q := range pool {
		byTopic[q.TopicID] = append(byTopic[q.TopicID], q)
	}
	if len(byTopic) == 0 {
		return nil, &domain.InsufficientQuestionsError{Difficulty: difficulty, Needed: count, Available: 0}
	}

	topics := make([]string, 0, len(byTopic))
	for topicID := range byTopic {
		topics = append(topics, topicID)
	}
	sort.Strings(topics)

	allocations := allocate(topics, count, weights)
	selected := make([]domain.Question, 0, count)
	for _, topicID := range topics {
		need := allocations[topicID]
		if need == 0 {
			continue
		}
		bucket := byTopic[topicID]
		if len(bucket) < need {
			return nil, &domain.InsufficientQuestionsError{Difficulty: difficulty, Needed: need, Available: len(bucket)}
		}
		selected = append(selected, g.draw(bucket, need)...)
	}
	g.rnd.Shuffle(len(selected), func(i, j int) {
		selected[i], selected[j] = selected[j], selected[i]
	})
	return selected, nil
}

// allocate splits count across topics. Floors the proportional share per
// topic and hands out the remainder one by one in topic order.
func allocate(topics []string, count int, weights map[string]float64) map[string]int {
	shares := make(map[string]float64, len(topics))
	total := 0.0
	for _, topicID := range topics {
		w := 1.0
		if weights != nil {
			if override, ok := weights[topicID]; ok && override > 0 {
				w = override
			}
		}
		shares[topicID] = w
		total += w
	}

	allocations := make(map[string]int, len(topics))
	assigned := 0
	for _, topicID := range topics {
		n := int(float64(count) * shares[topicID] / total)
		allocations[topicID] = n
		assigned += n
	}
	for i := 0; assigned < count; i++ {
		allocations[topics[i%len(topics)]]++
		assigned++
	}
	return allocations
}

func (g *Generator) draw(bucket []domain.Question, n int) []domain.Question {
	shuffled := make([]domain.Question, len(bucket))
	copy(shuffled, bucket)
	g.rnd.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:n]
}

func filterDifficulty(pool []domain.Question, difficulty domain.Difficulty) []domain.Question {
	filtered := make([]domain.Question, 0, len(pool))
	for _, q := range pool {
		if q.Difficulty == difficulty {
			filtered = append(filtered, q)
		}
	}
	return filtered
}

var difficultyRank = map[domain.Difficulty]int{
	domain.DifficultyEasy:   0,
	domain.DifficultyMedium: 1,
	domain.DifficultyHard:   2,
}

func sortAscendingDifficulty(questions []domain.Question) {
	sort.SliceStable(questions, func(i, j int) bool {
		return difficultyRank[questions[i].Difficulty] < difficultyRank[questions[j].Difficulty]
	})
}
