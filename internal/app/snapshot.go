package app

import (
	"math/rand"
	"time"

	"sparks-quiz-service/internal/domain"
)

// BuildSnapshot freezes the resolved question selection for a session. All
// content and correct flags are deep-copied so later edits to the pool never
// reach a session in progress. Choice order is shuffled here (when enabled),
// not at render time, so reloads present the same order.
func BuildSnapshot(questions []domain.Question, timeLimit time.Duration, marks map[domain.Difficulty]int, sparks domain.SparkPolicy, shuffleChoices bool, rnd *rand.Rand, takenAt time.Time) domain.Snapshot {
	frozen := make([]domain.SnapshotQuestion, len(questions))
	totalMarks := 0
	for i, q := range questions {
		choices := make([]domain.Choice, len(q.Choices))
		copy(choices, q.Choices)
		if shuffleChoices && q.Type != domain.QuestionTypeTrueFalse {
			rnd.Shuffle(len(choices), func(a, b int) {
				choices[a], choices[b] = choices[b], choices[a]
			})
		}
		m := marks[q.Difficulty]
		frozen[i] = domain.SnapshotQuestion{
			OrderIndex:  i,
			QuestionID:  q.ID,
			Type:        q.Type,
			Prompt:      q.Prompt,
			Explanation: q.Explanation,
			Difficulty:  q.Difficulty,
			Marks:       m,
			Choices:     choices,
		}
		totalMarks += m
	}
	return domain.Snapshot{
		Questions:  frozen,
		TotalMarks: totalMarks,
		TimeLimit:  timeLimit,
		Sparks:     copySparkPolicy(sparks),
		TakenAt:    takenAt,
	}
}

func copySparkPolicy(p domain.SparkPolicy) domain.SparkPolicy {
	per := make(map[domain.Difficulty]int, len(p.PerDifficulty))
	for difficulty, sparks := range p.PerDifficulty {
		per[difficulty] = sparks
	}
	return domain.SparkPolicy{
		PerDifficulty:     per,
		CompletionBonus:   p.CompletionBonus,
		PerfectScoreBonus: p.PerfectScoreBonus,
	}
}
