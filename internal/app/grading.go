package app

import (
	"sort"

	"sparks-quiz-service/internal/domain"
)

// GradeBand maps a minimum percentage to a letter grade.
type GradeBand struct {
	Min   int    `json:"min" yaml:"min"`
	Grade string `json:"grade" yaml:"grade"`
}

// Settings carries the scoring and reward policy the service applies. Marks
// and sparks are independently configurable but default to the same table.
type Settings struct {
	Marks          map[domain.Difficulty]int
	Sparks         domain.SparkPolicy
	GradeBands     []GradeBand
	ShuffleChoices bool
}

// DefaultSettings is the platform default: easy=5, medium=10, hard=15 for
// both marks and sparks, completion bonus 20, perfect bonus 50.
func DefaultSettings() Settings {
	return Settings{
		Marks: map[domain.Difficulty]int{
			domain.DifficultyEasy:   5,
			domain.DifficultyMedium: 10,
			domain.DifficultyHard:   15,
		},
		Sparks: domain.SparkPolicy{
			PerDifficulty: map[domain.Difficulty]int{
				domain.DifficultyEasy:   5,
				domain.DifficultyMedium: 10,
				domain.DifficultyHard:   15,
			},
			CompletionBonus:   20,
			PerfectScoreBonus: 50,
		},
		GradeBands: []GradeBand{
			{Min: 80, Grade: "A"},
			{Min: 70, Grade: "B"},
			{Min: 60, Grade: "C"},
			{Min: 50, Grade: "D"},
			{Min: 0, Grade: "E"},
		},
		ShuffleChoices: false,
	}
}

// gradeFor picks the highest band whose minimum the percentage meets.
func gradeFor(percentage int, bands []GradeBand) string {
	sorted := make([]GradeBand, len(bands))
	copy(sorted, bands)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Min > sorted[j].Min })
	for _, band := range sorted {
		if percentage >= band.Min {
			return band.Grade
		}
	}
	return ""
}
