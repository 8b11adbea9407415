package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"sparks-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionSource reads the question pool from Postgres. Rows carry the scope
// columns for filtering plus the full question as JSONB.
type QuestionSource struct {
	pool *pgxpool.Pool
}

func NewQuestionSource(pool *pgxpool.Pool) *QuestionSource {
	return &QuestionSource{pool: pool}
}

func (s *QuestionSource) ListQuestions(ctx context.Context, subjectID, levelID, topicID, termID string) ([]domain.Question, error) {
	query := `SELECT data FROM questions WHERE subject_id=$1 AND level_id=$2`
	args := []interface{}{subjectID, levelID}
	if topicID != "" {
		args = append(args, topicID)
		query += fmt.Sprintf(` AND topic_id=$%d`, len(args))
	}
	if termID != "" {
		args = append(args, termID)
		query += fmt.Sprintf(` AND term_id=$%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		var q domain.Question
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, fmt.Errorf("unmarshal question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
