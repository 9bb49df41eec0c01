package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizboard-service/internal/domain"
)

// QuizRepository loads quiz content stored as JSONB in Postgres.
type QuizRepository struct {
	pool *pgxpool.Pool
}

func NewQuizRepository(pool *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{pool: pool}
}

func (r *QuizRepository) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM quizzes ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	var quizzes []domain.Quiz
	for rows.Next() {
		var q domain.Quiz
		if err := rows.Scan(&q.ID, &q.Name); err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		quizzes = append(quizzes, q)
	}
	return quizzes, rows.Err()
}

func (r *QuizRepository) LoadQuiz(ctx context.Context, quizID string) (domain.QuizContent, error) {
	var name string
	var raw []byte
	err := r.pool.QueryRow(ctx, `SELECT name, data FROM quizzes WHERE id=$1`, quizID).Scan(&name, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizContent{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.QuizContent{}, fmt.Errorf("load quiz: %w", err)
	}

	var questions []domain.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return domain.QuizContent{}, fmt.Errorf("unmarshal quiz %s: %w", quizID, err)
	}
	if len(questions) == 0 {
		return domain.QuizContent{}, domain.ErrNoQuestions
	}
	return domain.QuizContent{
		Quiz:      domain.Quiz{ID: quizID, Name: name},
		Questions: questions,
	}, nil
}
