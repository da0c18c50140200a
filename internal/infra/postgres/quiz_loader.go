package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-ranking-service/internal/domain"
)

// QuizLoader loads quiz JSONB from Postgres.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM quizzes WHERE id=$1`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, fmt.Errorf("load quiz %s: %w", quizID, domain.ErrQuizNotFound)
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	if quiz.ID == "" {
		quiz.ID = quizID
	}
	return quiz, nil
}

// IncrementPlays bumps the play counter stored next to the quiz.
func (l *QuizLoader) IncrementPlays(ctx context.Context, quizID string) (int64, error) {
	var plays int64
	err := l.pool.QueryRow(ctx, `UPDATE quizzes SET plays = plays + 1 WHERE id=$1 RETURNING plays`, quizID).Scan(&plays)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("increment plays %s: %w", quizID, domain.ErrQuizNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("increment plays: %w", err)
	}
	return plays, nil
}
