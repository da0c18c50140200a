// Package scoring turns the answers of a finished session into a Result.
package scoring

import (
	"fmt"
	"math"

	"quiz-ranking-service/internal/domain"
)

// TimeBonusPerSecond is awarded for every second left on the clock.
const TimeBonusPerSecond = 0.1

// Validate rejects quizzes that cannot be played.
func Validate(quiz domain.Quiz) error {
	if len(quiz.Questions) == 0 {
		return fmt.Errorf("%w: quiz %q has no questions", domain.ErrInvalidQuiz, quiz.ID)
	}
	if quiz.DurationMinutes <= 0 {
		return fmt.Errorf("%w: quiz %q has no duration", domain.ErrInvalidQuiz, quiz.ID)
	}
	for i, q := range quiz.Questions {
		if !hasCorrectOption(q) {
			return fmt.Errorf("%w: question %d of quiz %q has no correct option", domain.ErrInvalidQuiz, i, quiz.ID)
		}
	}
	return nil
}

func hasCorrectOption(q domain.Question) bool {
	for _, opt := range q.Options {
		if opt.Correct {
			return true
		}
	}
	return false
}

// Multiplier returns the point multiplier of a difficulty tier. Unknown tiers score as Easy.
func Multiplier(d domain.Difficulty) float64 {
	switch d {
	case domain.DifficultyMedium:
		return 1.5
	case domain.DifficultyHard:
		return 2.0
	default:
		return 1.0
	}
}

// Calculate builds the Result of a session. Questions without an answer count as incorrect;
// when several answers target the same question the last one wins.
func Calculate(quiz domain.Quiz, answers []domain.Answer, timeSpentSeconds int) (domain.Result, error) {
	total := len(quiz.Questions)
	if total == 0 {
		return domain.Result{}, fmt.Errorf("%w: quiz %q has no questions", domain.ErrInvalidQuiz, quiz.ID)
	}
	if timeSpentSeconds < 0 {
		timeSpentSeconds = 0
	}

	byQuestion := make(map[int]bool, len(answers))
	for _, a := range answers {
		if a.QuestionIndex < 0 || a.QuestionIndex >= total {
			continue
		}
		byQuestion[a.QuestionIndex] = a.Correct
	}
	correct := 0
	for _, ok := range byQuestion {
		if ok {
			correct++
		}
	}

	score := roundHalfUp(100 * float64(correct) / float64(total))
	return domain.Result{
		ScorePercent:              score,
		CorrectCount:              correct,
		IncorrectCount:            total - correct,
		TotalQuestions:            total,
		TimeSpentSeconds:          timeSpentSeconds,
		AverageSecondsPerQuestion: roundHalfUp(float64(timeSpentSeconds) / float64(total)),
		Points:                    Points(score, quiz.DurationSeconds(), timeSpentSeconds, quiz.Difficulty),
	}, nil
}

// Points derives the leaderboard value of a score.
func Points(scorePercent, durationSeconds, timeSpentSeconds int, difficulty domain.Difficulty) int {
	bonus := math.Max(0, float64(durationSeconds-timeSpentSeconds)*TimeBonusPerSecond)
	return roundHalfUp((float64(scorePercent)*10 + bonus) * Multiplier(difficulty))
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
