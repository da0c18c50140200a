// Package profile maintains per-user running statistics, history and achievements.
package profile

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"time"

	"quiz-ranking-service/internal/achievements"
	"quiz-ranking-service/internal/domain"
)

// StreakWindow is the largest gap between two completions that keeps a streak alive.
const StreakWindow = 24 * time.Hour

// DefaultMaxAttempts bounds optimistic retries when none is configured.
const DefaultMaxAttempts = 5

// Repository stores profiles with optimistic versioning.
type Repository interface {
	// GetOrCreateProfile returns the stored profile or an empty one with Version 0.
	GetOrCreateProfile(ctx context.Context, userID string) (domain.Profile, error)
	// SaveProfile persists p if the stored version still equals p.Version, else ErrConflict.
	SaveProfile(ctx context.Context, p domain.Profile) error
}

// Update is one completed quiz to fold into a profile.
type Update struct {
	UserID      string
	QuizID      string
	Category    string
	Difficulty  domain.Difficulty
	Result      domain.Result
	CompletedAt time.Time
}

// Applied is the outcome of a successful profile update.
type Applied struct {
	Profile         domain.Profile
	NewAchievements []domain.Achievement
}

// Engine applies results to profiles.
type Engine struct {
	repo        Repository
	maxAttempts int
}

func NewEngine(repo Repository, maxAttempts int) *Engine {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Engine{repo: repo, maxAttempts: maxAttempts}
}

// Apply folds u into the user's profile, retrying on concurrent modification.
func (e *Engine) Apply(ctx context.Context, u Update) (Applied, error) {
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		p, err := e.repo.GetOrCreateProfile(ctx, u.UserID)
		if err != nil {
			return Applied{}, fmt.Errorf("load profile %s: %w", u.UserID, err)
		}

		earned := ApplyResult(&p, u)

		err = e.repo.SaveProfile(ctx, p)
		if err == nil {
			p.Version++
			return Applied{Profile: p, NewAchievements: earned}, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return Applied{}, fmt.Errorf("save profile %s: %w", u.UserID, err)
		}
	}
	return Applied{}, fmt.Errorf("save profile %s after %d attempts: %w", u.UserID, e.maxAttempts, domain.ErrConflict)
}

// Get returns the user's profile, creating an empty view when none exists yet.
func (e *Engine) Get(ctx context.Context, userID string) (domain.Profile, error) {
	return e.repo.GetOrCreateProfile(ctx, userID)
}

// ApplyResult mutates p with u and returns the achievements unlocked by it.
func ApplyResult(p *domain.Profile, u Update) []domain.Achievement {
	if p.UserID == "" {
		p.UserID = u.UserID
	}
	s := &p.Stats
	res := u.Result

	s.TotalQuizzesTaken++
	s.TotalCorrectAnswers += res.CorrectCount
	s.TotalQuestions += res.TotalQuestions
	s.AverageScore = (s.AverageScore*float64(s.TotalQuizzesTaken-1) + float64(res.ScorePercent)) / float64(s.TotalQuizzesTaken)

	s.QuizStreak = nextStreak(s.QuizStreak, s.LastQuizDate, u.CompletedAt)
	if u.CompletedAt.After(s.LastQuizDate) {
		s.LastQuizDate = u.CompletedAt
	}

	// stored profiles may share the map with a cache; never mutate it in place
	categories := maps.Clone(s.Categories)
	if categories == nil {
		categories = make(map[string]domain.CategoryStats)
	}
	s.Categories = categories
	cs := s.Categories[u.Category]
	cs.QuizzesTaken++
	cs.ScoreSum += res.ScorePercent
	s.Categories[u.Category] = cs
	s.BestCategory = bestCategory(s.Categories)

	entry := domain.HistoryEntry{
		QuizID:           u.QuizID,
		Category:         u.Category,
		Difficulty:       u.Difficulty,
		Score:            res.ScorePercent,
		TotalQuestions:   res.TotalQuestions,
		CorrectAnswers:   res.CorrectCount,
		TimeTakenSeconds: res.TimeSpentSeconds,
		Points:           res.Points,
		CompletedAt:      u.CompletedAt,
	}
	p.History = append([]domain.HistoryEntry{entry}, p.History...)

	earned := achievements.Grant(achievements.Evaluate(*s, res, p.Achievements), u.CompletedAt)
	p.Achievements = append(p.Achievements, earned...)
	return earned
}

// nextStreak extends the streak when completedAt falls within StreakWindow of last, in
// either direction. A late result dated before last counts only if it is that close.
func nextStreak(streak int, last, completedAt time.Time) int {
	if last.IsZero() || streak == 0 {
		return 1
	}
	gap := completedAt.Sub(last)
	if gap < 0 {
		gap = -gap
	}
	if gap <= StreakWindow {
		return streak + 1
	}
	return 1
}

func bestCategory(categories map[string]domain.CategoryStats) string {
	names := make([]string, 0, len(categories))
	for name, cs := range categories {
		if cs.QuizzesTaken > 0 {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := categories[names[i]], categories[names[j]]
		// compare means without division: a.sum/a.n vs b.sum/b.n
		left, right := a.ScoreSum*b.QuizzesTaken, b.ScoreSum*a.QuizzesTaken
		if left != right {
			return left > right
		}
		if a.QuizzesTaken != b.QuizzesTaken {
			return a.QuizzesTaken > b.QuizzesTaken
		}
		return names[i] < names[j]
	})
	return names[0]
}
