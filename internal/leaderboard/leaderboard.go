// Package leaderboard keeps the per-category and global rankings.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"quiz-ranking-service/internal/domain"
)

// GlobalKey addresses the platform-wide board.
const GlobalKey = "global"

// DefaultCategory is used for quizzes without a category label.
const DefaultCategory = "uncategorized"

// DefaultMaxAttempts bounds optimistic retries when none is configured.
const DefaultMaxAttempts = 5

const categoryPrefix = "category:"

// NormalizeCategory trims a category label and maps an empty one to DefaultCategory.
func NormalizeCategory(category string) string {
	category = strings.TrimSpace(category)
	if category == "" {
		return DefaultCategory
	}
	return category
}

// CategoryKey addresses the board of a category.
func CategoryKey(category string) string {
	return categoryPrefix + NormalizeCategory(category)
}

func categoryOf(key string) string {
	if !strings.HasPrefix(key, categoryPrefix) {
		return ""
	}
	return strings.TrimPrefix(key, categoryPrefix)
}

// Repository stores boards with optimistic versioning.
type Repository interface {
	// GetOrCreateBoard returns the stored board or an empty one with Version 0.
	GetOrCreateBoard(ctx context.Context, key string) (domain.Board, error)
	// SaveBoard persists b if the stored version still equals b.Version, else ErrConflict.
	SaveBoard(ctx context.Context, b domain.Board) error
}

// Update is one scored result to add to the boards.
type Update struct {
	UserID       string
	Category     string
	ScorePercent int
	Points       int
	At           time.Time
}

// Ranks are the positions of a user after an update.
type Ranks struct {
	Category int `json:"categoryRank"`
	Global   int `json:"globalRank"`
}

// Aggregator applies updates to boards atomically per board.
type Aggregator struct {
	repo        Repository
	maxAttempts int
}

func NewAggregator(repo Repository, maxAttempts int) *Aggregator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Aggregator{repo: repo, maxAttempts: maxAttempts}
}

// Record applies u to the category board and then to the global board.
func (a *Aggregator) Record(ctx context.Context, u Update) (Ranks, error) {
	categoryRank, err := a.apply(ctx, CategoryKey(u.Category), u)
	if err != nil {
		return Ranks{}, err
	}
	globalRank, err := a.apply(ctx, GlobalKey, u)
	if err != nil {
		return Ranks{Category: categoryRank}, err
	}
	return Ranks{Category: categoryRank, Global: globalRank}, nil
}

// Board returns a ranked snapshot of the board stored under key.
func (a *Aggregator) Board(ctx context.Context, key string) (domain.Board, error) {
	b, err := a.repo.GetOrCreateBoard(ctx, key)
	if err != nil {
		return domain.Board{}, fmt.Errorf("load board %s: %w", key, err)
	}
	b.Key, b.Category = key, categoryOf(key)
	Rerank(b.Entries)
	return b, nil
}

func (a *Aggregator) apply(ctx context.Context, key string, u Update) (int, error) {
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		b, err := a.repo.GetOrCreateBoard(ctx, key)
		if err != nil {
			return 0, fmt.Errorf("load board %s: %w", key, err)
		}

		b.Key, b.Category = key, categoryOf(key)
		rank := Apply(&b, u)

		err = a.repo.SaveBoard(ctx, b)
		if err == nil {
			return rank, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return 0, fmt.Errorf("save board %s: %w", key, err)
		}
	}
	return 0, fmt.Errorf("save board %s after %d attempts: %w", key, a.maxAttempts, domain.ErrConflict)
}

// Apply adds u to b, re-sorts the whole board and returns the user's new rank.
func Apply(b *domain.Board, u Update) int {
	entries := make([]domain.LeaderboardEntry, len(b.Entries))
	copy(entries, b.Entries)

	found := false
	for i := range entries {
		e := &entries[i]
		if e.UserID != u.UserID {
			continue
		}
		e.QuizzesTaken++
		e.TotalPoints += u.Points
		e.AverageScore = (e.AverageScore*float64(e.QuizzesTaken-1) + float64(u.ScorePercent)) / float64(e.QuizzesTaken)
		e.LastActive = u.At
		found = true
		break
	}
	if !found {
		entries = append(entries, domain.LeaderboardEntry{
			UserID:       u.UserID,
			QuizzesTaken: 1,
			AverageScore: float64(u.ScorePercent),
			TotalPoints:  u.Points,
			LastActive:   u.At,
			Seq:          b.NextSeq,
		})
		b.NextSeq++
	}

	Rerank(entries)
	b.Entries = entries
	b.UpdatedAt = u.At

	for _, e := range entries {
		if e.UserID == u.UserID {
			return e.Rank
		}
	}
	return 0
}

// Rerank orders entries by total points (ties by insertion sequence) and assigns dense ranks.
func Rerank(entries []domain.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].TotalPoints != entries[j].TotalPoints {
			return entries[i].TotalPoints > entries[j].TotalPoints
		}
		return entries[i].Seq < entries[j].Seq
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
}
