// Package achievements decides which badges a result unlocks.
package achievements

import (
	"time"

	"quiz-ranking-service/internal/domain"
)

const (
	FirstQuiz    = "first_quiz"
	PerfectScore = "perfect_score"
	SpeedDemon   = "speed_demon"
	StreakMaster = "streak_master"
)

const (
	speedDemonLimitSeconds = 5 * 60
	streakMasterDays       = 7
)

// Definition describes how an achievement is shown to users.
type Definition struct {
	ID          string
	Name        string
	Description string
	Icon        string
}

// Catalog lists every achievement in evaluation order.
var Catalog = []Definition{
	{ID: FirstQuiz, Name: "First Steps", Description: "Complete your first quiz", Icon: "🎯"},
	{ID: PerfectScore, Name: "Perfect Score", Description: "Get 100% on any quiz", Icon: "🏆"},
	{ID: SpeedDemon, Name: "Speed Demon", Description: "Complete a quiz in under 5 minutes", Icon: "⚡"},
	{ID: StreakMaster, Name: "Streak Master", Description: "Maintain a 7-day quiz streak", Icon: "🔥"},
}

// Evaluate returns the identifiers newly unlocked by result, given the already updated stats.
// Identifiers present in earned are never returned again.
func Evaluate(stats domain.ProfileStats, result domain.Result, earned []domain.Achievement) []string {
	have := make(map[string]bool, len(earned))
	for _, a := range earned {
		if a.Earned {
			have[a.ID] = true
		}
	}

	rules := map[string]bool{
		FirstQuiz:    stats.TotalQuizzesTaken == 1,
		PerfectScore: result.ScorePercent == 100,
		SpeedDemon:   result.TimeSpentSeconds < speedDemonLimitSeconds,
		StreakMaster: stats.QuizStreak >= streakMasterDays,
	}

	var unlocked []string
	for _, def := range Catalog {
		if rules[def.ID] && !have[def.ID] {
			unlocked = append(unlocked, def.ID)
		}
	}
	return unlocked
}

// Grant materializes identifiers into achievement records stamped with at.
func Grant(ids []string, at time.Time) []domain.Achievement {
	out := make([]domain.Achievement, 0, len(ids))
	for _, id := range ids {
		def, ok := Lookup(id)
		if !ok {
			continue
		}
		out = append(out, domain.Achievement{
			ID:          def.ID,
			Name:        def.Name,
			Description: def.Description,
			Icon:        def.Icon,
			Earned:      true,
			EarnedAt:    at,
		})
	}
	return out
}

// Lookup finds a catalog definition by identifier.
func Lookup(id string) (Definition, bool) {
	for _, def := range Catalog {
		if def.ID == id {
			return def, true
		}
	}
	return Definition{}, false
}
