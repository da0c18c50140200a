package memory

import (
	"context"
	"errors"
	"testing"

	"quiz-ranking-service/internal/domain"
)

func TestBoardStoreRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	store := NewBoardStore()

	first, _ := store.GetOrCreateBoard(ctx, "global")
	second, _ := store.GetOrCreateBoard(ctx, "global")

	first.Entries = append(first.Entries, domain.LeaderboardEntry{UserID: "u1", TotalPoints: 10})
	if err := store.SaveBoard(ctx, first); err != nil {
		t.Fatalf("save first: %v", err)
	}
	second.Entries = append(second.Entries, domain.LeaderboardEntry{UserID: "u2", TotalPoints: 20})
	if err := store.SaveBoard(ctx, second); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	got, _ := store.GetOrCreateBoard(ctx, "global")
	if got.Version != 1 || len(got.Entries) != 1 || got.Entries[0].UserID != "u1" {
		t.Fatalf("unexpected stored board %+v", got)
	}
}

func TestBoardStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewBoardStore()
	b, _ := store.GetOrCreateBoard(ctx, "global")
	b.Entries = []domain.LeaderboardEntry{{UserID: "u1", TotalPoints: 10}}
	_ = store.SaveBoard(ctx, b)

	loaded, _ := store.GetOrCreateBoard(ctx, "global")
	loaded.Entries[0].TotalPoints = 999

	again, _ := store.GetOrCreateBoard(ctx, "global")
	if again.Entries[0].TotalPoints != 10 {
		t.Fatalf("stored board was mutated through a loaded copy")
	}
}

func TestProfileStoreVersions(t *testing.T) {
	ctx := context.Background()
	store := NewProfileStore()

	p, _ := store.GetOrCreateProfile(ctx, "u1")
	if p.UserID != "u1" || p.Version != 0 {
		t.Fatalf("unexpected new profile %+v", p)
	}
	p.Stats.Categories = map[string]domain.CategoryStats{"science": {QuizzesTaken: 1, ScoreSum: 50}}
	if err := store.SaveProfile(ctx, p); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.SaveProfile(ctx, p); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict on stale save, got %v", err)
	}

	loaded, _ := store.GetOrCreateProfile(ctx, "u1")
	loaded.Stats.Categories["science"] = domain.CategoryStats{}
	again, _ := store.GetOrCreateProfile(ctx, "u1")
	if again.Version != 1 || again.Stats.Categories["science"].ScoreSum != 50 {
		t.Fatalf("unexpected stored profile %+v", again)
	}
}

func TestPlayCounter(t *testing.T) {
	counter := NewPlayCounter()
	for i := 0; i < 3; i++ {
		if _, err := counter.IncrementPlays(context.Background(), "quiz-1"); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	if counter.Plays("quiz-1") != 3 {
		t.Fatalf("expected 3 plays, got %d", counter.Plays("quiz-1"))
	}
}
