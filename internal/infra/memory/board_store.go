package memory

import (
	"context"

	"quiz-ranking-service/internal/domain"
)

// BoardStore is an in-memory leaderboard.Repository with per-board optimistic versioning.
type BoardStore struct {
	boards *versioned[domain.Board]
}

func NewBoardStore() *BoardStore {
	return &BoardStore{boards: newVersioned(cloneBoard)}
}

func (s *BoardStore) GetOrCreateBoard(_ context.Context, key string) (domain.Board, error) {
	board, version, ok := s.boards.load(key)
	if !ok {
		return domain.Board{Key: key}, nil
	}
	board.Version = version
	return board, nil
}

func (s *BoardStore) SaveBoard(_ context.Context, b domain.Board) error {
	return s.boards.compareAndSwap(b.Key, b.Version, b)
}

func cloneBoard(b domain.Board) domain.Board {
	b.Entries = append([]domain.LeaderboardEntry(nil), b.Entries...)
	return b
}
