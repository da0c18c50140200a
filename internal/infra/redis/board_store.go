package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"quiz-ranking-service/internal/domain"
)

// BoardStore keeps one versioned JSON document per board: leaderboard:{key}.
type BoardStore struct {
	docs documentStore
}

func NewBoardStore(client *redis.Client) *BoardStore {
	return &BoardStore{docs: documentStore{client: client, prefix: "leaderboard:"}}
}

func (s *BoardStore) GetOrCreateBoard(ctx context.Context, key string) (domain.Board, error) {
	var b domain.Board
	version, found, err := s.docs.load(ctx, key, &b)
	if err != nil {
		return domain.Board{}, err
	}
	if !found {
		return domain.Board{Key: key}, nil
	}
	b.Key = key
	b.Version = version
	return b, nil
}

func (s *BoardStore) SaveBoard(ctx context.Context, b domain.Board) error {
	return s.docs.save(ctx, b.Key, b.Version, b)
}
