package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"quiz-ranking-service/internal/domain"
)

// ProfileStore keeps one versioned JSON document per user: profile:{userID}.
type ProfileStore struct {
	docs documentStore
}

func NewProfileStore(client *redis.Client) *ProfileStore {
	return &ProfileStore{docs: documentStore{client: client, prefix: "profile:"}}
}

func (s *ProfileStore) GetOrCreateProfile(ctx context.Context, userID string) (domain.Profile, error) {
	var p domain.Profile
	version, found, err := s.docs.load(ctx, userID, &p)
	if err != nil {
		return domain.Profile{}, err
	}
	if !found {
		return domain.Profile{UserID: userID}, nil
	}
	p.UserID = userID
	p.Version = version
	return p, nil
}

func (s *ProfileStore) SaveProfile(ctx context.Context, p domain.Profile) error {
	return s.docs.save(ctx, p.UserID, p.Version, p)
}
