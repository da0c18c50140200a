package memory

import (
	"context"
	"maps"

	"quiz-ranking-service/internal/domain"
)

// ProfileStore is an in-memory profile.Repository with per-user optimistic versioning.
type ProfileStore struct {
	profiles *versioned[domain.Profile]
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{profiles: newVersioned(cloneProfile)}
}

func (s *ProfileStore) GetOrCreateProfile(_ context.Context, userID string) (domain.Profile, error) {
	p, version, ok := s.profiles.load(userID)
	if !ok {
		return domain.Profile{UserID: userID}, nil
	}
	p.Version = version
	return p, nil
}

func (s *ProfileStore) SaveProfile(_ context.Context, p domain.Profile) error {
	return s.profiles.compareAndSwap(p.UserID, p.Version, p)
}

func cloneProfile(p domain.Profile) domain.Profile {
	p.History = append([]domain.HistoryEntry(nil), p.History...)
	p.Achievements = append([]domain.Achievement(nil), p.Achievements...)
	p.Stats.Categories = maps.Clone(p.Stats.Categories)
	return p
}
