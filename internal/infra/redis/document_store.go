package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"quiz-ranking-service/internal/domain"
)

// envelope is the stored form of a versioned document.
type envelope struct {
	Version int64           `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// documentStore keeps JSON documents under a key prefix and guards writes with
// WATCH/MULTI so a stale version never overwrites a newer one.
type documentStore struct {
	client *redis.Client
	prefix string
}

func (s documentStore) key(id string) string {
	return s.prefix + id
}

// load decodes the document into dst and returns its version; found is false on a miss.
func (s documentStore) load(ctx context.Context, id string, dst interface{}) (int64, bool, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get %s: %w", s.key(id), err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return 0, false, fmt.Errorf("decode %s: %w", s.key(id), err)
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return 0, false, fmt.Errorf("decode %s data: %w", s.key(id), err)
	}
	return env.Version, true, nil
}

// save writes value as version expected+1 if the stored version is still expected.
func (s documentStore) save(ctx context.Context, id string, expected int64, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(envelope{Version: expected + 1, Data: data})
	if err != nil {
		return err
	}

	key := s.key(id)
	txf := func(tx *redis.Tx) error {
		current, err := currentVersion(ctx, tx, key)
		if err != nil {
			return err
		}
		if current != expected {
			return domain.ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		return err
	}

	err = s.client.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		return domain.ErrConflict
	}
	return err
}

func currentVersion(ctx context.Context, tx *redis.Tx, key string) (int64, error) {
	raw, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return 0, fmt.Errorf("decode %s: %w", key, err)
	}
	return env.Version, nil
}
