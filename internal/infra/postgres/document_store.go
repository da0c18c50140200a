package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"quiz-ranking-service/internal/domain"
)

const (
	kindBoard   = "board"
	kindProfile = "profile"
)

type documentRow struct {
	bun.BaseModel `bun:"table:documents"`

	Kind      string          `bun:"kind,pk"`
	Key       string          `bun:"key,pk"`
	Version   int64           `bun:"version,notnull"`
	Data      json.RawMessage `bun:"data,type:jsonb,notnull"`
	UpdatedAt time.Time       `bun:"updated_at,notnull"`
}

// documentStore keeps versioned JSON documents in the documents table. A write only lands
// when the row still carries the version the caller read.
type documentStore struct {
	db   *bun.DB
	kind string
	now  func() time.Time
}

func (s documentStore) load(ctx context.Context, key string, dst interface{}) (int64, bool, error) {
	row := new(documentRow)
	err := s.db.NewSelect().
		Model(row).
		Where("kind = ?", s.kind).
		Where("key = ?", key).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("select %s %s: %w", s.kind, key, err)
	}
	if err := json.Unmarshal(row.Data, dst); err != nil {
		return 0, false, fmt.Errorf("decode %s %s: %w", s.kind, key, err)
	}
	return row.Version, true, nil
}

func (s documentStore) save(ctx context.Context, key string, expected int64, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	row := &documentRow{
		Kind:      s.kind,
		Key:       key,
		Version:   expected + 1,
		Data:      data,
		UpdatedAt: s.now(),
	}

	var res sql.Result
	if expected == 0 {
		res, err = s.db.NewInsert().
			Model(row).
			On("CONFLICT (kind, key) DO NOTHING").
			Exec(ctx)
	} else {
		res, err = s.db.NewUpdate().
			Model(row).
			Column("version", "data", "updated_at").
			Where("kind = ?", s.kind).
			Where("key = ?", key).
			Where("version = ?", expected).
			Exec(ctx)
	}
	if err != nil {
		return fmt.Errorf("write %s %s: %w", s.kind, key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrConflict
	}
	return nil
}

// BoardStore is a leaderboard.Repository backed by Postgres.
type BoardStore struct {
	docs documentStore
}

func NewBoardStore(db *bun.DB) *BoardStore {
	return &BoardStore{docs: documentStore{db: db, kind: kindBoard, now: time.Now}}
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

// ProfileStore is a profile.Repository backed by Postgres.
type ProfileStore struct {
	docs documentStore
}

func NewProfileStore(db *bun.DB) *ProfileStore {
	return &ProfileStore{docs: documentStore{db: db, kind: kindProfile, now: time.Now}}
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
