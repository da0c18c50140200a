package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"quiz-ranking-service/internal/domain"
	"quiz-ranking-service/internal/leaderboard"
	"quiz-ranking-service/internal/profile"
	"quiz-ranking-service/internal/scoring"
)

// EventQuizCompleted is published after a completed session has been aggregated.
const EventQuizCompleted = "quiz.completed"

// SessionRepository abstracts where live sessions are kept (in-memory, Redis-marked, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// PlayCounter counts how many sessions were started per quiz.
type PlayCounter interface {
	IncrementPlays(ctx context.Context, quizID string) (int64, error)
}

// EventPublisher ships domain events to other services.
type EventPublisher interface {
	Publish(eventType string, payload interface{}) error
}

// RecordRequest is a completed result to aggregate into profile and boards.
type RecordRequest struct {
	UserID      string
	QuizID      string
	Category    string
	Difficulty  domain.Difficulty
	Result      domain.Result
	CompletedAt time.Time
}

// RecordOutcome is what a user gains from a recorded result.
type RecordOutcome struct {
	CategoryRank    int                  `json:"categoryRank"`
	GlobalRank      int                  `json:"globalRank"`
	NewAchievements []domain.Achievement `json:"newAchievements"`
}

// Option customizes a QuizService.
type Option func(*QuizService)

// WithClock replaces time.Now; used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

// WithTicker sets the countdown ticker. A nil factory disables the autonomous timer.
func WithTicker(factory TickerFactory, interval time.Duration) Option {
	return func(s *QuizService) {
		s.newTicker = factory
		s.tickInterval = interval
	}
}

// WithPlayCounter enables play counting on session start.
func WithPlayCounter(plays PlayCounter) Option {
	return func(s *QuizService) { s.plays = plays }
}

// WithPublisher enables completion events.
func WithPublisher(p EventPublisher) Option {
	return func(s *QuizService) { s.publisher = p }
}

// WithIDGenerator replaces the UUID session handle generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *QuizService) { s.newID = gen }
}

// QuizService contains the core quiz use cases.
type QuizService struct {
	sessions SessionRepository
	quizzes  QuizRepository
	profiles *profile.Engine
	boards   *leaderboard.Aggregator

	plays        PlayCounter
	publisher    EventPublisher
	now          func() time.Time
	newID        func() string
	newTicker    TickerFactory
	tickInterval time.Duration
}

func NewQuizService(store SessionRepository, quizzes QuizRepository, profiles *profile.Engine, boards *leaderboard.Aggregator, opts ...Option) *QuizService {
	s := &QuizService{
		sessions:     store,
		quizzes:      quizzes,
		profiles:     profiles,
		boards:       boards,
		now:          time.Now,
		newID:        uuid.NewString,
		newTicker:    NewTicker,
		tickInterval: time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartSession validates the quiz and opens a timed session for userID.
func (s *QuizService) StartSession(ctx context.Context, quizID, userID string) (*Session, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if err := scoring.Validate(quiz); err != nil {
		return nil, err
	}

	session := NewSession(s.newID(), userID, quiz, s.now, s.onComplete)
	s.sessions.Put(session)

	if s.plays != nil {
		if _, err := s.plays.IncrementPlays(ctx, quizID); err != nil {
			log.Printf("increment plays for quiz %s: %v", quizID, err)
		}
	}
	if s.newTicker != nil {
		session.StartTimer(s.newTicker, s.tickInterval)
	}
	return session, nil
}

// Session looks up a live session by handle.
func (s *QuizService) Session(_ context.Context, handle string) (*Session, error) {
	session, ok := s.sessions.Get(handle)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// SelectOption records a pending choice on the current question.
func (s *QuizService) SelectOption(ctx context.Context, handle string, option int) error {
	session, err := s.Session(ctx, handle)
	if err != nil {
		return err
	}
	return session.SelectOption(option)
}

// Advance commits the pending choice. The completion is non-nil when the last question was answered.
func (s *QuizService) Advance(ctx context.Context, handle string) (Snapshot, *Completion, error) {
	session, err := s.Session(ctx, handle)
	if err != nil {
		return Snapshot{}, nil, err
	}
	c, err := session.Advance()
	if err != nil {
		return Snapshot{}, nil, err
	}
	return session.Snapshot(), c, nil
}

// Retreat moves back one question.
func (s *QuizService) Retreat(ctx context.Context, handle string) (Snapshot, error) {
	session, err := s.Session(ctx, handle)
	if err != nil {
		return Snapshot{}, err
	}
	if err := session.Retreat(); err != nil {
		return Snapshot{}, err
	}
	return session.Snapshot(), nil
}

// SubmitNow ends the session immediately; unanswered questions count as incorrect.
func (s *QuizService) SubmitNow(ctx context.Context, handle string) (domain.Result, error) {
	session, err := s.Session(ctx, handle)
	if err != nil {
		return domain.Result{}, err
	}
	return session.SubmitNow().Result, nil
}

// Abandon discards an unfinished session without recording anything.
func (s *QuizService) Abandon(_ context.Context, handle string) {
	session, ok := s.sessions.Get(handle)
	if !ok {
		return
	}
	session.Abandon()
	s.sessions.Delete(handle)
}

// RecordResult folds a result into the user's profile and into the category and global boards.
func (s *QuizService) RecordResult(ctx context.Context, req RecordRequest) (RecordOutcome, error) {
	if req.CompletedAt.IsZero() {
		req.CompletedAt = s.now()
	}
	req.Category = leaderboard.NormalizeCategory(req.Category)

	var (
		outcome              RecordOutcome
		applied              profile.Applied
		ranks                leaderboard.Ranks
		profileErr, boardErr error
	)
	// both branches run to completion: a failing profile update must not cancel the ranking
	var g errgroup.Group
	g.Go(func() error {
		applied, profileErr = s.profiles.Apply(ctx, profile.Update{
			UserID:      req.UserID,
			QuizID:      req.QuizID,
			Category:    req.Category,
			Difficulty:  req.Difficulty,
			Result:      req.Result,
			CompletedAt: req.CompletedAt,
		})
		return nil
	})
	g.Go(func() error {
		ranks, boardErr = s.boards.Record(ctx, leaderboard.Update{
			UserID:       req.UserID,
			Category:     req.Category,
			ScorePercent: req.Result.ScorePercent,
			Points:       req.Result.Points,
			At:           req.CompletedAt,
		})
		return nil
	})
	_ = g.Wait()

	outcome.CategoryRank = ranks.Category
	outcome.GlobalRank = ranks.Global
	outcome.NewAchievements = applied.NewAchievements
	if err := errors.Join(profileErr, boardErr); err != nil {
		return outcome, fmt.Errorf("record result for %s: %w", req.UserID, err)
	}
	return outcome, nil
}

// Leaderboard returns the ranked board of category, or the global board when category is empty.
func (s *QuizService) Leaderboard(ctx context.Context, category string) (domain.Board, error) {
	key := leaderboard.GlobalKey
	if category != "" {
		key = leaderboard.CategoryKey(category)
	}
	return s.boards.Board(ctx, key)
}

// Profile returns the statistics, history and achievements of userID.
func (s *QuizService) Profile(ctx context.Context, userID string) (domain.Profile, error) {
	return s.profiles.Get(ctx, userID)
}

// onComplete discards the session and aggregates its result. Aggregation is not tied to any
// request context: once a result exists it must be recorded.
func (s *QuizService) onComplete(c Completion) (*RecordOutcome, error) {
	s.sessions.Delete(c.SessionID)
	if c.Reason == ReasonTimeout {
		log.Printf("session %s timed out for user %s on quiz %s", c.SessionID, c.UserID, c.QuizID)
	}

	outcome, err := s.RecordResult(context.Background(), RecordRequest{
		UserID:      c.UserID,
		QuizID:      c.QuizID,
		Category:    c.Category,
		Difficulty:  c.Difficulty,
		Result:      c.Result,
		CompletedAt: c.CompletedAt,
	})
	if err != nil {
		log.Printf("aggregate session %s: %v", c.SessionID, err)
		return nil, err
	}

	if s.publisher != nil {
		c.Outcome = &outcome
		if err := s.publisher.Publish(EventQuizCompleted, c); err != nil {
			log.Printf("publish %s for session %s: %v", EventQuizCompleted, c.SessionID, err)
		}
	}
	return &outcome, nil
}
