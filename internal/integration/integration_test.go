package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun/migrate"

	"quiz-ranking-service/internal/achievements"
	"quiz-ranking-service/internal/app"
	"quiz-ranking-service/internal/domain"
	"quiz-ranking-service/internal/infra/postgres"
	pgmigrations "quiz-ranking-service/internal/infra/postgres/migrations"
	infraredis "quiz-ranking-service/internal/infra/redis"
	"quiz-ranking-service/internal/leaderboard"
	"quiz-ranking-service/internal/profile"
)

func TestCompletedSessionsAreRankedEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := postgres.OpenBun(pgURL)
	defer db.Close()
	seedQuiz(t, ctx, pgURL, sampleQuiz())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	loader := postgres.NewQuizLoader(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	service := app.NewQuizService(
		infraredis.NewSessionStore(redisClient, 5*time.Minute),
		infraredis.NewQuizRepository(redisClient, loader, 5*time.Minute),
		profile.NewEngine(postgres.NewProfileStore(db), 5),
		leaderboard.NewAggregator(postgres.NewBoardStore(db), 20),
		app.WithTicker(nil, 0),
		app.WithPlayCounter(loader),
	)

	// u1 answers both questions correctly, u2 only the first one
	play(t, ctx, service, "u1", []int{1, 0})
	play(t, ctx, service, "u2", []int{1, 1})

	board, err := service.Leaderboard(ctx, "")
	if err != nil {
		t.Fatalf("global board: %v", err)
	}
	if len(board.Entries) != 2 || board.Entries[0].UserID != "u1" || board.Entries[1].Rank != 2 {
		t.Fatalf("unexpected global board %+v", board.Entries)
	}

	p, err := service.Profile(ctx, "u1")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if p.Stats.TotalQuizzesTaken != 1 || p.Stats.BestCategory != "math" {
		t.Fatalf("unexpected stats %+v", p.Stats)
	}
	if !hasAchievement(p.Achievements, achievements.PerfectScore) {
		t.Fatalf("expected perfect_score, got %+v", p.Achievements)
	}

	plays, err := loader.IncrementPlays(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("plays: %v", err)
	}
	if plays != 3 {
		t.Fatalf("expected two recorded plays before this one, got %d", plays)
	}
}

func TestConcurrentResultsOnPostgresBoards(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	seedQuiz(t, ctx, pgURL, sampleQuiz())

	db := postgres.OpenBun(pgURL)
	defer db.Close()
	boards := leaderboard.NewAggregator(postgres.NewBoardStore(db), 50)

	const users = 10
	var wg sync.WaitGroup
	errs := make(chan error, users)
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := boards.Record(ctx, leaderboard.Update{
				UserID:       fmt.Sprintf("u%d", i),
				Category:     "math",
				ScorePercent: 50,
				Points:       100 + i,
				At:           time.Now(),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	board, err := boards.Board(ctx, leaderboard.GlobalKey)
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	if len(board.Entries) != users || board.Entries[0].UserID != "u9" {
		t.Fatalf("expected %d ranked users led by u9, got %+v", users, board.Entries)
	}
}

func play(t *testing.T, ctx context.Context, service *app.QuizService, userID string, options []int) {
	t.Helper()
	session, err := service.StartSession(ctx, "quiz-1", userID)
	if err != nil {
		t.Fatalf("start %s: %v", userID, err)
	}
	for _, option := range options {
		if err := service.SelectOption(ctx, session.ID(), option); err != nil {
			t.Fatalf("select %s: %v", userID, err)
		}
		if _, _, err := service.Advance(ctx, session.ID()); err != nil {
			t.Fatalf("advance %s: %v", userID, err)
		}
	}
	c, ok := session.Completion()
	if !ok || c.Err != "" {
		t.Fatalf("expected recorded completion for %s, got %+v", userID, c)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedQuiz(t *testing.T, ctx context.Context, dsn string, quiz domain.Quiz) {
	t.Helper()
	db := postgres.OpenBun(dsn)
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	data, err := json.Marshal(quiz)
	if err != nil {
		t.Fatalf("marshal quiz: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO quizzes (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, quiz.ID, string(data)); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:              "quiz-1",
		Title:           "Arithmetic",
		Category:        "math",
		Difficulty:      domain.DifficultyMedium,
		DurationMinutes: 5,
		Questions: []domain.Question{
			{
				Text: "What is 2 + 2?",
				Options: []domain.Option{
					{Text: "3", Correct: false},
					{Text: "4", Correct: true},
				},
			},
			{
				Text: "What is 3 * 3?",
				Options: []domain.Option{
					{Text: "9", Correct: true},
					{Text: "6", Correct: false},
				},
			},
		},
	}
}

func hasAchievement(list []domain.Achievement, id string) bool {
	for _, a := range list {
		if a.ID == id && a.Earned {
			return true
		}
	}
	return false
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
