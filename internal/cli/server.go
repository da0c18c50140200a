package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"quiz-ranking-service/internal/app"
	"quiz-ranking-service/internal/config"
	"quiz-ranking-service/internal/domain"
	"quiz-ranking-service/internal/event"
	"quiz-ranking-service/internal/infra/memory"
	"quiz-ranking-service/internal/infra/postgres"
	redisinfra "quiz-ranking-service/internal/infra/redis"
	"quiz-ranking-service/internal/leaderboard"
	"quiz-ranking-service/internal/profile"
	transport "quiz-ranking-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// backends holds the stores picked from config. Postgres wins over Redis, Redis over memory.
type backends struct {
	sessions app.SessionRepository
	quizzes  app.QuizRepository
	plays    app.PlayCounter
	boards   leaderboard.Repository
	profiles profile.Repository
	closers  []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	b := &backends{}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, func() { _ = redisClient.Close() })
	}

	var (
		pool *pgxpool.Pool
		db   *bun.DB
		err  error
	)
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.close()
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		db = postgres.OpenBun(cfg.Postgres.URL)
		b.closers = append(b.closers, func() { _ = db.Close() })
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	switch {
	case pool != nil:
		pgLoader := postgres.NewQuizLoader(pool)
		loader = pgLoader
		b.plays = pgLoader
	case redisClient != nil:
		b.plays = redisinfra.NewPlayCounter(redisClient)
	default:
		b.plays = memory.NewPlayCounter()
	}
	if redisClient != nil {
		b.quizzes = redisinfra.NewQuizRepository(redisClient, loader, quizTTL)
		b.sessions = redisinfra.NewSessionStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
	} else {
		b.quizzes = memory.NewQuizRepository(loader, quizTTL)
		b.sessions = memory.NewSessionStore()
	}

	switch {
	case db != nil:
		b.boards = postgres.NewBoardStore(db)
		b.profiles = postgres.NewProfileStore(db)
	case redisClient != nil:
		b.boards = redisinfra.NewBoardStore(redisClient)
		b.profiles = redisinfra.NewProfileStore(redisClient)
	default:
		b.boards = memory.NewBoardStore()
		b.profiles = memory.NewProfileStore()
	}
	return b, nil
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	opts := []app.Option{app.WithPlayCounter(b.plays)}
	if cfg.AMQP.URL != "" {
		publisher, err := event.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return err
		}
		defer publisher.Close()
		opts = append(opts, app.WithPublisher(publisher))
	}

	service := app.NewQuizService(
		b.sessions,
		b.quizzes,
		profile.NewEngine(b.profiles, config.Attempts(cfg.Profile.MaxAttempts)),
		leaderboard.NewAggregator(b.boards, config.Attempts(cfg.Leaderboard.MaxAttempts)),
		opts...,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws/play", transport.NewWSHandler(service, transport.HeaderIdentity).ServeWS)
	transport.NewAPIHandler(service, transport.HeaderIdentity).Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz ranking service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes is served when no Postgres is configured.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:              "quiz-1",
			Title:           "Warm-up arithmetic",
			Category:        "math",
			Difficulty:      domain.DifficultyEasy,
			DurationMinutes: 5,
			Questions: []domain.Question{
				{
					Text: "What is 2 + 2?",
					Options: []domain.Option{
						{Text: "3", Correct: false},
						{Text: "4", Correct: true},
						{Text: "5", Correct: false},
					},
					Explanation: "Two pairs make four.",
				},
				{
					Text: "What is 7 * 6?",
					Options: []domain.Option{
						{Text: "42", Correct: true},
						{Text: "36", Correct: false},
						{Text: "48", Correct: false},
					},
				},
			},
		},
		"quiz-2": {
			ID:              "quiz-2",
			Title:           "Planets",
			Category:        "science",
			Difficulty:      domain.DifficultyHard,
			DurationMinutes: 3,
			Questions: []domain.Question{
				{
					Text: "Which planet is closest to the sun?",
					Options: []domain.Option{
						{Text: "Venus", Correct: false},
						{Text: "Mercury", Correct: true},
						{Text: "Mars", Correct: false},
					},
				},
			},
		},
	}
}
