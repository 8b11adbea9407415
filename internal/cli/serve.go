package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sparks-quiz-service/internal/app"
	"sparks-quiz-service/internal/config"
	"sparks-quiz-service/internal/domain"
	"sparks-quiz-service/internal/events"
	"sparks-quiz-service/internal/generator"
	amqppub "sparks-quiz-service/internal/infra/amqp"
	"sparks-quiz-service/internal/infra/memory"
	pgstore "sparks-quiz-service/internal/infra/postgres"
	redisstore "sparks-quiz-service/internal/infra/redis"
	transport "sparks-quiz-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewServeCmd builds the CLI subcommand to start the server.
func NewServeCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the quiz session server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 24*time.Hour)
	poolTTL := config.TTLDuration(cfg.Quiz.PoolCacheTTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var source generator.QuestionSource = memory.NewStaticQuestionSource(samplePool())
	if pool != nil {
		source = pgstore.NewQuestionSource(pool)
	}
	source = memory.NewCachedQuestionSource(source, poolTTL)

	var quizRepo app.QuizRepository = memory.NewQuizRepository()
	if pool != nil {
		quizRepo = pgstore.NewQuizRepository(pool)
	}
	if redisClient != nil {
		quizRepo = redisstore.NewQuizRepository(redisClient, quizRepo, redisTTL)
	}

	var sessions app.SessionRepository
	var activity app.ActivityLog
	if redisClient != nil {
		sessions = redisstore.NewSessionStore(redisClient, redisTTL)
		activity = redisstore.NewActivityLog(redisClient)
	} else {
		sessions = memory.NewSessionStore()
		activity = memory.NewActivityLog()
	}

	eventsHub := transport.NewEventsHub()
	publishers := events.Fanout{eventsHub}
	if cfg.AMQP.URL != "" {
		exchange := cfg.AMQP.Exchange
		if exchange == "" {
			exchange = "quiz.events"
		}
		broker, err := amqppub.NewPublisher(cfg.AMQP.URL, exchange)
		if err != nil {
			return err
		}
		defer broker.Close()
		publishers = append(publishers, broker)
	} else {
		publishers = append(publishers, events.LogPublisher{})
	}
	dispatcher := events.NewDispatcher(publishers)
	defer dispatcher.Close()

	service := app.NewQuizService(quizRepo, sessions, source, activity, dispatcher, settingsFromConfig(cfg), boundsFromConfig(cfg))

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	transport.NewAPIHandler(service).Register(mux)
	mux.HandleFunc("/events", eventsHub.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz session service on :%s", finalPort)
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

func settingsFromConfig(cfg config.Config) app.Settings {
	settings := app.DefaultSettings()
	r := cfg.Rewards
	if r.MarksEasy > 0 {
		settings.Marks[domain.DifficultyEasy] = r.MarksEasy
	}
	if r.MarksMedium > 0 {
		settings.Marks[domain.DifficultyMedium] = r.MarksMedium
	}
	if r.MarksHard > 0 {
		settings.Marks[domain.DifficultyHard] = r.MarksHard
	}
	if r.SparksEasy > 0 {
		settings.Sparks.PerDifficulty[domain.DifficultyEasy] = r.SparksEasy
	}
	if r.SparksMedium > 0 {
		settings.Sparks.PerDifficulty[domain.DifficultyMedium] = r.SparksMedium
	}
	if r.SparksHard > 0 {
		settings.Sparks.PerDifficulty[domain.DifficultyHard] = r.SparksHard
	}
	if r.CompletionBonus > 0 {
		settings.Sparks.CompletionBonus = r.CompletionBonus
	}
	if r.PerfectScoreBonus > 0 {
		settings.Sparks.PerfectScoreBonus = r.PerfectScoreBonus
	}
	if len(r.Grades) > 0 {
		bands := make([]app.GradeBand, len(r.Grades))
		for i, g := range r.Grades {
			bands[i] = app.GradeBand{Min: g.Min, Grade: g.Grade}
		}
		settings.GradeBands = bands
	}
	settings.ShuffleChoices = cfg.Quiz.ShuffleChoices
	return settings
}

func boundsFromConfig(cfg config.Config) generator.Bounds {
	bounds := generator.DefaultBounds()
	if cfg.Quiz.MinQuestions > 0 {
		bounds.MinQuestions = cfg.Quiz.MinQuestions
	}
	if cfg.Quiz.MaxQuestions > 0 {
		bounds.MaxQuestions = cfg.Quiz.MaxQuestions
	}
	if cfg.Quiz.DefaultQuestions > 0 {
		bounds.DefaultQuestions = cfg.Quiz.DefaultQuestions
	}
	bounds.DefaultTimeLimit = config.TTLDuration(cfg.Quiz.DefaultTimeLimit, bounds.DefaultTimeLimit)
	return bounds
}

// samplePool provides a minimal question pool for running without a content
// database; swap in the Postgres source in production.
func samplePool() []domain.Question {
	mcq := func(id, topicID, prompt string, difficulty domain.Difficulty, correct string, wrong ...string) domain.Question {
		choices := []domain.Choice{{ID: id + "-c1", Text: correct, Correct: true}}
		for i, text := range wrong {
			choices = append(choices, domain.Choice{ID: id + "-c" + string(rune('2'+i)), Text: text})
		}
		return domain.Question{
			ID:         id,
			SubjectID:  "math",
			LevelID:    "form-1",
			TopicID:    topicID,
			TermID:     "term-1",
			Type:       domain.QuestionTypeMCQ,
			Prompt:     prompt,
			Difficulty: difficulty,
			Choices:    choices,
		}
	}

	var pool []domain.Question
	topics := []string{"fractions", "algebra"}
	for _, topic := range topics {
		for i := 0; i < 6; i++ {
			suffix := topic + "-" + string(rune('a'+i))
			pool = append(pool,
				mcq("easy-"+suffix, topic, "Recall question "+suffix, domain.DifficultyEasy, "right", "wrong", "also wrong"),
				mcq("medium-"+suffix, topic, "Practice question "+suffix, domain.DifficultyMedium, "right", "wrong", "also wrong"),
				mcq("hard-"+suffix, topic, "Analysis question "+suffix, domain.DifficultyHard, "right", "wrong", "also wrong"),
			)
		}
	}
	return pool
}
