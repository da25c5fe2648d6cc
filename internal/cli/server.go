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

	"quizcroc-service/internal/app"
	"quizcroc-service/internal/config"
	"quizcroc-service/internal/domain"
	"quizcroc-service/internal/infra/memory"
	pgloader "quizcroc-service/internal/infra/postgres"
	redisinfra "quizcroc-service/internal/infra/redis"
	transport "quizcroc-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia session server",
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
	gameTTL := config.TTLDuration(cfg.Game.TTL, 2*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoaderWithFallback(nil, sampleQuiz())
	if pool != nil {
		loader = pgloader.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizzes app.QuizSource
	if redisClient != nil {
		quizzes = redisinfra.NewQuizSource(redisClient, loader, quizTTL)
	} else {
		quizzes = memory.NewQuizSource(loader, quizTTL)
	}

	var store app.GameStateStore
	if redisClient != nil {
		store = redisinfra.NewStateStore(redisClient, gameTTL)
	} else {
		store = memory.NewStateStore()
	}

	service := app.NewGameService(store, quizzes)
	handler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("PUT /game/create", handler.CreateGame)
	mux.HandleFunc("GET /game/{gameID}/ws", handler.ServeWS)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: websocket connections outlive any sane value.
	}

	go func() {
		log.Printf("starting quizcroc service on :%s", finalPort)
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

// sampleQuiz is the built-in quiz served for every topic when no Postgres
// quiz bank is configured; handy for local development.
func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		Name: "Harry Potter Trivia",
		Questions: []domain.QuizQuestion{
			{
				Text:          "How many points is the Golden Snitch worth?",
				CorrectAnswer: "150",
				SourceURL:     "https://harrypotter.fandom.com/wiki/Golden_Snitch",
			},
			{
				Text:          "What is the number of Harry Potter's parents?",
				CorrectAnswer: "2",
				SourceURL:     "https://harrypotter.fandom.com/wiki/James_Potter",
			},
			{
				Text:          "What is the primary ingredient in a Polyjuice Potion?",
				CorrectAnswer: "Knotgrass",
				Alternatives:  []string{"Fluxweed", "Knotgrass", "Lacewing Flies", "Leeches"},
				SourceURL:     "https://harrypotter.fandom.com/wiki/Polyjuice_Potion",
			},
			{
				Text:          "What is the name of the Weasley twins?",
				CorrectAnswer: "Fred and George",
				Alternatives:  []string{"Ron and Bill", "Fred and George", "Arthur and Percy", "Charlie and Bill"},
				SourceURL:     "https://harrypotter.fandom.com/wiki/Weasley_twins",
			},
			{
				Text:          "What is the core of Harry Potter's wand?",
				CorrectAnswer: "Phoenix feather",
				Alternatives:  []string{"Dragon heartstring", "Unicorn hair", "Phoenix feather", "Veela hair"},
				SourceURL:     "https://harrypotter.fandom.com/wiki/Harry_Potter%27s_wand",
			},
		},
	}
}
