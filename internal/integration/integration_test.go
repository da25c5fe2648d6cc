package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"quizcroc-service/internal/app"
	"quizcroc-service/internal/domain"
	"quizcroc-service/internal/engine"
	pgloader "quizcroc-service/internal/infra/postgres"
	pgmigrations "quizcroc-service/internal/infra/postgres/migrations"
	redisinfra "quizcroc-service/internal/infra/redis"
)

type captureSink struct {
	snaps []engine.Snapshot
}

func (c *captureSink) Send(s engine.Snapshot) { c.snaps = append(c.snaps, s) }

func TestGameEndToEnd(t *testing.T) {
	ctx := context.Background()

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisAddr, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuiz(t, ctx, pgURL, "history", domain.Quiz{
		Name: "World History",
		Questions: []domain.QuizQuestion{
			{
				Text:          "In which year did World War II end?",
				CorrectAnswer: "1945",
			},
			{
				Text:          "Who was the first Roman emperor?",
				CorrectAnswer: "Augustus",
				Alternatives:  []string{"Julius Caesar", "Augustus", "Nero", "Trajan"},
			},
		},
	})

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient := goredis.NewClient(&goredis.Options{Addr: redisAddr})
	quizzes := redisinfra.NewQuizSource(redisClient, pgloader.NewQuizLoader(pool), 5*time.Minute)
	store := redisinfra.NewStateStore(redisClient, time.Hour)
	service := app.NewGameService(store, quizzes)

	created, err := service.CreateGame(ctx, "history")
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	if created.QuizName != "World History" || created.QuestionCount != 2 {
		t.Fatalf("unexpected created game: %+v", created)
	}

	alice := &captureSink{}
	bob := &captureSink{}
	if err := service.Join(ctx, created.GameID, "alice", alice); err != nil {
		t.Fatalf("join alice: %v", err)
	}
	if err := service.Join(ctx, created.GameID, "bob", bob); err != nil {
		t.Fatalf("join bob: %v", err)
	}

	if err := service.NextQuestion(ctx, created.GameID); err != nil {
		t.Fatalf("next question: %v", err)
	}
	if _, err := service.SubmitAnswer(ctx, created.GameID, "alice", "0", "1945"); err != nil {
		t.Fatalf("submit alice: %v", err)
	}
	if _, err := service.SubmitAnswer(ctx, created.GameID, "bob", "0", "1950"); err != nil {
		t.Fatalf("submit bob: %v", err)
	}

	snap := alice.snaps[len(alice.snaps)-1]
	if snap.State != engine.StateBetweenQuestions {
		t.Fatalf("expected early close, got %s", snap.State)
	}
	if len(snap.Scores) != 2 || snap.Scores[0].Score != 100 || snap.Scores[1].Score != 50 {
		t.Fatalf("unexpected scores: %+v", snap.Scores)
	}

	// A fresh service over the same Redis restores the session, standing in
	// for a restarted host.
	restartedAlice := &captureSink{}
	restarted := app.NewGameService(redisinfra.NewStateStore(redisClient, time.Hour), quizzes)
	if err := restarted.Join(ctx, created.GameID, "alice", restartedAlice); err != nil {
		t.Fatalf("rejoin after restart: %v", err)
	}
	snap = restartedAlice.snaps[len(restartedAlice.snaps)-1]
	if snap.State != engine.StateBetweenQuestions || len(snap.Scores) != 2 {
		t.Fatalf("restored snapshot wrong: %+v", snap)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
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
	url := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return url, func() { _ = container.Terminate(ctx) }
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
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
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	return fmt.Sprintf("%s:%s", host, port.Port()), func() { _ = container.Terminate(ctx) }
}

func seedQuiz(t *testing.T, ctx context.Context, pgURL, topic string, quiz domain.Quiz) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(pgURL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("init migrations: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	data, err := json.Marshal(quiz)
	if err != nil {
		t.Fatalf("marshal quiz: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO quizzes (topic, data) VALUES (?, ?)`, topic, string(data)); err != nil {
		t.Fatalf("seed quiz: %v", err)
	}
}
