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
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"quizboard-service/internal/domain"
	"quizboard-service/internal/game"
	pgrepo "quizboard-service/internal/infra/postgres"
	pgmigrations "quizboard-service/internal/infra/postgres/migrations"
	redisrepo "quizboard-service/internal/infra/redis"
)

// Boots Postgres and Redis containers, seeds a quiz, then plays a full round
// through the engine against the Redis-cached Postgres repository.
func TestGameRoundEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuiz(t, ctx, pgURL, "quiz-1", "General", sampleQuestions())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	quizRepo := redisrepo.NewQuizRepository(redisClient, pgrepo.NewQuizRepository(pool), 5*time.Minute)

	quizzes, err := quizRepo.ListQuizzes(ctx)
	if err != nil {
		t.Fatalf("list quizzes: %v", err)
	}
	if len(quizzes) != 1 || quizzes[0].Name != "General" {
		t.Fatalf("unexpected quiz list %+v", quizzes)
	}

	engine := game.NewEngine(game.Config{GamemasterName: "magnus"}, quizRepo, clockwork.NewRealClock())
	engineCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go engine.Run(engineCtx)

	gm := game.NewConn("gm", 64)
	alice := game.NewConn("alice", 64)
	engine.Attach(gm)
	engine.Attach(alice)

	send(t, engine, gm, game.EvtRegisterUser, map[string]any{"name": "magnus"})
	awaitEvent(t, gm, game.EvtUserRegistered)
	send(t, engine, alice, game.EvtRegisterUser, map[string]any{"name": "Alice"})
	awaitEvent(t, alice, game.EvtUserRegistered)

	send(t, engine, gm, game.EvtStartGame, map[string]any{"quizId": "quiz-1"})
	var started game.GameStartedPayload
	decode(t, awaitEvent(t, alice, game.EvtGameStarted), &started)
	if started.QuizName != "General" {
		t.Fatalf("unexpected quiz name %q", started.QuizName)
	}

	send(t, engine, gm, game.EvtSelectQuestion, map[string]any{"category": "History", "value": 100})
	awaitEvent(t, alice, game.EvtQuestionSelected)

	send(t, engine, alice, game.EvtPlayerBuzzIn, map[string]any{"playerName": "Alice"})
	awaitEvent(t, gm, game.EvtPlayerBuzzed)

	send(t, engine, gm, game.EvtAnswerResult, map[string]any{"correct": true})
	var correct game.CorrectAnswerPayload
	decode(t, awaitEvent(t, alice, game.EvtCorrectAnswer), &correct)
	if correct.PlayerName != "Alice" || correct.NewScore != 100 {
		t.Fatalf("unexpected resolution %+v", correct)
	}

	// Starting the game populated the Redis cache for subsequent loads.
	if exists, err := redisClient.Exists(ctx, "quiz:quiz-1:content").Result(); err != nil || exists != 1 {
		t.Fatalf("expected cached quiz content in redis, exists=%d err=%v", exists, err)
	}
}

func send(t *testing.T, engine *game.Engine, conn *game.Conn, eventType string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal %s payload: %v", eventType, err)
	}
	frame, err := json.Marshal(game.Envelope{Type: eventType, Payload: data})
	if err != nil {
		t.Fatalf("marshal %s: %v", eventType, err)
	}
	engine.Dispatch(conn.ID, frame)
}

func awaitEvent(t *testing.T, conn *game.Conn, want string) json.RawMessage {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case frame, ok := <-conn.Outbound():
			if !ok {
				t.Fatalf("connection closed while waiting for %s", want)
			}
			var env game.Envelope
			if err := json.Unmarshal(frame, &env); err != nil {
				t.Fatalf("bad frame %q: %v", frame, err)
			}
			if env.Type == want {
				return env.Payload
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func decode(t *testing.T, raw json.RawMessage, into any) {
	t.Helper()
	if err := json.Unmarshal(raw, into); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{Category: "History", Value: 100, Prompt: "First US president?", Answer: "Washington"},
		{Category: "History", Value: 200, Prompt: "Year WWII ended?", Answer: "1945"},
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

func seedQuiz(t *testing.T, ctx context.Context, dsn, id, name string, questions []domain.Question) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	data, err := json.Marshal(questions)
	if err != nil {
		t.Fatalf("marshal questions: %v", err)
	}
	const insert = `INSERT INTO quizzes (id, name, data) VALUES (?, ?, ?::jsonb)
ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, data=EXCLUDED.data`
	if _, err := db.ExecContext(ctx, insert, id, name, string(data)); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}
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
