package integration

import (
	"context"
	"database/sql"
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

	"github.com/soldier14/survey-runtime/internal/app"
	"github.com/soldier14/survey-runtime/internal/domain"
	pgstore "github.com/soldier14/survey-runtime/internal/infra/postgres"
	"github.com/soldier14/survey-runtime/internal/infra/postgres/migrations"
	redisstore "github.com/soldier14/survey-runtime/internal/infra/redis"
)

func TestCompletedRunsSurvivePostgresRestartOfRuntime(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	dsn, cleanup := startPostgres(t, ctx)
	defer cleanup()
	migrateDatabase(t, ctx, dsn)

	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	store := pgstore.NewRunStore(pool, "capitals")
	survey := sampleQuiz()

	runSessionToCompletion(t, survey, store, "alice")
	runSessionToCompletion(t, survey, store, "bob")

	// A fresh coordinator must rebuild ids, summary and leaderboard seed
	// from the stored history alone.
	coord := app.NewCoordinator(store, survey)
	seed, err := coord.Reconcile(ctx, survey.Leaderboard.Limit)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if got := coord.AllocateRunID(); got != 3 {
		t.Fatalf("expected next run id 3, got %d", got)
	}
	if summary := coord.Summary(); summary.CompletedCount != 2 {
		t.Fatalf("expected 2 completed runs, got %d", summary.CompletedCount)
	}
	if len(seed) != 2 || seed[0].DisplayName != "alice" {
		t.Fatalf("unexpected leaderboard seed: %+v", seed)
	}
}

func TestRedisRunStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	url, cleanup := startRedis(t, ctx)
	defer cleanup()

	client, err := redisClientFromURL(url)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer client.Close()

	store := redisstore.NewRunStore(client, "capitals")
	survey := sampleQuiz()

	runSessionToCompletion(t, survey, store, "alice")

	runs, err := store.LoadRuns(ctx)
	if err != nil {
		t.Fatalf("load runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != 1 || runs[0].Participant != "alice" {
		t.Fatalf("unexpected runs: %+v", runs)
	}
	summary, ok, err := store.Summary(ctx)
	if err != nil || !ok {
		t.Fatalf("summary: ok=%v err=%v", ok, err)
	}
	if summary.CompletedCount != 1 {
		t.Fatalf("expected summary count 1, got %d", summary.CompletedCount)
	}
}

// runSessionToCompletion walks one participant through the sample quiz
// with a correct slider answer and waits for the async persist.
func runSessionToCompletion(t *testing.T, survey domain.Survey, store app.RunStore, name string) {
	t.Helper()
	ctx := context.Background()

	coord := app.NewCoordinator(store, survey)
	board := app.NewLeaderboard(survey.Leaderboard)
	if seed, err := coord.Reconcile(ctx, survey.Leaderboard.Limit); err != nil {
		t.Fatalf("reconcile: %v", err)
	} else {
		board.Seed(seed)
	}

	session := app.NewSession(survey, coord, board, nil)
	persisted := make(chan domain.Summary, 1)
	session.SetCompletionListener(func(s domain.Summary) { persisted <- s })

	if err := session.Take(); err != nil {
		t.Fatalf("take: %v", err)
	}
	if err := session.UpdateText("p1q1", name); err != nil {
		t.Fatalf("update name: %v", err)
	}
	if err := session.Advance(); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := session.UpdateSliderValue("p2q1", 4); err != nil {
		t.Fatalf("update slider: %v", err)
	}
	if err := session.Advance(); err != nil {
		t.Fatalf("finish: %v", err)
	}

	select {
	case <-persisted:
	case <-time.After(5 * time.Second):
		t.Fatalf("run for %s not persisted in time", name)
	}
}

func sampleQuiz() domain.Survey {
	correct := 4.0
	nickname, err := domain.NewQuestion("p1q1", "Nickname", true, false, domain.DataSpec{
		Field:       domain.FieldNickname,
		Leaderboard: true,
	})
	if err != nil {
		panic(err)
	}
	slider, err := domain.NewQuestion("p2q1", "How many capitals has South Africa?", true, true, domain.SliderSpec{
		Min:     0,
		Max:     10,
		Step:    1,
		Correct: &correct,
		Score:   7,
	})
	if err != nil {
		panic(err)
	}
	return domain.Survey{
		Title:           "Capitals",
		Kind:            domain.KindQuiz,
		ShowLeaderboard: true,
		Leaderboard:     domain.LeaderboardSettings{ShowScores: true, Limit: 5},
		Pages: []domain.Page{
			{Title: "You", Questions: []domain.Question{nickname}},
			{Title: "Geography", Questions: []domain.Question{slider}},
		},
	}
}

func migrateDatabase(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "survey", "POSTGRES_PASSWORD": "surveypass", "POSTGRES_DB": "surveydb"},
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
	dsn := fmt.Sprintf("postgres://survey:surveypass@%s:%s/surveydb?sslmode=disable", host, port.Port())
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
