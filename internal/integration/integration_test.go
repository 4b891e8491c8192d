package integration

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"bigbrain-client/internal/api"
	"bigbrain-client/internal/api/apitest"
	"bigbrain-client/internal/app"
	"bigbrain-client/internal/domain"
	"bigbrain-client/internal/infra/postgres"
	infraredis "bigbrain-client/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// openStore connects a fresh store, as a restarted client process would.
type openStore func(t *testing.T) app.Store

func TestReloadSurvivesPostgresStore(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, cleanup := startPostgres(t, ctx)
	defer cleanup()
	if err := postgres.Migrate(ctx, pgURL); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := postgres.Migrate(ctx, pgURL); err != nil {
		t.Fatalf("second migrate should be a no-op: %v", err)
	}

	playThroughReload(t, func(t *testing.T) app.Store {
		pool, err := pgxpool.Connect(ctx, pgURL)
		if err != nil {
			t.Fatalf("connect pg: %v", err)
		}
		t.Cleanup(pool.Close)
		return postgres.NewStore(pool)
	})
}

func TestReloadSurvivesRedisStore(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	redisURL, cleanup := startRedis(t, ctx)
	defer cleanup()

	playThroughReload(t, func(t *testing.T) app.Store {
		client, err := redisClientFromURL(redisURL)
		if err != nil {
			t.Fatalf("redis client: %v", err)
		}
		t.Cleanup(func() { client.Close() })
		return infraredis.NewStore(client, "bigbrain:")
	})
}

// playThroughReload answers a question, restarts the client on a new store
// connection and checks the submission guard and score survive.
func playThroughReload(t *testing.T, open openStore) {
	t.Helper()
	ctx := context.Background()
	backend := apitest.NewBackend()
	server := backend.Serve()
	defer server.Close()
	client := api.NewClient(server.URL, 5*time.Second)
	clock := clockwork.NewFakeClock()

	players := app.NewPlayerService(client, app.NewPlayerStore(open(t)), clock, app.DefaultMachineConfig())
	if _, err := players.Join(ctx, "12345678", "Alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	first, err := players.Machine(ctx, "")
	if err != nil {
		t.Fatalf("machine: %v", err)
	}

	backend.Start()
	backend.SetQuestion(apitest.Question{
		ID:             "q1",
		Text:           "What is 2 + 2?",
		Type:           "single",
		Duration:       10,
		Points:         3,
		Answers:        []string{"3", "4", "5"},
		CorrectAnswers: []string{"4"},
		StartedAt:      clock.Now(),
	})
	if err := first.Poll(ctx); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if err := first.Select(ctx, "4"); err != nil {
		t.Fatalf("select: %v", err)
	}

	restarted := app.NewPlayerService(client, app.NewPlayerStore(open(t)), clock, app.DefaultMachineConfig())
	second, err := restarted.Machine(ctx, "")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if err := second.Poll(ctx); err != nil {
		t.Fatalf("poll after reload: %v", err)
	}
	if snap := second.Snapshot(); !snap.Submitted || snap.Name != "Alice" {
		t.Fatalf("expected restored submission for Alice, got %+v", snap)
	}
	if err := second.Select(ctx, "3"); err == nil {
		t.Fatalf("expected reload to keep the at-most-once guard")
	}

	for i := 0; i < 10; i++ {
		clock.Advance(time.Second)
		second.Tick(ctx)
	}
	backend.Reveal()
	if err := second.Poll(ctx); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if snap := second.Snapshot(); snap.Score != 3 || snap.State != domain.StateAnswered {
		t.Fatalf("expected 3 points after reveal, got %+v", snap)
	}
	if subs := backend.Submissions(); len(subs) != 1 {
		t.Fatalf("expected one submission across restart, got %v", subs)
	}

	backend.Finish()
	if err := second.Poll(ctx); err != nil {
		t.Fatalf("poll: %v", err)
	}
	stats, err := app.NewPlayerService(client, app.NewPlayerStore(open(t)), clock, app.DefaultMachineConfig()).Results(ctx, "")
	if err != nil || stats.Score != 3 {
		t.Fatalf("expected stored stats with score 3, got %+v %v", stats, err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "bigbrain", "POSTGRES_PASSWORD": "bigbrain", "POSTGRES_DB": "bigbrain"},
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
	dsn := fmt.Sprintf("postgres://bigbrain:bigbrain@%s:%s/bigbrain?sslmode=disable", host, port.Port())
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
