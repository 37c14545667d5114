package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"contest-service/internal/app"
	"contest-service/internal/domain"
	"contest-service/internal/infra/postgres"
	pgmigrations "contest-service/internal/infra/postgres/migrations"
	infraredis "contest-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func TestContestLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := migrateDB(t, ctx, pgURL)
	defer db.Close()

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	base := time.Now().UTC().Truncate(time.Second)
	clk := &clock{now: base}
	opts := []app.Option{app.WithClock(clk.Now)}

	store := postgres.NewStore(db)
	papers := infraredis.NewPaperRepository(redisClient, postgres.NewPaperLoader(pool), 5*time.Minute)
	hubs := infraredis.NewHubStore(redisClient, 5*time.Minute)
	catalog := app.NewCatalogService(store, papers, opts...)
	contests := app.NewContestService(store, papers, hubs, opts...)
	sweeper := app.NewStatusSweeper(store, opts...)

	admin := mustUser(t, catalog, "admin", domain.RoleAdmin)
	alice := mustUser(t, catalog, "alice", domain.RoleUser)
	bob := mustUser(t, catalog, "bob", domain.RoleUser)

	category, err := catalog.CreateCategory(ctx, app.CategoryInput{Name: "Arithmetic"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	var questions []domain.Question
	for i := 1; i <= 3; i++ {
		q, err := catalog.CreateQuestion(ctx, app.QuestionInput{
			Content:    fmt.Sprintf("%d + %d = ?", i, i),
			CategoryID: category.ID,
			Answers: []app.AnswerInput{
				{Content: fmt.Sprint(i + i), Correct: true},
				{Content: fmt.Sprint(i + i + 1)},
			},
		})
		if err != nil {
			t.Fatalf("create question: %v", err)
		}
		questions = append(questions, q)
	}

	start := base.Add(time.Hour)
	contest, err := catalog.CreateContest(ctx, admin.ID, app.ContestInput{
		Name:            "Integration cup",
		StartTime:       start,
		EndTime:         start.Add(2 * time.Hour),
		DurationMinutes: 30,
	})
	if err != nil {
		t.Fatalf("create contest: %v", err)
	}
	added, err := catalog.AddCategory(ctx, contest.ID, category.ID)
	if err != nil || added != 3 {
		t.Fatalf("expected 3 linked questions, got %d err=%v", added, err)
	}
	if again, err := catalog.AddQuestions(ctx, contest.ID, []string{questions[0].ID}); err != nil || again != 0 {
		t.Fatalf("expected relink to add nothing, got %d err=%v", again, err)
	}

	// Concurrent duplicate registrations resolve to exactly one success.
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, conflicts := 0, 0
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := contests.Register(ctx, contest.ID, alice.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrAlreadyRegistered):
				conflicts++
			default:
				t.Errorf("unexpected register error: %v", err)
			}
		}()
	}
	wg.Wait()
	if successes != 1 || conflicts != 4 {
		t.Fatalf("expected 1 success and 4 conflicts, got %d/%d", successes, conflicts)
	}
	if _, err := contests.Register(ctx, contest.ID, bob.ID); err != nil {
		t.Fatalf("register bob: %v", err)
	}

	clk.Set(start.Add(time.Minute))
	if started, _, err := sweeper.Sweep(ctx); err != nil || started != 1 {
		t.Fatalf("expected sweep to start 1 contest, got %d err=%v", started, err)
	}

	for _, u := range []domain.User{alice, bob} {
		exam, err := contests.Enter(ctx, contest.ID, u.ID)
		if err != nil {
			t.Fatalf("enter %s: %v", u.Username, err)
		}
		if len(exam.Questions) != 3 {
			t.Fatalf("expected 3 exam questions, got %d", len(exam.Questions))
		}
	}
	if _, err := contests.Enter(ctx, contest.ID, alice.ID); !errors.Is(err, domain.ErrAlreadyStarted) {
		t.Fatalf("expected already started on re-entry, got %v", err)
	}

	for i, q := range questions {
		correct, _ := q.CorrectAnswerID()
		if _, err := contests.Answer(ctx, contest.ID, q.ID, correct, bob.ID); err != nil {
			t.Fatalf("bob answer: %v", err)
		}
		pick := correct
		if i == 0 {
			pick = q.Answers[1].ID
		}
		if _, err := contests.Answer(ctx, contest.ID, q.ID, pick, alice.ID); err != nil {
			t.Fatalf("alice answer: %v", err)
		}
	}
	// Last write wins: bob first picks wrong then correct on the first question.
	if _, err := contests.Answer(ctx, contest.ID, questions[0].ID, questions[0].Answers[1].ID, bob.ID); err != nil {
		t.Fatalf("bob overwrite: %v", err)
	}
	correct0, _ := questions[0].CorrectAnswerID()
	if _, err := contests.Answer(ctx, contest.ID, questions[0].ID, correct0, bob.ID); err != nil {
		t.Fatalf("bob overwrite back: %v", err)
	}

	clk.Set(start.Add(10 * time.Minute))
	res, err := contests.Submit(ctx, contest.ID, alice.ID)
	if err != nil || res.Score != 2 || res.Total != 3 {
		t.Fatalf("alice submit: %+v err=%v", res, err)
	}
	clk.Set(start.Add(12 * time.Minute))
	res, err = contests.Submit(ctx, contest.ID, bob.ID)
	if err != nil || res.Score != 3 {
		t.Fatalf("bob submit: %+v err=%v", res, err)
	}
	if _, err := contests.Submit(ctx, contest.ID, bob.ID); !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("expected already submitted, got %v", err)
	}

	lb, err := contests.Leaderboard(ctx, contest.ID)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 2 || lb.Entries[0].UserID != bob.ID || lb.Entries[0].Rank != 1 || lb.Entries[1].Rank != 2 {
		t.Fatalf("expected bob leading, got %+v", lb.Entries)
	}

	clk.Set(start.Add(3 * time.Hour))
	if _, finished, err := sweeper.Sweep(ctx); err != nil || finished != 1 {
		t.Fatalf("expected sweep to finish 1 contest, got %d err=%v", finished, err)
	}
	got, err := catalog.GetContest(ctx, contest.ID)
	if err != nil || got.Status != domain.StatusFinished {
		t.Fatalf("expected finished contest, got %+v err=%v", got, err)
	}

	completed, err := contests.Completed(ctx, alice.ID)
	if err != nil || len(completed) != 1 || completed[0].Score != 2 {
		t.Fatalf("unexpected completed list %+v err=%v", completed, err)
	}

	taken := "alice"
	if _, err := catalog.UpdateUser(ctx, bob.ID, app.UserUpdate{Username: &taken}); !errors.Is(err, domain.ErrUsernameTaken) {
		t.Fatalf("expected username taken, got %v", err)
	}
	if _, err := catalog.UpdateUser(ctx, "not-a-uuid", app.UserUpdate{}); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
	if err := catalog.DeleteUser(ctx, alice.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if _, err := store.GetParticipation(ctx, alice.ID, contest.ID); !errors.Is(err, domain.ErrNotRegistered) {
		t.Fatalf("expected participation cascaded away, got %v", err)
	}
	if lb, err := contests.Leaderboard(ctx, contest.ID); err != nil || len(lb.Entries) != 1 {
		t.Fatalf("expected one leaderboard entry after delete, got %+v err=%v", lb, err)
	}
}

func mustUser(t *testing.T, catalog *app.CatalogService, name string, role domain.Role) domain.User {
	t.Helper()
	u, err := catalog.CreateUser(context.Background(), app.UserInput{Username: name, Role: role})
	if err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "contest", "POSTGRES_PASSWORD": "contestpass", "POSTGRES_DB": "contestdb"},
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
	dsn := fmt.Sprintf("postgres://contest:contestpass@%s:%s/contestdb?sslmode=disable", host, port.Port())
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

func migrateDB(t *testing.T, ctx context.Context, dsn string) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
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
