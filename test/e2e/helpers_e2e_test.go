//go:build e2e

// Package e2e_test exercises the assembled service end to end over HTTP,
// backed by real Postgres and Redis instances running in throwaway
// containers. Docker must be available:
//
//	go test -tags e2e ./test/e2e/...
//
// The model client is scripted rather than remote, which keeps runs
// deterministic and free of API credentials.
package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fairyhunter13/ai-code-grader/internal/adapter/cache"
	"github.com/fairyhunter13/ai-code-grader/internal/adapter/gitclone"
	"github.com/fairyhunter13/ai-code-grader/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-code-grader/internal/adapter/observability"
	"github.com/fairyhunter13/ai-code-grader/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/ai-code-grader/internal/app"
	"github.com/fairyhunter13/ai-code-grader/internal/config"
	"github.com/fairyhunter13/ai-code-grader/internal/corpus"
	"github.com/fairyhunter13/ai-code-grader/internal/domain"
	"github.com/fairyhunter13/ai-code-grader/internal/usecase"
)

const (
	postgresImage = "postgres:16-alpine"
	redisImage    = "redis:7-alpine"

	containerStartTimeout = 90 * time.Second
	jobSettleTimeout      = 60 * time.Second
	pollInterval          = 250 * time.Millisecond
)

// metricsOnce guards collector registration; the default Prometheus
// registry panics on duplicates and every test builds its own stack.
var metricsOnce sync.Once

// schema mirrors what the deployment applies out of band.
const schema = `
CREATE TABLE IF NOT EXISTS grade_jobs (
	id            TEXT PRIMARY KEY,
	curriculum_id TEXT,
	task_id       TEXT,
	repo_url      TEXT NOT NULL,
	branch        TEXT,
	status        TEXT NOT NULL,
	request       JSONB NOT NULL,
	result        JSONB,
	error         TEXT,
	created_at    TIMESTAMPTZ NOT NULL,
	completed_at  TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS task_grades (
	curriculum_id    TEXT NOT NULL,
	task_id          TEXT NOT NULL,
	grade_job_id     TEXT NOT NULL,
	status           TEXT NOT NULL,
	score            DOUBLE PRECISION NOT NULL,
	percentage       INT NOT NULL,
	grade            TEXT NOT NULL,
	criteria_results JSONB,
	repo_url         TEXT NOT NULL,
	graded_at        TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (curriculum_id, task_id)
);
`

// stack is one fully wired service instance listening on a local port.
type stack struct {
	baseURL string
	pool    *pgxpool.Pool
	rdb     *redis.Client
}

// newStack boots Postgres and Redis containers, wires the services the
// same way cmd/server does, and serves the router via httptest.
func newStack(t *testing.T) stack {
	t.Helper()
	metricsOnce.Do(observability.InitMetrics)

	pool := startPostgres(t)
	rdb := startRedis(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	grades := usecase.NewGradeService(gitclone.New(), corpus.NewReader(), scriptedModel{}, cfg.GradeTTL())
	grades.Repo = postgres.NewGradeRepo(pool)

	reviews := usecase.NewReviewService(gitclone.New(), corpus.NewReader(), nil, cfg.ReviewTTL())
	reviews.Cache = cache.NewReviewCache(rdb, cfg.ReviewTTL())

	dbCheck, redisCheck, kafkaCheck := app.BuildReadinessChecks(pool, rdb, nil)
	srv := httpserver.NewServer(cfg, grades, reviews, dbCheck, redisCheck, kafkaCheck)

	ts := httptest.NewServer(app.BuildRouter(cfg, srv))
	t.Cleanup(ts.Close)

	return stack{baseURL: ts.URL, pool: pool, rdb: rdb}
}

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        postgresImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "grader",
				"POSTGRES_PASSWORD": "grader",
				"POSTGRES_DB":       "grader",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(containerStartTimeout),
		},
		Started: true,
	})
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() { _ = ctr.Terminate(ctx) })

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, nat.Port("5432/tcp"))
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://grader:grader@%s:%s/grader?sslmode=disable", host, port.Port())
	pool, err := postgres.NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.Eventually(t, func() bool {
		return pool.Ping(ctx) == nil
	}, containerStartTimeout, pollInterval, "postgres never became reachable")

	_, err = pool.Exec(ctx, schema)
	require.NoError(t, err, "apply schema")
	return pool
}

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        redisImage,
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForListeningPort(nat.Port("6379/tcp")).
				WithStartupTimeout(containerStartTimeout),
		},
		Started: true,
	})
	require.NoError(t, err, "start redis container")
	t.Cleanup(func() { _ = ctr.Terminate(ctx) })

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, nat.Port("6379/tcp"))
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(ctx).Err())
	return rdb
}

// scriptedModel satisfies every criterion, standing in for a remote LLM.
type scriptedModel struct{}

func (scriptedModel) Provider() string { return "scripted" }

func (scriptedModel) Chat(_ domain.Context, _ []domain.Message, _ string) (string, error) {
	return `{
		"passed": true,
		"confidence": 0.95,
		"evidence": "The endpoint is implemented in server.js.",
		"code_references": [{"file": "server.js", "lines": "1-4"}]
	}`, nil
}

// writeFixtureRepo commits the given files into a fresh local repository
// and returns its path, which the cloner accepts in place of a URL.
func writeFixtureRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(".")
	require.NoError(t, err)
	_, err = wt.Commit("initial solution", &git.CommitOptions{
		Author: &object.Signature{Name: "Student", Email: "student@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return dir
}

func postJSON(t *testing.T, url string, payload any) map[string]any {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func getText(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

// awaitJob polls a job endpoint until it reports the wanted status.
func awaitJob(t *testing.T, url, wantStatus string) map[string]any {
	t.Helper()
	var last map[string]any
	require.Eventually(t, func() bool {
		code, body := getJSON(t, url)
		if code != http.StatusOK {
			return false
		}
		last = body
		status, _ := body["status"].(string)
		return status == wantStatus
	}, jobSettleTimeout, pollInterval, "job at %s did not reach status %q", url, wantStatus)
	return last
}
