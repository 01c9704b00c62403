package postgres_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-code-grader/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/ai-code-grader/internal/domain"
)

func strPtr(s string) *string { return &s }

func sampleRequest() domain.GradeRequest {
	return domain.GradeRequest{
		RepoURL: "https://github.com/student/submission",
		Branch:  strPtr("main"),
		Tasks: []domain.GradeTask{
			{
				Title: "REST API",
				AcceptanceCriteria: []domain.Criterion{
					{Description: "Implements POST /users", Weight: 1.0},
				},
			},
		},
	}
}

func sampleReport(score float64) domain.GradeReport {
	return domain.GradeReport{
		ID:           "job-1",
		RepoURL:      "https://github.com/student/submission",
		Status:       domain.GradeStatusCompleted,
		OverallScore: score,
		Percentage:   int(score * 100),
		Grade:        "B",
		Tasks: []domain.TaskGradeResult{
			{
				TaskTitle: "REST API",
				Score:     score,
				Status:    domain.TaskPartial,
				CriteriaResults: []domain.CriterionResult{
					{Criterion: "Implements POST /users", Passed: true, Confidence: 0.9, Evidence: "handler present", Weight: 1.0},
				},
				PassedCount: 1,
				TotalCount:  1,
			},
			{
				TaskTitle: "Persistence",
				Score:     score,
				Status:    domain.TaskPartial,
				CriteriaResults: []domain.CriterionResult{
					{Criterion: "Uses a database", Passed: false, Confidence: 0.8, Evidence: "in-memory map only", Weight: 1.0},
				},
				PassedCount: 0,
				TotalCount:  1,
			},
		},
		Summary:    "Half way there.",
		DurationMS: 1200,
	}
}

func TestGradeRepo_SaveJob(t *testing.T) {
	t.Parallel()
	pool := &poolStub{tag: pgconn.NewCommandTag("INSERT 0 1")}
	repo := postgres.NewGradeRepo(pool)
	req := sampleRequest()
	curriculumID := strPtr("curr-7")
	taskID := strPtr("task-3")

	id, err := repo.SaveJob(context.Background(), req, curriculumID, taskID)
	require.NoError(t, err)
	_, parseErr := uuid.Parse(id)
	require.NoError(t, parseErr, "SaveJob should mint a uuid id")

	require.Len(t, pool.execs, 1)
	call := pool.execs[0]
	require.Contains(t, call.sql, "INSERT INTO grade_jobs")
	require.Equal(t, id, call.args[0])
	require.Equal(t, curriculumID, call.args[1])
	require.Equal(t, taskID, call.args[2])
	require.Equal(t, req.RepoURL, call.args[3])
	require.Equal(t, req.Branch, call.args[4])
	require.Equal(t, domain.GradeStatusPending, call.args[5])

	var stored domain.GradeRequest
	require.NoError(t, json.Unmarshal(call.args[6].([]byte), &stored))
	require.Equal(t, req.RepoURL, stored.RepoURL)
	require.Len(t, stored.Tasks, 1)

	createdAt, ok := call.args[7].(time.Time)
	require.True(t, ok)
	require.False(t, createdAt.IsZero())
}

func TestGradeRepo_SaveJob_ExecError(t *testing.T) {
	t.Parallel()
	pool := &poolStub{execErr: errors.New("connection refused")}
	repo := postgres.NewGradeRepo(pool)

	id, err := repo.SaveJob(context.Background(), sampleRequest(), nil, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "op=grade.save")
	require.Empty(t, id)
}

func TestGradeRepo_UpdateJob(t *testing.T) {
	t.Parallel()
	pool := &poolStub{tag: pgconn.NewCommandTag("UPDATE 1")}
	repo := postgres.NewGradeRepo(pool)
	report := sampleReport(0.5)

	require.NoError(t, repo.UpdateJob(context.Background(), "job-1", report))

	require.Len(t, pool.execs, 1)
	call := pool.execs[0]
	require.Contains(t, call.sql, "UPDATE grade_jobs SET")
	require.Equal(t, "job-1", call.args[0])
	require.Equal(t, domain.GradeStatusCompleted, call.args[1])

	var stored domain.GradeReport
	require.NoError(t, json.Unmarshal(call.args[2].([]byte), &stored))
	require.Equal(t, report.ID, stored.ID)
	require.Equal(t, report.OverallScore, stored.OverallScore)
	require.Len(t, stored.Tasks, 2)

	require.Nil(t, call.args[3])
	completedAt, ok := call.args[4].(time.Time)
	require.True(t, ok)
	require.False(t, completedAt.IsZero())
}

func TestGradeRepo_UpdateJob_MissingRow(t *testing.T) {
	t.Parallel()
	pool := &poolStub{tag: pgconn.NewCommandTag("UPDATE 0")}
	repo := postgres.NewGradeRepo(pool)

	err := repo.UpdateJob(context.Background(), "ghost", sampleReport(0.5))
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGradeRepo_UpdateTask_UpsertShape(t *testing.T) {
	t.Parallel()
	pool := &poolStub{tag: pgconn.NewCommandTag("INSERT 0 1")}
	repo := postgres.NewGradeRepo(pool)
	report := sampleReport(0.62)

	require.NoError(t, repo.UpdateTask(context.Background(), "curr-7", "task-3", report))

	require.Len(t, pool.execs, 1)
	call := pool.execs[0]
	require.Contains(t, call.sql, "INSERT INTO task_grades")
	require.Contains(t, call.sql, "ON CONFLICT (curriculum_id, task_id) DO UPDATE")
	require.Equal(t, "curr-7", call.args[0])
	require.Equal(t, "task-3", call.args[1])
	require.Equal(t, report.ID, call.args[2])
	require.Equal(t, domain.TaskPartial, call.args[3])
	require.Equal(t, report.OverallScore, call.args[4])
	require.Equal(t, report.Percentage, call.args[5])
	require.Equal(t, report.Grade, call.args[6])

	var crits []domain.CriterionResult
	require.NoError(t, json.Unmarshal(call.args[7].([]byte), &crits))
	require.Len(t, crits, 2, "criteria are flattened across tasks")
	require.Equal(t, "Implements POST /users", crits[0].Criterion)
	require.Equal(t, "Uses a database", crits[1].Criterion)

	require.Equal(t, report.RepoURL, call.args[8])
}

func TestGradeRepo_UpdateTask_StatusBands(t *testing.T) {
	t.Parallel()
	cases := []struct {
		score float64
		want  domain.TaskStatus
	}{
		{0.95, domain.TaskPassed},
		{0.9, domain.TaskPassed},
		{0.62, domain.TaskPartial},
		{0.4, domain.TaskPartial},
		{0.39, domain.TaskFailed},
		{0, domain.TaskFailed},
	}
	for _, tc := range cases {
		pool := &poolStub{tag: pgconn.NewCommandTag("INSERT 0 1")}
		repo := postgres.NewGradeRepo(pool)
		require.NoError(t, repo.UpdateTask(context.Background(), "c", "t", sampleReport(tc.score)))
		require.Len(t, pool.execs, 1)
		require.Equal(t, tc.want, pool.execs[0].args[3], "score %v", tc.score)
	}
}

func TestGradeRepo_GetJob(t *testing.T) {
	t.Parallel()
	req := sampleRequest()
	reqJSON, err := json.Marshal(req)
	require.NoError(t, err)
	report := sampleReport(0.8)
	resultJSON, err := json.Marshal(report)
	require.NoError(t, err)
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	completed := created.Add(90 * time.Second)

	pool := &poolStub{row: rowStub{scan: func(dest ...any) error {
		*(dest[0].(*string)) = "job-1"
		*(dest[1].(**string)) = strPtr("curr-7")
		*(dest[2].(**string)) = strPtr("task-3")
		*(dest[3].(*string)) = req.RepoURL
		*(dest[4].(**string)) = strPtr("main")
		*(dest[5].(*domain.GradeStatus)) = domain.GradeStatusCompleted
		*(dest[6].(*[]byte)) = reqJSON
		*(dest[7].(*[]byte)) = resultJSON
		*(dest[8].(**string)) = nil
		*(dest[9].(*time.Time)) = created
		*(dest[10].(**time.Time)) = &completed
		return nil
	}}}
	repo := postgres.NewGradeRepo(pool)

	rec, err := repo.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.Contains(t, pool.queried, "FROM grade_jobs WHERE id=$1")
	require.Equal(t, []any{"job-1"}, pool.queryArgs)

	require.Equal(t, "job-1", rec.ID)
	require.Equal(t, "curr-7", *rec.CurriculumID)
	require.Equal(t, "task-3", *rec.TaskID)
	require.Equal(t, req.RepoURL, rec.RepoURL)
	require.Equal(t, domain.GradeStatusCompleted, rec.Status)
	require.Equal(t, req.RepoURL, rec.Request.RepoURL)
	require.Len(t, rec.Request.Tasks, 1)
	require.NotNil(t, rec.Result)
	require.Equal(t, report.OverallScore, rec.Result.OverallScore)
	require.Nil(t, rec.Error)
	require.Equal(t, created, rec.CreatedAt)
	require.Equal(t, completed, *rec.CompletedAt)
}

func TestGradeRepo_GetJob_NullResult(t *testing.T) {
	t.Parallel()
	reqJSON, err := json.Marshal(sampleRequest())
	require.NoError(t, err)

	pool := &poolStub{row: rowStub{scan: func(dest ...any) error {
		*(dest[0].(*string)) = "job-2"
		*(dest[3].(*string)) = "https://github.com/student/submission"
		*(dest[5].(*domain.GradeStatus)) = domain.GradeStatusPending
		*(dest[6].(*[]byte)) = reqJSON
		*(dest[9].(*time.Time)) = time.Now().UTC()
		return nil
	}}}
	repo := postgres.NewGradeRepo(pool)

	rec, err := repo.GetJob(context.Background(), "job-2")
	require.NoError(t, err)
	require.Nil(t, rec.Result)
	require.Nil(t, rec.CompletedAt)
	require.Equal(t, domain.GradeStatusPending, rec.Status)
}

func TestGradeRepo_GetJob_NotFound(t *testing.T) {
	t.Parallel()
	pool := &poolStub{row: rowStub{scan: func(_ ...any) error { return pgx.ErrNoRows }}}
	repo := postgres.NewGradeRepo(pool)

	_, err := repo.GetJob(context.Background(), "ghost")
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.True(t, strings.HasPrefix(err.Error(), "op=grade.get:"))
}
