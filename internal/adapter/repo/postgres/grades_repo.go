package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-code-grader/internal/domain"
)

// GradeRepo persists grade jobs and per-task grade records in PostgreSQL
// using a minimal pgx pool.
type GradeRepo struct{ Pool PgxPool }

// NewGradeRepo constructs a GradeRepo with the given pool.
func NewGradeRepo(p PgxPool) *GradeRepo { return &GradeRepo{Pool: p} }

// GradeJobRecord is one stored grade job row.
type GradeJobRecord struct {
	ID           string
	CurriculumID *string
	TaskID       *string
	RepoURL      string
	Branch       *string
	Status       domain.GradeStatus
	Request      domain.GradeRequest
	Result       *domain.GradeReport
	Error        *string
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

// SaveJob inserts a pending grade job and returns its id.
func (r *GradeRepo) SaveJob(ctx domain.Context, req domain.GradeRequest, curriculumID, taskID *string) (string, error) {
	tracer := otel.Tracer("repo.grades")
	ctx, span := tracer.Start(ctx, "grades.SaveJob")
	defer span.End()
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("op=grade.save: %w", err)
	}
	id := uuid.New().String()
	q := `INSERT INTO grade_jobs (id, curriculum_id, task_id, repo_url, branch, status, request, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err = r.Pool.Exec(ctx, q, id, curriculumID, taskID, req.RepoURL, req.Branch, domain.GradeStatusPending, reqJSON, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("op=grade.save: %w", err)
	}
	return id, nil
}

// UpdateJob stores the final report for a job and stamps its completion time.
func (r *GradeRepo) UpdateJob(ctx domain.Context, id string, report domain.GradeReport) error {
	tracer := otel.Tracer("repo.grades")
	ctx, span := tracer.Start(ctx, "grades.UpdateJob")
	defer span.End()
	resultJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("op=grade.update: %w", err)
	}
	q := `UPDATE grade_jobs SET status=$2, result=$3, error=$4, completed_at=$5 WHERE id=$1`
	tag, err := r.Pool.Exec(ctx, q, id, report.Status, resultJSON, report.Error, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=grade.update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=grade.update: %w", domain.ErrNotFound)
	}
	return nil
}

// UpdateTask upserts the grade record for a curriculum task. Criteria results
// are flattened across all graded tasks so the record stays self-contained.
func (r *GradeRepo) UpdateTask(ctx domain.Context, curriculumID, taskID string, report domain.GradeReport) error {
	tracer := otel.Tracer("repo.grades")
	ctx, span := tracer.Start(ctx, "grades.UpdateTask")
	defer span.End()
	flat := make([]domain.CriterionResult, 0)
	for _, t := range report.Tasks {
		flat = append(flat, t.CriteriaResults...)
	}
	critJSON, err := json.Marshal(flat)
	if err != nil {
		return fmt.Errorf("op=grade.update_task: %w", err)
	}
	q := `INSERT INTO task_grades (curriculum_id, task_id, grade_job_id, status, score, percentage, grade, criteria_results, repo_url, graded_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (curriculum_id, task_id) DO UPDATE SET
grade_job_id=EXCLUDED.grade_job_id, status=EXCLUDED.status, score=EXCLUDED.score, percentage=EXCLUDED.percentage,
grade=EXCLUDED.grade, criteria_results=EXCLUDED.criteria_results, repo_url=EXCLUDED.repo_url, graded_at=EXCLUDED.graded_at`
	_, err = r.Pool.Exec(ctx, q, curriculumID, taskID, report.ID, taskStatusFor(report.OverallScore), report.OverallScore, report.Percentage, report.Grade, critJSON, report.RepoURL, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=grade.update_task: %w", err)
	}
	return nil
}

// GetJob loads a stored grade job by id.
func (r *GradeRepo) GetJob(ctx domain.Context, id string) (GradeJobRecord, error) {
	tracer := otel.Tracer("repo.grades")
	ctx, span := tracer.Start(ctx, "grades.GetJob")
	defer span.End()
	q := `SELECT id, curriculum_id, task_id, repo_url, branch, status, request, result, error, created_at, completed_at FROM grade_jobs WHERE id=$1`
	row := r.Pool.QueryRow(ctx, q, id)
	var rec GradeJobRecord
	var reqJSON, resultJSON []byte
	if err := row.Scan(&rec.ID, &rec.CurriculumID, &rec.TaskID, &rec.RepoURL, &rec.Branch, &rec.Status, &reqJSON, &resultJSON, &rec.Error, &rec.CreatedAt, &rec.CompletedAt); err != nil {
		if err == pgx.ErrNoRows {
			return GradeJobRecord{}, fmt.Errorf("op=grade.get: %w", domain.ErrNotFound)
		}
		return GradeJobRecord{}, fmt.Errorf("op=grade.get: %w", err)
	}
	if err := json.Unmarshal(reqJSON, &rec.Request); err != nil {
		return GradeJobRecord{}, fmt.Errorf("op=grade.get: %w", err)
	}
	if len(resultJSON) > 0 {
		var report domain.GradeReport
		if err := json.Unmarshal(resultJSON, &report); err != nil {
			return GradeJobRecord{}, fmt.Errorf("op=grade.get: %w", err)
		}
		rec.Result = &report
	}
	return rec, nil
}

// taskStatusFor maps an overall score onto the pass bands used by the
// curriculum task records.
func taskStatusFor(score float64) domain.TaskStatus {
	switch {
	case score >= 0.9:
		return domain.TaskPassed
	case score >= 0.4:
		return domain.TaskPartial
	default:
		return domain.TaskFailed
	}
}
