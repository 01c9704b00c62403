package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/ai-code-grader/internal/config"
	"github.com/fairyhunter13/ai-code-grader/internal/domain"
	"github.com/fairyhunter13/ai-code-grader/internal/usecase"
)

const maxRequestBody = 1 << 20

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// validationMessage flattens a validator error into the message the API has
// always returned for that field. Fields are validated in declaration order,
// so the first error is the one to report.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].Field() {
		case "RepoURL":
			return "repo_url is required"
		case "Tasks":
			return "tasks cannot be empty"
		}
	}
	return "validation failed"
}

// Server aggregates handler dependencies.
type Server struct {
	Cfg     config.Config
	Grades  *usecase.GradeService
	Reviews *usecase.ReviewService

	DBCheck    func(ctx context.Context) error
	RedisCheck func(ctx context.Context) error
	KafkaCheck func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers wired. Nil readiness
// checks mean the corresponding adapter is not configured and are skipped.
func NewServer(cfg config.Config, grades *usecase.GradeService, reviews *usecase.ReviewService, dbCheck, redisCheck, kafkaCheck func(context.Context) error) *Server {
	return &Server{Cfg: cfg, Grades: grades, Reviews: reviews, DBCheck: dbCheck, RedisCheck: redisCheck, KafkaCheck: kafkaCheck}
}

type createGradeResponse struct {
	GradeID string             `json:"grade_id"`
	Status  domain.GradeStatus `json:"status"`
}

type gradeResponse struct {
	ID           string                   `json:"id"`
	Status       domain.GradeStatus       `json:"status"`
	RepoURL      string                   `json:"repo_url"`
	OverallScore float64                  `json:"overall_score"`
	Percentage   int                      `json:"percentage"`
	Grade        string                   `json:"grade"`
	Tasks        []domain.TaskGradeResult `json:"tasks"`
	Summary      string                   `json:"summary"`
	Error        *string                  `json:"error,omitempty"`
}

// newGradeResponse projects a report onto the public wire shape, which
// carries neither duration nor metadata.
func newGradeResponse(report domain.GradeReport) gradeResponse {
	tasks := report.Tasks
	if tasks == nil {
		tasks = []domain.TaskGradeResult{}
	}
	return gradeResponse{
		ID:           report.ID,
		Status:       report.Status,
		RepoURL:      report.RepoURL,
		OverallScore: report.OverallScore,
		Percentage:   report.Percentage,
		Grade:        report.Grade,
		Tasks:        tasks,
		Summary:      report.Summary,
		Error:        report.Error,
	}
}

type createReviewResponse struct {
	ReviewID string `json:"review_id"`
}

type reviewResponse struct {
	ID          string              `json:"id"`
	Status      domain.ReviewStatus `json:"status"`
	RepoURL     string              `json:"repo_url"`
	Results     []domain.Diagnostic `json:"results"`
	Suggestions []domain.Suggestion `json:"suggestions"`
	Error       *string             `json:"error,omitempty"`
}

func newReviewResponse(report domain.ReviewReport) reviewResponse {
	results := report.Results
	if results == nil {
		results = []domain.Diagnostic{}
	}
	suggestions := report.Suggestions
	if suggestions == nil {
		suggestions = []domain.Suggestion{}
	}
	return reviewResponse{
		ID:          report.ID,
		Status:      report.Status,
		RepoURL:     report.RepoURL,
		Results:     results,
		Suggestions: suggestions,
		Error:       report.Error,
	}
}

// HealthHandler reports liveness.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// CreateGradeHandler accepts a grading request, creates the job, and starts
// it in the background. The run outlives the request context.
func (s *Server) CreateGradeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		var req struct {
			RepoURL  string                `json:"repo_url" validate:"required"`
			Branch   *string               `json:"branch"`
			Tasks    []domain.GradeTask    `json:"tasks" validate:"required,min=1"`
			Config   *domain.GradeConfig   `json:"config"`
			Metadata *domain.GradeMetadata `json:"metadata"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid request body", domain.ErrInvalidArgument), err.Error())
			return
		}
		if err := getValidator().Struct(req); err != nil {
			writeError(w, r, fmt.Errorf("%w: %s", domain.ErrInvalidArgument, validationMessage(err)), nil)
			return
		}

		id := s.Grades.Create(domain.GradeRequest{
			RepoURL:  req.RepoURL,
			Branch:   req.Branch,
			Tasks:    req.Tasks,
			Config:   req.Config,
			Metadata: req.Metadata,
		})
		lg := LoggerFrom(r)
		runCtx := context.WithoutCancel(r.Context())
		go func() {
			if err := s.Grades.Run(runCtx, id); err != nil {
				lg.Error("grade job failed", slog.String("grade_id", id), slog.Any("error", err))
			}
		}()
		writeJSON(w, http.StatusOK, createGradeResponse{GradeID: id, Status: domain.GradeStatusPending})
	}
}

// GetGradeHandler returns the current report snapshot for a grade job.
func (s *Server) GetGradeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := s.Grades.Get(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, newGradeResponse(report))
	}
}

// StreamGradeHandler streams grade events over SSE.
func (s *Server) StreamGradeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events, unsub, err := s.Grades.Subscribe(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		streamEvents(w, r, events, unsub)
	}
}

// CreateReviewHandler accepts a review request, creates the job, and starts
// it in the background.
func (s *Server) CreateReviewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		var req struct {
			RepoURL string  `json:"repo_url" validate:"required"`
			Branch  *string `json:"branch"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid request body", domain.ErrInvalidArgument), err.Error())
			return
		}
		if err := getValidator().Struct(req); err != nil {
			writeError(w, r, fmt.Errorf("%w: %s", domain.ErrInvalidArgument, validationMessage(err)), nil)
			return
		}

		id := s.Reviews.Create(domain.ReviewRequest{RepoURL: req.RepoURL, Branch: req.Branch})
		lg := LoggerFrom(r)
		runCtx := context.WithoutCancel(r.Context())
		go func() {
			if err := s.Reviews.Run(runCtx, id); err != nil {
				lg.Error("review job failed", slog.String("review_id", id), slog.Any("error", err))
			}
		}()
		writeJSON(w, http.StatusOK, createReviewResponse{ReviewID: id})
	}
}

// GetReviewHandler returns the current state of a review job.
func (s *Server) GetReviewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := s.Reviews.Get(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, newReviewResponse(report))
	}
}

// StreamReviewHandler streams review events over SSE.
func (s *Server) StreamReviewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events, unsub, err := s.Reviews.Subscribe(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		streamEvents(w, r, events, unsub)
	}
}

// ReadyzHandler probes the configured external adapters.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	probe := func(ctx context.Context, name string, fn func(context.Context) error) check {
		if err := fn(ctx); err != nil {
			return check{Name: name, OK: false, Details: err.Error()}
		}
		return check{Name: name, OK: true}
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := make([]check, 0, 3)
		if s.DBCheck != nil {
			checks = append(checks, probe(ctx, "db", s.DBCheck))
		}
		if s.RedisCheck != nil {
			checks = append(checks, probe(ctx, "redis", s.RedisCheck))
		}
		if s.KafkaCheck != nil {
			checks = append(checks, probe(ctx, "kafka", s.KafkaCheck))
		}
		status := http.StatusOK
		for _, c := range checks {
			if !c.OK {
				status = http.StatusServiceUnavailable
				break
			}
		}
		writeJSON(w, status, map[string]any{"checks": checks})
	}
}
