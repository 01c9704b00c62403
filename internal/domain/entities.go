package domain

import (
	"context"
	"encoding/json"
	"errors"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrCloneFailed     = errors.New("clone failed")
	ErrInternal        = errors.New("internal error")
)

// Criterion is one atomic assertion the submitted code is judged against.
// Weight defaults to 1.0 when the field is absent from the request body.
type Criterion struct {
	ID          *string `json:"id,omitempty"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
}

// UnmarshalJSON applies the 1.0 weight default for absent fields.
func (c *Criterion) UnmarshalJSON(b []byte) error {
	type alias Criterion
	a := alias{Weight: 1.0}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*c = Criterion(a)
	return nil
}

// GradeTask is a named rubric section with an ordered criteria list.
type GradeTask struct {
	Title              string      `json:"title"`
	Description        *string     `json:"description,omitempty"`
	AcceptanceCriteria []Criterion `json:"acceptance_criteria"`
	EstimatedMinutes   *int        `json:"estimated_minutes,omitempty"`
}

// GradeConfig bounds one job's scheduler and corpus. Zero fields fall back
// to the defaults when a request supplies a partial config.
type GradeConfig struct {
	MaxParallelTasks     int `json:"max_parallel_tasks"`
	MaxParallelCriteria  int `json:"max_parallel_criteria"`
	CriterionTimeoutSecs int `json:"criterion_timeout_secs"`
	MaxFiles             int `json:"max_files"`
	MaxCharsPerFile      int `json:"max_chars_per_file"`
}

// DefaultGradeConfig returns the scheduler/corpus defaults.
func DefaultGradeConfig() GradeConfig {
	return GradeConfig{
		MaxParallelTasks:     5,
		MaxParallelCriteria:  10,
		CriterionTimeoutSecs: 60,
		MaxFiles:             30,
		MaxCharsPerFile:      5000,
	}
}

// Normalized returns a copy with non-positive fields replaced by defaults.
func (c GradeConfig) Normalized() GradeConfig {
	d := DefaultGradeConfig()
	if c.MaxParallelTasks <= 0 {
		c.MaxParallelTasks = d.MaxParallelTasks
	}
	if c.MaxParallelCriteria <= 0 {
		c.MaxParallelCriteria = d.MaxParallelCriteria
	}
	if c.CriterionTimeoutSecs <= 0 {
		c.CriterionTimeoutSecs = d.CriterionTimeoutSecs
	}
	if c.MaxFiles <= 0 {
		c.MaxFiles = d.MaxFiles
	}
	if c.MaxCharsPerFile <= 0 {
		c.MaxCharsPerFile = d.MaxCharsPerFile
	}
	return c
}

// GradeMetadata carries optional identifiers used only by the persistence
// adapter to link a grade back to external curriculum records.
type GradeMetadata struct {
	SessionID    *string `json:"session_id,omitempty"`
	CourseID     *string `json:"course_id,omitempty"`
	StudentID    *string `json:"student_id,omitempty"`
	CurriculumID *string `json:"curriculum_id,omitempty"`
	TaskID       *string `json:"task_id,omitempty"`
}

// GradeRequest is the input envelope for one grading job.
type GradeRequest struct {
	RepoURL  string         `json:"repo_url"`
	Branch   *string        `json:"branch,omitempty"`
	Tasks    []GradeTask    `json:"tasks"`
	Config   *GradeConfig   `json:"config,omitempty"`
	Metadata *GradeMetadata `json:"metadata,omitempty"`
}

// TotalCriteria counts criteria across all tasks.
func (r GradeRequest) TotalCriteria() int {
	n := 0
	for _, t := range r.Tasks {
		n += len(t.AcceptanceCriteria)
	}
	return n
}

// CodeReference points at the lines an LLM verdict cites as evidence.
type CodeReference struct {
	File      string  `json:"file"`
	LineStart int     `json:"line_start"`
	LineEnd   int     `json:"line_end"`
	Snippet   *string `json:"snippet,omitempty"`
}

// CriterionResult is an LLM verdict on one criterion.
// Invariants: Confidence in [0,1] (clamped on ingest); Weight copied from the Criterion.
type CriterionResult struct {
	Criterion      string          `json:"criterion"`
	Passed         bool            `json:"passed"`
	Confidence     float64         `json:"confidence"`
	Evidence       string          `json:"evidence"`
	CodeReferences []CodeReference `json:"code_references"`
	Weight         float64         `json:"weight"`
}

type TaskStatus string

const (
	TaskPassed  TaskStatus = "passed"
	TaskPartial TaskStatus = "partial"
	TaskFailed  TaskStatus = "failed"
)

// TaskGradeResult is the weighted reduction over one task's criteria.
type TaskGradeResult struct {
	TaskTitle       string            `json:"task_title"`
	Score           float64           `json:"score"`
	Status          TaskStatus        `json:"status"`
	CriteriaResults []CriterionResult `json:"criteria_results"`
	PassedCount     int               `json:"passed_count"`
	TotalCount      int               `json:"total_count"`
}

type GradeStatus string

const (
	GradeStatusPending   GradeStatus = "pending"
	GradeStatusCloning   GradeStatus = "cloning"
	GradeStatusAnalyzing GradeStatus = "analyzing"
	GradeStatusGrading   GradeStatus = "grading"
	GradeStatusCompleted GradeStatus = "completed"
	GradeStatusFailed    GradeStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s GradeStatus) Terminal() bool {
	return s == GradeStatusCompleted || s == GradeStatusFailed
}

// GradeReport is the authoritative snapshot projection of one job.
type GradeReport struct {
	ID           string            `json:"id"`
	RepoURL      string            `json:"repo_url"`
	Status       GradeStatus       `json:"status"`
	OverallScore float64           `json:"overall_score"`
	Percentage   int               `json:"percentage"`
	Grade        string            `json:"grade"`
	Tasks        []TaskGradeResult `json:"tasks"`
	Summary      string            `json:"summary"`
	DurationMS   int64             `json:"duration_ms"`
	Error        *string           `json:"error,omitempty"`
	Metadata     *GradeMetadata    `json:"metadata,omitempty"`
}

// ChatRole labels one side of an LLM conversation.
type ChatRole string

const (
	RoleSystem    ChatRole = "system"
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// Message is one turn of an LLM conversation.
type Message struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// UserMessage builds a user-turn message.
func UserMessage(content string) Message { return Message{Role: RoleUser, Content: content} }

// AssistantMessage builds an assistant-turn message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ModelClient is the provider-agnostic chat capability (port).
// system is an optional system prompt; empty means none.
type ModelClient interface {
	Chat(ctx Context, messages []Message, system string) (string, error)
	Provider() string
}

// SourceFile is one corpus entry from a cloned repository.
type SourceFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// CorpusReader selects the bounded grading corpus from a local tree (port).
type CorpusReader interface {
	Read(root string, maxFiles int) ([]SourceFile, error)
}

// ClonedRepo describes a repository checked out into a private temp dir.
// Cleanup releases the directory; callers must invoke it when done.
type ClonedRepo struct {
	Path      string
	CommitSHA string
	CacheKey  string
	Cleanup   func()
}

// RepoCloner materializes a repository URL into a local workspace (port).
// An empty branch selects the remote default branch.
type RepoCloner interface {
	Clone(ctx Context, url, branch string) (ClonedRepo, error)
}

// GradeRepository persists grade jobs to an external document store (port).
// All writes are best-effort from the engine's point of view.
type GradeRepository interface {
	SaveJob(ctx Context, req GradeRequest, curriculumID, taskID *string) (string, error)
	UpdateJob(ctx Context, id string, report GradeReport) error
	UpdateTask(ctx Context, curriculumID, taskID string, report GradeReport) error
}

// ReportPublisher fans completed reports out to a message broker (port).
type ReportPublisher interface {
	PublishReport(ctx Context, report GradeReport) error
}

// Context is an alias so domain signatures stay decoupled from net/http
// plumbing; adapters and usecases pass context.Context straight through.
type Context = context.Context
