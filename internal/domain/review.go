package domain

import (
	"fmt"
	"strings"
	"time"
)

type ReviewStatus string

const (
	ReviewStatusPending   ReviewStatus = "pending"
	ReviewStatusCloning   ReviewStatus = "cloning"
	ReviewStatusRunning   ReviewStatus = "running"
	ReviewStatusCompleted ReviewStatus = "completed"
	ReviewStatusFailed    ReviewStatus = "failed"
)

type CheckType string

const (
	CheckLint      CheckType = "lint"
	CheckComments  CheckType = "comments"
	CheckTypos     CheckType = "typos"
	CheckFormat    CheckType = "format"
	CheckAiCode    CheckType = "ai_code"
	CheckAiProduct CheckType = "ai_product"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

type SuggestionCategory string

const (
	CategoryArchitecture SuggestionCategory = "architecture"
	CategoryPerformance  SuggestionCategory = "performance"
	CategorySecurity     SuggestionCategory = "security"
	CategoryCodeQuality  SuggestionCategory = "code_quality"
	CategoryProductIdea  SuggestionCategory = "product_idea"
	CategoryHardening    SuggestionCategory = "hardening"
)

// Diagnostic is one finding from a static checker, possibly reshaped by the
// validator chain before it reaches the final report.
type Diagnostic struct {
	File       string   `json:"file"`
	Line       int      `json:"line"`
	Column     int      `json:"column"`
	Message    string   `json:"message"`
	Rule       string   `json:"rule"`
	Severity   Severity `json:"severity"`
	Suggestion *string  `json:"suggestion,omitempty"`
}

// Suggestion is a high-level improvement idea from an LLM reviewer.
type Suggestion struct {
	Category    SuggestionCategory `json:"category"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	File        *string            `json:"file,omitempty"`
	Line        *int               `json:"line,omitempty"`
	Priority    Priority           `json:"priority"`
	Rationale   string             `json:"rationale"`
}

type SeverityCounts struct {
	Error   int `json:"error"`
	Warning int `json:"warning"`
	Info    int `json:"info"`
}

type ReviewSummary struct {
	TotalDiagnostics int            `json:"total_diagnostics"`
	BySeverity       SeverityCounts `json:"by_severity"`
	DurationMS       int64          `json:"duration_ms"`
}

// CountBySeverity tallies diagnostics per severity level.
func CountBySeverity(diags []Diagnostic) SeverityCounts {
	var c SeverityCounts
	for _, d := range diags {
		switch d.Severity {
		case SeverityError:
			c.Error++
		case SeverityWarning:
			c.Warning++
		default:
			c.Info++
		}
	}
	return c
}

type ReviewRequest struct {
	RepoURL string  `json:"repo_url"`
	Branch  *string `json:"branch,omitempty"`
}

// ReviewReport is the snapshot projection of one review job.
type ReviewReport struct {
	ID          string       `json:"id"`
	Status      ReviewStatus `json:"status"`
	RepoURL     string       `json:"repo_url"`
	Results     []Diagnostic `json:"results"`
	Suggestions []Suggestion `json:"suggestions"`
	Error       *string      `json:"error,omitempty"`
}

// Checker is a pure static analyzer over a checked-out tree (port).
// Implementations must be safe for concurrent use.
type Checker interface {
	Type() CheckType
	Check(root string) ([]Diagnostic, error)
}

// DiagnosticValidator post-processes checker output with an LLM pass (port).
// Failures skip the validator; the chain continues with the prior slice.
type DiagnosticValidator interface {
	Validate(ctx Context, client ModelClient, diags []Diagnostic) ([]Diagnostic, error)
	Name() string
}

// CodeReviewer produces improvement suggestions from a code context (port).
type CodeReviewer interface {
	Review(ctx Context, client ModelClient, cc CodeContext) ([]Suggestion, error)
	Name() string
}

// CodeContext bundles what LLM reviewers see about one repository.
type CodeContext struct {
	RepoURL     string
	Files       []SourceFile
	Diagnostics []Diagnostic
}

// Summary describes the repository in a few prompt-friendly lines.
func (c CodeContext) Summary() string {
	paths := make([]string, len(c.Files))
	for i, f := range c.Files {
		paths[i] = "- " + f.Path
	}
	return fmt.Sprintf("Repository: %s\nFiles (%d):\n%s",
		c.RepoURL, len(c.Files), strings.Join(paths, "\n"))
}

// CachedReview is one review cache entry keyed by repo and commit.
type CachedReview struct {
	CacheKey    string       `json:"cache_key"`
	RepoURL     string       `json:"repo_url"`
	CommitSHA   string       `json:"commit_sha"`
	Results     []Diagnostic `json:"results"`
	Suggestions []Suggestion `json:"suggestions"`
	CreatedAt   time.Time    `json:"created_at"`
}

// ReviewCache stores finished reviews keyed by owner/repo@sha (port).
// Get returns ErrNotFound on a miss. Save is best-effort.
type ReviewCache interface {
	Get(ctx Context, cacheKey string) (CachedReview, error)
	Save(ctx Context, entry CachedReview) error
}
