package domain

import "encoding/json"

// Event is one externally tagged progress notification. The wire form is
// `{"type":"<snake_case_variant>", ...fields}`; MarshalEvent produces it.
type Event interface {
	EventType() string
}

// MarshalEvent serializes e with the type tag spliced in first.
func MarshalEvent(e Event) ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	head := []byte(`{"type":"` + e.EventType() + `"`)
	if len(body) <= 2 {
		return append(head, '}'), nil
	}
	head = append(head, ',')
	return append(head, body[1:]...), nil
}

// Grading pipeline events.

type GradeStarted struct {
	GradeID       string `json:"grade_id"`
	RepoURL       string `json:"repo_url"`
	TaskCount     int    `json:"task_count"`
	TotalCriteria int    `json:"total_criteria"`
}

func (GradeStarted) EventType() string { return "grade_started" }

type CloningStarted struct{}

func (CloningStarted) EventType() string { return "cloning_started" }

type CloningCompleted struct {
	DurationMS int64 `json:"duration_ms"`
}

func (CloningCompleted) EventType() string { return "cloning_completed" }

type AnalysisStarted struct{}

func (AnalysisStarted) EventType() string { return "analysis_started" }

type AnalysisCompleted struct {
	FileCount  int `json:"file_count"`
	TotalLines int `json:"total_lines"`
}

func (AnalysisCompleted) EventType() string { return "analysis_completed" }

type TaskStarted struct {
	TaskIndex     int    `json:"task_index"`
	TaskTitle     string `json:"task_title"`
	CriteriaCount int    `json:"criteria_count"`
}

func (TaskStarted) EventType() string { return "task_started" }

type CriterionChecked struct {
	TaskIndex      int     `json:"task_index"`
	CriterionIndex int     `json:"criterion_index"`
	Criterion      string  `json:"criterion"`
	Passed         bool    `json:"passed"`
	Confidence     float64 `json:"confidence"`
}

func (CriterionChecked) EventType() string { return "criterion_checked" }

type TaskCompleted struct {
	TaskIndex   int        `json:"task_index"`
	TaskTitle   string     `json:"task_title"`
	Score       float64    `json:"score"`
	Status      TaskStatus `json:"status"`
	PassedCount int        `json:"passed_count"`
	TotalCount  int        `json:"total_count"`
}

func (TaskCompleted) EventType() string { return "task_completed" }

type GradeCompleted struct {
	OverallScore float64 `json:"overall_score"`
	Percentage   int     `json:"percentage"`
	Grade        string  `json:"grade"`
	Summary      string  `json:"summary"`
	DurationMS   int64   `json:"duration_ms"`
}

func (GradeCompleted) EventType() string { return "grade_completed" }

type GradeFailed struct {
	Error       string `json:"error"`
	Recoverable bool   `json:"recoverable"`
}

func (GradeFailed) EventType() string { return "grade_failed" }

// Ping is the SSE keep-alive, shared by grade and review streams.
type Ping struct{}

func (Ping) EventType() string { return "ping" }

// Review pipeline events.

type ReviewStarted struct {
	ReviewID string `json:"review_id"`
	RepoURL  string `json:"repo_url"`
}

func (ReviewStarted) EventType() string { return "review_started" }

type CheckStarted struct {
	CheckType CheckType `json:"check_type"`
}

func (CheckStarted) EventType() string { return "check_started" }

type CheckCompleted struct {
	CheckType   CheckType    `json:"check_type"`
	Diagnostics []Diagnostic `json:"diagnostics"`
	DurationMS  int64        `json:"duration_ms"`
}

func (CheckCompleted) EventType() string { return "check_completed" }

type CheckFailed struct {
	CheckType CheckType `json:"check_type"`
	Error     string    `json:"error"`
}

func (CheckFailed) EventType() string { return "check_failed" }

type ValidationStarted struct {
	Validator string `json:"validator"`
}

func (ValidationStarted) EventType() string { return "validation_started" }

type ValidationCompleted struct {
	Validator string       `json:"validator"`
	Results   []Diagnostic `json:"results"`
}

func (ValidationCompleted) EventType() string { return "validation_completed" }

type ReviewerStarted struct {
	Reviewer string `json:"reviewer"`
}

func (ReviewerStarted) EventType() string { return "reviewer_started" }

type ReviewerCompleted struct {
	Reviewer    string       `json:"reviewer"`
	Suggestions []Suggestion `json:"suggestions"`
}

func (ReviewerCompleted) EventType() string { return "reviewer_completed" }

type ReviewCompleted struct {
	Summary ReviewSummary `json:"summary"`
}

func (ReviewCompleted) EventType() string { return "review_completed" }

type ReviewFailed struct {
	Error string `json:"error"`
}

func (ReviewFailed) EventType() string { return "review_failed" }
