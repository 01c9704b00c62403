package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestMarshalEventTagFraming(t *testing.T) {
	tests := []struct {
		name    string
		event   Event
		tag     string
		hasKeys []string
	}{
		{"grade started", GradeStarted{GradeID: "g1", RepoURL: "https://github.com/u/r", TaskCount: 2, TotalCriteria: 4}, "grade_started", []string{"grade_id", "repo_url", "task_count", "total_criteria"}},
		{"cloning completed", CloningCompleted{DurationMS: 1500}, "cloning_completed", []string{"duration_ms"}},
		{"analysis completed", AnalysisCompleted{FileCount: 12, TotalLines: 340}, "analysis_completed", []string{"file_count", "total_lines"}},
		{"task started", TaskStarted{TaskIndex: 0, TaskTitle: "Task 1", CriteriaCount: 2}, "task_started", []string{"task_index", "task_title", "criteria_count"}},
		{"criterion checked", CriterionChecked{TaskIndex: 0, CriterionIndex: 1, Criterion: "has tests", Passed: true, Confidence: 0.9}, "criterion_checked", []string{"task_index", "criterion_index", "criterion", "passed", "confidence"}},
		{"task completed", TaskCompleted{TaskIndex: 0, TaskTitle: "Task 1", Score: 0.75, Status: TaskPartial, PassedCount: 1, TotalCount: 2}, "task_completed", []string{"task_index", "task_title", "score", "status", "passed_count", "total_count"}},
		{"grade completed", GradeCompleted{OverallScore: 1, Percentage: 100, Grade: "우수", Summary: "s", DurationMS: 9}, "grade_completed", []string{"overall_score", "percentage", "grade", "summary", "duration_ms"}},
		{"grade failed", GradeFailed{Error: "clone failed", Recoverable: false}, "grade_failed", []string{"error", "recoverable"}},
		{"review started", ReviewStarted{ReviewID: "r1", RepoURL: "https://github.com/u/r"}, "review_started", []string{"review_id", "repo_url"}},
		{"check completed", CheckCompleted{CheckType: CheckTypos, Diagnostics: []Diagnostic{}, DurationMS: 3}, "check_completed", []string{"check_type", "diagnostics", "duration_ms"}},
		{"review completed", ReviewCompleted{Summary: ReviewSummary{TotalDiagnostics: 2, BySeverity: SeverityCounts{Warning: 2}, DurationMS: 40}}, "review_completed", []string{"summary"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := MarshalEvent(tt.event)
			if err != nil {
				t.Fatalf("MarshalEvent: %v", err)
			}
			prefix := `{"type":"` + tt.tag + `"`
			if !strings.HasPrefix(string(b), prefix) {
				t.Errorf("payload %s does not start with %s", b, prefix)
			}

			var m map[string]any
			if err := json.Unmarshal(b, &m); err != nil {
				t.Fatalf("payload is not valid JSON: %v\n%s", err, b)
			}
			if m["type"] != tt.tag {
				t.Errorf("type = %v, want %q", m["type"], tt.tag)
			}
			for _, key := range tt.hasKeys {
				if _, ok := m[key]; !ok {
					t.Errorf("payload missing key %q: %s", key, b)
				}
			}
		})
	}
}

func TestMarshalEventFieldless(t *testing.T) {
	tests := []struct {
		event    Event
		expected string
	}{
		{Ping{}, `{"type":"ping"}`},
		{CloningStarted{}, `{"type":"cloning_started"}`},
		{AnalysisStarted{}, `{"type":"analysis_started"}`},
	}

	for _, tt := range tests {
		t.Run(tt.event.EventType(), func(t *testing.T) {
			b, err := MarshalEvent(tt.event)
			if err != nil {
				t.Fatalf("MarshalEvent: %v", err)
			}
			if string(b) != tt.expected {
				t.Errorf("MarshalEvent = %s, want %s", b, tt.expected)
			}
		})
	}
}

func TestMarshalEventOmitsEmptyOptionals(t *testing.T) {
	d := Diagnostic{File: "main.go", Line: 3, Column: 1, Message: "trailing whitespace", Rule: "trailing-whitespace", Severity: SeverityInfo}
	b, err := MarshalEvent(CheckCompleted{CheckType: CheckFormat, Diagnostics: []Diagnostic{d}, DurationMS: 1})
	if err != nil {
		t.Fatalf("MarshalEvent: %v", err)
	}
	if strings.Contains(string(b), "suggestion") {
		t.Errorf("nil suggestion should be omitted: %s", b)
	}
	if !strings.Contains(string(b), `"severity":"info"`) {
		t.Errorf("severity missing or wrong case: %s", b)
	}
}
