package usecase

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fairyhunter13/ai-code-grader/internal/domain"
)

const validatorSystemPrompt = "You are a code review assistant. " +
	"Respond ONLY with the requested JSON format. No explanations. " +
	"All text content in the JSON (messages, descriptions, suggestions) MUST be written in Korean."

// DefaultValidators returns the diagnostic post-processing chain in the
// order it runs: typo triage, comment triage, then severity adjustment.
func DefaultValidators() []domain.DiagnosticValidator {
	return []domain.DiagnosticValidator{
		NewTypoValidator(),
		NewCommentValidator(),
		NewPrioritizer(),
	}
}

// TypoValidator asks the model to flag false-positive typo findings so
// valid technical terms are not reported as misspellings.
type TypoValidator struct{}

func NewTypoValidator() *TypoValidator { return &TypoValidator{} }

func (*TypoValidator) Name() string { return "typo_validator" }

func (*TypoValidator) Validate(ctx domain.Context, client domain.ModelClient, diags []domain.Diagnostic) ([]domain.Diagnostic, error) {
	if len(diags) == 0 {
		return []domain.Diagnostic{}, nil
	}

	items := make([]string, len(diags))
	for i, d := range diags {
		items[i] = fmt.Sprintf("%d. %q in %s (line %d)", i+1, d.Message, d.File, d.Line)
	}

	prompt := fmt.Sprintf("Review these potential typos and identify FALSE POSITIVES "+
		"(valid technical terms, abbreviations, or intentional spellings).\n\n"+
		"Typos:\n%s\n\n"+
		"Return ONLY a JSON array of indices (1-based) that are FALSE POSITIVES. Example: [1, 3, 5]\n"+
		"If all are real typos, return: []",
		strings.Join(items, "\n"))

	reply, err := client.Chat(ctx, []domain.Message{domain.UserMessage(prompt)}, validatorSystemPrompt)
	if err != nil {
		return nil, err
	}

	falsePositives := parseIndexArray(reply)
	kept := make([]domain.Diagnostic, 0, len(diags))
	for i, d := range diags {
		if !containsIndex(falsePositives, i+1) {
			kept = append(kept, d)
		}
	}
	return kept, nil
}

// CommentValidator drops TODO/FIXME/HACK findings the model judges
// low-priority, stale, or not actionable.
type CommentValidator struct{}

func NewCommentValidator() *CommentValidator { return &CommentValidator{} }

func (*CommentValidator) Name() string { return "comment_validator" }

func (*CommentValidator) Validate(ctx domain.Context, client domain.ModelClient, diags []domain.Diagnostic) ([]domain.Diagnostic, error) {
	if len(diags) == 0 {
		return []domain.Diagnostic{}, nil
	}

	items := make([]string, len(diags))
	for i, d := range diags {
		items[i] = fmt.Sprintf("%d. %s in %s (line %d)", i+1, d.Message, d.File, d.Line)
	}

	prompt := fmt.Sprintf("Review these TODO/FIXME/HACK comments and identify which ones are:\n"+
		"- LOW PRIORITY (minor improvements, nice-to-have)\n"+
		"- Already completed but not removed\n"+
		"- Not actionable\n\n"+
		"Comments:\n%s\n\n"+
		"Return ONLY a JSON array of indices (1-based) to REMOVE. Example: [2, 4]\n"+
		"If all are important, return: []",
		strings.Join(items, "\n"))

	reply, err := client.Chat(ctx, []domain.Message{domain.UserMessage(prompt)}, validatorSystemPrompt)
	if err != nil {
		return nil, err
	}

	toRemove := parseIndexArray(reply)
	kept := make([]domain.Diagnostic, 0, len(diags))
	for i, d := range diags {
		if !containsIndex(toRemove, i+1) {
			kept = append(kept, d)
		}
	}
	return kept, nil
}

// Prioritizer reranks diagnostic severity by the model's judgment of
// actual impact. Unmentioned indices and unknown priorities keep their
// original severity.
type Prioritizer struct{}

func NewPrioritizer() *Prioritizer { return &Prioritizer{} }

func (*Prioritizer) Name() string { return "prioritizer" }

func (*Prioritizer) Validate(ctx domain.Context, client domain.ModelClient, diags []domain.Diagnostic) ([]domain.Diagnostic, error) {
	if len(diags) == 0 {
		return []domain.Diagnostic{}, nil
	}

	items := make([]string, len(diags))
	for i, d := range diags {
		items[i] = fmt.Sprintf("%d. [%s] %s - %s (%s:%d)",
			i+1, severityTag(d.Severity), d.Rule, d.Message, d.File, d.Line)
	}

	prompt := fmt.Sprintf("Prioritize these code issues by actual impact:\n\n"+
		"Issues:\n%s\n\n"+
		"Return a JSON array with priority adjustments:\n"+
		"[{\n  \"index\": 1,\n  \"priority\": \"high\"|\"medium\"|\"low\"\n}]\n\n"+
		"Consider:\n"+
		"- Security issues = high\n"+
		"- Bugs/crashes = high\n"+
		"- Performance = medium\n"+
		"- Style/formatting = low\n\n"+
		"Return ONLY the JSON array.",
		strings.Join(items, "\n"))

	reply, err := client.Chat(ctx, []domain.Message{domain.UserMessage(prompt)}, validatorSystemPrompt)
	if err != nil {
		return nil, err
	}

	priorities := parsePriorities(reply)
	out := make([]domain.Diagnostic, len(diags))
	for i, d := range diags {
		switch priorities[i+1] {
		case "high":
			d.Severity = domain.SeverityError
		case "medium":
			d.Severity = domain.SeverityWarning
		case "low":
			d.Severity = domain.SeverityInfo
		}
		out[i] = d
	}
	return out, nil
}

func severityTag(s domain.Severity) string {
	switch s {
	case domain.SeverityError:
		return "ERROR"
	case domain.SeverityWarning:
		return "WARN"
	default:
		return "INFO"
	}
}

func containsIndex(indices []int, n int) bool {
	for _, i := range indices {
		if i == n {
			return true
		}
	}
	return false
}

// extractJSONArray cuts the reply down to the outermost bracketed span,
// tolerating prose the model wraps around it.
func extractJSONArray(reply string) string {
	trimmed := strings.TrimSpace(reply)
	start := strings.Index(trimmed, "[")
	end := strings.LastIndex(trimmed, "]")
	if start >= 0 && end > start {
		return trimmed[start : end+1]
	}
	return trimmed
}

// parseIndexArray reads a bare JSON array of 1-based indices. Anything
// unparseable counts as an empty adjustment list.
func parseIndexArray(reply string) []int {
	var indices []int
	if err := json.Unmarshal([]byte(extractJSONArray(reply)), &indices); err != nil {
		return nil
	}
	return indices
}

type priorityAdjustment struct {
	Index    int    `json:"index"`
	Priority string `json:"priority"`
}

// parsePriorities reads [{"index":1,"priority":"high"}] into a lookup by
// 1-based index. Anything unparseable yields no adjustments.
func parsePriorities(reply string) map[int]string {
	var items []priorityAdjustment
	if err := json.Unmarshal([]byte(extractJSONArray(reply)), &items); err != nil {
		return map[int]string{}
	}
	out := make(map[int]string, len(items))
	for _, it := range items {
		out[it.Index] = it.Priority
	}
	return out
}
