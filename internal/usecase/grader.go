package usecase

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fairyhunter13/ai-code-grader/internal/domain"
	"github.com/fairyhunter13/ai-code-grader/pkg/textx"
)

// graderSystemPrompt mandates the strict JSON verdict shape. Models that
// wrap the object in markdown fences are handled by extractJSON.
const graderSystemPrompt = `You are a code grader evaluating student submissions against acceptance criteria.

## Your Role
Determine if the submitted code satisfies a specific acceptance criterion.

## Evaluation Guidelines
1. Be Fair: Give credit for working implementations, even if imperfect
2. Be Thorough: Check for actual implementation, not just presence of code
3. Be Specific: Cite exact file and line numbers as evidence
4. Consider Intent: Partial implementations may still satisfy criteria

## Scoring Rules
- passed: true - Criterion is clearly satisfied
- passed: false - Criterion is NOT satisfied or insufficient evidence
- confidence: Your certainty (0.0 = guess, 1.0 = certain)

## Response Format
Respond ONLY with valid JSON (no markdown, no explanation):
{
    "passed": true|false,
    "confidence": 0.0-1.0,
    "evidence": "Detailed explanation with code references",
    "code_references": [
        {"file": "path/to/file", "line_start": 10, "line_end": 20, "snippet": "optional"}
    ]
}`

// Default corpus bounds applied when a checker is built without limits.
const (
	defaultGraderMaxFiles        = 20
	defaultGraderMaxCharsPerFile = 4000
)

// GradeContext bundles what the grader sees about one submission.
type GradeContext struct {
	RepoURL string
	Task    domain.GradeTask
	Files   []domain.SourceFile
}

// CriteriaChecker renders one prompt per criterion and parses the model's
// structured verdict. It is stateless and safe for concurrent use.
type CriteriaChecker struct {
	maxFiles        int
	maxCharsPerFile int
}

// NewCriteriaChecker returns a checker with the default corpus bounds.
func NewCriteriaChecker() *CriteriaChecker {
	return NewCriteriaCheckerWithLimits(defaultGraderMaxFiles, defaultGraderMaxCharsPerFile)
}

// NewCriteriaCheckerWithLimits bounds the prompt corpus to maxFiles files of
// at most maxCharsPerFile characters each. Non-positive values fall back to
// the defaults.
func NewCriteriaCheckerWithLimits(maxFiles, maxCharsPerFile int) *CriteriaChecker {
	if maxFiles <= 0 {
		maxFiles = defaultGraderMaxFiles
	}
	if maxCharsPerFile <= 0 {
		maxCharsPerFile = defaultGraderMaxCharsPerFile
	}
	return &CriteriaChecker{maxFiles: maxFiles, maxCharsPerFile: maxCharsPerFile}
}

// Name identifies the checker in logs and events.
func (c *CriteriaChecker) Name() string { return "criteria_checker" }

// CheckCriterion asks the model whether the submission satisfies one
// criterion and returns the parsed verdict with the criterion's weight
// copied in. Classified provider errors pass through unchanged.
func (c *CriteriaChecker) CheckCriterion(ctx domain.Context, client domain.ModelClient, gc GradeContext, criterion domain.Criterion) (domain.CriterionResult, error) {
	desc := ""
	if gc.Task.Description != nil {
		desc = *gc.Task.Description
	}

	prompt := fmt.Sprintf(
		"## Task\n%s\n%s\n\n## Acceptance Criterion to Check\n%s\n\n## Submitted Code\n%s\n\nEvaluate if this criterion is satisfied. Return JSON only.",
		gc.Task.Title, desc, criterion.Description,
		codeSummary(gc.Files, c.maxFiles, c.maxCharsPerFile),
	)

	reply, err := client.Chat(ctx, []domain.Message{domain.UserMessage(prompt)}, graderSystemPrompt)
	if err != nil {
		return domain.CriterionResult{}, err
	}
	return parseVerdict(reply, criterion)
}

// codeSummary flattens the corpus into one bounded text block: the first
// maxFiles files, each truncated to maxChars bytes with an explicit notice.
func codeSummary(files []domain.SourceFile, maxFiles, maxChars int) string {
	if len(files) > maxFiles {
		files = files[:maxFiles]
	}
	sections := make([]string, 0, len(files))
	for _, f := range files {
		content := f.Content
		if len(content) > maxChars {
			content = fmt.Sprintf("%s...\n[truncated, %d more chars]", content[:maxChars], len(f.Content)-maxChars)
		}
		sections = append(sections, fmt.Sprintf("=== %s ===\n%s", f.Path, content))
	}
	return strings.Join(sections, "\n\n")
}

// extractJSON pulls a JSON object out of a model reply: a fenced ```json
// block if present, else the span from the first '{' to the last '}', else
// the trimmed reply as-is.
func extractJSON(reply string) string {
	trimmed := strings.TrimSpace(reply)

	if start := strings.Index(trimmed, "```json"); start >= 0 {
		rest := trimmed[start+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
	}

	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return trimmed[start : end+1]
		}
	}

	return trimmed
}

type graderVerdict struct {
	Passed         bool                   `json:"passed"`
	Confidence     float64                `json:"confidence"`
	Evidence       string                 `json:"evidence"`
	CodeReferences []domain.CodeReference `json:"code_references"`
}

func parseVerdict(reply string, criterion domain.Criterion) (domain.CriterionResult, error) {
	var v graderVerdict
	if err := json.Unmarshal([]byte(extractJSON(reply)), &v); err != nil {
		slog.Warn("failed to parse grader response",
			slog.String("response", textx.Truncate(reply, 512)),
			slog.Any("error", err))
		return domain.CriterionResult{}, &domain.LLMError{
			Kind:    domain.LLMInvalidResponse,
			Message: fmt.Sprintf("JSON parse error: %v", err),
		}
	}

	confidence := v.Confidence
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}

	refs := v.CodeReferences
	if refs == nil {
		refs = []domain.CodeReference{}
	}

	return domain.CriterionResult{
		Criterion:      criterion.Description,
		Passed:         v.Passed,
		Confidence:     confidence,
		Evidence:       v.Evidence,
		CodeReferences: refs,
		Weight:         criterion.Weight,
	}, nil
}
