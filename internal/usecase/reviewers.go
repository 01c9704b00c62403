package usecase

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fairyhunter13/ai-code-grader/internal/domain"
)

const codeOracleSystemPrompt = "You are a senior software architect reviewing code. " +
	"Focus on actionable improvements. Respond ONLY with JSON. " +
	"All text content (title, description, rationale) MUST be written in Korean."

const productReviewerSystemPrompt = "You are a product engineer reviewing code for production readiness. " +
	"Focus on reliability, user experience, and operational excellence. Respond ONLY with JSON. " +
	"All text content (title, description, rationale) MUST be written in Korean."

const (
	reviewerMaxFiles       = 10
	reviewerMaxPreviewSize = 2000
)

// DefaultReviewers returns the suggestion pass in run order.
func DefaultReviewers() []domain.CodeReviewer {
	return []domain.CodeReviewer{
		NewCodeOracle(),
		NewProductIdeasReviewer(),
	}
}

// CodeOracle reviews source previews for architecture and code quality
// improvements.
type CodeOracle struct{}

func NewCodeOracle() *CodeOracle { return &CodeOracle{} }

func (*CodeOracle) Name() string { return "code_oracle" }

func (*CodeOracle) Review(ctx domain.Context, client domain.ModelClient, cc domain.CodeContext) ([]domain.Suggestion, error) {
	if len(cc.Files) == 0 {
		return []domain.Suggestion{}, nil
	}

	files := cc.Files
	if len(files) > reviewerMaxFiles {
		files = files[:reviewerMaxFiles]
	}
	sections := make([]string, len(files))
	for i, f := range files {
		preview := f.Content
		if len(preview) > reviewerMaxPreviewSize {
			preview = preview[:reviewerMaxPreviewSize] + "...(truncated)"
		}
		sections[i] = fmt.Sprintf("=== %s ===\n%s", f.Path, preview)
	}

	prompt := fmt.Sprintf("Analyze this codebase and provide architectural and code quality suggestions.\n\n"+
		"%s\n\n"+
		"Provide suggestions in this JSON format:\n"+
		"[{\n"+
		"  \"category\": \"architecture\"|\"performance\"|\"security\"|\"code_quality\",\n"+
		"  \"title\": \"Brief title\",\n"+
		"  \"description\": \"Detailed description\",\n"+
		"  \"file\": \"path/to/file.rs\" (optional),\n"+
		"  \"line\": 42 (optional),\n"+
		"  \"priority\": \"high\"|\"medium\"|\"low\",\n"+
		"  \"rationale\": \"Why this matters\"\n"+
		"}]\n\n"+
		"Focus on:\n"+
		"- Architectural patterns and anti-patterns\n"+
		"- Error handling improvements\n"+
		"- Performance optimizations\n"+
		"- Security concerns\n"+
		"- Code organization\n\n"+
		"Return ONLY the JSON array.",
		strings.Join(sections, "\n\n"))

	reply, err := client.Chat(ctx, []domain.Message{domain.UserMessage(prompt)}, codeOracleSystemPrompt)
	if err != nil {
		return nil, err
	}
	return parseSuggestions(reply)
}

// ProductIdeasReviewer looks at the repository shape rather than the code
// itself and suggests features and production hardening.
type ProductIdeasReviewer struct{}

func NewProductIdeasReviewer() *ProductIdeasReviewer { return &ProductIdeasReviewer{} }

func (*ProductIdeasReviewer) Name() string { return "product_ideas_reviewer" }

func (*ProductIdeasReviewer) Review(ctx domain.Context, client domain.ModelClient, cc domain.CodeContext) ([]domain.Suggestion, error) {
	if len(cc.Files) == 0 {
		return []domain.Suggestion{}, nil
	}

	diagSummary := "No issues detected."
	if len(cc.Diagnostics) > 0 {
		diagSummary = fmt.Sprintf("%d issues found.", len(cc.Diagnostics))
	}

	prompt := fmt.Sprintf("Analyze this codebase from a PRODUCT perspective.\n\n"+
		"%s\n\n"+
		"Current issues: %s\n\n"+
		"Provide suggestions in this JSON format:\n"+
		"[{\n"+
		"  \"category\": \"product_idea\"|\"hardening\",\n"+
		"  \"title\": \"Brief title\",\n"+
		"  \"description\": \"Detailed description\",\n"+
		"  \"priority\": \"high\"|\"medium\"|\"low\",\n"+
		"  \"rationale\": \"Why this matters for the product\"\n"+
		"}]\n\n"+
		"Focus on:\n"+
		"- Feature suggestions based on code structure\n"+
		"- Production hardening (logging, monitoring, error recovery)\n"+
		"- Deployment considerations\n"+
		"- User experience improvements\n"+
		"- Reliability and resilience\n\n"+
		"Return ONLY the JSON array.",
		cc.Summary(), diagSummary)

	reply, err := client.Chat(ctx, []domain.Message{domain.UserMessage(prompt)}, productReviewerSystemPrompt)
	if err != nil {
		return nil, err
	}
	return parseSuggestions(reply)
}

type rawSuggestion struct {
	Category    string  `json:"category"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	File        *string `json:"file,omitempty"`
	Line        *int    `json:"line,omitempty"`
	Priority    string  `json:"priority"`
	Rationale   string  `json:"rationale"`
}

// parseSuggestions reads the reviewer reply as a JSON array, tolerating
// surrounding prose. Unknown categories and priorities fall back rather
// than failing the whole batch.
func parseSuggestions(reply string) ([]domain.Suggestion, error) {
	jsonStr := extractJSONArray(reply)

	var raw []rawSuggestion
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return nil, &domain.LLMError{
			Kind:    domain.LLMInvalidResponse,
			Message: fmt.Sprintf("Failed to parse suggestions: %v - Response: %s", err, jsonStr),
		}
	}

	out := make([]domain.Suggestion, len(raw))
	for i, r := range raw {
		out[i] = domain.Suggestion{
			Category:    parseCategory(r.Category),
			Title:       r.Title,
			Description: r.Description,
			File:        r.File,
			Line:        r.Line,
			Priority:    parsePriority(r.Priority),
			Rationale:   r.Rationale,
		}
	}
	return out, nil
}

func parseCategory(s string) domain.SuggestionCategory {
	switch strings.ToLower(s) {
	case "architecture":
		return domain.CategoryArchitecture
	case "performance":
		return domain.CategoryPerformance
	case "security":
		return domain.CategorySecurity
	case "code_quality":
		return domain.CategoryCodeQuality
	case "product_idea":
		return domain.CategoryProductIdea
	case "hardening":
		return domain.CategoryHardening
	default:
		return domain.CategoryCodeQuality
	}
}

func parsePriority(s string) domain.Priority {
	switch strings.ToLower(s) {
	case "high":
		return domain.PriorityHigh
	case "medium":
		return domain.PriorityMedium
	case "low":
		return domain.PriorityLow
	default:
		return domain.PriorityMedium
	}
}
