package checkers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fairyhunter13/ai-code-grader/internal/domain"
)

type commentPattern struct {
	re       *regexp.Regexp
	marker   string
	severity domain.Severity
	message  string
}

var commentPatterns = []commentPattern{
	{regexp.MustCompile(`(?i)\bTODO\b[:\s]*(.*)`), "TODO", domain.SeverityInfo, "TODO comment found"},
	{regexp.MustCompile(`(?i)\bFIXME\b[:\s]*(.*)`), "FIXME", domain.SeverityWarning, "FIXME comment found - indicates a bug or issue"},
	{regexp.MustCompile(`(?i)\bHACK\b[:\s]*(.*)`), "HACK", domain.SeverityWarning, "HACK comment found - indicates a workaround"},
	{regexp.MustCompile(`(?i)\bXXX\b[:\s]*(.*)`), "XXX", domain.SeverityWarning, "XXX comment found - requires attention"},
	{regexp.MustCompile(`(?i)\bBUG\b[:\s]*(.*)`), "BUG", domain.SeverityError, "BUG comment found - known bug marker"},
	{regexp.MustCompile(`(?i)\bNOTE\b[:\s]*(.*)`), "NOTE", domain.SeverityInfo, "NOTE comment found"},
	{regexp.MustCompile(`(?i)\b(?:DEPRECATED|@deprecated)\b[:\s]*(.*)`), "DEPRECATED", domain.SeverityWarning, "Deprecated code marker found"},
}

// CommentChecker flags marker comments such as TODO and FIXME that signal
// unfinished or suspect code.
type CommentChecker struct{}

func NewCommentChecker() *CommentChecker { return &CommentChecker{} }

var _ domain.Checker = (*CommentChecker)(nil)

func (c *CommentChecker) Type() domain.CheckType { return domain.CheckComments }

func (c *CommentChecker) Check(root string) ([]domain.Diagnostic, error) {
	files := collectFiles(root, sourceExts)
	return checkFiles(root, files, c.scanFile), nil
}

func (c *CommentChecker) scanFile(rel, content string) []domain.Diagnostic {
	var diags []domain.Diagnostic
	for i, line := range splitLines(content) {
		for _, p := range commentPatterns {
			m := p.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}

			message := p.message
			if desc := strings.TrimSpace(m[1]); desc != "" {
				message = p.message + ": " + desc
			}

			// Column of the marker itself, case sensitive lookup first.
			column := 1
			if idx := strings.Index(line, p.marker); idx >= 0 {
				column = idx + 1
			}

			diags = append(diags, domain.Diagnostic{
				File:       rel,
				Line:       i + 1,
				Column:     column,
				Message:    message,
				Rule:       "comment-" + strings.ToLower(p.marker),
				Severity:   p.severity,
				Suggestion: suggest(fmt.Sprintf("Address the %s comment or remove if no longer applicable", p.marker)),
			})
		}
	}
	return diags
}
