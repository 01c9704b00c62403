package checkers

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fairyhunter13/ai-code-grader/internal/domain"
)

// FormatChecker flags whitespace and layout issues that survive most
// formatters: trailing whitespace, overlong lines, blank line runs, mixed
// indentation, and a missing final newline.
type FormatChecker struct {
	maxLineLength int
	maxBlankLines int
}

func NewFormatChecker() *FormatChecker {
	return &FormatChecker{maxLineLength: 120, maxBlankLines: 2}
}

var _ domain.Checker = (*FormatChecker)(nil)

func (c *FormatChecker) Type() domain.CheckType { return domain.CheckFormat }

func (c *FormatChecker) Check(root string) ([]domain.Diagnostic, error) {
	files := collectFiles(root, formatExts)
	return checkFiles(root, files, c.scanFile), nil
}

func (c *FormatChecker) scanFile(rel, content string) []domain.Diagnostic {
	var diags []domain.Diagnostic

	lines := splitLines(content)
	blankRun := 0
	hasTabs := false
	hasSpaces := false

	for i, line := range lines {
		lineNo := i + 1

		if strings.HasSuffix(line, " ") || strings.HasSuffix(line, "\t") {
			diags = append(diags, domain.Diagnostic{
				File:       rel,
				Line:       lineNo,
				Column:     len(line),
				Message:    "Trailing whitespace",
				Rule:       "trailing-whitespace",
				Severity:   domain.SeverityInfo,
				Suggestion: suggest("Remove trailing whitespace"),
			})
		}

		if chars := utf8.RuneCountInString(line); chars > c.maxLineLength {
			diags = append(diags, domain.Diagnostic{
				File:       rel,
				Line:       lineNo,
				Column:     c.maxLineLength + 1,
				Message:    fmt.Sprintf("Line exceeds %d characters (%d chars)", c.maxLineLength, chars),
				Rule:       "line-too-long",
				Severity:   domain.SeverityInfo,
				Suggestion: suggest("Consider breaking the line"),
			})
		}

		if strings.TrimSpace(line) == "" {
			blankRun++
			if blankRun > c.maxBlankLines {
				diags = append(diags, domain.Diagnostic{
					File:       rel,
					Line:       lineNo,
					Column:     1,
					Message:    fmt.Sprintf("More than %d consecutive blank lines", c.maxBlankLines),
					Rule:       "multiple-blank-lines",
					Severity:   domain.SeverityInfo,
					Suggestion: suggest("Remove extra blank lines"),
				})
			}
		} else {
			blankRun = 0
		}

		for _, r := range line {
			if r == '\t' {
				hasTabs = true
			} else if r == ' ' {
				hasSpaces = true
			} else {
				break
			}
		}
	}

	if hasTabs && hasSpaces {
		diags = append(diags, domain.Diagnostic{
			File:       rel,
			Line:       1,
			Column:     1,
			Message:    "File uses mixed tabs and spaces for indentation",
			Rule:       "mixed-indentation",
			Severity:   domain.SeverityWarning,
			Suggestion: suggest("Use consistent indentation (tabs or spaces, not both)"),
		})
	}

	if content != "" && !strings.HasSuffix(content, "\n") {
		diags = append(diags, domain.Diagnostic{
			File:       rel,
			Line:       len(lines),
			Column:     1,
			Message:    "File should end with a newline",
			Rule:       "missing-final-newline",
			Severity:   domain.SeverityInfo,
			Suggestion: suggest("Add a newline at the end of the file"),
		})
	}

	return diags
}
