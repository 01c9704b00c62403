package checkers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fairyhunter13/ai-code-grader/internal/domain"
)

// LintRule names a lint rule toggled on the Linter.
type LintRule string

const (
	NoConsole  LintRule = "no-console"
	NoDebugger LintRule = "no-debugger"
	NoAlert    LintRule = "no-alert"
	NoEval     LintRule = "no-eval"
	NoVar      LintRule = "no-var"
)

// RecommendedRules returns the rules enabled by default.
func RecommendedRules() []LintRule {
	return []LintRule{NoDebugger, NoEval, NoVar}
}

var (
	debuggerRe = regexp.MustCompile(`\bdebugger\b`)
	consoleRe  = regexp.MustCompile(`\bconsole\.(\w+)\s*\(`)
	alertRe    = regexp.MustCompile(`\b(alert|confirm|prompt)\s*\(`)
	evalRe     = regexp.MustCompile(`\beval\s*\(`)
	varRe      = regexp.MustCompile(`\bvar\s+[\w$\[{]`)
)

// Linter scans JavaScript and TypeScript sources for discouraged
// constructs. It works line by line and skips comment lines, so constructs
// inside string literals can still be flagged.
type Linter struct {
	enabled map[LintRule]bool
}

func NewLinter() *Linter { return NewLinterWithRules(RecommendedRules()) }

func NewLinterWithRules(rules []LintRule) *Linter {
	enabled := make(map[LintRule]bool, len(rules))
	for _, r := range rules {
		enabled[r] = true
	}
	return &Linter{enabled: enabled}
}

var _ domain.Checker = (*Linter)(nil)

func (l *Linter) Type() domain.CheckType { return domain.CheckLint }

func (l *Linter) Check(root string) ([]domain.Diagnostic, error) {
	files := collectFiles(root, scriptExts)
	return checkFiles(root, files, l.scanFile), nil
}

func (l *Linter) scanFile(rel, content string) []domain.Diagnostic {
	var diags []domain.Diagnostic
	inBlock := false

	for i, line := range splitLines(content) {
		if inBlock {
			if strings.Contains(line, "*/") {
				inBlock = false
			}
			continue
		}
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "*") {
			continue
		}
		if strings.HasPrefix(trimmed, "/*") {
			if !strings.Contains(trimmed, "*/") {
				inBlock = true
			}
			continue
		}

		diags = append(diags, l.scanLine(rel, i+1, line)...)
	}
	return diags
}

func (l *Linter) scanLine(rel string, lineNo int, line string) []domain.Diagnostic {
	var diags []domain.Diagnostic

	add := func(col int, message string, rule LintRule, sev domain.Severity, sugg string) {
		diags = append(diags, domain.Diagnostic{
			File:       rel,
			Line:       lineNo,
			Column:     col,
			Message:    message,
			Rule:       string(rule),
			Severity:   sev,
			Suggestion: suggest(sugg),
		})
	}

	if l.enabled[NoDebugger] {
		for _, m := range debuggerRe.FindAllStringIndex(line, -1) {
			add(m[0]+1, "Unexpected 'debugger' statement", NoDebugger, domain.SeverityError,
				"Remove the debugger statement before committing")
		}
	}
	if l.enabled[NoConsole] {
		for _, m := range consoleRe.FindAllStringSubmatchIndex(line, -1) {
			method := line[m[2]:m[3]]
			add(m[0]+1, fmt.Sprintf("Unexpected console.%s call", method), NoConsole, domain.SeverityWarning,
				"Remove console calls or use a proper logging library")
		}
	}
	if l.enabled[NoAlert] {
		for _, m := range alertRe.FindAllStringSubmatchIndex(line, -1) {
			fn := line[m[2]:m[3]]
			add(m[0]+1, fmt.Sprintf("Unexpected %s() call", fn), NoAlert, domain.SeverityWarning,
				"Use a modal or toast library instead")
		}
	}
	if l.enabled[NoEval] {
		for _, m := range evalRe.FindAllStringIndex(line, -1) {
			add(m[0]+1, "eval() is a security risk and should be avoided", NoEval, domain.SeverityError,
				"Use safer alternatives like JSON.parse() for data")
		}
	}
	if l.enabled[NoVar] {
		for _, m := range varRe.FindAllStringIndex(line, -1) {
			add(m[0]+1, "Unexpected var, use let or const instead", NoVar, domain.SeverityWarning,
				"Replace 'var' with 'let' or 'const'")
		}
	}

	return diags
}
