package checkers

import (
	"strings"
	"testing"

	"github.com/fairyhunter13/ai-code-grader/internal/domain"
)

func TestCommentCheckerDetectsTODO(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n// TODO: fix this later\n")

	checker := NewCommentChecker()
	diags, err := checker.Check(root)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(diags) != 1 {
		t.Fatalf("Expected 1 diagnostic, got %d", len(diags))
	}

	d := diags[0]
	if d.File != "main.go" {
		t.Errorf("Expected file main.go, got %s", d.File)
	}
	if d.Line != 2 {
		t.Errorf("Expected line 2, got %d", d.Line)
	}
	if d.Column != 4 {
		t.Errorf("Expected column 4, got %d", d.Column)
	}
	if d.Rule != "comment-todo" {
		t.Errorf("Expected rule comment-todo, got %s", d.Rule)
	}
	if d.Severity != domain.SeverityInfo {
		t.Errorf("Expected severity info, got %s", d.Severity)
	}
	if d.Message != "TODO comment found: fix this later" {
		t.Errorf("Unexpected message %q", d.Message)
	}
	if d.Suggestion == nil || !strings.Contains(*d.Suggestion, "TODO") {
		t.Errorf("Expected suggestion naming the marker, got %v", d.Suggestion)
	}
}

func TestCommentCheckerMarkerSeverities(t *testing.T) {
	tests := []struct {
		line     string
		rule     string
		severity domain.Severity
	}{
		{"// TODO something", "comment-todo", domain.SeverityInfo},
		{"// FIXME broken", "comment-fixme", domain.SeverityWarning},
		{"// HACK workaround", "comment-hack", domain.SeverityWarning},
		{"// XXX check this", "comment-xxx", domain.SeverityWarning},
		{"// BUG crashes on empty input", "comment-bug", domain.SeverityError},
		{"// NOTE for reviewers", "comment-note", domain.SeverityInfo},
		{"// DEPRECATED use v2", "comment-deprecated", domain.SeverityWarning},
	}

	checker := NewCommentChecker()
	for _, tt := range tests {
		diags := checker.scanFile("x.go", tt.line+"\n")
		if len(diags) != 1 {
			t.Errorf("%q: expected 1 diagnostic, got %d", tt.line, len(diags))
			continue
		}
		if diags[0].Rule != tt.rule {
			t.Errorf("%q: expected rule %s, got %s", tt.line, tt.rule, diags[0].Rule)
		}
		if diags[0].Severity != tt.severity {
			t.Errorf("%q: expected severity %s, got %s", tt.line, tt.severity, diags[0].Severity)
		}
	}
}

func TestCommentCheckerMessageWithoutDescription(t *testing.T) {
	checker := NewCommentChecker()
	diags := checker.scanFile("x.go", "// TODO\n")
	if len(diags) != 1 {
		t.Fatalf("Expected 1 diagnostic, got %d", len(diags))
	}
	if diags[0].Message != "TODO comment found" {
		t.Errorf("Expected bare message, got %q", diags[0].Message)
	}
}

func TestCommentCheckerDeprecatedAnnotation(t *testing.T) {
	checker := NewCommentChecker()
	diags := checker.scanFile("x.ts", "/** @deprecated use the new client */\n")
	if len(diags) != 1 {
		t.Fatalf("Expected 1 diagnostic, got %d", len(diags))
	}
	if diags[0].Rule != "comment-deprecated" {
		t.Errorf("Expected rule comment-deprecated, got %s", diags[0].Rule)
	}
	if !strings.HasPrefix(diags[0].Message, "Deprecated code marker found") {
		t.Errorf("Unexpected message %q", diags[0].Message)
	}
}

func TestCommentCheckerLowercaseMarkerColumnFallsBack(t *testing.T) {
	checker := NewCommentChecker()
	diags := checker.scanFile("x.go", "// todo: lowercase still matches\n")
	if len(diags) != 1 {
		t.Fatalf("Expected 1 diagnostic, got %d", len(diags))
	}
	if diags[0].Column != 1 {
		t.Errorf("Expected fallback column 1, got %d", diags[0].Column)
	}
}

func TestCommentCheckerMultipleMarkersOneLine(t *testing.T) {
	checker := NewCommentChecker()
	diags := checker.scanFile("x.go", "// TODO then FIXME later\n")
	if len(diags) != 2 {
		t.Fatalf("Expected 2 diagnostics, got %d", len(diags))
	}
	rules := map[string]bool{}
	for _, d := range diags {
		rules[d.Rule] = true
	}
	if !rules["comment-todo"] || !rules["comment-fixme"] {
		t.Errorf("Expected both todo and fixme rules, got %v", rules)
	}
}

func TestCommentCheckerCleanFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "clean.go", "package clean\n\nfunc Add(a, b int) int { return a + b }\n")

	checker := NewCommentChecker()
	diags, err := checker.Check(root)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(diags) != 0 {
		t.Errorf("Expected no diagnostics, got %d: %v", len(diags), diags)
	}
}

func TestCommentCheckerType(t *testing.T) {
	if got := NewCommentChecker().Type(); got != domain.CheckComments {
		t.Errorf("Expected check type comments, got %s", got)
	}
}
