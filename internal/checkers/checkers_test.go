package checkers

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/fairyhunter13/ai-code-grader/internal/domain"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func TestCollectFilesFiltersByExtension(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n")
	writeFile(t, root, "src/app.ts", "let x = 1\n")
	writeFile(t, root, "logo.png", "\x89PNG\r\n")
	writeFile(t, root, "Makefile", "all:\n")

	files := collectFiles(root, sourceExts)
	want := []string{"main.go", "src/app.ts"}
	if !reflect.DeepEqual(files, want) {
		t.Errorf("Expected files %v, got %v", want, files)
	}
}

func TestCollectFilesSkipsBuildAndHiddenDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.go", "package keep\n")
	for _, dir := range []string{"node_modules", "target", "dist", "build", "vendor", "__pycache__", ".git"} {
		writeFile(t, root, dir+"/skip.go", "package skip\n")
	}
	writeFile(t, root, ".hidden.go", "package hidden\n")

	files := collectFiles(root, sourceExts)
	want := []string{"keep.go"}
	if !reflect.DeepEqual(files, want) {
		t.Errorf("Expected files %v, got %v", want, files)
	}
}

func TestCollectFilesReturnsSlashPaths(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a/b/c.py", "x = 1\n")

	files := collectFiles(root, sourceExts)
	if len(files) != 1 || files[0] != "a/b/c.py" {
		t.Errorf("Expected [a/b/c.py], got %v", files)
	}
}

func TestCollectFilesBoundsDepth(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "l1/l2/l3/l4/keep.py", "x = 1\n")
	writeFile(t, root, "l1/l2/l3/l4/l5/skip.py", "x = 1\n")

	files := collectFiles(root, sourceExts)
	want := []string{"l1/l2/l3/l4/keep.py"}
	if !reflect.DeepEqual(files, want) {
		t.Errorf("Expected files %v, got %v", want, files)
	}
}

func TestReadTextFileRejectsBinary(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "blob.go", "\x00\x01\x02\x03\xff\xfe")
	writeFile(t, root, "ok.go", "package ok\n")

	if _, ok := readTextFile(root, "blob.go"); ok {
		t.Error("Expected binary content to be rejected")
	}
	content, ok := readTextFile(root, "ok.go")
	if !ok || content != "package ok\n" {
		t.Errorf("Expected text content to load, got ok=%v content=%q", ok, content)
	}
	if _, ok := readTextFile(root, "missing.go"); ok {
		t.Error("Expected missing file to be rejected")
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a\n", []string{"a"}},
		{"a\n\n", []string{"a", ""}},
		{"a\r\nb", []string{"a", "b"}},
		{"\n", []string{""}},
	}

	for _, tt := range tests {
		got := splitLines(tt.input)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitLines(%q): expected %q, got %q", tt.input, tt.want, got)
		}
	}
}

func TestAllCheckersOrder(t *testing.T) {
	all := All()
	want := []domain.CheckType{domain.CheckLint, domain.CheckComments, domain.CheckTypos, domain.CheckFormat}
	if len(all) != len(want) {
		t.Fatalf("Expected %d checkers, got %d", len(want), len(all))
	}
	for i, c := range all {
		if c.Type() != want[i] {
			t.Errorf("Checker %d: expected type %s, got %s", i, want[i], c.Type())
		}
	}
}

func TestCheckFilesPreservesFileOrder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "first\n")
	writeFile(t, root, "b.go", "second\n")
	writeFile(t, root, "c.go", "third\n")

	diags := checkFiles(root, []string{"a.go", "b.go", "c.go"}, func(rel, content string) []domain.Diagnostic {
		return []domain.Diagnostic{{File: rel, Line: 1, Column: 1, Message: content, Rule: "probe", Severity: domain.SeverityInfo}}
	})

	var got []string
	for _, d := range diags {
		got = append(got, d.File)
	}
	want := []string{"a.go", "b.go", "c.go"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected order %v, got %v", want, got)
	}
}
