// Package checkers implements the static analysis passes of the review
// pipeline. Each checker walks the checked-out tree independently and
// reports findings as diagnostics with root-relative file paths.
package checkers

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"

	"github.com/fairyhunter13/ai-code-grader/internal/domain"
)

// skipDirs are directory names no checker descends into.
var skipDirs = map[string]bool{
	"node_modules": true,
	"target":       true,
	"dist":         true,
	"build":        true,
	"vendor":       true,
	"__pycache__":  true,
}

var sourceExts = map[string]bool{
	"js": true, "jsx": true, "ts": true, "tsx": true, "rs": true,
	"py": true, "go": true, "java": true, "c": true, "cpp": true,
	"h": true, "hpp": true, "rb": true, "php": true, "swift": true,
	"kt": true, "scala": true, "cs": true,
}

// proseExts adds documentation files on top of the source set.
var proseExts = merge(sourceExts, "md", "txt")

// formatExts adds markup and config files on top of the source set.
var formatExts = merge(sourceExts,
	"md", "json", "yaml", "yml", "toml", "css", "scss", "less",
	"html", "vue", "svelte")

var scriptExts = map[string]bool{
	"js": true, "jsx": true, "ts": true, "tsx": true,
	"mjs": true, "cjs": true, "mts": true, "cts": true,
}

func merge(base map[string]bool, extra ...string) map[string]bool {
	out := make(map[string]bool, len(base)+len(extra))
	for k := range base {
		out[k] = true
	}
	for _, k := range extra {
		out[k] = true
	}
	return out
}

// All returns the static checkers in their execution order.
func All() []domain.Checker {
	return []domain.Checker{
		NewLinter(),
		NewCommentChecker(),
		NewTyposChecker(),
		NewFormatChecker(),
	}
}

// maxWalkDepth bounds how deep the checkers descend into a checkout.
const maxWalkDepth = 5

// collectFiles walks root in lexical order and returns the root-relative
// slash paths of files whose extension is in exts. Hidden components and
// build directories are pruned, subtrees deeper than maxWalkDepth are cut,
// and entry errors are skipped.
func collectFiles(root string, exts map[string]bool) []string {
	var files []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		depth := strings.Count(rel, string(filepath.Separator)) + 1

		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") || skipDirs[name] || depth >= maxWalkDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}

		ext := strings.TrimPrefix(filepath.Ext(name), ".")
		if !exts[ext] {
			return nil
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	return files
}

// readTextFile loads one file, rejecting unreadable or binary content.
func readTextFile(root, rel string) (string, bool) {
	content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return "", false
	}
	if len(content) > 0 && !isText(content) {
		return "", false
	}
	return string(content), true
}

// isText reports whether the sniffed MIME type descends from text/plain.
func isText(raw []byte) bool {
	for m := mimetype.Detect(raw); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// checkFiles scans files concurrently with a bounded worker group. The
// combined diagnostics preserve per-file traversal order.
func checkFiles(root string, files []string, scan func(rel, content string) []domain.Diagnostic) []domain.Diagnostic {
	results := make([][]domain.Diagnostic, len(files))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, rel := range files {
		g.Go(func() error {
			content, ok := readTextFile(root, rel)
			if !ok {
				return nil
			}
			results[i] = scan(rel, content)
			return nil
		})
	}
	_ = g.Wait()

	var out []domain.Diagnostic
	for _, diags := range results {
		out = append(out, diags...)
	}
	return out
}

// splitLines yields the logical lines of a file: the trailing newline does
// not produce an empty final line, and a CR before each LF is stripped.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

func suggest(s string) *string { return &s }
