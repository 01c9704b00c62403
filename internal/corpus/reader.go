// Package corpus selects the bounded set of source files presented to the
// LLM for one cloned repository.
package corpus

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/fairyhunter13/ai-code-grader/internal/domain"
)

// DefaultMaxDepth bounds directory recursion below the repo root.
const DefaultMaxDepth = 10

// skipDirs are directory names never descended into.
var skipDirs = map[string]bool{
	"node_modules": true,
	"target":       true,
	"dist":         true,
	"build":        true,
	"vendor":       true,
	"__pycache__":  true,
}

// sourceExtensions is the allow-list of file extensions worth grading.
var sourceExtensions = map[string]bool{
	"rs": true, "ts": true, "tsx": true, "js": true, "jsx": true,
	"py": true, "go": true, "java": true, "kt": true, "swift": true,
	"c": true, "cpp": true, "h": true, "hpp": true, "cs": true,
	"rb": true, "php": true, "html": true, "css": true, "json": true,
	"yaml": true, "yml": true, "toml": true, "md": true,
}

// Reader walks a checked-out tree and returns its gradeable files.
type Reader struct {
	maxDepth int
}

// NewReader returns a Reader with the default depth bound.
func NewReader() *Reader {
	return &Reader{maxDepth: DefaultMaxDepth}
}

var _ domain.CorpusReader = (*Reader)(nil)

// Read collects up to maxFiles source files under root in traversal order.
// Hidden path components and known build directories are skipped, as are
// files that cannot be read as text. Entry errors are silently ignored.
func (r *Reader) Read(root string, maxFiles int) ([]domain.SourceFile, error) {
	if maxFiles <= 0 {
		return nil, nil
	}

	files := make([]domain.SourceFile, 0, maxFiles)
	seen := 0

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
			if strings.HasPrefix(name, ".") || skipDirs[name] || depth >= r.maxDepth {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}
		ext := strings.TrimPrefix(filepath.Ext(name), ".")
		if !sourceExtensions[ext] {
			return nil
		}

		// The cap counts matching entries, readable or not.
		if seen >= maxFiles {
			return fs.SkipAll
		}
		seen++

		content, readErr := os.ReadFile(path)
		if readErr != nil || !utf8.Valid(content) {
			return nil
		}

		files = append(files, domain.SourceFile{
			Path:    filepath.ToSlash(rel),
			Content: string(content),
		})
		return nil
	})
	return files, nil
}
