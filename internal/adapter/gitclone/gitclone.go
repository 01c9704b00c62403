// Package gitclone checks out submission repositories with go-git.
//
// Clones are shallow (depth 1), bounded by a wall-clock timeout, and land
// in process-private temp dirs released through the returned cleanup.
package gitclone

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/fairyhunter13/ai-code-grader/internal/domain"
)

const (
	cloneTimeout    = 300 * time.Second
	validateTimeout = 10 * time.Second
	metadataBase    = "https://api.github.com"
)

// Cloner shallow-clones repositories into private temp dirs.
type Cloner struct {
	hc       *http.Client
	validate bool
	timeout  time.Duration
	apiBase  string
	maxBytes int64
}

// New builds a cloner with the standard timeout and no pre-clone checks.
func New() *Cloner {
	return &Cloner{timeout: cloneTimeout, apiBase: metadataBase}
}

// WithValidation enables a pre-clone HEAD against the host metadata
// endpoint for github.com URLs. A nil client gets a short-timeout default.
func (c *Cloner) WithValidation(hc *http.Client) *Cloner {
	if hc == nil {
		hc = &http.Client{Timeout: validateTimeout}
	}
	c.hc = hc
	c.validate = true
	return c
}

// WithSizeLimit rejects checkouts whose working tree exceeds mb megabytes.
// Non-positive disables the cap.
func (c *Cloner) WithSizeLimit(mb int64) *Cloner {
	if mb > 0 {
		c.maxBytes = mb << 20
	}
	return c
}

var _ domain.RepoCloner = (*Cloner)(nil)

// Clone checks url out at branch (empty selects the default branch).
func (c *Cloner) Clone(ctx domain.Context, repoURL, branch string) (domain.ClonedRepo, error) {
	owner, repo, known := ParseOwnerRepo(repoURL)
	if c.validate && known {
		if err := c.validateRepo(ctx, owner, repo); err != nil {
			return domain.ClonedRepo{}, err
		}
	}

	dir, err := os.MkdirTemp("", "grade-repo-*")
	if err != nil {
		return domain.ClonedRepo{}, fmt.Errorf("%w: failed to create temp dir: %v", domain.ErrCloneFailed, err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := &git.CloneOptions{
		URL:          repoURL,
		SingleBranch: true,
		Tags:         git.NoTags,
	}
	if remoteTransport(repoURL) {
		// Local paths lack shallow negotiation; depth applies to remotes only
		opts.Depth = 1
	}
	if branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(branch)
	}

	checkout, err := git.PlainCloneContext(cctx, dir, false, opts)
	if err != nil {
		cleanup()
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return domain.ClonedRepo{}, fmt.Errorf("%w: clone timed out", domain.ErrCloneFailed)
		}
		return domain.ClonedRepo{}, fmt.Errorf("%w: clone failed: %v", domain.ErrCloneFailed, err)
	}

	sha := ""
	if head, err := checkout.Head(); err == nil {
		sha = head.Hash().String()
	}

	if c.maxBytes > 0 {
		size, err := treeSize(dir, c.maxBytes)
		if err != nil {
			cleanup()
			return domain.ClonedRepo{}, fmt.Errorf("%w: failed to measure checkout: %v", domain.ErrCloneFailed, err)
		}
		if size > c.maxBytes {
			cleanup()
			return domain.ClonedRepo{}, fmt.Errorf("%w: repository exceeds %d MB size limit", domain.ErrCloneFailed, c.maxBytes>>20)
		}
	}

	key := repoURL
	if known {
		key = owner + "/" + repo
	}

	return domain.ClonedRepo{Path: dir, CommitSHA: sha, CacheKey: key, Cleanup: cleanup}, nil
}

// treeSize sums regular-file sizes under root, stopping early once the sum
// passes limit.
func treeSize(root string, limit int64) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		if total > limit {
			return fs.SkipAll
		}
		return nil
	})
	return total, err
}

// FromLocal wraps an existing working tree without cloning. The cleanup is
// a no-op; the caller owns the directory.
func FromLocal(path string) (domain.ClonedRepo, error) {
	if _, err := os.Stat(path); err != nil {
		return domain.ClonedRepo{}, fmt.Errorf("%w: path does not exist: %s", domain.ErrCloneFailed, path)
	}
	return domain.ClonedRepo{Path: path, CacheKey: path, Cleanup: func() {}}, nil
}

func (c *Cloner) validateRepo(ctx context.Context, owner, repo string) error {
	u := fmt.Sprintf("%s/repos/%s/%s", c.apiBase, owner, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u, nil)
	if err != nil {
		return nil
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		// Metadata outages must not block the clone attempt
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: repository not found: %s/%s", domain.ErrNotFound, owner, repo)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: failed to validate repository: %s", domain.ErrCloneFailed, resp.Status)
	}
	return nil
}

func remoteTransport(repoURL string) bool {
	switch {
	case strings.HasPrefix(repoURL, "http://"),
		strings.HasPrefix(repoURL, "https://"),
		strings.HasPrefix(repoURL, "git://"),
		strings.HasPrefix(repoURL, "ssh://"),
		strings.HasPrefix(repoURL, "git@"):
		return true
	}
	return false
}

// ParseOwnerRepo extracts the owner/repo pair from GitHub-style URLs. It
// recognizes both https and ssh forms; anything else reports ok=false.
func ParseOwnerRepo(rawURL string) (owner, repo string, ok bool) {
	s := strings.TrimSuffix(strings.TrimSpace(rawURL), "/")
	s = strings.TrimSuffix(s, ".git")

	if rest, found := strings.CutPrefix(s, "git@github.com:"); found {
		parts := strings.Split(rest, "/")
		if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			return parts[0], parts[1], true
		}
		return "", "", false
	}

	u, err := url.Parse(s)
	if err != nil || u.Host != "github.com" {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
