package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/fairyhunter13/ai-code-grader/internal/checkers"
	"github.com/fairyhunter13/ai-code-grader/internal/domain"
	"github.com/fairyhunter13/ai-code-grader/internal/observability"
	"github.com/fairyhunter13/ai-code-grader/pkg/fanout"
)

const (
	// defaultReviewTTL keeps finished reviews queryable for an hour.
	defaultReviewTTL = 3600 * time.Second
	// defaultMaxConcurrentChecks bounds simultaneous static passes.
	defaultMaxConcurrentChecks = 4
	// reviewContextMaxFiles caps how much source the reviewers see.
	reviewContextMaxFiles = 20
)

// reviewJob is the store-owned state of one review. Guarded like gradeJob:
// fields under the service mutex, the broadcaster on its own.
type reviewJob struct {
	id          string
	status      domain.ReviewStatus
	req         domain.ReviewRequest
	results     []domain.Diagnostic
	suggestions []domain.Suggestion
	errMsg      *string
	createdAt   int64
	events      *fanout.Broadcaster[domain.Event]
}

func (j *reviewJob) report() domain.ReviewReport {
	return domain.ReviewReport{
		ID:          j.id,
		Status:      j.status,
		RepoURL:     j.req.RepoURL,
		Results:     j.results,
		Suggestions: j.suggestions,
		Error:       j.errMsg,
	}
}

// ReviewService owns the review job store and runs the checker, validator,
// and reviewer passes. Cloner and Corpus are required. A nil Client skips
// the LLM passes and completes with raw checker output; a nil Cache
// disables result reuse.
type ReviewService struct {
	Cloner domain.RepoCloner
	Corpus domain.CorpusReader
	Client domain.ModelClient
	Cache  domain.ReviewCache

	Checkers   []domain.Checker
	Validators []domain.DiagnosticValidator
	Reviewers  []domain.CodeReviewer

	// MaxConcurrentChecks bounds simultaneous checkers.
	// Non-positive values fall back to the default of four.
	MaxConcurrentChecks int

	ttl  time.Duration
	mu   sync.RWMutex
	jobs map[string]*reviewJob
}

// NewReviewService constructs the service with the stock checker, validator,
// and reviewer sets. Non-positive ttl falls back to one hour.
func NewReviewService(cloner domain.RepoCloner, corpus domain.CorpusReader, client domain.ModelClient, ttl time.Duration) *ReviewService {
	if ttl <= 0 {
		ttl = defaultReviewTTL
	}
	return &ReviewService{
		Cloner:     cloner,
		Corpus:     corpus,
		Client:     client,
		Checkers:   checkers.All(),
		Validators: DefaultValidators(),
		Reviewers:  DefaultReviewers(),
		ttl:        ttl,
		jobs:       make(map[string]*reviewJob),
	}
}

// Create inserts a new pending review and returns its id. No I/O happens
// here; the caller launches Run in the background afterwards.
func (s *ReviewService) Create(req domain.ReviewRequest) string {
	job := &reviewJob{
		id:          uuid.NewString(),
		status:      domain.ReviewStatusPending,
		req:         req,
		results:     []domain.Diagnostic{},
		suggestions: []domain.Suggestion{},
		createdAt:   time.Now().Unix(),
		events:      fanout.New[domain.Event](),
	}

	s.mu.Lock()
	s.jobs[job.id] = job
	s.mu.Unlock()
	return job.id
}

// Get snapshots one review into its report projection.
func (s *ReviewService) Get(id string) (domain.ReviewReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return domain.ReviewReport{}, fmt.Errorf("%w: review %s", domain.ErrNotFound, id)
	}
	return job.report(), nil
}

// Subscribe attaches a new event receiver to the review's broadcaster.
// Semantics match GradeService.Subscribe: no replay, channel closes on
// eviction, the returned func detaches.
func (s *ReviewService) Subscribe(id string) (<-chan domain.Event, func(), error) {
	s.mu.RLock()
	job, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("%w: review %s", domain.ErrNotFound, id)
	}
	ch, _, unsub := job.events.Subscribe()
	return ch, unsub, nil
}

func (s *ReviewService) update(id string, fn func(*reviewJob)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return false
	}
	fn(job)
	return true
}

func (s *ReviewService) setStatus(id string, status domain.ReviewStatus) {
	s.update(id, func(j *reviewJob) { j.status = status })
}

// StartReaper runs the TTL sweep on a fixed cadence until ctx is done.
func (s *ReviewService) StartReaper(ctx domain.Context) {
	go func() {
		ticker := time.NewTicker(reapInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.reapExpired(time.Now())
			}
		}
	}()
}

func (s *ReviewService) reapExpired(now time.Time) {
	ttlSecs := int64(s.ttl / time.Second)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, job := range s.jobs {
		if now.Unix()-job.createdAt >= ttlSecs {
			observability.RecordDroppedEvents("review", job.events.Drops())
			job.events.Close()
			delete(s.jobs, id)
		}
	}
}

// Run executes the review pipeline for one job until it reaches a terminal
// state. Callers launch it in the background after Create.
func (s *ReviewService) Run(ctx domain.Context, id string) error {
	s.mu.RLock()
	job, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: review %s", domain.ErrNotFound, id)
	}

	lg := observability.LoggerFromContext(ctx).With(slog.String("review_id", id))
	req := job.req
	start := time.Now()

	job.events.Publish(domain.ReviewStarted{ReviewID: id, RepoURL: req.RepoURL})
	lg.Info("review job started", slog.String("repo_url", req.RepoURL))
	observability.StartReviewJob()

	// Phase 1: clone.
	s.setStatus(id, domain.ReviewStatusCloning)
	branch := ""
	if req.Branch != nil {
		branch = *req.Branch
	}
	repo, err := s.Cloner.Clone(ctx, req.RepoURL, branch)
	if err != nil {
		return s.fail(id, err, lg)
	}
	defer repo.Cleanup()

	// A cache hit completes the review with the stored result for the
	// same commit; lookup failures other than a miss just log.
	cacheKey := ""
	if s.Cache != nil && repo.CacheKey != "" && repo.CommitSHA != "" {
		cacheKey = repo.CacheKey + "@" + repo.CommitSHA
		cached, err := s.Cache.Get(ctx, cacheKey)
		switch {
		case err == nil:
			lg.Info("review cache hit", slog.String("cache_key", cacheKey))
			s.complete(id, cached.Results, cached.Suggestions, start, lg)
			return nil
		case !errors.Is(err, domain.ErrNotFound):
			lg.Warn("review cache lookup failed", slog.Any("error", err))
		}
	}

	// Phase 2: static checkers.
	s.setStatus(id, domain.ReviewStatusRunning)
	diags := s.runCheckers(job, repo.Path, lg)

	// Phase 3: LLM passes. Without a provider the review completes with
	// the raw checker output.
	suggestions := []domain.Suggestion{}
	if s.Client == nil {
		lg.Info("no LLM provider configured, skipping validators and reviewers")
	} else {
		diags, err = s.runValidators(ctx, job, diags, lg)
		if err != nil {
			return s.fail(id, err, lg)
		}

		files, readErr := s.Corpus.Read(repo.Path, reviewContextMaxFiles)
		if readErr != nil {
			lg.Warn("failed to read review context", slog.Any("error", readErr))
			files = nil
		}
		cc := domain.CodeContext{RepoURL: req.RepoURL, Files: files, Diagnostics: diags}
		suggestions, err = s.runReviewers(ctx, job, cc, lg)
		if err != nil {
			return s.fail(id, err, lg)
		}
	}

	s.complete(id, diags, suggestions, start, lg)

	if s.Cache != nil && cacheKey != "" {
		entry := domain.CachedReview{
			CacheKey:    cacheKey,
			RepoURL:     req.RepoURL,
			CommitSHA:   repo.CommitSHA,
			Results:     diags,
			Suggestions: suggestions,
			CreatedAt:   time.Now(),
		}
		if err := s.Cache.Save(ctx, entry); err != nil {
			lg.Warn("failed to cache review", slog.String("cache_key", cacheKey), slog.Any("error", err))
		}
	}
	return nil
}

// runCheckers executes the static passes over the checkout, bounded by
// MaxConcurrentChecks. Diagnostics keep checker declaration order no matter
// how the passes interleave. A failing checker is reported and skipped.
func (s *ReviewService) runCheckers(job *reviewJob, root string, lg *slog.Logger) []domain.Diagnostic {
	limit := s.MaxConcurrentChecks
	if limit <= 0 {
		limit = defaultMaxConcurrentChecks
	}

	perCheck := make([][]domain.Diagnostic, len(s.Checkers))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, c := range s.Checkers {
		idx, checker := i, c
		g.Go(func() error {
			job.events.Publish(domain.CheckStarted{CheckType: checker.Type()})
			checkStart := time.Now()
			diags, err := checker.Check(root)
			if err != nil {
				lg.Warn("checker failed",
					slog.String("check", string(checker.Type())),
					slog.Any("error", err))
				job.events.Publish(domain.CheckFailed{CheckType: checker.Type(), Error: err.Error()})
				return nil
			}
			job.events.Publish(domain.CheckCompleted{
				CheckType:   checker.Type(),
				Diagnostics: diags,
				DurationMS:  time.Since(checkStart).Milliseconds(),
			})
			perCheck[idx] = diags
			return nil
		})
	}
	_ = g.Wait()

	out := []domain.Diagnostic{}
	for _, d := range perCheck {
		out = append(out, d...)
	}
	return out
}

// runValidators threads the diagnostics through each validator in order. A
// failing validator is logged and skipped, leaving the prior slice intact;
// only parent-context cancellation aborts the review.
func (s *ReviewService) runValidators(ctx domain.Context, job *reviewJob, diags []domain.Diagnostic, lg *slog.Logger) ([]domain.Diagnostic, error) {
	for _, v := range s.Validators {
		job.events.Publish(domain.ValidationStarted{Validator: v.Name()})
		out, err := v.Validate(ctx, s.Client, diags)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lg.Warn("validator failed",
				slog.String("validator", v.Name()),
				slog.Any("error", err))
			continue
		}
		diags = out
		job.events.Publish(domain.ValidationCompleted{Validator: v.Name(), Results: out})
	}
	return diags, nil
}

// runReviewers collects suggestions from each reviewer in order, skipping
// failures the same way the validator chain does.
func (s *ReviewService) runReviewers(ctx domain.Context, job *reviewJob, cc domain.CodeContext, lg *slog.Logger) ([]domain.Suggestion, error) {
	suggestions := []domain.Suggestion{}
	for _, r := range s.Reviewers {
		job.events.Publish(domain.ReviewerStarted{Reviewer: r.Name()})
		out, err := r.Review(ctx, s.Client, cc)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lg.Warn("reviewer failed",
				slog.String("reviewer", r.Name()),
				slog.Any("error", err))
			continue
		}
		suggestions = append(suggestions, out...)
		job.events.Publish(domain.ReviewerCompleted{Reviewer: r.Name(), Suggestions: out})
	}
	return suggestions, nil
}

// complete records the terminal snapshot and notifies subscribers.
func (s *ReviewService) complete(id string, results []domain.Diagnostic, suggestions []domain.Suggestion, start time.Time, lg *slog.Logger) {
	durationMS := time.Since(start).Milliseconds()
	summary := domain.ReviewSummary{
		TotalDiagnostics: len(results),
		BySeverity:       domain.CountBySeverity(results),
		DurationMS:       durationMS,
	}

	s.update(id, func(j *reviewJob) {
		j.status = domain.ReviewStatusCompleted
		j.results = results
		j.suggestions = suggestions
		j.events.Publish(domain.ReviewCompleted{Summary: summary})
	})
	observability.CompleteReviewJob(time.Since(start))
	lg.Info("review job completed",
		slog.Int("diagnostics", len(results)),
		slog.Int("suggestions", len(suggestions)),
		slog.Int64("duration_ms", durationMS))
}

// fail records a terminal failure and notifies subscribers.
func (s *ReviewService) fail(id string, cause error, lg *slog.Logger) error {
	msg := cause.Error()
	s.update(id, func(j *reviewJob) {
		j.status = domain.ReviewStatusFailed
		j.errMsg = &msg
		j.events.Publish(domain.ReviewFailed{Error: msg})
	})
	observability.FailReviewJob()
	lg.Error("review job failed", slog.String("error", msg))
	return cause
}
