package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/fairyhunter13/ai-code-grader/internal/domain"
	"github.com/fairyhunter13/ai-code-grader/internal/observability"
	"github.com/fairyhunter13/ai-code-grader/pkg/textx"
)

var errNoProvider = errors.New("No LLM provider configured")

// Run executes the phased pipeline for one job until it reaches a terminal
// state. Callers launch it in the background after Create; the returned
// error mirrors what the job record already captured.
func (s *GradeService) Run(ctx domain.Context, id string) error {
	s.mu.RLock()
	job, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: grade %s", domain.ErrNotFound, id)
	}

	lg := observability.LoggerFromContext(ctx).With(slog.String("grade_id", id))
	req := job.req
	events := job.events
	start := time.Now()

	events.Publish(domain.GradeStarted{
		GradeID:       id,
		RepoURL:       req.RepoURL,
		TaskCount:     len(req.Tasks),
		TotalCriteria: req.TotalCriteria(),
	})
	lg.Info("grade job started",
		slog.String("repo_url", req.RepoURL),
		slog.Int("tasks", len(req.Tasks)),
		slog.Int("criteria", req.TotalCriteria()))
	observability.StartGradeJob()

	// Phase 1: clone.
	s.setStatus(id, domain.GradeStatusCloning)
	events.Publish(domain.CloningStarted{})
	cloneStart := time.Now()

	branch := ""
	if req.Branch != nil {
		branch = *req.Branch
	}
	repo, err := s.Cloner.Clone(ctx, req.RepoURL, branch)
	if err != nil {
		return s.fail(id, err, start, lg)
	}
	defer repo.Cleanup()
	events.Publish(domain.CloningCompleted{DurationMS: time.Since(cloneStart).Milliseconds()})
	observability.ObservePhase("clone", time.Since(cloneStart))

	// Phase 2: analyze.
	s.setStatus(id, domain.GradeStatusAnalyzing)
	events.Publish(domain.AnalysisStarted{})
	analysisStart := time.Now()

	files, err := s.Corpus.Read(repo.Path, job.cfg.MaxFiles)
	if err != nil {
		return s.fail(id, err, start, lg)
	}
	totalLines := 0
	for _, f := range files {
		totalLines += textx.CountLines(f.Content)
	}
	events.Publish(domain.AnalysisCompleted{FileCount: len(files), TotalLines: totalLines})
	observability.ObservePhase("analysis", time.Since(analysisStart))
	lg.Info("analysis completed", slog.Int("files", len(files)), slog.Int("lines", totalLines))

	// Phase 3: grade.
	s.setStatus(id, domain.GradeStatusGrading)
	if s.Client == nil {
		return s.fail(id, errNoProvider, start, lg)
	}

	gradingStart := time.Now()
	results, err := s.runScheduler(ctx, job, files)
	if err != nil {
		return s.fail(id, err, start, lg)
	}
	observability.ObservePhase("grading", time.Since(gradingStart))

	// Phase 4: aggregate.
	overall, percentage, grade, summary := domain.ScoreOverall(results)
	durationMS := time.Since(start).Milliseconds()

	s.update(id, func(j *gradeJob) {
		j.status = domain.GradeStatusCompleted
		j.tasks = results
		j.overall = overall
		j.percentage = percentage
		j.grade = grade
		j.summary = summary
		j.durationMS = durationMS
	})
	events.Publish(domain.GradeCompleted{
		OverallScore: overall,
		Percentage:   percentage,
		Grade:        grade,
		Summary:      summary,
		DurationMS:   durationMS,
	})
	observability.CompleteGradeJob(time.Since(start))
	observability.ObserveGradeScore(percentage)
	lg.Info("grade job completed",
		slog.Int("percentage", percentage),
		slog.String("grade", grade),
		slog.Int64("duration_ms", durationMS))

	s.persist(ctx, req, domain.GradeReport{
		ID:           id,
		RepoURL:      req.RepoURL,
		Status:       domain.GradeStatusCompleted,
		OverallScore: overall,
		Percentage:   percentage,
		Grade:        grade,
		Tasks:        results,
		Summary:      summary,
		DurationMS:   durationMS,
		Metadata:     req.Metadata,
	}, lg)
	return nil
}

// runScheduler fans the task list out under the two-level concurrency
// bounds. The outer semaphore caps concurrent tasks; the inner one is
// shared across tasks so total in-flight model calls never exceed
// max_parallel_criteria. Results keep task declaration order.
func (s *GradeService) runScheduler(ctx domain.Context, job *gradeJob, files []domain.SourceFile) ([]domain.TaskGradeResult, error) {
	checker := NewCriteriaCheckerWithLimits(job.cfg.MaxFiles, job.cfg.MaxCharsPerFile)
	taskSem := semaphore.NewWeighted(int64(job.cfg.MaxParallelTasks))
	critSem := semaphore.NewWeighted(int64(job.cfg.MaxParallelCriteria))
	timeout := time.Duration(job.cfg.CriterionTimeoutSecs) * time.Second

	results := make([]domain.TaskGradeResult, len(job.req.Tasks))
	g, gctx := errgroup.WithContext(ctx)

	var acquireErr error
	for i := range job.req.Tasks {
		if err := taskSem.Acquire(gctx, 1); err != nil {
			acquireErr = err
			break
		}
		task := job.req.Tasks[i]
		idx := i
		g.Go(func() error {
			defer taskSem.Release(1)
			res, err := s.runTask(gctx, job, checker, idx, task, files, critSem, timeout)
			if err != nil {
				return err
			}
			results[idx] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if acquireErr != nil {
		return nil, acquireErr
	}
	return results, nil
}

// runTask grades every criterion of one task and reduces them to a
// TaskGradeResult. Criterion permits are acquired in declaration order, so
// a capacity-one inner semaphore yields strictly ordered verdict events.
func (s *GradeService) runTask(ctx domain.Context, job *gradeJob, checker *CriteriaChecker, idx int, task domain.GradeTask, files []domain.SourceFile, critSem *semaphore.Weighted, timeout time.Duration) (domain.TaskGradeResult, error) {
	job.events.Publish(domain.TaskStarted{
		TaskIndex:     idx,
		TaskTitle:     task.Title,
		CriteriaCount: len(task.AcceptanceCriteria),
	})

	gc := GradeContext{RepoURL: job.req.RepoURL, Task: task, Files: files}
	crits := make([]domain.CriterionResult, len(task.AcceptanceCriteria))

	var wg sync.WaitGroup
	var abortOnce sync.Once
	var abortErr error

	for j := range task.AcceptanceCriteria {
		if err := critSem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return domain.TaskGradeResult{}, err
		}
		criterion := task.AcceptanceCriteria[j]
		cidx := j
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer critSem.Release(1)
			res, err := s.checkOne(ctx, checker, gc, criterion, timeout)
			if err != nil {
				abortOnce.Do(func() { abortErr = err })
				return
			}
			crits[cidx] = res
			job.events.Publish(domain.CriterionChecked{
				TaskIndex:      idx,
				CriterionIndex: cidx,
				Criterion:      criterion.Description,
				Passed:         res.Passed,
				Confidence:     res.Confidence,
			})
		}()
	}
	wg.Wait()
	if abortErr != nil {
		return domain.TaskGradeResult{}, abortErr
	}

	score, status, passed := domain.ScoreTask(crits)
	result := domain.TaskGradeResult{
		TaskTitle:       task.Title,
		Score:           score,
		Status:          status,
		CriteriaResults: crits,
		PassedCount:     passed,
		TotalCount:      len(crits),
	}
	job.events.Publish(domain.TaskCompleted{
		TaskIndex:   idx,
		TaskTitle:   task.Title,
		Score:       score,
		Status:      status,
		PassedCount: passed,
		TotalCount:  len(crits),
	})
	return result, nil
}

// checkOne grades a single criterion under its deadline. Grading failures
// are absorbed into a failed verdict; only parent-context cancellation
// propagates, aborting the whole job.
func (s *GradeService) checkOne(ctx domain.Context, checker *CriteriaChecker, gc GradeContext, criterion domain.Criterion, timeout time.Duration) (domain.CriterionResult, error) {
	checkStart := time.Now()
	observability.StartCriterionCheck()
	defer observability.EndCriterionCheck()
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := checker.CheckCriterion(cctx, s.Client, gc, criterion)
	if err == nil {
		observability.ObserveCriterionCheck(res.Passed, time.Since(checkStart))
		return res, nil
	}
	if ctx.Err() != nil {
		return domain.CriterionResult{}, ctx.Err()
	}

	observability.LoggerFromContext(ctx).Warn("criterion check failed",
		slog.String("criterion", textx.Truncate(criterion.Description, 120)),
		slog.Any("error", err))
	observability.ObserveCriterionCheck(false, time.Since(checkStart))
	return domain.CriterionResult{
		Criterion:      criterion.Description,
		Passed:         false,
		Confidence:     0,
		Evidence:       fmt.Sprintf("Error checking criterion: %v", err),
		CodeReferences: []domain.CodeReference{},
		Weight:         criterion.Weight,
	}, nil
}

// fail records a terminal failure and notifies subscribers. Clone and
// configuration failures are not recoverable; classified provider errors
// carry their own retryability.
func (s *GradeService) fail(id string, cause error, start time.Time, lg *slog.Logger) error {
	recoverable := false
	if le, ok := domain.AsLLMError(cause); ok {
		recoverable = le.Retryable()
	}
	msg := cause.Error()
	durationMS := time.Since(start).Milliseconds()

	s.update(id, func(j *gradeJob) {
		j.status = domain.GradeStatusFailed
		j.errMsg = &msg
		j.durationMS = durationMS
		j.events.Publish(domain.GradeFailed{Error: msg, Recoverable: recoverable})
	})
	observability.FailGradeJob()
	lg.Error("grade job failed", slog.String("error", msg), slog.Bool("recoverable", recoverable))
	return cause
}

// persist mirrors the finished report into the document store and onto the
// report topic. Both are best-effort: failures log and leave the in-memory
// result untouched.
func (s *GradeService) persist(ctx domain.Context, req domain.GradeRequest, report domain.GradeReport, lg *slog.Logger) {
	if s.Repo != nil {
		var curriculumID, taskID *string
		if req.Metadata != nil {
			curriculumID = req.Metadata.CurriculumID
			taskID = req.Metadata.TaskID
		}

		recordID, err := s.Repo.SaveJob(ctx, req, curriculumID, taskID)
		if err != nil {
			lg.Warn("failed to save grade job", slog.Any("error", err))
		} else {
			if err := s.Repo.UpdateJob(ctx, recordID, report); err != nil {
				lg.Warn("failed to update grade job", slog.Any("error", err))
			}
			if curriculumID != nil && taskID != nil {
				if err := s.Repo.UpdateTask(ctx, *curriculumID, *taskID, report); err != nil {
					lg.Warn("failed to update curriculum task", slog.Any("error", err))
				}
			}
		}
	}

	if s.Publisher != nil {
		if err := s.Publisher.PublishReport(ctx, report); err != nil {
			lg.Warn("failed to publish grade report", slog.Any("error", err))
		}
	}
}
