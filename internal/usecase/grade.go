package usecase

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/ai-code-grader/internal/domain"
	"github.com/fairyhunter13/ai-code-grader/internal/observability"
	"github.com/fairyhunter13/ai-code-grader/pkg/fanout"
)

const (
	// reapInterval is the fixed cadence of the TTL reaper.
	reapInterval = 60 * time.Second
	// defaultGradeTTL keeps finished jobs queryable for an hour.
	defaultGradeTTL = 3600 * time.Second
)

// gradeJob is the store-owned state of one grading job. All fields except
// the broadcaster are guarded by the service mutex; the broadcaster has its
// own synchronization and may outlive the map entry.
type gradeJob struct {
	id         string
	status     domain.GradeStatus
	req        domain.GradeRequest
	cfg        domain.GradeConfig
	tasks      []domain.TaskGradeResult
	overall    float64
	percentage int
	grade      string
	summary    string
	durationMS int64
	errMsg     *string
	createdAt  int64
	events     *fanout.Broadcaster[domain.Event]
}

func (j *gradeJob) report() domain.GradeReport {
	return domain.GradeReport{
		ID:           j.id,
		RepoURL:      j.req.RepoURL,
		Status:       j.status,
		OverallScore: j.overall,
		Percentage:   j.percentage,
		Grade:        j.grade,
		Tasks:        j.tasks,
		Summary:      j.summary,
		DurationMS:   j.durationMS,
		Error:        j.errMsg,
		Metadata:     j.req.Metadata,
	}
}

// GradeService owns the grading job store and runs the phased pipeline.
// Cloner, Corpus, and Client are required collaborators; Repo and Publisher
// are optional and best-effort.
type GradeService struct {
	Cloner    domain.RepoCloner
	Corpus    domain.CorpusReader
	Client    domain.ModelClient
	Repo      domain.GradeRepository
	Publisher domain.ReportPublisher

	ttl  time.Duration
	mu   sync.RWMutex
	jobs map[string]*gradeJob
}

// NewGradeService constructs the service. A nil client is allowed; jobs then
// fail at the grading phase. Non-positive ttl falls back to one hour.
func NewGradeService(cloner domain.RepoCloner, corpus domain.CorpusReader, client domain.ModelClient, ttl time.Duration) *GradeService {
	if ttl <= 0 {
		ttl = defaultGradeTTL
	}
	return &GradeService{
		Cloner: cloner,
		Corpus: corpus,
		Client: client,
		ttl:    ttl,
		jobs:   make(map[string]*gradeJob),
	}
}

// Create inserts a new pending job and returns its id. It performs no I/O;
// the caller launches Run in the background afterwards.
func (s *GradeService) Create(req domain.GradeRequest) string {
	cfg := domain.DefaultGradeConfig()
	if req.Config != nil {
		cfg = req.Config.Normalized()
	}

	job := &gradeJob{
		id:        uuid.NewString(),
		status:    domain.GradeStatusPending,
		req:       req,
		cfg:       cfg,
		tasks:     []domain.TaskGradeResult{},
		createdAt: time.Now().Unix(),
		events:    fanout.New[domain.Event](),
	}

	s.mu.Lock()
	s.jobs[job.id] = job
	s.mu.Unlock()
	return job.id
}

// Get snapshots one job into its report projection.
func (s *GradeService) Get(id string) (domain.GradeReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return domain.GradeReport{}, fmt.Errorf("%w: grade %s", domain.ErrNotFound, id)
	}
	return job.report(), nil
}

// Subscribe attaches a new event receiver to the job's broadcaster. The
// channel closes when the job is evicted; events emitted before the call are
// not replayed. The returned func detaches the receiver.
func (s *GradeService) Subscribe(id string) (<-chan domain.Event, func(), error) {
	s.mu.RLock()
	job, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("%w: grade %s", domain.ErrNotFound, id)
	}
	ch, _, unsub := job.events.Subscribe()
	return ch, unsub, nil
}

// update applies fn to the job under the write lock. Evicted jobs are
// silently skipped so a running engine tolerates mid-flight reaping.
func (s *GradeService) update(id string, fn func(*gradeJob)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return false
	}
	fn(job)
	return true
}

func (s *GradeService) setStatus(id string, status domain.GradeStatus) {
	s.update(id, func(j *gradeJob) { j.status = status })
}

// StartReaper runs the TTL sweep on a fixed cadence until ctx is done.
func (s *GradeService) StartReaper(ctx domain.Context) {
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

// reapExpired evicts jobs whose age meets or exceeds the TTL. Eviction
// closes the job's broadcaster, ending subscriber streams without notice.
func (s *GradeService) reapExpired(now time.Time) {
	ttlSecs := int64(s.ttl / time.Second)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, job := range s.jobs {
		if now.Unix()-job.createdAt >= ttlSecs {
			observability.RecordDroppedEvents("grade", job.events.Drops())
			job.events.Close()
			delete(s.jobs, id)
		}
	}
}
