// Package rubric loads grading rubric packs from YAML files.
//
// A pack bundles the tasks and weighted acceptance criteria for one
// assignment, plus optional repository, scheduler, and metadata defaults,
// so the same rubric can be submitted against many student repositories.
package rubric

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/ai-code-grader/internal/domain"
)

// Pack is one YAML rubric bundle. CLI flags override the repo fields.
type Pack struct {
	RepoURL  string        `yaml:"repo_url"`
	Branch   string        `yaml:"branch"`
	Config   *PackConfig   `yaml:"config"`
	Metadata *PackMetadata `yaml:"metadata"`
	Tasks    []PackTask    `yaml:"tasks"`
}

// PackConfig mirrors the per-job scheduler and corpus bounds.
type PackConfig struct {
	MaxParallelTasks     int `yaml:"max_parallel_tasks"`
	MaxParallelCriteria  int `yaml:"max_parallel_criteria"`
	CriterionTimeoutSecs int `yaml:"criterion_timeout_secs"`
	MaxFiles             int `yaml:"max_files"`
	MaxCharsPerFile      int `yaml:"max_chars_per_file"`
}

// PackMetadata carries pass-through identifiers for the result sink.
type PackMetadata struct {
	SessionID    string `yaml:"session_id"`
	CourseID     string `yaml:"course_id"`
	StudentID    string `yaml:"student_id"`
	CurriculumID string `yaml:"curriculum_id"`
	TaskID       string `yaml:"task_id"`
}

// PackTask is one graded assignment task.
type PackTask struct {
	Title              string          `yaml:"title"`
	Description        string          `yaml:"description"`
	EstimatedMinutes   int             `yaml:"estimated_minutes"`
	AcceptanceCriteria []PackCriterion `yaml:"acceptance_criteria"`
}

// PackCriterion accepts either a bare string or a mapping with id,
// description, and weight. Bare strings weigh 1.0.
type PackCriterion struct {
	ID          string  `yaml:"id"`
	Description string  `yaml:"description"`
	Weight      float64 `yaml:"weight"`
}

// UnmarshalYAML applies the scalar shorthand and the 1.0 weight default.
func (c *PackCriterion) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		c.Description = node.Value
		c.Weight = 1.0
		return nil
	}
	type alias PackCriterion
	a := alias{Weight: 1.0}
	if err := node.Decode(&a); err != nil {
		return err
	}
	*c = PackCriterion(a)
	return nil
}

// Load reads and validates one rubric pack.
func Load(path string) (*Pack, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("rubric file not found: %s", path)
		}
		return nil, err
	}
	var p Pack
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("yaml parse: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &p, nil
}

func (p *Pack) validate() error {
	if len(p.Tasks) == 0 {
		return errors.New("rubric has no tasks")
	}
	for i, t := range p.Tasks {
		if strings.TrimSpace(t.Title) == "" {
			return fmt.Errorf("task %d: title is required", i+1)
		}
		if len(t.AcceptanceCriteria) == 0 {
			return fmt.Errorf("task %q: acceptance_criteria cannot be empty", t.Title)
		}
		for j, c := range t.AcceptanceCriteria {
			if strings.TrimSpace(c.Description) == "" {
				return fmt.Errorf("task %q: criterion %d has no description", t.Title, j+1)
			}
		}
	}
	return nil
}

// GradeRequest converts the pack into a submission. Non-empty repoURL and
// branch arguments win over the pack's own fields.
func (p *Pack) GradeRequest(repoURL, branch string) domain.GradeRequest {
	req := domain.GradeRequest{RepoURL: p.RepoURL}
	if repoURL != "" {
		req.RepoURL = repoURL
	}
	if b := firstNonEmpty(branch, p.Branch); b != "" {
		req.Branch = &b
	}

	for _, t := range p.Tasks {
		task := domain.GradeTask{Title: t.Title}
		if d := t.Description; d != "" {
			task.Description = &d
		}
		if m := t.EstimatedMinutes; m > 0 {
			task.EstimatedMinutes = &m
		}
		for _, c := range t.AcceptanceCriteria {
			crit := domain.Criterion{Description: c.Description, Weight: c.Weight}
			if id := c.ID; id != "" {
				crit.ID = &id
			}
			task.AcceptanceCriteria = append(task.AcceptanceCriteria, crit)
		}
		req.Tasks = append(req.Tasks, task)
	}

	if p.Config != nil {
		cfg := domain.GradeConfig{
			MaxParallelTasks:     p.Config.MaxParallelTasks,
			MaxParallelCriteria:  p.Config.MaxParallelCriteria,
			CriterionTimeoutSecs: p.Config.CriterionTimeoutSecs,
			MaxFiles:             p.Config.MaxFiles,
			MaxCharsPerFile:      p.Config.MaxCharsPerFile,
		}
		req.Config = &cfg
	}
	if p.Metadata != nil {
		md := domain.GradeMetadata{}
		setOpt(&md.SessionID, p.Metadata.SessionID)
		setOpt(&md.CourseID, p.Metadata.CourseID)
		setOpt(&md.StudentID, p.Metadata.StudentID)
		setOpt(&md.CurriculumID, p.Metadata.CurriculumID)
		setOpt(&md.TaskID, p.Metadata.TaskID)
		req.Metadata = &md
	}
	return req
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func setOpt(dst **string, v string) {
	if v != "" {
		*dst = &v
	}
}
