// Command gradectl submits a rubric pack against a repository and reports
// the resulting grade.
//
// Server mode posts the job to a running grader instance and prints the
// grade id; with -follow it tails the job's event stream and prints the
// final report. Local mode (-local DIR) grades an existing checkout in
// process and needs LLM provider credentials in the environment.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fairyhunter13/ai-code-grader/internal/adapter/gitclone"
	"github.com/fairyhunter13/ai-code-grader/internal/adapter/llm"
	"github.com/fairyhunter13/ai-code-grader/internal/config"
	"github.com/fairyhunter13/ai-code-grader/internal/corpus"
	"github.com/fairyhunter13/ai-code-grader/internal/domain"
	"github.com/fairyhunter13/ai-code-grader/internal/rubric"
	"github.com/fairyhunter13/ai-code-grader/internal/usecase"
)

func main() {
	var (
		server     = flag.String("server", "http://localhost:8080", "grader base URL")
		repoURL    = flag.String("repo", "", "repository URL (overrides the rubric's repo_url)")
		branch     = flag.String("branch", "", "branch to grade (overrides the rubric's branch)")
		rubricPath = flag.String("rubric", "", "path to the rubric YAML (required)")
		localDir   = flag.String("local", "", "grade a local checkout in process instead of submitting")
		follow     = flag.Bool("follow", false, "stream job events and print the final report")
		timeout    = flag.Duration("timeout", 15*time.Minute, "overall deadline")
	)
	flag.Parse()

	if *rubricPath == "" {
		fmt.Fprintln(os.Stderr, "usage: gradectl -rubric assignment.yaml [-repo URL] [-branch NAME] [-follow | -local DIR]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	pack, err := rubric.Load(*rubricPath)
	if err != nil {
		log.Fatal(err)
	}
	req := pack.GradeRequest(*repoURL, *branch)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if *localDir != "" {
		if err := gradeLocal(ctx, *localDir, req); err != nil {
			log.Fatal(err)
		}
		return
	}

	if req.RepoURL == "" {
		log.Fatal("no repository to grade: pass -repo or set repo_url in the rubric")
	}
	if err := gradeRemote(ctx, strings.TrimRight(*server, "/"), req, *follow); err != nil {
		log.Fatal(err)
	}
}

// gradeRemote submits the job over HTTP. Without -follow it prints the
// grade id and returns; with -follow it tails the SSE stream, prints the
// stored report, and returns an error when the grade settled as failed.
func gradeRemote(ctx context.Context, base string, req domain.GradeRequest, follow bool) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/grade", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("submit: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var created struct {
		GradeID string `json:"grade_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return fmt.Errorf("decode submit response: %w", err)
	}
	if !follow {
		fmt.Println(created.GradeID)
		return nil
	}

	fmt.Fprintln(os.Stderr, "grade "+created.GradeID)
	failMsg, err := tailStream(ctx, base, created.GradeID)
	if err != nil {
		return err
	}
	if err := printStoredReport(ctx, base, created.GradeID); err != nil {
		return err
	}
	if failMsg != "" {
		return fmt.Errorf("grade %s failed: %s", created.GradeID, failMsg)
	}
	return nil
}

// tailStream follows the job's SSE endpoint until a terminal event arrives.
// It returns the failure message for failed grades, empty otherwise.
func tailStream(ctx context.Context, base, id string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/grade/"+id+"/stream", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("open stream: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("open stream: %s", resp.Status)
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev streamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			continue
		}
		if msg := progressLine(ev); msg != "" {
			fmt.Fprintln(os.Stderr, msg)
		}
		switch ev.Type {
		case "grade_completed":
			return "", nil
		case "grade_failed":
			return ev.Error, nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("stream: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("stream for grade %s ended before the job settled", id)
}

func printStoredReport(ctx context.Context, base, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/grade/"+id, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch report: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("fetch report: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch report: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var out bytes.Buffer
	if err := json.Indent(&out, body, "", "  "); err != nil {
		return err
	}
	fmt.Println(out.String())
	return nil
}

// gradeLocal grades a checkout that already exists on disk, skipping the
// server entirely. The same engine runs in process with a cloner that just
// hands back the directory.
func gradeLocal(ctx context.Context, dir string, req domain.GradeRequest) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	client, err := llm.FromConfig(cfg)
	if err != nil {
		return fmt.Errorf("llm provider: %w", err)
	}
	if req.RepoURL == "" {
		req.RepoURL = dir
	}

	svc := usecase.NewGradeService(localCloner{dir: dir}, corpus.NewReader(), client, time.Hour)
	id := svc.Create(req)
	events, unsubscribe, err := svc.Subscribe(id)
	if err != nil {
		return err
	}
	defer unsubscribe()

	go func() { _ = svc.Run(ctx, id) }()

	failMsg := ""
loop:
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return fmt.Errorf("grade %s evicted before it settled", id)
			}
			raw, err := domain.MarshalEvent(ev)
			if err != nil {
				continue
			}
			var se streamEvent
			if err := json.Unmarshal(raw, &se); err != nil {
				continue
			}
			if msg := progressLine(se); msg != "" {
				fmt.Fprintln(os.Stderr, msg)
			}
			switch se.Type {
			case "grade_completed":
				break loop
			case "grade_failed":
				failMsg = se.Error
				break loop
			}
		}
	}

	report, err := svc.Get(id)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	if failMsg != "" {
		return fmt.Errorf("grade %s failed: %s", id, failMsg)
	}
	return nil
}

// localCloner satisfies the cloner port with a fixed pre-existing checkout.
type localCloner struct {
	dir string
}

func (l localCloner) Clone(ctx context.Context, url, branch string) (domain.ClonedRepo, error) {
	return gitclone.FromLocal(l.dir)
}

// streamEvent is the union of the fields the progress printer cares about
// across every event variant.
type streamEvent struct {
	Type          string  `json:"type"`
	RepoURL       string  `json:"repo_url"`
	TaskCount     int     `json:"task_count"`
	TotalCriteria int     `json:"total_criteria"`
	DurationMS    int64   `json:"duration_ms"`
	FileCount     int     `json:"file_count"`
	TotalLines    int     `json:"total_lines"`
	TaskIndex     int     `json:"task_index"`
	TaskTitle     string  `json:"task_title"`
	Criterion     string  `json:"criterion"`
	Passed        bool    `json:"passed"`
	Confidence    float64 `json:"confidence"`
	Score         float64 `json:"score"`
	PassedCount   int     `json:"passed_count"`
	TotalCount    int     `json:"total_count"`
	Percentage    int     `json:"percentage"`
	Grade         string  `json:"grade"`
	Error         string  `json:"error"`
}

// progressLine renders one event for the terminal. Keep-alives and unknown
// variants render as nothing.
func progressLine(ev streamEvent) string {
	switch ev.Type {
	case "grade_started":
		return fmt.Sprintf("grading %s (%d tasks, %d criteria)", ev.RepoURL, ev.TaskCount, ev.TotalCriteria)
	case "cloning_started":
		return "cloning repository"
	case "cloning_completed":
		return fmt.Sprintf("clone finished in %dms", ev.DurationMS)
	case "analysis_started":
		return "selecting source files"
	case "analysis_completed":
		return fmt.Sprintf("corpus ready: %d files, %d lines", ev.FileCount, ev.TotalLines)
	case "task_started":
		return fmt.Sprintf("task %d: %s", ev.TaskIndex+1, ev.TaskTitle)
	case "criterion_checked":
		verdict := "fail"
		if ev.Passed {
			verdict = "pass"
		}
		return fmt.Sprintf("  [%s] %s (%.2f)", verdict, ev.Criterion, ev.Confidence)
	case "task_completed":
		return fmt.Sprintf("task %d scored %.2f (%d/%d criteria passed)", ev.TaskIndex+1, ev.Score, ev.PassedCount, ev.TotalCount)
	case "grade_completed":
		return fmt.Sprintf("grade: %s (%d%%) in %dms", ev.Grade, ev.Percentage, ev.DurationMS)
	case "grade_failed":
		return "failed: " + ev.Error
	default:
		return ""
	}
}
