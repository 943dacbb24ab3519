// Package execution runs generated Playwright tests in a local process
// and turns the reporter output into tagged failures.
package execution

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/testforge/cardforge/internal/config"
	"github.com/testforge/cardforge/internal/domain"
)

// killGrace is how long a killed run may keep its output pipes open.
const killGrace = 3 * time.Second

// Runner executes tests with the Playwright CLI
type Runner struct {
	cfg    config.RunnerConfig
	logger *zap.Logger
}

// NewRunner creates a new runner
func NewRunner(cfg config.RunnerConfig, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.Command) == 0 {
		cfg.Command = []string{"npx", "playwright", "test"}
	}
	return &Runner{cfg: cfg, logger: logger}
}

// Run executes the requested test files under a hard wall-clock timeout.
// A run that exceeds it is killed and reported with RunStatusTimeout and a
// Timeout error. Test failures are not errors: they come back in the
// result.
func (r *Runner) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	startTime := time.Now()

	timeout := req.Timeout
	if timeout == 0 {
		timeout = r.cfg.Timeout
	}
	if err := domain.ValidateTimeout("timeout", timeout); err != nil {
		return nil, err
	}
	if len(req.Files) == 0 {
		return nil, domain.ErrInvalidInput("files", "at least one test file is required")
	}

	reportFile, err := os.CreateTemp("", "cardforge-results-*.json")
	if err != nil {
		return nil, fmt.Errorf("creating report file: %w", err)
	}
	reportPath := reportFile.Name()
	reportFile.Close()
	defer os.Remove(reportPath)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string{}, r.cfg.Command[1:]...), r.relativeFiles(req)...)
	args = append(args, "--reporter=json")

	// Add browser project
	project := req.Project
	if project == "" {
		project = r.cfg.Project
	}
	if project != "" {
		args = append(args, "--project="+project)
	}

	// Add workers
	workers := req.Workers
	if workers <= 0 {
		workers = r.cfg.Workers
	}
	if workers > 0 {
		args = append(args, fmt.Sprintf("--workers=%d", workers))
	}
	if req.Grep != "" {
		args = append(args, "--grep", req.Grep)
	}

	r.logger.Info("running playwright tests",
		zap.String("command", r.cfg.Command[0]),
		zap.Strings("args", args),
		zap.String("dir", req.Dir),
		zap.Duration("timeout", timeout),
	)

	cmd := exec.CommandContext(runCtx, r.cfg.Command[0], args...)
	cmd.Dir = req.Dir
	cmd.WaitDelay = killGrace

	// Set environment
	cmd.Env = append(os.Environ(),
		"CI=true",
		"FORCE_COLOR=0",
		fmt.Sprintf("PLAYWRIGHT_JSON_OUTPUT_NAME=%s", reportPath),
	)
	baseURL := req.BaseURL
	if baseURL == "" {
		baseURL = r.cfg.BaseURL
	}
	if baseURL != "" {
		cmd.Env = append(cmd.Env, fmt.Sprintf("BASE_URL=%s", baseURL))
	}

	// Capture output
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	result := &RunResult{
		Duration: time.Since(startTime),
		Logs:     stdout.String() + "\n" + stderr.String(),
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		result.Status = RunStatusTimeout
		result.ExitCode = -1
		result.Failures = []Failure{{
			Title:   "Test run",
			Message: fmt.Sprintf("Test execution timed out after %s and was terminated", timeout),
		}}
		r.logger.Warn("playwright run timed out", zap.Duration("timeout", timeout))
		return result, domain.ErrTimeout("test execution")
	}

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
	case errors.As(runErr, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		result.Status = RunStatusError
		result.ExitCode = -1
		return result, domain.ErrExecutionFailed("could not start test runner", runErr)
	}

	results := r.readResults(reportPath, stdout.Bytes(), result.Logs)
	result.Passed = results.Stats.Expected + results.Stats.Flaky
	result.Failed = results.Stats.Unexpected
	result.Skipped = results.Stats.Skipped
	result.Total = result.Passed + result.Failed + result.Skipped
	result.Failures = results.Failures()

	switch {
	case result.ExitCode == 0 && len(result.Failures) == 0:
		result.Status = RunStatusPassed
	default:
		result.Status = RunStatusFailed
		if len(result.Failures) == 0 {
			result.Failures = []Failure{{
				Title:   "Test run",
				Message: fmt.Sprintf("runner exited with code %d: %s", result.ExitCode, tail(stderr.String()+"\n"+stdout.String(), 10)),
			}}
		}
	}

	r.logger.Info("playwright run completed",
		zap.String("status", string(result.Status)),
		zap.Int("passed", result.Passed),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// readResults prefers the report file, then JSON on stdout, then the
// summary lines of any other reporter.
func (r *Runner) readResults(reportPath string, stdout []byte, logs string) *PlaywrightResults {
	if data, err := os.ReadFile(reportPath); err == nil && len(bytes.TrimSpace(data)) > 0 {
		if results, err := ParseResults(data); err == nil {
			return results
		} else {
			r.logger.Warn("failed to parse results file", zap.Error(err))
		}
	}
	if trimmed := bytes.TrimSpace(stdout); bytes.HasPrefix(trimmed, []byte("{")) {
		if results, err := ParseResults(trimmed); err == nil {
			return results
		} else {
			r.logger.Warn("failed to parse JSON from stdout", zap.Error(err))
		}
	}
	return parseResultsFromOutput(logs)
}

// relativeFiles makes test paths relative to the working directory so
// Playwright's file filter matches them.
func (r *Runner) relativeFiles(req RunRequest) []string {
	out := make([]string, 0, len(req.Files))
	for _, f := range req.Files {
		if req.Dir != "" && filepath.IsAbs(f) {
			if rel, err := filepath.Rel(req.Dir, f); err == nil && !strings.HasPrefix(rel, "..") {
				f = rel
			}
		}
		out = append(out, filepath.ToSlash(f))
	}
	return out
}
