package execution

import (
	"fmt"
	"time"
)

// RunStatus represents the outcome of a test execution
type RunStatus string

const (
	RunStatusPassed  RunStatus = "passed"
	RunStatusFailed  RunStatus = "failed"
	RunStatusTimeout RunStatus = "timeout"
	RunStatusError   RunStatus = "error"
)

// RunRequest contains the parameters for one test execution
type RunRequest struct {
	// Dir is the working directory, normally the project root holding
	// playwright.config.js.
	Dir string
	// Files are the test files to run.
	Files   []string
	Grep    string
	Project string
	Workers int
	Timeout time.Duration
	BaseURL string
}

// RunResult contains the result of a test execution
type RunResult struct {
	Status   RunStatus     `json:"status"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`

	// Test results
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Total   int `json:"total"`

	Failures []Failure `json:"failures,omitempty"`

	// Raw data
	Logs string `json:"-"`
}

// Errors renders the failures as tagged error strings.
func (r *RunResult) Errors() []string {
	out := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		out = append(out, f.String())
	}
	return out
}

// Failure is one failed test
type Failure struct {
	Title   string `json:"title"`
	File    string `json:"file,omitempty"`
	Message string `json:"message"`
}

// String renders "[test] title: message (file)". The fixer parses the tag
// and the file back out.
func (f Failure) String() string {
	if f.File == "" {
		return fmt.Sprintf("[test] %s: %s", f.Title, f.Message)
	}
	return fmt.Sprintf("[test] %s: %s (%s)", f.Title, f.Message, f.File)
}

// PlaywrightResults represents the JSON output from Playwright
type PlaywrightResults struct {
	Config struct {
		RootDir string `json:"rootDir"`
	} `json:"config"`
	Suites []PlaywrightSuite `json:"suites"`
	Errors []PlaywrightError `json:"errors"`
	Stats  PlaywrightStats   `json:"stats"`
}

// PlaywrightSuite represents a test suite in results
type PlaywrightSuite struct {
	Title  string            `json:"title"`
	File   string            `json:"file"`
	Specs  []PlaywrightSpec  `json:"specs"`
	Suites []PlaywrightSuite `json:"suites"`
}

// PlaywrightSpec represents a test spec
type PlaywrightSpec struct {
	Title string           `json:"title"`
	OK    bool             `json:"ok"`
	File  string           `json:"file"`
	Tests []PlaywrightTest `json:"tests"`
}

// PlaywrightTest represents one spec run in one project
type PlaywrightTest struct {
	ProjectName string                 `json:"projectName"`
	Status      string                 `json:"status"` // expected, unexpected, flaky, skipped
	Results     []PlaywrightTestResult `json:"results"`
}

// PlaywrightTestResult is one attempt of a test
type PlaywrightTestResult struct {
	Status   string            `json:"status"` // passed, failed, timedOut, skipped, interrupted
	Duration float64           `json:"duration"`
	Error    *PlaywrightError  `json:"error,omitempty"`
	Errors   []PlaywrightError `json:"errors,omitempty"`
}

// PlaywrightError is an error reported by the runner
type PlaywrightError struct {
	Message string `json:"message"`
	Stack   string `json:"stack"`
}

// PlaywrightStats contains aggregate test statistics
type PlaywrightStats struct {
	StartTime  string  `json:"startTime"`
	Duration   float64 `json:"duration"` // Duration in ms (can be decimal)
	Expected   int     `json:"expected"`
	Unexpected int     `json:"unexpected"`
	Flaky      int     `json:"flaky"`
	Skipped    int     `json:"skipped"`
}
