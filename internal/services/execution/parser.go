package execution

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)

// maxMessage bounds a single failure message
const maxMessage = 4000

// StripANSI removes terminal color codes
func StripANSI(s string) string {
	return ansiEscape.ReplaceAllString(s, "")
}

// ParseResults decodes the Playwright JSON reporter output
func ParseResults(data []byte) (*PlaywrightResults, error) {
	results := &PlaywrightResults{}
	if err := json.Unmarshal(data, results); err != nil {
		return nil, fmt.Errorf("decoding playwright results: %w", err)
	}
	return results, nil
}

// Failures walks the suite tree and returns one failure per failed spec,
// plus runner-level errors such as syntax errors in a test file.
func (r *PlaywrightResults) Failures() []Failure {
	var out []Failure
	for _, e := range r.Errors {
		out = append(out, Failure{Title: "Test run", Message: cleanMessage(e.Message)})
	}
	for _, s := range r.Suites {
		out = append(out, s.failures(nil, s.File)...)
	}
	return out
}

func (s PlaywrightSuite) failures(parents []string, file string) []Failure {
	if s.File != "" {
		file = s.File
	}
	titles := parents
	// file-level suites are titled with the file name
	if s.Title != "" && s.Title != s.File {
		titles = append(append([]string{}, parents...), s.Title)
	}

	var out []Failure
	for _, spec := range s.Specs {
		if spec.OK {
			continue
		}
		specFile := file
		if spec.File != "" {
			specFile = spec.File
		}
		out = append(out, Failure{
			Title:   strings.Join(append(append([]string{}, titles...), spec.Title), " > "),
			File:    filepath.Base(specFile),
			Message: spec.message(),
		})
	}
	for _, child := range s.Suites {
		out = append(out, child.failures(titles, file)...)
	}
	return out
}

// message returns the error of the last failed attempt.
func (s PlaywrightSpec) message() string {
	for i := len(s.Tests) - 1; i >= 0; i-- {
		results := s.Tests[i].Results
		for j := len(results) - 1; j >= 0; j-- {
			res := results[j]
			if res.Error != nil && res.Error.Message != "" {
				return cleanMessage(res.Error.Message)
			}
			for _, e := range res.Errors {
				if e.Message != "" {
					return cleanMessage(e.Message)
				}
			}
			if res.Status == "timedOut" {
				return "Test timeout exceeded"
			}
		}
	}
	return "test failed without an error message"
}

func cleanMessage(s string) string {
	s = strings.TrimSpace(StripANSI(s))
	if len(s) > maxMessage {
		s = s[:maxMessage] + "..."
	}
	return s
}

// parseResultsFromOutput extracts counts from the list reporter summary
// when no JSON report is available.
func parseResultsFromOutput(output string) *PlaywrightResults {
	results := &PlaywrightResults{}

	// Look for the summary line like "5 passed (3.9s)"
	lines := strings.Split(StripANSI(output), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)

		// Parse "X passed"
		if strings.Contains(line, "passed") {
			var passed int
			if _, err := fmt.Sscanf(line, "%d passed", &passed); err == nil {
				results.Stats.Expected = passed
			}
		}

		// Parse "X failed"
		if strings.Contains(line, "failed") {
			var failed int
			if _, err := fmt.Sscanf(line, "%d failed", &failed); err == nil {
				results.Stats.Unexpected = failed
			}
		}

		// Parse "X skipped"
		if strings.Contains(line, "skipped") {
			var skipped int
			if _, err := fmt.Sscanf(line, "%d skipped", &skipped); err == nil {
				results.Stats.Skipped = skipped
			}
		}
	}

	return results
}

// tail returns the last n non-empty lines of s.
func tail(s string, n int) string {
	var lines []string
	for _, l := range strings.Split(StripANSI(s), "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
