package suite

import (
	"fmt"
	"strings"

	"github.com/testforge/cardforge/internal/domain"
)

// Operation names
const (
	OpGeneratePageObject = "generate-page-object"
	OpGenerateSpec       = "generate-spec"
	OpGenerateTest       = "generate-test"
	OpGenerateSuite      = "generate-complete-suite"
	OpExtract            = "extract-from-live-instance"
	OpGenerateScript     = "generate-extraction-script"
	OpRunTests           = "run-generated-tests"
	OpValidateTests      = "validate-generated-tests"
	OpRunAndFix          = "run-and-fix"
	OpReloadRegistry     = "reload-registry"
)

// defaultExtractionType is generated when an extraction names no test types.
const defaultExtractionType = domain.TestTypeCSS

// Operations lists the operation names in surface order
var Operations = []string{
	OpGeneratePageObject,
	OpGenerateSpec,
	OpGenerateTest,
	OpGenerateSuite,
	OpExtract,
	OpGenerateScript,
	OpRunTests,
	OpValidateTests,
	OpRunAndFix,
}

// Report is what every operation returns, on success and on failure.
// Files lists what was written, or run, before any failure; nothing is
// rolled back.
type Report struct {
	ID        string            `json:"id"`
	Operation string            `json:"operation"`
	Success   bool              `json:"success"`
	Summary   string            `json:"summary"`
	Text      string            `json:"text,omitempty"`
	Files     []string          `json:"files,omitempty"`
	Errors    []string          `json:"errors,omitempty"`
	Warnings  []string          `json:"warnings,omitempty"`
	Class     domain.ErrorClass `json:"class,omitempty"`
	Data      interface{}       `json:"data,omitempty"`
}

func (r *Report) fail(err error) {
	r.Success = false
	r.Class = domain.ClassOf(err)
	r.Errors = append(r.Errors, err.Error())
	if r.Summary == "" {
		r.Summary = fmt.Sprintf("%s failed (%s)", r.Operation, r.Class)
	}
}

// String renders the report for a terminal or a tool result
func (r *Report) String() string {
	var b strings.Builder
	status := "SUCCESS"
	if !r.Success {
		status = "FAILED"
	}
	fmt.Fprintf(&b, "%s %s: %s\n", status, r.Operation, r.Summary)
	section := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n%s:\n", title)
		for _, it := range items {
			fmt.Fprintf(&b, "  - %s\n", strings.ReplaceAll(it, "\n", "\n    "))
		}
	}
	section("Files", r.Files)
	section("Errors", r.Errors)
	section("Warnings", r.Warnings)
	if r.Text != "" {
		b.WriteString("\n")
		b.WriteString(r.Text)
		if !strings.HasSuffix(r.Text, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}
