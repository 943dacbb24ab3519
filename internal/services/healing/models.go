package healing

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/testforge/cardforge/internal/domain"
)

// Classify maps an error message onto the error taxonomy. Patterns are
// checked family by family; the first family with a hit wins.
func Classify(errorMessage string) domain.ErrorClass {
	structuralPatterns := []string{
		"missing import",
		"missing test.describe",
		"no test cases",
		"must be async",
		"page object not used",
		"missing export default",
		"missing constructor",
		"no locators defined",
		"missing features array",
		"no feature entries",
	}

	syntaxPatterns := []string{
		"unbalanced delimiters",
		"syntaxerror",
		"unexpected token",
		"unexpected end of input",
		"missing ) after",
	}

	authPatterns := []string{
		"authentication required",
		"auth.services.adobe.com",
		"adobelogin.com",
	}

	selectorPatterns := []string{
		"element(s) not found",
		"resolved to 0 elements",
		"waiting for locator",
		"no element matching",
		"selector resolved to",
	}

	cssPatterns := []string{
		"tohavecss",
	}

	timeoutPatterns := []string{
		"timeout",
		"timed out",
		"exceeded",
	}

	notFoundPatterns := []string{
		"not found",
		"no such file",
	}

	families := []struct {
		class    domain.ErrorClass
		patterns []string
	}{
		{domain.ClassStructuralDefect, structuralPatterns},
		{domain.ClassSyntaxDefect, syntaxPatterns},
		{domain.ClassAuthenticationRequired, authPatterns},
		{domain.ClassSelectorMismatch, selectorPatterns},
		{domain.ClassCSSMismatch, cssPatterns},
		{domain.ClassTimeout, timeoutPatterns},
		{domain.ClassNotFound, notFoundPatterns},
	}

	lower := strings.ToLower(errorMessage)
	for _, f := range families {
		for _, pattern := range f.patterns {
			if strings.Contains(lower, pattern) {
				return f.class
			}
		}
	}
	return domain.ClassUnfixable
}

// Entry is one error string split into its parts.
type Entry struct {
	Raw     string
	Kind    domain.ArtifactKind
	Message string
	// File is the base name of the artifact the error names, if any.
	File string
}

var entryPattern = regexp.MustCompile(`(?s)^\[(\w+)\]\s*(.*?)(?:\s+\(([^()\s]+\.js)\))?$`)

// ParseEntry splits "[kind] message (file.js)". Untagged errors and unknown
// tags target the test body.
func ParseEntry(raw string) Entry {
	e := Entry{Raw: raw, Kind: domain.ArtifactTest, Message: strings.TrimSpace(raw)}
	m := entryPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return e
	}
	switch domain.ArtifactKind(m[1]) {
	case domain.ArtifactPageObject:
		e.Kind = domain.ArtifactPageObject
	case domain.ArtifactSpec:
		e.Kind = domain.ArtifactSpec
	}
	e.Message = m[2]
	if m[3] != "" {
		e.File = filepath.Base(m[3])
	}
	return e
}

// Partition groups errors by the artifact they target, keeping order.
func Partition(errors []string) map[domain.ArtifactKind][]Entry {
	out := make(map[domain.ArtifactKind][]Entry)
	for _, raw := range errors {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		e := ParseEntry(raw)
		out[e.Kind] = append(out[e.Kind], e)
	}
	return out
}

// FixResult is the outcome of one fix pass.
type FixResult struct {
	// Applied names each patch that changed a file, as "pattern (file)".
	Applied []string `json:"applied"`
	// Remaining holds the errors no pattern could resolve, verbatim.
	Remaining []string `json:"remaining"`
	// Touched lists changed file names in first-change order.
	Touched []string `json:"touched"`
}

// FixesApplied returns the number of applied patches
func (r *FixResult) FixesApplied() int {
	return len(r.Applied)
}
