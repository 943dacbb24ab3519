package domain

import (
	"fmt"
	"sort"
)

// ExtractionResult is what the live extractor and snapshot analyzer produce.
// It is transient: it is turned into a CardConfiguration and discarded.
type ExtractionResult struct {
	CardType string                      `json:"cardType"`
	CardID   string                      `json:"cardId"`
	Card     map[string]string           `json:"card"`
	Elements map[string]ExtractedElement `json:"elements"`
	Slots    []string                    `json:"slots"`
	URL      string                      `json:"url,omitempty"`
	Warnings []string                    `json:"warnings,omitempty"`
}

// ExtractedElement is one resolved element of a card.
type ExtractedElement struct {
	Selector               string            `json:"selector"`
	Candidates             []string          `json:"candidates,omitempty"`
	CSS                    map[string]string `json:"css"`
	Slot                   string            `json:"slot,omitempty"`
	TagName                string            `json:"tagName,omitempty"`
	TextContent            string            `json:"textContent,omitempty"`
	AccessibilitySelectors []string          `json:"accessibilitySelectors,omitempty"`
	Confidence             int               `json:"confidence,omitempty"`
}

// ElementNames returns extracted element names in canonical order.
func (r *ExtractionResult) ElementNames() []string {
	cfg := CardConfiguration{Elements: make(map[string]ElementSpec, len(r.Elements))}
	for name := range r.Elements {
		cfg.Elements[name] = ElementSpec{}
	}
	return cfg.ElementNames()
}

// ArtifactKind identifies which generated file an error or patch targets.
type ArtifactKind string

const (
	ArtifactPageObject ArtifactKind = "page"
	ArtifactSpec       ArtifactKind = "spec"
	ArtifactTest       ArtifactKind = "test"
)

// Artifact file names. The page object lives at the card type root, specs
// and tests in fixed subdirectories below it.
const (
	SpecsDir = "specs"
	TestsDir = "tests"
)

// PageObjectFileName returns the page object file name for a card type
func PageObjectFileName(cardType string) string {
	return cardType + ".page.js"
}

// SpecFileName returns the spec file name for a card type
func SpecFileName(cardType string) string {
	return cardType + ".spec.js"
}

// TestFileName returns the test file name for a card type and test type
func TestFileName(cardType string, tt TestType) string {
	return fmt.Sprintf("%s_%s.test.js", cardType, tt)
}

// GeneratedArtifactSet holds the three generated artifacts for one card and
// the configuration they were derived from.
type GeneratedArtifactSet struct {
	Config     *CardConfiguration  `json:"config"`
	PageObject string              `json:"pageObject"`
	Spec       string              `json:"spec"`
	Tests      map[TestType]string `json:"tests"`
}

// TestTypes returns the generated test types in configuration order.
func (s *GeneratedArtifactSet) TestTypes() []TestType {
	var out []TestType
	if s.Config != nil {
		for _, tt := range s.Config.TestTypes {
			if _, ok := s.Tests[tt]; ok {
				out = append(out, tt)
			}
		}
		return out
	}
	for tt := range s.Tests {
		out = append(out, tt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// FileStatus is the validation outcome of one artifact file.
type FileStatus struct {
	Kind     ArtifactKind `json:"kind"`
	Valid    bool         `json:"valid"`
	Errors   []string     `json:"errors,omitempty"`
	Warnings []string     `json:"warnings,omitempty"`
}

// ValidationResult is recomputed on every attempt and never persisted.
type ValidationResult struct {
	Valid    bool                  `json:"valid"`
	Errors   []string              `json:"errors"`
	Warnings []string              `json:"warnings"`
	Files    map[string]FileStatus `json:"files"`
}

// Outcome is the terminal state of a run-and-fix invocation.
type Outcome string

const (
	OutcomeRunning   Outcome = "running"
	OutcomeSuccess   Outcome = "success"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeUnfixable Outcome = "unfixable"
	OutcomeFailed    Outcome = "failed"
)

// FixAttemptState lives for the duration of one run-and-fix invocation.
type FixAttemptState struct {
	Attempt         int      `json:"attempt"`
	MaxAttempts     int      `json:"maxAttempts"`
	FixesApplied    []string `json:"fixesApplied"`
	RemainingErrors []string `json:"remainingErrors"`
	Outcome         Outcome  `json:"outcome"`
}
