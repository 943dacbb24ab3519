package suite

import (
	"time"

	"github.com/testforge/cardforge/internal/domain"
	"github.com/testforge/cardforge/internal/services/extraction"
	"github.com/testforge/cardforge/internal/services/snapshot"
)

// GenerateRequest drives the generate operations
type GenerateRequest struct {
	Config *domain.CardConfiguration `json:"config"`
	// TestType selects the test for generate-test.
	TestType string `json:"testType,omitempty"`
	// Save writes the generated artifacts under the project.
	Save          bool   `json:"save,omitempty"`
	Project       string `json:"project,omitempty"`
	EmitFallbacks bool   `json:"emitFallbacks,omitempty"`
}

// ExtractRequest drives extract-from-live-instance
type ExtractRequest struct {
	CardID    string            `json:"cardId"`
	Target    extraction.Target `json:"target"`
	TestTypes []string          `json:"testTypes,omitempty"`
	// Snapshot replaces the browser with captured element data.
	Snapshot *snapshot.Input `json:"snapshot,omitempty"`
	// Generate also renders the suite from the extracted configuration.
	Generate bool   `json:"generate,omitempty"`
	Save     bool   `json:"save,omitempty"`
	Project  string `json:"project,omitempty"`
}

// ScriptRequest drives generate-extraction-script
type ScriptRequest struct {
	CardID string            `json:"cardId"`
	Target extraction.Target `json:"target"`
	// FileName, when set, saves the script under the project's scripts
	// directory.
	FileName string `json:"fileName,omitempty"`
	Project  string `json:"project,omitempty"`
}

// RunTestsRequest drives run-generated-tests
type RunTestsRequest struct {
	CardType  string   `json:"cardType"`
	TestTypes []string `json:"testTypes,omitempty"`
	// Files are test file names inside the card's tests directory.
	Files          []string `json:"files,omitempty"`
	Project        string   `json:"project,omitempty"`
	Grep           string   `json:"grep,omitempty"`
	BrowserProject string   `json:"browserProject,omitempty"`
	Workers        int      `json:"workers,omitempty"`
	TimeoutSeconds int      `json:"timeoutSeconds,omitempty"`
	BaseURL        string   `json:"baseURL,omitempty"`
}

func (r RunTestsRequest) timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// ValidateRequest drives validate-generated-tests. With a Config the
// freshly generated set is validated, otherwise the files on disk.
type ValidateRequest struct {
	Config    *domain.CardConfiguration `json:"config,omitempty"`
	CardType  string                    `json:"cardType,omitempty"`
	TestTypes []string                  `json:"testTypes,omitempty"`
	Project   string                    `json:"project,omitempty"`
}

// RunAndFixRequest drives run-and-fix. With a Config the suite is
// regenerated and written first, otherwise the files on disk are used.
type RunAndFixRequest struct {
	RunTestsRequest
	Config      *domain.CardConfiguration `json:"config,omitempty"`
	MaxAttempts int                       `json:"maxAttempts,omitempty"`
	// ValidateOnly stops once the artifacts validate, without running them.
	ValidateOnly bool `json:"validateOnly,omitempty"`

	// Progress is called as each attempt starts.
	Progress func(attempt, max int) `json:"-"`
}
