// Package validation checks generated artifacts for the constructs a
// runnable card test needs.
//
// The checks are substring and pattern matches, not a JavaScript parser.
// They accept some broken files (false negatives) and that is a known
// precision limit: the executor catches what slips through.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/testforge/cardforge/internal/artifact"
	"github.com/testforge/cardforge/internal/domain"
	"github.com/testforge/cardforge/internal/services/scriptgen"
)

// Error messages. The auto-fixer keys its patterns on these texts.
const (
	MsgMissingTestImport   = "Missing import: test from @playwright/test"
	MsgMissingExpectImport = "Missing import: expect from @playwright/test"
	MsgMissingWebUtil      = "Missing import: WebUtil"
	MsgMissingDescribe     = "Missing test.describe block"
	MsgNoTestCases         = "No test cases found"
	MsgNotAsync            = "Test bodies must be async"
	MsgPageObjectNotUsed   = "Page object not used"
	MsgMissingClassExport  = "Missing export default class"
	MsgMissingConstructor  = "Missing constructor(page)"
	MsgNoLocators          = "No locators defined"
	MsgMissingExport       = "Missing export default"
	MsgMissingFeatures     = "Missing features array"
	MsgNoFeatureEntries    = "No feature entries"
)

// MsgMissingPageImport names the page object class a test must import.
func MsgMissingPageImport(className string) string {
	return fmt.Sprintf("Missing import: %s (page object)", className)
}

// MsgUnbalanced reports unclosed or stray delimiters.
func MsgUnbalanced(d artifact.Delimiters) string {
	return fmt.Sprintf("Unbalanced delimiters: %d unclosed, %d stray", len(d.Unclosed), d.Stray)
}

var (
	importNamed = regexp.MustCompile(`import\s*\{([^}]*)\}\s*from\s*['"]@playwright/test['"]`)
	testCase    = regexp.MustCompile(`(?m)^\s*test(?:\.only)?\s*\(`)
	hookOrCase  = regexp.MustCompile(`\btest(?:\.(?:only|beforeEach|afterEach|beforeAll|afterAll|step))?\s*\(`)
	arrowParams = regexp.MustCompile(`(async\s+)?\((?:\{[^}]*\})?\)\s*=>`)
	pageNew     = regexp.MustCompile(`new\s+\w+Page\s*\(`)
	constructor = regexp.MustCompile(`constructor\s*\(\s*page\s*\)`)
	features    = regexp.MustCompile(`features\s*:\s*\[`)
	featureItem = regexp.MustCompile(`features\s*:\s*\[\s*\{`)
	testName    = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*_[a-z]+\.test\.js$`)
)

// Validator validates generated artifacts
type Validator struct {
	logger *zap.Logger
}

// NewValidator creates a new validator
func NewValidator(logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{logger: logger}
}

// Validate checks every artifact of a set. Errors are tagged with the
// artifact kind and suffixed with the file name.
func (v *Validator) Validate(set *domain.GeneratedArtifactSet) *domain.ValidationResult {
	result := &domain.ValidationResult{Valid: true, Files: make(map[string]domain.FileStatus)}
	if set == nil || set.Config == nil {
		result.Valid = false
		result.Errors = append(result.Errors, "[test] nothing to validate")
		return result
	}
	cardType := set.Config.CardType

	v.add(result, domain.PageObjectFileName(cardType), v.ValidatePageObject(domain.PageObjectFileName(cardType), set.PageObject))
	v.add(result, domain.SpecFileName(cardType), v.ValidateSpec(domain.SpecFileName(cardType), set.Spec))
	for _, tt := range set.TestTypes() {
		name := domain.TestFileName(cardType, tt)
		v.add(result, name, v.ValidateTest(cardType, name, set.Tests[tt]))
	}

	v.logger.Debug("artifacts validated",
		zap.String("card_type", cardType),
		zap.Bool("valid", result.Valid),
		zap.Int("errors", len(result.Errors)),
		zap.Int("warnings", len(result.Warnings)),
	)
	return result
}

func (v *Validator) add(result *domain.ValidationResult, name string, status domain.FileStatus) {
	result.Files[name] = status
	if !status.Valid {
		result.Valid = false
	}
	result.Errors = append(result.Errors, status.Errors...)
	result.Warnings = append(result.Warnings, status.Warnings...)
}

// fileCheck collects messages for one file.
type fileCheck struct {
	kind domain.ArtifactKind
	name string
	st   domain.FileStatus
}

func newFileCheck(kind domain.ArtifactKind, name string) *fileCheck {
	return &fileCheck{kind: kind, name: name, st: domain.FileStatus{Kind: kind, Valid: true}}
}

func (c *fileCheck) errorf(msg string) {
	c.st.Valid = false
	c.st.Errors = append(c.st.Errors, FormatError(c.kind, msg, c.name))
}

func (c *fileCheck) warnf(msg string) {
	c.st.Warnings = append(c.st.Warnings, FormatError(c.kind, msg, c.name))
}

func (c *fileCheck) balance(text string) {
	if d := artifact.Scan(text); !d.Balanced() {
		c.errorf(MsgUnbalanced(d))
	}
}

// FormatError renders a tagged error, e.g. "[test] No test cases found (catalog_css.test.js)".
func FormatError(kind domain.ArtifactKind, msg, file string) string {
	if file == "" {
		return fmt.Sprintf("[%s] %s", kind, msg)
	}
	return fmt.Sprintf("[%s] %s (%s)", kind, msg, file)
}

// ValidateTest checks one test file
func (v *Validator) ValidateTest(cardType, name, text string) domain.FileStatus {
	c := newFileCheck(domain.ArtifactTest, name)

	named := importedNames(text)
	if !named["test"] {
		c.errorf(MsgMissingTestImport)
	}
	if !named["expect"] {
		c.errorf(MsgMissingExpectImport)
	}
	className := scriptgen.ClassName(cardType)
	if !regexp.MustCompile(`import\s+` + regexp.QuoteMeta(className) + `\s+from`).MatchString(text) {
		c.errorf(MsgMissingPageImport(className))
	}
	if !regexp.MustCompile(`import\s+WebUtil\s+from`).MatchString(text) {
		c.errorf(MsgMissingWebUtil)
	}
	if !strings.Contains(text, "test.describe(") {
		c.errorf(MsgMissingDescribe)
	}
	if !testCase.MatchString(text) {
		c.errorf(MsgNoTestCases)
	}
	if hasSyncBody(text) {
		c.errorf(MsgNotAsync)
	}
	if !pageNew.MatchString(text) {
		c.errorf(MsgPageObjectNotUsed)
	}
	c.balance(text)

	if !strings.Contains(text, "test.step(") {
		c.warnf("No test.step blocks")
	}
	if !strings.Contains(text, "expect(") {
		c.warnf("No expect assertions")
	}
	if name != "" && !testName.MatchString(name) {
		c.warnf("File name should match <cardType>_<testType>.test.js")
	}
	return c.st
}

// ValidatePageObject checks the page object file
func (v *Validator) ValidatePageObject(name, text string) domain.FileStatus {
	c := newFileCheck(domain.ArtifactPageObject, name)

	if !strings.Contains(text, "export default class") {
		c.errorf(MsgMissingClassExport)
	}
	if !constructor.MatchString(text) {
		c.errorf(MsgMissingConstructor)
	}
	if !strings.Contains(text, ".locator(") {
		c.errorf(MsgNoLocators)
	}
	c.balance(text)

	if !strings.Contains(text, "cssProp") {
		c.warnf("No CSS property table")
	}
	if name != "" && !strings.HasSuffix(name, ".page.js") {
		c.warnf("File name should end in .page.js")
	}
	return c.st
}

// ValidateSpec checks the spec file
func (v *Validator) ValidateSpec(name, text string) domain.FileStatus {
	c := newFileCheck(domain.ArtifactSpec, name)

	if !strings.Contains(text, "export default") {
		c.errorf(MsgMissingExport)
	}
	if !features.MatchString(text) {
		c.errorf(MsgMissingFeatures)
	} else if !featureItem.MatchString(text) {
		c.errorf(MsgNoFeatureEntries)
	}
	c.balance(text)

	if !strings.Contains(text, "FeatureName") {
		c.warnf("Missing FeatureName")
	}
	if name != "" && !strings.HasSuffix(name, ".spec.js") {
		c.warnf("File name should end in .spec.js")
	}
	return c.st
}

// importedNames returns the names imported from @playwright/test.
func importedNames(text string) map[string]bool {
	out := make(map[string]bool)
	for _, m := range importNamed.FindAllStringSubmatch(text, -1) {
		for _, name := range strings.Split(m[1], ",") {
			name = strings.TrimSpace(name)
			if i := strings.Index(name, " as "); i >= 0 {
				name = strings.TrimSpace(name[:i])
			}
			if name != "" {
				out[name] = true
			}
		}
	}
	return out
}

// hasSyncBody reports a test, hook or step whose callback is not async.
// test.describe callbacks are synchronous and skipped.
func hasSyncBody(text string) bool {
	return len(SyncBodyLines(strings.Split(text, "\n"))) > 0
}

// SyncBodyLines returns the indexes of lines declaring a test, hook or step
// with a non-async callback.
func SyncBodyLines(lines []string) []int {
	var out []int
	for i, line := range lines {
		if !hookOrCase.MatchString(line) {
			continue
		}
		for _, m := range arrowParams.FindAllStringSubmatch(line, -1) {
			if m[1] == "" {
				out = append(out, i)
				break
			}
		}
	}
	return out
}
