package scriptgen

import "github.com/testforge/cardforge/internal/domain"

// GeneratorConfig configures the artifact generators
type GeneratorConfig struct {
	// WebUtilImport is the module path tests import WebUtil from, relative
	// to the tests directory.
	WebUtilImport string
	// DefaultPath and DefaultBrowserParams fill spec entries whose card
	// metadata leaves them empty.
	DefaultPath          string
	DefaultBrowserParams string
	// EmitFallbacks adds a per-element fallback selector table to page
	// objects.
	EmitFallbacks bool
	// Tags are prepended to every spec entry's tags.
	Tags []string
}

// DefaultGeneratorConfig returns sensible defaults
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		WebUtilImport:        "../../../../libs/webutil.js",
		DefaultPath:          "/studio.html",
		DefaultBrowserParams: "#page=content&path=nala&query=",
		Tags:                 []string{"@mas-studio"},
	}
}

// Reserved page object members. Element names may not shadow them.
var reservedMembers = map[string]bool{
	"page":          true,
	"cssProp":       true,
	"fallbacks":     true,
	"getCard":       true,
	"constructor":   true,
	"editor":        true,
	"editorField":   true,
	"saveButton":    true,
	"discardButton": true,
}

// editorTestTypes need the studio editor members on the page object.
var editorTestTypes = []domain.TestType{domain.TestTypeEdit, domain.TestTypeSave, domain.TestTypeDiscard}

func usesEditor(cfg *domain.CardConfiguration) bool {
	for _, tt := range editorTestTypes {
		if cfg.HasTestType(tt) {
			return true
		}
	}
	return false
}
