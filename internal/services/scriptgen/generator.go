// Package scriptgen renders the three card test artifacts from a card
// configuration: the page object, the spec and one test per test type.
// Generation is pure: the same configuration always yields the same text.
package scriptgen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/testforge/cardforge/internal/domain"
)

// ScriptGenerator converts card configurations into Playwright artifacts
type ScriptGenerator struct {
	config GeneratorConfig
}

// NewScriptGenerator creates a new script generator
func NewScriptGenerator(config GeneratorConfig) *ScriptGenerator {
	defaults := DefaultGeneratorConfig()
	if config.WebUtilImport == "" {
		config.WebUtilImport = defaults.WebUtilImport
	}
	if config.DefaultPath == "" {
		config.DefaultPath = defaults.DefaultPath
	}
	if config.DefaultBrowserParams == "" {
		config.DefaultBrowserParams = defaults.DefaultBrowserParams
	}
	return &ScriptGenerator{config: config}
}

// Config returns the generator configuration in effect
func (g *ScriptGenerator) Config() GeneratorConfig {
	return g.config
}

// PageObject renders the page object for cfg
func (g *ScriptGenerator) PageObject(cfg *domain.CardConfiguration) (string, error) {
	if err := checkConfig(cfg); err != nil {
		return "", err
	}
	return g.pageObjectDocument(cfg).Render(), nil
}

// Spec renders the spec object for cfg
func (g *ScriptGenerator) Spec(cfg *domain.CardConfiguration) (string, error) {
	if err := checkConfig(cfg); err != nil {
		return "", err
	}
	return g.specDocument(cfg).Render(), nil
}

// Test renders the test for one test type. The type must be one of the
// configuration's test types.
func (g *ScriptGenerator) Test(cfg *domain.CardConfiguration, tt domain.TestType) (string, error) {
	if err := checkConfig(cfg); err != nil {
		return "", err
	}
	for i, t := range cfg.TestTypes {
		if t == tt {
			return g.testDocument(cfg, tt, i).Render(), nil
		}
	}
	return "", domain.ErrInvalidInput("testType", fmt.Sprintf("%q is not among the configured test types", tt))
}

// Suite renders every artifact for cfg
func (g *ScriptGenerator) Suite(cfg *domain.CardConfiguration) (*domain.GeneratedArtifactSet, error) {
	if err := checkConfig(cfg); err != nil {
		return nil, err
	}
	set := &domain.GeneratedArtifactSet{
		Config:     cfg,
		PageObject: g.pageObjectDocument(cfg).Render(),
		Spec:       g.specDocument(cfg).Render(),
		Tests:      make(map[domain.TestType]string, len(cfg.TestTypes)),
	}
	for i, tt := range cfg.TestTypes {
		set.Tests[tt] = g.testDocument(cfg, tt, i).Render()
	}
	return set, nil
}

// checkConfig rejects configurations before any text is produced.
func checkConfig(cfg *domain.CardConfiguration) error {
	if cfg == nil {
		return domain.ErrInvalidInput("configuration", "is required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	var clashes []string
	for name := range cfg.Elements {
		if reservedMembers[name] {
			clashes = append(clashes, name)
		}
	}
	if len(clashes) > 0 {
		sort.Strings(clashes)
		return domain.ErrInvalidInput("elements", "names clash with page object members: "+strings.Join(clashes, ", "))
	}
	return nil
}
