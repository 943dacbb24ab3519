package scriptgen

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testforge/cardforge/internal/artifact"
	"github.com/testforge/cardforge/internal/domain"
)

const catalogID = "26f091c2-995d-4a96-a193-d62f6c73af2f"

func catalogConfig(types ...domain.TestType) *domain.CardConfiguration {
	if len(types) == 0 {
		types = []domain.TestType{domain.TestTypeCSS}
	}
	return &domain.CardConfiguration{
		CardType: "catalog",
		CardID:   catalogID,
		Elements: map[string]domain.ElementSpec{
			"price": {
				Selector:          `p[slot="heading-m"] span.price`,
				FallbackSelectors: []string{`span[is="inline-price"]`},
				ExpectedText:      "US$17.24/mo",
			},
			"cta": {
				Selector: `div[slot="footer"] > a`,
				Interactions: []domain.InteractionSpec{
					{Type: domain.InteractionClick, WaitFor: "#checkout", ExpectedResult: "opens checkout"},
				},
			},
		},
		CSSProperties: map[string]map[string]string{
			"price": {"color": "rgb(34,34,34)"},
		},
		TestTypes: types,
	}
}

func TestSuite_PriceCSSScenario(t *testing.T) {
	g := NewScriptGenerator(DefaultGeneratorConfig())

	set, err := g.Suite(catalogConfig())
	require.NoError(t, err)

	assert.Contains(t, set.PageObject, "export default class CatalogPage {")
	assert.Contains(t, set.PageObject, "  price(id) {")
	assert.Contains(t, set.PageObject, `return this.getCard(id).locator('p[slot="heading-m"] span.price');`)
	assert.Contains(t, set.PageObject, "      price: {\n        color: 'rgb(34,34,34)',\n      },")
	assert.NotContains(t, set.PageObject, "cta: {", "elements without css stay out of the table")

	assert.Contains(t, set.Spec, "name: '@catalog-css',")
	assert.Contains(t, set.Spec, "cardid: '"+catalogID+"',")
	assert.Equal(t, 1, strings.Count(set.Spec, "tcid:"))

	test := set.Tests[domain.TestTypeCSS]
	require.NotEmpty(t, test)
	assert.Contains(t, test, "await expect(cardPage.price(data.cardid)).toHaveText('US$17.24/mo');")
	assert.Contains(t, test, "await expect(cardPage.price(data.cardid)).toHaveCSS('color', 'rgb(34,34,34)');")
	assert.NotContains(t, test, ".click()", "css tests emit no interaction code")
}

func TestSuite_Deterministic(t *testing.T) {
	g := NewScriptGenerator(DefaultGeneratorConfig())
	cfg := catalogConfig(domain.AllTestTypes...)

	first, err := g.Suite(cfg)
	require.NoError(t, err)
	second, err := g.Suite(cfg)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

var (
	accessorUse  = regexp.MustCompile(`cardPage\.(\w+)\(`)
	accessorDecl = regexp.MustCompile(`(?m)^  (\w+)\((?:id|field)\) \{$`)
)

func TestSuite_TestsOnlyUseDeclaredAccessors(t *testing.T) {
	g := NewScriptGenerator(DefaultGeneratorConfig())
	set, err := g.Suite(catalogConfig(domain.AllTestTypes...))
	require.NoError(t, err)

	declared := make(map[string]bool)
	for _, m := range accessorDecl.FindAllStringSubmatch(set.PageObject, -1) {
		declared[m[1]] = true
	}
	require.True(t, declared["getCard"])

	for tt, text := range set.Tests {
		for _, m := range accessorUse.FindAllStringSubmatch(text, -1) {
			assert.True(t, declared[m[1]], "%s test uses undeclared accessor %s", tt, m[1])
		}
	}
}

func TestSuite_ArtifactsAreBalanced(t *testing.T) {
	g := NewScriptGenerator(GeneratorConfig{EmitFallbacks: true})
	set, err := g.Suite(catalogConfig(domain.AllTestTypes...))
	require.NoError(t, err)

	assert.True(t, artifact.Scan(set.PageObject).Balanced())
	assert.True(t, artifact.Scan(set.Spec).Balanced())
	for tt, text := range set.Tests {
		assert.True(t, artifact.Scan(text).Balanced(), "test %s", tt)
	}
	assert.Equal(t, len(domain.AllTestTypes), strings.Count(set.Spec, "tcid:"))
	assert.Contains(t, set.PageObject, "this.fallbacks = {")
	assert.Contains(t, set.PageObject, `'span[is="inline-price"]',`)
}

func TestTest_TypeSpecificBodies(t *testing.T) {
	g := NewScriptGenerator(DefaultGeneratorConfig())
	cfg := catalogConfig(domain.AllTestTypes...)
	cfg.Elements["title"] = domain.ElementSpec{
		Selector:     `h3[slot="heading-xs"]`,
		ExpectedText: "Photoshop",
		Interactions: []domain.InteractionSpec{{Type: domain.InteractionEdit, Value: "Photoshop Pro"}},
	}

	tests := []struct {
		tt       domain.TestType
		contains []string
	}{
		{domain.TestTypeFunctional, []string{"await expect(cardPage.cta(data.cardid)).toBeVisible();"}},
		{domain.TestTypeInteraction, []string{
			"'step-3: cta click - opens checkout'",
			"await cardPage.cta(data.cardid).click();",
			"await expect(page.locator('#checkout').first()).toBeVisible();",
		}},
		{domain.TestTypeEdit, []string{
			"await cardPage.getCard(data.cardid).dblclick();",
			"await cardPage.editorField('title').fill('Photoshop Pro');",
			"await expect(cardPage.title(data.cardid)).toHaveText('Photoshop Pro');",
		}},
		{domain.TestTypeSave, []string{"await cardPage.saveButton.click();"}},
		{domain.TestTypeDiscard, []string{
			"await cardPage.discardButton.click();",
			"await expect(cardPage.title(data.cardid)).toHaveText('Photoshop');",
		}},
	}

	for _, tc := range tests {
		t.Run(string(tc.tt), func(t *testing.T) {
			text, err := g.Test(cfg, tc.tt)
			require.NoError(t, err)
			assert.Contains(t, text, "import CatalogPage from '../catalog.page.js';")
			assert.Contains(t, text, "import CatalogSpec from '../specs/catalog.spec.js';")
			for _, want := range tc.contains {
				assert.Contains(t, text, want)
			}
		})
	}
}

func TestTest_RejectsAbsentTestType(t *testing.T) {
	g := NewScriptGenerator(DefaultGeneratorConfig())

	_, err := g.Test(catalogConfig(domain.TestTypeCSS), domain.TestTypeSave)
	require.Error(t, err)
	assert.Equal(t, domain.ClassInvalidInput, domain.ClassOf(err))
}

func TestSuite_RejectsInvalidConfig(t *testing.T) {
	g := NewScriptGenerator(DefaultGeneratorConfig())

	tests := []struct {
		name   string
		mutate func(*domain.CardConfiguration)
	}{
		{"no test types", func(c *domain.CardConfiguration) { c.TestTypes = nil }},
		{"unknown test type", func(c *domain.CardConfiguration) { c.TestTypes = []domain.TestType{"smoke"} }},
		{"reserved element name", func(c *domain.CardConfiguration) {
			c.Elements["getCard"] = domain.ElementSpec{Selector: "div"}
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := catalogConfig()
			tc.mutate(cfg)
			set, err := g.Suite(cfg)
			assert.Nil(t, set)
			assert.Equal(t, domain.ClassInvalidInput, domain.ClassOf(err))
		})
	}

	_, err := g.PageObject(nil)
	assert.Error(t, err)
}

func TestSpec_MetadataAndTags(t *testing.T) {
	g := NewScriptGenerator(DefaultGeneratorConfig())
	cfg := catalogConfig()
	cfg.TestSuite = "M@S Catalog"
	cfg.Metadata = domain.Metadata{Tags: []string{"regression", "@catalog"}, Path: "/custom.html"}

	spec, err := g.Spec(cfg)
	require.NoError(t, err)
	assert.Contains(t, spec, "FeatureName: 'M@S Catalog',")
	assert.Contains(t, spec, "path: '/custom.html',")
	assert.Contains(t, spec, "browserParams: '#page=content&path=nala&query=',")
	assert.Contains(t, spec, "tags: '@mas-studio @regression @catalog @catalog-css',")
	assert.Contains(t, spec, "price: 'US$17.24/mo',")
}

func TestNaming(t *testing.T) {
	tests := []struct {
		cardType, class, feature string
	}{
		{"catalog", "CatalogPage", "Catalog Card"},
		{"plans-education", "PlansEducationPage", "Plans Education Card"},
		{"ah-try-buy-widget", "AhTryBuyWidgetPage", "Ah Try Buy Widget Card"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.class, ClassName(tt.cardType))
		assert.Equal(t, tt.feature, FeatureName(tt.cardType))
	}
	assert.Equal(t, `'it\'s a \\ test\n'`, Quote("it's a \\ test\n"))
	assert.Equal(t, "'font-size'", propertyKey("font-size"))
	assert.Equal(t, "color", propertyKey("color"))
}
