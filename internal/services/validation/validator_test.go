package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/testforge/cardforge/internal/domain"
	"github.com/testforge/cardforge/internal/services/scriptgen"
)

func generatedSet(t *testing.T) *domain.GeneratedArtifactSet {
	t.Helper()
	cfg := &domain.CardConfiguration{
		CardType: "catalog",
		CardID:   "26f091c2-995d-4a96-a193-d62f6c73af2f",
		Elements: map[string]domain.ElementSpec{
			"price": {Selector: `p[slot="heading-m"] span.price`, ExpectedText: "US$17.24/mo"},
		},
		CSSProperties: map[string]map[string]string{"price": {"color": "rgb(34,34,34)"}},
		TestTypes:     []domain.TestType{domain.TestTypeCSS, domain.TestTypeFunctional},
	}
	set, err := scriptgen.NewScriptGenerator(scriptgen.DefaultGeneratorConfig()).Suite(cfg)
	require.NoError(t, err)
	return set
}

func TestValidate_GeneratedSuiteIsValid(t *testing.T) {
	v := NewValidator(zap.NewNop())
	result := v.Validate(generatedSet(t))

	assert.True(t, result.Valid, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
	assert.Len(t, result.Files, 4)
	assert.Equal(t, domain.ArtifactPageObject, result.Files["catalog.page.js"].Kind)
	assert.True(t, result.Files["catalog_functional.test.js"].Valid)
}

func TestValidateTest(t *testing.T) {
	v := NewValidator(nil)
	name := "catalog_css.test.js"

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "missing describe",
			text: `import { test, expect } from '@playwright/test';
import WebUtil from '../../../../libs/webutil.js';
import CatalogPage from '../catalog.page.js';

test('renders', async ({ page }) => {
  const cardPage = new CatalogPage(page);
  await test.step('check', async () => {
    await expect(cardPage.price('x')).toBeVisible();
  });
});
`,
			want: []string{"[test] Missing test.describe block (catalog_css.test.js)"},
		},
		{
			name: "missing imports",
			text: `test.describe('x', () => {
  test('renders', async ({ page }) => {
    const cardPage = new CatalogPage(page);
    await test.step('check', async () => {
      await expect(cardPage.price('x')).toBeVisible();
    });
  });
});
`,
			want: []string{
				"[test] Missing import: test from @playwright/test (catalog_css.test.js)",
				"[test] Missing import: expect from @playwright/test (catalog_css.test.js)",
				"[test] Missing import: CatalogPage (page object) (catalog_css.test.js)",
				"[test] Missing import: WebUtil (catalog_css.test.js)",
			},
		},
		{
			name: "sync body and no page object",
			text: `import { test, expect } from '@playwright/test';
import WebUtil from '../../../../libs/webutil.js';
import CatalogPage from '../catalog.page.js';

test.describe('x', () => {
  test('renders', ({ page }) => {
    test.step('check', () => {
      expect(page).toBeTruthy();
    });
  });
});
`,
			want: []string{
				"[test] Test bodies must be async (catalog_css.test.js)",
				"[test] Page object not used (catalog_css.test.js)",
			},
		},
		{
			name: "no cases and unbalanced",
			text: `import { test, expect } from '@playwright/test';
import WebUtil from '../../../../libs/webutil.js';
import CatalogPage from '../catalog.page.js';

test.describe('x', () => {
  const cardPage = new CatalogPage(page);
  expect(cardPage).toBeTruthy(
`,
			want: []string{
				"[test] No test cases found (catalog_css.test.js)",
				"[test] Unbalanced delimiters: 3 unclosed, 0 stray (catalog_css.test.js)",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := v.ValidateTest("catalog", name, tt.text)
			assert.False(t, st.Valid)
			for _, want := range tt.want {
				assert.Contains(t, st.Errors, want)
			}
		})
	}
}

func TestValidateTest_Warnings(t *testing.T) {
	v := NewValidator(nil)
	text := `import { test, expect } from '@playwright/test';
import WebUtil from '../../../../libs/webutil.js';
import CatalogPage from '../catalog.page.js';

test.describe('x', () => {
  test('renders', async ({ page }) => {
    new CatalogPage(page);
  });
});
`
	st := v.ValidateTest("catalog", "Catalog.test.js", text)
	assert.True(t, st.Valid, "warnings never block: %v", st.Errors)
	assert.Len(t, st.Warnings, 3)
}

func TestValidatePageObject(t *testing.T) {
	v := NewValidator(nil)

	st := v.ValidatePageObject("catalog.page.js", "class CatalogPage {\n  price() { return 1; }\n}\n")
	assert.False(t, st.Valid)
	assert.Equal(t, []string{
		"[page] Missing export default class (catalog.page.js)",
		"[page] Missing constructor(page) (catalog.page.js)",
		"[page] No locators defined (catalog.page.js)",
	}, st.Errors)
}

func TestValidateSpec(t *testing.T) {
	v := NewValidator(nil)

	st := v.ValidateSpec("catalog.spec.js", "export default {\n  FeatureName: 'x',\n  features: [],\n};\n")
	assert.Equal(t, []string{"[spec] No feature entries (catalog.spec.js)"}, st.Errors)

	st = v.ValidateSpec("catalog.spec.js", "module.exports = {};\n")
	assert.Contains(t, st.Errors, "[spec] Missing export default (catalog.spec.js)")
	assert.Contains(t, st.Errors, "[spec] Missing features array (catalog.spec.js)")
}

func TestValidate_NilSet(t *testing.T) {
	result := NewValidator(nil).Validate(nil)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.True(t, strings.HasPrefix(result.Errors[0], "[test]"))
}

func TestSyncBodyLines(t *testing.T) {
	lines := []string{
		"test.describe('x', () => {",
		"  test.beforeEach(({ page }) => {",
		"  test('a', async ({ page }) => {",
		"    await test.step('s', () => {",
	}
	assert.Equal(t, []int{1, 3}, SyncBodyLines(lines))
}
