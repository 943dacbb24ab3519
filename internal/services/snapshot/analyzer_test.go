package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/testforge/cardforge/internal/domain"
)

func TestConfidence(t *testing.T) {
	tests := []struct {
		name       string
		el         Element
		strategies int
		want       int
	}{
		{"base", Element{}, 1, 50},
		{"id", Element{ID: "x"}, 1, 70},
		{"test id", Element{TestID: "x"}, 1, 65},
		{"aria label", Element{AriaLabel: "x"}, 1, 60},
		{"role", Element{Role: "button"}, 1, 55},
		{"many strategies", Element{}, 4, 60},
		{"everything is capped", Element{ID: "x", TestID: "y", AriaLabel: "z", Role: "link"}, 7, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Confidence(tt.el, tt.strategies))
		})
	}
}

func TestConfidence_Monotonic(t *testing.T) {
	el := Element{TagName: "a", Text: "Buy now"}
	prev := 0
	steps := []func(*Element){
		func(e *Element) { e.Slot = "footer" },
		func(e *Element) { e.Role = "link" },
		func(e *Element) { e.AriaLabel = "Buy now" },
		func(e *Element) { e.TestID = "cta" },
		func(e *Element) { e.ID = "cta-1" },
	}
	for _, step := range steps {
		step(&el)
		got := Confidence(el, len(strategies(el)))
		assert.GreaterOrEqual(t, got, prev)
		assert.LessOrEqual(t, got, MaxConfidence)
		prev = got
	}
	assert.Equal(t, MaxConfidence, prev)
}

func TestAnalyze(t *testing.T) {
	a := NewAnalyzer(nil, zap.NewNop())

	result, err := a.Analyze(Input{
		CardID:         "card-1",
		CardAttributes: map[string]string{"variant": "ccd-slice"},
		Card:           map[string]string{"border-radius": "8px", "margin": "0px"},
		Elements: map[string]Element{
			"cta": {
				TagName:   "a",
				Slot:      "footer",
				Classes:   []string{"con-button", "blue"},
				TestID:    "buy",
				AriaLabel: "Buy now",
				Text:      "Buy now",
				CSS:       map[string]string{"color": "rgb(255, 255, 255)", "margin": "auto"},
			},
			"title": {
				Selector: `h3[slot="heading-xs"]`,
				TagName:  "h3",
				Slot:     "heading-xs",
				Text:     "Photoshop",
			},
		},
		Accessibility: &AXNode{Role: "WebArea", Children: []AXNode{
			{Role: "heading", Name: "Photoshop"},
			{Role: "link", Name: "Buy now"},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, "ccd-slice", result.CardType)
	assert.Equal(t, map[string]string{"border-radius": "8px"}, result.Card)
	assert.Equal(t, []string{"footer", "heading-xs"}, result.Slots)

	cta := result.Elements["cta"]
	assert.Equal(t, `[data-testid="buy"]`, cta.Selector)
	assert.Equal(t, []string{
		`[data-testid="buy"]`,
		`a[slot="footer"]`,
		`a.con-button.blue`,
		`[aria-label="Buy now"]`,
		`role=link[name="Buy now"]`,
		`text="Buy now"`,
	}, cta.Candidates)
	assert.Equal(t, []string{`[aria-label="Buy now"]`, `role=link[name="Buy now"]`, `text="Buy now"`}, cta.AccessibilitySelectors)
	assert.Equal(t, map[string]string{"color": "rgb(255, 255, 255)"}, cta.CSS)
	// 50 + 15 test id + 10 aria-label + 5 role from the tree + 10 for six strategies
	assert.Equal(t, 90, cta.Confidence)

	title := result.Elements["title"]
	assert.Equal(t, `h3[slot="heading-xs"]`, title.Selector)
	assert.Contains(t, title.AccessibilitySelectors, `role=heading[name="Photoshop"]`)
}

func TestAnalyze_StructuralVariant(t *testing.T) {
	a := NewAnalyzer(nil, nil)

	result, err := a.Analyze(Input{
		CardID: "card-2",
		Elements: map[string]Element{
			"price":           {Selector: ".price"},
			"backgroundImage": {Selector: "img"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "special-offers", result.CardType)
}

func TestAnalyze_Errors(t *testing.T) {
	a := NewAnalyzer(nil, nil)

	_, err := a.Analyze(Input{CardID: "card-1"})
	assert.Equal(t, domain.ClassInvalidInput, domain.ClassOf(err))

	_, err = a.Analyze(Input{CardID: "../x", Elements: map[string]Element{"title": {Selector: "h3"}}})
	assert.Equal(t, domain.ClassInvalidInput, domain.ClassOf(err))

	_, err = a.Analyze(Input{CardID: "card-1", CardType: "Bad Type", Elements: map[string]Element{"title": {Selector: "h3"}}})
	assert.Equal(t, domain.ClassInvalidInput, domain.ClassOf(err))

	result, err := a.Analyze(Input{CardID: "card-1", Elements: map[string]Element{
		"title": {Selector: "h3"},
		"empty": {},
	}})
	require.NoError(t, err)
	assert.NotContains(t, result.Elements, "empty")
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "empty")
}

func TestCSSIdent(t *testing.T) {
	assert.Equal(t, "cta-1", cssIdent("cta-1"))
	assert.Equal(t, `\31 abc`, cssIdent("1abc"))
	assert.Equal(t, `a\3a b`, cssIdent("a:b"))
}
