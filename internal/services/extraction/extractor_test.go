package extraction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/testforge/cardforge/internal/config"
	"github.com/testforge/cardforge/internal/domain"
	"github.com/testforge/cardforge/internal/registry"
)

const testCardID = "2f6ac2a3-6d1b-4b8f-9d0f-1f2a3b4c5d6e"

type fakeElement struct {
	count int
	snap  *ElementSnapshot
}

// fakePage is an in-memory DOM keyed by full selector strings.
type fakePage struct {
	mu       sync.Mutex
	urls     []string
	elements map[string]fakeElement
	cards    []string
	gotoErr  error
	visited  []string
}

func newFakePage() *fakePage {
	return &fakePage{elements: make(map[string]fakeElement)}
}

func (p *fakePage) add(selector string, snap *ElementSnapshot) {
	p.elements[selector] = fakeElement{count: 1, snap: snap}
}

func (p *fakePage) Goto(ctx context.Context, url string, timeout time.Duration) error {
	p.visited = append(p.visited, url)
	if len(p.urls) == 0 {
		p.urls = []string{url}
	}
	return p.gotoErr
}

// URL walks through the queued URLs and then sticks to the last one.
func (p *fakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	u := p.urls[0]
	if len(p.urls) > 1 {
		p.urls = p.urls[1:]
	}
	return u
}

func (p *fakePage) Count(ctx context.Context, selector string) (int, error) {
	return p.elements[selector].count, nil
}

func (p *fakePage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return nil
}

func (p *fakePage) OuterHTML(ctx context.Context, selector string) ([]string, error) {
	return p.cards, nil
}

func (p *fakePage) Inspect(ctx context.Context, selector string, properties []string) (*ElementSnapshot, error) {
	el, ok := p.elements[selector]
	if !ok || el.snap == nil {
		return nil, fmt.Errorf("no element for %s", selector)
	}
	return el.snap, nil
}

type fakeLauncher struct {
	page     *fakePage
	launched int
	closed   int
}

func (l *fakeLauncher) Launch(ctx context.Context) (*Session, error) {
	l.launched++
	return NewSession(l.page, func() error {
		l.closed++
		return nil
	}), nil
}

func testBrowser() config.BrowserConfig {
	return config.BrowserConfig{
		PageLoadTimeout:   10 * time.Second,
		VisibilityTimeout: time.Second,
		AuthTimeout:       50 * time.Millisecond,
		AuthPatterns:      []string{"/ims/"},
	}
}

func newTestExtractor(page *fakePage) (*Extractor, *fakeLauncher) {
	launcher := &fakeLauncher{page: page}
	e := NewExtractor(launcher, registry.New(zap.NewNop()), testBrowser(), config.Default().Target, zap.NewNop())
	e.pollInterval = 5 * time.Millisecond
	return e, launcher
}

func byID() string {
	return fmt.Sprintf(`merch-card[id="%s"]`, testCardID)
}

// plansCard builds a plans card whose price resolves only through the
// second candidate.
func plansCard() *fakePage {
	page := newFakePage()
	card := byID()
	page.add(card, &ElementSnapshot{
		TagName:    "merch-card",
		Attributes: map[string]string{"variant": "plans", "id": testCardID},
		CSS:        map[string]string{"background-color": "rgb(255, 255, 255)", "border-radius": "16px", "padding": "0px"},
	})
	page.add(card+` >> h3[slot="heading-xs"]`, &ElementSnapshot{
		TagName: "h3",
		Text:    "Creative Cloud Pro",
		Slot:    "heading-xs",
		CSS:     map[string]string{"color": "rgb(44, 44, 44)", "margin": "0px", "background-color": "rgba(0, 0, 0, 0)"},
	})
	page.add(card+` >> [slot="heading-m"] span.price`, &ElementSnapshot{
		TagName: "span",
		Text:    "US$59.99/mo",
		Slot:    "heading-m",
		CSS:     map[string]string{"font-size": "20px", "font-weight": "700"},
	})
	page.add(card+` >> mas-mnemonic`, &ElementSnapshot{
		TagName: "mas-mnemonic",
		CSS:     map[string]string{"margin": "0px", "padding": "normal"},
	})
	return page
}

func TestExtract_FallbackCandidateWins(t *testing.T) {
	e, launcher := newTestExtractor(plansCard())

	result, err := e.Extract(context.Background(), Request{CardID: testCardID})
	require.NoError(t, err)

	assert.Equal(t, "plans", result.CardType)
	require.Contains(t, result.Elements, "price")
	price := result.Elements["price"]
	assert.Equal(t, `[slot="heading-m"] span.price`, price.Selector)
	assert.Equal(t, `p[slot="heading-m"] span.price`, price.Candidates[0])
	assert.Equal(t, "US$59.99/mo", price.TextContent)

	assert.Equal(t, map[string]string{"color": "rgb(44, 44, 44)"}, result.Elements["title"].CSS)
	assert.NotContains(t, result.Elements, "icon", "noise-only elements are dropped")
	assert.Equal(t, map[string]string{"background-color": "rgb(255, 255, 255)", "border-radius": "16px"}, result.Card)
	assert.Equal(t, []string{"heading-m", "heading-xs"}, result.Slots)

	assert.Equal(t, 1, launcher.launched)
	assert.Equal(t, 1, launcher.closed)
}

func TestExtract_CardNotFound(t *testing.T) {
	e, launcher := newTestExtractor(newFakePage())

	_, err := e.Extract(context.Background(), Request{CardID: testCardID})
	require.Error(t, err)
	assert.Equal(t, domain.ClassNotFound, domain.ClassOf(err))
	assert.Contains(t, err.Error(), testCardID)
	assert.Equal(t, 1, launcher.closed, "session released on failure")
}

func TestExtract_LocationStrategies(t *testing.T) {
	title := &ElementSnapshot{Text: "Title", CSS: map[string]string{"color": "red"}}
	root := &ElementSnapshot{Attributes: map[string]string{"class": "catalog"}, CSS: map[string]string{}}

	t.Run("fragment reference", func(t *testing.T) {
		page := newFakePage()
		card := fmt.Sprintf(`merch-card:has(aem-fragment[fragment*="%s"])`, testCardID)
		page.add(card, root)
		page.add(card+` >> h3[slot="heading-xs"]`, title)

		e, _ := newTestExtractor(page)
		result, err := e.Extract(context.Background(), Request{CardID: testCardID})
		require.NoError(t, err)
		assert.Equal(t, "catalog", result.CardType)
		assert.Contains(t, result.Elements, "title")
	})

	t.Run("outer html scan", func(t *testing.T) {
		page := newFakePage()
		page.cards = []string{`<merch-card id="other"></merch-card>`, `<merch-card><aem-fragment fragment="` + testCardID + `"></aem-fragment></merch-card>`}
		card := "merch-card >> nth=1"
		page.add(card, root)
		page.add(card+` >> h3[slot="heading-xs"]`, title)

		e, _ := newTestExtractor(page)
		result, err := e.Extract(context.Background(), Request{CardID: testCardID})
		require.NoError(t, err)
		assert.Contains(t, result.Elements, "title")
	})
}

func TestExtract_StructuralDetection(t *testing.T) {
	page := newFakePage()
	card := byID()
	page.add(card, &ElementSnapshot{Attributes: map[string]string{}, CSS: map[string]string{}})
	page.add(card+` >> p[slot="heading-m"] span.price`, &ElementSnapshot{CSS: map[string]string{"color": "black"}})
	page.add(card+` >> merch-icon`, &ElementSnapshot{CSS: map[string]string{"width": "40px"}})

	e, _ := newTestExtractor(page)
	result, err := e.Extract(context.Background(), Request{CardID: testCardID})
	require.NoError(t, err)
	assert.Equal(t, "catalog", result.CardType)
}

func TestExtract_DefaultVariant(t *testing.T) {
	page := newFakePage()
	card := byID()
	page.add(card, &ElementSnapshot{Attributes: map[string]string{}, CSS: map[string]string{}})
	page.add(card+` >> h3[slot="heading-xs"]`, &ElementSnapshot{CSS: map[string]string{"color": "black"}})

	e, _ := newTestExtractor(page)
	result, err := e.Extract(context.Background(), Request{CardID: testCardID})
	require.NoError(t, err)
	assert.Equal(t, "plans", result.CardType)
}

func TestExtract_AuthRedirect(t *testing.T) {
	t.Run("never returns and card missing", func(t *testing.T) {
		page := newFakePage()
		page.urls = []string{"https://auth.example.com/ims/login"}

		e, _ := newTestExtractor(page)
		_, err := e.Extract(context.Background(), Request{CardID: testCardID})
		require.Error(t, err)
		assert.Equal(t, domain.ClassAuthenticationRequired, domain.ClassOf(err))
	})

	t.Run("returns to the studio", func(t *testing.T) {
		page := plansCard()
		page.urls = []string{
			"https://auth.example.com/ims/login",
			"https://auth.example.com/ims/login",
			"https://main--mas--adobecom.aem.live/studio.html",
		}
		e, _ := newTestExtractor(page)
		e.browser.AuthTimeout = 5 * time.Second

		result, err := e.Extract(context.Background(), Request{CardID: testCardID})
		require.NoError(t, err)
		assert.Empty(t, result.Warnings)
	})

	t.Run("times out but card is present", func(t *testing.T) {
		page := plansCard()
		page.urls = []string{"https://auth.example.com/ims/login"}

		e, _ := newTestExtractor(page)
		result, err := e.Extract(context.Background(), Request{CardID: testCardID})
		require.NoError(t, err)
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0], "authentication redirect")
	})
}

func TestExtract_InvalidInputDoesNotLaunch(t *testing.T) {
	e, launcher := newTestExtractor(newFakePage())

	_, err := e.Extract(context.Background(), Request{CardID: "not-a-uuid"})
	assert.Equal(t, domain.ClassInvalidInput, domain.ClassOf(err))

	_, err = e.Extract(context.Background(), Request{CardID: testCardID, Target: Target{Branch: "bad branch"}})
	assert.Equal(t, domain.ClassInvalidInput, domain.ClassOf(err))

	assert.Zero(t, launcher.launched)
}

func TestExtract_NavigationFailure(t *testing.T) {
	page := newFakePage()
	page.gotoErr = errors.New("net::ERR_NAME_NOT_RESOLVED")

	e, launcher := newTestExtractor(page)
	_, err := e.Extract(context.Background(), Request{CardID: testCardID})
	assert.Equal(t, domain.ClassTimeout, domain.ClassOf(err))
	assert.Equal(t, 1, launcher.closed)
}

func TestSession_CloseOnce(t *testing.T) {
	calls := 0
	s := NewSession(newFakePage(), func() error {
		calls++
		return nil
	})
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, calls)
}

func TestFilterStyle(t *testing.T) {
	in := map[string]string{
		"color":            " rgb(0, 0, 0) ",
		"margin":           "0px",
		"padding":          "0px 16px",
		"background-color": "rgba(0, 0, 0, 0)",
		"width":            "auto",
		"display":          "",
		"font-weight":      "inherit",
		"text-align":       "initial",
		"line-height":      "normal",
		"border-color":     "transparent",
		"box-shadow":       "none",
		"outline-color":    "rgba(255, 255, 255, 0)",
		"border-top-color": "rgba(17, 17, 17, 0.0)",
		"fill":             "rgba(255, 255, 255, 0.5)",
	}
	assert.Equal(t, map[string]string{
		"color":   "rgb(0, 0, 0)",
		"padding": "0px 16px",
		"fill":    "rgba(255, 255, 255, 0.5)",
	}, FilterStyle(in))
}

func TestIsNoise_TransparentColours(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"rgba(0, 0, 0, 0)", true},
		{"rgba(255, 255, 255, 0)", true},
		{" rgba(34,34,34,0) ", true},
		{"rgba(255, 255, 255, 0.01)", false},
		{"rgba(255, 255, 255)", false},
		{"rgb(0, 0, 0)", false},
		{"rgba(a, b, c, x)", false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNoise(tt.value))
		})
	}
}
