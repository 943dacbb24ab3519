package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/testforge/cardforge/internal/config"
)

const inspectScript = `(el, props) => {
  const style = window.getComputedStyle(el);
  const css = {};
  for (const p of props) css[p] = style.getPropertyValue(p);
  const attributes = {};
  for (const a of el.attributes) attributes[a.name] = a.value;
  const slotted = el.closest('[slot]');
  return {
    tagName: el.tagName.toLowerCase(),
    text: (el.textContent || '').replace(/\s+/g, ' ').trim(),
    slot: slotted ? slotted.getAttribute('slot') : '',
    attributes,
    css,
  };
}`

// PlaywrightLauncher starts Chromium through playwright-go
type PlaywrightLauncher struct {
	cfg config.BrowserConfig
}

// NewPlaywrightLauncher creates a launcher for the given browser settings
func NewPlaywrightLauncher(cfg config.BrowserConfig) *PlaywrightLauncher {
	return &PlaywrightLauncher{cfg: cfg}
}

// Launch starts the driver, a browser, a context and one page. Everything
// started so far is torn down when a later step fails.
func (l *PlaywrightLauncher) Launch(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("starting playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.cfg.Headless),
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	opts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  1920,
			Height: 1080,
		},
	}
	if l.cfg.StorageState != "" {
		opts.StorageStatePath = playwright.String(l.cfg.StorageState)
	}
	browserCtx, err := browser.NewContext(opts)
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("creating browser context: %w", err)
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		browserCtx.Close()
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("creating page: %w", err)
	}

	return NewSession(&playwrightPage{page: page}, func() error {
		browserCtx.Close()
		browser.Close()
		return pw.Stop()
	}), nil
}

type playwrightPage struct {
	page playwright.Page
}

func millis(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}

func (p *playwrightPage) Goto(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   millis(timeout),
	})
	return err
}

func (p *playwrightPage) URL() string {
	return p.page.URL()
}

func (p *playwrightPage) Count(ctx context.Context, selector string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return p.page.Locator(selector).Count()
}

func (p *playwrightPage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: millis(timeout),
	})
}

func (p *playwrightPage) OuterHTML(ctx context.Context, selector string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, err := p.page.Locator(selector).EvaluateAll("els => els.map(el => el.outerHTML)")
	if err != nil {
		return nil, err
	}
	var out []string
	if err := remarshal(v, &out); err != nil {
		return nil, fmt.Errorf("reading outer HTML: %w", err)
	}
	return out, nil
}

func (p *playwrightPage) Inspect(ctx context.Context, selector string, properties []string) (*ElementSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, err := p.page.Locator(selector).First().Evaluate(inspectScript, properties)
	if err != nil {
		return nil, err
	}
	snap := &ElementSnapshot{}
	if err := remarshal(v, snap); err != nil {
		return nil, fmt.Errorf("reading element snapshot: %w", err)
	}
	return snap, nil
}

// remarshal converts the driver's generic evaluation result into a typed value.
func remarshal(v interface{}, out interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
