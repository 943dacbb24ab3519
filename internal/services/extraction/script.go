package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/testforge/cardforge/internal/domain"
	"github.com/testforge/cardforge/internal/registry"
)

// ScriptOptions parameterizes the standalone extraction script
type ScriptOptions struct {
	CardID       string
	URL          string
	Headless     bool
	StorageState string
	AuthPatterns []string
}

type scriptData struct {
	CardID       string
	URL          string
	Headless     bool
	StorageState string
	Registry     string
	Elements     string
	CardProps    string
	ElementProps string
	Noise        string
	AuthPatterns string
}

var extractionScript = template.Must(template.New("extract").Parse(`// Extracts card {{.CardID}} and prints the result as JSON.
// Usage: node extract-{{.CardID}}.js > extraction.json
const { chromium } = require('playwright');

const CARD_ID = {{printf "%q" .CardID}};
const URL = {{printf "%q" .URL}};
const REGISTRY = {{.Registry}};
const ELEMENTS = {{.Elements}};
const CARD_PROPS = {{.CardProps}};
const ELEMENT_PROPS = {{.ElementProps}};
const NOISE = new Set({{.Noise}});
const TRANSPARENT = /^rgba\([^,]+,[^,]+,[^,]+,\s*(0+\.?0*|\.0+)\s*\)$/;
const AUTH_PATTERNS = {{.AuthPatterns}};

function candidates(variant, element) {
  const v = REGISTRY.variants.find((x) => x.name === variant);
  const ranked = [...((v && v.selectors && v.selectors[element]) || []), ...(REGISTRY.selectors[element] || [])];
  return [...new Set(ranked)];
}

function filterStyle(css) {
  const out = {};
  for (const [prop, value] of Object.entries(css)) {
    const v = (value || '').trim();
    if (!NOISE.has(v) && !TRANSPARENT.test(v)) out[prop] = v;
  }
  return out;
}

async function inspect(locator, props) {
  return locator.first().evaluate((el, props) => {
    const style = window.getComputedStyle(el);
    const css = {};
    for (const p of props) css[p] = style.getPropertyValue(p);
    const slotted = el.closest('[slot]');
    return {
      tagName: el.tagName.toLowerCase(),
      text: (el.textContent || '').replace(/\s+/g, ' ').trim(),
      slot: slotted ? slotted.getAttribute('slot') : '',
      variant: el.getAttribute('variant') || '',
      className: el.getAttribute('class') || '',
      css,
    };
  }, props);
}

async function locateCard(page) {
  const byId = page.locator(` + "`merch-card[id=\"${CARD_ID}\"]`" + `);
  if (await byId.count()) return byId.first();
  const byFragment = page.locator(` + "`merch-card:has(aem-fragment[fragment*=\"${CARD_ID}\"])`" + `);
  if (await byFragment.count()) return byFragment.first();
  const cards = page.locator('merch-card');
  const html = await cards.evaluateAll((els) => els.map((el) => el.outerHTML));
  const index = html.findIndex((h) => h.includes(CARD_ID));
  return index >= 0 ? cards.nth(index) : null;
}

function detect(root, present) {
  const attrs = (root.variant + ' ' + root.className).toLowerCase();
  for (const v of REGISTRY.variants) {
    if ((v.markers || []).some((m) => m && attrs.includes(m.toLowerCase()))) return v.name;
  }
  for (const v of REGISTRY.variants) {
    if ((v.requires || []).length && v.requires.every((el) => present.has(el))) return v.name;
  }
  return REGISTRY.defaultVariant;
}

(async () => {
  const browser = await chromium.launch({ headless: {{.Headless}} });
  const context = await browser.newContext({
    viewport: { width: 1920, height: 1080 },{{if .StorageState}}
    storageState: {{printf "%q" .StorageState}},{{end}}
  });
  const page = await context.newPage();
  const warnings = [];
  try {
    await page.goto(URL, { waitUntil: 'domcontentloaded' });
    if (AUTH_PATTERNS.some((p) => page.url().includes(p))) {
      warnings.push('authentication redirect detected');
      await page.waitForURL((u) => !AUTH_PATTERNS.some((p) => u.href.includes(p)), { timeout: 120000 }).catch(() => {
        warnings.push('authentication redirect not completed');
      });
    }
    await page.locator('merch-card').first().waitFor({ state: 'visible', timeout: 30000 }).catch(() => {});

    const card = await locateCard(page);
    if (!card) throw new Error(` + "`Card not found: ${CARD_ID}`" + `);

    const root = await inspect(card, CARD_PROPS);
    const present = new Set();
    for (const name of ELEMENTS) {
      for (const sel of candidates('', name)) {
        if (await card.locator(sel).count()) { present.add(name); break; }
      }
    }
    const cardType = detect(root, present);

    const elements = {};
    const slots = new Set();
    for (const name of ELEMENTS) {
      const ranked = candidates(cardType, name);
      for (const sel of ranked) {
        const loc = card.locator(sel);
        if (!(await loc.count())) continue;
        const snap = await inspect(loc, ELEMENT_PROPS);
        const css = filterStyle(snap.css);
        if (Object.keys(css).length) {
          elements[name] = { selector: sel, candidates: ranked, css, slot: snap.slot, tagName: snap.tagName, textContent: snap.text };
          if (snap.slot) slots.add(snap.slot);
        }
        break;
      }
    }

    console.log(JSON.stringify({
      cardType,
      cardId: CARD_ID,
      card: filterStyle(root.css),
      elements,
      slots: [...slots].sort(),
      url: URL,
      warnings,
    }, null, 2));
  } catch (err) {
    console.error(err.message);
    process.exitCode = 1;
  } finally {
    await browser.close();
  }
})();
`))

// GenerateScript renders a standalone Node script that performs the same
// extraction as Extractor, embedding the current registry so it runs
// without this service.
func GenerateScript(reg *registry.Registry, opts ScriptOptions) (string, error) {
	if err := domain.ValidateCardID(opts.CardID, true); err != nil {
		return "", err
	}
	if opts.URL == "" {
		return "", domain.ErrInvalidInput("url", "is required")
	}
	if reg == nil {
		reg = registry.New(nil)
	}

	data := scriptData{
		CardID:       opts.CardID,
		URL:          opts.URL,
		Headless:     opts.Headless,
		StorageState: opts.StorageState,
	}
	var err error
	if data.Registry, err = jsonValue(reg.Snapshot()); err != nil {
		return "", err
	}
	if data.Elements, err = jsonValue(reg.Elements(domain.KnownElements)); err != nil {
		return "", err
	}
	if data.CardProps, err = jsonValue(CardProperties); err != nil {
		return "", err
	}
	if data.ElementProps, err = jsonValue(ElementProperties); err != nil {
		return "", err
	}
	if data.Noise, err = jsonValue(NoiseValues); err != nil {
		return "", err
	}
	patterns := opts.AuthPatterns
	if patterns == nil {
		patterns = []string{}
	}
	if data.AuthPatterns, err = jsonValue(patterns); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := extractionScript.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering extraction script: %w", err)
	}
	return buf.String(), nil
}

func jsonValue(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding script data: %w", err)
	}
	return string(data), nil
}
