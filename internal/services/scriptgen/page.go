package scriptgen

import (
	"fmt"

	"github.com/testforge/cardforge/internal/artifact"
	"github.com/testforge/cardforge/internal/domain"
)

// cardLocator matches a merch card either by id or by its fragment.
const cardLocator = "this.page.locator(`merch-card[id=\"${id}\"], merch-card:has(aem-fragment[fragment=\"${id}\"])`).first()"

// Editor locators used by the edit, save and discard tests.
const (
	editorLocator  = `editor-panel`
	saveLocator    = `sp-action-button[label="Save"], mas-side-nav-item[label="Save"]`
	discardLocator = `sp-action-button[label="Discard"], mas-side-nav-item[label="Discard"]`
)

// pageObjectDocument builds the page object: one accessor per element plus
// the CSS expectation table.
func (g *ScriptGenerator) pageObjectDocument(cfg *domain.CardConfiguration) *artifact.Document {
	doc := artifact.New()
	names := cfg.ElementNames()

	doc.Line(0, fmt.Sprintf("export default class %s {", ClassName(cfg.CardType)))
	doc.Line(1, "constructor(page) {")
	doc.Line(2, "this.page = page;")
	doc.Line(0, "")
	g.writeCSSTable(doc, cfg, names)

	if g.config.EmitFallbacks {
		g.writeFallbackTable(doc, cfg, names)
	}

	editor := usesEditor(cfg)
	if editor {
		doc.Line(0, "")
		doc.Line(2, fmt.Sprintf("this.editor = page.locator(%s);", Quote(editorLocator)))
		doc.Line(2, fmt.Sprintf("this.saveButton = page.locator(%s).first();", Quote(saveLocator)))
		doc.Line(2, fmt.Sprintf("this.discardButton = page.locator(%s).first();", Quote(discardLocator)))
	}
	doc.Line(1, "}")
	doc.Line(0, "")

	doc.Line(1, "getCard(id) {")
	doc.Line(2, "return "+cardLocator+";")
	doc.Line(1, "}")

	if editor {
		doc.Line(0, "")
		doc.Line(1, "editorField(field) {")
		doc.Line(2, "return this.editor.locator(`#card-${field}, [data-field=\"${field}\"]`).first();")
		doc.Line(1, "}")
	}

	for _, name := range names {
		doc.Line(0, "")
		doc.Line(1, fmt.Sprintf("%s(id) {", name))
		doc.Line(2, fmt.Sprintf("return this.getCard(id).locator(%s);", Quote(cfg.Elements[name].Selector)))
		doc.Line(1, "}")
	}
	doc.Line(0, "}")
	return doc
}

func (g *ScriptGenerator) writeCSSTable(doc *artifact.Document, cfg *domain.CardConfiguration, names []string) {
	scopes := make([]string, 0, len(names)+1)
	tables := make(map[string]map[string]string)
	if card := cfg.CSSProperties[domain.CardScope]; len(card) > 0 {
		scopes = append(scopes, domain.CardScope)
		tables[domain.CardScope] = card
	}
	for _, name := range names {
		if css := cfg.ElementCSS(name); len(css) > 0 {
			scopes = append(scopes, name)
			tables[name] = css
		}
	}

	if len(scopes) == 0 {
		doc.Line(2, "this.cssProp = {};")
		return
	}
	doc.Line(2, "this.cssProp = {")
	for _, scope := range scopes {
		doc.Line(3, propertyKey(scope)+": {")
		for _, prop := range sortedKeys(tables[scope]) {
			doc.Line(4, fmt.Sprintf("%s: %s,", propertyKey(prop), Quote(tables[scope][prop])))
		}
		doc.Line(3, "},")
	}
	doc.Line(2, "};")
}

func (g *ScriptGenerator) writeFallbackTable(doc *artifact.Document, cfg *domain.CardConfiguration, names []string) {
	doc.Line(0, "")
	doc.Line(2, "this.fallbacks = {")
	for _, name := range names {
		candidates := cfg.Elements[name].Candidates()
		if len(candidates) < 2 {
			continue
		}
		doc.Line(3, name+": [")
		for _, sel := range candidates[1:] {
			doc.Line(4, Quote(sel)+",")
		}
		doc.Line(3, "],")
	}
	doc.Line(2, "};")
}
