package scriptgen

import (
	"fmt"

	"github.com/testforge/cardforge/internal/artifact"
	"github.com/testforge/cardforge/internal/domain"
)

// Import lines shared by every generated test.
const playwrightImport = "import { test, expect } from '@playwright/test';"

// testWriter accumulates the steps of one test body.
type testWriter struct {
	doc  *artifact.Document
	cfg  *domain.CardConfiguration
	step int
}

// step opens a numbered test.step, runs body at indent 3, and closes it.
func (w *testWriter) stepBlock(title string, body func()) {
	w.step++
	w.doc.Line(0, "")
	w.doc.Line(2, fmt.Sprintf("await test.step(%s, async () => {", Quote(fmt.Sprintf("step-%d: %s", w.step, title))))
	body()
	w.doc.Line(2, "});")
}

func (w *testWriter) line(text string) {
	w.doc.Line(3, text)
}

func locatorFor(name string) string {
	return fmt.Sprintf("cardPage.%s(data.cardid)", name)
}

// testDocument builds the executable test for one test type.
func (g *ScriptGenerator) testDocument(cfg *domain.CardConfiguration, tt domain.TestType, index int) *artifact.Document {
	doc := artifact.New()
	className := ClassName(cfg.CardType)
	specName := SpecName(cfg.CardType)

	doc.AddImport(playwrightImport)
	doc.AddImport(fmt.Sprintf("import WebUtil from %s;", Quote(g.config.WebUtilImport)))
	doc.AddImport(fmt.Sprintf("import %s from %s;", specName, Quote("../"+domain.SpecsDir+"/"+domain.SpecFileName(cfg.CardType))))
	doc.AddImport(fmt.Sprintf("import %s from %s;", className, Quote("../"+domain.PageObjectFileName(cfg.CardType))))

	doc.Line(0, fmt.Sprintf("const { features } = %s;", specName))
	doc.Line(0, fmt.Sprintf("const feature = features[%d];", index))
	doc.Line(0, "")
	doc.Line(0, "let cardPage;")
	doc.Line(0, "let webUtil;")
	doc.Line(0, "")
	doc.Line(0, fmt.Sprintf("test.describe(%s, () => {", Quote(fmt.Sprintf("%s %s", FeatureName(cfg.CardType), tt))))
	doc.Line(1, "test.beforeEach(async ({ page }) => {")
	doc.Line(2, fmt.Sprintf("cardPage = new %s(page);", className))
	doc.Line(2, "webUtil = new WebUtil(page);")
	doc.Line(1, "});")
	doc.Line(0, "")
	doc.Line(1, "test(`${feature.name},${feature.tags}`, async ({ page, baseURL }) => {")
	doc.Line(2, "const { data } = feature;")
	doc.Line(2, "const testPage = `${baseURL}${feature.path}${feature.browserParams}${data.cardid}`;")
	doc.Line(2, "console.info('[Test Page]: ', testPage);")

	w := &testWriter{doc: doc, cfg: cfg}
	w.stepBlock("Go to test page", func() {
		w.line("await page.goto(testPage);")
		w.line("await page.waitForLoadState('domcontentloaded');")
	})
	w.stepBlock("Verify card is visible", func() {
		w.line("await expect(cardPage.getCard(data.cardid)).toBeVisible();")
	})

	switch tt {
	case domain.TestTypeCSS:
		w.contentSteps()
		w.cssSteps()
	case domain.TestTypeFunctional:
		w.visibilitySteps()
		w.contentSteps()
	case domain.TestTypeInteraction:
		w.interactionSteps()
	case domain.TestTypeEdit:
		w.editSteps()
	case domain.TestTypeSave:
		w.editSteps()
		w.stepBlock("Save card", func() {
			w.line("await cardPage.saveButton.click();")
			w.editedAssertions()
		})
	case domain.TestTypeDiscard:
		w.editSteps()
		w.stepBlock("Discard changes", func() {
			w.line("await cardPage.discardButton.click();")
			w.originalAssertions()
		})
	}

	doc.Line(1, "});")
	doc.Line(0, "});")
	return doc
}

// contentSteps asserts expected text, value and attribute of every element
// that declares one.
func (w *testWriter) contentSteps() {
	var names []string
	for _, name := range w.cfg.ElementNames() {
		el := w.cfg.Elements[name]
		if el.ExpectedText != "" || el.ExpectedValue != "" || el.ExpectedAttribute != nil {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return
	}
	w.stepBlock("Validate card content", func() {
		for _, name := range names {
			el := w.cfg.Elements[name]
			if el.ExpectedText != "" {
				w.line(fmt.Sprintf("await expect(%s).toHaveText(%s);", locatorFor(name), Quote(el.ExpectedText)))
			}
			if el.ExpectedValue != "" {
				w.line(fmt.Sprintf("await expect(%s).toHaveValue(%s);", locatorFor(name), Quote(el.ExpectedValue)))
			}
			if attr := el.ExpectedAttribute; attr != nil && attr.Name != "" {
				w.line(fmt.Sprintf("await expect(%s).toHaveAttribute(%s, %s);", locatorFor(name), Quote(attr.Name), Quote(attr.Value)))
			}
		}
	})
}

func (w *testWriter) cssSteps() {
	if card := w.cfg.CSSProperties[domain.CardScope]; len(card) > 0 {
		w.stepBlock("Validate card CSS", func() {
			for _, prop := range sortedKeys(card) {
				w.line(fmt.Sprintf("await expect(cardPage.getCard(data.cardid)).toHaveCSS(%s, %s);", Quote(prop), Quote(card[prop])))
			}
		})
	}
	for _, name := range w.cfg.ElementNames() {
		css := w.cfg.ElementCSS(name)
		if len(css) == 0 {
			continue
		}
		w.stepBlock(fmt.Sprintf("Validate %s CSS", name), func() {
			for _, prop := range sortedKeys(css) {
				w.line(fmt.Sprintf("await expect(%s).toHaveCSS(%s, %s);", locatorFor(name), Quote(prop), Quote(css[prop])))
			}
		})
	}
}

func (w *testWriter) visibilitySteps() {
	w.stepBlock("Verify card elements are visible", func() {
		for _, name := range w.cfg.ElementNames() {
			w.line(fmt.Sprintf("await expect(%s).toBeVisible();", locatorFor(name)))
		}
	})
}

func (w *testWriter) interactionSteps() {
	for _, name := range w.cfg.ElementNames() {
		for _, in := range w.cfg.Elements[name].Interactions {
			code := interactionCode(name, in)
			if code == "" {
				continue
			}
			title := fmt.Sprintf("%s %s", name, in.Type)
			if in.ExpectedResult != "" {
				title += " - " + in.ExpectedResult
			}
			in := in
			w.stepBlock(title, func() {
				w.line(code)
				if in.WaitFor != "" {
					w.line(fmt.Sprintf("await expect(page.locator(%s).first()).toBeVisible();", Quote(in.WaitFor)))
				}
			})
		}
	}
}

// interactionCode is the Playwright call for one interaction. Edit
// interactions run through the editor and yield nothing here.
func interactionCode(name string, in domain.InteractionSpec) string {
	loc := locatorFor(name)
	switch in.Type {
	case domain.InteractionClick:
		return fmt.Sprintf("await %s.click();", loc)
	case domain.InteractionHover:
		return fmt.Sprintf("await %s.hover();", loc)
	case domain.InteractionInput:
		return fmt.Sprintf("await %s.fill(%s);", loc, Quote(in.Value))
	case domain.InteractionSelect:
		return fmt.Sprintf("await %s.selectOption(%s);", loc, Quote(in.Value))
	}
	return ""
}

// edit is one editor field change declared through an edit or type
// interaction.
type edit struct {
	element string
	value   string
	expect  string
}

func (w *testWriter) edits() []edit {
	var out []edit
	for _, name := range w.cfg.ElementNames() {
		for _, in := range w.cfg.Elements[name].Interactions {
			if in.Type != domain.InteractionEdit && in.Type != domain.InteractionInput {
				continue
			}
			if in.Value == "" {
				continue
			}
			e := edit{element: name, value: in.Value, expect: in.ExpectedResult}
			if e.expect == "" {
				e.expect = in.Value
			}
			out = append(out, e)
		}
	}
	return out
}

func (w *testWriter) editSteps() {
	w.stepBlock("Open card in editor", func() {
		w.line("await cardPage.getCard(data.cardid).dblclick();")
		w.line("await expect(cardPage.editor).toBeVisible();")
	})
	edits := w.edits()
	if len(edits) == 0 {
		return
	}
	w.stepBlock("Edit card fields", func() {
		for _, e := range edits {
			w.line(fmt.Sprintf("await cardPage.editorField(%s).fill(%s);", Quote(e.element), Quote(e.value)))
		}
		w.editedAssertions()
	})
}

func (w *testWriter) editedAssertions() {
	edits := w.edits()
	if len(edits) == 0 {
		w.line("await expect(cardPage.getCard(data.cardid)).toBeVisible();")
		return
	}
	for _, e := range edits {
		w.line(fmt.Sprintf("await expect(%s).toHaveText(%s);", locatorFor(e.element), Quote(e.expect)))
	}
}

func (w *testWriter) originalAssertions() {
	n := 0
	for _, e := range w.edits() {
		if text := w.cfg.Elements[e.element].ExpectedText; text != "" {
			w.line(fmt.Sprintf("await expect(%s).toHaveText(%s);", locatorFor(e.element), Quote(text)))
			n++
		}
	}
	if n == 0 {
		w.line("await expect(cardPage.getCard(data.cardid)).toBeVisible();")
	}
}
