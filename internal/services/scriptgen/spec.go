package scriptgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/testforge/cardforge/internal/artifact"
	"github.com/testforge/cardforge/internal/domain"
)

// featureTag is the spec entry name for one test type, e.g. "@catalog-css".
func featureTag(cardType string, tt domain.TestType) string {
	return fmt.Sprintf("@%s-%s", cardType, tt)
}

// specDocument builds the spec: one feature entry per configured test type,
// in configuration order. Tests index into this array by position.
func (g *ScriptGenerator) specDocument(cfg *domain.CardConfiguration) *artifact.Document {
	doc := artifact.New()
	title := cfg.TestSuite
	if title == "" {
		title = FeatureName(cfg.CardType)
	}

	path := cfg.Metadata.Path
	if path == "" {
		path = g.config.DefaultPath
	}
	params := cfg.Metadata.BrowserParams
	if params == "" {
		params = g.config.DefaultBrowserParams
	}

	doc.Line(0, "export default {")
	doc.Line(1, fmt.Sprintf("FeatureName: %s,", Quote(title)))
	doc.Line(1, "features: [")
	for i, tt := range cfg.TestTypes {
		doc.Line(2, "{")
		doc.Line(3, fmt.Sprintf("tcid: %s,", Quote(strconv.Itoa(i))))
		doc.Line(3, fmt.Sprintf("name: %s,", Quote(featureTag(cfg.CardType, tt))))
		doc.Line(3, fmt.Sprintf("path: %s,", Quote(path)))
		doc.Line(3, fmt.Sprintf("browserParams: %s,", Quote(params)))
		doc.Line(3, "data: {")
		doc.Line(4, fmt.Sprintf("cardid: %s,", Quote(cfg.CardID)))
		for _, name := range cfg.ElementNames() {
			if text := expectedText(cfg.Elements[name]); text != "" {
				doc.Line(4, fmt.Sprintf("%s: %s,", name, Quote(text)))
			}
		}
		doc.Line(3, "},")
		doc.Line(3, fmt.Sprintf("tags: %s,", Quote(g.tags(cfg, tt))))
		doc.Line(2, "},")
	}
	doc.Line(1, "],")
	doc.Line(0, "};")
	return doc
}

func (g *ScriptGenerator) tags(cfg *domain.CardConfiguration, tt domain.TestType) string {
	seen := make(map[string]bool)
	var out []string
	all := append(append(append([]string{}, g.config.Tags...), cfg.Metadata.Tags...), "@"+cfg.CardType, featureTag(cfg.CardType, tt))
	for _, tag := range all {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if !strings.HasPrefix(tag, "@") {
			tag = "@" + tag
		}
		if seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return strings.Join(out, " ")
}

// expectedText is the text an element is asserted to show, if any.
func expectedText(el domain.ElementSpec) string {
	if el.ExpectedText != "" {
		return el.ExpectedText
	}
	return el.ExpectedValue
}
