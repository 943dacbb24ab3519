package healing

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/testforge/cardforge/internal/artifact"
	"github.com/testforge/cardforge/internal/domain"
	"github.com/testforge/cardforge/internal/services/scriptgen"
	"github.com/testforge/cardforge/internal/services/validation"
)

// patchOutcome is what a patch did to its document.
type patchOutcome int

const (
	// patchFailed: the patch could not resolve the error.
	patchFailed patchOutcome = iota
	// patchApplied: the document changed.
	patchApplied
	// patchResolved: an earlier patch already resolved the error.
	patchResolved
)

// patchContext carries what patches need beyond the document itself.
type patchContext struct {
	cfg      *domain.CardConfiguration
	webUtil  string
	file     string
	testType domain.TestType
}

// Pattern is one registered defect class and its patch.
type Pattern struct {
	Name  string
	Regex *regexp.Regexp
	// Target is the artifact the patch edits. Empty means the artifact
	// the error was tagged with.
	Target domain.ArtifactKind
	apply  func(doc *artifact.Document, match []string, pc *patchContext) patchOutcome
}

// registry is tried in order for every error; the first pattern whose
// regex matches is the only one applied.
var registry = []Pattern{
	{
		Name:  "balance-delimiters",
		Regex: regexp.MustCompile(`Unbalanced delimiters`),
		apply: patchBalance,
	},
	{
		Name:  "playwright-import",
		Regex: regexp.MustCompile(`Missing import: (test|expect) from @playwright/test`),
		apply: patchPlaywrightImport,
	},
	{
		Name:  "page-object-import",
		Regex: regexp.MustCompile(`Missing import: (\w+) \(page object\)`),
		apply: patchPageImport,
	},
	{
		Name:  "webutil-import",
		Regex: regexp.MustCompile(`Missing import: WebUtil`),
		apply: patchWebUtilImport,
	},
	{
		Name:  "describe-wrapper",
		Regex: regexp.MustCompile(`Missing test\.describe block`),
		apply: patchDescribe,
	},
	{
		Name:  "async-bodies",
		Regex: regexp.MustCompile(`Test bodies must be async`),
		apply: patchAsync,
	},
	{
		Name:  "page-object-usage",
		Regex: regexp.MustCompile(`Page object not used`),
		apply: patchPageUsage,
	},
	{
		Name:   "selector-fallback",
		Regex:  regexp.MustCompile(`(?s)^.*(?:element\(s\) not found|resolved to 0 elements|waiting for locator).*$`),
		Target: domain.ArtifactPageObject,
		apply:  patchSelectorFallback,
	},
	{
		Name:   "page-default-export",
		Regex:  regexp.MustCompile(`Missing export default class`),
		Target: domain.ArtifactPageObject,
		apply:  patchPageExport,
	},
	{
		Name:   "spec-default-export",
		Regex:  regexp.MustCompile(`Missing export default$`),
		Target: domain.ArtifactSpec,
		apply:  patchSpecExport,
	},
}

// Patterns returns the registered pattern names in registration order.
func Patterns() []string {
	names := make([]string, len(registry))
	for i, p := range registry {
		names[i] = p.Name
	}
	return names
}

// match returns the index of the first pattern matching msg, or -1.
func match(msg string) (int, []string) {
	for i, p := range registry {
		if m := p.Regex.FindStringSubmatch(msg); m != nil {
			return i, m
		}
	}
	return -1, nil
}

func patchBalance(doc *artifact.Document, _ []string, _ *patchContext) patchOutcome {
	if doc.Balance() {
		return patchApplied
	}
	if artifact.Scan(doc.BodyText()).Balanced() {
		return patchResolved
	}
	// only stray closers are left; appending cannot help
	return patchFailed
}

var playwrightImportLine = regexp.MustCompile(`import\s*\{([^}]*)\}\s*from\s*['"]@playwright/test['"]`)

func patchPlaywrightImport(doc *artifact.Document, m []string, _ *patchContext) patchOutcome {
	want := m[1]
	names := map[string]bool{}
	for _, imp := range doc.Imports {
		if sub := playwrightImportLine.FindStringSubmatch(imp); sub != nil {
			for _, n := range strings.Split(sub[1], ",") {
				if n = strings.TrimSpace(n); n != "" {
					names[n] = true
				}
			}
		}
	}
	if names[want] {
		return patchResolved
	}
	names[want] = true

	ordered := make([]string, 0, len(names))
	for _, n := range []string{"test", "expect"} {
		if names[n] {
			ordered = append(ordered, n)
			delete(names, n)
		}
	}
	var rest []string
	for n := range names {
		rest = append(rest, n)
	}
	sort.Strings(rest)
	line := fmt.Sprintf("import { %s } from '@playwright/test';", strings.Join(append(ordered, rest...), ", "))

	if doc.HasImport("@playwright/test") {
		doc.ReplaceImport("@playwright/test", line)
	} else {
		doc.Imports = append([]string{line}, doc.Imports...)
	}
	return patchApplied
}

func patchPageImport(doc *artifact.Document, m []string, pc *patchContext) patchOutcome {
	if pc.cfg == nil {
		return patchFailed
	}
	className := m[1]
	if regexp.MustCompile(`import\s+` + regexp.QuoteMeta(className) + `\s+from`).MatchString(strings.Join(doc.Imports, "\n")) {
		return patchResolved
	}
	doc.AddImport(fmt.Sprintf("import %s from %s;", className, scriptgen.Quote("../"+domain.PageObjectFileName(pc.cfg.CardType))))
	return patchApplied
}

func patchWebUtilImport(doc *artifact.Document, _ []string, pc *patchContext) patchOutcome {
	if doc.HasImport("import WebUtil ") {
		return patchResolved
	}
	doc.AddImport(fmt.Sprintf("import WebUtil from %s;", scriptgen.Quote(pc.webUtil)))
	return patchApplied
}

var firstTestLine = regexp.MustCompile(`^\s*test\s*[.(]`)

// patchDescribe wraps everything from the first test-level statement in a
// describe block with setup and teardown hooks.
func patchDescribe(doc *artifact.Document, _ []string, pc *patchContext) patchOutcome {
	if doc.Index("test.describe(") >= 0 {
		return patchResolved
	}
	from := len(doc.Body)
	for i, line := range doc.Body {
		if firstTestLine.MatchString(line) {
			from = i
			break
		}
	}

	title := "Card tests"
	if pc.cfg != nil {
		title = scriptgen.FeatureName(pc.cfg.CardType)
		if pc.testType != "" {
			title += " " + string(pc.testType)
		}
	}

	doc.Wrap(from, fmt.Sprintf("test.describe(%s, () => {", scriptgen.Quote(title)), "});")
	doc.InsertAfter(from,
		"  test.beforeEach(async ({ page }) => {",
		"    await page.setViewportSize({ width: 1920, height: 1080 });",
		"  });",
		"",
		"  test.afterEach(async ({ page }, testInfo) => {",
		"    if (testInfo.status !== testInfo.expectedStatus) console.info('[Failed Page]: ', page.url());",
		"  });",
		"",
	)
	return patchApplied
}

var syncArrow = regexp.MustCompile(`(async\s+)?\((?:\{[^}]*\})?\)\s*=>`)

func patchAsync(doc *artifact.Document, _ []string, _ *patchContext) patchOutcome {
	lines := validation.SyncBodyLines(doc.Body)
	if len(lines) == 0 {
		return patchResolved
	}
	for _, i := range lines {
		line := doc.Body[i]
		locs := syncArrow.FindAllStringSubmatchIndex(line, -1)
		for j := len(locs) - 1; j >= 0; j-- {
			if locs[j][2] >= 0 {
				continue
			}
			line = line[:locs[j][0]] + "async " + line[locs[j][0]:]
		}
		doc.Body[i] = line
	}
	return patchApplied
}

var (
	pageParamLine = regexp.MustCompile(`async\s*\(\{[^}]*\bpage\b[^}]*\}`)
	pageNew       = regexp.MustCompile(`new\s+\w+Page\s*\(`)
)

// patchPageUsage instantiates the page object at the top of the first
// callback that receives the page fixture.
func patchPageUsage(doc *artifact.Document, _ []string, pc *patchContext) patchOutcome {
	if pageNew.MatchString(doc.BodyText()) {
		return patchResolved
	}
	if pc.cfg == nil {
		return patchFailed
	}
	at := -1
	for i, line := range doc.Body {
		if pageParamLine.MatchString(line) {
			at = i
			break
		}
	}
	if at < 0 {
		return patchFailed
	}

	className := scriptgen.ClassName(pc.cfg.CardType)
	indent := leadingSpace(doc.Body[at]) + "  "
	stmt := fmt.Sprintf("const cardPage = new %s(page);", className)
	if doc.Index("let cardPage") >= 0 {
		stmt = fmt.Sprintf("cardPage = new %s(page);", className)
	}
	doc.InsertAfter(at, indent+stmt)
	doc.AddImport(fmt.Sprintf("import %s from %s;", className, scriptgen.Quote("../"+domain.PageObjectFileName(pc.cfg.CardType))))
	return patchApplied
}

var quotedLocator = regexp.MustCompile(`locator\('((?:[^'\\]|\\.)*)'\)`)

// patchSelectorFallback swaps a selector that resolved to nothing at run
// time for the next configured candidate of the same element.
func patchSelectorFallback(doc *artifact.Document, m []string, pc *patchContext) patchOutcome {
	if pc.cfg == nil {
		return patchFailed
	}
	found := quotedLocator.FindAllStringSubmatch(m[0], -1)
	// the innermost locator is printed last
	for i := len(found) - 1; i >= 0; i-- {
		sel := strings.NewReplacer(`\'`, `'`, `\"`, `"`).Replace(found[i][1])
		next, ok := nextCandidate(pc.cfg, sel)
		if !ok {
			continue
		}
		if doc.ReplaceInBody(scriptgen.Quote(sel), scriptgen.Quote(next)) > 0 {
			return patchApplied
		}
		if doc.Contains(scriptgen.Quote(next)) {
			return patchResolved
		}
	}
	return patchFailed
}

// nextCandidate returns the candidate after sel in the candidate list of
// the element that declares it.
func nextCandidate(cfg *domain.CardConfiguration, sel string) (string, bool) {
	for _, name := range cfg.ElementNames() {
		candidates := cfg.Elements[name].Candidates()
		for i, c := range candidates {
			if c == sel && i+1 < len(candidates) {
				return candidates[i+1], true
			}
		}
	}
	return "", false
}

var bareClass = regexp.MustCompile(`^(\s*)class\s+(\w+)`)

func patchPageExport(doc *artifact.Document, _ []string, _ *patchContext) patchOutcome {
	if doc.Index("export default class") >= 0 {
		return patchResolved
	}
	for i, line := range doc.Body {
		if sub := bareClass.FindStringSubmatch(line); sub != nil {
			doc.Body[i] = bareClass.ReplaceAllString(line, "${1}export default class ${2}")
			return patchApplied
		}
		if strings.HasPrefix(strings.TrimSpace(line), "export class ") {
			doc.Body[i] = strings.Replace(line, "export class ", "export default class ", 1)
			return patchApplied
		}
	}
	return patchFailed
}

var exportsAssign = regexp.MustCompile(`^(\s*)(?:module\.exports\s*=|const\s+\w+\s*=)\s*\{`)

func patchSpecExport(doc *artifact.Document, _ []string, _ *patchContext) patchOutcome {
	if doc.Index("export default") >= 0 {
		return patchResolved
	}
	for i, line := range doc.Body {
		if exportsAssign.MatchString(line) {
			doc.Body[i] = exportsAssign.ReplaceAllString(line, "${1}export default {")
			return patchApplied
		}
	}
	return patchFailed
}

func leadingSpace(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, " \t"))]
}
