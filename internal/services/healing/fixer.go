// Package healing classifies validation and execution errors and repairs
// generated artifacts with a fixed, ordered set of pattern-driven patches.
package healing

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/testforge/cardforge/internal/artifact"
	"github.com/testforge/cardforge/internal/domain"
)

// Fixer applies registered patches to an artifact set
type Fixer struct {
	webUtil string
	logger  *zap.Logger
}

// NewFixer creates a fixer. webUtilImport is the path inserted when a test
// lacks its WebUtil import.
func NewFixer(webUtilImport string, logger *zap.Logger) *Fixer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fixer{webUtil: webUtilImport, logger: logger}
}

type job struct {
	entry   Entry
	pattern int
	match   []string
}

// workspace holds the parsed documents of one fix pass.
type workspace struct {
	set     *domain.GeneratedArtifactSet
	page    string
	spec    string
	tests   map[string]domain.TestType
	docs    map[string]*artifact.Document
	touched []string
}

func newWorkspace(set *domain.GeneratedArtifactSet) *workspace {
	cardType := set.Config.CardType
	ws := &workspace{
		set:   set,
		page:  domain.PageObjectFileName(cardType),
		spec:  domain.SpecFileName(cardType),
		tests: make(map[string]domain.TestType),
		docs:  make(map[string]*artifact.Document),
	}
	for tt := range set.Tests {
		ws.tests[domain.TestFileName(cardType, tt)] = tt
	}
	return ws
}

func (ws *workspace) doc(file string) *artifact.Document {
	if d, ok := ws.docs[file]; ok {
		return d
	}
	var text string
	switch {
	case file == ws.page:
		text = ws.set.PageObject
	case file == ws.spec:
		text = ws.set.Spec
	default:
		text = ws.set.Tests[ws.tests[file]]
	}
	d := artifact.Parse(text)
	ws.docs[file] = d
	return d
}

// targets returns the files a patch for e should edit.
func (ws *workspace) targets(kind domain.ArtifactKind, e Entry) []string {
	switch kind {
	case domain.ArtifactPageObject:
		return []string{ws.page}
	case domain.ArtifactSpec:
		return []string{ws.spec}
	}
	if e.File != "" {
		if _, ok := ws.tests[e.File]; ok {
			return []string{e.File}
		}
		return nil
	}
	files := make([]string, 0, len(ws.tests))
	for _, tt := range ws.set.TestTypes() {
		files = append(files, domain.TestFileName(ws.set.Config.CardType, tt))
	}
	return files
}

func (ws *workspace) touch(file string) {
	for _, f := range ws.touched {
		if f == file {
			return
		}
	}
	ws.touched = append(ws.touched, file)
}

// flush renders every touched document back into the set.
func (ws *workspace) flush() {
	for _, file := range ws.touched {
		text := ws.docs[file].Render()
		switch {
		case file == ws.page:
			ws.set.PageObject = text
		case file == ws.spec:
			ws.set.Spec = text
		default:
			ws.set.Tests[ws.tests[file]] = text
		}
	}
}

// Fix patches set in place for the given errors. Each error is matched
// against the registered patterns in order and only the first match is
// applied; errors nothing matches, or whose patch cannot apply, are
// returned as remaining.
func (f *Fixer) Fix(set *domain.GeneratedArtifactSet, errors []string) *FixResult {
	result := &FixResult{}
	if set == nil || set.Config == nil {
		result.Remaining = append(result.Remaining, errors...)
		return result
	}
	ws := newWorkspace(set)

	var jobs []job
	for _, entries := range orderedPartitions(errors) {
		for _, e := range entries {
			idx, m := match(e.Message)
			if idx < 0 {
				result.Remaining = append(result.Remaining, e.Raw)
				continue
			}
			jobs = append(jobs, job{entry: e, pattern: idx, match: m})
		}
	}
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].pattern < jobs[j].pattern })

	for _, j := range jobs {
		p := registry[j.pattern]
		kind := p.Target
		if kind == "" {
			kind = j.entry.Kind
		}

		applied, resolved := false, false
		for _, file := range ws.targets(kind, j.entry) {
			pc := &patchContext{cfg: set.Config, webUtil: f.webUtil, file: file, testType: ws.tests[file]}
			switch p.apply(ws.doc(file), j.match, pc) {
			case patchApplied:
				applied = true
				ws.touch(file)
				result.Applied = append(result.Applied, fmt.Sprintf("%s (%s)", p.Name, file))
			case patchResolved:
				resolved = true
			}
		}
		if !applied && !resolved {
			result.Remaining = append(result.Remaining, j.entry.Raw)
		}
	}

	ws.flush()
	result.Touched = ws.touched

	f.logger.Debug("fix pass finished",
		zap.String("card_type", set.Config.CardType),
		zap.Int("errors", len(errors)),
		zap.Int("applied", len(result.Applied)),
		zap.Int("remaining", len(result.Remaining)),
	)
	return result
}

// orderedPartitions returns Partition's groups test, page, spec.
func orderedPartitions(errors []string) [][]Entry {
	parts := Partition(errors)
	return [][]Entry{parts[domain.ArtifactTest], parts[domain.ArtifactPageObject], parts[domain.ArtifactSpec]}
}
