// Package artifact holds the structured form of a generated JavaScript
// artifact: an import block followed by body lines. Generators render
// through it and the fixer edits it section by section.
package artifact

import (
	"strings"
)

// Document is one generated file split into its import block and body.
type Document struct {
	Imports []string
	Body    []string
}

// New creates an empty document
func New() *Document {
	return &Document{}
}

// Parse splits text into imports and body. Leading blank lines and
// single-line import statements form the import block; everything from the
// first other line on is body.
func Parse(text string) *Document {
	doc := &Document{}
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	i := 0
	for ; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}
		if !isImport(trimmed) {
			break
		}
		doc.Imports = append(doc.Imports, trimmed)
	}
	body := lines[i:]
	for len(body) > 0 && strings.TrimSpace(body[len(body)-1]) == "" {
		body = body[:len(body)-1]
	}
	doc.Body = append([]string(nil), body...)
	return doc
}

func isImport(line string) bool {
	return strings.HasPrefix(line, "import ") || strings.HasPrefix(line, "import{")
}

// Render joins the document back into text ending with one newline.
func (d *Document) Render() string {
	var b strings.Builder
	for _, imp := range d.Imports {
		b.WriteString(imp)
		b.WriteByte('\n')
	}
	if len(d.Imports) > 0 && len(d.Body) > 0 {
		b.WriteByte('\n')
	}
	for _, line := range d.Body {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// String implements fmt.Stringer
func (d *Document) String() string {
	return d.Render()
}

// BodyText returns the body without the import block.
func (d *Document) BodyText() string {
	return strings.Join(d.Body, "\n")
}

// HasImport reports whether any import line contains substr.
func (d *Document) HasImport(substr string) bool {
	for _, imp := range d.Imports {
		if strings.Contains(imp, substr) {
			return true
		}
	}
	return false
}

// AddImport appends an import line at the end of the import block unless
// an identical line is already present. It reports whether it changed the
// document.
func (d *Document) AddImport(line string) bool {
	line = strings.TrimSpace(line)
	for _, imp := range d.Imports {
		if imp == line {
			return false
		}
	}
	d.Imports = append(d.Imports, line)
	return true
}

// ReplaceImport swaps the first import containing match for line, or adds
// line when none matches.
func (d *Document) ReplaceImport(match, line string) bool {
	for i, imp := range d.Imports {
		if strings.Contains(imp, match) {
			if imp == line {
				return false
			}
			d.Imports[i] = line
			return true
		}
	}
	return d.AddImport(line)
}

// Append adds lines to the end of the body.
func (d *Document) Append(lines ...string) {
	d.Body = append(d.Body, lines...)
}

// Line appends a single body line built from indent level and text. It is
// the generators' main building block.
func (d *Document) Line(indent int, text string) {
	if text == "" {
		d.Body = append(d.Body, "")
		return
	}
	d.Body = append(d.Body, strings.Repeat("  ", indent)+text)
}

// Index returns the first body line index containing substr, or -1.
func (d *Document) Index(substr string) int {
	for i, line := range d.Body {
		if strings.Contains(line, substr) {
			return i
		}
	}
	return -1
}

// InsertAfter inserts lines after body line i.
func (d *Document) InsertAfter(i int, lines ...string) {
	if i < 0 || i >= len(d.Body) {
		d.Body = append(d.Body, lines...)
		return
	}
	tail := append([]string(nil), d.Body[i+1:]...)
	d.Body = append(append(d.Body[:i+1], lines...), tail...)
}

// InsertBefore inserts lines before body line i.
func (d *Document) InsertBefore(i int, lines ...string) {
	if i <= 0 {
		d.Body = append(append([]string(nil), lines...), d.Body...)
		return
	}
	if i >= len(d.Body) {
		d.Body = append(d.Body, lines...)
		return
	}
	tail := append([]string(nil), d.Body[i:]...)
	d.Body = append(append(d.Body[:i], lines...), tail...)
}

// Wrap indents the body range [from, len) one level and surrounds it with
// header and footer lines.
func (d *Document) Wrap(from int, header, footer string) {
	if from < 0 {
		from = 0
	}
	if from > len(d.Body) {
		from = len(d.Body)
	}
	inner := make([]string, 0, len(d.Body)-from+2)
	inner = append(inner, header)
	for _, line := range d.Body[from:] {
		if line == "" {
			inner = append(inner, "")
			continue
		}
		inner = append(inner, "  "+line)
	}
	inner = append(inner, footer)
	d.Body = append(d.Body[:from], inner...)
}

// ReplaceInBody replaces every occurrence of old across the body
// and returns the number of lines changed.
func (d *Document) ReplaceInBody(old, replacement string) int {
	if old == "" {
		return 0
	}
	n := 0
	for i, line := range d.Body {
		if strings.Contains(line, old) {
			d.Body[i] = strings.ReplaceAll(line, old, replacement)
			n++
		}
	}
	return n
}

// Contains reports whether substr occurs anywhere in the rendered document.
func (d *Document) Contains(substr string) bool {
	return d.HasImport(substr) || d.Index(substr) >= 0
}
