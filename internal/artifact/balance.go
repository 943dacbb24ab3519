package artifact

import "strings"

// Delimiters is the result of scanning a text for (), {} and [] pairs while
// skipping string literals and comments.
type Delimiters struct {
	// Unclosed openers in the order they were opened.
	Unclosed []byte
	// Closers that had no matching opener.
	Stray int
}

// Balanced reports whether every opener was closed and nothing was stray.
func (d Delimiters) Balanced() bool {
	return len(d.Unclosed) == 0 && d.Stray == 0
}

// Closers returns the closing sequence that balances the unclosed openers,
// innermost first.
func (d Delimiters) Closers() string {
	var b strings.Builder
	for i := len(d.Unclosed) - 1; i >= 0; i-- {
		b.WriteByte(closerFor(d.Unclosed[i]))
	}
	return b.String()
}

// Count returns how many of the given opener are left unclosed.
func (d Delimiters) Count(opener byte) int {
	n := 0
	for _, c := range d.Unclosed {
		if c == opener {
			n++
		}
	}
	return n
}

func closerFor(c byte) byte {
	switch c {
	case '(':
		return ')'
	case '[':
		return ']'
	default:
		return '}'
	}
}

// Scan walks text once, tracking quotes, template literals, line and block
// comments. Template literal interpolations are not descended into; their
// braces are treated as part of the string.
func Scan(text string) Delimiters {
	var (
		stack []byte
		stray int
		quote byte
	)
	for i := 0; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
		case '/':
			if i+1 < len(text) && text[i+1] == '/' {
				for i < len(text) && text[i] != '\n' {
					i++
				}
			} else if i+1 < len(text) && text[i+1] == '*' {
				end := strings.Index(text[i+2:], "*/")
				if end < 0 {
					i = len(text)
				} else {
					i += end + 3
				}
			}
		case '(', '{', '[':
			stack = append(stack, c)
		case ')', '}', ']':
			if len(stack) > 0 && closerFor(stack[len(stack)-1]) == c {
				stack = stack[:len(stack)-1]
			} else {
				stray++
			}
		}
	}
	return Delimiters{Unclosed: stack, Stray: stray}
}

// Balance appends the closers needed to balance the body and reports
// whether anything was added. Stray closers are left alone.
func (d *Document) Balance() bool {
	delims := Scan(d.BodyText())
	if len(delims.Unclosed) == 0 {
		return false
	}
	closers := delims.Closers()
	for i := 0; i < len(closers); i++ {
		group := string(closers[i])
		// a block closing right before its call paren goes on one line: "})"
		if closers[i] == '}' && i+1 < len(closers) && closers[i+1] == ')' {
			group += ")"
			i++
		}
		if strings.HasSuffix(group, ")") {
			group += ";"
		}
		d.Body = append(d.Body, group)
	}
	return true
}
