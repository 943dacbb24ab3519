package scriptgen

import (
	"regexp"
	"sort"
	"strings"
)

var (
	wordSplit  = regexp.MustCompile(`[^A-Za-z0-9]+`)
	identifier = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)
)

// ClassName returns the page object class name for a card type,
// "plans-education" becoming "PlansEducationPage".
func ClassName(cardType string) string {
	return pascal(cardType) + "Page"
}

// SpecName returns the identifier tests bind the spec module to.
func SpecName(cardType string) string {
	return pascal(cardType) + "Spec"
}

// FeatureName is the human title used for describe blocks and the spec.
func FeatureName(cardType string) string {
	parts := wordSplit.Split(cardType, -1)
	words := make([]string, 0, len(parts)+1)
	for _, p := range parts {
		if p != "" {
			words = append(words, upperFirst(p))
		}
	}
	return strings.Join(append(words, "Card"), " ")
}

func pascal(s string) string {
	var b strings.Builder
	for _, p := range wordSplit.Split(s, -1) {
		b.WriteString(upperFirst(p))
	}
	if b.Len() == 0 {
		return "Card"
	}
	return b.String()
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Quote renders s as a single-quoted JavaScript string literal.
func Quote(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "'", "\\'")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return "'" + s + "'"
}

// propertyKey renders an object literal key, quoting CSS names such as
// font-size that are not identifiers.
func propertyKey(name string) string {
	if identifier.MatchString(name) {
		return name
	}
	return Quote(name)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
