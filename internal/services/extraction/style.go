package extraction

import (
	"sort"
	"strconv"
	"strings"
)

// CardProperties are read from the card root.
var CardProperties = []string{
	"background-color",
	"border-color",
	"border-radius",
	"border-width",
	"min-height",
	"padding",
	"width",
}

// ElementProperties are read from every resolved element.
var ElementProperties = []string{
	"background-color",
	"border-radius",
	"color",
	"font-family",
	"font-size",
	"font-weight",
	"line-height",
	"margin",
	"padding",
	"text-align",
	"text-decoration-line",
}

// NoiseValues carry no information about a card's styling.
var NoiseValues = []string{
	"",
	"auto",
	"none",
	"normal",
	"transparent",
	"0px",
	"initial",
	"inherit",
	"rgba(0, 0, 0, 0)",
}

var noise = func() map[string]bool {
	m := make(map[string]bool, len(NoiseValues))
	for _, v := range NoiseValues {
		m[v] = true
	}
	return m
}()

// IsNoise reports whether a computed value says nothing about the card.
// Any fully transparent rgba colour is noise.
func IsNoise(value string) bool {
	value = strings.TrimSpace(value)
	return noise[value] || transparent(value)
}

func transparent(value string) bool {
	args, ok := strings.CutPrefix(value, "rgba(")
	if !ok {
		return false
	}
	args, ok = strings.CutSuffix(args, ")")
	if !ok {
		return false
	}
	parts := strings.Split(args, ",")
	if len(parts) != 4 {
		return false
	}
	alpha, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
	return err == nil && alpha == 0
}

// FilterStyle drops noise values and trims the rest.
func FilterStyle(css map[string]string) map[string]string {
	out := make(map[string]string, len(css))
	for prop, v := range css {
		if IsNoise(v) {
			continue
		}
		out[prop] = strings.TrimSpace(v)
	}
	return out
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
