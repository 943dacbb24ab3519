// Package registry holds the runtime variant table: which card variants
// exist, which surface their artifacts are filed under, how they are
// detected on a live page and which selectors to probe for each element.
package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Variant describes one card variant.
type Variant struct {
	Name    string `json:"name" yaml:"name"`
	Surface string `json:"surface" yaml:"surface"`
	// Markers are substrings matched against the card's variant and class
	// attributes.
	Markers []string `json:"markers,omitempty" yaml:"markers,omitempty"`
	// Requires lists elements whose joint presence identifies the variant
	// when no marker matched.
	Requires []string `json:"requires,omitempty" yaml:"requires,omitempty"`
	// Selectors are per-element candidates probed before the defaults.
	Selectors map[string][]string `json:"selectors,omitempty" yaml:"selectors,omitempty"`
}

// Table is the full registry content. Variant order is significant: it is
// the detection priority.
type Table struct {
	DefaultVariant string              `json:"defaultVariant,omitempty" yaml:"defaultVariant,omitempty"`
	Variants       []Variant           `json:"variants,omitempty" yaml:"variants,omitempty"`
	Selectors      map[string][]string `json:"selectors,omitempty" yaml:"selectors,omitempty"`
	Surfaces       map[string]string   `json:"surfaces,omitempty" yaml:"surfaces,omitempty"`
}

// Source loads a partial table that is merged over the builtin one.
type Source interface {
	Name() string
	Load(ctx context.Context) (*Table, error)
}

// Registry is safe for concurrent use. Reload swaps the whole table.
type Registry struct {
	mu      sync.RWMutex
	table   *Table
	sources []Source
	logger  *zap.Logger
}

// New creates a registry holding the builtin table. Call Reload to merge
// the configured sources.
func New(logger *zap.Logger, sources ...Source) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		table:   Builtin(),
		sources: sources,
		logger:  logger,
	}
}

// Reload rebuilds the table from the builtin defaults plus every source, in
// order. On error the previous table is kept.
func (r *Registry) Reload(ctx context.Context) error {
	table := Builtin()
	for _, src := range r.sources {
		partial, err := src.Load(ctx)
		if err != nil {
			return fmt.Errorf("loading registry source %s: %w", src.Name(), err)
		}
		if partial == nil {
			continue
		}
		table.merge(partial)
		r.logger.Debug("merged registry source",
			zap.String("source", src.Name()),
			zap.Int("variants", len(partial.Variants)))
	}

	r.mu.Lock()
	r.table = table
	r.mu.Unlock()

	r.logger.Info("variant registry reloaded",
		zap.Int("variants", len(table.Variants)),
		zap.String("default_variant", table.DefaultVariant))
	return nil
}

func (t *Table) merge(other *Table) {
	if other.DefaultVariant != "" {
		t.DefaultVariant = other.DefaultVariant
	}
	for _, v := range other.Variants {
		replaced := false
		for i := range t.Variants {
			if t.Variants[i].Name == v.Name {
				t.Variants[i] = v
				replaced = true
				break
			}
		}
		if !replaced {
			t.Variants = append(t.Variants, v)
		}
	}
	if t.Selectors == nil {
		t.Selectors = make(map[string][]string)
	}
	for el, sels := range other.Selectors {
		t.Selectors[el] = append([]string(nil), sels...)
	}
	if t.Surfaces == nil {
		t.Surfaces = make(map[string]string)
	}
	for prefix, surface := range other.Surfaces {
		t.Surfaces[prefix] = surface
	}
}

func (r *Registry) snapshot() *Table {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.table
}

// Lookup returns the variant with the given name
func (r *Registry) Lookup(name string) (Variant, bool) {
	for _, v := range r.snapshot().Variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

// Variants returns variant names in detection order
func (r *Registry) Variants() []string {
	t := r.snapshot()
	names := make([]string, 0, len(t.Variants))
	for _, v := range t.Variants {
		names = append(names, v.Name)
	}
	return names
}

// DefaultVariant is used when no detection rule fires.
func (r *Registry) DefaultVariant() string {
	return r.snapshot().DefaultVariant
}

// Surface returns the artifact grouping bucket for a card type. Registered
// variants carry their own surface; unknown types fall back to the prefix
// table and finally to DefaultSurface.
func (r *Registry) Surface(cardType string) string {
	if v, ok := r.Lookup(cardType); ok && v.Surface != "" {
		return v.Surface
	}
	t := r.snapshot()
	best := ""
	for prefix := range t.Surfaces {
		if strings.HasPrefix(cardType, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best != "" {
		return t.Surfaces[best]
	}
	return DefaultSurface
}

// Candidates returns the ranked selector list for element, with the
// variant's overrides ahead of the defaults and duplicates removed.
func (r *Registry) Candidates(variant, element string) []string {
	t := r.snapshot()
	var ranked []string
	if v, ok := r.Lookup(variant); ok {
		ranked = append(ranked, v.Selectors[element]...)
	}
	ranked = append(ranked, t.Selectors[element]...)

	seen := make(map[string]bool, len(ranked))
	out := ranked[:0]
	for _, s := range ranked {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// Elements returns the element names that have default candidates, in
// canonical order.
func (r *Registry) Elements(order []string) []string {
	t := r.snapshot()
	var out []string
	for _, name := range order {
		if len(t.Selectors[name]) > 0 {
			out = append(out, name)
		}
	}
	return out
}

// DetectByMarker returns the first variant, in registry order, whose marker
// is a substring of the card's variant or class attribute.
func (r *Registry) DetectByMarker(variantAttr, classAttr string) (string, bool) {
	variantAttr = strings.ToLower(variantAttr)
	classAttr = strings.ToLower(classAttr)
	for _, v := range r.snapshot().Variants {
		for _, m := range v.Markers {
			m = strings.ToLower(m)
			if m == "" {
				continue
			}
			if strings.Contains(variantAttr, m) || strings.Contains(classAttr, m) {
				return v.Name, true
			}
		}
	}
	return "", false
}

// DetectByStructure returns the first variant, in registry order, whose
// required elements are all present.
func (r *Registry) DetectByStructure(present map[string]bool) (string, bool) {
	for _, v := range r.snapshot().Variants {
		if len(v.Requires) == 0 {
			continue
		}
		all := true
		for _, el := range v.Requires {
			if !present[el] {
				all = false
				break
			}
		}
		if all {
			return v.Name, true
		}
	}
	return "", false
}

// Detect runs the full cascade: markers, then structure, then the default.
// It returns the variant and which rule decided it.
func (r *Registry) Detect(variantAttr, classAttr string, present map[string]bool) (string, string) {
	if v, ok := r.DetectByMarker(variantAttr, classAttr); ok {
		return v, "marker"
	}
	if v, ok := r.DetectByStructure(present); ok {
		return v, "structure"
	}
	return r.DefaultVariant(), "default"
}

// Snapshot returns a copy of the current table for script generation.
func (r *Registry) Snapshot() Table {
	t := r.snapshot()
	cp := Table{
		DefaultVariant: t.DefaultVariant,
		Variants:       append([]Variant(nil), t.Variants...),
		Selectors:      make(map[string][]string, len(t.Selectors)),
		Surfaces:       make(map[string]string, len(t.Surfaces)),
	}
	for k, v := range t.Selectors {
		cp.Selectors[k] = append([]string(nil), v...)
	}
	for k, v := range t.Surfaces {
		cp.Surfaces[k] = v
	}
	return cp
}
