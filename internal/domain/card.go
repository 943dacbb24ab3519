package domain

import (
	"fmt"
	"sort"
	"strings"
)

// TestType selects which test implementation gets generated for a card.
type TestType string

const (
	TestTypeCSS         TestType = "css"
	TestTypeFunctional  TestType = "functional"
	TestTypeEdit        TestType = "edit"
	TestTypeSave        TestType = "save"
	TestTypeDiscard     TestType = "discard"
	TestTypeInteraction TestType = "interaction"
)

// AllTestTypes lists the supported test types in canonical order.
var AllTestTypes = []TestType{
	TestTypeCSS,
	TestTypeFunctional,
	TestTypeEdit,
	TestTypeSave,
	TestTypeDiscard,
	TestTypeInteraction,
}

// Valid returns true if the test type is known
func (t TestType) Valid() bool {
	for _, known := range AllTestTypes {
		if t == known {
			return true
		}
	}
	return false
}

// InteractionType is the kind of user action a test performs on an element.
type InteractionType string

const (
	InteractionClick  InteractionType = "click"
	InteractionHover  InteractionType = "hover"
	InteractionInput  InteractionType = "type"
	InteractionSelect InteractionType = "select"
	InteractionEdit   InteractionType = "edit"
)

// Valid returns true if the interaction type is known
func (t InteractionType) Valid() bool {
	switch t {
	case InteractionClick, InteractionHover, InteractionInput, InteractionSelect, InteractionEdit:
		return true
	}
	return false
}

// Logical element names a card may expose. Custom names are accepted as long
// as they are valid JS identifiers.
const (
	ElementTitle              = "title"
	ElementEyebrow            = "eyebrow"
	ElementDescription        = "description"
	ElementPrice              = "price"
	ElementStrikethroughPrice = "strikethroughPrice"
	ElementCTA                = "cta"
	ElementIcon               = "icon"
	ElementLegalLink          = "legalLink"
	ElementBackgroundImage    = "backgroundImage"
	ElementBadge              = "badge"
	ElementSubtitle           = "subtitle"
	ElementPromoText          = "promoText"
	ElementCallout            = "callout"
	ElementQuantitySelect     = "quantitySelect"
	ElementSecureLabel        = "secureLabel"
	ElementCheckboxLabel      = "checkboxLabel"
)

// KnownElements is the canonical probe and emission order.
var KnownElements = []string{
	ElementTitle,
	ElementEyebrow,
	ElementDescription,
	ElementPrice,
	ElementStrikethroughPrice,
	ElementCTA,
	ElementIcon,
	ElementLegalLink,
	ElementBackgroundImage,
	ElementBadge,
	ElementSubtitle,
	ElementPromoText,
	ElementCallout,
	ElementQuantitySelect,
	ElementSecureLabel,
	ElementCheckboxLabel,
}

// CardScope is the cssProperties key for styles of the card root.
const CardScope = "card"

// CardConfiguration describes the testable surface of one card.
type CardConfiguration struct {
	CardType      string                       `json:"cardType" yaml:"cardType"`
	CardID        string                       `json:"cardId" yaml:"cardId"`
	TestSuite     string                       `json:"testSuite,omitempty" yaml:"testSuite,omitempty"`
	Elements      map[string]ElementSpec       `json:"elements" yaml:"elements"`
	CSSProperties map[string]map[string]string `json:"cssProperties,omitempty" yaml:"cssProperties,omitempty"`
	TestTypes     []TestType                   `json:"testTypes" yaml:"testTypes"`
	Metadata      Metadata                     `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Metadata parameterizes generated navigation code only.
type Metadata struct {
	Tags          []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Path          string   `json:"path,omitempty" yaml:"path,omitempty"`
	BrowserParams string   `json:"browserParams,omitempty" yaml:"browserParams,omitempty"`
}

// ElementSpec is one testable element of a card.
type ElementSpec struct {
	Selector             string            `json:"selector" yaml:"selector"`
	FallbackSelectors    []string          `json:"fallbackSelectors,omitempty" yaml:"fallbackSelectors,omitempty"`
	AlternativeSelectors []string          `json:"alternativeSelectors,omitempty" yaml:"alternativeSelectors,omitempty"`
	ExpectedText         string            `json:"expectedText,omitempty" yaml:"expectedText,omitempty"`
	ExpectedValue        string            `json:"expectedValue,omitempty" yaml:"expectedValue,omitempty"`
	ExpectedAttribute    *AttributeSpec    `json:"expectedAttribute,omitempty" yaml:"expectedAttribute,omitempty"`
	CSSProperties        map[string]string `json:"cssProperties,omitempty" yaml:"cssProperties,omitempty"`
	Interactions         []InteractionSpec `json:"interactions,omitempty" yaml:"interactions,omitempty"`
	Confidence           int               `json:"confidence,omitempty" yaml:"confidence,omitempty"`
}

// AttributeSpec is an expected attribute name/value pair.
type AttributeSpec struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// InteractionSpec is one user action on an element.
type InteractionSpec struct {
	Type           InteractionType `json:"type" yaml:"type"`
	Value          string          `json:"value,omitempty" yaml:"value,omitempty"`
	WaitFor        string          `json:"waitFor,omitempty" yaml:"waitFor,omitempty"`
	ExpectedResult string          `json:"expectedResult,omitempty" yaml:"expectedResult,omitempty"`
}

// Candidates returns the selector followed by every fallback and alternative,
// highest priority first, without duplicates.
func (e ElementSpec) Candidates() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range append(append([]string{e.Selector}, e.FallbackSelectors...), e.AlternativeSelectors...) {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// ElementNames returns configured element names, known names first in
// canonical order and custom names sorted after them.
func (c *CardConfiguration) ElementNames() []string {
	names := make([]string, 0, len(c.Elements))
	known := make(map[string]bool, len(KnownElements))
	for _, name := range KnownElements {
		known[name] = true
		if _, ok := c.Elements[name]; ok {
			names = append(names, name)
		}
	}
	var custom []string
	for name := range c.Elements {
		if !known[name] {
			custom = append(custom, name)
		}
	}
	sort.Strings(custom)
	return append(names, custom...)
}

// HasTestType reports whether tt is in the configured test types.
func (c *CardConfiguration) HasTestType(tt TestType) bool {
	for _, t := range c.TestTypes {
		if t == tt {
			return true
		}
	}
	return false
}

// ElementCSS returns the merged CSS expectations for one element: the
// element's own cssProperties overlaid by cssProperties[name].
func (c *CardConfiguration) ElementCSS(name string) map[string]string {
	out := make(map[string]string)
	if el, ok := c.Elements[name]; ok {
		for k, v := range el.CSSProperties {
			out[k] = v
		}
	}
	for k, v := range c.CSSProperties[name] {
		out[k] = v
	}
	return out
}

// Validate checks the configuration before any generation starts.
func (c *CardConfiguration) Validate() error {
	var problems []string

	if err := ValidateCardType(c.CardType); err != nil {
		problems = append(problems, err.Error())
	}
	if err := ValidateCardID(c.CardID, false); err != nil {
		problems = append(problems, err.Error())
	}
	if len(c.TestTypes) == 0 {
		problems = append(problems, "testTypes must not be empty")
	}
	seen := make(map[TestType]bool)
	for _, tt := range c.TestTypes {
		if !tt.Valid() {
			problems = append(problems, fmt.Sprintf("unknown test type %q", tt))
		}
		if seen[tt] {
			problems = append(problems, fmt.Sprintf("duplicate test type %q", tt))
		}
		seen[tt] = true
	}
	if len(c.Elements) == 0 {
		problems = append(problems, "at least one element is required")
	}
	for _, name := range c.ElementNames() {
		el := c.Elements[name]
		if !identifierPattern.MatchString(name) {
			problems = append(problems, fmt.Sprintf("element name %q is not a valid identifier", name))
		}
		if strings.TrimSpace(el.Selector) == "" {
			problems = append(problems, fmt.Sprintf("element %q has no selector", name))
		}
		for i, in := range el.Interactions {
			if !in.Type.Valid() {
				problems = append(problems, fmt.Sprintf("element %q interaction %d has unknown type %q", name, i, in.Type))
			}
		}
	}
	for scope := range c.CSSProperties {
		if scope == CardScope {
			continue
		}
		if _, ok := c.Elements[scope]; !ok {
			problems = append(problems, fmt.Sprintf("cssProperties scope %q names no configured element", scope))
		}
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return ErrInvalidInput("configuration", strings.Join(problems, "; "))
	}
	return nil
}
