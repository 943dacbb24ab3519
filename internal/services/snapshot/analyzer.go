// Package snapshot derives an extraction result from captured element data
// and an optional accessibility tree, without a browser.
package snapshot

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/testforge/cardforge/internal/domain"
	"github.com/testforge/cardforge/internal/registry"
	"github.com/testforge/cardforge/internal/services/extraction"
)

// Confidence scoring
const (
	BaseConfidence      = 50
	IDBonus             = 20
	TestIDBonus         = 15
	AriaLabelBonus      = 10
	RoleBonus           = 5
	MultiStrategyBonus  = 10
	MultiStrategyMin    = 4
	MaxConfidence       = 100
	maxTextSelectorSize = 80
)

// Element is captured data for one logical element
type Element struct {
	// Selector, when set, is kept as the first candidate.
	Selector   string            `json:"selector,omitempty"`
	TagName    string            `json:"tagName,omitempty"`
	ID         string            `json:"id,omitempty"`
	Classes    []string          `json:"classes,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Slot       string            `json:"slot,omitempty"`
	Role       string            `json:"role,omitempty"`
	AriaLabel  string            `json:"ariaLabel,omitempty"`
	TestID     string            `json:"testId,omitempty"`
	Text       string            `json:"text,omitempty"`
	CSS        map[string]string `json:"css,omitempty"`
}

// AXNode is one node of an accessibility snapshot
type AXNode struct {
	Role     string   `json:"role"`
	Name     string   `json:"name,omitempty"`
	Children []AXNode `json:"children,omitempty"`
}

// Input is everything the analyzer works from
type Input struct {
	CardType string `json:"cardType,omitempty"`
	CardID   string `json:"cardId"`
	// CardAttributes are the card root's attributes, used for variant
	// detection when CardType is empty.
	CardAttributes map[string]string  `json:"cardAttributes,omitempty"`
	Card           map[string]string  `json:"card,omitempty"`
	Elements       map[string]Element `json:"elements"`
	Accessibility  *AXNode            `json:"accessibility,omitempty"`
}

// Analyzer builds extraction results from snapshots
type Analyzer struct {
	registry *registry.Registry
	logger   *zap.Logger
}

// NewAnalyzer creates a new analyzer
func NewAnalyzer(reg *registry.Registry, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = registry.New(logger)
	}
	return &Analyzer{registry: reg, logger: logger}
}

// Analyze turns captured data into an extraction result. Confidence values
// are advisory.
func (a *Analyzer) Analyze(in Input) (*domain.ExtractionResult, error) {
	if err := domain.ValidateCardID(in.CardID, false); err != nil {
		return nil, err
	}
	if len(in.Elements) == 0 {
		return nil, domain.ErrInvalidInput("elements", "at least one element is required")
	}

	result := &domain.ExtractionResult{
		CardID:   in.CardID,
		Card:     extraction.FilterStyle(in.Card),
		Elements: make(map[string]domain.ExtractedElement, len(in.Elements)),
	}

	roles := make(map[string]string)
	if in.Accessibility != nil {
		collectRoles(*in.Accessibility, roles)
	}

	slots := make(map[string]bool)
	present := make(map[string]bool)
	for name, el := range in.Elements {
		if el.Role == "" {
			if role, ok := roles[axKey(el.AriaLabel)]; ok && el.AriaLabel != "" {
				el.Role = role
			} else if role, ok := roles[axKey(el.Text)]; ok && el.Text != "" {
				el.Role = role
			}
		}

		extracted, err := analyzeElement(el)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		result.Elements[name] = extracted
		present[name] = true
		if el.Slot != "" {
			slots[el.Slot] = true
		}
	}
	if len(result.Elements) == 0 {
		return nil, domain.ErrExtractionFailed("no element in the snapshot yields a selector", nil)
	}

	result.Slots = make([]string, 0, len(slots))
	for s := range slots {
		result.Slots = append(result.Slots, s)
	}
	sort.Strings(result.Slots)
	sort.Strings(result.Warnings)

	if in.CardType != "" {
		if err := domain.ValidateCardType(in.CardType); err != nil {
			return nil, err
		}
		result.CardType = in.CardType
	} else {
		variant, rule := a.registry.Detect(in.CardAttributes["variant"], in.CardAttributes["class"], present)
		result.CardType = variant
		a.logger.Debug("variant detected from snapshot", zap.String("variant", variant), zap.String("rule", rule))
	}

	a.logger.Info("snapshot analyzed",
		zap.String("card_type", result.CardType),
		zap.Int("elements", len(result.Elements)))
	return result, nil
}

type strategy struct {
	selector      string
	accessibility bool
}

// strategies returns every selector the element data supports, most
// stable first.
func strategies(el Element) []strategy {
	var out []strategy
	if el.ID != "" {
		out = append(out, strategy{selector: "#" + cssIdent(el.ID)})
	}
	if el.TestID != "" {
		out = append(out, strategy{selector: fmt.Sprintf(`[data-testid="%s"]`, cssString(el.TestID))})
	}
	if el.Slot != "" {
		out = append(out, strategy{selector: fmt.Sprintf(`%s[slot="%s"]`, el.TagName, cssString(el.Slot))})
	}
	if len(el.Classes) > 0 {
		classes := make([]string, 0, len(el.Classes))
		for _, c := range el.Classes {
			if c = strings.TrimSpace(c); c != "" {
				classes = append(classes, "."+cssIdent(c))
			}
		}
		if len(classes) > 0 {
			out = append(out, strategy{selector: el.TagName + strings.Join(classes, "")})
		}
	}
	if el.AriaLabel != "" {
		out = append(out, strategy{selector: fmt.Sprintf(`[aria-label="%s"]`, cssString(el.AriaLabel)), accessibility: true})
	}
	if el.Role != "" {
		name := el.AriaLabel
		if name == "" {
			name = el.Text
		}
		sel := "role=" + el.Role
		if name != "" && len(name) <= maxTextSelectorSize {
			sel += fmt.Sprintf(`[name="%s"]`, cssString(name))
		}
		out = append(out, strategy{selector: sel, accessibility: true})
	}
	if text := strings.TrimSpace(el.Text); text != "" && len(text) <= maxTextSelectorSize {
		out = append(out, strategy{selector: fmt.Sprintf(`text="%s"`, cssString(text)), accessibility: true})
	}
	return out
}

func analyzeElement(el Element) (domain.ExtractedElement, error) {
	strats := strategies(el)

	var candidates, ax []string
	seen := make(map[string]bool)
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			candidates = append(candidates, s)
		}
	}
	add(el.Selector)
	for _, s := range strats {
		add(s.selector)
		if s.accessibility {
			ax = append(ax, s.selector)
		}
	}
	if len(candidates) == 0 {
		return domain.ExtractedElement{}, fmt.Errorf("no selector strategy applies")
	}

	return domain.ExtractedElement{
		Selector:               candidates[0],
		Candidates:             candidates,
		CSS:                    extraction.FilterStyle(el.CSS),
		Slot:                   el.Slot,
		TagName:                el.TagName,
		TextContent:            strings.TrimSpace(el.Text),
		AccessibilitySelectors: ax,
		Confidence:             Confidence(el, len(strats)),
	}, nil
}

// Confidence scores how likely the element's selectors survive page
// changes. Every signal only adds, so more data never lowers the score.
func Confidence(el Element, strategyCount int) int {
	score := BaseConfidence
	if el.ID != "" {
		score += IDBonus
	}
	if el.TestID != "" {
		score += TestIDBonus
	}
	if el.AriaLabel != "" {
		score += AriaLabelBonus
	}
	if el.Role != "" {
		score += RoleBonus
	}
	if strategyCount >= MultiStrategyMin {
		score += MultiStrategyBonus
	}
	if score > MaxConfidence {
		score = MaxConfidence
	}
	return score
}

func collectRoles(n AXNode, out map[string]string) {
	if n.Name != "" && n.Role != "" {
		if _, ok := out[axKey(n.Name)]; !ok {
			out[axKey(n.Name)] = n.Role
		}
	}
	for _, c := range n.Children {
		collectRoles(c, out)
	}
}

func axKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func cssString(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// cssIdent escapes characters that would end an id or class selector.
func cssIdent(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '-', r == '_', r > 0x7f:
			b.WriteRune(r)
		case r >= '0' && r <= '9' && i > 0:
			b.WriteRune(r)
		default:
			fmt.Fprintf(&b, `\%x `, r)
		}
	}
	return b.String()
}
