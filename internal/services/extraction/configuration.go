package extraction

import (
	"fmt"

	"github.com/testforge/cardforge/internal/domain"
)

// textElements carry visible text worth asserting.
var textElements = map[string]bool{
	domain.ElementTitle:              true,
	domain.ElementEyebrow:            true,
	domain.ElementDescription:        true,
	domain.ElementPrice:              true,
	domain.ElementStrikethroughPrice: true,
	domain.ElementCTA:                true,
	domain.ElementLegalLink:          true,
	domain.ElementBadge:              true,
	domain.ElementSubtitle:           true,
	domain.ElementPromoText:          true,
	domain.ElementCallout:            true,
	domain.ElementSecureLabel:        true,
	domain.ElementCheckboxLabel:      true,
}

// BuildConfiguration turns an extraction result into a card configuration.
// The used selector becomes the selector and the candidates ranked after it
// become fallbacks.
func BuildConfiguration(result *domain.ExtractionResult, cardID string, testTypes []domain.TestType) (*domain.CardConfiguration, error) {
	if result == nil {
		return nil, domain.ErrInvalidInput("result", "extraction result is required")
	}
	if cardID == "" {
		cardID = result.CardID
	}
	if len(result.Elements) == 0 {
		return nil, domain.ErrExtractionFailed(fmt.Sprintf("no element of card %s resolved", cardID), nil)
	}

	cfg := &domain.CardConfiguration{
		CardType:      result.CardType,
		CardID:        cardID,
		TestSuite:     fmt.Sprintf("%s card", result.CardType),
		Elements:      make(map[string]domain.ElementSpec, len(result.Elements)),
		CSSProperties: make(map[string]map[string]string),
		TestTypes:     append([]domain.TestType(nil), testTypes...),
	}

	if len(result.Card) > 0 {
		cfg.CSSProperties[domain.CardScope] = copyMap(result.Card)
	}

	for _, name := range result.ElementNames() {
		el := result.Elements[name]
		spec := domain.ElementSpec{
			Selector:          el.Selector,
			FallbackSelectors: after(el.Candidates, el.Selector),
			Confidence:        el.Confidence,
		}
		if textElements[name] && el.TextContent != "" {
			spec.ExpectedText = el.TextContent
		}
		cfg.Elements[name] = spec
		if len(el.CSS) > 0 {
			cfg.CSSProperties[name] = copyMap(el.CSS)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// after returns the candidates ranked below used.
func after(candidates []string, used string) []string {
	for i, c := range candidates {
		if c == used {
			if i+1 == len(candidates) {
				return nil
			}
			return append([]string(nil), candidates[i+1:]...)
		}
	}
	return nil
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
