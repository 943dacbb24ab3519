// Package extraction resolves a card's variant, selectors and computed
// styles from a running page.
package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/testforge/cardforge/internal/config"
	"github.com/testforge/cardforge/internal/domain"
	"github.com/testforge/cardforge/internal/registry"
)

// CardTag is the custom element every card renders as.
const CardTag = "merch-card"

const defaultPollInterval = 500 * time.Millisecond

// Request identifies the card to extract
type Request struct {
	CardID string `json:"cardId"`
	Target Target `json:"target"`
}

// Extractor locates a card on a live page and reads its testable surface
type Extractor struct {
	launcher     Launcher
	registry     *registry.Registry
	browser      config.BrowserConfig
	target       config.TargetConfig
	logger       *zap.Logger
	pollInterval time.Duration
}

// NewExtractor creates a new extractor
func NewExtractor(launcher Launcher, reg *registry.Registry, browser config.BrowserConfig, target config.TargetConfig, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = registry.New(logger)
	}
	return &Extractor{
		launcher:     launcher,
		registry:     reg,
		browser:      browser,
		target:       target,
		logger:       logger,
		pollInterval: defaultPollInterval,
	}
}

// URL returns the page the extractor would open for req
func (e *Extractor) URL(req Request) (string, error) {
	if err := domain.ValidateCardID(req.CardID, true); err != nil {
		return "", err
	}
	return BuildURL(req.Target.Resolve(e.target), req.CardID)
}

// Extract opens a browser session, locates the card and probes its
// elements. The session is closed on every return path.
func (e *Extractor) Extract(ctx context.Context, req Request) (*domain.ExtractionResult, error) {
	url, err := e.URL(req)
	if err != nil {
		return nil, err
	}

	logger := e.logger.With(zap.String("card_id", req.CardID), zap.String("url", url))
	logger.Info("starting live extraction")

	session, err := e.launcher.Launch(ctx)
	if err != nil {
		return nil, domain.ErrExtractionFailed("could not start browser", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("closing browser session", zap.Error(err))
		}
	}()
	page := session.Page

	result := &domain.ExtractionResult{
		CardID:   req.CardID,
		Card:     map[string]string{},
		Elements: map[string]domain.ExtractedElement{},
		URL:      url,
	}

	if err := page.Goto(ctx, url, e.browser.PageLoadTimeout); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.ErrTimeout("page load").WithCause(err).WithDetails(url)
	}

	authPending := false
	if e.isAuthURL(page.URL()) {
		logger.Warn("authentication redirect detected, waiting for return",
			zap.String("current_url", page.URL()),
			zap.Duration("timeout", e.browser.AuthTimeout))
		if !e.waitForReturn(ctx, page, url) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			authPending = true
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("authentication redirect not completed within %s", e.browser.AuthTimeout))
		}
	}

	if err := page.WaitVisible(ctx, CardTag, e.browser.VisibilityTimeout); err != nil {
		logger.Debug("no card became visible", zap.Error(err))
	}

	card, strategy, err := e.locateCard(ctx, page, req.CardID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if authPending {
			return nil, domain.ErrAuthRequired(page.URL())
		}
		return nil, err
	}
	logger.Debug("card located", zap.String("strategy", strategy), zap.String("selector", card))

	root, err := page.Inspect(ctx, card, CardProperties)
	if err != nil {
		return nil, domain.ErrExtractionFailed("could not read card root", err)
	}
	result.Card = FilterStyle(root.CSS)

	variant, rule, err := e.detectVariant(ctx, page, card, root)
	if err != nil {
		return nil, err
	}
	result.CardType = variant
	logger.Info("variant detected", zap.String("variant", variant), zap.String("rule", rule))

	slots := make(map[string]bool)
	for _, name := range e.registry.Elements(domain.KnownElements) {
		el, ok, err := e.probe(ctx, page, card, variant, name)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Debug("probe failed", zap.String("element", name), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		result.Elements[name] = el
		if el.Slot != "" {
			slots[el.Slot] = true
		}
	}
	result.Slots = sortedSet(slots)

	if len(result.Elements) == 0 {
		result.Warnings = append(result.Warnings, "no element resolved with meaningful styles")
	}

	logger.Info("live extraction completed",
		zap.String("card_type", result.CardType),
		zap.Int("elements", len(result.Elements)),
		zap.Int("warnings", len(result.Warnings)))
	return result, nil
}

// locateCard tries the id attribute, then the fragment reference, then a
// scan of every card's outer HTML.
func (e *Extractor) locateCard(ctx context.Context, page Page, cardID string) (string, string, error) {
	strategies := []struct {
		name     string
		selector string
	}{
		{"id", fmt.Sprintf(`%s[id="%s"]`, CardTag, cardID)},
		{"fragment", fmt.Sprintf(`%s:has(aem-fragment[fragment*="%s"])`, CardTag, cardID)},
	}
	for _, s := range strategies {
		n, err := page.Count(ctx, s.selector)
		if err != nil {
			return "", "", domain.ErrExtractionFailed("querying cards", err)
		}
		if n > 0 {
			return s.selector, s.name, nil
		}
	}

	cards, err := page.OuterHTML(ctx, CardTag)
	if err != nil {
		return "", "", domain.ErrExtractionFailed("scanning cards", err)
	}
	for i, html := range cards {
		if strings.Contains(html, cardID) {
			return fmt.Sprintf("%s >> nth=%d", CardTag, i), "scan", nil
		}
	}
	return "", "", domain.ErrCardNotFound(cardID)
}

// detectVariant runs the registry cascade. Structural rules need to know
// which elements are present, so they are probed with the default
// candidates only when no marker matched.
func (e *Extractor) detectVariant(ctx context.Context, page Page, card string, root *ElementSnapshot) (string, string, error) {
	if v, ok := e.registry.DetectByMarker(root.Attributes["variant"], root.Attributes["class"]); ok {
		return v, "marker", nil
	}

	present := make(map[string]bool)
	for _, name := range e.registry.Elements(domain.KnownElements) {
		for _, sel := range e.registry.Candidates("", name) {
			n, err := page.Count(ctx, scoped(card, sel))
			if err != nil {
				if ctx.Err() != nil {
					return "", "", ctx.Err()
				}
				continue
			}
			if n > 0 {
				present[name] = true
				break
			}
		}
	}
	if v, ok := e.registry.DetectByStructure(present); ok {
		return v, "structure", nil
	}
	return e.registry.DefaultVariant(), "default", nil
}

// probe resolves one element: the first candidate with a match wins, and
// the element survives only with at least one meaningful style.
func (e *Extractor) probe(ctx context.Context, page Page, card, variant, name string) (domain.ExtractedElement, bool, error) {
	candidates := e.registry.Candidates(variant, name)
	for _, sel := range candidates {
		n, err := page.Count(ctx, scoped(card, sel))
		if err != nil {
			return domain.ExtractedElement{}, false, err
		}
		if n == 0 {
			continue
		}

		snap, err := page.Inspect(ctx, scoped(card, sel), ElementProperties)
		if err != nil {
			return domain.ExtractedElement{}, false, err
		}
		css := FilterStyle(snap.CSS)
		if len(css) == 0 {
			e.logger.Debug("element has only noise styles", zap.String("element", name), zap.String("selector", sel))
			return domain.ExtractedElement{}, false, nil
		}
		return domain.ExtractedElement{
			Selector:    sel,
			Candidates:  candidates,
			CSS:         css,
			Slot:        snap.Slot,
			TagName:     snap.TagName,
			TextContent: snap.Text,
		}, true, nil
	}
	return domain.ExtractedElement{}, false, nil
}

func (e *Extractor) isAuthURL(u string) bool {
	for _, p := range e.browser.AuthPatterns {
		if p != "" && strings.Contains(u, p) {
			return true
		}
	}
	return false
}

// waitForReturn polls the page URL until it leaves the login flow and is
// back on the expected host, or the auth timeout passes.
func (e *Extractor) waitForReturn(ctx context.Context, page Page, expected string) bool {
	host := hostOf(expected)
	deadline := time.NewTimer(e.browser.AuthTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		current := page.URL()
		if !e.isAuthURL(current) && strings.HasPrefix(current, host) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-ticker.C:
		}
	}
}

func hostOf(u string) string {
	scheme := strings.Index(u, "://")
	if scheme < 0 {
		return u
	}
	if slash := strings.Index(u[scheme+3:], "/"); slash >= 0 {
		return u[:scheme+3+slash]
	}
	return u
}

func scoped(card, selector string) string {
	return card + " >> " + selector
}
