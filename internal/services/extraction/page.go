package extraction

import (
	"context"
	"sync"
	"time"
)

// Page is the part of a browser page the extractor drives. Selectors may
// chain scopes with " >> ", the way Playwright locators do.
type Page interface {
	Goto(ctx context.Context, url string, timeout time.Duration) error
	URL() string
	Count(ctx context.Context, selector string) (int, error)
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// OuterHTML returns the outer HTML of every match.
	OuterHTML(ctx context.Context, selector string) ([]string, error)
	// Inspect reads the first match: tag, text, attributes and the
	// computed value of each requested CSS property.
	Inspect(ctx context.Context, selector string, properties []string) (*ElementSnapshot, error)
}

// ElementSnapshot is what Inspect reads from one element
type ElementSnapshot struct {
	TagName    string            `json:"tagName"`
	Text       string            `json:"text"`
	Slot       string            `json:"slot"`
	Attributes map[string]string `json:"attributes"`
	CSS        map[string]string `json:"css"`
}

// Session owns one browser page. Close releases the browser and is safe to
// call more than once.
type Session struct {
	Page Page

	once     sync.Once
	closeFn  func() error
	closeErr error
}

// NewSession wraps a page and the function that releases it
func NewSession(page Page, closeFn func() error) *Session {
	return &Session{Page: page, closeFn: closeFn}
}

// Close releases the session
func (s *Session) Close() error {
	s.once.Do(func() {
		if s.closeFn != nil {
			s.closeErr = s.closeFn()
		}
	})
	return s.closeErr
}

// Launcher opens browser sessions
type Launcher interface {
	Launch(ctx context.Context) (*Session, error)
}

// LauncherFunc adapts a function to Launcher
type LauncherFunc func(ctx context.Context) (*Session, error)

// Launch calls f
func (f LauncherFunc) Launch(ctx context.Context) (*Session, error) {
	return f(ctx)
}
