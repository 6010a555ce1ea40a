package detect

import (
	"context"
	"fmt"

	"github.com/entrhq/kidguard/pkg/browser"
	"github.com/entrhq/kidguard/pkg/types"
	"github.com/gobwas/glob"
)

// DOMStrategy reads the watch page over the browser's debugging connection.
// It only reports activity when the identity is extracted from the page.
type DOMStrategy struct {
	pages   browser.PageSource
	pattern glob.Glob
}

// NewDOMStrategy creates the strategy. urlPattern is a glob the page URL
// must match; empty matches every URL.
func NewDOMStrategy(pages browser.PageSource, urlPattern string) (*DOMStrategy, error) {
	if pages == nil {
		return nil, fmt.Errorf("%w: no browser connection", ErrStrategyUnavailable)
	}
	if urlPattern == "" {
		urlPattern = "*"
	}
	g, err := glob.Compile(urlPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid watch URL pattern %q: %w", urlPattern, err)
	}
	return &DOMStrategy{pages: pages, pattern: g}, nil
}

func (s *DOMStrategy) Source() types.SignalSource { return types.SourceDOM }

func (s *DOMStrategy) Detect(ctx context.Context) (types.PresenceSignal, error) {
	page, err := s.pages.ActivePage(ctx)
	if err != nil {
		return types.Inactive(), err
	}

	url := page.URL()
	if !s.pattern.Match(url) {
		return types.Inactive(), nil
	}

	content, err := page.Content()
	if err != nil {
		return types.Inactive(), fmt.Errorf("failed to read page content: %w", err)
	}

	identity, err := browser.ExtractIdentity(url, content)
	if err != nil {
		return types.Inactive(), err
	}
	return types.PresenceSignal{Active: true, Identity: identity}, nil
}
