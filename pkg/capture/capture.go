// Package capture acquires a representative frame of the content being
// watched.
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/kidguard/pkg/browser"
	"github.com/entrhq/kidguard/pkg/types"
	"github.com/playwright-community/playwright-go"
)

// ErrUnavailable is returned by the capturer used when no capture method is
// configured or its facility is missing.
var ErrUnavailable = errors.New("capture unavailable")

// DefaultJPEGQuality is used for browser screenshots.
const DefaultJPEGQuality = 85

// Capturer acquires one frame.
type Capturer interface {
	Capture(ctx context.Context) (*types.Sample, error)
}

// Unavailable always fails with ErrUnavailable.
type Unavailable struct {
	Reason string
}

func (u Unavailable) Capture(context.Context) (*types.Sample, error) {
	if u.Reason == "" {
		return nil, ErrUnavailable
	}
	return nil, fmt.Errorf("%w: %s", ErrUnavailable, u.Reason)
}

// BrowserCapturer screenshots the watch page over the debugging connection.
type BrowserCapturer struct {
	pages   browser.PageSource
	store   *Store
	quality int
}

// NewBrowserCapturer creates a capturer. store may be nil to keep frames in
// memory only.
func NewBrowserCapturer(pages browser.PageSource, store *Store) *BrowserCapturer {
	return &BrowserCapturer{pages: pages, store: store, quality: DefaultJPEGQuality}
}

func (c *BrowserCapturer) Capture(ctx context.Context) (*types.Sample, error) {
	page, err := c.pages.ActivePage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find page: %w", err)
	}

	data, err := page.Screenshot(playwright.PageScreenshotOptions{
		Type:    playwright.ScreenshotTypeJpeg,
		Quality: playwright.Int(c.quality),
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("screenshot was empty")
	}

	return c.store.Keep(data, "image/jpeg", time.Now())
}
