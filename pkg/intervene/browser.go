package intervene

import (
	"context"
	"fmt"

	"github.com/entrhq/kidguard/pkg/browser"
	"github.com/entrhq/kidguard/pkg/types"
	"github.com/playwright-community/playwright-go"
)

const (
	skipScript = `() => {
  const next = document.querySelector('.ytp-next-button');
  if (!next) return false;
  next.click();
  return true;
}`
	pauseScript = `() => {
  const video = document.querySelector('video');
  if (!video) return false;
  video.pause();
  return true;
}`
)

// DefaultNavigationTimeout bounds a redirect, in milliseconds.
const DefaultNavigationTimeout = 10000

// BrowserExecutor acts on the monitored tab.
type BrowserExecutor struct {
	pages browser.PageSource
}

// NewBrowserExecutor creates an executor over the given page source.
func NewBrowserExecutor(pages browser.PageSource) *BrowserExecutor {
	return &BrowserExecutor{pages: pages}
}

func (b *BrowserExecutor) Execute(ctx context.Context, in types.Intervention) error {
	if !in.Kind.IsActive() {
		return nil
	}

	page, err := b.pages.ActivePage(ctx)
	if err != nil {
		return fmt.Errorf("failed to find watch page: %w", err)
	}

	switch in.Kind {
	case types.InterventionSkip:
		return evaluate(page, skipScript, "next button")
	case types.InterventionPause:
		return evaluate(page, pauseScript, "video element")
	case types.InterventionRedirect:
		url, err := redirectURL(in)
		if err != nil {
			return err
		}
		if _, err := page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
			Timeout:   playwright.Float(DefaultNavigationTimeout),
		}); err != nil {
			return fmt.Errorf("failed to navigate to %s: %w", url, err)
		}
		return nil
	default:
		return unknownKind(in.Kind)
	}
}

func evaluate(page browser.Page, script, target string) error {
	result, err := page.Evaluate(script)
	if err != nil {
		return fmt.Errorf("script failed: %w", err)
	}
	if ok, isBool := result.(bool); isBool && !ok {
		return fmt.Errorf("page has no %s", target)
	}
	return nil
}
