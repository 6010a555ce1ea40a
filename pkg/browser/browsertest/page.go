// Package browsertest provides an in-memory browser page for tests.
package browsertest

import (
	"context"
	"sync"

	"github.com/entrhq/kidguard/pkg/browser"
	"github.com/playwright-community/playwright-go"
)

// Page records the calls made against it and returns canned results.
type Page struct {
	mu sync.Mutex

	PageURL       string
	HTML          string
	ContentErr    error
	Image         []byte
	ScreenshotErr error
	EvaluateErr   error
	GotoErr       error

	Evaluated   []string
	Navigated   []string
	Screenshots []playwright.PageScreenshotOptions
}

var _ browser.Page = (*Page)(nil)

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.PageURL
}

func (p *Page) Content() (string, error) {
	return p.HTML, p.ContentErr
}

func (p *Page) Screenshot(options ...playwright.PageScreenshotOptions) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Screenshots = append(p.Screenshots, options...)
	return p.Image, p.ScreenshotErr
}

func (p *Page) Evaluate(expression string, arg ...interface{}) (interface{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Evaluated = append(p.Evaluated, expression)
	if p.EvaluateErr != nil {
		return nil, p.EvaluateErr
	}
	return true, nil
}

func (p *Page) Goto(url string, options ...playwright.PageGotoOptions) (playwright.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Navigated = append(p.Navigated, url)
	if p.GotoErr == nil {
		p.PageURL = url
	}
	return nil, p.GotoErr
}

// Source is a browser.PageSource returning a fixed page or error.
type Source struct {
	Page *Page
	Err  error
}

func (s Source) ActivePage(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Page == nil {
		return nil, browser.ErrNoPage
	}
	return s.Page, nil
}
