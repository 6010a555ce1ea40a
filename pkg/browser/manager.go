package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/entrhq/kidguard/pkg/logging"
	"github.com/gobwas/glob"
	"github.com/playwright-community/playwright-go"
)

// ErrNoPage is returned when no open tab matches the watch pattern.
var ErrNoPage = errors.New("no matching browser page")

// DefaultConnectTimeout bounds a CDP connection attempt, in milliseconds.
const DefaultConnectTimeout = 2000

// Page is the subset of playwright.Page KidGuard uses.
type Page interface {
	URL() string
	Content() (string, error)
	Screenshot(options ...playwright.PageScreenshotOptions) ([]byte, error)
	Evaluate(expression string, arg ...interface{}) (interface{}, error)
	Goto(url string, options ...playwright.PageGotoOptions) (playwright.Response, error)
}

// PageSource finds the tab currently showing monitored content.
type PageSource interface {
	ActivePage(ctx context.Context) (Page, error)
}

// Connection manages the Playwright driver and the CDP connection to the
// user's browser.
type Connection struct {
	mu          sync.Mutex
	endpoint    string
	pattern     glob.Glob
	playwright  *playwright.Playwright
	browser     playwright.Browser
	initialized bool
	logger      *logging.Logger
}

// NewConnection creates a connection to the CDP endpoint. Pages are selected
// by matching their URL against urlPattern (a glob).
func NewConnection(endpoint, urlPattern string, logger *logging.Logger) (*Connection, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("CDP endpoint is required")
	}
	if urlPattern == "" {
		urlPattern = "*"
	}
	pattern, err := glob.Compile(urlPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid watch URL pattern %q: %w", urlPattern, err)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Connection{
		endpoint: endpoint,
		pattern:  pattern,
		logger:   logger,
	}, nil
}

// Initialize installs and starts the Playwright driver.
// This must be called before ActivePage.
func (c *Connection) Initialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return nil
	}

	// The driver only; the user's own browser is attached over CDP.
	opts := &playwright.RunOptions{
		Verbose:             false,
		SkipInstallBrowsers: true,
		Stdout:              io.Discard,
		Stderr:              io.Discard,
	}

	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	c.playwright = pw
	c.initialized = true
	return nil
}

// ActivePage returns the first open tab whose URL matches the watch
// pattern, connecting to the browser if needed.
func (c *Connection) ActivePage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnected(); err != nil {
		return nil, err
	}

	for _, bctx := range c.browser.Contexts() {
		for _, page := range bctx.Pages() {
			if c.pattern.Match(page.URL()) {
				return page, nil
			}
		}
	}
	return nil, ErrNoPage
}

// ensureConnected dials the CDP endpoint unless a live connection exists.
// Callers must hold c.mu.
func (c *Connection) ensureConnected() error {
	if !c.initialized {
		return fmt.Errorf("browser connection not initialized")
	}

	if c.browser != nil && c.browser.IsConnected() {
		return nil
	}

	browser, err := c.playwright.Chromium.ConnectOverCDP(c.endpoint, playwright.BrowserTypeConnectOverCDPOptions{
		Timeout: playwright.Float(DefaultConnectTimeout),
	})
	if err != nil {
		c.browser = nil
		return fmt.Errorf("failed to connect to %s: %w", c.endpoint, err)
	}

	c.logger.Infof("connected to browser at %s", c.endpoint)
	c.browser = browser
	return nil
}

// Shutdown detaches from the browser and stops Playwright. The user's
// browser keeps running.
func (c *Connection) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.browser != nil {
		// Closing a CDP-attached browser only drops the connection.
		_ = c.browser.Close()
		c.browser = nil
	}

	if c.initialized && c.playwright != nil {
		if err := c.playwright.Stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
		c.initialized = false
	}

	return nil
}
