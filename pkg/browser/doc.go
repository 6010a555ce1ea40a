// Package browser attaches to the user's own browser over the Chrome
// DevTools Protocol through Playwright.
//
// KidGuard never launches a browser. The user starts Chrome or Chromium with
// --remote-debugging-port and KidGuard connects to it lazily, reconnecting
// after the browser restarts.
//
// # Consumers
//
// A single Connection is shared by three components:
//
//  1. DOM presence detection reads the watch page's URL and HTML
//  2. Browser capture takes a JPEG screenshot of the watch page
//  3. Browser interventions skip, pause, or navigate the watch page
//
// All of them go through the Page interface so they can be tested without a
// running browser.
package browser
