package browser

import (
	"errors"
	"net/url"
	"strings"

	"github.com/entrhq/kidguard/pkg/types"
	"golang.org/x/net/html"
)

// MaxDescriptionRunes bounds the description excerpt.
const MaxDescriptionRunes = 300

// ErrNotWatchPage is returned for pages that are not a video watch page.
var ErrNotWatchPage = errors.New("not a video watch page")

// ErrNoIdentity is returned when a watch page does not expose a title yet.
var ErrNoIdentity = errors.New("video identity not found in page")

// VideoID returns the v= query parameter of a YouTube watch URL.
func VideoID(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	if host != "youtube.com" || u.Path != "/watch" {
		return "", false
	}
	id := u.Query().Get("v")
	return id, id != ""
}

// ExtractIdentity reads the video identity from a watch page's URL and HTML.
// It succeeds only when both the video id and a title are found.
func ExtractIdentity(pageURL, rawHTML string) (*types.VideoIdentity, error) {
	id, ok := VideoID(pageURL)
	if !ok {
		return nil, ErrNotWatchPage
	}

	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}

	identity := &types.VideoIdentity{
		ID:          id,
		URL:         pageURL,
		Title:       extractVideoTitle(doc),
		Channel:     extractChannel(doc),
		Description: truncateRunes(extractDescription(doc), MaxDescriptionRunes),
	}

	if identity.Title == "" {
		return nil, ErrNoIdentity
	}
	return identity, nil
}

// extractVideoTitle prefers the rendered heading, then og:title, then the
// document title without the site suffix.
func extractVideoTitle(doc *html.Node) string {
	if h := findElement(doc, func(n *html.Node) bool {
		return n.Data == "h1" && hasClass(n, "ytd-watch-metadata")
	}); h != nil {
		if t := normalizeSpace(textContent(h)); t != "" {
			return t
		}
	}

	if t := metaContent(doc, "property", "og:title"); t != "" {
		return t
	}

	title := extractTitle(doc)
	title = strings.TrimSuffix(title, " - YouTube")
	if title == "YouTube" {
		return ""
	}
	return title
}

func extractChannel(doc *html.Node) string {
	if n := findElement(doc, func(n *html.Node) bool { return n.Data == "ytd-channel-name" }); n != nil {
		if a := findElement(n, func(n *html.Node) bool { return n.Data == "a" }); a != nil {
			if t := normalizeSpace(textContent(a)); t != "" {
				return t
			}
		}
	}

	// Server-rendered markup: <span itemprop="author"><link itemprop="name" content="...">
	if author := findElement(doc, func(n *html.Node) bool { return attr(n, "itemprop") == "author" }); author != nil {
		if name := findElement(author, func(n *html.Node) bool { return attr(n, "itemprop") == "name" }); name != nil {
			return strings.TrimSpace(attr(name, "content"))
		}
	}
	return ""
}

func extractDescription(doc *html.Node) string {
	if n := findElement(doc, func(n *html.Node) bool {
		return n.Data == "ytd-text-inline-expander" && attr(n, "id") == "description-inline-expander"
	}); n != nil {
		if t := normalizeSpace(textContent(n)); t != "" {
			return t
		}
	}
	return extractMetaDescription(doc)
}

// extractTitle extracts the page title from the document
func extractTitle(doc *html.Node) string {
	if n := findElement(doc, func(n *html.Node) bool { return n.Data == "title" }); n != nil {
		return strings.TrimSpace(textContent(n))
	}
	return ""
}

// extractMetaDescription extracts the meta description from the document
func extractMetaDescription(doc *html.Node) string {
	return metaContent(doc, "name", "description")
}

func metaContent(doc *html.Node, key, value string) string {
	n := findElement(doc, func(n *html.Node) bool {
		return n.Data == "meta" && attr(n, key) == value && attr(n, "content") != ""
	})
	if n == nil {
		return ""
	}
	return strings.TrimSpace(attr(n, "content"))
}

// findElement returns the first element in document order satisfying match.
func findElement(root *html.Node, match func(*html.Node) bool) *html.Node {
	var found *html.Node
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			found = n
			return
		}
		for c := n.FirstChild; c != nil && found == nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(root)
	return found
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(n)
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
