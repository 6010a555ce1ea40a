package detect

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/entrhq/kidguard/pkg/types"
)

// TitleLister enumerates visible window titles.
type TitleLister func(ctx context.Context) ([]string, error)

// WindowTitleStrategy matches visible window titles against a target marker.
type WindowTitleStrategy struct {
	list     TitleLister
	marker   string
	suffixes []string
}

// NewWindowTitleStrategy creates the strategy. marker is matched
// case-insensitively; suffixes are host-application title suffixes to strip.
func NewWindowTitleStrategy(list TitleLister, marker string, suffixes []string) *WindowTitleStrategy {
	return &WindowTitleStrategy{
		list:     list,
		marker:   strings.ToLower(marker),
		suffixes: suffixes,
	}
}

func (s *WindowTitleStrategy) Source() types.SignalSource { return types.SourceWindowTitle }

// Detect returns an active signal for the first title containing the marker
// that still carries a video identity once suffixes are stripped.
func (s *WindowTitleStrategy) Detect(ctx context.Context) (types.PresenceSignal, error) {
	titles, err := s.list(ctx)
	if err != nil {
		return types.Inactive(), err
	}

	for _, title := range titles {
		if strings.TrimSpace(title) == "" || !strings.Contains(strings.ToLower(title), s.marker) {
			continue
		}
		if identity := ParseWindowTitle(title, s.suffixes); identity != nil {
			return types.PresenceSignal{Active: true, Identity: identity}, nil
		}
	}
	return types.Inactive(), nil
}

// notificationCount matches the "(3) " unread prefix YouTube adds to titles.
var notificationCount = regexp.MustCompile(`^\(\d+\+?\)\s*`)

// ParseWindowTitle strips host suffixes and the site name from a window
// title. The remainder is kept whole as the video title; window titles carry
// no reliable channel. It returns nil when nothing but the site name remains.
func ParseWindowTitle(title string, suffixes []string) *types.VideoIdentity {
	clean := title
	for _, suffix := range suffixes {
		clean = strings.ReplaceAll(clean, suffix, "")
	}
	clean = strings.ReplaceAll(clean, " - YouTube", "")
	clean = notificationCount.ReplaceAllString(strings.TrimSpace(clean), "")
	clean = strings.TrimSpace(clean)

	if clean == "" || strings.EqualFold(clean, "youtube") {
		return nil
	}

	return &types.VideoIdentity{Title: clean}
}

// WmctrlTitles lists window titles with `wmctrl -l`.
func WmctrlTitles(ctx context.Context) ([]string, error) {
	out, err := exec.CommandContext(ctx, "wmctrl", "-l").Output()
	if err != nil {
		return nil, fmt.Errorf("wmctrl: %w", err)
	}
	return parseWmctrl(out), nil
}

// parseWmctrl extracts titles from lines of the form
// "0x03a00003  0 hostname Window Title".
func parseWmctrl(out []byte) []string {
	var titles []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		rest := scanner.Text()
		for i := 0; i < 3; i++ {
			rest = strings.TrimLeft(rest, " \t")
			idx := strings.IndexAny(rest, " \t")
			if idx < 0 {
				rest = ""
				break
			}
			rest = rest[idx:]
		}
		if title := strings.TrimSpace(rest); title != "" {
			titles = append(titles, title)
		}
	}
	return titles
}

// WmctrlAvailable reports whether wmctrl can be used.
func WmctrlAvailable() error {
	if _, err := exec.LookPath("wmctrl"); err != nil {
		return fmt.Errorf("%w: wmctrl not found", ErrStrategyUnavailable)
	}
	return nil
}
