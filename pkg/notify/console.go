package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/entrhq/kidguard/pkg/types"
)

var (
	blockColor = lipgloss.Color("#FFB3BA")
	warnColor  = lipgloss.Color("#FFE0A3")
	allowColor = lipgloss.Color("#A8E6CF")

	alertBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
)

// ConsoleSink prints alerts as a bordered box.
type ConsoleSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleSink writes to w.
func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{w: w}
}

func (c *ConsoleSink) Name() string { return "console" }

func (c *ConsoleSink) Send(_ context.Context, alert Alert) error {
	box := alertBoxStyle.BorderForeground(colorFor(alert.Result.Recommendation)).Render(BuildMessage(alert))

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.w, box)
	return err
}

func colorFor(r types.Recommendation) lipgloss.Color {
	switch r {
	case types.RecommendBlock:
		return blockColor
	case types.RecommendWarn:
		return warnColor
	default:
		return allowColor
	}
}
