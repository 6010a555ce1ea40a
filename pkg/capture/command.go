package capture

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/entrhq/kidguard/pkg/types"
)

// OutputPlaceholder in a capture command is replaced with the target file.
const OutputPlaceholder = "{output}"

// CommandCapturer runs an external screenshot tool, e.g.
// ["scrot", "-o", "{output}"] or ["import", "-window", "root", "{output}"].
// Without a placeholder the command's stdout is taken as the image.
type CommandCapturer struct {
	argv  []string
	store *Store
}

// NewCommandCapturer checks that the tool exists.
func NewCommandCapturer(argv []string, store *Store) (*CommandCapturer, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: empty capture command", ErrUnavailable)
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return nil, fmt.Errorf("%w: %s not found", ErrUnavailable, argv[0])
	}
	return &CommandCapturer{argv: argv, store: store}, nil
}

func (c *CommandCapturer) Capture(ctx context.Context) (*types.Sample, error) {
	now := time.Now()

	if !c.usesPlaceholder() {
		out, err := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...).Output()
		if err != nil {
			return nil, fmt.Errorf("capture command failed: %w", err)
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("capture command produced no output")
		}
		return c.store.Keep(out, "image/png", now)
	}

	path, cleanup, err := c.outputPath(now)
	if err != nil {
		return nil, err
	}

	args := make([]string, len(c.argv)-1)
	for i, a := range c.argv[1:] {
		args[i] = strings.ReplaceAll(a, OutputPlaceholder, path)
	}
	if out, err := exec.CommandContext(ctx, c.argv[0], args...).CombinedOutput(); err != nil {
		cleanup()
		return nil, fmt.Errorf("capture command failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to read capture: %w", err)
	}
	if len(data) == 0 {
		cleanup()
		return nil, fmt.Errorf("capture file was empty")
	}

	sample := &types.Sample{Data: data, MediaType: mediaTypeFor(path), CapturedAt: now}
	if c.store != nil {
		sample.Path = path
	} else {
		cleanup()
	}
	return sample, nil
}

func (c *CommandCapturer) usesPlaceholder() bool {
	for _, a := range c.argv[1:] {
		if strings.Contains(a, OutputPlaceholder) {
			return true
		}
	}
	return false
}

// outputPath returns a store path, or a temp file when there is no store.
func (c *CommandCapturer) outputPath(at time.Time) (string, func(), error) {
	if c.store != nil {
		path := c.store.NextPath(at, ".png")
		return path, func() { os.Remove(path) }, nil
	}
	f, err := os.CreateTemp("", "kidguard-capture-*.png")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp capture file: %w", err)
	}
	path := f.Name()
	f.Close()
	return filepath.Clean(path), func() { os.Remove(path) }, nil
}
