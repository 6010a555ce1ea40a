package detect

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/entrhq/kidguard/pkg/types"
	"github.com/gobwas/glob"
)

// ProcessLister enumerates running process names.
type ProcessLister func(ctx context.Context) ([]string, error)

// ProcessStrategy reports activity when a host application is running. It
// never carries an identity.
type ProcessStrategy struct {
	list     ProcessLister
	patterns []glob.Glob
}

// NewProcessStrategy compiles the allowlist patterns, which are matched
// against lower-cased process names.
func NewProcessStrategy(list ProcessLister, patterns []string) (*ProcessStrategy, error) {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(strings.ToLower(p))
		if err != nil {
			return nil, fmt.Errorf("invalid host process pattern %q: %w", p, err)
		}
		compiled = append(compiled, g)
	}
	return &ProcessStrategy{list: list, patterns: compiled}, nil
}

func (s *ProcessStrategy) Source() types.SignalSource { return types.SourceProcess }

func (s *ProcessStrategy) Detect(ctx context.Context) (types.PresenceSignal, error) {
	names, err := s.list(ctx)
	if err != nil {
		return types.Inactive(), err
	}
	for _, name := range names {
		lower := strings.ToLower(strings.TrimSpace(name))
		for _, g := range s.patterns {
			if g.Match(lower) {
				return types.PresenceSignal{Active: true}, nil
			}
		}
	}
	return types.Inactive(), nil
}

// SystemProcesses lists process names from /proc when present, otherwise
// from `ps`.
func SystemProcesses(ctx context.Context) ([]string, error) {
	if _, err := os.Stat("/proc/self/comm"); err == nil {
		return procNames(ctx, "/proc")
	}
	out, err := exec.CommandContext(ctx, "ps", "-A", "-o", "comm=").Output()
	if err != nil {
		return nil, fmt.Errorf("%w: ps: %v", ErrStrategyUnavailable, err)
	}
	return parsePS(out), nil
}

func procNames(ctx context.Context, root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStrategyUnavailable, err)
	}
	var names []string
	for _, e := range entries {
		if ctx.Err() != nil {
			return names, ctx.Err()
		}
		if !e.IsDir() || !isPID(e.Name()) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(root, e.Name(), "comm"))
		if err != nil {
			continue // process exited
		}
		names = append(names, strings.TrimSpace(string(data)))
	}
	return names, nil
}

func parsePS(out []byte) []string {
	var names []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		// macOS ps prints full paths for comm.
		names = append(names, filepath.Base(line))
	}
	return names
}

func isPID(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
