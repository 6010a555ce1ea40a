package intervene

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/entrhq/kidguard/pkg/types"
)

// YouTube player shortcuts, in xdotool key syntax.
const (
	keyNext       = "shift+n"
	keyPause      = "k"
	keyAddressBar = "ctrl+l"
	keyPaste      = "ctrl+v"
	keyEnter      = "Return"
)

// KeyRunner sends one key chord to the focused window.
type KeyRunner func(ctx context.Context, chord string) error

// KeyboardExecutor drives the focused browser window with key presses.
type KeyboardExecutor struct {
	press KeyRunner
	copy  func(string) error
	delay time.Duration
}

// NewKeyboardExecutor uses xdotool and the system clipboard.
func NewKeyboardExecutor() (*KeyboardExecutor, error) {
	path, err := exec.LookPath("xdotool")
	if err != nil {
		return nil, fmt.Errorf("%w: xdotool not found", ErrUnavailable)
	}
	if clipboard.Unsupported {
		return nil, fmt.Errorf("%w: no clipboard utility", ErrUnavailable)
	}
	return newKeyboardExecutor(xdotool(path), clipboard.WriteAll, 100*time.Millisecond), nil
}

func newKeyboardExecutor(press KeyRunner, copyFn func(string) error, delay time.Duration) *KeyboardExecutor {
	return &KeyboardExecutor{press: press, copy: copyFn, delay: delay}
}

func xdotool(path string) KeyRunner {
	return func(ctx context.Context, chord string) error {
		out, err := exec.CommandContext(ctx, path, "key", "--clearmodifiers", chord).CombinedOutput()
		if err != nil {
			return fmt.Errorf("xdotool key %s: %w: %s", chord, err, strings.TrimSpace(string(out)))
		}
		return nil
	}
}

func (k *KeyboardExecutor) Execute(ctx context.Context, in types.Intervention) error {
	switch in.Kind {
	case types.InterventionNotifyOnly:
		return nil
	case types.InterventionSkip:
		return k.press(ctx, keyNext)
	case types.InterventionPause:
		return k.press(ctx, keyPause)
	case types.InterventionRedirect:
		url, err := redirectURL(in)
		if err != nil {
			return err
		}
		if err := k.copy(url); err != nil {
			return fmt.Errorf("failed to copy redirect URL: %w", err)
		}
		return k.sequence(ctx, keyAddressBar, keyPaste, keyEnter)
	default:
		return unknownKind(in.Kind)
	}
}

func (k *KeyboardExecutor) sequence(ctx context.Context, chords ...string) error {
	for i, chord := range chords {
		if i > 0 && k.delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(k.delay):
			}
		}
		if err := k.press(ctx, chord); err != nil {
			return err
		}
	}
	return nil
}
