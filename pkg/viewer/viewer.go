// Package viewer identifies who is in front of the screen.
package viewer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/entrhq/kidguard/pkg/config"
	"github.com/entrhq/kidguard/pkg/types"
)

// ErrUnavailable is returned when viewer identification is not configured.
var ErrUnavailable = errors.New("viewer identification unavailable")

const (
	// KnownConfidence is reported for viewers found in the family roster.
	KnownConfidence = 0.9
	// UnknownConfidence is reported for viewers not in the roster.
	UnknownConfidence = 0.6
	// UnknownName labels viewers not in the roster.
	UnknownName = "Unknown"
)

// Identifier reports the current viewer. A nil viewer with a nil error
// means nobody was identified.
type Identifier interface {
	Identify(ctx context.Context) (*types.Viewer, error)
}

// Roster resolves raw identifications against the family list.
type Roster struct {
	members     []config.FamilyMember
	maxChildAge int
}

// NewRoster creates a roster.
func NewRoster(members []config.FamilyMember, maxChildAge int) Roster {
	return Roster{members: members, maxChildAge: maxChildAge}
}

// Resolve fills in age, is_child, and confidence. Known members take their
// configured values. Unknown viewers are children when younger than the
// age threshold.
func (r Roster) Resolve(name string, estimatedAge int) types.Viewer {
	for _, m := range r.members {
		if strings.EqualFold(m.Name, name) {
			return types.Viewer{
				Name:       m.Name,
				Age:        m.Age,
				IsChild:    m.Child(r.maxChildAge),
				Confidence: KnownConfidence,
			}
		}
	}
	return types.Viewer{
		Name:       UnknownName,
		Age:        estimatedAge,
		IsChild:    estimatedAge < r.maxChildAge,
		Confidence: UnknownConfidence,
	}
}

// Static always reports the same roster member. It suits a machine used by
// one child.
type Static struct {
	viewer types.Viewer
}

// NewStatic resolves name once.
func NewStatic(roster Roster, name string) *Static {
	return &Static{viewer: roster.Resolve(name, 0)}
}

func (s *Static) Identify(context.Context) (*types.Viewer, error) {
	v := s.viewer
	return &v, nil
}

// Command runs an external identification tool that prints a JSON object
// {"name": "...", "age": N} or nothing when no face is visible.
type Command struct {
	argv   []string
	roster Roster
}

// NewCommand checks that the tool exists.
func NewCommand(argv []string, roster Roster) (*Command, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: empty viewer command", ErrUnavailable)
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return nil, fmt.Errorf("%w: %s not found", ErrUnavailable, argv[0])
	}
	return &Command{argv: argv, roster: roster}, nil
}

func (c *Command) Identify(ctx context.Context) (*types.Viewer, error) {
	out, err := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...).Output()
	if err != nil {
		return nil, fmt.Errorf("viewer command failed: %w", err)
	}
	return parseIdentification(out, c.roster)
}

func parseIdentification(out []byte, roster Roster) (*types.Viewer, error) {
	out = bytes.TrimSpace(out)
	if len(out) == 0 || bytes.Equal(out, []byte("null")) {
		return nil, nil
	}

	var raw struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("invalid viewer output: %w", err)
	}

	v := roster.Resolve(raw.Name, raw.Age)
	return &v, nil
}

// Unavailable always fails with ErrUnavailable.
type Unavailable struct{}

func (Unavailable) Identify(context.Context) (*types.Viewer, error) {
	return nil, ErrUnavailable
}
