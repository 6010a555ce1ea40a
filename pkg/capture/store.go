package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/entrhq/kidguard/pkg/types"
	"github.com/google/uuid"
)

// Store is an append-only directory of captured frames. File names combine
// a timestamp, a per-process run id, and a monotonically increasing counter,
// so concurrent writers never collide.
type Store struct {
	dir     string
	runID   string
	counter atomic.Uint64
}

// NewStore creates the directory if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("capture directory is required")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create capture directory: %w", err)
	}
	return &Store{
		dir:   dir,
		runID: uuid.New().String()[:8],
	}, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// NextPath reserves a unique file path with the given extension.
func (s *Store) NextPath(at time.Time, ext string) string {
	n := s.counter.Add(1)
	name := fmt.Sprintf("capture_%s_%s_%06d%s", at.Format("20060102_150405"), s.runID, n, ext)
	return filepath.Join(s.dir, name)
}

// Keep writes data to a new file and returns the sample. A nil store
// returns an in-memory sample.
func (s *Store) Keep(data []byte, mediaType string, at time.Time) (*types.Sample, error) {
	sample := &types.Sample{Data: data, MediaType: mediaType, CapturedAt: at}
	if s == nil {
		return sample, nil
	}

	path := s.NextPath(at, extensionFor(mediaType))
	if err := os.WriteFile(path, data, 0600); err != nil {
		return nil, fmt.Errorf("failed to store capture: %w", err)
	}
	sample.Path = path
	return sample, nil
}

// Discard removes the sample's file, if it has one.
func (s *Store) Discard(sample *types.Sample) error {
	if sample == nil || sample.Path == "" {
		return nil
	}
	if err := os.Remove(sample.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove capture: %w", err)
	}
	return nil
}

func extensionFor(mediaType string) string {
	if mediaType == "image/png" {
		return ".png"
	}
	return ".jpg"
}

func mediaTypeFor(path string) string {
	switch filepath.Ext(path) {
	case ".png", ".PNG":
		return "image/png"
	default:
		return "image/jpeg"
	}
}
