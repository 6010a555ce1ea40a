package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/entrhq/kidguard/pkg/browser/browsertest"
	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreNamesAreUnique(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	seen := make(map[string]bool)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				p := store.NextPath(at, ".jpg")
				mu.Lock()
				seen[p] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 500)
}

func TestStoreKeepAndDiscard(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "shots"))
	require.NoError(t, err)

	sample, err := store.Keep([]byte("frame"), "image/png", time.Now())
	require.NoError(t, err)
	assert.Equal(t, ".png", filepath.Ext(sample.Path))

	data, err := os.ReadFile(sample.Path)
	require.NoError(t, err)
	assert.Equal(t, "frame", string(data))

	require.NoError(t, store.Discard(sample))
	_, err = os.Stat(sample.Path)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, store.Discard(sample), "discarding twice is harmless")
}

func TestNilStoreKeepsInMemory(t *testing.T) {
	var store *Store
	sample, err := store.Keep([]byte("frame"), "image/jpeg", time.Now())
	require.NoError(t, err)
	assert.Empty(t, sample.Path)
	assert.NoError(t, store.Discard(sample))
}

func TestBrowserCapturer(t *testing.T) {
	page := &browsertest.Page{Image: []byte{0xff, 0xd8, 0xff}}
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	c := NewBrowserCapturer(browsertest.Source{Page: page}, store)
	sample, err := c.Capture(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "image/jpeg", sample.MediaType)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, sample.Data)
	assert.FileExists(t, sample.Path)

	require.Len(t, page.Screenshots, 1)
	assert.Equal(t, playwright.ScreenshotTypeJpeg, page.Screenshots[0].Type)
	assert.Equal(t, DefaultJPEGQuality, *page.Screenshots[0].Quality)
}

func TestBrowserCapturerFailures(t *testing.T) {
	c := NewBrowserCapturer(browsertest.Source{}, nil)
	_, err := c.Capture(context.Background())
	assert.Error(t, err)

	c = NewBrowserCapturer(browsertest.Source{Page: &browsertest.Page{ScreenshotErr: errors.New("target closed")}}, nil)
	_, err = c.Capture(context.Background())
	assert.ErrorContains(t, err, "target closed")

	c = NewBrowserCapturer(browsertest.Source{Page: &browsertest.Page{}}, nil)
	_, err = c.Capture(context.Background())
	assert.ErrorContains(t, err, "empty")
}

func TestUnavailable(t *testing.T) {
	_, err := Unavailable{Reason: "capture.method is none"}.Capture(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorContains(t, err, "capture.method is none")
}

func TestCommandCapturerPlaceholder(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	c, err := NewCommandCapturer([]string{"sh", "-c", "printf 'PNGDATA' > {output}"}, store)
	require.NoError(t, err)

	sample, err := c.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "PNGDATA", string(sample.Data))
	assert.Equal(t, "image/png", sample.MediaType)
	assert.FileExists(t, sample.Path)
}

func TestCommandCapturerStdout(t *testing.T) {
	c, err := NewCommandCapturer([]string{"sh", "-c", "printf 'RAW'"}, nil)
	require.NoError(t, err)

	sample, err := c.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "RAW", string(sample.Data))
	assert.Empty(t, sample.Path)
}

func TestCommandCapturerFailure(t *testing.T) {
	c, err := NewCommandCapturer([]string{"sh", "-c", "exit 3; true {output}"}, nil)
	require.NoError(t, err)

	_, err = c.Capture(context.Background())
	assert.ErrorContains(t, err, "capture command failed")
}

func TestNewCommandCapturerMissingTool(t *testing.T) {
	_, err := NewCommandCapturer([]string{"definitely-not-a-real-screenshot-tool"}, nil)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = NewCommandCapturer(nil, nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}
