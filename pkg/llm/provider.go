// Package llm provides abstractions for the external vision-classification
// capability.
//
// Example usage:
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//	    "log"
//	    "os"
//
//	    "github.com/entrhq/kidguard/pkg/llm"
//	    "github.com/entrhq/kidguard/pkg/llm/openai"
//	)
//
//	func main() {
//	    provider, err := openai.NewProvider(
//	        os.Getenv("OPENAI_API_KEY"),
//	        openai.WithModel("gpt-4o"),
//	    )
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    frame, _ := os.ReadFile("frame.jpg")
//	    text, err := provider.CompleteVision(context.Background(), "Describe this frame.",
//	        llm.Image{Data: frame, MediaType: "image/jpeg"})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(text)
//	}
package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrUnavailable is returned by providers that cannot serve requests at all,
// for example because no API key is configured.
var ErrUnavailable = errors.New("classification capability unavailable")

// Image is a single frame submitted alongside the instruction text.
type Image struct {
	Data      []byte
	MediaType string
}

// DataURL returns the image encoded as a base64 data URL.
func (i Image) DataURL() string {
	mediaType := i.MediaType
	if mediaType == "" {
		mediaType = "image/jpeg"
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// Provider defines the interface for vision classification integrations.
//
// Providers only deliver the request and return the model's free-text
// answer. Interpreting that answer is the caller's job.
type Provider interface {
	// CompleteVision sends the instruction and one image and returns the
	// model's text response. Implementations must honor ctx cancellation.
	CompleteVision(ctx context.Context, prompt string, image Image) (string, error)

	// GetModel returns the model name being used.
	GetModel() string
}

// Unavailable is the provider used when no classification capability is
// configured. Every call fails with ErrUnavailable.
type Unavailable struct {
	Reason string
}

// CompleteVision always returns ErrUnavailable.
func (u Unavailable) CompleteVision(context.Context, string, Image) (string, error) {
	if u.Reason == "" {
		return "", ErrUnavailable
	}
	return "", fmt.Errorf("%w: %s", ErrUnavailable, u.Reason)
}

// GetModel returns "unavailable".
func (u Unavailable) GetModel() string {
	return "unavailable"
}

// IsAvailable reports whether p can serve requests.
func IsAvailable(p Provider) bool {
	if p == nil {
		return false
	}
	switch p.(type) {
	case Unavailable, *Unavailable:
		return false
	}
	return true
}
