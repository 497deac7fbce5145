//go:build ocr

// Package ocr reads text from images with Tesseract via gosseract.
//
// Tesseract must be installed. On Ubuntu/Debian:
//
//	apt-get install tesseract-ocr
package ocr

import (
	"fmt"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// Client wraps a Tesseract handle. It is safe for concurrent use; calls are
// serialized because the underlying handle is not.
type Client struct {
	mu     sync.Mutex
	client *gosseract.Client
	opts   Options
}

// New creates a client. Close it when done.
func New(opts Options) (*Client, error) {
	opts = opts.withDefaults()
	client := gosseract.NewClient()
	if err := client.SetLanguage(opts.Language); err != nil {
		client.Close()
		return nil, fmt.Errorf("set language %q: %w", opts.Language, err)
	}
	return &Client{client: client, opts: opts}, nil
}

// Close releases Tesseract resources.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// RecognizeImage returns the words in imageData whose confidence reaches the
// configured minimum, joined by single spaces in reading order.
func (c *Client) RecognizeImage(imageData []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.client.SetImageFromBytes(imageData); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	boxes, err := c.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}

	words := make([]Word, 0, len(boxes))
	for _, b := range boxes {
		words = append(words, Word{Text: b.Word, Confidence: b.Confidence / 100})
	}
	return strings.Join(Confident(words, c.opts.MinConfidence), " "), nil
}
