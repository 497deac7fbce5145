//go:build !ocr

// Package ocr reads text from images with Tesseract via gosseract.
//
// This is the stub used when the "ocr" build tag is not set. Rebuild with
//
//	go build -tags ocr
//
// to enable recognition.
package ocr

// Client is a stub that fails every operation.
type Client struct{}

// New returns ErrOCRNotEnabled.
func New(opts Options) (*Client, error) {
	return nil, ErrOCRNotEnabled
}

// Close is a no-op. It is safe to call on a nil client.
func (c *Client) Close() error {
	return nil
}

// RecognizeImage returns ErrOCRNotEnabled.
func (c *Client) RecognizeImage(imageData []byte) (string, error) {
	return "", ErrOCRNotEnabled
}
