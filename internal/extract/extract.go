// Package extract turns a file path or raw text into plain text for the
// pipeline. Text files are decoded, PDFs yield their selectable text and
// images go through OCR.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/gabriel-vasile/mimetype"
	pdf "github.com/ledongthuc/pdf"
	"github.com/tsawler/tabula/reader"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/rcliao/flashcards/internal/model"
	"github.com/rcliao/flashcards/internal/ocr"
)

var (
	ErrNotFound        = errors.New("file not found")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file exceeds maximum size")
)

// Error is an extraction failure for one input.
type Error struct {
	Path string
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extract %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

const (
	DefaultMaxFileSize        = 100 << 20
	DefaultMinSelectableChars = 100
)

// Options configures extraction limits.
type Options struct {
	MaxFileSize        int64
	MinSelectableChars int
	OCR                ocr.Options
}

// DefaultOptions returns default extraction options.
func DefaultOptions() Options {
	return Options{
		MaxFileSize:        DefaultMaxFileSize,
		MinSelectableChars: DefaultMinSelectableChars,
		OCR:                ocr.DefaultOptions(),
	}
}

// Recognizer reads text from image bytes.
type Recognizer interface {
	RecognizeImage(data []byte) (string, error)
}

// Result is the text extracted from one source.
type Result struct {
	Text       string `json:"-"`
	SourceType string `json:"source_type"`
	Path       string `json:"path,omitempty"`
	MIME       string `json:"mime,omitempty"`
	OCR        bool   `json:"ocr"`
	LowYield   bool   `json:"low_yield"`
}

// errNoPageImages means a PDF has no embedded page images to OCR.
var errNoPageImages = errors.New("no page images")

// pdfText and pdfPageImages are swapped in tests.
var (
	pdfText       = readPDF
	pdfPageImages = readPageImages
)

// Extractor extracts text from files and raw input. The OCR engine is
// created on first use.
type Extractor struct {
	opts   Options
	logger *log.Logger

	newOCR  func() (Recognizer, error)
	ocrOnce sync.Once
	ocr     Recognizer
	ocrErr  error
}

// New returns an Extractor backed by Tesseract when built with -tags ocr.
func New(opts Options, logger *log.Logger) *Extractor {
	return NewWithRecognizer(opts, logger, func() (Recognizer, error) {
		c, err := ocr.New(opts.OCR)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}

// NewWithRecognizer returns an Extractor that builds its OCR engine with
// newOCR. A nil newOCR disables OCR.
func NewWithRecognizer(opts Options, logger *log.Logger, newOCR func() (Recognizer, error)) *Extractor {
	d := DefaultOptions()
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = d.MaxFileSize
	}
	if opts.MinSelectableChars <= 0 {
		opts.MinSelectableChars = d.MinSelectableChars
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if newOCR == nil {
		newOCR = func() (Recognizer, error) { return nil, ocr.ErrOCRNotEnabled }
	}
	return &Extractor{opts: opts, logger: logger, newOCR: newOCR}
}

// Close releases the OCR engine if one was created.
func (e *Extractor) Close() error {
	if c, ok := e.ocr.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Extract returns the text for source. If source names an existing file it
// is read as a file; otherwise source itself is the text.
func (e *Extractor) Extract(ctx context.Context, source string) (*Result, error) {
	if isFile(source) {
		return e.ExtractFile(ctx, source)
	}
	return &Result{Text: source, SourceType: model.SourceText}, nil
}

// ExtractFile returns the text of the file at path.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &Error{Path: path, Op: "stat", Err: ErrNotFound}
	}
	if err != nil {
		return nil, &Error{Path: path, Op: "stat", Err: err}
	}
	if info.IsDir() {
		return nil, &Error{Path: path, Op: "stat", Err: fmt.Errorf("%w: directory", ErrUnsupportedType)}
	}
	if info.Size() > e.opts.MaxFileSize {
		return nil, &Error{Path: path, Op: "stat", Err: fmt.Errorf("%w (%d > %d bytes)", ErrTooLarge, info.Size(), e.opts.MaxFileSize)}
	}

	kind, mime, err := detect(path)
	if err != nil {
		return nil, &Error{Path: path, Op: "detect", Err: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Op: "read", Err: err}
	}

	res := &Result{SourceType: kind, Path: path, MIME: mime}
	switch kind {
	case model.SourcePDF:
		err = e.extractPDF(ctx, data, res)
	case model.SourceImage:
		res.OCR = true
		res.Text, err = e.recognize(data)
	default:
		res.Text, err = decodeText(data)
	}
	if err != nil {
		return nil, &Error{Path: path, Op: kind, Err: err}
	}

	e.logger.Debug("extracted text", "path", path, "type", kind, "mime", mime, "chars", utf8.RuneCountInString(res.Text), "ocr", res.OCR)
	return res, nil
}

func (e *Extractor) extractPDF(ctx context.Context, data []byte, res *Result) error {
	text, err := pdfText(data)
	if err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	res.Text = text
	if utf8.RuneCountInString(text) >= e.opts.MinSelectableChars {
		return nil
	}

	res.LowYield = true
	e.logger.Warn("little selectable text in PDF, trying OCR", "path", res.Path, "chars", utf8.RuneCountInString(text), "min", e.opts.MinSelectableChars)
	if err := ctx.Err(); err != nil {
		return err
	}
	ocrText, err := e.recognizePDF(ctx, res.Path)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.logger.Warn("OCR could not read PDF, using selectable text", "path", res.Path, "err", err)
		return nil
	}
	if utf8.RuneCountInString(ocrText) > utf8.RuneCountInString(text) {
		res.Text = ocrText
		res.OCR = true
	}
	return nil
}

// recognizePDF OCRs the images embedded in each page of the PDF at path and
// joins their text in page order. Images that fail recognition are skipped.
func (e *Extractor) recognizePDF(ctx context.Context, path string) (string, error) {
	engine, err := e.engine()
	if err != nil {
		return "", err
	}
	images, err := pdfPageImages(path)
	if err != nil {
		return "", err
	}
	if len(images) == 0 {
		return "", errNoPageImages
	}

	var parts []string
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := engine.RecognizeImage(img)
		if err != nil {
			e.logger.Warn("OCR failed on page image", "path", path, "image", i+1, "err", err)
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

func (e *Extractor) engine() (Recognizer, error) {
	e.ocrOnce.Do(func() {
		e.ocr, e.ocrErr = e.newOCR()
	})
	return e.ocr, e.ocrErr
}

func (e *Extractor) recognize(data []byte) (string, error) {
	engine, err := e.engine()
	if err != nil {
		return "", err
	}
	text, err := engine.RecognizeImage(data)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func isFile(source string) bool {
	if source == "" || strings.ContainsAny(source, "\n\x00") {
		return false
	}
	info, err := os.Stat(source)
	return err == nil && !info.IsDir()
}

var extKinds = map[string]string{
	".txt":      model.SourceFile,
	".text":     model.SourceFile,
	".md":       model.SourceFile,
	".markdown": model.SourceFile,
	".html":     model.SourceFile,
	".htm":      model.SourceFile,
	".csv":      model.SourceFile,
	".pdf":      model.SourcePDF,
	".png":      model.SourceImage,
	".jpg":      model.SourceImage,
	".jpeg":     model.SourceImage,
	".tif":      model.SourceImage,
	".tiff":     model.SourceImage,
	".bmp":      model.SourceImage,
	".gif":      model.SourceImage,
	".webp":     model.SourceImage,
}

// detect classifies a file by extension, falling back to content sniffing.
func detect(path string) (kind, mime string, err error) {
	if k, ok := extKinds[strings.ToLower(filepath.Ext(path))]; ok {
		if m, derr := mimetype.DetectFile(path); derr == nil {
			mime = m.String()
		}
		return k, mime, nil
	}

	m, err := mimetype.DetectFile(path)
	if err != nil {
		return "", "", err
	}
	mime = m.String()
	switch {
	case m.Is("application/pdf"):
		return model.SourcePDF, mime, nil
	case strings.HasPrefix(mime, "image/"):
		return model.SourceImage, mime, nil
	}
	for p := m; p != nil; p = p.Parent() {
		if p.Is("text/plain") {
			return model.SourceFile, mime, nil
		}
	}
	return "", mime, fmt.Errorf("%w: %s", ErrUnsupportedType, mime)
}

// decodeText reads data as UTF-8, falling back to Latin-1.
func decodeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return normalizeNewlines(string(data)), nil
	}
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), charmap.ISO8859_1.NewDecoder()))
	if err != nil {
		return "", fmt.Errorf("transcode from latin-1: %w", err)
	}
	return normalizeNewlines(string(decoded)), nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func readPDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf reader: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf plaintext: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("pdf read: %w", err)
	}
	return string(b), nil
}

// readPageImages returns the image XObjects of every page as PNG, in page
// order. A scanned page is usually a single full-page image.
func readPageImages(path string) (out [][]byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := reader.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer r.Close()

	n, err := r.PageCount()
	if err != nil {
		return nil, fmt.Errorf("count pages: %w", err)
	}
	for i := 0; i < n; i++ {
		page, err := r.GetPage(i)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		images, err := r.ExtractPageImages(page)
		if err != nil {
			return nil, fmt.Errorf("page %d images: %w", i+1, err)
		}
		sort.Slice(images, func(a, b int) bool { return images[a].Name < images[b].Name })
		for j := range images {
			png, err := images[j].ToPNG()
			if err != nil {
				continue
			}
			out = append(out, png)
		}
	}
	return out, nil
}
