// Package extract turns uploaded document bytes into the plain text the scoring engine reads.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/microcosm-cc/bluemonday"
)

var (
	// ErrUnsupportedFormat indicates no extractor handles the document type.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrInvalidEncoding indicates the document is not UTF-8 text.
	ErrInvalidEncoding = errors.New("document is not valid utf-8 text")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Extractor converts one document format to plain text.
type Extractor interface {
	Extract(content []byte) (string, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(content []byte) (string, error)

// Extract calls f(content).
func (f ExtractorFunc) Extract(content []byte) (string, error) {
	return f(content)
}

// Registry selects an extractor by MIME type.
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry returns a registry covering plain text, markup and structured text formats.
func NewRegistry() *Registry {
	plain := ExtractorFunc(PlainText)
	markup := NewHTMLExtractor()

	return &Registry{
		extractors: map[string]Extractor{
			"text/plain":       plain,
			"text/markdown":    plain,
			"text/csv":         plain,
			"application/json": plain,
			"text/xml":         plain,
			"application/xml":  plain,
			"text/html":        markup,
		},
	}
}

// Register adds or replaces the extractor for a MIME type.
func (r *Registry) Register(mimeType string, extractor Extractor) {
	r.extractors[Normalize(mimeType)] = extractor
}

// Detect sniffs the content and returns the most specific supported MIME type,
// falling back to the detected type when nothing matches.
func (r *Registry) Detect(content []byte) string {
	detected := mimetype.Detect(content)
	for m := detected; m != nil; m = m.Parent() {
		if _, ok := r.extractors[Normalize(m.String())]; ok {
			return Normalize(m.String())
		}
	}
	return Normalize(detected.String())
}

// Supports reports whether fileType has an extractor.
func (r *Registry) Supports(fileType string) bool {
	_, ok := r.extractors[Normalize(fileType)]
	return ok
}

// Extract converts content of the given type to text. An empty fileType is sniffed.
func (r *Registry) Extract(fileType string, content []byte) (string, error) {
	if strings.TrimSpace(fileType) == "" {
		fileType = r.Detect(content)
	}

	extractor, ok := r.extractors[Normalize(fileType)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, fileType)
	}

	return extractor.Extract(content)
}

// PlainText validates UTF-8 and strips a byte order mark.
func PlainText(content []byte) (string, error) {
	content = bytes.TrimPrefix(content, utf8BOM)
	if !utf8.Valid(content) {
		return "", ErrInvalidEncoding
	}
	return string(content), nil
}

// HTMLExtractor strips markup and keeps the visible text.
type HTMLExtractor struct {
	policy *bluemonday.Policy
}

// NewHTMLExtractor builds an extractor backed by a strict sanitising policy.
func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{policy: bluemonday.StrictPolicy()}
}

// Extract removes every tag and decodes entities.
func (h *HTMLExtractor) Extract(content []byte) (string, error) {
	text, err := PlainText(content)
	if err != nil {
		return "", err
	}

	stripped := h.policy.Sanitize(text)
	return strings.TrimSpace(html.UnescapeString(stripped)), nil
}

// Normalize lower-cases a MIME type and drops parameters such as charset.
func Normalize(mimeType string) string {
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
