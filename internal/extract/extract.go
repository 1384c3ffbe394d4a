// Package extract converts uploaded documents to plain text for answer
// extraction.
//
// Rich formats (PDF, DOCX) are the job of an external converter plugged in
// behind the Extractor interface; the built-in extractor covers text-ish
// media types and rejects anything it cannot read rather than guessing.
package extract

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/clarioapp/clario/internal/models"
)

// Extractor converts raw document bytes into plain text.
type Extractor interface {
	// ExtractText returns the plain text content of the document. It fails
	// with models.ErrUnsupportedFormat for media types it cannot read and
	// models.ErrEmptyDocument when the document holds no usable text.
	ExtractText(data []byte, mediaType string) (string, error)
}

// TextExtractor handles plain-text media types directly.
type TextExtractor struct{}

// NewTextExtractor creates the built-in text extractor.
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

// textMediaType reports whether the declared media type is one the built-in
// extractor reads as-is.
func textMediaType(mediaType string) bool {
	mt := strings.ToLower(mediaType)
	// Parameters like "; charset=utf-8" are irrelevant here.
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch mt {
	case "text/plain", "text/markdown", "text/csv", "application/json":
		return true
	}
	return strings.HasPrefix(mt, "text/")
}

// ExtractText returns the document's plain text content.
func (e *TextExtractor) ExtractText(data []byte, mediaType string) (string, error) {
	slog.Debug("TextExtractor.ExtractText: processing document", "mediaType", mediaType, "bytes", len(data))

	if !textMediaType(mediaType) {
		// A declared binary type with valid UTF-8 content is still readable;
		// anything else is rejected explicitly instead of silently garbled.
		if !utf8.Valid(data) {
			slog.Warn("TextExtractor.ExtractText: unsupported media type", "mediaType", mediaType)
			return "", fmt.Errorf("%w: %s", models.ErrUnsupportedFormat, mediaType)
		}
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		slog.Warn("TextExtractor.ExtractText: document is empty", "mediaType", mediaType)
		return "", models.ErrEmptyDocument
	}

	slog.Debug("TextExtractor.ExtractText: extracted text", "chars", len(text))
	return text, nil
}
