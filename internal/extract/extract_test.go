package extract

import (
	"errors"
	"testing"

	"github.com/clarioapp/clario/internal/models"
)

func TestExtractTextPlain(t *testing.T) {
	e := NewTextExtractor()

	text, err := e.ExtractText([]byte("  Acme Corp sells widgets.  \n"), "text/plain")
	if err != nil {
		t.Fatalf("ExtractText failed: %v", err)
	}
	if text != "Acme Corp sells widgets." {
		t.Errorf("unexpected text: %q", text)
	}
}

func TestExtractTextMediaTypes(t *testing.T) {
	e := NewTextExtractor()
	cases := []string{
		"text/plain",
		"text/plain; charset=utf-8",
		"text/markdown",
		"text/csv",
		"application/json",
		"text/x-custom",
	}
	for _, mt := range cases {
		if _, err := e.ExtractText([]byte("content"), mt); err != nil {
			t.Errorf("media type %s: unexpected error %v", mt, err)
		}
	}
}

func TestExtractTextBinaryRejected(t *testing.T) {
	e := NewTextExtractor()

	// Invalid UTF-8 under an opaque media type is rejected, not garbled.
	_, err := e.ExtractText([]byte{0xff, 0xfe, 0x00, 0x01}, "application/octet-stream")
	if !errors.Is(err, models.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestExtractTextValidUTF8UnknownType(t *testing.T) {
	e := NewTextExtractor()

	// A mislabeled but readable document still extracts.
	text, err := e.ExtractText([]byte("plain enough"), "application/octet-stream")
	if err != nil {
		t.Fatalf("ExtractText failed: %v", err)
	}
	if text != "plain enough" {
		t.Errorf("unexpected text: %q", text)
	}
}

func TestExtractTextEmpty(t *testing.T) {
	e := NewTextExtractor()

	if _, err := e.ExtractText([]byte("   \n\t "), "text/plain"); !errors.Is(err, models.ErrEmptyDocument) {
		t.Errorf("expected ErrEmptyDocument for whitespace, got %v", err)
	}
	if _, err := e.ExtractText(nil, "text/plain"); !errors.Is(err, models.ErrEmptyDocument) {
		t.Errorf("expected ErrEmptyDocument for nil, got %v", err)
	}
}
