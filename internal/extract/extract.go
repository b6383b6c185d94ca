// Package extract turns uploaded bytes into plain text.
package extract

import (
	"context"
	"errors"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ErrEmptyInput is returned when there are no bytes to extract from.
var ErrEmptyInput = errors.New("no data to extract")

// Result is the outcome of one extraction.
type Result struct {
	Text string
	// PageCount is zero for formats without pages.
	PageCount int
}

// Extractor converts raw bytes of a declared content type into text.
type Extractor interface {
	Extract(ctx context.Context, contentType string, data []byte) (*Result, error)
}

// Router sends PDFs to the PDF extractor and everything else to the text
// decoder. When no content type was declared the bytes are sniffed.
type Router struct {
	PDF  Extractor
	Text Extractor
}

// NewRouter wires the default PDF and text extractors.
func NewRouter() *Router {
	return &Router{PDF: NewPDFExtractor(), Text: TextExtractor{}}
}

func (r *Router) Extract(ctx context.Context, contentType string, data []byte) (*Result, error) {
	if IsPDF(contentType) || (strings.TrimSpace(contentType) == "" && mimetype.Detect(data).Is("application/pdf")) {
		return r.PDF.Extract(ctx, contentType, data)
	}
	return r.Text.Extract(ctx, contentType, data)
}

// IsPDF reports whether the declared content type is application/pdf,
// ignoring case and parameters.
func IsPDF(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	return mediaType == "application/pdf"
}
