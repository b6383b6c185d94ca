package extract

import (
	"context"
	"fmt"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// TextExtractor decodes bytes as UTF-8 text. A leading UTF-8 byte order
// mark is stripped and invalid sequences become U+FFFD.
type TextExtractor struct{}

func (TextExtractor) Extract(ctx context.Context, contentType string, data []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, err := DecodeText(data)
	if err != nil {
		return nil, err
	}
	return &Result{Text: text}, nil
}

// DecodeText decodes data the way a browser TextDecoder("utf-8") would.
// Other byte order marks are not honoured, so UTF-16 input decodes as
// replacement characters and NULs.
func DecodeText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	decoded, _, err := transform.Bytes(unicode.UTF8BOM.NewDecoder(), data)
	if err != nil {
		return "", fmt.Errorf("failed to decode text: %w", err)
	}
	return string(decoded), nil
}
