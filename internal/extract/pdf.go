package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const (
	// maxFormDepth bounds how deep nested Form XObjects are followed.
	maxFormDepth = 8
	// tjWordGap is the TJ displacement, in thousandths of text space,
	// past which a gap reads as a word break.
	tjWordGap = 200
)

// PDFExtractor validates a PDF with pdfcpu and reads its text layer with
// ledongthuc/pdf, decoding glyphs through each font's encoding or ToUnicode
// map and following Form XObjects drawn on the page.
type PDFExtractor struct {
	conf *model.Configuration
}

func NewPDFExtractor() *PDFExtractor {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFExtractor{conf: conf}
}

func (e *PDFExtractor) Extract(ctx context.Context, contentType string, data []byte) (res *Result, err error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}
	// pdfcpu panics on some malformed inputs; surface those as errors.
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("failed to parse PDF: %v", r)
		}
	}()

	pdfCtx, err := api.ReadContext(bytes.NewReader(data), e.conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}
	if err := api.ValidateContext(pdfCtx); err != nil {
		return nil, fmt.Errorf("failed to validate PDF: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF text layer: %w", err)
	}

	pages := make([]string, 0, pdfCtx.PageCount)
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(pageNr)
		if page.V.IsNull() {
			continue
		}
		text, err := PageText(page)
		if err != nil {
			slog.Warn("Partial text extracted from PDF page.", "pageNr", pageNr, "error", err)
		}
		if text != "" {
			pages = append(pages, text)
		}
	}

	slog.Debug("Extracted PDF text.", "pageCount", pdfCtx.PageCount, "pagesWithText", len(pages))
	return &Result{Text: strings.Join(pages, "\n\n"), PageCount: pdfCtx.PageCount}, nil
}

// PageText returns the text shown on one page, one line per baseline.
// Operators the reader cannot interpret stop the walk; the text gathered
// up to that point is returned together with the error.
func PageText(page pdf.Page) (text string, err error) {
	w := &textWriter{}
	defer func() {
		if r := recover(); r != nil {
			text, err = w.String(), fmt.Errorf("failed to interpret page content: %v", r)
		}
	}()
	contents := page.V.Key("Contents")
	if contents.IsNull() {
		return "", nil
	}
	w.walk(contents, page.Resources(), 0)
	return w.String(), nil
}

type textWriter struct {
	sb strings.Builder
}

func (w *textWriter) walk(content, resources pdf.Value, depth int) {
	encoders := map[string]pdf.TextEncoding{}
	var enc pdf.TextEncoding
	lastY, haveY := 0.0, false

	show := func(v pdf.Value) {
		if v.Kind() != pdf.String {
			return
		}
		if enc == nil {
			w.write(v.Text())
			return
		}
		w.write(enc.Decode(v.RawString()))
	}

	pdf.Interpret(content, func(stk *pdf.Stack, op string) {
		args := make([]pdf.Value, stk.Len())
		for i := len(args) - 1; i >= 0; i-- {
			args[i] = stk.Pop()
		}
		last := pdf.Value{}
		if len(args) > 0 {
			last = args[len(args)-1]
		}

		switch op {
		case "Tf":
			if len(args) != 2 {
				return
			}
			name := args[0].Name()
			e, ok := encoders[name]
			if !ok {
				if font := resources.Key("Font").Key(name); !font.IsNull() {
					e = pdf.Font{V: font}.Encoder()
				}
				encoders[name] = e
			}
			enc = e
		case "Tj":
			show(last)
		case "'", `"`:
			w.newline()
			show(last)
		case "TJ":
			for i := 0; i < last.Len(); i++ {
				item := last.Index(i)
				switch item.Kind() {
				case pdf.String:
					show(item)
				case pdf.Integer, pdf.Real:
					if item.Float64() < -tjWordGap {
						w.space()
					}
				}
			}
		case "T*":
			w.newline()
		case "Td", "TD":
			if len(args) == 2 && args[1].Float64() != 0 {
				w.newline()
			}
		case "Tm":
			if len(args) != 6 {
				return
			}
			y := args[5].Float64()
			if haveY && y != lastY {
				w.newline()
			} else if haveY {
				w.space()
			}
			lastY, haveY = y, true
		case "BT":
			haveY = false
		case "ET":
			w.newline()
		case "Do":
			xobj := resources.Key("XObject").Key(last.Name())
			if xobj.Key("Subtype").Name() != "Form" || depth >= maxFormDepth {
				return
			}
			formResources := xobj.Key("Resources")
			if formResources.IsNull() {
				formResources = resources
			}
			w.newline()
			w.walk(xobj, formResources, depth+1)
			w.newline()
		}
	})
}

func (w *textWriter) last() byte {
	s := w.sb.String()
	if s == "" {
		return '\n'
	}
	return s[len(s)-1]
}

func (w *textWriter) write(s string) {
	for _, r := range s {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			continue
		}
		w.sb.WriteRune(r)
	}
}

func (w *textWriter) space() {
	if c := w.last(); c != ' ' && c != '\n' {
		w.sb.WriteByte(' ')
	}
}

func (w *textWriter) newline() {
	if w.last() != '\n' {
		w.sb.WriteByte('\n')
	}
}

// String drops blank lines and trailing spaces.
func (w *textWriter) String() string {
	lines := strings.Split(w.sb.String(), "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.TrimRight(line, " \t"); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
