// Package extracttest builds small PDF fixtures for tests.
package extracttest

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf16"
)

const helvetica = "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>"

// MinimalPDF returns a valid single-font PDF with one page per argument.
// Each page argument is split on "\n" and every line is drawn with its own
// Tj operator, one line below the previous one.
func MinimalPDF(pages ...string) []byte {
	if len(pages) == 0 {
		pages = []string{""}
	}
	contents := make([]string, len(pages))
	for i, page := range pages {
		contents[i] = lines(page)
	}
	return ContentPDF(contents...)
}

// ContentPDF returns a PDF with one page per raw content stream. Every page
// has the WinAnsi Helvetica font available as /F1.
func ContentPDF(contents ...string) []byte {
	b := newBuilder()
	font := b.add(helvetica)
	for _, content := range contents {
		b.page(content, fmt.Sprintf("<< /Font << /F1 %d 0 R >> >>", font))
	}
	return b.bytes()
}

// Type0PDF returns a single-page PDF whose text is drawn with a Type0
// Identity-H font. The n-th rune of text is shown as the two-byte glyph
// code n+1, and only the font's ToUnicode CMap maps the codes back to runes.
func Type0PDF(text string) []byte {
	var codes, bfchar strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		code := i + 1
		fmt.Fprintf(&codes, "%04X", code)
		fmt.Fprintf(&bfchar, "<%04X> <%s>\n", code, utf16Hex(r))
	}
	cmap := fmt.Sprintf("begincmap\n1 begincodespacerange\n<0000> <FFFF>\nendcodespacerange\n%d beginbfchar\n%sendbfchar\nendcmap\n",
		len(runes), bfchar.String())

	b := newBuilder()
	toUnicode := b.add(stream("", cmap))
	descriptor := b.add("<< /Type /FontDescriptor /FontName /NotoSans /Flags 32 /FontBBox [0 -200 1000 800] /ItalicAngle 0 /Ascent 800 /Descent -200 /CapHeight 700 /StemV 80 >>")
	cidFont := b.add(fmt.Sprintf("<< /Type /Font /Subtype /CIDFontType2 /BaseFont /NotoSans /CIDSystemInfo << /Registry (Adobe) /Ordering (Identity) /Supplement 0 >> /FontDescriptor %d 0 R /DW 1000 >>", descriptor))
	font := b.add(fmt.Sprintf("<< /Type /Font /Subtype /Type0 /BaseFont /NotoSans /Encoding /Identity-H /DescendantFonts [%d 0 R] /ToUnicode %d 0 R >>", cidFont, toUnicode))
	b.page(fmt.Sprintf("BT\n/F1 12 Tf\n72 720 Td\n<%s> Tj\nET\n", codes.String()),
		fmt.Sprintf("<< /Font << /F1 %d 0 R >> >>", font))
	return b.bytes()
}

// FormXObjectPDF returns a single-page PDF whose page content only paints a
// Form XObject, and the form draws the given lines.
func FormXObjectPDF(text string) []byte {
	b := newBuilder()
	font := b.add(helvetica)
	form := b.add(stream(
		fmt.Sprintf("/Type /XObject /Subtype /Form /BBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >>", font),
		lines(text)))
	b.page("q\n1 0 0 1 0 0 cm\n/X1 Do\nQ\n", fmt.Sprintf("<< /XObject << /X1 %d 0 R >> >>", form))
	return b.bytes()
}

func lines(page string) string {
	var content strings.Builder
	content.WriteString("BT\n/F1 12 Tf\n72 720 Td\n")
	for _, line := range strings.Split(page, "\n") {
		fmt.Fprintf(&content, "(%s) Tj\n0 -14 Td\n", escape(line))
	}
	content.WriteString("ET\n")
	return content.String()
}

func stream(dict, data string) string {
	return fmt.Sprintf("<< %s /Length %d >>\nstream\n%sendstream", dict, len(data), data)
}

func utf16Hex(r rune) string {
	var sb strings.Builder
	for _, u := range utf16.Encode([]rune{r}) {
		fmt.Fprintf(&sb, "%04X", u)
	}
	return sb.String()
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

// builder lays out numbered objects. Object 1 is the catalog and object 2
// the page tree.
type builder struct {
	objects []string
	kids    []string
}

func newBuilder() *builder {
	return &builder{objects: []string{"", ""}}
}

func (b *builder) add(obj string) int {
	b.objects = append(b.objects, obj)
	return len(b.objects)
}

func (b *builder) page(content, resources string) {
	contentID := b.add(stream("", content))
	pageID := b.add(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources %s /Contents %d 0 R >>",
		resources, contentID))
	b.kids = append(b.kids, fmt.Sprintf("%d 0 R", pageID))
}

func (b *builder) bytes() []byte {
	b.objects[0] = "<< /Type /Catalog /Pages 2 0 R >>"
	b.objects[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(b.kids, " "), len(b.kids))

	count := len(b.objects)
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, count+1)
	for id := 1; id <= count; id++ {
		offsets[id] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", id, b.objects[id-1])
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", count+1)
	buf.WriteString("0000000000 65535 f\r\n")
	for id := 1; id <= count; id++ {
		fmt.Fprintf(&buf, "%010d 00000 n\r\n", offsets[id])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", count+1, xref)
	return buf.Bytes()
}
