package document

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectFormat(t *testing.T) {
	t.Parallel()

	cases := map[string]Format{
		"book.pdf":          FormatPDF,
		"Book.PDF":          FormatPDF,
		"notes.docx":        FormatDOCX,
		"novel.epub":        FormatEPUB,
		"dir/readme.v2.txt": FormatTXT,
	}
	for name, want := range cases {
		got, err := DetectFormat(name)
		require.NoError(t, err, name)
		require.Equal(t, want, got, name)
	}

	for _, name := range []string{"song.mp3", "legacy.doc", "noext", "archive.txt.zip"} {
		_, err := DetectFormat(name)
		var unsupported *UnsupportedFormatError
		require.True(t, errors.As(err, &unsupported), name)
		require.Equal(t, name, unsupported.Name)
	}
}

func TestExtractTXT(t *testing.T) {
	t.Parallel()

	text, err := ExtractFile("a.txt", []byte("Line one.\nLine  two\t!"))
	require.NoError(t, err)
	require.Equal(t, "Line one.\nLine  two\t!", text)

	text, err = ExtractFile("bom.txt", append([]byte{0xEF, 0xBB, 0xBF}, []byte("Hello")...))
	require.NoError(t, err)
	require.Equal(t, "Hello", text)

	_, err = ExtractFile("bad.txt", []byte{'o', 'k', 0xff, 0xfe})
	var extractErr *ExtractionError
	require.True(t, errors.As(err, &extractErr))
	require.Equal(t, FormatTXT, extractErr.Format)
	require.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestExtractDOCX(t *testing.T) {
	t.Parallel()

	body := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">Second </w:t></w:r><w:r><w:t>paragraph</w:t></w:r><w:r><w:tab/><w:t>tabbed</w:t></w:r></w:p>
<w:p/>
<w:tbl><w:tr><w:tc><w:p><w:r><w:t>Cell</w:t></w:r></w:p></w:tc></w:tr></w:tbl>
</w:body>
</w:document>`
	data := buildZip(t, map[string]string{
		"[Content_Types].xml": `<Types/>`,
		"word/document.xml":   body,
	})

	text, err := ExtractFile("doc.docx", data)
	require.NoError(t, err)
	require.Equal(t, "First paragraph.\nSecond paragraph\ttabbed\n\nCell\n", text)
}

func TestExtractDOCXMalformed(t *testing.T) {
	t.Parallel()

	cases := map[string][]byte{
		"not a zip": []byte("PK? nope"),
		"missing body": buildZip(t, map[string]string{
			"word/styles.xml": "<w:styles/>",
		}),
		"bad xml": buildZip(t, map[string]string{
			"word/document.xml": `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:p>text</w:r></w:document>`,
		}),
	}
	for name, data := range cases {
		_, err := ExtractFile("x.docx", data)
		var extractErr *ExtractionError
		require.True(t, errors.As(err, &extractErr), name)
		require.ErrorIs(t, err, ErrCorrupt, name)
	}
}

func TestExtractEPUB(t *testing.T) {
	t.Parallel()

	data := buildEPUB(t, map[string]string{
		"OEBPS/chapter 1.xhtml": `<html xmlns="http://www.w3.org/1999/xhtml"><head><title>One</title></head>
<body><p>Call me <b>Ishmael</b>.</p></body></html>`,
		"OEBPS/text/ch2.xhtml": `<html xmlns="http://www.w3.org/1999/xhtml"><body><h1>Two</h1><p>It was a dark night.</p></body></html>`,
	})

	text, err := ExtractFile("book.epub", data)
	require.NoError(t, err)
	require.Contains(t, text, "Call me Ishmael.")
	require.Contains(t, text, "It was a dark night.")
	require.NotContains(t, text, "<p>")
	require.Less(t, strings.Index(text, "Ishmael"), strings.Index(text, "dark night"))
}

func TestExtractEPUBMissingContent(t *testing.T) {
	t.Parallel()

	data := buildEPUB(t, map[string]string{
		"OEBPS/chapter 1.xhtml": `<html><body>only one</body></html>`,
	})
	_, err := ExtractFile("book.epub", data)
	require.ErrorIs(t, err, ErrCorrupt)

	noContainer := buildZip(t, map[string]string{"mimetype": "application/epub+zip"})
	_, err = ExtractFile("book.epub", noContainer)
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestExtractPDF(t *testing.T) {
	t.Parallel()

	data := buildPDF([]string{"Hello from page one.", "", "Third page text."})

	text, err := ExtractFile("book.pdf", data)
	require.NoError(t, err)
	require.Contains(t, text, "Hello from page one.")
	require.Contains(t, text, "Third page text.")
	require.Less(t, strings.Index(text, "page one"), strings.Index(text, "Third page"))
	require.GreaterOrEqual(t, strings.Count(text, "\n"), 3)
}

func TestExtractPDFCorrupt(t *testing.T) {
	t.Parallel()

	_, err := ExtractFile("book.pdf", []byte("this is not a pdf at all"))
	var extractErr *ExtractionError
	require.True(t, errors.As(err, &extractErr))
	require.Equal(t, FormatPDF, extractErr.Format)
}

func TestExtractUnsupportedFormatValue(t *testing.T) {
	t.Parallel()

	_, err := Extract(Document{Name: "x.rtf", Format: Format("rtf")})
	var unsupported *UnsupportedFormatError
	require.True(t, errors.As(err, &unsupported))
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func buildEPUB(t *testing.T, chapters map[string]string) []byte {
	t.Helper()

	files := map[string]string{
		"mimetype": "application/epub+zip",
		"META-INF/container.xml": `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles><rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/></rootfiles>
</container>`,
		"OEBPS/content.opf": `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <manifest>
    <item id="css" href="style.css" media-type="text/css"/>
    <item id="c1" href="chapter%201.xhtml" media-type="application/xhtml+xml"/>
    <item id="c2" href="text/ch2.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine><itemref idref="c1"/><itemref idref="c2"/></spine>
</package>`,
		"OEBPS/style.css": "p { margin: 0 }",
	}
	for name, content := range chapters {
		files[name] = content
	}
	return buildZip(t, files)
}

// buildPDF writes a minimal PDF with one page per entry; an empty entry
// produces a page without a content stream.
func buildPDF(pages []string) []byte {
	var (
		buf     bytes.Buffer
		offsets []int
	)
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	obj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	for i, p := range pages {
		contents := ""
		if p != "" {
			contents = fmt.Sprintf(" /Contents %d 0 R", 5+2*i)
		}
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >>%s >>", contents))
		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", p)
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}
