// Package document extracts raw text from uploaded books.
//
// Supported formats are resolved from the file extension alone:
//   - .pdf  page text in document order, one page per line
//   - .docx paragraph text from word/document.xml, one paragraph per line
//   - .epub every XHTML content document of the package, markup stripped
//   - .txt  UTF-8 text, verbatim
package document

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format tags the container a Document was declared as.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatEPUB Format = "epub"
	FormatTXT  Format = "txt"
)

// SupportedFormats lists every format Extract accepts.
func SupportedFormats() []Format {
	return []Format{FormatPDF, FormatDOCX, FormatEPUB, FormatTXT}
}

// Document is an uploaded file awaiting extraction.
type Document struct {
	Name   string
	Format Format
	Data   []byte
}

// DetectFormat resolves a format from the file name's extension.
func DetectFormat(name string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".pdf":
		return FormatPDF, nil
	case ".docx":
		return FormatDOCX, nil
	case ".epub":
		return FormatEPUB, nil
	case ".txt":
		return FormatTXT, nil
	default:
		return "", &UnsupportedFormatError{Name: name, Extension: ext}
	}
}

// New tags data with the format implied by name.
func New(name string, data []byte) (Document, error) {
	format, err := DetectFormat(name)
	if err != nil {
		return Document{}, err
	}
	return Document{Name: name, Format: format, Data: data}, nil
}

// Extract returns the raw text of doc.
func Extract(doc Document) (string, error) {
	var (
		text string
		err  error
	)
	switch doc.Format {
	case FormatPDF:
		text, err = extractPDF(doc.Data)
	case FormatDOCX:
		text, err = extractDOCX(doc.Data)
	case FormatEPUB:
		text, err = extractEPUB(doc.Data)
	case FormatTXT:
		text, err = extractTXT(doc.Data)
	default:
		return "", &UnsupportedFormatError{Name: doc.Name, Extension: "." + string(doc.Format)}
	}
	if err != nil {
		return "", &ExtractionError{Format: doc.Format, Err: err}
	}
	return text, nil
}

// ExtractFile detects the format of name and extracts data in one step.
func ExtractFile(name string, data []byte) (string, error) {
	doc, err := New(name, data)
	if err != nil {
		return "", err
	}
	text, err := Extract(doc)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", name, err)
	}
	return text, nil
}
