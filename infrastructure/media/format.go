// Package media turns documents and images into text and page images:
// PDF rasterization with pdfium, office document text with tabula and OCR
// with tesseract.
package media

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/yukpo/yukpo/domain"
)

// Format is a sniffed document format.
type Format string

// Format values.
const (
	FormatPDF     Format = "pdf"
	FormatDOCX    Format = "docx"
	FormatXLSX    Format = "xlsx"
	FormatODT     Format = "odt"
	FormatPNG     Format = "png"
	FormatJPEG    Format = "jpeg"
	FormatUnknown Format = ""
)

// Extension returns the file extension for the format, with the dot.
func (f Format) Extension() string {
	if f == FormatUnknown {
		return ""
	}
	return "." + string(f)
}

// Sniff detects the format from magic bytes. Zip containers are told apart
// by their member names; hint resolves a container that cannot be
// identified.
func Sniff(data []byte, hint Format) Format {
	switch {
	case bytes.HasPrefix(data, []byte("%PDF")):
		return FormatPDF
	case bytes.HasPrefix(data, []byte("\x89PNG")):
		return FormatPNG
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return FormatJPEG
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		head := data
		if len(head) > 4096 {
			head = head[:4096]
		}
		switch {
		case bytes.Contains(head, []byte("word/")):
			return FormatDOCX
		case bytes.Contains(head, []byte("xl/")):
			return FormatXLSX
		case bytes.Contains(head, []byte("opendocument.text")):
			return FormatODT
		}
		return hint
	}
	return FormatUnknown
}

// DecodeBase64 decodes standard or data-URL base64 content.
func DecodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ";base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if raw, rawErr := base64.RawStdEncoding.DecodeString(s); rawErr == nil {
			return raw, nil
		}
		return nil, fmt.Errorf("%w: base64: %v", domain.ErrInvalidInput, err)
	}
	return data, nil
}
