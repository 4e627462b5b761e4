package media

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yukpo/yukpo/domain"
)

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		hint Format
		want Format
	}{
		{"pdf", []byte("%PDF-1.7\n..."), FormatUnknown, FormatPDF},
		{"png", []byte("\x89PNG\r\n\x1a\n"), FormatUnknown, FormatPNG},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0}, FormatUnknown, FormatJPEG},
		{"docx", []byte("PK\x03\x04....word/document.xml"), FormatUnknown, FormatDOCX},
		{"xlsx", []byte("PK\x03\x04....xl/workbook.xml"), FormatUnknown, FormatXLSX},
		{"zip uses hint", []byte("PK\x03\x04...."), FormatXLSX, FormatXLSX},
		{"text", []byte("hello"), FormatDOCX, FormatUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sniff(tt.data, tt.hint))
		})
	}
}

func TestDecodeBase64(t *testing.T) {
	raw := []byte("%PDF-1.4")
	enc := base64.StdEncoding.EncodeToString(raw)

	got, err := DecodeBase64(enc)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	got, err = DecodeBase64("data:application/pdf;base64," + enc)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	_, err = DecodeBase64("not base64!!")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestFormatExtension(t *testing.T) {
	assert.Equal(t, ".docx", FormatDOCX.Extension())
	assert.Equal(t, "", FormatUnknown.Extension())
}

func TestPDFRasterizer_RejectsNonPDF(t *testing.T) {
	r := NewPDFRasterizer(0, 0)

	_, err := r.Rasterize(context.Background(), []byte("PK\x03\x04"), 5)

	assert.ErrorIs(t, err, ErrNotPDF)
	assert.NoError(t, r.Close())
}

func TestDocumentExtractor_UnknownFormat(t *testing.T) {
	e := NewDocumentExtractor(t.TempDir(), nil)

	_, err := e.Extract(context.Background(), []byte("x"), FormatUnknown)

	assert.Error(t, err)
}
