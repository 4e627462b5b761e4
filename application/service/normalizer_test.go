package service

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yukpo/yukpo/infrastructure/media"
	"github.com/yukpo/yukpo/internal/config"
	"github.com/yukpo/yukpo/internal/log"
)

type fakeRasterizer struct {
	pages    int
	maxPages int
}

func (f *fakeRasterizer) Rasterize(_ context.Context, _ []byte, maxPages int) ([][]byte, error) {
	f.maxPages = maxPages
	out := make([][]byte, 0, f.pages)
	for range f.pages {
		out = append(out, []byte("\x89PNG page"))
	}
	return out, nil
}

type fakeExtractor struct {
	text   string
	err    error
	format media.Format
}

func (f *fakeExtractor) Extract(_ context.Context, _ []byte, format media.Format) (string, error) {
	f.format = format
	return f.text, f.err
}

func encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func TestNormalizer_TextOnly(t *testing.T) {
	n := NewNormalizer(config.NewMediaConfig(), log.Discard())

	out := n.Normalize(context.Background(), Input{Texte: "  je cherche un plombier  ", Langue: "fr"})

	require.Len(t, out.Artifacts, 1)
	assert.Equal(t, Artifact{Kind: ArtifactText, Content: "je cherche un plombier", Origin: OriginTexte, Language: "fr"}, out.Artifacts[0])
	assert.Empty(t, out.Dropped)
	assert.Equal(t, "je cherche un plombier", out.Text())
	assert.Empty(t, out.Images())
}

func TestNormalizer_ImageWithOCR(t *testing.T) {
	tr := &upperTranslator{}
	n := NewNormalizer(config.NewMediaConfig(), log.Discard(),
		WithOCR(fakeOCR{text: "robe rouge 25 euros"}),
		WithNormalizerTranslator(tr),
	)

	out := n.Normalize(context.Background(), Input{Base64Image: []string{encode("\x89PNG data")}})

	require.Len(t, out.Artifacts, 2)
	assert.Equal(t, ArtifactImage, out.Artifacts[0].Kind)
	assert.Equal(t, encode("\x89PNG data"), out.Artifacts[0].Content)
	assert.Equal(t, OriginOCR, out.Artifacts[1].Origin)
	assert.Equal(t, "robe rouge 25 euros", out.Artifacts[1].Content)
	assert.Equal(t, "fr", out.Artifacts[1].Language)
	assert.Equal(t, int32(1), tr.calls.Load())
	assert.Len(t, out.Images(), 1)
}

func TestNormalizer_OCRFailureKeepsImage(t *testing.T) {
	n := NewNormalizer(config.NewMediaConfig(), log.Discard(), WithOCR(fakeOCR{err: errors.New("no text")}))

	out := n.Normalize(context.Background(), Input{Base64Image: []string{encode("\x89PNG data")}})

	require.Len(t, out.Artifacts, 1)
	assert.Equal(t, ArtifactImage, out.Artifacts[0].Kind)
	assert.Empty(t, out.Dropped)
}

func TestNormalizer_BadBase64Dropped(t *testing.T) {
	n := NewNormalizer(config.NewMediaConfig(), log.Discard())

	out := n.Normalize(context.Background(), Input{Texte: "bonjour", Base64Image: []string{"***"}})

	require.Len(t, out.Artifacts, 1)
	require.Len(t, out.Dropped, 1)
	assert.True(t, strings.HasPrefix(out.Dropped[0], OriginImage+":"))
}

func TestNormalizer_AudioDropped(t *testing.T) {
	n := NewNormalizer(config.NewMediaConfig(), log.Discard())

	out := n.Normalize(context.Background(), Input{AudioBase64: []string{encode("RIFF")}})

	assert.Empty(t, out.Artifacts)
	require.Len(t, out.Dropped, 1)
	assert.Contains(t, out.Dropped[0], "audio transcription is not supported")
}

func TestNormalizer_PDFRasterizedToPages(t *testing.T) {
	r := &fakeRasterizer{pages: 3}
	cfg := config.NewMediaConfig().WithMaxPDFPages(5)
	n := NewNormalizer(cfg, log.Discard(), WithRasterizer(r), WithOCR(fakeOCR{text: "page text"}))

	out := n.Normalize(context.Background(), Input{DocBase64: []string{encode("%PDF-1.7 body")}})

	assert.Equal(t, 5, r.maxPages)
	assert.Len(t, out.Images(), 3)
	assert.Equal(t, "page text\npage text\npage text", out.Text())
	for _, a := range out.Artifacts {
		if a.Kind == ArtifactImage {
			assert.Equal(t, OriginDoc, a.Origin)
		}
	}
}

func TestNormalizer_PDFWithoutRasterizerDropped(t *testing.T) {
	n := NewNormalizer(config.NewMediaConfig(), log.Discard())

	out := n.Normalize(context.Background(), Input{DocBase64: []string{encode("%PDF-1.7 body")}})

	assert.Empty(t, out.Artifacts)
	require.Len(t, out.Dropped, 1)
	assert.Contains(t, out.Dropped[0], "pdf rendering is not available")
}

func TestNormalizer_OfficeDocuments(t *testing.T) {
	ex := &fakeExtractor{text: "prix;quantite\n10;2"}
	n := NewNormalizer(config.NewMediaConfig(), log.Discard(), WithTextExtractor(ex))

	out := n.Normalize(context.Background(), Input{ExcelBase64: []string{encode("PK\x03\x04 xl/workbook.xml")}})

	assert.Equal(t, media.FormatXLSX, ex.format)
	require.Len(t, out.Artifacts, 1)
	assert.Equal(t, OriginExcel, out.Artifacts[0].Origin)
	assert.Equal(t, "prix;quantite\n10;2", out.Artifacts[0].Content)
}

func TestNormalizer_ZipFallsBackToHint(t *testing.T) {
	ex := &fakeExtractor{text: "contenu"}
	n := NewNormalizer(config.NewMediaConfig(), log.Discard(), WithTextExtractor(ex))

	out := n.Normalize(context.Background(), Input{DocBase64: []string{encode("PK\x03\x04 opaque")}})

	assert.Equal(t, media.FormatDOCX, ex.format)
	assert.Equal(t, "contenu", out.Text())
}

func TestNormalizer_DocWithoutExtractorDropped(t *testing.T) {
	n := NewNormalizer(config.NewMediaConfig(), log.Discard())

	out := n.Normalize(context.Background(), Input{DocBase64: []string{encode("PK\x03\x04 word/document.xml")}})

	assert.Empty(t, out.Artifacts)
	require.Len(t, out.Dropped, 1)
	assert.Contains(t, out.Dropped[0], "document extraction is not available")
}

func TestNormalizer_UnknownDocumentDropped(t *testing.T) {
	n := NewNormalizer(config.NewMediaConfig(), log.Discard())

	out := n.Normalize(context.Background(), Input{DocBase64: []string{encode("plain text")}})

	require.Len(t, out.Dropped, 1)
	assert.Contains(t, out.Dropped[0], "unsupported document format")
}

func TestNormalizer_SiteWeb(t *testing.T) {
	n := NewNormalizer(config.NewMediaConfig(), log.Discard())

	out := n.Normalize(context.Background(), Input{SiteWeb: " https://example.org "})

	require.Len(t, out.Artifacts, 1)
	assert.Equal(t, OriginSiteWeb, out.Artifacts[0].Origin)
	assert.Equal(t, "https://example.org", out.Artifacts[0].Content)
}

func TestChunk(t *testing.T) {
	assert.Nil(t, Chunk("   ", 10))
	assert.Equal(t, []string{"court"}, Chunk("court", 10))

	chunks := Chunk("alpha beta gamma delta epsilon", 12)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 12)
		assert.NotEmpty(t, c)
	}
	assert.Equal(t, "alpha beta gamma delta epsilon", strings.Join(chunks, " "))

	long := strings.Repeat("x", 25)
	assert.Equal(t, []string{strings.Repeat("x", 10), strings.Repeat("x", 10), strings.Repeat("x", 5)}, Chunk(long, 10))
}
