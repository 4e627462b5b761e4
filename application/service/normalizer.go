package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/yukpo/yukpo/infrastructure/media"
	"github.com/yukpo/yukpo/internal/config"
	"github.com/yukpo/yukpo/internal/log"
)

// ArtifactKind is the modality of a normalized artifact.
type ArtifactKind string

// ArtifactKind values.
const (
	ArtifactText  ArtifactKind = "texte"
	ArtifactImage ArtifactKind = "image"
)

// Artifact origins.
const (
	OriginTexte   = "texte"
	OriginImage   = "base64_image"
	OriginDoc     = "doc_base64"
	OriginExcel   = "excel_base64"
	OriginSiteWeb = "site_web"
	OriginOCR     = "ocr"
	OriginAudio   = "audio_base64"
)

// Artifact is one normalized piece of a request. Image content is base64.
type Artifact struct {
	Kind     ArtifactKind
	Content  string
	Origin   string
	Language string
}

// Normalized is the list of artifacts produced from one input, with the
// modalities that could not be used.
type Normalized struct {
	Artifacts []Artifact
	Dropped   []string
}

// Text joins the text artifacts.
func (n Normalized) Text() string {
	parts := make([]string, 0, len(n.Artifacts))
	for _, a := range n.Artifacts {
		if a.Kind == ArtifactText {
			parts = append(parts, a.Content)
		}
	}
	return strings.Join(parts, "\n")
}

// Images returns the base64 image artifacts.
func (n Normalized) Images() []string {
	var images []string
	for _, a := range n.Artifacts {
		if a.Kind == ArtifactImage {
			images = append(images, a.Content)
		}
	}
	return images
}

func (n *Normalized) drop(modality, reason string) {
	n.Dropped = append(n.Dropped, fmt.Sprintf("%s: %s", modality, reason))
}

// Normalizer turns a multimodal input into text and image artifacts.
type Normalizer struct {
	rasterizer PageRasterizer
	extractor  TextExtractor
	ocr        ImageReader
	translator Translator
	maxPages   int
	chunkSize  int
	logger     *slog.Logger
}

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithRasterizer enables PDF page rendering.
func WithRasterizer(r PageRasterizer) NormalizerOption {
	return func(n *Normalizer) { n.rasterizer = r }
}

// WithTextExtractor enables office document extraction.
func WithTextExtractor(e TextExtractor) NormalizerOption {
	return func(n *Normalizer) { n.extractor = e }
}

// WithOCR enables text recognition on images.
func WithOCR(r ImageReader) NormalizerOption {
	return func(n *Normalizer) { n.ocr = r }
}

// WithNormalizerTranslator translates OCR text to English.
func WithNormalizerTranslator(t Translator) NormalizerOption {
	return func(n *Normalizer) { n.translator = t }
}

// NewNormalizer creates a Normalizer. Without adapters the corresponding
// modalities are dropped with a warning.
func NewNormalizer(cfg config.MediaConfig, logger *slog.Logger, opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{
		maxPages:  cfg.MaxPDFPages(),
		chunkSize: cfg.TextChunkSize(),
		logger:    log.OrDefault(logger),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize processes every modality of in. A modality that fails is
// dropped and reported; the others still produce artifacts.
func (n *Normalizer) Normalize(ctx context.Context, in Input) Normalized {
	var out Normalized

	for _, chunk := range Chunk(in.Texte, n.chunkSize) {
		out.Artifacts = append(out.Artifacts, Artifact{Kind: ArtifactText, Content: chunk, Origin: OriginTexte, Language: in.Langue})
	}

	for _, encoded := range in.Base64Image {
		data, err := media.DecodeBase64(encoded)
		if err != nil {
			out.drop(OriginImage, err.Error())
			continue
		}
		n.image(ctx, &out, data, OriginImage)
	}

	for _, encoded := range in.DocBase64 {
		n.document(ctx, &out, encoded, OriginDoc, media.FormatDOCX)
	}
	for _, encoded := range in.ExcelBase64 {
		n.document(ctx, &out, encoded, OriginExcel, media.FormatXLSX)
	}

	if len(in.AudioBase64) > 0 {
		out.drop(OriginAudio, "audio transcription is not supported")
	}

	if site := strings.TrimSpace(in.SiteWeb); site != "" {
		out.Artifacts = append(out.Artifacts, Artifact{Kind: ArtifactText, Content: site, Origin: OriginSiteWeb})
	}

	for _, d := range out.Dropped {
		n.logger.WarnContext(ctx, "input modality dropped", slog.String("detail", d))
	}
	return out
}

// image adds an image artifact plus its recognized text.
func (n *Normalizer) image(ctx context.Context, out *Normalized, data []byte, origin string) {
	out.Artifacts = append(out.Artifacts, Artifact{
		Kind:    ArtifactImage,
		Content: base64.StdEncoding.EncodeToString(data),
		Origin:  origin,
	})
	if n.ocr == nil {
		return
	}
	text, err := n.ocr.Recognize(ctx, data)
	if err != nil {
		n.logger.WarnContext(ctx, "ocr failed", slog.String("origin", origin), slog.String("error", err.Error()))
		return
	}
	if strings.TrimSpace(text) == "" {
		return
	}
	translated, source := translateOrKeep(ctx, n.translator, text)
	for _, chunk := range Chunk(translated, n.chunkSize) {
		out.Artifacts = append(out.Artifacts, Artifact{Kind: ArtifactText, Content: chunk, Origin: OriginOCR, Language: source})
	}
}

// document rasterizes PDFs into page images and extracts text from office
// formats.
func (n *Normalizer) document(ctx context.Context, out *Normalized, encoded, origin string, hint media.Format) {
	data, err := media.DecodeBase64(encoded)
	if err != nil {
		out.drop(origin, err.Error())
		return
	}

	switch format := media.Sniff(data, hint); format {
	case media.FormatPDF:
		if n.rasterizer == nil {
			out.drop(origin, "pdf rendering is not available")
			return
		}
		pages, err := n.rasterizer.Rasterize(ctx, data, n.maxPages)
		if err != nil {
			out.drop(origin, err.Error())
			return
		}
		for _, page := range pages {
			n.image(ctx, out, page, origin)
		}
	case media.FormatPNG, media.FormatJPEG:
		n.image(ctx, out, data, origin)
	case media.FormatDOCX, media.FormatXLSX, media.FormatODT:
		if n.extractor == nil {
			out.drop(origin, "document extraction is not available")
			return
		}
		text, err := n.extractor.Extract(ctx, data, format)
		if err != nil {
			out.drop(origin, err.Error())
			return
		}
		for _, chunk := range Chunk(text, n.chunkSize) {
			out.Artifacts = append(out.Artifacts, Artifact{Kind: ArtifactText, Content: chunk, Origin: origin})
		}
	default:
		out.drop(origin, "unsupported document format")
	}
}

// Chunk splits text into pieces of at most size characters, cutting on
// whitespace when possible. Blank text yields nothing.
func Chunk(text string, size int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 || utf8.RuneCountInString(text) <= size {
		return []string{text}
	}

	var chunks []string
	runes := []rune(text)
	for len(runes) > 0 {
		if len(runes) <= size {
			if piece := strings.TrimSpace(string(runes)); piece != "" {
				chunks = append(chunks, piece)
			}
			break
		}
		cut := size
		for i := size; i > size/2; i-- {
			if runes[i] == ' ' || runes[i] == '\n' || runes[i] == '\t' {
				cut = i
				break
			}
		}
		if piece := strings.TrimSpace(string(runes[:cut])); piece != "" {
			chunks = append(chunks, piece)
		}
		runes = runes[cut:]
	}
	return chunks
}
