package service

import (
	"context"

	"github.com/yukpo/yukpo/infrastructure/media"
)

// Translator detects the language of a text and translates it.
type Translator interface {
	Translate(ctx context.Context, text, target string) (translated string, source string, err error)
}

// PageRasterizer renders PDF pages to PNG images.
type PageRasterizer interface {
	Rasterize(ctx context.Context, pdf []byte, maxPages int) ([][]byte, error)
}

// TextExtractor pulls plain text from office documents.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, format media.Format) (string, error)
}

// ImageReader recognizes text in an image.
type ImageReader interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// translateOrKeep translates text to English when a translator is set. On
// failure the original text is kept.
func translateOrKeep(ctx context.Context, t Translator, text string) (string, string) {
	if t == nil {
		return text, ""
	}
	translated, source, err := t.Translate(ctx, text, "en")
	if err != nil || translated == "" {
		return text, ""
	}
	return translated, source
}
