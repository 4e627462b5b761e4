package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/tsawler/tabula"

	"github.com/yukpo/yukpo/internal/log"
)

// DocumentExtractor pulls plain text out of office documents and
// spreadsheets with tabula.
type DocumentExtractor struct {
	tempDir string
	logger  *slog.Logger
}

// NewDocumentExtractor creates an extractor staging files in tempDir, or
// the system temp directory when empty.
func NewDocumentExtractor(tempDir string, logger *slog.Logger) *DocumentExtractor {
	return &DocumentExtractor{tempDir: tempDir, logger: log.OrDefault(logger)}
}

// Extract returns the text of data. tabula reads from disk, so the content
// is staged in a temporary file named with the format's extension.
func (e *DocumentExtractor) Extract(ctx context.Context, data []byte, format Format) (string, error) {
	if format == FormatUnknown {
		return "", fmt.Errorf("extract text: unknown document format")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f, err := os.CreateTemp(e.tempDir, "yukpo-doc-*"+format.Extension())
	if err != nil {
		return "", fmt.Errorf("stage document: %w", err)
	}
	path := f.Name()
	defer func() { _ = os.Remove(path) }()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("stage document: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("stage document: %w", err)
	}

	text, warnings, err := tabula.Open(path).Text()
	if err != nil {
		return "", fmt.Errorf("extract %s text: %w", format, err)
	}
	if len(warnings) > 0 {
		e.logger.DebugContext(ctx, "document extracted with warnings",
			slog.String("format", string(format)),
			slog.Int("warnings", len(warnings)),
		)
	}
	return strings.TrimSpace(text), nil
}
