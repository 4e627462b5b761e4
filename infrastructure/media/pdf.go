package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"sync"
	"time"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/webassembly"
)

const (
	defaultDPI           = 110
	instanceWaitTimeout  = 30 * time.Second
	defaultPoolInstances = 2
)

// ErrNotPDF indicates the input is not a PDF document.
var ErrNotPDF = errors.New("not a pdf document")

// PDFRasterizer renders PDF pages to PNG images with a pool of pdfium
// webassembly instances. The pool starts on first use.
type PDFRasterizer struct {
	dpi       int
	instances int

	once    sync.Once
	pool    pdfium.Pool
	initErr error
}

// NewPDFRasterizer creates a rasterizer rendering at dpi with up to
// instances concurrent pdfium workers.
func NewPDFRasterizer(dpi, instances int) *PDFRasterizer {
	if dpi <= 0 {
		dpi = defaultDPI
	}
	if instances <= 0 {
		instances = defaultPoolInstances
	}
	return &PDFRasterizer{dpi: dpi, instances: instances}
}

func (r *PDFRasterizer) init() error {
	r.once.Do(func() {
		r.pool, r.initErr = webassembly.Init(webassembly.Config{
			MinIdle:  1,
			MaxIdle:  r.instances,
			MaxTotal: r.instances,
		})
	})
	return r.initErr
}

// Rasterize renders at most maxPages pages of pdf as PNG images.
func (r *PDFRasterizer) Rasterize(ctx context.Context, pdf []byte, maxPages int) ([][]byte, error) {
	if Sniff(pdf, FormatUnknown) != FormatPDF {
		return nil, ErrNotPDF
	}
	if err := r.init(); err != nil {
		return nil, fmt.Errorf("start pdfium: %w", err)
	}

	instance, err := r.pool.GetInstance(instanceWaitTimeout)
	if err != nil {
		return nil, fmt.Errorf("acquire pdfium instance: %w", err)
	}
	defer func() { _ = instance.Close() }()

	doc, err := instance.OpenDocument(&requests.OpenDocument{File: &pdf})
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer func() {
		_, _ = instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: doc.Document})
	}()

	count, err := instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{Document: doc.Document})
	if err != nil {
		return nil, fmt.Errorf("count pdf pages: %w", err)
	}
	pages := count.PageCount
	if maxPages > 0 && pages > maxPages {
		pages = maxPages
	}

	images := make([][]byte, 0, pages)
	for i := 0; i < pages; i++ {
		if err := ctx.Err(); err != nil {
			return images, err
		}
		img, err := r.renderPage(instance, doc.Document, i)
		if err != nil {
			return images, fmt.Errorf("render page %d: %w", i+1, err)
		}
		images = append(images, img)
	}
	return images, nil
}

func (r *PDFRasterizer) renderPage(instance pdfium.Pdfium, doc references.FPDF_DOCUMENT, index int) ([]byte, error) {
	render, err := instance.RenderPageInDPI(&requests.RenderPageInDPI{
		DPI: r.dpi,
		Page: requests.Page{
			ByIndex: &requests.PageByIndex{Document: doc, Index: index},
		},
	})
	if err != nil {
		return nil, err
	}
	defer render.Cleanup()

	var buf bytes.Buffer
	if err := png.Encode(&buf, render.Result.Image); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Close shuts the pdfium pool down.
func (r *PDFRasterizer) Close() error {
	if r.pool == nil {
		return nil
	}
	return r.pool.Close()
}
