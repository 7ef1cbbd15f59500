package raster

import (
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/gen2brain/go-fitz"
	"github.com/ocrly/backend/internal/infrastructure/logger"
)

var ErrDocumentRead = errors.New("raster: cannot read document")

// Pages are rendered at twice the native page size. PDF native resolution
// is 72 DPI, so 2.0x maps to 144 DPI.
const renderDPI = 144

// FitzRasterizer converts documents to page images using MuPDF.
type FitzRasterizer struct {
	log *logger.Logger
}

func NewFitzRasterizer(log *logger.Logger) *FitzRasterizer {
	return &FitzRasterizer{log: log}
}

// Pages renders every page of the document at docPath into outDir as
// page_<n>.png, numbered from 0, and returns the paths in page order.
// Partially written pages are left on disk; the caller owns outDir.
func (r *FitzRasterizer) Pages(docPath, outDir string) ([]string, error) {
	doc, err := fitz.New(docPath)
	if err != nil {
		r.log.Errorw("raster_open_failed", "path", docPath, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDocumentRead, err)
	}
	defer doc.Close()

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocumentRead, err)
	}

	pageCount := doc.NumPage()
	paths := make([]string, 0, pageCount)

	for pageNum := 0; pageNum < pageCount; pageNum++ {
		img, err := doc.ImageDPI(pageNum, renderDPI)
		if err != nil {
			r.log.Errorw("raster_page_failed", "path", docPath, "page", pageNum, "error", err)
			return nil, fmt.Errorf("%w: page %d: %v", ErrDocumentRead, pageNum, err)
		}

		imgPath := filepath.Join(outDir, fmt.Sprintf("page_%d.png", pageNum))
		f, err := os.Create(imgPath)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrDocumentRead, pageNum, err)
		}
		err = png.Encode(f, img)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrDocumentRead, pageNum, err)
		}

		paths = append(paths, imgPath)
	}

	r.log.Infow("raster_ok", "path", docPath, "pages", pageCount, "out_dir", outDir)
	return paths, nil
}
