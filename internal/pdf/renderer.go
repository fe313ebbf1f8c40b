// Package pdf rasterises PDF pages with MuPDF via go-fitz.
package pdf

import (
	"context"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"

	"github.com/gen2brain/go-fitz"

	"github.com/spherical/pdf2md/internal/domain"
)

// DefaultQuality is the JPEG quality used for rendered pages
const DefaultQuality = 85

// Renderer implements domain.PageRenderer using go-fitz. Page images live in
// a temp directory until Cleanup.
type Renderer struct {
	mu        sync.Mutex
	quality   int
	tempDir   string
	passes    int
	validator *Validator
}

var _ domain.PageRenderer = (*Renderer)(nil)

// NewRenderer creates a new PDF renderer; quality <= 0 selects DefaultQuality
func NewRenderer(quality int) *Renderer {
	if quality <= 0 {
		quality = DefaultQuality
	}
	return &Renderer{
		quality:   quality,
		validator: NewValidator(),
	}
}

// Validate implements domain.PageRenderer
func (r *Renderer) Validate(path string) error {
	return r.validator.ValidatePDFPath(path)
}

// Render converts every page of the PDF at path into a JPG at the given DPI.
// A document without pages yields an empty slice.
func (r *Renderer) Render(ctx context.Context, path string, dpi float64) ([]domain.Page, error) {
	if err := r.validator.ValidateDPI(dpi); err != nil {
		return nil, err
	}
	if err := r.validator.ValidateQuality(r.quality); err != nil {
		return nil, err
	}

	doc, err := fitz.New(path)
	if err != nil {
		return nil, domain.RenderingError(fmt.Sprintf("failed to open PDF %s", path), err)
	}
	defer doc.Close()

	passDir, err := r.newPassDir(dpi)
	if err != nil {
		return nil, err
	}

	pageCount := doc.NumPage()
	pages := make([]domain.Page, 0, pageCount)

	for pageNum := 0; pageNum < pageCount; pageNum++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		img, err := doc.ImageDPI(pageNum, dpi)
		if err != nil {
			return nil, domain.RenderingError(fmt.Sprintf("failed to render page %d", pageNum+1), err)
		}

		outputPath := filepath.Join(passDir, fmt.Sprintf("page_%04d.jpg", pageNum+1))
		outputFile, err := os.Create(outputPath)
		if err != nil {
			return nil, domain.RenderingError(fmt.Sprintf("failed to create image file for page %d", pageNum+1), err)
		}

		err = jpeg.Encode(outputFile, img, &jpeg.Options{Quality: r.quality})
		outputFile.Close()
		if err != nil {
			return nil, domain.RenderingError(fmt.Sprintf("failed to encode page %d as JPG", pageNum+1), err)
		}

		bounds := img.Bounds()
		pages = append(pages, domain.Page{
			Index:     pageNum,
			ImagePath: outputPath,
			Width:     bounds.Dx(),
			Height:    bounds.Dy(),
			DPI:       dpi,
		})
	}

	return pages, nil
}

// newPassDir gives each Render call its own directory so a probe pass and a
// full pass never share file names.
func (r *Renderer) newPassDir(dpi float64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tempDir == "" {
		tempDir, err := os.MkdirTemp("", "pdf2md-*")
		if err != nil {
			return "", domain.RenderingError("failed to create temp directory", err)
		}
		r.tempDir = tempDir
	}

	r.passes++
	dir := filepath.Join(r.tempDir, fmt.Sprintf("pass_%02d_%gdpi", r.passes, dpi))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", domain.RenderingError("failed to create render directory", err)
	}
	return dir, nil
}

// Cleanup removes all rendered images
func (r *Renderer) Cleanup() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tempDir == "" {
		return nil
	}
	err := os.RemoveAll(r.tempDir)
	r.tempDir = ""
	r.passes = 0
	if err != nil {
		return fmt.Errorf("cleanup errors: %w", err)
	}
	return nil
}
