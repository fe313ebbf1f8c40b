package pdf

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf2md/internal/domain"
	"github.com/spherical/pdf2md/internal/pdf/pdftest"
)

func writeTestPDF(t *testing.T, pages int, widthPt, heightPt int) string {
	t.Helper()
	return pdftest.Write(t, t.TempDir(), "fixture.pdf", pages, widthPt, heightPt)
}

func TestRenderer_Render(t *testing.T) {
	path := writeTestPDF(t, 3, 144, 72)
	r := NewRenderer(0)
	t.Cleanup(func() { _ = r.Cleanup() })

	pages, err := r.Render(context.Background(), path, 72)
	require.NoError(t, err)
	require.Len(t, pages, 3)

	for i, p := range pages {
		assert.Equal(t, i, p.Index)
		assert.Equal(t, float64(72), p.DPI)
		assert.InDelta(t, 144, p.Width, 2)
		assert.InDelta(t, 72, p.Height, 2)
		assert.FileExists(t, p.ImagePath)
	}

	// Doubling the resolution quadruples the area.
	hi, err := r.Render(context.Background(), path, 144)
	require.NoError(t, err)
	require.Len(t, hi, 3)
	assert.InDelta(t, 288, hi[0].Width, 2)
	assert.NotEqual(t, pages[0].ImagePath, hi[0].ImagePath, "passes must not share files")

	require.NoError(t, r.Cleanup())
	assert.NoFileExists(t, pages[0].ImagePath)
	assert.NoFileExists(t, hi[0].ImagePath)
}

func TestRenderer_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("this is not a pdf"), 0o644))

	r := NewRenderer(0)
	t.Cleanup(func() { _ = r.Cleanup() })

	_, err := r.Render(context.Background(), path, 72)
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeRendering, domain.TypeOf(err))
}

func TestRenderer_InvalidDPI(t *testing.T) {
	r := NewRenderer(0)
	_, err := r.Render(context.Background(), "unused.pdf", 0)
	assert.True(t, domain.IsType(err, domain.ErrorTypeRendering))
}

func TestRenderer_Cancelled(t *testing.T) {
	path := writeTestPDF(t, 2, 72, 72)
	r := NewRenderer(0)
	t.Cleanup(func() { _ = r.Cleanup() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Render(ctx, path, 72)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRenderer_CleanupIdempotent(t *testing.T) {
	r := NewRenderer(0)
	assert.NoError(t, r.Cleanup())
	assert.NoError(t, r.Cleanup())
}

func TestValidator_ValidatePDFPath(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "doc.pdf")
	require.NoError(t, os.WriteFile(valid, []byte("%PDF-1.4"), 0o644))
	upper := filepath.Join(dir, "DOC.PDF")
	require.NoError(t, os.WriteFile(upper, []byte("%PDF-1.4"), 0o644))
	text := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(text, []byte("hi"), 0o644))

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"valid", valid, false},
		{"upper-case extension", upper, false},
		{"empty", "  ", true},
		{"missing", filepath.Join(dir, "missing.pdf"), true},
		{"directory", dir, true},
		{"wrong extension", text, true},
	}

	v := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidatePDFPath(tt.path)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, domain.ErrorTypeInput, domain.TypeOf(err))
		})
	}
}

func TestValidator_ValidateQuality(t *testing.T) {
	v := NewValidator()
	assert.NoError(t, v.ValidateQuality(1))
	assert.NoError(t, v.ValidateQuality(100))
	assert.Error(t, v.ValidateQuality(0))
	assert.Error(t, v.ValidateQuality(101))
}
