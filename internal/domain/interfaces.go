package domain

import "context"

// PageRenderer rasterises the pages of a document
type PageRenderer interface {
	// Validate checks that path points at a readable document before any
	// rendering happens
	Validate(path string) error

	// Render turns every page of the document into an image at the given DPI
	Render(ctx context.Context, path string, dpi float64) ([]Page, error)

	// Cleanup removes temporary files created during rendering
	Cleanup() error
}

// ContentGenerator turns a batch of page images into Markdown
type ContentGenerator interface {
	// Generate must accept a single page or many; an empty batch yields ""
	Generate(ctx context.Context, pages []Page) (string, error)
}

// CostEstimator assigns an abstract cost (roughly, model tokens) to pages.
// Implementations must be deterministic, side-effect free, return at least 1
// and be monotonically non-decreasing in the rendered pixel area.
type CostEstimator interface {
	Estimate(pages []Page) int
}
