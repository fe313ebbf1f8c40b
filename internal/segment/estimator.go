// Package segment decides how a rendered document is cut into cost-bounded
// sections.
package segment

import "github.com/spherical/pdf2md/internal/domain"

// DefaultPixelsPerUnit is the pixel area that counts as one unit of cost
const DefaultPixelsPerUnit = 100

// PixelAreaEstimator approximates generation cost from the total pixel area of
// the pages: area / PixelsPerUnit, floored, never below 1.
type PixelAreaEstimator struct {
	PixelsPerUnit int
}

// NewPixelAreaEstimator returns the default area heuristic
func NewPixelAreaEstimator() PixelAreaEstimator {
	return PixelAreaEstimator{PixelsPerUnit: DefaultPixelsPerUnit}
}

// Estimate implements domain.CostEstimator
func (e PixelAreaEstimator) Estimate(pages []domain.Page) int {
	per := int64(e.PixelsPerUnit)
	if per <= 0 {
		per = DefaultPixelsPerUnit
	}

	var area int64
	for _, p := range pages {
		area += p.Area()
	}

	cost := area / per
	if cost < 1 {
		return 1
	}
	return int(cost)
}

// EstimatorFunc adapts a plain function to domain.CostEstimator
type EstimatorFunc func(pages []domain.Page) int

// Estimate implements domain.CostEstimator
func (f EstimatorFunc) Estimate(pages []domain.Page) int {
	return f(pages)
}

var (
	_ domain.CostEstimator = PixelAreaEstimator{}
	_ domain.CostEstimator = EstimatorFunc(nil)
)
