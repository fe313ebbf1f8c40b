package segment

import "github.com/spherical/pdf2md/internal/domain"

// Segmenter partitions pages into contiguous sections whose estimated cost
// stays within a budget.
type Segmenter struct {
	estimator domain.CostEstimator
}

// New creates a Segmenter; a nil estimator falls back to the pixel-area heuristic
func New(estimator domain.CostEstimator) *Segmenter {
	if estimator == nil {
		estimator = NewPixelAreaEstimator()
	}
	return &Segmenter{estimator: estimator}
}

// Segment greedily accumulates pages in order and closes the open section
// when adding the next page would push it over budget. A page that alone
// exceeds the budget is kept as its own section; a section that lands
// exactly on the budget is not split.
//
// The partition depends only on page order and per-page cost. It is bounded
// per section, not balanced across sections.
func (s *Segmenter) Segment(pages []domain.Page, budget int) []domain.Section {
	if len(pages) == 0 {
		return nil
	}

	var (
		sections []domain.Section
		start    int
		acc      int
	)

	for i, p := range pages {
		c := s.estimator.Estimate([]domain.Page{p})

		if i > start && acc+c > budget {
			sections = append(sections, newSection(pages, start, i-1, acc))
			start = i
			acc = c
			continue
		}
		acc += c
	}

	return append(sections, newSection(pages, start, len(pages)-1, acc))
}

// Whole returns the implicit single section covering every page, with its
// cost estimated over the full page set.
func (s *Segmenter) Whole(pages []domain.Page) []domain.Section {
	if len(pages) == 0 {
		return nil
	}
	return []domain.Section{newSection(pages, 0, len(pages)-1, s.estimator.Estimate(pages))}
}

// Estimator returns the cost model the Segmenter was built with
func (s *Segmenter) Estimator() domain.CostEstimator {
	return s.estimator
}

func newSection(pages []domain.Page, start, end, cost int) domain.Section {
	// Full slice expression so appends on a section never bleed into the next.
	return domain.Section{
		StartPage: start,
		EndPage:   end,
		Pages:     pages[start : end+1 : end+1],
		Cost:      cost,
	}
}

// Decision is the outcome of the split check for one document
type Decision struct {
	Total  int
	Budget int
	Split  bool
}

// Decide estimates the cost of the whole page set and reports whether it
// exceeds the budget. It is pure: the same pages and budget always give the
// same answer.
func Decide(pages []domain.Page, budget int, estimator domain.CostEstimator) Decision {
	if estimator == nil {
		estimator = NewPixelAreaEstimator()
	}
	total := estimator.Estimate(pages)
	return Decision{Total: total, Budget: budget, Split: total > budget}
}
