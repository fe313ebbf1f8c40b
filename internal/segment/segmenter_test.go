package segment

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf2md/internal/domain"
)

// pagesWithCosts builds pages whose pixel area maps to the given cost under
// the default estimator (width = cost*100, height = 1).
func pagesWithCosts(costs ...int) []domain.Page {
	pages := make([]domain.Page, len(costs))
	for i, c := range costs {
		pages[i] = domain.Page{Index: i, Width: c * DefaultPixelsPerUnit, Height: 1, DPI: 300}
	}
	return pages
}

type span struct {
	start, end, cost int
}

func spans(sections []domain.Section) []span {
	out := make([]span, len(sections))
	for i, s := range sections {
		out[i] = span{s.StartPage, s.EndPage, s.Cost}
	}
	return out
}

func TestSegment_Scenarios(t *testing.T) {
	tests := []struct {
		name   string
		costs  []int
		budget int
		want   []span
	}{
		{
			name:   "single small document",
			costs:  []int{10, 10, 10},
			budget: 100,
			want:   []span{{0, 2, 30}},
		},
		{
			name:   "forced split",
			costs:  []int{60, 60, 10, 10, 10},
			budget: 100,
			want:   []span{{0, 0, 60}, {1, 4, 90}},
		},
		{
			name:   "three sections",
			costs:  []int{60, 60, 50, 10, 10},
			budget: 100,
			want:   []span{{0, 0, 60}, {1, 1, 60}, {2, 4, 70}},
		},
		{
			name:   "oversized lone page",
			costs:  []int{500},
			budget: 100,
			want:   []span{{0, 0, 500}},
		},
		{
			name:   "exact boundary stays together",
			costs:  []int{50, 50},
			budget: 100,
			want:   []span{{0, 1, 100}},
		},
		{
			name:   "oversized page in the middle",
			costs:  []int{30, 500, 30, 30},
			budget: 100,
			want:   []span{{0, 0, 30}, {1, 1, 500}, {2, 3, 60}},
		},
		{
			name:   "every page over budget",
			costs:  []int{150, 150, 150},
			budget: 100,
			want:   []span{{0, 0, 150}, {1, 1, 150}, {2, 2, 150}},
		},
		{
			name:   "no rebalancing",
			costs:  []int{90, 10, 20, 90},
			budget: 100,
			want:   []span{{0, 1, 100}, {2, 2, 20}, {3, 3, 90}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages := pagesWithCosts(tt.costs...)
			got := New(NewPixelAreaEstimator()).Segment(pages, tt.budget)

			assert.Equal(t, tt.want, spans(got))
			require.NoError(t, domain.ValidateTiling(got, len(pages)))
			for _, s := range got {
				assert.Len(t, s.Pages, s.PageCount())
				assert.Equal(t, s.StartPage, s.Pages[0].Index)
			}
		})
	}
}

func TestSegment_Empty(t *testing.T) {
	s := New(nil)
	assert.Empty(t, s.Segment(nil, 100))
	assert.Empty(t, s.Segment([]domain.Page{}, 100))
}

func TestSegment_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for iter := 0; iter < 500; iter++ {
		n := 1 + rng.Intn(40)
		costs := make([]int, n)
		for i := range costs {
			costs[i] = 1 + rng.Intn(120)
		}
		budget := 1 + rng.Intn(200)
		pages := pagesWithCosts(costs...)
		seg := New(nil)

		got := seg.Segment(pages, budget)
		require.NoError(t, domain.ValidateTiling(got, n), "costs=%v budget=%d", costs, budget)

		for _, s := range got {
			sum := 0
			for _, c := range costs[s.StartPage : s.EndPage+1] {
				sum += c
			}
			assert.Equal(t, sum, s.Cost)
			if s.PageCount() > 1 {
				assert.LessOrEqual(t, s.Cost, budget, "multi-page section over budget: %+v", span{s.StartPage, s.EndPage, s.Cost})
			}
		}

		// Greedy maximality: the next page never fits into the previous section.
		for i := 1; i < len(got); i++ {
			assert.Greater(t, got[i-1].Cost+costs[got[i].StartPage], budget)
		}

		assert.Equal(t, spans(got), spans(seg.Segment(pages, budget)), "segmentation must be deterministic")
	}
}

func TestSegment_UsesInjectedEstimator(t *testing.T) {
	calls := 0
	est := EstimatorFunc(func(pages []domain.Page) int {
		calls++
		require.Len(t, pages, 1)
		return []int{60, 60, 10, 10, 10}[pages[0].Index]
	})
	pages := make([]domain.Page, 5)
	for i := range pages {
		pages[i].Index = i
	}

	got := New(est).Segment(pages, 100)

	assert.Equal(t, []span{{0, 0, 60}, {1, 4, 90}}, spans(got))
	assert.Equal(t, 5, calls, "one estimate per page")
}

func TestSegment_SectionsDoNotAlias(t *testing.T) {
	pages := pagesWithCosts(60, 60, 10)
	got := New(nil).Segment(pages, 100)
	require.Len(t, got, 2)

	grown := append(got[0].Pages, domain.Page{Index: 99})
	assert.Len(t, grown, 2)
	assert.Equal(t, 1, pages[1].Index, "appending to a section must not overwrite the next page")
}

func TestWhole(t *testing.T) {
	pages := pagesWithCosts(10, 10, 10)
	got := New(nil).Whole(pages)

	assert.Equal(t, []span{{0, 2, 30}}, spans(got))
	assert.Nil(t, New(nil).Whole(nil))
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name      string
		costs     []int
		budget    int
		wantTotal int
		wantSplit bool
	}{
		{"under budget", []int{10, 10, 10}, 100, 30, false},
		{"exactly on budget", []int{50, 50}, 100, 100, false},
		{"over budget", []int{60, 60, 10, 10, 10}, 100, 150, true},
		{"empty document", nil, 100, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(pagesWithCosts(tt.costs...), tt.budget, nil)
			assert.Equal(t, tt.wantTotal, d.Total)
			assert.Equal(t, tt.wantSplit, d.Split)
			assert.Equal(t, tt.budget, d.Budget)
			assert.Equal(t, d, Decide(pagesWithCosts(tt.costs...), tt.budget, nil))
		})
	}
}

// The split decision runs on a low-resolution probe while boundaries are
// computed at full resolution. With an area-based cost the two passes scale
// by (dpi/probeDPI)^2, so a document can fit at 72 DPI and be sent whole even
// though its full-resolution cost is well over budget. This is a known
// approximation of the two-pass design and is kept as is.
func TestDecide_ProbeResolutionApproximation(t *testing.T) {
	const budget = 20000

	// A4 at 72 DPI is 595x842 pixels; at 300 DPI it is 2480x3508.
	probe := make([]domain.Page, 2)
	full := make([]domain.Page, 2)
	for i := range probe {
		probe[i] = domain.Page{Index: i, Width: 595, Height: 842, DPI: 72}
		full[i] = domain.Page{Index: i, Width: 2480, Height: 3508, DPI: 300}
	}
	est := NewPixelAreaEstimator()

	probeDecision := Decide(probe, budget, est)
	assert.False(t, probeDecision.Split, "probe total %d fits in %d", probeDecision.Total, budget)
	assert.True(t, Decide(full, budget, est).Split)

	whole := New(est).Whole(full)
	require.Len(t, whole, 1)
	assert.Greater(t, whole[0].Cost, budget)
}
