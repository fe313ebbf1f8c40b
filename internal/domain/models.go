package domain

import (
	"fmt"
	"time"
)

// Page represents a single rendered document page
type Page struct {
	Index     int     // 0-based position within the document
	ImagePath string  // Path to temporary JPG file
	Width     int     // Pixels
	Height    int     // Pixels
	DPI       float64 // Resolution the page was rendered at
}

// Area returns the pixel area of the rendered page
func (p Page) Area() int64 {
	return int64(p.Width) * int64(p.Height)
}

// Document represents the source file being processed at one resolution
type Document struct {
	Path     string
	BaseName string
	DPI      float64
	Pages    []Page
}

// Section is a contiguous, non-empty run of pages sent to the generator as
// one request. StartPage and EndPage are inclusive 0-based indices.
type Section struct {
	StartPage int
	EndPage   int
	Pages     []Page
	Cost      int
}

// PageCount returns the number of pages covered by the section
func (s Section) PageCount() int {
	return s.EndPage - s.StartPage + 1
}

// String renders the 1-based human page range, e.g. "pages 3-5"
func (s Section) String() string {
	if s.StartPage == s.EndPage {
		return fmt.Sprintf("page %d", s.StartPage+1)
	}
	return fmt.Sprintf("pages %d-%d", s.StartPage+1, s.EndPage+1)
}

// GeneratedContent is the generator output for one section
type GeneratedContent struct {
	Section Section
	Text    string
}

// OutputFile is a (path, content) pair written once
type OutputFile struct {
	Path    string
	Content string
}

// ValidateTiling checks that sections cover [0, pageCount-1] exactly once, in
// order, with no gaps or overlaps.
func ValidateTiling(sections []Section, pageCount int) error {
	if pageCount == 0 {
		if len(sections) != 0 {
			return fmt.Errorf("expected no sections for an empty document, got %d", len(sections))
		}
		return nil
	}
	if len(sections) == 0 {
		return fmt.Errorf("no sections for %d pages", pageCount)
	}
	next := 0
	for i, s := range sections {
		if s.StartPage != next {
			return fmt.Errorf("section %d starts at page %d, want %d", i, s.StartPage, next)
		}
		if s.EndPage < s.StartPage {
			return fmt.Errorf("section %d is empty (%d..%d)", i, s.StartPage, s.EndPage)
		}
		if len(s.Pages) != 0 && len(s.Pages) != s.PageCount() {
			return fmt.Errorf("section %d holds %d pages but spans %d", i, len(s.Pages), s.PageCount())
		}
		next = s.EndPage + 1
	}
	if next != pageCount {
		return fmt.Errorf("sections end at page %d, want %d", next-1, pageCount-1)
	}
	return nil
}

// EventType represents the type of stream event
type EventType string

const (
	EventStart             EventType = "start"
	EventPlan              EventType = "plan"
	EventSectionProcessing EventType = "section_processing"
	EventSectionComplete   EventType = "section_complete"
	EventError             EventType = "error"
	EventComplete          EventType = "complete"
)

// StreamEvent represents an event emitted during processing
type StreamEvent struct {
	Type         EventType   `json:"type"`
	SectionIndex int         `json:"section_index,omitempty"`
	Payload      interface{} `json:"payload,omitempty"` // Status message or *Plan
	Timestamp    time.Time   `json:"timestamp"`
}

// Plan describes how a document will be dispatched; it is the payload of
// EventPlan.
type Plan struct {
	PageCount int
	ProbeCost int
	Budget    int
	Split     bool
	Sections  []Section
}

// ProcessingStats contains metadata about one conversion run
type ProcessingStats struct {
	TotalTime      time.Duration
	PagesProcessed int
	Sections       int
	FilesWritten   int
}
