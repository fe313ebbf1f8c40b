// Package convert runs the PDF to Markdown pipeline: render, decide, segment,
// generate and write.
package convert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/spherical/pdf2md/internal/domain"
	"github.com/spherical/pdf2md/internal/observability"
	"github.com/spherical/pdf2md/internal/output"
	"github.com/spherical/pdf2md/internal/segment"
)

// Defaults used when an option is not given.
const (
	DefaultBudget      = 100000
	DefaultDPI         = 300
	DefaultProbeDPI    = 72
	DefaultConcurrency = 1
	DefaultCallTimeout = 5 * time.Minute
)

// FileWriter persists one generated document and returns its final path.
type FileWriter interface {
	WriteFile(ctx context.Context, f domain.OutputFile) (string, error)
}

// Service orchestrates a conversion run
type Service struct {
	renderer  domain.PageRenderer
	generator domain.ContentGenerator
	writer    FileWriter
	segmenter *segment.Segmenter

	budget      int
	dpi         float64
	probeDPI    float64
	concurrency int
	callTimeout time.Duration
	logger      *observability.Logger
}

// Option configures a Service
type Option func(*Service)

// WithBudget sets the maximum estimated cost of one section
func WithBudget(budget int) Option {
	return func(s *Service) { s.budget = budget }
}

// WithDPI sets the resolution of the pages sent to the generator
func WithDPI(dpi float64) Option {
	return func(s *Service) { s.dpi = dpi }
}

// WithProbeDPI sets the resolution of the pass that decides whether to split
func WithProbeDPI(dpi float64) Option {
	return func(s *Service) { s.probeDPI = dpi }
}

// WithConcurrency bounds the number of generator calls in flight
func WithConcurrency(n int) Option {
	return func(s *Service) { s.concurrency = n }
}

// WithCallTimeout bounds each generator call
func WithCallTimeout(d time.Duration) Option {
	return func(s *Service) { s.callTimeout = d }
}

// WithEstimator replaces the pixel-area cost model
func WithEstimator(e domain.CostEstimator) Option {
	return func(s *Service) { s.segmenter = segment.New(e) }
}

// WithLogger sets the logger
func WithLogger(l *observability.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a new conversion service
func NewService(renderer domain.PageRenderer, generator domain.ContentGenerator, writer FileWriter, opts ...Option) *Service {
	s := &Service{
		renderer:    renderer,
		generator:   generator,
		writer:      writer,
		segmenter:   segment.New(nil),
		budget:      DefaultBudget,
		dpi:         DefaultDPI,
		probeDPI:    DefaultProbeDPI,
		concurrency: DefaultConcurrency,
		callTimeout: DefaultCallTimeout,
		logger:      observability.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.concurrency < 1 {
		s.concurrency = 1
	}
	if s.callTimeout <= 0 {
		s.callTimeout = DefaultCallTimeout
	}
	s.logger = s.logger.WithOperation("convert")
	return s
}

// Result describes a finished run. Files holds the written paths in section
// order.
type Result struct {
	BaseName string
	Plan     domain.Plan
	Files    []string
	Stats    domain.ProcessingStats
}

// Process converts the PDF at path. Events go to eventCh when it is non-nil
// and has room; a full channel drops events rather than stalling the run.
//
// On a generation or write failure the returned Result is non-nil and lists
// the files written before the failure.
func (s *Service) Process(ctx context.Context, path string, eventCh chan<- domain.StreamEvent) (*Result, error) {
	startTime := time.Now()

	if err := s.renderer.Validate(path); err != nil {
		s.emitError(eventCh, err)
		return nil, err
	}
	if s.budget <= 0 {
		err := domain.ConfigError(fmt.Sprintf("budget must be positive, got %d", s.budget), nil)
		s.emitError(eventCh, err)
		return nil, err
	}

	log := s.logger.With().Str("document", path).Logger()

	s.emitEvent(eventCh, domain.StreamEvent{
		Type:      domain.EventStart,
		Payload:   fmt.Sprintf("Starting conversion of %s", path),
		Timestamp: time.Now(),
	})

	defer func() {
		if err := s.renderer.Cleanup(); err != nil {
			log.Warn().Err(err).Msg("failed to remove rendered pages")
		}
	}()

	doc, plan, err := s.plan(ctx, path, log)
	if err != nil {
		s.emitError(eventCh, err)
		return nil, err
	}
	pages := doc.Pages

	result := &Result{
		BaseName: doc.BaseName,
		Plan:     plan,
	}

	s.emitEvent(eventCh, domain.StreamEvent{
		Type:      domain.EventPlan,
		Payload:   &result.Plan,
		Timestamp: time.Now(),
	})

	files, err := s.dispatch(ctx, result.BaseName, plan.Sections, eventCh)
	result.Files = files
	result.Stats = domain.ProcessingStats{
		TotalTime:      time.Since(startTime),
		PagesProcessed: len(pages),
		Sections:       len(plan.Sections),
		FilesWritten:   len(files),
	}
	if err != nil {
		log.Error().Err(err).Int("files_written", len(files)).Msg("conversion failed")
		s.emitError(eventCh, err)
		return result, err
	}

	s.emitEvent(eventCh, domain.StreamEvent{
		Type: domain.EventComplete,
		Payload: fmt.Sprintf("Conversion complete: %d pages in %d files in %v",
			len(pages), len(files), result.Stats.TotalTime.Round(time.Millisecond)),
		Timestamp: time.Now(),
	})
	log.Info().
		Int("pages", len(pages)).
		Int("files", len(files)).
		Dur("duration", result.Stats.TotalTime).
		Msg("conversion complete")

	return result, nil
}

// plan renders the probe pass, decides whether to split and renders the
// pages the generator will see. Split boundaries always come from the
// full-resolution costs; the probe only answers yes or no.
func (s *Service) plan(ctx context.Context, path string, log *observability.Logger) (domain.Document, domain.Plan, error) {
	doc := domain.Document{Path: path, BaseName: output.BaseName(path), DPI: s.dpi}
	plan := domain.Plan{Budget: s.budget}

	probe, err := s.renderer.Render(ctx, path, s.probeDPI)
	if err != nil {
		return doc, plan, err
	}
	if len(probe) == 0 {
		log.Info().Msg("document has no pages")
		return doc, plan, nil
	}

	decision := segment.Decide(probe, s.budget, s.segmenter.Estimator())
	plan.PageCount = len(probe)
	plan.ProbeCost = decision.Total
	plan.Split = decision.Split

	log.Debug().
		Int("pages", len(probe)).
		Int("probe_cost", decision.Total).
		Int("budget", s.budget).
		Bool("split", decision.Split).
		Msg("split decision")

	pages := probe
	if s.dpi != s.probeDPI {
		pages, err = s.renderer.Render(ctx, path, s.dpi)
		if err != nil {
			return doc, plan, err
		}
		if len(pages) != len(probe) {
			return doc, plan, domain.RenderingError(
				fmt.Sprintf("page count changed between passes: %d at %g DPI, %d at %g DPI",
					len(probe), s.probeDPI, len(pages), s.dpi), nil)
		}
	}

	if decision.Split {
		plan.Sections = s.segmenter.Segment(pages, s.budget)
	} else {
		plan.Sections = s.segmenter.Whole(pages)
	}

	if err := domain.ValidateTiling(plan.Sections, len(pages)); err != nil {
		return doc, plan, domain.RenderingError("invalid section plan", err)
	}

	log.Info().
		Int("pages", len(pages)).
		Int("sections", len(plan.Sections)).
		Bool("split", plan.Split).
		Msg("planned sections")

	doc.Pages = pages
	return doc, plan, nil
}

type sectionResult struct {
	index   int
	content domain.GeneratedContent
}

// dispatch generates every section with at most s.concurrency calls in
// flight. File i is written once sections 0..i have all completed, so the
// files on disk are always a prefix of the plan. The first failure cancels
// outstanding calls.
func (s *Service) dispatch(ctx context.Context, baseName string, sections []domain.Section, eventCh chan<- domain.StreamEvent) ([]string, error) {
	if len(sections) == 0 {
		return nil, nil
	}

	dctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(dctx)
	g.SetLimit(s.concurrency)

	// Buffered to len(sections) so a worker never blocks on delivery.
	results := make(chan sectionResult, len(sections))
	var genErr error

	go func() {
		for i := range sections {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				text, err := s.generateSection(gctx, i, sections[i], eventCh)
				if err != nil {
					return err
				}
				results <- sectionResult{index: i, content: domain.GeneratedContent{Section: sections[i], Text: text}}
				return nil
			})
		}
		genErr = g.Wait()
		close(results)
	}()

	var (
		files    []string
		writeErr error
		pending  = make(map[int]domain.GeneratedContent, len(sections))
		next     int
	)

	for r := range results {
		if writeErr != nil {
			continue
		}
		pending[r.index] = r.content

		for writeErr == nil && ctx.Err() == nil {
			content, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)

			sec := content.Section
			path, err := s.writer.WriteFile(ctx, output.File(baseName, content))
			if err != nil {
				writeErr = err
				cancel()
				break
			}
			s.logger.Debug().Str("file", path).Str("section", sec.String()).Msg("wrote section")
			files = append(files, path)
			next++
		}
	}

	if writeErr != nil {
		return files, writeErr
	}
	if genErr != nil {
		return files, genErr
	}
	if err := ctx.Err(); err != nil {
		return files, domain.GenerationError("conversion cancelled", err)
	}
	return files, nil
}

// generateSection runs one generator call under the per-call timeout
func (s *Service) generateSection(ctx context.Context, index int, sec domain.Section, eventCh chan<- domain.StreamEvent) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", domain.GenerationError("conversion cancelled before "+sec.String(), err)
	}

	s.emitEvent(eventCh, domain.StreamEvent{
		Type:         domain.EventSectionProcessing,
		SectionIndex: index,
		Payload:      fmt.Sprintf("Processing %s", sec.String()),
		Timestamp:    time.Now(),
	})
	s.logger.Info().Int("section", index+1).Str("range", sec.String()).Int("cost", sec.Cost).Msg("generating section")

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	start := time.Now()
	text, err := s.generator.Generate(callCtx, sec.Pages)
	if err != nil {
		switch {
		case ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded):
			err = domain.GenerationError(fmt.Sprintf("%s timed out after %v", sec.String(), s.callTimeout), err)
		case domain.TypeOf(err) == "":
			err = domain.GenerationError("failed to generate "+sec.String(), err)
		}
		s.logger.Error().Err(err).Int("section", index+1).Str("range", sec.String()).Msg("section failed")
		return "", err
	}

	s.emitEvent(eventCh, domain.StreamEvent{
		Type:         domain.EventSectionComplete,
		SectionIndex: index,
		Payload:      fmt.Sprintf("Completed %s", sec.String()),
		Timestamp:    time.Now(),
	})
	s.logger.Debug().Int("section", index+1).Dur("duration", time.Since(start)).Int("chars", len(text)).Msg("section complete")

	return text, nil
}

// emitEvent safely emits an event to the channel
func (s *Service) emitEvent(eventCh chan<- domain.StreamEvent, event domain.StreamEvent) {
	if eventCh != nil {
		select {
		case eventCh <- event:
		default:
			s.logger.Warn().Str("event", string(event.Type)).Msg("event channel full, dropping event")
		}
	}
}

// emitError emits an error event
func (s *Service) emitError(eventCh chan<- domain.StreamEvent, err error) {
	s.emitEvent(eventCh, domain.StreamEvent{
		Type:      domain.EventError,
		Payload:   err.Error(),
		Timestamp: time.Now(),
	})
}
