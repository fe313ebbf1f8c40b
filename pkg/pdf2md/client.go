// Package pdf2md is the library entry point for converting PDFs to Markdown.
package pdf2md

import (
	"context"
	"time"

	"github.com/spherical/pdf2md/internal/config"
	"github.com/spherical/pdf2md/internal/convert"
	"github.com/spherical/pdf2md/internal/domain"
	"github.com/spherical/pdf2md/internal/llm"
	"github.com/spherical/pdf2md/internal/observability"
	"github.com/spherical/pdf2md/internal/output"
	"github.com/spherical/pdf2md/internal/pdf"
)

// Re-export event and result types for the public API
type (
	StreamEvent = domain.StreamEvent
	EventType   = domain.EventType
	Plan        = domain.Plan
	Section     = domain.Section
	Result      = convert.Result
	ErrorType   = domain.ErrorType
)

// Event type constants
const (
	EventStart             = domain.EventStart
	EventPlan              = domain.EventPlan
	EventSectionProcessing = domain.EventSectionProcessing
	EventSectionComplete   = domain.EventSectionComplete
	EventError             = domain.EventError
	EventComplete          = domain.EventComplete
)

// Error type constants, see ErrorTypeOf
const (
	ErrorTypeConfig     = domain.ErrorTypeConfig
	ErrorTypeInput      = domain.ErrorTypeInput
	ErrorTypeRendering  = domain.ErrorTypeRendering
	ErrorTypeGeneration = domain.ErrorTypeGeneration
	ErrorTypeWrite      = domain.ErrorTypeWrite
)

// ErrorTypeOf returns the category of an error returned by the client, or ""
// when it has none.
func ErrorTypeOf(err error) ErrorType {
	return domain.TypeOf(err)
}

// Config holds configuration options for the client. Zero values take the
// command-line defaults.
type Config struct {
	Provider            string // "openrouter" (default) or "gemini"
	APIKey              string
	Model               string
	BaseURL             string
	OutputDir           string
	MaxTokensPerSection int
	DPI                 float64
	ProbeDPI            float64
	Concurrency         int
	CallTimeout         time.Duration
}

// Client converts documents with one configuration
type Client struct {
	cfg *config.Config
}

// NewClient creates a client from .env and the environment
func NewClient() (*Client, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{cfg: cfg}, nil
}

// NewClientWithConfig creates a client with explicit configuration
func NewClientWithConfig(c *Config) (*Client, error) {
	cfg := config.DefaultConfig()
	if c.Provider != "" {
		cfg.LLM.Provider = c.Provider
	}
	cfg.LLM.APIKey = c.APIKey
	cfg.LLM.Model = c.Model
	cfg.LLM.BaseURL = c.BaseURL
	if c.OutputDir != "" {
		cfg.Output.Dir = c.OutputDir
	}
	if c.MaxTokensPerSection != 0 {
		cfg.Processing.MaxTokensPerSection = c.MaxTokensPerSection
	}
	if c.DPI != 0 {
		cfg.Processing.ImageDPI = c.DPI
	}
	if c.ProbeDPI != 0 {
		cfg.Processing.ProbeDPI = c.ProbeDPI
	}
	if c.Concurrency != 0 {
		cfg.Processing.Concurrency = c.Concurrency
	}
	if c.CallTimeout != 0 {
		cfg.LLM.Timeout = c.CallTimeout
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{cfg: cfg}, nil
}

// Convert processes the PDF and returns the written files
func (c *Client) Convert(ctx context.Context, pdfPath string) (*Result, error) {
	svc, err := c.newService()
	if err != nil {
		return nil, err
	}
	return svc.Process(ctx, pdfPath, nil)
}

// Process converts the PDF in the background and streams events. Progress
// events may be dropped when the reader falls behind; the final EventComplete
// or EventError is always delivered, after which the channel closes.
func (c *Client) Process(ctx context.Context, pdfPath string) (<-chan StreamEvent, error) {
	svc, err := c.newService()
	if err != nil {
		return nil, err
	}
	if err := pdf.NewValidator().ValidatePDFPath(pdfPath); err != nil {
		return nil, err
	}

	events := make(chan StreamEvent, 256)
	out := make(chan StreamEvent, 16)

	go func() {
		defer close(out)

		var final StreamEvent
		relayed := make(chan struct{})
		go func() {
			defer close(relayed)
			for ev := range events {
				if ev.Type == EventComplete || ev.Type == EventError {
					final = ev
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
				}
			}
		}()

		_, err := svc.Process(ctx, pdfPath, events)
		close(events)
		<-relayed

		if final.Type == "" {
			final = StreamEvent{Type: EventComplete, Payload: "Conversion complete", Timestamp: time.Now()}
			if err != nil {
				final = StreamEvent{Type: EventError, Payload: err.Error(), Timestamp: time.Now()}
			}
		}
		out <- final
	}()

	return out, nil
}

// newService builds a fresh pipeline for one run.
func (c *Client) newService() (*convert.Service, error) {
	writer, err := output.NewWriter(c.cfg.Output.Dir, nil)
	if err != nil {
		return nil, err
	}

	return convert.NewService(pdf.NewRenderer(c.cfg.Processing.JPEGQuality), llm.FromConfig(c.cfg.LLM), writer,
		convert.WithBudget(c.cfg.Processing.MaxTokensPerSection),
		convert.WithDPI(c.cfg.Processing.ImageDPI),
		convert.WithProbeDPI(c.cfg.Processing.ProbeDPI),
		convert.WithConcurrency(c.cfg.Processing.Concurrency),
		convert.WithCallTimeout(c.cfg.LLM.Timeout),
		convert.WithLogger(observability.Default()),
	), nil
}
