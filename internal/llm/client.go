// Package llm implements the content generators that turn page images into
// Markdown through a remote vision model.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spherical/pdf2md/internal/domain"
)

const (
	openRouterURL = "https://openrouter.ai/api/v1/chat/completions"
	defaultModel  = "google/gemini-2.5-flash"
)

// Client handles communication with OpenRouter API
type Client struct {
	apiKey     string
	model      string
	url        string
	httpClient *http.Client
	retry      *RetryConfig
}

var _ domain.ContentGenerator = (*Client)(nil)

// Option customises a Client or GeminiClient
type Option func(*clientOptions)

type clientOptions struct {
	baseURL    string
	httpClient *http.Client
	retry      *RetryConfig
}

// WithBaseURL overrides the API endpoint
func WithBaseURL(url string) Option {
	return func(o *clientOptions) { o.baseURL = url }
}

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = c }
}

// WithRetryConfig overrides the retry policy
func WithRetryConfig(c *RetryConfig) Option {
	return func(o *clientOptions) { o.retry = c }
}

func applyOptions(defaultURL string, opts []Option) clientOptions {
	o := clientOptions{
		baseURL:    defaultURL,
		httpClient: &http.Client{},
		retry:      DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.baseURL == "" {
		o.baseURL = defaultURL
	}
	return o
}

// Message represents a chat message
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart represents a part of message content (text or image)
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL represents an image URL in the message
type ImageURL struct {
	URL string `json:"url"`
}

// Request represents the API request structure
type Request struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// Response represents the API response structure
type Response struct {
	ID      string        `json:"id"`
	Choices []Choice      `json:"choices"`
	Error   *ErrorPayload `json:"error,omitempty"`
}

// ErrorPayload is the error object OpenRouter sends inside a stream
type ErrorPayload struct {
	Code    interface{} `json:"code"`
	Message string      `json:"message"`
}

// Choice represents a single completion choice
type Choice struct {
	Delta        Delta  `json:"delta"`
	Message      Delta  `json:"message"`
	FinishReason string `json:"finish_reason"`
}

// Delta represents a message delta in streaming response
type Delta struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

// NewClient creates a new LLM client
func NewClient(apiKey, model string, opts ...Option) *Client {
	if model == "" {
		model = defaultModel
	}
	o := applyOptions(openRouterURL, opts)

	return &Client{
		apiKey:     apiKey,
		model:      model,
		url:        o.baseURL,
		httpClient: o.httpClient,
		retry:      o.retry,
	}
}

// Model returns the model the client sends requests to
func (c *Client) Model() string {
	return c.model
}

// Generate sends all page images in one request and returns the Markdown
func (c *Client) Generate(ctx context.Context, pages []domain.Page) (string, error) {
	if len(pages) == 0 {
		return "", nil
	}

	req, err := c.buildRequest(pages)
	if err != nil {
		return "", domain.GenerationError("Failed to build request", err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", domain.GenerationError("Failed to marshal request", err)
	}

	resp, err := retryWithBackoff(ctx, c.retry, func() (*http.Response, error) {
		// Fresh reader per attempt
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}

		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("HTTP-Referer", "https://github.com/spherical/pdf2md")
		httpReq.Header.Set("X-Title", "PDF to Markdown Converter")

		return c.httpClient.Do(httpReq)
	})
	if err != nil {
		return "", asGenerationError("Failed to send request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", domain.GenerationError(fmt.Sprintf("API returned status %d: %s", resp.StatusCode, string(bodyBytes)), nil)
	}

	text, err := NewStreamParser(resp.Body).Collect()
	if err != nil {
		return "", domain.GenerationError("Failed to parse stream", err)
	}
	return cleanMarkdown(text), nil
}

// buildRequest constructs the API request with one image part per page
func (c *Client) buildRequest(pages []domain.Page) (*Request, error) {
	parts := make([]ContentPart, 0, len(pages)+1)
	parts = append(parts, ContentPart{
		Type: "text",
		Text: buildPrompt(pages),
	})

	for _, page := range pages {
		encoded, err := encodeImage(page.ImagePath)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page.Index+1, err)
		}
		parts = append(parts, ContentPart{
			Type:     "image_url",
			ImageURL: &ImageURL{URL: "data:image/jpeg;base64," + encoded},
		})
	}

	return &Request{
		Model:    c.model,
		Messages: []Message{{Role: "user", Content: parts}},
		Stream:   true,
	}, nil
}

func encodeImage(path string) (string, error) {
	imageData, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(imageData), nil
}

// asGenerationError keeps an existing DomainError and wraps anything else
func asGenerationError(message string, err error) error {
	if domain.TypeOf(err) != "" {
		return err
	}
	return domain.GenerationError(message, err)
}
