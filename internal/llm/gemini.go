package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/spherical/pdf2md/internal/domain"
)

const (
	geminiBaseURL      = "https://generativelanguage.googleapis.com"
	defaultGeminiModel = "gemini-2.5-flash"
)

// GeminiClient calls the Google Generative Language API directly
type GeminiClient struct {
	apiKey     string
	model      string
	url        string
	httpClient *http.Client
	retry      *RetryConfig
}

var _ domain.ContentGenerator = (*GeminiClient)(nil)

type gmInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type gmPart struct {
	Text       string        `json:"text,omitempty"`
	InlineData *gmInlineData `json:"inline_data,omitempty"`
}

type gmContent struct {
	Role  string   `json:"role,omitempty"`
	Parts []gmPart `json:"parts"`
}

type gmRequest struct {
	Contents []gmContent `json:"contents"`
}

type gmResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

// NewGeminiClient creates a client for the given model; WithBaseURL replaces
// the API host.
func NewGeminiClient(apiKey, model string, opts ...Option) *GeminiClient {
	if model == "" {
		model = defaultGeminiModel
	}
	o := applyOptions(geminiBaseURL, opts)
	endpoint := strings.TrimRight(o.baseURL, "/") + "/v1beta/models/" + url.PathEscape(model) + ":generateContent"

	return &GeminiClient{
		apiKey:     apiKey,
		model:      model,
		url:        endpoint,
		httpClient: o.httpClient,
		retry:      o.retry,
	}
}

// Model returns the model the client sends requests to
func (c *GeminiClient) Model() string {
	return c.model
}

// Generate implements domain.ContentGenerator
func (c *GeminiClient) Generate(ctx context.Context, pages []domain.Page) (string, error) {
	if len(pages) == 0 {
		return "", nil
	}

	parts := []gmPart{{Text: buildPrompt(pages)}}
	for _, page := range pages {
		encoded, err := encodeImage(page.ImagePath)
		if err != nil {
			return "", domain.GenerationError(fmt.Sprintf("Failed to build request for page %d", page.Index+1), err)
		}
		parts = append(parts, gmPart{InlineData: &gmInlineData{MIMEType: "image/jpeg", Data: encoded}})
	}

	body, err := json.Marshal(gmRequest{Contents: []gmContent{{Role: "user", Parts: parts}}})
	if err != nil {
		return "", domain.GenerationError("Failed to marshal request", err)
	}

	resp, err := retryWithBackoff(ctx, c.retry, func() (*http.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-goog-api-key", c.apiKey)
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

	var out gmResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", domain.GenerationError("Failed to decode response", err)
	}
	if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
		return "", domain.GenerationError("Request blocked: "+out.PromptFeedback.BlockReason, nil)
	}
	if len(out.Candidates) == 0 {
		return "", domain.GenerationError("Response contained no candidates", nil)
	}
	if reason := out.Candidates[0].FinishReason; reason != "" && reason != "STOP" {
		return "", domain.GenerationError("Generation stopped early: "+reason, nil)
	}

	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return cleanMarkdown(sb.String()), nil
}
