package llm

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// maxLineSize bounds a single SSE line; large Markdown tables arrive as one
// delta.
const maxLineSize = 1024 * 1024

// Stream termination errors. A stream must end with [DONE] or a chunk that
// carries a finish_reason; anything else is a cut-off or a non-SSE body.
var (
	ErrStreamIncomplete = errors.New("stream ended before completion")
	ErrStreamMalformed  = errors.New("response is not a valid event stream")
)

// StreamParser handles parsing of Server-Sent Events (SSE) streams
type StreamParser struct {
	scanner *bufio.Scanner
	parsed  int
}

// NewStreamParser creates a new stream parser
func NewStreamParser(reader io.Reader) *StreamParser {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &StreamParser{scanner: scanner}
}

// StreamChunk represents a single chunk from the stream
type StreamChunk struct {
	Content      string
	FinishReason string
	Done         bool
}

// Next reads the next chunk from the stream
func (p *StreamParser) Next() (*StreamChunk, error) {
	for p.scanner.Scan() {
		line := p.scanner.Text()

		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		if data == "[DONE]" {
			return &StreamChunk{Done: true}, nil
		}

		var resp Response
		if err := json.Unmarshal([]byte(data), &resp); err != nil {
			// Skip invalid JSON lines
			continue
		}
		p.parsed++

		if resp.Error != nil {
			return nil, errors.New(resp.Error.Message)
		}

		if len(resp.Choices) > 0 {
			choice := resp.Choices[0]
			content := choice.Delta.Content
			if content == "" {
				content = choice.Message.Content
			}
			return &StreamChunk{
				Content:      content,
				FinishReason: choice.FinishReason,
				Done:         choice.FinishReason != "",
			}, nil
		}
	}

	if err := p.scanner.Err(); err != nil {
		return nil, err
	}

	if p.parsed == 0 {
		return nil, ErrStreamMalformed
	}
	return nil, ErrStreamIncomplete
}

// Collect reads the whole stream and returns the concatenated content
func (p *StreamParser) Collect() (string, error) {
	var sb strings.Builder
	for {
		chunk, err := p.Next()
		if err != nil {
			return "", err
		}

		// Content may ride on the final chunk
		sb.WriteString(chunk.Content)

		if chunk.Done {
			return sb.String(), nil
		}
	}
}
