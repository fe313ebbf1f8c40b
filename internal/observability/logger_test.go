package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}

	assert.True(t, ValidLevel("Debug"))
	assert.False(t, ValidLevel("verbose"))
}

func TestLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(LogConfig{Level: "debug", Format: "json", Output: &buf, ServiceName: "pdf2md"}).
		WithRun("run-42").
		WithOperation("dispatch")

	l.Info().Int("section", 3).Str("pages", "4-6").Err(errors.New("boom")).Msg("section failed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "pdf2md", entry["service"])
	assert.Equal(t, "run-42", entry["run_id"])
	assert.Equal(t, "dispatch", entry["operation"])
	assert.Equal(t, float64(3), entry["section"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "section failed", entry["message"])
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(LogConfig{Level: "warn", Format: "json", Output: &buf})

	l.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	l.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestDefault(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	n := Nop()
	SetDefault(n)
	assert.Same(t, n, Default())

	SetDefault(nil)
	assert.Same(t, n, Default())
}
