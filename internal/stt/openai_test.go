package stt

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erikh/hoover/internal/conf"
)

func openAIConfig(endpoint string) *conf.STTConfig {
	cfg := &conf.STTConfig{Backend: "openai", Language: "en"}
	cfg.OpenAI.APIKey = "sk-test"
	cfg.OpenAI.Model = "whisper-1"
	cfg.OpenAI.Endpoint = endpoint
	return cfg
}

func TestOpenAIWordSegments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "Bearer sk-test"))

		require.NoError(t, r.ParseMultipartForm(32<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "verbose_json", r.FormValue("response_format"))

		resp := openAIResponse{
			Text: "hello world",
			Words: []openAIWord{
				{Word: "hello", Start: 0.12, End: 0.48},
				{Word: "world", Start: 0.50, End: 0.95},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(server.Close)

	engine, err := NewOpenAIEngine(openAIConfig(server.URL))
	require.NoError(t, err)
	assert.Equal(t, "openai", engine.Name())

	chunk := testChunk(t)
	segments, err := engine.Transcribe(chunk)
	require.NoError(t, err)

	require.Len(t, segments, 2)
	assert.Equal(t, "hello", segments[0].Text)
	assert.Equal(t, chunk.Timestamp.Add(120*time.Millisecond), segments[0].Timestamp)
	assert.InDelta(t, 0.36, segments[0].Duration, 1e-6)
	assert.Equal(t, "world", segments[1].Text)
}

func TestOpenAIFallsBackToWholeChunk(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(openAIResponse{Text: "  full chunk text  "}))
	}))
	t.Cleanup(server.Close)

	engine, err := NewOpenAIEngine(openAIConfig(server.URL))
	require.NoError(t, err)

	chunk := testChunk(t)
	segments, err := engine.Transcribe(chunk)
	require.NoError(t, err)

	require.Len(t, segments, 1)
	assert.Equal(t, "full chunk text", segments[0].Text)
	assert.Equal(t, chunk.Timestamp, segments[0].Timestamp)
	assert.InDelta(t, chunk.Duration, segments[0].Duration, 1e-9)
}

func TestOpenAIEmptyTextYieldsNothing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(openAIResponse{Text: "   "}))
	}))
	t.Cleanup(server.Close)

	engine, err := NewOpenAIEngine(openAIConfig(server.URL))
	require.NoError(t, err)

	segments, err := engine.Transcribe(testChunk(t))
	require.NoError(t, err)
	assert.Empty(t, segments)
}

func TestOpenAIRequiresKey(t *testing.T) {
	cfg := &conf.STTConfig{Backend: "openai"}
	_, err := NewOpenAIEngine(cfg)
	assert.Error(t, err)
}
