package stt

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/erikh/hoover/internal/audio"
	"github.com/erikh/hoover/internal/conf"
	"github.com/erikh/hoover/internal/errors"
)

// OpenAIEngine transcribes chunks through an OpenAI-compatible HTTP
// transcription endpoint. When the response carries word-level timestamps,
// each word becomes its own segment.
type OpenAIEngine struct {
	client   *resty.Client
	endpoint string
	apiKey   string
	model    string
	language string
}

// NewOpenAIEngine creates the remote HTTP backend.
func NewOpenAIEngine(cfg *conf.STTConfig) (*OpenAIEngine, error) {
	if cfg.OpenAI.APIKey == "" {
		return nil, errors.Newf("openai backend requires stt.openai.apikey to be set").
			Component("stt").
			Category(errors.CategoryConfiguration).
			Build()
	}

	client := resty.New().
		SetTimeout(120 * time.Second).
		SetRetryCount(2)

	return &OpenAIEngine{
		client:   client,
		endpoint: cfg.OpenAI.Endpoint,
		apiKey:   cfg.OpenAI.APIKey,
		model:    cfg.OpenAI.Model,
		language: cfg.Language,
	}, nil
}

type openAIResponse struct {
	Text  string       `json:"text"`
	Words []openAIWord `json:"words"`
}

type openAIWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Transcribe posts the chunk as a WAV file and maps the response.
func (e *OpenAIEngine) Transcribe(chunk *audio.Chunk) ([]Segment, error) {
	wavData, err := encodeWAV(chunk)
	if err != nil {
		return nil, err
	}

	resp, err := e.client.R().
		SetAuthToken(e.apiKey).
		SetFileReader("file", "audio.wav", bytes.NewReader(wavData)).
		SetFormData(map[string]string{
			"model":                     e.model,
			"language":                  e.language,
			"response_format":           "verbose_json",
			"timestamp_granularities[]": "word",
		}).
		Post(e.endpoint)
	if err != nil {
		return nil, errors.New(err).
			Component("stt").
			Category(errors.CategorySTT).
			Context("endpoint", e.endpoint).
			Build()
	}

	if resp.IsError() {
		return nil, errors.Newf("transcription endpoint returned %s: %s", resp.Status(), resp.String()).
			Component("stt").
			Category(errors.CategorySTT).
			Build()
	}

	var result openAIResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, errors.New(err).
			Component("stt").
			Category(errors.CategorySTT).
			Context("operation", "parse_response").
			Build()
	}

	return mapOpenAIResponse(chunk, &result), nil
}

// mapOpenAIResponse prefers per-word segments, falling back to one segment
// for the whole chunk.
func mapOpenAIResponse(chunk *audio.Chunk, result *openAIResponse) []Segment {
	if len(result.Words) > 0 {
		segments := make([]Segment, 0, len(result.Words))
		for _, w := range result.Words {
			word := trimmed(w.Word)
			if word == "" {
				continue
			}
			offset := time.Duration(w.Start * float64(time.Second))
			segments = append(segments, Segment{
				Text:      word,
				Timestamp: chunk.Timestamp.Add(offset),
				Duration:  w.End - w.Start,
			})
		}
		return segments
	}

	text := trimmed(result.Text)
	if text == "" {
		return nil
	}

	return []Segment{{
		Text:      text,
		Timestamp: chunk.Timestamp,
		Duration:  chunk.Duration,
	}}
}

// Name implements Engine.
func (e *OpenAIEngine) Name() string {
	return "openai"
}
