package stt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/erikh/hoover/internal/audio"
	"github.com/erikh/hoover/internal/conf"
	"github.com/erikh/hoover/internal/errors"
	"github.com/erikh/hoover/internal/logging"
)

// noSpeechThreshold discards segments the model considers unlikely to contain
// speech.
const noSpeechThreshold = 0.6

// isHallucinatedNoise reports common whisper hallucinations from percussive
// or mechanical sounds (keyboard tapping, silence).
func isHallucinatedNoise(text string) bool {
	lower := strings.ToLower(text)
	return strings.HasPrefix(lower, "[") && strings.HasSuffix(lower, "]") ||
		strings.HasPrefix(lower, "(") && strings.HasSuffix(lower, ")") ||
		strings.Contains(lower, "thank you") && len(lower) < 30 ||
		strings.Contains(lower, "thanks for watching") ||
		strings.Contains(lower, "subscribe")
}

// WhisperEngine transcribes chunks through a local whisper.cpp server
// (whisper-server's POST /inference endpoint).
type WhisperEngine struct {
	client    *http.Client
	serverURL string
	model     string
	language  string
	log       *slog.Logger
}

// NewWhisperEngine creates the whisper backend.
func NewWhisperEngine(cfg *conf.STTConfig) (*WhisperEngine, error) {
	if cfg.Whisper.ServerURL == "" {
		return nil, errors.Newf("whisper backend requires stt.whisper.serverurl to be set").
			Component("stt").
			Category(errors.CategoryConfiguration).
			Build()
	}

	return &WhisperEngine{
		client:    &http.Client{Timeout: 120 * time.Second},
		serverURL: cfg.Whisper.ServerURL,
		model:     cfg.Whisper.Model,
		language:  cfg.Language,
		log:       logging.ForService("stt-whisper"),
	}, nil
}

// whisperResponse is the verbose JSON shape returned by whisper-server,
// matching the OpenAI transcription schema.
type whisperResponse struct {
	Text     string           `json:"text"`
	Segments []whisperSegment `json:"segments"`
}

type whisperSegment struct {
	ID           int     `json:"id"`
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	Text         string  `json:"text"`
	NoSpeechProb float64 `json:"no_speech_prob"`
}

// Transcribe posts the chunk as WAV and maps the reported sub-segments,
// applying the no-speech and hallucination filters.
func (e *WhisperEngine) Transcribe(chunk *audio.Chunk) ([]Segment, error) {
	wavData, err := encodeWAV(chunk)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, wrapSTTError(err, "multipart")
	}
	if _, err := part.Write(wavData); err != nil {
		return nil, wrapSTTError(err, "multipart")
	}

	fields := map[string]string{
		"response_format": "verbose_json",
		"language":        e.language,
	}
	if e.model != "" {
		fields["model"] = e.model
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, wrapSTTError(err, "multipart")
		}
	}
	if err := writer.Close(); err != nil {
		return nil, wrapSTTError(err, "multipart")
	}

	req, err := http.NewRequest(http.MethodPost, e.serverURL, &body)
	if err != nil {
		return nil, wrapSTTError(err, "request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, wrapSTTError(err, "post")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errors.Newf("whisper server returned %s: %s", resp.Status, payload).
			Component("stt").
			Category(errors.CategorySTT).
			Build()
	}

	var result whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, wrapSTTError(err, "decode")
	}

	var segments []Segment
	for _, seg := range result.Segments {
		if seg.NoSpeechProb > noSpeechThreshold {
			e.log.Debug("skipping segment", "id", seg.ID, "no_speech_prob", seg.NoSpeechProb)
			continue
		}

		text := strings.TrimSpace(seg.Text)
		if text == "" || isHallucinatedNoise(text) {
			continue
		}

		offset := time.Duration(seg.Start * float64(time.Second))
		segments = append(segments, Segment{
			Text:      text,
			Timestamp: chunk.Timestamp.Add(offset),
			Duration:  seg.End - seg.Start,
		})
	}

	return segments, nil
}

// Name implements Engine.
func (e *WhisperEngine) Name() string {
	return "whisper"
}

func wrapSTTError(err error, operation string) error {
	return errors.New(fmt.Errorf("whisper transcription failed: %w", err)).
		Component("stt").
		Category(errors.CategorySTT).
		Context("operation", operation).
		Build()
}
