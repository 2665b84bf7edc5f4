// Package stt defines the speech-to-text engine interface and its backends.
package stt

import (
	"strings"
	"time"

	"github.com/erikh/hoover/internal/audio"
	"github.com/erikh/hoover/internal/conf"
	"github.com/erikh/hoover/internal/errors"
)

// Segment is a unit of recognized text. The timestamp is absolute: the parent
// chunk's capture start plus the backend-reported offset. Text is trimmed and
// non-empty on emission.
type Segment struct {
	Text      string
	Timestamp time.Time
	Duration  float64 // seconds
	// Confidence is in [0, 1]; 0 when the backend does not report one.
	Confidence float64
}

// Engine transforms audio chunks into transcription segments. Engines are
// owned by the transcription worker goroutine and need not be safe for
// concurrent use.
type Engine interface {
	Transcribe(chunk *audio.Chunk) ([]Segment, error)
	Name() string
}

// NewEngine creates the backend selected by configuration. Unknown backend
// names are a configuration error.
func NewEngine(cfg *conf.STTConfig) (Engine, error) {
	switch cfg.Backend {
	case "whisper":
		return NewWhisperEngine(cfg)
	case "vosk":
		return NewVoskEngine(cfg)
	case "openai":
		return NewOpenAIEngine(cfg)
	default:
		return nil, errors.Newf("unknown STT backend: %s (available: whisper, vosk, openai)", cfg.Backend).
			Component("stt").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// trimmed collapses surrounding whitespace; emission requires non-empty text.
func trimmed(text string) string {
	return strings.TrimSpace(text)
}
