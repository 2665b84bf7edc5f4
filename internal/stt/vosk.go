package stt

import (
	"encoding/binary"
	"encoding/json"
	"strings"

	vosk "github.com/alphacep/vosk-api/go"

	"github.com/erikh/hoover/internal/audio"
	"github.com/erikh/hoover/internal/conf"
	"github.com/erikh/hoover/internal/errors"
)

// VoskEngine transcribes chunks with a local vosk model. Vosk emits at most
// one finalized segment per chunk, stamped with the chunk's own timestamp and
// duration.
type VoskEngine struct {
	model      *vosk.VoskModel
	recognizer *vosk.VoskRecognizer
}

// NewVoskEngine loads the vosk model and creates a 16 kHz recognizer.
func NewVoskEngine(cfg *conf.STTConfig) (*VoskEngine, error) {
	if cfg.Vosk.ModelPath == "" {
		return nil, errors.Newf("vosk backend requires stt.vosk.modelpath to be set").
			Component("stt").
			Category(errors.CategoryConfiguration).
			Build()
	}

	model, err := vosk.NewModel(conf.ExpandPath(cfg.Vosk.ModelPath))
	if err != nil {
		return nil, errors.New(err).
			Component("stt").
			Category(errors.CategorySTT).
			Context("model_path", cfg.Vosk.ModelPath).
			Build()
	}

	recognizer, err := vosk.NewRecognizer(model, float64(audio.SampleRate))
	if err != nil {
		return nil, errors.New(err).
			Component("stt").
			Category(errors.CategorySTT).
			Context("operation", "create_recognizer").
			Build()
	}

	return &VoskEngine{model: model, recognizer: recognizer}, nil
}

type voskResult struct {
	Text string `json:"text"`
}

// Transcribe feeds the chunk's 16-bit samples and collects the finalized
// text.
func (e *VoskEngine) Transcribe(chunk *audio.Chunk) ([]Segment, error) {
	buf := make([]byte, 0, len(chunk.SamplesI16)*2)
	for _, s := range chunk.SamplesI16 {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(s))
	}

	e.recognizer.AcceptWaveform(buf)

	var result voskResult
	if err := json.Unmarshal([]byte(e.recognizer.FinalResult()), &result); err != nil {
		return nil, errors.New(err).
			Component("stt").
			Category(errors.CategorySTT).
			Context("operation", "parse_result").
			Build()
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return nil, nil
	}

	return []Segment{{
		Text:      text,
		Timestamp: chunk.Timestamp,
		Duration:  chunk.Duration,
	}}, nil
}

// Name implements Engine.
func (e *VoskEngine) Name() string {
	return "vosk"
}
