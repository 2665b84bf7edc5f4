package speaker

import (
	"context"
	"log/slog"

	"github.com/erikh/hoover/internal/audio"
	"github.com/erikh/hoover/internal/conf"
	"github.com/erikh/hoover/internal/errors"
	"github.com/erikh/hoover/internal/logging"
)

// enrollSegmentSamples is the per-embedding slice during enrollment, matching
// the identification window.
const enrollSegmentSamples = identifyWindowSamples

// minEnrollmentSamples is the least audio that yields a usable profile.
const minEnrollmentSamples = 3 * audio.SampleRate

// Enroll records from the microphone until ctx is cancelled, extracts an
// embedding per three-second segment and saves the averaged profile.
func Enroll(ctx context.Context, audioCfg *conf.AudioConfig, speakerCfg *conf.SpeakerConfig, name string) error {
	log := logging.ForService("speaker-enroll")

	if speakerCfg.ModelPath == "" {
		return errors.Newf("enrollment requires speaker.modelpath to be set").
			Component("speaker").
			Category(errors.CategoryConfiguration).
			Build()
	}

	model, err := NewEmbeddingModel(conf.ExpandPath(speakerCfg.ModelPath))
	if err != nil {
		return err
	}
	defer model.Close()

	capture, err := audio.NewCapture(audioCfg)
	if err != nil {
		return err
	}

	resampler, err := audio.NewResampler(int(capture.SampleRate()), int(capture.Channels()))
	if err != nil {
		capture.Close()
		return err
	}

	if err := capture.Start(); err != nil {
		capture.Close()
		return err
	}

	log.Info("recording enrollment audio, speak for 10-30 seconds, then interrupt", "name", name)

	samples := recordUntilCancelled(ctx, capture, resampler, log)
	capture.Close()

	durationSecs := float64(len(samples)) / float64(audio.SampleRate)
	log.Info("recorded enrollment audio", "duration_secs", durationSecs)

	if len(samples) < minEnrollmentSamples {
		return errors.Newf("recording too short: need at least 3 seconds, got %.1f", durationSecs).
			Component("speaker").
			Category(errors.CategorySpeaker).
			Build()
	}

	embedding, err := averageEmbeddings(model, samples)
	if err != nil {
		return err
	}

	profile := &Profile{Name: name, Embedding: embedding}
	path, err := profile.Save(conf.ExpandPath(speakerCfg.ProfilesDir))
	if err != nil {
		return err
	}

	log.Info("speaker profile saved", "name", name, "path", path)
	return nil
}

func recordUntilCancelled(ctx context.Context, capture *audio.Capture, resampler *audio.Resampler, log *slog.Logger) []float32 {
	var samples []float32
	for {
		select {
		case <-ctx.Done():
			return samples
		case raw, ok := <-capture.Raw():
			if !ok {
				return samples
			}
			mono, err := resampler.Process(raw)
			if err != nil {
				log.Warn("resample error during enrollment", "error", err)
				continue
			}
			samples = append(samples, mono...)
		}
	}
}

// averageEmbeddings extracts one embedding per segment and averages them.
// Segments shorter than one second are skipped.
func averageEmbeddings(model embedder, samples []float32) ([]float32, error) {
	var embeddings [][]float32
	for start := 0; start < len(samples); start += enrollSegmentSamples {
		end := start + enrollSegmentSamples
		if end > len(samples) {
			end = len(samples)
		}
		if end-start < minWindowSamples {
			break
		}

		embedding, err := model.Extract(samples[start:end])
		if err != nil {
			return nil, err
		}
		embeddings = append(embeddings, embedding)
	}

	if len(embeddings) == 0 {
		return nil, errors.Newf("failed to extract any embeddings").
			Component("speaker").
			Category(errors.CategorySpeaker).
			Build()
	}

	avg := make([]float32, len(embeddings[0]))
	for _, embedding := range embeddings {
		for i, v := range embedding {
			avg[i] += v
		}
	}
	n := float32(len(embeddings))
	for i := range avg {
		avg[i] /= n
	}

	return avg, nil
}
