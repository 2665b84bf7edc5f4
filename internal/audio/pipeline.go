package audio

import (
	"github.com/erikh/hoover/internal/conf"
	"github.com/erikh/hoover/internal/logging"
)

// StartPipeline runs the capture side of the audio path in its own goroutine:
// raw device buffers are downmixed and resampled to 16 kHz mono, accumulated
// into overlapping windows, and sent to chunks with blocking sends so that a
// slow transcriber throttles the drain all the way back to the lossy device
// queue.
//
// The goroutine exits after the capture handle is closed; any partial window
// is flushed as a final short chunk. The done channel is closed on exit.
func StartPipeline(cfg *conf.AudioConfig, capture *Capture, chunks chan<- *Chunk) <-chan struct{} {
	done := make(chan struct{})

	go func() {
		defer close(done)

		log := logging.ForService("audio-pipeline")

		resampler, err := NewResampler(int(capture.SampleRate()), int(capture.Channels()))
		if err != nil {
			log.Error("failed to create resampler", "error", err)
			return
		}

		accumulator := NewChunkAccumulator(cfg.ChunkDurationSecs, cfg.OverlapSecs)

		log.Debug("audio pipeline running",
			"source_rate", capture.SampleRate(),
			"channels", capture.Channels(),
			"chunk_secs", cfg.ChunkDurationSecs,
			"overlap_secs", cfg.OverlapSecs)

		for raw := range capture.Raw() {
			mono, err := resampler.Process(raw)
			if err != nil {
				log.Warn("resample error, dropping buffer", "error", err)
				continue
			}
			if len(mono) == 0 {
				continue
			}

			for _, chunk := range accumulator.Feed(mono) {
				log.Info("audio chunk ready", "duration_secs", chunk.Duration)
				chunks <- chunk
			}
		}

		if chunk := accumulator.Flush(); chunk != nil {
			chunks <- chunk
		}

		log.Debug("audio pipeline exiting", "dropped_buffers", capture.Dropped())
	}()

	return done
}
