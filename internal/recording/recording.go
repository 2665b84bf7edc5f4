// Package recording wires capture, transcription, speaker identification and
// output together and drives the session lifecycle.
package recording

import (
	"context"
	"sync"

	"github.com/erikh/hoover/internal/audio"
	"github.com/erikh/hoover/internal/conf"
	"github.com/erikh/hoover/internal/logging"
	"github.com/erikh/hoover/internal/output"
	"github.com/erikh/hoover/internal/speaker"
	"github.com/erikh/hoover/internal/stt"
	"github.com/erikh/hoover/internal/udp"
)

// Channel capacities. Bounded queues propagate backpressure from a slow
// transcriber back to the lossy device callback, the only place where audio
// may be dropped.
const (
	chunkQueueCapacity  = 32
	resultQueueCapacity = 16
)

// transcription pairs the segments of one chunk with the speaker recognized
// on it, if any.
type transcription struct {
	segments []stt.Segment
	speaker  string
}

// Run records until ctx is cancelled. Cancellation closes the capture handle,
// which flushes the audio pipeline; channel closes then drain the
// transcription worker and the writer in order, so no buffered work is lost.
func Run(ctx context.Context, settings *conf.Settings) error {
	log := logging.ForService("recording")
	log.Info("starting recording", "backend", settings.STT.Backend)

	engine, err := stt.NewEngine(&settings.STT)
	if err != nil {
		return err
	}

	var identifier *speaker.Identifier
	if settings.Speaker.Enabled {
		identifier, err = speaker.NewIdentifier(&settings.Speaker)
		if err != nil {
			log.Warn("speaker identification disabled", "error", err)
			identifier = nil
		}
	}

	writer, err := output.NewWriter(&settings.Output)
	if err != nil {
		return err
	}

	chunks := make(chan *audio.Chunk, chunkQueueCapacity)
	results := make(chan transcription, resultQueueCapacity)

	capture, err := audio.NewCapture(&settings.Audio)
	if err != nil {
		return err
	}

	pipelineDone := audio.StartPipeline(&settings.Audio, capture, chunks)
	if err := capture.Start(); err != nil {
		capture.Close()
		return err
	}
	log.Info("audio capture started")

	var producers sync.WaitGroup
	producers.Add(1)
	go func() {
		defer producers.Done()
		<-pipelineDone
	}()

	if settings.UDP.Enabled {
		server, err := udp.NewServer(&settings.UDP, chunks)
		if err != nil {
			capture.Close()
			<-pipelineDone
			return err
		}
		producers.Add(1)
		go func() {
			defer producers.Done()
			if err := server.Run(ctx); err != nil {
				log.Error("UDP server error", "error", err)
			}
		}()
	}

	// Closing the capture handle on cancellation closes the raw channel; the
	// pipeline flushes its partial window and exits, and once every producer
	// is gone the chunk channel closes and shutdown propagates downstream.
	go func() {
		<-ctx.Done()
		log.Info("received shutdown signal")
		capture.Close()
	}()

	go func() {
		producers.Wait()
		close(chunks)
	}()

	go transcriptionWorker(engine, identifier, chunks, results)

	for result := range results {
		for i := range result.segments {
			if err := writer.WriteSegment(&result.segments[i], result.speaker); err != nil {
				log.Error("output error", "error", err)
			}
		}
	}

	if identifier != nil {
		identifier.Close()
	}

	log.Info("recording stopped")
	return nil
}

// transcriptionWorker drains the chunk queue: each chunk is optionally scored
// for a speaker, transcribed, and the results forwarded. Transcription
// failures drop that chunk's segments and the stream continues.
func transcriptionWorker(engine stt.Engine, identifier *speaker.Identifier, chunks <-chan *audio.Chunk, results chan<- transcription) {
	log := logging.ForService("stt-worker")
	log.Info("transcription worker ready", "engine", engine.Name())

	defer close(results)

	for chunk := range chunks {
		var speakerName string
		if identifier != nil {
			match, err := identifier.Identify(chunk.SamplesF32)
			switch {
			case err != nil:
				log.Warn("speaker identification error", "error", err)
			case match != nil:
				speakerName = match.Name
			}
		}

		segments, err := engine.Transcribe(chunk)
		if err != nil {
			log.Error("transcription error", "error", err)
			continue
		}
		if len(segments) == 0 {
			continue
		}

		results <- transcription{segments: segments, speaker: speakerName}
	}

	if identifier != nil {
		identifier.Flush()
	}
	log.Debug("transcription worker exiting")
}
