// Package audio implements microphone capture, resampling to 16 kHz mono and
// slicing of the continuous stream into overlapping transcription windows.
package audio

import (
	"math"
	"time"
)

// SampleRate is the rate every downstream consumer operates at.
const SampleRate = 16000

// Chunk is a contiguous window of 16 kHz mono audio ready for transcription.
// Both representations always have the same length.
type Chunk struct {
	SamplesF32 []float32
	SamplesI16 []int16
	Timestamp  time.Time // capture start, UTC
	Duration   float64   // seconds
}

// NewChunk builds a chunk from float samples, deriving the clamped 16-bit
// representation and the duration.
func NewChunk(samples []float32, timestamp time.Time) *Chunk {
	f32 := make([]float32, len(samples))
	copy(f32, samples)

	i16 := make([]int16, len(samples))
	for i, s := range samples {
		clamped := s
		if clamped > 1.0 {
			clamped = 1.0
		} else if clamped < -1.0 {
			clamped = -1.0
		}
		i16[i] = int16(math.Round(float64(clamped) * 32767.0))
	}

	return &Chunk{
		SamplesF32: f32,
		SamplesI16: i16,
		Timestamp:  timestamp.UTC(),
		Duration:   float64(len(samples)) / float64(SampleRate),
	}
}

// ChunkFromI16 builds a chunk from 16-bit samples, deriving the float
// representation. Used by the datagram receiver which transports PCM16.
func ChunkFromI16(samples []int16, timestamp time.Time) *Chunk {
	i16 := make([]int16, len(samples))
	copy(i16, samples)

	f32 := make([]float32, len(samples))
	for i, s := range samples {
		f32[i] = float32(s) / 32767.0
	}

	return &Chunk{
		SamplesF32: f32,
		SamplesI16: i16,
		Timestamp:  timestamp.UTC(),
		Duration:   float64(len(samples)) / float64(SampleRate),
	}
}

// ChunkAccumulator slices a continuous 16 kHz mono stream into fixed-length
// overlapping windows. Consecutive windows share exactly overlapSamples
// leading samples with the previous window's trailing samples, which is what
// the output writer's deduplication relies on.
type ChunkAccumulator struct {
	buffer         []float32
	chunkSamples   int
	overlapSamples int
	chunkStart     time.Time
	now            func() time.Time
}

// NewChunkAccumulator creates an accumulator emitting windows of
// chunkDurationSecs with overlapSecs of shared audio between neighbors.
func NewChunkAccumulator(chunkDurationSecs, overlapSecs int) *ChunkAccumulator {
	chunkSamples := chunkDurationSecs * SampleRate
	return &ChunkAccumulator{
		buffer:         make([]float32, 0, chunkSamples),
		chunkSamples:   chunkSamples,
		overlapSamples: overlapSecs * SampleRate,
		now:            time.Now,
	}
}

// Feed appends samples and returns any windows that became complete.
func (a *ChunkAccumulator) Feed(samples []float32) []*Chunk {
	if len(a.buffer) == 0 {
		a.chunkStart = a.now()
	}

	a.buffer = append(a.buffer, samples...)

	var chunks []*Chunk
	for len(a.buffer) >= a.chunkSamples {
		chunks = append(chunks, NewChunk(a.buffer[:a.chunkSamples], a.chunkStart))

		// Retain overlapSamples for the next window.
		drain := a.chunkSamples - a.overlapSamples
		a.buffer = a.buffer[:copy(a.buffer, a.buffer[drain:])]
		a.chunkStart = a.now()
	}

	return chunks
}

// Flush emits whatever remains as a final, possibly short, chunk.
// Returns nil when the buffer is empty.
func (a *ChunkAccumulator) Flush() *Chunk {
	if len(a.buffer) == 0 {
		return nil
	}

	chunk := NewChunk(a.buffer, a.chunkStart)
	a.buffer = a.buffer[:0]
	return chunk
}

// Buffered returns the number of samples currently held.
func (a *ChunkAccumulator) Buffered() int {
	return len(a.buffer)
}
