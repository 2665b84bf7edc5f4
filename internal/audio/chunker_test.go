package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestFeedEmitsFixedSizeChunks(t *testing.T) {
	acc := NewChunkAccumulator(1, 0)

	chunks := acc.Feed(make([]float32, SampleRate*3))

	require.Len(t, chunks, 3)
	for _, chunk := range chunks {
		assert.Len(t, chunk.SamplesF32, SampleRate)
		assert.Len(t, chunk.SamplesI16, SampleRate)
		assert.InDelta(t, 1.0, chunk.Duration, 1e-9)
		for _, s := range chunk.SamplesF32 {
			assert.Zero(t, s)
		}
	}
}

func TestFeedWithOverlap(t *testing.T) {
	acc := NewChunkAccumulator(2, 1)

	samples := make([]float32, SampleRate*4)
	for i := range samples {
		samples[i] = 0.5
	}

	chunks := acc.Feed(samples)

	// 2s windows draining 1s each: 4s of input yields three windows and
	// leaves one second buffered.
	require.Len(t, chunks, 3)
	for _, chunk := range chunks {
		assert.Len(t, chunk.SamplesF32, SampleRate*2)
		for _, s := range chunk.SamplesF32 {
			assert.InDelta(t, 0.5, s, 1e-6)
		}
	}
	assert.Equal(t, SampleRate, acc.Buffered())
}

func TestOverlapIsBitExact(t *testing.T) {
	acc := NewChunkAccumulator(2, 1)

	samples := make([]float32, SampleRate*5)
	for i := range samples {
		samples[i] = float32(i%977) / 977.0
	}

	chunks := acc.Feed(samples)
	require.GreaterOrEqual(t, len(chunks), 2)

	for i := 1; i < len(chunks); i++ {
		prevTail := chunks[i-1].SamplesF32[SampleRate:]
		nextHead := chunks[i].SamplesF32[:SampleRate]
		assert.Equal(t, prevTail, nextHead)
	}
}

func TestFlushReturnsRemainder(t *testing.T) {
	acc := NewChunkAccumulator(2, 0)

	chunks := acc.Feed(make([]float32, SampleRate))
	assert.Empty(t, chunks)

	flushed := acc.Flush()
	require.NotNil(t, flushed)
	assert.Len(t, flushed.SamplesF32, SampleRate)
	assert.Zero(t, acc.Buffered())

	assert.Nil(t, acc.Flush())
}

func TestChunkStartTimestamps(t *testing.T) {
	acc := NewChunkAccumulator(1, 0)

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	acc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	first := acc.Feed(make([]float32, SampleRate/2))
	assert.Empty(t, first)
	buffered := acc.Buffered()

	// A second feed before any drain keeps the original start time.
	chunks := acc.Feed(make([]float32, SampleRate/2))
	require.Len(t, chunks, 1)
	assert.Equal(t, buffered, SampleRate/2)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 1, 0, time.UTC), chunks[0].Timestamp)
}

func TestI16ConversionClamps(t *testing.T) {
	chunk := NewChunk([]float32{1.5, -1.5, 0.0, 0.5}, time.Now())

	assert.Equal(t, int16(32767), chunk.SamplesI16[0])
	assert.Equal(t, int16(-32767), chunk.SamplesI16[1])
	assert.Equal(t, int16(0), chunk.SamplesI16[2])
	assert.Equal(t, int16(16384), chunk.SamplesI16[3]) // round(0.5 * 32767)
}

func TestChunkFromI16RoundTrip(t *testing.T) {
	chunk := ChunkFromI16([]int16{32767, -32767, 0}, time.Now())

	assert.InDelta(t, 1.0, chunk.SamplesF32[0], 1e-6)
	assert.InDelta(t, -1.0, chunk.SamplesF32[1], 1e-6)
	assert.Zero(t, chunk.SamplesF32[2])
}

func TestChunkCountProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		chunkSecs := rapid.IntRange(1, 4).Draw(t, "chunkSecs")
		overlapSecs := rapid.IntRange(0, chunkSecs-1).Draw(t, "overlapSecs")
		total := rapid.IntRange(0, SampleRate*10).Draw(t, "total")

		acc := NewChunkAccumulator(chunkSecs, overlapSecs)

		var emitted int
		remaining := total
		for remaining > 0 {
			n := rapid.IntRange(1, remaining).Draw(t, "feedSize")
			emitted += len(acc.Feed(make([]float32, n)))
			remaining -= n
		}

		chunk := chunkSecs * SampleRate
		overlap := overlapSecs * SampleRate
		var want int
		if total >= chunk {
			want = (total - overlap) / (chunk - overlap)
		}
		if emitted != want {
			t.Fatalf("fed %d samples, got %d chunks, want %d", total, emitted, want)
		}
	})
}
