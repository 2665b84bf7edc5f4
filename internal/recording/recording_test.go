package recording

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erikh/hoover/internal/audio"
	"github.com/erikh/hoover/internal/errors"
	"github.com/erikh/hoover/internal/stt"
)

// fakeEngine returns canned segments and fails on demand.
type fakeEngine struct {
	failEvery int
	calls     int
}

func (f *fakeEngine) Transcribe(chunk *audio.Chunk) ([]stt.Segment, error) {
	f.calls++
	if f.failEvery > 0 && f.calls%f.failEvery == 0 {
		return nil, errors.Newf("model crashed").Category(errors.CategorySTT).Build()
	}
	return []stt.Segment{{
		Text:      "segment",
		Timestamp: chunk.Timestamp,
		Duration:  chunk.Duration,
	}}, nil
}

func (f *fakeEngine) Name() string { return "fake" }

func TestWorkerForwardsSegmentsInOrder(t *testing.T) {
	chunks := make(chan *audio.Chunk, 4)
	results := make(chan transcription, 4)

	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		chunks <- audio.NewChunk(make([]float32, audio.SampleRate), base.Add(time.Duration(i)*time.Second))
	}
	close(chunks)

	transcriptionWorker(&fakeEngine{}, nil, chunks, results)

	var got []transcription
	for r := range results {
		got = append(got, r)
	}

	require.Len(t, got, 3)
	for i, r := range got {
		require.Len(t, r.segments, 1)
		assert.Equal(t, base.Add(time.Duration(i)*time.Second), r.segments[0].Timestamp)
		assert.Empty(t, r.speaker)
	}
}

func TestWorkerSkipsFailedChunks(t *testing.T) {
	chunks := make(chan *audio.Chunk, 4)
	results := make(chan transcription, 4)

	for i := 0; i < 4; i++ {
		chunks <- audio.NewChunk(make([]float32, audio.SampleRate), time.Now())
	}
	close(chunks)

	// Every second transcription fails; the stream continues.
	transcriptionWorker(&fakeEngine{failEvery: 2}, nil, chunks, results)

	var got int
	for range results {
		got++
	}
	assert.Equal(t, 2, got)
}

func TestWorkerClosesResultsOnChannelClose(t *testing.T) {
	chunks := make(chan *audio.Chunk)
	results := make(chan transcription, 1)

	done := make(chan struct{})
	go func() {
		transcriptionWorker(&fakeEngine{}, nil, chunks, results)
		close(done)
	}()

	close(chunks)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not exit on channel close")
	}

	_, open := <-results
	assert.False(t, open)
}
