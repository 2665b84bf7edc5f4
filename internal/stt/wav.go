package stt

import (
	"bytes"
	"encoding/binary"

	"github.com/erikh/hoover/internal/audio"
	"github.com/erikh/hoover/internal/errors"
)

// encodeWAV serializes a chunk as a 16 kHz mono 16-bit PCM WAV file for the
// HTTP backends.
func encodeWAV(chunk *audio.Chunk) ([]byte, error) {
	const (
		channels      = 1
		bitDepth      = 16
		bytesPerFrame = channels * bitDepth / 8
	)

	subChunk2Size := uint32(len(chunk.SamplesI16) * bytesPerFrame)
	chunkSize := 36 + subChunk2Size

	buffer := bytes.NewBuffer(make([]byte, 0, 44+int(subChunk2Size)))

	elements := []any{
		[]byte("RIFF"),
		chunkSize,
		[]byte("WAVE"),
		[]byte("fmt "),
		uint32(16), // SubChunk1Size
		uint16(1),  // AudioFormat (1 = PCM)
		uint16(channels),
		uint32(audio.SampleRate),
		uint32(audio.SampleRate * bytesPerFrame), // ByteRate
		uint16(bytesPerFrame),                    // BlockAlign
		uint16(bitDepth),
		[]byte("data"),
		subChunk2Size,
	}

	for _, elem := range elements {
		var err error
		if b, ok := elem.([]byte); ok {
			_, err = buffer.Write(b)
		} else {
			err = binary.Write(buffer, binary.LittleEndian, elem)
		}
		if err != nil {
			return nil, errors.New(err).
				Component("stt").
				Category(errors.CategorySTT).
				Context("operation", "wav_header").
				Build()
		}
	}

	if err := binary.Write(buffer, binary.LittleEndian, chunk.SamplesI16); err != nil {
		return nil, errors.New(err).
			Component("stt").
			Category(errors.CategorySTT).
			Context("operation", "wav_samples").
			Build()
	}

	return buffer.Bytes(), nil
}
