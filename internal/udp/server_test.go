package udp

import (
	"context"
	"encoding/binary"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erikh/hoover/internal/audio"
	"github.com/erikh/hoover/internal/conf"
)

func startTestServer(t *testing.T) (*Server, *CryptoContext, chan *audio.Chunk) {
	t.Helper()

	keyFile := filepath.Join(t.TempDir(), "test.key")
	require.NoError(t, GenerateKeyFile(keyFile))

	cfg := &conf.UDPConfig{
		Bind:    "127.0.0.1:0",
		KeyFile: keyFile,
		Backlog: 64,
	}

	chunks := make(chan *audio.Chunk, 8)
	server, err := NewServer(cfg, chunks)
	require.NoError(t, err)

	crypto, err := LoadCryptoContext(keyFile)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = server.Run(ctx)
	}()

	t.Cleanup(cancel)
	return server, crypto, chunks
}

func dialServer(t *testing.T, server *Server) *net.UDPConn {
	t.Helper()

	addr, err := net.ResolveUDPAddr("udp", server.LocalAddr().String())
	require.NoError(t, err)
	conn, err := net.DialUDP("udp", nil, addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func pcmBytes(samples []int16) []byte {
	out := make([]byte, 0, len(samples)*2)
	for _, s := range samples {
		out = binary.LittleEndian.AppendUint16(out, uint16(s))
	}
	return out
}

func waitForChunk(t *testing.T, chunks <-chan *audio.Chunk) *audio.Chunk {
	t.Helper()

	select {
	case chunk := <-chunks:
		return chunk
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for chunk")
		return nil
	}
}

func TestServerAssemblesOneSecondChunks(t *testing.T) {
	server, crypto, chunks := startTestServer(t)
	conn := dialServer(t, server)

	samples := make([]int16, audio.SampleRate)
	for i := range samples {
		samples[i] = int16(i % 1000)
	}
	data := pcmBytes(samples)

	var serial uint64
	for offset := 0; offset < len(data); offset += MaxPayloadSize {
		end := offset + MaxPayloadSize
		if end > len(data) {
			end = len(data)
		}
		packet, err := EncodePacket(serial, MessageAudioData, data[offset:end], crypto)
		require.NoError(t, err)
		_, err = conn.Write(packet)
		require.NoError(t, err)
		serial++
		time.Sleep(time.Millisecond)
	}

	chunk := waitForChunk(t, chunks)
	require.Len(t, chunk.SamplesI16, audio.SampleRate)
	assert.InDelta(t, 1.0, chunk.Duration, 1e-9)
	assert.Equal(t, samples, chunk.SamplesI16)
}

func TestServerFlushesOnEndOfStream(t *testing.T) {
	server, crypto, chunks := startTestServer(t)
	conn := dialServer(t, server)

	short := pcmBytes(make([]int16, 500))
	packet, err := EncodePacket(0, MessageAudioData, short, crypto)
	require.NoError(t, err)
	_, err = conn.Write(packet)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	eos, err := EncodePacket(1, MessageEndOfStream, nil, crypto)
	require.NoError(t, err)
	_, err = conn.Write(eos)
	require.NoError(t, err)

	chunk := waitForChunk(t, chunks)
	assert.Len(t, chunk.SamplesI16, 500)
}

func TestServerPassphraseChange(t *testing.T) {
	server, crypto, chunks := startTestServer(t)
	conn := dialServer(t, server)

	newKey := testKey(0x42)
	require.NoError(t, SendPassphraseChange(conn, 7, crypto, newKey))

	newCrypto, err := NewCryptoContext(newKey)
	require.NoError(t, err)

	// The ack comes back encrypted under the new key with the request serial.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	buf := make([]byte, maxDatagramSize)
	n, err := conn.Read(buf)
	require.NoError(t, err)

	ack, err := DecodePacket(buf[:n], newCrypto)
	require.NoError(t, err)
	assert.Equal(t, MessagePassphraseChangeAck, ack.Type)
	assert.Equal(t, uint64(7), ack.Serial)

	// Audio under the new key flows end to end.
	data := pcmBytes(make([]int16, audio.SampleRate))
	for offset, serial := 0, uint64(0); offset < len(data); offset += MaxPayloadSize {
		end := offset + MaxPayloadSize
		if end > len(data) {
			end = len(data)
		}
		packet, err := EncodePacket(serial, MessageAudioData, data[offset:end], newCrypto)
		require.NoError(t, err)
		_, err = conn.Write(packet)
		require.NoError(t, err)
		serial++
		time.Sleep(time.Millisecond)
	}

	chunk := waitForChunk(t, chunks)
	assert.Len(t, chunk.SamplesI16, audio.SampleRate)
}

func TestServerIgnoresGarbage(t *testing.T) {
	server, crypto, chunks := startTestServer(t)
	conn := dialServer(t, server)

	_, err := conn.Write([]byte("not a packet"))
	require.NoError(t, err)

	// The server keeps serving after a decode failure.
	data := pcmBytes(make([]int16, audio.SampleRate))
	for offset, serial := 0, uint64(0); offset < len(data); offset += MaxPayloadSize {
		end := offset + MaxPayloadSize
		if end > len(data) {
			end = len(data)
		}
		packet, err := EncodePacket(serial, MessageAudioData, data[offset:end], crypto)
		require.NoError(t, err)
		_, err = conn.Write(packet)
		require.NoError(t, err)
		serial++
		time.Sleep(time.Millisecond)
	}

	chunk := waitForChunk(t, chunks)
	assert.Len(t, chunk.SamplesI16, audio.SampleRate)
}
