package udp

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/wav"

	"github.com/erikh/hoover/internal/errors"
	"github.com/erikh/hoover/internal/logging"
)

// interPacketDelay paces outbound packets so receivers on modest links are
// not flooded.
const interPacketDelay = time.Millisecond

// Send reads PCM16-LE audio from path (or stdin when path is empty),
// packetizes it in MTU-conservative payloads and ships it to target,
// terminating the stream with an EndOfStream marker. WAV files are unwrapped
// to their PCM payload first.
func Send(ctx context.Context, target, path, keyFile string) error {
	log := logging.ForService("udp-sender")

	targetAddr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return errors.New(err).
			Component("udp").
			Category(errors.CategoryNetwork).
			Context("target", target).
			Build()
	}

	crypto, err := LoadCryptoContext(keyFile)
	if err != nil {
		return err
	}

	conn, err := net.DialUDP("udp", nil, targetAddr)
	if err != nil {
		return errors.New(err).
			Component("udp").
			Category(errors.CategoryNetwork).
			Context("target", target).
			Build()
	}
	defer conn.Close()

	data, err := readAudioData(path)
	if err != nil {
		return err
	}

	log.Info("sending audio", "bytes", len(data), "target", target)

	var serial uint64
	for offset := 0; offset < len(data); offset += MaxPayloadSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := offset + MaxPayloadSize
		if end > len(data) {
			end = len(data)
		}

		packet, err := EncodePacket(serial, MessageAudioData, data[offset:end], crypto)
		if err != nil {
			return err
		}
		if _, err := conn.Write(packet); err != nil {
			return errors.New(err).
				Component("udp").
				Category(errors.CategoryNetwork).
				Context("serial", serial).
				Build()
		}
		serial++

		time.Sleep(interPacketDelay)
	}

	eos, err := EncodePacket(serial, MessageEndOfStream, nil, crypto)
	if err != nil {
		return err
	}
	if _, err := conn.Write(eos); err != nil {
		return errors.New(err).
			Component("udp").
			Category(errors.CategoryNetwork).
			Context("operation", "end_of_stream").
			Build()
	}

	log.Info("sent audio stream", "packets", serial, "target", target)
	return nil
}

// SendPassphraseChange encodes a passphrase-change request carrying the new
// key under the current key and ships it to target.
func SendPassphraseChange(conn *net.UDPConn, serial uint64, current *CryptoContext, newKey []byte) error {
	if len(newKey) != KeySize {
		return errors.Newf("new key must be exactly %d bytes, got %d", KeySize, len(newKey)).
			Component("udp").
			Category(errors.CategoryCrypto).
			Build()
	}

	packet, err := EncodePacket(serial, MessagePassphraseChangeReq, newKey, current)
	if err != nil {
		return err
	}
	if _, err := conn.Write(packet); err != nil {
		return errors.New(err).
			Component("udp").
			Category(errors.CategoryNetwork).
			Context("operation", "passphrase_change").
			Build()
	}
	return nil
}

// readAudioData loads PCM16-LE bytes from a file or stdin. WAV input is
// decoded; anything else is treated as raw PCM.
func readAudioData(path string) ([]byte, error) {
	if path == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, errors.New(err).
				Component("udp").
				Category(errors.CategoryFileIO).
				Context("source", "stdin").
				Build()
		}
		return data, nil
	}

	if strings.EqualFold(filepath.Ext(path), ".wav") {
		return readWavPCM(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Component("udp").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return data, nil
}

// readWavPCM extracts the sample payload of a WAV file as PCM16-LE bytes.
func readWavPCM(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("udp").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	pcm, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, errors.New(err).
			Component("udp").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	out := make([]byte, 0, len(pcm.Data)*2)
	shift := 0
	if decoder.BitDepth > 16 {
		shift = int(decoder.BitDepth) - 16
	}
	for _, sample := range pcm.Data {
		s := sample >> shift
		if s > 32767 {
			s = 32767
		} else if s < -32768 {
			s = -32768
		}
		out = binary.LittleEndian.AppendUint16(out, uint16(int16(s)))
	}
	return out, nil
}
