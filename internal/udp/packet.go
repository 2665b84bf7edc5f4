package udp

import (
	"encoding/binary"

	"github.com/erikh/hoover/internal/errors"
)

// MessageType identifies the decrypted payload of a packet.
type MessageType byte

const (
	MessageAudioData           MessageType = 0x01
	MessagePassphraseChangeReq MessageType = 0x02
	MessagePassphraseChangeAck MessageType = 0x03
	MessageEndOfStream         MessageType = 0xFF
)

// messageTypeFromByte validates a wire byte. Unknown types fail decode.
func messageTypeFromByte(b byte) (MessageType, bool) {
	switch MessageType(b) {
	case MessageAudioData, MessagePassphraseChangeReq, MessagePassphraseChangeAck, MessageEndOfStream:
		return MessageType(b), true
	default:
		return 0, false
	}
}

// Message is a decoded, decrypted packet.
type Message struct {
	Serial uint64
	Type   MessageType
	Data   []byte
}

// Wire format, integers big-endian:
//
//	[ serial: u64, plaintext ]
//	[ nonce: 12 bytes ]
//	[ ciphertext: variable, AES-256-GCM output with 16-byte tag ]
//
// The decrypted payload is one message-type byte followed by the body. The
// serial stays in plaintext so the receiver can index duplicates without
// decrypting.
const (
	serialSize    = 8
	gcmTagSize    = 16
	headerSize    = serialSize + NonceSize
	minPacketSize = headerSize + 1 + gcmTagSize
)

// MaxPayloadSize is the recommended audio payload bound per packet,
// conservative against a 1500-byte MTU.
const MaxPayloadSize = 1400

// EncodePacket seals a message into its wire representation.
func EncodePacket(serial uint64, msgType MessageType, data []byte, crypto *CryptoContext) ([]byte, error) {
	payload := make([]byte, 0, 1+len(data))
	payload = append(payload, byte(msgType))
	payload = append(payload, data...)

	ciphertext, nonce, err := crypto.Encrypt(payload)
	if err != nil {
		return nil, err
	}

	packet := make([]byte, 0, headerSize+len(ciphertext))
	packet = binary.BigEndian.AppendUint64(packet, serial)
	packet = append(packet, nonce...)
	packet = append(packet, ciphertext...)
	return packet, nil
}

// DecodePacket parses and decrypts a wire packet. Any failure (short packet,
// authentication failure, unknown message type) is returned as an error so
// the receiver can count it against the source address.
func DecodePacket(packet []byte, crypto *CryptoContext) (*Message, error) {
	if len(packet) < minPacketSize {
		return nil, errors.Newf("packet too small: %d bytes (min %d)", len(packet), minPacketSize).
			Component("udp").
			Category(errors.CategoryNetwork).
			Build()
	}

	serial := binary.BigEndian.Uint64(packet[:serialSize])
	nonce := packet[serialSize:headerSize]

	payload, err := crypto.Decrypt(nonce, packet[headerSize:])
	if err != nil {
		return nil, err
	}

	if len(payload) == 0 {
		return nil, errors.Newf("empty payload after decryption").
			Component("udp").
			Category(errors.CategoryNetwork).
			Build()
	}

	msgType, ok := messageTypeFromByte(payload[0])
	if !ok {
		return nil, errors.Newf("unknown message type: 0x%02x", payload[0]).
			Component("udp").
			Category(errors.CategoryNetwork).
			Build()
	}

	return &Message{
		Serial: serial,
		Type:   msgType,
		Data:   payload[1:],
	}, nil
}
