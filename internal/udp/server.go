package udp

import (
	"context"
	"encoding/binary"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/erikh/hoover/internal/audio"
	"github.com/erikh/hoover/internal/conf"
	"github.com/erikh/hoover/internal/errors"
	"github.com/erikh/hoover/internal/logging"
)

// maxDatagramSize bounds the receive buffer; larger datagrams are truncated
// by the kernel and will fail authentication.
const maxDatagramSize = 65536

// carryoverChunkSamples is one second of 16 kHz audio. Remote audio is
// reassembled into one-second chunks before entering the transcription queue.
const carryoverChunkSamples = audio.SampleRate

// Server receives encrypted audio datagrams and feeds reassembled chunks into
// the same queue the local capture pipeline uses.
type Server struct {
	conn     *net.UDPConn
	cryptoMu sync.Mutex
	crypto   *CryptoContext
	orderer  *Orderer
	firewall *FirewallManager
	chunks   chan<- *audio.Chunk

	// carryover holds samples not yet assembled into a full chunk. Only the
	// receive goroutine touches it.
	carryover []int16

	log *slog.Logger
}

// NewServer binds the UDP socket and loads the shared key.
func NewServer(cfg *conf.UDPConfig, chunks chan<- *audio.Chunk) (*Server, error) {
	log := logging.ForService("udp-server")

	addr, err := net.ResolveUDPAddr("udp", cfg.Bind)
	if err != nil {
		return nil, errors.New(err).
			Component("udp").
			Category(errors.CategoryNetwork).
			Context("bind", cfg.Bind).
			Build()
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, errors.New(err).
			Component("udp").
			Category(errors.CategoryNetwork).
			Context("bind", cfg.Bind).
			Build()
	}

	crypto, err := LoadCryptoContext(conf.ExpandPath(cfg.KeyFile))
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	var firewall *FirewallManager
	if cfg.Firewall.Enabled {
		firewall = NewFirewallManager(&cfg.Firewall)
	}

	log.Info("UDP server listening", "bind", cfg.Bind)

	return &Server{
		conn:     conn,
		crypto:   crypto,
		orderer:  NewOrderer(cfg.Backlog),
		firewall: firewall,
		chunks:   chunks,
		log:      log,
	}, nil
}

// LocalAddr returns the bound socket address.
func (s *Server) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Run receives datagrams until ctx is cancelled, then flushes any partial
// chunk and returns.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		// Unblock the read below.
		_ = s.conn.SetReadDeadline(time.Now())
	}()

	buf := make([]byte, maxDatagramSize)
	for {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				s.log.Info("UDP server shutting down")
				s.flushCarryover()
				_ = s.conn.Close()
				return nil
			}
			s.log.Error("UDP recv error", "error", err)
			continue
		}

		s.handlePacket(ctx, buf[:n], addr)
	}
}

func (s *Server) handlePacket(ctx context.Context, data []byte, addr *net.UDPAddr) {
	s.cryptoMu.Lock()
	msg, err := DecodePacket(data, s.crypto)
	s.cryptoMu.Unlock()
	if err != nil {
		s.log.Warn("failed to decode packet", "from", addr.String(), "error", err)
		if s.firewall != nil {
			s.firewall.BlockIP(ctx, addr.IP)
		}
		return
	}

	switch msg.Type {
	case MessagePassphraseChangeReq:
		s.handlePassphraseChange(msg, addr)
	case MessageEndOfStream:
		s.log.Info("end of stream", "from", addr.String())
		s.flushCarryover()
	default:
		for _, ready := range s.orderer.Insert(msg) {
			s.processMessage(ready)
		}
	}
}

// processMessage appends decoded audio samples to the carryover buffer and
// emits one-second chunks as they fill.
func (s *Server) processMessage(msg *Message) {
	if msg.Type != MessageAudioData {
		return
	}

	for i := 0; i+1 < len(msg.Data); i += 2 {
		s.carryover = append(s.carryover, int16(binary.LittleEndian.Uint16(msg.Data[i:])))
	}

	for len(s.carryover) >= carryoverChunkSamples {
		chunk := audio.ChunkFromI16(s.carryover[:carryoverChunkSamples], time.Now())
		s.carryover = s.carryover[:copy(s.carryover, s.carryover[carryoverChunkSamples:])]
		s.chunks <- chunk
	}
}

// flushCarryover emits whatever remains as a short chunk. Streams may resume
// afterwards; the buffer is simply restarted.
func (s *Server) flushCarryover() {
	if len(s.carryover) == 0 {
		return
	}

	chunk := audio.ChunkFromI16(s.carryover, time.Now())
	s.carryover = s.carryover[:0]
	s.chunks <- chunk
}

// handlePassphraseChange installs the requested key and acknowledges under
// the new key with the request's serial. Ack failures are non-fatal.
func (s *Server) handlePassphraseChange(msg *Message, addr *net.UDPAddr) {
	if len(msg.Data) != KeySize {
		s.log.Warn("invalid passphrase change request: wrong key length",
			"from", addr.String(), "length", len(msg.Data))
		return
	}

	s.cryptoMu.Lock()
	if err := s.crypto.UpdateKey(msg.Data); err != nil {
		s.cryptoMu.Unlock()
		s.log.Warn("passphrase update failed", "from", addr.String(), "error", err)
		return
	}
	ack, err := EncodePacket(msg.Serial, MessagePassphraseChangeAck, nil, s.crypto)
	s.cryptoMu.Unlock()

	s.log.Info("passphrase updated", "from", addr.String())

	if err != nil {
		s.log.Warn("failed to encode passphrase ack", "error", err)
		return
	}
	if _, err := s.conn.WriteToUDP(ack, addr); err != nil {
		s.log.Warn("failed to send passphrase ack", "to", addr.String(), "error", err)
	}
}
