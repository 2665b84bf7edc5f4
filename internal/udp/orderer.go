package udp

import (
	"log/slog"

	"github.com/erikh/hoover/internal/logging"
)

// Orderer buffers out-of-order packets and releases them in serial order.
// Serials below the expected cursor are duplicates or replays and are
// dropped. When the out-of-order buffer exceeds the backlog bound, the cursor
// advances to the smallest buffered serial and that consecutive run is
// discarded; the orderer is the only arbiter of dropped versus delayed
// packets.
type Orderer struct {
	expected uint64
	buffer   map[uint64]*Message
	backlog  int
	log      *slog.Logger
}

// NewOrderer creates an orderer with the given backlog bound.
func NewOrderer(backlog int) *Orderer {
	return &Orderer{
		buffer:  make(map[uint64]*Message),
		backlog: backlog,
		log:     logging.ForService("udp-orderer"),
	}
}

// Insert accepts a decoded message and returns any messages now releasable in
// strictly increasing serial order.
func (o *Orderer) Insert(msg *Message) []*Message {
	if msg.Serial < o.expected {
		o.log.Debug("discarding old packet", "serial", msg.Serial, "expected", o.expected)
		return nil
	}

	if msg.Serial == o.expected {
		ready := []*Message{msg}
		o.expected++

		for {
			next, ok := o.buffer[o.expected]
			if !ok {
				break
			}
			delete(o.buffer, o.expected)
			ready = append(ready, next)
			o.expected++
		}

		return ready
	}

	o.buffer[msg.Serial] = msg
	if len(o.buffer) > o.backlog {
		o.dropOldest()
	}

	return nil
}

// Expected returns the next serial the orderer will release.
func (o *Orderer) Expected() uint64 {
	return o.expected
}

// BufferedCount returns the number of out-of-order packets held.
func (o *Orderer) BufferedCount() int {
	return len(o.buffer)
}

// dropOldest advances the cursor to the smallest buffered serial and discards
// the consecutive run starting there. Both the gap and the run are lost.
func (o *Orderer) dropOldest() {
	oldest := uint64(0)
	found := false
	for serial := range o.buffer {
		if !found || serial < oldest {
			oldest = serial
			found = true
		}
	}
	if !found {
		return
	}

	o.log.Warn("backlog overflow, skipping serials",
		"from", o.expected, "to", oldest)

	o.expected = oldest
	for {
		if _, ok := o.buffer[o.expected]; !ok {
			break
		}
		delete(o.buffer, o.expected)
		o.expected++
	}
}
