package udp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func audioMsg(serial uint64) *Message {
	return &Message{Serial: serial, Type: MessageAudioData, Data: []byte{byte(serial)}}
}

func TestOrdererInOrder(t *testing.T) {
	orderer := NewOrderer(100)

	for i := uint64(0); i < 5; i++ {
		ready := orderer.Insert(audioMsg(i))
		require.Len(t, ready, 1)
		assert.Equal(t, i, ready[0].Serial)
	}
}

func TestOrdererOutOfOrder(t *testing.T) {
	orderer := NewOrderer(100)

	assert.Empty(t, orderer.Insert(audioMsg(2)))
	assert.Empty(t, orderer.Insert(audioMsg(1)))

	ready := orderer.Insert(audioMsg(0))
	require.Len(t, ready, 3)
	for i, msg := range ready {
		assert.Equal(t, uint64(i), msg.Serial)
	}
}

func TestOrdererDiscardsDuplicates(t *testing.T) {
	orderer := NewOrderer(100)

	require.Len(t, orderer.Insert(audioMsg(0)), 1)
	assert.Empty(t, orderer.Insert(audioMsg(0)))
}

func TestOrdererBacklogOverflow(t *testing.T) {
	orderer := NewOrderer(3)

	// Buffer serials 1..3 while 0 is still missing.
	for i := uint64(1); i <= 3; i++ {
		assert.Empty(t, orderer.Insert(audioMsg(i)))
	}
	assert.Equal(t, 3, orderer.BufferedCount())

	// Serial 4 overflows the backlog: the gap and the buffered run are
	// silently discarded and the cursor lands past them.
	assert.Empty(t, orderer.Insert(audioMsg(4)))
	assert.GreaterOrEqual(t, orderer.Expected(), uint64(5))
	assert.Zero(t, orderer.BufferedCount())
}

func TestOrdererResumesAfterOverflow(t *testing.T) {
	orderer := NewOrderer(2)

	assert.Empty(t, orderer.Insert(audioMsg(5)))
	assert.Empty(t, orderer.Insert(audioMsg(6)))
	assert.Empty(t, orderer.Insert(audioMsg(7)))
	require.Equal(t, uint64(8), orderer.Expected())

	ready := orderer.Insert(audioMsg(8))
	require.Len(t, ready, 1)
	assert.Equal(t, uint64(8), ready[0].Serial)
}

func TestOrdererMonotonicProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		backlog := rapid.IntRange(1, 16).Draw(t, "backlog")
		orderer := NewOrderer(backlog)

		serials := rapid.SliceOfN(rapid.Uint64Range(0, 64), 1, 128).Draw(t, "serials")

		var emitted []uint64
		for _, serial := range serials {
			for _, msg := range orderer.Insert(audioMsg(serial)) {
				emitted = append(emitted, msg.Serial)
			}
		}

		for i := 1; i < len(emitted); i++ {
			if emitted[i] <= emitted[i-1] {
				t.Fatalf("output not strictly monotonic: %v", emitted)
			}
		}
	})
}
