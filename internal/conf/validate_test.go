package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erikh/hoover/internal/errors"
)

func validSettings() *Settings {
	s := &Settings{}
	s.STT.Backend = "whisper"
	s.Audio.ChunkDurationSecs = 10
	s.Audio.OverlapSecs = 2
	s.Speaker.MinConfidence = 0.6
	s.UDP.Backlog = 256
	return s
}

func TestValidateSettings(t *testing.T) {
	require.NoError(t, ValidateSettings(validSettings()))
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	s := validSettings()
	s.STT.Backend = "dictaphone"

	err := ValidateSettings(s)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfiguration))
}

func TestValidateRejectsBadOverlap(t *testing.T) {
	tests := []struct {
		name    string
		chunk   int
		overlap int
		wantErr bool
	}{
		{name: "no_overlap", chunk: 10, overlap: 0, wantErr: false},
		{name: "overlap_equals_chunk", chunk: 10, overlap: 10, wantErr: true},
		{name: "negative_overlap", chunk: 10, overlap: -1, wantErr: true},
		{name: "zero_chunk", chunk: 0, overlap: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			s.Audio.ChunkDurationSecs = tt.chunk
			s.Audio.OverlapSecs = tt.overlap

			err := ValidateSettings(s)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateOpenAIRequiresKey(t *testing.T) {
	s := validSettings()
	s.STT.Backend = "openai"

	require.Error(t, ValidateSettings(s))

	s.STT.OpenAI.APIKey = "sk-test"
	require.NoError(t, ValidateSettings(s))
}

func TestValidateFirewallBackend(t *testing.T) {
	s := validSettings()
	s.UDP.Enabled = true
	s.UDP.Firewall.Enabled = true
	s.UDP.Firewall.Backend = "iptables"

	require.Error(t, ValidateSettings(s))

	s.UDP.Firewall.Backend = "nftables"
	require.NoError(t, ValidateSettings(s))
}
