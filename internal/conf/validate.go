package conf

import (
	"github.com/erikh/hoover/internal/errors"
)

var validBackends = map[string]bool{
	"whisper": true,
	"vosk":    true,
	"openai":  true,
}

var validFirewallBackends = map[string]bool{
	"firewalld": true,
	"nftables":  true,
}

// ValidateSettings checks the loaded settings for fatal configuration errors.
func ValidateSettings(settings *Settings) error {
	if !validBackends[settings.STT.Backend] {
		return errors.Newf("unknown STT backend: %s (available: whisper, vosk, openai)", settings.STT.Backend).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if settings.Audio.ChunkDurationSecs <= 0 {
		return errors.Newf("audio.chunkdurationsecs must be positive, got %d", settings.Audio.ChunkDurationSecs).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if settings.Audio.OverlapSecs < 0 || settings.Audio.OverlapSecs >= settings.Audio.ChunkDurationSecs {
		return errors.Newf("audio.overlapsecs must be in [0, chunk duration), got %d", settings.Audio.OverlapSecs).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if settings.STT.Backend == "openai" && settings.STT.OpenAI.APIKey == "" {
		return errors.Newf("openai backend requires stt.openai.apikey to be set").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if settings.STT.Backend == "vosk" && settings.STT.Vosk.ModelPath == "" {
		return errors.Newf("vosk backend requires stt.vosk.modelpath to be set").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if settings.Speaker.MinConfidence < 0 || settings.Speaker.MinConfidence > 1 {
		return errors.Newf("speaker.minconfidence must be in [0, 1], got %f", settings.Speaker.MinConfidence).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if settings.UDP.Enabled {
		if settings.UDP.Backlog <= 0 {
			return errors.Newf("udp.backlog must be positive, got %d", settings.UDP.Backlog).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Build()
		}
		if settings.UDP.Firewall.Enabled && !validFirewallBackends[settings.UDP.Firewall.Backend] {
			return errors.Newf("unknown firewall backend: %s (available: firewalld, nftables)", settings.UDP.Firewall.Backend).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Build()
		}
	}

	return nil
}
