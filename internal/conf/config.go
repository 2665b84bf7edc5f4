// Package conf loads and validates hoover configuration through viper.
package conf

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/viper"
)

// Settings holds the typed configuration for the whole application.
type Settings struct {
	Debug bool // true to enable debug logging

	Main struct {
		LogDir string // directory for application log files
	}

	Audio AudioConfig

	STT STTConfig

	Speaker SpeakerConfig

	Output OutputConfig

	UDP UDPConfig
}

// AudioConfig configures microphone capture and chunking.
type AudioConfig struct {
	Device            string // capture device name, empty for system default
	ChunkDurationSecs int    // length of each transcription window in seconds
	OverlapSecs       int    // overlap between consecutive windows in seconds
}

// STTConfig selects and configures the speech-to-text backend.
type STTConfig struct {
	Backend  string // whisper, vosk or openai
	Language string // language hint passed to the backend

	Whisper struct {
		ServerURL string // whisper.cpp server endpoint
		Model     string // model identifier forwarded to the server, optional
	}

	Vosk struct {
		ModelPath string // path to the vosk model directory
	}

	OpenAI struct {
		APIKey   string // API key for the transcription endpoint
		Model    string // model name, e.g. whisper-1
		Endpoint string // transcription endpoint URL
	}
}

// SpeakerConfig configures speaker identification.
type SpeakerConfig struct {
	Enabled       bool    // true to tag segments with recognized speakers
	ModelPath     string  // path to the tflite speaker embedding model
	ProfilesDir   string  // directory holding enrolled .bin profiles
	MinConfidence float64 // cosine similarity required to accept a match
	FilterUnknown bool    // true to report no match for unrecognized speakers; their segments are written untagged
}

// OutputConfig configures the transcript writer.
type OutputConfig struct {
	Directory  string // directory for daily markdown files
	Timestamps bool   // true to emit minute headings
}

// UDPConfig configures the encrypted datagram receiver.
type UDPConfig struct {
	Enabled bool   // true to accept remote audio over UDP
	Bind    string // listen address, host:port
	KeyFile string // path to the 32-byte shared key file
	Backlog int    // out-of-order packet buffer bound

	Firewall FirewallConfig
}

// FirewallConfig configures blocking of peers that fail packet decode.
type FirewallConfig struct {
	Enabled           bool   // true to block source IPs on decode failure
	Backend           string // firewalld or nftables
	BlockDurationSecs int    // seconds before an automatic unblock
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file, with defaults for unset keys, into a
// Settings struct. Environment variables are not consulted.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settings, nil
}

// Setting returns the current settings instance, loading it if needed.
func Setting() *Settings {
	settingsMutex.RLock()
	if settingsInstance != nil {
		defer settingsMutex.RUnlock()
		return settingsInstance
	}
	settingsMutex.RUnlock()

	settings, err := Load()
	if err != nil {
		return nil
	}
	return settings
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("fatal error reading config file: %w", err)
		}
		// Config file not found, defaults apply.
	}

	return nil
}
