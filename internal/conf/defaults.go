package conf

import "github.com/spf13/viper"

// setDefaultConfig sets the default values for each configuration parameter.
func setDefaultConfig() {
	viper.SetDefault("debug", false)
	viper.SetDefault("main.logdir", "logs")

	viper.SetDefault("audio.device", "")
	viper.SetDefault("audio.chunkdurationsecs", 10)
	viper.SetDefault("audio.overlapsecs", 2)

	viper.SetDefault("stt.backend", "whisper")
	viper.SetDefault("stt.language", "en")
	viper.SetDefault("stt.whisper.serverurl", "http://127.0.0.1:8080/inference")
	viper.SetDefault("stt.whisper.model", "")
	viper.SetDefault("stt.vosk.modelpath", "")
	viper.SetDefault("stt.openai.apikey", "")
	viper.SetDefault("stt.openai.model", "whisper-1")
	viper.SetDefault("stt.openai.endpoint", "https://api.openai.com/v1/audio/transcriptions")

	viper.SetDefault("speaker.enabled", false)
	viper.SetDefault("speaker.modelpath", "")
	viper.SetDefault("speaker.profilesdir", "$HOME/.local/share/hoover/speakers")
	viper.SetDefault("speaker.minconfidence", 0.6)
	viper.SetDefault("speaker.filterunknown", false)

	viper.SetDefault("output.directory", "$HOME/journal")
	viper.SetDefault("output.timestamps", true)

	viper.SetDefault("udp.enabled", false)
	viper.SetDefault("udp.bind", "0.0.0.0:9988")
	viper.SetDefault("udp.keyfile", "$HOME/.config/hoover/hoover.key")
	viper.SetDefault("udp.backlog", 256)
	viper.SetDefault("udp.firewall.enabled", false)
	viper.SetDefault("udp.firewall.backend", "firewalld")
	viper.SetDefault("udp.firewall.blockdurationsecs", 600)
}
