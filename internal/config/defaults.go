package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	assistant := "claude"

	return Config{
		Grimoire: GrimoireConfig{Watch: true},
		Parser: ParserConfig{
			Threshold:       70,
			EscapeThreshold: 95,
			TieBand:         10,
			TopN:            3,
			Scorer:          "token_set_ratio",
			FillerWords:     []string{"um", "uh", "er", "like", "so"},
		},
		Semantic: SemanticConfig{
			Enable: false,
			Mode:   "cipher",
		},
		Trust: TrustConfig{Level: 3},
		Assistant: AssistantConfig{
			Command:       assistant,
			Argv:          mustParseArgv(assistant),
			RouteProfiles: true,
		},
		Supervisor: SupervisorConfig{
			Timeout:        300 * time.Second,
			SoftWarning:    30 * time.Second,
			TerminateGrace: 5 * time.Second,
			PollInterval:   500 * time.Millisecond,
		},
		Monitor: MonitorConfig{
			Enable:     true,
			Window:     1500 * time.Millisecond,
			SilenceRMS: 0.012,
			MaxTokens:  2,
		},
		Audio: AudioConfig{
			Input:       "default",
			Fallback:    "default",
			Capture:     CaptureEndpoint,
			Record:      3 * time.Second,
			MaxDuration: 30 * time.Second,
			SilenceRMS:  0.015,
			SilenceHold: 900 * time.Millisecond,
		},
		Transcription: TranscriptionConfig{
			Provider:    "openai",
			Model:       "whisper-1",
			Language:    "en",
			Timeout:     20 * time.Second,
			LiveModel:   "nova-2",
			LiveURL:     "wss://api.deepgram.com/v1/listen",
			Endpointing: 300 * time.Millisecond,
			Retry:       true,
		},
		Embedding: EmbeddingConfig{
			Provider:       "openai",
			Model:          "",
			OllamaEndpoint: "http://localhost:11434",
			TaskType:       "SEMANTIC_SIMILARITY",
		},
		Indicator: IndicatorConfig{
			SoundEnable:    true,
			DesktopEnable:  false,
			DesktopBackend: DesktopBackendFreedesktop,
			DesktopAppName: "suzerain",
		},
		History:  HistoryConfig{Enable: true},
		Fallback: FallbackConfig{Enable: true},
	}
}

// setDefaults registers every key with viper so env overrides resolve for keys that
// are absent from the file.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("grimoire.path", d.Grimoire.Path)
	v.SetDefault("grimoire.watch", d.Grimoire.Watch)

	v.SetDefault("parser.threshold", d.Parser.Threshold)
	v.SetDefault("parser.escape_threshold", d.Parser.EscapeThreshold)
	v.SetDefault("parser.tie_band", d.Parser.TieBand)
	v.SetDefault("parser.top_n", d.Parser.TopN)
	v.SetDefault("parser.scorer", d.Parser.Scorer)
	v.SetDefault("parser.filler_words", d.Parser.FillerWords)
	v.SetDefault("parser.escape_max_tokens", d.Parser.EscapeMaxTokens)

	v.SetDefault("semantic.enable", d.Semantic.Enable)
	v.SetDefault("semantic.mode", d.Semantic.Mode)
	v.SetDefault("semantic.threshold", d.Semantic.Threshold)

	v.SetDefault("trust.level", d.Trust.Level)

	v.SetDefault("assistant.command", d.Assistant.Command)
	v.SetDefault("assistant.work_dir", d.Assistant.WorkDir)
	v.SetDefault("assistant.dangerously_skip_permissions", d.Assistant.DangerouslySkipPermissions)
	v.SetDefault("assistant.route_profiles", d.Assistant.RouteProfiles)

	v.SetDefault("supervisor.timeout", d.Supervisor.Timeout)
	v.SetDefault("supervisor.soft_warning", d.Supervisor.SoftWarning)
	v.SetDefault("supervisor.terminate_grace", d.Supervisor.TerminateGrace)
	v.SetDefault("supervisor.poll_interval", d.Supervisor.PollInterval)

	v.SetDefault("monitor.enable", d.Monitor.Enable)
	v.SetDefault("monitor.window", d.Monitor.Window)
	v.SetDefault("monitor.silence_rms", d.Monitor.SilenceRMS)
	v.SetDefault("monitor.max_tokens", d.Monitor.MaxTokens)

	v.SetDefault("audio.input", d.Audio.Input)
	v.SetDefault("audio.fallback", d.Audio.Fallback)
	v.SetDefault("audio.capture", d.Audio.Capture)
	v.SetDefault("audio.record", d.Audio.Record)
	v.SetDefault("audio.max_duration", d.Audio.MaxDuration)
	v.SetDefault("audio.silence_rms", d.Audio.SilenceRMS)
	v.SetDefault("audio.silence_hold", d.Audio.SilenceHold)

	v.SetDefault("transcription.provider", d.Transcription.Provider)
	v.SetDefault("transcription.model", d.Transcription.Model)
	v.SetDefault("transcription.language", d.Transcription.Language)
	v.SetDefault("transcription.timeout", d.Transcription.Timeout)
	v.SetDefault("transcription.live_model", d.Transcription.LiveModel)
	v.SetDefault("transcription.live_url", d.Transcription.LiveURL)
	v.SetDefault("transcription.endpointing", d.Transcription.Endpointing)
	v.SetDefault("transcription.health_target", d.Transcription.HealthTarget)
	v.SetDefault("transcription.retry", d.Transcription.Retry)

	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.ollama_endpoint", d.Embedding.OllamaEndpoint)
	v.SetDefault("embedding.task_type", d.Embedding.TaskType)

	v.SetDefault("indicator.sound_enable", d.Indicator.SoundEnable)
	v.SetDefault("indicator.sound_heard_file", d.Indicator.SoundHeardFile)
	v.SetDefault("indicator.sound_success_file", d.Indicator.SoundSuccessFile)
	v.SetDefault("indicator.sound_error_file", d.Indicator.SoundErrorFile)
	v.SetDefault("indicator.sound_interrupt_file", d.Indicator.SoundInterruptFile)
	v.SetDefault("indicator.desktop_enable", d.Indicator.DesktopEnable)
	v.SetDefault("indicator.desktop_backend", d.Indicator.DesktopBackend)
	v.SetDefault("indicator.desktop_app_name", d.Indicator.DesktopAppName)

	v.SetDefault("history.enable", d.History.Enable)
	v.SetDefault("history.path", d.History.Path)

	v.SetDefault("fallback.enable", d.Fallback.Enable)
	v.SetDefault("fallback.auto_plain", d.Fallback.AutoPlain)

	v.SetDefault("debug.dry_run", d.Debug.DryRun)
	v.SetDefault("debug.enable_audio_dump", d.Debug.EnableAudioDump)
}
