// Package config resolves, loads, validates, and defaults suzerain configuration.
package config

import "time"

// Config is the fully materialized runtime configuration used by suzerain.
type Config struct {
	Grimoire      GrimoireConfig      `mapstructure:"grimoire"`
	Parser        ParserConfig        `mapstructure:"parser"`
	Semantic      SemanticConfig      `mapstructure:"semantic"`
	Trust         TrustConfig         `mapstructure:"trust"`
	Assistant     AssistantConfig     `mapstructure:"assistant"`
	Supervisor    SupervisorConfig    `mapstructure:"supervisor"`
	Monitor       MonitorConfig       `mapstructure:"monitor"`
	Audio         AudioConfig         `mapstructure:"audio"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	Indicator     IndicatorConfig     `mapstructure:"indicator"`
	History       HistoryConfig       `mapstructure:"history"`
	Fallback      FallbackConfig      `mapstructure:"fallback"`
	Debug         DebugConfig         `mapstructure:"debug"`
}

// GrimoireConfig locates the command registry. An empty path uses the built-in grimoire.
type GrimoireConfig struct {
	Path  string `mapstructure:"path"`
	Watch bool   `mapstructure:"watch"`
}

// ParserConfig tunes the hybrid matcher.
type ParserConfig struct {
	Threshold       float64  `mapstructure:"threshold"`
	EscapeThreshold float64  `mapstructure:"escape_threshold"`
	TieBand         float64  `mapstructure:"tie_band"`
	TopN            int      `mapstructure:"top_n"`
	Scorer          string   `mapstructure:"scorer"`
	FillerWords     []string `mapstructure:"filler_words"`
	EscapeMaxTokens int      `mapstructure:"escape_max_tokens"`
}

// SemanticConfig controls the embedding fallback stage.
type SemanticConfig struct {
	Enable    bool    `mapstructure:"enable"`
	Mode      string  `mapstructure:"mode"`
	Threshold float64 `mapstructure:"threshold"`
}

// TrustConfig sets the baseline level and optional time windows that cap it.
type TrustConfig struct {
	Level        int                 `mapstructure:"level"`
	Restrictions []RestrictionConfig `mapstructure:"restrictions"`
}

// RestrictionConfig caps the trust level inside a daily HH:MM-HH:MM window.
type RestrictionConfig struct {
	Window   string `mapstructure:"window"`
	MaxLevel int    `mapstructure:"max_level"`
}

// AssistantConfig describes the external assistant process.
type AssistantConfig struct {
	Command                    string   `mapstructure:"command"`
	Argv                       []string `mapstructure:"-"`
	WorkDir                    string   `mapstructure:"work_dir"`
	DangerouslySkipPermissions bool     `mapstructure:"dangerously_skip_permissions"`
	RouteProfiles              bool     `mapstructure:"route_profiles"`
}

// SupervisorConfig bounds one execution session.
type SupervisorConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	SoftWarning    time.Duration `mapstructure:"soft_warning"`
	TerminateGrace time.Duration `mapstructure:"terminate_grace"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
}

// MonitorConfig controls the spoken interrupt listener.
type MonitorConfig struct {
	Enable     bool          `mapstructure:"enable"`
	Window     time.Duration `mapstructure:"window"`
	SilenceRMS float64       `mapstructure:"silence_rms"`
	MaxTokens  int           `mapstructure:"max_tokens"`
}

// AudioConfig controls input-source selection and utterance capture.
type AudioConfig struct {
	Input       string        `mapstructure:"input"`
	Fallback    string        `mapstructure:"fallback"`
	Capture     string        `mapstructure:"capture"`
	Record      time.Duration `mapstructure:"record"`
	MaxDuration time.Duration `mapstructure:"max_duration"`
	SilenceRMS  float64       `mapstructure:"silence_rms"`
	SilenceHold time.Duration `mapstructure:"silence_hold"`
}

// Capture modes for utterance recording.
const (
	CaptureFixed    = "fixed"
	CaptureEndpoint = "endpoint"
	CaptureLive     = "live"
)

// TranscriptionConfig selects speech-to-text providers.
type TranscriptionConfig struct {
	Provider     string        `mapstructure:"provider"`
	Model        string        `mapstructure:"model"`
	Language     string        `mapstructure:"language"`
	Timeout      time.Duration `mapstructure:"timeout"`
	LiveModel    string        `mapstructure:"live_model"`
	LiveURL      string        `mapstructure:"live_url"`
	Endpointing  time.Duration `mapstructure:"endpointing"`
	HealthTarget string        `mapstructure:"health_target"`
	Retry        bool          `mapstructure:"retry"`
}

// EmbeddingConfig selects the vector provider for the semantic stage.
type EmbeddingConfig struct {
	Provider       string `mapstructure:"provider"`
	Model          string `mapstructure:"model"`
	OllamaEndpoint string `mapstructure:"ollama_endpoint"`
	TaskType       string `mapstructure:"task_type"`
}

// IndicatorConfig controls audio cues and desktop notifications.
type IndicatorConfig struct {
	SoundEnable        bool   `mapstructure:"sound_enable"`
	SoundHeardFile     string `mapstructure:"sound_heard_file"`
	SoundSuccessFile   string `mapstructure:"sound_success_file"`
	SoundErrorFile     string `mapstructure:"sound_error_file"`
	SoundInterruptFile string `mapstructure:"sound_interrupt_file"`
	DesktopEnable      bool   `mapstructure:"desktop_enable"`
	DesktopBackend     string `mapstructure:"desktop_backend"`
	DesktopAppName     string `mapstructure:"desktop_app_name"`
}

// Desktop notification backends.
const (
	DesktopBackendFreedesktop = "freedesktop"
	DesktopBackendHyprland    = "hyprland"
)

// HistoryConfig controls the dispatch history database.
type HistoryConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// FallbackConfig controls what happens when nothing in the grimoire matches.
type FallbackConfig struct {
	Enable    bool `mapstructure:"enable"`
	AutoPlain bool `mapstructure:"auto_plain"`
}

// DebugConfig controls optional debug behavior.
type DebugConfig struct {
	DryRun          bool `mapstructure:"dry_run"`
	EnableAudioDump bool `mapstructure:"enable_audio_dump"`
}

// Warning is a non-fatal load/validation message.
type Warning struct {
	Key     string
	Message string
}
