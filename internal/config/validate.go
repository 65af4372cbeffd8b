package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if cfg.Parser.Threshold <= 0 || cfg.Parser.Threshold > 100 {
		return nil, fmt.Errorf("parser.threshold must be in (0, 100]")
	}
	if cfg.Parser.EscapeThreshold <= 0 || cfg.Parser.EscapeThreshold > 100 {
		return nil, fmt.Errorf("parser.escape_threshold must be in (0, 100]")
	}
	if cfg.Parser.TieBand < 0 {
		return nil, fmt.Errorf("parser.tie_band must be >= 0")
	}
	if cfg.Parser.TopN <= 0 {
		return nil, fmt.Errorf("parser.top_n must be > 0")
	}
	switch cfg.Parser.Scorer {
	case "ratio", "token_sort_ratio", "token_set_ratio":
	default:
		return nil, fmt.Errorf("parser.scorer must be one of: ratio, token_sort_ratio, token_set_ratio")
	}
	if cfg.Parser.EscapeMaxTokens < 0 {
		return nil, fmt.Errorf("parser.escape_max_tokens must be >= 0")
	}

	switch cfg.Semantic.Mode {
	case "cipher", "general":
	default:
		return nil, fmt.Errorf("semantic.mode must be one of: cipher, general")
	}
	if cfg.Semantic.Threshold < 0 || cfg.Semantic.Threshold > 1 {
		return nil, fmt.Errorf("semantic.threshold must be in [0, 1]")
	}

	if cfg.Trust.Level < 1 || cfg.Trust.Level > 5 {
		return nil, fmt.Errorf("trust.level must be between 1 and 5")
	}
	for i, r := range cfg.Trust.Restrictions {
		if _, err := ParseWindow(r.Window); err != nil {
			return nil, fmt.Errorf("trust.restrictions[%d].window: %w", i, err)
		}
		if r.MaxLevel < 1 || r.MaxLevel > 5 {
			return nil, fmt.Errorf("trust.restrictions[%d].max_level must be between 1 and 5", i)
		}
	}

	if len(cfg.Assistant.Argv) == 0 {
		return nil, fmt.Errorf("assistant.command must not be empty")
	}
	if cfg.Assistant.DangerouslySkipPermissions {
		warnings = append(warnings, Warning{
			Key:     "assistant.dangerously_skip_permissions",
			Message: "assistant permission prompts are disabled for every dispatch",
		})
	}

	if cfg.Supervisor.Timeout <= 0 {
		return nil, fmt.Errorf("supervisor.timeout must be > 0")
	}
	if cfg.Supervisor.TerminateGrace < 0 {
		return nil, fmt.Errorf("supervisor.terminate_grace must be >= 0")
	}
	if cfg.Supervisor.PollInterval <= 0 {
		return nil, fmt.Errorf("supervisor.poll_interval must be > 0")
	}
	if cfg.Supervisor.PollInterval.Seconds() > 1 {
		warnings = append(warnings, Warning{
			Key:     "supervisor.poll_interval",
			Message: "poll interval above 1s delays interrupt handling",
		})
	}
	if cfg.Supervisor.SoftWarning >= cfg.Supervisor.Timeout {
		warnings = append(warnings, Warning{
			Key:     "supervisor.soft_warning",
			Message: "soft warning is not shorter than the hard timeout and will never fire",
		})
	}

	if cfg.Monitor.Enable {
		if cfg.Monitor.Window <= 0 {
			return nil, fmt.Errorf("monitor.window must be > 0 when monitor.enable=true")
		}
		if cfg.Monitor.MaxTokens < 0 {
			return nil, fmt.Errorf("monitor.max_tokens must be >= 0")
		}
	}

	if strings.TrimSpace(cfg.Audio.Input) == "" {
		return nil, fmt.Errorf("audio.input must not be empty")
	}
	switch cfg.Audio.Capture {
	case CaptureFixed, CaptureEndpoint, CaptureLive:
	default:
		return nil, fmt.Errorf("audio.capture must be one of: fixed, endpoint, live")
	}
	if cfg.Audio.MaxDuration <= 0 {
		return nil, fmt.Errorf("audio.max_duration must be > 0")
	}
	if cfg.Audio.Capture == CaptureFixed && cfg.Audio.Record <= 0 {
		return nil, fmt.Errorf("audio.record must be > 0 when audio.capture=fixed")
	}

	switch cfg.Transcription.Provider {
	case "openai", "deepgram":
	default:
		return nil, fmt.Errorf("transcription.provider must be one of: openai, deepgram")
	}
	if strings.TrimSpace(cfg.Transcription.Language) == "" {
		return nil, fmt.Errorf("transcription.language must not be empty")
	}
	if cfg.Audio.Capture == CaptureLive && strings.TrimSpace(cfg.Transcription.LiveURL) == "" {
		return nil, fmt.Errorf("transcription.live_url must not be empty when audio.capture=live")
	}

	switch cfg.Embedding.Provider {
	case "openai", "genai", "ollama":
	default:
		return nil, fmt.Errorf("embedding.provider must be one of: openai, genai, ollama")
	}
	if cfg.Embedding.Provider == "ollama" && strings.TrimSpace(cfg.Embedding.OllamaEndpoint) == "" {
		return nil, fmt.Errorf("embedding.ollama_endpoint must not be empty when embedding.provider=ollama")
	}

	switch cfg.Indicator.DesktopBackend {
	case DesktopBackendFreedesktop, DesktopBackendHyprland:
	default:
		return nil, fmt.Errorf("indicator.desktop_backend must be one of: freedesktop, hyprland")
	}
	if cfg.Indicator.DesktopEnable && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.desktop_enable=true")
	}

	return warnings, nil
}

// Window is a daily time-of-day range in minutes after midnight. Start > End wraps
// past midnight.
type Window struct {
	Start int
	End   int
}

// Contains reports whether minute-of-day m falls inside the window.
func (w Window) Contains(m int) bool {
	if w.Start <= w.End {
		return m >= w.Start && m < w.End
	}
	return m >= w.Start || m < w.End
}

// ParseWindow parses "HH:MM-HH:MM".
func ParseWindow(raw string) (Window, error) {
	start, end, ok := strings.Cut(strings.TrimSpace(raw), "-")
	if !ok {
		return Window{}, fmt.Errorf("window %q must look like HH:MM-HH:MM", raw)
	}
	s, err := parseClock(start)
	if err != nil {
		return Window{}, err
	}
	e, err := parseClock(end)
	if err != nil {
		return Window{}, err
	}
	if s == e {
		return Window{}, fmt.Errorf("window %q is empty", raw)
	}
	return Window{Start: s, End: e}, nil
}

func parseClock(raw string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return 0, fmt.Errorf("time %q must look like HH:MM", raw)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	return h*60 + m, nil
}
