// Package doctor runs readiness diagnostics for config, grimoire, assistant, audio,
// provider keys, and the speech backend.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/suzerain/internal/audio"
	"github.com/rbright/suzerain/internal/config"
	"github.com/rbright/suzerain/internal/embedding"
	"github.com/rbright/suzerain/internal/grimoire"
	"github.com/rbright/suzerain/internal/transcribe"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes every check for a loaded config.
func Run(ctx context.Context, loaded config.Loaded) Report {
	cfg := loaded.Config
	checks := []Check{checkConfig(loaded)}

	checks = append(checks, checkGrimoire(cfg.Grimoire.Path))
	checks = append(checks, checkCommand(cfg.Assistant.Argv, "assistant.command"))
	checks = append(checks, checkAudioSelection(ctx, cfg))
	checks = append(checks, checkTranscriptionKeys(cfg)...)
	if cfg.Semantic.Enable {
		checks = append(checks, checkEmbeddingKey(cfg.Embedding))
	}
	if strings.TrimSpace(cfg.Transcription.HealthTarget) != "" {
		checks = append(checks, checkSpeechHealth(ctx, cfg.Transcription.HealthTarget))
	}

	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	msg := fmt.Sprintf("loaded %q", loaded.Path)
	if !loaded.Exists {
		msg = fmt.Sprintf("using defaults (%q not found)", loaded.Path)
	}
	if n := len(loaded.Warnings); n > 0 {
		msg = fmt.Sprintf("%s, %d warning(s)", msg, n)
	}
	return Check{Name: "config", Pass: true, Message: msg}
}

func checkGrimoire(path string) Check {
	g, issues, err := grimoire.Open(path)
	if err != nil {
		return Check{Name: "grimoire", Pass: false, Message: err.Error()}
	}
	msg := fmt.Sprintf("%s: %d commands, %d modifiers", grimoire.SourceName(path), len(g.Commands), len(g.Modifiers))
	if len(issues) > 0 {
		msg = fmt.Sprintf("%s, %d warning(s)", msg, len(issues))
	}
	return Check{Name: "grimoire", Pass: true, Message: msg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

func checkTranscriptionKeys(cfg config.Config) []Check {
	checks := []Check{checkEnvKey("transcription.key", transcribe.EnvOpenAIKey)}
	if cfg.Audio.Capture == config.CaptureLive {
		checks = append(checks, checkEnvKey("transcription.live_key", transcribe.EnvDeepgramKey))
	}
	return checks
}

func checkEmbeddingKey(cfg config.EmbeddingConfig) Check {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case embedding.ProviderGenAI:
		if embedding.GenAIKey() == "" {
			return Check{Name: "embedding.key", Pass: false, Message: fmt.Sprintf("%s or %s is not set", embedding.EnvGeminiKey, embedding.EnvGoogleKey)}
		}
		return Check{Name: "embedding.key", Pass: true, Message: "gemini key present"}
	case embedding.ProviderOllama:
		return Check{Name: "embedding.key", Pass: true, Message: fmt.Sprintf("ollama at %s needs no key", cfg.OllamaEndpoint)}
	default:
		return checkEnvKey("embedding.key", embedding.EnvOpenAIKey)
	}
}

func checkEnvKey(name, env string) Check {
	if strings.TrimSpace(os.Getenv(env)) == "" {
		return Check{Name: name, Pass: false, Message: env + " is not set"}
	}
	return Check{Name: name, Pass: true, Message: env + " present"}
}

func checkSpeechHealth(ctx context.Context, target string) Check {
	report, err := transcribe.CheckHealth(ctx, target, "", 2*time.Second)
	if err != nil {
		return Check{Name: "speech.health", Pass: false, Message: err.Error()}
	}
	return Check{Name: "speech.health", Pass: true, Message: fmt.Sprintf("%s at %s (%s)", report.Status, report.Target, report.Latency.Round(time.Millisecond))}
}
