package doctor

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/rbright/suzerain/internal/config"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
}

func TestReportOKAllPassing(t *testing.T) {
	report := Report{Checks: []Check{{Name: "one", Pass: true}, {Name: "two", Pass: true}}}
	require.True(t, report.OK())
}

func TestCheckCommandEmpty(t *testing.T) {
	check := checkCommand(nil, "assistant.command")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "command is empty")
}

func TestCheckBinaryFoundAndMissing(t *testing.T) {
	check := checkBinary("sh", "shell available")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "shell available")

	check = checkBinary("definitely-not-a-real-binary", "unused")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "binary not found")
}

func TestCheckCommandUsesBinaryFromPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fake-claude"), []byte("#!/usr/bin/env sh\nexit 0\n"), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))

	check := checkCommand([]string{"fake-claude", "--model", "opus"}, "assistant.command")
	require.True(t, check.Pass)
	require.Equal(t, "fake-claude", check.Name)
	require.Contains(t, check.Message, "assistant.command is available")
}

func TestCheckConfig(t *testing.T) {
	check := checkConfig(config.Loaded{Path: "/tmp/suzerain.yaml", Exists: true})
	require.True(t, check.Pass)
	require.Equal(t, `loaded "/tmp/suzerain.yaml"`, check.Message)

	check = checkConfig(config.Loaded{Path: "/tmp/missing.yaml", Warnings: []config.Warning{{Message: "x"}}})
	require.Equal(t, `using defaults ("/tmp/missing.yaml" not found), 1 warning(s)`, check.Message)
}

func TestCheckGrimoire(t *testing.T) {
	check := checkGrimoire("")
	require.True(t, check.Pass, check.Message)
	require.Contains(t, check.Message, "built-in:")

	path := filepath.Join(t.TempDir(), "grimoire.yaml")
	require.NoError(t, os.WriteFile(path, []byte("commands:\n  - phrase: \"\"\n    expansion: x\n"), 0o600))
	check = checkGrimoire(path)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "invalid")
}

func TestCheckKeys(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DEEPGRAM_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	cfg := config.Default()
	cfg.Audio.Capture = config.CaptureLive
	checks := checkTranscriptionKeys(cfg)
	require.Len(t, checks, 2)
	require.True(t, checks[0].Pass)
	require.False(t, checks[1].Pass)
	require.Equal(t, "DEEPGRAM_API_KEY is not set", checks[1].Message)

	require.True(t, checkEmbeddingKey(config.EmbeddingConfig{Provider: "openai"}).Pass)
	require.False(t, checkEmbeddingKey(config.EmbeddingConfig{Provider: "genai"}).Pass)
	require.True(t, checkEmbeddingKey(config.EmbeddingConfig{Provider: "ollama", OllamaEndpoint: "http://localhost:11434"}).Pass)
}

func TestCheckAudioSelectionFailureWithInvalidPulseServer(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	check := checkAudioSelection(context.Background(), config.Default())
	require.False(t, check.Pass)
	require.Equal(t, "audio.device", check.Name)
}

func TestCheckSpeechHealth(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	check := checkSpeechHealth(context.Background(), lis.Addr().String())
	require.True(t, check.Pass, check.Message)
	require.Contains(t, check.Message, "SERVING")

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	check = checkSpeechHealth(context.Background(), lis.Addr().String())
	require.False(t, check.Pass)
}

func TestRunIncludesOptionalChecksOnlyWhenConfigured(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	cfg := config.Default()
	report := Run(context.Background(), config.Loaded{Path: "/tmp/config.yaml", Config: cfg})
	names := map[string]bool{}
	for _, c := range report.Checks {
		names[c.Name] = true
	}
	require.True(t, names["config"])
	require.True(t, names["grimoire"])
	require.True(t, names["audio.device"])
	require.False(t, names["embedding.key"])
	require.False(t, names["speech.health"])

	cfg.Semantic.Enable = true
	report = Run(context.Background(), config.Loaded{Path: "/tmp/config.yaml", Config: cfg})
	names = map[string]bool{}
	for _, c := range report.Checks {
		names[c.Name] = true
	}
	require.True(t, names["embedding.key"])
}
