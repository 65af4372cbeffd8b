package indicator

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/wav"

	"github.com/rbright/suzerain/internal/config"
)

type cueKind int

const (
	cueHeard cueKind = iota + 1
	cueSuccess
	cueError
	cueInterrupt
)

var cueNames = map[cueKind]string{
	cueHeard:     "heard",
	cueSuccess:   "success",
	cueError:     "error",
	cueInterrupt: "interrupt",
}

func (k cueKind) String() string {
	if name, ok := cueNames[k]; ok {
		return name
	}
	return "unknown"
}

// clip is mono PCM at rate.
type clip struct {
	rate    int
	samples []int16
}

type tone struct {
	hz   float64
	dur  time.Duration
	gain float64
}

const (
	synthRate = 16000
	toneGap   = 22 * time.Millisecond
	maxRamp   = 5 * time.Millisecond
)

// Rising for acknowledgement, falling for trouble.
var melodies = map[cueKind][]tone{
	cueHeard:     {{660, 60 * time.Millisecond, 0.16}, {990, 60 * time.Millisecond, 0.16}},
	cueSuccess:   {{523, 70 * time.Millisecond, 0.18}, {659, 70 * time.Millisecond, 0.18}, {784, 110 * time.Millisecond, 0.18}},
	cueError:     {{330, 140 * time.Millisecond, 0.2}, {247, 180 * time.Millisecond, 0.2}},
	cueInterrupt: {{587, 80 * time.Millisecond, 0.18}, {392, 120 * time.Millisecond, 0.18}},
}

// loadCue returns the configured WAV for kind, or the built-in melody when none is
// configured or the file cannot be read.
func loadCue(kind cueKind, cfg config.IndicatorConfig) clip {
	if path := cuePath(kind, cfg); path != "" {
		if c, err := readWAV(path); err == nil {
			return c
		}
	}
	return clip{rate: synthRate, samples: synthesize(melodies[kind])}
}

func cuePath(kind cueKind, cfg config.IndicatorConfig) string {
	raw := map[cueKind]string{
		cueHeard:     cfg.SoundHeardFile,
		cueSuccess:   cfg.SoundSuccessFile,
		cueError:     cfg.SoundErrorFile,
		cueInterrupt: cfg.SoundInterruptFile,
	}[kind]

	raw = strings.TrimSpace(raw)
	if raw != "~" && !strings.HasPrefix(raw, "~/") {
		return raw
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return raw
	}
	return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(raw, "~"), "/"))
}

// readWAV decodes a PCM WAV file and downmixes it to mono 16-bit.
func readWAV(path string) (clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return clip{}, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return clip{}, fmt.Errorf("%s is not a PCM WAV file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return clip{}, fmt.Errorf("decode %s: %w", path, err)
	}

	channels := max(buf.Format.NumChannels, 1)
	samples := make([]int16, 0, len(buf.Data)/channels)
	for i := 0; i+channels <= len(buf.Data); i += channels {
		sum := 0
		for _, v := range buf.Data[i : i+channels] {
			sum += to16(v, buf.SourceBitDepth)
		}
		samples = append(samples, int16(sum/channels))
	}
	return clip{rate: buf.Format.SampleRate, samples: samples}, nil
}

func to16(v, depth int) int {
	switch depth {
	case 8:
		return (v - 128) << 8
	case 24:
		return v >> 8
	case 32:
		return v >> 16
	default:
		return v
	}
}

func synthesize(melody []tone) []int16 {
	if len(melody) == 0 {
		return nil
	}
	var pcm []int16
	for i, t := range melody {
		if i > 0 {
			pcm = append(pcm, make([]int16, sampleCount(toneGap))...)
		}
		pcm = append(pcm, t.render()...)
	}
	return pcm
}

// render is a sine with a short linear attack and release so it does not click.
func (t tone) render() []int16 {
	n := sampleCount(t.dur)
	if n <= 0 || t.hz <= 0 || t.gain <= 0 {
		return nil
	}
	ramp := min(max(n/10, 1), sampleCount(maxRamp))

	pcm := make([]int16, n)
	for i := range pcm {
		env := min(1, float64(i)/float64(ramp), float64(n-1-i)/float64(ramp))
		s := math.Sin(2 * math.Pi * t.hz * float64(i) / synthRate)
		pcm[i] = int16(math.Round(s * t.gain * env * math.MaxInt16))
	}
	return pcm
}

func sampleCount(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * synthRate))
}
