package audio

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/require"
)

func tone(n int, amplitude int16) []int16 {
	out := make([]int16, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = amplitude
		} else {
			out[i] = -amplitude
		}
	}
	return out
}

func TestSamplesDecodesLittleEndian(t *testing.T) {
	require.Equal(t, []int16{1, -1, 256}, Samples([]byte{0x01, 0x00, 0xff, 0xff, 0x00, 0x01, 0x07}))
	require.Empty(t, Samples(nil))
}

func TestRMS(t *testing.T) {
	require.Zero(t, RMS(nil))
	require.Zero(t, RMS(make([]int16, 100)))
	require.InDelta(t, 0.5, RMS(tone(100, 16384)), 1e-9)
	require.InDelta(t, 1.0, RMS(tone(10, math.MinInt16)), 1e-9)
}

func TestDuration(t *testing.T) {
	require.Equal(t, time.Second, Duration(make([]int16, SampleRate)))
	require.Equal(t, 20*time.Millisecond, Duration(make([]int16, frameBytes/2)))
}

func TestEncodeWAV(t *testing.T) {
	samples := tone(1600, 1200)
	data, err := EncodeWAV(samples)
	require.NoError(t, err)
	require.Equal(t, "RIFF", string(data[:4]))
	require.Equal(t, "WAVE", string(data[8:12]))

	dec := wav.NewDecoder(bytes.NewReader(data))
	require.True(t, dec.IsValidFile())
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	require.Equal(t, SampleRate, int(dec.SampleRate))
	require.Len(t, buf.Data, len(samples))
	require.Equal(t, 1200, buf.Data[0])
	require.Equal(t, -1200, buf.Data[1])

	_, err = EncodeWAV(nil)
	require.Error(t, err)
}

func TestEndpointerStopsAfterSilenceHold(t *testing.T) {
	chunk := frameBytes / 2
	ep := &Endpointer{SilenceRMS: 0.02, Hold: 100 * time.Millisecond, Max: 5 * time.Second}

	for range 10 {
		require.False(t, ep.Push(make([]int16, chunk)), "leading silence must not end capture")
	}
	require.False(t, ep.Heard())

	require.False(t, ep.Push(tone(chunk, 8000)))
	require.True(t, ep.Heard())

	stops := 0
	for range 5 {
		if ep.Push(make([]int16, chunk)) {
			stops++
		}
	}
	require.Equal(t, 1, stops, "fifth silent 20ms chunk reaches the 100ms hold")
}

func TestEndpointerSpeechResetsSilence(t *testing.T) {
	chunk := frameBytes / 2
	ep := &Endpointer{SilenceRMS: 0.02, Hold: 60 * time.Millisecond}

	ep.Push(tone(chunk, 8000))
	require.False(t, ep.Push(make([]int16, chunk)))
	require.False(t, ep.Push(make([]int16, chunk)))
	require.False(t, ep.Push(tone(chunk, 8000)))
	require.False(t, ep.Push(make([]int16, chunk)))
	require.False(t, ep.Push(make([]int16, chunk)))
	require.True(t, ep.Push(make([]int16, chunk)))
}

func TestEndpointerMaxDuration(t *testing.T) {
	ep := &Endpointer{SilenceRMS: 0.02, Hold: time.Second, Max: 40 * time.Millisecond}
	chunk := frameBytes / 2
	require.False(t, ep.Push(tone(chunk, 8000)))
	require.True(t, ep.Push(tone(chunk, 8000)))
}

func TestSeekBufferPatchesHeader(t *testing.T) {
	s := &seekBuffer{}
	_, _ = s.Write([]byte("abcdef"))
	pos, err := s.Seek(1, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, pos)
	_, _ = s.Write([]byte("XY"))
	require.Equal(t, "aXYdef", string(s.buf))

	_, err = s.Seek(-10, 1)
	require.Error(t, err)
}
