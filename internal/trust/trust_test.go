package trust

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rbright/suzerain/internal/config"
	"github.com/stretchr/testify/require"
)

type scriptedConfirmer struct {
	answer  bool
	err     error
	prompts []string
}

func (s *scriptedConfirmer) Confirm(_ context.Context, prompt string) (bool, error) {
	s.prompts = append(s.prompts, prompt)
	return s.answer, s.err
}

func mustPolicy(t *testing.T, level Level, restrictions ...Restriction) *Policy {
	t.Helper()
	p, err := NewPolicy(level, restrictions...)
	require.NoError(t, err)
	return p
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw     string
		want    Level
		wantErr bool
	}{
		{raw: "1", want: LevelPreview},
		{raw: "5", want: LevelAutonomous},
		{raw: "Supervised", want: LevelSupervised},
		{raw: " explicit ", want: LevelExplicit},
		{raw: "0", wantErr: true},
		{raw: "6", wantErr: true},
		{raw: "reckless", wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseLevel(tc.raw)
		if tc.wantErr {
			require.Error(t, err, tc.raw)
			continue
		}
		require.NoError(t, err, tc.raw)
		require.Equal(t, tc.want, got)
	}
	require.Equal(t, "assisted", LevelAssisted.String())
	require.Equal(t, "level(9)", Level(9).String())
}

func TestGateMatrix(t *testing.T) {
	tests := []struct {
		level       Level
		destructive bool
		answer      bool
		want        bool
		reason      string
		asked       bool
	}{
		{level: LevelPreview, destructive: false, answer: true, want: false, reason: ReasonPreview},
		{level: LevelPreview, destructive: true, answer: true, want: false, reason: ReasonPreview},
		{level: LevelExplicit, destructive: false, answer: true, want: true, reason: ReasonConfirmed, asked: true},
		{level: LevelExplicit, destructive: false, answer: false, want: false, reason: ReasonDeclined, asked: true},
		{level: LevelSupervised, destructive: false, answer: false, want: true, reason: ReasonAuto},
		{level: LevelSupervised, destructive: true, answer: false, want: false, reason: ReasonDeclined, asked: true},
		{level: LevelSupervised, destructive: true, answer: true, want: true, reason: ReasonConfirmed, asked: true},
		{level: LevelAssisted, destructive: true, answer: false, want: true, reason: ReasonAuto},
		{level: LevelAutonomous, destructive: true, answer: false, want: true, reason: ReasonAuto},
		{level: LevelAutonomous, destructive: false, answer: false, want: true, reason: ReasonAuto},
	}
	for _, tc := range tests {
		c := &scriptedConfirmer{answer: tc.answer}
		g := NewGate(mustPolicy(t, tc.level), c)

		d, err := g.Decide(context.Background(), Subject{Phrase: "the judge smiled", Destructive: tc.destructive})
		require.NoError(t, err)
		require.Equal(t, tc.want, d.MayExecute, "level=%s destructive=%v", tc.level, tc.destructive)
		require.Equal(t, tc.reason, d.Reason)
		require.Equal(t, tc.level, d.Level)
		require.Equal(t, tc.asked, len(c.prompts) == 1)
	}
}

func TestGateDestructivePromptIsLabelled(t *testing.T) {
	c := &scriptedConfirmer{answer: true}
	g := NewGate(mustPolicy(t, LevelSupervised), c)
	_, err := g.Decide(context.Background(), Subject{Phrase: "the evening redness in the west", Destructive: true})
	require.NoError(t, err)
	require.Contains(t, c.prompts[0], "destructive")
}

func TestGateWithoutConfirmer(t *testing.T) {
	g := NewGate(mustPolicy(t, LevelExplicit), nil)
	d, err := g.Decide(context.Background(), Subject{Phrase: "x"})
	require.ErrorIs(t, err, ErrNoConfirmer)
	require.False(t, d.MayExecute)

	g = NewGate(mustPolicy(t, LevelAutonomous), nil)
	d, err = g.Decide(context.Background(), Subject{Phrase: "x", Destructive: true})
	require.NoError(t, err)
	require.True(t, d.MayExecute)
}

func TestGateConfirmerErrorDeclines(t *testing.T) {
	c := &scriptedConfirmer{err: errors.New("stdin closed")}
	g := NewGate(mustPolicy(t, LevelExplicit), c)
	d, err := g.Decide(context.Background(), Subject{Phrase: "x"})
	require.Error(t, err)
	require.False(t, d.MayExecute)
	require.Equal(t, ReasonDeclined, d.Reason)
}

func TestConfirmFunc(t *testing.T) {
	var asked string
	g := NewGate(mustPolicy(t, LevelExplicit), ConfirmFunc(func(_ context.Context, prompt string) (bool, error) {
		asked = prompt
		return true, nil
	}))
	d, err := g.Decide(context.Background(), Subject{Phrase: "they rode on"})
	require.NoError(t, err)
	require.True(t, d.MayExecute)
	require.Contains(t, asked, "they rode on")
}

func TestPolicyRestrictionWindows(t *testing.T) {
	night := Restriction{Window: config.Window{Start: 22 * 60, End: 6 * 60}, Max: LevelExplicit}
	p := mustPolicy(t, LevelAutonomous, night)

	at := func(h, m int) time.Time { return time.Date(2026, 1, 2, h, m, 0, 0, time.Local) }
	require.Equal(t, LevelAutonomous, p.EffectiveAt(at(12, 0)))
	require.Equal(t, LevelExplicit, p.EffectiveAt(at(23, 30)))
	require.Equal(t, LevelExplicit, p.EffectiveAt(at(3, 0)))
	require.Equal(t, LevelAutonomous, p.EffectiveAt(at(6, 0)))

	low := mustPolicy(t, LevelPreview, night)
	require.Equal(t, LevelPreview, low.EffectiveAt(at(23, 0)))
}

func TestRestrictionToPreviewReportsRestricted(t *testing.T) {
	always := Restriction{Window: config.Window{Start: 0, End: 24 * 60}, Max: LevelPreview}
	p := mustPolicy(t, LevelAssisted, always)
	p.now = func() time.Time { return time.Date(2026, 1, 2, 12, 0, 0, 0, time.Local) }

	d, err := NewGate(p, nil).Decide(context.Background(), Subject{Phrase: "x"})
	require.NoError(t, err)
	require.False(t, d.MayExecute)
	require.Equal(t, ReasonRestricted, d.Reason)
}

func TestDecideReasonMatchesBaseAcrossReloads(t *testing.T) {
	always := Restriction{Window: config.Window{Start: 0, End: 24 * 60}, Max: LevelPreview}
	p := mustPolicy(t, LevelPreview)
	p.now = func() time.Time { return time.Date(2026, 1, 2, 12, 0, 0, 0, time.Local) }
	g := NewGate(p, nil)

	stop := make(chan struct{})
	flipped := make(chan struct{})
	go func() {
		defer close(flipped)
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				_ = p.Set(LevelAutonomous, always)
			} else {
				_ = p.Set(LevelPreview)
			}
		}
	}()
	defer func() {
		close(stop)
		<-flipped
	}()

	for range 5000 {
		d, err := g.Decide(context.Background(), Subject{Phrase: "x"})
		require.NoError(t, err)
		require.Equal(t, LevelPreview, d.Level)
		if d.Base > LevelPreview {
			require.Equal(t, ReasonRestricted, d.Reason)
		} else {
			require.Equal(t, ReasonPreview, d.Reason)
		}
	}
}

func TestPolicyLevels(t *testing.T) {
	night := Restriction{Window: config.Window{Start: 22 * 60, End: 6 * 60}, Max: LevelExplicit}
	p := mustPolicy(t, LevelAutonomous, night)
	p.now = func() time.Time { return time.Date(2026, 1, 2, 23, 30, 0, 0, time.Local) }

	base, effective := p.Levels()
	require.Equal(t, LevelAutonomous, base)
	require.Equal(t, LevelExplicit, effective)
}

func TestPolicyFromConfigAndApply(t *testing.T) {
	p, err := PolicyFromConfig(config.TrustConfig{
		Level:        4,
		Restrictions: []config.RestrictionConfig{{Window: "22:00-06:00", MaxLevel: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, LevelAssisted, p.Base())
	require.Equal(t, LevelExplicit, p.EffectiveAt(time.Date(2026, 1, 2, 23, 0, 0, 0, time.Local)))

	require.NoError(t, p.Apply(config.TrustConfig{Level: 2}))
	require.Equal(t, LevelExplicit, p.Base())

	require.Error(t, p.Apply(config.TrustConfig{Level: 7}))
	require.Equal(t, LevelExplicit, p.Base())

	_, err = PolicyFromConfig(config.TrustConfig{Level: 3, Restrictions: []config.RestrictionConfig{{Window: "bad", MaxLevel: 1}}})
	require.Error(t, err)
}
