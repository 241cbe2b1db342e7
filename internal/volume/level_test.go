package volume

import (
	"encoding/binary"
	"testing"
	"time"
)

func TestClassifyBands(t *testing.T) {
	cases := []struct {
		amplitude float64
		want      Level
	}{
		{0.0, LevelSilent},
		{0.03, LevelSilent},
		{0.20, LevelLow},
		{0.40, LevelGood},
		{0.80, LevelExcellent},
		{1.0, LevelExcellent},
	}
	for _, tc := range cases {
		if got := Classify(tc.amplitude); got != tc.want {
			t.Fatalf("Classify(%v) = %v, want %v", tc.amplitude, got, tc.want)
		}
	}
}

func TestClassifyBoundariesResolveToHigherBand(t *testing.T) {
	// Cuts are strict less-than, so exact boundary values land in the
	// band above.
	if got := Classify(0.05); got != LevelLow {
		t.Fatalf("Classify(0.05) = %v, want low", got)
	}
	if got := Classify(0.25); got != LevelGood {
		t.Fatalf("Classify(0.25) = %v, want good", got)
	}
	if got := Classify(0.5); got != LevelExcellent {
		t.Fatalf("Classify(0.5) = %v, want excellent", got)
	}
}

func TestAmplitudeSilenceAndClipping(t *testing.T) {
	silence := make([]byte, 320)
	if got := Amplitude(silence); got != 0 {
		t.Fatalf("silent PCM should measure 0, got %v", got)
	}

	loud := make([]byte, 320)
	for i := 0; i < len(loud); i += 2 {
		binary.LittleEndian.PutUint16(loud[i:], uint16(int16(32000)))
	}
	if got := Amplitude(loud); got != 1 {
		t.Fatalf("full-scale PCM should clip to 1, got %v", got)
	}

	if got := Amplitude(nil); got != 0 {
		t.Fatalf("empty PCM should measure 0, got %v", got)
	}
}

func TestFeedbackWarmup(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := NewFeedback(start)

	if f.Observe(LevelGood, start.Add(500*time.Millisecond)) {
		t.Fatal("no feedback before 2s of sustained listening")
	}
	if !f.Observe(LevelGood, start.Add(2*time.Second)) {
		t.Fatal("expected the first nudge once warmup elapsed")
	}
}

func TestFeedbackOnlyOnLowExcellentSwing(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := NewFeedback(start)
	now := start.Add(3 * time.Second)
	f.Observe(LevelLow, now)

	if f.Observe(LevelGood, now.Add(time.Second)) {
		t.Fatal("low to good is not a surfaced transition")
	}
	if !f.Observe(LevelExcellent, now.Add(2*time.Second)) {
		t.Fatal("low to excellent must surface")
	}
	if f.Observe(LevelGood, now.Add(3*time.Second)) {
		t.Fatal("excellent to good is not a surfaced transition")
	}
	if !f.Observe(LevelLow, now.Add(4*time.Second)) {
		t.Fatal("excellent to low must surface")
	}
}
