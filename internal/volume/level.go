package volume

import (
	"encoding/binary"
	"math"
)

// Level is the discrete feedback band for input amplitude.
type Level string

const (
	LevelSilent    Level = "silent"
	LevelLow       Level = "low"
	LevelGood      Level = "good"
	LevelExcellent Level = "excellent"
)

// Classification cuts over the normalized 0..1 amplitude. Comparisons are
// strict, so a value sitting exactly on a cut resolves to the higher band:
// 0.05 is low, 0.25 is good, 0.5 is excellent.
const (
	silentBelow = 0.05
	lowBelow    = 0.25
	goodBelow   = 0.5
)

// sensitivity scales raw RMS so normal speech lands in the good band.
const sensitivity = 4.0

// Classify maps a normalized amplitude to its level.
func Classify(amplitude float64) Level {
	switch {
	case amplitude < silentBelow:
		return LevelSilent
	case amplitude < lowBelow:
		return LevelLow
	case amplitude < goodBelow:
		return LevelGood
	default:
		return LevelExcellent
	}
}

// Amplitude computes the normalized RMS of little-endian 16-bit PCM.
func Amplitude(pcm []byte) float64 {
	if len(pcm) < 2 {
		return 0
	}
	var sum float64
	n := len(pcm) / 2
	for i := 0; i < n; i++ {
		sample := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
		sum += sample * sample
	}
	rms := math.Sqrt(sum / float64(n))
	amplitude := rms * sensitivity
	if amplitude > 1 {
		return 1
	}
	return amplitude
}
