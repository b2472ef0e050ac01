package chat

import (
	"math/rand"
	"time"
	"unicode/utf8"

	"personachat/pkg/persona"
)

// TypingConfig controls how long a channel shows the "typing" indicator.
type TypingConfig struct {
	// Seconds per character of the reply
	SecondsPerChar float64
	MinDuration    time.Duration
	MaxDuration    time.Duration
	// Random variation factor (0.0 - 1.0)
	Variation float64
}

func NewTypingConfig(minSeconds, maxSeconds, secondsPerChar float64) TypingConfig {
	return TypingConfig{
		SecondsPerChar: secondsPerChar,
		MinDuration:    time.Duration(minSeconds * float64(time.Second)),
		MaxDuration:    time.Duration(maxSeconds * float64(time.Second)),
		Variation:      0.3,
	}
}

// TypingDuration scales with reply length and the persona's pace, then clamps.
func TypingDuration(reply string, p persona.Label, cfg TypingConfig, rng *rand.Rand) time.Duration {
	base := float64(utf8.RuneCountInString(reply)) * cfg.SecondsPerChar * float64(time.Second)

	multiplier := 1.0
	switch p {
	case persona.Morning:
		multiplier = 0.8 // Energetic, types fast
	case persona.Evening:
		multiplier = 1.1
	case persona.LateNight:
		multiplier = 1.3 // Unhurried
	}

	d := time.Duration(base * multiplier)

	if rng != nil && cfg.Variation > 0 {
		variation := 1.0 + (rng.Float64()*2-1)*cfg.Variation
		d = time.Duration(float64(d) * variation)
	}

	if d < cfg.MinDuration {
		d = cfg.MinDuration
	}
	if cfg.MaxDuration > 0 && d > cfg.MaxDuration {
		d = cfg.MaxDuration
	}
	return d
}
