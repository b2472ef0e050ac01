package emotion

import (
	"math"
)

// Label is the emotion inferred from a message's polarity.
type Label string

const (
	Happy    Label = "happy"
	Sad      Label = "sad"
	Positive Label = "positive"
	Negative Label = "negative"
	Neutral  Label = "neutral"
)

// Tone is the response style recommended for an emotion.
type Tone string

const (
	Celebratory Tone = "celebratory"
	Supportive  Tone = "supportive"
	Encouraging Tone = "encouraging"
	Empathetic  Tone = "empathetic"
	ToneNeutral Tone = "neutral"
)

// Assessment is derived fresh for every message.
type Assessment struct {
	Score     float64 `json:"sentiment_score"`
	Emotion   Label   `json:"emotion"`
	Intensity float64 `json:"intensity"`
	Tone      Tone    `json:"recommendation"`
}

// LabelFor maps a polarity score to an emotion. Order matters: first match wins.
func LabelFor(score float64) Label {
	switch {
	case score > 0.3:
		return Happy
	case score < -0.3:
		return Sad
	case score > 0.1:
		return Positive
	case score < -0.1:
		return Negative
	default:
		return Neutral
	}
}

func ToneFor(label Label, score float64) Tone {
	switch {
	case label == Happy && score > 0.5:
		return Celebratory
	case label == Sad && score < -0.3:
		return Supportive
	case label == Positive:
		return Encouraging
	case label == Negative:
		return Empathetic
	default:
		return ToneNeutral
	}
}

// Assess builds the full assessment for a score.
func Assess(score float64) Assessment {
	label := LabelFor(score)
	return Assessment{
		Score:     score,
		Emotion:   label,
		Intensity: math.Abs(score),
		Tone:      ToneFor(label, score),
	}
}

// NeutralAssessment is what a failed scoring degrades to.
func NeutralAssessment() Assessment {
	return Assess(0)
}

func clamp(score float64) float64 {
	if score > 1 {
		return 1
	}
	if score < -1 {
		return -1
	}
	return score
}
