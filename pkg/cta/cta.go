package cta

import (
	"strings"

	"personachat/pkg/emotion"
	"personachat/pkg/session"
)

type Action string

const (
	ActionPacks   Action = "packs"
	ActionPreview Action = "preview"
)

// Decision is the promotional prompt attached to a reply.
type Decision struct {
	Show       bool   `json:"should_show"`
	Message    string `json:"message"`
	ButtonText string `json:"button_text"`
	Action     Action `json:"action"`
}

const (
	// cadenceStart and cadenceEvery drive the periodic prompt: shown on every
	// eighth message once the conversation is past its first few turns.
	cadenceStart = 5
	cadenceEvery = 8

	keywordWindow = 3
)

// InterestKeywords are matched as lowercase substrings of recent user messages.
var InterestKeywords = []string{"fotos", "vídeos", "conteúdo", "pack", "exclusivo", "vip", "comprar"}

// ShouldShow reports whether a prompt should be attached to the current turn.
// history is the conversation before the current message.
func ShouldShow(messageCount int, history []session.Turn) bool {
	if messageCount > cadenceStart && messageCount%cadenceEvery == 0 {
		return true
	}

	recent := history
	if len(recent) > keywordWindow {
		recent = recent[len(recent)-keywordWindow:]
	}
	for _, turn := range recent {
		if ContainsInterest(turn.User) {
			return true
		}
	}
	return false
}

// ContainsInterest reports whether text mentions any interest keyword.
func ContainsInterest(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range InterestKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

var decisions = map[emotion.Label]Decision{
	emotion.Happy: {
		Show:       true,
		Message:    "Já que você está tão animado(a), que tal dar uma olhada no meu conteúdo exclusivo? 😍",
		ButtonText: "Ver Conteúdo VIP ✨",
		Action:     ActionPacks,
	},
	emotion.Positive: {
		Show:       true,
		Message:    "Você parece estar gostando da nossa conversa... Tenho algo especial para te mostrar! 💕",
		ButtonText: "Descobrir Surpresa 🎁",
		Action:     ActionPreview,
	},
	emotion.Neutral: {
		Show:       true,
		Message:    "Que tal conhecer um pouco mais do meu trabalho? Tenho certeza que vai gostar! 😘",
		ButtonText: "Ver Galeria 📸",
		Action:     ActionPreview,
	},
}

// Select returns the prompt for an emotion. Labels without their own entry use
// the neutral one.
func Select(label emotion.Label) Decision {
	if d, ok := decisions[label]; ok {
		return d
	}
	return decisions[emotion.Neutral]
}
