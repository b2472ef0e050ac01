package chat

import (
	"math/rand"
	"sync"

	"personachat/pkg/emotion"
)

const Apology = "Desculpa, amor! Tive um probleminha aqui. Pode repetir? 😅"

var fallbackResponses = map[emotion.Label][]string{
	emotion.Happy: {
		"Que bom te ver tão animado(a), amor! 😊 Me conta mais sobre isso!",
		"Adoro quando você está assim, radiante! ✨ O que te deixou tão feliz?",
		"Sua energia positiva é contagiante! 💕 Vamos conversar mais!",
	},
	emotion.Sad: {
		"Percebi que você não está muito bem... 😔 Quer conversar sobre isso?",
		"Estou aqui para você, meu bem. 💜 O que está acontecendo?",
		"Às vezes precisamos desabafar... Pode contar comigo! 🤗",
	},
	emotion.Neutral: {
		"Oi, meu amor! Como você está hoje? 💋",
		"Que bom te ver por aqui! O que vamos conversar? 😘",
		"Olá, querido! Estava com saudades... 💕",
	},
}

// FallbackBucket returns the canned reply set used for label. Positive and
// negative messages share the neutral set.
func FallbackBucket(label emotion.Label) []string {
	if responses, ok := fallbackResponses[label]; ok {
		return responses
	}
	return fallbackResponses[emotion.Neutral]
}

// fallbackPicker chooses canned replies from a seedable source.
type fallbackPicker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (p *fallbackPicker) pick(label emotion.Label) string {
	bucket := FallbackBucket(label)
	p.mu.Lock()
	i := p.rng.Intn(len(bucket))
	p.mu.Unlock()
	return bucket[i]
}
