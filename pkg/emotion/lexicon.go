package emotion

import (
	"strings"
	"unicode"
)

// LexiconScorer is a word-list polarity scorer. Each polarity word contributes its
// weight; an intensifier scales the next polarity word and a negator flips it at
// half strength. The score is the mean over polarity words.
type LexiconScorer struct {
	words        map[string]float64
	intensifiers map[string]float64
	negators     map[string]bool
}

func NewLexiconScorer() *LexiconScorer {
	return &LexiconScorer{
		words:        defaultPolarityWords(),
		intensifiers: defaultIntensifiers(),
		negators:     defaultNegators(),
	}
}

func (s *LexiconScorer) Polarity(text string) (float64, error) {
	var sum float64
	var count int

	// Negators and intensifiers only reach words in their own clause
	for _, clause := range clauses(text) {
		multiplier := 1.0
		negate := false

		for _, tok := range tokenize(clause) {
			if s.negators[tok] {
				negate = true
				continue
			}
			if m, ok := s.intensifiers[tok]; ok {
				multiplier *= m
				continue
			}

			weight, ok := s.words[tok]
			if !ok {
				continue
			}

			weight = clamp(weight * multiplier)
			if negate {
				weight *= -0.5
			}
			sum += weight
			count++

			multiplier = 1.0
			negate = false
		}
	}

	if count == 0 {
		return 0, nil
	}
	return clamp(sum / float64(count)), nil
}

// clauses splits text at sentence and clause punctuation.
func clauses(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case ',', '.', ';', ':', '!', '?', '\n':
			return true
		}
		return false
	})
}

// tokenize lowercases text into words and standalone symbol runes (emoji).
func tokenize(text string) []string {
	var tokens []string
	var word strings.Builder

	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}

	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'':
			word.WriteRune(r)
		case unicode.Is(unicode.So, r):
			flush()
			tokens = append(tokens, string(r))
		default:
			flush()
		}
	}
	flush()

	return tokens
}

func defaultIntensifiers() map[string]float64 {
	return map[string]float64{
		"muito": 1.3, "muita": 1.3, "super": 1.4, "demais": 1.3, "bem": 1.2, "tão": 1.3, "tao": 1.3,
		"very": 1.3, "really": 1.3, "so": 1.2, "extremely": 1.5, "totally": 1.3,
	}
}

func defaultNegators() map[string]bool {
	return map[string]bool{
		"não": true, "nao": true, "nunca": true, "nem": true, "jamais": true,
		"not": true, "never": true, "no": true, "don't": true, "isn't": true, "can't": true,
	}
}

func defaultPolarityWords() map[string]float64 {
	return map[string]float64{
		// Portuguese
		"feliz": 0.8, "felizes": 0.8, "alegre": 0.7, "animado": 0.6, "animada": 0.6,
		"amo": 0.5, "adoro": 0.6, "amei": 0.7, "lindo": 0.6, "linda": 0.6,
		"maravilhoso": 1.0, "maravilhosa": 1.0, "incrível": 0.9, "incrivel": 0.9,
		"ótimo": 0.8, "otimo": 0.8, "ótima": 0.8, "otima": 0.8, "perfeito": 1.0, "perfeita": 1.0,
		"bom": 0.7, "boa": 0.7, "legal": 0.5, "gostei": 0.5, "gosto": 0.4, "top": 0.5,
		"obrigado": 0.4, "obrigada": 0.4, "fofo": 0.5, "show": 0.5,
		"saudade": -0.2, "saudades": -0.2,
		"triste": -0.8, "tristeza": -0.8, "chateado": -0.6, "chateada": -0.6,
		"cansado": -0.4, "cansada": -0.4, "sozinho": -0.5, "sozinha": -0.5,
		"ruim": -0.7, "péssimo": -1.0, "pessimo": -1.0, "horrível": -1.0, "horrivel": -1.0,
		"odeio": -0.9, "raiva": -0.8, "mal": -0.6, "chato": -0.5, "chata": -0.5,
		"difícil": -0.3, "dificil": -0.3, "problema": -0.3, "deprimido": -0.9, "deprimida": -0.9,
		"ansioso": -0.5, "ansiosa": -0.5, "medo": -0.6, "chorando": -0.8, "chorar": -0.7,

		// English
		"happy": 0.8, "glad": 0.5, "love": 0.5, "great": 0.8, "good": 0.7, "nice": 0.6,
		"awesome": 1.0, "amazing": 0.6, "beautiful": 0.85, "wonderful": 1.0, "perfect": 1.0,
		"excellent": 1.0, "fun": 0.3, "cool": 0.35, "thanks": 0.2,
		"sad": -0.5, "bad": -0.7, "terrible": -1.0, "awful": -1.0, "hate": -0.8,
		"angry": -0.5, "lonely": -0.5, "tired": -0.4, "boring": -1.0, "worst": -1.0,
		"depressed": -0.9, "upset": -0.6,

		// Emoji
		"😊": 0.6, "😍": 0.9, "😘": 0.6, "❤": 0.7, "💕": 0.6, "😁": 0.7, "😂": 0.5, "🥰": 0.8,
		"😢": -0.7, "😭": -0.8, "😔": -0.6, "😞": -0.6, "😡": -0.8, "💔": -0.8,
	}
}
