package persona

import (
	"fmt"
	"time"
)

// Label names one of the time-of-day personalities.
type Label string

const (
	Morning   Label = "Morning"
	Afternoon Label = "Afternoon"
	Evening   Label = "Evening"
	LateNight Label = "LateNight"
	Default   Label = "Default"
)

type Persona struct {
	Label       Label  `json:"label"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Greeting    string `json:"greeting"`
	Style       string `json:"style"`
}

var personas = map[Label]Persona{
	Morning: {
		Label:       Morning,
		Name:        "Manhã",
		Description: "energetic, motivated",
		Greeting:    "Bom dia, meu amor! ☀️ Que bom te ver logo cedo! Como você dormiu?",
		Style:       "energetic",
	},
	Afternoon: {
		Label:       Afternoon,
		Name:        "Tarde",
		Description: "relaxed, conversational",
		Greeting:    "Oi, querido! 😘 Que tarde maravilhosa para conversarmos, né?",
		Style:       "conversational",
	},
	Evening: {
		Label:       Evening,
		Name:        "Noite",
		Description: "intimate, seductive",
		Greeting:    "Boa noite, amor... 🌙 Que momento perfeito para nos conectarmos!",
		Style:       "seductive",
	},
	LateNight: {
		Label:       LateNight,
		Name:        "Madrugada",
		Description: "mysterious, confidential",
		Greeting:    "Olá, meu bem... 🌟 Que delícia te encontrar neste horário especial!",
		Style:       "intimate",
	},
	Default: {
		Label:       Default,
		Description: "always warm and engaging",
		Greeting:    "Oi, meu amor! 💋 Que bom te ver aqui! Como você está?",
		Style:       "warm",
	},
}

// Get returns the persona registered for label, or the default persona.
func Get(label Label) Persona {
	if p, ok := personas[label]; ok {
		return p
	}
	return personas[Default]
}

// ForHour maps an hour of a 24h clock to its persona.
func ForHour(hour int) Persona {
	switch {
	case hour >= 5 && hour < 12:
		return personas[Morning]
	case hour >= 12 && hour < 18:
		return personas[Afternoon]
	case hour >= 18 && hour < 23:
		return personas[Evening]
	default:
		return personas[LateNight]
	}
}

// At converts t into loc before picking the persona. A nil loc means the zone
// could not be resolved and yields the default persona.
func At(t time.Time, loc *time.Location) Persona {
	if loc == nil {
		return personas[Default]
	}
	return ForHour(t.In(loc).Hour())
}

// Display renders the status line shown in prompts and the chat header.
func (p Persona) Display(character string) string {
	if p.Name == "" {
		return fmt.Sprintf("%s - %s", character, p.Description)
	}
	return fmt.Sprintf("%s %s - %s", character, p.Name, p.Description)
}
