package generation

import (
	"fmt"
	"strings"

	"personachat/pkg/emotion"
	"personachat/pkg/persona"
	"personachat/pkg/session"
)

// Request is everything the model needs to write one reply.
type Request struct {
	Persona  persona.Persona
	Emotion  emotion.Label
	History  []session.Turn
	UserText string
}

const firstInteraction = "Primeira interação"

// BuildPrompt renders the single-message prompt sent to the model.
func BuildPrompt(character string, req Request, historyTurns int) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Você é a %s, uma criadora de conteúdo brasileira, carismática e envolvente.\n\n", character)
	fmt.Fprintf(&sb, "PERSONALIDADE ATUAL: %s\n", req.Persona.Display(character))
	fmt.Fprintf(&sb, "EMOÇÃO DO USUÁRIO: %s\n\n", req.Emotion)

	sb.WriteString("INSTRUÇÕES IMPORTANTES:\n")
	sb.WriteString("- Seja sempre natural, carinhosa e próxima\n")
	sb.WriteString("- Use linguagem brasileira informal e acolhedora\n")
	sb.WriteString("- Mantenha o foco no relacionamento e na conexão emocional\n")
	sb.WriteString("- Seja responsiva ao estado emocional do usuário\n")
	sb.WriteString("- Use emojis de forma natural e moderada\n")
	sb.WriteString("- Mantenha as respostas entre 50 e 150 palavras\n\n")

	sb.WriteString("HISTÓRICO RECENTE:\n")
	sb.WriteString(FormatHistory(character, req.History, historyTurns))
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "MENSAGEM DO USUÁRIO: %s\n\n", req.UserText)
	fmt.Fprintf(&sb, "Responda como a %s responderia, sendo autêntica e envolvente:", character)

	return sb.String()
}

// FormatHistory renders the last n turns as alternating speaker lines.
func FormatHistory(character string, history []session.Turn, n int) string {
	if len(history) == 0 || n <= 0 {
		return firstInteraction
	}
	if len(history) > n {
		history = history[len(history)-n:]
	}

	lines := make([]string, 0, len(history)*2)
	for _, turn := range history {
		lines = append(lines, "Usuário: "+turn.User)
		lines = append(lines, character+": "+turn.Assistant)
	}
	return strings.Join(lines, "\n")
}
