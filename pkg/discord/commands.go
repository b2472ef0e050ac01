package discord

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// SlashCommands defines all available slash commands
var SlashCommands = []*discordgo.ApplicationCommand{
	{
		Name:        "packs",
		Description: "Ver os packs disponíveis e os descontos de hoje",
	},
	{
		Name:        "stats",
		Description: "Ver as estatísticas da nossa conversa",
	},
	{
		Name:        "reset",
		Description: "Apagar a conversa atual e começar de novo",
	},
}

var slashCommandHandlers = map[string]func(h *Handler, s Session, i *discordgo.InteractionCreate){
	"packs": handlePacksCommand,
	"stats": handleStatsCommand,
	"reset": handleResetCommand,
}

// getUserFromInteraction handles both guild (Member) and DM (User) contexts
func getUserFromInteraction(i *discordgo.InteractionCreate) (string, error) {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID, nil
	}
	if i.User != nil {
		return i.User.ID, nil
	}
	return "", fmt.Errorf("could not determine user from interaction")
}

func respondEphemeral(h *Handler, s Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to respond to interaction")
	}
}

func handlePacksCommand(h *Handler, s Session, i *discordgo.InteractionCreate) {
	var b strings.Builder
	b.WriteString("**💎 Packs Exclusivos**\n")
	for _, p := range h.catalog.Packs {
		fmt.Fprintf(&b, "\n**%s** %s\n", p.Name, p.Tag)
		fmt.Fprintf(&b, "~~R$ %d~~ → **R$ %d** (%d%% OFF)\n", p.OriginalPrice, p.PromoPrice, p.DiscountPercent())
		for _, f := range p.Features {
			b.WriteString("• " + f + "\n")
		}
	}
	fmt.Fprintf(&b, "\n%s", h.actionURL("packs"))
	respondEphemeral(h, s, i, b.String())
}

func handleStatsCommand(h *Handler, s Session, i *discordgo.InteractionCreate) {
	userID, err := getUserFromInteraction(i)
	if err != nil {
		h.logger.WithError(err).Warn("Stats command without user")
		return
	}

	sess, ok := h.sessions.Get(SessionID(userID))
	if !ok {
		respondEphemeral(h, s, i, "A gente ainda não conversou! Me manda uma mensagem 💕")
		return
	}

	sess.Lock()
	content := fmt.Sprintf("**📊 Nossa conversa**\nMensagens: %d\nÁudios: %d\nTempo online: %d min",
		sess.MessageCount, sess.AudioCount, sess.MinutesOnline())
	sess.Unlock()

	respondEphemeral(h, s, i, content)
}

func handleResetCommand(h *Handler, s Session, i *discordgo.InteractionCreate) {
	userID, err := getUserFromInteraction(i)
	if err != nil {
		h.logger.WithError(err).Warn("Reset command without user")
		return
	}

	h.sessions.Delete(SessionID(userID))
	h.logger.WithField("user_id", userID).Info("Discord session reset")
	respondEphemeral(h, s, i, "Conversa apagada! Vamos começar de novo? ✨")
}

func (h *Handler) InteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	h.HandleInteraction(&DiscordSession{s}, i)
}

// HandleInteraction dispatches slash commands
func (h *Handler) HandleInteraction(s Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	name := i.ApplicationCommandData().Name
	if handler, ok := slashCommandHandlers[name]; ok {
		handler(h, s, i)
	} else {
		h.logger.WithField("command", name).Warn("Unknown slash command")
	}
}

// RegisterSlashCommands registers all slash commands with Discord. An empty
// guildID registers them globally.
func RegisterSlashCommands(s *discordgo.Session, guildID string) ([]*discordgo.ApplicationCommand, error) {
	registered := make([]*discordgo.ApplicationCommand, 0, len(SlashCommands))
	for _, cmd := range SlashCommands {
		rc, err := s.ApplicationCommandCreate(s.State.User.ID, guildID, cmd)
		if err != nil {
			return registered, fmt.Errorf("create %q command: %w", cmd.Name, err)
		}
		registered = append(registered, rc)
	}
	return registered, nil
}

func UnregisterSlashCommands(s *discordgo.Session, guildID string, commands []*discordgo.ApplicationCommand) error {
	for _, cmd := range commands {
		if err := s.ApplicationCommandDelete(s.State.User.ID, guildID, cmd.ID); err != nil {
			return fmt.Errorf("delete %q command: %w", cmd.Name, err)
		}
	}
	return nil
}
