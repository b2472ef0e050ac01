package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

// Bot owns the gateway connection for the DM channel.
type Bot struct {
	dg       *discordgo.Session
	handler  *Handler
	guildID  string
	commands []*discordgo.ApplicationCommand
	logger   logrus.FieldLogger
}

// Start connects to Discord and registers the handler and slash commands.
func Start(token, guildID string, h *Handler, logger logrus.FieldLogger) (*Bot, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent

	dg.AddHandler(h.MessageCreate)
	dg.AddHandler(h.InteractionCreate)

	if err := dg.Open(); err != nil {
		return nil, fmt.Errorf("open discord connection: %w", err)
	}
	h.SetBotID(dg.State.User.ID)

	b := &Bot{dg: dg, handler: h, guildID: guildID, logger: logger}

	b.commands, err = RegisterSlashCommands(dg, guildID)
	if err != nil {
		logger.WithError(err).Warn("Slash commands partially registered")
	}

	err = dg.UpdateStatusComplex(discordgo.UpdateStatusData{
		Activities: []*discordgo.Activity{
			{
				Name:  "Custom Status",
				Type:  discordgo.ActivityTypeCustom,
				State: "online pra conversar 💕",
			},
		},
		Status: "online",
	})
	if err != nil {
		logger.WithError(err).Warn("Failed to set custom status")
	}

	logger.WithField("bot_id", dg.State.User.ID).Info("Discord channel connected")
	return b, nil
}

func (b *Bot) Close() error {
	if err := UnregisterSlashCommands(b.dg, b.guildID, b.commands); err != nil {
		b.logger.WithError(err).Warn("Failed to unregister slash commands")
	}
	return b.dg.Close()
}
