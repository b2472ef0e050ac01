package discord

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"personachat/pkg/catalog"
	"personachat/pkg/chat"
	"personachat/pkg/config"
	"personachat/pkg/cta"
	"personachat/pkg/logging"
	"personachat/pkg/session"
)

const (
	// AgeConfirmation is the DM a user sends to pass the age gate
	AgeConfirmation = "!18"

	maxMessageLength = 2000
	maxInputLength   = 1000
)

const (
	agePrompt    = "Oi! 💕 Este chat é apenas para maiores de 18 anos. Envie **!18** para confirmar que você tem 18 anos ou mais."
	slowDown     = "Muitas mensagens! Aguarde um pouco antes de continuar. 😅"
	limitReached = "Você atingiu o limite de mensagens por hoje. Que tal conhecer meus packs enquanto isso? 💕"
	tooLong      = "Amor, essa mensagem ficou muito longa... me conta em partes? 😘"
)

// Chatter runs one chat turn.
type Chatter interface {
	HandleMessage(ctx context.Context, userText string, sess *session.Session) chat.Result
}

type Handler struct {
	chat     Chatter
	sessions *session.Manager
	catalog  *catalog.Catalog
	cfg      *config.Config
	logger   logrus.FieldLogger
	typing   chat.TypingConfig
	limiter  *userLimiter

	botID string

	// sleep is swapped out in tests
	sleep func(time.Duration)

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewHandler(c Chatter, sessions *session.Manager, cat *catalog.Catalog, cfg *config.Config, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Handler{
		chat:     c,
		sessions: sessions,
		catalog:  cat,
		cfg:      cfg,
		logger:   logger.WithField("channel", "discord"),
		typing:   chat.NewTypingConfig(cfg.Delays.MinSeconds, cfg.Delays.MaxSeconds, cfg.Delays.TypingSpeed),
		limiter:  newUserLimiter(cfg.Limits.RateLimitMessages, time.Duration(cfg.Limits.RateLimitWindowSeconds)*time.Second),
		sleep:    time.Sleep,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (h *Handler) SetBotID(id string) {
	h.botID = id
}

// SessionID is the chat session key for a Discord user.
func SessionID(userID string) string {
	return "discord:" + userID
}

func (h *Handler) MessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	h.HandleMessage(&DiscordSession{s}, m)
}

func (h *Handler) HandleMessage(s Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == h.botID {
		return
	}
	// Only direct messages
	if m.GuildID != "" {
		return
	}

	text := strings.TrimSpace(m.Content)
	if text == "" {
		return
	}

	if !h.limiter.Allow(m.Author.ID) {
		h.logger.WithField("user_id", m.Author.ID).Warn("Discord rate limit reached")
		_, _ = s.ChannelMessageSend(m.ChannelID, slowDown)
		return
	}

	sess := h.sessions.GetOrCreate(SessionID(m.Author.ID), m.Author.ID)
	log := logging.WithUser(h.logger, sess.UserID, sess.ID)

	sess.Lock()
	defer sess.Unlock()

	if !sess.AgeVerified {
		if text != AgeConfirmation {
			h.send(s, log, m.ChannelID, agePrompt)
			return
		}
		sess.AgeVerified = true
		log.Info("Age confirmed")
		h.send(s, log, m.ChannelID, "Obrigada por confirmar! 💋 Pode falar comigo quando quiser.")
		return
	}

	if utf8.RuneCountInString(text) > maxInputLength {
		h.send(s, log, m.ChannelID, tooLong)
		return
	}
	if limit := h.cfg.Limits.MaxRequestsPerSession; limit > 0 && sess.MessageCount >= limit {
		h.send(s, log, m.ChannelID, limitReached)
		return
	}

	result := h.chat.HandleMessage(context.Background(), text, sess)

	h.SimulateTyping(s, m.ChannelID, h.typingDuration(result))

	for _, part := range SplitMessage(result.Response, maxMessageLength) {
		h.send(s, log, m.ChannelID, part)
	}

	if result.CTA != nil && result.CTA.Show {
		h.sendCTA(s, log, m.ChannelID, *result.CTA)
	}
}

func (h *Handler) typingDuration(result chat.Result) time.Duration {
	h.rngMu.Lock()
	defer h.rngMu.Unlock()
	return chat.TypingDuration(result.Response, result.Persona.Label, h.typing, h.rng)
}

// SimulateTyping shows the typing indicator for d, refreshing it before Discord expires it.
func (h *Handler) SimulateTyping(s Session, channelID string, d time.Duration) {
	if d <= 0 {
		return
	}

	_ = s.ChannelTyping(channelID)

	// Discord typing indicator lasts ~10 seconds
	refreshInterval := 8 * time.Second
	elapsed := time.Duration(0)

	for elapsed < d {
		step := d - elapsed
		if step > refreshInterval {
			step = refreshInterval
		}
		h.sleep(step)
		elapsed += step

		if elapsed < d {
			_ = s.ChannelTyping(channelID)
		}
	}
}

func (h *Handler) send(s Session, log logrus.FieldLogger, channelID, content string) {
	if _, err := s.ChannelMessageSend(channelID, content); err != nil {
		log.WithError(err).Error("Failed to send Discord message")
	}
}

func (h *Handler) sendCTA(s Session, log logrus.FieldLogger, channelID string, d cta.Decision) {
	_, err := s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: d.Message,
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label: d.ButtonText,
						Style: discordgo.LinkButton,
						URL:   h.actionURL(d.Action),
					},
				},
			},
		},
	})
	if err != nil {
		log.WithError(err).Error("Failed to send call to action")
	}
}

func (h *Handler) actionURL(action cta.Action) string {
	return strings.TrimRight(h.cfg.App.PublicURL, "/") + "/" + string(action)
}

// SplitMessage breaks content into chunks of at most limit runes, preferring
// paragraph and line breaks.
func SplitMessage(content string, limit int) []string {
	runes := []rune(strings.TrimSpace(content))
	if len(runes) == 0 {
		return nil
	}
	if limit <= 0 {
		return []string{string(runes)}
	}

	var parts []string
	for len(runes) > limit {
		cut := lastBreak(runes[:limit])
		if part := strings.TrimSpace(string(runes[:cut])); part != "" {
			parts = append(parts, part)
		}
		runes = []rune(strings.TrimSpace(string(runes[cut:])))
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

// lastBreak returns the rune index to cut window at: the last paragraph break,
// else the last newline, else the last space, else the whole window.
func lastBreak(window []rune) int {
	for i := len(window) - 1; i > 0; i-- {
		if window[i] == '\n' && window[i-1] == '\n' {
			return i - 1
		}
	}
	for _, sep := range []rune{'\n', ' '} {
		for i := len(window) - 1; i > 0; i-- {
			if window[i] == sep {
				return i
			}
		}
	}
	return len(window)
}
