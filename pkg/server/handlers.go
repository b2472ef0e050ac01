package server

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"personachat/pkg/catalog"
	"personachat/pkg/chat"
	"personachat/pkg/logging"
	"personachat/pkg/memory"
	"personachat/pkg/session"
)

type messageRequest struct {
	Text string `json:"text"`
}

type ageRequest struct {
	Confirmed bool `json:"confirmed"`
}

type profileRequest struct {
	Name        *string `json:"name"`
	Preferences *string `json:"preferences"`
}

type messageResponse struct {
	chat.Result
	TypingDelayMs int64 `json:"typing_delay_ms"`
	MessageCount  int   `json:"message_count"`
}

type packView struct {
	catalog.Pack
	DiscountPercent int `json:"discount_percent"`
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"sessions":  s.sessions.Count(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handlePersona(c *fiber.Ctx) error {
	p := s.clock.Current()
	return c.JSON(fiber.Map{
		"persona": p,
		"display": p.Display(s.cfg.App.Character),
	})
}

func (s *Server) handlePacks(c *fiber.Ctx) error {
	packs := make([]packView, 0, len(s.catalog.Packs))
	for _, p := range s.catalog.Packs {
		packs = append(packs, packView{Pack: p, DiscountPercent: p.DiscountPercent()})
	}
	return c.JSON(fiber.Map{"packs": packs})
}

func (s *Server) handlePreview(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"profile_image": s.catalog.ProfileImage,
		"previews":      s.catalog.Previews,
	})
}

func (s *Server) handleLinks(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"links": s.catalog.Links})
}

func (s *Server) handleCreateSession(c *fiber.Ctx) error {
	sess := s.sessions.Create()
	p := s.clock.Current()

	resp := fiber.Map{
		"session_id": sess.ID,
		"user_id":    sess.UserID,
		"persona":    p,
		"greeting":   p.Greeting,
	}
	if clip, ok := s.catalog.AudioClip("welcome"); ok {
		sess.Lock()
		sess.AudioCount++
		sess.Unlock()
		resp["welcome_audio"] = clip
	}

	logging.WithUser(s.logger, sess.UserID, sess.ID).Info("Session started")
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (s *Server) handleSessionStats(c *fiber.Ctx) error {
	sess, err := s.lookup(c)
	if err != nil {
		return err
	}

	sess.Lock()
	defer sess.Unlock()
	return c.JSON(fiber.Map{
		"session_id":     sess.ID,
		"user_id":        sess.UserID,
		"messages":       sess.MessageCount,
		"audios":         sess.AudioCount,
		"minutes_online": sess.MinutesOnline(),
		"age_verified":   sess.AgeVerified,
	})
}

func (s *Server) handleAgeGate(c *fiber.Ctx) error {
	sess, err := s.lookup(c)
	if err != nil {
		return err
	}

	var req ageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if !req.Confirmed {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Acesso permitido apenas para maiores de 18 anos",
		})
	}

	sess.Lock()
	sess.AgeVerified = true
	sess.Unlock()
	return c.JSON(fiber.Map{"age_verified": true})
}

func (s *Server) handleMessage(c *fiber.Ctx) error {
	sess, err := s.lookup(c)
	if err != nil {
		return err
	}

	sess.Lock()
	defer sess.Unlock()

	if !sess.AgeVerified {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Age confirmation required"})
	}

	var req messageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Message text is required"})
	}
	if limit := s.cfg.Limits.MaxRequestsPerSession; limit > 0 && sess.MessageCount >= limit {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "Você atingiu o limite de mensagens desta sessão. Que tal conhecer meus packs? 💕",
		})
	}

	result := s.chat.HandleMessage(c.UserContext(), text, sess)

	return c.JSON(messageResponse{
		Result:        result,
		TypingDelayMs: s.typingDelay(result.Response, result.Persona.Label).Milliseconds(),
		MessageCount:  sess.MessageCount,
	})
}

func (s *Server) handleCheckout(c *fiber.Ctx) error {
	sess, err := s.lookup(c)
	if err != nil {
		return err
	}

	pack, err := s.catalog.Pack(c.Params("pack"))
	if errors.Is(err, catalog.ErrUnknownPack) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Pack not found"})
	}
	if err != nil {
		return err
	}

	// Purchase history is read-modify-write on the profile
	sess.Lock()
	defer sess.Unlock()

	s.metrics.CheckoutClicks.WithLabelValues(pack.Key).Inc()
	log := logging.WithUser(s.logger, sess.UserID, sess.ID).WithField("pack", pack.Key)

	if s.store != nil {
		ctx := c.UserContext()
		err := s.store.RecordInteraction(ctx, memory.Interaction{
			UserID: sess.UserID,
			Type:   "checkout",
			Details: map[string]interface{}{
				"pack":    pack.Key,
				"price":   pack.PromoPrice,
				"persona": string(s.clock.Current().Label),
			},
		})
		if err != nil {
			s.metrics.PersistenceErrors.WithLabelValues("record_interaction").Inc()
			log.WithError(err).Warn("Failed to record checkout")
		}

		err = memory.AppendPurchase(ctx, s.store, sess.UserID, memory.Purchase{
			Pack:  pack.Key,
			Price: pack.PromoPrice,
			At:    time.Now(),
		})
		if err != nil {
			s.metrics.PersistenceErrors.WithLabelValues("append_purchase").Inc()
			log.WithError(err).Warn("Failed to record purchase intent")
		}
	}

	log.Info("Checkout started")
	return c.JSON(fiber.Map{
		"pack":             pack.Key,
		"checkout_url":     pack.CheckoutURL,
		"discount_percent": pack.DiscountPercent(),
	})
}

func (s *Server) handleGetProfile(c *fiber.Ctx) error {
	sess, err := s.lookup(c)
	if err != nil {
		return err
	}
	if s.store == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Profile storage is disabled"})
	}

	profile, err := s.store.GetProfile(c.UserContext(), sess.UserID)
	if errors.Is(err, memory.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Profile not found"})
	}
	if err != nil {
		return err
	}

	emotions, err := profile.Emotions()
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"profile":  profile,
		"emotions": emotions,
	})
}

func (s *Server) handleUpdateProfile(c *fiber.Ctx) error {
	sess, err := s.lookup(c)
	if err != nil {
		return err
	}
	if s.store == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Profile storage is disabled"})
	}

	var req profileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	update := memory.ProfileUpdate{Name: req.Name, Preferences: req.Preferences}
	if update.IsEmpty() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Nothing to update"})
	}

	if err := s.store.UpdateProfile(c.UserContext(), sess.UserID, update); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

const (
	defaultLogLimit = 20
	maxLogLimit     = 100
)

func logLimit(c *fiber.Ctx) int {
	limit := c.QueryInt("limit", defaultLogLimit)
	if limit <= 0 {
		return defaultLogLimit
	}
	if limit > maxLogLimit {
		return maxLogLimit
	}
	return limit
}

// handleMessageLog returns the user's stored messages, oldest first.
func (s *Server) handleMessageLog(c *fiber.Ctx) error {
	sess, err := s.lookup(c)
	if err != nil {
		return err
	}
	if s.store == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Message storage is disabled"})
	}

	messages, err := s.store.RecentMessages(c.UserContext(), sess.UserID, logLimit(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"messages": messages})
}

func (s *Server) handleInteractions(c *fiber.Ctx) error {
	sess, err := s.lookup(c)
	if err != nil {
		return err
	}
	if s.store == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Interaction storage is disabled"})
	}

	interactions, err := s.store.Interactions(c.UserContext(), sess.UserID, logLimit(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"interactions": interactions})
}

func (s *Server) lookup(c *fiber.Ctx) (*session.Session, error) {
	sess, ok := s.sessions.Get(c.Params("id"))
	if !ok {
		return nil, fiber.NewError(fiber.StatusNotFound, "Session not found")
	}
	return sess, nil
}

