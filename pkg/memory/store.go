package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound    = errors.New("memory: not found")
	ErrInvalidJSON = errors.New("memory: invalid JSON document")
)

// Message is one logged user message with its scoring.
type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"message"`
	Response  string    `json:"response"`
	Sentiment float64   `json:"sentiment"`
	Emotion   string    `json:"emotion"`
	Timestamp time.Time `json:"timestamp"`
}

type UserProfile struct {
	UserID           string          `json:"user_id"`
	Name             string          `json:"name"`
	Preferences      string          `json:"preferences"`
	InteractionCount int             `json:"interaction_count"`
	FirstInteraction time.Time       `json:"first_interaction"`
	LastInteraction  time.Time       `json:"last_interaction"`
	EmotionalProfile json.RawMessage `json:"emotional_profile"`
	PurchaseHistory  json.RawMessage `json:"purchase_history"`
}

// ProfileUpdate is a partial profile write. Nil fields are left untouched.
type ProfileUpdate struct {
	Name             *string
	Preferences      *string
	EmotionalProfile json.RawMessage
	PurchaseHistory  json.RawMessage
}

func (u ProfileUpdate) IsEmpty() bool {
	return u.Name == nil && u.Preferences == nil && u.EmotionalProfile == nil && u.PurchaseHistory == nil
}

func (u ProfileUpdate) validate() error {
	if u.EmotionalProfile != nil && !json.Valid(u.EmotionalProfile) {
		return fmt.Errorf("emotional_profile: %w", ErrInvalidJSON)
	}
	if u.PurchaseHistory != nil && !json.Valid(u.PurchaseHistory) {
		return fmt.Errorf("purchase_history: %w", ErrInvalidJSON)
	}
	return nil
}

// Interaction is an append-only event in a user's history.
type Interaction struct {
	UserID    string                 `json:"user_id"`
	Type      string                 `json:"interaction_type"`
	Details   map[string]interface{} `json:"details"`
	Timestamp time.Time              `json:"timestamp"`
}

// Store is the persistence collaborator of the chat service.
type Store interface {
	SaveMessage(ctx context.Context, msg Message) error
	RecentMessages(ctx context.Context, userID string, limit int) ([]Message, error)

	// GetProfile returns ErrNotFound when the user has no profile yet.
	GetProfile(ctx context.Context, userID string) (*UserProfile, error)
	// UpdateProfile creates the profile if needed.
	UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) error
	// IncrementInteractions creates the profile if needed and returns the new count.
	IncrementInteractions(ctx context.Context, userID string) (int, error)

	RecordInteraction(ctx context.Context, interaction Interaction) error
	// Interactions returns the newest limit interactions oldest first; limit <= 0 returns all.
	Interactions(ctx context.Context, userID string, limit int) ([]Interaction, error)
	Close() error
}

const (
	emptyEmotionalProfile = "{}"
	emptyPurchaseHistory  = "[]"
)

func orDefault(doc json.RawMessage, def string) json.RawMessage {
	if len(doc) == 0 {
		return json.RawMessage(def)
	}
	return doc
}
