package session

import (
	"sync"
	"time"
)

// Turn is one user message and the reply that was shown for it.
type Turn struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// Session is the per-visitor conversation context. The caller owns it; the chat
// orchestrator mutates it only after a turn completes.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	History      []Turn    `json:"history"`
	MessageCount int       `json:"message_count"`
	AudioCount   int       `json:"audio_count"`
	AgeVerified  bool      `json:"age_verified"`
	CreatedAt    time.Time `json:"created_at"`

	mu sync.Mutex
}

func New(id, userID string) *Session {
	return &Session{
		ID:        id,
		UserID:    userID,
		History:   make([]Turn, 0, 16),
		CreatedAt: time.Now(),
	}
}

// Lock serialises turns of the same session arriving on different requests.
func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// Recent returns a copy of the last n turns.
func (s *Session) Recent(n int) []Turn {
	if n <= 0 || len(s.History) == 0 {
		return []Turn{}
	}
	start := len(s.History) - n
	if start < 0 {
		start = 0
	}
	out := make([]Turn, len(s.History)-start)
	copy(out, s.History[start:])
	return out
}

// Append records a completed turn and bumps the message counter.
func (s *Session) Append(turn Turn) {
	s.History = append(s.History, turn)
	s.MessageCount++
}

// MinutesOnline is the engagement estimate shown in the chat stats panel.
func (s *Session) MinutesOnline() int {
	return s.MessageCount * 2
}
