package chat

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"personachat/pkg/generation"
	"personachat/pkg/memory"
	"personachat/pkg/persona"
)

type MockGenerator struct {
	GenerateFunc func(ctx context.Context, req generation.Request) (string, error)
	Requests     []generation.Request
}

func (m *MockGenerator) Generate(ctx context.Context, req generation.Request) (string, error) {
	m.Requests = append(m.Requests, req)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return "Oi amor, que bom falar com você! 💕", nil
}

// constScorer scores every message the same
type constScorer float64

func (c constScorer) Polarity(string) (float64, error) { return float64(c), nil }

type panickingClock struct{}

func (panickingClock) Current() persona.Persona { panic("clock exploded") }

func afternoonClock() *persona.Clock {
	return persona.NewClockAt(time.UTC, func() time.Time {
		return time.Date(2025, 1, 1, 14, 0, 0, 0, time.UTC)
	})
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) SaveMessage(ctx context.Context, msg memory.Message) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *MockStore) RecentMessages(ctx context.Context, userID string, limit int) ([]memory.Message, error) {
	args := m.Called(ctx, userID, limit)
	msgs, _ := args.Get(0).([]memory.Message)
	return msgs, args.Error(1)
}

func (m *MockStore) GetProfile(ctx context.Context, userID string) (*memory.UserProfile, error) {
	args := m.Called(ctx, userID)
	p, _ := args.Get(0).(*memory.UserProfile)
	return p, args.Error(1)
}

func (m *MockStore) UpdateProfile(ctx context.Context, userID string, update memory.ProfileUpdate) error {
	return m.Called(ctx, userID, update).Error(0)
}

func (m *MockStore) IncrementInteractions(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) RecordInteraction(ctx context.Context, interaction memory.Interaction) error {
	return m.Called(ctx, interaction).Error(0)
}

func (m *MockStore) Interactions(ctx context.Context, userID string, limit int) ([]memory.Interaction, error) {
	args := m.Called(ctx, userID, limit)
	out, _ := args.Get(0).([]memory.Interaction)
	return out, args.Error(1)
}

func (m *MockStore) Close() error {
	return m.Called().Error(0)
}
