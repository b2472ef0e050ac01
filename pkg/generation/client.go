package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/sirupsen/logrus"
)

// Generator produces a reply for one turn.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

var (
	ErrMissingCredential = errors.New("generation: no API key configured")
	ErrEmptyResponse     = errors.New("generation: empty response")
)

type Options struct {
	Character    string
	BaseURL      string
	Model        string
	Temperature  float64
	TopP         float64
	MaxTokens    int
	HistoryTurns int
}

type KeyState struct {
	Key          string
	FailureCount int
	LastUsed     time.Time
	LastSuccess  time.Time
}

// Client talks to any OpenAI-compatible chat completion endpoint. With several
// keys it always picks the one with the fewest recent failures.
type Client struct {
	keys      []*KeyState
	keyMu     sync.RWMutex
	clients   map[string]openai.Client
	clientsMu sync.RWMutex
	opts      Options
	logger    logrus.FieldLogger
}

func NewClient(apiKeys string, opts Options, logger logrus.FieldLogger) *Client {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if opts.HistoryTurns <= 0 {
		opts.HistoryTurns = 5
	}
	if opts.Character == "" {
		opts.Character = "Mylle"
	}

	keys := make([]*KeyState, 0)
	for _, k := range strings.Split(apiKeys, ",") {
		k = strings.TrimSpace(k)
		if k != "" {
			keys = append(keys, &KeyState{Key: k})
		}
	}

	if len(keys) == 0 {
		logger.Warn("No generation API keys provided, replies will use fallbacks")
	} else {
		logger.WithField("keys", len(keys)).Info("Loaded generation API keys")
	}

	return &Client{
		keys:    keys,
		clients: make(map[string]openai.Client),
		opts:    opts,
		logger:  logger,
	}
}

func (c *Client) HasCredentials() bool {
	c.keyMu.RLock()
	defer c.keyMu.RUnlock()
	return len(c.keys) > 0
}

func (c *Client) getClient(key string) openai.Client {
	c.clientsMu.RLock()
	if client, ok := c.clients[key]; ok {
		c.clientsMu.RUnlock()
		return client
	}
	c.clientsMu.RUnlock()

	c.clientsMu.Lock()
	defer c.clientsMu.Unlock()

	client := openai.NewClient(
		option.WithBaseURL(c.opts.BaseURL),
		option.WithAPIKey(key),
		option.WithMaxRetries(0),
	)
	c.clients[key] = client
	return client
}

func (c *Client) getBestKey() *KeyState {
	c.keyMu.RLock()
	defer c.keyMu.RUnlock()

	if len(c.keys) == 0 {
		return nil
	}

	best := c.keys[0]
	for _, k := range c.keys[1:] {
		if k.FailureCount < best.FailureCount {
			best = k
		}
	}
	return best
}

func (c *Client) recordSuccess(key *KeyState) {
	c.keyMu.Lock()
	defer c.keyMu.Unlock()
	key.LastSuccess = time.Now()
	key.LastUsed = time.Now()
	if key.FailureCount > 0 {
		key.FailureCount--
	}
}

func (c *Client) recordFailure(key *KeyState) {
	c.keyMu.Lock()
	defer c.keyMu.Unlock()
	key.FailureCount++
	key.LastUsed = time.Now()
}

func (c *Client) params(prompt string) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.opts.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(c.opts.Temperature),
		TopP:        openai.Float(c.opts.TopP),
		MaxTokens:   openai.Int(int64(c.opts.MaxTokens)),
	}
}

// Generate sends the prompt once. An auth or rate limit failure is retried a
// single time on a different key; anything else is returned to the caller.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	keyState := c.getBestKey()
	if keyState == nil {
		return "", ErrMissingCredential
	}

	params := c.params(BuildPrompt(c.opts.Character, req, c.opts.HistoryTurns))
	start := time.Now()

	client := c.getClient(keyState.Key)
	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil && isRateLimitOrAuthError(err) {
		c.recordFailure(keyState)
		nextKey := c.getBestKey()
		if nextKey != nil && nextKey != keyState {
			c.logger.WithError(err).Warn("Key rate limited or rejected, trying another key")
			keyState = nextKey
			client = c.getClient(keyState.Key)
			resp, err = client.Chat.Completions.New(ctx, params)
		}
	}
	if err != nil {
		c.recordFailure(keyState)
		return "", fmt.Errorf("chat completion with model %s: %w", c.opts.Model, err)
	}

	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}

	c.recordSuccess(keyState)
	c.logger.WithFields(logrus.Fields{
		"model":      c.opts.Model,
		"took":       time.Since(start).String(),
		"tokens_in":  resp.Usage.PromptTokens,
		"tokens_out": resp.Usage.CompletionTokens,
	}).Debug("Generation succeeded")

	return text, nil
}

func isRateLimitOrAuthError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403, 429:
			return true
		}
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "401") ||
		strings.Contains(errStr, "403") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "unauthorized")
}
