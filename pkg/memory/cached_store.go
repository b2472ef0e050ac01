package memory

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"personachat/pkg/cache"
)

// CachedStore puts redis in front of another Store for the hot read paths:
// a capped list of recent messages and the profile document. Redis failures are
// logged and the call falls through to the wrapped store.
type CachedStore struct {
	Store
	cache  *cache.Cache
	logger logrus.FieldLogger
}

func NewCachedStore(store Store, c *cache.Cache, logger logrus.FieldLogger) *CachedStore {
	return &CachedStore{
		Store:  store,
		cache:  c,
		logger: logger,
	}
}

func (c *CachedStore) recentKey(userID string) string {
	return c.cache.Key("recent_messages", userID)
}

func (c *CachedStore) profileKey(userID string) string {
	return c.cache.Key("profile", userID)
}

func (c *CachedStore) SaveMessage(ctx context.Context, msg Message) error {
	if err := c.Store.SaveMessage(ctx, msg); err != nil {
		return err
	}

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	msgJSON, err := json.Marshal(msg)
	if err != nil {
		return nil
	}
	if err := c.cache.PushCapped(ctx, c.recentKey(msg.UserID), cache.RecentMessagesMax, cache.RecentMessagesTTL, string(msgJSON)); err != nil {
		c.logger.WithError(err).Warn("Failed to cache recent message")
	}
	return nil
}

func (c *CachedStore) RecentMessages(ctx context.Context, userID string, limit int) ([]Message, error) {
	if limit <= 0 {
		return []Message{}, nil
	}
	key := c.recentKey(userID)

	if limit <= cache.RecentMessagesMax {
		data, err := c.cache.LRange(ctx, key, 0, int64(limit-1))
		if err == nil && len(data) >= limit {
			messages := make([]Message, 0, len(data))
			for i := len(data) - 1; i >= 0; i-- {
				var msg Message
				if unmarshalErr := json.Unmarshal([]byte(data[i]), &msg); unmarshalErr != nil {
					continue
				}
				messages = append(messages, msg)
			}
			if len(messages) == limit {
				return messages, nil
			}
		}
	}

	messages, err := c.Store.RecentMessages(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	if len(messages) > 0 {
		values := make([]string, 0, len(messages))
		for _, m := range messages {
			msgJSON, marshalErr := json.Marshal(m)
			if marshalErr != nil {
				continue
			}
			values = append(values, string(msgJSON))
		}
		_ = c.cache.Delete(ctx, key)
		if err := c.cache.PushCapped(ctx, key, cache.RecentMessagesMax, cache.RecentMessagesTTL, values...); err != nil {
			c.logger.WithError(err).Warn("Failed to warm recent message cache")
		}
	}

	return messages, nil
}

func (c *CachedStore) GetProfile(ctx context.Context, userID string) (*UserProfile, error) {
	key := c.profileKey(userID)

	var profile UserProfile
	err := c.cache.GetJSON(ctx, key, &profile)
	if err == nil {
		return &profile, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		c.logger.WithError(err).Warn("Profile cache read failed")
	}

	p, err := c.Store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	_ = c.cache.SetJSON(ctx, key, p, cache.ProfileTTL)
	return p, nil
}

func (c *CachedStore) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) error {
	err := c.Store.UpdateProfile(ctx, userID, update)
	c.invalidateProfile(ctx, userID)
	return err
}

func (c *CachedStore) IncrementInteractions(ctx context.Context, userID string) (int, error) {
	n, err := c.Store.IncrementInteractions(ctx, userID)
	c.invalidateProfile(ctx, userID)
	return n, err
}

func (c *CachedStore) invalidateProfile(ctx context.Context, userID string) {
	if err := c.cache.Delete(ctx, c.profileKey(userID)); err != nil {
		c.logger.WithError(err).Warn("Failed to invalidate cached profile")
	}
}

func (c *CachedStore) Close() error {
	cacheErr := c.cache.Close()
	if err := c.Store.Close(); err != nil {
		return err
	}
	return cacheErr
}
