package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"personachat/pkg/cache"
	"personachat/pkg/surreal"
)

type Options struct {
	Driver      string
	SQLitePath  string
	Surreal     surreal.Config
	RedisURL    string
	RedisPrefix string
}

// Open builds the configured backend, wrapped with the redis cache when a
// redis URL is given. An unreachable redis only disables caching.
func Open(ctx context.Context, opts Options, logger logrus.FieldLogger) (Store, error) {
	var (
		store Store
		err   error
	)

	switch strings.ToLower(opts.Driver) {
	case "", "sqlite":
		store, err = NewSQLiteStore(opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.WithField("path", opts.SQLitePath).Info("Using SQLite store")
	case "surreal", "surrealdb":
		client, err := surreal.NewClient(ctx, opts.Surreal)
		if err != nil {
			return nil, err
		}
		store = NewSurrealStore(ctx, client, logger)
		logger.WithField("namespace", opts.Surreal.Namespace).Info("Using SurrealDB store")
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}

	if opts.RedisURL == "" {
		return store, nil
	}

	c, err := cache.NewRedisCache(opts.RedisURL, opts.RedisPrefix)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, running without cache")
		return store, nil
	}
	logger.Info("Redis cache enabled")
	return NewCachedStore(store, c, logger), nil
}
