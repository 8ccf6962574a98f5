package prefs

import (
	"context"
	"log/slog"

	"chatline/internal/logger"
)

// NewStore picks a backend: Redis when redisURL is set and reachable, else the
// JSON file at path (the default location when empty), else memory.
func NewStore(ctx context.Context, redisURL, path string, log *slog.Logger) Store {
	if log == nil {
		log = logger.Discard()
	}

	if redisURL != "" {
		store, err := NewRedisStore(ctx, redisURL)
		if err == nil {
			log.Info("using redis preference store")
			return store
		}
		log.Warn("redis connection failed, falling back to local preferences", logger.Error(err))
	}

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			log.Warn("no config directory, using in-memory preferences", logger.Error(err))
			return NewMemoryStore()
		}
		path = p
	}

	store, err := NewFileStore(path)
	if err != nil {
		log.Warn("preference file unavailable, using in-memory preferences", logger.Error(err))
		return NewMemoryStore()
	}
	log.Debug("using file preference store", slog.String("path", path))
	return store
}
