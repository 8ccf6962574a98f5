// Package prefs persists small client preferences as string key/value pairs.
package prefs

import (
	"context"
	"errors"
)

var (
	ErrEmptyKey = errors.New("preference key is empty")
	ErrClosed   = errors.New("preference store is closed")
)

// Store is a key/value preference backend. Implementations are safe for
// concurrent use.
type Store interface {
	// Get returns the value for key and whether it was set.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Close() error
}
