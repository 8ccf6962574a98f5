// Package theme remembers the selected UI theme across runs.
package theme

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"chatline/internal/constants"
	"chatline/internal/logger"
	"chatline/internal/prefs"
)

var ErrUnknownTheme = errors.New("unknown theme")

// Themes lists the theme names the chat UI ships with.
var Themes = []string{
	"light", "dark", "cupcake", "bumblebee", "emerald", "corporate",
	"synthwave", "retro", "cyberpunk", "valentine", "halloween", "garden",
	"forest", "aqua", "lofi", "pastel", "fantasy", "wireframe", "black",
	"luxury", "dracula", "cmyk", "autumn", "business", "acid", "lemonade",
	"night", "coffee", "winter", "dim", "nord", "sunset",
}

func Valid(name string) bool {
	return slices.Contains(Themes, name)
}

// Store holds the current theme and writes every change to prefs.
type Store struct {
	prefs prefs.Store
	log   *slog.Logger

	mu    sync.RWMutex
	theme string
}

// New reads the saved theme, falling back to the default when none is saved
// or the saved one is not known.
func New(ctx context.Context, p prefs.Store, log *slog.Logger) *Store {
	if log == nil {
		log = logger.Discard()
	}
	s := &Store{prefs: p, log: log, theme: constants.DefaultTheme}

	saved, ok, err := p.Get(ctx, constants.ThemeKey)
	switch {
	case err != nil:
		log.WarnContext(ctx, "failed to read saved theme", logger.Error(err))
	case !ok:
	case !Valid(saved):
		log.WarnContext(ctx, "ignoring unknown saved theme", slog.String("theme", saved))
	default:
		s.theme = saved
	}
	return s
}

func (s *Store) Theme() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.theme
}

// SetTheme switches the theme and persists it. The in-memory theme changes
// even when persisting fails.
func (s *Store) SetTheme(ctx context.Context, name string) error {
	if !Valid(name) {
		return fmt.Errorf("%w: %q", ErrUnknownTheme, name)
	}

	s.mu.Lock()
	s.theme = name
	s.mu.Unlock()

	if err := s.prefs.Set(ctx, constants.ThemeKey, name); err != nil {
		return fmt.Errorf("failed to save theme: %w", err)
	}
	s.log.DebugContext(ctx, "theme changed", slog.String("theme", name))
	return nil
}
