package client

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"chatline/internal/auth"
	"chatline/internal/constants"
	"chatline/internal/notify"
	"chatline/internal/presence"
)

const (
	ColorReset  = constants.ColorReset
	ColorBold   = constants.ColorBold
	ColorDim    = constants.ColorDim
	ColorCyan   = constants.ColorCyan
	ColorGreen  = constants.ColorGreen
	ColorYellow = constants.ColorYellow
	ColorRed    = constants.ColorRed
	ColorPurple = constants.ColorPurple
)

// Printer writes the coloured terminal output.
type Printer struct {
	w  io.Writer
	mu sync.Mutex
}

func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{w: w}
}

func (p *Printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}

func (p *Printer) Banner() {
	p.printf("\n  %s%schatline%s %sv%s%s\n", ColorBold, ColorCyan, ColorReset, ColorBold, constants.Version, ColorReset)
	p.printf("  %sChat session & presence client%s\n\n", ColorDim, ColorReset)
}

func (p *Printer) Hint(text string) {
	p.printf("  %s%s%s\n", ColorDim, text, ColorReset)
}

func (p *Printer) Step(text string) {
	p.printf("  %s%s▸%s %s\n", ColorBold, ColorCyan, ColorReset, text)
}

func (p *Printer) Field(label, value, valueColor string) {
	p.printf("  %s%-12s%s %s%s%s\n", ColorDim, label, ColorReset, valueColor, value, ColorReset)
}

func (p *Printer) Sep() {
	p.printf("  %s%s%s\n", ColorDim, strings.Repeat("─", 50), ColorReset)
}

func (p *Printer) Errorf(format string, args ...any) {
	p.printf("  %s✗ %s%s\n", ColorRed, fmt.Sprintf(format, args...), ColorReset)
}

// Notify prints notifications as toast lines.
func (p *Printer) Notify(n notify.Notification) {
	if n.Level == notify.LevelError {
		p.printf("  %s✗ %s%s\n", ColorRed, n.Message, ColorReset)
		return
	}
	p.printf("  %s✓ %s%s\n", ColorGreen, n.Message, ColorReset)
}

// User prints the session's profile fields.
func (p *Printer) User(st auth.State) {
	if st.User == nil {
		p.Field("session", "not logged in", ColorYellow)
		return
	}
	u := st.User
	p.Field("user", u.FullName, ColorCyan)
	p.Field("email", u.Email, ColorReset)
	p.Field("id", u.ID, ColorDim)
	if u.ProfilePic != "" {
		p.Field("avatar", u.ProfilePic, ColorDim)
	}
	if !u.CreatedAt.IsZero() {
		p.Field("member", u.CreatedAt.Format(time.DateOnly), ColorDim)
	}
}

func presenceColor(s presence.State) string {
	switch s {
	case presence.StateConnected:
		return ColorGreen
	case presence.StateConnecting, presence.StateReconnecting:
		return ColorYellow
	default:
		return ColorRed
	}
}

// Watch redraws the presence view on every store change until ctx is done.
func (p *Printer) Watch(ctx context.Context, store *auth.Store) {
	p.printf("\033[?25l\033[2J")
	defer p.printf("\033[?25h\n  %s● disconnected%s\n", ColorRed, ColorReset)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)
	resize := make(chan os.Signal, 1)
	notifyResize(resize)
	defer signal.Stop(resize)

	updates := store.Subscribe(ctx)
	st := store.Snapshot()
	p.render(st)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case next, ok := <-updates:
			if !ok {
				return
			}
			st = next
			p.render(st)
		case <-resize:
			p.printf("\033[2J")
			p.render(st)
		}
	}
}

func (p *Printer) render(st auth.State) {
	p.printf("\033[H")
	p.Banner()
	p.User(st)
	p.printf("\n")
	p.Field("presence", st.Presence.String(), presenceColor(st.Presence))
	p.Field("online", fmt.Sprintf("%d", len(st.OnlineUsers)), ColorReset)
	p.Field("updated", time.Now().Format(constants.TimeFormatShort), ColorDim)
	p.printf("\n")
	p.Sep()

	for _, id := range st.OnlineUsers {
		marker := ColorGreen + "●" + ColorReset
		if st.User != nil && id == st.User.ID {
			p.printf("\033[K  %s %s %s(you)%s\n", marker, id, ColorDim, ColorReset)
			continue
		}
		p.printf("\033[K  %s %s\n", marker, id)
	}
	p.printf("\n\033[K  %sctrl+c to stop%s\n\033[J", ColorDim, ColorReset)
}
