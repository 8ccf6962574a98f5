// Package client is the terminal front end: it wires configuration into the
// session store and presence channel and runs one command.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"chatline/internal/api"
	"chatline/internal/auth"
	"chatline/internal/config"
	"chatline/internal/constants"
	"chatline/internal/logger"
	"chatline/internal/notify"
	"chatline/internal/prefs"
	"chatline/internal/presence"
	"chatline/internal/theme"
)

// Exit codes
const (
	ExitOK      = 0
	ExitFailed  = 1
	ExitUsage   = 2
	logFileName = "chatline"
)

// App holds every component built from one configuration.
type App struct {
	cfg     config.Config
	log     *slog.Logger
	logFile *os.File

	out *Printer
	in  *Prompter

	api      *api.Client
	presence *presence.Manager
	store    *auth.Store
	prefs    prefs.Store
	theme    *theme.Store
	cookies  *CookieStore
	outcome  outcome
}

// outcome remembers whether an error notification was shown since the last reset.
type outcome struct {
	mu     sync.Mutex
	failed bool
}

func (o *outcome) Notify(n notify.Notification) {
	if n.Level != notify.LevelError {
		return
	}
	o.mu.Lock()
	o.failed = true
	o.mu.Unlock()
}

func (o *outcome) reset() {
	o.mu.Lock()
	o.failed = false
	o.mu.Unlock()
}

func (o *outcome) Failed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.failed
}

// New builds the application. Close releases what it opened.
func New(ctx context.Context, cfg config.Config, stdin io.Reader, stdout io.Writer) (*App, error) {
	a := &App{cfg: cfg, out: NewPrinter(stdout)}
	a.in = NewPrompter(stdin, a.out)

	logOut := io.Writer(os.Stderr)
	if cfg.LogFile {
		f, err := logger.OpenFile(logFileName)
		if err != nil {
			return nil, err
		}
		a.logFile = f
		logOut = f
	}
	// explicit level and format override the environment preset
	a.log = logger.New(
		logger.WithEnvironment(cfg.Env),
		logger.WithLevelName(cfg.LogLevel),
		logger.WithFormat(logger.Format(cfg.LogFormat)),
		logger.WithOutput(logOut),
	)

	client, err := api.New(cfg.APIURL, api.WithLogger(a.log.With(slog.String("component", "api"))))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.api = client
	a.log.Debug("api client ready", slog.String("base_url", client.BaseURL()))

	transports := make([]presence.Transport, 0, len(cfg.SocketTransports))
	for _, t := range cfg.SocketTransports {
		transports = append(transports, presence.Transport(t))
	}

	// the manager reports back into the store, which does not exist yet
	var store *auth.Store
	changed := func() {
		if store != nil {
			store.PresenceChanged()
		}
	}
	a.presence = presence.New(client.SocketURL(),
		presence.WithTransports(transports...),
		presence.WithReconnect(cfg.SocketReconnectAttempts, cfg.SocketReconnectDelay),
		presence.WithHandshakeTimeout(cfg.SocketHandshakeTimeout),
		presence.WithJar(client.Jar()),
		presence.WithLogger(a.log.With(slog.String("component", "presence"))),
		presence.OnRoster(func([]string) { changed() }),
		presence.OnState(func(presence.State) { changed() }),
	)

	notifier := notify.Multi(a.out, &a.outcome)
	if cfg.LogFile {
		notifier = notify.Multi(a.out, &a.outcome, notify.Log{Logger: a.log})
	}
	store = auth.New(client,
		auth.WithPresence(a.presence),
		auth.WithNotifier(notifier),
		auth.WithLogger(a.log.With(slog.String("component", "auth"))),
		auth.WithConnectDelay(cfg.LoginConnectDelay),
	)
	a.store = store

	a.prefs = prefs.NewStore(ctx, cfg.RedisURL, cfg.PrefsPath, a.log)
	a.theme = theme.New(ctx, a.prefs, a.log)

	a.cookies, err = NewCookieStore(a.prefs, client.Jar(), cfg.APIURL)
	if err != nil {
		a.Close()
		return nil, err
	}
	if err := a.cookies.Restore(ctx); err != nil {
		a.log.Warn("failed to restore saved session", logger.Error(err))
	}

	return a, nil
}

// Store exposes the session store.
func (a *App) Store() *auth.Store {
	return a.store
}

func (a *App) Close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.prefs != nil {
		if err := a.prefs.Close(); err != nil {
			a.log.Warn("failed to close preferences", logger.Error(err))
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
}

// Run executes the command named by args[0] and returns the exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		a.usage()
		return ExitUsage
	}

	cmd, rest := args[0], args[1:]
	var err error
	switch cmd {
	case "check":
		err = a.check(ctx)
	case "login":
		err = a.login(ctx)
	case "signup":
		err = a.signup(ctx)
	case "logout":
		err = a.logout(ctx)
	case "profile":
		if len(rest) != 1 {
			a.out.Errorf("usage: chatline profile <image-file-or-url>")
			return ExitUsage
		}
		err = a.profile(ctx, rest[0])
	case "theme":
		err = a.setTheme(ctx, rest)
	case "watch":
		err = a.watch(ctx)
	case "version":
		a.out.printf("  chatline v%s\n", constants.Version)
	case "help", "-h", "--help":
		a.usage()
	default:
		a.out.Errorf("unknown command %q", cmd)
		a.usage()
		return ExitUsage
	}

	if err != nil {
		if !errors.Is(err, errNotified) {
			a.out.Errorf("%v", err)
		}
		return ExitFailed
	}
	return ExitOK
}

// errNotified marks failures the user was already told about.
var errNotified = errors.New("operation failed")

func (a *App) usage() {
	a.out.printf("%s\n%s\n\n", constants.MsgUsage, constants.MsgExample)
	a.out.printf("  %sCommands:%s\n", ColorBold, ColorReset)
	for _, c := range [][2]string{
		{"check", "show the current session"},
		{"login", "log in and save the session"},
		{"signup", "create an account"},
		{"logout", "end the session"},
		{"profile <image>", "update the profile picture"},
		{"theme [name]", "show or change the theme"},
		{"watch", "show who is online until ctrl+c"},
		{"version", "print the version"},
	} {
		a.out.printf("    %-18s %s\n", c[0], c[1])
	}
	a.out.printf("\n")
}

// saveSession persists the jar so the next run starts logged in.
func (a *App) saveSession(ctx context.Context) {
	if err := a.cookies.Save(ctx); err != nil {
		a.log.Warn("failed to save session", logger.Error(err))
	}
}

func (a *App) check(ctx context.Context) error {
	a.store.CheckAuth(ctx)
	st := a.store.Snapshot()
	a.out.User(st)
	if !st.Authenticated() {
		return errNotified
	}
	return nil
}

func (a *App) login(ctx context.Context) error {
	req, err := a.in.Login()
	if err != nil {
		return err
	}
	a.store.Login(ctx, req)
	return a.afterAuth(ctx)
}

func (a *App) signup(ctx context.Context) error {
	req, err := a.in.Signup()
	if err != nil {
		return err
	}
	a.store.Signup(ctx, req)
	return a.afterAuth(ctx)
}

func (a *App) afterAuth(ctx context.Context) error {
	st := a.store.Snapshot()
	if !st.Authenticated() {
		return errNotified
	}
	a.saveSession(ctx)
	a.out.User(st)
	return nil
}

func (a *App) logout(ctx context.Context) error {
	a.outcome.reset()
	a.store.Logout(ctx)
	if a.outcome.Failed() {
		return errNotified
	}
	a.saveSession(ctx)
	return nil
}

func (a *App) profile(ctx context.Context, src string) error {
	update, err := ProfilePicture(src)
	if err != nil {
		return err
	}
	if err := a.requireSession(ctx); err != nil {
		return err
	}

	a.outcome.reset()
	a.store.UpdateProfile(ctx, update)
	if a.outcome.Failed() {
		return errNotified
	}
	a.out.User(a.store.Snapshot())
	return nil
}

func (a *App) setTheme(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.out.Field("theme", a.theme.Theme(), ColorCyan)
		a.out.Hint("available: " + strings.Join(theme.Themes, ", "))
		return nil
	}
	if err := a.theme.SetTheme(ctx, args[0]); err != nil {
		return err
	}
	a.out.Field("theme", a.theme.Theme(), ColorCyan)
	return nil
}

func (a *App) watch(ctx context.Context) error {
	ok, err := a.restoreSession(ctx)
	if err != nil {
		return err
	}
	if !ok {
		a.out.Hint("no saved session")
		if err := a.login(ctx); err != nil {
			return err
		}
	}
	a.saveSession(ctx)

	a.out.Watch(ctx, a.store)
	return nil
}

// restoreSession asks the server for the current session. It fails with
// errNotified when the check itself failed and the user was already told.
func (a *App) restoreSession(ctx context.Context) (bool, error) {
	a.outcome.reset()
	a.store.CheckAuth(ctx)
	if a.outcome.Failed() {
		return false, errNotified
	}
	return a.store.Snapshot().Authenticated(), nil
}

// requireSession restores the session from the server or fails.
func (a *App) requireSession(ctx context.Context) error {
	ok, err := a.restoreSession(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("not logged in: run %q first", "chatline login")
	}
	return nil
}
