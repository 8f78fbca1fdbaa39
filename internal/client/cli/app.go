package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/snapboard/internal/client/board"
	"github.com/dmitrijs2005/snapboard/internal/client/client"
	"github.com/dmitrijs2005/snapboard/internal/client/config"
	"github.com/dmitrijs2005/snapboard/internal/client/gallery"
	"github.com/dmitrijs2005/snapboard/internal/client/models"
	"github.com/dmitrijs2005/snapboard/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/snapboard/internal/client/session"
	"github.com/dmitrijs2005/snapboard/internal/filex"
	"github.com/dmitrijs2005/snapboard/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type authGateway interface {
	SignUp(ctx context.Context, email, password, name string) (*models.User, error)
	SignIn(ctx context.Context, email, password string) (*models.User, error)
	RequestMagicLink(ctx context.Context, email string) error
	ExchangeMagicLink(ctx context.Context, token string) (*models.User, error)
	Ping(ctx context.Context) error
}

// gateway is everything the CLI needs from the client handle.
type gateway interface {
	authGateway
	board.Gateway
	gallery.Gateway
	session.Gateway
}

type App struct {
	config  *config.Config
	auth    authGateway
	board   *board.Store
	gallery *gallery.Flow
	mirror  *session.Mirror
	logger  logging.Logger
	reader  *bufio.Reader
	out     io.Writer

	mu           sync.Mutex
	mode         Mode
	galleryItems []models.GalleryPost
	closers      []func() error
}

// NewApp opens the local session database and connects the gateway client.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONSlogLogger(os.Stderr, slog.LevelWarn)

	if err := filex.EnsureParentDir(c.LocalDBPath); err != nil {
		return nil, err
	}
	db, err := client.InitDatabase(ctx, c.LocalDBPath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	store := client.NewMetadataTokenStore(metadata.NewSQLiteRepository(db))
	gw, err := client.NewHTTPClient(c.ServerEndpointAddr, c.HealthEndpointAddr, c.RequestTimeout, store, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a := newApp(c, gw, logger, os.Stdin, os.Stdout)
	a.closers = append(a.closers, gw.Close, db.Close)
	return a, nil
}

func newApp(c *config.Config, gw gateway, l logging.Logger, in io.Reader, out io.Writer) *App {
	mirror := session.NewMirror(gw, l)
	return &App{
		config:  c,
		auth:    gw,
		board:   board.NewStore(gw, l),
		gallery: gallery.NewFlow(gw, mirror, l),
		mirror:  mirror,
		logger:  l,
		reader:  bufio.NewReader(in),
		out:     out,
	}
}

// Run restores the session, starts the connectivity watcher and blocks in
// the REPL until the user exits or input ends.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.Close()

	printlnFn("Welcome to snapboard CLI (type 'help' for commands)")

	if err := a.mirror.Start(ctx); err != nil {
		printlnFn("Could not restore session:", describe(err))
	}
	a.watchSession()

	a.checkOnline(ctx)
	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	runREPL(ctx, a, a.getStatus, a.reader)
}

// Close releases the session mirror and everything NewApp opened.
func (a *App) Close() {
	a.mirror.Close()
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn(context.Background(), "close failed", "error", err)
		}
	}
	a.closers = nil
}

// watchSession announces sign-in and sign-out transitions.
func (a *App) watchSession() {
	var mu sync.Mutex
	last := a.mirror.State().Status
	a.mirror.Subscribe(func(s session.State) {
		mu.Lock()
		defer mu.Unlock()
		if s.Status == last {
			return
		}
		last = s.Status
		switch s.Status {
		case session.Authenticated:
			fmt.Fprintf(a.out, "Signed in as %s\n", s.User.DisplayName())
		case session.Anonymous:
			fmt.Fprintln(a.out, "Signed out")
		}
	})
}

func (a *App) isLoggedIn() bool {
	return a.mirror.CurrentUser() != nil
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mode != mode {
		a.mode = mode
		fmt.Fprintf(a.out, "Switched to %s mode\n", mode)
	}
}

func (a *App) currentMode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

func (a *App) checkOnline(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := a.auth.Ping(ctx); err != nil {
		a.setMode(ModeOffline)
		return
	}
	a.setMode(ModeOnline)
}

// StartOnlineStatusWatcher probes the gateway every interval until ctx is
// done and flips the displayed mode accordingly.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) getStatus() string {
	s := ""
	st := a.mirror.State()
	switch st.Status {
	case session.Loading:
		s = "loading"
	case session.Anonymous:
		s = "anonymous"
	case session.Authenticated:
		s = st.User.DisplayName()
	}
	if m := a.currentMode(); m != "" {
		s += " " + string(m)
	}
	return fmt.Sprintf("(%s)", s)
}

// waitForStatus blocks until the mirror reports want, or a short timeout.
// Auth notifications arrive asynchronously, so commands that change the
// session wait here before returning to the prompt.
func (a *App) waitForStatus(ctx context.Context, want session.Status) bool {
	reached := make(chan struct{}, 1)
	unsubscribe := a.mirror.Subscribe(func(s session.State) {
		if s.Status == want {
			select {
			case reached <- struct{}{}:
			default:
			}
		}
	})
	defer unsubscribe()

	if a.mirror.State().Status == want {
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	select {
	case <-reached:
		return true
	case <-ctx.Done():
		return false
	}
}
