// Package session mirrors the gateway's authentication state locally.
//
// A Mirror starts in Loading, resolves to Anonymous or Authenticated after
// the first session lookup, and from then on follows the gateway's auth
// notifications. Signing out is forwarded to the gateway; the mirror only
// turns Anonymous once the resulting notification arrives.
package session

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/snapboard/internal/client/models"
	"github.com/dmitrijs2005/snapboard/internal/logging"
)

type Status int

const (
	Loading Status = iota
	Anonymous
	Authenticated
)

func (s Status) String() string {
	switch s {
	case Loading:
		return "loading"
	case Anonymous:
		return "anonymous"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// State is a snapshot of the mirror. User is set only when Authenticated.
type State struct {
	Status Status
	User   *models.User
}

type Gateway interface {
	GetSession(ctx context.Context) (*models.User, error)
	OnAuthStateChange(fn func(models.AuthChange)) (unsubscribe func())
	SignOut(ctx context.Context) error
}

type Mirror struct {
	gw     Gateway
	logger logging.Logger

	// deliverMu keeps listener deliveries in the order states were applied
	deliverMu sync.Mutex

	mu          sync.RWMutex
	state       State
	listeners   map[int]func(State)
	nextID      int
	started     bool
	closed      bool
	unsubscribe func()

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
	closeOnce sync.Once
}

func NewMirror(gw Gateway, l logging.Logger) *Mirror {
	return &Mirror{
		gw:        gw,
		logger:    l.With("module", "session"),
		listeners: make(map[int]func(State)),
		ready:     make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start subscribes to auth notifications and resolves the initial state.
// The mirror stays live until Close or until ctx is done. A failed lookup
// resolves to Anonymous and is returned. Calling Start again is a no-op.
func (m *Mirror) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started || m.closed {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.unsubscribe = m.gw.OnAuthStateChange(m.handle)
	m.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			m.Close()
		case <-m.done:
		}
	}()

	user, err := m.gw.GetSession(ctx)
	if err != nil {
		m.logger.Warn(ctx, "session lookup failed", "error", err)
		user = nil
	}

	m.apply(func(cur State) (State, bool) {
		// a notification may already have resolved the mirror
		if cur.Status != Loading {
			return cur, false
		}
		return stateFor(user), true
	})
	return err
}

func (m *Mirror) handle(ch models.AuthChange) {
	m.logger.Debug(context.Background(), "auth state changed", "event", string(ch.Event))

	var user *models.User
	if ch.Event != models.SignedOut {
		user = ch.User
	}
	next := stateFor(user)
	m.apply(func(State) (State, bool) { return next, true })
}

func stateFor(u *models.User) State {
	if u == nil {
		return State{Status: Anonymous}
	}
	cp := *u
	return State{Status: Authenticated, User: &cp}
}

func (m *Mirror) apply(next func(State) (State, bool)) {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	st, ok := next(m.state)
	if !ok {
		m.mu.Unlock()
		return
	}
	m.state = st
	fns := make([]func(State), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	m.readyOnce.Do(func() { close(m.ready) })

	for _, fn := range fns {
		fn(copyState(st))
	}
}

func copyState(s State) State {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// State returns the current snapshot.
func (m *Mirror) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyState(m.state)
}

// CurrentUser returns the signed-in user or nil.
func (m *Mirror) CurrentUser() *models.User {
	return m.State().User
}

// Subscribe registers fn for every later state change.
func (m *Mirror) Subscribe(fn func(State)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

// SignOut asks the gateway to end the session. State is left alone; it
// changes when the SignedOut notification is processed.
func (m *Mirror) SignOut(ctx context.Context) error {
	return m.gw.SignOut(ctx)
}

// WaitReady blocks until the first resolution or until ctx is done.
func (m *Mirror) WaitReady(ctx context.Context) error {
	select {
	case <-m.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the gateway subscription. Later notifications are ignored.
func (m *Mirror) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		unsub := m.unsubscribe
		m.listeners = map[int]func(State){}
		m.mu.Unlock()

		if unsub != nil {
			unsub()
		}
		close(m.done)
	})
}
