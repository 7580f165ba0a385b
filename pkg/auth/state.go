package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/difyz9/fail2ban-web/pkg/f2bapi"
)

// DefaultRefreshInterval is how often a signed-in machine renews its token.
const DefaultRefreshInterval = 15 * time.Minute

var ErrNotAuthenticated = errors.New("auth: not signed in")

type State int

const (
	Initializing State = iota
	Anonymous
	Authenticated
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Anonymous:
		return "anonymous"
	case Authenticated:
		return "authenticated"
	}
	return "unknown"
}

// Snapshot is what subscribers receive. User is nil unless Authenticated.
type Snapshot struct {
	State State
	User  *f2bapi.User
}

func (s Snapshot) Loading() bool { return s.State == Initializing }

type MachineOptions struct {
	// Scheduler drives the refresh loop. Nil disables it, which suits
	// request-scoped machines.
	Scheduler       Scheduler
	RefreshInterval time.Duration
	// RefreshTimeout bounds each background refresh call.
	RefreshTimeout time.Duration
	Navigate       Navigator
	Logger         zerolog.Logger
}

// Machine is the signed-in state of one client. Its mutex is never held
// across a network call or a callback.
type Machine struct {
	svc      *Service
	sched    Scheduler
	interval time.Duration
	timeout  time.Duration
	navigate Navigator
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      State
	user       *f2bapi.User
	period     uint64
	stopLoop   func()
	loggingOut int
	closed     bool
	nextSub    int
	subs       map[int]func(Snapshot)
}

func NewMachine(svc *Service, opts MachineOptions) *Machine {
	interval := opts.RefreshInterval
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	timeout := opts.RefreshTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	nav := opts.Navigate
	if nav == nil {
		nav = func(Route) {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Machine{
		svc:      svc,
		sched:    opts.Scheduler,
		interval: interval,
		timeout:  timeout,
		navigate: nav,
		logger:   opts.Logger.With().Str("component", "auth-machine").Logger(),
		ctx:      ctx,
		cancel:   cancel,
		state:    Initializing,
		subs:     map[int]func(Snapshot){},
	}
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() Snapshot {
	s := Snapshot{State: m.state}
	if m.user != nil {
		u := *m.user
		s.User = &u
	}
	return s
}

func (m *Machine) State() State { return m.Snapshot().State }

func (m *Machine) User() *f2bapi.User { return m.Snapshot().User }

func (m *Machine) Loading() bool { return m.Snapshot().Loading() }

// Subscribe registers fn for every state or user change. The returned func
// unregisters it.
func (m *Machine) Subscribe(fn func(Snapshot)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

func (m *Machine) set(state State, user *f2bapi.User) bool {
	return m.transition(state, user, false)
}

// transition moves the machine to state. Entering Authenticated starts a
// new period with its own refresh job, as does renew; leaving it ends the
// period. It reports whether anything changed.
func (m *Machine) transition(state State, user *f2bapi.User, renew bool) bool {
	m.mu.Lock()
	was := m.state
	if state != Authenticated {
		user = nil
	}
	changed := was != state || m.user != user
	m.state, m.user = state, user

	var stop func()
	if was == Authenticated && state != Authenticated || state == Authenticated && (was != Authenticated || renew) {
		stop = m.stopLoop
		m.stopLoop = nil
		m.period++
		if state == Authenticated && m.sched != nil && !m.closed {
			m.stopLoop = m.sched.Every(m.interval, m.refreshJob(m.period))
		}
	}
	snap := m.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
	if was != state {
		m.logger.Debug().Stringer("from", was).Stringer("to", state).Msg("auth state changed")
	}
	if changed {
		for _, fn := range subs {
			fn(snap)
		}
	}
	return changed
}

// Init resolves the starting state from the stored session: a token whose
// profile loads signs the machine in, anything else leaves it anonymous.
func (m *Machine) Init(ctx context.Context) {
	m.set(Initializing, nil)
	if m.svc.Token() == "" {
		m.set(Anonymous, nil)
		return
	}
	u, err := m.svc.Profile(ctx)
	if err != nil {
		m.logger.Info().Err(err).Msg("stored session rejected")
		m.svc.ClearSession()
		m.set(Anonymous, nil)
		return
	}
	m.set(Authenticated, u)
}

// Restore resolves the state from the stored session alone, without asking
// the server. A rejected token still surfaces on the next API call.
func (m *Machine) Restore() {
	if u := m.svc.CurrentUser(); u != nil {
		m.set(Authenticated, u)
		return
	}
	m.set(Anonymous, nil)
}

func (m *Machine) Login(ctx context.Context, creds f2bapi.LoginRequest) error {
	resp, err := m.svc.Login(ctx, creds)
	if err != nil {
		if m.State() != Authenticated {
			m.set(Anonymous, nil)
		}
		return err
	}
	u := resp.User
	m.transition(Authenticated, &u, true)
	m.navigate(RouteHome)
	return nil
}

// Logout signs out on the server if it can and always ends anonymous on
// the login route.
func (m *Machine) Logout(ctx context.Context) {
	m.mu.Lock()
	m.loggingOut++
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.loggingOut--
		m.mu.Unlock()
	}()

	m.svc.Logout(ctx)
	m.set(Anonymous, nil)
	m.navigate(RouteLogin)
}

// RefreshUser reloads the profile of the signed-in user.
func (m *Machine) RefreshUser(ctx context.Context) error {
	u, err := m.svc.Profile(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	if m.state != Authenticated {
		m.mu.Unlock()
		return ErrNotAuthenticated
	}
	m.mu.Unlock()
	m.set(Authenticated, u)
	return nil
}

// HandleAuthExpired reacts to a 401 from any API call. Wire it to
// apiclient.Client.OnAuthFailure.
func (m *Machine) HandleAuthExpired() {
	m.svc.ClearSession()
	m.set(Anonymous, nil)
	m.mu.Lock()
	inLogout := m.loggingOut > 0
	m.mu.Unlock()
	if !inLogout {
		m.navigate(RouteLogin)
	}
}

func (m *Machine) refreshJob(period uint64) func() {
	return func() {
		if !m.current(period) {
			return
		}
		ctx, cancel := context.WithTimeout(m.ctx, m.timeout)
		defer cancel()
		if m.svc.RefreshToken(ctx) {
			return
		}
		if !m.current(period) {
			return
		}
		m.logger.Warn().Msg("token refresh failed, signing out")
		m.Logout(ctx)
	}
}

func (m *Machine) current(period uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed && m.period == period && m.state == Authenticated
}

// Close stops the refresh loop and abandons a refresh in flight. The state
// is left as it is.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	stop := m.stopLoop
	m.stopLoop = nil
	m.period++
	m.mu.Unlock()
	m.cancel()
	if stop != nil {
		stop()
	}
}
