package session

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/shulesoft/shule/core"
	"github.com/shulesoft/shule/core/account"
)

// Session states
type State string

const (
	StateUninitialized State = "UNINITIALIZED"
	StateLoading       State = "LOADING"
	StateAuthenticated State = "AUTHENTICATED"
	StateAnonymous     State = "ANONYMOUS"
)

// Session is the resolved authentication state of one client.
// Profile may be nil while State is StateAuthenticated: the identity is known
// but its profile is missing — a degraded state the rest of the app must
// tolerate (all permission checks fail closed).
type Session struct {
	State    State
	Identity *account.Identity
	Profile  *account.Profile
}

// Allowed gates a resource/action for this session. Anonymous and degraded
// sessions are never allowed anything.
func (s Session) Allowed(res account.Resource, act account.Action) bool {
	if s.State != StateAuthenticated {
		return false
	}
	return account.Allowed(s.Profile, res, act)
}

// Store holds the current session of one client and keeps it in sync with
// the auth event stream. Deps are injected; there is no ambient global state,
// so tests can run stores side by side.
type Store struct {
	svc    account.Service
	logger core.Logger

	mu      sync.RWMutex
	current Session

	sub  *account.AuthSubscription
	done chan struct{}
}

func NewStore(svc account.Service, logger core.Logger) *Store {
	return &Store{
		svc:     svc,
		logger:  logger,
		current: Session{State: StateUninitialized},
	}
}

// Current returns a snapshot of the session.
func (st *Store) Current() Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.current
}

func (st *Store) set(s Session) {
	st.mu.Lock()
	st.current = s
	st.mu.Unlock()
}

// Resolve establishes the session for the given identity. An empty identityID
// resolves to anonymous. An unknown identity also resolves to anonymous; a
// known identity whose profile fetch fails or finds no row resolves to the
// degraded authenticated state (profile = nil) instead of erroring out.
func (st *Store) Resolve(ctx context.Context, identityID string) Session {
	if identityID == "" {
		st.set(Session{State: StateAnonymous})
		return st.Current()
	}

	st.set(Session{State: StateLoading})

	idt, err := st.svc.GetIdentity(ctx, account.GetFilter{ID: identityID})
	if err != nil {
		if errors.Cause(err) != account.ErrNotFound {
			st.logger.Error("resolving identity", err)
		}
		st.set(Session{State: StateAnonymous})
		return st.Current()
	}

	sess := Session{State: StateAuthenticated, Identity: &idt}
	if prof, err := st.svc.GetProfile(ctx, account.GetFilter{ID: identityID}); err == nil {
		sess.Profile = &prof
	} else if errors.Cause(err) != account.ErrNotFound {
		st.logger.Error("resolving profile", err)
	}
	st.set(sess)
	return st.Current()
}

// Start resolves the existing session (if any) and then follows the auth
// event stream for the lifetime of the store. Close releases the
// subscription; it must run on every exit path.
func (st *Store) Start(ctx context.Context, identityID string) {
	st.Resolve(ctx, identityID)

	st.sub = st.svc.Events().Subscribe()
	st.done = make(chan struct{})

	go func() {
		defer close(st.done)
		for evt := range st.sub.C {
			st.apply(ctx, evt)
		}
	}()
}

func (st *Store) apply(ctx context.Context, evt account.AuthEvent) {
	switch evt.Type {
	case account.EventSignedIn, account.EventSignedUp, account.EventTokenRefresh:
		st.Resolve(ctx, evt.IdentityID)
	case account.EventSignedOut:
		cur := st.Current()
		if cur.Identity != nil && cur.Identity.ID == evt.IdentityID {
			st.set(Session{State: StateAnonymous})
		}
	}
}

// Close releases the auth subscription and waits for the follower to stop.
// Safe to call more than once and without a prior Start.
func (st *Store) Close() {
	if st.sub == nil {
		return
	}
	st.sub.Close()
	<-st.done
}
