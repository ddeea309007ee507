package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"storefront/internal/models"
	"storefront/internal/session"
)

// RoleFetcher asks the backend for the role of email.
type RoleFetcher func(ctx context.Context, email string) (models.Role, error)

// RoleState is one observation of a visitor's role. While Loading, Ready
// (when non-nil) is closed once the in-flight fetch finishes and Result
// returns the settled state.
type RoleState struct {
	Role    models.Role
	Loading bool
	Err     error

	fetch *roleFetch
}

func (r RoleState) Ready() <-chan struct{} {
	if r.fetch == nil {
		return nil
	}
	return r.fetch.done
}

func (r RoleState) Result() RoleState {
	if r.fetch == nil {
		return r
	}
	select {
	case <-r.fetch.done:
		return RoleState{Role: r.fetch.role, Err: r.fetch.err}
	default:
		return r
	}
}

type roleFetch struct {
	done chan struct{}
	role models.Role
	err  error
}

type roleEntry struct {
	role    models.Role
	expires time.Time
}

type RoleService struct {
	ttl     time.Duration
	timeout time.Duration
	logger  zerolog.Logger
	now     func() time.Time

	mu       sync.Mutex
	cache    map[string]roleEntry
	inflight map[string]*roleFetch
	changed  map[string]time.Time
}

func NewRoleService(ttl, timeout time.Duration, logger zerolog.Logger) *RoleService {
	return &RoleService{
		ttl:      ttl,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
		cache:    make(map[string]roleEntry),
		inflight: make(map[string]*roleFetch),
		changed:  make(map[string]time.Time),
	}
}

// Lookup never blocks. It reports Loading while the session is loading or a
// fetch for the session's email is in flight, and starts that fetch when
// neither the cache nor an in-flight fetch can answer.
func (s *RoleService) Lookup(ctx context.Context, st session.State, fetch RoleFetcher) RoleState {
	if st.Loading {
		return RoleState{Role: models.RoleUser, Loading: true}
	}
	email := st.Email()
	if email == "" {
		return RoleState{Role: models.RoleUser}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.cache[email]; ok && s.now().Before(e.expires) {
		return RoleState{Role: e.role}
	}
	if f, ok := s.inflight[email]; ok {
		return RoleState{Role: models.RoleUser, Loading: true, fetch: f}
	}

	f := &roleFetch{done: make(chan struct{})}
	s.inflight[email] = f
	go s.run(context.WithoutCancel(ctx), email, f, fetch)
	return RoleState{Role: models.RoleUser, Loading: true, fetch: f}
}

func (s *RoleService) run(ctx context.Context, email string, f *roleFetch, fetch RoleFetcher) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	role, err := fetch(ctx, email)
	if err != nil {
		s.logger.Warn().Err(err).Str("email", email).Msg("Role lookup failed, falling back to user")
		role = models.RoleUser
	}

	s.mu.Lock()
	if err == nil {
		s.cache[email] = roleEntry{role: role, expires: s.now().Add(s.ttl)}
	}
	delete(s.inflight, email)
	s.mu.Unlock()

	f.role, f.err = role, err
	close(f.done)
}

// Invalidate drops the cached role so the next Lookup fetches again, and
// marks every role claim for email issued up to now as stale.
func (s *RoleService) Invalidate(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, email)
	s.changed[email] = s.now()
}

// ChangedSince reports whether email's role was invalidated at or after t.
// Claim issue times are whole seconds, so a claim minted in the same second
// as the change counts as stale.
func (s *RoleService) ChangedSince(email string, t time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.changed[email]
	return ok && !t.After(c)
}

// Refetch invalidates email and starts a fresh lookup for it.
func (s *RoleService) Refetch(ctx context.Context, email string, fetch RoleFetcher) RoleState {
	s.Invalidate(email)
	return s.Lookup(ctx, session.State{User: &session.User{Email: email}}, fetch)
}

// Await blocks until st settles or ctx is done.
func Await(ctx context.Context, st RoleState) (RoleState, error) {
	if !st.Loading || st.fetch == nil {
		return st, nil
	}
	select {
	case <-st.fetch.done:
		return st.Result(), nil
	case <-ctx.Done():
		return st, ctx.Err()
	}
}
