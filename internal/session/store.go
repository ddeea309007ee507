package session

import (
	"context"
	"sync"
)

type User struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
}

// State is one observation of the session. Token is empty whenever User is nil.
type State struct {
	User    *User
	Token   string
	Loading bool
}

func (s State) SignedIn() bool {
	return !s.Loading && s.User != nil
}

func (s State) Email() string {
	if s.User == nil {
		return ""
	}
	return s.User.Email
}

// Store is the observable session for one visitor request. Subscribers are
// called synchronously after every mutation, in mutation order, and must not
// mutate the store from inside the callback.
type Store struct {
	notifyMu sync.Mutex

	mu      sync.Mutex
	state   State
	gen     uint64
	subs    map[int]func(State)
	nextSub int
	hooks   []func(State)
	changed chan struct{}
}

// NewStore returns a store in the loading state.
func NewStore() *Store {
	return &Store{
		state:   State{Loading: true},
		subs:    make(map[int]func(State)),
		changed: make(chan struct{}),
	}
}

func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Generation increases by one on every mutation.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Changed returns a channel closed on the next mutation.
func (s *Store) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

// Subscribe calls fn with the current state and again after every mutation.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.notifyMu.Lock()
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	current := s.state
	s.mu.Unlock()
	fn(current)
	s.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// OnLogout registers fn to run after Logout clears the store. fn receives the
// state that was signed out.
func (s *Store) OnLogout(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Begin enters the loading state, dropping any user.
func (s *Store) Begin() {
	s.set(func(State) State { return State{Loading: true} })
}

func (s *Store) SignIn(u User, token string) {
	s.set(func(State) State { return State{User: &u, Token: token} })
}

// Clear settles the store as signed out.
func (s *Store) Clear() {
	s.set(func(State) State { return State{} })
}

// Logout clears the store and runs the logout hooks with the previous state.
func (s *Store) Logout() {
	prev := s.set(func(State) State { return State{} })

	s.mu.Lock()
	hooks := append([]func(State){}, s.hooks...)
	s.mu.Unlock()
	for _, h := range hooks {
		h(prev)
	}
}

// UpdateProfile replaces the display name and photo of the signed in user.
// It is a no-op when nobody is signed in.
func (s *Store) UpdateProfile(displayName, photoURL string) {
	s.set(func(st State) State {
		if st.User == nil {
			return st
		}
		u := *st.User
		u.DisplayName = displayName
		u.PhotoURL = photoURL
		st.User = &u
		return st
	})
}

// Wait blocks until the store has left the loading state or ctx is done.
func (s *Store) Wait(ctx context.Context) (State, error) {
	for {
		s.mu.Lock()
		st, ch := s.state, s.changed
		s.mu.Unlock()
		if !st.Loading {
			return st, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}

func (s *Store) set(update func(State) State) (prev State) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	prev = s.state
	s.state = update(prev)
	s.gen++
	next := s.state
	close(s.changed)
	s.changed = make(chan struct{})
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
	return prev
}
