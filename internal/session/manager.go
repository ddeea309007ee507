package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/sessions"
	"github.com/rs/zerolog"
)

const (
	authCookie = "sf_auth"
	uiCookie   = "sf_ui"

	keyIDToken   = "id_token"
	keyRefresh   = "refresh_token"
	keyExpiresAt = "expires_at"
	keyRoleClaim = "role_claim"

	signOutTimeout = 5 * time.Second
)

type FlashKind string

const (
	FlashSuccess FlashKind = "success"
	FlashError   FlashKind = "error"
	FlashInfo    FlashKind = "info"
)

type Flash struct {
	Kind    FlashKind
	Message string
}

// Manager persists identity credentials in an encrypted cookie and turns
// them into a per-request Store.
type Manager struct {
	cookies  sessions.Store
	provider IdentityProvider
	logger   zerolog.Logger
	now      func() time.Time
}

type CookieOptions struct {
	HashKey  []byte
	BlockKey []byte
	Secure   bool
	Domain   string
	MaxAge   int
}

func NewCookieStore(opts CookieOptions) *sessions.CookieStore {
	store := sessions.NewCookieStore(opts.HashKey, opts.BlockKey)
	maxAge := opts.MaxAge
	if maxAge == 0 {
		maxAge = 14 * 24 * 60 * 60
	}
	store.Options = &sessions.Options{
		Path:     "/",
		Domain:   opts.Domain,
		MaxAge:   maxAge,
		Secure:   opts.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

func NewManager(cookies sessions.Store, provider IdentityProvider, logger zerolog.Logger) *Manager {
	return &Manager{
		cookies:  cookies,
		provider: provider,
		logger:   logger,
		now:      time.Now,
	}
}

// Resolution tracks the background work that settles a request's Store and
// the cookie changes it produced.
type Resolution struct {
	m     *Manager
	store *Store
	done  chan struct{}

	mu      sync.Mutex
	save    *Credentials
	discard bool
	applied bool
}

// Resolve returns a Store in the loading state and settles it in the
// background from the request's credentials cookie.
func (m *Manager) Resolve(r *http.Request) (*Store, *Resolution) {
	store := NewStore()
	res := &Resolution{m: m, store: store, done: make(chan struct{})}

	store.OnLogout(func(State) {
		res.mu.Lock()
		res.discard = true
		res.save = nil
		res.mu.Unlock()
	})

	creds := m.credentials(r)
	ctx := r.Context()
	go func() {
		defer close(res.done)
		m.settle(ctx, store, res, creds)
	}()
	return store, res
}

// Done is closed once the store has settled.
func (res *Resolution) Done() <-chan struct{} {
	return res.done
}

// Commit writes any cookie change produced so far. It never blocks on an
// unfinished resolution; only the first call has an effect.
func (res *Resolution) Commit(w http.ResponseWriter, r *http.Request) {
	res.mu.Lock()
	if res.applied {
		res.mu.Unlock()
		return
	}
	save, discard := res.save, res.discard
	if save != nil || discard {
		res.applied = true
	}
	res.mu.Unlock()

	switch {
	case discard:
		res.m.clearCredentials(w, r)
	case save != nil:
		if err := res.m.saveCredentials(w, r, *save); err != nil {
			res.m.logger.Error().Err(err).Msg("Failed to persist refreshed credentials")
		}
	}
}

// Supersede drops any pending cookie change. Handlers call it before writing
// fresh credentials so a stale discard cannot overwrite them.
func (res *Resolution) Supersede() {
	res.mu.Lock()
	res.applied = true
	res.mu.Unlock()
}

func (m *Manager) settle(ctx context.Context, store *Store, res *Resolution, creds Credentials) {
	if creds.IDToken == "" {
		store.Clear()
		return
	}

	var (
		user User
		err  error
	)
	if creds.Expired(m.now()) {
		err = ErrTokenExpired
	} else {
		user, err = m.provider.Verify(ctx, creds.IDToken)
	}

	if errors.Is(err, ErrTokenExpired) && creds.RefreshToken != "" {
		var fresh Credentials
		fresh, err = m.provider.Refresh(ctx, creds.RefreshToken)
		if err == nil {
			user, err = m.provider.Verify(ctx, fresh.IDToken)
		}
		if err == nil {
			creds = fresh
			res.mu.Lock()
			res.save = &fresh
			res.mu.Unlock()
		}
	}

	if err != nil {
		if ctx.Err() != nil {
			store.Clear()
			return
		}
		m.logger.Debug().Err(err).Msg("Session credentials rejected")
		res.mu.Lock()
		res.discard = true
		res.mu.Unlock()
		store.Clear()
		return
	}
	store.SignIn(user, creds.IDToken)
}

func (m *Manager) Login(w http.ResponseWriter, r *http.Request, email, password string) (User, error) {
	creds, err := m.provider.SignIn(r.Context(), email, password)
	if err != nil {
		return User{}, err
	}
	user, err := m.provider.Verify(r.Context(), creds.IDToken)
	if err != nil {
		return User{}, fmt.Errorf("verify new sign-in: %w", err)
	}
	if err := m.saveCredentials(w, r, creds); err != nil {
		return User{}, err
	}
	m.ClearRoleClaim(w, r)
	return user, nil
}

func (m *Manager) Register(w http.ResponseWriter, r *http.Request, email, password string, profile Profile) (User, error) {
	creds, err := m.provider.SignUp(r.Context(), email, password, profile)
	if err != nil {
		return User{}, err
	}
	user, err := m.provider.Verify(r.Context(), creds.IDToken)
	if err != nil {
		return User{}, fmt.Errorf("verify new account: %w", err)
	}
	if user.DisplayName == "" {
		user.DisplayName = profile.DisplayName
	}
	if user.PhotoURL == "" {
		user.PhotoURL = profile.PhotoURL
	}
	if err := m.saveCredentials(w, r, creds); err != nil {
		return User{}, err
	}
	m.ClearRoleClaim(w, r)
	return user, nil
}

// Logout signs the store out, drops the credentials and role claim cookies
// and revokes the user's refresh tokens. Logouts forced by a rejected API
// call go through Store.Logout alone and stay local to this browser.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request, store *Store) {
	prev := store.Snapshot()
	store.Logout()
	if prev.User != nil {
		m.revoke(prev.User.UID)
	}
	m.clearCredentials(w, r)
	m.ClearRoleClaim(w, r)
}

func (m *Manager) UpdateProfile(ctx context.Context, store *Store, profile Profile) error {
	st := store.Snapshot()
	if !st.SignedIn() {
		return ErrInvalidToken
	}
	user, err := m.provider.UpdateProfile(ctx, st.User.UID, profile)
	if err != nil {
		return err
	}
	store.UpdateProfile(user.DisplayName, user.PhotoURL)
	return nil
}

func (m *Manager) AddFlash(w http.ResponseWriter, r *http.Request, kind FlashKind, message string) {
	sess, _ := m.cookies.Get(r, uiCookie)
	sess.AddFlash(string(kind) + "|" + message)
	if err := sess.Save(r, w); err != nil {
		m.logger.Error().Err(err).Msg("Failed to save flash")
	}
}

// Flashes pops every pending flash message.
func (m *Manager) Flashes(w http.ResponseWriter, r *http.Request) []Flash {
	sess, _ := m.cookies.Get(r, uiCookie)
	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil
	}
	if err := sess.Save(r, w); err != nil {
		m.logger.Error().Err(err).Msg("Failed to clear flashes")
	}
	out := make([]Flash, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		kind, msg, found := strings.Cut(s, "|")
		if !found {
			kind, msg = string(FlashInfo), s
		}
		out = append(out, Flash{Kind: FlashKind(kind), Message: msg})
	}
	return out
}

func (m *Manager) RoleClaim(r *http.Request) string {
	sess, _ := m.cookies.Get(r, uiCookie)
	s, _ := sess.Values[keyRoleClaim].(string)
	return s
}

func (m *Manager) SetRoleClaim(w http.ResponseWriter, r *http.Request, token string) {
	sess, _ := m.cookies.Get(r, uiCookie)
	sess.Values[keyRoleClaim] = token
	if err := sess.Save(r, w); err != nil {
		m.logger.Error().Err(err).Msg("Failed to save role claim")
	}
}

func (m *Manager) ClearRoleClaim(w http.ResponseWriter, r *http.Request) {
	sess, _ := m.cookies.Get(r, uiCookie)
	if _, ok := sess.Values[keyRoleClaim]; !ok {
		return
	}
	delete(sess.Values, keyRoleClaim)
	if err := sess.Save(r, w); err != nil {
		m.logger.Error().Err(err).Msg("Failed to clear role claim")
	}
}

func (m *Manager) credentials(r *http.Request) Credentials {
	sess, err := m.cookies.Get(r, authCookie)
	if err != nil {
		m.logger.Debug().Err(err).Msg("Unreadable credentials cookie")
	}
	var c Credentials
	c.IDToken, _ = sess.Values[keyIDToken].(string)
	c.RefreshToken, _ = sess.Values[keyRefresh].(string)
	if exp, ok := sess.Values[keyExpiresAt].(int64); ok && exp > 0 {
		c.ExpiresAt = time.Unix(exp, 0)
	}
	return c
}

func (m *Manager) saveCredentials(w http.ResponseWriter, r *http.Request, c Credentials) error {
	sess, _ := m.cookies.Get(r, authCookie)
	sess.Values[keyIDToken] = c.IDToken
	sess.Values[keyRefresh] = c.RefreshToken
	sess.Values[keyExpiresAt] = c.ExpiresAt.Unix()
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("save credentials cookie: %w", err)
	}
	return nil
}

func (m *Manager) clearCredentials(w http.ResponseWriter, r *http.Request) {
	sess, _ := m.cookies.Get(r, authCookie)
	sess.Values = map[interface{}]interface{}{}
	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil {
		m.logger.Error().Err(err).Msg("Failed to clear credentials cookie")
	}
}

func (m *Manager) revoke(uid string) {
	ctx, cancel := context.WithTimeout(context.Background(), signOutTimeout)
	defer cancel()
	if err := m.provider.SignOut(ctx, uid); err != nil {
		m.logger.Warn().Err(err).Str("uid", uid).Msg("Failed to revoke refresh tokens")
	}
}
