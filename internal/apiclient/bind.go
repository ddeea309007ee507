package apiclient

import (
	"errors"
	"sync"

	"github.com/go-resty/resty/v2"

	"storefront/internal/session"
)

type LogoutPolicy int

const (
	// LogoutOnAuthErrors signs the visitor out on 401 and 403.
	LogoutOnAuthErrors LogoutPolicy = iota
	// LogoutOnUnauthorizedOnly signs out on 401; a 403 is returned as ErrForbidden.
	LogoutOnUnauthorizedOnly
)

func (p LogoutPolicy) triggers(err error) bool {
	if errors.Is(err, ErrUnauthorized) {
		return true
	}
	return p == LogoutOnAuthErrors && errors.Is(err, ErrForbidden)
}

// Bind keeps c's interceptors in step with store. Every session change
// ejects the previous pair; a loaded session with a token registers a
// bearer-token request interceptor and a response interceptor that logs the
// visitor out at most once per registration.
func Bind(c *Client, store *session.Store, policy LogoutPolicy) (unbind func()) {
	var (
		mu     sync.Mutex
		active []int
		closed bool
	)
	eject := func() {
		for _, id := range active {
			c.Eject(id)
		}
		active = nil
	}

	unsubscribe := store.Subscribe(func(st session.State) {
		mu.Lock()
		defer mu.Unlock()
		eject()
		if closed || st.Loading || st.User == nil || st.Token == "" {
			return
		}

		token := st.Token
		var once sync.Once
		reqID := c.UseRequest(func(req *resty.Request) error {
			req.SetAuthToken(token)
			return nil
		})
		respID := c.UseResponse(func(_ *resty.Response, err error) error {
			if err != nil && policy.triggers(err) {
				once.Do(store.Logout)
			}
			return err
		})
		active = []int{reqID, respID}
	})

	return func() {
		unsubscribe()
		mu.Lock()
		defer mu.Unlock()
		closed = true
		eject()
	}
}
