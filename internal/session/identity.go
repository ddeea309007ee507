package session

import (
	"context"
	"errors"
	"time"
)

var (
	ErrTokenExpired       = errors.New("identity token expired")
	ErrInvalidToken       = errors.New("identity token invalid")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
)

// Credentials are the tokens issued by the identity provider for one sign-in.
type Credentials struct {
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
}

func (c Credentials) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

type Profile struct {
	DisplayName string
	PhotoURL    string
}

type IdentityProvider interface {
	SignIn(ctx context.Context, email, password string) (Credentials, error)
	SignUp(ctx context.Context, email, password string, profile Profile) (Credentials, error)
	Refresh(ctx context.Context, refreshToken string) (Credentials, error)
	Verify(ctx context.Context, idToken string) (User, error)
	UpdateProfile(ctx context.Context, uid string, profile Profile) (User, error)
	SignOut(ctx context.Context, uid string) error
}
