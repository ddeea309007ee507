package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

const (
	identityToolkitURL = "https://identitytoolkit.googleapis.com/v1"
	secureTokenURL     = "https://securetoken.googleapis.com/v1"
)

// Firebase verifies and manages identities with the Admin SDK and issues
// password credentials through the Firebase Auth REST API.
type Firebase struct {
	auth   *fbauth.Client
	rest   *resty.Client
	apiKey string
	logger zerolog.Logger

	IdentityToolkitURL string
	SecureTokenURL     string
}

func NewFirebase(ctx context.Context, credentialsFile, apiKey string, timeout time.Duration, logger zerolog.Logger) (*Firebase, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase auth: %w", err)
	}
	if apiKey == "" {
		logger.Warn().Msg("FIREBASE_API_KEY not set, password sign-in will fail")
	}
	return &Firebase{
		auth:               client,
		rest:               resty.New().SetTimeout(timeout),
		apiKey:             apiKey,
		logger:             logger,
		IdentityToolkitURL: identityToolkitURL,
		SecureTokenURL:     secureTokenURL,
	}, nil
}

type restError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type signInResponse struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
}

type refreshResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
}

func (f *Firebase) SignIn(ctx context.Context, email, password string) (Credentials, error) {
	var out signInResponse
	var apiErr restError
	resp, err := f.rest.R().
		SetContext(ctx).
		SetQueryParam("key", f.apiKey).
		SetBody(map[string]interface{}{
			"email":             email,
			"password":          password,
			"returnSecureToken": true,
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post(f.IdentityToolkitURL + "/accounts:signInWithPassword")
	if err != nil {
		return Credentials{}, fmt.Errorf("sign in request: %w", err)
	}
	if resp.IsError() {
		return Credentials{}, classifyRESTError(apiErr.Error.Message)
	}
	return Credentials{
		IDToken:      out.IDToken,
		RefreshToken: out.RefreshToken,
		ExpiresAt:    expiry(out.ExpiresIn),
	}, nil
}

func (f *Firebase) SignUp(ctx context.Context, email, password string, profile Profile) (Credentials, error) {
	params := (&fbauth.UserToCreate{}).Email(email).Password(password)
	if profile.DisplayName != "" {
		params = params.DisplayName(profile.DisplayName)
	}
	if profile.PhotoURL != "" {
		params = params.PhotoURL(profile.PhotoURL)
	}
	if _, err := f.auth.CreateUser(ctx, params); err != nil {
		if fbauth.IsEmailAlreadyExists(err) {
			return Credentials{}, ErrEmailTaken
		}
		return Credentials{}, fmt.Errorf("create user: %w", err)
	}
	return f.SignIn(ctx, email, password)
}

func (f *Firebase) Refresh(ctx context.Context, refreshToken string) (Credentials, error) {
	var out refreshResponse
	var apiErr restError
	resp, err := f.rest.R().
		SetContext(ctx).
		SetQueryParam("key", f.apiKey).
		SetFormData(map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": refreshToken,
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post(f.SecureTokenURL + "/token")
	if err != nil {
		return Credentials{}, fmt.Errorf("refresh request: %w", err)
	}
	if resp.IsError() {
		f.logger.Debug().Str("reason", apiErr.Error.Message).Msg("token refresh rejected")
		return Credentials{}, ErrInvalidToken
	}
	return Credentials{
		IDToken:      out.IDToken,
		RefreshToken: out.RefreshToken,
		ExpiresAt:    expiry(out.ExpiresIn),
	}, nil
}

func (f *Firebase) Verify(ctx context.Context, idToken string) (User, error) {
	tok, err := f.auth.VerifyIDTokenAndCheckRevoked(ctx, idToken)
	if err != nil {
		switch {
		case fbauth.IsIDTokenExpired(err):
			return User{}, ErrTokenExpired
		case fbauth.IsIDTokenInvalid(err), fbauth.IsIDTokenRevoked(err), fbauth.IsUserDisabled(err):
			return User{}, ErrInvalidToken
		}
		return User{}, fmt.Errorf("verify id token: %w", err)
	}
	return User{
		UID:         tok.UID,
		Email:       claim(tok.Claims, "email"),
		DisplayName: claim(tok.Claims, "name"),
		PhotoURL:    claim(tok.Claims, "picture"),
	}, nil
}

func (f *Firebase) UpdateProfile(ctx context.Context, uid string, profile Profile) (User, error) {
	params := (&fbauth.UserToUpdate{}).DisplayName(profile.DisplayName).PhotoURL(profile.PhotoURL)
	rec, err := f.auth.UpdateUser(ctx, uid, params)
	if err != nil {
		return User{}, fmt.Errorf("update user: %w", err)
	}
	return User{
		UID:         rec.UID,
		Email:       rec.Email,
		DisplayName: rec.DisplayName,
		PhotoURL:    rec.PhotoURL,
	}, nil
}

func (f *Firebase) SignOut(ctx context.Context, uid string) error {
	if err := f.auth.RevokeRefreshTokens(ctx, uid); err != nil {
		if fbauth.IsUserNotFound(err) {
			return nil
		}
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return nil
}

func classifyRESTError(message string) error {
	code := message
	if i := strings.Index(code, " "); i > 0 {
		code = code[:i]
	}
	switch code {
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "INVALID_EMAIL", "USER_DISABLED":
		return ErrInvalidCredentials
	case "EMAIL_EXISTS":
		return ErrEmailTaken
	case "":
		return errors.New("identity provider error")
	}
	return fmt.Errorf("identity provider: %s", message)
}

func expiry(expiresIn string) time.Time {
	secs, err := strconv.Atoi(expiresIn)
	if err != nil || secs <= 0 {
		secs = 3600
	}
	return time.Now().Add(time.Duration(secs) * time.Second)
}

func claim(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
