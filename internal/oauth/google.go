// Package oauth implements Google sign-in with the authorization code flow.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	// StateTTL is how long a login state stays valid.
	StateTTL = 10 * time.Minute

	// UserInfoURL is Google's OpenID Connect userinfo endpoint.
	UserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

	stateBytes = 32
)

var (
	// ErrInvalidState is returned when the callback state is unknown, expired
	// or already used.
	ErrInvalidState = errors.New("invalid or expired oauth state")
	// ErrExchangeFailed is returned when the code cannot be redeemed.
	ErrExchangeFailed = errors.New("oauth code exchange failed")
	// ErrEmailUnverified is returned when Google has not verified the address.
	ErrEmailUnverified = errors.New("google account email is not verified")
)

// StateStore keeps issued state tokens until the callback consumes them.
type StateStore interface {
	PutOAuthState(ctx context.Context, state string, ttl time.Duration) error
	ConsumeOAuthState(ctx context.Context, state string) (bool, error)
}

// Profile is the subset of the OpenID userinfo response used to sign in.
type Profile struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

// GoogleConfig holds the OAuth client registration.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Google runs the login flow against Google.
type Google struct {
	oauth       *oauth2.Config
	states      StateStore
	userInfoURL string
}

// NewGoogle creates a Google provider requesting the openid, email and
// profile scopes.
func NewGoogle(cfg GoogleConfig, states StateStore) *Google {
	return &Google{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		states:      states,
		userInfoURL: UserInfoURL,
	}
}

// AuthCodeURL issues a fresh state and returns the consent page URL.
func (g *Google) AuthCodeURL(ctx context.Context) (string, error) {
	state, err := newState()
	if err != nil {
		return "", err
	}
	if err := g.states.PutOAuthState(ctx, state, StateTTL); err != nil {
		return "", err
	}
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

// Exchange validates state, redeems code and returns the signed-in profile.
func (g *Google) Exchange(ctx context.Context, state, code string) (*Profile, error) {
	if state == "" || code == "" {
		return nil, ErrInvalidState
	}
	ok, err := g.states.ConsumeOAuthState(ctx, state)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidState
	}

	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExchangeFailed, err)
	}

	profile, err := g.userInfo(ctx, g.oauth.Client(ctx, token))
	if err != nil {
		return nil, err
	}
	if !profile.EmailVerified {
		return nil, ErrEmailUnverified
	}
	profile.Email = strings.ToLower(profile.Email)
	return profile, nil
}

func (g *Google) userInfo(ctx context.Context, client *http.Client) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: userinfo: %w", ErrExchangeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: userinfo status %d", ErrExchangeFailed, resp.StatusCode)
	}

	var p Profile
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: decode userinfo: %w", ErrExchangeFailed, err)
	}
	if p.Email == "" {
		return nil, fmt.Errorf("%w: userinfo has no email", ErrExchangeFailed)
	}
	return &p, nil
}

func newState() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
