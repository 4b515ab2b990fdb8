package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/soulmechanik/forems-portal/pkg/telemetry"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const defaultUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

var (
	// ErrMissingCode means the callback carried no authorization code
	ErrMissingCode = errors.New("oauth: missing authorization code")
	// ErrIncompleteProfile means the provider returned no subject or email
	ErrIncompleteProfile = errors.New("oauth: incomplete user profile")
)

// UserProfile is the normalized provider identity
type UserProfile struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// GoogleConfig holds Google OAuth client settings
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	UserInfoURL  string
	// Endpoint overrides the Google endpoints, for tests
	Endpoint *oauth2.Endpoint
	// Timeout bounds code exchange plus profile fetch
	Timeout time.Duration
}

// GoogleProvider runs the authorization code flow against Google
type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
	timeout     time.Duration
	httpClient  *http.Client
}

// NewGoogleProvider creates a new GoogleProvider
func NewGoogleProvider(cfg GoogleConfig) *GoogleProvider {
	endpoint := endpoints.Google
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = defaultUserInfoURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: userInfoURL,
		timeout:     timeout,
		httpClient:  &http.Client{Transport: telemetry.HTTPTransport(nil)},
	}
}

// AuthCodeURL returns the consent page URL carrying state
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Identify exchanges code for a token and fetches the user's profile
func (p *GoogleProvider) Identify(ctx context.Context, code string) (*UserProfile, error) {
	if code == "" {
		return nil, ErrMissingCode
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("oauth: code exchange: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("oauth: build userinfo request: %w", err)
	}
	resp, err := p.config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("oauth: fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("oauth: userinfo status %d", resp.StatusCode)
	}

	var profile UserProfile
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&profile); err != nil {
		return nil, fmt.Errorf("oauth: decode userinfo: %w", err)
	}
	if profile.Subject == "" || profile.Email == "" {
		return nil, ErrIncompleteProfile
	}
	return &profile, nil
}
