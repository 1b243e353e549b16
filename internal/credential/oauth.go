package credential

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"inbox-unsubscriber/internal/models"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
)

// TokenProvider hands out a currently valid OAuth2 access token.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// StaticToken is an access token obtained elsewhere and used as is.
type StaticToken string

func (t StaticToken) AccessToken(_ context.Context) (string, error) {
	if t == "" {
		return "", errors.New("empty access token")
	}
	return string(t), nil
}

// RefreshTimeout bounds a single token refresh request
const RefreshTimeout = 30 * time.Second

// sourceProvider caches one token and refreshes it with the caller's context.
type sourceProvider struct {
	conf   *oauth2.Config
	client *http.Client

	mu  sync.Mutex
	tok *oauth2.Token
}

// AccessToken returns the cached token, refreshing it first when it expired.
func (p *sourceProvider) AccessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.tok.Valid() {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
		tok, err := p.conf.TokenSource(ctx, p.tok).Token()
		if err != nil {
			return "", fmt.Errorf("refreshing access token: %w", err)
		}
		p.tok = tok
	}
	if p.tok.AccessToken == "" {
		return "", errors.New("token endpoint returned an empty access token")
	}
	return p.tok.AccessToken, nil
}

var defaultScopes = map[string][]string{
	"google":    {"https://mail.google.com/"},
	"microsoft": {"https://outlook.office.com/IMAP.AccessAsUser.All", "offline_access"},
}

func endpoint(cfg *models.OAuthConfig) (oauth2.Endpoint, error) {
	var ep oauth2.Endpoint
	switch strings.ToLower(cfg.Provider) {
	case "google", "gmail":
		ep = google.Endpoint
	case "microsoft", "outlook":
		ep = microsoft.AzureADEndpoint("common")
	case "":
	default:
		return ep, fmt.Errorf("unknown oauth provider %q", cfg.Provider)
	}

	if cfg.TokenURL != "" {
		ep.TokenURL = cfg.TokenURL
	}
	if cfg.AuthURL != "" {
		ep.AuthURL = cfg.AuthURL
	}
	if ep.TokenURL == "" {
		return ep, errors.New("oauth tokenUrl is required for this provider")
	}
	return ep, nil
}

// NewTokenProvider builds a TokenProvider from account configuration. With a
// refresh token the provider refreshes and caches a single access token;
// with only an access token it is used verbatim. An *http.Client stored in
// ctx under oauth2.HTTPClient is used for refreshes.
func NewTokenProvider(ctx context.Context, cfg *models.OAuthConfig) (TokenProvider, error) {
	if cfg == nil {
		return nil, errors.New("no oauth configuration")
	}
	if cfg.RefreshToken == "" {
		return StaticToken(cfg.AccessToken), nil
	}

	ep, err := endpoint(cfg)
	if err != nil {
		return nil, err
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = defaultScopes[strings.ToLower(cfg.Provider)]
	}

	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     ep,
		Scopes:       scopes,
	}

	client, ok := ctx.Value(oauth2.HTTPClient).(*http.Client)
	if !ok {
		client = &http.Client{Timeout: RefreshTimeout}
	}

	// Only the refresh token is seeded so the first call always refreshes.
	return &sourceProvider{
		conf:   conf,
		client: client,
		tok:    &oauth2.Token{RefreshToken: cfg.RefreshToken},
	}, nil
}
