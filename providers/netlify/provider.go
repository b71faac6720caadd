package netlify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-deployer/core"
	"github.com/goliatone/go-deployer/ratelimit"
	"golang.org/x/oauth2"
)

const (
	ProviderID = "netlify"
	AuthURL    = core.DefaultAuthURL
	TokenURL   = core.DefaultTokenURL
	APIURL     = core.DefaultNetlifyAPIURL

	defaultRequestTimeout = 30 * time.Second
)

type Config struct {
	ClientID       string
	ClientSecret   string
	RedirectURL    string
	AuthURL        string
	TokenURL       string
	APIURL         string
	RequestTimeout time.Duration
	HTTPClient     *http.Client
	Logger         core.Logger
	// RateLimit tracks the API rate-limit headers. NewClient installs an
	// in-memory policy when nil.
	RateLimit *ratelimit.AdaptivePolicy
}

func DefaultConfig() Config {
	return Config{
		AuthURL:        AuthURL,
		TokenURL:       TokenURL,
		APIURL:         APIURL,
		RequestTimeout: defaultRequestTimeout,
	}
}

// ConfigFromCore maps the deployer config, with env references expanded.
func ConfigFromCore(cfg core.Config) Config {
	oauth := cfg.ResolvedOAuth()
	return Config{
		ClientID:     oauth.ClientID,
		ClientSecret: oauth.ClientSecret,
		RedirectURL:  oauth.RedirectURL,
		AuthURL:      cfg.Netlify.AuthURL,
		TokenURL:     cfg.Netlify.TokenURL,
		APIURL:       cfg.Netlify.APIURL,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	c.ClientID = strings.TrimSpace(c.ClientID)
	c.ClientSecret = strings.TrimSpace(c.ClientSecret)
	c.RedirectURL = strings.TrimSpace(c.RedirectURL)
	if strings.TrimSpace(c.AuthURL) == "" {
		c.AuthURL = defaults.AuthURL
	}
	if strings.TrimSpace(c.TokenURL) == "" {
		c.TokenURL = defaults.TokenURL
	}
	if strings.TrimSpace(c.APIURL) == "" {
		c.APIURL = defaults.APIURL
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaults.RequestTimeout
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.RequestTimeout}
	}
	return c
}

// Provider runs the authorization-code flow against Netlify.
type Provider struct {
	oauth      oauth2.Config
	httpClient *http.Client
}

func NewProvider(cfg Config) (*Provider, error) {
	cfg = cfg.withDefaults()
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("netlify: client id is required")
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("netlify: client secret is required")
	}
	return &Provider{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:   strings.TrimSpace(cfg.AuthURL),
				TokenURL:  strings.TrimSpace(cfg.TokenURL),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: cfg.HTTPClient,
	}, nil
}

func (p *Provider) ID() string {
	return ProviderID
}

func (p *Provider) AuthorizationURL(state string, redirectURI string) (string, error) {
	if p == nil {
		return "", fmt.Errorf("netlify: provider is nil")
	}
	state = strings.TrimSpace(state)
	if state == "" {
		return "", fmt.Errorf("netlify: oauth state is required")
	}
	return p.configFor(redirectURI).AuthCodeURL(state), nil
}

func (p *Provider) Exchange(ctx context.Context, code string, redirectURI string) (core.AccessToken, error) {
	if p == nil {
		return core.AccessToken{}, fmt.Errorf("netlify: provider is nil")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return core.AccessToken{}, core.NewTokenExchangeError(fmt.Errorf("netlify: authorization code is required"))
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	token, err := p.configFor(redirectURI).Exchange(ctx, code)
	if err != nil {
		exchangeErr := core.NewTokenExchangeError(err)
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			metadata := map[string]any{"error_code": retrieveErr.ErrorCode}
			if retrieveErr.Response != nil {
				metadata["status"] = retrieveErr.Response.StatusCode
			}
			exchangeErr.WithMetadata(metadata)
		}
		return core.AccessToken{}, exchangeErr
	}
	return accessTokenFromOAuth2(token), nil
}

func (p *Provider) configFor(redirectURI string) *oauth2.Config {
	cfg := p.oauth
	if redirect := strings.TrimSpace(redirectURI); redirect != "" {
		cfg.RedirectURL = redirect
	}
	return &cfg
}

func accessTokenFromOAuth2(token *oauth2.Token) core.AccessToken {
	if token == nil {
		return core.AccessToken{}
	}
	out := core.AccessToken{
		AccessToken:  strings.TrimSpace(token.AccessToken),
		TokenType:    strings.TrimSpace(token.TokenType),
		RefreshToken: strings.TrimSpace(token.RefreshToken),
		Extra:        map[string]any{},
	}
	if !token.Expiry.IsZero() {
		expiresAt := token.Expiry.UTC()
		out.ExpiresAt = &expiresAt
	}
	for _, key := range []string{"scope", "created_at"} {
		if value := token.Extra(key); value != nil {
			out.Extra[key] = value
		}
	}
	return out
}

// oauth2Token drops the expiry: tokens are never refreshed here and an
// expired one is still sent as-is.
func oauth2Token(token core.AccessToken) *oauth2.Token {
	return &oauth2.Token{
		AccessToken: strings.TrimSpace(token.AccessToken),
		TokenType:   "Bearer",
	}
}
