package ebay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Default token provider configuration.
const (
	DefaultTokenTimeout = 30 * time.Second
	DefaultExpiryMargin = 60 * time.Second
)

// token is a cached bearer token. Replaced wholesale on refresh, never
// mutated in place.
type token struct {
	accessToken string
	expiresAt   time.Time
}

// TokenProvider acquires and caches an application access token via the
// client-credentials grant. Safe for use from a single scan goroutine plus
// the dashboard; guarded by a mutex.
type TokenProvider struct {
	tokenURL     string
	clientID     string
	clientSecret string
	scope        string
	expiryMargin time.Duration
	client       *http.Client
	now          func() time.Time

	mu     sync.Mutex
	cached *token
}

// TokenOption configures TokenProvider.
type TokenOption func(*TokenProvider)

// WithTokenHTTPClient sets a custom http.Client.
func WithTokenHTTPClient(client *http.Client) TokenOption {
	return func(p *TokenProvider) {
		p.client = client
	}
}

// WithExpiryMargin sets the safety margin before expiry that triggers refresh.
func WithExpiryMargin(d time.Duration) TokenOption {
	return func(p *TokenProvider) {
		p.expiryMargin = d
	}
}

// WithClock sets the time source, used by tests.
func WithClock(now func() time.Time) TokenOption {
	return func(p *TokenProvider) {
		p.now = now
	}
}

// NewTokenProvider creates a TokenProvider for the given token endpoint.
func NewTokenProvider(tokenURL, clientID, clientSecret, scope string, opts ...TokenOption) *TokenProvider {
	p := &TokenProvider{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		scope:        scope,
		expiryMargin: DefaultExpiryMargin,
		client:       &http.Client{Timeout: DefaultTokenTimeout},
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Token returns a bearer token with at least the expiry margin of validity
// left, refreshing synchronously when needed.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	if p.clientID == "" || p.clientSecret == "" {
		return "", fmt.Errorf("%w: client credentials not configured", ErrAuth)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil && p.now().Add(p.expiryMargin).Before(p.cached.expiresAt) {
		return p.cached.accessToken, nil
	}

	t, err := p.fetch(ctx)
	if err != nil {
		return "", err
	}
	p.cached = t
	return t.accessToken, nil
}

// Invalidate drops the cached token so the next Token call refreshes.
// Used after the search endpoint rejects a token with 401.
func (p *TokenProvider) Invalidate() {
	p.mu.Lock()
	p.cached = nil
	p.mu.Unlock()
}

// tokenResponse is the wire form of the token endpoint response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// fetch performs one client-credentials request. Caller holds the lock.
func (p *TokenProvider) fetch(ctx context.Context) (*token, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", p.scope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(p.clientID, p.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: token request: %v", ErrAuth, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read token response: %v", ErrAuth, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: token endpoint returned %d", ErrAuth, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("%w: unmarshal token response: %v", ErrAuth, err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("%w: no access_token in response", ErrAuth)
	}

	return &token{
		accessToken: tr.AccessToken,
		expiresAt:   p.now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}
