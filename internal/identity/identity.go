// Package identity supplies bearer tokens for outgoing sync requests.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Provider caches tokens from a base source until they expire or a server
// rejects them.
type Provider struct {
	mu   sync.Mutex
	base oauth2.TokenSource
	cur  oauth2.TokenSource
}

func NewProvider(base oauth2.TokenSource) *Provider {
	return &Provider{base: base, cur: oauth2.ReuseTokenSource(nil, base)}
}

func (p *Provider) Token() (*oauth2.Token, error) {
	p.mu.Lock()
	src := p.cur
	p.mu.Unlock()
	return src.Token()
}

// Invalidate drops the cached token so the next call fetches a new one.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	p.cur = oauth2.ReuseTokenSource(nil, p.base)
	p.mu.Unlock()
}

// Static wraps a fixed bearer token.
func Static(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}

// ClientCredentials fetches tokens with the OAuth2 client-credentials grant.
func ClientCredentials(ctx context.Context, tokenURL, clientID, clientSecret string, scopes ...string) oauth2.TokenSource {
	cc := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       scopes,
	}
	return cc.TokenSource(ctx)
}

// PasswordSource logs in against the sync server's /auth/login endpoint.
type PasswordSource struct {
	BaseURL  string
	Username string
	Password string
	HTTP     *http.Client
	Timeout  time.Duration
}

func (s *PasswordSource) Token() (*oauth2.Token, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	body, _ := json.Marshal(map[string]string{"username": s.Username, "password": s.Password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(s.BaseURL, "/")+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	hc := s.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	res, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return nil, fmt.Errorf("login: %s", res.Status)
	}
	var out struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if out.AccessToken == "" {
		return nil, errors.New("login: empty token")
	}
	tok := &oauth2.Token{AccessToken: out.AccessToken, TokenType: out.TokenType}
	if out.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)
	}
	return tok, nil
}

// SubjectFromToken reads the sub claim of a JWT without verifying it. The
// server verifies; the client only needs a default user id.
func SubjectFromToken(raw string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return "", err
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return "", err
	}
	if sub == "" {
		return "", errors.New("token has no subject")
	}
	return sub, nil
}
