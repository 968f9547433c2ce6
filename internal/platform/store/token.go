package store

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

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	clientAssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"
	assertionLifetime   = 5 * time.Minute
	tokenExpirySkew     = 30 * time.Second
)

// TokenSource supplies bearer tokens for repository calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// tokenResponse is the OAuth 2.0 token endpoint response body.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

// ClientCredentials obtains access tokens with the client_credentials grant,
// authenticating with a JWT assertion signed by the client secret
// (client_secret_jwt). Tokens are cached until shortly before they expire.
type ClientCredentials struct {
	tokenURL     string
	clientID     string
	clientSecret string
	scope        string
	client       *http.Client
	now          func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// NewClientCredentials creates a ClientCredentials token source. A nil
// client uses a client with a 10 second timeout.
func NewClientCredentials(tokenURL, clientID, clientSecret, scope string, client *http.Client) *ClientCredentials {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &ClientCredentials{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		scope:        scope,
		client:       client,
		now:          time.Now,
	}
}

// Token returns a cached access token or fetches a new one. Failures are
// *Error values of kind auth (rejected credentials) or unavailable
// (token endpoint unreachable).
func (c *ClientCredentials) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiry) {
		return c.token, nil
	}

	tok, err := c.fetch(ctx)
	if err != nil {
		return "", err
	}
	lifetime := time.Duration(tok.ExpiresIn) * time.Second
	if lifetime <= 0 {
		lifetime = assertionLifetime
	}
	c.token = tok.AccessToken
	c.expiry = c.now().Add(lifetime - tokenExpirySkew)
	return c.token, nil
}

// Invalidate drops the cached token so the next call fetches a new one.
func (c *ClientCredentials) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func (c *ClientCredentials) fetch(ctx context.Context) (*tokenResponse, error) {
	const op = "token"

	assertion, err := c.assertion()
	if err != nil {
		return nil, &Error{Kind: KindAuth, Op: op, Err: fmt.Errorf("signing client assertion: %w", err)}
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_assertion_type", clientAssertionType)
	form.Set("client_assertion", assertion)
	if c.scope != "" {
		form.Set("scope", c.scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &Error{Kind: KindAuth, Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, FromTransport(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, FromTransport(op, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, FromStatus(op, resp.StatusCode, resp.Header, body)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, FromStatus(op, resp.StatusCode, resp.Header, body)
	case resp.StatusCode >= 400:
		// Any other rejection at the token endpoint means the credentials
		// are not accepted.
		return nil, &Error{
			Kind:        KindAuth,
			Op:          op,
			StatusCode:  resp.StatusCode,
			Diagnostics: oauthErrorText(body),
		}
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, &Error{Kind: KindAuth, Op: op, Err: fmt.Errorf("decoding token response: %w", err)}
	}
	if tok.AccessToken == "" {
		return nil, &Error{Kind: KindAuth, Op: op, Diagnostics: "token response has no access_token"}
	}
	return &tok, nil
}

// assertion builds the RFC 7523 client assertion: iss == sub == client_id,
// aud == token endpoint, unique jti, short expiry.
func (c *ClientCredentials) assertion() (string, error) {
	now := c.now()
	claims := jwt.MapClaims{
		"iss": c.clientID,
		"sub": c.clientID,
		"aud": c.tokenURL,
		"jti": uuid.New().String(),
		"iat": now.Unix(),
		"exp": now.Add(assertionLifetime).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(c.clientSecret))
}

func oauthErrorText(body []byte) string {
	var oe struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &oe); err != nil || oe.Error == "" {
		return ""
	}
	if oe.Description == "" {
		return oe.Error
	}
	return oe.Error + ": " + oe.Description
}
