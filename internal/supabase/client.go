package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("bookmatch.internal.supabase")

var (
	// ErrInvalidToken means the provider (or the local pre-check) rejected the token.
	ErrInvalidToken = errors.New("invalid access token")
	// ErrTokenExpired means the token's exp claim is in the past.
	ErrTokenExpired = errors.New("access token expired")
)

// StatusError is an unexpected response from the auth server.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("supabase auth status %d: %s", e.Status, e.Body)
}

type Client struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	precheck bool
	now      func() time.Time
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
		precheck: true,
		now:      time.Now,
	}
}

// WithoutPrecheck disables local JWT parsing so every token reaches the
// auth server. Used when the project issues opaque tokens.
func (c *Client) WithoutPrecheck() *Client {
	c.precheck = false
	return c
}

// User resolves an access token to its user.
// Reference: GoTrue GET /auth/v1/user
func (c *Client) User(ctx context.Context, accessToken string) (*User, error) {
	ctx, span := tracer.Start(ctx, "supabase.user")
	defer span.End()

	user, err := c.user(ctx, accessToken)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user lookup failed")
		return nil, err
	}
	span.SetAttributes(attribute.Bool("supabase.user_found", user.ID != ""))
	return user, nil
}

func (c *Client) user(ctx context.Context, accessToken string) (*User, error) {
	if c.precheck {
		if err := c.checkToken(accessToken); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.text() != "" {
			return nil, fmt.Errorf("%w: %s", ErrInvalidToken, apiErr.text())
		}
		return nil, ErrInvalidToken
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Status: resp.StatusCode, Body: string(body)}
	}

	var u User
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("decoding user response: %w", err)
	}
	return &u, nil
}

// checkToken rejects tokens that are not JWTs or whose exp has passed, without
// verifying the signature. The auth server remains the authority.
func (c *Client) checkToken(accessToken string) error {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ExpiresAt != nil && !c.now().Before(claims.ExpiresAt.Time) {
		return ErrTokenExpired
	}
	return nil
}
