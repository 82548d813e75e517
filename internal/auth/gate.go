package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/novumlogic/bookmatch/internal/supabase"
	"github.com/novumlogic/bookmatch/pkg/logging"
)

const ReasonNotSignedIn = "User not signed-in"

// IdentityProvider resolves an access token to a user.
type IdentityProvider interface {
	User(ctx context.Context, accessToken string) (*supabase.User, error)
}

// VerifiedUser is present only for callers the identity provider accepted.
type VerifiedUser struct {
	ID    string
	Email string
}

// Error is returned for every rejected token. Reason is safe to show callers.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *Error) Unwrap() error { return e.Err }

type Gate struct {
	provider IdentityProvider
	logger   *logging.Logger
}

func NewGate(p IdentityProvider, logger *logging.Logger) *Gate {
	if logger == nil {
		logger = logging.Default()
	}
	return &Gate{provider: p, logger: logger}
}

// Authenticate exchanges accessToken for a VerifiedUser. Any failure, including
// an unreachable provider, yields *Error.
func (g *Gate) Authenticate(ctx context.Context, accessToken string) (*VerifiedUser, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, &Error{Reason: ReasonNotSignedIn + ", access token missing"}
	}

	u, err := g.provider.User(ctx, accessToken)
	if err != nil {
		g.logger.Info("auth: token rejected", "error", err)
		return nil, &Error{Reason: rejectionReason(err), Err: err}
	}

	if u == nil || u.ID == "" {
		return nil, &Error{Reason: ReasonNotSignedIn}
	}
	return &VerifiedUser{ID: u.ID, Email: u.Email}, nil
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, supabase.ErrTokenExpired):
		return ReasonNotSignedIn + ", access token expired"
	case errors.Is(err, supabase.ErrInvalidToken):
		return ReasonNotSignedIn + ", " + err.Error()
	default:
		return ReasonNotSignedIn + ", identity provider unavailable"
	}
}
