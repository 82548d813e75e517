package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novumlogic/bookmatch/internal/supabase"
)

type stubProvider struct {
	user  *supabase.User
	err   error
	calls int
}

func (s *stubProvider) User(_ context.Context, _ string) (*supabase.User, error) {
	s.calls++
	return s.user, s.err
}

func TestAuthenticateSuccess(t *testing.T) {
	p := &stubProvider{user: &supabase.User{ID: "u-1", Email: "reader@example.com"}}
	u, err := NewGate(p, nil).Authenticate(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, &VerifiedUser{ID: "u-1", Email: "reader@example.com"}, u)
}

func TestAuthenticateRejections(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		p      *stubProvider
		reason string
		calls  int
	}{
		{"blank token", "  ", &stubProvider{}, "access token missing", 0},
		{"expired", "t", &stubProvider{err: supabase.ErrTokenExpired}, "access token expired", 1},
		{"invalid", "t", &stubProvider{err: fmt.Errorf("%w: bad_jwt", supabase.ErrInvalidToken)}, "bad_jwt", 1},
		{"provider down", "t", &stubProvider{err: &supabase.StatusError{Status: 503, Body: "secret detail"}}, "identity provider unavailable", 1},
		{"no user", "t", &stubProvider{}, ReasonNotSignedIn, 1},
		{"user without id", "t", &stubProvider{user: &supabase.User{Email: "x@example.com"}}, ReasonNotSignedIn, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := NewGate(tt.p, nil).Authenticate(context.Background(), tt.token)
			assert.Nil(t, u)

			var authErr *Error
			require.True(t, errors.As(err, &authErr))
			assert.Contains(t, authErr.Reason, tt.reason)
			assert.NotContains(t, authErr.Reason, "secret detail")
			assert.Equal(t, tt.calls, tt.p.calls)
		})
	}
}
