package recommend

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novumlogic/bookmatch/internal/auth"
	"github.com/novumlogic/bookmatch/internal/store"
)

type brokenUsage struct{}

func (brokenUsage) GetUsage(string) (*store.Usage, error) {
	return nil, errors.New("bucket missing")
}

func newUsageStore(t *testing.T) *store.BoltStore {
	t.Helper()
	s, err := store.NewBoltStore(filepath.Join(t.TempDir(), "usage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func getUsage(h *UsageHandler, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/usage", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	h.GetUsage(w, req)
	return w
}

func TestUsageReturnsCallerCounters(t *testing.T) {
	s := newUsageStore(t)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.RecordRecommendation("u-1", 2, at))
	require.NoError(t, s.RecordRecommendation("u-2", 5, at))

	h := NewUsageHandler(&stubAuth{users: map[string]*auth.VerifiedUser{"valid": {ID: "u-1"}}}, s, nil)
	w := getUsage(h, "Bearer valid")

	require.Equal(t, http.StatusOK, w.Code)
	var u store.Usage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &u))
	assert.Equal(t, "u-1", u.UserID)
	assert.Equal(t, 1, u.Requests)
	assert.Equal(t, 2, u.GenresServed)
	assert.True(t, at.Equal(u.LastRequestAt))
}

func TestUsageUnknownUserIsZero(t *testing.T) {
	h := NewUsageHandler(&stubAuth{users: map[string]*auth.VerifiedUser{"valid": {ID: "u-9"}}}, newUsageStore(t), nil)
	w := getUsage(h, "bearer valid")

	require.Equal(t, http.StatusOK, w.Code)
	var u store.Usage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &u))
	assert.Equal(t, "u-9", u.UserID)
	assert.Zero(t, u.Requests)
}

func TestUsageRejectsUnauthenticated(t *testing.T) {
	a := &stubAuth{users: map[string]*auth.VerifiedUser{"valid": {ID: "u-1"}}}
	h := NewUsageHandler(a, newUsageStore(t), nil)

	for _, header := range []string{"", "Bearer nope", "Basic dmFsaWQ="} {
		w := getUsage(h, header)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "header %q", header)
		assert.Contains(t, decodeError(t, w).Error, auth.ReasonNotSignedIn)
	}
}

func TestUsageLookupError(t *testing.T) {
	h := NewUsageHandler(&stubAuth{users: map[string]*auth.VerifiedUser{"valid": {ID: "u-1"}}}, brokenUsage{}, nil)
	w := getUsage(h, "Bearer valid")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "500: bucket missing", decodeError(t, w).Error)
}
