package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *recordingObserver) ObserveCompletion(outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func newTestClient(t *testing.T, url string, opts ...Option) *Client {
	t.Helper()
	c, err := NewClient("sk-test", append([]Option{WithEndpoint(url)}, opts...)...)
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	c, err := NewClient("")
	assert.Nil(t, c)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestCompleteSuccess(t *testing.T) {
	var captured struct {
		auth string
		body chatRequest
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &captured.body)
		w.Header().Set("Content-Type", "application/json")
		w.Write(envelope(t, twoGenreContent))
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	c := newTestClient(t, srv.URL, WithObserver(obs), WithModel("gpt-test"))
	window := NewWindowBuilder(SystemInstruction).Stage(msgs("user", "fantasy, mystery"))

	list, err := c.Complete(context.Background(), window)
	require.NoError(t, err)
	require.Len(t, list.Data, 2)
	assert.Equal(t, "The Hobbit", list.Data[0].List[0].Title)

	assert.Equal(t, "Bearer sk-test", captured.auth)
	assert.Equal(t, "gpt-test", captured.body.Model)
	assert.Equal(t, "json_schema", captured.body.ResponseFormat.Type)
	assert.True(t, captured.body.ResponseFormat.JSONSchema.Strict)
	require.Len(t, captured.body.Messages, 2)
	assert.Equal(t, Message{Role: RoleSystem, Content: SystemInstruction}, captured.body.Messages[0])
	assert.Equal(t, "fantasy, mystery", captured.body.Messages[1].Content)
	assert.Equal(t, []string{"success"}, obs.outcomes)
}

func TestCompleteUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"boom"}}`))
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	c := newTestClient(t, srv.URL, WithObserver(obs))

	list, err := c.Complete(context.Background(), msgs("user", "x"))
	assert.Nil(t, list)

	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, KindUpstream, f.Kind)
	assert.Equal(t, http.StatusInternalServerError, f.Status)
	assert.Contains(t, f.Body, "boom")
	assert.Contains(t, f.Error(), "OpenAI API failed: 500")
	assert.Equal(t, []string{string(KindUpstream)}, obs.outcomes)
}

func TestCompleteTruncatesLargeErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write(make([]byte, maxFailureBody*2))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Complete(context.Background(), nil)
	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Len(t, f.Body, maxFailureBody)
}

func TestCompleteParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(envelope(t, `{"data":[{"genre":"cooking","list":[]}]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Complete(context.Background(), msgs("user", "x"))
	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, KindParse, f.Kind)
	assert.False(t, f.Timeout())
}

func TestCompleteTimeoutIsTransportFailure(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newTestClient(t, srv.URL, WithTimeout(50*time.Millisecond))
	_, err := c.Complete(context.Background(), msgs("user", "x"))

	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, KindTransport, f.Kind)
	assert.True(t, f.Timeout())
}

func TestCompleteConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(t, url).Complete(context.Background(), msgs("user", "x"))
	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, KindTransport, f.Kind)
	assert.NotNil(t, errors.Unwrap(f))
}

func TestCompleteCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(t, srv.URL).Complete(ctx, msgs("user", "x"))
	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, KindTransport, f.Kind)
	assert.ErrorIs(t, err, context.Canceled)
}
