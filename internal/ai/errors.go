package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind categorizes a failed completion call.
type Kind string

const (
	KindTransport Kind = "transport_error" // dial, TLS, timeout, request encoding
	KindUpstream  Kind = "upstream_error"  // provider answered with a non-2xx status
	KindParse     Kind = "parse_error"     // 2xx body did not match the book list schema
)

// maxFailureBody bounds how much of a provider error body is kept.
const maxFailureBody = 4096

// ErrMissingAPIKey is returned by NewClient when no credential is configured.
var ErrMissingAPIKey = errors.New("ai: OpenAI API key missing")

// Failure is the error returned by Client.Complete.
type Failure struct {
	Kind   Kind
	Status int    // set for KindUpstream
	Body   string // set for KindUpstream, truncated to maxFailureBody
	Err    error
}

func (f *Failure) Error() string {
	switch f.Kind {
	case KindUpstream:
		return fmt.Sprintf("OpenAI API failed: %d\n%s", f.Status, f.Body)
	case KindParse:
		return fmt.Sprintf("OpenAI response not understood: %v", f.Err)
	default:
		return fmt.Sprintf("OpenAI request failed: %v", f.Err)
	}
}

func (f *Failure) Unwrap() error { return f.Err }

// Timeout reports whether a transport failure was caused by a deadline.
func (f *Failure) Timeout() bool {
	if f.Kind != KindTransport || f.Err == nil {
		return false
	}
	if errors.Is(f.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(f.Err, &netErr) && netErr.Timeout()
}

func transportFailure(err error) *Failure {
	return &Failure{Kind: KindTransport, Err: err}
}

func upstreamFailure(status int, body []byte) *Failure {
	if len(body) > maxFailureBody {
		body = body[:maxFailureBody]
	}
	return &Failure{
		Kind:   KindUpstream,
		Status: status,
		Body:   string(body),
		Err:    fmt.Errorf("status %d", status),
	}
}

func parseFailure(err error) *Failure {
	return &Failure{Kind: KindParse, Err: err}
}
