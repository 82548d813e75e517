package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/novumlogic/bookmatch/pkg/logging"
)

const (
	DefaultModel    = "gpt-4o-mini"
	DefaultEndpoint = "https://api.openai.com/v1/chat/completions"
	defaultTimeout  = 60 * time.Second
	// Upper bound on a completion body; a full book list is a few KB.
	maxResponseBytes = 4 << 20
)

var tracer = otel.Tracer("bookmatch.internal.ai")

// Observer receives one call per completion attempt. Outcome is "success"
// or the Kind of the failure.
type Observer interface {
	ObserveCompletion(outcome string, elapsed time.Duration)
}

// Client calls the chat-completions endpoint with the book schema attached.
type Client struct {
	apiKey   string
	endpoint string
	model    string
	format   ResponseFormat
	http     *http.Client
	logger   *logging.Logger
	observer Observer
}

type Option func(*Client)

func WithEndpoint(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.endpoint = url
		}
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTimeout bounds each upstream call. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying client; its Timeout is kept as-is.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(logger *logging.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	c := &Client{
		apiKey:   apiKey,
		endpoint: DefaultEndpoint,
		model:    DefaultModel,
		format:   BookRecommendationFormat(),
		http:     &http.Client{Timeout: defaultTimeout},
		logger:   logging.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type chatRequest struct {
	Model          string         `json:"model"`
	ResponseFormat ResponseFormat `json:"response_format"`
	Messages       []Message      `json:"messages"`
}

// Complete sends window upstream once. A non-nil error is always a *Failure.
func (c *Client) Complete(ctx context.Context, window []Message) (*BookList, error) {
	ctx, span := tracer.Start(ctx, "ai.complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("ai.model", c.model),
		attribute.Int("ai.messages", len(window)),
	)

	start := time.Now()
	list, failure := c.complete(ctx, window)
	elapsed := time.Since(start)

	outcome := "success"
	if failure != nil {
		outcome = string(failure.Kind)
		span.RecordError(failure)
		span.SetStatus(codes.Error, outcome)
		if failure.Status != 0 {
			span.SetAttributes(attribute.Int("http.status_code", failure.Status))
		}
		c.logger.Warn("completion failed",
			"kind", failure.Kind,
			"status", failure.Status,
			"timeout", failure.Timeout(),
			"elapsed_ms", elapsed.Milliseconds(),
		)
	} else {
		span.SetAttributes(attribute.Int("ai.genres", len(list.Data)))
		c.logger.Debug("completion succeeded",
			"genres", len(list.Data),
			"elapsed_ms", elapsed.Milliseconds(),
		)
	}
	if c.observer != nil {
		c.observer.ObserveCompletion(outcome, elapsed)
	}

	if failure != nil {
		return nil, failure
	}
	return list, nil
}

func (c *Client) complete(ctx context.Context, window []Message) (*BookList, *Failure) {
	body, err := json.Marshal(chatRequest{
		Model:          c.model,
		ResponseFormat: c.format,
		Messages:       window,
	})
	if err != nil {
		return nil, transportFailure(fmt.Errorf("encoding request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, transportFailure(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportFailure(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, transportFailure(fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, upstreamFailure(resp.StatusCode, respBody)
	}

	list, err := ParseCompletion(respBody)
	if err != nil {
		return nil, parseFailure(err)
	}
	return list, nil
}

// AsFailure returns err as a *Failure when it is one.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
