package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/novumlogic/bookmatch/internal/ai"
	"github.com/novumlogic/bookmatch/internal/auth"
	"github.com/novumlogic/bookmatch/internal/ratelimit"
	"github.com/novumlogic/bookmatch/pkg/logging"
)

const maxBodyBytes = 1 << 20

const formatHint = `Check the request format has correct keys: {"access_token": "...", "messages": [{"role": "user", "content": "romance, thriller"}]}`

// Runner is the part of Pipeline the HTTP handler depends on.
type Runner interface {
	Run(ctx context.Context, in ConversationInput, limitKey string) (*ai.BookList, error)
}

type Handler struct {
	pipeline      Runner
	keyFunc       ratelimit.KeyFunc
	failureStatus int
	observer      Observer
	logger        *logging.Logger
}

type HandlerOption func(*Handler)

// WithKeyFunc selects the rate-limit bucket per request. Default is GlobalKey.
func WithKeyFunc(fn ratelimit.KeyFunc) HandlerOption {
	return func(h *Handler) {
		if fn != nil {
			h.keyFunc = fn
		}
	}
}

// WithFailureStatus sets the status for completion failures.
// http.StatusOK keeps the legacy contract of an error body with 200.
func WithFailureStatus(status int) HandlerOption {
	return func(h *Handler) {
		if status != 0 {
			h.failureStatus = status
		}
	}
}

func WithObserver(o Observer) HandlerOption {
	return func(h *Handler) {
		h.observer = o
	}
}

func NewHandler(p Runner, logger *logging.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	h := &Handler{
		pipeline:      p,
		keyFunc:       ratelimit.GlobalKey,
		failureStatus: http.StatusBadGateway,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// wire types keep null and absent apart so a missing key is a format error
// and a null value is a validation error.
type requestBody struct {
	AccessToken *string        `json:"access_token"`
	Messages    *[]wireMessage `json:"messages"`
}

type wireMessage struct {
	Role    *string `json:"role"`
	Content *string `json:"content"`
}

func (b requestBody) input() ConversationInput {
	in := ConversationInput{AccessToken: *b.AccessToken}
	in.Messages = make([]ai.Message, 0, len(*b.Messages))
	for _, m := range *b.Messages {
		var msg ai.Message
		if m.Role != nil {
			msg.Role = *m.Role
		}
		if m.Content != nil {
			msg.Content = *m.Content
		}
		in.Messages = append(in.Messages, msg)
	}
	return in
}

// decodeRequest reads exactly one JSON object carrying both top-level keys.
func decodeRequest(r io.Reader) (requestBody, error) {
	var body requestBody
	dec := json.NewDecoder(r)
	if err := dec.Decode(&body); err != nil {
		return body, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return body, errors.New("request body has trailing data")
	}
	if body.AccessToken == nil || body.Messages == nil {
		return body, errors.New("request body is missing access_token or messages")
	}
	return body, nil
}

// GenerateRecommendations handles POST /generate-recommendations.
func (h *Handler) GenerateRecommendations(w http.ResponseWriter, r *http.Request) {
	body, err := decodeRequest(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.logger.Info("recommend: undecodable body", "error", err)
		h.observe("bad_request")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: formatHint})
		return
	}

	list, err := h.pipeline.Run(r.Context(), body.input(), h.keyFunc(r))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.observe("success")
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var (
		validationErr *ValidationError
		limitErr      *ratelimit.ExceededError
		authErr       *auth.Error
		configErr     *ConfigError
	)

	switch {
	case errors.As(err, &validationErr):
		h.observe("bad_request")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validationErr.Error()})

	case errors.As(err, &limitErr):
		h.observe("rate_limited")
		secs := limitErr.RetrySeconds()
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		writeJSON(w, http.StatusTooManyRequests, errorResponse{
			Error: fmt.Sprintf("429: Too many requests. Wait for %d seconds.", secs),
		})

	case errors.As(err, &authErr):
		h.observe("unauthorized")
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: authErr.Reason})

	case errors.As(err, &configErr):
		h.observe("config_error")
		h.logger.Error("recommend: pipeline misconfigured", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error: fmt.Sprintf("Internal server error: %v (missing environment variables, expired api keys)", err),
		})

	default:
		if f, ok := ai.AsFailure(err); ok {
			h.observe(string(f.Kind))
			writeJSON(w, h.failureStatus, errorResponse{Error: f.Error(), Kind: string(f.Kind)})
			return
		}
		h.observe("internal_error")
		h.logger.Error("recommend: unexpected error", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "500: " + err.Error()})
	}
}

func (h *Handler) observe(outcome string) {
	if h.observer != nil {
		h.observer.ObserveRequest(outcome)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
