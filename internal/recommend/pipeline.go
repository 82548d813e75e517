package recommend

import (
	"context"
	"errors"
	"time"

	"github.com/novumlogic/bookmatch/internal/ai"
	"github.com/novumlogic/bookmatch/internal/auth"
	"github.com/novumlogic/bookmatch/internal/ratelimit"
	"github.com/novumlogic/bookmatch/pkg/logging"
)

// ConversationInput is one inbound request. It is never persisted.
type ConversationInput struct {
	AccessToken string
	Messages    []ai.Message
}

type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*auth.VerifiedUser, error)
}

type Completer interface {
	Complete(ctx context.Context, window []ai.Message) (*ai.BookList, error)
}

// UsageRecorder counts served requests per user. Optional.
type UsageRecorder interface {
	RecordRecommendation(userID string, genres int, at time.Time) error
}

// Observer receives pipeline-level events. Optional.
type Observer interface {
	ObserveRequest(outcome string)
	ObserveRateLimited()
}

type Deps struct {
	Auth      Authenticator
	Limiter   ratelimit.Limiter
	Window    *ai.WindowBuilder
	Completer Completer
	Usage     UsageRecorder
	Observer  Observer
	Logger    *logging.Logger
}

// Pipeline runs validate -> rate limit -> authenticate -> authorize ->
// build window -> complete for one request, stopping at the first failure.
type Pipeline struct {
	auth      Authenticator
	limiter   ratelimit.Limiter
	window    *ai.WindowBuilder
	completer Completer
	usage     UsageRecorder
	observer  Observer
	logger    *logging.Logger
	now       func() time.Time
}

func NewPipeline(d Deps) *Pipeline {
	if d.Logger == nil {
		d.Logger = logging.Default()
	}
	return &Pipeline{
		auth:      d.Auth,
		limiter:   d.Limiter,
		window:    d.Window,
		completer: d.Completer,
		usage:     d.Usage,
		observer:  d.Observer,
		logger:    d.Logger,
		now:       time.Now,
	}
}

// Run returns the book list or one of *ValidationError, *ratelimit.ExceededError,
// *auth.Error, *ai.Failure or *ConfigError.
func (p *Pipeline) Run(ctx context.Context, in ConversationInput, limitKey string) (*ai.BookList, error) {
	if err := p.checkConfigured(); err != nil {
		return nil, err
	}

	if err := Validate(in); err != nil {
		return nil, err
	}

	decision, err := p.limiter.Allow(ctx, limitKey)
	switch {
	case err != nil:
		p.logger.Warn("rate limiter unavailable, admitting request", "key", limitKey, "error", err)
	case !decision.Allowed:
		if p.observer != nil {
			p.observer.ObserveRateLimited()
		}
		p.logger.Info("rate limit exceeded", "key", limitKey, "retry_after", decision.RetryAfter.String())
		return nil, &ratelimit.ExceededError{RetryAfter: decision.RetryAfter}
	}

	user, err := p.auth.Authenticate(ctx, in.AccessToken)
	if err != nil {
		var authErr *auth.Error
		if !errors.As(err, &authErr) {
			err = &auth.Error{Reason: auth.ReasonNotSignedIn, Err: err}
		}
		return nil, err
	}
	if user == nil {
		return nil, &auth.Error{Reason: auth.ReasonNotSignedIn}
	}

	window := p.window.Stage(in.Messages)
	p.logger.Debug("calling completion provider", "user_id", user.ID, "messages", len(window))

	list, err := p.completer.Complete(ctx, window)
	if err != nil {
		return nil, err
	}

	if p.usage != nil {
		if err := p.usage.RecordRecommendation(user.ID, len(list.Data), p.now()); err != nil {
			p.logger.Warn("failed to record usage", "user_id", user.ID, "error", err)
		}
	}
	return list, nil
}

func (p *Pipeline) checkConfigured() error {
	var missing []string
	if p.auth == nil {
		missing = append(missing, "identity provider")
	}
	if p.limiter == nil {
		missing = append(missing, "rate limiter")
	}
	if p.window == nil {
		missing = append(missing, "window builder")
	}
	if p.completer == nil {
		missing = append(missing, "completion client")
	}
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}
	return nil
}
