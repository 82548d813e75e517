package recommend

import (
	"errors"
	"net/http"
	"strings"

	"github.com/novumlogic/bookmatch/internal/auth"
	"github.com/novumlogic/bookmatch/internal/store"
	"github.com/novumlogic/bookmatch/pkg/logging"
)

// UsageReader looks up the ledger entry for one user.
type UsageReader interface {
	GetUsage(userID string) (*store.Usage, error)
}

// UsageHandler lets a signed-in caller read their own usage counters.
type UsageHandler struct {
	auth   Authenticator
	usage  UsageReader
	logger *logging.Logger
}

func NewUsageHandler(a Authenticator, u UsageReader, logger *logging.Logger) *UsageHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &UsageHandler{auth: a, usage: u, logger: logger}
}

// GetUsage handles GET /usage with an "Authorization: Bearer <access token>" header.
func (h *UsageHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)

	user, err := h.auth.Authenticate(r.Context(), token)
	if err != nil || user == nil {
		reason := auth.ReasonNotSignedIn
		var authErr *auth.Error
		if errors.As(err, &authErr) {
			reason = authErr.Reason
		}
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: reason})
		return
	}

	u, err := h.usage.GetUsage(user.ID)
	if err != nil {
		h.logger.Error("usage: lookup failed", "user_id", user.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "500: " + err.Error()})
		return
	}
	if u == nil {
		u = &store.Usage{UserID: user.ID}
	}
	writeJSON(w, http.StatusOK, u)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
