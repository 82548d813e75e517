package recommend

import (
	"fmt"
	"strings"
)

// Validate rejects payloads that must not reach the paid completion call.
// Roles are not restricted to a closed set; only blank values are refused.
func Validate(in ConversationInput) error {
	if len(in.Messages) == 0 {
		return &ValidationError{Reasons: []string{`Key "messages" must contain at least one message`}}
	}

	var reasons []string
	for i, m := range in.Messages {
		if strings.TrimSpace(m.Role) == "" {
			reasons = append(reasons, fmt.Sprintf(`messages[%d]: key "role" must be non-empty and not-null`, i))
		}
		if strings.TrimSpace(m.Content) == "" {
			reasons = append(reasons, fmt.Sprintf(`messages[%d]: key "content" must be non-empty and not-null`, i))
		}
	}
	if len(reasons) > 0 {
		return &ValidationError{Reasons: reasons}
	}
	return nil
}
