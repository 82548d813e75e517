package recommend

import (
	"fmt"
	"strings"
)

// ValidationError lists every constraint the inbound payload violated.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Reasons, ", ")
}

// ConfigError means the pipeline was built without a required collaborator,
// usually because a secret was missing at startup.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("pipeline not configured: missing %s", strings.Join(e.Missing, ", "))
}
