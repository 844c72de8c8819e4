package instance

import (
	"os"
	"strings"
)

var idEnvKeys = []string{"DESIGNDROP_INSTANCE_ID", "DYNO", "WORKER_ID"}

// GetID returns the process instance identifier, falling back to the
// hostname and then to fallback.
func GetID(fallback string) string {
	for _, key := range idEnvKeys {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallback
}
