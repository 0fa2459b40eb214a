package instance

import (
	"os"
	"strings"
)

const (
	EnvInstanceID = "ORDERDESK_INSTANCE_ID"
	envDyno       = "DYNO"
	fallbackID    = "local"
)

// ID names the running process in logs. An explicit ORDERDESK_INSTANCE_ID wins,
// then the platform dyno name, then the hostname.
func ID() string {
	for _, key := range []string{EnvInstanceID, envDyno} {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && strings.TrimSpace(host) != "" {
		return host
	}
	return fallbackID
}
