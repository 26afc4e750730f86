package health

import (
	"regexp"
	"strings"
	"time"
)

var (
	urlRegex        = regexp.MustCompile(`(?:https?|nats|wss?)://[^\s]+`)
	unixPathRegex   = regexp.MustCompile(`/[a-zA-Z0-9/_.-]+`)
	ipAddrRegex     = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	portRegex       = regexp.MustCompile(`:\d{2,5}\b`)
	credentialRegex = regexp.MustCompile(`(?i)(password|token|key|secret|credential)[^a-zA-Z]*[:=][^,\s}]+`)
)

// Levels.
const (
	LevelHealthy   = "healthy"
	LevelDegraded  = "degraded"
	LevelUnhealthy = "unhealthy"
)

// Status is the health of a service or of the whole controller.
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"`
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
	Metrics     *Metrics  `json:"metrics,omitempty"`
}

// Metrics are optional counters attached to a status.
type Metrics struct {
	Uptime       time.Duration `json:"uptime"`
	ErrorCount   int           `json:"error_count"`
	Sessions     int           `json:"sessions,omitempty"`
	LastActivity time.Time     `json:"last_activity,omitempty"`
}

// IsHealthy reports the healthy level.
func (s Status) IsHealthy() bool { return s.Status == LevelHealthy }

// IsDegraded reports the degraded level.
func (s Status) IsDegraded() bool { return s.Status == LevelDegraded }

// IsUnhealthy reports the unhealthy level.
func (s Status) IsUnhealthy() bool { return s.Status == LevelUnhealthy }

// WithMetrics returns a copy with m attached.
func (s Status) WithMetrics(m *Metrics) Status {
	s.Metrics = m
	return s
}

// WithSubStatus returns a copy with sub appended. The receiver's slice is
// never shared with the copy.
func (s Status) WithSubStatus(sub Status) Status {
	subs := make([]Status, len(s.SubStatuses), len(s.SubStatuses)+1)
	copy(subs, s.SubStatuses)
	s.SubStatuses = append(subs, sub)
	return s
}

// Sanitize removes URLs, paths, IP addresses, ports and credentials from msg.
func Sanitize(msg string) string {
	if msg == "" {
		return ""
	}
	msg = urlRegex.ReplaceAllString(msg, "[URL]")
	msg = unixPathRegex.ReplaceAllString(msg, "[PATH]")
	msg = ipAddrRegex.ReplaceAllString(msg, "[IP]")
	msg = portRegex.ReplaceAllString(msg, "[PORT]")
	lower := strings.ToLower(msg)
	for _, word := range []string{"password", "token", "key", "secret", "credential"} {
		if strings.Contains(lower, word) {
			return credentialRegex.ReplaceAllString(msg, "[REDACTED]")
		}
	}
	return msg
}

// FromError is healthy with message ok when err is nil, unhealthy with the
// sanitized error otherwise.
func FromError(component string, err error, ok string) Status {
	if err == nil {
		return NewHealthy(component, ok)
	}
	return NewUnhealthy(component, Sanitize(err.Error()))
}
