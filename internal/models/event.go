package models

import "time"

// EventType names the kind of progress event on the bus (spec §3.1, §4.8).
type EventType string

const (
	EventTaskStarted    EventType = "task.started"
	EventTaskProgress   EventType = "task.progress"
	EventTaskCompleted  EventType = "task.completed"
	EventTaskFailed     EventType = "task.failed"
	EventTaskCancelled  EventType = "task.cancelled"
	EventAdapterHealth  EventType = "adapter.health"
	EventAdapterRetry   EventType = "adapter.retry"
	EventSystemShutdown EventType = "system.shutdown"
	EventSystemStarted  EventType = "system.started"
)

// ProgressEvent is the wire shape published on the Event Bus and fanned out
// over WebSocket (spec §3.1, §6.2).
type ProgressEvent struct {
	EventType EventType      `json:"event_type"`
	TaskID    int64          `json:"task_id"`
	ProblemID string         `json:"problem_id"`
	Stage     Stage          `json:"stage"`
	Progress  int            `json:"progress"`
	Message   string         `json:"message,omitempty"`
	Logs      []string       `json:"logs,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// UserAdapterConfig holds one user's credentials for one adapter, with secret
// fields stored encrypted at rest (spec §3.1).
type UserAdapterConfig struct {
	ID             int64
	UserID         int64
	AdapterName    string
	EncryptedToken string // ciphertext, base64; see internal/secrets
	Username       string
	ExtraSettings  map[string]string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AuthCacheEntry is a live, in-memory authenticated session for one
// (user, adapter) pair, reused across concurrent tasks of that same pair
// only (spec §3.1, §4.6 User Context).
type AuthCacheEntry struct {
	Token       string
	HTTPSession any // adapter-specific session/cookie-jar handle
	CreatedAt   time.Time
}

// Expired reports whether this cache entry has outlived its TTL.
func (e AuthCacheEntry) Expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(e.CreatedAt) > ttl
}

// AuthCacheTTL is the default lifetime of a cached auth session (spec §3.1: 1hr).
const AuthCacheTTL = time.Hour

// ActivityLogEntry records an administrative or user action against a task,
// for audit purposes (SPEC_FULL §12, not in the original distilled schema).
type ActivityLogEntry struct {
	ID         int64
	UserID     int64
	Action     string // "create", "delete", "retry", "cancel"
	Target     string // canonical problem id or task id string
	DetailJSON string
	CreatedAt  time.Time
}
