// audit/model.go
package audit

import (
	"encoding/json"
	"time"
)

// AuditLog is one authorization decision as recorded for later review.
type AuditLog struct {
	Timestamp     time.Time       `json:"timestamp"`
	RequestID     string          `json:"request_id"`
	UserID        string          `json:"user_id"`
	Action        string          `json:"action"`
	ResourceID    string          `json:"resource_id"`
	ResourceType  string          `json:"resource_type,omitempty"`
	AccessGranted bool            `json:"access_granted"`
	Reason        string          `json:"reason"`
	Failure       string          `json:"failure,omitempty"`
	Cached        bool            `json:"cached"`
	SecurityLevel string          `json:"security_level,omitempty"`
	Sources       []string        `json:"sources,omitempty"`
	BundleVersion string          `json:"bundle_version,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`
}

// Query filters QueryLogs. Zero fields are not applied.
type Query struct {
	From       time.Time
	To         time.Time
	UserID     string
	ResourceID string
	Size       int
}
