// model/decision.go
package model

import "time"

// FailureKind marks a default-deny decision that was not produced by the
// decision service itself. Such decisions are never cached.
type FailureKind string

const (
	FailureNone                FailureKind = ""
	FailureUpstreamUnavailable FailureKind = "upstream_unavailable"
	FailureNoResult            FailureKind = "no_result"
	FailureUnrecognizedResult  FailureKind = "unrecognized_result"
	FailureEnrichmentDenied    FailureKind = "enrichment_denied"
)

// Decision is immutable once constructed and is shared by pointer with the
// decision cache.
type Decision struct {
	Allow       bool                   `json:"allow"`
	Reason      string                 `json:"reason"`
	MaskedData  interface{}            `json:"masked_data,omitempty"`
	Extra       map[string]interface{} `json:"extra,omitempty"`
	Failure     FailureKind            `json:"failure,omitempty"`
	EvaluatedAt time.Time              `json:"evaluated_at"`
}

// Authoritative reports whether the decision came from a successful
// evaluation and may be cached.
func (d *Decision) Authoritative() bool {
	return d.Failure == FailureNone
}

// NewDenyDecision builds a default-deny decision carrying the failure kind.
func NewDenyDecision(reason string, failure FailureKind) *Decision {
	return &Decision{
		Allow:       false,
		Reason:      reason,
		Failure:     failure,
		EvaluatedAt: time.Now(),
	}
}

// AuthorizationResult is what the gateway returns for one request.
type AuthorizationResult struct {
	RequestID       string    `json:"request_id"`
	Decision        *Decision `json:"decision"`
	Cached          bool      `json:"cached"`
	SecurityLevel   string    `json:"security_level,omitempty"`
	EnrichedSources []string  `json:"enriched_sources,omitempty"`
	Diagnostics     []string  `json:"diagnostics,omitempty"`
}
