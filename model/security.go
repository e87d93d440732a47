// model/security.go
package model

import "time"

type RuleType string

const (
	RuleAllow   RuleType = "allow"
	RuleDeny    RuleType = "deny"
	RuleMask    RuleType = "mask"
	RuleEncrypt RuleType = "encrypt"
)

// SecurityPolicy is an ordered list of rules applied before a decision
// request is issued. Policies are static configuration.
type SecurityPolicy struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Enabled     bool           `json:"enabled" yaml:"enabled"`
	Permissions []string       `json:"permissions,omitempty" yaml:"permissions,omitempty"`
	Rules       []SecurityRule `json:"rules" yaml:"rules"`
}

// SecurityRule is one step of a security policy. For mask and encrypt rules
// Action names the context fields the rule rewrites (exact key or a
// trailing-* pattern).
type SecurityRule struct {
	Type        RuleType  `json:"type" yaml:"type"`
	Condition   Condition `json:"condition,omitempty" yaml:"condition,omitempty"`
	Action      string    `json:"action,omitempty" yaml:"action,omitempty"`
	Permissions []string  `json:"permissions,omitempty" yaml:"permissions,omitempty"`
}

// Condition tests a dotted path into the {user, resource, action, context}
// document. The zero Condition always holds.
type Condition struct {
	Field    string      `json:"field,omitempty" yaml:"field,omitempty"`
	Operator string      `json:"operator,omitempty" yaml:"operator,omitempty"`
	Value    interface{} `json:"value,omitempty" yaml:"value,omitempty"`
	All      []Condition `json:"all,omitempty" yaml:"all,omitempty"`
	Any      []Condition `json:"any,omitempty" yaml:"any,omitempty"`
}

type SourceType string

const (
	SourceAPI      SourceType = "api"
	SourceDatabase SourceType = "database"
	SourceFile     SourceType = "file"
	SourceStream   SourceType = "stream"
)

// ContextSourceConfig describes a source whose data can be ingested into the
// request context.
type ContextSourceConfig struct {
	ID          string                 `json:"id" yaml:"id"`
	Name        string                 `json:"name" yaml:"name"`
	Type        SourceType             `json:"type" yaml:"type"`
	Enabled     bool                   `json:"enabled" yaml:"enabled"`
	Sensitive   bool                   `json:"sensitive" yaml:"sensitive"`
	Permissions []string               `json:"permissions,omitempty" yaml:"permissions,omitempty"`
	Config      map[string]interface{} `json:"config,omitempty" yaml:"config,omitempty"`
}

// ContextSource is the data fetched from one source for one request.
type ContextSource struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Type      SourceType             `json:"type"`
	Sensitive bool                   `json:"sensitive"`
	Data      map[string]interface{} `json:"data"`
	FetchedAt time.Time              `json:"fetched_at"`
}

// IngestionRule copies the value at Source ("<sourceID>.<field path>") into
// the enriched context under Target.
type IngestionRule struct {
	ID          string      `json:"id" yaml:"id"`
	Source      string      `json:"source" yaml:"source"`
	Target      string      `json:"target" yaml:"target"`
	Conditions  []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Transform   string      `json:"transform,omitempty" yaml:"transform,omitempty"`
	Permissions []string    `json:"permissions,omitempty" yaml:"permissions,omitempty"`
	Priority    int         `json:"priority" yaml:"priority"`
	Enabled     bool        `json:"enabled" yaml:"enabled"`
}

type SecurityLevel string

const (
	LevelViewer    SecurityLevel = "viewer"
	LevelAnalyst   SecurityLevel = "analyst"
	LevelDeveloper SecurityLevel = "developer"
	LevelAdmin     SecurityLevel = "admin"
)

// EnrichedRequest is the output of the context security evaluator.
type EnrichedRequest struct {
	Request       *AuthorizationRequest     `json:"request"`
	Sources       map[string]*ContextSource `json:"sources,omitempty"`
	SecurityLevel SecurityLevel             `json:"security_level"`
	Diagnostics   []string                  `json:"diagnostics,omitempty"`
}

// SourceIDs returns the ingested source IDs in the order they were requested.
func (e *EnrichedRequest) SourceIDs() []string {
	var ids []string
	for _, id := range e.Request.Sources {
		if _, ok := e.Sources[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}
