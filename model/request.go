// model/request.go
package model

import (
	"fmt"

	bouncer_errors "github.com/dev-mohitbeniwal/bouncer/errors"
)

// AuthorizationRequest is the inbound access request. It is owned by a single
// call and discarded once the decision is produced.
type AuthorizationRequest struct {
	User     User                   `json:"user" yaml:"user"`
	Resource Resource               `json:"resource" yaml:"resource"`
	Action   Action                 `json:"action" yaml:"action"`
	Context  map[string]interface{} `json:"context,omitempty" yaml:"context,omitempty"`
	Sources  []string               `json:"sources,omitempty" yaml:"sources,omitempty"`
}

type User struct {
	ID         string                 `json:"id" yaml:"id"`
	Roles      []string               `json:"roles,omitempty" yaml:"roles,omitempty"`
	Groups     []string               `json:"groups,omitempty" yaml:"groups,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

type Resource struct {
	ID         string                 `json:"id" yaml:"id"`
	Type       string                 `json:"type,omitempty" yaml:"type,omitempty"`
	Name       string                 `json:"name,omitempty" yaml:"name,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Owner      string                 `json:"owner,omitempty" yaml:"owner,omitempty"`
}

type Action struct {
	Name       string                 `json:"name" yaml:"name"`
	Type       string                 `json:"type,omitempty" yaml:"type,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// Validate checks the fields the cache key and the decision input rely on.
func (r *AuthorizationRequest) Validate() error {
	if r.User.ID == "" {
		return fmt.Errorf("%w: user id cannot be empty", bouncer_errors.ErrInvalidRequest)
	}
	if r.Resource.ID == "" {
		return fmt.Errorf("%w: resource id cannot be empty", bouncer_errors.ErrInvalidRequest)
	}
	if r.Action.Name == "" {
		return fmt.Errorf("%w: action name cannot be empty", bouncer_errors.ErrInvalidRequest)
	}
	return nil
}

// Clone returns a copy whose Context map can be mutated without touching r.
// Nested values are shared.
func (r *AuthorizationRequest) Clone() *AuthorizationRequest {
	out := *r
	out.Context = make(map[string]interface{}, len(r.Context))
	for k, v := range r.Context {
		out.Context[k] = v
	}
	out.Sources = append([]string(nil), r.Sources...)
	return &out
}

// Document returns the request as the nested {user, resource, action, context}
// document used for condition lookups and as decision input.
func (r *AuthorizationRequest) Document() map[string]interface{} {
	return map[string]interface{}{
		"user": map[string]interface{}{
			"id":         r.User.ID,
			"roles":      stringsToAny(r.User.Roles),
			"groups":     stringsToAny(r.User.Groups),
			"attributes": nonNil(r.User.Attributes),
		},
		"resource": map[string]interface{}{
			"id":         r.Resource.ID,
			"type":       r.Resource.Type,
			"name":       r.Resource.Name,
			"owner":      r.Resource.Owner,
			"attributes": nonNil(r.Resource.Attributes),
		},
		"action": map[string]interface{}{
			"name":       r.Action.Name,
			"type":       r.Action.Type,
			"attributes": nonNil(r.Action.Attributes),
		},
		"context": nonNil(r.Context),
	}
}

func stringsToAny(in []string) []interface{} {
	out := make([]interface{}, 0, len(in))
	for _, s := range in {
		out = append(out, s)
	}
	return out
}

func nonNil(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}
