// model/bundle.go
package model

import "time"

// PolicyBundle is a versioned set of policies and data-source descriptors
// pulled from the distribution service.
type PolicyBundle struct {
	ID          string                 `json:"id"`
	Version     string                 `json:"version"`
	Policies    []Policy               `json:"policies"`
	DataSources []DataSource           `json:"data_sources"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

type Policy struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Content  string `json:"content"`
	Language string `json:"language"`
	Version  string `json:"version"`
	Status   string `json:"status"`
}

type DataSource struct {
	ID     string                 `json:"id"`
	Name   string                 `json:"name"`
	Type   string                 `json:"type"`
	URL    string                 `json:"url"`
	Config map[string]interface{} `json:"config,omitempty"`
	Status string                 `json:"status"`
}

// BundleInfo summarizes the bundle currently held by the policy cache.
type BundleInfo struct {
	ID          string    `json:"id"`
	Version     string    `json:"version"`
	PolicyCount int       `json:"policy_count"`
	SourceCount int       `json:"source_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}
