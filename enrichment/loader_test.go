package enrichment

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bouncer_errors "github.com/dev-mohitbeniwal/bouncer/errors"
	"github.com/dev-mohitbeniwal/bouncer/model"
)

const rulesYAML = `
role_permissions:
  analyst: ["context:enrich", "context:source:*"]
policies:
  - id: pii
    name: Mask PII
    enabled: true
    rules:
      - type: deny
        condition:
          field: context.region
          operator: in
          value: [kp, ir]
      - type: mask
        action: ssn
sources:
  - id: hr
    name: HR directory
    type: api
    enabled: true
    sensitive: true
    config:
      url: http://hr.internal/users/{user.id}
      headers:
        X-Api-Key: secret
ingestion_rules:
  - id: dept
    source: hr.department
    target: department
    transform: lowercase
    priority: 10
    enabled: true
`

func TestLoadPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(rulesYAML), 0o600))

	rf, err := LoadPolicyFile(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"context:enrich", "context:source:*"}, rf.RolePermissions["analyst"])
	require.Len(t, rf.Policies, 1)
	assert.Equal(t, model.RuleDeny, rf.Policies[0].Rules[0].Type)
	assert.Equal(t, "in", rf.Policies[0].Rules[0].Condition.Operator)
	assert.Equal(t, "ssn", rf.Policies[0].Rules[1].Action)

	require.Len(t, rf.Sources, 1)
	assert.Equal(t, model.SourceAPI, rf.Sources[0].Type)
	assert.True(t, rf.Sources[0].Sensitive)
	assert.Equal(t, map[string]string{"X-Api-Key": "secret"}, configStringMap(rf.Sources[0].Config, "headers"))

	require.Len(t, rf.IngestionRules, 1)
	assert.Equal(t, 10, rf.IngestionRules[0].Priority)

	e, err := NewEvaluator(ConfigFromRules(rf))
	require.NoError(t, err)
	_, err = e.Enrich(context.Background(), &model.AuthorizationRequest{
		User:    model.User{ID: "u"},
		Context: map[string]interface{}{"region": "kp"},
	})
	assert.ErrorIs(t, err, bouncer_errors.ErrPolicyDenied)
}

func TestParsePolicyFileRejectsInvalidFiles(t *testing.T) {
	tests := map[string]string{
		"not yaml":            "policies: [",
		"source without id":   "sources:\n  - type: api\n",
		"unknown source type": "sources:\n  - id: s\n    type: ftp\n",
		"duplicate source":    "sources:\n  - id: s\n    type: api\n  - id: s\n    type: file\n",
		"unknown rule type":   "policies:\n  - id: p\n    rules:\n      - type: audit\n",
		"mask without field":  "policies:\n  - id: p\n    rules:\n      - type: mask\n",
		"unknown operator":    "policies:\n  - id: p\n    rules:\n      - type: deny\n        condition: {field: user.id, operator: regex}\n",
		"rule unknown source": "ingestion_rules:\n  - id: r\n    source: nope.x\n    target: t\n",
		"unknown transform":   "sources:\n  - id: s\n    type: api\ningestion_rules:\n  - id: r\n    source: s.x\n    target: t\n    transform: rot13\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePolicyFile([]byte(body))
			assert.ErrorIs(t, err, bouncer_errors.ErrInvalidRulesFile)
		})
	}
}

func TestLoadPolicyFileMissing(t *testing.T) {
	_, err := LoadPolicyFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, bouncer_errors.ErrInvalidRulesFile)
}

func TestExampleRulesFileIsValid(t *testing.T) {
	rf, err := LoadPolicyFile(filepath.Join("..", "config", "rules.example.yaml"))
	require.NoError(t, err)

	assert.Len(t, rf.Sources, 5)
	_, err = NewEvaluator(ConfigFromRules(rf))
	assert.NoError(t, err)
}
