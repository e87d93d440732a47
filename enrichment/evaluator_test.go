package enrichment

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	testifymock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	bouncer_errors "github.com/dev-mohitbeniwal/bouncer/errors"
	"github.com/dev-mohitbeniwal/bouncer/model"
	"github.com/dev-mohitbeniwal/bouncer/test/mock"
)

var testRolePermissions = map[string][]string{
	"analyst": {"context:enrich", "context:source:api", "context:source:file"},
	"admin":   {"*"},
	"viewer":  {"report:read"},
	"auditor": {"context:*", "hr:read"},
}

func testSources() []model.ContextSourceConfig {
	return []model.ContextSourceConfig{
		{ID: "hr", Type: model.SourceAPI, Enabled: true, Sensitive: true, Config: map[string]interface{}{"url": "http://hr/{user.id}"}},
		{ID: "payroll", Type: model.SourceAPI, Enabled: true, Permissions: []string{"hr:read"}},
		{ID: "catalog", Type: model.SourceFile, Enabled: true},
		{ID: "ledger", Type: model.SourceDatabase, Enabled: true},
		{ID: "legacy", Type: model.SourceAPI, Enabled: false},
	}
}

func request(userID string, roles []string, sources ...string) *model.AuthorizationRequest {
	return &model.AuthorizationRequest{
		User:     model.User{ID: userID, Roles: roles},
		Resource: model.Resource{ID: "doc-1", Type: "document"},
		Action:   model.Action{Name: "read"},
		Context:  map[string]interface{}{"ssn": "123456789", "pin": "1234", "region": "eu"},
		Sources:  sources,
	}
}

func sourceID(id string) interface{} {
	return testifymock.MatchedBy(func(src model.ContextSourceConfig) bool { return src.ID == id })
}

func newTestEvaluator(t *testing.T, cfg Config) *Evaluator {
	t.Helper()
	if cfg.RolePermissions == nil {
		cfg.RolePermissions = testRolePermissions
	}
	if cfg.Sources == nil {
		cfg.Sources = testSources()
	}
	e, err := NewEvaluator(cfg)
	require.NoError(t, err)
	return e
}

func TestEnrichWithoutSourcesOrPolicies(t *testing.T) {
	e := newTestEvaluator(t, Config{})
	req := request("bob", []string{"viewer"})

	assert.False(t, e.Needed(req))
	out, err := e.Enrich(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, model.LevelViewer, out.SecurityLevel)
	assert.Empty(t, out.Sources)
	assert.Equal(t, req.Context, out.Request.Context)
}

func TestEnrichRequiresBaselineCapability(t *testing.T) {
	e := newTestEvaluator(t, Config{})

	_, err := e.Enrich(context.Background(), request("bob", []string{"viewer"}, "hr"))

	var denied *PermissionDeniedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, "context:enrich", denied.Permission)
	assert.ErrorIs(t, err, bouncer_errors.ErrPermissionDenied)
}

func TestEnrichRequiresSourceTypeCapability(t *testing.T) {
	e := newTestEvaluator(t, Config{})

	_, err := e.Enrich(context.Background(), request("alice", []string{"analyst"}, "ledger"))

	var denied *PermissionDeniedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, "context:source:database", denied.Permission)
}

func TestEnrichSkipsUnauthorizedSourceAndKeepsOthers(t *testing.T) {
	fetcher := &mock.MockSourceFetcher{}
	fetcher.On("Fetch", testifymock.Anything, sourceID("hr"), testifymock.Anything).
		Return(map[string]interface{}{"department": "Finance"}, nil).Once()
	e := newTestEvaluator(t, Config{Fetchers: Fetchers{model.SourceAPI: fetcher}})

	out, err := e.Enrich(context.Background(), request("alice", []string{"analyst"}, "hr", "payroll"))

	require.NoError(t, err)
	assert.Contains(t, out.Sources, "hr")
	assert.NotContains(t, out.Sources, "payroll")
	assert.Equal(t, []string{"hr"}, out.SourceIDs())
	require.Len(t, out.Diagnostics, 1)
	assert.Contains(t, out.Diagnostics[0], "payroll")
	assert.Contains(t, out.Diagnostics[0], "hr:read")
	fetcher.AssertExpectations(t)
	fetcher.AssertNotCalled(t, "Fetch", testifymock.Anything, sourceID("payroll"), testifymock.Anything)
}

func TestEnrichFetchFailureIsSkipped(t *testing.T) {
	fetcher := &mock.MockSourceFetcher{}
	fetcher.On("Fetch", testifymock.Anything, sourceID("hr"), testifymock.Anything).
		Return(nil, errors.New("connection refused"))
	fetcher.On("Fetch", testifymock.Anything, sourceID("payroll"), testifymock.Anything).
		Return(map[string]interface{}{"band": "L5"}, nil)
	e := newTestEvaluator(t, Config{Fetchers: Fetchers{model.SourceAPI: fetcher}})

	out, err := e.Enrich(context.Background(), request("carol", []string{"auditor"}, "hr", "payroll", "legacy", "unknown"))

	require.NoError(t, err)
	assert.Equal(t, []string{"payroll"}, out.SourceIDs())
	joined := strings.Join(out.Diagnostics, "\n")
	assert.Contains(t, joined, "source hr skipped: connection refused")
	assert.Contains(t, joined, "source legacy skipped: disabled")
	assert.Contains(t, joined, "source unknown skipped")
}

func TestEnrichUnsupportedSourceTypeIsSkipped(t *testing.T) {
	e := newTestEvaluator(t, Config{})

	out, err := e.Enrich(context.Background(), request("alice", []string{"analyst"}, "catalog"))

	require.NoError(t, err)
	assert.Empty(t, out.Sources)
	require.Len(t, out.Diagnostics, 1)
	assert.Contains(t, out.Diagnostics[0], bouncer_errors.ErrUnsupportedSource.Error())
}

func TestSecurityPolicyRules(t *testing.T) {
	tests := []struct {
		name   string
		policy model.SecurityPolicy
		roles  []string
		denied bool
	}{
		{
			name: "deny rule with matching condition",
			policy: model.SecurityPolicy{ID: "geo", Enabled: true, Rules: []model.SecurityRule{
				{Type: model.RuleDeny, Condition: model.Condition{Field: "context.region", Operator: "equals", Value: "eu"}},
			}},
			roles:  []string{"viewer"},
			denied: true,
		},
		{
			name: "allow rule with failing condition",
			policy: model.SecurityPolicy{ID: "roles", Enabled: true, Rules: []model.SecurityRule{
				{Type: model.RuleAllow, Condition: model.Condition{Field: "user.roles", Operator: "contains", Value: "admin"}},
			}},
			roles:  []string{"viewer"},
			denied: true,
		},
		{
			name: "allow rule with holding condition",
			policy: model.SecurityPolicy{ID: "roles", Enabled: true, Rules: []model.SecurityRule{
				{Type: model.RuleAllow, Condition: model.Condition{Field: "user.roles", Operator: "contains", Value: "admin"}},
			}},
			roles: []string{"admin"},
		},
		{
			name: "disabled policy",
			policy: model.SecurityPolicy{ID: "off", Enabled: false, Rules: []model.SecurityRule{
				{Type: model.RuleDeny},
			}},
			roles: []string{"viewer"},
		},
		{
			name: "policy gated by permissions the caller lacks",
			policy: model.SecurityPolicy{ID: "gated", Enabled: true, Permissions: []string{"hr:read"}, Rules: []model.SecurityRule{
				{Type: model.RuleDeny},
			}},
			roles: []string{"viewer"},
		},
		{
			name: "rule gated by permissions the caller lacks",
			policy: model.SecurityPolicy{ID: "rule-gated", Enabled: true, Rules: []model.SecurityRule{
				{Type: model.RuleDeny, Permissions: []string{"hr:read"}},
			}},
			roles: []string{"viewer"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEvaluator(t, Config{Policies: []model.SecurityPolicy{tt.policy}})

			_, err := e.Enrich(context.Background(), request("bob", tt.roles))

			if tt.denied {
				var denied *PolicyDeniedError
				require.True(t, errors.As(err, &denied))
				assert.Equal(t, tt.policy.ID, denied.PolicyID)
				assert.ErrorIs(t, err, bouncer_errors.ErrPolicyDenied)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMatchingDenyRuleWinsInAnyOrder(t *testing.T) {
	matchingDeny := model.SecurityRule{Type: model.RuleDeny, Condition: model.Condition{Field: "context.region", Operator: "equals", Value: "eu"}}
	others := []model.SecurityRule{
		{Type: model.RuleDeny, Condition: model.Condition{Field: "context.region", Operator: "equals", Value: "us"}},
		{Type: model.RuleMask, Action: "region", Condition: model.Condition{Field: "user.roles", Operator: "contains", Value: "admin"}},
		{Type: model.RuleAllow, Condition: model.Condition{Field: "user.roles", Operator: "contains", Value: "viewer"}},
	}

	for pos := 0; pos <= len(others); pos++ {
		for _, order := range permutations(others) {
			rules := append(append(append([]model.SecurityRule{}, order[:pos]...), matchingDeny), order[pos:]...)
			e := newTestEvaluator(t, Config{Policies: []model.SecurityPolicy{{ID: "p", Enabled: true, Rules: rules}}})

			_, err := e.Enrich(context.Background(), request("bob", []string{"viewer"}))

			var denied *PolicyDeniedError
			require.True(t, errors.As(err, &denied), "rules %v", rules)
			assert.Equal(t, "p", denied.PolicyID)
			assert.Equal(t, model.RuleDeny, denied.RuleType)
			assert.Equal(t, pos, denied.Rule)
		}
	}
}

func permutations(rules []model.SecurityRule) [][]model.SecurityRule {
	if len(rules) <= 1 {
		return [][]model.SecurityRule{append([]model.SecurityRule{}, rules...)}
	}
	var out [][]model.SecurityRule
	for i := range rules {
		rest := append(append([]model.SecurityRule{}, rules[:i]...), rules[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]model.SecurityRule{rules[i]}, p...))
		}
	}
	return out
}

func TestMaskRule(t *testing.T) {
	e := newTestEvaluator(t, Config{Policies: []model.SecurityPolicy{{
		ID: "pii", Enabled: true, Rules: []model.SecurityRule{
			{Type: model.RuleMask, Action: "ssn"},
			{Type: model.RuleMask, Action: "pi*"},
		},
	}}})
	req := request("bob", []string{"viewer"})

	out, err := e.Enrich(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "12****89", out.Request.Context["ssn"])
	assert.Equal(t, "****", out.Request.Context["pin"])
	assert.Equal(t, "eu", out.Request.Context["region"])
	assert.Equal(t, "123456789", req.Context["ssn"], "caller's request is not mutated")
}

func TestEncryptRuleWithKeySealsValue(t *testing.T) {
	key := strings.Repeat("k", 32)
	e := newTestEvaluator(t, Config{
		EncryptionKey: key,
		Policies: []model.SecurityPolicy{{ID: "crypt", Enabled: true, Rules: []model.SecurityRule{
			{Type: model.RuleEncrypt, Action: "ssn"},
		}}},
	})

	out, err := e.Enrich(context.Background(), request("bob", []string{"viewer"}))
	require.NoError(t, err)

	sealed := out.Request.Context["ssn"].(string)
	assert.True(t, strings.HasPrefix(sealed, encryptedPrefix))
	assert.NotContains(t, sealed, "123456789")

	plaintext, err := e.sealer.open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "123456789", plaintext)
}

// Without a key the encrypt rule only marks the value; the plaintext is
// still readable.
func TestEncryptRuleWithoutKeyUsesPlaceholder(t *testing.T) {
	e := newTestEvaluator(t, Config{
		Policies: []model.SecurityPolicy{{ID: "crypt", Enabled: true, Rules: []model.SecurityRule{
			{Type: model.RuleEncrypt, Action: "ssn"},
		}}},
	})

	out, err := e.Enrich(context.Background(), request("bob", []string{"viewer"}))

	require.NoError(t, err)
	assert.Equal(t, "[ENCRYPTED]123456789", out.Request.Context["ssn"])
}

func TestNewEvaluatorRejectsShortKey(t *testing.T) {
	_, err := NewEvaluator(Config{EncryptionKey: "short"})
	assert.Error(t, err)
}

func TestIngestionRulesPriorityAndTransforms(t *testing.T) {
	fetcher := &mock.MockSourceFetcher{}
	fetcher.On("Fetch", testifymock.Anything, sourceID("hr"), testifymock.Anything).
		Return(map[string]interface{}{
			"department": "Finance",
			"manager":    map[string]interface{}{"email": "Boss@Example.com", "id": "m-1"},
		}, nil)
	e := newTestEvaluator(t, Config{
		Fetchers: Fetchers{model.SourceAPI: fetcher},
		IngestionRules: []model.IngestionRule{
			{ID: "low", Source: "hr.manager.id", Target: "owner", Priority: 1, Enabled: true},
			{ID: "high", Source: "hr.manager.email", Target: "owner", Transform: "lowercase", Priority: 10, Enabled: true},
			{ID: "dept", Source: "hr.department", Target: "department", Transform: "uppercase", Priority: 5, Enabled: true},
			{ID: "hash", Source: "hr.manager.id", Target: "manager_hash", Transform: "hash", Enabled: true},
			{ID: "off", Source: "hr.department", Target: "disabled", Enabled: false},
			{ID: "gated", Source: "hr.department", Target: "gated", Permissions: []string{"hr:read"}, Enabled: true},
			{ID: "cond", Source: "hr.department", Target: "eu_dept", Enabled: true,
				Conditions: []model.Condition{{Field: "sources.hr.department", Operator: "equals", Value: "Finance"}}},
			{ID: "missing", Source: "hr.nope", Target: "nope", Enabled: true},
			{ID: "absent", Source: "payroll.band", Target: "band", Enabled: true},
		},
	})

	out, err := e.Enrich(context.Background(), request("alice", []string{"analyst"}, "hr"))

	require.NoError(t, err)
	ctx := out.Request.Context
	assert.Equal(t, "boss@example.com", ctx["owner"])
	assert.Equal(t, "FINANCE", ctx["department"])
	assert.Len(t, ctx["manager_hash"], 64)
	assert.Equal(t, "Finance", ctx["eu_dept"])
	assert.NotContains(t, ctx, "disabled")
	assert.NotContains(t, ctx, "gated")
	assert.NotContains(t, ctx, "nope")
	assert.NotContains(t, ctx, "band")
	assert.Contains(t, strings.Join(out.Diagnostics, "\n"), "ingestion rule low skipped")
}

func TestSecurityLevelClassification(t *testing.T) {
	fetcher := &mock.MockSourceFetcher{}
	fetcher.On("Fetch", testifymock.Anything, testifymock.Anything, testifymock.Anything).
		Return(map[string]interface{}{"k": "v"}, nil)
	e := newTestEvaluator(t, Config{
		Fetchers: Fetchers{model.SourceAPI: fetcher},
		RolePermissions: map[string][]string{
			"viewer": {"context:enrich", "context:source:api"},
			"admin":  {"*"},
		},
	})

	tests := []struct {
		name    string
		roles   []string
		sources []string
		want    model.SecurityLevel
	}{
		{"no roles", nil, nil, model.LevelViewer},
		{"highest role wins", []string{"viewer", "developer", "analyst"}, nil, model.LevelDeveloper},
		{"sensitive source raises viewer", []string{"viewer"}, []string{"hr"}, model.LevelAnalyst},
		{"sensitive source keeps admin", []string{"admin"}, []string{"hr"}, model.LevelAdmin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := e.Enrich(context.Background(), request("u", tt.roles, tt.sources...))
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.SecurityLevel)
		})
	}
}
