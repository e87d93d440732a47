package evaluator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-mohitbeniwal/bouncer/model"
)

func testRequest() *model.AuthorizationRequest {
	return &model.AuthorizationRequest{
		User:     model.User{ID: "alice", Roles: []string{"analyst"}},
		Resource: model.Resource{ID: "report-1", Type: "report"},
		Action:   model.Action{Name: "read"},
		Context:  map[string]interface{}{"ip": "10.0.0.1"},
	}
}

func decisionServer(t *testing.T, body string, captured *map[string]interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/data/bouncer/authz", r.URL.Path)
		if captured != nil {
			raw, _ := io.ReadAll(r.Body)
			var payload map[string]interface{}
			require.NoError(t, json.Unmarshal(raw, &payload))
			*captured = payload
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEvaluateResultShapes(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		allow      bool
		reason     string
		maskedData interface{}
		extra      map[string]interface{}
	}{
		{
			name:   "boolean true",
			body:   `{"result": true}`,
			allow:  true,
			reason: "allowed by policy",
		},
		{
			name:   "boolean false",
			body:   `{"result": false}`,
			allow:  false,
			reason: "denied by policy",
		},
		{
			name: "namespaced with sibling manipulated_data",
			body: `{"result": {
				"main": {"allow": true, "reason": "analyst may read"},
				"masking": {"manipulated_data": {"ssn": "***"}},
				"audit": {"level": "high"}
			}}`,
			allow:      true,
			reason:     "analyst may read",
			maskedData: map[string]interface{}{"ssn": "***"},
			extra: map[string]interface{}{
				"masking": map[string]interface{}{"manipulated_data": map[string]interface{}{"ssn": "***"}},
				"audit":   map[string]interface{}{"level": "high"},
			},
		},
		{
			name: "flat with masked_data",
			body: `{"result": {"allow": true, "reason": "flat ok", "masked_data": {"email": "a***@x"}, "ttl": 30}}`,
			allow:      true,
			reason:     "flat ok",
			maskedData: map[string]interface{}{"email": "a***@x"},
			extra:      map[string]interface{}{"ttl": float64(30)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := decisionServer(t, tt.body, nil)
			client := NewClient(Config{URL: srv.URL, Package: "bouncer.authz"})

			d := client.Evaluate(context.Background(), testRequest(), &EvalContext{})

			assert.Equal(t, tt.allow, d.Allow)
			assert.Equal(t, tt.reason, d.Reason)
			assert.Equal(t, tt.maskedData, d.MaskedData)
			assert.Equal(t, tt.extra, d.Extra)
			assert.True(t, d.Authoritative())
		})
	}
}

func TestEvaluateFirstManipulatedDataWins(t *testing.T) {
	srv := decisionServer(t, `{"result": {
		"main": {"allow": false},
		"zeta": {"manipulated_data": "z"},
		"alpha": {"manipulated_data": "a"}
	}}`, nil)
	client := NewClient(Config{URL: srv.URL, Package: "bouncer/authz"})

	d := client.Evaluate(context.Background(), testRequest(), nil)

	assert.False(t, d.Allow)
	assert.Equal(t, "a", d.MaskedData)
	assert.Equal(t, "denied by policy", d.Reason)
}

func TestEvaluateMainWithoutAllowFallsBackToFlat(t *testing.T) {
	srv := decisionServer(t, `{"result": {"main": {"note": "x"}, "allow": true}}`, nil)
	client := NewClient(Config{URL: srv.URL, Package: "bouncer/authz"})

	d := client.Evaluate(context.Background(), testRequest(), nil)

	assert.True(t, d.Allow)
	assert.Equal(t, map[string]interface{}{"main": map[string]interface{}{"note": "x"}}, d.Extra)
}

func TestEvaluateAbsentAndUnrecognizedResults(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		failure model.FailureKind
		reason  string
	}{
		{"missing result", `{}`, model.FailureNoResult, "decision service returned no result"},
		{"null result", `{"result": null}`, model.FailureNoResult, "decision service returned no result"},
		{"string result", `{"result": "yes"}`, model.FailureUnrecognizedResult, "decision service returned unrecognized result type string"},
		{"array result", `{"result": [true]}`, model.FailureUnrecognizedResult, "decision service returned unrecognized result type array"},
		{"not json", `<html>`, model.FailureUnrecognizedResult, "decision service returned unparseable response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := decisionServer(t, tt.body, nil)
			client := NewClient(Config{URL: srv.URL, Package: "bouncer/authz"})

			d := client.Evaluate(context.Background(), testRequest(), nil)

			assert.False(t, d.Allow)
			assert.Equal(t, tt.failure, d.Failure)
			assert.Equal(t, tt.reason, d.Reason)
			assert.False(t, d.Authoritative())
		})
	}
}

func TestEvaluateUpstreamErrorDefaultsToDeny(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	client := NewClient(Config{URL: srv.URL, Package: "bouncer/authz"})

	d := client.Evaluate(context.Background(), testRequest(), nil)

	assert.False(t, d.Allow)
	assert.Equal(t, model.FailureUpstreamUnavailable, d.Failure)
	assert.Contains(t, d.Reason, "decision evaluation failed")
}

func TestEvaluateUnreachableDefaultsToDeny(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	client := NewClient(Config{URL: url, Package: "bouncer/authz"})

	d := client.Evaluate(context.Background(), testRequest(), nil)

	assert.False(t, d.Allow)
	assert.Equal(t, model.FailureUpstreamUnavailable, d.Failure)
}

func TestEvaluateTimeoutDefaultsToDeny(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()
	client := NewClient(Config{URL: srv.URL, Package: "bouncer/authz", Timeout: 50 * time.Millisecond})

	start := time.Now()
	d := client.Evaluate(context.Background(), testRequest(), nil)

	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, d.Allow)
	assert.Equal(t, model.FailureUpstreamUnavailable, d.Failure)
}

func TestEvaluateShapesInput(t *testing.T) {
	var payload map[string]interface{}
	srv := decisionServer(t, `{"result": true}`, &payload)
	client := NewClient(Config{URL: srv.URL, Package: "bouncer/authz"})

	req := testRequest()
	req.Context["jsonData"] = `{"department": "finance", "tags": ["q3"]}`
	evalCtx := &EvalContext{SecurityLevel: model.LevelAnalyst, Sources: []string{"hr"}}

	client.Evaluate(context.Background(), req, evalCtx)

	input := payload["input"].(map[string]interface{})
	user := input["user"].(map[string]interface{})
	assert.Equal(t, "alice", user["id"])
	assert.Equal(t, []interface{}{"analyst"}, user["roles"])
	assert.Equal(t, "report-1", input["resource"].(map[string]interface{})["id"])
	assert.Equal(t, "read", input["action"].(map[string]interface{})["name"])

	ctxDoc := input["context"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"department": "finance", "tags": []interface{}{"q3"}}, ctxDoc["jsonData"])
	assert.Equal(t, "analyst", ctxDoc["security_level"])
	assert.Equal(t, []interface{}{"hr"}, ctxDoc["enriched_sources"])
	assert.Empty(t, evalCtx.Diagnostics())

	// The caller's request is not mutated.
	assert.IsType(t, "", req.Context["jsonData"])
}

func TestShapeInputKeepsUnparseableJSONData(t *testing.T) {
	req := testRequest()
	req.Context["jsonData"] = `{"broken":`
	evalCtx := &EvalContext{}

	input := ShapeInput(req, evalCtx)

	ctxDoc := input["context"].(map[string]interface{})
	assert.Equal(t, `{"broken":`, ctxDoc["jsonData"])
	require.Len(t, evalCtx.Diagnostics(), 1)
	assert.Contains(t, evalCtx.Diagnostics()[0], "jsonData")
}

func TestNewClientEndpoint(t *testing.T) {
	c := NewClient(Config{URL: "http://opa:8181/", Package: "/bouncer.authz/"})
	assert.Equal(t, "http://opa:8181/v1/data/bouncer/authz", c.Endpoint())
}
