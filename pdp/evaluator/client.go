// Package evaluator is the client of the external decision-evaluation
// service.
package evaluator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/bouncer/logging"
	"github.com/dev-mohitbeniwal/bouncer/model"
)

const (
	jsonDataKey         = "jsonData"
	securityLevelKey    = "security_level"
	enrichedSourcesKey  = "enriched_sources"
	defaultTimeout      = 2 * time.Second
	maxResponseBodySize = 4 << 20
)

// EvalContext carries per-request metadata into the evaluation and collects
// diagnostics produced while shaping the input.
type EvalContext struct {
	RequestID     string
	SecurityLevel model.SecurityLevel
	Sources       []string

	mu          sync.Mutex
	diagnostics []string
}

func (e *EvalContext) AddDiagnostic(msg string) {
	if e == nil {
		return
	}
	e.mu.Lock()
	e.diagnostics = append(e.diagnostics, msg)
	e.mu.Unlock()
}

func (e *EvalContext) Diagnostics() []string {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.diagnostics...)
}

// Evaluator produces a decision for a request. Implementations never fail:
// every error degrades to a deny decision.
type Evaluator interface {
	Evaluate(ctx context.Context, req *model.AuthorizationRequest, evalCtx *EvalContext) *model.Decision
}

type Config struct {
	URL        string
	Package    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client evaluates requests against an OPA-style data API:
// POST <url>/v1/data/<package> with {"input": ...}.
type Client struct {
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
	now        func() time.Time
}

var _ Evaluator = (*Client)(nil)

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	pkg := strings.ReplaceAll(strings.Trim(cfg.Package, "/"), ".", "/")
	return &Client{
		endpoint:   strings.TrimRight(cfg.URL, "/") + "/v1/data/" + pkg,
		timeout:    timeout,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// Endpoint returns the URL decisions are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) Evaluate(ctx context.Context, req *model.AuthorizationRequest, evalCtx *EvalContext) *model.Decision {
	start := time.Now()
	input := ShapeInput(req, evalCtx)

	body, err := json.Marshal(map[string]interface{}{"input": input})
	if err != nil {
		logger.Error("Failed to encode decision input", zap.Error(err), zap.String("userID", req.User.ID))
		return c.failure(fmt.Errorf("encode input: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return c.failure(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if evalCtx != nil && evalCtx.RequestID != "" {
		httpReq.Header.Set("X-Request-ID", evalCtx.RequestID)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		logger.Error("Decision service call failed",
			zap.Error(err),
			zap.String("endpoint", c.endpoint),
			zap.Duration("duration", time.Since(start)))
		return c.failure(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Error("Decision service returned non-success status",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("endpoint", c.endpoint))
		return c.failure(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return c.failure(fmt.Errorf("read response: %w", err))
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		logger.Warn("Decision response is not a JSON object", zap.Error(err))
		d := model.NewDenyDecision("decision service returned unparseable response", model.FailureUnrecognizedResult)
		d.EvaluatedAt = c.now()
		return d
	}

	decision := decodeResult(envelope.Result).toDecision(c.now())
	logger.Debug("Decision evaluated",
		zap.String("userID", req.User.ID),
		zap.String("resourceID", req.Resource.ID),
		zap.String("action", req.Action.Name),
		zap.Bool("allow", decision.Allow),
		zap.String("failure", string(decision.Failure)),
		zap.Duration("duration", time.Since(start)))
	return decision
}

func (c *Client) failure(err error) *model.Decision {
	d := model.NewDenyDecision(fmt.Sprintf("decision evaluation failed: %v", err), model.FailureUpstreamUnavailable)
	d.EvaluatedAt = c.now()
	return d
}

// ShapeInput builds the {user, resource, action, context} document sent as
// decision input. A JSON string under context.jsonData is expanded in place;
// if it does not parse, the raw string is kept and a diagnostic recorded.
func ShapeInput(req *model.AuthorizationRequest, evalCtx *EvalContext) map[string]interface{} {
	doc := req.Document()

	ctxDoc := make(map[string]interface{}, len(req.Context)+2)
	for k, v := range req.Context {
		ctxDoc[k] = v
	}

	if s, ok := ctxDoc[jsonDataKey].(string); ok {
		var parsed interface{}
		if err := json.Unmarshal([]byte(s), &parsed); err != nil {
			evalCtx.AddDiagnostic(fmt.Sprintf("context.jsonData is not valid JSON, sent as string: %v", err))
			logger.Warn("Failed to parse context jsonData", zap.Error(err), zap.String("userID", req.User.ID))
		} else {
			ctxDoc[jsonDataKey] = parsed
		}
	}

	if evalCtx != nil {
		if evalCtx.SecurityLevel != "" {
			ctxDoc[securityLevelKey] = string(evalCtx.SecurityLevel)
		}
		if len(evalCtx.Sources) > 0 {
			ctxDoc[enrichedSourcesKey] = append([]string(nil), evalCtx.Sources...)
		}
	}

	doc["context"] = ctxDoc
	return doc
}
