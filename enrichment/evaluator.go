// Package enrichment applies security policies to a request and ingests
// context from external sources before the decision is evaluated.
package enrichment

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	bouncer_errors "github.com/dev-mohitbeniwal/bouncer/errors"
	logger "github.com/dev-mohitbeniwal/bouncer/logging"
	"github.com/dev-mohitbeniwal/bouncer/model"
)

const defaultSourceTimeout = 2 * time.Second

// PermissionDeniedError is returned when the caller lacks a capability
// required by the sources it asked for.
type PermissionDeniedError struct {
	UserID     string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied: user %s lacks %s", e.UserID, e.Permission)
}

func (e *PermissionDeniedError) Unwrap() error { return bouncer_errors.ErrPermissionDenied }

// PolicyDeniedError is returned when an allow rule fails or a deny rule
// matches.
type PolicyDeniedError struct {
	PolicyID string
	Rule     int
	RuleType model.RuleType
}

func (e *PolicyDeniedError) Error() string {
	return fmt.Sprintf("denied by security policy %s (rule %d, %s)", e.PolicyID, e.Rule, e.RuleType)
}

func (e *PolicyDeniedError) Unwrap() error { return bouncer_errors.ErrPolicyDenied }

type Config struct {
	RolePermissions map[string][]string
	Policies        []model.SecurityPolicy
	Sources         []model.ContextSourceConfig
	IngestionRules  []model.IngestionRule
	Fetchers        Fetchers
	EncryptionKey   string
	SourceTimeout   time.Duration
}

// ConfigFromRules copies a loaded rules file into a Config.
func ConfigFromRules(rf *RulesFile) Config {
	return Config{
		RolePermissions: rf.RolePermissions,
		Policies:        rf.Policies,
		Sources:         rf.Sources,
		IngestionRules:  rf.IngestionRules,
	}
}

// Evaluator is safe for concurrent use; it holds only static configuration.
type Evaluator struct {
	rolePermissions map[string][]string
	policies        []model.SecurityPolicy
	sources         map[string]model.ContextSourceConfig
	rules           []model.IngestionRule
	fetchers        Fetchers
	sealer          *sealer
	sourceTimeout   time.Duration
	now             func() time.Time
}

func NewEvaluator(cfg Config) (*Evaluator, error) {
	s, err := newSealer(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}
	sources := make(map[string]model.ContextSourceConfig, len(cfg.Sources))
	for _, src := range cfg.Sources {
		sources[src.ID] = src
	}
	timeout := cfg.SourceTimeout
	if timeout <= 0 {
		timeout = defaultSourceTimeout
	}
	fetchers := cfg.Fetchers
	if fetchers == nil {
		fetchers = Fetchers{}
	}
	return &Evaluator{
		rolePermissions: cfg.RolePermissions,
		policies:        cfg.Policies,
		sources:         sources,
		rules:           sortRules(cfg.IngestionRules),
		fetchers:        fetchers,
		sealer:          s,
		sourceTimeout:   timeout,
		now:             time.Now,
	}, nil
}

// Needed reports whether Enrich would do anything for req.
func (e *Evaluator) Needed(req *model.AuthorizationRequest) bool {
	if len(req.Sources) > 0 {
		return true
	}
	for _, p := range e.policies {
		if p.Enabled {
			return true
		}
	}
	return false
}

// Enrich runs the permission check, security policies, source ingestion,
// ingestion rules and classification, in that order. Only the first two
// steps can fail; source problems are reported in Diagnostics.
func (e *Evaluator) Enrich(ctx context.Context, req *model.AuthorizationRequest) (*model.EnrichedRequest, error) {
	g := grantsFor(req.User, e.rolePermissions)
	out := req.Clone()
	enriched := &model.EnrichedRequest{
		Request: out,
		Sources: make(map[string]*model.ContextSource),
	}

	toFetch, err := e.checkPermissions(req, g, enriched)
	if err != nil {
		return nil, err
	}

	if err := e.applyPolicies(out, g); err != nil {
		return nil, err
	}

	e.ingestSources(ctx, req, toFetch, enriched)

	doc := out.Document()
	sourceDocs := make(map[string]interface{}, len(enriched.Sources))
	for id, src := range enriched.Sources {
		sourceDocs[id] = src.Data
	}
	doc["sources"] = sourceDocs
	enriched.Diagnostics = append(enriched.Diagnostics,
		applyIngestionRules(e.rules, g, doc, enriched.Sources, out.Context)...)

	enriched.SecurityLevel = classify(req.User, enriched.Sources)

	logger.Debug("Request enriched",
		zap.String("userID", req.User.ID),
		zap.Strings("sources", enriched.SourceIDs()),
		zap.String("securityLevel", string(enriched.SecurityLevel)),
		zap.Int("diagnostics", len(enriched.Diagnostics)))
	return enriched, nil
}

// checkPermissions enforces the baseline and per-type capabilities and
// returns the sources to fetch. Sources gated by their own permission list
// are skipped, not denied.
func (e *Evaluator) checkPermissions(req *model.AuthorizationRequest, g grants, enriched *model.EnrichedRequest) ([]model.ContextSourceConfig, error) {
	if len(req.Sources) == 0 {
		return nil, nil
	}
	if !g.has(permEnrich) {
		logger.Warn("Context enrichment denied", zap.String("userID", req.User.ID), zap.String("permission", permEnrich))
		return nil, &PermissionDeniedError{UserID: req.User.ID, Permission: permEnrich}
	}

	var toFetch []model.ContextSourceConfig
	seen := make(map[string]bool, len(req.Sources))
	for _, id := range req.Sources {
		if seen[id] {
			continue
		}
		seen[id] = true

		src, ok := e.sources[id]
		if !ok {
			enriched.Diagnostics = append(enriched.Diagnostics, fmt.Sprintf("source %s skipped: %v", id, bouncer_errors.ErrSourceNotFound))
			continue
		}
		if !src.Enabled {
			enriched.Diagnostics = append(enriched.Diagnostics, fmt.Sprintf("source %s skipped: disabled", id))
			continue
		}
		if perm := sourcePermission(src.Type); !g.has(perm) {
			logger.Warn("Context source type denied", zap.String("userID", req.User.ID), zap.String("permission", perm))
			return nil, &PermissionDeniedError{UserID: req.User.ID, Permission: perm}
		}
		if missing := g.missing(src.Permissions); missing != "" {
			enriched.Diagnostics = append(enriched.Diagnostics, fmt.Sprintf("source %s skipped: missing permission %s", id, missing))
			continue
		}
		toFetch = append(toFetch, src)
	}
	return toFetch, nil
}

func (e *Evaluator) applyPolicies(out *model.AuthorizationRequest, g grants) error {
	for _, p := range e.policies {
		if !p.Enabled || !g.hasAll(p.Permissions) {
			continue
		}
		for i, rule := range p.Rules {
			if !g.hasAll(rule.Permissions) {
				continue
			}
			holds := evaluateCondition(rule.Condition, out.Document())

			switch rule.Type {
			case model.RuleAllow:
				if !holds {
					return &PolicyDeniedError{PolicyID: p.ID, Rule: i, RuleType: rule.Type}
				}
			case model.RuleDeny:
				if holds {
					return &PolicyDeniedError{PolicyID: p.ID, Rule: i, RuleType: rule.Type}
				}
			case model.RuleMask:
				if holds {
					for k, v := range out.Context {
						if matchField(rule.Action, k) {
							out.Context[k] = maskValue(v)
						}
					}
				}
			case model.RuleEncrypt:
				if holds {
					for k, v := range out.Context {
						if !matchField(rule.Action, k) {
							continue
						}
						sealed, err := e.sealer.seal(v)
						if err != nil {
							return fmt.Errorf("%w: encrypt %s: %v", bouncer_errors.ErrInternalServer, k, err)
						}
						out.Context[k] = sealed
					}
				}
			}
		}
	}
	return nil
}

func (e *Evaluator) ingestSources(ctx context.Context, req *model.AuthorizationRequest, toFetch []model.ContextSourceConfig, enriched *model.EnrichedRequest) {
	if len(toFetch) == 0 {
		return
	}
	results := make([]*model.ContextSource, len(toFetch))
	failures := make([]error, len(toFetch))

	var eg errgroup.Group
	for i, src := range toFetch {
		eg.Go(func() error {
			fetcher, err := e.fetchers.fetcherFor(src.Type)
			if err != nil {
				failures[i] = err
				return nil
			}
			fctx, cancel := context.WithTimeout(ctx, e.sourceTimeout)
			defer cancel()

			data, err := fetcher.Fetch(fctx, src, req)
			if err != nil {
				failures[i] = err
				return nil
			}
			results[i] = &model.ContextSource{
				ID:        src.ID,
				Name:      src.Name,
				Type:      src.Type,
				Sensitive: src.Sensitive,
				Data:      data,
				FetchedAt: e.now(),
			}
			return nil
		})
	}
	_ = eg.Wait()

	for i, src := range toFetch {
		if failures[i] != nil {
			logger.Warn("Failed to ingest context source",
				zap.Error(failures[i]),
				zap.String("sourceID", src.ID),
				zap.String("type", string(src.Type)))
			enriched.Diagnostics = append(enriched.Diagnostics, fmt.Sprintf("source %s skipped: %v", src.ID, failures[i]))
			continue
		}
		enriched.Sources[src.ID] = results[i]
	}
}
