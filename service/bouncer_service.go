package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/dev-mohitbeniwal/bouncer/audit"
	bouncer_errors "github.com/dev-mohitbeniwal/bouncer/errors"
	logger "github.com/dev-mohitbeniwal/bouncer/logging"
	"github.com/dev-mohitbeniwal/bouncer/model"
	"github.com/dev-mohitbeniwal/bouncer/pdp/cache"
	"github.com/dev-mohitbeniwal/bouncer/pdp/evaluator"
	"github.com/dev-mohitbeniwal/bouncer/util"
)

const (
	defaultBucket    = time.Minute
	defaultHealthTTL = 5 * time.Second
)

// IBouncerService is the gateway surface used by the controllers.
type IBouncerService interface {
	Authorize(ctx context.Context, req *model.AuthorizationRequest) (*model.AuthorizationResult, error)
	SyncPolicies(ctx context.Context) error
	Health(ctx context.Context) error
	ListPolicies(ctx context.Context) []model.Policy
	GetPolicy(ctx context.Context, id string) (*model.Policy, error)
	CacheStats(ctx context.Context) CacheStats
	ClearDecisions(ctx context.Context) int
	QueryAudit(ctx context.Context, q audit.Query) ([]audit.AuditLog, error)
}

// Enricher is implemented by enrichment.Evaluator.
type Enricher interface {
	Needed(req *model.AuthorizationRequest) bool
	Enrich(ctx context.Context, req *model.AuthorizationRequest) (*model.EnrichedRequest, error)
}

// PolicySyncer is implemented by distribution.Syncer.
type PolicySyncer interface {
	Sync(ctx context.Context) error
	LastSync() (time.Time, string)
}

type CacheStats struct {
	DecisionEntries int               `json:"decision_entries"`
	Policies        cache.PolicyStats `json:"policies"`
	LastSync        time.Time         `json:"last_sync"`
	BundleVersion   string            `json:"bundle_version"`
}

// BundleChange is the payload of util.EventBundleUpdated.
type BundleChange struct {
	OldVersion string
	NewVersion string
}

type Dependencies struct {
	Decisions *cache.DecisionCache
	Policies  *cache.PolicyCache
	Evaluator evaluator.Evaluator
	Enricher  Enricher
	Syncer    PolicySyncer
	Audit     audit.Service
	EventBus  *util.EventBus
}

type Options struct {
	// Bucket is the width of the time bucket in decision cache keys.
	Bucket    time.Duration
	Coalesce  bool
	// HealthTTL is how long a health check result is reused before the
	// next check syncs again.
	HealthTTL time.Duration
}

type BouncerService struct {
	decisions *cache.DecisionCache
	policies  *cache.PolicyCache
	evaluator evaluator.Evaluator
	enricher  Enricher
	syncer    PolicySyncer
	audit     audit.Service
	eventBus  *util.EventBus

	bucket   time.Duration
	coalesce bool
	group    singleflight.Group
	now      func() time.Time

	healthTTL   time.Duration
	healthGroup singleflight.Group
	healthMu    sync.Mutex
	healthAt    time.Time
	healthErr   error
}

var _ IBouncerService = (*BouncerService)(nil)

func NewBouncerService(deps Dependencies, opts Options) *BouncerService {
	if opts.Bucket <= 0 {
		opts.Bucket = defaultBucket
	}
	if opts.HealthTTL <= 0 {
		opts.HealthTTL = defaultHealthTTL
	}
	if deps.EventBus == nil {
		deps.EventBus = util.NewEventBus()
	}
	s := &BouncerService{
		decisions: deps.Decisions,
		policies:  deps.Policies,
		evaluator: deps.Evaluator,
		enricher:  deps.Enricher,
		syncer:    deps.Syncer,
		audit:     deps.Audit,
		eventBus:  deps.EventBus,
		bucket:    opts.Bucket,
		coalesce:  opts.Coalesce,
		now:       time.Now,
		healthTTL: opts.HealthTTL,
	}

	s.eventBus.Subscribe(util.EventBundleUpdated, s.handleBundleUpdated)
	return s
}

type requestIDKey struct{}

// WithRequestID attaches the inbound request ID to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// cacheKey is user:resource:action:<bucket start, unix seconds>.
func (s *BouncerService) cacheKey(req *model.AuthorizationRequest) string {
	return fmt.Sprintf("%s:%s:%s:%d", req.User.ID, req.Resource.ID, req.Action.Name, s.now().Truncate(s.bucket).Unix())
}

func (s *BouncerService) Authorize(ctx context.Context, req *model.AuthorizationRequest) (*model.AuthorizationResult, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request cannot be nil", bouncer_errors.ErrInvalidRequest)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	requestID := requestIDFrom(ctx)
	key := s.cacheKey(req)

	if d, ok := s.decisions.Get(key); ok {
		result := &model.AuthorizationResult{RequestID: requestID, Decision: d, Cached: true}
		s.record(ctx, req, result)
		return result, nil
	}

	var result *model.AuthorizationResult
	if s.coalesce {
		v, _, shared := s.group.Do(key, func() (interface{}, error) {
			// a flight that finished between the lookup above and Do has
			// already filled the cache
			if d, ok := s.decisions.Get(key); ok {
				return &model.AuthorizationResult{RequestID: requestID, Decision: d, Cached: true}, nil
			}
			return s.decide(ctx, req, requestID, key), nil
		})
		r := *v.(*model.AuthorizationResult)
		if shared {
			r.RequestID = requestID
		}
		result = &r
	} else {
		result = s.decide(ctx, req, requestID, key)
	}

	s.record(ctx, req, result)
	return result, nil
}

// decide enriches and evaluates a cache miss. Only authoritative decisions
// are written to the decision cache.
func (s *BouncerService) decide(ctx context.Context, req *model.AuthorizationRequest, requestID, key string) *model.AuthorizationResult {
	result := &model.AuthorizationResult{RequestID: requestID}
	evalCtx := &evaluator.EvalContext{RequestID: requestID}
	input := req

	if s.enricher != nil && s.enricher.Needed(req) {
		enriched, err := s.enricher.Enrich(ctx, req)
		if err != nil {
			logger.Warn("Context enrichment denied request",
				zap.Error(err),
				zap.String("requestID", requestID),
				zap.String("userID", req.User.ID))
			result.Decision = model.NewDenyDecision(enrichmentReason(err), model.FailureEnrichmentDenied)
			return result
		}
		input = enriched.Request
		evalCtx.SecurityLevel = enriched.SecurityLevel
		evalCtx.Sources = enriched.SourceIDs()
		result.SecurityLevel = string(enriched.SecurityLevel)
		result.EnrichedSources = evalCtx.Sources
		result.Diagnostics = append(result.Diagnostics, enriched.Diagnostics...)
	}

	d := s.evaluator.Evaluate(ctx, input, evalCtx)
	if d.Authoritative() {
		s.decisions.Set(key, d)
	}
	result.Decision = d
	result.Diagnostics = append(result.Diagnostics, evalCtx.Diagnostics()...)
	return result
}

func enrichmentReason(err error) string {
	switch {
	case errors.Is(err, bouncer_errors.ErrPermissionDenied):
		return fmt.Sprintf("context enrichment denied: %v", err)
	case errors.Is(err, bouncer_errors.ErrPolicyDenied):
		return err.Error()
	default:
		return fmt.Sprintf("context enrichment failed: %v", err)
	}
}

func (s *BouncerService) record(ctx context.Context, req *model.AuthorizationRequest, result *model.AuthorizationResult) {
	if s.audit == nil {
		return
	}
	entry := audit.AuditLog{
		Timestamp:     s.now().UTC(),
		RequestID:     result.RequestID,
		UserID:        req.User.ID,
		Action:        req.Action.Name,
		ResourceID:    req.Resource.ID,
		ResourceType:  req.Resource.Type,
		AccessGranted: result.Decision.Allow,
		Reason:        result.Decision.Reason,
		Failure:       string(result.Decision.Failure),
		Cached:        result.Cached,
		SecurityLevel: result.SecurityLevel,
		Sources:       result.EnrichedSources,
	}
	if s.policies != nil {
		entry.BundleVersion = s.policies.Bundle().Version
	}
	if err := s.audit.LogAccess(ctx, entry); err != nil {
		logger.Warn("Failed to record audit log", zap.Error(err), zap.String("requestID", result.RequestID))
	}
}

// SyncPolicies pulls the current bundle and announces a version change on
// the event bus.
func (s *BouncerService) SyncPolicies(ctx context.Context) error {
	_, previous := s.syncer.LastSync()

	if err := s.syncer.Sync(ctx); err != nil {
		logger.Error("Policy sync failed", zap.Error(err))
		s.eventBus.Publish(context.WithoutCancel(ctx), util.EventSyncFailed, err.Error())
		return err
	}

	_, current := s.syncer.LastSync()
	if current != previous {
		logger.Info("Policy bundle version changed",
			zap.String("oldVersion", previous),
			zap.String("newVersion", current))
		s.eventBus.Publish(context.WithoutCancel(ctx), util.EventBundleUpdated, BundleChange{OldVersion: previous, NewVersion: current})
	}
	return nil
}

func (s *BouncerService) handleBundleUpdated(ctx context.Context, event util.Event) error {
	change, ok := event.Payload.(BundleChange)
	if !ok {
		logger.Error("Invalid event payload type", zap.Any("payload", event.Payload))
		return fmt.Errorf("invalid event payload type: %T", event.Payload)
	}
	n := s.decisions.Size()
	s.decisions.Clear()
	logger.Info("Decision cache cleared after bundle update",
		zap.String("newVersion", change.NewVersion),
		zap.Int("entries", n))
	return nil
}

// StartSyncLoop syncs immediately and then every interval until ctx is done.
// Failures are logged and retried on the next tick only. The returned
// channel is closed when the loop exits.
func (s *BouncerService) StartSyncLoop(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.SyncPolicies(ctx)
		if interval <= 0 {
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.SyncPolicies(ctx)
			}
		}
	}()
	return done
}

// Health reports whether a sync with the distribution service succeeds. A
// failure leaves both caches as they are.
// Health attempts a sync. Concurrent callers share one attempt and the
// result is reused for healthTTL.
func (s *BouncerService) Health(ctx context.Context) error {
	if ok, err := s.recentHealth(); ok {
		return err
	}

	v, _, _ := s.healthGroup.Do("health", func() (interface{}, error) {
		if ok, err := s.recentHealth(); ok {
			return err, nil
		}
		var result error
		if err := s.SyncPolicies(ctx); err != nil {
			result = fmt.Errorf("health check failed: %w", err)
		}
		s.healthMu.Lock()
		s.healthAt, s.healthErr = s.now(), result
		s.healthMu.Unlock()
		return result, nil
	})
	err, _ := v.(error)
	return err
}

func (s *BouncerService) recentHealth() (bool, error) {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()
	if s.healthAt.IsZero() || s.now().Sub(s.healthAt) >= s.healthTTL {
		return false, nil
	}
	return true, s.healthErr
}

func (s *BouncerService) ListPolicies(ctx context.Context) []model.Policy {
	return s.policies.ListPolicies()
}

func (s *BouncerService) GetPolicy(ctx context.Context, id string) (*model.Policy, error) {
	p, ok := s.policies.GetPolicy(id)
	if !ok {
		return nil, bouncer_errors.ErrPolicyNotFound
	}
	return p, nil
}

func (s *BouncerService) CacheStats(ctx context.Context) CacheStats {
	last, version := s.syncer.LastSync()
	return CacheStats{
		DecisionEntries: s.decisions.Size(),
		Policies:        s.policies.Stats(),
		LastSync:        last,
		BundleVersion:   version,
	}
}

func (s *BouncerService) ClearDecisions(ctx context.Context) int {
	n := s.decisions.Size()
	s.decisions.Clear()
	s.eventBus.Publish(context.WithoutCancel(ctx), util.EventDecisionsReset, n)
	logger.Info("Decision cache cleared", zap.Int("entries", n), zap.String("requestingUserID", requestingUser(ctx)))
	return n
}

func (s *BouncerService) QueryAudit(ctx context.Context, q audit.Query) ([]audit.AuditLog, error) {
	if s.audit == nil {
		return nil, fmt.Errorf("audit log not configured")
	}
	return s.audit.QueryLogs(ctx, q)
}

type requestingUserKey struct{}

// WithRequestingUser attaches the authenticated admin to ctx for logging.
func WithRequestingUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, requestingUserKey{}, user)
}

func requestingUser(ctx context.Context) string {
	s, _ := ctx.Value(requestingUserKey{}).(string)
	return s
}
