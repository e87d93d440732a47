// service/services.go
package service

import (
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dev-mohitbeniwal/bouncer/audit"
	"github.com/dev-mohitbeniwal/bouncer/config"
	"github.com/dev-mohitbeniwal/bouncer/enrichment"
	logger "github.com/dev-mohitbeniwal/bouncer/logging"
	"github.com/dev-mohitbeniwal/bouncer/model"
	"github.com/dev-mohitbeniwal/bouncer/pdp/cache"
	"github.com/dev-mohitbeniwal/bouncer/pdp/distribution"
	"github.com/dev-mohitbeniwal/bouncer/pdp/evaluator"
	"github.com/dev-mohitbeniwal/bouncer/util"
)

// Backends holds the optional clients used by the context source fetchers.
// Nil fields leave the matching source types unconfigured.
type Backends struct {
	HTTPClient    *http.Client
	Redis         *redis.Client
	Neo4j         neo4j.DriverWithContext
	Neo4jDatabase string
	Postgres      *pgxpool.Pool
	S3            s3iface.S3API
}

type Services struct {
	Bouncer     *BouncerService
	PolicyCache *cache.PolicyCache
	Syncer      *distribution.Syncer
}

func InitializeServices(
	cfg *config.Configuration,
	backends Backends,
	auditService audit.Service,
	eventBus *util.EventBus,
) (*Services, error) {
	decisions := cache.NewDecisionCache(
		cache.WithDecisionTTL(cfg.Decision.CacheTTL),
		cache.WithDecisionMaxSize(cfg.Decision.MaxSize),
	)
	policies := cache.NewPolicyCache(
		cache.WithPolicyMaxSize(cfg.PolicyCache.MaxSize),
		cache.WithPolicyTTL(cfg.PolicyCache.TTL),
		cache.WithSweepInterval(cfg.PolicyCache.SweepInterval),
	)
	syncer := distribution.NewSyncer(distribution.Config{
		URL:         cfg.Distribution.URL,
		Token:       cfg.Distribution.Token,
		ClientID:    cfg.Distribution.ClientID,
		BouncerID:   cfg.Distribution.BouncerID,
		Environment: cfg.Distribution.Environment,
		Timeout:     cfg.Distribution.Timeout,
	}, policies)
	client := evaluator.NewClient(evaluator.Config{
		URL:     cfg.Decision.URL,
		Package: cfg.Decision.Package,
		Timeout: cfg.Decision.Timeout,
	})

	deps := Dependencies{
		Decisions: decisions,
		Policies:  policies,
		Evaluator: client,
		Syncer:    syncer,
		Audit:     auditService,
		EventBus:  eventBus,
	}

	if cfg.Enrichment.Enabled && cfg.Enrichment.RulesFile != "" {
		enricher, err := NewEnricher(cfg.Enrichment, backends)
		if err != nil {
			return nil, err
		}
		deps.Enricher = enricher
	}

	return &Services{
		Bouncer: NewBouncerService(deps, Options{
			Bucket:    cfg.Decision.Bucket,
			Coalesce:  cfg.Decision.Coalesce,
			HealthTTL: cfg.Server.HealthTTL,
		}),
		PolicyCache: policies,
		Syncer:      syncer,
	}, nil
}

// NewEnricher loads the rules file and binds every source type to a fetcher
// over the configured backends.
func NewEnricher(cfg config.EnrichmentConfiguration, backends Backends) (*enrichment.Evaluator, error) {
	rules, err := enrichment.LoadPolicyFile(cfg.RulesFile)
	if err != nil {
		return nil, err
	}

	ecfg := enrichment.ConfigFromRules(rules)
	ecfg.EncryptionKey = cfg.EncryptionKey
	ecfg.SourceTimeout = cfg.SourceTimeout
	ecfg.Fetchers = NewFetchers(backends)

	e, err := enrichment.NewEvaluator(ecfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build context security evaluator: %w", err)
	}
	logger.Info("Context enrichment enabled",
		zap.String("rulesFile", cfg.RulesFile),
		zap.Int("policies", len(rules.Policies)),
		zap.Int("sources", len(rules.Sources)),
		zap.Int("ingestionRules", len(rules.IngestionRules)))
	return e, nil
}

func NewFetchers(backends Backends) enrichment.Fetchers {
	db := &enrichment.DatabaseFetcher{
		Postgres: backends.Postgres,
		Neo4j:    backends.Neo4j,
		Database: backends.Neo4jDatabase,
	}
	file := &enrichment.FileFetcher{}
	if backends.S3 != nil {
		file.S3 = backends.S3
	}
	stream := &enrichment.StreamFetcher{}
	if backends.Redis != nil {
		stream.Redis = backends.Redis
	}

	return enrichment.Fetchers{
		model.SourceAPI:      enrichment.NewAPIFetcher(backends.HTTPClient),
		model.SourceDatabase: db,
		model.SourceFile:     file,
		model.SourceStream:   stream,
	}
}
