package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-mohitbeniwal/bouncer/audit"
	"github.com/dev-mohitbeniwal/bouncer/config"
	"github.com/dev-mohitbeniwal/bouncer/enrichment"
	bouncer_errors "github.com/dev-mohitbeniwal/bouncer/errors"
	"github.com/dev-mohitbeniwal/bouncer/model"
	"github.com/dev-mohitbeniwal/bouncer/util"
)

func defaultConfig(t *testing.T) *config.Configuration {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	var cfg config.Configuration
	require.NoError(t, v.Unmarshal(&cfg))
	return &cfg
}

func TestInitializeServicesEndToEnd(t *testing.T) {
	decisionSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/data/bouncer/authz", r.URL.Path)
		w.Write([]byte(`{"result": {"allow": true, "reason": "owner"}}`))
	}))
	defer decisionSrv.Close()
	bundleSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "b-1", "version": "v1", "policies": [{"id": "p1", "name": "owners"}]}`))
	}))
	defer bundleSrv.Close()

	cfg := defaultConfig(t)
	cfg.Decision.URL = decisionSrv.URL
	cfg.Distribution.URL = bundleSrv.URL

	bus := util.NewEventBus()
	services, err := InitializeServices(cfg, Backends{}, audit.NewService(audit.LogRepository{}), bus)
	require.NoError(t, err)
	assert.Nil(t, services.Bouncer.enricher)

	ctx := context.Background()
	require.NoError(t, services.Bouncer.SyncPolicies(ctx))
	bus.Wait()
	policies := services.Bouncer.ListPolicies(ctx)
	require.Len(t, policies, 1)
	assert.Equal(t, "owners", policies[0].Name)

	res, err := services.Bouncer.Authorize(ctx, testRequest())
	require.NoError(t, err)
	assert.True(t, res.Decision.Allow)
	assert.Equal(t, "owner", res.Decision.Reason)

	res, err = services.Bouncer.Authorize(ctx, testRequest())
	require.NoError(t, err)
	assert.True(t, res.Cached)
}

func TestNewEnricherFromExampleRules(t *testing.T) {
	cfg := config.EnrichmentConfiguration{
		Enabled:   true,
		RulesFile: filepath.Join("..", "config", "rules.example.yaml"),
	}
	e, err := NewEnricher(cfg, Backends{})
	require.NoError(t, err)

	req := testRequest()
	req.Context = map[string]interface{}{"region": "kp"}
	_, err = e.Enrich(context.Background(), req)
	assert.ErrorIs(t, err, bouncer_errors.ErrPolicyDenied)
}

func TestNewEnricherRejectsBadKey(t *testing.T) {
	cfg := config.EnrichmentConfiguration{
		RulesFile:     filepath.Join("..", "config", "rules.example.yaml"),
		EncryptionKey: "too-short",
	}
	_, err := NewEnricher(cfg, Backends{})
	assert.Error(t, err)
}

func TestNewFetchersCoversEverySourceType(t *testing.T) {
	fetchers := NewFetchers(Backends{})
	for _, st := range []model.SourceType{model.SourceAPI, model.SourceDatabase, model.SourceFile, model.SourceStream} {
		assert.NotNil(t, fetchers[st], st)
	}
}

func TestNewFetchersPassesNeo4jDatabase(t *testing.T) {
	fetchers := NewFetchers(Backends{Neo4jDatabase: "graph"})

	db, ok := fetchers[model.SourceDatabase].(*enrichment.DatabaseFetcher)
	require.True(t, ok)
	assert.Equal(t, "graph", db.Database)
}
