package distribution

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bouncer_errors "github.com/dev-mohitbeniwal/bouncer/errors"
	"github.com/dev-mohitbeniwal/bouncer/pdp/cache"
)

const bundleJSON = `{
	"id": "bundle-7",
	"version": "v3",
	"policies": [
		{"id": "p2", "name": "reports", "content": "package reports", "language": "rego", "version": "3", "status": "active"},
		{"id": "p1", "name": "users", "content": "package users", "language": "rego", "version": "3", "status": "active"}
	],
	"data_sources": [
		{"id": "ds1", "name": "hr", "type": "api", "url": "http://hr.internal", "status": "active"}
	],
	"metadata": {"owner": "platform"},
	"created_at": "2024-07-01T10:00:00Z",
	"updated_at": "2024-07-02T10:00:00Z"
}`

func TestSyncPopulatesPolicyCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/bundles/edge-eu-1", r.URL.Path)
		assert.Equal(t, "Bearer s3cret", r.Header.Get("Authorization"))
		assert.Equal(t, "bouncer-client", r.Header.Get("X-Client-ID"))
		assert.Equal(t, "staging", r.Header.Get("environment"))
		io.WriteString(w, bundleJSON)
	}))
	defer srv.Close()

	pc := cache.NewPolicyCache()
	s := NewSyncer(Config{
		URL:         srv.URL,
		Token:       "s3cret",
		ClientID:    "bouncer-client",
		BouncerID:   "edge-eu-1",
		Environment: "staging",
	}, pc)

	require.NoError(t, s.Sync(context.Background()))

	policies := pc.ListPolicies()
	require.Len(t, policies, 2)
	assert.Equal(t, "p1", policies[0].ID)
	assert.Equal(t, "package reports", policies[1].Content)
	assert.Equal(t, "v3", pc.Bundle().Version)

	when, version := s.LastSync()
	assert.False(t, when.IsZero())
	assert.Equal(t, "v3", version)
}

func TestBundleURLWithoutIdentity(t *testing.T) {
	s := NewSyncer(Config{URL: "http://dist:8282/"}, cache.NewPolicyCache())
	assert.Equal(t, "http://dist:8282/api/v1/bundles", s.BundleURL())
}

func TestSyncTwiceWithUnchangedBundleIsStable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, bundleJSON)
	}))
	defer srv.Close()

	pc := cache.NewPolicyCache()
	s := NewSyncer(Config{URL: srv.URL}, pc)

	require.NoError(t, s.Sync(context.Background()))
	first := pc.ListPolicies()
	require.NoError(t, s.Sync(context.Background()))
	second := pc.ListPolicies()

	assert.Equal(t, first, second)
}

func TestSyncFailureLeavesCacheUntouched(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, bundleJSON)
	}))
	defer srv.Close()

	pc := cache.NewPolicyCache()
	s := NewSyncer(Config{URL: srv.URL}, pc)
	require.NoError(t, s.Sync(context.Background()))

	fail.Store(true)
	err := s.Sync(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, bouncer_errors.ErrSyncFailed))

	assert.Len(t, pc.ListPolicies(), 2)
	assert.Equal(t, "v3", pc.Bundle().Version)
}

func TestSyncRejectsUndecodableBundle(t *testing.T) {
	tests := map[string]string{
		"not json":          `{"id":`,
		"missing bundle id": `{"version": "v1", "policies": []}`,
		"policy without id": `{"id": "b", "policies": [{"name": "x"}]}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, body)
			}))
			defer srv.Close()

			pc := cache.NewPolicyCache()
			s := NewSyncer(Config{URL: srv.URL}, pc)

			err := s.Sync(context.Background())
			assert.ErrorIs(t, err, bouncer_errors.ErrSyncFailed)
			assert.Empty(t, pc.ListPolicies())
		})
	}
}

func TestSyncTimeoutIsReportedFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	s := NewSyncer(Config{URL: srv.URL, Timeout: 50 * time.Millisecond}, cache.NewPolicyCache())

	err := s.Sync(context.Background())
	assert.ErrorIs(t, err, bouncer_errors.ErrSyncFailed)
	assert.EqualValues(t, 1, calls.Load(), "sync does not retry")
}

func TestFetchDoesNotTouchStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, bundleJSON)
	}))
	defer srv.Close()

	pc := cache.NewPolicyCache()
	s := NewSyncer(Config{URL: srv.URL}, pc)

	bundle, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bundle-7", bundle.ID)
	assert.Len(t, bundle.DataSources, 1)
	assert.Empty(t, pc.ListPolicies())
}
