// Package distribution pulls policy bundles from the policy-distribution
// service into the policy cache.
package distribution

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	bouncer_errors "github.com/dev-mohitbeniwal/bouncer/errors"
	logger "github.com/dev-mohitbeniwal/bouncer/logging"
	"github.com/dev-mohitbeniwal/bouncer/model"
)

const (
	bundlePath        = "/api/v1/bundles"
	clientIDHeader    = "X-Client-ID"
	environmentHeader = "environment"
	defaultTimeout    = 10 * time.Second
	maxBundleSize     = 32 << 20
)

// PolicyStore receives successfully fetched bundles.
type PolicyStore interface {
	UpdatePolicies(bundle *model.PolicyBundle)
}

type Config struct {
	URL         string
	Token       string
	ClientID    string
	BouncerID   string
	Environment string
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// Syncer fetches one bundle per Sync call. It does not retry; scheduling and
// backoff belong to the caller.
type Syncer struct {
	cfg        Config
	store      PolicyStore
	httpClient *http.Client
	now        func() time.Time

	mu          sync.RWMutex
	lastSync    time.Time
	lastVersion string
}

func NewSyncer(cfg Config, store PolicyStore) *Syncer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Syncer{
		cfg:        cfg,
		store:      store,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// BundleURL is the bundle endpoint, scoped to the bouncer identity when one
// is configured.
func (s *Syncer) BundleURL() string {
	u := strings.TrimRight(s.cfg.URL, "/") + bundlePath
	if s.cfg.BouncerID != "" {
		u += "/" + url.PathEscape(s.cfg.BouncerID)
	}
	return u
}

// Sync fetches the current bundle and writes it to the policy store. On any
// failure the store is left untouched.
func (s *Syncer) Sync(ctx context.Context) error {
	bundle, err := s.Fetch(ctx)
	if err != nil {
		return err
	}

	s.store.UpdatePolicies(bundle)

	s.mu.Lock()
	s.lastSync = s.now()
	s.lastVersion = bundle.Version
	s.mu.Unlock()
	return nil
}

// Fetch retrieves and validates a bundle without touching the store.
func (s *Syncer) Fetch(ctx context.Context) (*model.PolicyBundle, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BundleURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", bouncer_errors.ErrSyncFailed, err)
	}
	req.Header.Set("Accept", "application/json")
	if s.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	}
	if s.cfg.ClientID != "" {
		req.Header.Set(clientIDHeader, s.cfg.ClientID)
	}
	if s.cfg.Environment != "" {
		req.Header.Set(environmentHeader, s.cfg.Environment)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		logger.Error("Failed to fetch policy bundle",
			zap.Error(err),
			zap.String("url", s.BundleURL()),
			zap.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("%w: %v", bouncer_errors.ErrSyncFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Error("Received non-OK HTTP status from distribution service",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("url", s.BundleURL()))
		return nil, fmt.Errorf("%w: unexpected status %d", bouncer_errors.ErrSyncFailed, resp.StatusCode)
	}

	var bundle model.PolicyBundle
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBundleSize)).Decode(&bundle); err != nil {
		logger.Error("Failed to decode policy bundle", zap.Error(err))
		return nil, fmt.Errorf("%w: decode bundle: %v", bouncer_errors.ErrSyncFailed, err)
	}
	if err := validateBundle(&bundle); err != nil {
		return nil, fmt.Errorf("%w: %v", bouncer_errors.ErrSyncFailed, err)
	}

	logger.Info("Fetched policy bundle",
		zap.String("bundleID", bundle.ID),
		zap.String("version", bundle.Version),
		zap.Int("policies", len(bundle.Policies)),
		zap.Duration("duration", time.Since(start)))
	return &bundle, nil
}

// LastSync returns the time and bundle version of the last successful sync.
func (s *Syncer) LastSync() (time.Time, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSync, s.lastVersion
}

func validateBundle(b *model.PolicyBundle) error {
	if b.ID == "" {
		return fmt.Errorf("%w: bundle id cannot be empty", bouncer_errors.ErrInvalidBundle)
	}
	for i, p := range b.Policies {
		if p.ID == "" {
			return fmt.Errorf("%w: policy at index %d has no id", bouncer_errors.ErrInvalidBundle, i)
		}
	}
	for i, ds := range b.DataSources {
		if ds.ID == "" {
			return fmt.Errorf("%w: data source at index %d has no id", bouncer_errors.ErrInvalidBundle, i)
		}
	}
	return nil
}
