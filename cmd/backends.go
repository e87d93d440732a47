package cmd

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/dev-mohitbeniwal/bouncer/audit"
	"github.com/dev-mohitbeniwal/bouncer/config"
	"github.com/dev-mohitbeniwal/bouncer/db"
	logger "github.com/dev-mohitbeniwal/bouncer/logging"
	"github.com/dev-mohitbeniwal/bouncer/service"
)

// openBackends connects every backend that has an address configured. The
// returned func closes whatever was opened.
func openBackends(cfg *config.Configuration) (service.Backends, func(), error) {
	backends := service.Backends{HTTPClient: http.DefaultClient}
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Redis.Addr != "" {
		client, err := db.NewRedisClient(cfg.Redis)
		if err != nil {
			closeAll()
			return backends, nil, err
		}
		backends.Redis = client
		closers = append(closers, func() { db.CloseRedis(client) })
	}

	if cfg.Neo4j.URI != "" {
		driver, err := db.NewNeo4jDriver(cfg.Neo4j)
		if err != nil {
			closeAll()
			return backends, nil, err
		}
		backends.Neo4j = driver
		backends.Neo4jDatabase = cfg.Neo4j.Database
		closers = append(closers, func() { db.CloseNeo4j(driver) })
	}

	if cfg.Postgres.DSN != "" {
		pool, err := db.NewPostgresPool(cfg.Postgres)
		if err != nil {
			closeAll()
			return backends, nil, err
		}
		backends.Postgres = pool
		closers = append(closers, pool.Close)
	}

	if cfg.AWS.Region != "" {
		client, err := db.NewS3Client(cfg.AWS)
		if err != nil {
			logger.Warn("S3 file sources disabled", zap.Error(err))
		} else {
			backends.S3 = client
		}
	}

	return backends, closeAll, nil
}

func newAuditService(cfg config.ElasticsearchConfiguration) (audit.Service, error) {
	if cfg.URL == "" {
		logger.Info("Elasticsearch not configured, audit records go to the application log")
		return audit.NewService(audit.LogRepository{}), nil
	}
	repo, err := audit.NewElasticsearchRepository(cfg.URL, cfg.Index, nil)
	if err != nil {
		return nil, err
	}
	return audit.NewService(repo), nil
}
