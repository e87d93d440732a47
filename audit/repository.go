// audit/repository.go
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/bouncer/logging"
)

const (
	DefaultIndex     = "bouncer-decisions"
	defaultQuerySize = 100
)

type Repository interface {
	LogAccess(ctx context.Context, log AuditLog) error
	QueryLogs(ctx context.Context, q Query) ([]AuditLog, error)
}

type ElasticsearchRepository struct {
	esClient *elasticsearch.Client
	index    string
}

// NewElasticsearchRepository creates a repository writing to index at esURL.
// A nil transport uses the client default.
func NewElasticsearchRepository(esURL, index string, transport http.RoundTripper) (*ElasticsearchRepository, error) {
	if index == "" {
		index = DefaultIndex
	}
	cfg := elasticsearch.Config{
		Addresses: []string{esURL},
		Transport: transport,
	}
	esClient, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &ElasticsearchRepository{esClient: esClient, index: index}, nil
}

// LogAccess indexes one decision. The request ID is the document ID so a
// retried write does not duplicate the record.
func (r *ElasticsearchRepository) LogAccess(ctx context.Context, log AuditLog) error {
	data, err := json.Marshal(log)
	if err != nil {
		return err
	}

	docID := log.RequestID
	if docID == "" {
		docID = fmt.Sprintf("%d-%s", log.Timestamp.UnixNano(), log.UserID)
	}
	req := esapi.IndexRequest{
		Index:      r.index,
		DocumentID: docID,
		Body:       bytes.NewReader(data),
	}

	res, err := req.Do(ctx, r.esClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing document: %s", res.String())
	}
	return nil
}

// QueryLogs returns decisions in the time window, newest first, optionally
// filtered by user and resource.
func (r *ElasticsearchRepository) QueryLogs(ctx context.Context, q Query) ([]AuditLog, error) {
	must := []interface{}{}
	if !q.From.IsZero() || !q.To.IsZero() {
		window := map[string]interface{}{}
		if !q.From.IsZero() {
			window["gte"] = q.From.Format(time.RFC3339)
		}
		if !q.To.IsZero() {
			window["lte"] = q.To.Format(time.RFC3339)
		}
		must = append(must, map[string]interface{}{"range": map[string]interface{}{"timestamp": window}})
	}
	if q.UserID != "" {
		must = append(must, map[string]interface{}{"match": map[string]interface{}{"user_id": q.UserID}})
	}
	if q.ResourceID != "" {
		must = append(must, map[string]interface{}{"match": map[string]interface{}{"resource_id": q.ResourceID}})
	}

	var buf bytes.Buffer
	query := map[string]interface{}{
		"query": map[string]interface{}{"bool": map[string]interface{}{"must": must}},
		"sort":  []interface{}{map[string]interface{}{"timestamp": map[string]interface{}{"order": "desc"}}},
	}
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, err
	}

	size := q.Size
	if size <= 0 {
		size = defaultQuerySize
	}
	res, err := r.esClient.Search(
		r.esClient.Search.WithContext(ctx),
		r.esClient.Search.WithIndex(r.index),
		r.esClient.Search.WithBody(&buf),
		r.esClient.Search.WithSize(size),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("error searching documents: %s", res.String())
	}

	var body struct {
		Hits struct {
			Hits []struct {
				Source AuditLog `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, err
	}

	logs := make([]AuditLog, 0, len(body.Hits.Hits))
	for _, hit := range body.Hits.Hits {
		logs = append(logs, hit.Source)
	}
	return logs, nil
}

// LogRepository writes decisions to the application log only. It is used
// when no Elasticsearch cluster is configured.
type LogRepository struct{}

func (LogRepository) LogAccess(_ context.Context, log AuditLog) error {
	logger.Info("Authorization decision",
		zap.String("requestID", log.RequestID),
		zap.String("userID", log.UserID),
		zap.String("resourceID", log.ResourceID),
		zap.String("action", log.Action),
		zap.Bool("accessGranted", log.AccessGranted),
		zap.Bool("cached", log.Cached),
		zap.String("reason", log.Reason))
	return nil
}

func (LogRepository) QueryLogs(context.Context, Query) ([]AuditLog, error) {
	return nil, fmt.Errorf("audit query requires an elasticsearch repository")
}
