package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/bouncer/logging"
	"github.com/dev-mohitbeniwal/bouncer/model"
)

const maxSourceBodySize = 4 << 20

// APIFetcher GETs a JSON document. Config keys: url (templated with
// {user.id}-style placeholders) and headers.
type APIFetcher struct {
	Client *http.Client
}

func NewAPIFetcher(client *http.Client) *APIFetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &APIFetcher{Client: client}
}

func (f *APIFetcher) Fetch(ctx context.Context, src model.ContextSourceConfig, req *model.AuthorizationRequest) (map[string]interface{}, error) {
	raw := configString(src.Config, "url")
	if raw == "" {
		return nil, fmt.Errorf("source %s: url not configured", src.ID)
	}
	target := expandTemplate(raw, req.Document(), url.PathEscape)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", src.ID, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range configStringMap(src.Config, "headers") {
		httpReq.Header.Set(k, v)
	}

	resp, err := f.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", src.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Warn("Context source returned non-OK status",
			zap.String("sourceID", src.ID),
			zap.Int("statusCode", resp.StatusCode))
		return nil, fmt.Errorf("source %s: unexpected status %d", src.ID, resp.StatusCode)
	}

	var body interface{}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxSourceBodySize)).Decode(&body); err != nil {
		return nil, fmt.Errorf("source %s: decode response: %w", src.ID, err)
	}
	return asDocument(body), nil
}

// asDocument wraps non-object payloads so every source yields a map.
func asDocument(v interface{}) map[string]interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{"items": v}
}
