package enrichment

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dev-mohitbeniwal/bouncer/model"
)

const defaultStreamCount = 10

// StreamFetcher reads the newest entries of a redis stream. Config keys:
// stream (templated) and count. The result is {"entries": [...]} newest
// first, with the newest entry's fields under "latest".
type StreamFetcher struct {
	Redis redis.Cmdable
}

func (f *StreamFetcher) Fetch(ctx context.Context, src model.ContextSourceConfig, req *model.AuthorizationRequest) (map[string]interface{}, error) {
	if f.Redis == nil {
		return nil, fmt.Errorf("source %s: redis client not configured", src.ID)
	}
	stream := expandTemplate(configString(src.Config, "stream"), req.Document(), nil)
	if stream == "" {
		return nil, fmt.Errorf("source %s: stream not configured", src.ID)
	}
	count := configInt(src.Config, "count", defaultStreamCount)
	if count <= 0 {
		count = defaultStreamCount
	}

	messages, err := f.Redis.XRevRangeN(ctx, stream, "+", "-", int64(count)).Result()
	if err != nil {
		return nil, fmt.Errorf("source %s: read stream: %w", src.ID, err)
	}

	entries := make([]interface{}, 0, len(messages))
	for _, m := range messages {
		entries = append(entries, map[string]interface{}{
			"id":     m.ID,
			"values": m.Values,
		})
	}
	doc := map[string]interface{}{"entries": entries}
	if len(messages) > 0 {
		doc["latest"] = messages[0].Values
	}
	return doc, nil
}
