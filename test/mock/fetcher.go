// test/mock/fetcher.go
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dev-mohitbeniwal/bouncer/model"
)

// MockSourceFetcher is a mock implementation of enrichment.SourceFetcher
type MockSourceFetcher struct {
	mock.Mock
}

func (m *MockSourceFetcher) Fetch(ctx context.Context, src model.ContextSourceConfig, req *model.AuthorizationRequest) (map[string]interface{}, error) {
	args := m.Called(ctx, src, req)
	data, _ := args.Get(0).(map[string]interface{})
	return data, args.Error(1)
}
