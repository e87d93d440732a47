package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dev-mohitbeniwal/bouncer/model"
	"github.com/dev-mohitbeniwal/bouncer/pdp/evaluator"
)

// MockEvaluator is a mock implementation of evaluator.Evaluator
type MockEvaluator struct {
	mock.Mock
}

func (m *MockEvaluator) Evaluate(ctx context.Context, req *model.AuthorizationRequest, evalCtx *evaluator.EvalContext) *model.Decision {
	args := m.Called(ctx, req, evalCtx)
	return args.Get(0).(*model.Decision)
}

// MockEnricher is a mock implementation of service.Enricher
type MockEnricher struct {
	mock.Mock
}

func (m *MockEnricher) Needed(req *model.AuthorizationRequest) bool {
	args := m.Called(req)
	return args.Bool(0)
}

func (m *MockEnricher) Enrich(ctx context.Context, req *model.AuthorizationRequest) (*model.EnrichedRequest, error) {
	args := m.Called(ctx, req)
	enriched, _ := args.Get(0).(*model.EnrichedRequest)
	return enriched, args.Error(1)
}

// MockSyncer is a mock implementation of service.PolicySyncer
type MockSyncer struct {
	mock.Mock
}

func (m *MockSyncer) Sync(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockSyncer) LastSync() (time.Time, string) {
	args := m.Called()
	return args.Get(0).(time.Time), args.String(1)
}
