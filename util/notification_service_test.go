package util

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	logger "github.com/dev-mohitbeniwal/bouncer/logging"
)

func TestNotificationServiceLogsEvents(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	prev := logger.Log
	logger.Log = zap.New(core)
	defer func() { logger.Log = prev }()

	bus := NewEventBus()
	NewNotificationService(bus)

	bus.Publish(context.Background(), EventSyncFailed, "connection refused")
	bus.Publish(context.Background(), EventDecisionsReset, 3)
	bus.Wait()

	assert.Equal(t, 1, logs.FilterMessage("NOTIFICATION: Policy sync failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("NOTIFICATION: Decision cache cleared").Len())
	assert.Equal(t, zapcore.WarnLevel, logs.FilterMessage("NOTIFICATION: Policy sync failed").All()[0].Level)
}
