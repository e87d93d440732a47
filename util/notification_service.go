// util/notification_service.go

package util

import (
	"context"

	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/bouncer/logging"
)

// NotificationService logs operator-relevant gateway events.
type NotificationService struct{}

func NewNotificationService(eventBus *EventBus) *NotificationService {
	n := &NotificationService{}
	eventBus.Subscribe(EventSyncFailed, n.NotifySyncFailure)
	eventBus.Subscribe(EventBundleUpdated, n.NotifyBundleUpdated)
	eventBus.Subscribe(EventDecisionsReset, n.NotifyDecisionsCleared)
	return n
}

func (n *NotificationService) NotifySyncFailure(ctx context.Context, event Event) error {
	logger.Warn("NOTIFICATION: Policy sync failed", zap.Any("error", event.Payload))
	return nil
}

func (n *NotificationService) NotifyBundleUpdated(ctx context.Context, event Event) error {
	logger.Info("NOTIFICATION: Policy bundle updated", zap.Any("change", event.Payload))
	return nil
}

func (n *NotificationService) NotifyDecisionsCleared(ctx context.Context, event Event) error {
	logger.Info("NOTIFICATION: Decision cache cleared", zap.Any("entries", event.Payload))
	return nil
}
