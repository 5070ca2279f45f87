package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/your-org/presence/internal/models"
	"github.com/your-org/presence/internal/observability"
)

// Store is the notification persistence the dispatcher needs.
type Store interface {
	GetNotification(ctx context.Context, id uuid.UUID) (*models.Notification, error)
	UpdateNotificationStatus(ctx context.Context, id uuid.UUID, status models.NotificationStatus, attempts int, lastError string) error
	ListFailedNotifications(ctx context.Context, limit int) ([]models.Notification, error)
}

// TaskPublisher requeues notification tasks.
type TaskPublisher interface {
	PublishNotificationTask(ctx context.Context, data interface{}) error
}

// Dispatcher delivers queued notifications and tracks their status rows.
// Delivery attempts are bounded: once a notification exhausts maxAttempts
// it stays failed until an operator retries it explicitly.
type Dispatcher struct {
	store       Store
	mailer      Mailer
	maxAttempts int
}

func NewDispatcher(store Store, mailer Mailer, maxAttempts int) *Dispatcher {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Dispatcher{
		store:       store,
		mailer:      mailer,
		maxAttempts: maxAttempts,
	}
}

// Dispatch delivers the task's notification. A nil return acks the task;
// an error naks it for redelivery. Tasks for missing, already-sent, or
// exhausted notifications ack silently so they cannot loop forever.
func (d *Dispatcher) Dispatch(ctx context.Context, task models.NotificationTask) error {
	n, err := d.store.GetNotification(ctx, task.NotificationID)
	if err != nil {
		return err
	}
	if n == nil {
		slog.Warn("notification task references missing row", "id", task.NotificationID)
		return nil
	}
	if n.Status == models.NotificationSent {
		return nil
	}
	if n.Attempts >= d.maxAttempts {
		if n.Status != models.NotificationFailed {
			_ = d.store.UpdateNotificationStatus(ctx, n.ID, models.NotificationFailed, n.Attempts, n.LastError)
		}
		return nil
	}

	attempts := n.Attempts + 1
	msgID, sendErr := d.mailer.Send(ctx, n.Recipient, n.Subject, n.Body)
	if sendErr != nil {
		status := models.NotificationPending
		if attempts >= d.maxAttempts {
			status = models.NotificationFailed
		}
		if err := d.store.UpdateNotificationStatus(ctx, n.ID, status, attempts, sendErr.Error()); err != nil {
			slog.Error("record delivery failure", "id", n.ID, "error", err)
		}
		observability.NotificationsDispatched.WithLabelValues("error").Inc()
		return fmt.Errorf("deliver notification %s (attempt %d/%d): %w", n.ID, attempts, d.maxAttempts, sendErr)
	}

	if err := d.store.UpdateNotificationStatus(ctx, n.ID, models.NotificationSent, attempts, ""); err != nil {
		// Delivered but not recorded. Ack anyway: a redelivery would send
		// a duplicate email, which is worse than a stale status row.
		slog.Error("record delivery success", "id", n.ID, "error", err)
	}

	observability.NotificationsDispatched.WithLabelValues("ok").Inc()
	slog.Info("notification delivered", "id", n.ID, "recipient", n.Recipient, "provider_id", msgID)
	return nil
}

// RetryFailed resets failed notifications to pending and requeues them.
// Returns the number requeued.
func (d *Dispatcher) RetryFailed(ctx context.Context, publisher TaskPublisher, limit int) (int, error) {
	failed, err := d.store.ListFailedNotifications(ctx, limit)
	if err != nil {
		return 0, err
	}

	requeued := 0
	for _, n := range failed {
		if err := d.store.UpdateNotificationStatus(ctx, n.ID, models.NotificationPending, 0, ""); err != nil {
			return requeued, err
		}
		if err := publisher.PublishNotificationTask(ctx, models.NotificationTask{NotificationID: n.ID}); err != nil {
			return requeued, fmt.Errorf("requeue notification %s: %w", n.ID, err)
		}
		requeued++
	}
	return requeued, nil
}
