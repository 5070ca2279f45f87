package attend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/your-org/presence/internal/models"
	"github.com/your-org/presence/internal/observability"
)

// OfflineItem is one capture a client queued while disconnected. IdentityID
// is the client's claim and is optional; when set, the recognized face must
// agree with it.
type OfflineItem struct {
	IdentityID string
	Name       string
	Image      []byte
	CapturedAt string // client clock, best effort
}

// ItemResult is the independent outcome of one reconciled item.
type ItemResult struct {
	Index      int     `json:"index"`
	OK         bool    `json:"ok"`
	IdentityID string  `json:"identity_id,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

// ReconcileSummary aggregates a batch's outcomes.
type ReconcileSummary struct {
	Total     int          `json:"total"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Items     []ItemResult `json:"items"`
}

// timestamp layouts accepted from offline clients, most specific first
var clientTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// Reconcile replays a batch of offline captures. Items are processed
// independently in order: one bad capture never fails its neighbors, and
// there is no batch transaction to roll back. Each success commits an
// attendance row with method=offline under the same per-day uniqueness as
// live check-ins.
func (s *Service) Reconcile(ctx context.Context, items []OfflineItem) (*ReconcileSummary, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("empty batch: %w", ErrInvalidInput)
	}
	if len(items) > s.maxBatch {
		return nil, fmt.Errorf("batch of %d exceeds limit %d: %w", len(items), s.maxBatch, ErrInvalidInput)
	}

	summary := &ReconcileSummary{
		Total: len(items),
		Items: make([]ItemResult, 0, len(items)),
	}

	for i, item := range items {
		result := s.reconcileItem(ctx, i, item)
		if result.OK {
			summary.Succeeded++
			observability.OfflineItems.WithLabelValues("ok").Inc()
		} else {
			summary.Failed++
			observability.OfflineItems.WithLabelValues(result.Reason).Inc()
		}
		summary.Items = append(summary.Items, result)
	}

	slog.Info("offline batch reconciled",
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
	)

	if summary.Succeeded > 0 {
		s.queueReconcileDigest(ctx, summary)
	}

	return summary, nil
}

func (s *Service) reconcileItem(ctx context.Context, index int, item OfflineItem) ItemResult {
	match, err := s.verifyFace(item.Image, models.MethodOffline)
	if err != nil {
		return ItemResult{Index: index, Reason: Reason(err)}
	}

	if item.IdentityID != "" && match.IdentityID != item.IdentityID {
		observability.Verifications.WithLabelValues(string(models.MethodOffline), ReasonMismatch).Inc()
		return ItemResult{
			Index:      index,
			IdentityID: match.IdentityID,
			Confidence: match.Confidence,
			Reason: Reason(&MismatchError{
				Expected:   item.IdentityID,
				Recognized: match.IdentityID,
				Confidence: match.Confidence,
			}),
		}
	}

	at := s.parseClientTime(item.CapturedAt)

	rec, err := s.commitAttendance(ctx, match.IdentityID, models.MethodOffline, match.Confidence, at, true)
	if err != nil {
		return ItemResult{
			Index:      index,
			IdentityID: match.IdentityID,
			Confidence: match.Confidence,
			Reason:     Reason(err),
		}
	}

	s.publishCheckin(ctx, rec)
	return ItemResult{
		Index:      index,
		OK:         true,
		IdentityID: match.IdentityID,
		Confidence: match.Confidence,
	}
}

// parseClientTime interprets the client-supplied capture time, falling back
// to the server clock when it is absent or unparsable. Offline clocks are
// untrusted; a garbage timestamp must not lose the check-in.
func (s *Service) parseClientTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.now()
	}
	for _, layout := range clientTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	slog.Warn("unparsable client timestamp, using server time", "raw", raw)
	return s.now()
}

// queueReconcileDigest records an admin digest for the batch and hands it
// to the dispatcher. Failures here never fail the reconcile itself.
func (s *Service) queueReconcileDigest(ctx context.Context, summary *ReconcileSummary) {
	if !s.notify || s.adminEmail == "" {
		return
	}

	subject := fmt.Sprintf("Offline reconciliation: %d of %d check-ins recovered", summary.Succeeded, summary.Total)
	var b strings.Builder
	fmt.Fprintf(&b, "Processed %d offline items: %d succeeded, %d failed.\n\n",
		summary.Total, summary.Succeeded, summary.Failed)
	for _, item := range summary.Items {
		if item.OK {
			fmt.Fprintf(&b, "  #%d %s (confidence %.1f)\n", item.Index, item.IdentityID, item.Confidence)
		} else {
			fmt.Fprintf(&b, "  #%d failed: %s\n", item.Index, item.Reason)
		}
	}

	notification, err := s.store.CreateNotification(ctx, s.adminEmail, subject, b.String())
	if err != nil {
		slog.Warn("queue reconcile digest failed", "error", err)
		return
	}

	if s.publisher != nil {
		task := models.NotificationTask{NotificationID: notification.ID}
		if err := s.publisher.PublishNotificationTask(ctx, task); err != nil {
			slog.Warn("publish notification task failed", "notification", notification.ID, "error", err)
		}
	}
}
