package attend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/your-org/presence/internal/models"
)

func TestReconcileBatchValidation(t *testing.T) {
	rig := newTestRig(t, time.Minute)
	ctx := context.Background()

	_, err := rig.svc.Reconcile(ctx, nil)
	require.ErrorIs(t, err, ErrInvalidInput)

	rig.svc.maxBatch = 2
	items := []OfflineItem{{}, {}, {}}
	_, err = rig.svc.Reconcile(ctx, items)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestReconcilePartialSuccess(t *testing.T) {
	rig := newTestRig(t, time.Minute)
	ctx := context.Background()
	img := texturePNG(t, 10, false)

	_, err := rig.svc.Enroll(ctx, "alice-000000001", "Alice", img)
	require.NoError(t, err)

	summary, err := rig.svc.Reconcile(ctx, []OfflineItem{
		{Image: img, CapturedAt: "2026-03-13T10:00:00Z"},
		{Image: darkPNG(t), CapturedAt: "2026-03-13T10:05:00Z"},
		{Image: nil, CapturedAt: "2026-03-13T10:10:00Z"},
	})
	require.NoError(t, err)

	require.Equal(t, 3, summary.Total)
	require.Equal(t, 1, summary.Succeeded)
	require.Equal(t, 2, summary.Failed)
	require.Len(t, summary.Items, 3)

	require.True(t, summary.Items[0].OK)
	require.Equal(t, "alice-000000001", summary.Items[0].IdentityID)
	require.Equal(t, ReasonLowLight, summary.Items[1].Reason)
	require.Equal(t, ReasonInvalidInput, summary.Items[2].Reason)

	// One bad item never blocks the rest; the good row is committed.
	require.Len(t, rig.store.attendance, 1)
	rec := rig.store.attendance[0]
	require.Equal(t, models.MethodOffline, rec.Method)
	require.True(t, rec.IsOffline)
	require.Equal(t, "2026-03-13", rec.Date.Format("2006-01-02"))
}

func TestReconcileClientTimestampFallback(t *testing.T) {
	rig := newTestRig(t, time.Minute)
	ctx := context.Background()
	img := texturePNG(t, 10, false)

	_, err := rig.svc.Enroll(ctx, "alice-000000001", "Alice", img)
	require.NoError(t, err)

	summary, err := rig.svc.Reconcile(ctx, []OfflineItem{
		{Image: img, CapturedAt: "not-a-timestamp"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Succeeded)

	// Garbage client clock falls back to server time.
	rec := rig.store.attendance[0]
	require.Equal(t, rig.svc.now(), rec.CheckInAt)
}

func TestReconcileDuplicateWithinBatch(t *testing.T) {
	rig := newTestRig(t, time.Minute)
	ctx := context.Background()
	img := texturePNG(t, 10, false)

	_, err := rig.svc.Enroll(ctx, "alice-000000001", "Alice", img)
	require.NoError(t, err)

	summary, err := rig.svc.Reconcile(ctx, []OfflineItem{
		{Image: img, CapturedAt: "2026-03-13T10:00:00Z"},
		{Image: img, CapturedAt: "2026-03-13T11:00:00Z"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Succeeded)
	require.Equal(t, 1, summary.Failed)
	require.Equal(t, ReasonAlreadyMarked, summary.Items[1].Reason)
	require.Len(t, rig.store.attendance, 1)
}

func TestReconcileClaimedIdentityMismatch(t *testing.T) {
	rig := newTestRig(t, time.Minute)
	ctx := context.Background()
	img := texturePNG(t, 10, false)

	_, err := rig.svc.Enroll(ctx, "alice-000000001", "Alice", img)
	require.NoError(t, err)

	summary, err := rig.svc.Reconcile(ctx, []OfflineItem{
		{IdentityID: "bob-00000000002", Image: img, CapturedAt: "2026-03-13T10:00:00Z"},
	})
	require.NoError(t, err)

	// The face says alice; the claim says bob. Item fails, nothing written.
	require.Zero(t, summary.Succeeded)
	require.Equal(t, ReasonMismatch, summary.Items[0].Reason)
	require.Equal(t, "alice-000000001", summary.Items[0].IdentityID)
	require.Empty(t, rig.store.attendance)
}

func TestReconcileQueuesDigest(t *testing.T) {
	rig := newTestRig(t, time.Minute)
	ctx := context.Background()
	img := texturePNG(t, 10, false)

	_, err := rig.svc.Enroll(ctx, "alice-000000001", "Alice", img)
	require.NoError(t, err)

	_, err = rig.svc.Reconcile(ctx, []OfflineItem{
		{Image: img, CapturedAt: "2026-03-13T10:00:00Z"},
	})
	require.NoError(t, err)

	require.Len(t, rig.store.notifications, 1)
	n := rig.store.notifications[0]
	require.Equal(t, "admin@example.com", n.Recipient)
	require.Equal(t, models.NotificationPending, n.Status)
	require.Contains(t, n.Subject, "1 of 1")

	require.Len(t, rig.pub.tasks, 1)
	require.Equal(t, n.ID, rig.pub.tasks[0].NotificationID)
}

func TestReconcileNoDigestWhenAllFail(t *testing.T) {
	rig := newTestRig(t, time.Minute)

	summary, err := rig.svc.Reconcile(context.Background(), []OfflineItem{
		{Image: darkPNG(t)},
	})
	require.NoError(t, err)
	require.Zero(t, summary.Succeeded)
	require.Empty(t, rig.store.notifications)
	require.Empty(t, rig.pub.tasks)
}

func TestParseClientTime(t *testing.T) {
	rig := newTestRig(t, time.Minute)
	serverNow := rig.svc.now()

	tests := []struct {
		raw  string
		want time.Time
	}{
		{"2026-03-13T10:00:00Z", time.Date(2026, 3, 13, 10, 0, 0, 0, time.UTC)},
		{"2026-03-13 10:00:00", time.Date(2026, 3, 13, 10, 0, 0, 0, time.UTC)},
		{"2026-03-13T10:00:00", time.Date(2026, 3, 13, 10, 0, 0, 0, time.UTC)},
		{"", serverNow},
		{"   ", serverNow},
		{"garbage", serverNow},
		{"13/03/2026", serverNow},
	}

	for _, tt := range tests {
		got := rig.svc.parseClientTime(tt.raw)
		require.True(t, tt.want.Equal(got), "raw %q: want %v, got %v", tt.raw, tt.want, got)
	}
}
