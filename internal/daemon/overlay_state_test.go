package daemon

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/stickerlay/internal/display"
	"github.com/jmylchreest/stickerlay/internal/model"
)

func TestOverlayStatus_String(t *testing.T) {
	tests := []struct {
		status OverlayStatus
		want   string
	}{
		{OverlayStatusPending, "pending"},
		{OverlayStatusActive, "active"},
		{OverlayStatusFailed, "failed"},
		{OverlayStatusRemoved, "removed"},
		{OverlayStatus(42), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.String())
	}
}

func TestOverlayStateTracker_Apply(t *testing.T) {
	tracker := NewOverlayStateTracker()

	tracker.Apply(display.ReconcileResult{
		Created: []model.DisplayID{"A"},
		Failed:  map[model.DisplayID]error{"B": errors.New("boom")},
	}, []model.DisplayID{"A"})

	a, ok := tracker.Get("A")
	require.True(t, ok)
	assert.Equal(t, OverlayStatusActive, a.Status)

	b, ok := tracker.Get("B")
	require.True(t, ok)
	assert.Equal(t, OverlayStatusFailed, b.Status)
	assert.Equal(t, "boom", b.Reason)
	assert.Equal(t, 1, b.Attempts)

	tracker.Apply(display.ReconcileResult{
		Failed: map[model.DisplayID]error{"B": errors.New("boom")},
	}, []model.DisplayID{"A"})
	b, _ = tracker.Get("B")
	assert.Equal(t, 2, b.Attempts)

	tracker.Apply(display.ReconcileResult{
		Created: []model.DisplayID{"B"},
		Removed: []model.DisplayID{"A"},
	}, []model.DisplayID{"B"})

	a, _ = tracker.Get("A")
	assert.Equal(t, OverlayStatusRemoved, a.Status)
	b, _ = tracker.Get("B")
	assert.Equal(t, OverlayStatusActive, b.Status)
	assert.Empty(t, b.Reason)
	assert.Zero(t, b.Attempts)

	assert.Equal(t, 2, tracker.Count())
	assert.Equal(t, 1, tracker.CountStatus(OverlayStatusActive))
}

func TestOverlayStateTracker_RecreatedWindowStaysActive(t *testing.T) {
	tracker := NewOverlayStateTracker()

	// A window closed externally is removed and recreated in one pass.
	tracker.Apply(display.ReconcileResult{
		Created: []model.DisplayID{"A"},
		Removed: []model.DisplayID{"A"},
	}, []model.DisplayID{"A"})

	a, ok := tracker.Get("A")
	require.True(t, ok)
	assert.Equal(t, OverlayStatusActive, a.Status)
}

func TestOverlayStateTracker_AllSortedAndMarkRemoved(t *testing.T) {
	tracker := NewOverlayStateTracker()
	tracker.Apply(display.ReconcileResult{}, []model.DisplayID{"DP-2", "DP-1", "HDMI-A-1"})

	all := tracker.All()
	require.Len(t, all, 3)
	assert.Equal(t, model.DisplayID("DP-1"), all[0].DisplayID)
	assert.Equal(t, model.DisplayID("HDMI-A-1"), all[2].DisplayID)

	tracker.MarkRemoved()
	assert.Equal(t, 3, tracker.CountStatus(OverlayStatusRemoved))

	_, ok := tracker.Get("missing")
	assert.False(t, ok)
}
