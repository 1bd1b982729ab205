package daemon

import (
	"slices"
	"sync"
	"time"

	"github.com/jmylchreest/stickerlay/internal/display"
	"github.com/jmylchreest/stickerlay/internal/model"
)

// OverlayStatus represents the state of one display's overlay.
type OverlayStatus int

const (
	// OverlayStatusPending means the display is known but no pass has run.
	OverlayStatusPending OverlayStatus = iota
	// OverlayStatusActive means the overlay window exists.
	OverlayStatusActive
	// OverlayStatusFailed means the last creation attempt failed.
	OverlayStatusFailed
	// OverlayStatusRemoved means the display disappeared.
	OverlayStatusRemoved
)

// String returns the string representation of OverlayStatus.
func (s OverlayStatus) String() string {
	switch s {
	case OverlayStatusPending:
		return "pending"
	case OverlayStatusActive:
		return "active"
	case OverlayStatusFailed:
		return "failed"
	case OverlayStatusRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// OverlayState tracks one display's overlay across reconcile passes.
type OverlayState struct {
	DisplayID model.DisplayID
	Status    OverlayStatus
	Reason    string    // Last failure, empty when active
	Attempts  int       // Consecutive failed creations
	UpdatedAt time.Time // Last status change
}

// OverlayStateTracker records the outcome of reconcile passes for status
// reporting.
type OverlayStateTracker struct {
	mu     sync.RWMutex
	states map[model.DisplayID]*OverlayState
}

// NewOverlayStateTracker creates a new OverlayStateTracker.
func NewOverlayStateTracker() *OverlayStateTracker {
	return &OverlayStateTracker{
		states: make(map[model.DisplayID]*OverlayState),
	}
}

// Apply records a reconcile pass. live are the ids with a window after the
// pass.
func (t *OverlayStateTracker) Apply(result display.ReconcileResult, live []model.DisplayID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	for _, id := range live {
		t.setLocked(id, OverlayStatusActive, "", now)
		t.states[id].Attempts = 0
	}
	for id, err := range result.Failed {
		t.setLocked(id, OverlayStatusFailed, err.Error(), now)
		t.states[id].Attempts++
	}
	for _, id := range result.Removed {
		if _, failed := result.Failed[id]; failed || slices.Contains(live, id) {
			continue
		}
		t.setLocked(id, OverlayStatusRemoved, "", now)
	}
}

// MarkRemoved marks every tracked overlay as removed, for shutdown.
func (t *OverlayStateTracker) MarkRemoved() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	for id := range t.states {
		t.setLocked(id, OverlayStatusRemoved, "", now)
	}
}

// setLocked updates the status of id. Caller must hold the lock.
func (t *OverlayStateTracker) setLocked(id model.DisplayID, status OverlayStatus, reason string, now time.Time) {
	st, ok := t.states[id]
	if !ok {
		st = &OverlayState{DisplayID: id, Status: OverlayStatusPending}
		t.states[id] = st
	}
	if st.Status != status || st.Reason != reason {
		st.UpdatedAt = now
	}
	st.Status = status
	st.Reason = reason
}

// Get returns the state for a display.
func (t *OverlayStateTracker) Get(id model.DisplayID) (OverlayState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st, ok := t.states[id]
	if !ok {
		return OverlayState{}, false
	}
	return *st, true
}

// All returns every tracked state sorted by display id.
func (t *OverlayStateTracker) All() []OverlayState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]OverlayState, 0, len(t.states))
	for _, st := range t.states {
		out = append(out, *st)
	}
	slices.SortFunc(out, func(a, b OverlayState) int {
		switch {
		case a.DisplayID < b.DisplayID:
			return -1
		case a.DisplayID > b.DisplayID:
			return 1
		}
		return 0
	})
	return out
}

// Count returns the number of tracked displays.
func (t *OverlayStateTracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.states)
}

// CountStatus returns the number of overlays in status.
func (t *OverlayStateTracker) CountStatus(status OverlayStatus) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	count := 0
	for _, st := range t.states {
		if st.Status == status {
			count++
		}
	}
	return count
}
