package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/jmylchreest/stickerlay/internal/model"
)

// CaptureTransition records details about a capture protection change.
type CaptureTransition struct {
	Enabled   bool            `json:"enabled"`
	DisplayID model.DisplayID `json:"display_id,omitempty"` // Empty means all displays
	Source    string          `json:"source,omitempty"`     // e.g. "cli", "tui", "config"
	Timestamp int64           `json:"timestamp"`
}

// Selection is the sticker most recently placed on a set of displays.
// Placement updates fan out to exactly these displays.
type Selection struct {
	Sticker   string            `json:"sticker"`
	Displays  []model.DisplayID `json:"displays"`
	UpdatedAt int64             `json:"updated_at"`
}

// Contains reports whether id is part of the selection.
func (s *Selection) Contains(id model.DisplayID) bool {
	return s != nil && slices.Contains(s.Displays, id)
}

// SharedState contains state that is shared between stickerlay and
// stickerlayd. This is persisted to ~/.local/share/stickerlay/state.json
type SharedState struct {
	// Capture protection default for all overlays
	CaptureProtection     bool               `json:"capture_protection"`
	CaptureLastTransition *CaptureTransition `json:"capture_last_transition,omitempty"`

	// Active multi-display selection
	Selection *Selection `json:"selection,omitempty"`

	// Last broadcast, for status output
	LastUpdateID string `json:"last_update_id,omitempty"`
	LastUpdateAt int64  `json:"last_update_at,omitempty"`

	// Version for compatibility
	SchemaVersion int `json:"schema_version"`
}

const (
	// CurrentSchemaVersion is the current version of the state schema.
	CurrentSchemaVersion = 1
)

// stateFileMutex protects concurrent access to the state file.
var stateFileMutex sync.RWMutex

// DefaultSharedState returns a new SharedState with default values.
func DefaultSharedState() *SharedState {
	return &SharedState{
		CaptureProtection: true,
		SchemaVersion:     CurrentSchemaVersion,
	}
}

// StateFilePath returns the path to the state file.
func StateFilePath() (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "state.json"), nil
}

// LoadSharedState loads the shared state from disk.
// If the file doesn't exist, returns a default state.
func LoadSharedState() (*SharedState, error) {
	stateFileMutex.RLock()
	defer stateFileMutex.RUnlock()

	path, err := StateFilePath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSharedState(), nil
		}
		return nil, err
	}

	state := DefaultSharedState()
	if err := json.Unmarshal(data, state); err != nil {
		// If the file is corrupted, return default state
		return DefaultSharedState(), nil
	}

	if state.SchemaVersion == 0 {
		state.SchemaVersion = CurrentSchemaVersion
	}

	return state, nil
}

// SaveSharedState saves the shared state to disk.
func SaveSharedState(state *SharedState) error {
	stateFileMutex.Lock()
	defer stateFileMutex.Unlock()

	path, err := StateFilePath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	if state.SchemaVersion == 0 {
		state.SchemaVersion = CurrentSchemaVersion
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}

// SetCaptureProtection records a capture protection change. A nil id
// changes the default for every display.
func (s *SharedState) SetCaptureProtection(enabled bool, id *model.DisplayID, source string) {
	t := &CaptureTransition{
		Enabled:   enabled,
		Source:    source,
		Timestamp: time.Now().Unix(),
	}
	if id == nil {
		s.CaptureProtection = enabled
	} else {
		t.DisplayID = *id
	}
	s.CaptureLastTransition = t
}

// SetSelection records the sticker and display set of the last multi-display
// placement.
func (s *SharedState) SetSelection(sticker string, ids []model.DisplayID) {
	if sticker == "" || len(ids) == 0 {
		s.Selection = nil
		return
	}
	s.Selection = &Selection{
		Sticker:   sticker,
		Displays:  slices.Clone(ids),
		UpdatedAt: time.Now().Unix(),
	}
}

// RecordUpdate stores the id of the last broadcast.
func (s *SharedState) RecordUpdate(updateID string) {
	s.LastUpdateID = updateID
	s.LastUpdateAt = time.Now().Unix()
}

// SharedStateFile loads and saves SharedState at StateFilePath.
type SharedStateFile struct{}

// Load implements the state loader used by the broadcaster and daemon.
func (SharedStateFile) Load() (*SharedState, error) { return LoadSharedState() }

// Save writes state to disk.
func (SharedStateFile) Save(state *SharedState) error { return SaveSharedState(state) }
