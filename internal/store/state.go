// internal/store/state.go
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// SourceState is one adapter's contribution to a sync.
type SourceState struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Events int    `json:"events"`
	Error  string `json:"error,omitempty"`
}

// SyncState describes the last successful sync process.
type SyncState struct {
	RunID    string        `json:"run_id"`
	Trigger  string        `json:"trigger"`
	Finished time.Time     `json:"finished"`
	Store    string        `json:"store"`
	Sheet    string        `json:"sheet"`
	Rows     int           `json:"rows"`
	Sources  []SourceState `json:"sources"`
}

func LoadSyncState(path string) (SyncState, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return SyncState{}, err
	}
	var s SyncState
	return s, json.Unmarshal(b, &s)
}

func SaveSyncState(path string, s SyncState) error {
	b, err := json.MarshalIndent(s, "", " ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}
