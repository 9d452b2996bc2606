package compiler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/robert-at-pretension-io/rdl2sv/internal/facts"
)

// SnapshotFile holds the fact tables of the previous run in the output
// directory
const SnapshotFile = "rdl2sv.facts.json"

const snapshotVersion = 1

type snapshot struct {
	Version int          `json:"version"`
	Input   string       `json:"input"`
	Tables  facts.Tables `json:"tables"`
}

// loadSnapshot returns the previous tables. A missing file or a snapshot
// of another version is not an error.
func loadSnapshot(dir string) (facts.Tables, bool, error) {
	path := filepath.Join(dir, SnapshotFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return facts.Tables{}, false, nil
		}
		return facts.Tables{}, false, fmt.Errorf("read facts snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return facts.Tables{}, false, fmt.Errorf("parse facts snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return facts.Tables{}, false, nil
	}
	return snap.Tables, true, nil
}

func saveSnapshot(dir, input string, tables facts.Tables) error {
	snap := snapshot{
		Version: snapshotVersion,
		Input:   input,
		Tables:  tables,
	}
	if err := writeJSONAtomic(filepath.Join(dir, SnapshotFile), snap); err != nil {
		return fmt.Errorf("write facts snapshot: %w", err)
	}
	return nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	return writeAtomic(path, data)
}

// writeAtomic replaces path through a temporary file in the same directory
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("output dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("temp file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
