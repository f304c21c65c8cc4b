package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// replaceFile swaps in data at path through a synced temp file and a rename,
// so a reader sees the previous checkpoint or the new one and never a
// partial write.
func replaceFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("create checkpoint temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write checkpoint %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync checkpoint %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close checkpoint %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace checkpoint %s: %w", path, err)
	}
	committed = true
	return nil
}

// saveSessionFile writes ws as indented JSON, one file per branch.
func saveSessionFile(path string, ws *WorkflowSession) error {
	data, err := json.MarshalIndent(ws, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session %s: %w", ws.Branch, err)
	}
	return replaceFile(path, append(data, '\n'))
}

// loadSessionFile reads one checkpoint. A missing file keeps its
// os.ErrNotExist so callers can map it to ErrNotFound.
func loadSessionFile(path string) (*WorkflowSession, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ws WorkflowSession
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("corrupt checkpoint %s: %w", path, err)
	}
	return &ws, nil
}
