package session

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrNotFound is returned when no checkpoint exists for a branch.
var ErrNotFound = errors.New("session not found")

// Store checkpoints sessions as JSON between CLI invocations. One file per
// branch, plus an "active" pointer naming the branch the last command acted on.
type Store struct {
	baseDir string // <git-dir>/branchflow
}

// NewStore creates a Store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// BaseDir returns the store's root directory.
func (s *Store) BaseDir() string {
	return s.baseDir
}

func (s *Store) sessionPath(branch string) string {
	return filepath.Join(s.baseDir, "sessions", url.PathEscape(branch)+".json")
}

func (s *Store) activePath() string {
	return filepath.Join(s.baseDir, "active")
}

// Save writes the session checkpoint.
func (s *Store) Save(ws *WorkflowSession) error {
	ws.UpdatedAt = time.Now().UTC()
	if err := saveSessionFile(s.sessionPath(ws.Branch), ws); err != nil {
		return fmt.Errorf("save session %s: %w", ws.Branch, err)
	}
	return nil
}

// Get reads the checkpoint for branch.
func (s *Store) Get(branch string) (*WorkflowSession, error) {
	ws, err := loadSessionFile(s.sessionPath(branch))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w for branch %q", ErrNotFound, branch)
		}
		return nil, err
	}
	return ws, nil
}

// Delete discards the checkpoint for branch and clears the active pointer if it names branch.
func (s *Store) Delete(branch string) error {
	if err := os.Remove(s.sessionPath(branch)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete session %s: %w", branch, err)
	}
	if active, err := s.Active(); err == nil && active == branch {
		return s.ClearActive()
	}
	return nil
}

// SetActive records branch as the default target for later commands.
func (s *Store) SetActive(branch string) error {
	return replaceFile(s.activePath(), []byte(branch+"\n"))
}

// Active returns the branch named by the active pointer.
func (s *Store) Active() (string, error) {
	data, err := os.ReadFile(s.activePath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	branch := strings.TrimSpace(string(data))
	if branch == "" {
		return "", ErrNotFound
	}
	return branch, nil
}

// ClearActive removes the active pointer.
func (s *Store) ClearActive() error {
	if err := os.Remove(s.activePath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// List returns all checkpointed sessions sorted by branch.
func (s *Store) List() ([]WorkflowSession, error) {
	dir := filepath.Join(s.baseDir, "sessions")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var out []WorkflowSession
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		ws, err := loadSessionFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue // skip broken entries
		}
		out = append(out, *ws)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Branch < out[j].Branch })
	return out, nil
}
