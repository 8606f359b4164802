// Package history keeps a git-backed audit trail of workspace saves.
// Each successful save commits a metadata snapshot (no binary
// payloads) to a per-workspace repository, so a field job's point
// history can be reviewed after the fact.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"planpoint/api/internal/workspace"
)

const snapshotFile = "snapshot.json"

// snapshotPoint mirrors a point without its photo payload.
type snapshotPoint struct {
	Seq          int     `json:"seq"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	DocIndex     int     `json:"documentIndex"`
	Page         int     `json:"page"`
	Name         string  `json:"name"`
	Comment      string  `json:"comment"`
	PhotoName    string  `json:"photoName,omitempty"`
	PhotoDate    string  `json:"photoDate,omitempty"`
	PhotoSource  string  `json:"photoSource,omitempty"`
	SessionID    string  `json:"sessionId"`
}

type snapshot struct {
	Workspace  string          `json:"workspace"`
	Documents  []string        `json:"documents"`
	ActiveDoc  int             `json:"activeDocumentIndex"`
	Page       int             `json:"page"`
	SeqCounter int             `json:"seqCounter"`
	Points     []snapshotPoint `json:"points"`
}

// Entry is one recorded save.
type Entry struct {
	Hash    string    `json:"hash"`
	Message string    `json:"message"`
	When    time.Time `json:"when"`
}

// Service owns the per-workspace repositories under one base dir.
type Service struct {
	baseDir string
	mu      sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{baseDir: baseDir}
}

func (s *Service) repoPath(name string) string {
	return filepath.Join(s.baseDir, name)
}

func buildSnapshot(w *workspace.Workspace) snapshot {
	snap := snapshot{
		Workspace:  w.Name,
		Documents:  []string{},
		ActiveDoc:  w.ActiveDoc,
		Page:       w.Page,
		SeqCounter: w.SeqCounter,
		Points:     []snapshotPoint{},
	}
	for _, d := range w.Documents {
		snap.Documents = append(snap.Documents, d.DisplayName)
	}
	for _, p := range w.Points {
		sp := snapshotPoint{
			Seq: p.Seq, X: p.X, Y: p.Y, DocIndex: p.DocIndex, Page: p.Page,
			Name: p.Name, Comment: p.Comment, SessionID: p.SessionID,
		}
		if p.Photo != nil {
			sp.PhotoName = p.Photo.OriginalName
			sp.PhotoDate = p.Photo.CaptureDate
			sp.PhotoSource = p.Photo.Source
		}
		snap.Points = append(snap.Points, sp)
	}
	return snap
}

// RecordSave writes the workspace snapshot and commits it, creating
// the repository on first use. The session identifier becomes the
// commit author so every save is attributable to one field visit.
func (s *Service) RecordSave(w *workspace.Workspace, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.repoPath(w.Name)
	repo, err := git.PlainOpen(path)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		if mkErr := os.MkdirAll(path, 0o755); mkErr != nil {
			return fmt.Errorf("create history dir: %w", mkErr)
		}
		repo, err = git.PlainInit(path, false)
	}
	if err != nil {
		return fmt.Errorf("open history repo: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}

	payload, err := json.MarshalIndent(buildSnapshot(w), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(filepath.Join(path, snapshotFile), append(payload, '\n'), 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if _, err := worktree.Add(snapshotFile); err != nil {
		return fmt.Errorf("git add snapshot: %w", err)
	}

	message := fmt.Sprintf("Save: %d documents, %d points", len(w.Documents), len(w.Points))
	_, err = worktree.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  sessionID,
			Email: sessionID + "@planpoint.local",
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// Log lists recorded saves, newest first, up to limit (0 = all).
func (s *Service) Log(name string, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := git.PlainOpen(s.repoPath(name))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open history repo: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return []Entry{}, nil
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read history log: %w", err)
	}
	defer iter.Close()

	entries := []Entry{}
	err = iter.ForEach(func(c *object.Commit) error {
		entries = append(entries, Entry{
			Hash:    c.Hash.String(),
			Message: c.Message,
			When:    c.Author.When,
		})
		if limit > 0 && len(entries) >= limit {
			return errStopIteration
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopIteration) {
		return nil, fmt.Errorf("walk history log: %w", err)
	}
	return entries, nil
}

var errStopIteration = errors.New("stop iteration")

// Rename moves a workspace's history repo to follow a key migration.
func (s *Service) Rename(oldName, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldPath := s.repoPath(oldName)
	if _, err := os.Stat(oldPath); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := os.Rename(oldPath, s.repoPath(newName)); err != nil {
		return fmt.Errorf("rename history repo: %w", err)
	}
	return nil
}

// Remove deletes a workspace's history repo.
func (s *Service) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.repoPath(name)); err != nil {
		return fmt.Errorf("remove history repo: %w", err)
	}
	return nil
}
