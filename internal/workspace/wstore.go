package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"planpoint/api/internal/store"
)

const (
	keyList   = "rn:list"
	keyActive = "rn:active"
	keyPrefix = "rn:ws:"
)

var (
	ErrNameEmpty       = errors.New("workspace name is empty")
	ErrNameTaken       = errors.New("workspace name already exists")
	ErrNameUnchanged   = errors.New("workspace name is unchanged")
	ErrUnknown         = errors.New("unknown workspace")
	ErrConfirmMismatch = errors.New("confirmation does not match the workspace name")
)

// Store manages the RN lifecycle over a key-value backend: the list of
// known names, the last-active name and one serialized blob per
// workspace.
type Store struct {
	kv store.KV
}

func NewStore(kv store.KV) *Store {
	return &Store{kv: kv}
}

func (s *Store) blobKey(name string) string {
	return keyPrefix + name
}

// List returns the known workspace names in creation order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	data, err := s.kv.Get(ctx, keyList)
	if errors.Is(err, store.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read workspace list: %w", err)
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("decode workspace list: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

func (s *Store) writeList(ctx context.Context, names []string) error {
	data, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("encode workspace list: %w", err)
	}
	return s.kv.Set(ctx, keyList, data)
}

// ActiveName returns the persisted last-active workspace name, or ""
// when none is recorded.
func (s *Store) ActiveName(ctx context.Context) (string, error) {
	data, err := s.kv.Get(ctx, keyActive)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read active workspace: %w", err)
	}
	return string(data), nil
}

// SetActive records the last-active workspace name.
func (s *Store) SetActive(ctx context.Context, name string) error {
	if name == "" {
		return s.kv.Delete(ctx, keyActive)
	}
	return s.kv.Set(ctx, keyActive, []byte(name))
}

// Create registers and persists a new empty workspace. The name must
// be non-empty and unique among siblings.
func (s *Store) Create(ctx context.Context, name string) (*Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameEmpty
	}
	names, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, n := range names {
		if n == name {
			return nil, ErrNameTaken
		}
	}

	w := NewWorkspace(name)
	if err := s.Save(ctx, w); err != nil {
		return nil, err
	}
	if err := s.writeList(ctx, append(names, name)); err != nil {
		return nil, err
	}
	if err := s.SetActive(ctx, name); err != nil {
		return nil, err
	}
	return w, nil
}

// Rename migrates a workspace to a new key, preserving its content.
func (s *Store) Rename(ctx context.Context, oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return ErrNameEmpty
	}
	if newName == oldName {
		return ErrNameUnchanged
	}
	names, err := s.List(ctx)
	if err != nil {
		return err
	}
	found := false
	for _, n := range names {
		if n == newName {
			return ErrNameTaken
		}
		if n == oldName {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("rename %q: %w", oldName, ErrUnknown)
	}

	data, err := s.kv.Get(ctx, s.blobKey(oldName))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("read workspace %q: %w", oldName, err)
	}
	if err == nil {
		if err := s.kv.Set(ctx, s.blobKey(newName), data); err != nil {
			return err
		}
		if err := s.kv.Delete(ctx, s.blobKey(oldName)); err != nil {
			return err
		}
	}

	for i, n := range names {
		if n == oldName {
			names[i] = newName
		}
	}
	if err := s.writeList(ctx, names); err != nil {
		return err
	}

	active, err := s.ActiveName(ctx)
	if err != nil {
		return err
	}
	if active == oldName {
		return s.SetActive(ctx, newName)
	}
	return nil
}

// Delete irreversibly removes a workspace. The caller must re-type the
// exact name as confirmation; the comparison is case-sensitive.
func (s *Store) Delete(ctx context.Context, name, confirmation string) error {
	if confirmation != name {
		return ErrConfirmMismatch
	}
	names, err := s.List(ctx)
	if err != nil {
		return err
	}
	known := false
	for _, n := range names {
		if n == name {
			known = true
			break
		}
	}
	if !known {
		return ErrUnknown
	}
	if err := s.kv.Delete(ctx, s.blobKey(name)); err != nil {
		return err
	}
	kept := names[:0]
	for _, n := range names {
		if n != name {
			kept = append(kept, n)
		}
	}
	if err := s.writeList(ctx, kept); err != nil {
		return err
	}

	active, err := s.ActiveName(ctx)
	if err != nil {
		return err
	}
	if active == name {
		return s.SetActive(ctx, "")
	}
	return nil
}

// Load reads a workspace blob, falling back to an empty workspace when
// nothing is persisted under the name. The name becomes the recorded
// last-active workspace.
func (s *Store) Load(ctx context.Context, name string) (*Workspace, error) {
	data, err := s.kv.Get(ctx, s.blobKey(name))
	if errors.Is(err, store.ErrNotFound) {
		w := NewWorkspace(name)
		if err := s.SetActive(ctx, name); err != nil {
			return nil, err
		}
		return w, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read workspace %q: %w", name, err)
	}
	w, err := DecodeWorkspace(name, data)
	if err != nil {
		return nil, err
	}
	if err := s.SetActive(ctx, name); err != nil {
		return nil, err
	}
	return w, nil
}

// Save persists the full workspace content as a single blob. Write
// failures carry store.ErrCapacity so callers can keep the in-memory
// state and surface a warning instead of rolling back.
func (s *Store) Save(ctx context.Context, w *Workspace) error {
	data, err := EncodeWorkspace(w)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, s.blobKey(w.Name), data)
}
