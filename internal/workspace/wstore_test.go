package workspace

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"planpoint/api/internal/store"
)

// memKV is an in-memory store.KV with a switchable write failure.
type memKV struct {
	data      map[string][]byte
	failWrite bool
}

func newMemKV() *memKV {
	return &memKV{data: map[string][]byte{}}
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	value, ok := m.data[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return value, nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte) error {
	if m.failWrite {
		return fmt.Errorf("%w: quota exceeded", store.ErrCapacity)
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memKV) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *memKV) Close() error { return nil }

func TestCreateWorkspace(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newMemKV())

	w, err := s.Create(ctx, "RN1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if w.Name != "RN1" || w.Page != 1 || w.SeqCounter != 0 {
		t.Fatalf("new workspace = %+v", w)
	}

	names, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(names) != 1 || names[0] != "RN1" {
		t.Fatalf("List = %v, want [RN1]", names)
	}

	active, err := s.ActiveName(ctx)
	if err != nil {
		t.Fatalf("ActiveName failed: %v", err)
	}
	if active != "RN1" {
		t.Fatalf("active = %q, want RN1", active)
	}
}

func TestCreateWorkspaceValidation(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newMemKV())
	if _, err := s.Create(ctx, "RN1"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := s.Create(ctx, "   "); !errors.Is(err, ErrNameEmpty) {
		t.Fatalf("blank name error = %v, want ErrNameEmpty", err)
	}
	if _, err := s.Create(ctx, "RN1"); !errors.Is(err, ErrNameTaken) {
		t.Fatalf("duplicate name error = %v, want ErrNameTaken", err)
	}
}

func TestRenameMigratesContent(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newMemKV())

	w, err := s.Create(ctx, "RN1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	w.Documents = append(w.Documents, PlanDocument{ID: "d1", DisplayName: "plan.pdf", Data: []byte("%PDF-1.4"), PageCount: 3})
	w.Points = append(w.Points, Point{Seq: 1, X: 0.5, Y: 0.5, Page: 1, Name: "A120240501", SessionID: "s1"})
	w.SeqCounter = 1
	if err := s.Save(ctx, w); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := s.Rename(ctx, "RN1", "RN2"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}

	renamed, err := s.Load(ctx, "RN2")
	if err != nil {
		t.Fatalf("Load(RN2) failed: %v", err)
	}
	if len(renamed.Documents) != 1 || len(renamed.Points) != 1 || renamed.SeqCounter != 1 {
		t.Fatalf("content not migrated: %+v", renamed)
	}

	// The old key must be gone; loading it yields a fresh workspace.
	old, err := s.Load(ctx, "RN1")
	if err != nil {
		t.Fatalf("Load(RN1) failed: %v", err)
	}
	if len(old.Documents) != 0 || len(old.Points) != 0 || old.SeqCounter != 0 {
		t.Fatalf("old key still has content: %+v", old)
	}

	names, _ := s.List(ctx)
	if len(names) != 1 || names[0] != "RN2" {
		t.Fatalf("List after rename = %v, want [RN2]", names)
	}
}

func TestRenameValidation(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newMemKV())
	if _, err := s.Create(ctx, "RN1"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := s.Create(ctx, "RN2"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	tests := []struct {
		name     string
		from, to string
		want     error
	}{
		{"empty target", "RN1", "", ErrNameEmpty},
		{"unchanged", "RN1", "RN1", ErrNameUnchanged},
		{"taken", "RN1", "RN2", ErrNameTaken},
		{"unknown source", "RN9", "RN10", ErrUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := s.Rename(ctx, tc.from, tc.to); !errors.Is(err, tc.want) {
				t.Fatalf("Rename error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestDeleteRequiresTypedConfirmation(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newMemKV())
	if _, err := s.Create(ctx, "RN1"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := s.Delete(ctx, "RN1", "rn1"); !errors.Is(err, ErrConfirmMismatch) {
		t.Fatalf("case-insensitive confirmation accepted: %v", err)
	}
	if err := s.Delete(ctx, "RN1", "RN1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	names, _ := s.List(ctx)
	if len(names) != 0 {
		t.Fatalf("List after delete = %v, want empty", names)
	}
	active, _ := s.ActiveName(ctx)
	if active != "" {
		t.Fatalf("active after deleting active workspace = %q, want empty", active)
	}
}

func TestLoadMissingFallsBackToEmpty(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newMemKV())

	w, err := s.Load(ctx, "RN-new")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if w.Name != "RN-new" || len(w.Points) != 0 || w.Page != 1 {
		t.Fatalf("fallback workspace = %+v", w)
	}
	active, _ := s.ActiveName(ctx)
	if active != "RN-new" {
		t.Fatalf("active = %q, want RN-new", active)
	}
}

func TestSaveCapacityFailureSurfacesSentinel(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	s := NewStore(kv)

	w, err := s.Create(ctx, "RN1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	kv.failWrite = true
	err = s.Save(ctx, w)
	if !errors.Is(err, store.ErrCapacity) {
		t.Fatalf("Save error = %v, want ErrCapacity", err)
	}
}
