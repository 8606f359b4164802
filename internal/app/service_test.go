package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"planpoint/api/internal/config"
	"planpoint/api/internal/render"
	"planpoint/api/internal/store"
	"planpoint/api/internal/workspace"
)

type memKV struct {
	mu        sync.Mutex
	data      map[string][]byte
	failWrite bool
}

func newMemKV() *memKV {
	return &memKV{data: map[string][]byte{}}
}

func (m *memKV) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.data[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return value, nil
}

func (m *memKV) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite {
		return fmt.Errorf("%w: disk full", store.ErrCapacity)
	}
	m.data[key] = value
	return nil
}

func (m *memKV) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memKV) Close() error { return nil }

func newTestService(t *testing.T) (*Service, *memKV) {
	t.Helper()
	kv := newMemKV()
	cfg := config.Config{
		ProximityPx:  18,
		PhotoMaxDim:  800,
		PhotoQuality: 70,
	}
	svc := NewService(cfg, workspace.NewStore(kv), nil, nil, nil, nil)
	svc.now = func() time.Time {
		return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	}
	return svc, kv
}

var planBytes = []byte("%PDF-1.4\nfake plan body")

func setupWorkspaceWithDocument(t *testing.T, svc *Service) {
	t.Helper()
	ctx := context.Background()
	if _, err := svc.CreateWorkspace(ctx, "RN1"); err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	if _, err := svc.AddDocument(ctx, "plan.pdf", planBytes); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
}

func commitPoint(t *testing.T, svc *Service, x, y float64, baseName string) PointView {
	t.Helper()
	ctx := context.Background()
	if err := svc.StartPlacement(ctx, []byte("photo-bytes"), "IMG_1.jpg", workspace.SourceCaptured); err != nil {
		t.Fatalf("StartPlacement: %v", err)
	}
	if err := svc.PlaceAt(ctx, x, y, 1000, 800); err != nil {
		t.Fatalf("PlaceAt: %v", err)
	}
	pt, committed, err := svc.ConfirmPlacement(ctx, baseName, "")
	if err != nil {
		t.Fatalf("ConfirmPlacement: %v", err)
	}
	if !committed {
		t.Fatal("expected placement to commit")
	}
	return pt
}

func TestPlacementFlowCommitsPoint(t *testing.T) {
	svc, kv := newTestService(t)
	ctx := context.Background()
	setupWorkspaceWithDocument(t, svc)

	if err := svc.StartPlacement(ctx, []byte("photo-bytes"), "IMG_1.jpg", workspace.SourceCaptured); err != nil {
		t.Fatalf("StartPlacement: %v", err)
	}
	state, err := svc.State(ctx)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state.Stage != "awaitPlacement" {
		t.Fatalf("stage = %q, want awaitPlacement", state.Stage)
	}
	if state.InfoMode {
		t.Fatal("starting a placement should turn info mode off")
	}

	if err := svc.PlaceAt(ctx, 0.25, 0.4, 1000, 800); err != nil {
		t.Fatalf("PlaceAt: %v", err)
	}
	pt, committed, err := svc.ConfirmPlacement(ctx, "A1", "leak at valve")
	if err != nil {
		t.Fatalf("ConfirmPlacement: %v", err)
	}
	if !committed {
		t.Fatal("expected commit")
	}
	if pt.Seq != 1 {
		t.Fatalf("seq = %d, want 1", pt.Seq)
	}
	if pt.Name != "A120240501" {
		t.Fatalf("name = %q, want A120240501", pt.Name)
	}
	if pt.Comment != "leak at valve" {
		t.Fatalf("comment = %q", pt.Comment)
	}
	if !pt.HasPhoto {
		t.Fatal("point should carry the staged photo")
	}
	if pt.SessionID != svc.SessionID() {
		t.Fatalf("sessionID = %q, want %q", pt.SessionID, svc.SessionID())
	}

	state, err = svc.State(ctx)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state.Stage != "idle" {
		t.Fatalf("stage after commit = %q, want idle", state.Stage)
	}
	if len(state.Points) != 1 {
		t.Fatalf("visible points = %d, want 1", len(state.Points))
	}
	if _, ok := kv.data["rn:ws:RN1"]; !ok {
		t.Fatal("committing a point should persist the workspace blob")
	}
}

func TestProximityRejectionKeepsPhotoStaged(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	setupWorkspaceWithDocument(t, svc)
	commitPoint(t, svc, 0.25, 0.4, "A1")

	if err := svc.StartPlacement(ctx, []byte("second-photo"), "IMG_2.jpg", workspace.SourceCaptured); err != nil {
		t.Fatalf("StartPlacement: %v", err)
	}
	// 1 pixel away from the first point on a 1000x800 page.
	err := svc.PlaceAt(ctx, 0.251, 0.4, 1000, 800)
	if !errors.Is(err, workspace.ErrTooClose) {
		t.Fatalf("PlaceAt near existing point: %v, want ErrTooClose", err)
	}
	state, err := svc.State(ctx)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state.Stage != "awaitPlacement" {
		t.Fatalf("stage after rejection = %q, want awaitPlacement", state.Stage)
	}

	if err := svc.PlaceAt(ctx, 0.8, 0.8, 1000, 800); err != nil {
		t.Fatalf("retry PlaceAt: %v", err)
	}
	pt, committed, err := svc.ConfirmPlacement(ctx, "A2", "")
	if err != nil || !committed {
		t.Fatalf("ConfirmPlacement: committed=%v err=%v", committed, err)
	}
	if pt.Seq != 2 {
		t.Fatalf("seq = %d, want 2", pt.Seq)
	}
}

func TestEmptyNameAbortsPlacement(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	setupWorkspaceWithDocument(t, svc)

	if err := svc.StartPlacement(ctx, []byte("photo"), "", workspace.SourceUploaded); err != nil {
		t.Fatalf("StartPlacement: %v", err)
	}
	if err := svc.PlaceAt(ctx, 0.5, 0.5, 1000, 800); err != nil {
		t.Fatalf("PlaceAt: %v", err)
	}
	_, committed, err := svc.ConfirmPlacement(ctx, "   ", "ignored")
	if err != nil {
		t.Fatalf("ConfirmPlacement: %v", err)
	}
	if committed {
		t.Fatal("blank name must abort without committing")
	}
	state, _ := svc.State(ctx)
	if state.Stage != "idle" {
		t.Fatalf("stage = %q, want idle", state.Stage)
	}
	if len(state.Points) != 0 {
		t.Fatalf("points = %d, want 0", len(state.Points))
	}
	if state.SeqCounter != 0 {
		t.Fatalf("seqCounter = %d, want 0", state.SeqCounter)
	}
}

func TestStartPlacementRequiresDocument(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.CreateWorkspace(ctx, "RN1"); err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	err := svc.StartPlacement(ctx, []byte("photo"), "", workspace.SourceCaptured)
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "NO_DOCUMENTS" {
		t.Fatalf("StartPlacement without documents: %v, want NO_DOCUMENTS", err)
	}
}

func TestAddDocumentRejectsNonPDF(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.CreateWorkspace(ctx, "RN1"); err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	_, err := svc.AddDocument(ctx, "notes.txt", []byte("hello"))
	if !errors.Is(err, render.ErrDecode) {
		t.Fatalf("AddDocument with non-PDF bytes: %v, want ErrDecode", err)
	}
}

func TestDeleteDocumentRequiresTypedName(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	setupWorkspaceWithDocument(t, svc)
	commitPoint(t, svc, 0.25, 0.4, "A1")

	err := svc.DeleteDocument(ctx, 0, "wrong name")
	if !errors.Is(err, workspace.ErrConfirmMismatch) {
		t.Fatalf("DeleteDocument with wrong confirmation: %v, want ErrConfirmMismatch", err)
	}
	if err := svc.DeleteDocument(ctx, 0, "plan.pdf"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	state, _ := svc.State(ctx)
	if len(state.Documents) != 0 {
		t.Fatalf("documents = %d, want 0", len(state.Documents))
	}
	if len(state.Points) != 0 {
		t.Fatal("deleting a document must cascade to its points")
	}
	if state.ActiveDocumentIndex != 0 || state.Page != 1 {
		t.Fatalf("cursor = (%d, %d), want (0, 1)", state.ActiveDocumentIndex, state.Page)
	}
}

func TestSetPageClamps(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	setupWorkspaceWithDocument(t, svc)
	if err := svc.ReportPageCount(ctx, 0, 5); err != nil {
		t.Fatalf("ReportPageCount: %v", err)
	}

	page, err := svc.SetPage(ctx, 99)
	if err != nil {
		t.Fatalf("SetPage: %v", err)
	}
	if page != 5 {
		t.Fatalf("page = %d, want clamp to 5", page)
	}
	page, _ = svc.SetPage(ctx, 0)
	if page != 1 {
		t.Fatalf("page = %d, want clamp to 1", page)
	}
}

func TestPersistFailureKeepsStateWithWarning(t *testing.T) {
	svc, kv := newTestService(t)
	ctx := context.Background()
	setupWorkspaceWithDocument(t, svc)

	kv.failWrite = true
	pt := commitPoint(t, svc, 0.25, 0.4, "A1")
	if pt.Seq != 1 {
		t.Fatalf("seq = %d, want 1", pt.Seq)
	}
	state, err := svc.State(ctx)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state.PersistWarning == "" {
		t.Fatal("expected a persist warning after a failed write")
	}
	if len(state.Points) != 1 {
		t.Fatal("in-memory state must survive a failed write")
	}

	// A later successful save clears the warning.
	kv.failWrite = false
	if _, err := svc.SetPage(ctx, 1); err != nil {
		t.Fatalf("SetPage: %v", err)
	}
	state, _ = svc.State(ctx)
	if state.PersistWarning != "" {
		t.Fatalf("warning = %q, want cleared", state.PersistWarning)
	}
}

func TestPointPhotoDownloadName(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	setupWorkspaceWithDocument(t, svc)
	pt := commitPoint(t, svc, 0.25, 0.4, "A1")

	photo, err := svc.PointPhoto(ctx, pt.Seq)
	if err != nil {
		t.Fatalf("PointPhoto: %v", err)
	}
	if photo.Filename != "captured_IMG_1.jpg" {
		t.Fatalf("filename = %q, want captured_IMG_1.jpg", photo.Filename)
	}
	if len(photo.Data) == 0 {
		t.Fatal("photo payload is empty")
	}

	if _, err := svc.PointPhoto(ctx, 99); !errors.Is(err, workspace.ErrPointMissing) {
		t.Fatalf("PointPhoto(99): %v, want ErrPointMissing", err)
	}
}

func TestNearestPointWithinRadius(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	setupWorkspaceWithDocument(t, svc)
	commitPoint(t, svc, 0.25, 0.4, "A1")

	// 5 pixels away on a 1000x800 page.
	point, err := svc.NearestPoint(ctx, 0.255, 0.4, 1000, 800)
	if err != nil {
		t.Fatalf("NearestPoint: %v", err)
	}
	if point == nil {
		t.Fatal("expected a point within the radius")
	}
	if !strings.HasPrefix(point.Name, "A1") {
		t.Fatalf("name = %q", point.Name)
	}

	point, err = svc.NearestPoint(ctx, 0.9, 0.9, 1000, 800)
	if err != nil {
		t.Fatalf("NearestPoint: %v", err)
	}
	if point != nil {
		t.Fatalf("expected no point far from any annotation, got %+v", point)
	}
}

func TestAttachPhotoReplacesExisting(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	setupWorkspaceWithDocument(t, svc)
	pt := commitPoint(t, svc, 0.25, 0.4, "A1")

	updated, err := svc.AttachPhoto(ctx, pt.Seq, []byte("replacement"), "site.png", workspace.SourceUploaded)
	if err != nil {
		t.Fatalf("AttachPhoto: %v", err)
	}
	if updated.PhotoName != "site.png" {
		t.Fatalf("photoName = %q, want site.png", updated.PhotoName)
	}
	if updated.PhotoSource != workspace.SourceUploaded {
		t.Fatalf("photoSource = %q, want uploaded", updated.PhotoSource)
	}
	if updated.PhotoDate != "2024-05-01" {
		t.Fatalf("photoDate = %q, want 2024-05-01", updated.PhotoDate)
	}
}

func TestImportArchiveRestoresWorkspace(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	setupWorkspaceWithDocument(t, svc)
	commitPoint(t, svc, 0.25, 0.4, "A1")

	archive, err := svc.ExportArchive(ctx)
	if err != nil {
		t.Fatalf("ExportArchive: %v", err)
	}

	state, err := svc.ImportArchive(ctx, "RN2", archive.Data)
	if err != nil {
		t.Fatalf("ImportArchive: %v", err)
	}
	if state.ActiveWorkspace != "RN2" {
		t.Fatalf("activeWorkspace = %q, want RN2", state.ActiveWorkspace)
	}
	if len(state.Documents) != 1 {
		t.Fatalf("documents = %d, want 1", len(state.Documents))
	}
	if state.SeqCounter != 1 {
		t.Fatalf("seqCounter = %d, want 1", state.SeqCounter)
	}

	// Importing over an existing name is rejected.
	if _, err := svc.ImportArchive(ctx, "RN1", archive.Data); !errors.Is(err, workspace.ErrNameTaken) {
		t.Fatalf("ImportArchive over existing name: %v, want ErrNameTaken", err)
	}
}

func TestDeleteWorkspaceClosesActive(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	setupWorkspaceWithDocument(t, svc)

	state, err := svc.DeleteWorkspace(ctx, "RN1", "RN1")
	if err != nil {
		t.Fatalf("DeleteWorkspace: %v", err)
	}
	if state.ActiveWorkspace != "" {
		t.Fatalf("activeWorkspace = %q, want empty", state.ActiveWorkspace)
	}
	if len(state.Workspaces) != 0 {
		t.Fatalf("workspaces = %v, want empty", state.Workspaces)
	}

	_, err = svc.AddDocument(ctx, "plan.pdf", planBytes)
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "NO_ACTIVE_WORKSPACE" {
		t.Fatalf("AddDocument with no workspace: %v, want NO_ACTIVE_WORKSPACE", err)
	}
}

func TestLoadWorkspaceResetsSessionState(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	setupWorkspaceWithDocument(t, svc)
	if _, err := svc.CreateWorkspace(ctx, "RN2"); err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	svc.SetInfoMode(ctx, false)
	svc.SetShowAllSessions(ctx, true)

	state, err := svc.LoadWorkspace(ctx, "RN1")
	if err != nil {
		t.Fatalf("LoadWorkspace: %v", err)
	}
	if state.ActiveWorkspace != "RN1" {
		t.Fatalf("activeWorkspace = %q, want RN1", state.ActiveWorkspace)
	}
	if !state.InfoMode {
		t.Fatal("loading a workspace must reset info mode on")
	}
	if state.ShowAllSessions {
		t.Fatal("loading a workspace must reset the session filter")
	}

	if _, err := svc.LoadWorkspace(ctx, "nope"); !errors.Is(err, workspace.ErrUnknown) {
		t.Fatalf("LoadWorkspace(nope): %v, want ErrUnknown", err)
	}
}
