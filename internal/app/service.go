package app

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"planpoint/api/internal/config"
	"planpoint/api/internal/export"
	"planpoint/api/internal/geometry"
	"planpoint/api/internal/history"
	"planpoint/api/internal/imaging"
	"planpoint/api/internal/placement"
	"planpoint/api/internal/render"
	"planpoint/api/internal/workspace"
)

// Service is the application core: it owns the in-memory active
// workspace, the placement flow and the collaborator ports, and it
// serializes all access. HTTP handlers stay thin over it.
type Service struct {
	mu  sync.Mutex
	cfg config.Config

	workspaces *workspace.Store
	history    *history.Service
	renderer   render.Renderer
	flattener  render.Flattener
	uploader   *export.Uploader

	// sessionID identifies one process run; points committed in this
	// run carry it and the default point listing filters on it.
	sessionID string

	active          *workspace.Workspace
	machine         *placement.Machine
	infoMode        bool
	showAllSessions bool
	persistWarning  string

	now func() time.Time
}

func NewService(cfg config.Config, workspaces *workspace.Store, hist *history.Service, renderer render.Renderer, flattener render.Flattener, uploader *export.Uploader) *Service {
	s := &Service{
		cfg:        cfg,
		workspaces: workspaces,
		history:    hist,
		renderer:   renderer,
		flattener:  flattener,
		uploader:   uploader,
		sessionID:  uuid.NewString(),
		machine:    placement.New(),
		infoMode:   true,
		now:        time.Now,
	}
	s.machine.Now = func() time.Time { return s.now() }
	return s
}

// SessionID returns the identifier of this process run.
func (s *Service) SessionID() string {
	return s.sessionID
}

// Bootstrap restores the last-active workspace, if any. A missing or
// unreadable active marker leaves the service with no workspace open.
func (s *Service) Bootstrap(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, err := s.workspaces.ActiveName(ctx)
	if err != nil {
		return err
	}
	if name == "" {
		return nil
	}
	ws, err := s.workspaces.Load(ctx, name)
	if err != nil {
		return err
	}
	s.openLocked(ws)
	return nil
}

// openLocked installs a workspace as active and resets the per-load
// session state: placement flow abandoned, info mode back on, session
// filter back to own-session-only.
func (s *Service) openLocked(ws *workspace.Workspace) {
	s.active = ws
	s.machine.Cancel()
	s.infoMode = true
	s.showAllSessions = false
	s.persistWarning = ""
}

func (s *Service) requireActive() (*workspace.Workspace, error) {
	if s.active == nil {
		return nil, domainError(http.StatusConflict, "NO_ACTIVE_WORKSPACE", "No workspace is open", nil)
	}
	return s.active, nil
}

// saveActive persists the active workspace. A storage write failure
// is not fatal: the in-memory state stays authoritative and the
// warning is surfaced in the next state payload. Each successful save
// is also recorded in the history trail, best effort.
func (s *Service) saveActive(ctx context.Context) {
	if s.active == nil {
		return
	}
	s.persistWarning = ""
	if err := s.workspaces.Save(ctx, s.active); err != nil {
		s.persistWarning = "storage write failed; changes kept in memory only"
		log.Printf("persist workspace %q failed, keeping in memory: %v", s.active.Name, err)
	}
	if s.history != nil {
		if err := s.history.RecordSave(s.active, s.sessionID); err != nil {
			log.Printf("history record for %q failed: %v", s.active.Name, err)
		}
	}
}

// ── Views ──

type DocumentView struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	PageCount   int    `json:"pageCount"`
}

type PointView struct {
	Seq           int     `json:"seq"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	DocumentIndex int     `json:"documentIndex"`
	Page          int     `json:"page"`
	Name          string  `json:"name"`
	Comment       string  `json:"comment"`
	HasPhoto      bool    `json:"hasPhoto"`
	PhotoName     string  `json:"photoName,omitempty"`
	PhotoDate     string  `json:"photoDate,omitempty"`
	PhotoSource   string  `json:"photoSource,omitempty"`
	SessionID     string  `json:"sessionId"`
}

type StateView struct {
	Workspaces          []string       `json:"workspaces"`
	ActiveWorkspace     string         `json:"activeWorkspace"`
	Documents           []DocumentView `json:"documents"`
	ActiveDocumentIndex int            `json:"activeDocumentIndex"`
	Page                int            `json:"page"`
	SeqCounter          int            `json:"seqCounter"`
	Stage               string         `json:"stage"`
	Placed              bool           `json:"placed"`
	InfoMode            bool           `json:"infoMode"`
	ShowAllSessions     bool           `json:"showAllSessions"`
	SessionID           string         `json:"sessionId"`
	PersistWarning      string         `json:"persistWarning,omitempty"`
	Points              []PointView    `json:"points"`
}

func pointView(p workspace.Point) PointView {
	v := PointView{
		Seq:           p.Seq,
		X:             p.X,
		Y:             p.Y,
		DocumentIndex: p.DocIndex,
		Page:          p.Page,
		Name:          p.Name,
		Comment:       p.Comment,
		HasPhoto:      p.HasPhoto(),
		SessionID:     p.SessionID,
	}
	if p.Photo != nil {
		v.PhotoName = p.Photo.OriginalName
		v.PhotoDate = p.Photo.CaptureDate
		v.PhotoSource = p.Photo.Source
	}
	return v
}

func stageName(stage placement.Stage) string {
	if stage == placement.StageAwaiting {
		return "awaitPlacement"
	}
	return "idle"
}

// visiblePointsLocked lists the points on the active document page
// under the current session filter.
func (s *Service) visiblePointsLocked() []PointView {
	views := []PointView{}
	if s.active == nil {
		return views
	}
	for _, p := range s.active.ListPoints(s.active.ActiveDoc, s.active.Page, s.sessionID, s.showAllSessions) {
		views = append(views, pointView(p))
	}
	return views
}

// State returns the full UI-facing snapshot.
func (s *Service) State(ctx context.Context) (StateView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.workspaces.List(ctx)
	if err != nil {
		return StateView{}, err
	}
	view := StateView{
		Workspaces:      names,
		Documents:       []DocumentView{},
		Page:            1,
		Stage:           stageName(s.machine.Stage()),
		Placed:          s.machine.Placed(),
		InfoMode:        s.infoMode,
		ShowAllSessions: s.showAllSessions,
		SessionID:       s.sessionID,
		PersistWarning:  s.persistWarning,
		Points:          s.visiblePointsLocked(),
	}
	if s.active != nil {
		view.ActiveWorkspace = s.active.Name
		view.ActiveDocumentIndex = s.active.ActiveDoc
		view.Page = s.active.Page
		view.SeqCounter = s.active.SeqCounter
		for _, d := range s.active.Documents {
			view.Documents = append(view.Documents, DocumentView{ID: d.ID, DisplayName: d.DisplayName, PageCount: d.PageCount})
		}
	}
	return view, nil
}

// ── Workspace lifecycle ──

func (s *Service) CreateWorkspace(ctx context.Context, name string) (StateView, error) {
	s.mu.Lock()
	ws, err := s.workspaces.Create(ctx, name)
	if err != nil {
		s.mu.Unlock()
		return StateView{}, err
	}
	s.openLocked(ws)
	if s.history != nil {
		if histErr := s.history.RecordSave(ws, s.sessionID); histErr != nil {
			log.Printf("history record for %q failed: %v", ws.Name, histErr)
		}
	}
	s.mu.Unlock()
	return s.State(ctx)
}

func (s *Service) LoadWorkspace(ctx context.Context, name string) (StateView, error) {
	s.mu.Lock()
	names, err := s.workspaces.List(ctx)
	if err != nil {
		s.mu.Unlock()
		return StateView{}, err
	}
	known := false
	for _, n := range names {
		if n == name {
			known = true
			break
		}
	}
	if !known {
		s.mu.Unlock()
		return StateView{}, workspace.ErrUnknown
	}
	ws, err := s.workspaces.Load(ctx, name)
	if err != nil {
		s.mu.Unlock()
		return StateView{}, err
	}
	s.openLocked(ws)
	s.mu.Unlock()
	return s.State(ctx)
}

func (s *Service) RenameWorkspace(ctx context.Context, oldName, newName string) (StateView, error) {
	s.mu.Lock()
	if err := s.workspaces.Rename(ctx, oldName, newName); err != nil {
		s.mu.Unlock()
		return StateView{}, err
	}
	if s.history != nil {
		if err := s.history.Rename(oldName, strings.TrimSpace(newName)); err != nil {
			log.Printf("history rename %q -> %q failed: %v", oldName, newName, err)
		}
	}
	if s.active != nil && s.active.Name == oldName {
		s.active.Name = strings.TrimSpace(newName)
	}
	s.mu.Unlock()
	return s.State(ctx)
}

// DeleteWorkspace removes a workspace after the caller retypes its
// exact name. Deleting the open workspace closes it.
func (s *Service) DeleteWorkspace(ctx context.Context, name, confirmation string) (StateView, error) {
	s.mu.Lock()
	if err := s.workspaces.Delete(ctx, name, confirmation); err != nil {
		s.mu.Unlock()
		return StateView{}, err
	}
	if s.history != nil {
		if err := s.history.Remove(name); err != nil {
			log.Printf("history remove for %q failed: %v", name, err)
		}
	}
	if s.active != nil && s.active.Name == name {
		s.active = nil
		s.machine.Cancel()
		s.persistWarning = ""
	}
	s.mu.Unlock()
	return s.State(ctx)
}

// ── Documents ──

func (s *Service) AddDocument(ctx context.Context, filename string, data []byte) (DocumentView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, err := s.requireActive()
	if err != nil {
		return DocumentView{}, err
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return DocumentView{}, render.ErrDecode
	}
	pageCount := 0
	if s.renderer != nil {
		info, err := s.renderer.RenderPage(ctx, data, 1)
		if err != nil {
			return DocumentView{}, err
		}
		pageCount = info.PageCount
	}
	displayName := strings.TrimSpace(filename)
	if displayName == "" {
		displayName = "plan.pdf"
	}
	doc := workspace.PlanDocument{
		ID:          uuid.NewString(),
		DisplayName: displayName,
		Data:        data,
		PageCount:   pageCount,
	}
	ws.AddDocument(doc)
	s.saveActive(ctx)
	return DocumentView{ID: doc.ID, DisplayName: doc.DisplayName, PageCount: doc.PageCount}, nil
}

func (s *Service) RenameDocument(ctx context.Context, index int, displayName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, err := s.requireActive()
	if err != nil {
		return err
	}
	if err := ws.RenameDocument(index, displayName); err != nil {
		return err
	}
	s.saveActive(ctx)
	return nil
}

// DeleteDocument removes a plan after the caller retypes its display
// name, cascading to the points pinned on it.
func (s *Service) DeleteDocument(ctx context.Context, index int, confirmation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, err := s.requireActive()
	if err != nil {
		return err
	}
	if index < 0 || index >= len(ws.Documents) {
		return workspace.ErrBadDocument
	}
	if confirmation != ws.Documents[index].DisplayName {
		return workspace.ErrConfirmMismatch
	}
	if err := ws.RemoveDocument(index); err != nil {
		return err
	}
	s.saveActive(ctx)
	return nil
}

func (s *Service) SelectDocument(ctx context.Context, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, err := s.requireActive()
	if err != nil {
		return err
	}
	if index < 0 || index >= len(ws.Documents) {
		return workspace.ErrBadDocument
	}
	ws.ActiveDoc = index
	ws.Page = 1
	s.saveActive(ctx)
	return nil
}

// SetPage moves the page cursor, clamped into the known page range.
func (s *Service) SetPage(ctx context.Context, page int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, err := s.requireActive()
	if err != nil {
		return 0, err
	}
	if page < 1 {
		page = 1
	}
	if doc := ws.ActiveDocument(); doc != nil && doc.PageCount > 0 && page > doc.PageCount {
		page = doc.PageCount
	}
	ws.Page = page
	s.saveActive(ctx)
	return ws.Page, nil
}

// ReportPageCount records the page count the rendering collaborator
// learned for a document.
func (s *Service) ReportPageCount(ctx context.Context, index, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, err := s.requireActive()
	if err != nil {
		return err
	}
	if err := ws.SetPageCount(index, count); err != nil {
		return err
	}
	// Clamp the cursor in case the reported count shrank the range.
	if doc := ws.ActiveDocument(); doc != nil && doc.PageCount > 0 && ws.Page > doc.PageCount {
		ws.Page = doc.PageCount
	}
	s.saveActive(ctx)
	return nil
}

// ── Placement flow ──

// StartPlacement re-encodes a picked photo and stages it, entering
// the awaiting state. Info mode turns off so the next tap places
// instead of inspecting.
func (s *Service) StartPlacement(ctx context.Context, data []byte, originalName, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, err := s.requireActive()
	if err != nil {
		return err
	}
	if len(ws.Documents) == 0 {
		return domainError(http.StatusConflict, "NO_DOCUMENTS", "Upload a plan document before placing points", nil)
	}
	if source != workspace.SourceCaptured && source != workspace.SourceUploaded {
		source = workspace.SourceUploaded
	}
	encoded, mime := imaging.Encode(data, s.cfg.PhotoMaxDim, s.cfg.PhotoQuality)
	name := strings.TrimSpace(originalName)
	if name == "" {
		if source == workspace.SourceCaptured {
			name = "camera.jpg"
		} else {
			name = "gallery.jpg"
		}
	}
	s.machine.Start(placement.StagedPhoto{
		Data:         encoded,
		MIMEType:     mime,
		OriginalName: name,
		Source:       source,
	})
	s.infoMode = false
	return nil
}

func (s *Service) PlaceAt(ctx context.Context, x, y, pageW, pageH float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, err := s.requireActive()
	if err != nil {
		return err
	}
	return s.machine.PlaceAt(ws, x, y, pageW, pageH, s.cfg.ProximityPx)
}

// ConfirmPlacement completes the flow with the name and comment
// response. Committed is false when the empty name aborted the flow.
func (s *Service) ConfirmPlacement(ctx context.Context, baseName, comment string) (PointView, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, err := s.requireActive()
	if err != nil {
		return PointView{}, false, err
	}
	pt, committed, err := s.machine.Confirm(ws, baseName, comment, s.sessionID, s.cfg.ProximityPx)
	if err != nil {
		return PointView{}, false, err
	}
	if !committed {
		return PointView{}, false, nil
	}
	s.saveActive(ctx)
	return pointView(pt), true, nil
}

func (s *Service) CancelPlacement(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine.Cancel()
}

func (s *Service) SetInfoMode(ctx context.Context, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.infoMode = on
}

func (s *Service) SetShowAllSessions(ctx context.Context, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.showAllSessions = on
}

// ── Points ──

func (s *Service) Points(ctx context.Context) []PointView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visiblePointsLocked()
}

func (s *Service) UpdatePoint(ctx context.Context, seq int, name, comment *string) (PointView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, err := s.requireActive()
	if err != nil {
		return PointView{}, err
	}
	pt, err := ws.UpdatePoint(seq, workspace.PointPatch{Name: name, Comment: comment})
	if err != nil {
		return PointView{}, err
	}
	s.saveActive(ctx)
	return pointView(pt), nil
}

func (s *Service) RemovePoint(ctx context.Context, seq int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, err := s.requireActive()
	if err != nil {
		return err
	}
	if err := ws.RemovePoint(seq); err != nil {
		return err
	}
	s.saveActive(ctx)
	return nil
}

// AttachPhoto binds a new photo to an existing point, replacing any
// previous one. The image goes through the same re-encoding as a
// placement photo.
func (s *Service) AttachPhoto(ctx context.Context, seq int, data []byte, originalName, source string) (PointView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, err := s.requireActive()
	if err != nil {
		return PointView{}, err
	}
	if source != workspace.SourceCaptured && source != workspace.SourceUploaded {
		source = workspace.SourceUploaded
	}
	encoded, mime := imaging.Encode(data, s.cfg.PhotoMaxDim, s.cfg.PhotoQuality)
	name := strings.TrimSpace(originalName)
	if name == "" {
		name = "photo.jpg"
	}
	photo := workspace.Photo{
		Data:         encoded,
		MIMEType:     mime,
		OriginalName: name,
		CaptureDate:  s.now().Format("2006-01-02"),
		Source:       source,
	}
	pt, err := ws.UpdatePoint(seq, workspace.PointPatch{Photo: &photo})
	if err != nil {
		return PointView{}, err
	}
	s.saveActive(ctx)
	return pointView(pt), nil
}

// PhotoDownload is a point photo prepared for download.
type PhotoDownload struct {
	Data     []byte
	Filename string
	MimeType string
}

func (s *Service) PointPhoto(ctx context.Context, seq int) (PhotoDownload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, err := s.requireActive()
	if err != nil {
		return PhotoDownload{}, err
	}
	pt, ok := ws.FindPoint(seq)
	if !ok {
		return PhotoDownload{}, workspace.ErrPointMissing
	}
	if !pt.HasPhoto() {
		return PhotoDownload{}, domainError(http.StatusNotFound, "NO_PHOTO", "Point has no photo", nil)
	}
	return PhotoDownload{
		Data:     pt.Photo.Data,
		Filename: pt.Photo.Source + "_" + pt.Photo.OriginalName,
		MimeType: pt.Photo.MIMEType,
	}, nil
}

// NearestPoint resolves an info-mode tap: the closest visible point
// on the current page within the proximity radius, or nil.
func (s *Service) NearestPoint(ctx context.Context, x, y, pageW, pageH float64) (*PointView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, err := s.requireActive()
	if err != nil {
		return nil, err
	}
	visible := ws.ListPoints(ws.ActiveDoc, ws.Page, s.sessionID, s.showAllSessions)
	positions := make([]geometry.Pos, len(visible))
	for i, p := range visible {
		positions[i] = geometry.Pos{X: p.X, Y: p.Y}
	}
	idx, dist := geometry.Nearest(geometry.Pos{X: x, Y: y}, positions, pageW, pageH)
	if idx < 0 || dist > s.cfg.ProximityPx {
		return nil, nil
	}
	view := pointView(visible[idx])
	return &view, nil
}

// ── Exports ──

func (s *Service) ExportArchive(ctx context.Context) (*export.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, err := s.requireActive()
	if err != nil {
		return nil, err
	}
	return export.WriteArchive(ws)
}

// ExportReport builds the XLSX table over the currently visible
// points, matching what the user sees on screen.
func (s *Service) ExportReport(ctx context.Context) (*export.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, err := s.requireActive()
	if err != nil {
		return nil, err
	}
	return export.BuildReport(ws.ListPoints(ws.ActiveDoc, ws.Page, s.sessionID, s.showAllSessions))
}

func (s *Service) FlattenView(ctx context.Context, surfaceURL string) (*export.Result, error) {
	s.mu.Lock()
	ws, err := s.requireActive()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.flattener == nil {
		s.mu.Unlock()
		return nil, domainError(http.StatusServiceUnavailable, "FLATTEN_UNAVAILABLE", "Flattened export is not configured", nil)
	}
	title := ws.Name
	flattener := s.flattener
	s.mu.Unlock()

	// Rendering runs outside the lock; it can take seconds.
	return export.FlattenSurface(ctx, flattener, surfaceURL, title)
}

// UploadArchive writes the archive and pushes it to object storage,
// returning the stored object name.
func (s *Service) UploadArchive(ctx context.Context) (string, error) {
	s.mu.Lock()
	ws, err := s.requireActive()
	if err != nil {
		s.mu.Unlock()
		return "", err
	}
	if s.uploader == nil {
		s.mu.Unlock()
		return "", domainError(http.StatusServiceUnavailable, "UPLOAD_UNAVAILABLE", "Archive upload is not configured", nil)
	}
	res, err := export.WriteArchive(ws)
	uploader := s.uploader
	s.mu.Unlock()
	if err != nil {
		return "", err
	}
	return uploader.Upload(ctx, res)
}

// ImportArchive restores a previously exported archive as a new
// workspace and opens it. The name must not collide with an existing
// workspace.
func (s *Service) ImportArchive(ctx context.Context, name string, data []byte) (StateView, error) {
	restored, err := export.ReadArchive(data)
	if err != nil {
		return StateView{}, err
	}

	s.mu.Lock()
	target := strings.TrimSpace(name)
	if target == "" {
		target = restored.Name
	}
	ws, err := s.workspaces.Create(ctx, target)
	if err != nil {
		s.mu.Unlock()
		return StateView{}, err
	}
	ws.Documents = restored.Documents
	ws.ActiveDoc = restored.ActiveDoc
	ws.Page = restored.Page
	ws.Points = restored.Points
	ws.SeqCounter = restored.SeqCounter
	s.openLocked(ws)
	s.saveActive(ctx)
	s.mu.Unlock()
	return s.State(ctx)
}

// ── History ──

func (s *Service) History(ctx context.Context, name string, limit int) ([]history.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.history == nil {
		return []history.Entry{}, nil
	}
	return s.history.Log(name, limit)
}

// Ping probes the persistence backend so readiness checks can report
// storage trouble before a field visit starts.
func (s *Service) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.workspaces.List(ctx)
	return err
}
