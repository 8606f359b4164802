// Package placement implements the two-step photo-then-tap workflow
// that turns a picked photograph and a plan-surface tap into a
// committed annotation point.
package placement

import (
	"errors"
	"strings"
	"time"

	"planpoint/api/internal/workspace"
)

// Stage enumerates the machine states.
type Stage int

const (
	// StageIdle accepts no placements; taps are review-only.
	StageIdle Stage = iota
	// StageAwaiting holds a staged photo and waits for a surface tap.
	StageAwaiting
)

var (
	ErrNoStagedPhoto = errors.New("no staged photo awaiting placement")
	ErrNotPlaced     = errors.New("no pending placement to confirm")
)

// StagedPhoto is a photo picked or captured but not yet bound to a
// position.
type StagedPhoto struct {
	Data         []byte
	MIMEType     string
	OriginalName string
	Source       string
	CaptureDate  string // YYYY-MM-DD
}

// Machine drives the placement flow. It is not safe for concurrent
// use; the service serializes access.
type Machine struct {
	stage        Stage
	staged       *StagedPhoto
	placed       bool
	x, y         float64
	pageW, pageH float64

	// Now supplies the placement timestamp used for name suffixes
	// and photo dates. Tests pin it.
	Now func() time.Time
}

func New() *Machine {
	return &Machine{Now: time.Now}
}

func (m *Machine) Stage() Stage { return m.stage }

// StagedPhoto returns the currently staged photo, nil when idle.
func (m *Machine) StagedPhoto() *StagedPhoto { return m.staged }

// Placed reports whether a surface position has been accepted and the
// flow is waiting on the name/comment response.
func (m *Machine) Placed() bool { return m.placed }

// Start stages a photo and enters the awaiting state. Starting again
// before placing replaces the staged photo.
func (m *Machine) Start(photo StagedPhoto) {
	if photo.CaptureDate == "" {
		photo.CaptureDate = m.Now().Format("2006-01-02")
	}
	m.staged = &photo
	m.stage = StageAwaiting
	m.placed = false
}

// PlaceAt accepts a normalized surface tap. A tap too close to an
// existing point on the same document and page is rejected while the
// staged photo and state are preserved, so the user can retry.
func (m *Machine) PlaceAt(w *workspace.Workspace, x, y, pageW, pageH, minPx float64) error {
	if m.stage != StageAwaiting || m.staged == nil {
		return ErrNoStagedPhoto
	}
	if w.TooClose(x, y, w.ActiveDoc, w.Page, pageW, pageH, minPx) {
		return workspace.ErrTooClose
	}
	m.x, m.y = x, y
	m.pageW, m.pageH = pageW, pageH
	m.placed = true
	return nil
}

// Confirm completes a placed flow with the user's name and comment
// response. An empty name aborts the whole flow back to idle and
// discards the staged photo; committed is false and no point is
// created. On success the point is committed to the workspace with
// the name suffixed by the placement date (YYYYMMDD).
func (m *Machine) Confirm(w *workspace.Workspace, baseName, comment, sessionID string, minPx float64) (pt workspace.Point, committed bool, err error) {
	if !m.placed {
		return workspace.Point{}, false, ErrNotPlaced
	}

	baseName = strings.TrimSpace(baseName)
	if baseName == "" {
		m.reset()
		return workspace.Point{}, false, nil
	}

	staged := m.staged
	candidate := workspace.Point{
		X:        m.x,
		Y:        m.y,
		DocIndex: w.ActiveDoc,
		Page:     w.Page,
		Name:     baseName + m.Now().Format("20060102"),
		Comment:  comment,
		Photo: &workspace.Photo{
			Data:         staged.Data,
			MIMEType:     staged.MIMEType,
			OriginalName: staged.OriginalName,
			CaptureDate:  staged.CaptureDate,
			Source:       staged.Source,
		},
		SessionID: sessionID,
	}

	pt, err = w.AddPoint(candidate, m.pageW, m.pageH, minPx)
	if err != nil {
		// Registry-level rejection: keep the staged photo so the
		// user can retry at another position.
		m.placed = false
		return workspace.Point{}, false, err
	}
	m.reset()
	return pt, true, nil
}

// Cancel abandons the flow and discards the staged photo.
func (m *Machine) Cancel() {
	m.reset()
}

func (m *Machine) reset() {
	m.stage = StageIdle
	m.staged = nil
	m.placed = false
	m.x, m.y = 0, 0
	m.pageW, m.pageH = 0, 0
}
