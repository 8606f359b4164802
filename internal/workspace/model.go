// Package workspace holds the RN data model: named sets of plan
// documents and annotation points, their registry operations, and the
// persistence lifecycle over a key-value store.
package workspace

import "errors"

// Photo source values.
const (
	SourceCaptured = "captured"
	SourceUploaded = "uploaded"
)

var (
	ErrTooClose     = errors.New("point is too close to an existing point")
	ErrBadPosition  = errors.New("position outside the page bounds")
	ErrBadDocument  = errors.New("document index out of range")
	ErrBadPage      = errors.New("page outside the document page count")
	ErrPointMissing = errors.New("point not found")
)

// Photo is an encoded raster image attached to a point. Data is raw
// encoded bytes in memory; JSON marshaling carries it base64-encoded.
type Photo struct {
	Data         []byte `json:"data,omitempty"`
	MIMEType     string `json:"mimeType,omitempty"`
	OriginalName string `json:"originalName,omitempty"`
	CaptureDate  string `json:"captureDate,omitempty"` // YYYY-MM-DD
	Source       string `json:"source,omitempty"`
}

// Point is one annotation anchored to a normalized position on a page
// of one plan document. Seq is assigned once and never reused.
type Point struct {
	Seq       int     `json:"seq"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	DocIndex  int     `json:"documentIndex"`
	Page      int     `json:"page"`
	Name      string  `json:"name"`
	Comment   string  `json:"comment"`
	Photo     *Photo  `json:"photo,omitempty"`
	SessionID string  `json:"sessionId"`
}

// HasPhoto reports whether the point carries an image payload.
func (p *Point) HasPhoto() bool {
	return p.Photo != nil && len(p.Photo.Data) > 0
}

// PlanDocument is an uploaded plan file. Data is the opaque source
// PDF; PageCount is learned from the rendering collaborator after the
// first render and stays 0 until then.
type PlanDocument struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Data        []byte `json:"data"`
	PageCount   int    `json:"pageCount"`
}

// Workspace is one RN: an independently persisted set of plan
// documents and points with a cursor and a monotonic sequence counter.
type Workspace struct {
	Name       string
	Documents  []PlanDocument
	ActiveDoc  int
	Page       int
	Points     []Point
	SeqCounter int
}

// NewWorkspace returns an empty workspace positioned on page 1.
func NewWorkspace(name string) *Workspace {
	return &Workspace{Name: name, Page: 1}
}

// ActiveDocument returns the document under the cursor, or nil when
// the workspace has no documents.
func (w *Workspace) ActiveDocument() *PlanDocument {
	if w.ActiveDoc < 0 || w.ActiveDoc >= len(w.Documents) {
		return nil
	}
	return &w.Documents[w.ActiveDoc]
}
