package workspace

import (
	"fmt"

	"planpoint/api/internal/geometry"
)

// PointPatch mutates the editable fields of a point. Nil fields are
// left untouched. Seq, position and placement location never change.
type PointPatch struct {
	Name    *string
	Comment *string
	Photo   *Photo
}

// ListPoints returns the points on the given document and page,
// restricted to one session unless showAll is set. Order follows
// insertion order.
func (w *Workspace) ListPoints(docIndex, page int, sessionID string, showAll bool) []Point {
	out := make([]Point, 0)
	for _, p := range w.Points {
		if p.DocIndex != docIndex || p.Page != page {
			continue
		}
		if !showAll && p.SessionID != sessionID {
			continue
		}
		out = append(out, p)
	}
	return out
}

// pagePositions collects the normalized positions sharing the given
// document and page, across all sessions.
func (w *Workspace) pagePositions(docIndex, page int) []geometry.Pos {
	out := make([]geometry.Pos, 0)
	for _, p := range w.Points {
		if p.DocIndex == docIndex && p.Page == page {
			out = append(out, geometry.Pos{X: p.X, Y: p.Y})
		}
	}
	return out
}

// TooClose applies the minimum-separation rule for a candidate
// position against the points already on the same document and page,
// using the current rendered page size in pixels.
func (w *Workspace) TooClose(x, y float64, docIndex, page int, pageW, pageH, minPx float64) bool {
	return geometry.TooClose(geometry.Pos{X: x, Y: y}, w.pagePositions(docIndex, page), pageW, pageH, minPx)
}

// AddPoint validates and appends a point, assigning the next sequence
// value. The proximity rule is re-checked here as a safety net even
// though the placement flow already applied it. On any rejection the
// workspace is left unchanged.
func (w *Workspace) AddPoint(p Point, pageW, pageH, minPx float64) (Point, error) {
	if !(geometry.Pos{X: p.X, Y: p.Y}).InUnitSquare() {
		return Point{}, ErrBadPosition
	}
	if p.DocIndex < 0 || p.DocIndex >= len(w.Documents) {
		return Point{}, ErrBadDocument
	}
	doc := w.Documents[p.DocIndex]
	if p.Page < 1 || (doc.PageCount > 0 && p.Page > doc.PageCount) {
		return Point{}, ErrBadPage
	}
	if w.TooClose(p.X, p.Y, p.DocIndex, p.Page, pageW, pageH, minPx) {
		return Point{}, ErrTooClose
	}

	p.Seq = w.SeqCounter + 1
	w.SeqCounter = p.Seq
	w.Points = append(w.Points, p)
	return p, nil
}

// FindPoint returns the point with the given sequence value.
func (w *Workspace) FindPoint(seq int) (*Point, bool) {
	for i := range w.Points {
		if w.Points[i].Seq == seq {
			return &w.Points[i], true
		}
	}
	return nil, false
}

// UpdatePoint applies a patch to the point with the given sequence.
func (w *Workspace) UpdatePoint(seq int, patch PointPatch) (Point, error) {
	p, ok := w.FindPoint(seq)
	if !ok {
		return Point{}, fmt.Errorf("update point %d: %w", seq, ErrPointMissing)
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Comment != nil {
		p.Comment = *patch.Comment
	}
	if patch.Photo != nil {
		p.Photo = patch.Photo
	}
	return *p, nil
}

// RemovePoint deletes the point with the given sequence. Remaining
// points keep their sequence values; numbers are never reused.
func (w *Workspace) RemovePoint(seq int) error {
	for i := range w.Points {
		if w.Points[i].Seq == seq {
			w.Points = append(w.Points[:i], w.Points[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("remove point %d: %w", seq, ErrPointMissing)
}

// AddDocument appends a plan document and moves the cursor onto it.
func (w *Workspace) AddDocument(doc PlanDocument) {
	w.Documents = append(w.Documents, doc)
	w.ActiveDoc = len(w.Documents) - 1
	w.Page = 1
}

// RenameDocument changes a document's display name.
func (w *Workspace) RenameDocument(index int, displayName string) error {
	if index < 0 || index >= len(w.Documents) {
		return ErrBadDocument
	}
	w.Documents[index].DisplayName = displayName
	return nil
}

// SetPageCount records the page count learned from the first render.
func (w *Workspace) SetPageCount(index, count int) error {
	if index < 0 || index >= len(w.Documents) {
		return ErrBadDocument
	}
	if count < 1 {
		count = 1
	}
	w.Documents[index].PageCount = count
	return nil
}

// RemoveDocument deletes a document, cascades to its points and
// shifts later document indices down so no point is left dangling.
func (w *Workspace) RemoveDocument(index int) error {
	if index < 0 || index >= len(w.Documents) {
		return ErrBadDocument
	}

	kept := w.Points[:0]
	for _, p := range w.Points {
		if p.DocIndex == index {
			continue
		}
		if p.DocIndex > index {
			p.DocIndex--
		}
		kept = append(kept, p)
	}
	w.Points = kept
	w.Documents = append(w.Documents[:index], w.Documents[index+1:]...)

	if len(w.Documents) == 0 {
		w.ActiveDoc = 0
	} else if index > 0 {
		w.ActiveDoc = index - 1
	} else {
		w.ActiveDoc = 0
	}
	w.Page = 1
	return nil
}
