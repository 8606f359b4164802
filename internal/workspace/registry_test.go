package workspace

import (
	"errors"
	"testing"
)

const (
	testPageW = 1000.0
	testPageH = 800.0
	testMinPx = 18.0
)

func testWorkspace(docs int) *Workspace {
	w := NewWorkspace("RN1")
	for i := 0; i < docs; i++ {
		w.Documents = append(w.Documents, PlanDocument{
			ID:          "doc",
			DisplayName: "plan.pdf",
			Data:        []byte("%PDF-1.4"),
			PageCount:   3,
		})
	}
	return w
}

func mustAdd(t *testing.T, w *Workspace, p Point) Point {
	t.Helper()
	added, err := w.AddPoint(p, testPageW, testPageH, testMinPx)
	if err != nil {
		t.Fatalf("AddPoint(%+v) failed: %v", p, err)
	}
	return added
}

func TestAddPointAssignsIncreasingSeq(t *testing.T) {
	w := testWorkspace(1)

	first := mustAdd(t, w, Point{X: 0.1, Y: 0.1, Page: 1, SessionID: "s1"})
	second := mustAdd(t, w, Point{X: 0.5, Y: 0.5, Page: 1, SessionID: "s1"})
	if first.Seq != 1 || second.Seq != 2 {
		t.Fatalf("seq = %d, %d; want 1, 2", first.Seq, second.Seq)
	}

	// Removal must not free the number for reuse.
	if err := w.RemovePoint(2); err != nil {
		t.Fatalf("RemovePoint failed: %v", err)
	}
	third := mustAdd(t, w, Point{X: 0.9, Y: 0.9, Page: 1, SessionID: "s1"})
	if third.Seq != 3 {
		t.Fatalf("seq after remove = %d, want 3", third.Seq)
	}
}

func TestAddPointProximityRejection(t *testing.T) {
	w := testWorkspace(1)
	mustAdd(t, w, Point{X: 0.5, Y: 0.5, Page: 1, SessionID: "s1"})

	// 10px away on a 1000px wide page.
	_, err := w.AddPoint(Point{X: 0.51, Y: 0.5, Page: 1, SessionID: "s1"}, testPageW, testPageH, testMinPx)
	if !errors.Is(err, ErrTooClose) {
		t.Fatalf("AddPoint error = %v, want ErrTooClose", err)
	}
	if len(w.Points) != 1 || w.SeqCounter != 1 {
		t.Fatalf("rejected add mutated the registry: %d points, counter %d", len(w.Points), w.SeqCounter)
	}
}

func TestProximityScopedToDocumentAndPage(t *testing.T) {
	w := testWorkspace(2)
	mustAdd(t, w, Point{X: 0.5, Y: 0.5, Page: 1, SessionID: "s1"})

	// Same position on another page and another document is fine.
	mustAdd(t, w, Point{X: 0.5, Y: 0.5, Page: 2, SessionID: "s1"})
	mustAdd(t, w, Point{X: 0.5, Y: 0.5, DocIndex: 1, Page: 1, SessionID: "s1"})
}

func TestAddPointValidation(t *testing.T) {
	w := testWorkspace(1)

	tests := []struct {
		name string
		p    Point
		want error
	}{
		{"x above one", Point{X: 1.2, Y: 0.5, Page: 1}, ErrBadPosition},
		{"negative y", Point{X: 0.5, Y: -0.1, Page: 1}, ErrBadPosition},
		{"document out of range", Point{X: 0.5, Y: 0.5, DocIndex: 3, Page: 1}, ErrBadDocument},
		{"page zero", Point{X: 0.5, Y: 0.5, Page: 0}, ErrBadPage},
		{"page beyond count", Point{X: 0.5, Y: 0.5, Page: 4}, ErrBadPage},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := w.AddPoint(tc.p, testPageW, testPageH, testMinPx)
			if !errors.Is(err, tc.want) {
				t.Fatalf("AddPoint error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestListPointsSessionFilter(t *testing.T) {
	w := testWorkspace(1)
	mustAdd(t, w, Point{X: 0.1, Y: 0.1, Page: 1, SessionID: "mine"})
	mustAdd(t, w, Point{X: 0.5, Y: 0.5, Page: 1, SessionID: "theirs"})
	mustAdd(t, w, Point{X: 0.9, Y: 0.9, Page: 2, SessionID: "mine"})

	mine := w.ListPoints(0, 1, "mine", false)
	if len(mine) != 1 || mine[0].Seq != 1 {
		t.Fatalf("session-filtered list = %+v, want only seq 1", mine)
	}

	all := w.ListPoints(0, 1, "mine", true)
	if len(all) != 2 {
		t.Fatalf("all-sessions list has %d points, want 2", len(all))
	}

	otherPage := w.ListPoints(0, 2, "mine", true)
	if len(otherPage) != 1 || otherPage[0].Seq != 3 {
		t.Fatalf("page 2 list = %+v, want only seq 3", otherPage)
	}
}

func TestUpdatePointEditableFieldsOnly(t *testing.T) {
	w := testWorkspace(1)
	added := mustAdd(t, w, Point{X: 0.5, Y: 0.5, Page: 1, Name: "old", SessionID: "s1"})

	name := "renamed"
	comment := "cable tray sealed"
	updated, err := w.UpdatePoint(added.Seq, PointPatch{Name: &name, Comment: &comment})
	if err != nil {
		t.Fatalf("UpdatePoint failed: %v", err)
	}
	if updated.Name != "renamed" || updated.Comment != "cable tray sealed" {
		t.Fatalf("patch not applied: %+v", updated)
	}
	if updated.Seq != added.Seq || updated.X != 0.5 || updated.Page != 1 {
		t.Fatalf("immutable fields changed: %+v", updated)
	}

	photo := &Photo{Data: []byte{0xff, 0xd8}, MIMEType: "image/jpeg", OriginalName: "a.jpg"}
	updated, err = w.UpdatePoint(added.Seq, PointPatch{Photo: photo})
	if err != nil {
		t.Fatalf("UpdatePoint photo failed: %v", err)
	}
	if !updated.HasPhoto() || updated.Name != "renamed" {
		t.Fatalf("photo patch clobbered other fields: %+v", updated)
	}

	if _, err := w.UpdatePoint(99, PointPatch{Name: &name}); !errors.Is(err, ErrPointMissing) {
		t.Fatalf("UpdatePoint(99) error = %v, want ErrPointMissing", err)
	}
}

func TestRemoveDocumentCascadesAndReindexes(t *testing.T) {
	w := testWorkspace(2)
	mustAdd(t, w, Point{X: 0.1, Y: 0.1, DocIndex: 0, Page: 1, SessionID: "s1"})
	mustAdd(t, w, Point{X: 0.5, Y: 0.5, DocIndex: 0, Page: 1, SessionID: "s1"})
	mustAdd(t, w, Point{X: 0.5, Y: 0.5, DocIndex: 1, Page: 1, SessionID: "s1"})

	if err := w.RemoveDocument(0); err != nil {
		t.Fatalf("RemoveDocument failed: %v", err)
	}

	if len(w.Documents) != 1 {
		t.Fatalf("documents left = %d, want 1", len(w.Documents))
	}
	if len(w.Points) != 1 {
		t.Fatalf("points left = %d, want 1", len(w.Points))
	}
	if w.Points[0].Seq != 3 || w.Points[0].DocIndex != 0 {
		t.Fatalf("survivor = %+v, want seq 3 on document 0", w.Points[0])
	}
	for _, p := range w.Points {
		if p.DocIndex >= len(w.Documents) {
			t.Fatalf("point %d left dangling past document list", p.Seq)
		}
	}
	if w.ActiveDoc != 0 || w.Page != 1 {
		t.Fatalf("cursor = doc %d page %d, want doc 0 page 1", w.ActiveDoc, w.Page)
	}
}

func TestRemoveLastDocumentResetsCursor(t *testing.T) {
	w := testWorkspace(1)
	mustAdd(t, w, Point{X: 0.5, Y: 0.5, Page: 1, SessionID: "s1"})

	if err := w.RemoveDocument(0); err != nil {
		t.Fatalf("RemoveDocument failed: %v", err)
	}
	if len(w.Documents) != 0 || len(w.Points) != 0 {
		t.Fatalf("workspace not emptied: %d docs, %d points", len(w.Documents), len(w.Points))
	}
	if w.ActiveDoc != 0 || w.Page != 1 {
		t.Fatalf("cursor = doc %d page %d, want doc 0 page 1", w.ActiveDoc, w.Page)
	}
}

func TestSetPageCount(t *testing.T) {
	w := testWorkspace(1)
	if err := w.SetPageCount(0, 7); err != nil {
		t.Fatalf("SetPageCount failed: %v", err)
	}
	if w.Documents[0].PageCount != 7 {
		t.Fatalf("page count = %d, want 7", w.Documents[0].PageCount)
	}
	if err := w.SetPageCount(0, 0); err != nil {
		t.Fatalf("SetPageCount failed: %v", err)
	}
	if w.Documents[0].PageCount != 1 {
		t.Fatalf("page count = %d, want clamp to 1", w.Documents[0].PageCount)
	}
	if err := w.SetPageCount(5, 2); !errors.Is(err, ErrBadDocument) {
		t.Fatalf("SetPageCount(5) error = %v, want ErrBadDocument", err)
	}
}
