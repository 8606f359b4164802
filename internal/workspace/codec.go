package workspace

import (
	"encoding/json"
	"fmt"
)

// persistedWorkspace is the stored shape of one RN blob. Blobs written
// by older builds may omit fields, so decoding fills defaults instead
// of trusting the loaded shape.
type persistedWorkspace struct {
	Documents  []PlanDocument `json:"documents"`
	ActiveDoc  int            `json:"activeDocumentIndex"`
	Page       int            `json:"page"`
	Points     []Point        `json:"points"`
	SeqCounter int            `json:"seqCounter"`
}

// EncodeWorkspace serializes a workspace into its persisted blob. The
// workspace name is the storage key, not part of the blob.
func EncodeWorkspace(w *Workspace) ([]byte, error) {
	blob := persistedWorkspace{
		Documents:  w.Documents,
		ActiveDoc:  w.ActiveDoc,
		Page:       w.Page,
		Points:     w.Points,
		SeqCounter: w.SeqCounter,
	}
	data, err := json.Marshal(blob)
	if err != nil {
		return nil, fmt.Errorf("encode workspace %q: %w", w.Name, err)
	}
	return data, nil
}

// DecodeWorkspace parses a persisted blob, filling defaults for
// anything missing: empty slices, cursor on page 1, zero counter.
func DecodeWorkspace(name string, data []byte) (*Workspace, error) {
	var blob persistedWorkspace
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, fmt.Errorf("decode workspace %q: %w", name, err)
	}

	w := &Workspace{
		Name:       name,
		Documents:  blob.Documents,
		ActiveDoc:  blob.ActiveDoc,
		Page:       blob.Page,
		Points:     blob.Points,
		SeqCounter: blob.SeqCounter,
	}
	if w.Documents == nil {
		w.Documents = []PlanDocument{}
	}
	if w.Points == nil {
		w.Points = []Point{}
	}
	if w.ActiveDoc < 0 || w.ActiveDoc >= len(w.Documents) {
		w.ActiveDoc = 0
	}
	if w.Page < 1 {
		w.Page = 1
	}
	if w.SeqCounter < 0 {
		w.SeqCounter = 0
	}
	return w, nil
}
