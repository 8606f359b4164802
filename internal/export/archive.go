package export

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"planpoint/api/internal/workspace"
)

const manifestName = "manifest.json"

// ManifestDocument maps a document's display name to its stored entry
// path inside the archive.
type ManifestDocument struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// ManifestPoint is a point's full metadata with the photo payload
// replaced by a reference to its stored entry.
type ManifestPoint struct {
	Seq          int     `json:"seq"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	DocIndex     int     `json:"documentIndex"`
	Page         int     `json:"page"`
	Name         string  `json:"name"`
	Comment      string  `json:"comment"`
	OriginalName string  `json:"originalName,omitempty"`
	CaptureDate  string  `json:"captureDate,omitempty"`
	Source       string  `json:"source,omitempty"`
	SessionID    string  `json:"sessionId"`
	PhotoPath    string  `json:"photoPath,omitempty"`
}

// Manifest is the structured index of one archived workspace.
type Manifest struct {
	Workspace  string             `json:"workspace"`
	ActiveDoc  int                `json:"activeDocumentIndex"`
	Page       int                `json:"page"`
	SeqCounter int                `json:"seqCounter"`
	Documents  []ManifestDocument `json:"documents"`
	Points     []ManifestPoint    `json:"points"`
}

func photoExt(mime string) string {
	switch mime {
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	default:
		return "jpg"
	}
}

func photoMIME(path string) string {
	switch {
	case strings.HasSuffix(path, ".png"):
		return "image/png"
	case strings.HasSuffix(path, ".gif"):
		return "image/gif"
	default:
		return "image/jpeg"
	}
}

// WriteArchive serializes a workspace into a single zip: one binary
// entry per document under documents/, one per point photo under
// photos/ named from the point's seq (stable and collision-free across
// re-exports), and the manifest. Photo bytes are stored raw, never
// embedded in the manifest.
func WriteArchive(w *workspace.Workspace) (*Result, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	manifest := Manifest{
		Workspace:  w.Name,
		ActiveDoc:  w.ActiveDoc,
		Page:       w.Page,
		SeqCounter: w.SeqCounter,
		Documents:  []ManifestDocument{},
		Points:     []ManifestPoint{},
	}

	// Display names are user-chosen and may repeat; entry paths must
	// not, so duplicates get a numeric suffix. The manifest carries
	// the name-to-path mapping either way.
	used := map[string]int{}
	for i, doc := range w.Documents {
		name := doc.DisplayName
		if name == "" {
			name = fmt.Sprintf("plan_%d.pdf", i+1)
		}
		entry := name
		if n := used[name]; n > 0 {
			entry = fmt.Sprintf("%d_%s", n+1, name)
		}
		used[name]++

		path := "documents/" + entry
		fw, err := zw.Create(path)
		if err != nil {
			return nil, fmt.Errorf("create archive entry %q: %w", path, err)
		}
		if _, err := fw.Write(doc.Data); err != nil {
			return nil, fmt.Errorf("write archive entry %q: %w", path, err)
		}
		manifest.Documents = append(manifest.Documents, ManifestDocument{Name: name, Path: path})
	}

	for _, p := range w.Points {
		mp := ManifestPoint{
			Seq:       p.Seq,
			X:         p.X,
			Y:         p.Y,
			DocIndex:  p.DocIndex,
			Page:      p.Page,
			Name:      p.Name,
			Comment:   p.Comment,
			SessionID: p.SessionID,
		}
		if p.Photo != nil {
			mp.OriginalName = p.Photo.OriginalName
			mp.CaptureDate = p.Photo.CaptureDate
			mp.Source = p.Photo.Source
		}
		if p.HasPhoto() {
			path := fmt.Sprintf("photos/pt_%d.%s", p.Seq, photoExt(p.Photo.MIMEType))
			fw, err := zw.Create(path)
			if err != nil {
				return nil, fmt.Errorf("create archive entry %q: %w", path, err)
			}
			if _, err := fw.Write(p.Photo.Data); err != nil {
				return nil, fmt.Errorf("write archive entry %q: %w", path, err)
			}
			mp.PhotoPath = path
		}
		manifest.Points = append(manifest.Points, mp)
	}

	payload, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	fw, err := zw.Create(manifestName)
	if err != nil {
		return nil, fmt.Errorf("create manifest entry: %w", err)
	}
	if _, err := fw.Write(payload); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}

	return &Result{
		Data:     buf.Bytes(),
		Filename: sanitizeFilename(w.Name) + ".zip",
		MimeType: "application/zip",
	}, nil
}

// ReadArchive reconstructs a workspace from an archive produced by
// WriteArchive. Document identifiers are regenerated; everything else
// round-trips.
func ReadArchive(data []byte) (*workspace.Workspace, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	entries := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open archive entry %q: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read archive entry %q: %w", f.Name, err)
		}
		entries[f.Name] = content
	}

	rawManifest, ok := entries[manifestName]
	if !ok {
		return nil, fmt.Errorf("archive has no %s", manifestName)
	}
	var manifest Manifest
	if err := json.Unmarshal(rawManifest, &manifest); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	w := workspace.NewWorkspace(manifest.Workspace)
	w.ActiveDoc = manifest.ActiveDoc
	w.SeqCounter = manifest.SeqCounter
	if manifest.Page > 0 {
		w.Page = manifest.Page
	}

	for _, md := range manifest.Documents {
		content, ok := entries[md.Path]
		if !ok {
			return nil, fmt.Errorf("manifest references missing entry %q", md.Path)
		}
		w.Documents = append(w.Documents, workspace.PlanDocument{
			ID:          uuid.NewString(),
			DisplayName: md.Name,
			Data:        content,
		})
	}

	for _, mp := range manifest.Points {
		p := workspace.Point{
			Seq:       mp.Seq,
			X:         mp.X,
			Y:         mp.Y,
			DocIndex:  mp.DocIndex,
			Page:      mp.Page,
			Name:      mp.Name,
			Comment:   mp.Comment,
			SessionID: mp.SessionID,
		}
		if mp.PhotoPath != "" {
			content, ok := entries[mp.PhotoPath]
			if !ok {
				return nil, fmt.Errorf("manifest references missing entry %q", mp.PhotoPath)
			}
			p.Photo = &workspace.Photo{
				Data:         content,
				MIMEType:     photoMIME(mp.PhotoPath),
				OriginalName: mp.OriginalName,
				CaptureDate:  mp.CaptureDate,
				Source:       mp.Source,
			}
		} else if mp.OriginalName != "" || mp.CaptureDate != "" || mp.Source != "" {
			p.Photo = &workspace.Photo{
				OriginalName: mp.OriginalName,
				CaptureDate:  mp.CaptureDate,
				Source:       mp.Source,
			}
		}
		w.Points = append(w.Points, p)
	}

	if w.ActiveDoc < 0 || w.ActiveDoc >= len(w.Documents) {
		w.ActiveDoc = 0
	}
	return w, nil
}
