// Package render declares the contracts for the presentation-side
// collaborators the engine calls through: the plan page renderer, the
// photo picker and the on-screen surface flattener. Implementations
// live in the UI layer or in export; the engine only depends on the
// contracts.
package render

import (
	"context"
	"errors"
)

// ErrDecode reports an unreadable plan file or an unrenderable page.
var ErrDecode = errors.New("plan decode failed")

// PageInfo describes one rendered plan page.
type PageInfo struct {
	Width     float64
	Height    float64
	PageCount int
}

// Renderer turns plan bytes and a page number into rendered page
// dimensions and a page count. A decode failure is reported as
// ErrDecode, distinct from transient errors.
type Renderer interface {
	RenderPage(ctx context.Context, plan []byte, page int) (PageInfo, error)
}

// PickedFile is the outcome of a photo pick. A nil result from Picker
// means the user cancelled.
type PickedFile struct {
	Name string
	Data []byte
}

// Picker asks the user for a single image, preferring the camera or
// the library.
type Picker interface {
	Pick(ctx context.Context, preferCamera bool) (*PickedFile, error)
}

// Flattener renders a DOM-like surface reference into one encoded
// raster image of that surface.
type Flattener interface {
	Flatten(ctx context.Context, surfaceURL string) ([]byte, error)
}
