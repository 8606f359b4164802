// Package geometry holds the normalized-coordinate math for plan
// annotations. Positions are stored resolution-independent in
// [0,1]x[0,1] and only become pixels against a concrete rendered page.
package geometry

import "math"

// DefaultMinSeparationPx is the minimum marker separation on the
// rendered page. Markers may touch but must stay distinguishable.
const DefaultMinSeparationPx = 18.0

// Pos is a normalized position on a rendered page.
type Pos struct {
	X float64
	Y float64
}

// InUnitSquare reports whether the position lies inside [0,1]x[0,1].
func (p Pos) InUnitSquare() bool {
	return p.X >= 0 && p.X <= 1 && p.Y >= 0 && p.Y <= 1
}

// PixelDistance returns the Euclidean distance in pixels between two
// normalized positions on a page rendered at pageW x pageH pixels.
func PixelDistance(a, b Pos, pageW, pageH float64) float64 {
	dx := (a.X - b.X) * pageW
	dy := (a.Y - b.Y) * pageH
	return math.Hypot(dx, dy)
}

// TooClose reports whether the candidate position lands strictly closer
// than minPx pixels to any of the existing positions. Callers are
// expected to pre-filter existing to the same document and page; the
// rule is meaningless across pages.
func TooClose(candidate Pos, existing []Pos, pageW, pageH, minPx float64) bool {
	if minPx <= 0 {
		minPx = DefaultMinSeparationPx
	}
	for _, p := range existing {
		if PixelDistance(candidate, p, pageW, pageH) < minPx {
			return true
		}
	}
	return false
}

// Nearest returns the index of the existing position closest to the
// candidate, and the distance in pixels. It returns -1 when existing
// is empty.
func Nearest(candidate Pos, existing []Pos, pageW, pageH float64) (int, float64) {
	best := -1
	bestDist := math.Inf(1)
	for i, p := range existing {
		d := PixelDistance(candidate, p, pageW, pageH)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best, bestDist
}
