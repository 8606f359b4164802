// Package imaging re-encodes picked or captured photographs into a
// compact JPEG bounded by a maximum dimension. Placement must never be
// blocked by an unreadable image, so decode failures fall back to the
// original bytes untouched.
package imaging

import (
	"bytes"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"
	"net/http"

	"golang.org/x/image/draw"
)

const (
	DefaultMaxDimension = 800
	DefaultQuality      = 70
)

// Encode decodes raw image bytes, downscales uniformly so neither
// dimension exceeds maxDim (never upscaling) and re-encodes as JPEG at
// the given quality. It returns the encoded bytes and their MIME type.
// Undecodable input is returned as-is with a sniffed MIME type.
func Encode(raw []byte, maxDim, quality int) ([]byte, string) {
	if maxDim <= 0 {
		maxDim = DefaultMaxDimension
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return raw, sniffMIME(raw)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	larger := width
	if height > larger {
		larger = height
	}
	scale := 1.0
	if larger > maxDim {
		scale = float64(maxDim) / float64(larger)
	}
	targetW := int(math.Round(float64(width) * scale))
	targetH := int(math.Round(float64(height) * scale))
	if targetW < 1 {
		targetW = 1
	}
	if targetH < 1 {
		targetH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return raw, sniffMIME(raw)
	}
	return buf.Bytes(), "image/jpeg"
}

// Dimensions reports the pixel size of an encoded image.
func Dimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

func sniffMIME(data []byte) string {
	mime := http.DetectContentType(data)
	if mime == "application/octet-stream" {
		return "image/jpeg"
	}
	return mime
}
