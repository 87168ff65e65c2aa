// Package raster holds the bitmap transforms the page-fitting search needs:
// decoding, high-quality downscaling, alpha flattening and JPEG re-encoding.
package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"strings"

	"golang.org/x/image/draw"
)

// Bitmap is a decoded page image together with its original encoded form.
// The encoded bytes are kept so the unmodified image can be embedded without
// a decode/re-encode round trip.
type Bitmap struct {
	Image   image.Image
	Encoded []byte // original encoded bytes; nil after a transform
	Format  string // "JPEG", "PNG", ... as reported by the stdlib decoder
}

// Width returns the bitmap width in pixels.
func (b *Bitmap) Width() int { return b.Image.Bounds().Dx() }

// Height returns the bitmap height in pixels.
func (b *Bitmap) Height() int { return b.Image.Bounds().Dy() }

// Pixels returns the total pixel count.
func (b *Bitmap) Pixels() int { return b.Width() * b.Height() }

// LongestDim returns the larger of width and height.
func (b *Bitmap) LongestDim() int {
	w, h := b.Width(), b.Height()
	if w > h {
		return w
	}
	return h
}

// Decode parses encoded image data into a Bitmap, keeping the original
// bytes alongside the decoded pixels.
func Decode(data []byte) (*Bitmap, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return &Bitmap{
		Image:   img,
		Encoded: data,
		Format:  strings.ToUpper(format),
	}, nil
}

// Resize scales the bitmap uniformly by scale using CatmullRom resampling.
// The result is a fresh RGBA bitmap with no encoded form; dimensions are
// clamped to at least 1px.
func Resize(bm *Bitmap, scale float64) *Bitmap {
	w := int(float64(bm.Width())*scale + 0.5)
	h := int(float64(bm.Height())*scale + 0.5)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), bm.Image, bm.Image.Bounds(), draw.Over, nil)
	return &Bitmap{Image: dst, Format: "RGBA"}
}

// ClampPixels downscales the bitmap uniformly so that its pixel count does
// not exceed maxPixels, returning the transformed bitmap and the scale that
// was applied (1.0 when the bitmap already fits).
func ClampPixels(bm *Bitmap, maxPixels int) (*Bitmap, float64) {
	if bm.Pixels() <= maxPixels {
		return bm, 1.0
	}
	scale := math.Sqrt(float64(maxPixels) / float64(bm.Pixels()))
	return Resize(bm, scale), scale
}

// EncodeJPEG re-encodes the bitmap as a 3-channel JPEG at the given quality.
// Any transparency is flattened onto a white background first, since JPEG
// carries no alpha channel.
func EncodeJPEG(bm *Bitmap, quality int) ([]byte, error) {
	img := Flatten(bm.Image)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("jpeg encode failed: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodePNG encodes the bitmap losslessly. Used when a transformed bitmap
// needs an unrecompressed representation (PNG, unlike JPEG, loses nothing).
func EncodePNG(bm *Bitmap) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, bm.Image); err != nil {
		return nil, fmt.Errorf("png encode failed: %w", err)
	}
	return buf.Bytes(), nil
}

// Flatten composites the image over an opaque white background, producing a
// fully opaque RGBA image. Already-opaque images still get copied so the
// result never aliases the input pixels.
func Flatten(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Over)
	return dst
}
