// Package pack implements the layered-asset data model: packs of shared,
// offset raster layers, recolorable mask regions and named composites.
// A Pack is immutable once built or loaded; every transformation (recolor
// fork, shrink) produces a new Pack that shares untouched pieces with its
// source by reference.
package pack

import (
	"fmt"
	"image"

	"assetpack/internal/pixmath"
)

// Color is an opaque sRGB color, serialized as "#RRGGBB".
type Color struct {
	R, G, B uint8
}

// ParseColor parses a "#RRGGBB" string.
func ParseColor(s string) (Color, error) {
	if len(s) != 7 || s[0] != '#' {
		return Color{}, fmt.Errorf("pack: invalid color %q", s)
	}
	var c Color
	if _, err := fmt.Sscanf(s[1:], "%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
		return Color{}, fmt.Errorf("pack: invalid color %q", s)
	}
	return c, nil
}

// Hex formats the color as "#rrggbb".
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// HSV converts the color to hue/saturation/value, all in [0, 1].
func (c Color) HSV() (h, s, v float64) {
	return pixmath.RGBToHSV(float64(c.R)/255, float64(c.G)/255, float64(c.B)/255)
}

// Layer is a minimal, possibly shared raster patch placed on the pack
// canvas at its offset. Layers are treated as immutable; the recolor
// engine replaces layers instead of editing their pixels.
type Layer struct {
	Patch   *image.NRGBA
	OffsetX int
	OffsetY int
	Name    string // raster entry basename; empty means auto-named on save

	// IsBase marks the layer eligible for mask-driven recoloring.
	IsBase bool
	// IsToggle marks the layer independently selectable.
	IsToggle bool
}

// Width returns the patch width in pixels.
func (l *Layer) Width() int { return l.Patch.Bounds().Dx() }

// Height returns the patch height in pixels.
func (l *Layer) Height() int { return l.Patch.Bounds().Dy() }

// Mask is a named selection region driving recoloring. A nil Bitmap is
// the full-coverage sentinel: every non-transparent pixel of the targeted
// layers is selected.
type Mask struct {
	Bitmap  *image.Gray // 0 = outside, 255 = selected; nil = sentinel
	OffsetX int
	OffsetY int
	Name    string

	// MaskColor is the neutral reference color: the hue/saturation/value
	// origin that recolor deltas are measured against.
	MaskColor Color

	// Projective, when set, allows image and text recolor arguments,
	// warped onto the quad. Without it only flat colors are accepted.
	Projective *pixmath.Quad

	// ApplyOn restricts the mask to these layer indices. Empty means all
	// IsBase layers.
	ApplyOn []int
}

// Size reports the mask bitmap size; the sentinel covers the whole
// canvas of the given pack dimensions.
func (m *Mask) Size(canvasW, canvasH int) (w, h int) {
	if m.Bitmap == nil {
		return canvasW, canvasH
	}
	b := m.Bitmap.Bounds()
	return b.Dx(), b.Dy()
}

// Composite is a named, bottom-to-top stack of layer indices forming one
// finished image.
type Composite struct {
	Layers []int
	Name   string
}

// Pack is the aggregate: a fixed canvas plus ordered layers, masks and
// composites, and opaque metadata that never affects pixel semantics.
type Pack struct {
	Width  int
	Height int

	Layers     []*Layer
	Masks      []*Mask
	Composites []Composite

	Metadata map[string]any
}

// Compose renders composite index i by alpha-compositing its layers onto
// a transparent canvas, each at its stored offset, bottom to top. When
// the composite is a single layer covering the whole canvas the layer's
// patch is returned directly; callers must treat the result as read-only.
func (p *Pack) Compose(i int) (*image.NRGBA, error) {
	if i < 0 || i >= len(p.Composites) {
		return nil, fmt.Errorf("pack: composite index %d out of range", i)
	}
	indices := p.Composites[i].Layers
	if len(indices) == 0 {
		return nil, fmt.Errorf("pack: composite %d has no layers", i)
	}
	if len(indices) == 1 {
		l := p.Layers[indices[0]]
		if l.OffsetX == 0 && l.OffsetY == 0 && l.Width() == p.Width && l.Height() == p.Height {
			return l.Patch, nil
		}
	}

	result := image.NewNRGBA(image.Rect(0, 0, p.Width, p.Height))
	for _, li := range indices {
		if li < 0 || li >= len(p.Layers) {
			return nil, fmt.Errorf("pack: composite %d references layer %d out of range", i, li)
		}
		extended := image.NewNRGBA(image.Rect(0, 0, p.Width, p.Height))
		drawPatch(extended, p.Layers[li])
		pixmath.Over(result, extended)
	}
	return result, nil
}

// CompositeIndexByName resolves a composite by its stored name.
func (p *Pack) CompositeIndexByName(name string) (int, bool) {
	for i, c := range p.Composites {
		if c.Name == name {
			return i, true
		}
	}
	return 0, false
}

// drawPatch copies a layer's pixels into a canvas-sized image at the
// layer's offset.
func drawPatch(dst *image.NRGBA, l *Layer) {
	b := l.Patch.Bounds()
	w := b.Dx()
	for row := 0; row < b.Dy(); row++ {
		si := l.Patch.PixOffset(b.Min.X, b.Min.Y+row)
		di := dst.PixOffset(l.OffsetX, l.OffsetY+row)
		copy(dst.Pix[di:di+w*4], l.Patch.Pix[si:si+w*4])
	}
}

// CropToContent trims img to the tight bounding box of its non-transparent
// pixels. Returns the cropped image and its offset, or ok=false when the
// image has no visible pixels at all.
func CropToContent(img *image.NRGBA) (cropped *image.NRGBA, offX, offY int, ok bool) {
	b := img.Bounds()
	minX, minY := b.Max.X, b.Max.Y
	maxX, maxY := b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := img.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.Pix[i+3] > 0 {
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
				if y < minY {
					minY = y
				}
				maxY = y
			}
			i += 4
		}
	}
	if maxX < minX {
		return nil, 0, 0, false
	}

	w := maxX - minX + 1
	h := maxY - minY + 1
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for row := 0; row < h; row++ {
		si := img.PixOffset(minX, minY+row)
		di := out.PixOffset(0, row)
		copy(out.Pix[di:di+w*4], img.Pix[si:si+w*4])
	}
	return out, minX - b.Min.X, minY - b.Min.Y, true
}
