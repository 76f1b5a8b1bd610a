package pack

import (
	"fmt"
	"image"
)

// Builder accumulates layers, masks and composites and produces an
// immutable Pack. Construction errors (canvas overflow, bad indices,
// name collisions) are hard errors surfaced immediately; nothing is
// silently coerced.
type Builder struct {
	width  int
	height int

	layers     []*Layer
	masks      []*Mask
	composites []Composite
	metadata   map[string]any
}

// NewBuilder starts a pack on a fixed canvas.
func NewBuilder(width, height int) (*Builder, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("pack: invalid canvas size %dx%d", width, height)
	}
	return &Builder{
		width:    width,
		height:   height,
		metadata: make(map[string]any),
	}, nil
}

// AddLayer appends a layer and returns its index. The patch, placed at
// its offset, must lie within the canvas.
func (b *Builder) AddLayer(l Layer) (int, error) {
	if l.Patch == nil || l.Patch.Bounds().Dx() == 0 || l.Patch.Bounds().Dy() == 0 {
		return 0, fmt.Errorf("pack: layer %q has a zero-size patch", l.Name)
	}
	if l.OffsetX < 0 || l.OffsetY < 0 ||
		l.OffsetX+l.Patch.Bounds().Dx() > b.width ||
		l.OffsetY+l.Patch.Bounds().Dy() > b.height {
		return 0, fmt.Errorf("pack: layer %q (%dx%d at %d,%d) exceeds %dx%d canvas",
			l.Name, l.Patch.Bounds().Dx(), l.Patch.Bounds().Dy(), l.OffsetX, l.OffsetY, b.width, b.height)
	}
	b.layers = append(b.layers, &l)
	return len(b.layers) - 1, nil
}

// AddMask appends a mask and returns its index. ApplyOn entries must
// reference already-added IsBase layers; a non-sentinel bitmap must lie
// within the canvas; a projective quad must be usable.
func (b *Builder) AddMask(m Mask) (int, error) {
	if m.Bitmap != nil {
		mb := m.Bitmap.Bounds()
		if mb.Dx() == 0 || mb.Dy() == 0 {
			return 0, fmt.Errorf("pack: mask %q has a zero-size bitmap", m.Name)
		}
		if m.OffsetX < 0 || m.OffsetY < 0 ||
			m.OffsetX+mb.Dx() > b.width || m.OffsetY+mb.Dy() > b.height {
			return 0, fmt.Errorf("pack: mask %q (%dx%d at %d,%d) exceeds %dx%d canvas",
				m.Name, mb.Dx(), mb.Dy(), m.OffsetX, m.OffsetY, b.width, b.height)
		}
	}
	if m.Projective != nil {
		if err := m.Projective.Validate(); err != nil {
			return 0, fmt.Errorf("pack: mask %q: %w", m.Name, err)
		}
	}
	for _, li := range m.ApplyOn {
		if li < 0 || li >= len(b.layers) {
			return 0, fmt.Errorf("pack: mask %q applies to layer %d out of range", m.Name, li)
		}
		if !b.layers[li].IsBase {
			return 0, fmt.Errorf("pack: mask %q applies to non-base layer %d", m.Name, li)
		}
	}
	b.masks = append(b.masks, &m)
	return len(b.masks) - 1, nil
}

// AddComposite appends a named layer stack and returns its index.
func (b *Builder) AddComposite(name string, layers []int) (int, error) {
	if len(layers) == 0 {
		return 0, fmt.Errorf("pack: composite %q has no layers", name)
	}
	for _, li := range layers {
		if li < 0 || li >= len(b.layers) {
			return 0, fmt.Errorf("pack: composite %q references layer %d out of range", name, li)
		}
	}
	b.composites = append(b.composites, Composite{Layers: append([]int(nil), layers...), Name: name})
	return len(b.composites) - 1, nil
}

// SetMetadata records an opaque metadata entry.
func (b *Builder) SetMetadata(key string, value any) {
	b.metadata[key] = value
}

// Build validates cross-cutting invariants and freezes the pack.
// Explicit layer and mask names share one raster-entry namespace and
// must be unique; empty names are auto-assigned at save time.
func (b *Builder) Build() (*Pack, error) {
	if len(b.layers) == 0 {
		return nil, fmt.Errorf("pack: cannot build an empty pack")
	}
	seen := make(map[string]string, len(b.layers)+len(b.masks))
	claim := func(name, what string) error {
		if name == "" {
			return nil
		}
		if prev, dup := seen[name]; dup {
			return fmt.Errorf("pack: raster entry name %q used by both %s and %s", name, prev, what)
		}
		seen[name] = what
		return nil
	}
	for i, l := range b.layers {
		if err := claim(l.Name, fmt.Sprintf("layer %d", i)); err != nil {
			return nil, err
		}
	}
	for i, m := range b.masks {
		if m.Bitmap == nil {
			continue
		}
		if err := claim(m.Name, fmt.Sprintf("mask %d", i)); err != nil {
			return nil, err
		}
	}

	return &Pack{
		Width:      b.width,
		Height:     b.height,
		Layers:     b.layers,
		Masks:      b.masks,
		Composites: b.composites,
		Metadata:   b.metadata,
	}, nil
}

// OptimizeMasks replaces each mask bitmap that exactly covers the opaque
// footprint of every relevant layer with the full-coverage sentinel.
// Exact replacement only: any pixel of disagreement keeps the bitmap.
func (b *Builder) OptimizeMasks() {
	for _, m := range b.masks {
		if m.Bitmap == nil {
			continue
		}

		full := materializeMask(m, b.width, b.height)
		fullyCovers := true
		allSet := true
		for _, v := range full.Pix {
			if v == 0 {
				allSet = false
				break
			}
		}
		if !allSet {
			relevant := m.ApplyOn
			if len(relevant) == 0 {
				for i, l := range b.layers {
					if l.IsBase {
						relevant = append(relevant, i)
					}
				}
			}
			for _, li := range relevant {
				if !maskCoversLayer(full, b.layers[li]) {
					fullyCovers = false
					break
				}
			}
		}
		if fullyCovers {
			m.Bitmap = nil
			m.OffsetX = 0
			m.OffsetY = 0
			m.Name = ""
		}
	}
}

// maskCoversLayer reports whether the set of selected opaque pixels of
// the layer equals the layer's whole opaque footprint.
func maskCoversLayer(full *image.Gray, l *Layer) bool {
	b := l.Patch.Bounds()
	for row := 0; row < b.Dy(); row++ {
		si := l.Patch.PixOffset(b.Min.X, b.Min.Y+row)
		mi := (l.OffsetY+row)*full.Stride + l.OffsetX
		for col := 0; col < b.Dx(); col++ {
			if l.Patch.Pix[si+3] > 0 && full.Pix[mi] == 0 {
				return false
			}
			si += 4
			mi++
		}
	}
	return true
}

// materializeMask paints the mask bitmap onto a canvas-sized Gray at its
// offset. The sentinel materializes as all-selected.
func materializeMask(m *Mask, canvasW, canvasH int) *image.Gray {
	full := image.NewGray(image.Rect(0, 0, canvasW, canvasH))
	if m.Bitmap == nil {
		for i := range full.Pix {
			full.Pix[i] = 255
		}
		return full
	}
	mb := m.Bitmap.Bounds()
	for row := 0; row < mb.Dy(); row++ {
		si := m.Bitmap.PixOffset(mb.Min.X, mb.Min.Y+row)
		di := full.PixOffset(m.OffsetX, m.OffsetY+row)
		copy(full.Pix[di:di+mb.Dx()], m.Bitmap.Pix[si:si+mb.Dx()])
	}
	return full
}
