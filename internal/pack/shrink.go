package pack

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"assetpack/internal/pixmath"
)

// Shrink derives a proportionally smaller Pack. Composites are shared
// with the receiver; layers are resampled with premultiplied-alpha
// Catmull-Rom filtering, mask bitmaps with nearest-neighbor so selection
// edges stay binary. The original canvas size is recorded in metadata on
// the first shrink. Ratio must lie strictly between 0 and 1.
func (p *Pack) Shrink(ratio float64) (*Pack, error) {
	if ratio <= 0 || ratio >= 1 {
		return nil, fmt.Errorf("pack: shrink ratio %v outside (0, 1)", ratio)
	}
	targetW := int(float64(p.Width) * ratio)
	targetH := int(float64(p.Height) * ratio)
	if targetW < 1 || targetH < 1 {
		return nil, fmt.Errorf("pack: shrink ratio %v collapses the %dx%d canvas", ratio, p.Width, p.Height)
	}

	layers := make([]*Layer, len(p.Layers))
	for i, l := range p.Layers {
		w := max(1, int(float64(l.Width())*ratio))
		h := max(1, int(float64(l.Height())*ratio))
		offX := int(float64(l.OffsetX) * ratio)
		offY := int(float64(l.OffsetY) * ratio)
		if offX+w > targetW {
			offX = targetW - w
		}
		if offY+h > targetH {
			offY = targetH - h
		}
		layers[i] = &Layer{
			Patch:    ResizeNRGBA(l.Patch, w, h),
			OffsetX:  offX,
			OffsetY:  offY,
			Name:     l.Name,
			IsBase:   l.IsBase,
			IsToggle: l.IsToggle,
		}
	}

	masks := make([]*Mask, len(p.Masks))
	for i, m := range p.Masks {
		nm := &Mask{
			Name:      m.Name,
			MaskColor: m.MaskColor,
			ApplyOn:   m.ApplyOn,
		}
		if m.Bitmap != nil {
			mw, mh := m.Size(p.Width, p.Height)
			w := max(1, int(float64(mw)*ratio))
			h := max(1, int(float64(mh)*ratio))
			dst := image.NewGray(image.Rect(0, 0, w, h))
			draw.NearestNeighbor.Scale(dst, dst.Bounds(), m.Bitmap, m.Bitmap.Bounds(), draw.Src, nil)
			nm.Bitmap = dst
			nm.OffsetX = int(float64(m.OffsetX) * ratio)
			nm.OffsetY = int(float64(m.OffsetY) * ratio)
			if nm.OffsetX+w > targetW {
				nm.OffsetX = targetW - w
			}
			if nm.OffsetY+h > targetH {
				nm.OffsetY = targetH - h
			}
		}
		if m.Projective != nil {
			var q pixmath.Quad
			for c := range m.Projective {
				q[c][0] = int(float64(m.Projective[c][0]) * ratio)
				q[c][1] = int(float64(m.Projective[c][1]) * ratio)
			}
			nm.Projective = &q
		}
		masks[i] = nm
	}

	metadata := make(map[string]any, len(p.Metadata)+1)
	for k, v := range p.Metadata {
		metadata[k] = v
	}
	if _, ok := metadata["original_size"]; !ok {
		metadata["original_size"] = []int{p.Width, p.Height}
	}

	return &Pack{
		Width:      targetW,
		Height:     targetH,
		Layers:     layers,
		Masks:      masks,
		Composites: p.Composites,
		Metadata:   metadata,
	}, nil
}

// ResizeNRGBA scales an image with premultiplied-alpha-aware Catmull-Rom
// filtering, preventing dark halos at transparent edges.
func ResizeNRGBA(img *image.NRGBA, w, h int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		out := image.NewNRGBA(image.Rect(0, 0, w, h))
		copy(out.Pix, img.Pix)
		return out
	}

	// Premultiply alpha.
	premul := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			si := img.PixOffset(x, y)
			di := premul.PixOffset(x, y)
			a := float64(img.Pix[si+3]) / 255.0
			premul.Pix[di] = uint8(float64(img.Pix[si])*a + 0.5)
			premul.Pix[di+1] = uint8(float64(img.Pix[si+1])*a + 0.5)
			premul.Pix[di+2] = uint8(float64(img.Pix[si+2])*a + 0.5)
			premul.Pix[di+3] = img.Pix[si+3]
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), premul, premul.Bounds(), draw.Src, nil)

	// Unpremultiply alpha.
	result := image.NewNRGBA(dst.Bounds())
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			si := dst.PixOffset(x, y)
			di := result.PixOffset(x, y)
			a := float64(dst.Pix[si+3])
			if a > 1 {
				inv := 255.0 / a
				result.Pix[di] = pixmath.Clamp8(float64(dst.Pix[si]) * inv)
				result.Pix[di+1] = pixmath.Clamp8(float64(dst.Pix[si+1]) * inv)
				result.Pix[di+2] = pixmath.Clamp8(float64(dst.Pix[si+2]) * inv)
			}
			result.Pix[di+3] = dst.Pix[si+3]
		}
	}
	return result
}
