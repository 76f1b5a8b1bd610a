package pack

import (
	"fmt"
	"image"

	"assetpack/internal/pixmath"
)

// MaskArg is one recolor argument, matched against a mask by position.
// It is a closed sum: ColorArg, ImageArg or TextArg. A nil MaskArg means
// "no change" for that mask.
type MaskArg interface {
	maskArg()
}

// ColorArg recolors the selected region toward a flat color.
type ColorArg struct {
	Color Color
}

// ImageArg recolors the selected region toward an image warped onto the
// mask's projective quad. Requires the mask to carry a quad.
type ImageArg struct {
	Image *image.NRGBA
}

// TextArg renders text (optionally colored) to a bitmap and applies it
// like ImageArg. Requires the mask to carry a quad.
type TextArg struct {
	Text  string
	Color *Color // nil = black
}

func (ColorArg) maskArg() {}
func (ImageArg) maskArg() {}
func (TextArg) maskArg()  {}

// maskApplication pairs a mask with its active argument for one layer.
type maskApplication struct {
	mask *Mask
	arg  MaskArg
}

// Fork produces a new Pack with every mask-selected region of every
// affected base layer recolored per args. Args map to masks by position;
// a list shorter than the mask count is padded with "no change". Layers,
// masks and composites untouched by any active argument are shared by
// reference with the receiver; masks that consumed an argument are
// dropped from the result. With no active argument at all the new pack's
// layer bitmaps are byte-identical to the source's.
func (p *Pack) Fork(args []MaskArg) (*Pack, error) {
	if len(args) > len(p.Masks) {
		return nil, fmt.Errorf("pack: %d fork arguments for %d masks", len(args), len(p.Masks))
	}
	padded := make([]MaskArg, len(p.Masks))
	copy(padded, args)

	// Validate argument kinds up front so failures surface before any
	// pixel work.
	for i, arg := range padded {
		if arg == nil {
			continue
		}
		if _, isColor := arg.(ColorArg); !isColor && p.Masks[i].Projective == nil {
			return nil, fmt.Errorf("pack: mask %d has no projective quad and only accepts color arguments", i)
		}
	}

	newLayers := make([]*Layer, len(p.Layers))
	for li, l := range p.Layers {
		if !l.IsBase {
			newLayers[li] = l
			continue
		}
		var forks []maskApplication
		for mi, m := range p.Masks {
			if padded[mi] == nil {
				continue
			}
			if len(m.ApplyOn) > 0 && !containsInt(m.ApplyOn, li) {
				continue
			}
			forks = append(forks, maskApplication{mask: m, arg: padded[mi]})
		}
		if len(forks) == 0 {
			newLayers[li] = l
			continue
		}
		nl, err := forkLayer(p.Width, p.Height, l, forks)
		if err != nil {
			return nil, fmt.Errorf("pack: recolor layer %d (%s): %w", li, l.Name, err)
		}
		newLayers[li] = nl
	}

	var keptMasks []*Mask
	for mi, m := range p.Masks {
		if padded[mi] == nil {
			keptMasks = append(keptMasks, m)
		}
	}

	metadata := make(map[string]any, len(p.Metadata)+1)
	for k, v := range p.Metadata {
		metadata[k] = v
	}
	for _, arg := range padded {
		if arg != nil {
			metadata["modified"] = true
			break
		}
	}

	return &Pack{
		Width:      p.Width,
		Height:     p.Height,
		Layers:     newLayers,
		Masks:      keptMasks,
		Composites: p.Composites,
		Metadata:   metadata,
	}, nil
}

// forkLayer materializes one layer on a full canvas, applies every
// active mask in declaration order, and re-crops the result into a
// brand-new layer with the same name and flags.
func forkLayer(w, h int, l *Layer, forks []maskApplication) (*Layer, error) {
	canvas := image.NewNRGBA(image.Rect(0, 0, w, h))
	drawPatch(canvas, l)

	for _, f := range forks {
		m := f.mask

		var field *image.NRGBA
		var flat Color
		switch arg := f.arg.(type) {
		case ColorArg:
			flat = arg.Color
		case ImageArg:
			warped, err := buildWarpedField(arg.Image, m, w, h)
			if err != nil {
				return nil, err
			}
			field = warped
		case TextArg:
			tw, th := m.Projective.RectSize()
			img, err := RenderTextImage(arg.Text, arg.Color, startingFontPoints(w), tw, th, &m.MaskColor)
			if err != nil {
				return nil, err
			}
			warped, err := buildWarpedField(img, m, w, h)
			if err != nil {
				return nil, err
			}
			field = warped
		}

		var sel *image.Gray
		if m.Bitmap != nil {
			sel = materializeMask(m, w, h)
		}
		recolorInPlace(canvas, sel, m.MaskColor, flat, field)
	}

	cropped, offX, offY, ok := CropToContent(canvas)
	if !ok {
		return nil, fmt.Errorf("layer empty after recoloring")
	}
	return &Layer{
		Patch:    cropped,
		OffsetX:  offX,
		OffsetY:  offY,
		Name:     l.Name,
		IsBase:   true,
		IsToggle: l.IsToggle,
	}, nil
}

// buildWarpedField warps img onto the mask's quad and backfills pixels
// outside the quad with the mask's neutral color, producing the
// per-pixel target-color field.
func buildWarpedField(img *image.NRGBA, m *Mask, w, h int) (*image.NRGBA, error) {
	warped, err := pixmath.WarpToQuad(img, *m.Projective, w, h)
	if err != nil {
		return nil, err
	}
	for i := 0; i < len(warped.Pix); i += 4 {
		if warped.Pix[i+3] == 0 {
			warped.Pix[i] = m.MaskColor.R
			warped.Pix[i+1] = m.MaskColor.G
			warped.Pix[i+2] = m.MaskColor.B
		}
		warped.Pix[i+3] = 255
	}
	return warped, nil
}

// recolorInPlace shifts every selected pixel of canvas from the neutral
// maskColor toward the target (flat color, or per-pixel field). The
// pixel's deviation from the neutral hue (shading, texture) is isolated
// as an RGB delta and re-applied after the hue shift; saturation and
// value move by the target-vs-neutral difference. Alpha never changes.
func recolorInPlace(canvas *image.NRGBA, sel *image.Gray, maskColor Color, flat Color, field *image.NRGBA) {
	baseH, baseS, baseV := maskColor.HSV()

	var flatH, flatS, flatV float64
	if field == nil {
		flatH, flatS, flatV = flat.HSV()
	}

	b := canvas.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		ci := canvas.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			px := canvas.Pix[ci : ci+4]
			if px[3] == 0 || (sel != nil && sel.Pix[y*sel.Stride+x] == 0) {
				ci += 4
				continue
			}

			_, origS, origV := pixmath.RGBToHSV(float64(px[0])/255, float64(px[1])/255, float64(px[2])/255)

			// Neutral-hue rendition of this pixel; the remainder is the
			// shading/texture delta to preserve.
			nr, ng, nb := pixmath.HSVToRGB(baseH, origS, origV)
			dr := int(px[0]) - int(pixmath.QuantizeChannel(nr))
			dg := int(px[1]) - int(pixmath.QuantizeChannel(ng))
			db := int(px[2]) - int(pixmath.QuantizeChannel(nb))

			tgtH, tgtS, tgtV := flatH, flatS, flatV
			if field != nil {
				fi := field.PixOffset(x, y)
				tgtH, tgtS, tgtV = pixmath.RGBToHSV(
					float64(field.Pix[fi])/255,
					float64(field.Pix[fi+1])/255,
					float64(field.Pix[fi+2])/255)
			}

			newS := clamp01(origS + (tgtS - baseS))
			newV := clamp01(origV + (tgtV - baseV))
			rr, rg, rb := pixmath.HSVToRGB(tgtH, newS, newV)

			px[0] = clampInt8(int(pixmath.QuantizeChannel(rr)) + dr)
			px[1] = clampInt8(int(pixmath.QuantizeChannel(rg)) + dg)
			px[2] = clampInt8(int(pixmath.QuantizeChannel(rb)) + db)

			ci += 4
		}
	}
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampInt8(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
