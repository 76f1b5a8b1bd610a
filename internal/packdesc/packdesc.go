// Package packdesc builds a Pack from a JSON authoring description: an
// ordered list of full-canvas layer images plus mask and composite
// declarations, with raster files resolved relative to the description
// file. It is the authoring-side entry point; the archive package is
// the distribution-side one.
package packdesc

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"assetpack/internal/imageio"
	"assetpack/internal/pack"
	"assetpack/internal/pixmath"
)

// Description is the top-level JSON document. Layers and masks are
// arrays because declaration order defines layer and mask indices.
type Description struct {
	Layers     []LayerDesc     `json:"layers"`
	Masks      []MaskDesc      `json:"masks,omitempty"`
	Composites []CompositeDesc `json:"composites,omitempty"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
}

// LayerDesc names a full-canvas image file (without extension) and its
// flags. The first layer fixes the canvas size.
type LayerDesc struct {
	Image string   `json:"image"`
	Flags []string `json:"flags,omitempty"`
}

// MaskDesc declares a recolorable region. The selection bitmap is
// Image + ".png" next to the description; if the file does not exist
// the mask covers everything from the start (then ApplyOn should
// restrict which base layers it touches).
type MaskDesc struct {
	Image      string          `json:"image"`
	MaskColor  string          `json:"maskcolor"`
	ApplyOn    []string        `json:"applyon,omitempty"`
	Projective *ProjectiveDesc `json:"projective,omitempty"`
}

// ProjectiveDesc gives the four corners of the surface that image and
// text fork arguments are warped onto.
type ProjectiveDesc struct {
	TopLeft     [2]int `json:"topleft"`
	TopRight    [2]int `json:"topright"`
	BottomLeft  [2]int `json:"bottomleft"`
	BottomRight [2]int `json:"bottomright"`
}

// CompositeDesc names a stack of layers by their image names. An empty
// layer list means the single layer sharing the composite's name.
type CompositeDesc struct {
	Name   string   `json:"name"`
	Layers []string `json:"layers,omitempty"`
}

// Build reads the description at path and assembles the pack. Layer
// images must all match the canvas size; each is trimmed to the tight
// bounding box of its visible pixels before storage. Mask bitmaps that
// exactly cover their layers' footprints are optimized away into
// full-coverage sentinels.
func Build(path string) (*pack.Pack, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("packdesc: read %s: %w", path, err)
	}
	var desc Description
	if err := json.Unmarshal(raw, &desc); err != nil {
		return nil, fmt.Errorf("packdesc: parse %s: %w", path, err)
	}
	if len(desc.Layers) == 0 {
		return nil, fmt.Errorf("packdesc: %s declares no layers", path)
	}
	basedir := filepath.Dir(path)

	// Canvas size comes from the first layer image.
	var builder *pack.Builder
	canvasW, canvasH := 0, 0
	layerIndex := make(map[string]int, len(desc.Layers))

	for _, ld := range desc.Layers {
		img, err := imageio.Load(filepath.Join(basedir, ld.Image+".png"))
		if err != nil {
			return nil, fmt.Errorf("packdesc: layer %q: %w", ld.Image, err)
		}
		if builder == nil {
			canvasW, canvasH = img.Bounds().Dx(), img.Bounds().Dy()
			builder, err = pack.NewBuilder(canvasW, canvasH)
			if err != nil {
				return nil, err
			}
		} else if img.Bounds().Dx() != canvasW || img.Bounds().Dy() != canvasH {
			return nil, fmt.Errorf("packdesc: layer %q is %dx%d, canvas is %dx%d",
				ld.Image, img.Bounds().Dx(), img.Bounds().Dy(), canvasW, canvasH)
		}

		l := pack.Layer{Patch: img, Name: ld.Image}
		if cropped, offX, offY, ok := pack.CropToContent(img); ok {
			l.Patch = cropped
			l.OffsetX = offX
			l.OffsetY = offY
		}
		for _, flag := range ld.Flags {
			switch flag {
			case "base":
				l.IsBase = true
			case "toggle":
				l.IsToggle = true
			default:
				return nil, fmt.Errorf("packdesc: layer %q has unknown flag %q", ld.Image, flag)
			}
		}
		idx, err := builder.AddLayer(l)
		if err != nil {
			return nil, err
		}
		if _, dup := layerIndex[ld.Image]; dup {
			return nil, fmt.Errorf("packdesc: duplicate layer %q", ld.Image)
		}
		layerIndex[ld.Image] = idx
	}

	for _, md := range desc.Masks {
		maskColor, err := pack.ParseColor(md.MaskColor)
		if err != nil {
			return nil, fmt.Errorf("packdesc: mask %q: %w", md.Image, err)
		}
		m := pack.Mask{MaskColor: maskColor}
		for _, name := range md.ApplyOn {
			idx, ok := layerIndex[name]
			if !ok {
				return nil, fmt.Errorf("packdesc: mask %q applies on unknown layer %q", md.Image, name)
			}
			m.ApplyOn = append(m.ApplyOn, idx)
		}
		if md.Projective != nil {
			m.Projective = &pixmath.Quad{
				md.Projective.TopLeft,
				md.Projective.TopRight,
				md.Projective.BottomLeft,
				md.Projective.BottomRight,
			}
		}

		bitmapPath := filepath.Join(basedir, md.Image+".png")
		if _, err := os.Stat(bitmapPath); err == nil {
			img, err := imageio.Load(bitmapPath)
			if err != nil {
				return nil, fmt.Errorf("packdesc: mask %q: %w", md.Image, err)
			}
			if img.Bounds().Dx() != canvasW || img.Bounds().Dy() != canvasH {
				return nil, fmt.Errorf("packdesc: mask %q is %dx%d, canvas is %dx%d",
					md.Image, img.Bounds().Dx(), img.Bounds().Dy(), canvasW, canvasH)
			}
			m.Bitmap = imageio.ToSelection(img)
			m.Name = md.Image
		}
		if _, err := builder.AddMask(m); err != nil {
			return nil, err
		}
	}

	if len(desc.Composites) == 0 {
		// Default: one composite per layer, same name.
		for _, ld := range desc.Layers {
			if _, err := builder.AddComposite(ld.Image, []int{layerIndex[ld.Image]}); err != nil {
				return nil, err
			}
		}
	} else {
		for _, cd := range desc.Composites {
			var stack []int
			if len(cd.Layers) == 0 {
				idx, ok := layerIndex[cd.Name]
				if !ok {
					return nil, fmt.Errorf("packdesc: composite %q names no layers and matches no layer", cd.Name)
				}
				stack = []int{idx}
			} else {
				for _, name := range cd.Layers {
					idx, ok := layerIndex[name]
					if !ok {
						return nil, fmt.Errorf("packdesc: composite %q references unknown layer %q", cd.Name, name)
					}
					stack = append(stack, idx)
				}
			}
			if _, err := builder.AddComposite(cd.Name, stack); err != nil {
				return nil, err
			}
		}
	}

	for k, v := range desc.Metadata {
		builder.SetMetadata(k, v)
	}

	builder.OptimizeMasks()
	return builder.Build()
}
