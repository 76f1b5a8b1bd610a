package export

import (
	"fmt"
	"image"
	"path/filepath"
	"strconv"
	"strings"

	"assetpack/internal/imageio"
	"assetpack/internal/pack"
)

// TextFontAsset is the asset identifier every text-forking operation
// depends on. The catalog maps it to the bundled fallback font.
const TextFontAsset = "text-font"

// ForkParam is one serializable recolor argument of a PackOp, converted
// to a pack.MaskArg when the operation runs. A nil ForkParam means "no
// change" for that mask.
type ForkParam interface {
	forkParam()
	paramString() string
}

// ForkColor recolors a mask toward a flat color.
type ForkColor struct {
	Color pack.Color
}

// ForkText renders text onto a mask's projective surface. Empty text
// degrades to "no change".
type ForkText struct {
	Text  string
	Color *pack.Color
}

// ForkImage warps a catalog image onto a mask's projective surface.
type ForkImage struct {
	AssetID string
}

func (ForkColor) forkParam() {}
func (ForkText) forkParam()  {}
func (ForkImage) forkParam() {}

func (p ForkColor) paramString() string { return p.Color.Hex() }
func (p ForkText) paramString() string {
	if p.Color == nil {
		return strconv.Quote(p.Text)
	}
	return strconv.Quote(p.Text) + p.Color.Hex()
}
func (p ForkImage) paramString() string { return "@" + p.AssetID }

// IndexedPath binds a layer or composite index to a relative output path.
type IndexedPath struct {
	Index int
	Path  string
}

// PackOp exports layers and composites of one pack, optionally forking
// it first and optionally resizing composed outputs to a fixed size.
// Layer exports always write the stored patch at its native size.
type PackOp struct {
	PackID     string
	ForkParams []ForkParam
	TargetSize *[2]int
	Layers     []IndexedPath
	Composites []IndexedPath
}

// Name derives the cache identity from every parameter, so two
// operations produce the same name exactly when they do the same work.
func (op *PackOp) Name() string {
	var b strings.Builder
	b.WriteString("PackExportOp[")
	b.WriteString(op.PackID)
	b.WriteString("]")
	if len(op.ForkParams) > 0 {
		b.WriteString("<")
		for i, p := range op.ForkParams {
			if i > 0 {
				b.WriteString(",")
			}
			if p == nil {
				b.WriteString("-")
			} else {
				b.WriteString(p.paramString())
			}
		}
		b.WriteString(">")
	}
	if op.TargetSize != nil {
		fmt.Fprintf(&b, "(%d,%d)", op.TargetSize[0], op.TargetSize[1])
	}
	b.WriteString("{")
	for _, e := range op.Layers {
		fmt.Fprintf(&b, "%d:%s,", e.Index, e.Path)
	}
	b.WriteString("}{")
	for _, e := range op.Composites {
		fmt.Fprintf(&b, "%d:%s,", e.Index, e.Path)
	}
	b.WriteString("}")
	return b.String()
}

func (op *PackOp) OutputPaths() []string {
	paths := make([]string, 0, len(op.Layers)+len(op.Composites))
	for _, e := range op.Layers {
		paths = append(paths, e.Path)
	}
	for _, e := range op.Composites {
		paths = append(paths, e.Path)
	}
	return paths
}

func (op *PackOp) DependedAssets() []string {
	deps := []string{op.PackID}
	needFont := false
	for _, p := range op.ForkParams {
		switch p := p.(type) {
		case ForkText:
			if p.Text != "" {
				needFont = true
			}
		case ForkImage:
			deps = append(deps, p.AssetID)
		}
	}
	if needFont {
		deps = append(deps, TextFontAsset)
	}
	return deps
}

// CPUEstimate rates forking or composing as CPU-bound; copying stored
// patches out is IO-bound.
func (op *PackOp) CPUEstimate() float64 {
	if len(op.ForkParams) > 0 || len(op.Composites) > 0 {
		return 1.0
	}
	return 0.25
}

func (op *PackOp) Run(root string, assets AssetResolver) error {
	handle, err := assets.Resolve(op.PackID)
	if err != nil {
		return fmt.Errorf("export: %s: %w", op.PackID, err)
	}
	p, ok := handle.(*pack.Pack)
	if !ok {
		return fmt.Errorf("export: asset %q is not an image pack", op.PackID)
	}

	if len(op.ForkParams) > 0 {
		args, err := op.maskArgs(assets)
		if err != nil {
			return err
		}
		p, err = p.Fork(args)
		if err != nil {
			return fmt.Errorf("export: fork %s: %w", op.PackID, err)
		}
	}

	for _, e := range op.Composites {
		img, err := p.Compose(e.Index)
		if err != nil {
			return fmt.Errorf("export: compose %s[%d]: %w", op.PackID, e.Index, err)
		}
		if op.TargetSize != nil {
			img = pack.ResizeNRGBA(img, op.TargetSize[0], op.TargetSize[1])
		}
		if err := imageio.Save(filepath.Join(root, e.Path), img); err != nil {
			return err
		}
	}

	for _, e := range op.Layers {
		if e.Index < 0 || e.Index >= len(p.Layers) {
			return fmt.Errorf("export: %s layer %d out of range", op.PackID, e.Index)
		}
		if err := imageio.Save(filepath.Join(root, e.Path), p.Layers[e.Index].Patch); err != nil {
			return err
		}
	}
	return nil
}

// maskArgs converts the serializable fork parameters to recolor
// arguments, resolving image parameters through the catalog.
func (op *PackOp) maskArgs(assets AssetResolver) ([]pack.MaskArg, error) {
	args := make([]pack.MaskArg, len(op.ForkParams))
	for i, param := range op.ForkParams {
		switch param := param.(type) {
		case nil:
			// no change
		case ForkColor:
			args[i] = pack.ColorArg{Color: param.Color}
		case ForkText:
			if param.Text == "" {
				continue
			}
			args[i] = pack.TextArg{Text: param.Text, Color: param.Color}
		case ForkImage:
			handle, err := assets.Resolve(param.AssetID)
			if err != nil {
				return nil, fmt.Errorf("export: %s: %w", param.AssetID, err)
			}
			img, ok := handle.(*image.NRGBA)
			if !ok {
				return nil, fmt.Errorf("export: asset %q is not an image", param.AssetID)
			}
			args[i] = pack.ImageArg{Image: img}
		default:
			return nil, fmt.Errorf("export: unsupported fork parameter %T", param)
		}
	}
	return args, nil
}
