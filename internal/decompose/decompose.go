// Package decompose builds a Pack from a family of finished images: one
// base plus N targets of identical size. Each target is reduced to the
// minimal overlay patch that reproduces it over the base, split into
// connected fragments, and deduplicated so a detail shared by several
// targets is stored once.
package decompose

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"image"

	"assetpack/internal/pack"
	"assetpack/internal/pixmath"
)

// Options carries the construction parameters supplied by the build
// description: naming, flags and mask declarations.
type Options struct {
	// BaseName names the base layer's raster entry (may be empty).
	BaseName string
	// BaseComposite, when non-empty, adds a composite rendering just the
	// base layer under this name.
	BaseComposite string
	// TargetNames name the per-target composites; missing entries are
	// auto-named on save.
	TargetNames []string
	// Masks are appended to the pack after decomposition.
	Masks []pack.Mask
	// Metadata is copied into the pack verbatim.
	Metadata map[string]any
}

// FromImages decomposes base plus targets into a Pack of shared layers.
//
// Per target: the inverse-composite patch is computed, its opaque
// footprint is dilated by max(5, min(w,h)/100) so anti-aliasing fringes
// merge into their parent fragment, the dilated footprint is split into
// 8-connected components, and each component's undilated pixels become a
// candidate layer. Candidates identical in offset and pixel bytes to an
// existing layer reuse its index.
func FromImages(base *image.NRGBA, targets []*image.NRGBA, opts Options) (*pack.Pack, error) {
	base = normalized(base)
	cb := base.Bounds()
	w, h := cb.Dx(), cb.Dy()

	builder, err := pack.NewBuilder(w, h)
	if err != nil {
		return nil, err
	}

	baseIdx, err := builder.AddLayer(pack.Layer{
		Patch:  base,
		Name:   opts.BaseName,
		IsBase: true,
	})
	if err != nil {
		return nil, fmt.Errorf("decompose: base layer: %w", err)
	}
	if opts.BaseComposite != "" {
		if _, err := builder.AddComposite(opts.BaseComposite, []int{baseIdx}); err != nil {
			return nil, err
		}
	}

	pool := newLayerPool()

	for ti, target := range targets {
		if target.Bounds().Dx() != w || target.Bounds().Dy() != h {
			return nil, fmt.Errorf("decompose: target %d is %dx%d, canvas is %dx%d",
				ti, target.Bounds().Dx(), target.Bounds().Dy(), w, h)
		}

		name := ""
		if ti < len(opts.TargetNames) {
			name = opts.TargetNames[ti]
		}

		patch := pixmath.InversePatch(base, normalized(target))
		if patch == nil {
			// Target is exactly the base.
			if _, err := builder.AddComposite(name, []int{baseIdx}); err != nil {
				return nil, err
			}
			continue
		}

		stack := []int{baseIdx}
		for _, frag := range splitFragments(patch, w, h) {
			idx, reused := pool.lookup(frag)
			if !reused {
				idx, err = builder.AddLayer(pack.Layer{
					Patch:   frag.img,
					OffsetX: frag.offX,
					OffsetY: frag.offY,
				})
				if err != nil {
					return nil, fmt.Errorf("decompose: target %d fragment: %w", ti, err)
				}
				pool.insert(frag, idx)
			}
			stack = append(stack, idx)
		}

		// An entirely-transparent patch degenerates to the base alone;
		// identical targets get identical (but separate) composites.
		if _, err := builder.AddComposite(name, stack); err != nil {
			return nil, err
		}
	}

	for _, m := range opts.Masks {
		if _, err := builder.AddMask(m); err != nil {
			return nil, err
		}
	}
	for k, v := range opts.Metadata {
		builder.SetMetadata(k, v)
	}
	builder.OptimizeMasks()
	return builder.Build()
}

// normalized rebases an image whose bounds do not start at the origin,
// so flat-index pixel loops stay valid.
func normalized(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	if b.Min == (image.Point{}) {
		return img
	}
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		si := img.PixOffset(b.Min.X, b.Min.Y+y)
		di := out.PixOffset(0, y)
		copy(out.Pix[di:di+b.Dx()*4], img.Pix[si:si+b.Dx()*4])
	}
	return out
}

// fragment is one candidate layer: a tight patch and its canvas offset.
type fragment struct {
	img  *image.NRGBA
	offX int
	offY int
}

// splitFragments separates the patch's opaque pixels into visually
// distinct pieces: the footprint is dilated so near-touching pixels
// (anti-aliased outlines) connect, components are labeled on the dilated
// footprint, and each component keeps only its original pixels.
func splitFragments(patch *image.NRGBA, w, h int) []fragment {
	orig := make([]bool, w*h)
	any := false
	for y := 0; y < h; y++ {
		i := patch.PixOffset(0, y)
		for x := 0; x < w; x++ {
			if patch.Pix[i+3] > 0 {
				orig[y*w+x] = true
				any = true
			}
			i += 4
		}
	}
	if !any {
		return nil
	}

	radius := min(w, h) / 100
	if radius < 5 {
		radius = 5
	}
	dilated := dilate(orig, w, h, radius)
	labels, count := labelComponents(dilated, w, h)

	// Tight bounding box of each component's original pixels.
	type box struct{ minX, minY, maxX, maxY int }
	boxes := make([]box, count)
	for i := range boxes {
		boxes[i] = box{minX: w, minY: h, maxX: -1, maxY: -1}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !orig[y*w+x] {
				continue
			}
			b := &boxes[labels[y*w+x]]
			if x < b.minX {
				b.minX = x
			}
			if x > b.maxX {
				b.maxX = x
			}
			if y < b.minY {
				b.minY = y
			}
			if y > b.maxY {
				b.maxY = y
			}
		}
	}

	frags := make([]fragment, 0, count)
	for ci, b := range boxes {
		if b.maxX < b.minX {
			// Dilation-only component with no original pixels.
			continue
		}
		fw := b.maxX - b.minX + 1
		fh := b.maxY - b.minY + 1
		img := image.NewNRGBA(image.Rect(0, 0, fw, fh))
		for y := b.minY; y <= b.maxY; y++ {
			si := patch.PixOffset(b.minX, y)
			di := img.PixOffset(0, y-b.minY)
			for x := b.minX; x <= b.maxX; x++ {
				if orig[y*w+x] && labels[y*w+x] == ci {
					copy(img.Pix[di:di+4], patch.Pix[si:si+4])
				}
				si += 4
				di += 4
			}
		}
		frags = append(frags, fragment{img: img, offX: b.minX, offY: b.minY})
	}
	return frags
}

// dilate grows the set by a square window of the given radius, as two
// separable sliding-window passes over row/column prefix counts.
func dilate(src []bool, w, h, radius int) []bool {
	horiz := make([]bool, w*h)
	for y := 0; y < h; y++ {
		row := src[y*w : (y+1)*w]
		prefix := make([]int, w+1)
		for x := 0; x < w; x++ {
			prefix[x+1] = prefix[x]
			if row[x] {
				prefix[x+1]++
			}
		}
		out := horiz[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			lo := max(0, x-radius)
			hi := min(w-1, x+radius)
			out[x] = prefix[hi+1]-prefix[lo] > 0
		}
	}

	dst := make([]bool, w*h)
	prefix := make([]int, h+1)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			prefix[y+1] = prefix[y]
			if horiz[y*w+x] {
				prefix[y+1]++
			}
		}
		for y := 0; y < h; y++ {
			lo := max(0, y-radius)
			hi := min(h-1, y+radius)
			dst[y*w+x] = prefix[hi+1]-prefix[lo] > 0
		}
	}
	return dst
}

// labelComponents labels 8-connected components with BFS flood fill,
// in scan order so fragment ordering is deterministic.
func labelComponents(set []bool, w, h int) (labels []int, count int) {
	labels = make([]int, w*h)
	for i := range labels {
		labels[i] = -1
	}

	dx := [8]int{-1, 0, 1, -1, 1, -1, 0, 1}
	dy := [8]int{-1, -1, -1, 0, 0, 1, 1, 1}
	queue := make([]int, 0, 1024)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			if !set[idx] || labels[idx] >= 0 {
				continue
			}
			queue = queue[:0]
			queue = append(queue, idx)
			labels[idx] = count
			for len(queue) > 0 {
				curr := queue[0]
				queue = queue[1:]
				cy := curr / w
				cx := curr % w
				for d := 0; d < 8; d++ {
					nx := cx + dx[d]
					ny := cy + dy[d]
					if nx < 0 || nx >= w || ny < 0 || ny >= h {
						continue
					}
					ni := ny*w + nx
					if set[ni] && labels[ni] < 0 {
						labels[ni] = count
						queue = append(queue, ni)
					}
				}
			}
			count++
		}
	}
	return labels, count
}

// layerPool deduplicates candidate layers by content hash over their
// offset, dimensions and pixel bytes, with a byte-equality confirm so a
// hash collision can never merge distinct layers.
type layerPool struct {
	byHash map[uint64][]pooledLayer
}

type pooledLayer struct {
	frag  fragment
	index int
}

func newLayerPool() *layerPool {
	return &layerPool{byHash: make(map[uint64][]pooledLayer)}
}

func hashFragment(f fragment) uint64 {
	h := fnv.New64a()
	b := f.img.Bounds()
	var hdr [16]byte
	putInt := func(off, v int) {
		hdr[off] = byte(v)
		hdr[off+1] = byte(v >> 8)
		hdr[off+2] = byte(v >> 16)
		hdr[off+3] = byte(v >> 24)
	}
	putInt(0, f.offX)
	putInt(4, f.offY)
	putInt(8, b.Dx())
	putInt(12, b.Dy())
	_, _ = h.Write(hdr[:]) // fnv.Write never returns an error
	_, _ = h.Write(f.img.Pix)
	return h.Sum64()
}

func (p *layerPool) lookup(f fragment) (index int, ok bool) {
	key := hashFragment(f)
	for _, cand := range p.byHash[key] {
		if cand.frag.offX == f.offX && cand.frag.offY == f.offY &&
			cand.frag.img.Bounds() == f.img.Bounds() &&
			bytes.Equal(cand.frag.img.Pix, f.img.Pix) {
			return cand.index, true
		}
	}
	return 0, false
}

func (p *layerPool) insert(f fragment, index int) {
	key := hashFragment(f)
	p.byHash[key] = append(p.byHash[key], pooledLayer{frag: f, index: index})
}
