package decompose

import (
	"bytes"
	"image"
	"testing"
)

func solid(w, h int, r, g, b, a uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = r
		img.Pix[i+1] = g
		img.Pix[i+2] = b
		img.Pix[i+3] = a
	}
	return img
}

func fillRect(img *image.NRGBA, x0, y0, x1, y1 int, r, g, b, a uint8) {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			i := img.PixOffset(x, y)
			img.Pix[i] = r
			img.Pix[i+1] = g
			img.Pix[i+2] = b
			img.Pix[i+3] = a
		}
	}
}

func TestFromImagesDeduplicatesSharedFragments(t *testing.T) {
	base := solid(64, 64, 255, 0, 0, 255)

	// Two targets carrying the identical blue square at the identical
	// position, far enough from anything else not to merge with it.
	targetA := solid(64, 64, 255, 0, 0, 255)
	fillRect(targetA, 8, 8, 16, 16, 0, 0, 255, 255)
	targetB := solid(64, 64, 255, 0, 0, 255)
	fillRect(targetB, 8, 8, 16, 16, 0, 0, 255, 255)

	p, err := FromImages(base, []*image.NRGBA{targetA, targetB}, Options{
		BaseName:      "base",
		BaseComposite: "base",
		TargetNames:   []string{"a", "b"},
	})
	if err != nil {
		t.Fatal(err)
	}

	// Base layer plus exactly one shared fragment layer.
	if len(p.Layers) != 2 {
		t.Fatalf("got %d layers, want 2 (base + one shared fragment)", len(p.Layers))
	}
	if len(p.Composites) != 3 {
		t.Fatalf("got %d composites, want 3", len(p.Composites))
	}
	for i := 1; i <= 2; i++ {
		if got := p.Composites[i].Layers; len(got) != 2 || got[0] != 0 || got[1] != 1 {
			t.Errorf("composite %d stacks %v, want [0 1]", i, got)
		}
	}
}

func TestFromImagesSplitsDistantFragments(t *testing.T) {
	base := solid(64, 64, 40, 40, 40, 255)

	target := solid(64, 64, 40, 40, 40, 255)
	fillRect(target, 2, 2, 6, 6, 0, 255, 0, 255)
	fillRect(target, 50, 50, 56, 56, 0, 0, 255, 255)

	p, err := FromImages(base, []*image.NRGBA{target}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	// Two fragments far apart stay separate layers.
	if len(p.Layers) != 3 {
		t.Fatalf("got %d layers, want 3 (base + two fragments)", len(p.Layers))
	}

	// Fragments store only their tight bounding boxes.
	for _, l := range p.Layers[1:] {
		if l.Width() > 6 || l.Height() > 6 {
			t.Errorf("fragment %dx%d at (%d,%d) larger than its content",
				l.Width(), l.Height(), l.OffsetX, l.OffsetY)
		}
	}
}

func TestFromImagesReconstructsTargetExactly(t *testing.T) {
	base := solid(32, 32, 10, 120, 10, 255)
	target := solid(32, 32, 10, 120, 10, 255)
	fillRect(target, 4, 4, 12, 12, 250, 250, 0, 255)
	fillRect(target, 20, 6, 28, 14, 0, 0, 0, 255)

	p, err := FromImages(base, []*image.NRGBA{target}, Options{TargetNames: []string{"t"}})
	if err != nil {
		t.Fatal(err)
	}

	idx, ok := p.CompositeIndexByName("t")
	if !ok {
		t.Fatal("target composite missing")
	}
	img, err := p.Compose(idx)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(img.Pix, target.Pix) {
		t.Error("composed target differs from the original image")
	}
}

func TestFromImagesIdenticalTargetIsBaseOnly(t *testing.T) {
	base := solid(16, 16, 1, 2, 3, 255)
	target := solid(16, 16, 1, 2, 3, 255)

	p, err := FromImages(base, []*image.NRGBA{target}, Options{TargetNames: []string{"same"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Layers) != 1 {
		t.Fatalf("got %d layers, want just the base", len(p.Layers))
	}
	idx, ok := p.CompositeIndexByName("same")
	if !ok {
		t.Fatal("composite missing")
	}
	if got := p.Composites[idx].Layers; len(got) != 1 || got[0] != 0 {
		t.Errorf("composite stacks %v, want [0]", got)
	}
}

func TestFromImagesRejectsSizeMismatch(t *testing.T) {
	base := solid(16, 16, 0, 0, 0, 255)
	target := solid(8, 8, 0, 0, 0, 255)
	if _, err := FromImages(base, []*image.NRGBA{target}, Options{}); err == nil {
		t.Error("mismatched target size accepted")
	}
}

func TestDilate(t *testing.T) {
	w, h := 10, 10
	src := make([]bool, w*h)
	src[5*w+5] = true
	out := dilate(src, w, h, 2)

	if !out[3*w+3] || !out[7*w+7] {
		t.Error("pixels within the dilation radius not set")
	}
	if out[2*w+5] || out[5*w+2] {
		t.Error("pixels outside the dilation radius set")
	}
}

func TestLabelComponents(t *testing.T) {
	w, h := 8, 1
	set := make([]bool, w*h)
	set[0], set[1] = true, true
	set[4] = true

	labels, count := labelComponents(set, w, h)
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	if labels[0] != labels[1] {
		t.Error("adjacent pixels labeled differently")
	}
	if labels[0] == labels[4] {
		t.Error("separated pixels share a label")
	}
	if labels[2] != -1 {
		t.Error("unset pixel labeled")
	}
}

func TestLabelComponentsDiagonal(t *testing.T) {
	// 8-connectivity: a diagonal step stays one component.
	w, h := 4, 4
	set := make([]bool, w*h)
	set[0*w+0] = true
	set[1*w+1] = true
	labels, count := labelComponents(set, w, h)
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
	if labels[0] != labels[1*w+1] {
		t.Error("diagonal neighbors labeled differently")
	}
}

func TestFragmentPoolOffsetMatters(t *testing.T) {
	img := solid(3, 3, 9, 9, 9, 255)
	a := fragment{img: img, offX: 1, offY: 1}
	b := fragment{img: img, offX: 2, offY: 1}

	pool := newLayerPool()
	pool.insert(a, 7)
	if _, ok := pool.lookup(b); ok {
		t.Error("fragment at a different offset matched the pool entry")
	}
	if idx, ok := pool.lookup(a); !ok || idx != 7 {
		t.Errorf("identical fragment lookup = (%d, %v), want (7, true)", idx, ok)
	}
}
