package archive

import (
	"bytes"
	"image"
	"os"
	"path/filepath"
	"testing"

	"assetpack/internal/pack"
	"assetpack/internal/pixmath"
)

func buildSamplePack(t *testing.T) *pack.Pack {
	t.Helper()
	b, err := pack.NewBuilder(6, 6)
	if err != nil {
		t.Fatal(err)
	}

	base := image.NewNRGBA(image.Rect(0, 0, 6, 6))
	for i := 0; i < len(base.Pix); i += 4 {
		base.Pix[i] = 180
		base.Pix[i+3] = 255
	}
	if _, err := b.AddLayer(pack.Layer{Patch: base, Name: "base", IsBase: true}); err != nil {
		t.Fatal(err)
	}

	deco := image.NewNRGBA(image.Rect(0, 0, 2, 3))
	for i := 0; i < len(deco.Pix); i += 4 {
		deco.Pix[i+1] = 250
		deco.Pix[i+3] = 255
	}
	if _, err := b.AddLayer(pack.Layer{Patch: deco, OffsetX: 3, OffsetY: 2, Name: "deco", IsToggle: true}); err != nil {
		t.Fatal(err)
	}

	bitmap := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range bitmap.Pix {
		bitmap.Pix[i] = 255
	}
	quad := pixmath.Quad{{0, 0}, {5, 0}, {0, 5}, {5, 5}}
	if _, err := b.AddMask(pack.Mask{
		Bitmap:     bitmap,
		OffsetX:    1,
		OffsetY:    1,
		Name:       "skin",
		MaskColor:  pack.Color{R: 0xaa, G: 0x10, B: 0x02},
		Projective: &quad,
		ApplyOn:    []int{0},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := b.AddMask(pack.Mask{MaskColor: pack.Color{G: 0x80}}); err != nil {
		t.Fatal(err)
	}

	if _, err := b.AddComposite("plain", []int{0}); err != nil {
		t.Fatal(err)
	}
	if _, err := b.AddComposite("decorated", []int{0, 1}); err != nil {
		t.Fatal(err)
	}
	b.SetMetadata("author", "pipeline")

	p, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func assertPacksEqual(t *testing.T, got, want *pack.Pack) {
	t.Helper()
	if got.Width != want.Width || got.Height != want.Height {
		t.Fatalf("canvas %dx%d, want %dx%d", got.Width, got.Height, want.Width, want.Height)
	}
	if len(got.Layers) != len(want.Layers) {
		t.Fatalf("%d layers, want %d", len(got.Layers), len(want.Layers))
	}
	for i := range want.Layers {
		g, w := got.Layers[i], want.Layers[i]
		if g.OffsetX != w.OffsetX || g.OffsetY != w.OffsetY ||
			g.IsBase != w.IsBase || g.IsToggle != w.IsToggle || g.Name != w.Name {
			t.Errorf("layer %d metadata = %+v, want %+v", i, g, w)
		}
		if !bytes.Equal(g.Patch.Pix, w.Patch.Pix) {
			t.Errorf("layer %d pixels differ after round trip", i)
		}
	}
	if len(got.Masks) != len(want.Masks) {
		t.Fatalf("%d masks, want %d", len(got.Masks), len(want.Masks))
	}
	for i := range want.Masks {
		g, w := got.Masks[i], want.Masks[i]
		if (g.Bitmap == nil) != (w.Bitmap == nil) {
			t.Fatalf("mask %d sentinel state changed", i)
		}
		if g.Bitmap != nil && !bytes.Equal(g.Bitmap.Pix, w.Bitmap.Pix) {
			t.Errorf("mask %d bitmap differs", i)
		}
		if g.OffsetX != w.OffsetX || g.OffsetY != w.OffsetY || g.MaskColor != w.MaskColor {
			t.Errorf("mask %d metadata = %+v, want %+v", i, g, w)
		}
		if (g.Projective == nil) != (w.Projective == nil) {
			t.Fatalf("mask %d projective presence changed", i)
		}
		if g.Projective != nil && *g.Projective != *w.Projective {
			t.Errorf("mask %d quad = %v, want %v", i, *g.Projective, *w.Projective)
		}
		if len(g.ApplyOn) != len(w.ApplyOn) {
			t.Errorf("mask %d applyon = %v, want %v", i, g.ApplyOn, w.ApplyOn)
		}
	}
	if len(got.Composites) != len(want.Composites) {
		t.Fatalf("%d composites, want %d", len(got.Composites), len(want.Composites))
	}
	for i := range want.Composites {
		g, w := got.Composites[i], want.Composites[i]
		if g.Name != w.Name || len(g.Layers) != len(w.Layers) {
			t.Errorf("composite %d = %+v, want %+v", i, g, w)
			continue
		}
		for j := range w.Layers {
			if g.Layers[j] != w.Layers[j] {
				t.Errorf("composite %d layer %d = %d, want %d", i, j, g.Layers[j], w.Layers[j])
			}
		}
	}
	if got.Metadata["author"] != "pipeline" {
		t.Errorf("metadata = %v", got.Metadata)
	}
}

func TestDirRoundTrip(t *testing.T) {
	p := buildSamplePack(t)
	dir := filepath.Join(t.TempDir(), "pack")

	if err := SaveDir(p, dir); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	assertPacksEqual(t, loaded, p)

	// Container layout: manifest plus one PNG per layer and per
	// non-sentinel mask.
	for _, name := range []string{"manifest.json", "base.png", "deco.png", "skin.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing container entry %s: %v", name, err)
		}
	}
}

func TestZipRoundTrip(t *testing.T) {
	p := buildSamplePack(t)
	path := filepath.Join(t.TempDir(), "pack.zip")

	if err := SaveZip(p, path); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadZip(path)
	if err != nil {
		t.Fatal(err)
	}
	assertPacksEqual(t, loaded, p)
}

func TestComposeAfterRoundTrip(t *testing.T) {
	p := buildSamplePack(t)
	path := filepath.Join(t.TempDir(), "pack.zip")
	if err := SaveZip(p, path); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadZip(path)
	if err != nil {
		t.Fatal(err)
	}

	want, err := p.Compose(1)
	if err != nil {
		t.Fatal(err)
	}
	got, err := loaded.Compose(1)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got.Pix, want.Pix) {
		t.Error("composite differs after round trip")
	}
}

func TestLoadDirRejectsMissingManifest(t *testing.T) {
	if _, err := LoadDir(t.TempDir()); err == nil {
		t.Error("empty directory loaded without error")
	}
}

func TestLoadDirRejectsSizeMismatch(t *testing.T) {
	p := buildSamplePack(t)
	dir := filepath.Join(t.TempDir(), "pack")
	if err := SaveDir(p, dir); err != nil {
		t.Fatal(err)
	}

	// Rewrite the manifest to lie about the base layer's size.
	raw, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		t.Fatal(err)
	}
	tampered := bytes.Replace(raw, []byte(`"w":6,"h":6,"p":"base"`), []byte(`"w":5,"h":6,"p":"base"`), 1)
	if bytes.Equal(tampered, raw) {
		t.Fatal("manifest layout changed; test needs updating")
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), tampered, 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadDir(dir); err == nil {
		t.Error("manifest/raster size mismatch accepted")
	}
}

func TestSaveRejectsDuplicateRasterNames(t *testing.T) {
	b, _ := pack.NewBuilder(2, 2)
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	// Builder-level collision checks cover explicit names; an auto name
	// clashing with an explicit one surfaces at save time.
	if _, err := b.AddLayer(pack.Layer{Patch: img, Name: "l1", IsBase: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := b.AddLayer(pack.Layer{Patch: img}); err != nil {
		t.Fatal(err)
	}
	p, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	// Layer 1 is unnamed and auto-names to "l1", colliding.
	if err := SaveDir(p, filepath.Join(t.TempDir(), "pack")); err == nil {
		t.Error("duplicate raster entry name accepted")
	}
}
