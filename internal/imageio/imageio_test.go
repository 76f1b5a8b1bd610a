package imageio

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/ftrvxmtrx/tga"
)

func TestSaveLoadPNGRoundTrip(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 11)
	}
	path := filepath.Join(t.TempDir(), "sub", "img.png")

	if err := Save(path, img); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(loaded.Pix, img.Pix) {
		t.Errorf("pixels differ after PNG round trip:\n got %v\nwant %v", loaded.Pix, img.Pix)
	}
}

// Loading a PNG must work even though the tga format, once registered,
// sniff-matches every file: Load dispatches on extension.
func TestLoadDispatchesByExtension(t *testing.T) {
	dir := t.TempDir()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	img.SetNRGBA(1, 1, color.NRGBA{B: 255, A: 255})

	pngPath := filepath.Join(dir, "a.png")
	if err := Save(pngPath, img); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(pngPath); err != nil {
		t.Errorf("png: %v", err)
	}

	f, err := os.Create(filepath.Join(dir, "a.tga"))
	if err != nil {
		t.Fatal(err)
	}
	if err := tga.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()
	loaded, err := Load(filepath.Join(dir, "a.tga"))
	if err != nil {
		t.Fatalf("tga: %v", err)
	}
	if !bytes.Equal(loaded.Pix, img.Pix) {
		t.Errorf("pixels differ after TGA round trip:\n got %v\nwant %v", loaded.Pix, img.Pix)
	}
}

func TestSaveLoadWebPRoundTrip(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 3))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 7)
	}
	path := filepath.Join(t.TempDir(), "img.webp")
	if err := Save(path, img); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Bounds().Dx() != 3 || loaded.Bounds().Dy() != 3 {
		t.Errorf("size = %v after WebP round trip", loaded.Bounds())
	}
}

func TestSaveWebP(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	path := filepath.Join(t.TempDir(), "img.webp")
	if err := Save(path, img); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() == 0 {
		t.Error("empty webp file written")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.png")); err == nil {
		t.Error("missing file loaded without error")
	}
}

func TestToNRGBA(t *testing.T) {
	// Already-NRGBA images at the origin pass through unchanged.
	n := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	if ToNRGBA(n) != n {
		t.Error("origin NRGBA image was copied")
	}

	// Non-origin bounds are rebased.
	off := image.NewNRGBA(image.Rect(5, 5, 7, 7))
	got := ToNRGBA(off)
	if got.Bounds().Min != (image.Point{}) {
		t.Errorf("bounds not rebased: %v", got.Bounds())
	}

	// Other formats are converted.
	g := image.NewGray(image.Rect(0, 0, 1, 1))
	g.Pix[0] = 99
	conv := ToNRGBA(g)
	if conv.Pix[0] != 99 || conv.Pix[3] != 255 {
		t.Errorf("gray converted to %v", conv.Pix)
	}
}

func TestToSelectionGray(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 3, 1))
	g.Pix[1] = 1
	g.Pix[2] = 200
	sel := ToSelection(g)
	if sel.Pix[0] != 0 || sel.Pix[1] != 255 || sel.Pix[2] != 255 {
		t.Errorf("gray selection = %v, want [0 255 255]", sel.Pix)
	}
}

func TestToSelectionAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 0})
	img.SetNRGBA(1, 0, color.NRGBA{R: 0, A: 10})
	sel := ToSelection(img)
	if sel.Pix[0] != 0 || sel.Pix[1] != 255 {
		t.Errorf("alpha selection = %v, want [0 255]", sel.Pix)
	}
}

func TestToSelectionOpaqueUsesColor(t *testing.T) {
	// A fully opaque image selects by non-black color instead.
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{B: 3, A: 255})
	sel := ToSelection(img)
	if sel.Pix[0] != 0 || sel.Pix[1] != 255 {
		t.Errorf("opaque selection = %v, want [0 255]", sel.Pix)
	}
}
