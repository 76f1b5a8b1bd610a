package export

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"assetpack/internal/pack"
)

func buildExportPack(t *testing.T) *pack.Pack {
	t.Helper()
	b, err := pack.NewBuilder(4, 4)
	if err != nil {
		t.Fatal(err)
	}
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
		img.Pix[i+3] = 255
	}
	if _, err := b.AddLayer(pack.Layer{Patch: img, Name: "bg", IsBase: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := b.AddMask(pack.Mask{MaskColor: pack.Color{R: 255}}); err != nil {
		t.Fatal(err)
	}
	if _, err := b.AddComposite("plain", []int{0}); err != nil {
		t.Fatal(err)
	}
	p, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// packResolver serves a fixed pack under one id.
type packResolver struct {
	p *pack.Pack
}

func (r *packResolver) Resolve(id string) (any, error) {
	if id == "mypack" {
		return r.p, nil
	}
	return nil, os.ErrNotExist
}

func TestPackOpNameDerivedFromParameters(t *testing.T) {
	blue := pack.Color{B: 255}
	op1 := &PackOp{
		PackID:     "mypack",
		ForkParams: []ForkParam{ForkColor{Color: blue}, nil},
		Composites: []IndexedPath{{Index: 0, Path: "out/plain.png"}},
	}
	op2 := &PackOp{
		PackID:     "mypack",
		ForkParams: []ForkParam{ForkColor{Color: blue}, nil},
		Composites: []IndexedPath{{Index: 0, Path: "out/plain.png"}},
	}
	if op1.Name() != op2.Name() {
		t.Errorf("equal parameters produced different names:\n%s\n%s", op1.Name(), op2.Name())
	}

	op3 := &PackOp{
		PackID:     "mypack",
		ForkParams: []ForkParam{ForkColor{Color: pack.Color{G: 255}}, nil},
		Composites: []IndexedPath{{Index: 0, Path: "out/plain.png"}},
	}
	if op1.Name() == op3.Name() {
		t.Error("different fork colors produced the same name")
	}

	size := [2]int{2, 2}
	op4 := &PackOp{PackID: "mypack", TargetSize: &size, Composites: op1.Composites}
	if op1.Name() == op4.Name() {
		t.Error("target size not reflected in the name")
	}
}

func TestPackOpDependedAssets(t *testing.T) {
	op := &PackOp{
		PackID: "mypack",
		ForkParams: []ForkParam{
			ForkImage{AssetID: "decal"},
			ForkText{Text: "hello"},
		},
	}
	deps := op.DependedAssets()
	want := map[string]bool{"mypack": true, "decal": true, TextFontAsset: true}
	if len(deps) != len(want) {
		t.Fatalf("deps = %v, want %v", deps, want)
	}
	for _, d := range deps {
		if !want[d] {
			t.Errorf("unexpected dependency %q", d)
		}
	}

	// Empty text needs no font.
	op2 := &PackOp{PackID: "mypack", ForkParams: []ForkParam{ForkText{}}}
	for _, d := range op2.DependedAssets() {
		if d == TextFontAsset {
			t.Error("empty text pulled in the font asset")
		}
	}
}

func TestPackOpCPUEstimate(t *testing.T) {
	layerOnly := &PackOp{PackID: "p", Layers: []IndexedPath{{Index: 0, Path: "l.png"}}}
	if got := layerOnly.CPUEstimate(); got != 0.25 {
		t.Errorf("layer-only estimate = %v, want 0.25", got)
	}
	composing := &PackOp{PackID: "p", Composites: []IndexedPath{{Index: 0, Path: "c.png"}}}
	if got := composing.CPUEstimate(); got != 1.0 {
		t.Errorf("composing estimate = %v, want 1.0", got)
	}
}

func TestPackOpRunExportsFiles(t *testing.T) {
	root := t.TempDir()
	resolver := &packResolver{p: buildExportPack(t)}

	op := &PackOp{
		PackID:     "mypack",
		ForkParams: []ForkParam{ForkColor{Color: pack.Color{B: 255}}},
		Composites: []IndexedPath{{Index: 0, Path: filepath.Join("out", "plain.png")}},
		Layers:     []IndexedPath{{Index: 0, Path: filepath.Join("out", "bg.png")}},
	}
	if err := op.Run(root, resolver); err != nil {
		t.Fatal(err)
	}
	for _, rel := range op.OutputPaths() {
		if _, err := os.Stat(filepath.Join(root, rel)); err != nil {
			t.Errorf("output %s missing: %v", rel, err)
		}
	}
}

func TestPackOpRunResizesToTargetSize(t *testing.T) {
	root := t.TempDir()
	resolver := &packResolver{p: buildExportPack(t)}
	size := [2]int{2, 2}
	op := &PackOp{
		PackID:     "mypack",
		TargetSize: &size,
		Composites: []IndexedPath{{Index: 0, Path: "small.png"}},
	}
	if err := op.Run(root, resolver); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(filepath.Join(root, "small.png"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 2 || cfg.Height != 2 {
		t.Errorf("exported size = %dx%d, want 2x2", cfg.Width, cfg.Height)
	}
}

func TestPackOpRunRejectsWrongHandle(t *testing.T) {
	op := &PackOp{PackID: "mypack", Layers: []IndexedPath{{Index: 0, Path: "x.png"}}}
	resolver := &stubResolver{} // resolves ids to strings, not packs
	if err := op.Run(t.TempDir(), resolver); err == nil {
		t.Error("non-pack handle accepted")
	}
}

func TestPackOpRunLayerIndexOutOfRange(t *testing.T) {
	op := &PackOp{PackID: "mypack", Layers: []IndexedPath{{Index: 9, Path: "x.png"}}}
	resolver := &packResolver{p: buildExportPack(t)}
	if err := op.Run(t.TempDir(), resolver); err == nil {
		t.Error("layer index out of range accepted")
	}
}
