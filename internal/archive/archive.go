// Package archive persists a Pack as a container of structured text plus
// lossless rasters: a manifest.json describing geometry, masks, layers,
// composites and metadata, and one PNG per layer and per non-sentinel
// mask bitmap. Directory and zip containers share the same layout, so a
// zipped archive is exactly a zipped directory.
package archive

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"assetpack/internal/imageio"
	"assetpack/internal/pack"
	"assetpack/internal/pixmath"
)

const manifestName = "manifest.json"

type manifest struct {
	Size       [2]int           `json:"size"`
	Masks      []maskEntry      `json:"masks,omitempty"`
	Layers     []layerEntry     `json:"layers"`
	Composites []compositeEntry `json:"composites,omitempty"`
	Metadata   map[string]any   `json:"metadata,omitempty"`
}

type maskEntry struct {
	Mask       *string       `json:"mask"` // nil = full-coverage sentinel
	X          int           `json:"x"`
	Y          int           `json:"y"`
	W          int           `json:"w"`
	H          int           `json:"h"`
	MaskColor  string        `json:"maskcolor"`
	Projective *pixmath.Quad `json:"projective,omitempty"`
	ApplyOn    []int         `json:"applyon,omitempty"`
}

type layerEntry struct {
	X     int      `json:"x"`
	Y     int      `json:"y"`
	W     int      `json:"w"`
	H     int      `json:"h"`
	P     string   `json:"p"`
	Flags []string `json:"flags,omitempty"`
}

type compositeEntry struct {
	L []int  `json:"l"`
	N string `json:"n"`
}

// rasterEntry is one PNG to write alongside the manifest.
type rasterEntry struct {
	filename string
	img      image.Image
}

// buildManifest lays out the manifest and the raster entries, assigning
// auto names and enforcing basename uniqueness across the container.
func buildManifest(p *pack.Pack) (*manifest, []rasterEntry, error) {
	m := &manifest{Size: [2]int{p.Width, p.Height}}
	var rasters []rasterEntry

	used := map[string]bool{manifestName: true}
	claim := func(basename string) (string, error) {
		filename := basename + ".png"
		if used[filename] {
			return "", fmt.Errorf("archive: duplicated raster entry name %q", filename)
		}
		used[filename] = true
		return filename, nil
	}

	for i, mask := range p.Masks {
		w, h := mask.Size(p.Width, p.Height)
		entry := maskEntry{
			X:         mask.OffsetX,
			Y:         mask.OffsetY,
			W:         w,
			H:         h,
			MaskColor: mask.MaskColor.Hex(),
			ApplyOn:   mask.ApplyOn,
		}
		if mask.Projective != nil {
			q := *mask.Projective
			entry.Projective = &q
		}
		if mask.Bitmap != nil {
			basename := mask.Name
			if basename == "" {
				basename = "m" + strconv.Itoa(i)
			}
			filename, err := claim(basename)
			if err != nil {
				return nil, nil, err
			}
			entry.Mask = &basename
			rasters = append(rasters, rasterEntry{filename: filename, img: mask.Bitmap})
		}
		m.Masks = append(m.Masks, entry)
	}

	for i, l := range p.Layers {
		basename := l.Name
		if basename == "" {
			basename = "l" + strconv.Itoa(i)
		}
		filename, err := claim(basename)
		if err != nil {
			return nil, nil, err
		}
		entry := layerEntry{
			X: l.OffsetX,
			Y: l.OffsetY,
			W: l.Width(),
			H: l.Height(),
			P: basename,
		}
		if l.IsBase {
			entry.Flags = append(entry.Flags, "base")
		}
		if l.IsToggle {
			entry.Flags = append(entry.Flags, "toggle")
		}
		m.Layers = append(m.Layers, entry)
		rasters = append(rasters, rasterEntry{filename: filename, img: l.Patch})
	}

	for i, c := range p.Composites {
		name := c.Name
		if name == "" {
			name = "c" + strconv.Itoa(i+1)
		}
		m.Composites = append(m.Composites, compositeEntry{L: c.Layers, N: name})
	}

	if len(p.Metadata) > 0 {
		m.Metadata = p.Metadata
	}
	return m, rasters, nil
}

// save streams the manifest and rasters through a container-specific
// entry factory.
func save(p *pack.Pack, create func(name string) (io.Writer, error)) error {
	m, rasters, err := buildManifest(p)
	if err != nil {
		return err
	}

	w, err := create(manifestName)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("archive: encode manifest: %w", err)
	}

	for _, r := range rasters {
		w, err := create(r.filename)
		if err != nil {
			return err
		}
		if err := png.Encode(w, r.img); err != nil {
			return fmt.Errorf("archive: encode %s: %w", r.filename, err)
		}
	}
	return nil
}

// SaveDir writes the pack as a directory container.
func SaveDir(p *pack.Pack, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("archive: mkdir %s: %w", dir, err)
	}
	var open *os.File
	closeOpen := func() error {
		if open == nil {
			return nil
		}
		err := open.Close()
		open = nil
		return err
	}
	err := save(p, func(name string) (io.Writer, error) {
		if err := closeOpen(); err != nil {
			return nil, fmt.Errorf("archive: close entry: %w", err)
		}
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("archive: create %s: %w", name, err)
		}
		open = f
		return f, nil
	})
	if cerr := closeOpen(); err == nil && cerr != nil {
		err = fmt.Errorf("archive: close entry: %w", cerr)
	}
	return err
}

// SaveZip writes the pack as a zip container.
func SaveZip(p *pack.Pack, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("archive: create %s: %w", path, err)
	}
	zw := zip.NewWriter(f)
	err = save(p, func(name string) (io.Writer, error) {
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("archive: zip entry %s: %w", name, err)
		}
		return w, nil
	})
	if zerr := zw.Close(); err == nil {
		err = zerr
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// LoadDir reads a directory container into a fresh Pack.
func LoadDir(dir string) (*pack.Pack, error) {
	return load(os.DirFS(dir))
}

// LoadZip reads a zip container into a fresh Pack.
func LoadZip(path string) (*pack.Pack, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", path, err)
	}
	defer r.Close()
	return load(r)
}

// load parses the manifest, decodes every referenced raster and
// reconstructs the pack through the builder so all structural
// invariants are re-validated. Format errors are fatal: an archive is
// either fully loadable or rejected.
func load(fsys fs.FS) (*pack.Pack, error) {
	raw, err := fs.ReadFile(fsys, manifestName)
	if err != nil {
		return nil, fmt.Errorf("archive: read manifest: %w", err)
	}
	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("archive: parse manifest: %w", err)
	}
	if m.Size[0] <= 0 || m.Size[1] <= 0 {
		return nil, fmt.Errorf("archive: invalid canvas size %v", m.Size)
	}

	builder, err := pack.NewBuilder(m.Size[0], m.Size[1])
	if err != nil {
		return nil, err
	}

	for i, e := range m.Layers {
		img, err := decodeRaster(fsys, e.P)
		if err != nil {
			return nil, err
		}
		if img.Bounds().Dx() != e.W || img.Bounds().Dy() != e.H {
			return nil, fmt.Errorf("archive: layer %d raster %q is %dx%d, manifest says %dx%d",
				i, e.P, img.Bounds().Dx(), img.Bounds().Dy(), e.W, e.H)
		}
		l := pack.Layer{
			Patch:   imageio.ToNRGBA(img),
			OffsetX: e.X,
			OffsetY: e.Y,
			Name:    e.P,
		}
		for _, flag := range e.Flags {
			switch flag {
			case "base":
				l.IsBase = true
			case "toggle":
				l.IsToggle = true
			default:
				return nil, fmt.Errorf("archive: layer %d has unknown flag %q", i, flag)
			}
		}
		if _, err := builder.AddLayer(l); err != nil {
			return nil, err
		}
	}

	for i, e := range m.Masks {
		maskColor, err := pack.ParseColor(e.MaskColor)
		if err != nil {
			return nil, fmt.Errorf("archive: mask %d: %w", i, err)
		}
		mk := pack.Mask{
			MaskColor: maskColor,
			ApplyOn:   e.ApplyOn,
		}
		if e.Projective != nil {
			q := *e.Projective
			mk.Projective = &q
		}
		if e.Mask != nil {
			img, err := decodeRaster(fsys, *e.Mask)
			if err != nil {
				return nil, err
			}
			if img.Bounds().Dx() != e.W || img.Bounds().Dy() != e.H {
				return nil, fmt.Errorf("archive: mask %d raster %q is %dx%d, manifest says %dx%d",
					i, *e.Mask, img.Bounds().Dx(), img.Bounds().Dy(), e.W, e.H)
			}
			mk.Bitmap = imageio.ToSelection(img)
			mk.OffsetX = e.X
			mk.OffsetY = e.Y
			mk.Name = *e.Mask
		} else if e.W != m.Size[0] || e.H != m.Size[1] {
			return nil, fmt.Errorf("archive: sentinel mask %d declares %dx%d, canvas is %dx%d",
				i, e.W, e.H, m.Size[0], m.Size[1])
		}
		if _, err := builder.AddMask(mk); err != nil {
			return nil, err
		}
	}

	for _, e := range m.Composites {
		if _, err := builder.AddComposite(e.N, e.L); err != nil {
			return nil, err
		}
	}

	for k, v := range m.Metadata {
		builder.SetMetadata(k, v)
	}
	return builder.Build()
}

func decodeRaster(fsys fs.FS, basename string) (image.Image, error) {
	f, err := fsys.Open(basename + ".png")
	if err != nil {
		return nil, fmt.Errorf("archive: open raster %q: %w", basename, err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("archive: decode raster %q: %w", basename, err)
	}
	return img, nil
}
