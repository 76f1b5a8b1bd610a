// Package catalog resolves asset identifiers to loaded handles. A
// catalog is backed by one or more asset directories; loaded handles
// are cached so exporting many operations that share a pack or an
// image decodes it once.
package catalog

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"assetpack/internal/archive"
	"assetpack/internal/imageio"
	"assetpack/internal/pack"
)

// Catalog is a concurrency-safe asset resolver. Handles are either
// *pack.Pack (pack archives) or *image.NRGBA (plain rasters), plus
// whatever was registered directly.
type Catalog struct {
	mu      sync.RWMutex
	handles map[string]*catalogEntry
	entries map[string]string // lowercase stem -> filesystem path
}

type catalogEntry struct {
	handle any
	err    error
}

// New builds a catalog over the given asset directories. Later
// directories win when two entries share a stem.
func New(dirs ...string) (*Catalog, error) {
	c := &Catalog{
		handles: make(map[string]*catalogEntry),
		entries: make(map[string]string),
	}
	for _, dir := range dirs {
		if err := c.scan(dir); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// scan indexes loadable entries directly under dir: pack archive
// directories (containing manifest.json), .zip pack archives, and
// raster files.
func (c *Catalog) scan(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("catalog: scan %s: %w", dir, err)
	}
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if e.IsDir() {
			if _, err := os.Stat(filepath.Join(path, "manifest.json")); err == nil {
				c.entries[strings.ToLower(e.Name())] = path
			}
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".zip", ".png", ".tga", ".webp":
			c.entries[stem(e.Name())] = path
		}
	}
	return nil
}

func stem(name string) string {
	return strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
}

// RegisterBuiltin installs a preloaded handle under an identifier,
// bypassing the filesystem. Used for assets the program itself provides
// such as the bundled fallback font.
func (c *Catalog) RegisterBuiltin(id string, handle any) {
	c.mu.Lock()
	c.handles[strings.ToLower(id)] = &catalogEntry{handle: handle}
	c.mu.Unlock()
}

// Resolve loads and caches the asset with the given identifier. Load
// failures are cached too so a broken asset is reported once per
// identifier, not retried per operation.
func (c *Catalog) Resolve(id string) (any, error) {
	key := strings.ToLower(id)

	c.mu.RLock()
	if entry, ok := c.handles[key]; ok {
		c.mu.RUnlock()
		return entry.handle, entry.err
	}
	c.mu.RUnlock()

	path, ok := c.entries[key]
	if !ok {
		return nil, fmt.Errorf("catalog: unknown asset %q", id)
	}
	handle, err := loadHandle(path)

	c.mu.Lock()
	if entry, ok := c.handles[key]; ok {
		c.mu.Unlock()
		return entry.handle, entry.err
	}
	c.handles[key] = &catalogEntry{handle: handle, err: err}
	c.mu.Unlock()

	return handle, err
}

// ResolvePack resolves id and requires a pack handle.
func (c *Catalog) ResolvePack(id string) (*pack.Pack, error) {
	h, err := c.Resolve(id)
	if err != nil {
		return nil, err
	}
	p, ok := h.(*pack.Pack)
	if !ok {
		return nil, fmt.Errorf("catalog: asset %q is not a pack", id)
	}
	return p, nil
}

// ResolveImage resolves id and requires a raster handle.
func (c *Catalog) ResolveImage(id string) (*image.NRGBA, error) {
	h, err := c.Resolve(id)
	if err != nil {
		return nil, err
	}
	img, ok := h.(*image.NRGBA)
	if !ok {
		return nil, fmt.Errorf("catalog: asset %q is not an image", id)
	}
	return img, nil
}

func loadHandle(path string) (any, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return archive.LoadDir(path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return archive.LoadZip(path)
	default:
		return imageio.Load(path)
	}
}

// Len returns the number of indexed (not necessarily loaded) entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}
