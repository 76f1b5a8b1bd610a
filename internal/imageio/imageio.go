// Package imageio decodes source rasters (PNG, TGA, WebP) into NRGBA
// and encodes render outputs (PNG, WebP), chosen by file extension.
package imageio

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/webp"
)

// Load reads and decodes an image file into NRGBA. The decoder is
// picked by extension, not by sniffing: the tga format has no magic
// bytes, so registering it poisons image.Decode for every other format.
func Load(path string) (*image.NRGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("imageio: open %s: %w", path, err)
	}
	defer f.Close()

	var img image.Image
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tga":
		img, err = tga.Decode(f)
	case ".webp":
		img, err = webp.Decode(f)
	default:
		img, err = png.Decode(f)
	}
	if err != nil {
		return nil, fmt.Errorf("imageio: decode %s: %w", path, err)
	}
	return ToNRGBA(img), nil
}

// Save encodes img to path, creating parent directories. ".webp" selects
// lossless WebP; everything else is written as PNG.
func Save(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("imageio: mkdir for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("imageio: create %s: %w", path, err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".webp") {
		if err := nativewebp.Encode(f, img, nil); err != nil {
			return fmt.Errorf("imageio: webp encode %s: %w", path, err)
		}
		return nil
	}
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("imageio: png encode %s: %w", path, err)
	}
	return nil
}

// ToNRGBA converts any image to NRGBA format.
func ToNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok && n.Bounds().Min == (image.Point{}) {
		return n
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// ToSelection thresholds any image into a 0/255 selection bitmap: with
// an alpha channel any non-transparent pixel is selected, otherwise any
// non-black pixel is.
func ToSelection(src image.Image) *image.Gray {
	b := src.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	if img, ok := src.(*image.Gray); ok {
		for y := 0; y < b.Dy(); y++ {
			si := img.PixOffset(b.Min.X, b.Min.Y+y)
			di := out.PixOffset(0, y)
			for x := 0; x < b.Dx(); x++ {
				if img.Pix[si+x] > 0 {
					out.Pix[di+x] = 255
				}
			}
		}
		return out
	}

	opaque := false
	if o, ok := src.(interface{ Opaque() bool }); ok {
		opaque = o.Opaque()
	}
	for y := 0; y < b.Dy(); y++ {
		di := out.PixOffset(0, y)
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			set := c.A > 0
			if opaque {
				set = c.R > 0 || c.G > 0 || c.B > 0
			}
			if set {
				out.Pix[di+x] = 255
			}
		}
	}
	return out
}
