package pixmath

import (
	"errors"
	"fmt"
	"image"
)

// Quad is the four corners of a projective destination region in canvas
// coordinates, ordered top-left, top-right, bottom-left, bottom-right.
type Quad [4][2]int

// Validate rejects quads that cannot anchor a perspective transform.
func (q Quad) Validate() error {
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			if q[i] == q[j] {
				return fmt.Errorf("pixmath: quad has coincident corners %d and %d", i, j)
			}
		}
	}
	return nil
}

// RectSize derives the flat rectangle a quad most tightly represents:
// the smaller of the two edge spans on each axis. Used to size bitmaps
// (rendered text) before warping them onto the quad.
func (q Quad) RectSize() (w, h int) {
	w = q[1][0] - q[0][0]
	if d := q[3][0] - q[2][0]; d < w {
		w = d
	}
	h = q[2][1] - q[0][1]
	if d := q[3][1] - q[1][1]; d < h {
		h = d
	}
	return w, h
}

func (q Quad) points() [4][2]float64 {
	var p [4][2]float64
	for i := range q {
		p[i] = [2]float64{float64(q[i][0]), float64(q[i][1])}
	}
	return p
}

// WarpToQuad maps src's pixel rectangle onto the quad and resamples it
// bilinearly into a w×h canvas. Pixels outside the quad stay fully
// transparent. A zero-size source or a degenerate quad is invalid input.
func WarpToQuad(src *image.NRGBA, quad Quad, w, h int) (*image.NRGBA, error) {
	sb := src.Bounds()
	sw, sh := sb.Dx(), sb.Dy()
	if sw <= 0 || sh <= 0 {
		return nil, errors.New("pixmath: cannot warp zero-size image")
	}
	if err := quad.Validate(); err != nil {
		return nil, err
	}

	corners := [4][2]float64{
		{0, 0},
		{float64(sw - 1), 0},
		{0, float64(sh - 1)},
		{float64(sw - 1), float64(sh - 1)},
	}
	fwd, err := PerspectiveTransform(corners, quad.points())
	if err != nil {
		return nil, err
	}
	inv, err := fwd.Inverse()
	if err != nil {
		return nil, err
	}

	// Only the quad's bounding box can receive pixels.
	x0, y0 := quad[0][0], quad[0][1]
	x1, y1 := x0, y0
	for _, c := range quad[1:] {
		if c[0] < x0 {
			x0 = c[0]
		}
		if c[0] > x1 {
			x1 = c[0]
		}
		if c[1] < y0 {
			y0 = c[1]
		}
		if c[1] > y1 {
			y1 = c[1]
		}
	}
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 >= w {
		x1 = w - 1
	}
	if y1 >= h {
		y1 = h - 1
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			u, v, ok := inv.Apply(float64(x), float64(y))
			if !ok || u < 0 || v < 0 || u > float64(sw-1) || v > float64(sh-1) {
				continue
			}
			r, g, b, a := sampleBilinear(src, u, v)
			i := dst.PixOffset(x, y)
			dst.Pix[i] = r
			dst.Pix[i+1] = g
			dst.Pix[i+2] = b
			dst.Pix[i+3] = a
		}
	}
	return dst, nil
}

// sampleBilinear filters four neighboring texels with edge clamping.
// u and v are relative to the image's own bounds, so sub-images sample
// correctly. Accesses Pix directly for performance.
func sampleBilinear(img *image.NRGBA, u, v float64) (r, g, b, a uint8) {
	bnd := img.Bounds()
	w, h := bnd.Dx(), bnd.Dy()

	x0 := int(u)
	y0 := int(v)
	x1 := x0 + 1
	y1 := y0 + 1
	if x1 >= w {
		x1 = w - 1
	}
	if y1 >= h {
		y1 = h - 1
	}
	dx := u - float64(x0)
	dy := v - float64(y0)

	pix := img.Pix
	row0 := img.PixOffset(bnd.Min.X, bnd.Min.Y+y0)
	row1 := img.PixOffset(bnd.Min.X, bnd.Min.Y+y1)

	i00 := row0 + x0*4
	i10 := row0 + x1*4
	i01 := row1 + x0*4
	i11 := row1 + x1*4

	w00 := (1 - dx) * (1 - dy)
	w10 := dx * (1 - dy)
	w01 := (1 - dx) * dy
	w11 := dx * dy

	fr := float64(pix[i00])*w00 + float64(pix[i10])*w10 + float64(pix[i01])*w01 + float64(pix[i11])*w11
	fg := float64(pix[i00+1])*w00 + float64(pix[i10+1])*w10 + float64(pix[i01+1])*w01 + float64(pix[i11+1])*w11
	fb := float64(pix[i00+2])*w00 + float64(pix[i10+2])*w10 + float64(pix[i01+2])*w01 + float64(pix[i11+2])*w11
	fa := float64(pix[i00+3])*w00 + float64(pix[i10+3])*w10 + float64(pix[i01+3])*w01 + float64(pix[i11+3])*w11

	return uint8(fr + 0.5), uint8(fg + 0.5), uint8(fb + 0.5), uint8(fa + 0.5)
}
