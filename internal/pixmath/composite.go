package pixmath

import (
	"fmt"
	"image"
)

// Over alpha-composites src over dst in place. Both images use straight
// (non-premultiplied) alpha and must have equal bounds.
func Over(dst, src *image.NRGBA) {
	if dst.Bounds() != src.Bounds() {
		panic(fmt.Sprintf("pixmath: Over bounds mismatch: %v vs %v", dst.Bounds(), src.Bounds()))
	}
	b := dst.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		di := dst.PixOffset(b.Min.X, y)
		si := src.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			sa := src.Pix[si+3]
			switch sa {
			case 255:
				copy(dst.Pix[di:di+4], src.Pix[si:si+4])
			case 0:
				// keep dst
			default:
				as := float64(sa) / 255
				ad := float64(dst.Pix[di+3]) / 255
				ar := as + ad*(1-as)
				for c := 0; c < 3; c++ {
					cs := float64(src.Pix[si+c]) / 255
					cd := float64(dst.Pix[di+c]) / 255
					dst.Pix[di+c] = Clamp8((cs*as + cd*ad*(1-as)) / ar * 255)
				}
				dst.Pix[di+3] = Clamp8(ar * 255)
			}
			di += 4
			si += 4
		}
	}
}

// InversePatch solves, per pixel, for the minimal overlay that
// alpha-composites onto base to produce result:
//
//	Ar = Ap + Ab(1-Ap)
//	Cr·Ar = Cp·Ap + Cb·Ab·(1-Ap)
//
// Alpha case split: Ar > Ab determines Ap uniquely; Ar == Ab == 1 picks
// the smallest Ap consistent with the color equation, preferring the
// Cp ∈ {0, 1} boundary per channel; anything else forces Ap = 0. The
// patch alpha is re-quantized to uint8 before the color solve so the
// stored bytes reproduce the result exactly when composited back.
//
// Returns nil when every pixel of result equals base, signalling that
// the result is exactly the base image. Bounds must match; a mismatch
// is a caller error.
func InversePatch(base, result *image.NRGBA) *image.NRGBA {
	if base.Bounds() != result.Bounds() {
		panic(fmt.Sprintf("pixmath: InversePatch bounds mismatch: %v vs %v", base.Bounds(), result.Bounds()))
	}
	bounds := base.Bounds()
	patch := image.NewNRGBA(bounds)
	changed := false

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		bi := base.PixOffset(bounds.Min.X, y)
		ri := result.PixOffset(bounds.Min.X, y)
		pi := patch.PixOffset(bounds.Min.X, y)
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			bp := base.Pix[bi : bi+4]
			rp := result.Pix[ri : ri+4]
			if bp[0] == rp[0] && bp[1] == rp[1] && bp[2] == rp[2] && bp[3] == rp[3] {
				bi, ri, pi = bi+4, ri+4, pi+4
				continue
			}
			changed = true

			ab := float64(bp[3]) / 255
			ar := float64(rp[3]) / 255

			var ap float64
			switch {
			case rp[3] > bp[3]:
				ap = (ar - ab) / (1 - ab)
			case rp[3] == 255 && bp[3] == 255:
				// Both fully opaque: the alpha equation is satisfied by
				// any Ap, so take the smallest one that can still reach
				// the result color on every channel.
				for c := 0; c < 3; c++ {
					crar := float64(rp[c]) / 255 * ar
					cbab := float64(bp[c]) / 255 * ab
					dividend := crar - cbab
					var divisor float64
					if dividend > 0 {
						divisor = 1 - cbab
					} else {
						divisor = -cbab
					}
					var t float64
					if divisor != 0 {
						t = dividend / divisor
					}
					if t < 0 {
						t = 0
					} else if t > 1 {
						t = 1
					}
					if t > ap {
						ap = t
					}
				}
			default:
				// Result is no more opaque than base and not the opaque
				// special case: no overlay can lower alpha, so Ap = 0.
			}

			apU8 := QuantizeChannel(ap)
			ap = float64(apU8) / 255

			pp := patch.Pix[pi : pi+4]
			switch {
			case apU8 == 255:
				pp[0], pp[1], pp[2] = rp[0], rp[1], rp[2]
			case apU8 > 0:
				for c := 0; c < 3; c++ {
					cr := float64(rp[c]) / 255
					cb := float64(bp[c]) / 255
					cp := (cr*ar - cb*ab*(1-ap)) / ap
					if cp < 0 {
						cp = 0
					} else if cp > 1 {
						cp = 1
					}
					pp[c] = QuantizeChannel(cp)
				}
			}
			pp[3] = apU8

			bi, ri, pi = bi+4, ri+4, pi+4
		}
	}

	if !changed {
		return nil
	}
	return patch
}
