package pixmath

// RGBToHSV converts one pixel from RGB to HSV. All six channels are in
// [0, 1]; hue wraps so red sits at both 0 and 1.
func RGBToHSV(r, g, b float64) (h, s, v float64) {
	max := r
	if g > max {
		max = g
	}
	if b > max {
		max = b
	}
	min := r
	if g < min {
		min = g
	}
	if b < min {
		min = b
	}

	v = max
	d := max - min
	if max == 0 || d == 0 {
		return 0, 0, v
	}
	s = d / max

	switch max {
	case r:
		h = (g - b) / d
		if h < 0 {
			h += 6
		}
	case g:
		h = (b-r)/d + 2
	default:
		h = (r-g)/d + 4
	}
	return h / 6, s, v
}

// HSVToRGB converts one pixel from HSV to RGB, all channels in [0, 1].
func HSVToRGB(h, s, v float64) (r, g, b float64) {
	if s == 0 {
		return v, v, v
	}
	h6 := h * 6
	i := int(h6)
	f := h6 - float64(i)
	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))
	switch i % 6 {
	case 0:
		return v, t, p
	case 1:
		return q, v, p
	case 2:
		return p, v, t
	case 3:
		return p, q, v
	case 4:
		return t, p, v
	default:
		return v, p, q
	}
}

// QuantizeChannel maps a [0, 1] channel onto uint8 by truncation. The
// recolor and inverse-compositing pipelines quantize this way throughout;
// changing it to rounding would change committed pack bytes.
func QuantizeChannel(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v * 255)
}

// Clamp8 rounds a float to uint8 with saturation.
func Clamp8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
