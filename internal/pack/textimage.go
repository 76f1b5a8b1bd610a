package pack

import (
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/width"
)

const (
	textHeightMultiplier = 1.1
	minTextPoints        = 12
)

var (
	textFontOnce sync.Once
	textFont     *opentype.Font
	textFontErr  error
)

func loadTextFont() (*opentype.Font, error) {
	textFontOnce.Do(func() {
		textFont, textFontErr = opentype.Parse(goregular.TTF)
	})
	return textFont, textFontErr
}

// startingFontPoints picks the largest font size worth trying for text
// placed on a canvas this wide: roughly 30 characters per line, never
// below 24 points.
func startingFontPoints(canvasW int) int {
	pts := int(float64(canvasW) / 30 * 0.75)
	if pts < 24 {
		pts = 24
	}
	return pts
}

// RenderTextImage renders wrapped, centered text onto a w×h bitmap.
// The font size starts at startPoints and shrinks until the wrapped text
// fits vertically, bottoming out at 12 points (then drawing anyway).
// A nil text color draws black; a nil background leaves the bitmap
// transparent, otherwise it is filled opaque.
func RenderTextImage(text string, textColor *Color, startPoints, w, h int, background *Color) (*image.NRGBA, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("pack: cannot render text into %dx%d image", w, h)
	}
	fnt, err := loadTextFont()
	if err != nil {
		return nil, fmt.Errorf("pack: load text font: %w", err)
	}

	// Fullwidth scripts need roughly twice the horizontal budget per
	// character.
	widthMultiplier := 0.55
	for _, r := range text {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianFullwidth, width.EastAsianWide, width.EastAsianAmbiguous:
			widthMultiplier = 1.1
		}
		if widthMultiplier > 1 {
			break
		}
	}

	paragraphs := strings.Split(text, "\n")
	for pts := startPoints; ; {
		maxChars := int(float64(w) / (float64(pts) * widthMultiplier))
		if maxChars < 1 {
			maxChars = 1
		}
		var lines []string
		for _, p := range paragraphs {
			lines = append(lines, wrapByRunes(p, maxChars)...)
		}
		textHeight := float64(pts) * float64(len(lines)) * textHeightMultiplier
		force := pts <= minTextPoints
		if textHeight > float64(h) && !force {
			pts -= max(2, pts/8)
			if pts < minTextPoints {
				pts = minTextPoints
			}
			continue
		}
		return drawTextLines(fnt, lines, textColor, pts, w, h, background)
	}
}

// wrapByRunes greedily wraps words so no line exceeds maxChars runes;
// a single overlong word is left intact on its own line.
func wrapByRunes(p string, maxChars int) []string {
	words := strings.Fields(p)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	cur := words[0]
	for _, word := range words[1:] {
		if len([]rune(cur))+1+len([]rune(word)) <= maxChars {
			cur += " " + word
			continue
		}
		lines = append(lines, cur)
		cur = word
	}
	return append(lines, cur)
}

func drawTextLines(fnt *opentype.Font, lines []string, textColor *Color, pts, w, h int, background *Color) (*image.NRGBA, error) {
	face, err := opentype.NewFace(fnt, &opentype.FaceOptions{
		Size:    float64(pts),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("pack: build %dpt face: %w", pts, err)
	}
	defer face.Close()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	if background != nil {
		for i := 0; i < len(img.Pix); i += 4 {
			img.Pix[i] = background.R
			img.Pix[i+1] = background.G
			img.Pix[i+2] = background.B
			img.Pix[i+3] = 255
		}
	}

	fg := Color{}
	if textColor != nil {
		fg = *textColor
	}

	lineHeight := float64(pts) * textHeightMultiplier
	totalHeight := lineHeight * float64(len(lines))
	y := (float64(h) - totalHeight) / 2
	if y < 0 {
		y = 0
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.NRGBA{R: fg.R, G: fg.G, B: fg.B, A: 255}),
		Face: face,
	}
	for _, line := range lines {
		adv := d.MeasureString(line)
		x := (float64(w) - float64(adv.Round())) / 2
		if x < 0 {
			x = 0
		}
		d.Dot = fixed.Point26_6{
			X: fixed.I(int(x)),
			Y: fixed.I(int(y)) + fixed.I(pts),
		}
		d.DrawString(line)
		y += lineHeight
	}
	return img, nil
}
