package heuristics

import (
	"math"

	"AccessibilityScanner/internal/dom"
)

// Luminance is the relative luminance of an sRGB color.
func Luminance(c dom.Color) float64 {
	channel := func(v uint8) float64 {
		x := float64(v) / 255
		if x <= 0.03928 {
			return x / 12.92
		}
		return math.Pow((x+0.055)/1.055, 2.4)
	}
	return 0.2126*channel(c.R) + 0.7152*channel(c.G) + 0.0722*channel(c.B)
}

// ContrastRatio is (lighter + 0.05) / (darker + 0.05).
func ContrastRatio(l1, l2 float64) float64 {
	lighter := math.Max(l1, l2)
	darker := math.Min(l1, l2)
	return (lighter + 0.05) / (darker + 0.05)
}

// Contrast blends a translucent foreground over the background and returns the ratio.
func Contrast(fg, bg dom.Color) float64 {
	if fg.A < 1 {
		fg = Blend(fg, bg)
	}
	return ContrastRatio(Luminance(fg), Luminance(bg))
}

// Blend composites c over an opaque backdrop.
func Blend(c, backdrop dom.Color) dom.Color {
	mix := func(top, bottom uint8) uint8 {
		return uint8(math.Round(float64(top)*c.A + float64(bottom)*(1-c.A)))
	}
	return dom.Color{R: mix(c.R, backdrop.R), G: mix(c.G, backdrop.G), B: mix(c.B, backdrop.B), A: 1}
}

// Text size thresholds for contrast minimum.
const (
	LargeTextPx     = 24.0
	LargeBoldTextPx = 18.66
	NormalThreshold = 4.5
	LargeThreshold  = 3.0
)

// ContrastThreshold picks the required ratio for the given font size and weight.
func ContrastThreshold(fontSizePx float64, fontWeight int) float64 {
	if fontSizePx >= LargeTextPx || (fontSizePx >= LargeBoldTextPx && fontWeight >= 700) {
		return LargeThreshold
	}
	return NormalThreshold
}
