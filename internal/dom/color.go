package dom

import (
	"math"
	"strconv"
	"strings"

	"github.com/mazznoer/csscolorparser"
)

// Color is an sRGB color with alpha in [0,1].
type Color struct {
	R, G, B uint8
	A       float64
}

var (
	// White is the canvas color assumed behind a transparent page.
	White = Color{R: 255, G: 255, B: 255, A: 1}
	// Black is the initial text color.
	Black = Color{A: 1}
	// Transparent is the initial background color.
	Transparent = Color{}
)

// ParseColor understands every CSS color syntax: named colors, hex, rgb(), hsl() and hwb().
// Bare hex digits without '#' are not colors in CSS and are rejected.
func ParseColor(value string) (Color, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" || bareHex(v) {
		return Color{}, false
	}
	c, err := csscolorparser.Parse(v)
	if err != nil {
		return Color{}, false
	}
	return Color{R: channel(c.R), G: channel(c.G), B: channel(c.B), A: math.Max(0, math.Min(1, c.A))}, true
}

func channel(f float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, f)) * 255))
}

func bareHex(v string) bool {
	for _, r := range v {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}

// IsColorToken reports whether a shorthand token denotes a color.
func IsColorToken(token string) bool {
	_, ok := ParseColor(token)
	return ok
}

// Opaque reports whether the color hides what is behind it.
func (c Color) Opaque() bool {
	return c.A >= 1
}

// String renders the color the way getComputedStyle does.
func (c Color) String() string {
	if c.A >= 1 {
		return "rgb(" + strconv.Itoa(int(c.R)) + ", " + strconv.Itoa(int(c.G)) + ", " + strconv.Itoa(int(c.B)) + ")"
	}
	return "rgba(" + strconv.Itoa(int(c.R)) + ", " + strconv.Itoa(int(c.G)) + ", " + strconv.Itoa(int(c.B)) + ", " +
		strconv.FormatFloat(c.A, 'f', -1, 64) + ")"
}
