package engine

import (
	"image/color"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// PaintState is the per-layer drawing context. It is a value: every helper
// that needs a different transform or alpha derives a new one, so nothing
// set for one layer can leak into the next.
type PaintState struct {
	// Transform maps logical canvas coordinates to device pixels.
	Transform Matrix2D
	// Alpha is the layer opacity in [0,1].
	Alpha float64
}

// Then returns a state whose transform applies m before the current one.
func (ps PaintState) Then(m Matrix2D) PaintState {
	ps.Transform = ps.Transform.Multiply(m)
	return ps
}

// Pixels converts a logical length into device pixels.
func (ps PaintState) Pixels(v float64) float64 {
	return v * ps.Transform.ScaleFactor()
}

// ParseColor understands #rgb, #rgba, #rrggbb, #rrggbbaa, rgb(), rgba(),
// "transparent" and the SVG 1.1 color keywords. Anything else yields opaque
// black and false.
func ParseColor(s string) (color.NRGBA, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "transparent" {
		return color.NRGBA{}, true
	}
	if c, ok := colornames.Map[s]; ok {
		return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}, true
	}
	if strings.HasPrefix(s, "#") {
		return parseHex(s[1:])
	}
	if strings.HasPrefix(s, "rgb") {
		return parseFunc(s)
	}
	return color.NRGBA{A: 255}, false
}

// MustColor is ParseColor without the ok flag.
func MustColor(s string) color.NRGBA {
	c, _ := ParseColor(s)
	return c
}

func parseHex(h string) (color.NRGBA, bool) {
	black := color.NRGBA{A: 255}
	var digits []uint8
	for _, r := range h {
		v, ok := hexVal(r)
		if !ok {
			return black, false
		}
		digits = append(digits, v)
	}
	switch len(digits) {
	case 3, 4:
		c := color.NRGBA{R: digits[0] * 17, G: digits[1] * 17, B: digits[2] * 17, A: 255}
		if len(digits) == 4 {
			c.A = digits[3] * 17
		}
		return c, true
	case 6, 8:
		c := color.NRGBA{
			R: digits[0]<<4 | digits[1],
			G: digits[2]<<4 | digits[3],
			B: digits[4]<<4 | digits[5],
			A: 255,
		}
		if len(digits) == 8 {
			c.A = digits[6]<<4 | digits[7]
		}
		return c, true
	}
	return black, false
}

func hexVal(r rune) (uint8, bool) {
	switch {
	case r >= '0' && r <= '9':
		return uint8(r - '0'), true
	case r >= 'a' && r <= 'f':
		return uint8(r-'a') + 10, true
	}
	return 0, false
}

func parseFunc(s string) (color.NRGBA, bool) {
	black := color.NRGBA{A: 255}
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return black, false
	}
	parts := strings.Split(s[open+1:len(s)-1], ",")
	if len(parts) != 3 && len(parts) != 4 {
		return black, false
	}
	var ch [3]uint8
	for i := range 3 {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return black, false
		}
		ch[i] = clamp8(v)
	}
	c := color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: 255}
	if len(parts) == 4 {
		a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil {
			return black, false
		}
		c.A = clamp8(a * 255)
	}
	return c, true
}

func clamp8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// withAlpha scales the color's alpha by a in [0,1].
func withAlpha(c color.NRGBA, a float64) color.NRGBA {
	c.A = clamp8(float64(c.A) * a)
	return c
}
