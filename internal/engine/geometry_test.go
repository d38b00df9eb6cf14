package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visualgpt/visualgpt/compositor/internal/layer"
)

var testFonts = NewFonts()

func TestMatrixScaleFactor(t *testing.T) {
	m := Translate(10, 20).Multiply(RotateAbout(30, 5, 5)).Multiply(Scale(2, 3))
	assert.InDelta(t, math.Sqrt(6), m.ScaleFactor(), 1e-9)
}

func TestRotateAboutKeepsCenter(t *testing.T) {
	m := RotateAbout(90, 50, 50)
	x, y := m.TransformPoint(50, 50)
	assert.InDelta(t, 50, x, 1e-9)
	assert.InDelta(t, 50, y, 1e-9)

	x, y = m.TransformPoint(100, 50)
	assert.InDelta(t, 50, x, 1e-9)
	assert.InDelta(t, 100, y, 1e-9)
}

func TestViewportToBuffer(t *testing.T) {
	vp := Viewport{BufferW: 800, BufferH: 600, ClientW: 400, ClientH: 300}
	p := vp.ToBuffer(100, 50)
	assert.Equal(t, Point{X: 200, Y: 100}, p)

	// No layout information yet: client and buffer pixels coincide.
	assert.Equal(t, Point{X: 7, Y: 9}, Viewport{}.ToBuffer(7, 9))
}

func TestHitTestTopmostWins(t *testing.T) {
	f := layer.Factory{CanvasW: 400, CanvasH: 400}
	bottom := f.NewShape(layer.ShapeRectangle)
	top := f.NewShape(layer.ShapeCircle)
	top.X += 30
	layers := layer.List{
		f.NewBackground(layer.BgSolid, layer.SolidValue("#ffffff")),
		bottom,
		top,
	}
	canvas := Size{W: 400, H: 400}

	// Overlap.
	assert.Equal(t, 2, HitTest(layers, testFonts, canvas, Point{X: 200, Y: 200}))
	// Only the bottom shape.
	assert.Equal(t, 1, HitTest(layers, testFonts, canvas, Point{X: 155, Y: 200}))
	// Only the background, which is never hit.
	assert.Equal(t, -1, HitTest(layers, testFonts, canvas, Point{X: 5, Y: 5}))
}

func TestHitTestEdgesInclusive(t *testing.T) {
	s := &layer.Shape{X: 10, Y: 10, Width: 20, Height: 20}
	layers := layer.List{s}
	canvas := Size{W: 100, H: 100}
	assert.Equal(t, 0, HitTest(layers, testFonts, canvas, Point{X: 10, Y: 10}))
	assert.Equal(t, 0, HitTest(layers, testFonts, canvas, Point{X: 30, Y: 30}))
	assert.Equal(t, -1, HitTest(layers, testFonts, canvas, Point{X: 30.5, Y: 30}))
}

func TestTextBoundsAlignment(t *testing.T) {
	txt := &layer.Text{Text: "SALE", X: 200, Y: 200, FontSize: 40, Align: layer.AlignCenter}
	w := testFonts.MeasureText(txt)
	require.Greater(t, w, 0.0)

	canvas := Size{W: 400, H: 400}
	b := LayerBounds(txt, testFonts, canvas)
	assert.InDelta(t, 200-w/2, b.X, 1e-9)
	assert.InDelta(t, 160, b.Y, 1e-9)
	assert.InDelta(t, w, b.Width, 1e-9)
	assert.InDelta(t, 40, b.Height, 1e-9)

	txt.Align = layer.AlignLeft
	assert.InDelta(t, 200, LayerBounds(txt, testFonts, canvas).X, 1e-9)
	txt.Align = layer.AlignRight
	assert.InDelta(t, 200-w, LayerBounds(txt, testFonts, canvas).X, 1e-9)
}

func TestMeasureTextLetterSpacing(t *testing.T) {
	txt := &layer.Text{Text: "ABC", FontSize: 32}
	plain := testFonts.MeasureText(txt)
	txt.LetterSpacing = 4
	assert.InDelta(t, plain+12, testFonts.MeasureText(txt), 1e-6)
}

func TestParseColor(t *testing.T) {
	cases := map[string]struct {
		want [4]uint8
		ok   bool
	}{
		"#fff":            {[4]uint8{255, 255, 255, 255}, true},
		"#3B82F6":         {[4]uint8{0x3B, 0x82, 0xF6, 255}, true},
		"#3B82F680":       {[4]uint8{0x3B, 0x82, 0xF6, 0x80}, true},
		"rgb(10, 20, 30)": {[4]uint8{10, 20, 30, 255}, true},
		"rgba(0,0,0,0.5)": {[4]uint8{0, 0, 0, 128}, true},
		"red":             {[4]uint8{255, 0, 0, 255}, true},
		"navy":            {[4]uint8{0, 0, 128, 255}, true},
		"teal":            {[4]uint8{0, 128, 128, 255}, true},
		"Crimson":         {[4]uint8{220, 20, 60, 255}, true},
		" hotpink ":       {[4]uint8{255, 105, 180, 255}, true},
		"silver":          {[4]uint8{192, 192, 192, 255}, true},
		"transparent":     {[4]uint8{0, 0, 0, 0}, true},
		"not-a-color":     {[4]uint8{0, 0, 0, 255}, false},
		"#12":             {[4]uint8{0, 0, 0, 255}, false},
	}
	for in, tc := range cases {
		c, ok := ParseColor(in)
		assert.Equal(t, tc.ok, ok, in)
		assert.Equal(t, tc.want, [4]uint8{c.R, c.G, c.B, c.A}, in)
	}
}
