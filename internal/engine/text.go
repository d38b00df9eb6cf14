package engine

import (
	"strconv"
	"strings"
	"sync"

	ggtext "github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/visualgpt/visualgpt/compositor/internal/layer"
)

// TextMeasurer reports the rendered width of a text layer in logical pixels,
// letter spacing included.
type TextMeasurer interface {
	MeasureText(t *layer.Text) float64
}

type faceKey struct {
	mono, bold, italic bool
}

type glyphKey struct {
	face faceKey
	gid  ggtext.GlyphID
	size float64
}

// Fonts resolves CSS-ish font requests to the embedded Go font family and
// produces glyph outlines. It is safe for concurrent use.
type Fonts struct {
	mu      sync.Mutex
	sources map[faceKey]*ggtext.FontSource
	ext     *ggtext.OutlineExtractor

	outlines *ggtext.Cache[glyphKey, *ggtext.GlyphOutline]
}

func NewFonts() *Fonts {
	return &Fonts{
		sources:  make(map[faceKey]*ggtext.FontSource),
		ext:      ggtext.NewOutlineExtractor(),
		outlines: ggtext.NewCache[glyphKey, *ggtext.GlyphOutline](4096),
	}
}

func resolveFace(t *layer.Text) faceKey {
	fam := strings.ToLower(t.FontFamily)
	k := faceKey{
		mono: strings.Contains(fam, "mono") || strings.Contains(fam, "courier") || strings.Contains(fam, "code"),
	}
	switch w := strings.ToLower(strings.TrimSpace(t.FontWeight)); w {
	case "bold", "bolder":
		k.bold = true
	default:
		if n, err := strconv.Atoi(w); err == nil && n >= 600 {
			k.bold = true
		}
	}
	switch strings.ToLower(t.FontStyle) {
	case "italic", "oblique":
		k.italic = !k.mono
	}
	return k
}

func faceData(k faceKey) []byte {
	switch {
	case k.mono && k.bold:
		return gomonobold.TTF
	case k.mono:
		return gomono.TTF
	case k.bold && k.italic:
		return gobolditalic.TTF
	case k.bold:
		return gobold.TTF
	case k.italic:
		return goitalic.TTF
	}
	return goregular.TTF
}

func (f *Fonts) source(k faceKey) *ggtext.FontSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	if src, ok := f.sources[k]; ok {
		return src
	}
	src, err := ggtext.NewFontSource(faceData(k))
	if err != nil {
		src = nil
	}
	f.sources[k] = src
	return src
}

func (f *Fonts) outline(k faceKey, src *ggtext.FontSource, gid ggtext.GlyphID, size float64) *ggtext.GlyphOutline {
	key := glyphKey{face: k, gid: gid, size: size}
	if o, ok := f.outlines.Get(key); ok {
		return o
	}
	f.mu.Lock()
	o, err := f.ext.ExtractOutline(src.Parsed(), gid, size)
	f.mu.Unlock()
	if err != nil {
		o = nil
	}
	f.outlines.Set(key, o)
	return o
}

type placedGlyph struct {
	gid ggtext.GlyphID
	x   float64
}

// layout positions glyphs from a zero origin and returns the total width.
func (f *Fonts) layout(t *layer.Text) (faceKey, *ggtext.FontSource, []placedGlyph, float64) {
	k := resolveFace(t)
	src := f.source(k)
	if src == nil || t.FontSize <= 0 || t.Text == "" {
		return k, src, nil, 0
	}
	var glyphs []placedGlyph
	x := 0.0
	for g := range src.Face(t.FontSize).Glyphs(t.Text) {
		glyphs = append(glyphs, placedGlyph{gid: g.GID, x: x})
		x += g.Advance + t.LetterSpacing
	}
	return k, src, glyphs, x
}

// MeasureText implements TextMeasurer.
func (f *Fonts) MeasureText(t *layer.Text) float64 {
	_, _, _, w := f.layout(t)
	return w
}

// alignOffset is how far left of the anchor the text box starts.
func alignOffset(a layer.Align, width float64) float64 {
	switch a {
	case layer.AlignCenter:
		return width / 2
	case layer.AlignRight:
		return width
	}
	return 0
}

// TextPath returns the glyph outlines of t in logical canvas coordinates,
// aligned around the anchor with the baseline at t.Y.
func (f *Fonts) TextPath(t *layer.Text) *Path {
	k, src, glyphs, width := f.layout(t)
	p := &Path{}
	ox := t.X - alignOffset(t.Align, width)
	for _, g := range glyphs {
		o := f.outline(k, src, g.gid, t.FontSize)
		if o == nil {
			continue
		}
		gx := ox + g.x
		open := false
		for _, s := range o.Segments {
			pt := s.Points
			switch s.Op {
			case ggtext.OutlineOpMoveTo:
				// Contours are implicitly closed; stroking needs it explicit.
				if open {
					p.Close()
				}
				open = true
				p.MoveTo(gx+float64(pt[0].X), t.Y+float64(pt[0].Y))
			case ggtext.OutlineOpLineTo:
				p.LineTo(gx+float64(pt[0].X), t.Y+float64(pt[0].Y))
			case ggtext.OutlineOpQuadTo:
				p.QuadTo(gx+float64(pt[0].X), t.Y+float64(pt[0].Y),
					gx+float64(pt[1].X), t.Y+float64(pt[1].Y))
			case ggtext.OutlineOpCubicTo:
				p.CubeTo(gx+float64(pt[0].X), t.Y+float64(pt[0].Y),
					gx+float64(pt[1].X), t.Y+float64(pt[1].Y),
					gx+float64(pt[2].X), t.Y+float64(pt[2].Y))
			}
		}
		if open {
			p.Close()
		}
	}
	return p
}
