package engine

import (
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/blend"
	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/transform"
	"golang.org/x/image/draw"

	"github.com/visualgpt/visualgpt/compositor/internal/layer"
)

type effectKind uint8

const (
	effectNone effectKind = iota
	effectShadow
	effectGlow
	effectNeon
	effectHalo
)

// effect is the single silhouette effect a layer renders with.
type effect struct {
	kind   effectKind
	color  color.NRGBA
	blur   float64
	dx, dy float64
}

// pickEffect applies the one priority rule shared by every layer kind:
// halo, neon and glow form the glow family and at most one of them draws,
// in that order of preference; a drop shadow draws only when no glow-family
// effect is set. Effects with a transparent color are ignored.
func pickEffect(shadow *layer.Shadow, glow, halo, neon *layer.Glow) effect {
	for _, g := range []struct {
		kind effectKind
		v    *layer.Glow
	}{{effectHalo, halo}, {effectNeon, neon}, {effectGlow, glow}} {
		if g.v == nil {
			continue
		}
		c := MustColor(g.v.Color)
		if c.A == 0 {
			continue
		}
		return effect{kind: g.kind, color: c, blur: math.Max(0, g.v.Blur)}
	}
	if shadow != nil {
		c := MustColor(shadow.Color)
		if c.A > 0 {
			return effect{
				kind:  effectShadow,
				color: c,
				blur:  math.Max(0, shadow.Blur),
				dx:    shadow.OffsetX,
				dy:    shadow.OffsetY,
			}
		}
	}
	return effect{}
}

// renderEffect paints e for the silhouette sil into buf. Blur radii and
// offsets are logical lengths scaled through ps.
func renderEffect(buf *image.RGBA, sil *image.Alpha, e effect, ps PaintState) {
	if e.kind == effectNone {
		return
	}
	sigma := ps.Pixels(e.blur) / 2
	switch e.kind {
	case effectHalo:
		glowOnce(buf, sil, e.color, sigma, 0, 0)
		glowOnce(buf, sil, e.color, sigma, 0, 0)
	case effectNeon:
		glowOnce(buf, sil, e.color, sigma, 0, 0)
		glowOnce(buf, sil, e.color, 2*sigma, 0, 0)
	case effectGlow:
		glowOnce(buf, sil, e.color, sigma, 0, 0)
	case effectShadow:
		dx := int(math.Round(ps.Pixels(e.dx)))
		dy := int(math.Round(ps.Pixels(e.dy)))
		glowOnce(buf, sil, e.color, sigma, dx, dy)
	}
}

// glowOnce composites a blurred, colored copy of sil onto buf shifted by
// (dx, dy).
func glowOnce(buf *image.RGBA, sil *image.Alpha, c color.NRGBA, sigma float64, dx, dy int) {
	ob := opaqueBounds(sil)
	if ob.Empty() {
		return
	}
	pad := int(math.Ceil(blurRadius(sigma)*2)) + 2
	region := ob.Inset(-pad).Intersect(sil.Bounds())
	colored := colorize(sil, c, region)
	out := gaussian(colored, sigma)
	composite(buf, out, 1, region.Min.X+dx, region.Min.Y+dy)
}

// colorize returns a zero-origin premultiplied image of c masked by sil
// over region.
func colorize(sil *image.Alpha, c color.NRGBA, region image.Rectangle) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, region.Dx(), region.Dy()))
	for y := 0; y < region.Dy(); y++ {
		si := sil.PixOffset(region.Min.X, region.Min.Y+y)
		di := out.PixOffset(0, y)
		for x := 0; x < region.Dx(); x++ {
			m := uint32(sil.Pix[si+x])
			if m == 0 {
				continue
			}
			a := m * uint32(c.A) / 255
			out.Pix[di+4*x+0] = uint8(uint32(c.R) * a / 255)
			out.Pix[di+4*x+1] = uint8(uint32(c.G) * a / 255)
			out.Pix[di+4*x+2] = uint8(uint32(c.B) * a / 255)
			out.Pix[di+4*x+3] = uint8(a)
		}
	}
	return out
}

// maxDirectRadius bounds the kernel size blurred at full resolution; wider
// blurs run on a downsampled copy.
const maxDirectRadius = 6.0

// blurRadius converts a Gaussian sigma to the radius bild's kernel expects.
// bild's kernel is close to flat across its radius, and a box of half-width
// r has a standard deviation of r/sqrt(3).
func blurRadius(sigma float64) float64 {
	return sigma * math.Sqrt(3)
}

// gaussian blurs a zero-origin image. The result has the same size.
func gaussian(src *image.RGBA, sigma float64) *image.RGBA {
	r := blurRadius(sigma)
	if r < 0.5 {
		return src
	}
	if r <= maxDirectRadius {
		return blur.Gaussian(src, r)
	}
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	f := r / maxDirectRadius
	sw := max(1, int(math.Ceil(float64(w)/f)))
	sh := max(1, int(math.Ceil(float64(h)/f)))
	small := transform.Resize(src, sw, sh, transform.Linear)
	small = blur.Gaussian(small, maxDirectRadius)
	return transform.Resize(small, w, h, transform.Linear)
}

// applyTint overlay-blends c onto the pixels of img inside region at
// strength a, keeping img's own alpha so nothing outside the image is
// tinted.
func applyTint(img *image.RGBA, region image.Rectangle, c color.NRGBA, a float64) {
	region = region.Intersect(img.Bounds())
	if region.Empty() || a <= 0 {
		return
	}
	w, h := region.Dx(), region.Dy()

	base := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := img.PixOffset(region.Min.X+x, region.Min.Y+y)
			j := base.PixOffset(x, y)
			pa := img.Pix[i+3]
			if pa == 0 {
				continue
			}
			for k := range 3 {
				base.Pix[j+k] = uint8(uint32(img.Pix[i+k]) * 255 / uint32(pa))
			}
			base.Pix[j+3] = 255
		}
	}
	fg := image.NewRGBA(base.Bounds())
	draw.Draw(fg, fg.Bounds(), image.NewUniform(color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255}), image.Point{}, draw.Src)
	over := blend.Overlay(base, fg)

	strength := a * float64(c.A) / 255
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := img.PixOffset(region.Min.X+x, region.Min.Y+y)
			pa := img.Pix[i+3]
			if pa == 0 {
				continue
			}
			j := base.PixOffset(x, y)
			o := over.PixOffset(x, y)
			for k := range 3 {
				straight := float64(base.Pix[j+k])
				mixed := straight + (float64(over.Pix[o+k])-straight)*strength
				img.Pix[i+k] = clamp8(mixed * float64(pa) / 255)
			}
		}
	}
}
