package layer

import (
	"math"

	"github.com/visualgpt/visualgpt/compositor/internal/typeid"
)

const (
	DefaultText       = "Your Text"
	DefaultFontSize   = 32
	DefaultFontFamily = "Inter"
	DefaultShapeSize  = 100
	DefaultShapeFill  = "#3B82F6"
)

// Factory builds layers with defaults sized to one canvas, so the renderer
// never sees a layer with missing required fields.
type Factory struct {
	CanvasW float64
	CanvasH float64
}

func (f Factory) center() (float64, float64) {
	return f.CanvasW / 2, f.CanvasH / 2
}

// NewText returns a centered white text layer with a soft drop shadow,
// anchored at the canvas center.
func (f Factory) NewText(text string) *Text {
	if text == "" {
		text = DefaultText
	}
	cx, cy := f.center()
	return &Text{
		Base:       Base{ID: typeid.NewLayerID(), Opacity: 100},
		Text:       text,
		X:          cx,
		Y:          cy,
		FontSize:   DefaultFontSize,
		FontFamily: DefaultFontFamily,
		FontWeight: "bold",
		Color:      "#FFFFFF",
		Align:      AlignCenter,
		Shadow: &Shadow{
			Color:   "rgba(0,0,0,0.5)",
			Blur:    4,
			OffsetX: 2,
			OffsetY: 2,
		},
	}
}

// NewShape returns a 100x100 shape centered on the canvas at 80% opacity.
func (f Factory) NewShape(kind ShapeKind) *Shape {
	cx, cy := f.center()
	return &Shape{
		Base:      Base{ID: typeid.NewLayerID(), Opacity: 80},
		ShapeKind: kind,
		X:         cx - DefaultShapeSize/2,
		Y:         cy - DefaultShapeSize/2,
		Width:     DefaultShapeSize,
		Height:    DefaultShapeSize,
		Fill:      DefaultShapeFill,
	}
}

// NewImage places an image centered on the canvas. Textures ignore the
// requested size and become a max(canvasW, canvasH) square at 50% opacity
// so they cover the canvas without stretching.
func (f Factory) NewImage(url string, width, height float64, isTexture bool) *Image {
	opacity := 100
	if isTexture {
		side := math.Max(f.CanvasW, f.CanvasH)
		width, height = side, side
		opacity = 50
	}
	cx, cy := f.center()
	return &Image{
		Base:      Base{ID: typeid.NewLayerID(), Opacity: opacity},
		URL:       url,
		X:         cx - width/2,
		Y:         cy - height/2,
		Width:     width,
		Height:    height,
		IsTexture: isTexture,
	}
}

// FitHalf scales a natural image size down so it fits within half the canvas
// on both axes. Sizes that already fit are returned unchanged.
func (f Factory) FitHalf(natW, natH float64) (float64, float64) {
	if natW <= 0 || natH <= 0 {
		return f.CanvasW / 2, f.CanvasH / 2
	}
	s := math.Min(f.CanvasW/2/natW, f.CanvasH/2/natH)
	if s >= 1 {
		return natW, natH
	}
	return natW * s, natH * s
}

// NewBackground returns a full-canvas background. Callers insert it at
// index 0.
func (f Factory) NewBackground(bgType BgType, value BgValue) *Background {
	return &Background{
		Base:    Base{ID: typeid.NewLayerID(), Opacity: 100},
		BgType:  bgType,
		BgValue: value,
		Width:   f.CanvasW,
		Height:  f.CanvasH,
	}
}

// NewBaseImage returns the full-canvas image layer a fresh visual starts with.
func (f Factory) NewBaseImage(url string) *Image {
	return &Image{
		Base:        Base{ID: typeid.NewLayerID(), Opacity: 100},
		URL:         url,
		Width:       f.CanvasW,
		Height:      f.CanvasH,
		IsBaseImage: true,
	}
}

// DefaultScene is the layer list of a visual with no saved layers.
func (f Factory) DefaultScene(baseURL string) List {
	return List{f.NewBaseImage(baseURL)}
}
