// Package layer defines the composable units of a visual: backgrounds, image
// overlays, vector shapes and styled text. A list of layers is ordered
// bottom to top; index 0 is drawn first.
package layer

type Kind string

const (
	KindBackground Kind = "background"
	KindImage      Kind = "image"
	KindShape      Kind = "shape"
	KindText       Kind = "text"
)

// Layer is implemented by *Background, *Image, *Shape and *Text only.
type Layer interface {
	Kind() Kind
	Common() *Base
	Clone() Layer
	sealed()
}

// Movable layers can be dragged on the canvas. Backgrounds are not movable.
type Movable interface {
	Layer
	Position() (x, y float64)
	MoveTo(x, y float64)
}

// Base holds the attributes shared by every layer kind.
type Base struct {
	ID string `json:"id"`
	// Opacity is 0-100. It is converted to a 0-1 alpha only by Alpha.
	Opacity int `json:"opacity"`
}

// Alpha returns the draw alpha for the layer in [0,1].
func (b *Base) Alpha() float64 {
	return float64(clampOpacity(b.Opacity)) / 100
}

func clampOpacity(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

type BgType string

const (
	BgSolid    BgType = "solid"
	BgGradient BgType = "gradient"
	BgImage    BgType = "image"
)

type Background struct {
	Base
	BgType  BgType  `json:"bgType"`
	BgValue BgValue `json:"bgValue"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

type Image struct {
	Base
	URL          string  `json:"imageUrl"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Width        float64 `json:"width"`
	Height       float64 `json:"height"`
	IsTexture    bool    `json:"isTexture,omitempty"`
	IsBaseImage  bool    `json:"isBaseImage,omitempty"`
	BorderRadius float64 `json:"borderRadius,omitempty"`
	Border       *Stroke `json:"border,omitempty"`
	Tint         *Tint   `json:"tint,omitempty"`
	Shadow       *Shadow `json:"shadow,omitempty"`
	Glow         *Glow   `json:"glow,omitempty"`
	Halo         *Glow   `json:"halo,omitempty"`
}

type Shape struct {
	Base
	ShapeKind         ShapeKind `json:"shapeId"`
	X                 float64   `json:"x"`
	Y                 float64   `json:"y"`
	Width             float64   `json:"width"`
	Height            float64   `json:"height"`
	Fill              string    `json:"fill"`
	Stroke            *Stroke   `json:"stroke,omitempty"`
	Rotation          float64   `json:"rotation,omitempty"`
	Shadow            *Shadow   `json:"shadow,omitempty"`
	Glow              *Glow     `json:"glow,omitempty"`
	IsBackgroundShape bool      `json:"isBackgroundShape,omitempty"`
}

type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

type Text struct {
	Base
	Text          string  `json:"text"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	FontSize      float64 `json:"fontSize"`
	FontFamily    string  `json:"fontFamily"`
	FontWeight    string  `json:"fontWeight,omitempty"`
	FontStyle     string  `json:"fontStyle,omitempty"`
	Color         string  `json:"color"`
	Align         Align   `json:"align"`
	LetterSpacing float64 `json:"letterSpacing,omitempty"`
	Stroke        *Stroke `json:"stroke,omitempty"`
	Shadow        *Shadow `json:"shadow,omitempty"`
	Glow          *Glow   `json:"glow,omitempty"`
	Halo          *Glow   `json:"halo,omitempty"`
	Neon          *Glow   `json:"neon,omitempty"`
	ThreeD        bool    `json:"threeD,omitempty"`
}

// Shadow is a blurred, offset copy of a layer's silhouette.
type Shadow struct {
	Color   string  `json:"color"`
	Blur    float64 `json:"blur"`
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
}

// Glow is an unoffset blurred silhouette. It also describes halo and neon.
type Glow struct {
	Color string  `json:"color"`
	Blur  float64 `json:"blur"`
}

type Stroke struct {
	Color string  `json:"color"`
	Width float64 `json:"width"`
}

type Tint struct {
	Color   string `json:"color"`
	Opacity int    `json:"opacity"`
}

// Alpha returns the tint strength in [0,1].
func (t *Tint) Alpha() float64 {
	return float64(clampOpacity(t.Opacity)) / 100
}

func (*Background) Kind() Kind { return KindBackground }
func (*Image) Kind() Kind      { return KindImage }
func (*Shape) Kind() Kind      { return KindShape }
func (*Text) Kind() Kind       { return KindText }

func (l *Background) Common() *Base { return &l.Base }
func (l *Image) Common() *Base      { return &l.Base }
func (l *Shape) Common() *Base      { return &l.Base }
func (l *Text) Common() *Base       { return &l.Base }

func (*Background) sealed() {}
func (*Image) sealed()      {}
func (*Shape) sealed()      {}
func (*Text) sealed()       {}

func (l *Image) Position() (float64, float64) { return l.X, l.Y }
func (l *Shape) Position() (float64, float64) { return l.X, l.Y }
func (l *Text) Position() (float64, float64)  { return l.X, l.Y }

func (l *Image) MoveTo(x, y float64) { l.X, l.Y = x, y }
func (l *Shape) MoveTo(x, y float64) { l.X, l.Y = x, y }
func (l *Text) MoveTo(x, y float64)  { l.X, l.Y = x, y }

func (l *Background) Clone() Layer {
	c := *l
	return &c
}

func (l *Image) Clone() Layer {
	c := *l
	c.Border = clonePtr(l.Border)
	c.Tint = clonePtr(l.Tint)
	c.Shadow = clonePtr(l.Shadow)
	c.Glow = clonePtr(l.Glow)
	c.Halo = clonePtr(l.Halo)
	return &c
}

func (l *Shape) Clone() Layer {
	c := *l
	c.Stroke = clonePtr(l.Stroke)
	c.Shadow = clonePtr(l.Shadow)
	c.Glow = clonePtr(l.Glow)
	return &c
}

func (l *Text) Clone() Layer {
	c := *l
	c.Stroke = clonePtr(l.Stroke)
	c.Shadow = clonePtr(l.Shadow)
	c.Glow = clonePtr(l.Glow)
	c.Halo = clonePtr(l.Halo)
	c.Neon = clonePtr(l.Neon)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// AssetURLs returns every external raster the layer needs decoded before it
// can be drawn.
func AssetURLs(l Layer) []string {
	switch v := l.(type) {
	case *Image:
		if v.URL != "" {
			return []string{v.URL}
		}
	case *Background:
		if v.BgType == BgImage && v.BgValue.Value != "" {
			return []string{v.BgValue.Value}
		}
	}
	return nil
}
