package layer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownType = errors.New("unknown layer type")

// ShapeKind is the closed set of primitive outlines a shape layer can take.
type ShapeKind uint8

const (
	ShapeRectangle ShapeKind = iota
	ShapeCircle
	ShapeTriangle
	ShapeStar
	ShapeHeart
	ShapeHexagon
	ShapeDiamond
	ShapePentagon
	ShapeOctagon
)

var shapeNames = [...]string{
	ShapeRectangle: "rectangle",
	ShapeCircle:    "circle",
	ShapeTriangle:  "triangle",
	ShapeStar:      "star",
	ShapeHeart:     "heart",
	ShapeHexagon:   "hexagon",
	ShapeDiamond:   "diamond",
	ShapePentagon:  "pentagon",
	ShapeOctagon:   "octagon",
}

// ShapeKinds lists every kind in declaration order.
func ShapeKinds() []ShapeKind {
	kinds := make([]ShapeKind, len(shapeNames))
	for i := range shapeNames {
		kinds[i] = ShapeKind(i)
	}
	return kinds
}

func (k ShapeKind) String() string {
	if int(k) < len(shapeNames) {
		return shapeNames[k]
	}
	return shapeNames[ShapeRectangle]
}

// ParseShapeKind maps a shape identifier to its kind. Unknown identifiers
// report false and map to ShapeRectangle so older readers can still draw
// layers written by newer ones.
func ParseShapeKind(s string) (ShapeKind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "ellipse" {
		return ShapeCircle, true
	}
	for i, name := range shapeNames {
		if name == s {
			return ShapeKind(i), true
		}
	}
	return ShapeRectangle, false
}

func (k ShapeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *ShapeKind) UnmarshalText(b []byte) error {
	*k, _ = ParseShapeKind(string(b))
	return nil
}

// BgValue is either a single string (a color or an image URL) or a two-color
// gradient pair.
type BgValue struct {
	Value  string
	Color1 string
	Color2 string
}

func SolidValue(s string) BgValue { return BgValue{Value: s} }

func GradientValue(c1, c2 string) BgValue { return BgValue{Color1: c1, Color2: c2} }

func (v BgValue) IsGradient() bool { return v.Color1 != "" || v.Color2 != "" }

type gradientPair struct {
	Color1 string `json:"color1"`
	Color2 string `json:"color2"`
}

func (v BgValue) MarshalJSON() ([]byte, error) {
	if v.IsGradient() {
		return json.Marshal(gradientPair{Color1: v.Color1, Color2: v.Color2})
	}
	return json.Marshal(v.Value)
}

func (v *BgValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*v = BgValue{}
		return nil
	}
	if b[0] == '{' {
		var p gradientPair
		if err := json.Unmarshal(b, &p); err != nil {
			return fmt.Errorf("decode gradient value: %w", err)
		}
		*v = GradientValue(p.Color1, p.Color2)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("decode background value: %w", err)
	}
	*v = SolidValue(s)
	return nil
}

func (l Background) MarshalJSON() ([]byte, error) {
	type alias Background
	return json.Marshal(struct {
		Type Kind `json:"type"`
		alias
	}{KindBackground, alias(l)})
}

func (l Image) MarshalJSON() ([]byte, error) {
	type alias Image
	return json.Marshal(struct {
		Type Kind `json:"type"`
		alias
	}{KindImage, alias(l)})
}

func (l Shape) MarshalJSON() ([]byte, error) {
	type alias Shape
	return json.Marshal(struct {
		Type Kind `json:"type"`
		alias
	}{KindShape, alias(l)})
}

func (l Text) MarshalJSON() ([]byte, error) {
	type alias Text
	return json.Marshal(struct {
		Type Kind `json:"type"`
		alias
	}{KindText, alias(l)})
}

// Unmarshal decodes one layer, dispatching on its "type" field. A missing
// opacity decodes as 100 and out-of-range values are clamped.
func Unmarshal(data []byte) (Layer, error) {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode layer: %w", err)
	}

	var l Layer
	switch head.Type {
	case KindBackground:
		l = &Background{Base: Base{Opacity: 100}}
	case KindImage:
		l = &Image{Base: Base{Opacity: 100}}
	case KindShape:
		l = &Shape{Base: Base{Opacity: 100}}
	case KindText:
		l = &Text{Base: Base{Opacity: 100}}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, head.Type)
	}

	if err := json.Unmarshal(data, l); err != nil {
		return nil, fmt.Errorf("decode %s layer: %w", head.Type, err)
	}
	b := l.Common()
	b.Opacity = clampOpacity(b.Opacity)
	return l, nil
}

// List is an ordered stack of layers; index 0 is the bottom.
type List []Layer

func (ls List) MarshalJSON() ([]byte, error) {
	if ls == nil {
		return []byte("[]"), nil
	}
	raw := make([]json.RawMessage, len(ls))
	for i, l := range ls {
		b, err := json.Marshal(l)
		if err != nil {
			return nil, fmt.Errorf("encode layer %d: %w", i, err)
		}
		raw[i] = b
	}
	return json.Marshal(raw)
}

func (ls *List) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode layer list: %w", err)
	}
	out := make(List, 0, len(raw))
	for i, r := range raw {
		l, err := Unmarshal(r)
		if err != nil {
			return fmt.Errorf("layer %d: %w", i, err)
		}
		out = append(out, l)
	}
	*ls = out
	return nil
}

// Clone deep-copies the list.
func (ls List) Clone() List {
	if ls == nil {
		return nil
	}
	out := make(List, len(ls))
	for i, l := range ls {
		out[i] = l.Clone()
	}
	return out
}

// IndexOf returns the index of the layer with the given id, or -1.
func (ls List) IndexOf(id string) int {
	for i, l := range ls {
		if l.Common().ID == id {
			return i
		}
	}
	return -1
}

// AssetURLs returns the distinct asset URLs referenced by the list, in order.
func (ls List) AssetURLs() []string {
	seen := make(map[string]bool)
	var urls []string
	for _, l := range ls {
		for _, u := range AssetURLs(l) {
			if !seen[u] {
				seen[u] = true
				urls = append(urls, u)
			}
		}
	}
	return urls
}
