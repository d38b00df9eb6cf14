package typeid

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

const (
	PrefixVisual = "vis"
	PrefixLayer  = "layer"
	PrefixAsset  = "asset"
	PrefixOp     = "op"
)

func New(prefix string) string {
	id := typeid.MustGenerate(prefix)
	return id.String()
}

func NewVisualID() string { return New(PrefixVisual) }
func NewLayerID() string  { return New(PrefixLayer) }
func NewAssetID() string  { return New(PrefixAsset) }
func NewOpID() string     { return New(PrefixOp) }

// Validate checks that id parses as a typeid carrying expectedPrefix.
func Validate(id, expectedPrefix string) error {
	parsed, err := typeid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid typeid %q: %w", id, err)
	}
	if parsed.Prefix() != expectedPrefix {
		return fmt.Errorf("expected prefix %q but got %q in id %q", expectedPrefix, parsed.Prefix(), id)
	}
	return nil
}
