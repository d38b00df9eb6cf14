package asset

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	ErrDecode      = errors.New("asset decode failed")
	ErrUnsupported = errors.New("asset is not a supported image")
	ErrTooLarge    = errors.New("asset too large")
)

// Sniff identifies the image type of data from its magic bytes and returns
// the MIME type and extension.
func Sniff(data []byte) (mime, ext string, err error) {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown || !filetype.IsImage(data) {
		return "", "", ErrUnsupported
	}
	return kind.MIME.Value, kind.Extension, nil
}

// Decode sniffs and decodes a raster image.
func Decode(data []byte) (image.Image, error) {
	if _, _, err := Sniff(data); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrDecode)
	}
	return img, nil
}
