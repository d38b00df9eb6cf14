// Package export flattens layer stacks and crops images into stored PNG
// assets.
package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/visualgpt/visualgpt/compositor/internal/crop"
	"github.com/visualgpt/visualgpt/compositor/internal/engine"
	"github.com/visualgpt/visualgpt/compositor/internal/layer"
)

var (
	ErrInvalidRequest = errors.New("invalid export request")
	ErrSourceImage    = errors.New("source image could not be loaded")
	ErrUpload         = errors.New("storing export failed")
)

// Blobs stores encoded images. *asset.DiskStore implements it.
type Blobs interface {
	Put(ctx context.Context, data []byte) (id, url string, err error)
}

type Service struct {
	assets   engine.AssetSource
	blobs    Blobs
	renderer *engine.Renderer
	scale    float64
}

// NewService renders with a shared renderer at the given export scale.
func NewService(assets engine.AssetSource, blobs Blobs, renderer *engine.Renderer, scale float64) *Service {
	if renderer == nil {
		renderer = engine.NewRenderer(nil)
	}
	if scale <= 0 {
		scale = engine.DefaultExportScale
	}
	return &Service{assets: assets, blobs: blobs, renderer: renderer, scale: scale}
}

type FlattenRequest struct {
	BaseURL     string     `json:"baseUrl"`
	OriginalURL string     `json:"originalUrl,omitempty"`
	Layers      layer.List `json:"layers"`
}

type FlattenResult struct {
	AssetID     string     `json:"assetId"`
	URL         string     `json:"url"`
	Width       int        `json:"width"`
	Height      int        `json:"height"`
	Layers      layer.List `json:"layers"`
	OriginalURL string     `json:"originalUrl"`
	Skipped     []string   `json:"skipped,omitempty"`
}

// Render loads the request into a fresh editor and runs the export pass.
// Nothing is stored.
func (s *Service) Render(ctx context.Context, req FlattenRequest) (*engine.ExportResult, error) {
	if req.BaseURL == "" {
		return nil, fmt.Errorf("%w: baseUrl is required", ErrInvalidRequest)
	}
	ed := engine.NewEditor(s.assets, engine.WithRenderer(s.renderer), engine.WithExportScale(s.scale))
	if err := ed.Load(ctx, req.BaseURL, req.OriginalURL, req.Layers); err != nil {
		return nil, err
	}
	return ed.Export(ctx)
}

// Flatten renders and stores the result. When storing fails nothing is
// persisted and ErrUpload is returned.
func (s *Service) Flatten(ctx context.Context, req FlattenRequest) (*FlattenResult, error) {
	res, err := s.Render(ctx, req)
	if err != nil {
		return nil, err
	}
	id, url, err := s.blobs.Put(ctx, res.PNG)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpload, err)
	}
	slog.Info("visual flattened", "asset", id, "width", res.Width, "height", res.Height, "skipped", len(res.Skipped))
	return &FlattenResult{
		AssetID:     id,
		URL:         url,
		Width:       res.Width,
		Height:      res.Height,
		Layers:      res.Layers,
		OriginalURL: res.OriginalURL,
		Skipped:     res.Skipped,
	}, nil
}

type CropRequest struct {
	URL   string      `json:"url"`
	Rect  engine.Rect `json:"rect"`
	Bleed float64     `json:"bleed"`
}

type CropResult struct {
	AssetID string `json:"assetId"`
	URL     string `json:"url"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// Crop cuts rect plus bleed out of the image at native resolution and
// stores it. The rect is clamped the same way the interactive tool clamps
// a drag.
func (s *Service) Crop(ctx context.Context, req CropRequest) (*CropResult, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidRequest)
	}
	img, err := s.assets.Await(ctx, req.URL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrSourceImage, err)
	}

	tool := crop.NewTool(img, 0)
	if req.Rect.IsEmpty() {
		b := img.Bounds()
		req.Rect = engine.Rect{Width: float64(b.Dx()), Height: float64(b.Dy())}
	}
	tool.SetRect(req.Rect)
	tool.SetBleed(req.Bleed)

	data, err := tool.Export()
	if err != nil {
		return nil, err
	}
	id, url, err := s.blobs.Put(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpload, err)
	}
	region := tool.Region()
	return &CropResult{AssetID: id, URL: url, Width: region.Dx(), Height: region.Dy()}, nil
}

// Preview returns the crop tool's display rendering for req, fitted into
// displayMax pixels.
func (s *Service) Preview(ctx context.Context, req CropRequest, displayMax int) (image.Image, error) {
	img, err := s.assets.Await(ctx, req.URL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrSourceImage, err)
	}
	tool := crop.NewTool(img, displayMax)
	if !req.Rect.IsEmpty() {
		tool.SetRect(req.Rect)
	}
	tool.SetBleed(req.Bleed)
	return tool.Render(), nil
}
