package visual

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/visualgpt/visualgpt/compositor/internal/export"
	"github.com/visualgpt/visualgpt/compositor/internal/layer"
	"github.com/visualgpt/visualgpt/compositor/internal/typeid"
)

var ErrInvalidInput = errors.New("invalid input")

// Flattener renders a layer stack to a stored PNG. *export.Service
// implements it.
type Flattener interface {
	Flatten(ctx context.Context, req export.FlattenRequest) (*export.FlattenResult, error)
}

type Service struct {
	store     Store
	flattener Flattener
}

func NewService(store Store, flattener Flattener) *Service {
	return &Service{store: store, flattener: flattener}
}

// SaveResult is a saved visual plus the assets its export had to skip.
type SaveResult struct {
	*Visual
	Skipped []string `json:"skipped,omitempty"`
}

// Create starts a visual from a base image. The base URL doubles as the
// original, so start-over returns to it.
func (s *Service) Create(ctx context.Context, baseURL string) (*Visual, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: baseUrl is required", ErrInvalidInput)
	}
	v := &Visual{
		ID:          typeid.NewVisualID(),
		BaseURL:     baseURL,
		OriginalURL: baseURL,
		Layers:      layer.List{},
	}
	if err := s.store.Create(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Visual, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

// UpdateLayers replaces the persisted layer list without re-rendering.
func (s *Service) UpdateLayers(ctx context.Context, id string, layers layer.List) (*Visual, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	if layers == nil {
		layers = layer.List{}
	}
	if err := s.store.SaveLayers(ctx, id, layers); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

// Save flattens layers over the visual's base image, stores the PNG and
// persists both. If flattening fails nothing is written.
func (s *Service) Save(ctx context.Context, id string, layers layer.List) (*SaveResult, error) {
	v, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if layers == nil {
		layers = v.Layers
	}
	res, err := s.flattener.Flatten(ctx, export.FlattenRequest{
		BaseURL:     v.BaseURL,
		OriginalURL: v.OriginalURL,
		Layers:      layers,
	})
	if err != nil {
		return nil, fmt.Errorf("flatten visual %s: %w", id, err)
	}
	if err := s.store.SaveFlattened(ctx, id, res.URL, res.Layers); err != nil {
		return nil, err
	}
	slog.Info("visual saved", "visual", id, "url", res.URL)

	saved, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &SaveResult{Visual: saved, Skipped: res.Skipped}, nil
}

// StartOver discards every edit.
func (s *Service) StartOver(ctx context.Context, id string) (*Visual, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	if err := s.store.Reset(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

func validateID(id string) error {
	if err := typeid.Validate(id, typeid.PrefixVisual); err != nil {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return nil
}
