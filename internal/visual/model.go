// Package visual persists edited visuals: the base image, the editable
// layer list and the latest flattened export.
package visual

import (
	"context"
	"errors"
	"time"

	"github.com/visualgpt/visualgpt/compositor/internal/layer"
)

var ErrNotFound = errors.New("visual not found")

type Visual struct {
	ID           string     `json:"id"`
	BaseURL      string     `json:"baseUrl"`
	OriginalURL  string     `json:"originalUrl"`
	FlattenedURL string     `json:"flattenedUrl,omitempty"`
	Layers       layer.List `json:"layers"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Store persists visuals. Every method returns ErrNotFound for an unknown
// id.
type Store interface {
	Create(ctx context.Context, v *Visual) error
	Get(ctx context.Context, id string) (*Visual, error)
	SaveLayers(ctx context.Context, id string, layers layer.List) error
	SaveFlattened(ctx context.Context, id, flattenedURL string, layers layer.List) error
	// Reset points the visual back at its original image and drops its
	// layers and export.
	Reset(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}
