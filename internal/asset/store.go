package asset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/visualgpt/visualgpt/compositor/internal/typeid"
)

const assetPathPrefix = "/assets/"

var ErrNotFound = errors.New("asset not found")

// Store persists image bytes and hands back a stable public URL.
type Store interface {
	BlobReader
	Put(ctx context.Context, data []byte) (id, url string, err error)
	Delete(id string) error
	Path(id string) (string, error)
}

// DiskStore keeps assets as <dir>/<asset id>.png. Asset ids are typeids and
// never reused, so stored files are immutable.
type DiskStore struct {
	dir     string
	baseURL string
}

// NewDiskStore creates dir if needed. URLs are built as
// <publicBaseURL>/assets/<id>.
func NewDiskStore(dir, publicBaseURL string) *DiskStore {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Error("create asset dir", "error", err, "dir", dir)
	}
	return &DiskStore{dir: dir, baseURL: strings.TrimSuffix(publicBaseURL, "/")}
}

func (s *DiskStore) Put(ctx context.Context, data []byte) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	id := typeid.NewAssetID()
	path := filepath.Join(s.dir, id+".png")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", "", fmt.Errorf("write asset: %w", err)
	}
	return id, s.URL(id), nil
}

// URL returns the public URL of a stored asset.
func (s *DiskStore) URL(id string) string {
	return s.baseURL + assetPathPrefix + id
}

// Path validates id and returns its file path.
func (s *DiskStore) Path(id string) (string, error) {
	if err := typeid.Validate(id, typeid.PrefixAsset); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return filepath.Join(s.dir, id+".png"), nil
}

func (s *DiskStore) Open(id string) ([]byte, error) {
	path, err := s.Path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return data, err
}

func (s *DiskStore) Delete(id string) error {
	path, err := s.Path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("remove asset: %w", err)
	}
	return nil
}
