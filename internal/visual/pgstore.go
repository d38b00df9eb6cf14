package visual

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/visualgpt/visualgpt/compositor/internal/layer"
)

// PGStore keeps visuals in the visuals table, layers as jsonb.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Create(ctx context.Context, v *Visual) error {
	layers, err := encodeLayers(v.Layers)
	if err != nil {
		return err
	}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO visuals (id, base_url, original_url, flattened_url, layers)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		v.ID, v.BaseURL, v.OriginalURL, v.FlattenedURL, layers,
	).Scan(&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create visual: %w", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, id string) (*Visual, error) {
	var (
		v   Visual
		raw []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, base_url, original_url, flattened_url, layers, created_at, updated_at
		FROM visuals WHERE id = $1`, id,
	).Scan(&v.ID, &v.BaseURL, &v.OriginalURL, &v.FlattenedURL, &raw, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get visual: %w", err)
	}
	if err := json.Unmarshal(raw, &v.Layers); err != nil {
		return nil, fmt.Errorf("decode layers of %s: %w", id, err)
	}
	return &v, nil
}

func (s *PGStore) SaveLayers(ctx context.Context, id string, layers layer.List) error {
	raw, err := encodeLayers(layers)
	if err != nil {
		return err
	}
	return s.exec(ctx, "save layers", `
		UPDATE visuals SET layers = $2, updated_at = now() WHERE id = $1`, id, raw)
}

func (s *PGStore) SaveFlattened(ctx context.Context, id, flattenedURL string, layers layer.List) error {
	raw, err := encodeLayers(layers)
	if err != nil {
		return err
	}
	return s.exec(ctx, "save flattened", `
		UPDATE visuals SET flattened_url = $2, layers = $3, updated_at = now() WHERE id = $1`,
		id, flattenedURL, raw)
}

func (s *PGStore) Reset(ctx context.Context, id string) error {
	return s.exec(ctx, "reset visual", `
		UPDATE visuals
		SET base_url = original_url, flattened_url = '', layers = '[]'::jsonb, updated_at = now()
		WHERE id = $1`, id)
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	return s.exec(ctx, "delete visual", `DELETE FROM visuals WHERE id = $1`, id)
}

func (s *PGStore) exec(ctx context.Context, op, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeLayers(layers layer.List) ([]byte, error) {
	raw, err := json.Marshal(layers)
	if err != nil {
		return nil, fmt.Errorf("encode layers: %w", err)
	}
	return raw, nil
}
