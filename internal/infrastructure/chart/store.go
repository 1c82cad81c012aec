package chart

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"data-agent/internal/domain/entity"

	"github.com/google/uuid"
)

const pngMIME = "image/png"

// Store persists a rendered chart and returns the reference to embed in
// answers.
type Store interface {
	Save(ctx context.Context, png []byte) (entity.ChartRef, error)
}

// NewStore picks the store for a CHART_MODE value.
func NewStore(mode entity.ChartKind, dir string) (Store, error) {
	switch mode {
	case entity.ChartFile, "":
		return NewFileStore(dir), nil
	case entity.ChartEmbedded:
		return EmbeddedStore{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown chart mode %q", entity.ErrConfiguration, mode)
	}
}

// FileStore writes each chart to its own file so a new chart never
// overwrites one that an earlier message still shows.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) Save(_ context.Context, png []byte) (entity.ChartRef, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return entity.ChartRef{}, fmt.Errorf("create chart dir: %w", err)
	}
	path := filepath.Join(s.dir, uniqueName())
	if err := os.WriteFile(path, png, 0644); err != nil {
		return entity.ChartRef{}, fmt.Errorf("write chart: %w", err)
	}
	return entity.ChartRef{Kind: entity.ChartFile, Path: path, MIME: pngMIME}, nil
}

// EmbeddedStore keeps the image bytes in the reference itself.
type EmbeddedStore struct{}

func (EmbeddedStore) Save(_ context.Context, png []byte) (entity.ChartRef, error) {
	data := make([]byte, len(png))
	copy(data, png)
	return entity.ChartRef{Kind: entity.ChartEmbedded, Path: uniqueName(), Data: data, MIME: pngMIME}, nil
}

func uniqueName() string {
	return fmt.Sprintf("chart_%s.png", uuid.New().String())
}
