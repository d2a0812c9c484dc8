package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/GoSim-25-26J-441/contagion-core/pkg/models"
)

// FileBackend keeps the curve in a JSON file.
type FileBackend struct {
	path string
}

// NewFileBackend creates a backend for the JSON file at path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Path returns the file location.
func (f *FileBackend) Path() string {
	return f.path
}

func (f *FileBackend) Read(ctx context.Context) (models.Curve, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrStoreMissing, f.path)
		}
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	curve, err := decodeCurve(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.path, err)
	}
	return curve, nil
}

// Write replaces the file through a temporary file and a rename, so readers
// never observe a half-written document.
func (f *FileBackend) Write(ctx context.Context, curve models.Curve) error {
	data, err := encodeCurve(curve)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".contagion-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}

func (f *FileBackend) Close() error {
	return nil
}
