// Package storage writes generated patch files to the output directory.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-patch/pkg/apperrors"
)

// ArtifactStore persists generated files and opens them for download.
type ArtifactStore interface {
	Write(fileName string, content []byte) error
	Open(fileName string) (io.ReadCloser, int64, error)
	Dir() string
}

// FileStore is an ArtifactStore backed by a directory of an afero filesystem.
type FileStore struct {
	fs     afero.Fs
	dir    string
	logger *zap.Logger
}

var _ ArtifactStore = (*FileStore)(nil)

// NewFileStore creates the output directory if needed and returns a store writing into it.
func NewFileStore(fs afero.Fs, dir string, logger *zap.Logger) (*FileStore, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	return &FileStore{fs: fs, dir: dir, logger: logger}, nil
}

// Dir returns the output directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Write writes content to fileName inside the output directory, replacing any
// existing file of the same name.
func (s *FileStore) Write(fileName string, content []byte) error {
	path, err := s.path(fileName)
	if err != nil {
		return err
	}

	if err := afero.WriteFile(s.fs, path, content, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	s.logger.Debug("Wrote patch file",
		zap.String("path", path),
		zap.Int("bytes", len(content)))
	return nil
}

// Open opens a previously written file. The caller must close the reader.
func (s *FileStore) Open(fileName string) (io.ReadCloser, int64, error) {
	path, err := s.path(fileName)
	if err != nil {
		return nil, 0, err
	}

	f, err := s.fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, fmt.Errorf("file %s: %w", fileName, apperrors.ErrNotFound)
		}
		return nil, 0, fmt.Errorf("failed to open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return f, info.Size(), nil
}

// path rejects names that would leave the output directory.
func (s *FileStore) path(fileName string) (string, error) {
	if fileName == "" || fileName != filepath.Base(fileName) || strings.HasPrefix(fileName, ".") {
		return "", fmt.Errorf("%w: invalid file name %q", apperrors.ErrValidation, fileName)
	}
	return filepath.Join(s.dir, fileName), nil
}
