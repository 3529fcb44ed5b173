package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/mbd888/tariffdesk/internal/tariff"
)

// FileSource reads a document from the local filesystem. The format is
// chosen by extension.
type FileSource struct {
	path string
}

// NewFileSource creates a file source
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Name() string { return "file:" + s.path }
func (s *FileSource) Kind() string { return "file" }

// Fetch reads the whole file. A missing file yields ErrNotFound.
func (s *FileSource) Fetch(ctx context.Context) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", s.path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return &Document{Data: data, Format: tariff.FormatFromPath(s.path)}, nil
}
