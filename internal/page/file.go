package page

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// FileSource reads a saved HTML snapshot from disk on every call
type FileSource struct {
	logger *zap.Logger
	path   string
}

// NewFileSource creates a source backed by the file at path
func NewFileSource(logger *zap.Logger, path string) *FileSource {
	return &FileSource{logger: logger, path: path}
}

// Snapshot parses the current content of the file
func (s *FileSource) Snapshot(ctx context.Context) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	doc, err := Parse(f)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Snapshot read from file", zap.String("path", s.path))
	return doc, nil
}

// Close is a no-op
func (s *FileSource) Close() error {
	return nil
}
