package payload

import (
	"context"
	"fmt"
	"os"

	"github.com/aristath/prisk/internal/domain"
)

// FileSource reads the payload from a JSON file on disk.
type FileSource struct {
	path string
}

// NewFileSource creates a file source
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Name implements Source
func (s *FileSource) Name() string { return "file" }

// Fetch implements Source
func (s *FileSource) Fetch(ctx context.Context) (*domain.Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s does not exist", ErrNoPayload, s.path)
		}
		return nil, fmt.Errorf("failed to open payload file: %w", err)
	}
	defer f.Close()

	return Decode(f)
}
