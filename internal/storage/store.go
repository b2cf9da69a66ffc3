package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Store persists uploaded files to a local directory. Files are kept after a
// failed ingestion so operators can inspect and retry by hand.
type Store struct {
	dir string
}

// NewStore creates the upload directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save writes the payload under a timestamped name and returns the path. The
// random infix keeps same-named files uploaded within one second apart.
func (s *Store) Save(fileName string, data []byte) (string, error) {
	name := fmt.Sprintf("%s_%s_%s",
		time.Now().Format("20060102_150405"), uuid.NewString()[:8], filepath.Base(fileName))
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to save upload: %w", err)
	}
	return path, nil
}
