package file

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"

	"github.com/kurihiro0119/hitbatch/internal/domain"
	"github.com/kurihiro0119/hitbatch/internal/errors"
	"github.com/kurihiro0119/hitbatch/internal/storage"
)

// DefaultPath is the state file written next to the task settings
const DefaultPath = "hit-ids.json"

// fileStorage keeps every environment's set in one JSON document keyed by environment name.
// A single-mode set is written as an object and a batch-mode set as an array.
type fileStorage struct {
	path string
	fs   afs.Service
	mu   sync.Mutex
}

// NewFileStorage creates a state file storage rooted at path
func NewFileStorage(path string) storage.Repository {
	if path == "" {
		path = DefaultPath
	}
	return &fileStorage{
		path: url.Normalize(path, file.Scheme),
		fs:   afs.New(),
	}
}

// Migrate is a no-op; the document is created on first save
func (s *fileStorage) Migrate(ctx context.Context) error {
	return nil
}

// Load retrieves the batch set stored for an environment
func (s *fileStorage) Load(ctx context.Context, env domain.Environment) (*domain.BatchSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	set, ok := doc[env]
	if !ok || set == nil {
		return nil, errors.NewNotFoundError("HITs for " + env.String())
	}
	return set, nil
}

// Save replaces the batch set stored for an environment, leaving other environments intact
func (s *fileStorage) Save(ctx context.Context, env domain.Environment, set *domain.BatchSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read(ctx)
	if err != nil {
		return err
	}
	doc[env] = set

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := s.fs.Upload(ctx, s.path, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write state file %s: %w", s.path, err)
	}
	return nil
}

// Close releases nothing; the document is rewritten on every save
func (s *fileStorage) Close() error {
	return nil
}

func (s *fileStorage) read(ctx context.Context) (map[domain.Environment]*domain.BatchSet, error) {
	doc := map[domain.Environment]*domain.BatchSet{}

	exists, err := s.fs.Exists(ctx, s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to check state file: %w", err)
	}
	if !exists {
		return doc, nil
	}

	data, err := s.fs.DownloadWithURL(ctx, s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode state file %s: %w", s.path, err)
	}
	return doc, nil
}
