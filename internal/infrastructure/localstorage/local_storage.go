// Package localstorage implements service.StorageService by appending
// artifact bytes to files under a base directory, one file per
// (workflow, node, stream).
package localstorage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/smilemakc/procflow/pkg/models"
	"github.com/smilemakc/procflow/pkg/service"
)

var _ service.StorageService = (*LocalStorageService)(nil)

// LocalStorageService writes artifacts to basePath/<workflow-id>/<node-id>/<stream>.log,
// opening each file in append mode and serialising writes per path so
// concurrent stdout/stderr capture goroutines never interleave.
type LocalStorageService struct {
	basePath string

	mu      sync.Mutex
	writers map[string]*sync.Mutex
}

// New returns a LocalStorageService rooted at basePath. The directory is
// created lazily, per artifact, on first write.
func New(basePath string) *LocalStorageService {
	return &LocalStorageService{basePath: basePath, writers: make(map[string]*sync.Mutex)}
}

func (s *LocalStorageService) path(wf *models.Workflow, node *models.Node, streamName string) string {
	return filepath.Join(s.basePath, wf.ID(), node.ID(), streamName+".log")
}

// lockFor returns the per-path mutex, creating it on first use.
func (s *LocalStorageService) lockFor(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.writers[path]
	if !ok {
		l = &sync.Mutex{}
		s.writers[path] = l
	}
	return l
}

func (s *LocalStorageService) AppendToArtifact(ctx context.Context, wf *models.Workflow, node *models.Node, streamName string, data []byte) error {
	path := s.path(wf, node, streamName)
	lock := s.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: mkdir: %v", models.ErrStorageUnavailable, err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open artifact: %v", models.ErrStorageUnavailable, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("%w: write artifact: %v", models.ErrStorageUnavailable, err)
	}
	return nil
}
