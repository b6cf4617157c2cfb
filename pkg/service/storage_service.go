package service

import (
	"context"
	"os"

	"github.com/smilemakc/procflow/pkg/models"
)

// Well-known artifact stream names.
const (
	StreamStdout = "stdout"
	StreamStderr = "stderr"
)

// StorageService appends captured bytes to the artifact identified by
// (workflow id, node id, stream name). Concurrent calls targeting
// different (node, stream) pairs must not interfere; concurrent calls
// targeting the same pair are serialised by the implementation.
type StorageService interface {
	AppendToArtifact(ctx context.Context, wf *models.Workflow, node *models.Node, streamName string, data []byte) error
}

// NoStorageService writes stdout/stderr to the engine process's own
// standard streams so users still see live output; any other artifact
// name is rejected with ErrUnsupportedArtifact.
type NoStorageService struct{}

var _ StorageService = NoStorageService{}

func (NoStorageService) AppendToArtifact(ctx context.Context, wf *models.Workflow, node *models.Node, streamName string, data []byte) error {
	switch streamName {
	case StreamStdout:
		_, err := os.Stdout.Write(data)
		return err
	case StreamStderr:
		_, err := os.Stderr.Write(data)
		return err
	default:
		return &models.TreeError{Path: streamName, Err: models.ErrUnsupportedArtifact}
	}
}
