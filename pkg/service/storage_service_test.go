package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/smilemakc/procflow/pkg/models"
	"github.com/smilemakc/procflow/pkg/service"
)

func TestNoStorageServiceRejectsUnknownStream(t *testing.T) {
	wf, err := models.NewWorkflow("wf", models.NewNode("root"))
	assert.NoError(t, err)
	node := wf.Root

	err = service.NoStorageService{}.AppendToArtifact(context.Background(), wf, node, "weird", []byte("x"))
	assert.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrUnsupportedArtifact))
}

func TestNoStorageServiceAcceptsKnownStreams(t *testing.T) {
	wf, err := models.NewWorkflow("wf", models.NewNode("root"))
	assert.NoError(t, err)
	node := wf.Root

	svc := service.NoStorageService{}
	assert.NoError(t, svc.AppendToArtifact(context.Background(), wf, node, service.StreamStdout, []byte("out")))
	assert.NoError(t, svc.AppendToArtifact(context.Background(), wf, node, service.StreamStderr, []byte("err")))
}
