package localstorage_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/procflow/internal/infrastructure/localstorage"
	"github.com/smilemakc/procflow/pkg/models"
	"github.com/smilemakc/procflow/pkg/service"
)

func TestAppendToArtifactCreatesAndAppends(t *testing.T) {
	dir := t.TempDir()
	svc := localstorage.New(dir)

	wf, err := models.NewWorkflow("wf", models.NewNode("root"))
	require.NoError(t, err)
	node := wf.Root

	require.NoError(t, svc.AppendToArtifact(context.Background(), wf, node, service.StreamStdout, []byte("first\n")))
	require.NoError(t, svc.AppendToArtifact(context.Background(), wf, node, service.StreamStdout, []byte("second\n")))

	path := filepath.Join(dir, wf.ID(), node.ID(), "stdout.log")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(data))
}

func TestAppendToArtifactSerialisesConcurrentWriters(t *testing.T) {
	dir := t.TempDir()
	svc := localstorage.New(dir)

	wf, err := models.NewWorkflow("wf", models.NewNode("root"))
	require.NoError(t, err)
	node := wf.Root

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.AppendToArtifact(context.Background(), wf, node, service.StreamStderr, []byte("x"))
		}()
	}
	wg.Wait()

	path := filepath.Join(dir, wf.ID(), node.ID(), "stderr.log")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, 50)
}
