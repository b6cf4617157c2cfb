package engine

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/smilemakc/procflow/pkg/models"
	"github.com/smilemakc/procflow/pkg/service"
)

// streamCaptureChunk is the read buffer size for each forwarding copy.
// Small enough to give the storage backend frequent append calls without
// making every single-byte write a syscall.
const streamCaptureChunk = 4096

// captureStream copies everything read from src into an in-memory buffer
// (for Result.Stdout/Stderr, which must reflect the full captured bytes
// regardless of storage backend) and forwards each chunk to the storage
// service under streamName. It runs until a read from src returns an
// error (normally EOF); ctx is only passed on to the storage call and does
// not stop the copy.
func captureStream(ctx context.Context, storage service.StorageService, wf *models.Workflow, node *models.Node, streamName string, src io.Reader, wg *sync.WaitGroup) *bytes.Buffer {
	buf := &bytes.Buffer{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		chunk := make([]byte, streamCaptureChunk)
		for {
			n, err := src.Read(chunk)
			if n > 0 {
				buf.Write(chunk[:n])
				if serr := storage.AppendToArtifact(ctx, wf, node, streamName, chunk[:n]); serr != nil {
					// Storage failures don't abort the capture; the node's
					// Result is still served from the in-memory buffer.
					_ = serr
				}
			}
			if err != nil {
				return
			}
		}
	}()
	return buf
}
