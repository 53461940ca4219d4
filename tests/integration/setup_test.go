//go:build integration

package integration

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"mediaclient/config"
	"mediaclient/internal/client"
	"mediaclient/internal/request"
	"mediaclient/internal/server"
	"mediaclient/internal/types"
	"mediaclient/internal/upload"
)

// setupClient starts a fake media API and a client recording upload sessions in backend's store.
func setupClient(t *testing.T, backend *sessionBackend, mutate func(*config.Config)) (*client.Client, *server.Server) {
	t.Helper()

	api := server.New(&server.Config{PartnerID: 10})
	ts := httptest.NewServer(api)
	t.Cleanup(ts.Close)

	cfg := backend.config()
	cfg.Client.ServiceURL = ts.URL
	cfg.Client.PartnerID = 10
	cfg.Client.MaxRetries = 0
	cfg.Client.ChunkFileSize = "100000"
	if mutate != nil {
		mutate(cfg)
	}

	c, err := client.New(testCtx, cfg, client.WithUploadStore(backend.sessions.Store))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, api
}

func pattern(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

// uploadFile creates an upload token and sends data to it.
func uploadFile(t *testing.T, ctx context.Context, c *client.Client, data []byte) string {
	t.Helper()

	token, err := request.ResultAs[*types.UploadToken](c.Do(ctx, types.UploadTokens.Add(types.NewUploadToken("clip.mp4", int64(len(data))))))
	require.NoError(t, err)
	id, ok := token.ID()
	require.True(t, ok)

	_, err = c.Upload(ctx, types.UploadTokens.Upload(id, upload.NewBytesFile("clip.mp4", data)))
	require.NoError(t, err)
	return id
}
