//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"mediaclient/config"
	"mediaclient/internal/storage"
	"mediaclient/internal/uploadstate"
)

// storedSession reads the raw session row or document the store wrote for tokenID.
func storedSession(t *testing.T, backend *sessionBackend, tokenID string) (string, uploadstate.Session) {
	t.Helper()

	var status string
	var data []byte
	handles := backend.sessions.Storage
	switch handles.Type() {
	case storage.TypePostgreSQL:
		err := handles.PostgreSQLPool().QueryRow(testCtx,
			"SELECT status, data FROM upload_sessions WHERE token_id = $1", tokenID).Scan(&status, &data)
		require.NoError(t, err)
	case storage.TypeMongoDB:
		var doc struct {
			Status string `bson:"status"`
			Data   []byte `bson:"data"`
		}
		err := handles.MongoDatabase().Collection("upload_sessions").
			FindOne(testCtx, bson.M{"_id": tokenID}).Decode(&doc)
		require.NoError(t, err)
		status, data = doc.Status, doc.Data
	default:
		t.Fatalf("unexpected storage type %q", handles.Type())
	}

	var sess uploadstate.Session
	require.NoError(t, json.Unmarshal(data, &sess))
	return status, sess
}

func TestUploadSessions_SequentialUploadIsRecorded(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend.name, func(t *testing.T) {
			c, api := setupClient(t, backend, func(cfg *config.Config) {
				cfg.Client.ParallelUploadsDisabled = true
			})

			data := pattern(250_000)
			id := uploadFile(t, testCtx, c, data)

			stored, ok := api.State().TokenContents(id)
			require.True(t, ok)
			assert.True(t, bytes.Equal(data, stored))

			status, sess := storedSession(t, backend, id)
			assert.Equal(t, string(uploadstate.StatusCompleted), status)
			assert.Equal(t, id, sess.TokenID)
			assert.Equal(t, "clip.mp4", sess.FileName)
			assert.EqualValues(t, 250_000, sess.FileSize)
			assert.EqualValues(t, 100_000, sess.ChunkSize)
			assert.EqualValues(t, 250_000, sess.ResumeAt)
			assert.Equal(t, 3, sess.ChunksUploaded)
			assert.Empty(t, sess.Error)
		})
	}
}

func TestUploadSessions_ParallelUploadIsRecorded(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend.name, func(t *testing.T) {
			c, api := setupClient(t, backend, func(cfg *config.Config) {
				cfg.Client.MaxConcurrentUploadConnections = 3
			})

			data := pattern(420_000)
			id := uploadFile(t, testCtx, c, data)

			stored, ok := api.State().TokenContents(id)
			require.True(t, ok)
			assert.True(t, bytes.Equal(data, stored))

			status, sess := storedSession(t, backend, id)
			assert.Equal(t, string(uploadstate.StatusCompleted), status)
			assert.EqualValues(t, 420_000, sess.FileSize)
		})
	}
}

func TestUploadSessions_StoreRoundTrip(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend.name, func(t *testing.T) {
			store := backend.sessions.Store

			sess := uploadstate.NewSession("0_roundtrip_"+backend.name, "movie.mp4", 12_000_000, 5_000_000)
			sess.ResumeAt = 5_000_000
			sess.ChunksUploaded = 1
			sess.Status = uploadstate.StatusUploading
			require.NoError(t, store.Save(testCtx, sess))

			got, err := store.Get(testCtx, sess.TokenID)
			require.NoError(t, err)
			assert.Equal(t, sess.ID, got.ID)
			assert.Equal(t, uploadstate.StatusUploading, got.Status)
			assert.EqualValues(t, 5_000_000, got.ResumeAt)

			list, err := store.List(testCtx, 100)
			require.NoError(t, err)
			var found bool
			for _, s := range list {
				found = found || s.TokenID == sess.TokenID
			}
			assert.True(t, found)

			require.NoError(t, store.Delete(testCtx, sess.TokenID))
			_, err = store.Get(testCtx, sess.TokenID)
			require.ErrorIs(t, err, uploadstate.ErrNotFound)
		})
	}
}

func TestUploadSessions_ReopenedStoreSeesSavedSessions(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend.name, func(t *testing.T) {
			sess := uploadstate.NewSession("0_reopen_"+backend.name, "talk.mp4", 300_000, 100_000)
			sess.ResumeAt = 200_000
			sess.ChunksUploaded = 2
			sess.Status = uploadstate.StatusFailed
			sess.Error = "connection reset"
			require.NoError(t, backend.sessions.Store.Save(testCtx, sess))
			t.Cleanup(func() { _ = backend.sessions.Store.Delete(testCtx, sess.TokenID) })

			reopened, err := uploadstate.New(testCtx, backend.config())
			require.NoError(t, err)
			t.Cleanup(func() { _ = reopened.Close() })

			got, err := reopened.Store.Get(testCtx, sess.TokenID)
			require.NoError(t, err)
			assert.Equal(t, uploadstate.StatusFailed, got.Status)
			assert.EqualValues(t, 200_000, got.ResumeAt)
			assert.Equal(t, 2, got.ChunksUploaded)
			assert.Equal(t, "connection reset", got.Error)
		})
	}
}
