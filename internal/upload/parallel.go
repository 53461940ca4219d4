package upload

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"mediaclient/internal/request"
	"mediaclient/internal/uploadstate"
)

// ParallelState is the progress of a parallel upload.
type ParallelState struct {
	ChunkUploadEnabled bool
	Loaded             int64
	ChunkSize          int64
	TotalChunks        int
	ChunksUploaded     int
	NextChunkIndex     int
}

// TotalChunks returns ceil(size/chunkSize). An empty file is still sent as one chunk.
func TotalChunks(size, chunkSize int64) int {
	if size <= 0 || chunkSize <= 0 {
		return 1
	}
	return int((size + chunkSize - 1) / chunkSize)
}

// runParallel sends chunks concurrently, each admitted by a pool token. Chunk offsets depend
// only on the chunk index. The response of the chunk that completes the set is the final one.
func (o *Orchestrator) runParallel(ctx context.Context, t *transfer) ([]byte, error) {
	state := ParallelState{
		ChunkUploadEnabled: t.chunked,
		ChunkSize:          o.chunkSize,
		TotalChunks:        1,
	}
	if state.ChunkUploadEnabled {
		state.TotalChunks = TotalChunks(t.size, o.chunkSize)
	}

	var (
		mu       sync.Mutex
		finalRaw []byte
	)
	g, gctx := errgroup.WithContext(ctx)

	// The dispatcher is the only goroutine acquiring tokens for this upload, so admission and
	// dispatch of a chunk happen as one step.
	for state.NextChunkIndex < state.TotalChunks {
		if err := o.pool.Acquire(gctx); err != nil {
			break
		}
		index := state.NextChunkIndex
		state.NextChunkIndex++

		g.Go(func() error {
			defer func() {
				if err := o.pool.Release(); err != nil {
					o.logger.Error("upload pool release failed", "error", err)
				}
			}()

			var chunk *request.ChunkParams
			offset, length := int64(0), t.size
			if state.ChunkUploadEnabled {
				offset = int64(index) * o.chunkSize
				length = min(o.chunkSize, t.size-offset)
				chunk = &request.ChunkParams{
					Resume:     index > 0,
					ResumeAt:   offset,
					FinalChunk: t.size-offset <= o.chunkSize,
				}
			}

			raw, err := o.sendChunk(gctx, t, chunk, offset, length, nil)
			if err != nil {
				return err
			}
			if state.ChunkUploadEnabled && state.TotalChunks > 1 {
				_, reported, err := request.ChunkOutcome(raw)
				if err != nil {
					return err
				}
				if chunk != nil && !chunk.FinalChunk && !reported {
					return protocolError("chunk response at offset %d has no uploadedFileSize", offset)
				}
			}

			mu.Lock()
			state.ChunksUploaded++
			state.Loaded += length
			loaded, uploaded := state.Loaded, state.ChunksUploaded
			if uploaded >= state.TotalChunks {
				finalRaw = raw
			}
			o.report(t, loaded)
			mu.Unlock()

			o.saveSession(gctx, t, func(s *uploadstate.Session) {
				s.Status = uploadstate.StatusUploading
				s.ChunksUploaded = uploaded
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return finalRaw, nil
}
