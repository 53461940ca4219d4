package upload

import (
	"context"

	"mediaclient/internal/request"
	"mediaclient/internal/uploadstate"
)

// SequentialState is the progress of a sequential upload.
type SequentialState struct {
	Enabled    bool
	Resume     bool
	ResumeAt   int64
	FinalChunk bool
}

// runSequential sends chunks in strict order. After every non-final chunk the server must
// report uploadedFileSize, which becomes the next offset.
func (o *Orchestrator) runSequential(ctx context.Context, t *transfer) ([]byte, error) {
	state := SequentialState{Enabled: t.chunked}
	if !state.Enabled {
		return o.sendChunk(ctx, t, nil, 0, t.size, func(sent int64) { o.report(t, sent) })
	}

	if start := t.req.UploadedFileSize(); start > 0 {
		state.Resume, state.ResumeAt = true, start
	} else if t.session != nil && t.session.ResumeAt > 0 {
		state.Resume, state.ResumeAt = true, t.session.ResumeAt
		o.logger.Info("resuming upload from stored session",
			"token", t.session.TokenID,
			"resume_at", state.ResumeAt,
		)
	}
	if state.ResumeAt > t.size {
		return nil, protocolError("resume offset %d is beyond file size %d", state.ResumeAt, t.size)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		offset := state.ResumeAt
		end := min(offset+o.chunkSize, t.size)
		state.FinalChunk = end >= t.size

		o.saveSession(ctx, t, func(s *uploadstate.Session) {
			s.Status = uploadstate.StatusUploading
			s.ResumeAt = offset
		})

		raw, err := o.sendChunk(ctx, t, &request.ChunkParams{
			Resume:     state.Resume,
			ResumeAt:   offset,
			FinalChunk: state.FinalChunk,
		}, offset, end-offset, func(sent int64) { o.report(t, offset+sent) })
		if err != nil {
			return nil, err
		}
		if state.FinalChunk {
			o.saveSession(ctx, t, func(s *uploadstate.Session) { s.ChunksUploaded++ })
			return raw, nil
		}

		uploaded, reported, err := request.ChunkOutcome(raw)
		if err != nil {
			return nil, err
		}
		if !reported {
			return nil, protocolError("chunk response at offset %d has no uploadedFileSize", offset)
		}
		if uploaded <= offset || uploaded > t.size {
			return nil, protocolError("server reported uploadedFileSize %d after chunk at offset %d of %d bytes",
				uploaded, offset, t.size)
		}

		state.Resume, state.ResumeAt = true, uploaded
		o.saveSession(ctx, t, func(s *uploadstate.Session) {
			s.ResumeAt = uploaded
			s.ChunksUploaded++
		})
	}
}
