package request

import (
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"

	"mediaclient/internal/core"
	"mediaclient/internal/object"
	"mediaclient/internal/transport"
)

// ProgressFunc receives absolute upload positions: bytes of the file sent so far and the file size.
type ProgressFunc func(loaded, total int64)

// ChunkParams are the chunk-control parameters of one chunk transfer.
type ChunkParams struct {
	Resume     bool
	ResumeAt   int64
	FinalChunk bool
}

// UploadPayload is a serialized upload call. Non-file parameters travel in the query string.
type UploadPayload struct {
	Endpoint  string
	Query     url.Values
	Headers   map[string]string
	FileField string
	FileName  string
	File      object.File
}

// UploadRequest is a request with a file parameter.
type UploadRequest struct {
	*Request
	fileProperty     string
	chunkUpload      bool
	uploadedFileSize int64
	progress         ProgressFunc
	resumeKeyParam   string
}

// NewUpload creates an upload request whose file travels in fileProperty.
func NewUpload(service, action string, metadata *object.Metadata, fileProperty string) *UploadRequest {
	return &UploadRequest{
		Request:      New(service, action, metadata),
		fileProperty: fileProperty,
	}
}

// WithChunkUpload marks the action as accepting chunked transfers.
func (u *UploadRequest) WithChunkUpload(enabled bool) *UploadRequest {
	u.chunkUpload = enabled
	return u
}

// SupportsChunkUpload reports whether the action accepts chunked transfers.
func (u *UploadRequest) SupportsChunkUpload() bool {
	return u.chunkUpload
}

// SetUploadedFileSize resumes the upload at size bytes.
func (u *UploadRequest) SetUploadedFileSize(size int64) *UploadRequest {
	u.uploadedFileSize = size
	return u
}

// UploadedFileSize returns the offset the upload resumes at.
func (u *UploadRequest) UploadedFileSize() int64 {
	if u.uploadedFileSize < 0 {
		return 0
	}
	return u.uploadedFileSize
}

// SetProgress registers a progress callback.
func (u *UploadRequest) SetProgress(fn ProgressFunc) *UploadRequest {
	u.progress = fn
	return u
}

// Progress returns the progress callback, if any.
func (u *UploadRequest) Progress() ProgressFunc {
	return u.progress
}

// WithResumeKey names the parameter identifying the upload session, e.g. the upload token id.
func (u *UploadRequest) WithResumeKey(param string) *UploadRequest {
	u.resumeKeyParam = param
	return u
}

// ResumeKey returns the value of the resume key parameter, or "" when unset.
func (u *UploadRequest) ResumeKey() string {
	if u.resumeKeyParam == "" {
		return ""
	}
	v, ok := u.params.Get(u.resumeKeyParam)
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// File returns the file payload.
func (u *UploadRequest) File() (object.File, error) {
	v, ok := u.params.Get(u.fileProperty)
	if !ok || v == nil {
		return nil, core.NewInvalidRequestError(fmt.Sprintf("upload request has no file in '%s'", u.fileProperty), nil)
	}
	f, ok := v.(object.File)
	if !ok {
		return nil, core.NewTypeMismatchError(fmt.Sprintf("property '%s' holds %T, not a file", u.fileProperty, v))
	}
	return f, nil
}

// Sliceable reports whether the file can be read in byte ranges.
func Sliceable(f object.File) bool {
	_, ok := f.(io.ReaderAt)
	return ok && f.Size() >= 0
}

// BuildUpload serializes the request for one transfer. A nil chunk sends the file as-is.
func (u *UploadRequest) BuildUpload(opts BuildOptions, chunk *ChunkParams) (*UploadPayload, error) {
	file, err := u.File()
	if err != nil {
		return nil, err
	}
	record, err := u.params.record()
	if err != nil {
		return nil, err
	}
	stripFiles(record)
	if chunk != nil {
		record["resume"] = chunk.Resume
		record["resumeAt"] = chunk.ResumeAt
		record["finalChunk"] = chunk.FinalChunk
	}
	headers := map[string]string{}
	if opts.APIVersion != "" {
		record["apiVersion"] = opts.APIVersion
	}
	if err := applyParams(mergeParams(opts.Defaults, u.options), record, headers); err != nil {
		return nil, err
	}
	if opts.ClientTag != "" {
		record["clientTag"] = opts.ClientTag
	}

	return &UploadPayload{
		Endpoint:  transport.Endpoint(u.service, u.action),
		Query:     transport.FlattenParams(record),
		Headers:   headers,
		FileField: u.fileProperty,
		FileName:  file.Name(),
		File:      file,
	}, nil
}

// HandleUploadResponse parses the response of the final transfer.
// Failures that are not already client or API errors become the generic response-unknown-error.
func (u *UploadRequest) HandleUploadResponse(raw []byte) *Response {
	var resp *Response
	if value, err := decodeEnvelope(raw); err != nil {
		resp = &Response{Err: err}
	} else {
		resp = u.ParseServerResponse(value)
	}
	if resp.Err != nil {
		resp.Err = asClientError(resp.Err)
	}
	u.complete(resp)
	return resp
}

// ChunkOutcome checks the response of an intermediate chunk. It returns the server's
// uploadedFileSize when reported, or the API error the server answered with.
func ChunkOutcome(raw []byte) (uploadedFileSize int64, reported bool, err error) {
	value, err := decodeEnvelope(raw)
	if err != nil {
		return 0, false, err
	}
	if core.IsAPIErrorPayload(value) {
		return 0, false, core.NewAPIErrorFromPayload(value)
	}
	size := unwrapEnvelope(gjson.ParseBytes(raw)).Get("uploadedFileSize")
	switch size.Type {
	case gjson.Number:
		return size.Int(), true, nil
	case gjson.String:
		n, perr := strconv.ParseInt(size.Str, 10, 64)
		if perr != nil {
			return 0, false, core.NewProtocolError(fmt.Sprintf("chunk response has invalid uploadedFileSize %q", size.Str))
		}
		return n, true, nil
	default:
		return 0, false, nil
	}
}
