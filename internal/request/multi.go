package request

import (
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"mediaclient/internal/core"
	"mediaclient/internal/object"
	"mediaclient/internal/transport"
)

// Multi batches independent requests into one call. Responses are matched to requests
// by position.
type Multi struct {
	requests   []*Request
	completion func(*MultiResponse)
}

// MultiResponse holds the per-request responses of a batch, in request order.
type MultiResponse struct {
	responses []*Response
	// ExecutionTime is the server-reported execution time in seconds, when present.
	ExecutionTime float64
}

// NewMulti creates a batch of requests.
func NewMulti(requests ...*Request) *Multi {
	return &Multi{requests: requests}
}

// Add appends requests to the batch.
func (m *Multi) Add(requests ...*Request) *Multi {
	m.requests = append(m.requests, requests...)
	return m
}

// Len returns the number of requests in the batch.
func (m *Multi) Len() int {
	return len(m.requests)
}

// Requests returns the batched requests in order.
func (m *Multi) Requests() []*Request {
	return m.requests
}

// SetCompletion registers a callback invoked once the batch response has been parsed.
// Panics inside the callback are recovered and logged.
func (m *Multi) SetCompletion(fn func(*MultiResponse)) *Multi {
	m.completion = fn
	return m
}

// Build serializes the batch. Dependency bindings of the members and of the objects they
// carry are consumed: they are cleared once Build returns, whether or not it succeeded.
func (m *Multi) Build(opts BuildOptions) (*Payload, error) {
	defer func() {
		for _, r := range m.requests {
			object.ResetDependencies(r.params)
		}
	}()

	body := map[string]any{
		"service": transport.MultiRequestService,
	}
	headers := map[string]string{}
	if opts.APIVersion != "" {
		body["apiVersion"] = opts.APIVersion
	}
	body["format"] = int64(transport.FormatJSON)
	if err := applyParams(opts.Defaults, body, headers); err != nil {
		return nil, err
	}

	query := url.Values{}
	addClientTag(opts, body, query)

	for i, r := range m.requests {
		record, err := r.batchRecord(headers)
		if err != nil {
			return nil, fmt.Errorf("request %d (%s.%s): %w", i, r.service, r.action, err)
		}
		body[strconv.Itoa(i)] = record
	}
	return &Payload{
		Endpoint: transport.Endpoint(transport.MultiRequestService, ""),
		Body:     body,
		Query:    query,
		Headers:  headers,
	}, nil
}

// HandleResponse demultiplexes a raw batch response. If the response is not an array with
// one entry per request, every member fails with the same InvalidBatchResponse error.
func (m *Multi) HandleResponse(raw []byte) *MultiResponse {
	result := &MultiResponse{}
	if t, ok := ExecutionTime(raw); ok {
		result.ExecutionTime = t
	}

	value, err := decodeEnvelope(raw)
	items, ok := value.([]any)
	if err == nil && (!ok || len(items) != len(m.requests)) {
		err = core.NewInvalidBatchResponseError(len(m.requests))
	}

	if err != nil {
		for _, r := range m.requests {
			result.responses = append(result.responses, r.Fail(err))
		}
	} else {
		for i, r := range m.requests {
			resp := r.ParseServerResponse(items[i])
			r.complete(resp)
			result.responses = append(result.responses, resp)
		}
	}

	m.complete(result)
	return result
}

// Fail resolves every member with err, as when the batch could not be sent.
func (m *Multi) Fail(err error) *MultiResponse {
	result := &MultiResponse{}
	for _, r := range m.requests {
		result.responses = append(result.responses, r.Fail(err))
	}
	m.complete(result)
	return result
}

func (m *Multi) complete(result *MultiResponse) {
	if m.completion == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("multi-request completion callback panicked", "panic", rec)
		}
	}()
	m.completion(result)
}

// Responses returns the per-request responses in request order.
func (r *MultiResponse) Responses() []*Response {
	return r.responses
}

// Len returns the number of responses.
func (r *MultiResponse) Len() int {
	return len(r.responses)
}

// At returns the response of the request at index i.
func (r *MultiResponse) At(i int) *Response {
	return r.responses[i]
}

// HasErrors reports whether any request failed.
func (r *MultiResponse) HasErrors() bool {
	for _, resp := range r.responses {
		if resp.Err != nil {
			return true
		}
	}
	return false
}
