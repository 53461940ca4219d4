// Package request builds API calls from typed objects and turns server responses back into
// typed results. It covers single requests, multi-request batches and upload requests.
package request

import (
	"log/slog"
	"net/url"

	"mediaclient/internal/object"
	"mediaclient/internal/transport"
)

// ActionParams is the parameter object of one service action. Its metadata lists the
// action's parameters the same way an object type lists its properties.
type ActionParams struct {
	object.Base
	metadata *object.Metadata
}

// Metadata implements object.Object.
func (p *ActionParams) Metadata() *object.Metadata { return p.metadata }

// ResultKind describes the shape of an action's result.
type ResultKind int

const (
	// ResultVoid results are ignored.
	ResultVoid ResultKind = iota
	// ResultScalar results are returned as decoded JSON values.
	ResultScalar
	// ResultObject results are decoded into a typed object.
	ResultObject
	// ResultArray results are decoded into a slice of typed objects.
	ResultArray
)

// BuildOptions carry the client-wide settings applied when a request is serialized.
type BuildOptions struct {
	APIVersion string
	ClientTag  string
	// AvoidQueryString moves the client tag into the body.
	AvoidQueryString bool
	// Defaults are params sent with every request unless a request overrides them.
	Defaults []Param
}

// Payload is a serialized JSON call.
type Payload struct {
	Endpoint string
	Body     map[string]any
	Query    url.Values
	Headers  map[string]string
}

// Request is one service action call.
type Request struct {
	service       string
	action        string
	params        *ActionParams
	resultKind    ResultKind
	resultType    string
	options       []Param
	acceptedTypes []*object.Registry
	completion    func(*Response)
}

// New creates a request for service.action whose parameters are described by metadata.
// A nil metadata declares an action without parameters.
func New(service, action string, metadata *object.Metadata) *Request {
	if metadata == nil {
		metadata = object.NewMetadata(nil)
	}
	return &Request{
		service: service,
		action:  action,
		params:  &ActionParams{metadata: metadata},
	}
}

// Service returns the service name.
func (r *Request) Service() string { return r.service }

// Action returns the action name.
func (r *Request) Action() string { return r.action }

// Params returns the parameter object.
func (r *Request) Params() *ActionParams { return r.params }

// Set assigns an action parameter. Passing nil clears it on the server.
func (r *Request) Set(name string, value any) *Request {
	r.params.Set(name, value)
	return r
}

// SetDependency binds action parameters to results of other requests in the same batch.
func (r *Request) SetDependency(deps ...object.Dependency) *Request {
	r.params.SetDependency(deps...)
	return r
}

// ReturnsObject declares an object result decoded with fallbackType when the payload's
// discriminator is unknown.
func (r *Request) ReturnsObject(fallbackType string) *Request {
	r.resultKind = ResultObject
	r.resultType = fallbackType
	return r
}

// ReturnsArray declares a result that is a list of objects.
func (r *Request) ReturnsArray(fallbackType string) *Request {
	r.resultKind = ResultArray
	r.resultType = fallbackType
	return r
}

// ReturnsScalar declares a plain JSON result such as a string or a number.
func (r *Request) ReturnsScalar() *Request {
	r.resultKind = ResultScalar
	r.resultType = ""
	return r
}

// WithParams sets request-level params. They override the client defaults.
func (r *Request) WithParams(params ...Param) *Request {
	r.options = mergeParams(r.options, params)
	return r
}

// AcceptTypes registers extra registries consulted before the process-wide one when the
// response is decoded.
func (r *Request) AcceptTypes(registries ...*object.Registry) *Request {
	r.acceptedTypes = append(r.acceptedTypes, registries...)
	return r
}

// SetCompletion registers a callback invoked with the parsed response.
func (r *Request) SetCompletion(fn func(*Response)) *Request {
	r.completion = fn
	return r
}

// Build serializes the request for a standalone call.
func (r *Request) Build(opts BuildOptions) (*Payload, error) {
	headers := map[string]string{}
	body, err := r.params.record()
	if err != nil {
		return nil, err
	}
	stripFiles(body)
	if opts.APIVersion != "" {
		body["apiVersion"] = opts.APIVersion
	}
	body["format"] = int64(transport.FormatJSON)
	if err := applyParams(mergeParams(opts.Defaults, r.options), body, headers); err != nil {
		return nil, err
	}

	query := url.Values{}
	addClientTag(opts, body, query)

	return &Payload{
		Endpoint: transport.Endpoint(r.service, r.action),
		Body:     body,
		Query:    query,
		Headers:  headers,
	}, nil
}

// batchRecord serializes the request as one member of a multi-request.
func (r *Request) batchRecord(headers map[string]string) (map[string]any, error) {
	record, err := r.params.record()
	if err != nil {
		return nil, err
	}
	stripFiles(record)
	record["service"] = r.service
	record["action"] = r.action
	if err := applyParams(r.options, record, headers); err != nil {
		return nil, err
	}
	return record, nil
}

func (p *ActionParams) record() (map[string]any, error) {
	return object.Serialize(p)
}

func addClientTag(opts BuildOptions, body map[string]any, query url.Values) {
	if opts.ClientTag == "" {
		return
	}
	if opts.AvoidQueryString {
		body["clientTag"] = opts.ClientTag
		return
	}
	query.Set("clientTag", opts.ClientTag)
}

// stripFiles removes file payloads, which only the multipart transport can carry.
func stripFiles(record map[string]any) {
	for k, v := range record {
		if _, ok := v.(object.File); ok {
			delete(record, k)
		}
	}
}

// HandleResponse parses a standalone response body and runs the completion callback.
func (r *Request) HandleResponse(raw []byte) *Response {
	return r.Complete(r.ParseRaw(raw))
}

// ParseRaw parses a standalone response body without running the completion callback.
func (r *Request) ParseRaw(raw []byte) *Response {
	value, err := decodeEnvelope(raw)
	if err != nil {
		return &Response{Err: err}
	}
	return r.ParseServerResponse(value)
}

// Complete runs the completion callback with resp and returns it.
func (r *Request) Complete(resp *Response) *Response {
	r.complete(resp)
	return resp
}

// ParseServerResponse turns one decoded response value into a result or an error.
func (r *Request) ParseServerResponse(value any) *Response {
	return parseResult(value, r.resultKind, r.resultType, object.NewDecoder(r.acceptedTypes...))
}

// Fail builds the response of a request that could not be sent or answered, running the
// completion callback like any other response.
func (r *Request) Fail(err error) *Response {
	resp := &Response{Err: err}
	r.complete(resp)
	return resp
}

func (r *Request) complete(resp *Response) {
	if r.completion == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("request completion callback panicked",
				"service", r.service,
				"action", r.action,
				"panic", rec,
			)
		}
	}()
	r.completion(resp)
}
