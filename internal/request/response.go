package request

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"mediaclient/internal/core"
	"mediaclient/internal/object"
)

// Response is the outcome of one request: either a result or an error.
// Err is a *core.APIError for server exceptions and a *core.ClientError for client failures.
type Response struct {
	Result any
	Err    error
}

// OK reports whether the request succeeded.
func (r *Response) OK() bool {
	return r.Err == nil
}

// APIError returns the server exception carried by the response, if any.
func (r *Response) APIError() (*core.APIError, bool) {
	var apiErr *core.APIError
	ok := errors.As(r.Err, &apiErr)
	return apiErr, ok
}

// ResultAs returns the result converted to T.
func ResultAs[T any](r *Response) (T, error) {
	var zero T
	if r.Err != nil {
		return zero, r.Err
	}
	v, ok := r.Result.(T)
	if !ok {
		return zero, core.NewTypeMismatchError(fmt.Sprintf("unexpected result type %T, want %T", r.Result, zero))
	}
	return v, nil
}

// ResultsAs returns an array result as a typed slice.
func ResultsAs[T object.Object](r *Response) ([]T, error) {
	items, err := ResultAs[[]object.Object](r)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(items))
	for i, item := range items {
		v, ok := item.(T)
		if !ok {
			return nil, core.NewTypeMismatchError(fmt.Sprintf("item %d has type %T", i, item))
		}
		out = append(out, v)
	}
	return out, nil
}

// decodeJSON decodes a JSON document keeping numbers as json.Number so integer values
// survive as integers.
func decodeJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// unwrapEnvelope returns the payload of a {result: ...} or {error: ...} envelope. Typed objects
// carry an objectType and are never treated as envelopes.
func unwrapEnvelope(doc gjson.Result) gjson.Result {
	if !doc.IsObject() || doc.Get("objectType").Exists() {
		return doc
	}
	if result := doc.Get("result"); result.Exists() {
		return result
	}
	if errPayload := doc.Get("error"); errPayload.Exists() {
		return errPayload
	}
	return doc
}

// decodeEnvelope parses a raw response body, unwrapping a nested envelope if present.
func decodeEnvelope(raw []byte) (any, error) {
	if !gjson.ValidBytes(raw) {
		return nil, core.NewResponseParseError("server response is not valid JSON", nil)
	}
	payload := unwrapEnvelope(gjson.ParseBytes(raw))
	v, err := decodeJSON([]byte(payload.Raw))
	if err != nil {
		return nil, core.NewResponseParseError("failed to parse response", err)
	}
	return v, nil
}

func parseResult(value any, kind ResultKind, resultType string, decoder *object.Decoder) *Response {
	if core.IsAPIErrorPayload(value) {
		return &Response{Err: core.NewAPIErrorFromPayload(value)}
	}

	switch kind {
	case ResultVoid:
		return &Response{}
	case ResultScalar:
		return &Response{Result: value}
	case ResultObject:
		if value == nil {
			return &Response{}
		}
		o, err := decoder.Decode(value, resultType)
		if err != nil {
			return &Response{Err: asClientError(err)}
		}
		return &Response{Result: o}
	case ResultArray:
		items, ok := value.([]any)
		if !ok {
			return &Response{Err: core.NewTypeMismatchError(fmt.Sprintf("expected an array result, got %T", value))}
		}
		out := make([]object.Object, 0, len(items))
		for i, item := range items {
			o, err := decoder.Decode(item, resultType)
			if err != nil {
				return &Response{Err: asClientError(fmt.Errorf("item %d: %w", i, err))}
			}
			out = append(out, o)
		}
		return &Response{Result: out}
	}
	return &Response{Err: core.NewResponseParseError(fmt.Sprintf("unknown result kind %d", kind), nil)}
}

// asClientError keeps recognized client/API errors and wraps anything else as the
// generic response-unknown-error.
func asClientError(err error) error {
	if core.IsKnownError(err) {
		return err
	}
	var msg string
	if err != nil {
		msg = err.Error()
	}
	return core.NewResponseParseError(msg, err)
}

// ExecutionTime extracts the server execution time, in seconds, from a raw response body.
func ExecutionTime(raw []byte) (float64, bool) {
	v := gjson.GetBytes(raw, "executionTime")
	if !v.Exists() {
		return 0, false
	}
	return v.Float(), true
}
