package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// params are the decoded parameters of one action call.
type params map[string]any

// decodeParams decodes a JSON object keeping integers as int64.
func decodeParams(raw []byte) (params, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return params{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v map[string]any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return params(normalize(v).(map[string]any)), nil
}

func normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, item := range t {
			t[k] = normalize(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = normalize(item)
		}
		return t
	}
	return v
}

func (p params) str(name string) string {
	switch v := p[name].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func (p params) int(name string) (int64, bool) {
	switch v := p[name].(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}

func (p params) bool(name string) bool {
	switch v := p[name].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case string:
		return v == "1" || strings.EqualFold(v, "true")
	}
	return false
}

func (p params) object(name string) params {
	m, _ := p[name].(map[string]any)
	if m == nil {
		return params{}
	}
	return params(m)
}

// cleared lists the fields sent with the deletion marker.
func (p params) cleared() []string {
	var out []string
	for k := range p {
		if name, ok := strings.CutSuffix(k, "__null"); ok {
			out = append(out, name)
		}
	}
	return out
}

// apiError is an exception returned to the caller inside a successful HTTP response.
type apiError struct {
	Code    string
	Message string
}

func apiException(code, message string) *apiError {
	return &apiError{Code: code, Message: message}
}

func (e *apiError) Error() string {
	return e.Code + ": " + e.Message
}

func (e *apiError) payload() map[string]any {
	return map[string]any{
		"objectType": "KalturaAPIException",
		"code":       e.Code,
		"message":    e.Message,
		"args":       map[string]any{},
	}
}
