package transport

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"mediaclient/internal/object"
)

// MultiRequestService is the service name batches are posted to.
const MultiRequestService = "multirequest"

// FormatJSON is the value of the format parameter selecting JSON responses.
const FormatJSON = 1

// Endpoint returns the API path for a service action. Empty actions address the service itself,
// which is how batches are sent.
func Endpoint(service, action string) string {
	if action == "" {
		return "/api_v3/service/" + url.PathEscape(service)
	}
	return "/api_v3/service/" + url.PathEscape(service) + "/action/" + url.PathEscape(action)
}

// EndpointURL joins a service URL, an endpoint path and query parameters.
func EndpointURL(serviceURL, endpoint string, query url.Values) string {
	u := strings.TrimRight(serviceURL, "/") + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// FlattenParams renders a wire record as query parameters.
// Nested records and arrays use ':'-joined keys, the convention the API accepts for form input.
// File payloads are skipped.
func FlattenParams(params map[string]any) url.Values {
	values := url.Values{}
	flatten(values, "", params)
	return values
}

func flatten(values url.Values, prefix string, v any) {
	key := func(k string) string {
		if prefix == "" {
			return k
		}
		return prefix + ":" + k
	}

	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			flatten(values, key(k), t[k])
		}
	case []any:
		if len(t) == 0 {
			values.Set(key("-"), "")
			return
		}
		for i, item := range t {
			flatten(values, key(strconv.Itoa(i)), item)
		}
	case object.File:
		// sent as a multipart part
	default:
		values.Set(prefix, scalarString(t))
	}
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "1"
		}
		return "0"
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return strconv.FormatInt(object.ToServerDate(t), 10)
	}
	return fmt.Sprint(v)
}
