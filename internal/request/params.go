package request

import (
	"strconv"

	"mediaclient/internal/object"
)

// Param is a request-level option such as the session token or the response language.
// Most params travel in the body; a few travel as HTTP headers.
type Param struct {
	key    string
	value  any
	inBody bool
}

// Key returns the wire name of the param.
func (p Param) Key() string { return p.key }

// Value returns the param value.
func (p Param) Value() any { return p.value }

// InBody reports whether the param is sent in the request body rather than as a header.
func (p Param) InBody() bool { return p.inBody }

// KS sets the session token.
func KS(value string) Param {
	return Param{key: "ks", value: value, inBody: true}
}

// PartnerID sets the partner the call acts on behalf of.
func PartnerID(value int) Param {
	return Param{key: "partnerId", value: int64(value), inBody: true}
}

// Language sets the language of localized response fields.
func Language(value string) Param {
	return Param{key: "language", value: value, inBody: true}
}

// Currency sets the currency of priced response fields.
func Currency(value string) Param {
	return Param{key: "currency", value: value, inBody: true}
}

// UserID impersonates a user.
func UserID(value int) Param {
	return Param{key: "userId", value: int64(value), inBody: true}
}

// ResponseProfile selects the fields and related objects returned by the server.
func ResponseProfile(value object.Object) Param {
	return Param{key: "responseProfile", value: value, inBody: true}
}

// SessionID sets the header correlating server logs with this client's calls.
func SessionID(value string) Param {
	return Param{key: "X-Kaltura-Session-Id", value: value, inBody: false}
}

// mergeParams returns base overridden by overrides, keyed by param name.
func mergeParams(base, overrides []Param) []Param {
	out := make([]Param, 0, len(base)+len(overrides))
	index := make(map[string]int, len(base)+len(overrides))
	for _, list := range [][]Param{base, overrides} {
		for _, p := range list {
			if i, ok := index[p.key]; ok {
				out[i] = p
				continue
			}
			index[p.key] = len(out)
			out = append(out, p)
		}
	}
	return out
}

// applyParams writes body params into record and header params into headers.
func applyParams(params []Param, record map[string]any, headers map[string]string) error {
	for _, p := range params {
		if !p.inBody {
			if headers != nil {
				headers[p.key] = headerValue(p.value)
			}
			continue
		}
		switch v := p.value.(type) {
		case object.Object:
			serialized, err := object.Serialize(v)
			if err != nil {
				return err
			}
			record[p.key] = serialized
		case string:
			if v == "" {
				continue
			}
			record[p.key] = v
		default:
			record[p.key] = v
		}
	}
	return nil
}

func headerValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	}
	return ""
}
