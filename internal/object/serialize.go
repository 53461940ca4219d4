package object

import (
	"fmt"
	"reflect"
	"strings"

	"mediaclient/internal/core"
)

// NullSuffix marks a property for deletion on the wire.
const NullSuffix = "__null"

type valueStatus int

const (
	statusMissing valueStatus = iota
	statusRemoved
	statusExists
)

// Serialize converts an object into its wire record.
func Serialize(o Object) (map[string]any, error) {
	if o == nil || isNilObject(o) {
		return nil, core.NewTypeMismatchError("cannot serialize a nil object")
	}
	b := o.base()
	md := o.Metadata()
	for _, name := range b.allowedEmpty {
		p, ok := md.Property(name)
		switch {
		case !ok:
			logIgnoredEmptyArray(o, name, "unknown property")
		case p.Type != TypeArray:
			logIgnoredEmptyArray(o, name, "not an array property")
		}
	}

	result := make(map[string]any, md.Len())
	for _, p := range md.properties {
		status, value, err := requestValue(b, p)
		if err != nil {
			return nil, err
		}
		switch status {
		case statusExists:
			result[p.Name] = value
		case statusRemoved:
			result[p.Name+NullSuffix] = ""
		}
	}
	return result, nil
}

// DependencyPlaceholder renders the wire value referencing another request's result.
func DependencyPlaceholder(d Dependency) string {
	if len(d.TargetPath) == 0 {
		return fmt.Sprintf("{%d:result}", d.Request)
	}
	return fmt.Sprintf("{%d:result:%s}", d.Request, strings.Join(d.TargetPath, ":"))
}

func requestValue(b *Base, p Property) (valueStatus, any, error) {
	if p.Type == TypeConstant {
		if p.Default == "" {
			return statusMissing, nil, nil
		}
		return statusExists, p.Default, nil
	}
	if d, ok := b.dependencies[p.Name]; ok {
		return statusExists, DependencyPlaceholder(d), nil
	}
	if p.ReadOnly {
		return statusMissing, nil, nil
	}

	value, ok := b.values[p.Name]
	if !ok {
		return statusMissing, nil, nil
	}
	if value == nil {
		return statusRemoved, nil, nil
	}

	switch p.Type {
	case TypeBool:
		v, ok := toBool(value)
		if !ok {
			return 0, nil, mismatch(p.Name, "boolean", value)
		}
		return statusExists, v, nil
	case TypeString:
		v, ok := toString(value)
		if !ok {
			return 0, nil, mismatch(p.Name, "string", value)
		}
		return statusExists, v, nil
	case TypeNumber, TypeEnumNumber:
		v, ok := toNumber(value)
		if !ok {
			return 0, nil, mismatch(p.Name, "number", value)
		}
		return statusExists, v, nil
	case TypeEnumString:
		if s, ok := stringValue(value); ok {
			return statusExists, s, nil
		}
		return statusMissing, nil, nil
	case TypeObject:
		nested, ok := value.(Object)
		if !ok || isNilObject(nested) {
			return 0, nil, mismatch(p.Name, "object", value)
		}
		record, err := Serialize(nested)
		if err != nil {
			return 0, nil, err
		}
		return statusExists, record, nil
	case TypeArray:
		return serializeArray(b, p, value)
	case TypeMap:
		return serializeMap(p, value)
	case TypeDate:
		ts, ok := toServerDateValue(value)
		if !ok {
			return 0, nil, mismatch(p.Name, "date", value)
		}
		return statusExists, ts, nil
	case TypeFile:
		if f, ok := value.(File); ok {
			return statusExists, f, nil
		}
		return statusMissing, nil, nil
	}
	return statusMissing, nil, nil
}

func serializeArray(b *Base, p Property, value any) (valueStatus, any, error) {
	items, ok := objectSlice(value)
	if !ok {
		return 0, nil, mismatch(p.Name, "array", value)
	}
	if len(items) == 0 {
		if b.emptyArrayAllowed(p.Name) {
			return statusExists, []any{}, nil
		}
		return statusMissing, nil, nil
	}
	out := make([]any, 0, len(items))
	for i, item := range items {
		nested, ok := item.(Object)
		if !ok || isNilObject(nested) {
			return 0, nil, core.NewTypeMismatchError(
				fmt.Sprintf("failed to parse array. Expected all '%s' items to be objects (item %d is %T)", p.Name, i, item))
		}
		record, err := Serialize(nested)
		if err != nil {
			return 0, nil, err
		}
		out = append(out, record)
	}
	return statusExists, out, nil
}

func serializeMap(p Property, value any) (valueStatus, any, error) {
	items, ok := objectMap(value)
	if !ok {
		return 0, nil, mismatch(p.Name, "map", value)
	}
	if len(items) == 0 {
		return statusMissing, nil, nil
	}
	out := make(map[string]any, len(items))
	for key, item := range items {
		nested, ok := item.(Object)
		if !ok || isNilObject(nested) {
			return 0, nil, core.NewTypeMismatchError(
				fmt.Sprintf("failed to parse map. Expected all '%s' items to be objects (key %q is %T)", p.Name, key, item))
		}
		record, err := Serialize(nested)
		if err != nil {
			return 0, nil, err
		}
		out[key] = record
	}
	return statusExists, out, nil
}

// objectSlice flattens []Object, []any and typed slices such as []*MediaEntry.
func objectSlice(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []Object:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out, true
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// objectMap flattens map[string]Object, map[string]any and typed string-keyed maps.
func objectMap(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case map[string]any:
		return v, true
	case map[string]Object:
		out := make(map[string]any, len(v))
		for k, o := range v {
			out[k] = o
		}
		return out, true
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

func isNilObject(o Object) bool {
	rv := reflect.ValueOf(o)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

func mismatch(property, expected string, value any) *core.ClientError {
	return core.NewTypeMismatchError(
		fmt.Sprintf("failed to parse property '%s'. Expected %s, got %T", property, expected, value))
}
