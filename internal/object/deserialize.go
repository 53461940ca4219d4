package object

import (
	"fmt"

	"mediaclient/internal/core"
)

// Decoder turns wire records into typed objects.
// Registries are consulted in order; the process-wide registry is always last.
type Decoder struct {
	f factory
}

// NewDecoder returns a decoder that prefers the given registries over the process-wide one.
func NewDecoder(registries ...*Registry) *Decoder {
	regs := make([]*Registry, 0, len(registries)+1)
	for _, r := range registries {
		if r != nil && r != defaultRegistry {
			regs = append(regs, r)
		}
	}
	regs = append(regs, defaultRegistry)
	return &Decoder{f: factory{registries: regs}}
}

var defaultDecoder = NewDecoder()

// Deserialize applies a wire record to target using the process-wide registry.
func Deserialize(data map[string]any, target Object) error {
	return defaultDecoder.Deserialize(data, target)
}

// Decode builds an object from a wire value using the process-wide registry.
func Decode(data any, fallbackType string) (Object, error) {
	return defaultDecoder.Decode(data, fallbackType)
}

// Decode builds an object from a wire value. The concrete type comes from the value's
// objectType discriminator, or fallbackType when the discriminator is missing or unknown.
func (d *Decoder) Decode(data any, fallbackType string) (Object, error) {
	record, ok := data.(map[string]any)
	if !ok {
		return nil, core.NewTypeMismatchError(fmt.Sprintf("expected an object, got %T", data))
	}
	discriminator, _ := stringValue(record[PropObjectType])
	o, ok := d.f.create(discriminator, fallbackType)
	if !ok {
		return nil, core.NewUnknownTypeError(discriminator, fallbackType)
	}
	if err := d.Deserialize(record, o); err != nil {
		return nil, err
	}
	return o, nil
}

// Deserialize applies a wire record to target. Absent keys leave fields untouched and JSON
// nulls become explicit nulls. On error target is left unchanged.
func (d *Decoder) Deserialize(data map[string]any, target Object) error {
	if target == nil || isNilObject(target) {
		return core.NewTypeMismatchError("cannot deserialize into a nil object")
	}
	staged := make(map[string]any, len(data))
	for _, p := range target.Metadata().properties {
		raw, ok := data[p.Name]
		if !ok {
			continue
		}
		if raw == nil {
			staged[p.Name] = nil
			continue
		}
		value, ok, err := d.responseValue(p, raw)
		if err != nil {
			return wrapPropertyError(p.Name, err)
		}
		if ok {
			staged[p.Name] = value
		}
	}

	b := target.base()
	for name, value := range staged {
		b.Set(name, value)
	}
	return nil
}

func (d *Decoder) responseValue(p Property, raw any) (any, bool, error) {
	switch p.Type {
	case TypeBool:
		v, ok := toBool(raw)
		if !ok {
			return nil, false, mismatch(p.Name, "boolean", raw)
		}
		return v, true, nil
	case TypeString:
		v, ok := toString(raw)
		if !ok {
			return nil, false, mismatch(p.Name, "string", raw)
		}
		return v, true, nil
	case TypeNumber, TypeEnumNumber:
		v, ok := toNumber(raw)
		if !ok {
			return nil, false, mismatch(p.Name, "number", raw)
		}
		return v, true, nil
	case TypeEnumString:
		v, ok := toString(raw)
		return v, ok, nil
	case TypeObject:
		record, ok := raw.(map[string]any)
		if !ok {
			return nil, false, mismatch(p.Name, "object", raw)
		}
		discriminator, _ := stringValue(record[PropObjectType])
		if discriminator == "" {
			return nil, false, core.NewTypeMismatchError(fmt.Sprintf(
				"failed to create object for property '%s' (type '%s'): response object is missing property 'objectType'",
				p.Name, p.SubType))
		}
		o, err := d.Decode(record, p.SubType)
		if err != nil {
			return nil, false, err
		}
		return o, true, nil
	case TypeArray:
		items, ok := raw.([]any)
		if !ok {
			return nil, false, mismatch(p.Name, "array", raw)
		}
		out := make([]Object, 0, len(items))
		for i, item := range items {
			o, err := d.Decode(item, p.SubType)
			if err != nil {
				return nil, false, fmt.Errorf("item %d: %w", i, err)
			}
			out = append(out, o)
		}
		return out, true, nil
	case TypeMap:
		items, ok := raw.(map[string]any)
		if !ok {
			return nil, false, mismatch(p.Name, "map", raw)
		}
		out := make(map[string]Object, len(items))
		for key, item := range items {
			o, err := d.Decode(item, p.SubType)
			if err != nil {
				return nil, false, fmt.Errorf("key %q: %w", key, err)
			}
			out[key] = o
		}
		return out, true, nil
	case TypeDate:
		t, ok := fromServerDateValue(raw)
		if !ok {
			return nil, false, mismatch(p.Name, "date", raw)
		}
		return t, true, nil
	}
	// constants and files are never read back
	return nil, false, nil
}

// wrapPropertyError prefixes err with the property path; typed errors stay reachable via errors.As.
func wrapPropertyError(property string, err error) error {
	return fmt.Errorf("property %s: %w", property, err)
}
