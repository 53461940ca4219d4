package object

import (
	"io"
	"log/slog"
	"maps"
	"slices"
)

// Object is implemented by every generated API type.
// Types satisfy it by embedding Base and declaring their metadata table.
type Object interface {
	Metadata() *Metadata
	base() *Base
}

// File is the payload of properties of wire type "f".
// Files that also implement io.ReaderAt can be sliced into chunks.
type File interface {
	io.Reader
	Name() string
	Size() int64
}

// Dependency binds a property to the result of another request in the same multi-request.
type Dependency struct {
	Property string
	// Request is the one-based index of the request on the wire.
	Request    int
	TargetPath []string
}

// DependsOn builds a binding from a zero-based request index.
func DependsOn(property string, requestIndex int, targetPath ...string) Dependency {
	return Dependency{
		Property:   property,
		Request:    requestIndex + 1,
		TargetPath: targetPath,
	}
}

// Base holds the field values of an object.
//
// A missing key means the field is undefined; a key holding nil is an explicit null.
type Base struct {
	values       map[string]any
	allowedEmpty []string
	dependencies map[string]Dependency
}

func (b *Base) base() *Base { return b }

// Get returns the raw value of a field. ok is true for explicit nulls as well.
func (b *Base) Get(name string) (value any, ok bool) {
	value, ok = b.values[name]
	return value, ok
}

// Set stores a field value. Setting nil marks the field for deletion.
func (b *Base) Set(name string, value any) {
	if b.values == nil {
		b.values = make(map[string]any)
	}
	b.values[name] = value
}

// SetNull marks a field to be cleared on the server.
func (b *Base) SetNull(name string) {
	b.Set(name, nil)
}

// IsNull reports whether the field holds an explicit null.
func (b *Base) IsNull(name string) bool {
	v, ok := b.values[name]
	return ok && v == nil
}

// Unset makes the field undefined again.
func (b *Base) Unset(name string) {
	delete(b.values, name)
}

// Fields returns the names of all defined fields.
func (b *Base) Fields() []string {
	return slices.Sorted(maps.Keys(b.values))
}

// AllowEmptyArray lets the named array properties be sent as empty arrays instead of omitted.
// Names that are not array properties are ignored when the object is serialized.
func (b *Base) AllowEmptyArray(properties ...string) {
	for _, p := range properties {
		if !slices.Contains(b.allowedEmpty, p) {
			b.allowedEmpty = append(b.allowedEmpty, p)
		}
	}
}

func (b *Base) emptyArrayAllowed(name string) bool {
	return slices.Contains(b.allowedEmpty, name)
}

// SetDependency records dependent-property bindings. Later bindings for the same
// property replace earlier ones.
func (b *Base) SetDependency(deps ...Dependency) {
	if b.dependencies == nil {
		b.dependencies = make(map[string]Dependency, len(deps))
	}
	for _, d := range deps {
		b.dependencies[d.Property] = d
	}
}

// Dependency returns the binding for a property, if any.
func (b *Base) Dependency(property string) (Dependency, bool) {
	d, ok := b.dependencies[property]
	return d, ok
}

// ResetDependencies drops all bindings.
func (b *Base) ResetDependencies() {
	b.dependencies = nil
}

// ResetDependencies drops the bindings of o and of every object reachable from its fields.
func ResetDependencies(o Object) {
	resetDependencies(o, map[*Base]bool{})
}

func resetDependencies(o Object, seen map[*Base]bool) {
	if o == nil || isNilObject(o) {
		return
	}
	b := o.base()
	if seen[b] {
		return
	}
	seen[b] = true
	b.ResetDependencies()
	for _, v := range b.values {
		switch v := v.(type) {
		case Object:
			resetDependencies(v, seen)
		case []Object:
			for _, item := range v {
				resetDependencies(item, seen)
			}
		case map[string]Object:
			for _, item := range v {
				resetDependencies(item, seen)
			}
		}
	}
}

// RelatedObjects returns the related objects attached by the server, keyed by name.
func (b *Base) RelatedObjects() map[string]Object {
	v, ok := b.values[PropRelatedObjects].(map[string]Object)
	if !ok {
		return map[string]Object{}
	}
	return v
}

// TypeName returns the discriminator an object is sent with, or "" when the type has none.
func TypeName(o Object) string {
	p, ok := o.Metadata().Property(PropObjectType)
	if !ok {
		return ""
	}
	return p.Default
}

// HasProperty reports whether the object's type declares name.
func HasProperty(o Object, name string) bool {
	return o.Metadata().Has(name)
}

func logIgnoredEmptyArray(o Object, property, reason string) {
	slog.Debug("ignoring property flagged to allow empty array",
		"type", TypeName(o),
		"property", property,
		"reason", reason,
	)
}
