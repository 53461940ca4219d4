// Package object implements the typed object runtime shared by every generated API type:
// the property metadata table, wire serialization and deserialization, the discriminator
// registry and dependent-property bindings used inside multi-requests.
package object

import "fmt"

// WireType is the wire encoding of a property.
type WireType string

const (
	TypeBool       WireType = "b"
	TypeString     WireType = "s"
	TypeNumber     WireType = "n"
	TypeEnumNumber WireType = "en"
	TypeEnumString WireType = "es"
	TypeObject     WireType = "o"
	TypeArray      WireType = "a"
	TypeMap        WireType = "m"
	TypeDate       WireType = "d"
	TypeConstant   WireType = "c"
	TypeFile       WireType = "f"
)

// Valid reports whether t is one of the known wire types.
func (t WireType) Valid() bool {
	switch t {
	case TypeBool, TypeString, TypeNumber, TypeEnumNumber, TypeEnumString,
		TypeObject, TypeArray, TypeMap, TypeDate, TypeConstant, TypeFile:
		return true
	}
	return false
}

// Property describes one field of an object type.
type Property struct {
	Name string
	Type WireType
	// SubType is the declared discriminator for object, array and map properties.
	SubType  string
	ReadOnly bool
	// Default is the fixed value of constant properties.
	Default string
}

// Metadata is the immutable property table of an object type.
type Metadata struct {
	properties []Property
	index      map[string]int
}

// Well-known property names.
const (
	PropObjectType     = "objectType"
	PropRelatedObjects = "relatedObjects"
)

// baseMetadata is the table every object type starts from.
//
// relatedObjects should be typed as a map of ListResponse; exposing it as a map of plain
// objects avoids the ListResponse -> Object -> ListResponse reference cycle.
var baseMetadata = NewMetadata(nil,
	Property{Name: PropRelatedObjects, Type: TypeMap, SubType: "KalturaListResponse", ReadOnly: true},
)

// BaseMetadata returns the table shared by all object types.
func BaseMetadata() *Metadata {
	return baseMetadata
}

// NewMetadata builds a table extending parent with props.
// Properties redeclared by the child replace the parent's entry in place.
// It panics on an invalid declaration since tables are built at package init.
func NewMetadata(parent *Metadata, props ...Property) *Metadata {
	m := &Metadata{index: make(map[string]int)}
	if parent != nil {
		m.properties = make([]Property, len(parent.properties), len(parent.properties)+len(props))
		copy(m.properties, parent.properties)
		for k, v := range parent.index {
			m.index[k] = v
		}
	}
	for _, p := range props {
		if p.Name == "" {
			panic("object: property without name")
		}
		if !p.Type.Valid() {
			panic(fmt.Sprintf("object: property %q has unknown wire type %q", p.Name, p.Type))
		}
		if i, ok := m.index[p.Name]; ok {
			m.properties[i] = p
			continue
		}
		m.index[p.Name] = len(m.properties)
		m.properties = append(m.properties, p)
	}
	return m
}

// Properties returns the properties in declaration order.
func (m *Metadata) Properties() []Property {
	out := make([]Property, len(m.properties))
	copy(out, m.properties)
	return out
}

// Property looks up a property by name.
func (m *Metadata) Property(name string) (Property, bool) {
	i, ok := m.index[name]
	if !ok {
		return Property{}, false
	}
	return m.properties[i], true
}

// Has reports whether the table declares name.
func (m *Metadata) Has(name string) bool {
	_, ok := m.index[name]
	return ok
}

// Len returns the number of properties.
func (m *Metadata) Len() int {
	return len(m.properties)
}
