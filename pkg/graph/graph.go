// Package graph models the GraphQL type graph produced by translation: an
// arena of named type nodes plus the resolver contracts a host execution
// engine invokes when walking the graph.
package graph

import (
	"fmt"
)

type Kind int

const (
	Scalar Kind = iota
	Object
	InputObject
	Enum
	List
	NonNull
)

func (k Kind) String() string {
	switch k {
	case Scalar:
		return "SCALAR"
	case Object:
		return "OBJECT"
	case InputObject:
		return "INPUT_OBJECT"
	case Enum:
		return "ENUM"
	case List:
		return "LIST"
	case NonNull:
		return "NON_NULL"
	}
	return "UNKNOWN"
}

// Type is a node in the produced graph. Named kinds (Scalar, Object,
// InputObject, Enum) live in the schema arena; List and NonNull are wrappers
// constructed around them on demand. A node may be registered before its
// fields are populated so that cyclic references resolve to the node itself.
type Type struct {
	Kind        Kind
	Name        string
	Description string
	Fields      []*Field
	InputFields []*InputValue
	EnumValues  []EnumValue
	OfType      *Type
}

type Field struct {
	Name        string
	Description string
	Type        *Type
	Args        []*InputValue
	Resolve     ResolveFunc
	Subscribe   SubscribeFunc
}

type InputValue struct {
	Name         string
	Description  string
	Type         *Type
	DefaultValue interface{}
}

// EnumValue keeps both the sanitized name exposed in the graph and the raw
// literal exchanged with the upstream API.
type EnumValue struct {
	Name  string
	Value interface{}
}

func NewList(of *Type) *Type {
	return &Type{Kind: List, OfType: of}
}

// NewNonNull wraps of unless it is already non-null.
func NewNonNull(of *Type) *Type {
	if of.Kind == NonNull {
		return of
	}
	return &Type{Kind: NonNull, OfType: of}
}

// Unwrap returns the named type beneath any List/NonNull wrappers.
func (t *Type) Unwrap() *Type {
	for t.Kind == List || t.Kind == NonNull {
		t = t.OfType
	}
	return t
}

// IsList reports whether the type is a list after removing a non-null wrapper.
func (t *Type) IsList() bool {
	if t.Kind == NonNull {
		t = t.OfType
	}
	return t.Kind == List
}

func (t *Type) Field(name string) *Field {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (t *Type) AddField(f *Field) {
	t.Fields = append(t.Fields, f)
}

// String renders the type reference the way it appears in SDL, e.g. [User!]!.
func (t *Type) String() string {
	switch t.Kind {
	case List:
		return fmt.Sprintf("[%s]", t.OfType.String())
	case NonNull:
		return t.OfType.String() + "!"
	default:
		return t.Name
	}
}

// Schema is the arena holding every named type in registration order plus the
// three root namespaces. Query always exists after assembly; Mutation and
// Subscription are nil when no operation qualifies.
type Schema struct {
	Query        *Type
	Mutation     *Type
	Subscription *Type

	types  []*Type
	byName map[string]*Type
}

func NewSchema() *Schema {
	return &Schema{
		byName: make(map[string]*Type),
	}
}

// Register reserves the identity of a named type in the arena. Registering a
// name twice returns the already-registered node so that in-progress types
// resolve self-references to themselves.
func (s *Schema) Register(t *Type) *Type {
	if existing, ok := s.byName[t.Name]; ok {
		return existing
	}
	s.byName[t.Name] = t
	s.types = append(s.types, t)
	return t
}

func (s *Schema) Type(name string) (*Type, bool) {
	t, ok := s.byName[name]
	return t, ok
}

// Types returns the named types in registration order.
func (s *Schema) Types() []*Type {
	return s.types
}
