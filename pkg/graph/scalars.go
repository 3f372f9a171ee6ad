package graph

// The five standard GraphQL scalars plus the arbitrary-JSON scalar used for
// schema fragments that carry no usable structure.
var (
	Int     = &Type{Kind: Scalar, Name: "Int"}
	Float   = &Type{Kind: Scalar, Name: "Float"}
	String  = &Type{Kind: Scalar, Name: "String"}
	Boolean = &Type{Kind: Scalar, Name: "Boolean"}
	ID      = &Type{Kind: Scalar, Name: "ID"}

	JSON = &Type{
		Kind:        Scalar,
		Name:        "JSON",
		Description: "The `JSON` scalar type represents JSON values as specified by [ECMA-404](http://www.ecma-international.org/publications/files/ECMA-ST/ECMA-404.pdf).",
	}
)

// IsBuiltinScalar reports whether name is one of the scalars every GraphQL
// implementation predefines. Those never get a scalar declaration in SDL.
func IsBuiltinScalar(name string) bool {
	switch name {
	case "Int", "Float", "String", "Boolean", "ID":
		return true
	}
	return false
}
