// Package preprocess walks validated OpenAPI documents and produces the
// normalized operation model every later translation stage consumes.
package preprocess

import (
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

type OperationKind int

const (
	KindQuery OperationKind = iota
	KindMutation
	KindSubscription
)

func (k OperationKind) String() string {
	switch k {
	case KindQuery:
		return "query"
	case KindMutation:
		return "mutation"
	case KindSubscription:
		return "subscription"
	}
	return "unknown"
}

type SecuritySchemeKind int

const (
	SecurityBasic SecuritySchemeKind = iota
	SecurityAPIKey
	SecurityOAuth2
	SecurityOther
)

// SecurityScheme is the normalized view of a source security-scheme
// definition. OAuth2 schemes are recorded but excluded from the viewer
// mechanism; token acquisition is not this engine's concern.
type SecurityScheme struct {
	Key       string
	Kind      SecuritySchemeKind
	In        string
	ParamName string
}

// SecurityRequirement is one AND-combination of scheme keys. Requirements on
// an operation are OR-combined.
type SecurityRequirement struct {
	Key        string
	SchemeKeys []string
}

type Parameter struct {
	Name     string
	In       string
	Required bool
	Schema   *openapi3.SchemaRef
}

// Link is a declared relationship from an operation's response to another
// operation. Parameters map target argument names to runtime expressions
// evaluated against the parent call.
type Link struct {
	Name         string
	OperationID  string
	OperationRef string
	Parameters   map[string]interface{}
}

// Operation is one callable action derived from a path+method or callback
// declaration. Created once by the preprocessor, read-only afterwards. Two
// operations are equal only if they share method, path and owning document.
type Operation struct {
	Method        string
	Path          string
	DocumentTitle string
	OperationID   string
	Description   string
	Kind          OperationKind

	Parameters      []*Parameter
	PayloadSchema   *openapi3.SchemaRef
	PayloadRequired bool

	ResponseSchema *openapi3.SchemaRef
	ResponseStatus string
	Links          []*Link

	SecurityRequirements []SecurityRequirement
	InViewer             bool

	Servers         []*openapi3.Server
	DocumentServers []*openapi3.Server

	// FieldNameOverride is the x-graphql-field-name extension; a collision
	// on it is fatal because the author asked for that exact name.
	FieldNameOverride string

	// Subscription candidates sourced from a callback declaration carry
	// the callback key expression their topic is derived from.
	FromCallback    bool
	TopicExpression string
}

// Identifier is the raw unique name of the operation within its document.
func (o *Operation) Identifier() string {
	return fmt.Sprintf("%s %s", strings.ToLower(o.Method), o.Path)
}

// RawName is the vocabulary the default field name is derived from.
func (o *Operation) RawName() string {
	if o.OperationID != "" {
		return o.OperationID
	}
	return o.Identifier()
}

func (o *Operation) Equal(other *Operation) bool {
	return o.Method == other.Method &&
		o.Path == other.Path &&
		o.DocumentTitle == other.DocumentTitle
}

// Result is the preprocessor output: operations in stable declaration order
// and the registry of security schemes across all documents.
type Result struct {
	Operations      []*Operation
	SecuritySchemes map[string]*SecurityScheme
}
