package derive

import (
	"encoding/json"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/oasgraph/oasgraph/pkg/sanitize"
)

const extensionTypeName = "x-graphql-type-name"

// Definition is the normalized view of a schema fragment: its classified
// kind plus the candidate names for the generated type, ordered by priority
// (explicit extension, reference pointer, schema title, URL path).
type Definition struct {
	Schema *openapi3.SchemaRef
	Kind   SchemaKind

	FromExtension string
	FromRef       string
	FromTitle     string
	FromPath      string
}

// PreferredName returns the highest-priority candidate, or the fallback when
// the fragment carries no name of its own.
func (d *Definition) PreferredName(fallback string) string {
	for _, candidate := range []string{d.FromExtension, d.FromRef, d.FromTitle, d.FromPath} {
		if candidate != "" {
			return candidate
		}
	}
	return fallback
}

// candidates returns every non-empty name source in priority order, the
// fallback last.
func (d *Definition) candidates(fallback string) []string {
	out := make([]string, 0, 5)
	for _, candidate := range []string{d.FromExtension, d.FromRef, d.FromTitle, d.FromPath} {
		if candidate != "" {
			out = append(out, candidate)
		}
	}
	return append(out, fallback)
}

// Definition builds the normalized view for a schema fragment referenced by
// an operation on the given URL path.
func (d *Deriver) Definition(schemaRef *openapi3.SchemaRef, path string) *Definition {
	def := d.childDefinition(schemaRef, "")
	if path != "" {
		def.FromPath = sanitize.Sanitize(sanitize.InferResourceNameFromPath(path), sanitize.CasePascal)
	}
	return def
}

func (d *Deriver) childDefinition(schemaRef *openapi3.SchemaRef, inherited string) *Definition {
	def := &Definition{
		Schema:   schemaRef,
		FromPath: inherited,
	}
	if schemaRef == nil {
		def.Kind = KindJSON
		return def
	}
	def.FromRef = nameFromRef(schemaRef.Ref)
	if schemaRef.Value != nil {
		def.FromExtension = schemaExtensionString(schemaRef.Value.Extensions, extensionTypeName)
		def.FromTitle = schemaRef.Value.Title
	}
	def.Kind = Classify(flatten(schemaValue(schemaRef)))
	return def
}

func schemaValue(ref *openapi3.SchemaRef) *openapi3.Schema {
	if ref == nil {
		return nil
	}
	return ref.Value
}

func nameFromRef(ref string) string {
	if ref == "" {
		return ""
	}
	parsed := strings.Split(ref, "/")
	return parsed[len(parsed)-1]
}

func schemaExtensionString(extensions map[string]interface{}, key string) string {
	value, ok := extensions[key]
	if !ok {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return typed
	case json.RawMessage:
		var s string
		if err := json.Unmarshal(typed, &s); err == nil {
			return s
		}
	}
	return ""
}
