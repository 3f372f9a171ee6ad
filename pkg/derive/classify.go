package derive

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// SchemaKind is the tagged classification of a schema fragment. It is
// decided once per fragment, before any type is constructed, so the duck
// typed checks on the source document stay in one place.
type SchemaKind int

const (
	KindObject SchemaKind = iota
	KindJSON
	KindList
	KindEnum
	KindScalar
)

func (k SchemaKind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindJSON:
		return "json"
	case KindList:
		return "list"
	case KindEnum:
		return "enum"
	case KindScalar:
		return "scalar"
	}
	return "unknown"
}

// Classify decides the target kind for a schema fragment. Composition
// keywords are collapsed by flatten before this rule applies. Priority:
// object beats list beats enum beats scalar.
func Classify(schema *openapi3.Schema) SchemaKind {
	if schema == nil {
		return KindJSON
	}
	if len(schema.Properties) > 0 {
		return KindObject
	}
	if schema.AdditionalProperties != nil {
		return KindJSON
	}
	if schema.Type == "object" {
		// No properties and no additionalProperties schema. GraphQL
		// forbids empty object types, so arbitrary JSON is the only
		// usable mapping left.
		return KindJSON
	}
	if schema.Type == "array" || schema.Items != nil {
		return KindList
	}
	if len(schema.Enum) > 0 {
		return KindEnum
	}
	return KindScalar
}

// flatten collapses allOf/anyOf/oneOf members into a single effective
// schema by merging properties, required lists and the base scalar facets.
// The input is never mutated; fragments without composition are returned
// as-is.
func flatten(schema *openapi3.Schema) *openapi3.Schema {
	if schema == nil {
		return nil
	}
	members := make([]*openapi3.SchemaRef, 0, len(schema.AllOf)+len(schema.AnyOf)+len(schema.OneOf))
	members = append(members, schema.AllOf...)
	members = append(members, schema.AnyOf...)
	members = append(members, schema.OneOf...)
	if len(members) == 0 {
		return schema
	}

	merged := &openapi3.Schema{
		Type:        schema.Type,
		Format:      schema.Format,
		Title:       schema.Title,
		Description: schema.Description,
		Items:       schema.Items,
		Enum:        append([]interface{}{}, schema.Enum...),
		Required:    append([]string{}, schema.Required...),
		Properties:  make(openapi3.Schemas, len(schema.Properties)),
	}
	for name, ref := range schema.Properties {
		merged.Properties[name] = ref
	}

	for _, member := range members {
		if member == nil || member.Value == nil {
			continue
		}
		value := flatten(member.Value)
		if merged.Type == "" {
			merged.Type = value.Type
		}
		if merged.Format == "" {
			merged.Format = value.Format
		}
		if merged.Title == "" {
			merged.Title = value.Title
		}
		if merged.Items == nil {
			merged.Items = value.Items
		}
		merged.Enum = append(merged.Enum, value.Enum...)
		merged.Required = append(merged.Required, value.Required...)
		for name, ref := range value.Properties {
			if _, ok := merged.Properties[name]; !ok {
				merged.Properties[name] = ref
			}
		}
	}
	return merged
}
