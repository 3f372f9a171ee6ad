// Package derive turns schema fragments referenced by operations into
// deduplicated type-graph nodes, resolving self- and mutual references
// without infinite recursion.
package derive

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/getkin/kin-openapi/openapi3"
	log "github.com/jensneuse/abstractlogger"

	"github.com/oasgraph/oasgraph/pkg/graph"
	"github.com/oasgraph/oasgraph/pkg/sanitize"
)

const inputSuffix = "Input"

// The root operation type names belong to the assembler. A derived type
// asking for one is pushed to its next candidate so the roots are never
// shadowed by a source schema.
var reservedTypeNames = map[string]bool{
	"Query":        true,
	"Mutation":     true,
	"Subscription": true,
}

type Config struct {
	// SimpleNames keeps generated type names as close to the source
	// vocabulary as legality allows instead of PascalCase.
	SimpleNames bool

	// SimpleEnumValues skips the ALL_CAPS conversion of enum literals.
	SimpleEnumValues bool

	// IDFormats lists additional string formats mapped to the ID scalar.
	IDFormats []string
}

// Deriver memoizes derived types by structural identity: structurally
// identical fragments used under the same preferred name map to exactly one
// generated type.
type Deriver struct {
	schema   *graph.Schema
	registry *sanitize.NameRegistry
	cfg      Config
	log      log.Logger

	memo       map[uint64]*graph.Type
	nameKeys   map[string]uint64
	inProgress map[progressKey]*graph.Type
	idFormats  map[string]bool
}

// progressKey identifies a fragment whose type is registered but whose
// fields are still being populated. Input and output variants are tracked
// separately so they never collapse into one node.
type progressKey struct {
	schema *openapi3.Schema
	input  bool
}

func NewDeriver(schema *graph.Schema, registry *sanitize.NameRegistry, cfg Config, logger log.Logger) *Deriver {
	if logger == nil {
		logger = log.NoopLogger
	}
	idFormats := map[string]bool{"uuid": true}
	for _, format := range cfg.IDFormats {
		idFormats[format] = true
	}
	return &Deriver{
		schema:     schema,
		registry:   registry,
		cfg:        cfg,
		log:        logger,
		memo:       make(map[uint64]*graph.Type),
		nameKeys:   make(map[string]uint64),
		inProgress: make(map[progressKey]*graph.Type),
		idFormats:  idFormats,
	}
}

// OutputType derives the graph type for a response fragment.
func (d *Deriver) OutputType(def *Definition, fallbackName string) *graph.Type {
	return d.derive(def, fallbackName, false)
}

// InputType derives the input-object variant for a request fragment. The
// generated name carries a distinct suffix so object and input-object pairs
// never collide even when structurally identical.
func (d *Deriver) InputType(def *Definition, fallbackName string) *graph.Type {
	return d.derive(def, fallbackName, true)
}

func (d *Deriver) derive(def *Definition, fallbackName string, input bool) *graph.Type {
	schema := flatten(schemaValue(def.Schema))
	switch def.Kind {
	case KindJSON:
		return d.schema.Register(graph.JSON)
	case KindScalar:
		return d.scalarType(schema)
	case KindEnum:
		return d.enumType(def, schema, fallbackName)
	case KindList:
		itemDef := d.childDefinition(schema.Items, def.PreferredName(fallbackName)+"ListItem")
		return graph.NewList(d.derive(itemDef, fallbackName+"ListItem", input))
	default:
		return d.objectType(def, schema, fallbackName, input)
	}
}

// scalarType maps a scalar fragment to one of the predefined scalars. A
// 64-bit integer format is promoted to Float because a fixed 32-bit integer
// cannot represent the full range; identifier-like string formats map to ID.
func (d *Deriver) scalarType(schema *openapi3.Schema) *graph.Type {
	if schema == nil {
		return d.schema.Register(graph.JSON)
	}
	switch schema.Type {
	case "integer":
		if schema.Format == "int64" {
			return graph.Float
		}
		return graph.Int
	case "number":
		return graph.Float
	case "string":
		if d.idFormats[schema.Format] {
			return graph.ID
		}
		return graph.String
	case "boolean":
		return graph.Boolean
	}
	return d.schema.Register(graph.JSON)
}

func (d *Deriver) enumType(def *Definition, schema *openapi3.Schema, fallbackName string) *graph.Type {
	preferred := def.PreferredName(fallbackName)
	key := d.structuralKey(schema, preferred, false)
	if t, ok := d.memo[key]; ok {
		return t
	}

	name := d.uniqueName(def, fallbackName, false, key)
	t := &graph.Type{
		Kind:        graph.Enum,
		Name:        name,
		Description: schema.Description,
	}

	style := sanitize.CaseAllCaps
	if d.cfg.SimpleEnumValues {
		style = sanitize.CaseSimple
	}
	seen := make(map[string]bool)
	for _, literal := range schema.Enum {
		raw := fmt.Sprintf("%v", literal)
		sane := sanitize.Sanitize(raw, style)
		if seen[sane] {
			d.log.Debug("derive: dropping duplicate enum value",
				log.String("enum", name),
				log.String("value", raw),
			)
			continue
		}
		seen[sane] = true
		t.EnumValues = append(t.EnumValues, graph.EnumValue{Name: sane, Value: literal})
	}

	d.schema.Register(t)
	d.memo[key] = t
	d.nameKeys[name] = key
	d.registry.Store(name, preferred)
	return t
}

func (d *Deriver) objectType(def *Definition, schema *openapi3.Schema, fallbackName string, input bool) *graph.Type {
	pk := progressKey{schema: schemaValue(def.Schema), input: input}
	if t, ok := d.inProgress[pk]; ok {
		return t
	}

	preferred := def.PreferredName(fallbackName)
	key := d.structuralKey(schema, preferred, input)
	if t, ok := d.memo[key]; ok {
		return t
	}

	name := d.uniqueName(def, fallbackName, input, key)
	kind := graph.Object
	if input {
		kind = graph.InputObject
	}
	t := &graph.Type{
		Kind:        kind,
		Name:        name,
		Description: schema.Description,
	}

	// Reserve the identity before the fields are resolved so that cyclic
	// references find the in-progress node instead of recursing forever.
	d.schema.Register(t)
	d.memo[key] = t
	d.nameKeys[name] = key
	d.registry.Store(name, preferred)
	d.inProgress[pk] = t

	required := make(map[string]bool, len(schema.Required))
	for _, requiredName := range schema.Required {
		required[requiredName] = true
	}

	propertyNames := make([]string, 0, len(schema.Properties))
	for propertyName := range schema.Properties {
		propertyNames = append(propertyNames, propertyName)
	}
	sort.Strings(propertyNames)

	fieldSeen := make(map[string]bool, len(propertyNames))
	for _, propertyName := range propertyNames {
		propertyRef := schema.Properties[propertyName]
		childDef := d.childDefinition(propertyRef, name+sanitize.Sanitize(propertyName, sanitize.CasePascal))
		fieldType := d.derive(childDef, name+sanitize.Sanitize(propertyName, sanitize.CasePascal), input)
		if required[propertyName] {
			fieldType = graph.NewNonNull(fieldType)
		}

		fieldName := d.registry.SaneFor(propertyName, d.fieldStyle())
		if fieldSeen[fieldName] {
			d.log.Debug("derive: dropping field with duplicate sanitized name",
				log.String("type", name),
				log.String("field", propertyName),
			)
			continue
		}
		fieldSeen[fieldName] = true

		description := ""
		if propertyRef != nil && propertyRef.Value != nil {
			description = propertyRef.Value.Description
		}
		if input {
			t.InputFields = append(t.InputFields, &graph.InputValue{
				Name:        fieldName,
				Description: description,
				Type:        fieldType,
			})
		} else {
			t.Fields = append(t.Fields, &graph.Field{
				Name:        fieldName,
				Description: description,
				Type:        fieldType,
			})
		}
	}
	return t
}

func (d *Deriver) typeStyle() sanitize.CaseStyle {
	if d.cfg.SimpleNames {
		return sanitize.CaseSimple
	}
	return sanitize.CasePascal
}

func (d *Deriver) fieldStyle() sanitize.CaseStyle {
	if d.cfg.SimpleNames {
		return sanitize.CaseSimple
	}
	return sanitize.CaseCamel
}

// uniqueName picks the first candidate whose sanitized form is either free
// or already bound to the same structural identity. The operation-derived
// fallback is guaranteed unique per operation; a residual clash gets a
// numeric suffix as a last resort.
func (d *Deriver) uniqueName(def *Definition, fallbackName string, input bool, key uint64) string {
	for _, candidate := range def.candidates(fallbackName) {
		sane := sanitize.Sanitize(candidate, d.typeStyle())
		if input {
			sane += inputSuffix
		}
		if reservedTypeNames[sane] {
			d.log.Debug("derive: candidate type name is reserved for a root type",
				log.String("candidate", sane),
			)
			continue
		}
		existingKey, taken := d.nameKeys[sane]
		if !taken || existingKey == key {
			return sane
		}
		d.log.Debug("derive: candidate type name already bound to a different structure",
			log.String("candidate", sane),
		)
	}

	base := sanitize.Sanitize(fallbackName, d.typeStyle())
	if input {
		base += inputSuffix
	}
	for i := 2; ; i++ {
		sane := fmt.Sprintf("%s%d", base, i)
		if _, taken := d.nameKeys[sane]; !taken && !reservedTypeNames[sane] {
			return sane
		}
	}
}

// structuralKey hashes the composite identity of a fragment: kind, variant,
// preferred name and a shallow signature of its children.
func (d *Deriver) structuralKey(schema *openapi3.Schema, preferred string, input bool) uint64 {
	h := xxhash.New()
	write := func(parts ...string) {
		for _, part := range parts {
			_, _ = h.WriteString(part)
			_, _ = h.WriteString("|")
		}
	}

	write(Classify(schema).String(), preferred)
	if input {
		write("input")
	}
	if schema == nil {
		return h.Sum64()
	}
	write(schema.Type, schema.Format)

	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}
	propertyNames := make([]string, 0, len(schema.Properties))
	for propertyName := range schema.Properties {
		propertyNames = append(propertyNames, propertyName)
	}
	sort.Strings(propertyNames)
	for _, propertyName := range propertyNames {
		child := flatten(schemaValue(schema.Properties[propertyName]))
		write(propertyName, childSignature(child))
		if required[propertyName] {
			write("!")
		}
	}

	if schema.Items != nil {
		write("[]", childSignature(flatten(schemaValue(schema.Items))))
	}
	for _, literal := range schema.Enum {
		write(fmt.Sprintf("%v", literal))
	}
	return h.Sum64()
}

// childSignature is deliberately shallow; nested structure is covered by
// the child's own structural key once it is derived.
func childSignature(schema *openapi3.Schema) string {
	if schema == nil {
		return "json"
	}
	return fmt.Sprintf("%s:%s:%s", Classify(schema), schema.Type, schema.Format)
}
