// Package viewer groups authenticated fields under generated viewer types.
// A viewer field takes the credential material of one security requirement as
// arguments and hands it down to every nested resolver, so a caller
// authenticates once per selection set instead of once per field.
package viewer

import (
	"fmt"
	"sort"
	"strings"

	log "github.com/jensneuse/abstractlogger"

	"github.com/oasgraph/oasgraph/pkg/graph"
	"github.com/oasgraph/oasgraph/pkg/preprocess"
	"github.com/oasgraph/oasgraph/pkg/sanitize"
	"github.com/oasgraph/oasgraph/pkg/translationreport"
)

type groupKey struct {
	kind        preprocess.OperationKind
	requirement string
}

type group struct {
	requirement preprocess.SecurityRequirement
	fields      []*graph.Field
	names       map[string]bool
}

// Builder collects authenticated fields per root kind and security
// requirement and materializes one viewer type per group.
type Builder struct {
	schema  *graph.Schema
	schemes map[string]*preprocess.SecurityScheme
	report  *translationreport.Report
	log     log.Logger

	groups map[groupKey]*group
}

func NewBuilder(schema *graph.Schema, schemes map[string]*preprocess.SecurityScheme, report *translationreport.Report, logger log.Logger) *Builder {
	if logger == nil {
		logger = log.NoopLogger
	}
	return &Builder{
		schema:  schema,
		schemes: schemes,
		report:  report,
		log:     logger,
		groups:  make(map[groupKey]*group),
	}
}

// Add places a field under the viewer for the given requirement. A second
// field with the same default name inside one viewer is dropped with a
// warning; a collision on an explicitly requested name is fatal.
func (b *Builder) Add(kind preprocess.OperationKind, requirement preprocess.SecurityRequirement, field *graph.Field, explicit bool) error {
	key := groupKey{kind: kind, requirement: requirement.Key}
	g, ok := b.groups[key]
	if !ok {
		g = &group{requirement: requirement, names: make(map[string]bool)}
		b.groups[key] = g
	}
	if g.names[field.Name] {
		if explicit {
			return fmt.Errorf("explicit field name %q collides with an existing field under the viewer for requirement %q",
				field.Name, requirement.Key)
		}
		b.report.AddWarning(
			translationreport.MitigationDuplicateSecurityField,
			fmt.Sprintf("duplicate field %q under viewer for requirement %q", field.Name, requirement.Key),
			"dropping the later field",
		)
		return nil
	}
	g.names[field.Name] = true
	g.fields = append(g.fields, field)
	b.report.NumAuthenticatedFields++
	return nil
}

// RootFields materializes the viewer fields for one root kind, in a stable
// order by requirement key.
func (b *Builder) RootFields(kind preprocess.OperationKind) []*graph.Field {
	keys := make([]string, 0, len(b.groups))
	for key := range b.groups {
		if key.kind == kind {
			keys = append(keys, key.requirement)
		}
	}
	sort.Strings(keys)

	out := make([]*graph.Field, 0, len(keys))
	for _, requirementKey := range keys {
		g := b.groups[groupKey{kind: kind, requirement: requirementKey}]
		out = append(out, b.viewerField(kind, g))
	}
	return out
}

func (b *Builder) viewerField(kind preprocess.OperationKind, g *group) *graph.Field {
	typeName := b.typeName(kind, g.requirement)

	sort.Slice(g.fields, func(i, j int) bool {
		return g.fields[i].Name < g.fields[j].Name
	})

	viewerType := b.schema.Register(&graph.Type{
		Kind:        graph.Object,
		Name:        typeName,
		Description: fmt.Sprintf("Fields guarded by the %s security requirement.", g.requirement.Key),
		Fields:      g.fields,
	})

	return &graph.Field{
		Name:        sanitize.Sanitize(typeName, sanitize.CaseCamel),
		Description: fmt.Sprintf("Authenticates with %s and exposes the guarded fields.", g.requirement.Key),
		Type:        viewerType,
		Args:        b.credentialArgs(g.requirement),
		Resolve:     b.credentialResolver(g.requirement),
	}
}

func (b *Builder) typeName(kind preprocess.OperationKind, requirement preprocess.SecurityRequirement) string {
	var sb strings.Builder
	switch kind {
	case preprocess.KindMutation:
		sb.WriteString("Mutation")
	case preprocess.KindSubscription:
		sb.WriteString("Subscription")
	}
	sb.WriteString("Viewer")
	for _, schemeKey := range requirement.SchemeKeys {
		sb.WriteString(sanitize.Sanitize(schemeKey, sanitize.CasePascal))
	}
	return sb.String()
}

// credentialArgs builds the required credential arguments of a viewer field.
// A requirement combining several schemes prefixes each argument with its
// scheme key so the credentials stay distinguishable.
func (b *Builder) credentialArgs(requirement preprocess.SecurityRequirement) []*graph.InputValue {
	prefixed := len(requirement.SchemeKeys) > 1
	var out []*graph.InputValue
	for _, schemeKey := range requirement.SchemeKeys {
		scheme := b.schemes[schemeKey]
		for _, plain := range credentialNames(scheme) {
			out = append(out, &graph.InputValue{
				Name: credentialArgName(schemeKey, plain, prefixed),
				Type: graph.NewNonNull(graph.String),
			})
		}
	}
	return out
}

// credentialResolver captures the credential arguments into a fresh carrier.
// Credentials already present on the parent carrier are kept so viewers can
// nest.
func (b *Builder) credentialResolver(requirement preprocess.SecurityRequirement) graph.ResolveFunc {
	schemes := b.schemes
	return func(params graph.ResolveParams) (interface{}, error) {
		carrier := graph.CarrierFrom(params.Source).Child()

		credentials := make(map[string]map[string]interface{}, len(requirement.SchemeKeys))
		for schemeKey, entry := range carrier.Credentials {
			credentials[schemeKey] = entry
		}
		prefixed := len(requirement.SchemeKeys) > 1
		for _, schemeKey := range requirement.SchemeKeys {
			scheme := schemes[schemeKey]
			entry := make(map[string]interface{})
			for _, plain := range credentialNames(scheme) {
				argName := credentialArgName(schemeKey, plain, prefixed)
				value, ok := params.Args[argName]
				if !ok {
					return nil, fmt.Errorf("missing credential argument %q", argName)
				}
				entry[plain] = value
			}
			credentials[schemeKey] = entry
		}
		carrier.Credentials = credentials

		return graph.AttachCarrier(make(map[string]interface{}), carrier), nil
	}
}

func credentialNames(scheme *preprocess.SecurityScheme) []string {
	if scheme == nil {
		return []string{"token"}
	}
	switch scheme.Kind {
	case preprocess.SecurityBasic:
		return []string{"username", "password"}
	case preprocess.SecurityAPIKey:
		return []string{"apiKey"}
	}
	return []string{"token"}
}

func credentialArgName(schemeKey, plain string, prefixed bool) string {
	if !prefixed {
		return plain
	}
	return sanitize.Sanitize(schemeKey+" "+plain, sanitize.CaseCamel)
}
