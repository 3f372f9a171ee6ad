package translate

import (
	"fmt"
	"sort"
	"strings"

	log "github.com/jensneuse/abstractlogger"

	"github.com/oasgraph/oasgraph/pkg/derive"
	"github.com/oasgraph/oasgraph/pkg/graph"
	"github.com/oasgraph/oasgraph/pkg/preprocess"
	"github.com/oasgraph/oasgraph/pkg/pubsub"
	"github.com/oasgraph/oasgraph/pkg/resolve"
	"github.com/oasgraph/oasgraph/pkg/sanitize"
	"github.com/oasgraph/oasgraph/pkg/translationreport"
	"github.com/oasgraph/oasgraph/pkg/viewer"
)

// builtOperation keeps what the link stage needs after a field is assembled.
type builtOperation struct {
	op       *preprocess.Operation
	field    *graph.Field
	resolver graph.ResolveFunc
	args     []*graph.InputValue
}

// namespace is one root field map under construction. Fields land here in
// operation declaration order; the root type sorts them at the end.
type namespace struct {
	fields   map[string]*graph.Field
	explicit map[string]bool
}

func newNamespace() *namespace {
	return &namespace{
		fields:   make(map[string]*graph.Field),
		explicit: make(map[string]bool),
	}
}

type assembler struct {
	opts      Options
	schema    *graph.Schema
	registry  *sanitize.NameRegistry
	deriver   *derive.Deriver
	resolvers *resolve.Builder
	viewers   *viewer.Builder
	report    *translationreport.Report
	log       log.Logger
	source    pubsub.PubSub

	namespaces map[preprocess.OperationKind]*namespace
}

func (a *assembler) run(pre *preprocess.Result) error {
	a.namespaces = map[preprocess.OperationKind]*namespace{
		preprocess.KindQuery:        newNamespace(),
		preprocess.KindMutation:     newNamespace(),
		preprocess.KindSubscription: newNamespace(),
	}

	var built []*builtOperation
	byOperationID := make(map[string]*builtOperation)

	for _, op := range pre.Operations {
		b, err := a.buildOperation(op)
		if err != nil {
			return err
		}
		if b == nil {
			continue
		}
		built = append(built, b)
		if op.OperationID != "" {
			if _, taken := byOperationID[op.OperationID]; !taken {
				byOperationID[op.OperationID] = b
			}
		}
	}

	a.attachLinks(built, byOperationID)
	a.buildRoots()
	return nil
}

// buildOperation derives the response type, arguments and resolver for one
// operation and places the field on its root or viewer. Returns nil when the
// operation is skipped.
func (a *assembler) buildOperation(op *preprocess.Operation) (*builtOperation, error) {
	responseType := a.responseType(op)
	if responseType == nil {
		return nil, nil
	}

	args, payloadArgName := a.buildArgs(op, responseType)

	field := &graph.Field{
		Description: op.Description,
		Type:        responseType,
		Args:        args,
	}

	var resolver graph.ResolveFunc
	if op.Kind == preprocess.KindSubscription {
		subscribe := a.customSubscriptionResolver(op)
		if subscribe == nil {
			subscribe = a.resolvers.Subscriber(op, a.source)
		}
		field.Subscribe = subscribe
		resolver = a.resolvers.MessageResolver(op)
	} else {
		resolver = a.customResolver(op)
		if resolver == nil {
			resolver = a.resolvers.Resolver(op, payloadArgName)
		}
	}
	field.Resolve = resolver

	if err := a.placeField(op, field, responseType); err != nil {
		return nil, err
	}

	return &builtOperation{op: op, field: field, resolver: resolver, args: args}, nil
}

func (a *assembler) responseType(op *preprocess.Operation) *graph.Type {
	if op.ResponseSchema == nil {
		if !a.opts.FillEmptyResponses {
			a.report.AddWarning(
				translationreport.MitigationMissingResponseSchema,
				fmt.Sprintf("operation %s declares no response schema", op.Identifier()),
				"skipping the operation; enable FillEmptyResponses to synthesize a placeholder",
			)
			return nil
		}
		return a.placeholderType(op)
	}
	def := a.deriver.Definition(op.ResponseSchema, op.Path)
	return a.deriver.OutputType(def, sanitize.Sanitize(op.RawName(), sanitize.CasePascal))
}

// placeholderType backfills a concrete object type for operations without a
// declared response schema.
func (a *assembler) placeholderType(op *preprocess.Operation) *graph.Type {
	name := sanitize.Sanitize(op.RawName(), sanitize.CasePascal) + "Placeholder"
	if t, ok := a.schema.Type(name); ok {
		return t
	}
	return a.schema.Register(&graph.Type{
		Kind:        graph.Object,
		Name:        name,
		Description: "Placeholder for an operation that declares no response schema.",
		Fields: []*graph.Field{{
			Name: "_",
			Type: graph.Boolean,
		}},
	})
}

func (a *assembler) buildArgs(op *preprocess.Operation, responseType *graph.Type) ([]*graph.InputValue, string) {
	var args []*graph.InputValue
	for _, parameter := range op.Parameters {
		if parameter.In == "cookie" {
			continue
		}
		argType := a.parameterType(op, parameter)
		if parameter.Required {
			argType = graph.NewNonNull(argType)
		}
		args = append(args, &graph.InputValue{
			Name: a.registry.SaneFor(parameter.Name, a.fieldStyle()),
			Type: argType,
		})
	}

	var payloadArgName string
	if op.PayloadSchema != nil {
		def := a.deriver.Definition(op.PayloadSchema, op.Path)
		inputType := a.deriver.InputType(def, sanitize.Sanitize(op.RawName(), sanitize.CasePascal))
		payloadArgName = a.payloadArgName(inputType)

		argType := inputType
		if op.PayloadRequired {
			argType = graph.NewNonNull(argType)
		}
		args = append(args, &graph.InputValue{
			Name: payloadArgName,
			Type: argType,
		})
	}

	if a.opts.AddLimitArgument && responseType.IsList() {
		args = append(args, &graph.InputValue{
			Name:        "limit",
			Description: "Truncates the list to at most this many elements.",
			Type:        graph.Int,
		})
	}
	return args, payloadArgName
}

func (a *assembler) parameterType(op *preprocess.Operation, parameter *preprocess.Parameter) *graph.Type {
	if parameter.Schema == nil {
		return graph.String
	}
	def := a.deriver.Definition(parameter.Schema, "")
	fallback := sanitize.Sanitize(op.RawName()+" "+parameter.Name, sanitize.CasePascal)
	return a.deriver.InputType(def, fallback)
}

func (a *assembler) payloadArgName(inputType *graph.Type) string {
	if a.opts.GenericPayloadArgName {
		return "requestBody"
	}
	base := strings.TrimSuffix(inputType.Unwrap().Name, "Input")
	if base == "" {
		return "requestBody"
	}
	return sanitize.Sanitize(base, a.fieldStyle())
}

// placeField routes the finished field to its viewer groups or to the plain
// root namespace, applying the collision policy.
func (a *assembler) placeField(op *preprocess.Operation, field *graph.Field, responseType *graph.Type) error {
	if op.InViewer && a.opts.Viewer {
		field.Name = a.defaultFieldName(op, responseType)
		explicit := op.FieldNameOverride != ""
		if explicit {
			field.Name = op.FieldNameOverride
		}
		for _, requirement := range op.SecurityRequirements {
			if err := a.viewers.Add(op.Kind, requirement, field, explicit); err != nil {
				return err
			}
		}
		return nil
	}
	if op.FieldNameOverride != "" {
		return a.addExplicitField(op, field)
	}
	a.addDefaultField(op, field, a.defaultFieldName(op, responseType))
	return nil
}

// addExplicitField places a field under the exact name its author asked for.
// Any collision here is fatal.
func (a *assembler) addExplicitField(op *preprocess.Operation, field *graph.Field) error {
	ns := a.namespaces[op.Kind]
	name := op.FieldNameOverride
	if _, taken := ns.fields[name]; taken {
		return fmt.Errorf("explicit field name %q on operation %s collides with an existing %s field",
			name, op.Identifier(), op.Kind)
	}
	field.Name = name
	ns.fields[name] = field
	ns.explicit[name] = true
	a.countField(op.Kind)
	return nil
}

// addDefaultField places a field under its derived default name, falling back
// to the sanitized operation identifier on a collision and dropping the
// operation on a second collision.
func (a *assembler) addDefaultField(op *preprocess.Operation, field *graph.Field, name string) {
	ns := a.namespaces[op.Kind]
	if _, taken := ns.fields[name]; !taken {
		field.Name = name
		ns.fields[name] = field
		a.countField(op.Kind)
		return
	}
	if ns.explicit[name] {
		// An explicit override owns this name; a later explicit declaration
		// would be fatal, a later default quietly steps aside.
		a.log.Debug("assemble: default name owned by an explicit override",
			log.String("name", name),
			log.String("operation", op.Identifier()),
		)
	}

	fallback := a.fieldName(op.Identifier())
	if _, taken := ns.fields[fallback]; taken {
		a.report.AddWarning(
			translationreport.MitigationDuplicateField,
			fmt.Sprintf("field name %q and fallback %q both taken for operation %s", name, fallback, op.Identifier()),
			fmt.Sprintf("dropping the operation from the %s root", op.Kind),
		)
		return
	}
	a.report.AddWarning(
		translationreport.MitigationDuplicateField,
		fmt.Sprintf("field name %q already taken for operation %s", name, op.Identifier()),
		fmt.Sprintf("using fallback name %q", fallback),
	)
	field.Name = fallback
	ns.fields[fallback] = field
	a.countField(op.Kind)
}

func (a *assembler) countField(kind preprocess.OperationKind) {
	switch kind {
	case preprocess.KindQuery:
		a.report.NumQueryFields++
	case preprocess.KindMutation:
		a.report.NumMutationFields++
	case preprocess.KindSubscription:
		a.report.NumSubscriptionFields++
	}
}

// defaultFieldName derives the field name per the collision policy: the
// response type name for queries, the operation vocabulary for mutations and
// subscriptions, the method+resource form under singular names.
func (a *assembler) defaultFieldName(op *preprocess.Operation, responseType *graph.Type) string {
	if a.opts.OperationIDFieldNames {
		return a.fieldName(op.RawName())
	}
	if op.Kind == preprocess.KindQuery {
		if a.opts.SingularNames {
			return a.fieldName(strings.ToLower(op.Method) + " " + sanitize.InferResourceNameFromPath(op.Path))
		}
		named := responseType.Unwrap()
		if (named.Kind == graph.Object || named.Kind == graph.Enum) && !graph.IsBuiltinScalar(named.Name) {
			return a.fieldName(named.Name)
		}
	}
	return a.fieldName(op.RawName())
}

func (a *assembler) fieldName(raw string) string {
	return sanitize.Sanitize(raw, a.fieldStyle())
}

func (a *assembler) fieldStyle() sanitize.CaseStyle {
	if a.opts.SimpleNames {
		return sanitize.CaseSimple
	}
	return sanitize.CaseCamel
}

// attachLinks adds one lazily-resolved field per declared link to the parent
// operation's response type.
func (a *assembler) attachLinks(built []*builtOperation, byOperationID map[string]*builtOperation) {
	for _, b := range built {
		if len(b.op.Links) == 0 {
			continue
		}
		parent := b.field.Type.Unwrap()
		if parent.Kind != graph.Object {
			a.report.AddWarning(
				translationreport.MitigationUnresolvableLink,
				fmt.Sprintf("operation %s declares links but its response is not an object type", b.op.Identifier()),
				"skipping the links",
			)
			continue
		}
		for _, link := range b.op.Links {
			a.attachLink(parent, b.op, link, byOperationID)
		}
	}
}

func (a *assembler) attachLink(parent *graph.Type, op *preprocess.Operation, link *preprocess.Link, byOperationID map[string]*builtOperation) {
	if link.OperationID == "" {
		a.report.AddWarning(
			translationreport.MitigationUnresolvableLink,
			fmt.Sprintf("link %q on operation %s carries no operationId", link.Name, op.Identifier()),
			"operationRef resolution is not supported, skipping the link",
		)
		return
	}
	target, ok := byOperationID[link.OperationID]
	if !ok {
		a.report.AddWarning(
			translationreport.MitigationUnresolvableLink,
			fmt.Sprintf("link %q on operation %s references unknown operation %q", link.Name, op.Identifier(), link.OperationID),
			"skipping the link",
		)
		return
	}

	name := a.fieldName(link.Name)
	if parent.Field(name) != nil {
		a.report.AddWarning(
			translationreport.MitigationDuplicateField,
			fmt.Sprintf("link %q on operation %s collides with field %q on type %s", link.Name, op.Identifier(), name, parent.Name),
			"skipping the link",
		)
		return
	}

	parent.AddField(&graph.Field{
		Name:        name,
		Description: fmt.Sprintf("Follows the %q link to operation %s.", link.Name, target.op.Identifier()),
		Type:        target.field.Type,
		Args:        a.remainingArgs(target.args, link),
		Resolve:     a.resolvers.LinkResolver(link, target.resolver),
	})
}

// remainingArgs filters the target's arguments down to those the link does
// not already provide.
func (a *assembler) remainingArgs(args []*graph.InputValue, link *preprocess.Link) []*graph.InputValue {
	provided := make(map[string]bool, len(link.Parameters))
	for raw := range link.Parameters {
		provided[a.fieldName(raw)] = true
	}
	var out []*graph.InputValue
	for _, arg := range args {
		if provided[arg.Name] {
			continue
		}
		out = append(out, arg)
	}
	return out
}

// buildRoots merges the plain namespaces with the viewer fields and registers
// the root types. Query always exists; Mutation and Subscription only when a
// field qualifies.
func (a *assembler) buildRoots() {
	a.schema.Query = a.schema.Register(a.rootType("Query", preprocess.KindQuery))
	if mutation := a.rootType("Mutation", preprocess.KindMutation); len(mutation.Fields) > 0 {
		a.schema.Mutation = a.schema.Register(mutation)
	}
	if subscription := a.rootType("Subscription", preprocess.KindSubscription); len(subscription.Fields) > 0 {
		a.schema.Subscription = a.schema.Register(subscription)
	}

	if len(a.schema.Query.Fields) == 0 {
		a.schema.Query.Fields = []*graph.Field{{
			Name:        "_",
			Description: "No query operations were translated.",
			Type:        graph.Boolean,
			Resolve: func(graph.ResolveParams) (interface{}, error) {
				return nil, nil
			},
		}}
	}
}

func (a *assembler) rootType(name string, kind preprocess.OperationKind) *graph.Type {
	ns := a.namespaces[kind]

	for _, field := range a.viewers.RootFields(kind) {
		if _, taken := ns.fields[field.Name]; taken {
			a.report.AddWarning(
				translationreport.MitigationDuplicateField,
				fmt.Sprintf("viewer field %q collides with an existing %s field", field.Name, kind),
				"dropping the viewer field",
			)
			continue
		}
		ns.fields[field.Name] = field
	}

	names := make([]string, 0, len(ns.fields))
	for fieldName := range ns.fields {
		names = append(names, fieldName)
	}
	sort.Strings(names)

	root := &graph.Type{Kind: graph.Object, Name: name}
	for _, fieldName := range names {
		root.Fields = append(root.Fields, ns.fields[fieldName])
	}
	return root
}

func (a *assembler) customResolver(op *preprocess.Operation) graph.ResolveFunc {
	byPath, ok := a.opts.CustomResolvers[op.DocumentTitle]
	if !ok {
		return nil
	}
	byMethod, ok := byPath[op.Path]
	if !ok {
		return nil
	}
	return byMethod[strings.ToLower(op.Method)]
}

func (a *assembler) customSubscriptionResolver(op *preprocess.Operation) graph.SubscribeFunc {
	byPath, ok := a.opts.CustomSubscriptionResolvers[op.DocumentTitle]
	if !ok {
		return nil
	}
	byMethod, ok := byPath[op.Path]
	if !ok {
		return nil
	}
	return byMethod[strings.ToLower(op.Method)]
}
