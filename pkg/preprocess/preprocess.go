package preprocess

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	log "github.com/jensneuse/abstractlogger"

	"github.com/oasgraph/oasgraph/pkg/graph"
	"github.com/oasgraph/oasgraph/pkg/translationreport"
)

const (
	extensionFieldName = "x-graphql-field-name"
)

// methods is the fixed traversal order for path items. GET becomes a query,
// everything else a mutation.
var methods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
}

type Config struct {
	CreateSubscriptionsFromCallbacks bool

	// Custom resolvers are keyed by document title, path and method. They
	// are validated here against the actual operation set; each mismatch
	// produces a warning, not a failure.
	CustomResolvers             map[string]map[string]map[string]graph.ResolveFunc
	CustomSubscriptionResolvers map[string]map[string]map[string]graph.SubscribeFunc

	Logger log.Logger
}

type walker struct {
	cfg     *Config
	report  *translationreport.Report
	log     log.Logger
	result  *Result
	titles  map[string]bool
	skipped map[string]bool
}

// Documents walks one or more validated OpenAPI documents in order and
// produces the normalized operation model. Iteration over paths and methods
// is stable so later collision fallbacks are deterministic.
func Documents(docs []*openapi3.T, cfg *Config, report *translationreport.Report) (*Result, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NoopLogger
	}
	w := &walker{
		cfg:    cfg,
		report: report,
		log:    logger,
		result: &Result{
			SecuritySchemes: make(map[string]*SecurityScheme),
		},
		titles:  make(map[string]bool),
		skipped: make(map[string]bool),
	}

	for _, doc := range docs {
		w.walkDocument(doc)
	}
	w.validateCustomResolvers(docs)

	return w.result, nil
}

func documentTitle(doc *openapi3.T) string {
	if doc.Info == nil {
		return ""
	}
	return doc.Info.Title
}

func (w *walker) walkDocument(doc *openapi3.T) {
	title := documentTitle(doc)
	if w.titles[title] {
		w.report.AddWarning(
			translationreport.MitigationAmbiguousTitle,
			fmt.Sprintf("multiple documents share the title %q", title),
			"operations from both documents are treated as belonging to the same API",
		)
	}
	w.titles[title] = true

	w.collectSecuritySchemes(doc)

	paths := make([]string, 0, len(doc.Paths))
	for path := range doc.Paths {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		pathItem := doc.Paths[path]
		for _, method := range methods {
			operation := pathItem.GetOperation(method)
			if operation == nil {
				continue
			}
			w.walkOperation(doc, title, path, pathItem, method, operation)
		}
	}
}

func (w *walker) collectSecuritySchemes(doc *openapi3.T) {
	if doc.Components.SecuritySchemes == nil {
		return
	}
	keys := make([]string, 0, len(doc.Components.SecuritySchemes))
	for key := range doc.Components.SecuritySchemes {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		ref := doc.Components.SecuritySchemes[key]
		if ref == nil || ref.Value == nil {
			continue
		}
		scheme := &SecurityScheme{Key: key}
		switch ref.Value.Type {
		case "http":
			if ref.Value.Scheme == "basic" {
				scheme.Kind = SecurityBasic
			} else {
				scheme.Kind = SecurityOther
			}
		case "apiKey":
			scheme.Kind = SecurityAPIKey
			scheme.In = ref.Value.In
			scheme.ParamName = ref.Value.Name
		case "oauth2", "openIdConnect":
			scheme.Kind = SecurityOAuth2
		default:
			scheme.Kind = SecurityOther
		}
		w.result.SecuritySchemes[key] = scheme
	}
}

func (w *walker) walkOperation(doc *openapi3.T, title, path string, pathItem *openapi3.PathItem, method string, operation *openapi3.Operation) {
	op := &Operation{
		Method:        method,
		Path:          path,
		DocumentTitle: title,
		OperationID:   operation.OperationID,
		Description:   operationDescription(operation),
		Kind:          KindQuery,
	}
	if method != http.MethodGet {
		op.Kind = KindMutation
	}

	op.FieldNameOverride = extensionString(operation.Extensions, extensionFieldName)
	op.DocumentServers = doc.Servers
	if operation.Servers != nil && len(*operation.Servers) > 0 {
		op.Servers = *operation.Servers
	}

	op.Parameters = mergeParameters(pathItem.Parameters, operation.Parameters)

	if operation.RequestBody != nil && operation.RequestBody.Value != nil {
		if mediaType := operation.RequestBody.Value.Content.Get("application/json"); mediaType != nil {
			op.PayloadSchema = mediaType.Schema
			op.PayloadRequired = operation.RequestBody.Value.Required
		}
	}

	w.selectSuccessResponse(op, operation)
	w.collectSecurityRequirements(doc, op, operation)

	switch op.Kind {
	case KindQuery:
		w.report.NumQueriesSeen++
	case KindMutation:
		w.report.NumMutationsSeen++
	}
	w.result.Operations = append(w.result.Operations, op)

	if w.cfg.CreateSubscriptionsFromCallbacks {
		w.walkCallbacks(op, operation)
	}
}

// selectSuccessResponse picks the numerically lowest 2xx status. Declaring
// more than one plausible success status is a recoverable ambiguity.
func (w *walker) selectSuccessResponse(op *Operation, operation *openapi3.Operation) {
	var candidates []int
	for statusCode := range operation.Responses {
		status, err := strconv.Atoi(statusCode)
		if err != nil {
			continue
		}
		if status >= 200 && status < 300 {
			candidates = append(candidates, status)
		}
	}
	if len(candidates) == 0 {
		return
	}
	sort.Ints(candidates)
	if len(candidates) > 1 {
		w.report.AddWarning(
			translationreport.MitigationAmbiguousSuccessStatus,
			fmt.Sprintf("operation %q declares %d success status codes", op.Identifier(), len(candidates)),
			fmt.Sprintf("using status %d", candidates[0]),
		)
	}

	op.ResponseStatus = strconv.Itoa(candidates[0])
	response := operation.Responses.Get(candidates[0])
	if response == nil || response.Value == nil {
		return
	}
	if mediaType := response.Value.Content.Get("application/json"); mediaType != nil {
		op.ResponseSchema = mediaType.Schema
	}
	op.Links = collectLinks(response.Value.Links)
}

func collectLinks(links openapi3.Links) []*Link {
	if len(links) == 0 {
		return nil
	}
	names := make([]string, 0, len(links))
	for name := range links {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*Link, 0, len(names))
	for _, name := range names {
		ref := links[name]
		if ref == nil || ref.Value == nil {
			continue
		}
		out = append(out, &Link{
			Name:         name,
			OperationID:  ref.Value.OperationID,
			OperationRef: ref.Value.OperationRef,
			Parameters:   ref.Value.Parameters,
		})
	}
	return out
}

// collectSecurityRequirements normalizes the operation's security into
// OR-combined requirements of AND-combined scheme keys, dropping schemes
// handled outside the viewer mechanism.
func (w *walker) collectSecurityRequirements(doc *openapi3.T, op *Operation, operation *openapi3.Operation) {
	requirements := doc.Security
	if operation.Security != nil {
		requirements = *operation.Security
	}

	for _, requirement := range requirements {
		keys := make([]string, 0, len(requirement))
		for key := range requirement {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		var supported []string
		for _, key := range keys {
			scheme, ok := w.result.SecuritySchemes[key]
			if !ok {
				continue
			}
			if scheme.Kind == SecurityOAuth2 {
				if !w.skipped[key] {
					w.skipped[key] = true
					w.report.AddWarning(
						translationreport.MitigationUnsupportedSecurityScheme,
						fmt.Sprintf("security scheme %q uses an OAuth2 flow", key),
						"operations requiring it are exposed outside the viewer namespaces",
					)
				}
				continue
			}
			supported = append(supported, key)
		}
		if len(supported) == 0 {
			continue
		}
		op.SecurityRequirements = append(op.SecurityRequirements, SecurityRequirement{
			Key:        strings.Join(supported, "+"),
			SchemeKeys: supported,
		})
	}
	op.InViewer = len(op.SecurityRequirements) > 0
}

// walkCallbacks turns callback declarations into subscription candidates.
// The callback operation's request body describes the event payload, so it
// becomes the subscription's response schema.
func (w *walker) walkCallbacks(parent *Operation, operation *openapi3.Operation) {
	names := make([]string, 0, len(operation.Callbacks))
	for name := range operation.Callbacks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ref := operation.Callbacks[name]
		if ref == nil || ref.Value == nil {
			continue
		}
		expressions := make([]string, 0, len(*ref.Value))
		for expression := range *ref.Value {
			expressions = append(expressions, expression)
		}
		sort.Strings(expressions)

		for _, expression := range expressions {
			pathItem := (*ref.Value)[expression]
			for _, method := range methods {
				callbackOperation := pathItem.GetOperation(method)
				if callbackOperation == nil {
					continue
				}
				sub := &Operation{
					Method:          parent.Method,
					Path:            parent.Path,
					DocumentTitle:   parent.DocumentTitle,
					OperationID:     callbackOperation.OperationID,
					Description:     operationDescription(callbackOperation),
					Kind:            KindSubscription,
					Parameters:      append(append([]*Parameter{}, parent.Parameters...), mergeParameters(nil, callbackOperation.Parameters)...),
					FromCallback:    true,
					TopicExpression: expression,
					DocumentServers: parent.DocumentServers,
					Servers:         parent.Servers,
				}
				if sub.OperationID == "" {
					sub.OperationID = parent.RawName() + " " + name
				}
				sub.FieldNameOverride = extensionString(callbackOperation.Extensions, extensionFieldName)
				if callbackOperation.RequestBody != nil && callbackOperation.RequestBody.Value != nil {
					if mediaType := callbackOperation.RequestBody.Value.Content.Get("application/json"); mediaType != nil {
						sub.ResponseSchema = mediaType.Schema
					}
				}

				w.report.NumSubscriptionsSeen++
				w.result.Operations = append(w.result.Operations, sub)
			}
		}
	}
}

// validateCustomResolvers checks every custom resolver registration against
// the operations that actually exist.
func (w *walker) validateCustomResolvers(docs []*openapi3.T) {
	byTitle := make(map[string]*openapi3.T, len(docs))
	for _, doc := range docs {
		byTitle[documentTitle(doc)] = doc
	}

	validate := func(kind string, titles []string, lookup func(title string) map[string]map[string]bool) {
		for _, title := range titles {
			doc, ok := byTitle[title]
			if !ok {
				w.report.AddWarning(
					translationreport.MitigationUnknownCustomResolver,
					fmt.Sprintf("%s references unknown document %q", kind, title),
					"the resolver is ignored",
				)
				continue
			}
			for path, methodSet := range lookup(title) {
				pathItem, ok := doc.Paths[path]
				if !ok {
					w.report.AddWarning(
						translationreport.MitigationUnknownCustomResolver,
						fmt.Sprintf("%s references unknown path %q in document %q", kind, path, title),
						"the resolver is ignored",
					)
					continue
				}
				for method := range methodSet {
					if pathItem.GetOperation(strings.ToUpper(method)) == nil {
						w.report.AddWarning(
							translationreport.MitigationUnknownCustomResolver,
							fmt.Sprintf("%s references unknown operation %s %q in document %q", kind, strings.ToUpper(method), path, title),
							"the resolver is ignored",
						)
					}
				}
			}
		}
	}

	if len(w.cfg.CustomResolvers) > 0 {
		titles := sortedKeys(w.cfg.CustomResolvers)
		validate("custom resolver", titles, func(title string) map[string]map[string]bool {
			return methodSets(w.cfg.CustomResolvers[title])
		})
	}
	if len(w.cfg.CustomSubscriptionResolvers) > 0 {
		titles := sortedKeys(w.cfg.CustomSubscriptionResolvers)
		validate("custom subscription resolver", titles, func(title string) map[string]map[string]bool {
			return methodSets(w.cfg.CustomSubscriptionResolvers[title])
		})
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func methodSets[F any](paths map[string]map[string]F) map[string]map[string]bool {
	out := make(map[string]map[string]bool, len(paths))
	for path, byMethod := range paths {
		set := make(map[string]bool, len(byMethod))
		for method := range byMethod {
			set[method] = true
		}
		out[path] = set
	}
	return out
}

func mergeParameters(pathLevel openapi3.Parameters, operationLevel openapi3.Parameters) []*Parameter {
	seen := make(map[string]bool)
	var out []*Parameter

	add := func(params openapi3.Parameters) {
		for _, ref := range params {
			if ref == nil || ref.Value == nil {
				continue
			}
			key := ref.Value.In + ":" + ref.Value.Name
			if seen[key] {
				continue
			}
			seen[key] = true
			schema := ref.Value.Schema
			if schema == nil {
				if mediaType := ref.Value.Content.Get("application/json"); mediaType != nil {
					schema = mediaType.Schema
				}
			}
			out = append(out, &Parameter{
				Name:     ref.Value.Name,
				In:       ref.Value.In,
				Required: ref.Value.Required,
				Schema:   schema,
			})
		}
	}

	// Operation-level parameters shadow path-level ones with the same
	// name and location.
	add(operationLevel)
	add(pathLevel)
	return out
}

func operationDescription(operation *openapi3.Operation) string {
	var sb = strings.Builder{}
	sb.WriteString(operation.Summary)
	sb.WriteString("\n")
	sb.WriteString(operation.Description)
	return strings.TrimSpace(sb.String())
}

func extensionString(extensions map[string]interface{}, key string) string {
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
