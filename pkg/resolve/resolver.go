package resolve

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	log "github.com/jensneuse/abstractlogger"

	"github.com/oasgraph/oasgraph/pkg/graph"
	"github.com/oasgraph/oasgraph/pkg/httpclient"
	"github.com/oasgraph/oasgraph/pkg/preprocess"
	"github.com/oasgraph/oasgraph/pkg/sanitize"
)

// reshapeCacheSize bounds the sanitized-key cache resolvers consult while
// reshaping upstream responses. The name registry itself is read-only at call
// time, so unseen keys are sanitized on the fly and cached here instead.
const reshapeCacheSize = 1024

type Config struct {
	// BaseURL overrides server resolution for every operation.
	BaseURL string

	// Headers and QueryParams are sent with every upstream request.
	Headers     map[string]string
	QueryParams map[string]string

	// GenericPayloadArgName exposes every request payload under the argument
	// name "requestBody" instead of the sanitized schema name.
	GenericPayloadArgName bool

	// SendOAuthTokenInQuery appends a caller-supplied token as the
	// access_token query parameter instead of an Authorization header.
	SendOAuthTokenInQuery bool

	// AddLimitArgument enables client-side slicing of list results.
	AddLimitArgument bool

	// SimpleNames mirrors the naming option used during type derivation so
	// that reshaped response keys line up with the generated field names.
	SimpleNames bool

	Client *http.Client
	Logger log.Logger
}

// Builder constructs resolvers for preprocessed operations. It holds the
// shared name registry for desanitizing outgoing payloads and a bounded cache
// for sanitizing incoming response keys.
type Builder struct {
	registry *sanitize.NameRegistry
	schemes  map[string]*preprocess.SecurityScheme
	cfg      Config
	client   *http.Client
	log      log.Logger
	saneKeys *lru.Cache
}

func NewBuilder(registry *sanitize.NameRegistry, schemes map[string]*preprocess.SecurityScheme, cfg Config) *Builder {
	if cfg.Logger == nil {
		cfg.Logger = log.NoopLogger
	}
	client := cfg.Client
	if client == nil {
		client = httpclient.DefaultNetHttpClient
	}
	cache, _ := lru.New(reshapeCacheSize)
	return &Builder{
		registry: registry,
		schemes:  schemes,
		cfg:      cfg,
		client:   client,
		log:      cfg.Logger,
		saneKeys: cache,
	}
}

// Resolver builds the HTTP call resolver for an operation. payloadArgName is
// the argument the request body travels under; empty when the operation takes
// no payload.
func (b *Builder) Resolver(op *preprocess.Operation, payloadArgName string) graph.ResolveFunc {
	return func(params graph.ResolveParams) (interface{}, error) {
		carrier := graph.CarrierFrom(params.Source).Child()
		carrier.Args = params.Args

		endpoint, err := b.endpointURL(op, carrier, params.Args)
		if err != nil {
			return nil, err
		}

		headers := b.headerMap(op, params.Args)
		query := b.queryParams(op, params.Args)
		b.applySecurity(op, carrier, headers, &query)

		var body []byte
		if payloadArgName != "" {
			payload, ok := params.Args[payloadArgName]
			if !ok {
				if op.PayloadRequired {
					return nil, fmt.Errorf("operation %s requires the %q argument", op.Identifier(), payloadArgName)
				}
			} else {
				body, err = json.Marshal(b.desanitize(payload))
				if err != nil {
					return nil, fmt.Errorf("encode request body for %s: %w", op.Identifier(), err)
				}
			}
		}

		input := httpclient.SetInputURL(nil, []byte(endpoint))
		input = httpclient.SetInputMethod(input, []byte(strings.ToUpper(op.Method)))
		if len(body) != 0 {
			input = httpclient.SetInputBody(input, body)
		}
		if len(headers) != 0 {
			encoded, err := json.Marshal(headers)
			if err != nil {
				return nil, err
			}
			input = httpclient.SetInputHeaders(input, encoded)
		}
		if len(query) != 0 {
			encoded, err := json.Marshal(query)
			if err != nil {
				return nil, err
			}
			input = httpclient.SetInputQueryParams(input, encoded)
		}

		b.log.Debug("resolve: upstream call",
			log.String("operation", op.Identifier()),
			log.String("url", endpoint),
		)

		out := &bytes.Buffer{}
		statusCode, err := httpclient.Do(b.client, params.Ctx, input, out)
		if err != nil {
			return nil, fmt.Errorf("call %s: %w", op.Identifier(), err)
		}

		response := bytes.TrimSpace(out.Bytes())
		carrier.Method = strings.ToUpper(op.Method)
		carrier.URL = endpoint
		carrier.StatusCode = statusCode
		carrier.RequestBody = body
		carrier.Response = response

		if statusCode < 200 || statusCode >= 300 {
			return nil, fmt.Errorf("call %s: unexpected status %d: %s", op.Identifier(), statusCode, truncate(response))
		}
		return b.result(response, carrier, params.Args)
	}
}

// result decodes and reshapes the upstream response and attaches the carrier
// so nested link resolvers can evaluate runtime expressions against it.
func (b *Builder) result(response []byte, carrier *graph.Carrier, args map[string]interface{}) (interface{}, error) {
	if len(response) == 0 {
		return graph.AttachCarrier(nil, carrier), nil
	}
	var decoded interface{}
	if err := json.Unmarshal(response, &decoded); err != nil {
		return string(response), nil
	}

	reshaped := b.reshape(decoded)
	switch typed := reshaped.(type) {
	case map[string]interface{}:
		return graph.AttachCarrier(typed, carrier), nil
	case []interface{}:
		limited, err := b.applyLimit(typed, args)
		if err != nil {
			return nil, err
		}
		for i, element := range limited {
			if m, ok := element.(map[string]interface{}); ok {
				limited[i] = graph.AttachCarrier(m, carrier)
			}
		}
		return limited, nil
	}
	return reshaped, nil
}

func (b *Builder) applyLimit(list []interface{}, args map[string]interface{}) ([]interface{}, error) {
	if !b.cfg.AddLimitArgument {
		return list, nil
	}
	raw, ok := args["limit"]
	if !ok {
		return list, nil
	}
	limit, ok := intValue(raw)
	if !ok {
		return list, nil
	}
	if limit < 0 {
		return nil, fmt.Errorf("limit must not be negative, got %d", limit)
	}
	if limit < len(list) {
		return list[:limit], nil
	}
	return list, nil
}

// endpointURL resolves the server base and substitutes path parameters from
// the field arguments.
func (b *Builder) endpointURL(op *preprocess.Operation, carrier *graph.Carrier, args map[string]interface{}) (string, error) {
	base := b.baseURL(op, carrier)
	if base == "" {
		return "", fmt.Errorf("no server url known for operation %s", op.Identifier())
	}

	path := op.Path
	for _, parameter := range op.Parameters {
		if parameter.In != "path" {
			continue
		}
		value, ok := args[b.argName(parameter.Name)]
		if !ok {
			if parameter.Required {
				return "", fmt.Errorf("operation %s: missing required path parameter %q", op.Identifier(), parameter.Name)
			}
			continue
		}
		path = strings.ReplaceAll(path, "{"+parameter.Name+"}", url.PathEscape(formatValue(value)))
	}
	return strings.TrimSuffix(base, "/") + path, nil
}

func (b *Builder) baseURL(op *preprocess.Operation, carrier *graph.Carrier) string {
	if carrier != nil && carrier.BaseURL != "" {
		return carrier.BaseURL
	}
	if b.cfg.BaseURL != "" {
		return b.cfg.BaseURL
	}
	if len(op.Servers) > 0 {
		return op.Servers[0].URL
	}
	if len(op.DocumentServers) > 0 {
		return op.DocumentServers[0].URL
	}
	return ""
}

func (b *Builder) headerMap(op *preprocess.Operation, args map[string]interface{}) map[string]string {
	headers := make(map[string]string, len(b.cfg.Headers))
	for name, value := range b.cfg.Headers {
		headers[name] = value
	}
	for _, parameter := range op.Parameters {
		if parameter.In != "header" {
			continue
		}
		if value, ok := args[b.argName(parameter.Name)]; ok {
			headers[parameter.Name] = formatValue(value)
		}
	}
	return headers
}

type queryParam struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

func (b *Builder) queryParams(op *preprocess.Operation, args map[string]interface{}) []queryParam {
	defaults := make([]string, 0, len(b.cfg.QueryParams))
	for name := range b.cfg.QueryParams {
		defaults = append(defaults, name)
	}
	sort.Strings(defaults)

	out := make([]queryParam, 0, len(defaults))
	for _, name := range defaults {
		out = append(out, queryParam{Name: name, Value: b.cfg.QueryParams[name]})
	}
	for _, parameter := range op.Parameters {
		if parameter.In != "query" {
			continue
		}
		value, ok := args[b.argName(parameter.Name)]
		if !ok {
			continue
		}
		if list, ok := value.([]interface{}); ok {
			values := make([]string, len(list))
			for i, element := range list {
				values[i] = formatValue(element)
			}
			out = append(out, queryParam{Name: parameter.Name, Value: values})
			continue
		}
		out = append(out, queryParam{Name: parameter.Name, Value: formatValue(value)})
	}
	return out
}

// applySecurity injects credential material from the carrier. A token
// supplied by the caller wins over viewer credentials; among the operation's
// requirements the first fully satisfiable one is applied. An unsatisfiable
// requirement is not an error here: the field may sit outside the viewer
// mechanism and authenticate through static headers instead.
func (b *Builder) applySecurity(op *preprocess.Operation, carrier *graph.Carrier, headers map[string]string, query *[]queryParam) {
	if carrier.OAuthToken != "" {
		if b.cfg.SendOAuthTokenInQuery {
			*query = append(*query, queryParam{Name: "access_token", Value: carrier.OAuthToken})
		} else {
			headers["Authorization"] = "Bearer " + carrier.OAuthToken
		}
		return
	}

	for _, requirement := range op.SecurityRequirements {
		if !b.satisfiable(requirement, carrier) {
			continue
		}
		for _, key := range requirement.SchemeKeys {
			scheme := b.schemes[key]
			credentials := carrier.Credentials[key]
			switch scheme.Kind {
			case preprocess.SecurityBasic:
				username, _ := credentials["username"].(string)
				password, _ := credentials["password"].(string)
				headers["Authorization"] = "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
			case preprocess.SecurityAPIKey:
				value := formatValue(credentials["apiKey"])
				switch scheme.In {
				case "query":
					*query = append(*query, queryParam{Name: scheme.ParamName, Value: value})
				case "cookie":
					headers["Cookie"] = appendCookie(headers["Cookie"], scheme.ParamName+"="+value)
				default:
					headers[scheme.ParamName] = value
				}
			case preprocess.SecurityOther:
				if token, ok := credentials["token"].(string); ok {
					headers["Authorization"] = "Bearer " + token
				}
			}
		}
		return
	}

	if len(op.SecurityRequirements) > 0 {
		b.log.Debug("resolve: no satisfiable security requirement, calling unauthenticated",
			log.String("operation", op.Identifier()),
		)
	}
}

func (b *Builder) satisfiable(requirement preprocess.SecurityRequirement, carrier *graph.Carrier) bool {
	for _, key := range requirement.SchemeKeys {
		if _, ok := b.schemes[key]; !ok {
			return false
		}
		if _, ok := carrier.Credentials[key]; !ok {
			return false
		}
	}
	return len(requirement.SchemeKeys) > 0
}

// desanitize restores the original member names of an outgoing payload using
// the registry filled during type derivation.
func (b *Builder) desanitize(value interface{}) interface{} {
	switch typed := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(typed))
		for key, member := range typed {
			raw := key
			if original, ok := b.registry.Original(key); ok {
				raw = original
			}
			out[raw] = b.desanitize(member)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(typed))
		for i, member := range typed {
			out[i] = b.desanitize(member)
		}
		return out
	}
	return value
}

// reshape sanitizes the member names of an incoming response so they line up
// with the generated field names. The registry is not written here.
func (b *Builder) reshape(value interface{}) interface{} {
	switch typed := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(typed))
		for key, member := range typed {
			out[b.saneKey(key)] = b.reshape(member)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(typed))
		for i, member := range typed {
			out[i] = b.reshape(member)
		}
		return out
	}
	return value
}

func (b *Builder) saneKey(raw string) string {
	if cached, ok := b.saneKeys.Get(raw); ok {
		return cached.(string)
	}
	sane := sanitize.Sanitize(raw, b.fieldStyle())
	b.saneKeys.Add(raw, sane)
	return sane
}

func (b *Builder) argName(raw string) string {
	return sanitize.Sanitize(raw, b.fieldStyle())
}

func (b *Builder) fieldStyle() sanitize.CaseStyle {
	if b.cfg.SimpleNames {
		return sanitize.CaseSimple
	}
	return sanitize.CaseCamel
}

func intValue(value interface{}) (int, bool) {
	switch typed := value.(type) {
	case int:
		return typed, true
	case int64:
		return int(typed), true
	case float64:
		return int(typed), true
	}
	return 0, false
}

func appendCookie(existing, pair string) string {
	if existing == "" {
		return pair
	}
	return existing + "; " + pair
}

func truncate(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
