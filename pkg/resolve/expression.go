// Package resolve builds the resolver functions attached to generated fields:
// HTTP call resolvers, link resolvers that chase declared relationships, and
// subscription resolvers fed by a pub/sub transport.
package resolve

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/oasgraph/oasgraph/pkg/graph"
	"github.com/oasgraph/oasgraph/pkg/sanitize"
)

// interpolationRegex finds embedded {expression} segments inside a literal
// value or a topic template.
var interpolationRegex = regexp.MustCompile(`\{([^{}]+)\}`)

// Evaluate resolves an OpenAPI runtime expression against the metadata of the
// call that produced the parent result. A value without the $ prefix is a
// literal; a literal containing {expression} segments is interpolated.
func Evaluate(expr string, carrier *graph.Carrier) (interface{}, error) {
	expr = strings.TrimSpace(expr)
	if !strings.HasPrefix(expr, "$") {
		if strings.Contains(expr, "{") {
			return Interpolate(expr, carrier)
		}
		return expr, nil
	}
	if carrier == nil {
		return nil, fmt.Errorf("expression %q needs parent call metadata, none available", expr)
	}

	switch {
	case expr == "$url":
		return carrier.URL, nil
	case expr == "$method":
		return carrier.Method, nil
	case expr == "$statusCode":
		return strconv.Itoa(carrier.StatusCode), nil
	case expr == "$request.body":
		return jsonValue(carrier.RequestBody), nil
	case strings.HasPrefix(expr, "$request.body#"):
		return pointerValue(carrier.RequestBody, strings.TrimPrefix(expr, "$request.body#"), expr)
	case strings.HasPrefix(expr, "$request.query."):
		return queryValue(carrier.URL, strings.TrimPrefix(expr, "$request.query."))
	case strings.HasPrefix(expr, "$request.path."):
		return argValue(carrier.Args, strings.TrimPrefix(expr, "$request.path."), expr)
	case expr == "$response.body":
		return jsonValue(carrier.Response), nil
	case strings.HasPrefix(expr, "$response.body#"):
		return pointerValue(carrier.Response, strings.TrimPrefix(expr, "$response.body#"), expr)
	}
	return nil, fmt.Errorf("unsupported runtime expression %q", expr)
}

// Interpolate replaces every {expression} segment in template with its
// evaluated string form.
func Interpolate(template string, carrier *graph.Carrier) (string, error) {
	var firstErr error
	out := interpolationRegex.ReplaceAllStringFunc(template, func(match string) string {
		inner := match[1 : len(match)-1]
		value, err := Evaluate(inner, carrier)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return match
		}
		return formatValue(value)
	})
	return out, firstErr
}

// pointerPath converts a JSON pointer into a gjson lookup path.
func pointerPath(pointer string) string {
	pointer = strings.TrimPrefix(pointer, "/")
	segments := strings.Split(pointer, "/")
	for i, segment := range segments {
		segment = strings.ReplaceAll(segment, "~1", "/")
		segment = strings.ReplaceAll(segment, "~0", "~")
		segment = strings.ReplaceAll(segment, ".", `\.`)
		segments[i] = segment
	}
	return strings.Join(segments, ".")
}

func pointerValue(data []byte, pointer, expr string) (interface{}, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("expression %q evaluated against an empty document", expr)
	}
	result := gjson.GetBytes(data, pointerPath(pointer))
	if !result.Exists() {
		return nil, fmt.Errorf("expression %q did not match the document", expr)
	}
	return result.Value(), nil
}

func jsonValue(data []byte) interface{} {
	if len(data) == 0 {
		return nil
	}
	return gjson.ParseBytes(data).Value()
}

func queryValue(rawURL, name string) (interface{}, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("request url %q: %w", rawURL, err)
	}
	values := parsed.Query()
	if _, ok := values[name]; !ok {
		return nil, fmt.Errorf("request query parameter %q not present", name)
	}
	return values.Get(name), nil
}

func argValue(args map[string]interface{}, name, expr string) (interface{}, error) {
	if value, ok := args[name]; ok {
		return value, nil
	}
	// Argument names are sanitized; retry with the common styles.
	for _, candidate := range []string{
		sanitize.Sanitize(name, sanitize.CaseCamel),
		sanitize.Sanitize(name, sanitize.CaseSimple),
	} {
		if value, ok := args[candidate]; ok {
			return value, nil
		}
	}
	return nil, fmt.Errorf("expression %q: no argument %q on the parent call", expr, name)
}

func formatValue(value interface{}) string {
	switch typed := value.(type) {
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(typed)
	case nil:
		return ""
	}
	return fmt.Sprintf("%v", value)
}
