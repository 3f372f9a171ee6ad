// Package httpclient executes the HTTP calls issued by generated resolvers.
// A request is encoded as a single JSON input document carrying url, method,
// headers, query parameters and body, so resolver construction and request
// execution stay decoupled.
package httpclient

import (
	"github.com/buger/jsonparser"
	"github.com/tidwall/sjson"
)

const (
	PathURL         = "url"
	PathMethod      = "method"
	PathBody        = "body"
	PathHeaders     = "headers"
	PathQueryParams = "query_params"
)

var (
	inputPaths = [][]string{
		{PathURL},
		{PathMethod},
		{PathBody},
		{PathHeaders},
		{PathQueryParams},
	}
)

func wrapQuotesIfString(value []byte) []byte {
	if len(value) == 0 {
		return value
	}
	switch value[0] {
	case '{', '[', '"':
		return value
	}
	if string(value) == "true" || string(value) == "false" || string(value) == "null" {
		return value
	}
	if value[0] == '-' || (value[0] >= '0' && value[0] <= '9') {
		return value
	}
	quoted := make([]byte, 0, len(value)+2)
	quoted = append(quoted, '"')
	quoted = append(quoted, value...)
	quoted = append(quoted, '"')
	return quoted
}

func SetInputURL(input, url []byte) []byte {
	if len(url) == 0 {
		return input
	}
	out, _ := sjson.SetRawBytes(input, PathURL, wrapQuotesIfString(url))
	return out
}

func SetInputMethod(input, method []byte) []byte {
	if len(method) == 0 {
		return input
	}
	out, _ := sjson.SetRawBytes(input, PathMethod, wrapQuotesIfString(method))
	return out
}

func SetInputBody(input, body []byte) []byte {
	if len(body) == 0 {
		return input
	}
	out, _ := sjson.SetRawBytes(input, PathBody, body)
	return out
}

func SetInputHeaders(input, headers []byte) []byte {
	if len(headers) == 0 {
		return input
	}
	out, _ := sjson.SetRawBytes(input, PathHeaders, headers)
	return out
}

// SetInputQueryParams expects a JSON array of {"name":...,"value":...}
// objects; a value may itself be an array to repeat the parameter.
func SetInputQueryParams(input, queryParams []byte) []byte {
	if len(queryParams) == 0 {
		return input
	}
	out, _ := sjson.SetRawBytes(input, PathQueryParams, queryParams)
	return out
}

func requestInputParams(input []byte) (url, method, body, headers, queryParams []byte) {
	jsonparser.EachKey(input, func(i int, value []byte, _ jsonparser.ValueType, _ error) {
		switch i {
		case 0:
			url = value
		case 1:
			method = value
		case 2:
			body = value
		case 3:
			headers = value
		case 4:
			queryParams = value
		}
	}, inputPaths...)
	return
}
