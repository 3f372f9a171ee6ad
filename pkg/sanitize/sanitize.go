// Package sanitize derives legal, style-conformant GraphQL identifiers from
// arbitrary OpenAPI vocabulary and keeps a reversible mapping back to the
// original names.
package sanitize

import (
	"strings"

	"github.com/iancoleman/strcase"
)

// CaseStyle selects how Sanitize reshapes an identifier.
type CaseStyle int

const (
	// CaseSimple strips illegal characters and preserves the original case.
	CaseSimple CaseStyle = iota
	CasePascal
	CaseCamel
	CaseAllCaps
)

func isLegalRune(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}

// spaced replaces every run of illegal characters with a single space so the
// strcase splitters can treat them as word boundaries.
func spaced(raw string) string {
	var sb strings.Builder
	for _, r := range raw {
		if isLegalRune(r) {
			sb.WriteRune(r)
		} else {
			sb.WriteRune(' ')
		}
	}
	return sb.String()
}

// guard prefixes an underscore when the identifier would be empty or start
// with a digit.
func guard(name string) string {
	if name == "" {
		return "_"
	}
	if name[0] >= '0' && name[0] <= '9' {
		return "_" + name
	}
	return name
}

// Sanitize turns raw into a legal identifier matching
// [A-Za-z_][A-Za-z0-9_]* in the requested style.
func Sanitize(raw string, style CaseStyle) string {
	switch style {
	case CasePascal:
		return guard(strcase.ToCamel(spaced(raw)))
	case CaseCamel:
		return guard(strcase.ToLowerCamel(spaced(raw)))
	case CaseAllCaps:
		return guard(strings.ToUpper(strcase.ToScreamingSnake(spaced(raw))))
	default:
		var sb strings.Builder
		for _, r := range raw {
			if isLegalRune(r) {
				sb.WriteRune(r)
			}
		}
		return guard(sb.String())
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Singularize reduces a plural English noun to its singular form. It only
// covers the regular forms that appear in URL path segments.
func Singularize(s string) string {
	switch {
	case strings.HasSuffix(s, "ies"):
		return strings.TrimSuffix(s, "ies") + "y"
	case strings.HasSuffix(s, "ss"):
		return s
	case strings.HasSuffix(s, "s"):
		return strings.TrimSuffix(s, "s")
	}
	return s
}

func isPathParameter(segment string) bool {
	return strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}")
}

func parameterName(segment string) string {
	return strings.TrimSuffix(strings.TrimPrefix(segment, "{"), "}")
}

// identifierLikeParameter reports whether a path parameter name designates a
// resource identifier, e.g. userId, petName, apiKey.
func identifierLikeParameter(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "id") ||
		strings.Contains(lower, "name") ||
		strings.Contains(lower, "key")
}

// InferResourceNameFromPath derives a noun phrase from a URL template. The
// leading fixed segment is dropped as a routing prefix. A literal segment is
// singularized when the segment after it is an identifier-like path parameter
// or a parameter named like its singular form; parameter segments themselves
// are skipped.
//
//	/v1/users/{userId}/car → userCar
func InferResourceNameFromPath(path string) string {
	var segments []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	if len(segments) > 1 && !isPathParameter(segments[0]) {
		segments = segments[1:]
	}

	var parts []string
	for i, seg := range segments {
		if isPathParameter(seg) {
			continue
		}
		singular := false
		if i+1 < len(segments) && isPathParameter(segments[i+1]) {
			param := parameterName(segments[i+1])
			singular = identifierLikeParameter(param) || param == Singularize(seg)
		}
		if singular {
			parts = append(parts, capitalize(Singularize(seg)))
		} else {
			parts = append(parts, capitalize(seg))
		}
	}
	return Sanitize(strings.Join(parts, ""), CaseCamel)
}
